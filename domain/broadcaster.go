package domain

import (
	"context"
	"fmt"
)

const CandleChartChannelPrefix = "candle_chart"

type Broadcaster interface {
	BroadcastBarUpdates(ctx context.Context, updates []BarUpdate)
}

// ChartChannelName is the Centrifugo channel carrying live bars for
// symbol/resolution.
func ChartChannelName(symbol string, resolution Resolution) string {
	return fmt.Sprintf(
		"%s_%s_%s",
		CandleChartChannelPrefix,
		NormalizeSymbol(symbol),
		resolution,
	)
}
