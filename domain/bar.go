package domain

import (
	"math"

	"github.com/AlekSi/pointer"
	"github.com/shopspring/decimal"
)

// Bar is a single OHLCV candle. Time is the open time in Unix milliseconds.
type Bar struct {
	Time   int64    `json:"time" bson:"t"`
	Open   float64  `json:"open" bson:"o"`
	High   float64  `json:"high" bson:"h"`
	Low    float64  `json:"low" bson:"l"`
	Close  float64  `json:"close" bson:"c"`
	Volume *float64 `json:"volume,omitempty" bson:"v,omitempty"`
}

// Tick is a live price event as delivered by the upstream price channel.
// UnixTime is in seconds.
type Tick struct {
	Address  string
	UnixTime int64
	Open     float64
	High     float64
	Low      float64
	Close    float64
	Volume   float64
}

func (t Tick) TimeMs() int64 {
	return t.UnixTime * 1000
}

// NewBarFromTick opens a bar at openMs with the tick's close as every price.
func NewBarFromTick(openMs int64, tick Tick) Bar {
	return Bar{
		Time:   openMs,
		Open:   tick.Close,
		High:   tick.Close,
		Low:    tick.Close,
		Close:  tick.Close,
		Volume: pointer.ToFloat64(tick.Volume),
	}
}

// Merge folds a tick into the bar. Time and Open are kept, High and Low only
// widen, Close and Volume take the tick's values.
func (b Bar) Merge(tick Tick) Bar {
	return Bar{
		Time:   b.Time,
		Open:   b.Open,
		High:   math.Max(b.High, tick.High),
		Low:    math.Min(b.Low, tick.Low),
		Close:  tick.Close,
		Volume: pointer.ToFloat64(tick.Volume),
	}
}

// Clone returns a copy that does not share the Volume pointer.
func (b Bar) Clone() Bar {
	if b.Volume != nil {
		b.Volume = pointer.ToFloat64(*b.Volume)
	}

	return b
}

func (b Bar) IsValid() bool {
	return b.Low <= math.Min(b.Open, b.Close) && math.Max(b.Open, b.Close) <= b.High
}

// Chart is the column-oriented bar layout used by UDF history responses and
// broadcast payloads.
type Chart struct {
	Symbol     string     `json:"-"`
	Resolution Resolution `json:"-"`
	Status     string     `json:"s"`
	O          []string   `json:"o"`
	H          []string   `json:"h"`
	L          []string   `json:"l"`
	C          []string   `json:"c"`
	V          []string   `json:"v,omitempty"`
	T          []int64    `json:"t"`
}

const (
	ChartStatusOk     = "ok"
	ChartStatusNoData = "no_data"
)

// NewChart renders bars into a Chart. T is in Unix seconds, prices are
// rendered as exact decimals.
func NewChart(symbol string, resolution Resolution, bars []Bar) *Chart {
	chart := &Chart{
		Symbol:     symbol,
		Resolution: resolution,
		Status:     ChartStatusOk,
		O:          make([]string, 0, len(bars)),
		H:          make([]string, 0, len(bars)),
		L:          make([]string, 0, len(bars)),
		C:          make([]string, 0, len(bars)),
		T:          make([]int64, 0, len(bars)),
	}
	if len(bars) == 0 {
		chart.Status = ChartStatusNoData
	}

	withVolume := false
	for _, bar := range bars {
		if bar.Volume != nil {
			withVolume = true
			break
		}
	}

	for _, bar := range bars {
		chart.O = append(chart.O, decimal.NewFromFloat(bar.Open).String())
		chart.H = append(chart.H, decimal.NewFromFloat(bar.High).String())
		chart.L = append(chart.L, decimal.NewFromFloat(bar.Low).String())
		chart.C = append(chart.C, decimal.NewFromFloat(bar.Close).String())
		chart.T = append(chart.T, bar.Time/1000)
		if withVolume {
			chart.V = append(chart.V, decimal.NewFromFloat(pointer.GetFloat64(bar.Volume)).String())
		}
	}

	return chart
}
