package candle

import (
	"context"

	"github.com/pkg/errors"

	"bitbucket.org/novatechnologies/barfeed/client/birdeye"
	"bitbucket.org/novatechnologies/barfeed/domain"
	"bitbucket.org/novatechnologies/barfeed/infra/logger"
)

// HistoryRequest asks for bars of Symbol opened in [From, To), Unix seconds.
// Address is the upstream pair address and defaults to Symbol.
type HistoryRequest struct {
	Symbol           string
	Address          string
	Resolution       domain.Resolution
	From             int64
	To               int64
	FirstDataRequest bool
}

func (r HistoryRequest) address() string {
	if r.Address != "" {
		return r.Address
	}

	return r.Symbol
}

type History struct {
	client birdeye.Client
	cache  *LastBars
}

func NewHistory(client birdeye.Client, cache *LastBars) *History {
	return &History{client: client, cache: cache}
}

// GetBars fetches one page of bars. An unsuccessful or empty upstream answer
// is reported with noData set and a nil error.
func (h *History) GetBars(ctx context.Context, req HistoryRequest) (bars []domain.Bar, noData bool, err error) {
	interval := domain.ParseResolution(string(req.Resolution))
	log := logger.FromContext(ctx).
		WithField("symbol", req.Symbol).
		WithField("resolution", req.Resolution).
		WithField("interval", interval)

	resp, err := h.client.OHLCV(ctx, birdeye.OHLCVRequest{
		Address:  req.address(),
		Interval: interval,
		From:     req.From,
		To:       req.To,
	})
	if err != nil {
		return nil, false, errors.Wrapf(err, "can't fetch bars for %s", req.Symbol)
	}
	if !resp.Success || len(resp.Items) == 0 {
		log.WithField("message", resp.Message).Debugf("[History.GetBars] no data")
		return nil, true, nil
	}

	bars = make([]domain.Bar, 0, len(resp.Items))
	for _, item := range resp.Items {
		if item.UnixTime < req.From || item.UnixTime >= req.To {
			continue
		}
		bars = append(bars, domain.Bar{
			Time:  item.UnixTime * 1000,
			Open:  item.Open,
			High:  item.High,
			Low:   item.Low,
			Close: item.Close,
		})
	}

	if req.FirstDataRequest && len(bars) > 0 {
		h.cache.Set(req.Symbol, req.Resolution, bars[len(bars)-1])
	}
	log.WithField("count", len(bars)).Debugf("[History.GetBars] bars loaded")

	return bars, false, nil
}
