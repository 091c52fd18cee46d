package birdeye

import (
	"context"
	"encoding/json"
	"strconv"

	"github.com/go-http-utils/headers"
	"github.com/go-resty/resty/v2"
	"github.com/pkg/errors"
)

// OHLCVRequest selects price points of one pair. From and To are Unix
// seconds.
type OHLCVRequest struct {
	Address  string
	Interval string
	From     int64
	To       int64
}

type OHLCVItem struct {
	UnixTime int64
	Open     float64
	High     float64
	Low      float64
	Close    float64
}

type OHLCVResponse struct {
	Success bool
	Message string
	Items   []OHLCVItem
}

type ohlcvItemWire struct {
	UnixTime *int64   `json:"unixTime"`
	O        *float64 `json:"o"`
	H        *float64 `json:"h"`
	L        *float64 `json:"l"`
	C        *float64 `json:"c"`
}

type ohlcvResponseWire struct {
	Success *bool  `json:"success"`
	Message string `json:"message"`
	Data    *struct {
		Items []ohlcvItemWire `json:"items"`
	} `json:"data"`
}

// OHLCVTransport transport interface
type OHLCVTransport interface {
	EncodeRequest(ctx context.Context, r *resty.Request, req OHLCVRequest)
	DecodeResponse(ctx context.Context, r *resty.Response) (*OHLCVResponse, error)
}

type ohlcvTransport struct {
	errorProcessor errorProcessor
	path           string
}

func NewOHLCVTransport(errorProcessor errorProcessor, path string) OHLCVTransport {
	return &ohlcvTransport{
		errorProcessor: errorProcessor,
		path:           path,
	}
}

func (t *ohlcvTransport) EncodeRequest(ctx context.Context, r *resty.Request, req OHLCVRequest) {
	r.SetContext(ctx)
	r.Method = resty.MethodGet
	r.URL = t.path
	r.SetHeader(headers.Accept, "application/json")
	r.SetQueryParams(map[string]string{
		"address":   req.Address,
		"type":      req.Interval,
		"time_from": strconv.FormatInt(req.From, 10),
		"time_to":   strconv.FormatInt(req.To, 10),
	})
}

// DecodeResponse validates every item so a shape mismatch surfaces as
// ErrMalformedResponse instead of zero prices.
func (t *ohlcvTransport) DecodeResponse(_ context.Context, r *resty.Response) (*OHLCVResponse, error) {
	if r.IsError() {
		return nil, t.errorProcessor.Decode(r)
	}

	var wire ohlcvResponseWire
	if err := json.Unmarshal(r.Body(), &wire); err != nil {
		return nil, errors.Wrapf(ErrMalformedResponse, "decode body: %v", err)
	}
	if wire.Success == nil {
		return nil, errors.Wrap(ErrMalformedResponse, "missing success flag")
	}

	resp := &OHLCVResponse{
		Success: *wire.Success,
		Message: wire.Message,
	}
	if !resp.Success || wire.Data == nil {
		return resp, nil
	}

	resp.Items = make([]OHLCVItem, 0, len(wire.Data.Items))
	for i, item := range wire.Data.Items {
		if item.UnixTime == nil || item.O == nil || item.H == nil || item.L == nil || item.C == nil {
			return nil, errors.Wrapf(ErrMalformedResponse, "item %d misses a field", i)
		}
		resp.Items = append(resp.Items, OHLCVItem{
			UnixTime: *item.UnixTime,
			Open:     *item.O,
			High:     *item.H,
			Low:      *item.L,
			Close:    *item.C,
		})
	}

	return resp, nil
}
