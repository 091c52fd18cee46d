package birdeye

import (
	"context"
	"net/url"
	"time"

	"github.com/go-resty/resty/v2"
	"github.com/pkg/errors"
	"golang.org/x/time/rate"

	"bitbucket.org/novatechnologies/barfeed/infra/logger"
)

const (
	uriPathOHLCVPair = "/defi/ohlcv/pair"

	headerAPIKey = "X-API-KEY"
	headerChain  = "x-chain"

	defaultTimeout = 10 * time.Second
)

// Client is the Birdeye public REST API.
type Client interface {
	OHLCV(ctx context.Context, req OHLCVRequest) (*OHLCVResponse, error)
}

type Config struct {
	ServerURL         string
	APIKey            string
	Chain             string
	Timeout           time.Duration
	RequestsPerSecond int
}

type client struct {
	cli            *resty.Client
	limiter        *rate.Limiter
	transportOHLCV OHLCVTransport
}

// New builds a REST client. Requests are never retried, a failed request is
// reported to the caller as is.
func New(config Config, errorProcessor errorProcessor) (Client, error) {
	parsedServerURL, err := url.Parse(config.ServerURL)
	if err != nil {
		return nil, errors.Wrap(err, "failed to parse server url")
	}
	if parsedServerURL.Scheme == "" || parsedServerURL.Host == "" {
		return nil, errors.Errorf("server url %q must be absolute", config.ServerURL)
	}

	timeout := config.Timeout
	if timeout == 0 {
		timeout = defaultTimeout
	}

	baseURL := parsedServerURL.Scheme + "://" + parsedServerURL.Host + parsedServerURL.Path
	cli := resty.New().
		SetBaseURL(baseURL).
		SetTimeout(timeout).
		SetRetryCount(0).
		SetHeader(headerAPIKey, config.APIKey)
	if config.Chain != "" {
		cli.SetHeader(headerChain, config.Chain)
	}

	limit := rate.Inf
	if config.RequestsPerSecond > 0 {
		limit = rate.Limit(config.RequestsPerSecond)
	}

	return &client{
		cli:            cli,
		limiter:        rate.NewLimiter(limit, 1),
		transportOHLCV: NewOHLCVTransport(errorProcessor, uriPathOHLCVPair),
	}, nil
}

// OHLCV fetches price points of a pair for [req.From, req.To].
func (c *client) OHLCV(ctx context.Context, req OHLCVRequest) (*OHLCVResponse, error) {
	if err := c.limiter.Wait(ctx); err != nil {
		return nil, errors.Wrap(err, "rate limiter")
	}

	log := logger.FromContext(ctx).
		WithField("address", req.Address).
		WithField("type", req.Interval)

	r := c.cli.R()
	c.transportOHLCV.EncodeRequest(ctx, r, req)

	started := time.Now()
	res, err := r.Send()
	if err != nil {
		return nil, errors.Wrapf(err, "GET %s", uriPathOHLCVPair)
	}
	log.WithField("status", res.StatusCode()).
		WithField("took", time.Since(started)).
		Debugf("[birdeye.OHLCV] response received")

	return c.transportOHLCV.DecodeResponse(ctx, res)
}
