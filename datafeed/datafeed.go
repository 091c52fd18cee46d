// Package datafeed exposes the bar feed through the callback contract chart
// widgets expect: onReady, resolveSymbol, getBars, subscribeBars and
// unsubscribeBars.
package datafeed

import (
	"context"
	"sort"
	"strings"

	"github.com/pkg/errors"

	"bitbucket.org/novatechnologies/barfeed/candle"
	"bitbucket.org/novatechnologies/barfeed/domain"
)

var ErrUnknownSymbol = errors.New("unknown symbol")

const (
	symbolType      = "crypto"
	session         = "24x7"
	priceScale      = 1000000000
	volumePrecision = 2
	dataStatus      = "streaming"
)

type HistoryMeta struct {
	NoData bool
}

// PeriodParams is the requested range in Unix seconds, [From, To).
type PeriodParams struct {
	From             int64
	To               int64
	CountBack        int
	FirstDataRequest bool
}

type HistoryFetcher interface {
	GetBars(ctx context.Context, req candle.HistoryRequest) ([]domain.Bar, bool, error)
}

type BarStreamer interface {
	Subscribe(ctx context.Context, req candle.SubscribeRequest) (string, error)
	Unsubscribe(id string) bool
}

type Config struct {
	// Symbols maps symbol names to pair addresses.
	Symbols  map[string]string
	Exchange string
	Timezone string
}

type Datafeed struct {
	history  HistoryFetcher
	streamer BarStreamer
	cfg      Config
	// address -> symbol name
	names map[string]string
}

func New(history HistoryFetcher, streamer BarStreamer, cfg Config) *Datafeed {
	names := make(map[string]string, len(cfg.Symbols))
	for name, address := range cfg.Symbols {
		names[address] = name
	}
	if cfg.Timezone == "" {
		cfg.Timezone = "Etc/UTC"
	}

	return &Datafeed{
		history:  history,
		streamer: streamer,
		cfg:      cfg,
		names:    names,
	}
}

func (d *Datafeed) Configuration() domain.Configuration {
	return domain.Configuration{
		SupportedResolutions: domain.GetAvailableResolutions(),
		Exchanges: []domain.Exchange{{
			Value: d.cfg.Exchange,
			Name:  d.cfg.Exchange,
			Desc:  d.cfg.Exchange,
		}},
		SymbolsTypes: []domain.SymbolType{{Name: symbolType, Value: symbolType}},
	}
}

func (d *Datafeed) OnReady(cb func(domain.Configuration)) {
	cb(d.Configuration())
}

// Symbols lists the configured symbol names in order.
func (d *Datafeed) Symbols() []string {
	names := make([]string, 0, len(d.cfg.Symbols))
	for name := range d.cfg.Symbols {
		names = append(names, name)
	}
	sort.Strings(names)

	return names
}

// Resolve finds a symbol by configured name or by pair address. Unlisted
// strings that look like base58 addresses resolve to themselves.
func (d *Datafeed) Resolve(name string) (domain.SymbolInfo, error) {
	address, ok := d.cfg.Symbols[name]
	switch {
	case ok:
	case d.names[name] != "":
		address, name = name, d.names[name]
	case isAddress(name):
		address = name
	default:
		return domain.SymbolInfo{}, errors.Wrapf(ErrUnknownSymbol, "%q", name)
	}

	return domain.SymbolInfo{
		Name:                 name,
		Ticker:               address,
		Description:          name,
		Type:                 symbolType,
		Session:              session,
		Timezone:             d.cfg.Timezone,
		Exchange:             d.cfg.Exchange,
		ListedExchange:       d.cfg.Exchange,
		Format:               "price",
		Minmov:               1,
		Pricescale:           priceScale,
		HasIntraday:          true,
		HasWeeklyAndMonthly:  true,
		SupportedResolutions: domain.GetAvailableResolutions(),
		VolumePrecision:      volumePrecision,
		DataStatus:           dataStatus,
	}, nil
}

func (d *Datafeed) ResolveSymbol(name string, onResolved func(domain.SymbolInfo), onError func(error)) {
	info, err := d.Resolve(name)
	if err != nil {
		onError(err)
		return
	}
	onResolved(info)
}

func (d *Datafeed) GetBars(
	ctx context.Context,
	info domain.SymbolInfo,
	resolution domain.Resolution,
	params PeriodParams,
	onHistory func([]domain.Bar, HistoryMeta),
	onError func(error),
) {
	bars, noData, err := d.history.GetBars(ctx, candle.HistoryRequest{
		Symbol:           info.Name,
		Address:          info.Ticker,
		Resolution:       resolution,
		From:             params.From,
		To:               params.To,
		FirstDataRequest: params.FirstDataRequest,
	})
	if err != nil {
		onError(err)
		return
	}
	if noData {
		onHistory(nil, HistoryMeta{NoData: true})
		return
	}
	onHistory(bars, HistoryMeta{})
}

// SubscribeBars starts streaming bars of info at resolution to onTick. A
// repeated subscriberUID replaces the earlier subscription.
func (d *Datafeed) SubscribeBars(
	ctx context.Context,
	info domain.SymbolInfo,
	resolution domain.Resolution,
	onTick func(domain.Bar),
	subscriberUID string,
	onResetCache func(),
) (string, error) {
	return d.streamer.Subscribe(ctx, candle.SubscribeRequest{
		Symbol:         info.Name,
		Address:        info.Ticker,
		Resolution:     resolution,
		SubscriptionID: subscriberUID,
		OnBar:          onTick,
		OnResetCache:   onResetCache,
	})
}

func (d *Datafeed) UnsubscribeBars(subscriberUID string) bool {
	return d.streamer.Unsubscribe(subscriberUID)
}

const base58Alphabet = "123456789ABCDEFGHJKLMNPQRSTUVWXYZabcdefghijkmnopqrstuvwxyz"

func isAddress(s string) bool {
	if len(s) < 32 || len(s) > 44 {
		return false
	}
	for _, r := range s {
		if !strings.ContainsRune(base58Alphabet, r) {
			return false
		}
	}

	return true
}
