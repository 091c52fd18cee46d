package candle

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"

	"bitbucket.org/novatechnologies/barfeed/client/birdeye"
	"bitbucket.org/novatechnologies/barfeed/domain"
	"bitbucket.org/novatechnologies/barfeed/infra/logger"
)

var ErrUnsupportedResolution = errors.New("unsupported resolution")

var timeNow = func() time.Time {
	return time.Now()
}

// PriceFeed delivers live ticks for a pair address.
type PriceFeed interface {
	Subscribe(ctx context.Context, address, interval string, handlers birdeye.Handlers) (birdeye.Token, error)
}

// SeedStore returns the latest persisted bar, nil when there is none.
type SeedStore interface {
	Last(ctx context.Context, symbol string, resolution domain.Resolution) (*domain.Bar, error)
}

// SubscribeRequest describes a live subscription. Address is the upstream
// pair address, Symbol is used when it is empty. OnBar runs on the feed
// goroutine and must not unsubscribe synchronously. Seed overrides the cached
// last bar of Symbol.
type SubscribeRequest struct {
	Symbol         string
	Address        string
	Resolution     domain.Resolution
	SubscriptionID string
	OnBar          func(bar domain.Bar)
	OnResetCache   func()
	Seed           *domain.Bar
}

type subscription struct {
	id         string
	seq        uint64
	symbol     string
	resolution domain.Resolution
	lastBar    *domain.Bar
	seedOnly   bool // lastBar is a seed no live tick has touched
	onBar      func(bar domain.Bar)
	onReset    func()
	token      birdeye.Token
}

// Aggregator folds live ticks into bars, one record per subscription ID.
type Aggregator struct {
	feed   PriceFeed
	cache  *LastBars
	broker domain.EventsBroker
	seeds  SeedStore
	loc    *time.Location

	mu   sync.Mutex
	seq  uint64
	subs map[string]*subscription
}

// NewAggregator creates an aggregator. broker may be nil. Day and longer bars
// roll over at midnight in loc.
func NewAggregator(feed PriceFeed, cache *LastBars, broker domain.EventsBroker, loc *time.Location) *Aggregator {
	if loc == nil {
		loc = time.UTC
	}

	return &Aggregator{
		feed:   feed,
		cache:  cache,
		broker: broker,
		loc:    loc,
		subs:   map[string]*subscription{},
	}
}

// WithSeedStore makes subscriptions without an explicit or cached seed start
// from the latest persisted bar.
func (a *Aggregator) WithSeedStore(seeds SeedStore) *Aggregator {
	a.seeds = seeds
	return a
}

// Subscribe starts live aggregation and returns the subscription ID. A
// previous subscription with the same ID is torn down first, its callbacks
// are never invoked again.
func (a *Aggregator) Subscribe(ctx context.Context, req SubscribeRequest) (string, error) {
	if req.Resolution.IsNotExist() {
		return "", errors.Wrapf(ErrUnsupportedResolution, "%q", req.Resolution)
	}
	if req.Symbol == "" {
		return "", errors.New("empty symbol")
	}
	if req.SubscriptionID == "" {
		req.SubscriptionID = uuid.NewString()
	}
	a.Unsubscribe(req.SubscriptionID)

	sub := &subscription{
		id:         req.SubscriptionID,
		symbol:     req.Symbol,
		resolution: req.Resolution,
		onBar:      req.OnBar,
		onReset:    req.OnResetCache,
	}
	log := logger.FromContext(ctx).
		WithField("subscription", sub.id).
		WithField("symbol", sub.symbol).
		WithField("resolution", sub.resolution)

	sub.lastBar = a.seed(ctx, log, req)
	sub.seedOnly = sub.lastBar != nil

	a.mu.Lock()
	a.seq++
	sub.seq = a.seq
	a.subs[sub.id] = sub
	a.mu.Unlock()

	address := req.Address
	if address == "" {
		address = req.Symbol
	}
	token, err := a.feed.Subscribe(ctx, address, req.Resolution.Interval(), birdeye.Handlers{
		OnPrice: func(tick domain.Tick) {
			a.onTick(ctx, sub.id, sub.seq, tick)
		},
		OnReconnect: func() {
			a.onReconnect(log, sub.id, sub.seq)
		},
	})
	if err != nil {
		a.remove(sub.id, sub.seq)
		return "", errors.Wrapf(err, "can't subscribe %s", req.Symbol)
	}

	a.mu.Lock()
	current, ok := a.subs[sub.id]
	if ok && current.seq == sub.seq {
		current.token = token
		token = nil
	}
	a.mu.Unlock()
	if token != nil {
		// replaced or removed while dialing
		token.Unsubscribe()
	}
	log.Infof("[Aggregator.Subscribe] subscribed")

	return sub.id, nil
}

func (a *Aggregator) seed(ctx context.Context, log *logrus.Entry, req SubscribeRequest) *domain.Bar {
	if req.Seed != nil {
		seed := req.Seed.Clone()
		return &seed
	}
	if seed, ok := a.cache.Get(req.Symbol, req.Resolution); ok {
		if a.isCurrent(req.Resolution, seed) {
			return &seed
		}
		log.WithField("seedTime", seed.Time).Debugf("[Aggregator] cached seed is outdated")
	}
	if a.seeds == nil {
		return nil
	}

	seed, err := a.seeds.Last(ctx, req.Symbol, req.Resolution)
	if err != nil {
		log.WithError(err).Warnf("[Aggregator] can't load persisted seed")
		return nil
	}
	if seed == nil || !a.isCurrent(req.Resolution, *seed) {
		return nil
	}

	return seed
}

// isCurrent reports whether bar is the resolution's bar open right now. Only
// such a bar may be continued by live ticks.
func (a *Aggregator) isCurrent(resolution domain.Resolution, bar domain.Bar) bool {
	nowMs := timeNow().UnixMilli()
	if resolution.StartTime(bar.Time, a.loc) != bar.Time || bar.Time > nowMs {
		return false
	}

	return resolution.StartTime(nowMs, a.loc) < resolution.NextBarTime(bar.Time, a.loc)
}

// Unsubscribe stops the subscription and reports whether it existed.
func (a *Aggregator) Unsubscribe(id string) bool {
	a.mu.Lock()
	sub, ok := a.subs[id]
	if ok {
		delete(a.subs, id)
	}
	a.mu.Unlock()
	if !ok {
		return false
	}

	if sub.token != nil {
		sub.token.Unsubscribe()
	}

	return true
}

// Close stops every subscription.
func (a *Aggregator) Close() {
	a.mu.Lock()
	subs := a.subs
	a.subs = map[string]*subscription{}
	a.mu.Unlock()

	for _, sub := range subs {
		if sub.token != nil {
			sub.token.Unsubscribe()
		}
	}
}

// Active returns the number of live subscriptions.
func (a *Aggregator) Active() int {
	a.mu.Lock()
	defer a.mu.Unlock()

	return len(a.subs)
}

func (a *Aggregator) remove(id string, seq uint64) {
	a.mu.Lock()
	if sub, ok := a.subs[id]; ok && sub.seq == seq {
		delete(a.subs, id)
	}
	a.mu.Unlock()
}

// lookup returns the subscription only if it is still the one registered
// under id. Must be called with a.mu held.
func (a *Aggregator) lookup(id string, seq uint64) *subscription {
	sub, ok := a.subs[id]
	if !ok || sub.seq != seq {
		return nil
	}

	return sub
}

func (a *Aggregator) onTick(ctx context.Context, id string, seq uint64, tick domain.Tick) {
	a.mu.Lock()
	sub := a.lookup(id, seq)
	if sub == nil {
		a.mu.Unlock()
		return
	}

	var closed *domain.Bar
	eventMs := tick.TimeMs()
	var bar domain.Bar
	switch {
	case sub.lastBar == nil:
		bar = domain.NewBarFromTick(sub.resolution.StartTime(eventMs, a.loc), tick)
	case eventMs >= sub.resolution.NextBarTime(sub.lastBar.Time, a.loc):
		if !sub.seedOnly {
			prev := sub.lastBar.Clone()
			closed = &prev
		}
		bar = domain.NewBarFromTick(sub.resolution.NextBarTime(sub.lastBar.Time, a.loc), tick)
	default:
		bar = sub.lastBar.Merge(tick)
	}
	sub.lastBar = &bar
	sub.seedOnly = false
	onBar := sub.onBar
	symbol, resolution := sub.symbol, sub.resolution
	a.mu.Unlock()

	if closed != nil {
		a.publish(ctx, domain.EvTypeBarClosed, domain.BarUpdate{
			SubscriptionID: id,
			Symbol:         symbol,
			Resolution:     resolution,
			Bar:            *closed,
		})
	}
	a.publish(ctx, domain.EvTypeBars, domain.BarUpdate{
		SubscriptionID: id,
		Symbol:         symbol,
		Resolution:     resolution,
		Bar:            bar.Clone(),
	})

	if onBar != nil {
		onBar(bar.Clone())
	}
}

func (a *Aggregator) onReconnect(log *logrus.Entry, id string, seq uint64) {
	a.mu.Lock()
	sub := a.lookup(id, seq)
	var onReset func()
	if sub != nil {
		onReset = sub.onReset
	}
	a.mu.Unlock()
	if sub == nil {
		return
	}

	log.Warnf("[Aggregator] price feed reconnected, resetting cache")
	if onReset != nil {
		onReset()
	}
}

func (a *Aggregator) publish(ctx context.Context, tp domain.EventType, update domain.BarUpdate) {
	if a.broker == nil {
		return
	}
	a.broker.Publish(tp, domain.NewEvent(ctx, update))
}
