package candle

import (
	"context"
	"sync"

	"github.com/pkg/errors"

	"bitbucket.org/novatechnologies/barfeed/client/birdeye"
	"bitbucket.org/novatechnologies/barfeed/domain"
)

type fakeClient struct {
	resp *birdeye.OHLCVResponse
	err  error
	got  []birdeye.OHLCVRequest
}

func (c *fakeClient) OHLCV(_ context.Context, req birdeye.OHLCVRequest) (*birdeye.OHLCVResponse, error) {
	c.got = append(c.got, req)
	return c.resp, c.err
}

type fakeToken struct {
	mu           sync.Mutex
	unsubscribed int
}

func (t *fakeToken) Unsubscribe() {
	t.mu.Lock()
	t.unsubscribed++
	t.mu.Unlock()
}

func (t *fakeToken) count() int {
	t.mu.Lock()
	defer t.mu.Unlock()

	return t.unsubscribed
}

type feedCall struct {
	address  string
	interval string
	handlers birdeye.Handlers
	token    *fakeToken
}

// fakeFeed records subscriptions so tests can push ticks synchronously.
type fakeFeed struct {
	mu    sync.Mutex
	calls []*feedCall
	err   error
}

func (f *fakeFeed) Subscribe(_ context.Context, address, interval string, handlers birdeye.Handlers) (birdeye.Token, error) {
	if f.err != nil {
		return nil, f.err
	}
	call := &feedCall{address: address, interval: interval, handlers: handlers, token: &fakeToken{}}
	f.mu.Lock()
	f.calls = append(f.calls, call)
	f.mu.Unlock()

	return call.token, nil
}

func (f *fakeFeed) last() *feedCall {
	f.mu.Lock()
	defer f.mu.Unlock()

	return f.calls[len(f.calls)-1]
}

func (f *fakeFeed) call(i int) *feedCall {
	f.mu.Lock()
	defer f.mu.Unlock()

	return f.calls[i]
}

var errUpstream = errors.New("upstream down")

type recordingBroker struct {
	mu     sync.Mutex
	events map[domain.EventType][]domain.BarUpdate
}

func newRecordingBroker() *recordingBroker {
	return &recordingBroker{events: map[domain.EventType][]domain.BarUpdate{}}
}

func (b *recordingBroker) Subscribe(domain.EventType, domain.EventHandler) {}

func (b *recordingBroker) Publish(tp domain.EventType, ev *domain.Event) {
	b.mu.Lock()
	b.events[tp] = append(b.events[tp], ev.MustGetBarUpdate())
	b.mu.Unlock()
}

func (b *recordingBroker) get(tp domain.EventType) []domain.BarUpdate {
	b.mu.Lock()
	defer b.mu.Unlock()

	return b.events[tp]
}
