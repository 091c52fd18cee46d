package candle

import (
	"sync"

	"bitbucket.org/novatechnologies/barfeed/domain"
)

type cachedBar struct {
	bar        domain.Bar
	resolution domain.Resolution
}

// LastBars remembers the most recent known bar per symbol together with the
// resolution it was built for. It is written by historical fetches and read
// when a live subscription needs a seed.
type LastBars struct {
	mu   sync.RWMutex
	bars map[string]cachedBar
}

func NewLastBars() *LastBars {
	return &LastBars{bars: map[string]cachedBar{}}
}

// Get returns the cached bar of symbol if it was built for a resolution with
// the same upstream interval as resolution.
func (c *LastBars) Get(symbol string, resolution domain.Resolution) (domain.Bar, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()

	cached, ok := c.bars[symbol]
	if !ok || cached.resolution.Interval() != resolution.Interval() {
		return domain.Bar{}, false
	}

	return cached.bar.Clone(), true
}

func (c *LastBars) Set(symbol string, resolution domain.Resolution, bar domain.Bar) {
	c.mu.Lock()
	c.bars[symbol] = cachedBar{bar: bar.Clone(), resolution: resolution}
	c.mu.Unlock()
}

func (c *LastBars) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()

	return len(c.bars)
}
