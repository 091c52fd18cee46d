package broker

import (
	"sync"

	"bitbucket.org/novatechnologies/barfeed/domain"
	"bitbucket.org/novatechnologies/barfeed/infra/logger"
)

var _ domain.EventsBroker = new(EventsInMemory)

// EventsInMemory is in-memory manager which stores subscriptions and runs
// handlers synchronously, in subscription order, on the publishing goroutine.
// Bar updates must reach subscribers in the order they were produced, so
// handlers are expected to hand work off without blocking.
type EventsInMemory struct {
	log         logger.Logger
	mu          sync.RWMutex
	subscribers map[domain.EventType][]domain.EventHandler
}

func NewInMemory() *EventsInMemory {
	return &EventsInMemory{
		log:         logger.DefaultLogger,
		subscribers: make(map[domain.EventType][]domain.EventHandler),
	}
}

func (ps *EventsInMemory) WithLogger(lg logger.Logger) *EventsInMemory {
	ps.log = lg
	return ps
}

func (ps *EventsInMemory) Subscribe(
	tp domain.EventType,
	h domain.EventHandler,
) {
	if tp == "" || h == nil {
		return
	}

	ps.mu.Lock()
	ps.subscribers[tp] = append(ps.subscribers[tp], h)
	ps.mu.Unlock()
}

func (ps *EventsInMemory) Publish(tp domain.EventType, ev *domain.Event) {
	ps.mu.RLock()
	handlers := ps.subscribers[tp]
	ps.mu.RUnlock()

	for _, handler := range handlers {
		ps.run(tp, handler, ev)
	}
}

func (ps *EventsInMemory) run(tp domain.EventType, handler domain.EventHandler, ev *domain.Event) {
	defer func() {
		if r := recover(); r != nil {
			ps.log.Errorf(
				"Panic while executing handler for %s tp: %+v",
				tp, r,
			)
		}
	}()

	if err := handler(ev); err != nil {
		ps.log.Errorf(
			"Error while executing handler for %s tp: %v",
			tp, err,
		)
	}
}
