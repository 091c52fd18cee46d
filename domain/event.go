package domain

import (
	"context"
)

type EventType = string

const (
	EvTypeBars      = "bars"
	EvTypeBarClosed = "bar_closed"
)

type EventHandler = func(m *Event) error

// EventsBroker describes abstract pub-sub messaging system for internal events
// among components. Each event can contain payload and meta info, so they can
// be used not for notification purposes only.
type EventsBroker interface {
	Subscribe(tp EventType, h EventHandler)
	Publish(tp EventType, data *Event)
}

// BarUpdate is the payload of EvTypeBars and EvTypeBarClosed events.
type BarUpdate struct {
	SubscriptionID string
	Symbol         string
	Resolution     Resolution
	Bar            Bar
}

type (
	meta  map[string]string
	Event struct {
		Ctx     context.Context
		payload interface{}
		meta    meta
	}
)

func NewEvent(ctx context.Context, payload interface{}) *Event {
	if ctx == nil {
		ctx = context.Background()
	}

	return &Event{
		payload: payload,
		Ctx:     ctx,
		meta:    nil,
	}
}

func (m *Event) WithMetaKV(key, value string) *Event {
	if m.meta == nil {
		m.meta = make(meta)
	}
	m.meta[key] = value

	return m
}

func (m *Event) GetMeta(key string) string {
	if m.meta == nil {
		return ""
	}

	return m.meta[key]
}

func (m *Event) MustGetBarUpdate() BarUpdate {
	return m.payload.(BarUpdate)
}

func (m *Event) Payload() interface{} {
	return m.payload
}
