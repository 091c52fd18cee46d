package centrifuge

import (
	"context"
	"encoding/json"
	"time"

	"bitbucket.org/novatechnologies/barfeed/domain"
	"bitbucket.org/novatechnologies/barfeed/infra/logger"
)

const updatesBufferSize = 2048

var _ domain.Broadcaster = new(Broadcaster)

// Broadcaster forwards live bar updates to per symbol and resolution chart
// channels.
type Broadcaster struct {
	centrifuge   Centrifuge
	eventsBroker domain.EventsBroker
	updates      chan domain.BarUpdate
	batchSize    int
	batchWait    time.Duration
}

func NewBroadcaster(
	publisher Centrifuge,
	eventsBroker domain.EventsBroker,
	batchSize int,
	batchWait time.Duration,
) *Broadcaster {
	if batchSize <= 0 {
		batchSize = 1
	}

	return &Broadcaster{
		centrifuge:   publisher,
		eventsBroker: eventsBroker,
		updates:      make(chan domain.BarUpdate, updatesBufferSize),
		batchSize:    batchSize,
		batchWait:    batchWait,
	}
}

// SubscribeForBars queues every EvTypeBars update. The broker runs handlers
// inline, so a full queue drops the update instead of blocking the feed.
func (b *Broadcaster) SubscribeForBars() {
	b.eventsBroker.Subscribe(domain.EvTypeBars, func(e *domain.Event) error {
		update := e.MustGetBarUpdate()
		select {
		case b.updates <- update:
		default:
			logger.FromContext(e.Ctx).
				WithField("symbol", update.Symbol).
				WithField("resolution", update.Resolution).
				Warnf("[Broadcaster] queue is full, update dropped")
		}
		return nil
	})
}

// Run publishes queued updates in micro batches until ctx is done.
func (b *Broadcaster) Run(ctx context.Context) error {
	for batch := range domain.Microbatching(ctx, b.updates, b.batchSize, b.batchWait) {
		b.BroadcastBarUpdates(ctx, batch)
	}

	return nil
}

// BroadcastBarUpdates publishes one message per channel carrying that
// channel's bars in order.
func (b *Broadcaster) BroadcastBarUpdates(ctx context.Context, updates []domain.BarUpdate) {
	log := logger.FromContext(ctx)

	type channelBars struct {
		symbol     string
		resolution domain.Resolution
		bars       []domain.Bar
	}
	var order []string
	byChannel := map[string]*channelBars{}
	for _, update := range updates {
		name := domain.ChartChannelName(update.Symbol, update.Resolution)
		cb, ok := byChannel[name]
		if !ok {
			cb = &channelBars{symbol: update.Symbol, resolution: update.Resolution}
			byChannel[name] = cb
			order = append(order, name)
		}
		cb.bars = append(cb.bars, update.Bar)
	}

	messages := make([]MessageData, 0, len(order))
	for _, name := range order {
		cb := byChannel[name]
		payload, err := json.Marshal(domain.NewChart(cb.symbol, cb.resolution, cb.bars))
		if err != nil {
			log.WithError(err).WithField("channel", name).Errorf("[Broadcaster] can't marshal chart")
			continue
		}
		messages = append(messages, MessageData{Channel: name, Data: payload})
	}

	log.WithField("messageCount", len(messages)).
		Tracef("[Broadcaster.BroadcastBarUpdates] Push charts to Centrifugo.")
	if err := b.centrifuge.BatchPublish(ctx, messages); err != nil {
		log.WithError(err).Errorf("[Broadcaster.BroadcastBarUpdates] publish failed")
	}
}
