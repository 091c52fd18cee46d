package service

import (
	"context"
	"time"

	"bitbucket.org/novatechnologies/barfeed/domain"
	"bitbucket.org/novatechnologies/barfeed/infra/logger"
)

const (
	archiveQueueSize = 1024
	saveTimeout      = 5 * time.Second
)

type BarSaver interface {
	Save(ctx context.Context, update domain.BarUpdate) error
}

// Archive stores closed bars off the publishing goroutine.
type Archive struct {
	saver  BarSaver
	closed chan domain.BarUpdate
}

// NewArchive returns archive service
func NewArchive(saver BarSaver) *Archive {
	return &Archive{
		saver:  saver,
		closed: make(chan domain.BarUpdate, archiveQueueSize),
	}
}

func (s *Archive) SubscribeForClosedBars(broker domain.EventsBroker) {
	broker.Subscribe(domain.EvTypeBarClosed, func(e *domain.Event) error {
		update := e.MustGetBarUpdate()
		select {
		case s.closed <- update:
		default:
			logger.FromContext(e.Ctx).
				WithField("symbol", update.Symbol).
				WithField("time", update.Bar.Time).
				Warnf("[Archive] queue is full, closed bar dropped")
		}
		return nil
	})
}

// Run saves queued bars until ctx is done.
func (s *Archive) Run(ctx context.Context) error {
	log := logger.FromContext(ctx)
	for {
		select {
		case <-ctx.Done():
			return nil
		case update := <-s.closed:
			saveCtx, cancel := context.WithTimeout(ctx, saveTimeout)
			if err := s.saver.Save(saveCtx, update); err != nil {
				log.WithError(err).
					WithField("symbol", update.Symbol).
					WithField("resolution", update.Resolution).
					Errorf("[Archive] can't save closed bar")
			}
			cancel()
		}
	}
}
