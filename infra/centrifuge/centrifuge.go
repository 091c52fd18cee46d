package centrifuge

import (
	"context"

	"github.com/centrifugal/gocent/v3"
	"github.com/pkg/errors"

	"bitbucket.org/novatechnologies/barfeed/infra"
	"bitbucket.org/novatechnologies/barfeed/infra/logger"
)

type MessageData struct {
	Channel string `json:"channel"`
	Data    []byte `json:"data"`
}

type Centrifuge interface {
	BatchPublish(ctx context.Context, messages []MessageData) error
}

type centrifuge struct {
	client *gocent.Client
}

func New(cfg infra.CentrifugeConfig) Centrifuge {
	return &centrifuge{
		client: gocent.New(gocent.Config{
			Addr: "http://" + cfg.Host + "/api",
			Key:  cfg.Token,
		}),
	}
}

// BatchPublish sends all messages in one HTTP request. Per message failures
// are logged, the returned error covers the request itself.
func (c centrifuge) BatchPublish(ctx context.Context, messages []MessageData) error {
	if len(messages) == 0 {
		return nil
	}
	log := logger.FromContext(ctx)

	pipe := c.client.Pipe()
	for _, message := range messages {
		if err := pipe.AddPublish(message.Channel, message.Data); err != nil {
			return errors.Wrapf(err, "can't add publish to %s", message.Channel)
		}
	}

	replies, err := c.client.SendPipe(ctx, pipe)
	if err != nil {
		return errors.Wrap(err, "can't send pipe")
	}
	for i, reply := range replies {
		if reply.Error != nil && i < len(messages) {
			log.WithField("channel", messages[i].Channel).
				Errorf("Error in pipe reply: %v", reply.Error)
		}
	}
	log.Debugf("Sent %d publish commands in one HTTP request", len(replies))

	return nil
}
