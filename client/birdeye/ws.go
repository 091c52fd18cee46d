package birdeye

import (
	"context"
	"encoding/json"
	"net/url"
	"sync"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/gorilla/websocket"
	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"

	"bitbucket.org/novatechnologies/barfeed/domain"
	"bitbucket.org/novatechnologies/barfeed/infra/logger"
)

const (
	msgTypeSubscribePrice   = "SUBSCRIBE_PRICE"
	msgTypeUnsubscribePrice = "UNSUBSCRIBE_PRICE"
	msgTypePriceData        = "PRICE_DATA"

	wsSubprotocol = "echo-protocol"

	defaultInitialBackoff = 500 * time.Millisecond
	defaultMaxBackoff     = 30 * time.Second
	writeTimeout          = 5 * time.Second
)

type StreamConfig struct {
	URL            string
	APIKey         string
	Currency       string
	InitialBackoff time.Duration
	MaxBackoff     time.Duration
	Dialer         *websocket.Dialer
}

// Handlers receive events of one price subscription. Both are called from
// the subscription's reader goroutine.
type Handlers struct {
	OnPrice     func(tick domain.Tick)
	OnReconnect func()
}

type Token interface {
	Unsubscribe()
}

// PriceStream opens one price channel connection per subscription.
type PriceStream struct {
	cfg StreamConfig
}

func NewPriceStream(cfg StreamConfig) *PriceStream {
	if cfg.InitialBackoff == 0 {
		cfg.InitialBackoff = defaultInitialBackoff
	}
	if cfg.MaxBackoff == 0 {
		cfg.MaxBackoff = defaultMaxBackoff
	}
	if cfg.Currency == "" {
		cfg.Currency = "pair"
	}
	if cfg.Dialer == nil {
		dialer := *websocket.DefaultDialer
		dialer.Subprotocols = []string{wsSubprotocol}
		cfg.Dialer = &dialer
	}

	return &PriceStream{cfg: cfg}
}

type controlMessage struct {
	Type string         `json:"type"`
	Data *subscribeData `json:"data,omitempty"`
}

type subscribeData struct {
	QueryType string `json:"queryType"`
	ChartType string `json:"chartType"`
	Address   string `json:"address"`
	Currency  string `json:"currency"`
}

type envelope struct {
	Type string          `json:"type"`
	Data json.RawMessage `json:"data"`
}

type priceData struct {
	Address  string   `json:"address"`
	UnixTime *int64   `json:"unixTime"`
	O        *float64 `json:"o"`
	H        *float64 `json:"h"`
	L        *float64 `json:"l"`
	C        *float64 `json:"c"`
	V        *float64 `json:"v"`
}

// decodeMessage returns the tick carried by a PRICE_DATA frame. ok is false
// for every other message type.
func decodeMessage(msg []byte) (tick domain.Tick, msgType string, ok bool, err error) {
	var env envelope
	if err := json.Unmarshal(msg, &env); err != nil {
		return tick, "", false, errors.Wrapf(ErrMalformedMessage, "envelope: %v", err)
	}
	if env.Type != msgTypePriceData {
		return tick, env.Type, false, nil
	}

	var data priceData
	if err := json.Unmarshal(env.Data, &data); err != nil {
		return tick, env.Type, false, errors.Wrapf(ErrMalformedMessage, "price data: %v", err)
	}
	if data.UnixTime == nil || data.O == nil || data.H == nil || data.L == nil || data.C == nil {
		return tick, env.Type, false, errors.Wrap(ErrMalformedMessage, "price data misses a field")
	}

	tick = domain.Tick{
		Address:  data.Address,
		UnixTime: *data.UnixTime,
		Open:     *data.O,
		High:     *data.H,
		Low:      *data.L,
		Close:    *data.C,
	}
	if data.V != nil {
		tick.Volume = *data.V
	}

	return tick, env.Type, true, nil
}

type subscription struct {
	cfg      StreamConfig
	address  string
	interval string
	handlers Handlers
	log      *logrus.Entry

	cancel context.CancelFunc
	done   chan struct{}
	once   sync.Once

	mu   sync.Mutex
	conn *websocket.Conn
}

// Subscribe dials the price channel and requests updates for address at
// interval. The first connection is made before returning, later drops are
// redialed with exponential backoff until the token is unsubscribed or ctx
// is done.
func (s *PriceStream) Subscribe(ctx context.Context, address, interval string, handlers Handlers) (Token, error) {
	if address == "" {
		return nil, errors.New("birdeye: empty address")
	}

	ctx, cancel := context.WithCancel(ctx)
	sub := &subscription{
		cfg:      s.cfg,
		address:  address,
		interval: interval,
		handlers: handlers,
		log: logger.FromContext(ctx).
			WithField("address", address).
			WithField("type", interval),
		cancel: cancel,
		done:   make(chan struct{}),
	}

	conn, err := sub.connect(ctx)
	if err != nil {
		cancel()
		return nil, err
	}

	go sub.run(ctx, conn)

	return sub, nil
}

func (s *subscription) dialURL() (string, error) {
	u, err := url.Parse(s.cfg.URL)
	if err != nil {
		return "", errors.Wrap(err, "failed to parse ws url")
	}
	q := u.Query()
	q.Set("x-api-key", s.cfg.APIKey)
	u.RawQuery = q.Encode()

	return u.String(), nil
}

func (s *subscription) connect(ctx context.Context) (*websocket.Conn, error) {
	u, err := s.dialURL()
	if err != nil {
		return nil, err
	}

	conn, _, err := s.cfg.Dialer.DialContext(ctx, u, nil)
	if err != nil {
		return nil, errors.Wrap(err, "dial")
	}

	s.mu.Lock()
	s.conn = conn
	err = s.writeJSON(controlMessage{
		Type: msgTypeSubscribePrice,
		Data: &subscribeData{
			QueryType: "simple",
			ChartType: s.interval,
			Address:   s.address,
			Currency:  s.cfg.Currency,
		},
	})
	s.mu.Unlock()
	if err != nil {
		_ = conn.Close()
		return nil, errors.Wrap(err, "subscribe")
	}

	return conn, nil
}

// writeJSON must be called with s.mu held.
func (s *subscription) writeJSON(v interface{}) error {
	if s.conn == nil {
		return errors.New("not connected")
	}
	_ = s.conn.SetWriteDeadline(time.Now().Add(writeTimeout))

	return s.conn.WriteJSON(v)
}

func (s *subscription) run(ctx context.Context, conn *websocket.Conn) {
	defer close(s.done)

	for {
		err := s.read(ctx, conn)
		if ctx.Err() != nil {
			return
		}
		s.log.WithError(err).Warnf("[birdeye.PriceStream] connection lost, reconnecting")

		conn = s.reconnect(ctx)
		if conn == nil {
			return
		}
		if s.handlers.OnReconnect != nil {
			s.handlers.OnReconnect()
		}
	}
}

func (s *subscription) reconnect(ctx context.Context) *websocket.Conn {
	b := backoff.NewExponentialBackOff()
	b.InitialInterval = s.cfg.InitialBackoff
	b.MaxInterval = s.cfg.MaxBackoff
	b.MaxElapsedTime = 0

	var conn *websocket.Conn
	err := backoff.RetryNotify(
		func() error {
			c, err := s.connect(ctx)
			if err != nil {
				return err
			}
			conn = c
			return nil
		},
		backoff.WithContext(b, ctx),
		func(err error, wait time.Duration) {
			s.log.WithError(err).WithField("wait", wait).Warnf("[birdeye.PriceStream] reconnect failed")
		},
	)
	if err != nil {
		return nil
	}

	return conn
}

// read consumes frames until the connection fails or ctx is done.
func (s *subscription) read(ctx context.Context, conn *websocket.Conn) error {
	stop := make(chan struct{})
	defer close(stop)
	go func() {
		select {
		case <-ctx.Done():
			_ = conn.Close()
		case <-stop:
		}
	}()
	defer conn.Close()

	for {
		_, msg, err := conn.ReadMessage()
		if err != nil {
			return errors.Wrap(err, "read")
		}

		tick, msgType, ok, err := decodeMessage(msg)
		if err != nil {
			s.log.WithError(err).Warnf("[birdeye.PriceStream] skip message")
			continue
		}
		if !ok {
			s.log.WithField("msgType", msgType).Debugf("[birdeye.PriceStream] ignore message")
			continue
		}
		if s.handlers.OnPrice != nil {
			s.handlers.OnPrice(tick)
		}
	}
}

// Unsubscribe tells the server to stop, closes the connection and waits for
// the reader goroutine to exit. Handlers are not called after it returns.
func (s *subscription) Unsubscribe() {
	s.once.Do(func() {
		s.mu.Lock()
		if s.conn != nil {
			if err := s.writeJSON(controlMessage{Type: msgTypeUnsubscribePrice}); err != nil {
				s.log.WithError(err).Debugf("[birdeye.PriceStream] unsubscribe not sent")
			}
			_ = s.conn.WriteControl(
				websocket.CloseMessage,
				websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""),
				time.Now().Add(writeTimeout),
			)
		}
		s.mu.Unlock()

		s.cancel()
		<-s.done
	})
}
