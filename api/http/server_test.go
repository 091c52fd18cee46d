package http

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/golang-jwt/jwt"
	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"bitbucket.org/novatechnologies/barfeed/api/http/handler"
	"bitbucket.org/novatechnologies/barfeed/candle"
	"bitbucket.org/novatechnologies/barfeed/datafeed"
	"bitbucket.org/novatechnologies/barfeed/domain"
)

const pairAddress = "58oQChx4yWmvKdwLLZzBi4ChoCc2fqCUWBkwMihLYQo2"

type fakeHistory struct {
	bars   []domain.Bar
	noData bool
	err    error
}

func (h *fakeHistory) GetBars(context.Context, candle.HistoryRequest) ([]domain.Bar, bool, error) {
	return h.bars, h.noData, h.err
}

type fakeStreamer struct {
	ids   map[string]bool
	calls int
	err   error
}

func (s *fakeStreamer) Subscribe(_ context.Context, req candle.SubscribeRequest) (string, error) {
	s.calls++
	if s.err != nil {
		return "", s.err
	}
	id := req.SubscriptionID
	if id == "" {
		id = "generated"
	}
	s.ids[id] = true
	return id, nil
}

func (s *fakeStreamer) Unsubscribe(id string) bool {
	ok := s.ids[id]
	delete(s.ids, id)
	return ok
}

func newTestRouter(h *fakeHistory, s *fakeStreamer) http.Handler {
	if s.ids == nil {
		s.ids = map[string]bool{}
	}
	feed := datafeed.New(h, s, datafeed.Config{
		Symbols:  map[string]string{"SOL_USDC": pairAddress},
		Exchange: "Birdeye",
	})

	return NewRouter(context.Background(), feed, handler.NewTokenHandler("secret", time.Hour))
}

func serve(h http.Handler, method, target, body string) *httptest.ResponseRecorder {
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(method, target, strings.NewReader(body)))
	return rec
}

func TestRouter_Config(t *testing.T) {
	rec := serve(newTestRouter(&fakeHistory{}, &fakeStreamer{}), http.MethodGet, "/config", "")

	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "*", rec.Header().Get("Access-Control-Allow-Origin"))

	var cfg domain.Configuration
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &cfg))
	assert.Equal(t, domain.GetAvailableResolutions(), cfg.SupportedResolutions)
}

func TestRouter_Symbols(t *testing.T) {
	router := newTestRouter(&fakeHistory{}, &fakeStreamer{})

	rec := serve(router, http.MethodGet, "/symbols?symbol=SOL_USDC", "")
	require.Equal(t, http.StatusOK, rec.Code)
	var info domain.SymbolInfo
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &info))
	assert.Equal(t, pairAddress, info.Ticker)

	rec = serve(router, http.MethodGet, "/symbols?symbol=BTC", "")
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestRouter_History(t *testing.T) {
	vol := 12.5
	h := &fakeHistory{bars: []domain.Bar{
		{Time: 1700000000000, Open: 1, High: 2, Low: 0.5, Close: 1.5},
		{Time: 1700000060000, Open: 1.5, High: 1.6, Low: 1.4, Close: 1.55, Volume: &vol},
	}}
	rec := serve(newTestRouter(h, &fakeStreamer{}), http.MethodGet,
		"/history?symbol=SOL_USDC&resolution=1&from=1700000000&to=1700000120&firstDataRequest=true", "")

	require.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{
		"s":"ok",
		"t":[1700000000,1700000060],
		"o":["1","1.5"],
		"h":["2","1.6"],
		"l":["0.5","1.4"],
		"c":["1.5","1.55"],
		"v":["0","12.5"]
	}`, rec.Body.String())
}

func TestRouter_HistoryErrors(t *testing.T) {
	tests := []struct {
		name    string
		history *fakeHistory
		target  string
		code    int
		body    string
	}{
		{
			name:    "no data",
			history: &fakeHistory{noData: true},
			target:  "/history?symbol=SOL_USDC&resolution=1D&from=1&to=2",
			code:    http.StatusOK,
			body:    `{"s":"no_data"}`,
		},
		{
			name:    "bad resolution",
			history: &fakeHistory{},
			target:  "/history?symbol=SOL_USDC&resolution=7&from=1&to=2",
			code:    http.StatusBadRequest,
		},
		{
			name:    "bad timestamp",
			history: &fakeHistory{},
			target:  "/history?symbol=SOL_USDC&resolution=1D&from=yesterday&to=2",
			code:    http.StatusBadRequest,
		},
		{
			name:    "reversed range",
			history: &fakeHistory{},
			target:  "/history?symbol=SOL_USDC&resolution=1D&from=3&to=2",
			code:    http.StatusBadRequest,
		},
		{
			name:    "unknown symbol",
			history: &fakeHistory{},
			target:  "/history?symbol=BTC&resolution=1D&from=1&to=2",
			code:    http.StatusNotFound,
		},
		{
			name:    "upstream failure",
			history: &fakeHistory{err: errors.New("birdeye: unexpected status 500")},
			target:  "/history?symbol=SOL_USDC&resolution=1D&from=1&to=2",
			code:    http.StatusBadGateway,
			body:    `{"s":"error","errmsg":"birdeye: unexpected status 500"}`,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := serve(newTestRouter(tt.history, &fakeStreamer{}), http.MethodGet, tt.target, "")
			assert.Equal(t, tt.code, rec.Code)
			if tt.body != "" {
				assert.JSONEq(t, tt.body, rec.Body.String())
			}
		})
	}
}

func TestRouter_Subscriptions(t *testing.T) {
	streamer := &fakeStreamer{}
	router := newTestRouter(&fakeHistory{}, streamer)

	rec := serve(router, http.MethodPost, "/subscriptions", `{"symbol":"SOL_USDC","resolution":"15","id":"chart-1"}`)
	require.Equal(t, http.StatusCreated, rec.Code)
	assert.JSONEq(t, `{"id":"chart-1","channel":"candle_chart_SOL_USDC_15"}`, rec.Body.String())

	rec = serve(router, http.MethodPost, "/subscriptions", `{"symbol":"SOL_USDC","resolution":"2"}`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = serve(router, http.MethodPost, "/subscriptions", `{"symbol":"BTC","resolution":"1"}`)
	assert.Equal(t, http.StatusNotFound, rec.Code)

	rec = serve(router, http.MethodPost, "/subscriptions", `{`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = serve(router, http.MethodDelete, "/subscriptions/chart-1", "")
	assert.Equal(t, http.StatusNoContent, rec.Code)

	rec = serve(router, http.MethodDelete, "/subscriptions/chart-1", "")
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestRouter_SubscriptionsShareChannel(t *testing.T) {
	streamer := &fakeStreamer{}
	router := newTestRouter(&fakeHistory{}, streamer)

	for _, id := range []string{"chart-1", "chart-2", "chart-1"} {
		rec := serve(router, http.MethodPost, "/subscriptions", `{"symbol":"SOL_USDC","resolution":"15","id":"`+id+`"}`)
		require.Equal(t, http.StatusCreated, rec.Code)
		assert.JSONEq(t, `{"id":"`+id+`","channel":"candle_chart_SOL_USDC_15"}`, rec.Body.String())
	}
	assert.Equal(t, 1, streamer.calls, "one live subscription feeds the channel")
	assert.Len(t, streamer.ids, 1)

	rec := serve(router, http.MethodDelete, "/subscriptions/chart-1", "")
	assert.Equal(t, http.StatusNoContent, rec.Code)
	assert.Len(t, streamer.ids, 1, "chart-2 still listens")

	rec = serve(router, http.MethodDelete, "/subscriptions/chart-2", "")
	assert.Equal(t, http.StatusNoContent, rec.Code)
	assert.Empty(t, streamer.ids)
}

func TestRouter_SubscriptionMovesChannel(t *testing.T) {
	streamer := &fakeStreamer{}
	router := newTestRouter(&fakeHistory{}, streamer)

	rec := serve(router, http.MethodPost, "/subscriptions", `{"symbol":"SOL_USDC","resolution":"15","id":"chart-1"}`)
	require.Equal(t, http.StatusCreated, rec.Code)
	rec = serve(router, http.MethodPost, "/subscriptions", `{"symbol":"SOL_USDC","resolution":"60","id":"chart-1"}`)
	require.Equal(t, http.StatusCreated, rec.Code)
	assert.JSONEq(t, `{"id":"chart-1","channel":"candle_chart_SOL_USDC_60"}`, rec.Body.String())

	assert.Equal(t, 2, streamer.calls)
	assert.Len(t, streamer.ids, 1, "the 15 minute subscription was stopped")

	rec = serve(router, http.MethodDelete, "/subscriptions/chart-1", "")
	assert.Equal(t, http.StatusNoContent, rec.Code)
	assert.Empty(t, streamer.ids)
}

func TestRouter_SubscriptionUpstreamFailure(t *testing.T) {
	router := newTestRouter(&fakeHistory{}, &fakeStreamer{err: errors.New("dial")})

	rec := serve(router, http.MethodPost, "/subscriptions", `{"symbol":"SOL_USDC","resolution":"1"}`)
	assert.Equal(t, http.StatusBadGateway, rec.Code)
}

func TestRouter_Token(t *testing.T) {
	router := newTestRouter(&fakeHistory{}, &fakeStreamer{})

	rec := serve(router, http.MethodGet, "/centrifugo/token?user=42", "")
	require.Equal(t, http.StatusOK, rec.Code)

	var body struct {
		Token string `json:"token"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))

	claims := jwt.MapClaims{}
	_, err := jwt.ParseWithClaims(body.Token, claims, func(token *jwt.Token) (interface{}, error) {
		return []byte("secret"), nil
	})
	require.NoError(t, err)
	assert.Equal(t, "42", claims["sub"])
	assert.Greater(t, claims["exp"].(float64), float64(time.Now().Unix()))

	rec = serve(router, http.MethodGet, "/centrifugo/token", "")
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestRouter_TokenNotConfigured(t *testing.T) {
	feed := datafeed.New(&fakeHistory{}, &fakeStreamer{}, datafeed.Config{})
	router := NewRouter(context.Background(), feed, handler.NewTokenHandler("", time.Hour))

	rec := serve(router, http.MethodGet, "/centrifugo/token?user=42", "")
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
}
