package birdeye

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestClient(t *testing.T, h http.HandlerFunc) Client {
	t.Helper()
	srv := httptest.NewServer(h)
	t.Cleanup(srv.Close)

	cli, err := New(Config{
		ServerURL: srv.URL,
		APIKey:    "secret",
		Chain:     "solana",
	}, NewErrorProcessor(nil))
	require.NoError(t, err)

	return cli
}

func TestClient_OHLCV(t *testing.T) {
	cli := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, uriPathOHLCVPair, r.URL.Path)
		assert.Equal(t, "secret", r.Header.Get(headerAPIKey))
		assert.Equal(t, "solana", r.Header.Get(headerChain))

		q := r.URL.Query()
		assert.Equal(t, "PAIR", q.Get("address"))
		assert.Equal(t, "15m", q.Get("type"))
		assert.Equal(t, "1700000000", q.Get("time_from"))
		assert.Equal(t, "1700003600", q.Get("time_to"))

		_, _ = w.Write([]byte(`{"success":true,"data":{"items":[
			{"unixTime":1700000000,"o":1,"h":2,"l":0.5,"c":1.5,"type":"15m"},
			{"unixTime":1700000900,"o":1.5,"h":1.7,"l":1.4,"c":1.6,"type":"15m"}
		]}}`))
	})

	resp, err := cli.OHLCV(context.Background(), OHLCVRequest{
		Address:  "PAIR",
		Interval: "15m",
		From:     1700000000,
		To:       1700003600,
	})
	require.NoError(t, err)
	assert.True(t, resp.Success)
	assert.Equal(t, []OHLCVItem{
		{UnixTime: 1700000000, Open: 1, High: 2, Low: 0.5, Close: 1.5},
		{UnixTime: 1700000900, Open: 1.5, High: 1.7, Low: 1.4, Close: 1.6},
	}, resp.Items)
}

func TestClient_OHLCV_NotSuccess(t *testing.T) {
	cli := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"success":false,"message":"pair not found"}`))
	})

	resp, err := cli.OHLCV(context.Background(), OHLCVRequest{Address: "PAIR", Interval: "1D"})
	require.NoError(t, err)
	assert.False(t, resp.Success)
	assert.Equal(t, "pair not found", resp.Message)
	assert.Empty(t, resp.Items)
}

func TestClient_OHLCV_Malformed(t *testing.T) {
	tests := []struct {
		name string
		body string
	}{
		{name: "not json", body: `<html>`},
		{name: "no success flag", body: `{"data":{"items":[]}}`},
		{name: "item misses close", body: `{"success":true,"data":{"items":[{"unixTime":1,"o":1,"h":1,"l":1}]}}`},
		{name: "price is a string", body: `{"success":true,"data":{"items":[{"unixTime":1,"o":"1","h":1,"l":1,"c":1}]}}`},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cli := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
				_, _ = w.Write([]byte(tt.body))
			})

			_, err := cli.OHLCV(context.Background(), OHLCVRequest{Address: "PAIR", Interval: "1D"})
			require.Error(t, err)
			assert.True(t, errors.Is(err, ErrMalformedResponse), err.Error())
		})
	}
}

func TestClient_OHLCV_StatusError(t *testing.T) {
	cli := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusTooManyRequests)
		_, _ = w.Write([]byte(`{"success":false,"message":"Too many requests"}`))
	})

	_, err := cli.OHLCV(context.Background(), OHLCVRequest{Address: "PAIR", Interval: "1D"})
	require.Error(t, err)

	var statusErr *StatusError
	require.True(t, errors.As(err, &statusErr))
	assert.Equal(t, http.StatusTooManyRequests, statusErr.StatusCode)
	assert.Equal(t, "Too many requests", statusErr.Message)
}

func TestErrorProcessor_Messages(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusUnauthorized)
	}))
	defer srv.Close()

	cli, err := New(Config{ServerURL: srv.URL}, NewErrorProcessor(map[int]string{
		http.StatusUnauthorized: "check BIRDEYE_API_KEY",
	}))
	require.NoError(t, err)

	_, err = cli.OHLCV(context.Background(), OHLCVRequest{Address: "PAIR", Interval: "1D"})
	assert.EqualError(t, err, "birdeye: unexpected status 401: check BIRDEYE_API_KEY")
}

func TestNew_RelativeURL(t *testing.T) {
	_, err := New(Config{ServerURL: "public-api.birdeye.so"}, NewErrorProcessor(nil))
	assert.Error(t, err)
}
