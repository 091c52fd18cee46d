package domain

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestParseResolution(t *testing.T) {
	tests := []struct {
		token string
		want  string
	}{
		{"1", "1m"},
		{"3", "3m"},
		{"5", "5m"},
		{"15", "15m"},
		{"30", "30m"},
		{"60", "1H"},
		{"120", "2H"},
		{"240", "4H"},
		{"360", "6H"},
		{"720", "12H"},
		{"1D", "1D"},
		{"3D", "3D"},
		{"1W", "1W"},
		{"1M", "1M"},
		{"4H", "4H"},
		{"", DefaultInterval},
		{"0", DefaultInterval},
		{"7", DefaultInterval},
	}
	for _, tt := range tests {
		t.Run(tt.token, func(t *testing.T) {
			assert.Equal(t, tt.want, ParseResolution(tt.token))
		})
	}
}

func TestResolution_IsNotExist(t *testing.T) {
	for _, r := range GetAvailableResolutions() {
		assert.False(t, r.IsNotExist(), r)
	}
	assert.True(t, Resolution("").IsNotExist())
	assert.True(t, Resolution("2D").IsNotExist())
}

func TestResolution_NextBarTime(t *testing.T) {
	ms := func(y int, m time.Month, d, h, min int) int64 {
		return time.Date(y, m, d, h, min, 0, 0, time.UTC).UnixMilli()
	}
	tests := []struct {
		name       string
		resolution Resolution
		open       int64
		want       int64
	}{
		{"1 min", Candle1MResolution, ms(2022, 3, 1, 10, 0), ms(2022, 3, 1, 10, 1)},
		{"5 min", Candle5MResolution, ms(2022, 3, 1, 10, 0), ms(2022, 3, 1, 10, 5)},
		{"1 hour", Candle1HResolution, ms(2022, 3, 1, 23, 0), ms(2022, 3, 2, 0, 0)},
		{"day", Candle1DResolution, ms(2022, 3, 1, 0, 0), ms(2022, 3, 2, 0, 0)},
		{"day at month end", Candle1DResolution, ms(2022, 2, 28, 0, 0), ms(2022, 3, 1, 0, 0)},
		{"3 days", Candle3DResolution, ms(2022, 2, 27, 0, 0), ms(2022, 3, 2, 0, 0)},
		{"week", Candle1WResolution, ms(2022, 12, 26, 0, 0), ms(2023, 1, 2, 0, 0)},
		{"month", Candle1MHResolution, ms(2022, 1, 1, 0, 0), ms(2022, 2, 1, 0, 0)},
		{"leap february", Candle1MHResolution, ms(2024, 2, 1, 0, 0), ms(2024, 3, 1, 0, 0)},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, tt.resolution.NextBarTime(tt.open, time.UTC))
		})
	}
}

func TestResolution_NextBarTime_Location(t *testing.T) {
	loc := time.FixedZone("UTC+3", 3*60*60)
	open := time.Date(2022, 3, 1, 0, 0, 0, 0, loc).UnixMilli()

	next := Candle1DResolution.NextBarTime(open, loc)

	assert.Equal(t, time.Date(2022, 3, 2, 0, 0, 0, 0, loc).UnixMilli(), next)
	assert.Equal(t, Candle1DResolution.NextBarTime(open, nil), open+3*time.Hour.Milliseconds())
}

func TestResolution_StartTime(t *testing.T) {
	at := time.Date(2022, 3, 2, 15, 47, 12, 0, time.UTC).UnixMilli()

	assert.Equal(t, time.Date(2022, 3, 2, 15, 45, 0, 0, time.UTC).UnixMilli(), Candle15MResolution.StartTime(at, time.UTC))
	assert.Equal(t, time.Date(2022, 3, 2, 12, 0, 0, 0, time.UTC).UnixMilli(), Candle4HResolution.StartTime(at, time.UTC))
	assert.Equal(t, time.Date(2022, 3, 2, 0, 0, 0, 0, time.UTC).UnixMilli(), Candle1DResolution.StartTime(at, time.UTC))
	// 2022-03-02 is a Wednesday
	assert.Equal(t, time.Date(2022, 2, 28, 0, 0, 0, 0, time.UTC).UnixMilli(), Candle1WResolution.StartTime(at, time.UTC))
	assert.Equal(t, time.Date(2022, 3, 1, 0, 0, 0, 0, time.UTC).UnixMilli(), Candle1MHResolution.StartTime(at, nil))
}
