package domain

import "time"

const (
	Day  = 24 * time.Hour
	Week = 7 * Day
)

type Resolution string

const (
	Candle1MResolution  Resolution = "1"
	Candle3MResolution  Resolution = "3"
	Candle5MResolution  Resolution = "5"
	Candle15MResolution Resolution = "15"
	Candle30MResolution Resolution = "30"
	Candle1HResolution  Resolution = "60"
	Candle2HResolution  Resolution = "120"
	Candle4HResolution  Resolution = "240"
	Candle6HResolution  Resolution = "360"
	Candle12HResolution Resolution = "720"
	Candle1DResolution  Resolution = "1D"
	Candle3DResolution  Resolution = "3D"
	Candle1WResolution  Resolution = "1W"
	Candle1MHResolution Resolution = "1M"

	// LEGACY FOR BACKWARD COMPATIBILITY WITH OLD CHART WIDGETS

	Candle1H2Resolution  Resolution = "1H"
	Candle2H2Resolution  Resolution = "2H"
	Candle4H2Resolution  Resolution = "4H"
	Candle6H2Resolution  Resolution = "6H"
	Candle12H2Resolution Resolution = "12H"
)

// DefaultInterval is the upstream interval used for tokens missing from the
// interval table.
const DefaultInterval = "1D"

// resolution -> Birdeye OHLCV "type"
var intervals = map[Resolution]string{
	Candle1MResolution:  "1m",
	Candle3MResolution:  "3m",
	Candle5MResolution:  "5m",
	Candle15MResolution: "15m",
	Candle30MResolution: "30m",
	Candle1HResolution:  "1H",
	Candle2HResolution:  "2H",
	Candle4HResolution:  "4H",
	Candle6HResolution:  "6H",
	Candle12HResolution: "12H",
	Candle1DResolution:  "1D",
	Candle3DResolution:  "3D",
	Candle1WResolution:  "1W",
	Candle1MHResolution: "1M",

	Candle1H2Resolution:  "1H",
	Candle2H2Resolution:  "2H",
	Candle4H2Resolution:  "4H",
	Candle6H2Resolution:  "6H",
	Candle12H2Resolution: "12H",
}

var durations = map[Resolution]time.Duration{
	Candle1MResolution:  time.Minute,
	Candle3MResolution:  3 * time.Minute,
	Candle5MResolution:  5 * time.Minute,
	Candle15MResolution: 15 * time.Minute,
	Candle30MResolution: 30 * time.Minute,
	Candle1HResolution:  60 * time.Minute,
	Candle2HResolution:  120 * time.Minute,
	Candle4HResolution:  240 * time.Minute,
	Candle6HResolution:  360 * time.Minute,
	Candle12HResolution: 720 * time.Minute,
	Candle1DResolution:  Day,
	Candle3DResolution:  3 * Day,
	Candle1WResolution:  Week,
	Candle1MHResolution: 30 * Day,

	Candle1H2Resolution:  60 * time.Minute,
	Candle2H2Resolution:  120 * time.Minute,
	Candle4H2Resolution:  240 * time.Minute,
	Candle6H2Resolution:  360 * time.Minute,
	Candle12H2Resolution: 720 * time.Minute,
}

// GetAvailableResolutions lists the resolutions advertised to chart widgets.
// Legacy aliases are accepted on input but not advertised.
func GetAvailableResolutions() []Resolution {
	return []Resolution{
		Candle1MResolution,
		Candle3MResolution,
		Candle5MResolution,
		Candle15MResolution,
		Candle30MResolution,
		Candle1HResolution,
		Candle2HResolution,
		Candle4HResolution,
		Candle6HResolution,
		Candle12HResolution,
		Candle1DResolution,
		Candle3DResolution,
		Candle1WResolution,
		Candle1MHResolution,
	}
}

// ParseResolution maps a chart resolution token to the upstream interval
// vocabulary, falling back to DefaultInterval for unknown tokens.
func ParseResolution(token string) string {
	if interval, ok := intervals[Resolution(token)]; ok {
		return interval
	}

	return DefaultInterval
}

func (resolution Resolution) Interval() string {
	return ParseResolution(string(resolution))
}

func (resolution Resolution) IsNotExist() bool {
	_, ok := intervals[resolution]

	return !ok
}

// ToDuration returns the nominal bar width. Calendar resolutions (days and
// longer) vary in real length, use NextBarTime for boundaries.
func (resolution Resolution) ToDuration() time.Duration {
	return durations[resolution]
}

func (resolution Resolution) isCalendar() bool {
	switch resolution {
	case Candle1DResolution, Candle3DResolution, Candle1WResolution, Candle1MHResolution:
		return true
	}

	return false
}

// NextBarTime returns the open time (ms) of the bar following the one opened
// at openMs. Day, week and month bars advance by calendar in loc, intraday
// bars by their exact width.
func (resolution Resolution) NextBarTime(openMs int64, loc *time.Location) int64 {
	if loc == nil {
		loc = time.UTC
	}
	if !resolution.isCalendar() {
		return openMs + resolution.ToDuration().Milliseconds()
	}

	y, m, d := time.UnixMilli(openMs).In(loc).Date()
	var next time.Time
	switch resolution {
	case Candle1DResolution:
		next = time.Date(y, m, d+1, 0, 0, 0, 0, loc)
	case Candle3DResolution:
		next = time.Date(y, m, d+3, 0, 0, 0, 0, loc)
	case Candle1WResolution:
		next = time.Date(y, m, d+7, 0, 0, 0, 0, loc)
	case Candle1MHResolution:
		next = time.Date(y, m+1, 1, 0, 0, 0, 0, loc)
	}

	return next.UnixMilli()
}

// StartTime returns the open time (ms) of the bar containing ms. Weeks start
// on Monday.
func (resolution Resolution) StartTime(ms int64, loc *time.Location) int64 {
	if loc == nil {
		loc = time.UTC
	}
	if !resolution.isCalendar() {
		width := resolution.ToDuration().Milliseconds()
		if width == 0 {
			return ms
		}
		return ms - ms%width
	}

	t := time.UnixMilli(ms).In(loc)
	y, m, d := t.Date()
	var start time.Time
	switch resolution {
	case Candle1DResolution, Candle3DResolution:
		start = time.Date(y, m, d, 0, 0, 0, 0, loc)
	case Candle1WResolution:
		offset := (int(t.Weekday()) + 6) % 7
		start = time.Date(y, m, d-offset, 0, 0, 0, 0, loc)
	case Candle1MHResolution:
		start = time.Date(y, m, 1, 0, 0, 0, 0, loc)
	}

	return start.UnixMilli()
}
