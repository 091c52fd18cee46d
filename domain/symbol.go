package domain

import "strings"

// SymbolInfo mirrors the chart widget's symbol description. Ticker carries the
// on-chain pair address used for upstream requests.
type SymbolInfo struct {
	Name                 string       `json:"name"`
	Ticker               string       `json:"ticker"`
	Description          string       `json:"description"`
	Type                 string       `json:"type"`
	Session              string       `json:"session"`
	Timezone             string       `json:"timezone"`
	Exchange             string       `json:"exchange"`
	ListedExchange       string       `json:"listed_exchange"`
	Format               string       `json:"format"`
	Minmov               int          `json:"minmov"`
	Pricescale           int          `json:"pricescale"`
	HasIntraday          bool         `json:"has_intraday"`
	HasWeeklyAndMonthly  bool         `json:"has_weekly_and_monthly"`
	SupportedResolutions []Resolution `json:"supported_resolutions"`
	VolumePrecision      int          `json:"volume_precision"`
	DataStatus           string       `json:"data_status"`
}

// Configuration is what the chart widget receives from onReady.
type Configuration struct {
	SupportedResolutions   []Resolution `json:"supported_resolutions"`
	SupportsGroupRequest   bool         `json:"supports_group_request"`
	SupportsMarks          bool         `json:"supports_marks"`
	SupportsSearch         bool         `json:"supports_search"`
	SupportsTimescaleMarks bool         `json:"supports_timescale_marks"`
	Exchanges              []Exchange   `json:"exchanges"`
	SymbolsTypes           []SymbolType `json:"symbols_types"`
}

type Exchange struct {
	Value string `json:"value"`
	Name  string `json:"name"`
	Desc  string `json:"desc"`
}

type SymbolType struct {
	Name  string `json:"name"`
	Value string `json:"value"`
}

func NormalizeSymbol(symbol string) string {
	symbol = strings.Replace(symbol, "%2F", "_", -1)
	symbol = strings.Replace(symbol, "/", "_", -1)
	return symbol
}
