package handler

import (
	"context"
	"encoding/json"
	"net/http"

	"github.com/go-http-utils/headers"

	"bitbucket.org/novatechnologies/barfeed/datafeed"
	"bitbucket.org/novatechnologies/barfeed/domain"
	"bitbucket.org/novatechnologies/barfeed/infra/logger"
)

const statusError = "error"

// Datafeed is the part of datafeed.Datafeed the handlers use.
type Datafeed interface {
	Configuration() domain.Configuration
	Resolve(name string) (domain.SymbolInfo, error)
	GetBars(
		ctx context.Context,
		info domain.SymbolInfo,
		resolution domain.Resolution,
		params datafeed.PeriodParams,
		onHistory func([]domain.Bar, datafeed.HistoryMeta),
		onError func(error),
	)
	SubscribeBars(
		ctx context.Context,
		info domain.SymbolInfo,
		resolution domain.Resolution,
		onTick func(domain.Bar),
		subscriberUID string,
		onResetCache func(),
	) (string, error)
	UnsubscribeBars(subscriberUID string) bool
}

type errorResponse struct {
	Status  string `json:"s"`
	Message string `json:"errmsg"`
}

func writeJSON(ctx context.Context, w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set(headers.ContentType, "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		logger.FromContext(ctx).WithError(err).Errorf("can't write response")
	}
}

func writeError(ctx context.Context, w http.ResponseWriter, status int, msg string) {
	writeJSON(ctx, w, status, errorResponse{Status: statusError, Message: msg})
}
