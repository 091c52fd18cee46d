package handler

import (
	"fmt"
	"net/http"
	"strconv"

	"github.com/pkg/errors"

	"bitbucket.org/novatechnologies/barfeed/datafeed"
	"bitbucket.org/novatechnologies/barfeed/domain"
	"bitbucket.org/novatechnologies/barfeed/infra/logger"
)

// UDFHandler serves the chart widget's UDF endpoints.
type UDFHandler struct {
	feed Datafeed
}

func NewUDFHandler(feed Datafeed) *UDFHandler {
	return &UDFHandler{feed: feed}
}

func (h UDFHandler) GetConfig(res http.ResponseWriter, req *http.Request) {
	writeJSON(req.Context(), res, http.StatusOK, h.feed.Configuration())
}

func (h UDFHandler) GetSymbol(res http.ResponseWriter, req *http.Request) {
	ctx := req.Context()
	symbol := req.URL.Query().Get("symbol")
	if symbol == "" {
		writeError(ctx, res, http.StatusBadRequest, "symbol is required")
		return
	}

	info, err := h.feed.Resolve(symbol)
	if err != nil {
		writeError(ctx, res, http.StatusNotFound, err.Error())
		return
	}
	writeJSON(ctx, res, http.StatusOK, info)
}

type noDataResponse struct {
	Status string `json:"s"`
}

func (h UDFHandler) GetHistory(res http.ResponseWriter, req *http.Request) {
	ctx := req.Context()
	query := req.URL.Query()

	symbol := query.Get("symbol")
	if symbol == "" {
		writeError(ctx, res, http.StatusBadRequest, "symbol is required")
		return
	}
	resolution := domain.Resolution(query.Get("resolution"))
	if resolution.IsNotExist() {
		writeError(ctx, res, http.StatusBadRequest, fmt.Sprintf("unsupported resolution %q", resolution))
		return
	}

	params, err := parsePeriod(query.Get("from"), query.Get("to"), query.Get("firstDataRequest"))
	if err != nil {
		writeError(ctx, res, http.StatusBadRequest, err.Error())
		return
	}

	info, err := h.feed.Resolve(symbol)
	if err != nil {
		writeError(ctx, res, http.StatusNotFound, err.Error())
		return
	}

	log := logger.FromContext(ctx).
		WithField("symbol", info.Name).
		WithField("resolution", resolution)

	h.feed.GetBars(ctx, info, resolution, params,
		func(bars []domain.Bar, meta datafeed.HistoryMeta) {
			if meta.NoData || len(bars) == 0 {
				writeJSON(ctx, res, http.StatusOK, noDataResponse{Status: domain.ChartStatusNoData})
				return
			}
			writeJSON(ctx, res, http.StatusOK, domain.NewChart(info.Name, resolution, bars))
		},
		func(err error) {
			log.WithError(err).Errorf("[UDFHandler.GetHistory] upstream failed")
			writeError(ctx, res, http.StatusBadGateway, err.Error())
		},
	)
}

func parsePeriod(from, to, firstDataRequest string) (datafeed.PeriodParams, error) {
	var (
		params datafeed.PeriodParams
		err    error
	)
	if params.From, err = strconv.ParseInt(from, 10, 64); err != nil {
		return params, illegalUnixTimestamp("from", err)
	}
	if params.To, err = strconv.ParseInt(to, 10, 64); err != nil {
		return params, illegalUnixTimestamp("to", err)
	}
	if params.To < params.From {
		return params, errors.Errorf("to %d is before from %d", params.To, params.From)
	}
	if firstDataRequest != "" {
		if params.FirstDataRequest, err = strconv.ParseBool(firstDataRequest); err != nil {
			return params, errors.Wrap(err, "illegal firstDataRequest")
		}
	}

	return params, nil
}

func illegalUnixTimestamp(name string, err error) error {
	return errors.Errorf("illegal timestamp parameter %s %v: must be Unix seconds", name, err)
}
