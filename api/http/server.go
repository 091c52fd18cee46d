package http

import (
	"context"
	"fmt"
	"net"
	"net/http"
	"time"

	"github.com/go-http-utils/headers"
	"github.com/gorilla/mux"
	log "github.com/sirupsen/logrus"

	"bitbucket.org/novatechnologies/barfeed/api/http/handler"
	"bitbucket.org/novatechnologies/barfeed/infra"
	"bitbucket.org/novatechnologies/barfeed/infra/logger"
)

type Server struct {
	srv http.Server
}

// NewRouter wires the datafeed endpoints. ctx bounds the lifetime of
// subscriptions created through the API.
func NewRouter(ctx context.Context, feed handler.Datafeed, tokens *handler.TokenHandler) *mux.Router {
	udf := handler.NewUDFHandler(feed)
	subscriptions := handler.NewSubscriptionHandler(ctx, feed)

	router := mux.NewRouter()
	router.Use(accessLog, allowOrigin)

	router.HandleFunc("/config", udf.GetConfig).Methods(http.MethodGet)
	router.HandleFunc("/symbols", udf.GetSymbol).Methods(http.MethodGet)
	router.HandleFunc("/history", udf.GetHistory).Methods(http.MethodGet)
	router.HandleFunc("/subscriptions", subscriptions.Subscribe).Methods(http.MethodPost)
	router.HandleFunc("/subscriptions/{id}", subscriptions.Unsubscribe).Methods(http.MethodDelete)
	router.HandleFunc("/centrifugo/token", tokens.GetToken).Methods(http.MethodGet)

	return router
}

func NewServer(ctx context.Context, feed handler.Datafeed, conf infra.Config) *Server {
	tokens := handler.NewTokenHandler(
		conf.CentrifugeConfig.TokenSecret,
		conf.CentrifugeConfig.TokenTTL,
	)

	return &Server{
		srv: http.Server{
			Addr:              fmt.Sprintf(":%d", conf.HttpConfig.Port),
			Handler:           NewRouter(ctx, feed, tokens),
			ReadHeaderTimeout: 10 * time.Second,
		},
	}
}

func (s *Server) Start(ctx context.Context) {
	s.srv.BaseContext = func(listener net.Listener) context.Context {
		return ctx
	}
	go func() {
		log.Infof("[*] Http server is started on %s", s.srv.Addr)
		if err := s.srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.WithError(err).Error("http server stopped")
		}
	}()
}

func (s *Server) Stop(ctx context.Context) {
	if err := s.srv.Shutdown(ctx); err != nil {
		log.WithError(err).Info("shutdown")
	}
}

type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (r *statusRecorder) WriteHeader(status int) {
	r.status = status
	r.ResponseWriter.WriteHeader(status)
}

func accessLog(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, req *http.Request) {
		started := time.Now()
		entry := logger.FromContext(req.Context()).
			WithField("method", req.Method).
			WithField("path", req.URL.Path)
		ctx := logger.WithLogger(req.Context(), entry)

		rec := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
		next.ServeHTTP(rec, req.WithContext(ctx))

		entry.WithField("status", rec.status).
			WithField("took", time.Since(started)).
			Debugf("request served")
	})
}

func allowOrigin(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, req *http.Request) {
		w.Header().Set(headers.AccessControlAllowOrigin, "*")
		next.ServeHTTP(w, req)
	})
}
