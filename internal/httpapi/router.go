// Package httpapi exposes on-demand runs, health and metrics over HTTP.
package httpapi

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"TrendCurator/internal/usecase"
)

// Runner executes one pipeline run.
type Runner interface {
	Run(ctx context.Context) (usecase.RunResult, error)
}

// NewRouter configures all HTTP routes.
func NewRouter(runner Runner, runTimeout time.Duration, logger *slog.Logger) http.Handler {
	h := newHandler(runner, runTimeout, logger)

	r := chi.NewRouter()
	r.Use(chimiddleware.RequestID)
	r.Use(chimiddleware.RealIP)
	r.Use(chimiddleware.Recoverer)

	r.Get("/healthz", h.health)
	r.Handle("/metrics", promhttp.Handler())

	r.Route("/api/v1/recommendations", func(r chi.Router) {
		r.Use(requestLogger(h.logger))
		r.Post("/run", h.run)
	})

	return r
}

func requestLogger(logger *slog.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ww := chimiddleware.NewWrapResponseWriter(w, r.ProtoMajor)
			started := time.Now()
			next.ServeHTTP(ww, r)
			logger.Info("http request",
				"method", r.Method,
				"path", r.URL.Path,
				"status", ww.Status(),
				"elapsed", time.Since(started),
				"request_id", chimiddleware.GetReqID(r.Context()),
			)
		})
	}
}
