// Package server wires the HTTP surface and runs it until the context ends.
package server

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/mohammed-shakir/climate-agg-cache/internal/core/config"
	"github.com/mohammed-shakir/climate-agg-cache/internal/core/router"
	"github.com/mohammed-shakir/climate-agg-cache/internal/health"
	"github.com/mohammed-shakir/climate-agg-cache/internal/middleware"
)

// Deps carries everything the HTTP surface needs.
type Deps struct {
	Average router.AverageService
	Catalog router.CatalogService

	// Readiness dependencies, keyed by name (e.g. "redis", "clickhouse").
	Pingers map[string]health.Pinger
}

// Run sets up routing and serves until ctx is canceled, then shuts down
// gracefully.
func Run(ctx context.Context, cfg config.Config, logger *slog.Logger, deps Deps) error {
	r := chi.NewRouter()
	r.Use(middleware.Recover())
	r.Use(middleware.Logging(logger))
	r.Use(middleware.CORS())

	r.Get("/healthz", health.Liveness())
	r.Get("/readyz", health.Readiness(2*time.Second, deps.Pingers))
	r.Get("/metrics", promhttp.Handler().ServeHTTP)

	r.Get("/average", router.HandleAverage(logger, deps.Average))
	r.Get("/catalog/metrics", router.HandleMetrics(logger, deps.Catalog))
	r.Get("/catalog/scenarios", router.HandleScenarios(logger, deps.Catalog))
	r.Get("/catalog/years", router.HandleYears(logger, deps.Catalog))

	srv := &http.Server{
		Addr:              cfg.Addr,
		Handler:           r,
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       15 * time.Second,
		WriteTimeout:      60 * time.Second,
		IdleTimeout:       60 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		logger.Info("http listen", "addr", cfg.Addr)
		if err := srv.ListenAndServe(); !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()

	select {
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		_ = srv.Shutdown(shutdownCtx)
		return nil
	case err := <-errCh:
		return err
	}
}
