package router

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/mohammed-shakir/climate-agg-cache/internal/coordinator"
	"github.com/mohammed-shakir/climate-agg-cache/internal/core/model"
	"github.com/mohammed-shakir/climate-agg-cache/internal/core/observability"
	"github.com/mohammed-shakir/climate-agg-cache/internal/window"
)

// AverageService serves validated average requests.
type AverageService interface {
	GetAverage(ctx context.Context, req coordinator.Request) (model.AverageResult, error)
}

// CatalogService serves the reference-data listings.
type CatalogService interface {
	Metrics(ctx context.Context) ([]model.MetricInfo, error)
	Scenarios(ctx context.Context) ([]model.ScenarioInfo, error)
	YearBounds(ctx context.Context, metricRef, scenarioRef string) (minYear, maxYear int, ok bool, err error)
}

type averageResponse struct {
	Value       float64        `json:"value"`
	SampleCount int            `json:"sample_count"`
	CacheHit    bool           `json:"cache_hit"`
	Window      windowResponse `json:"window"`
}

type windowResponse struct {
	Start       string `json:"start"`
	End         string `json:"end"`
	Granularity string `json:"granularity"`
}

type errorResponse struct {
	Error errorBody `json:"error"`
}

type errorBody struct {
	Kind    string `json:"kind"`
	Message string `json:"message"`
}

// validates average query params and calls the service
func HandleAverage(logger *slog.Logger, svc AverageService) http.HandlerFunc {
	if logger == nil {
		logger = slog.Default()
	}
	return func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		sw := &statusWriter{ResponseWriter: w, code: http.StatusOK}

		req, err := parseAverageRequest(r)
		if err != nil {
			writeError(sw, http.StatusBadRequest, "invalid_request", err.Error())
			observability.ObserveHTTP(r.Method, "/average", sw.code, time.Since(start).Seconds())
			return
		}

		res, err := svc.GetAverage(r.Context(), req)
		if err != nil {
			kind := model.ErrorKind(err)
			if kind == "internal" {
				logger.Error("average request failed", "err", err)
			}
			writeError(sw, statusForKind(kind), kind, err.Error())
			observability.ObserveHTTP(r.Method, "/average", sw.code, time.Since(start).Seconds())
			return
		}

		writeJSON(sw, http.StatusOK, averageResponse{
			Value:       res.Value,
			SampleCount: res.SampleCount,
			CacheHit:    res.CacheHit,
			Window: windowResponse{
				Start:       res.Window.Start.UTC().Format("2006-01-02"),
				End:         res.Window.End.UTC().Format("2006-01-02"),
				Granularity: string(res.Window.Granularity),
			},
		})
		observability.ObserveHTTP(r.Method, "/average", sw.code, time.Since(start).Seconds())
	}
}

func HandleMetrics(logger *slog.Logger, svc CatalogService) http.HandlerFunc {
	if logger == nil {
		logger = slog.Default()
	}
	return func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		sw := &statusWriter{ResponseWriter: w, code: http.StatusOK}

		metrics, err := svc.Metrics(r.Context())
		if err != nil {
			logger.Error("list metrics failed", "err", err)
			writeError(sw, http.StatusServiceUnavailable, "storage", "catalog unavailable")
			observability.ObserveHTTP(r.Method, "/catalog/metrics", sw.code, time.Since(start).Seconds())
			return
		}
		if metrics == nil {
			metrics = []model.MetricInfo{}
		}
		writeJSON(sw, http.StatusOK, map[string]any{"metrics": metrics})
		observability.ObserveHTTP(r.Method, "/catalog/metrics", sw.code, time.Since(start).Seconds())
	}
}

func HandleScenarios(logger *slog.Logger, svc CatalogService) http.HandlerFunc {
	if logger == nil {
		logger = slog.Default()
	}
	return func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		sw := &statusWriter{ResponseWriter: w, code: http.StatusOK}

		scenarios, err := svc.Scenarios(r.Context())
		if err != nil {
			logger.Error("list scenarios failed", "err", err)
			writeError(sw, http.StatusServiceUnavailable, "storage", "catalog unavailable")
			observability.ObserveHTTP(r.Method, "/catalog/scenarios", sw.code, time.Since(start).Seconds())
			return
		}
		if scenarios == nil {
			scenarios = []model.ScenarioInfo{}
		}
		writeJSON(sw, http.StatusOK, map[string]any{"scenarios": scenarios})
		observability.ObserveHTTP(r.Method, "/catalog/scenarios", sw.code, time.Since(start).Seconds())
	}
}

// reports the min/max data year for a metric/scenario pair
func HandleYears(logger *slog.Logger, svc CatalogService) http.HandlerFunc {
	if logger == nil {
		logger = slog.Default()
	}
	return func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		sw := &statusWriter{ResponseWriter: w, code: http.StatusOK}

		metric := strings.TrimSpace(r.URL.Query().Get("metric"))
		scenario := strings.TrimSpace(r.URL.Query().Get("scenario"))
		if metric == "" || scenario == "" {
			writeError(sw, http.StatusBadRequest, "invalid_request", "metric and scenario are required")
			observability.ObserveHTTP(r.Method, "/catalog/years", sw.code, time.Since(start).Seconds())
			return
		}

		minYear, maxYear, ok, err := svc.YearBounds(r.Context(), metric, scenario)
		if err != nil {
			logger.Error("year bounds failed", "metric", metric, "scenario", scenario, "err", err)
			writeError(sw, http.StatusServiceUnavailable, "storage", "catalog unavailable")
			observability.ObserveHTTP(r.Method, "/catalog/years", sw.code, time.Since(start).Seconds())
			return
		}
		if !ok {
			writeError(sw, http.StatusNotFound, "not_found",
				fmt.Sprintf("no data for metric %q scenario %q", metric, scenario))
			observability.ObserveHTTP(r.Method, "/catalog/years", sw.code, time.Since(start).Seconds())
			return
		}

		writeJSON(sw, http.StatusOK, map[string]any{
			"metric":   metric,
			"scenario": scenario,
			"min_year": minYear,
			"max_year": maxYear,
		})
		observability.ObserveHTTP(r.Method, "/catalog/years", sw.code, time.Since(start).Seconds())
	}
}

type statusWriter struct {
	http.ResponseWriter
	code int
}

func (w *statusWriter) WriteHeader(code int) {
	w.code = code
	w.ResponseWriter.WriteHeader(code)
}

func parseAverageRequest(r *http.Request) (coordinator.Request, error) {
	q := r.URL.Query()

	region := strings.TrimSpace(q.Get("region"))
	metric := strings.TrimSpace(q.Get("metric"))
	scenario := strings.TrimSpace(q.Get("scenario"))
	var missing []string
	if region == "" {
		missing = append(missing, "region")
	}
	if metric == "" {
		missing = append(missing, "metric")
	}
	if scenario == "" {
		missing = append(missing, "scenario")
	}
	if len(missing) > 0 {
		return coordinator.Request{}, fmt.Errorf("missing required parameters: %s", strings.Join(missing, ", "))
	}

	return coordinator.Request{
		Region:   region,
		Metric:   metric,
		Scenario: scenario,
		Window: window.Input{
			Start:       q.Get("start"),
			End:         q.Get("end"),
			Window:      q.Get("window"),
			Granularity: q.Get("granularity"),
		},
	}, nil
}

func statusForKind(kind string) int {
	switch kind {
	case "invalid_window", "invalid_request":
		return http.StatusBadRequest
	case "not_found", "insufficient_data":
		return http.StatusNotFound
	case "storage":
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}

func writeJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(body)
}

func writeError(w http.ResponseWriter, status int, kind, msg string) {
	writeJSON(w, status, errorResponse{Error: errorBody{Kind: kind, Message: msg}})
}
