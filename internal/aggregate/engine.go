// Package aggregate computes temporal aggregates over raw observations.
package aggregate

import (
	"context"
	"fmt"
	"time"

	"github.com/mohammed-shakir/climate-agg-cache/internal/core/model"
	"github.com/mohammed-shakir/climate-agg-cache/internal/core/observability"
	"github.com/mohammed-shakir/climate-agg-cache/internal/rawstore"
)

// Result of one computation. Fingerprint.Count counts every raw row seen,
// nulls included, so it matches the store's fingerprint probe; SampleCount
// counts only rows that contributed to the mean.
type Result struct {
	Value       float64
	SampleCount int
	Fingerprint model.Fingerprint
}

// Engine streams raw observations and reduces them to an arithmetic mean.
// It is pure: no cache access, no retained state between calls.
type Engine struct {
	src rawstore.ObservationSource
}

func New(src rawstore.ObservationSource) *Engine {
	return &Engine{src: src}
}

// Compute averages the entry's observations over [w.Start, w.End). Null
// values are excluded from both sum and count. A window with zero usable
// samples fails with model.ErrInsufficientData; a mean of zero is never
// fabricated.
func (e *Engine) Compute(ctx context.Context, entry model.CatalogEntry, w model.Window) (Result, error) {
	start := time.Now()

	var (
		sum   float64
		n     int
		fp    model.Fingerprint
		maxTS time.Time
	)
	err := e.src.StreamObservations(ctx, entry, w, func(o model.RawObservation) error {
		fp.Count++
		if o.TS.After(maxTS) {
			maxTS = o.TS
		}
		if o.Value == nil {
			return nil
		}
		sum += *o.Value
		n++
		return nil
	})
	observability.ObserveCompute(err, time.Since(start).Seconds())
	if err != nil {
		return Result{}, fmt.Errorf("%w: stream observations: %v", model.ErrStorage, err)
	}

	if n == 0 {
		return Result{}, fmt.Errorf("%w: %s/%s region=%d window=%s",
			model.ErrInsufficientData, entry.MetricCode, entry.ScenarioCode, entry.RegionID, w.Canonical())
	}

	fp.MaxTS = maxTS
	return Result{
		Value:       sum / float64(n),
		SampleCount: n,
		Fingerprint: fp,
	}, nil
}
