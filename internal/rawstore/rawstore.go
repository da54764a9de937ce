// Package rawstore defines the read-only interfaces to the external raw
// observation store and catalog. The core never writes through these.
package rawstore

import (
	"context"

	"github.com/mohammed-shakir/climate-agg-cache/internal/core/model"
)

// ObservationSource streams raw data points and answers cheap fingerprint
// probes over the same half-open interval.
type ObservationSource interface {
	// StreamObservations calls fn for every observation of the entry's
	// triple with TS in [w.Start, w.End), in timestamp order. A non-nil
	// error from fn aborts the stream.
	StreamObservations(ctx context.Context, entry model.CatalogEntry, w model.Window, fn func(model.RawObservation) error) error

	// LatestFingerprint returns the current (row count, max timestamp)
	// summary for the entry's triple inside w, without streaming rows.
	LatestFingerprint(ctx context.Context, entry model.CatalogEntry, w model.Window) (model.Fingerprint, error)
}

// CatalogSource resolves user-facing references to catalog entries and
// serves the reference-data listings.
type CatalogSource interface {
	// Lookup resolves (region, metric, scenario) references. ok is false
	// when any reference is unknown.
	Lookup(ctx context.Context, regionRef, metricRef, scenarioRef string) (entry model.CatalogEntry, ok bool, err error)

	Metrics(ctx context.Context) ([]model.MetricInfo, error)
	Scenarios(ctx context.Context) ([]model.ScenarioInfo, error)

	// YearBounds reports the min/max data year available for a
	// metric/scenario pair. ok is false when no data exists.
	YearBounds(ctx context.Context, metricRef, scenarioRef string) (minYear, maxYear int, ok bool, err error)
}
