// Package keys builds deterministic cache keys for aggregation results.
package keys

import (
	"fmt"

	"github.com/cespare/xxhash/v2"

	"github.com/mohammed-shakir/climate-agg-cache/internal/core/model"
)

// Key encodes (region, metric, scenario, normalized window) into the cache
// key. The window portion is both spelled out (debuggable in redis-cli) and
// hashed; equal windows always hash equally because Canonical is stable.
func Key(e model.CatalogEntry, w model.Window) string {
	canon := w.Canonical()
	sum := xxhash.Sum64String(canon)
	return fmt.Sprintf("%s%s:w=%016x", TriplePrefix(e.RegionID, e.MetricID, e.ScenarioID), canon, sum)
}

// TriplePrefix is the shared prefix of every key for one catalog triple.
// Invalidation deletes by this prefix.
func TriplePrefix(regionID, metricID, scenarioID int64) string {
	return fmt.Sprintf("avg:%d:%d:%d:", regionID, metricID, scenarioID)
}
