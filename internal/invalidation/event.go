// Package invalidation defines the ingest event that retires cached results
// for a catalog triple.
package invalidation

import (
	"fmt"
	"time"
)

// Event announces that raw data for one (region, metric, scenario) triple
// changed. DataVersion increases monotonically per triple so replayed or
// reordered events can be dropped.
type Event struct {
	Version     int       `json:"version"`
	Op          string    `json:"op"`
	RegionID    int64     `json:"region_id"`
	MetricID    int64     `json:"metric_id"`
	ScenarioID  int64     `json:"scenario_id"`
	TS          time.Time `json:"ts"`
	DataVersion uint64    `json:"data_version"`
	Source      string    `json:"source,omitempty"`
}

func (e Event) Validate() error {
	if e.Version != 1 {
		return fmt.Errorf("version must be 1")
	}
	switch e.Op {
	case "ingest", "backfill", "delete":
	default:
		return fmt.Errorf("op must be ingest|backfill|delete")
	}
	if e.RegionID <= 0 || e.MetricID <= 0 || e.ScenarioID <= 0 {
		return fmt.Errorf("region_id, metric_id and scenario_id must be positive")
	}
	if e.TS.IsZero() {
		return fmt.Errorf("ts is required")
	}
	if e.DataVersion == 0 {
		return fmt.Errorf("data_version is required")
	}
	return nil
}

// TripleKey identifies the event's triple, for dedupe bookkeeping.
func (e Event) TripleKey() string {
	return fmt.Sprintf("%d:%d:%d", e.RegionID, e.MetricID, e.ScenarioID)
}
