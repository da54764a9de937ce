// Package model defines core domain types shared across the service.
package model

import (
	"fmt"
	"time"
)

// Granularity is the temporal resolution a window is aligned to.
type Granularity string

const (
	GranularityDay   Granularity = "day"
	GranularityMonth Granularity = "month"
	GranularityYear  Granularity = "year"
)

func ParseGranularity(s string) (Granularity, bool) {
	switch Granularity(s) {
	case GranularityDay, GranularityMonth, GranularityYear:
		return Granularity(s), true
	default:
		return "", false
	}
}

// Window is a canonical half-open interval [Start, End) in UTC, with both
// endpoints aligned to the granularity boundary.
type Window struct {
	Start       time.Time
	End         time.Time
	Granularity Granularity
}

// Canonical returns the stable textual form used for cache keys. Two windows
// denoting the same interval always render identically.
func (w Window) Canonical() string {
	return fmt.Sprintf("%s/%s/%s",
		w.Start.UTC().Format("2006-01-02"),
		w.End.UTC().Format("2006-01-02"),
		w.Granularity)
}

// CatalogEntry is a resolved (region, metric, scenario) triple with its
// surrogate identifiers. Read-only reference data.
type CatalogEntry struct {
	RegionID     int64
	MetricID     int64
	ScenarioID   int64
	MetricCode   string
	ScenarioCode string
	Unit         string
}

// RawObservation is a single raw data point. Value is nil when the source
// recorded a null sample.
type RawObservation struct {
	RegionID   int64
	MetricID   int64
	ScenarioID int64
	TS         time.Time
	Value      *float64
}

// Fingerprint summarizes the raw rows inside a window: total row count and
// the greatest timestamp seen. It grows monotonically as data is ingested,
// so an equality mismatch against a fresh probe means the cached result is
// stale.
type Fingerprint struct {
	Count uint64    `json:"count"`
	MaxTS time.Time `json:"max_ts"`
}

func (f Fingerprint) Equal(o Fingerprint) bool {
	return f.Count == o.Count && f.MaxTS.Equal(o.MaxTS)
}

func (f Fingerprint) String() string {
	if f.Count == 0 {
		return "0@-"
	}
	return fmt.Sprintf("%d@%d", f.Count, f.MaxTS.UTC().Unix())
}

// AverageResult is the response of a temporal-average request.
type AverageResult struct {
	Value       float64
	SampleCount int
	CacheHit    bool
	Window      Window
}

// MetricInfo describes one catalog metric, e.g. tas_anomaly.
type MetricInfo struct {
	ID   int64  `json:"id"`
	Code string `json:"code"`
	Name string `json:"name"`
	Unit string `json:"unit,omitempty"`
}

// ScenarioInfo describes one emission scenario, e.g. ssp245.
type ScenarioInfo struct {
	ID          int64  `json:"id"`
	Code        string `json:"code"`
	Name        string `json:"name"`
	Description string `json:"description,omitempty"`
}
