// Package cache defines the durable result cache: the entry shape and the
// store contract. The store is a dumb key/value layer; staleness decisions
// belong to the coordinator.
package cache

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/mohammed-shakir/climate-agg-cache/internal/core/model"
)

// Entry is one cached aggregation result. Entries are never mutated in
// place; a stale entry is superseded by a fresh Put under the same key.
type Entry struct {
	Value       float64           `json:"value"`
	SampleCount int               `json:"sample_count"`
	Fingerprint model.Fingerprint `json:"fingerprint"`
	ComputedAt  time.Time         `json:"computed_at"`
}

func (e Entry) Marshal() ([]byte, error) {
	b, err := json.Marshal(e)
	if err != nil {
		return nil, fmt.Errorf("marshal cache entry: %w", err)
	}
	return b, nil
}

func Unmarshal(b []byte) (Entry, error) {
	var e Entry
	if err := json.Unmarshal(b, &e); err != nil {
		return Entry{}, fmt.Errorf("unmarshal cache entry: %w", err)
	}
	return e, nil
}

// Store is the durable key→entry mapping.
type Store interface {
	// Get returns the entry for key; found is false on a clean miss.
	Get(ctx context.Context, key string) (Entry, bool, error)

	// Put writes the entry, overwriting any previous one under key.
	// A ttl of zero applies the store's default.
	Put(ctx context.Context, key string, e Entry, ttl time.Duration) error

	Del(ctx context.Context, keys ...string) error

	// DeleteByPrefix removes every entry under prefix and reports how
	// many were dropped.
	DeleteByPrefix(ctx context.Context, prefix string) (int, error)
}
