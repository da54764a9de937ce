// Package catalog resolves user-facing (region, metric, scenario)
// references to catalog entries.
package catalog

import (
	"context"
	"fmt"
	"strings"

	lru "github.com/hashicorp/golang-lru/v2"

	"github.com/mohammed-shakir/climate-agg-cache/internal/core/model"
	"github.com/mohammed-shakir/climate-agg-cache/internal/rawstore"
)

// Resolver validates triples against the catalog source. Resolved entries
// are kept in a small LRU; the catalog is reference data that changes only
// on reseed, and negative answers are never cached so a late-added triple
// becomes visible immediately.
type Resolver struct {
	src   rawstore.CatalogSource
	cache *lru.Cache[string, model.CatalogEntry]
}

func NewResolver(src rawstore.CatalogSource, cacheSize int) (*Resolver, error) {
	if cacheSize <= 0 {
		cacheSize = 4096
	}
	c, err := lru.New[string, model.CatalogEntry](cacheSize)
	if err != nil {
		return nil, fmt.Errorf("catalog lru: %w", err)
	}
	return &Resolver{src: src, cache: c}, nil
}

// Resolve returns the catalog entry for the given references, or
// model.ErrNotFound when any reference is unknown. Safe for concurrent use.
func (r *Resolver) Resolve(ctx context.Context, regionRef, metricRef, scenarioRef string) (model.CatalogEntry, error) {
	regionRef = strings.TrimSpace(regionRef)
	metricRef = strings.TrimSpace(metricRef)
	scenarioRef = strings.TrimSpace(scenarioRef)
	if regionRef == "" || metricRef == "" || scenarioRef == "" {
		return model.CatalogEntry{}, fmt.Errorf("%w: region, metric and scenario are required", model.ErrNotFound)
	}

	ck := regionRef + "\x00" + metricRef + "\x00" + scenarioRef
	if e, ok := r.cache.Get(ck); ok {
		return e, nil
	}

	e, ok, err := r.src.Lookup(ctx, regionRef, metricRef, scenarioRef)
	if err != nil {
		return model.CatalogEntry{}, fmt.Errorf("%w: catalog lookup: %v", model.ErrStorage, err)
	}
	if !ok {
		return model.CatalogEntry{}, fmt.Errorf("%w: (%s, %s, %s)", model.ErrNotFound, regionRef, metricRef, scenarioRef)
	}

	r.cache.Add(ck, e)
	return e, nil
}
