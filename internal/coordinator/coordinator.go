// Package coordinator orchestrates a temporal-average request: catalog
// resolution, window normalization, cache lookup with staleness check, and
// single-flight computation on miss.
package coordinator

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"golang.org/x/sync/singleflight"

	"github.com/mohammed-shakir/climate-agg-cache/internal/aggregate"
	"github.com/mohammed-shakir/climate-agg-cache/internal/cache"
	"github.com/mohammed-shakir/climate-agg-cache/internal/cache/keys"
	"github.com/mohammed-shakir/climate-agg-cache/internal/catalog"
	"github.com/mohammed-shakir/climate-agg-cache/internal/core/model"
	"github.com/mohammed-shakir/climate-agg-cache/internal/core/observability"
	"github.com/mohammed-shakir/climate-agg-cache/internal/rawstore"
	"github.com/mohammed-shakir/climate-agg-cache/internal/window"
)

// Request is one inbound average query, still in wire form.
type Request struct {
	Region   string
	Metric   string
	Scenario string
	Window   window.Input
}

type Coordinator struct {
	logger  *slog.Logger
	catalog *catalog.Resolver
	norm    window.Normalizer
	engine  *aggregate.Engine
	probe   rawstore.ObservationSource
	store   cache.Store
	ttl     time.Duration

	// group serializes computations per cache key. singleflight drops
	// the key once the shared call returns, so the lock table stays
	// bounded by the number of in-flight computations.
	group singleflight.Group
}

func New(
	logger *slog.Logger,
	resolver *catalog.Resolver,
	norm window.Normalizer,
	engine *aggregate.Engine,
	probe rawstore.ObservationSource,
	store cache.Store,
	ttl time.Duration,
) *Coordinator {
	if logger == nil {
		logger = slog.Default()
	}
	return &Coordinator{
		logger:  logger,
		catalog: resolver,
		norm:    norm,
		engine:  engine,
		probe:   probe,
		store:   store,
		ttl:     ttl,
	}
}

// GetAverage serves one request. Validation errors surface directly;
// cache-read failures degrade to recomputation; cache-write failures are
// logged and the freshly computed value is still returned.
func (c *Coordinator) GetAverage(ctx context.Context, req Request) (model.AverageResult, error) {
	entry, err := c.catalog.Resolve(ctx, req.Region, req.Metric, req.Scenario)
	if err != nil {
		return model.AverageResult{}, err
	}
	w, err := c.norm.Normalize(req.Window)
	if err != nil {
		return model.AverageResult{}, err
	}
	key := keys.Key(entry, w)

	if ent, ok := c.freshEntry(ctx, key, entry, w); ok {
		return model.AverageResult{
			Value:       ent.Value,
			SampleCount: ent.SampleCount,
			CacheHit:    true,
			Window:      w,
		}, nil
	}

	ch := c.group.DoChan(key, func() (any, error) {
		// Detached from the caller: other waiters may depend on this
		// computation after the first caller gives up.
		dctx := context.WithoutCancel(ctx)

		res, err := c.engine.Compute(dctx, entry, w)
		if err != nil {
			// never cache errors, partial or otherwise
			return nil, err
		}
		ent := cache.Entry{
			Value:       res.Value,
			SampleCount: res.SampleCount,
			Fingerprint: res.Fingerprint,
			ComputedAt:  time.Now().UTC(),
		}
		if perr := c.store.Put(dctx, key, ent, c.ttl); perr != nil {
			c.logger.Warn("cache write failed, returning uncached result",
				"key", key, "err", perr)
		}
		return ent, nil
	})

	select {
	case <-ctx.Done():
		// only this caller's wait is dropped; the computation finishes
		// and fills the cache for everyone else
		return model.AverageResult{}, fmt.Errorf("await computation: %w", ctx.Err())
	case r := <-ch:
		if r.Err != nil {
			return model.AverageResult{}, r.Err
		}
		if r.Shared {
			observability.IncSingleflightShared()
		}
		ent := r.Val.(cache.Entry)
		return model.AverageResult{
			Value:       ent.Value,
			SampleCount: ent.SampleCount,
			CacheHit:    false,
			Window:      w,
		}, nil
	}
}

// freshEntry returns the cached entry for key if present and still current
// per a fingerprint probe against the raw store.
func (c *Coordinator) freshEntry(ctx context.Context, key string, entry model.CatalogEntry, w model.Window) (cache.Entry, bool) {
	ent, found, err := c.store.Get(ctx, key)
	if err != nil {
		// degrade to recomputation rather than fail the request
		c.logger.Warn("cache read failed, treating as miss", "key", key, "err", err)
		observability.IncCacheMiss()
		return cache.Entry{}, false
	}
	if !found {
		observability.IncCacheMiss()
		return cache.Entry{}, false
	}

	fp, err := c.probe.LatestFingerprint(ctx, entry, w)
	if err != nil {
		c.logger.Warn("fingerprint probe failed, recomputing", "key", key, "err", err)
		observability.IncCacheMiss()
		return cache.Entry{}, false
	}
	if !ent.Fingerprint.Equal(fp) {
		c.logger.Debug("cached entry stale",
			"key", key, "cached", ent.Fingerprint.String(), "current", fp.String())
		observability.IncCacheStale()
		return cache.Entry{}, false
	}

	observability.IncCacheHit()
	return ent, true
}
