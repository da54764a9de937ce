// Package sweeper enforces the cache capacity bound with a periodic sweep.
// Age-based expiry is Redis-native (TTL set on every write); the sweeper
// only handles the entry-count cap, dropping oldest-computed entries first.
package sweeper

import (
	"context"
	"fmt"
	"log/slog"
	"sort"
	"time"

	"github.com/robfig/cron/v3"

	"github.com/mohammed-shakir/climate-agg-cache/internal/cache"
	"github.com/mohammed-shakir/climate-agg-cache/internal/cache/redisstore"
	"github.com/mohammed-shakir/climate-agg-cache/internal/core/observability"
)

const keyPrefix = "avg:"

type Sweeper struct {
	logger     *slog.Logger
	cli        *redisstore.Client
	maxEntries int
	interval   time.Duration
}

func New(logger *slog.Logger, cli *redisstore.Client, maxEntries int, interval time.Duration) *Sweeper {
	if logger == nil {
		logger = slog.Default()
	}
	if interval <= 0 {
		interval = time.Minute
	}
	return &Sweeper{
		logger:     logger,
		cli:        cli,
		maxEntries: maxEntries,
		interval:   interval,
	}
}

// Run sweeps on the configured schedule until ctx is done.
func (s *Sweeper) Run(ctx context.Context) error {
	c := cron.New()
	_, err := c.AddFunc(fmt.Sprintf("@every %s", s.interval), func() {
		if n, err := s.SweepOnce(ctx); err != nil {
			s.logger.Warn("cache sweep failed", "err", err)
		} else if n > 0 {
			s.logger.Info("cache sweep evicted entries", "evicted", n, "cap", s.maxEntries)
		}
	})
	if err != nil {
		return fmt.Errorf("schedule sweep: %w", err)
	}
	c.Start()
	<-ctx.Done()
	<-c.Stop().Done()
	return nil
}

// SweepOnce applies the capacity policy a single time and returns how many
// entries it evicted.
func (s *Sweeper) SweepOnce(ctx context.Context) (int, error) {
	if s.maxEntries <= 0 {
		return 0, nil
	}

	keys, err := s.cli.ScanPrefix(ctx, keyPrefix)
	if err != nil {
		return 0, fmt.Errorf("sweep scan: %w", err)
	}
	over := len(keys) - s.maxEntries
	if over <= 0 {
		return 0, nil
	}

	vals, err := s.cli.MGet(ctx, keys)
	if err != nil {
		return 0, fmt.Errorf("sweep mget: %w", err)
	}

	type aged struct {
		key string
		at  time.Time
	}
	entries := make([]aged, 0, len(vals))
	for k, raw := range vals {
		e, err := cache.Unmarshal(raw)
		if err != nil {
			// undecodable entries evict first
			entries = append(entries, aged{key: k})
			continue
		}
		entries = append(entries, aged{key: k, at: e.ComputedAt})
	}
	sort.Slice(entries, func(i, j int) bool { return entries[i].at.Before(entries[j].at) })

	if over > len(entries) {
		over = len(entries)
	}
	victims := make([]string, 0, over)
	for _, e := range entries[:over] {
		victims = append(victims, e.key)
	}
	if err := s.cli.Del(ctx, victims...); err != nil {
		return 0, fmt.Errorf("sweep del: %w", err)
	}
	observability.AddSweeperEvicted(len(victims))
	return len(victims), nil
}
