// Package entrystore implements the result cache on Redis.
package entrystore

import (
	"context"
	"fmt"
	"time"

	"github.com/mohammed-shakir/climate-agg-cache/internal/cache"
	"github.com/mohammed-shakir/climate-agg-cache/internal/cache/redisstore"
)

type redisEntryStore struct {
	cli        *redisstore.Client
	defaultTTL time.Duration
	opTimeout  time.Duration
}

// NewRedisStore builds a cache.Store on the given client. opTimeout bounds
// every store operation independently of the caller's context so a slow
// cache degrades to a miss instead of stalling requests.
func NewRedisStore(cli *redisstore.Client, defaultTTL, opTimeout time.Duration) cache.Store {
	return &redisEntryStore{
		cli:        cli,
		defaultTTL: defaultTTL,
		opTimeout:  opTimeout,
	}
}

func (s *redisEntryStore) withTimeout(ctx context.Context) (context.Context, context.CancelFunc) {
	if s.opTimeout <= 0 {
		return context.WithCancel(ctx)
	}
	return context.WithTimeout(ctx, s.opTimeout)
}

func (s *redisEntryStore) Get(ctx context.Context, key string) (cache.Entry, bool, error) {
	ctx, cancel := s.withTimeout(ctx)
	defer cancel()

	raw, found, err := s.cli.Get(ctx, key)
	if err != nil {
		return cache.Entry{}, false, fmt.Errorf("entrystore get %q: %w", key, err)
	}
	if !found {
		return cache.Entry{}, false, nil
	}
	e, err := cache.Unmarshal(raw)
	if err != nil {
		// Undecodable entries are treated as absent; the next Put
		// overwrites them.
		return cache.Entry{}, false, fmt.Errorf("entrystore decode %q: %w", key, err)
	}
	return e, true, nil
}

func (s *redisEntryStore) Put(ctx context.Context, key string, e cache.Entry, ttl time.Duration) error {
	ctx, cancel := s.withTimeout(ctx)
	defer cancel()

	if ttl <= 0 {
		ttl = s.defaultTTL
	}
	b, err := e.Marshal()
	if err != nil {
		return err
	}
	if err := s.cli.Set(ctx, key, b, ttl); err != nil {
		return fmt.Errorf("entrystore put %q: %w", key, err)
	}
	return nil
}

func (s *redisEntryStore) Del(ctx context.Context, keys ...string) error {
	ctx, cancel := s.withTimeout(ctx)
	defer cancel()

	if err := s.cli.Del(ctx, keys...); err != nil {
		return fmt.Errorf("entrystore del %d keys: %w", len(keys), err)
	}
	return nil
}

func (s *redisEntryStore) DeleteByPrefix(ctx context.Context, prefix string) (int, error) {
	keys, err := s.cli.ScanPrefix(ctx, prefix)
	if err != nil {
		return 0, fmt.Errorf("entrystore scan %q: %w", prefix, err)
	}
	if len(keys) == 0 {
		return 0, nil
	}
	if err := s.cli.Del(ctx, keys...); err != nil {
		return 0, fmt.Errorf("entrystore del prefix %q: %w", prefix, err)
	}
	return len(keys), nil
}
