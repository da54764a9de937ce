package kafkaconsumer

import (
	"sync"

	lru "github.com/hashicorp/golang-lru/v2"
)

// dedupe remembers the highest data_version applied per triple so replayed
// and reordered events become no-ops. Bounded LRU: forgetting a triple only
// costs one redundant prefix deletion.
type dedupe struct {
	mu   sync.Mutex
	seen *lru.Cache[string, uint64]
}

func newDedupe(size int) (*dedupe, error) {
	if size <= 0 {
		size = 8192
	}
	c, err := lru.New[string, uint64](size)
	if err != nil {
		return nil, err
	}
	return &dedupe{seen: c}, nil
}

// Stale reports whether the triple has already been invalidated at version
// or newer.
func (d *dedupe) Stale(triple string, version uint64) bool {
	d.mu.Lock()
	defer d.mu.Unlock()
	last, ok := d.seen.Get(triple)
	return ok && version <= last
}

// Mark records version as applied for the triple, keeping the maximum.
func (d *dedupe) Mark(triple string, version uint64) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if last, ok := d.seen.Get(triple); ok && last >= version {
		return
	}
	d.seen.Add(triple, version)
}
