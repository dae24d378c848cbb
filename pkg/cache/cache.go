// Package cache implements the Cache Manager: an in-memory id→Record working
// set with a pluggable eviction Strategy. Eviction only removes entries from
// the cache, never from the backing store — a subsequent read simply
// refills from the Storage Backend.
//
// Bookkeeping is a mutex-guarded map with hit/miss counters; an eviction
// pass removes strategy-ordered candidates until the cache is back down to
// 90% of its configured maximum.
package cache

import (
	"sync"

	"github.com/cuemby/acorndb/pkg/metrics"
	"github.com/cuemby/acorndb/pkg/record"
)

// Strategy decides which entries to evict when a cache exceeds its capacity.
// Implementations are notified of every insert, read, and delete so they can
// maintain whatever bookkeeping they need (access order, frequency, etc.).
type Strategy interface {
	// OnStash is called after id is inserted or overwritten.
	OnStash(id string)
	// OnCrack is called after id is read (a cache hit).
	OnCrack(id string)
	// OnToss is called after id is removed from the cache.
	OnToss(id string)
	// EvictionCandidates returns ids in the order they should be evicted,
	// given the current cache contents and its configured max size.
	EvictionCandidates(entries map[string]*record.Record, maxSize int) []string
}

// Manager is the in-memory working set for one Collection.
type Manager struct {
	collection string
	strategy   Strategy
	maxSize    int
	autoEvict  bool

	mu      sync.RWMutex
	entries map[string]*record.Record
}

// New builds a Manager bounded by maxSize (0 = unbounded) using strategy for
// eviction ordering.
func New(collection string, strategy Strategy, maxSize int) *Manager {
	return &Manager{
		collection: collection,
		strategy:   strategy,
		maxSize:    maxSize,
		autoEvict:  true,
		entries:    make(map[string]*record.Record),
	}
}

// Stash inserts or overwrites id, then runs automatic eviction if enabled
// and the cache is over capacity.
func (m *Manager) Stash(id string, rec *record.Record) {
	m.mu.Lock()
	m.entries[id] = rec
	m.strategy.OnStash(id)
	size := len(m.entries)
	m.mu.Unlock()

	metrics.CacheSize.WithLabelValues(m.collection).Set(float64(size))

	if m.autoEvict && m.maxSize > 0 && size > m.maxSize {
		m.EvictNow()
	}
}

// Crack reads id from the cache, reporting a hit/miss to metrics and the
// strategy.
func (m *Manager) Crack(id string) (*record.Record, bool) {
	m.mu.Lock()
	rec, ok := m.entries[id]
	if ok {
		m.strategy.OnCrack(id)
	}
	m.mu.Unlock()

	if ok {
		metrics.CacheHitsTotal.WithLabelValues(m.collection).Inc()
	} else {
		metrics.CacheMissesTotal.WithLabelValues(m.collection).Inc()
	}
	return rec, ok
}

// Toss removes id from the cache without touching the backend.
func (m *Manager) Toss(id string) {
	m.mu.Lock()
	_, existed := m.entries[id]
	delete(m.entries, id)
	if existed {
		m.strategy.OnToss(id)
	}
	size := len(m.entries)
	m.mu.Unlock()
	metrics.CacheSize.WithLabelValues(m.collection).Set(float64(size))
}

// Peek returns id's record without counting as a cache hit/miss, used by
// callers (History, Stats) that need the value without affecting eviction
// order.
func (m *Manager) Peek(id string) (*record.Record, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	rec, ok := m.entries[id]
	return rec, ok
}

// Len returns the current number of cached entries.
func (m *Manager) Len() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.entries)
}

// All returns a snapshot of every cached record, for full scans.
func (m *Manager) All() map[string]*record.Record {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make(map[string]*record.Record, len(m.entries))
	for k, v := range m.entries {
		out[k] = v
	}
	return out
}

// SetStrategy atomically replaces the active eviction strategy. Bookkeeping
// held by the outgoing strategy (access timestamps, frequencies) is not
// migrated; the incoming strategy starts cold.
func (m *Manager) SetStrategy(s Strategy) {
	if s == nil {
		s = NoneStrategy{}
	}
	m.mu.Lock()
	m.strategy = s
	m.mu.Unlock()
}

// SetAutoEvictDisabled toggles automatic eviction on Stash, useful for tests
// that want to control eviction timing explicitly.
func (m *Manager) SetAutoEvictDisabled(disabled bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.autoEvict = !disabled
}

// EvictNow runs one eviction pass immediately and returns the number of
// entries removed.
func (m *Manager) EvictNow() int {
	m.mu.Lock()
	if m.maxSize <= 0 || len(m.entries) <= m.maxSize {
		m.mu.Unlock()
		return 0
	}
	// The strategy sizes the candidate list for its own settle target
	// (LRU: down to 90% of max, so a burst of Puts doesn't re-trigger
	// eviction on every single one); drain it in full.
	candidates := m.strategy.EvictionCandidates(m.entries, m.maxSize)
	removed := 0
	for _, id := range candidates {
		if _, ok := m.entries[id]; ok {
			delete(m.entries, id)
			m.strategy.OnToss(id)
			removed++
		}
	}
	size := len(m.entries)
	m.mu.Unlock()

	metrics.CacheSize.WithLabelValues(m.collection).Set(float64(size))
	if removed > 0 {
		metrics.CacheEvictionsTotal.WithLabelValues(m.collection).Add(float64(removed))
	}
	return removed
}
