package cache

import (
	"sort"
	"sync"
	"time"

	"github.com/cuemby/acorndb/pkg/record"
)

// NoneStrategy never evicts; EvictionCandidates always returns empty.
type NoneStrategy struct{}

func (NoneStrategy) OnStash(string) {}
func (NoneStrategy) OnCrack(string) {}
func (NoneStrategy) OnToss(string)  {}

func (NoneStrategy) EvictionCandidates(map[string]*record.Record, int) []string {
	return nil
}

// LRUStrategy tracks per-id last-access time and, when asked for eviction
// candidates, returns the oldest-accessed ids first, enough to bring the
// cache down to 90% of maxSize.
type LRUStrategy struct {
	mu         sync.Mutex
	lastAccess map[string]time.Time
}

// NewLRUStrategy returns a ready-to-use LRUStrategy.
func NewLRUStrategy() *LRUStrategy {
	return &LRUStrategy{lastAccess: make(map[string]time.Time)}
}

func (s *LRUStrategy) touch(id string) {
	s.mu.Lock()
	s.lastAccess[id] = time.Now()
	s.mu.Unlock()
}

func (s *LRUStrategy) OnStash(id string) { s.touch(id) }
func (s *LRUStrategy) OnCrack(id string) { s.touch(id) }

func (s *LRUStrategy) OnToss(id string) {
	s.mu.Lock()
	delete(s.lastAccess, id)
	s.mu.Unlock()
}

// EvictionCandidates returns ids oldest-access-first, enough to reduce the
// cache to 90% of maxSize once removed.
func (s *LRUStrategy) EvictionCandidates(entries map[string]*record.Record, maxSize int) []string {
	target := (maxSize*9 + 9) / 10 // ceil(maxSize * 0.9)
	need := len(entries) - target
	if need <= 0 {
		return nil
	}

	s.mu.Lock()
	type idTime struct {
		id string
		at time.Time
	}
	ordered := make([]idTime, 0, len(entries))
	for id := range entries {
		at, ok := s.lastAccess[id]
		if !ok {
			at = time.Time{} // never touched: evict first
		}
		ordered = append(ordered, idTime{id: id, at: at})
	}
	s.mu.Unlock()

	sort.Slice(ordered, func(i, j int) bool {
		return ordered[i].at.Before(ordered[j].at)
	})

	if need > len(ordered) {
		need = len(ordered)
	}
	out := make([]string, need)
	for i := 0; i < need; i++ {
		out[i] = ordered[i].id
	}
	return out
}
