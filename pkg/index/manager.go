package index

import (
	"sync"

	"github.com/cuemby/acorndb/pkg/metrics"
)

// Native wraps any Index to declare it backed directly by the storage
// engine (e.g. a SQLite expression index over json_extract), earning a
// discount from the Query Planner's cost model.
type Native struct {
	Index
}

func (n Native) IsNative() bool { return true }

// Manager keeps a Collection's indexes in sync with its writes: on Put it
// calls Add on every registered index (after the prior entry for that id is
// removed), and on Delete it calls Remove on each.
type Manager struct {
	collection string
	identity   *IdentityIndex

	// writeMu makes each OnPut's validate-then-mutate (and each
	// OnDelete/RebuildAll) a single critical section: without it, two
	// concurrent Puts carrying the same unique value could both pass
	// CheckUnique before either calls Add.
	writeMu sync.Mutex

	mu      sync.RWMutex
	indexes map[string]Index
}

// NewManager returns a Manager with its always-present Identity index
// registered.
func NewManager(collection string) *Manager {
	return &Manager{
		collection: collection,
		identity:   NewIdentityIndex(),
		indexes:    make(map[string]Index),
	}
}

// Identity returns the Collection's always-present Identity index.
func (m *Manager) Identity() *IdentityIndex {
	return m.identity
}

// Register adds idx under its own Name(), replacing any prior index with
// the same name.
func (m *Manager) Register(idx Index) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.indexes[idx.Name()] = idx
}

// Unregister removes a named index.
func (m *Manager) Unregister(name string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.indexes, name)
}

// Get returns a registered index by name.
func (m *Manager) Get(name string) (Index, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	idx, ok := m.indexes[name]
	return idx, ok
}

// All returns every registered secondary index (not including Identity).
func (m *Manager) All() []Index {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make([]Index, 0, len(m.indexes))
	for _, idx := range m.indexes {
		out = append(out, idx)
	}
	return out
}

// OnPut indexes doc under id across Identity and every secondary index.
//
// Every unique index is validated before any index is mutated: a Put that
// would violate a unique index leaves the identity index, every secondary
// index, and (by extension) the cache and backend a caller guards with
// this call untouched, per the atomic-rejection invariant.
func (m *Manager) OnPut(id string, doc any) error {
	m.writeMu.Lock()
	defer m.writeMu.Unlock()

	m.mu.RLock()
	indexes := make([]Index, 0, len(m.indexes))
	for _, idx := range m.indexes {
		indexes = append(indexes, idx)
	}
	m.mu.RUnlock()

	for _, idx := range indexes {
		if checker, ok := idx.(UniqueChecker); ok {
			if err := checker.CheckUnique(id, doc); err != nil {
				return err
			}
		}
	}

	if err := m.identity.Add(id, doc); err != nil {
		return err
	}
	for _, idx := range indexes {
		_ = idx.Add(id, doc) // already validated above; cannot fail here
		metrics.IndexEntries.WithLabelValues(m.collection, idx.Name()).Set(float64(idx.Len()))
	}
	return nil
}

// OnDelete removes id from Identity and every secondary index.
func (m *Manager) OnDelete(id string) {
	m.writeMu.Lock()
	defer m.writeMu.Unlock()

	m.identity.Remove(id)
	m.mu.RLock()
	indexes := make([]Index, 0, len(m.indexes))
	for _, idx := range m.indexes {
		indexes = append(indexes, idx)
	}
	m.mu.RUnlock()

	for _, idx := range indexes {
		idx.Remove(id)
		metrics.IndexEntries.WithLabelValues(m.collection, idx.Name()).Set(float64(idx.Len()))
	}
}

// markState flips an index's advertised lifecycle State, reaching through a
// Native wrapper to the managed index underneath.
func markState(idx Index, st State) {
	if n, ok := idx.(Native); ok {
		idx = n.Index
	}
	if s, ok := idx.(stateSetter); ok {
		s.setState(st)
	}
}

// RebuildAll clears every registered index (Identity included) and re-adds
// from snapshot, a full id→doc view of the current working set. Each index
// advertises Building for the duration and lands on Ready, or Failed if any
// of its entries could not be re-added.
func (m *Manager) RebuildAll(snapshot map[string]any) {
	m.writeMu.Lock()
	defer m.writeMu.Unlock()

	m.mu.RLock()
	indexes := make([]Index, 0, len(m.indexes))
	for _, idx := range m.indexes {
		indexes = append(indexes, idx)
	}
	m.mu.RUnlock()

	markState(m.identity, StateBuilding)
	m.identity.Clear()
	for _, idx := range indexes {
		markState(idx, StateBuilding)
		if c, ok := idx.(Clearer); ok {
			c.Clear()
		}
	}

	failed := make(map[string]bool)
	for id, doc := range snapshot {
		_ = m.identity.Add(id, doc)
		for _, idx := range indexes {
			if err := idx.Add(id, doc); err != nil {
				failed[idx.Name()] = true
			}
		}
	}

	markState(m.identity, StateReady)
	for _, idx := range indexes {
		if failed[idx.Name()] {
			markState(idx, StateFailed)
		} else {
			markState(idx, StateReady)
		}
		metrics.IndexEntries.WithLabelValues(m.collection, idx.Name()).Set(float64(idx.Len()))
	}
}
