// Package index implements the Identity, Scalar, and Composite indexes plus
// the Index Manager that keeps them in sync with a Collection's writes.
package index

import "sync"

// State is an index's lifecycle phase: Building while a rebuild is
// repopulating it, Ready once it answers lookups, Failed when a rebuild
// could not complete.
type State string

const (
	StateBuilding State = "building"
	StateReady    State = "ready"
	StateFailed   State = "failed"
)

// stateTracker carries the advertised State for an index implementation.
// The zero value reads as Ready, since a freshly constructed empty index is
// immediately usable.
type stateTracker struct {
	stateMu sync.Mutex
	state   State
}

func (s *stateTracker) State() State {
	s.stateMu.Lock()
	defer s.stateMu.Unlock()
	if s.state == "" {
		return StateReady
	}
	return s.state
}

func (s *stateTracker) setState(st State) {
	s.stateMu.Lock()
	s.state = st
	s.stateMu.Unlock()
}

// stateSetter is satisfied by every in-package index implementation; the
// Manager uses it to mark indexes Building/Ready/Failed around rebuilds.
type stateSetter interface {
	setState(State)
}

// Index is the common contract every index kind satisfies so the Manager and
// Query Planner can treat them uniformly.
type Index interface {
	// Name identifies the index. Scalar and composite indexes take it from
	// their constructor (conventionally IX_{Type}_{Property}).
	Name() string

	// Add indexes doc under id, first removing any prior entry for id.
	Add(id string, doc any) error

	// Remove drops id's entry from the index, if present.
	Remove(id string)

	// Len reports how many ids the index currently tracks.
	Len() int

	// Statistics reports index-kind-specific diagnostics (cardinality,
	// bucket counts, min/max where applicable).
	Statistics() map[string]any

	// State reports the index's lifecycle phase (Building, Ready, Failed).
	State() State

	// IsNative reports whether this index is backed directly by the
	// storage engine, earning a cost discount from the Query Planner.
	IsNative() bool
}

// Clear empties every mutable field of an index implementation, used by
// Manager.RebuildAll. Indexes that support rebuilding implement this in
// addition to Index.
type Clearer interface {
	Clear()
}

// UniqueChecker is implemented by indexes that can reject a Put (a unique
// ScalarIndex) so the Manager can validate every index before mutating any
// of them — a UniqueIndexViolation must leave the whole Collection,
// including every other index, untouched.
type UniqueChecker interface {
	CheckUnique(id string, doc any) error
}
