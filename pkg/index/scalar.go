package index

import (
	"fmt"
	"sort"
	"sync"

	"github.com/cuemby/acorndb/pkg/acorndberrors"
)

// Selector extracts a comparable key from a decoded document. ok is false
// when the document has no value for this property (the id is then
// excluded from the index).
type Selector[K comparable] func(doc any) (key K, ok bool)

// Less orders two keys for range and sorted operations.
type Less[K comparable] func(a, b K) bool

// ScalarOption configures a ScalarIndex at construction time.
type ScalarOption[K comparable] func(*ScalarIndex[K])

// WithUnique rejects Add when a distinct id already holds the incoming key.
func WithUnique[K comparable]() ScalarOption[K] {
	return func(si *ScalarIndex[K]) { si.unique = true }
}

// WithName overrides the default IX_{Type}_{Property} name.
func WithName[K comparable](name string) ScalarOption[K] {
	return func(si *ScalarIndex[K]) { si.name = name }
}

// WithFold applies a normalizing transform to every key before it is used
// for comparison or storage — e.g. strings.ToLower for a case-insensitive
// string index.
func WithFold[K comparable](fold func(K) K) ScalarOption[K] {
	return func(si *ScalarIndex[K]) { si.fold = fold }
}

// ScalarIndex maintains an ordered multimap from a scalar property value to
// the set of ids holding that value.
type ScalarIndex[K comparable] struct {
	stateTracker
	name     string
	property string
	selector Selector[K]
	less     Less[K]
	unique   bool
	fold     func(K) K

	mu      sync.RWMutex
	buckets map[K]map[string]struct{}
	byID    map[string]K
}

// NewScalarIndex builds a ScalarIndex over selector, ordered by less.
// property is the document property this index is built over, used by the
// Query Planner to match WHERE conditions to this index; defaultName seeds
// IX_{Type}_{Property}-style naming and can be overridden with WithName.
func NewScalarIndex[K comparable](defaultName, property string, selector Selector[K], less Less[K], opts ...ScalarOption[K]) *ScalarIndex[K] {
	si := &ScalarIndex[K]{
		name:     defaultName,
		property: property,
		selector: selector,
		less:     less,
		buckets:  make(map[K]map[string]struct{}),
		byID:     make(map[string]K),
	}
	for _, opt := range opts {
		opt(si)
	}
	return si
}

func (si *ScalarIndex[K]) Name() string { return si.name }

// Property returns the document property this index is built over, so the
// Query Planner can match it against WHERE conditions.
func (si *ScalarIndex[K]) Property() string { return si.property }

func (si *ScalarIndex[K]) key(k K) K {
	if si.fold != nil {
		return si.fold(k)
	}
	return k
}

// CheckUnique reports, without mutating the index, whether Add(id, doc)
// would fail with a UniqueIndexViolation. The Manager calls this on every
// unique index before mutating any index for a Put, so a rejection leaves
// every index — including this one — untouched.
func (si *ScalarIndex[K]) CheckUnique(id string, doc any) error {
	if !si.unique {
		return nil
	}
	key, ok := si.selector(doc)
	if !ok {
		return nil
	}
	key = si.key(key)

	si.mu.RLock()
	defer si.mu.RUnlock()
	if bucket, exists := si.buckets[key]; exists {
		for existingID := range bucket {
			if existingID != id {
				return acorndberrors.NewWithID(acorndberrors.KindUniqueIndexViolation, "ScalarIndex.Add", id,
					fmt.Errorf("index %s: value already held by %s", si.name, existingID))
			}
		}
	}
	return nil
}

func (si *ScalarIndex[K]) Add(id string, doc any) error {
	key, ok := si.selector(doc)
	if !ok {
		si.Remove(id)
		return nil
	}
	key = si.key(key)

	si.mu.Lock()
	defer si.mu.Unlock()

	if si.unique {
		if bucket, exists := si.buckets[key]; exists {
			for existingID := range bucket {
				if existingID != id {
					return acorndberrors.NewWithID(acorndberrors.KindUniqueIndexViolation, "ScalarIndex.Add", id,
						fmt.Errorf("index %s: value already held by %s", si.name, existingID))
				}
			}
		}
	}

	if prior, had := si.byID[id]; had {
		si.removeLocked(id, prior)
	}

	if si.buckets[key] == nil {
		si.buckets[key] = make(map[string]struct{})
	}
	si.buckets[key][id] = struct{}{}
	si.byID[id] = key
	return nil
}

func (si *ScalarIndex[K]) Remove(id string) {
	si.mu.Lock()
	defer si.mu.Unlock()
	if key, ok := si.byID[id]; ok {
		si.removeLocked(id, key)
	}
}

func (si *ScalarIndex[K]) removeLocked(id string, key K) {
	if bucket, ok := si.buckets[key]; ok {
		delete(bucket, id)
		if len(bucket) == 0 {
			delete(si.buckets, key)
		}
	}
	delete(si.byID, id)
}

// LookupAny is the type-erased form of Lookup, used by callers (the Query
// Planner) that hold a key as `any` because they work across ScalarIndex
// instantiations of differing K. A key of the wrong dynamic type matches
// nothing rather than panicking.
func (si *ScalarIndex[K]) LookupAny(key any) []string {
	k, ok := key.(K)
	if !ok {
		return nil
	}
	return si.Lookup(k)
}

// SortedAny is the type-erased form of Sorted.
func (si *ScalarIndex[K]) SortedAny(ascending bool) []string {
	return si.Sorted(ascending)
}

// Lookup returns the ids currently holding key.
func (si *ScalarIndex[K]) Lookup(key K) []string {
	key = si.key(key)
	si.mu.RLock()
	defer si.mu.RUnlock()
	bucket, ok := si.buckets[key]
	if !ok {
		return nil
	}
	out := make([]string, 0, len(bucket))
	for id := range bucket {
		out = append(out, id)
	}
	sort.Strings(out)
	return out
}

// Range returns ids whose key falls within [min, max] inclusive.
func (si *ScalarIndex[K]) Range(min, max K) []string {
	min, max = si.key(min), si.key(max)
	si.mu.RLock()
	defer si.mu.RUnlock()

	var out []string
	for key, bucket := range si.buckets {
		if si.less(key, min) || si.less(max, key) {
			continue
		}
		for id := range bucket {
			out = append(out, id)
		}
	}
	sort.Strings(out)
	return out
}

// RangeAny is the type-erased form of Range for the Query Planner: either
// side may be open, in which case the index's own extreme bounds it. A
// bound of the wrong dynamic type matches nothing.
func (si *ScalarIndex[K]) RangeAny(min, max any, hasMin, hasMax bool) []string {
	var lo, hi K
	if hasMin {
		k, ok := min.(K)
		if !ok {
			return nil
		}
		lo = k
	} else {
		k, ok := si.Min()
		if !ok {
			return nil
		}
		lo = k
	}
	if hasMax {
		k, ok := max.(K)
		if !ok {
			return nil
		}
		hi = k
	} else {
		k, ok := si.Max()
		if !ok {
			return nil
		}
		hi = k
	}
	return si.Range(lo, hi)
}

// Sorted returns every indexed id ordered by key (then id), ascending or
// descending.
func (si *ScalarIndex[K]) Sorted(ascending bool) []string {
	si.mu.RLock()
	type entry struct {
		key K
		id  string
	}
	entries := make([]entry, 0, len(si.byID))
	for id, key := range si.byID {
		entries = append(entries, entry{key: key, id: id})
	}
	si.mu.RUnlock()

	sort.Slice(entries, func(i, j int) bool {
		if entries[i].key == entries[j].key {
			return entries[i].id < entries[j].id
		}
		if ascending {
			return si.less(entries[i].key, entries[j].key)
		}
		return si.less(entries[j].key, entries[i].key)
	})

	out := make([]string, len(entries))
	for i, e := range entries {
		out[i] = e.id
	}
	return out
}

// Min returns the smallest key currently indexed.
func (si *ScalarIndex[K]) Min() (K, bool) {
	return si.extreme(func(a, b K) bool { return si.less(a, b) })
}

// Max returns the largest key currently indexed.
func (si *ScalarIndex[K]) Max() (K, bool) {
	return si.extreme(func(a, b K) bool { return si.less(b, a) })
}

func (si *ScalarIndex[K]) extreme(better func(candidate, current K) bool) (K, bool) {
	si.mu.RLock()
	defer si.mu.RUnlock()

	var zero K
	var best K
	found := false
	for key := range si.buckets {
		if !found || better(key, best) {
			best = key
			found = true
		}
	}
	if !found {
		return zero, false
	}
	return best, true
}

func (si *ScalarIndex[K]) Len() int {
	si.mu.RLock()
	defer si.mu.RUnlock()
	return len(si.byID)
}

func (si *ScalarIndex[K]) Statistics() map[string]any {
	si.mu.RLock()
	defer si.mu.RUnlock()
	return map[string]any{
		"count":   len(si.byID),
		"buckets": len(si.buckets),
		"unique":  si.unique,
	}
}

func (si *ScalarIndex[K]) IsNative() bool { return false }

func (si *ScalarIndex[K]) Clear() {
	si.mu.Lock()
	defer si.mu.Unlock()
	si.buckets = make(map[K]map[string]struct{})
	si.byID = make(map[string]K)
}
