package index

import (
	"sort"
	"sync"
)

// Field is one component of a CompositeIndex's key tuple.
type Field struct {
	// Select extracts this field's value from a decoded document.
	Select func(doc any) (value any, ok bool)
	// Less orders two values extracted by Select.
	Less func(a, b any) bool
	// Equal reports whether two values extracted by Select are the same.
	Equal func(a, b any) bool
}

type compositeEntry struct {
	values []any
	id     string
}

// CompositeIndex maintains an ordered multimap keyed by the lexicographic
// tuple of an ordered list of property selectors.
type CompositeIndex struct {
	stateTracker
	name   string
	fields []Field

	mu      sync.RWMutex
	entries []compositeEntry // kept sorted lexicographically
	byID    map[string][]any
}

// NewCompositeIndex builds a CompositeIndex over fields, in the order
// lookups must supply values.
func NewCompositeIndex(name string, fields []Field) *CompositeIndex {
	return &CompositeIndex{
		name:   name,
		fields: fields,
		byID:   make(map[string][]any),
	}
}

func (ci *CompositeIndex) Name() string { return ci.name }

func (ci *CompositeIndex) less(a, b []any) bool {
	n := len(a)
	if len(b) < n {
		n = len(b)
	}
	for i := 0; i < n; i++ {
		if ci.fields[i].Equal(a[i], b[i]) {
			continue
		}
		return ci.fields[i].Less(a[i], b[i])
	}
	return len(a) < len(b)
}

func (ci *CompositeIndex) Add(id string, doc any) error {
	values := make([]any, len(ci.fields))
	for i, f := range ci.fields {
		v, ok := f.Select(doc)
		if !ok {
			ci.Remove(id)
			return nil
		}
		values[i] = v
	}

	ci.mu.Lock()
	defer ci.mu.Unlock()

	if _, had := ci.byID[id]; had {
		ci.removeLocked(id)
	}

	entry := compositeEntry{values: values, id: id}
	idx := sort.Search(len(ci.entries), func(i int) bool {
		return !ci.less(ci.entries[i].values, values)
	})
	ci.entries = append(ci.entries, compositeEntry{})
	copy(ci.entries[idx+1:], ci.entries[idx:])
	ci.entries[idx] = entry
	ci.byID[id] = values
	return nil
}

func (ci *CompositeIndex) Remove(id string) {
	ci.mu.Lock()
	defer ci.mu.Unlock()
	ci.removeLocked(id)
}

func (ci *CompositeIndex) removeLocked(id string) {
	if _, ok := ci.byID[id]; !ok {
		return
	}
	for i, e := range ci.entries {
		if e.id == id {
			ci.entries = append(ci.entries[:i], ci.entries[i+1:]...)
			break
		}
	}
	delete(ci.byID, id)
}

func (ci *CompositeIndex) matchesPrefix(values []any, prefix []any) bool {
	if len(values) < len(prefix) {
		return false
	}
	for i, p := range prefix {
		if !ci.fields[i].Equal(values[i], p) {
			return false
		}
	}
	return true
}

// Lookup returns ids whose full tuple exactly matches values.
func (ci *CompositeIndex) Lookup(values ...any) []string {
	ci.mu.RLock()
	defer ci.mu.RUnlock()
	var out []string
	for _, e := range ci.entries {
		if len(e.values) != len(values) {
			continue
		}
		if ci.matchesPrefix(e.values, values) {
			out = append(out, e.id)
		}
	}
	return out
}

// PrefixLookup returns ids whose leading k < n fields match prefix.
func (ci *CompositeIndex) PrefixLookup(prefix ...any) []string {
	ci.mu.RLock()
	defer ci.mu.RUnlock()
	var out []string
	for _, e := range ci.entries {
		if ci.matchesPrefix(e.values, prefix) {
			out = append(out, e.id)
		}
	}
	return out
}

// RangeOnLast matches prefix on the leading fields, then filters by an
// inclusive [min, max] range on the next field.
func (ci *CompositeIndex) RangeOnLast(prefix []any, min, max any) []string {
	pos := len(prefix)
	if pos >= len(ci.fields) {
		return nil
	}
	field := ci.fields[pos]

	ci.mu.RLock()
	defer ci.mu.RUnlock()
	var out []string
	for _, e := range ci.entries {
		if len(e.values) <= pos || !ci.matchesPrefix(e.values, prefix) {
			continue
		}
		v := e.values[pos]
		if field.Less(v, min) || field.Less(max, v) {
			continue
		}
		out = append(out, e.id)
	}
	return out
}

func (ci *CompositeIndex) Len() int {
	ci.mu.RLock()
	defer ci.mu.RUnlock()
	return len(ci.entries)
}

func (ci *CompositeIndex) Statistics() map[string]any {
	ci.mu.RLock()
	defer ci.mu.RUnlock()
	return map[string]any{
		"count":  len(ci.entries),
		"fields": len(ci.fields),
	}
}

func (ci *CompositeIndex) IsNative() bool { return false }

func (ci *CompositeIndex) Clear() {
	ci.mu.Lock()
	defer ci.mu.Unlock()
	ci.entries = nil
	ci.byID = make(map[string][]any)
}
