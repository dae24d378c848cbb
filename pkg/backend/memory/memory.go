// Package memory provides a volatile, in-process Backend: a mutex-guarded
// map of id -> serialized bytes. Nothing survives process exit.
package memory

import (
	"context"
	"iter"
	"sync"

	"github.com/cuemby/acorndb/pkg/backend"
)

type entry struct {
	data []byte
	meta backend.Meta
}

// Backend is a volatile, non-durable Storage Backend. Data does not survive
// process restart.
type Backend struct {
	mu   sync.RWMutex
	data map[string]entry
}

// New creates an empty Memory backend.
func New() *Backend {
	return &Backend{data: make(map[string]entry)}
}

func (b *Backend) Save(_ context.Context, id string, data []byte, meta backend.Meta) error {
	cp := make([]byte, len(data))
	copy(cp, data)

	b.mu.Lock()
	b.data[id] = entry{data: cp, meta: meta}
	b.mu.Unlock()
	return nil
}

func (b *Backend) Load(_ context.Context, id string) ([]byte, backend.Meta, bool, error) {
	b.mu.RLock()
	e, ok := b.data[id]
	b.mu.RUnlock()
	if !ok {
		return nil, backend.Meta{}, false, nil
	}
	return e.data, e.meta, true, nil
}

func (b *Backend) Delete(_ context.Context, id string) error {
	b.mu.Lock()
	delete(b.data, id)
	b.mu.Unlock()
	return nil
}

func (b *Backend) LoadAll(ctx context.Context) iter.Seq2[backend.Entry, error] {
	return b.ExportChanges(ctx)
}

func (b *Backend) ExportChanges(_ context.Context) iter.Seq2[backend.Entry, error] {
	return func(yield func(backend.Entry, error) bool) {
		b.mu.RLock()
		snapshot := make([]backend.Entry, 0, len(b.data))
		for id, e := range b.data {
			snapshot = append(snapshot, backend.Entry{ID: id, Bytes: e.data, Meta: e.meta})
		}
		b.mu.RUnlock()

		for _, e := range snapshot {
			if !yield(e, nil) {
				return
			}
		}
	}
}

func (b *Backend) History(_ context.Context, _ string) ([]backend.Entry, error) {
	return nil, backend.UnsupportedHistory("memory.History")
}

func (b *Backend) Capabilities() backend.Capabilities {
	return backend.Capabilities{
		SupportsHistory: false,
		SupportsSync:    true,
		IsDurable:       false,
		SupportsAsync:   false,
		TrunkKind:       "memory",
	}
}

func (b *Backend) Close() error { return nil }
