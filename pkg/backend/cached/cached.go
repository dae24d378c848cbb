// Package cached decorates any Backend with a hot in-memory map, so repeated
// Loads for the same id skip the underlying I/O. This is a distinct concern
// from Collection's own Cache Manager (which holds decoded documents): this
// cache holds the still-pipeline-encoded bytes the Backend would otherwise
// re-read from disk, and exists for backends fronted by slow storage.
package cached

import (
	"context"
	"iter"
	"sync"

	"github.com/cuemby/acorndb/pkg/backend"
)

type hotEntry struct {
	data []byte
	meta backend.Meta
}

// Backend wraps an inner Backend with a hot-read cache.
type Backend struct {
	inner backend.Backend
	mu    sync.RWMutex
	hot   map[string]hotEntry
}

// New wraps inner with an unbounded hot-read cache.
func New(inner backend.Backend) *Backend {
	return &Backend{inner: inner, hot: make(map[string]hotEntry)}
}

func (b *Backend) Save(ctx context.Context, id string, data []byte, meta backend.Meta) error {
	if err := b.inner.Save(ctx, id, data, meta); err != nil {
		return err
	}
	b.mu.Lock()
	b.hot[id] = hotEntry{data: data, meta: meta}
	b.mu.Unlock()
	return nil
}

func (b *Backend) Load(ctx context.Context, id string) ([]byte, backend.Meta, bool, error) {
	b.mu.RLock()
	e, ok := b.hot[id]
	b.mu.RUnlock()
	if ok {
		return e.data, e.meta, true, nil
	}

	data, meta, found, err := b.inner.Load(ctx, id)
	if err != nil || !found {
		return data, meta, found, err
	}
	b.mu.Lock()
	b.hot[id] = hotEntry{data: data, meta: meta}
	b.mu.Unlock()
	return data, meta, true, nil
}

func (b *Backend) Delete(ctx context.Context, id string) error {
	if err := b.inner.Delete(ctx, id); err != nil {
		return err
	}
	b.mu.Lock()
	delete(b.hot, id)
	b.mu.Unlock()
	return nil
}

func (b *Backend) LoadAll(ctx context.Context) iter.Seq2[backend.Entry, error] {
	return b.inner.LoadAll(ctx)
}

func (b *Backend) ExportChanges(ctx context.Context) iter.Seq2[backend.Entry, error] {
	return b.inner.ExportChanges(ctx)
}

func (b *Backend) History(ctx context.Context, id string) ([]backend.Entry, error) {
	return b.inner.History(ctx, id)
}

func (b *Backend) Capabilities() backend.Capabilities {
	return b.inner.Capabilities()
}

func (b *Backend) Close() error {
	return b.inner.Close()
}
