// Package filekv provides a Backend that stores one file per record id in
// a dedicated data directory, with filenames encoded so any id is
// filesystem-safe.
package filekv

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"iter"
	"os"
	"path/filepath"
	"sync"

	"github.com/cuemby/acorndb/pkg/backend"
)

type onDisk struct {
	Bytes []byte        `json:"bytes"`
	Meta  backend.Meta  `json:"meta"`
}

// Backend is a durable, no-history Storage Backend with one file per id.
type Backend struct {
	dir string
	mu  sync.Mutex
}

// New creates (if needed) dir and returns a Backend rooted there.
func New(dir string) (*Backend, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("filekv: create dir: %w", err)
	}
	return &Backend{dir: dir}, nil
}

// encodeName makes an id safe to use as a filename without collisions.
func encodeName(id string) string {
	return base64.RawURLEncoding.EncodeToString([]byte(id)) + ".json"
}

func decodeName(name string) (string, bool) {
	if filepath.Ext(name) != ".json" {
		return "", false
	}
	raw, err := base64.RawURLEncoding.DecodeString(name[:len(name)-len(".json")])
	if err != nil {
		return "", false
	}
	return string(raw), true
}

func (b *Backend) path(id string) string {
	return filepath.Join(b.dir, encodeName(id))
}

func (b *Backend) Save(_ context.Context, id string, data []byte, meta backend.Meta) error {
	rec := onDisk{Bytes: data, Meta: meta}
	buf, err := json.Marshal(rec)
	if err != nil {
		return fmt.Errorf("filekv: marshal %q: %w", id, err)
	}

	b.mu.Lock()
	defer b.mu.Unlock()

	tmp := b.path(id) + ".tmp"
	if err := os.WriteFile(tmp, buf, 0o644); err != nil {
		return fmt.Errorf("filekv: write %q: %w", id, err)
	}
	if err := os.Rename(tmp, b.path(id)); err != nil {
		return fmt.Errorf("filekv: rename %q: %w", id, err)
	}
	return nil
}

func (b *Backend) Load(_ context.Context, id string) ([]byte, backend.Meta, bool, error) {
	b.mu.Lock()
	buf, err := os.ReadFile(b.path(id))
	b.mu.Unlock()
	if os.IsNotExist(err) {
		return nil, backend.Meta{}, false, nil
	}
	if err != nil {
		return nil, backend.Meta{}, false, fmt.Errorf("filekv: read %q: %w", id, err)
	}

	var rec onDisk
	if err := json.Unmarshal(buf, &rec); err != nil {
		return nil, backend.Meta{}, false, fmt.Errorf("filekv: decode %q: %w", id, err)
	}
	return rec.Bytes, rec.Meta, true, nil
}

func (b *Backend) Delete(_ context.Context, id string) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	err := os.Remove(b.path(id))
	if err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("filekv: delete %q: %w", id, err)
	}
	return nil
}

func (b *Backend) LoadAll(ctx context.Context) iter.Seq2[backend.Entry, error] {
	return b.ExportChanges(ctx)
}

func (b *Backend) ExportChanges(ctx context.Context) iter.Seq2[backend.Entry, error] {
	return func(yield func(backend.Entry, error) bool) {
		b.mu.Lock()
		dirEntries, err := os.ReadDir(b.dir)
		b.mu.Unlock()
		if err != nil {
			yield(backend.Entry{}, fmt.Errorf("filekv: list dir: %w", err))
			return
		}

		for _, de := range dirEntries {
			if de.IsDir() {
				continue
			}
			id, ok := decodeName(de.Name())
			if !ok {
				continue
			}
			data, meta, found, err := b.Load(ctx, id)
			if err != nil {
				if !yield(backend.Entry{}, err) {
					return
				}
				continue
			}
			if !found {
				continue
			}
			if !yield(backend.Entry{ID: id, Bytes: data, Meta: meta}, nil) {
				return
			}
		}
	}
}

func (b *Backend) History(_ context.Context, _ string) ([]backend.Entry, error) {
	return nil, backend.UnsupportedHistory("filekv.History")
}

func (b *Backend) Capabilities() backend.Capabilities {
	return backend.Capabilities{
		SupportsHistory: false,
		SupportsSync:    true,
		IsDurable:       true,
		SupportsAsync:   false,
		TrunkKind:       "filekv",
	}
}

func (b *Backend) Close() error { return nil }
