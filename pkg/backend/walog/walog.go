// Package walog implements the append-only log Backend: a single-writer
// log of {stash|delete, record} events replayed on open. The wire format is
// one JSON object per LF-terminated line, {"op":"stash"|"delete",
// "record":{...}}, with no embedded newlines, so logs written by other
// implementations of the same format replay cleanly. Durability comes from
// a single *os.File writer with fsync on append.
package walog

import (
	"bufio"
	"context"
	"encoding/json"
	"fmt"
	"iter"
	"os"
	"path/filepath"
	"sync"

	"github.com/cuemby/acorndb/pkg/backend"
)

type opKind string

const (
	opStash  opKind = "stash"
	opDelete opKind = "delete"
)

type wireRecord struct {
	ID           string       `json:"id"`
	Bytes        []byte       `json:"bytes"`
	Timestamp    int64        `json:"timestamp"`
	ExpiresAt    int64        `json:"expires_at,omitempty"`
	Version      int          `json:"version"`
	ChangeID     string       `json:"change_id"`
	OriginNodeID string       `json:"origin_node_id"`
	HopCount     int          `json:"hop_count"`
}

type logLine struct {
	Op     opKind     `json:"op"`
	Record wireRecord `json:"record"`
}

func toWire(id string, data []byte, meta backend.Meta) wireRecord {
	return wireRecord{
		ID: id, Bytes: data, Timestamp: meta.Timestamp, ExpiresAt: meta.ExpiresAt,
		Version: meta.Version, ChangeID: meta.ChangeID, OriginNodeID: meta.OriginNodeID,
		HopCount: meta.HopCount,
	}
}

func fromWire(w wireRecord) (string, []byte, backend.Meta) {
	return w.ID, w.Bytes, backend.Meta{
		Timestamp: w.Timestamp, ExpiresAt: w.ExpiresAt, Version: w.Version,
		ChangeID: w.ChangeID, OriginNodeID: w.OriginNodeID, HopCount: w.HopCount,
	}
}

type version struct {
	data backend.Entry
	del  bool
}

// Backend is a single-writer, history-preserving append-only log.
type Backend struct {
	mu       sync.Mutex
	path     string
	file     *os.File
	writer   *bufio.Writer
	current  map[string]backend.Entry // latest non-delete state per id
	versions map[string][]version     // full history per id, insertion order
}

// Open replays (if present) and returns a Backend backed by a single
// changes.log file in dir.
func Open(dir string) (*Backend, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("walog: create dir: %w", err)
	}
	path := filepath.Join(dir, "changes.log")

	b := &Backend{
		path:     path,
		current:  make(map[string]backend.Entry),
		versions: make(map[string][]version),
	}
	if err := b.replay(); err != nil {
		return nil, err
	}

	f, err := os.OpenFile(path, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0o644)
	if err != nil {
		return nil, fmt.Errorf("walog: open for append: %w", err)
	}
	b.file = f
	b.writer = bufio.NewWriter(f)
	return b, nil
}

func (b *Backend) replay() error {
	f, err := os.Open(b.path)
	if os.IsNotExist(err) {
		return nil
	}
	if err != nil {
		return fmt.Errorf("walog: open for replay: %w", err)
	}
	defer f.Close()

	scanner := bufio.NewScanner(f)
	scanner.Buffer(make([]byte, 64*1024), 16*1024*1024)
	for scanner.Scan() {
		line := scanner.Bytes()
		if len(line) == 0 {
			continue
		}
		var ll logLine
		if err := json.Unmarshal(line, &ll); err != nil {
			// Corrupt line: skip rather than abort open.
			continue
		}
		id, data, meta := fromWire(ll.Record)
		entry := backend.Entry{ID: id, Bytes: data, Meta: meta}
		switch ll.Op {
		case opStash:
			b.current[id] = entry
			b.versions[id] = append(b.versions[id], version{data: entry})
		case opDelete:
			delete(b.current, id)
			b.versions[id] = append(b.versions[id], version{data: entry, del: true})
		}
	}
	return scanner.Err()
}

func (b *Backend) appendLine(op opKind, id string, data []byte, meta backend.Meta) error {
	ll := logLine{Op: op, Record: toWire(id, data, meta)}
	buf, err := json.Marshal(ll)
	if err != nil {
		return fmt.Errorf("walog: marshal: %w", err)
	}
	buf = append(buf, '\n')
	if _, err := b.writer.Write(buf); err != nil {
		return fmt.Errorf("walog: append: %w", err)
	}
	if err := b.writer.Flush(); err != nil {
		return fmt.Errorf("walog: flush: %w", err)
	}
	return b.file.Sync()
}

func (b *Backend) Save(_ context.Context, id string, data []byte, meta backend.Meta) error {
	b.mu.Lock()
	defer b.mu.Unlock()

	if err := b.appendLine(opStash, id, data, meta); err != nil {
		return err
	}
	entry := backend.Entry{ID: id, Bytes: data, Meta: meta}
	b.current[id] = entry
	b.versions[id] = append(b.versions[id], version{data: entry})
	return nil
}

func (b *Backend) Load(_ context.Context, id string) ([]byte, backend.Meta, bool, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	e, ok := b.current[id]
	if !ok {
		return nil, backend.Meta{}, false, nil
	}
	return e.Bytes, e.Meta, true, nil
}

func (b *Backend) Delete(_ context.Context, id string) error {
	b.mu.Lock()
	defer b.mu.Unlock()

	existing, ok := b.current[id]
	meta := backend.Meta{}
	if ok {
		meta = existing.Meta
	}
	if err := b.appendLine(opDelete, id, nil, meta); err != nil {
		return err
	}
	delete(b.current, id)
	b.versions[id] = append(b.versions[id], version{data: backend.Entry{ID: id, Meta: meta}, del: true})
	return nil
}

func (b *Backend) LoadAll(ctx context.Context) iter.Seq2[backend.Entry, error] {
	return b.ExportChanges(ctx)
}

func (b *Backend) ExportChanges(_ context.Context) iter.Seq2[backend.Entry, error] {
	return func(yield func(backend.Entry, error) bool) {
		b.mu.Lock()
		snapshot := make([]backend.Entry, 0, len(b.current))
		for _, e := range b.current {
			snapshot = append(snapshot, e)
		}
		b.mu.Unlock()

		for _, e := range snapshot {
			if !yield(e, nil) {
				return
			}
		}
	}
}

func (b *Backend) History(_ context.Context, id string) ([]backend.Entry, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	vs, ok := b.versions[id]
	if !ok {
		return nil, nil
	}
	out := make([]backend.Entry, 0, len(vs))
	for _, v := range vs {
		if v.del {
			continue
		}
		out = append(out, v.data)
	}
	return out, nil
}

func (b *Backend) Capabilities() backend.Capabilities {
	return backend.Capabilities{
		SupportsHistory: true,
		SupportsSync:    true,
		IsDurable:       true,
		SupportsAsync:   false,
		TrunkKind:       "walog",
	}
}

func (b *Backend) Close() error {
	b.mu.Lock()
	defer b.mu.Unlock()
	if err := b.writer.Flush(); err != nil {
		return err
	}
	return b.file.Close()
}

// Compact rewrites the log keeping only the latest non-delete entry per
// id, bounding an otherwise append-forever file.
func (b *Backend) Compact() error {
	b.mu.Lock()
	defer b.mu.Unlock()

	tmpPath := b.path + ".compact"
	tmp, err := os.OpenFile(tmpPath, os.O_CREATE|os.O_TRUNC|os.O_WRONLY, 0o644)
	if err != nil {
		return fmt.Errorf("walog: compact create: %w", err)
	}
	w := bufio.NewWriter(tmp)
	for id, e := range b.current {
		ll := logLine{Op: opStash, Record: toWire(id, e.Bytes, e.Meta)}
		buf, err := json.Marshal(ll)
		if err != nil {
			tmp.Close()
			return fmt.Errorf("walog: compact marshal: %w", err)
		}
		if _, err := w.Write(append(buf, '\n')); err != nil {
			tmp.Close()
			return fmt.Errorf("walog: compact write: %w", err)
		}
	}
	if err := w.Flush(); err != nil {
		tmp.Close()
		return fmt.Errorf("walog: compact flush: %w", err)
	}
	if err := tmp.Sync(); err != nil {
		tmp.Close()
		return fmt.Errorf("walog: compact sync: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("walog: compact close: %w", err)
	}

	if err := b.writer.Flush(); err != nil {
		return fmt.Errorf("walog: flush before swap: %w", err)
	}
	if err := b.file.Close(); err != nil {
		return fmt.Errorf("walog: close before swap: %w", err)
	}
	if err := os.Rename(tmpPath, b.path); err != nil {
		return fmt.Errorf("walog: compact rename: %w", err)
	}

	f, err := os.OpenFile(b.path, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0o644)
	if err != nil {
		return fmt.Errorf("walog: reopen after compact: %w", err)
	}
	b.file = f
	b.writer = bufio.NewWriter(f)

	for id := range b.versions {
		if e, ok := b.current[id]; ok {
			b.versions[id] = []version{{data: e}}
		} else {
			delete(b.versions, id)
		}
	}
	return nil
}
