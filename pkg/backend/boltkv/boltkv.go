// Package boltkv implements the B-tree-on-mmapped-file Backend using
// go.etcd.io/bbolt: a single bolt.DB opened from a data directory, one
// bucket holding the primary records and a second small bucket for header
// metadata, Update/View closures per operation.
package boltkv

import (
	"context"
	"encoding/json"
	"fmt"
	"iter"
	"os"
	"path/filepath"

	"github.com/cuemby/acorndb/pkg/backend"
	bolt "go.etcd.io/bbolt"
)

var (
	bucketRecords = []byte("records")
	bucketHeader  = []byte("header")
)

type onDisk struct {
	Bytes []byte       `json:"bytes"`
	Meta  backend.Meta `json:"meta"`
}

// Backend is a durable, no-history Storage Backend over a single mmapped
// bbolt file.
type Backend struct {
	db *bolt.DB
}

// Open creates (if needed) dir and opens acorn.db inside it, exactly
// mirroring NewBoltStore's CreateBucketIfNotExists bootstrap.
func Open(dir string) (*Backend, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("boltkv: create directory: %w", err)
	}
	dbPath := filepath.Join(dir, "acorn.db")

	db, err := bolt.Open(dbPath, 0o600, nil)
	if err != nil {
		return nil, fmt.Errorf("boltkv: open database: %w", err)
	}

	err = db.Update(func(tx *bolt.Tx) error {
		for _, bucket := range [][]byte{bucketRecords, bucketHeader} {
			if _, err := tx.CreateBucketIfNotExists(bucket); err != nil {
				return fmt.Errorf("boltkv: create bucket %s: %w", bucket, err)
			}
		}
		return nil
	})
	if err != nil {
		db.Close()
		return nil, err
	}

	return &Backend{db: db}, nil
}

func (b *Backend) Save(_ context.Context, id string, data []byte, meta backend.Meta) error {
	rec := onDisk{Bytes: data, Meta: meta}
	buf, err := json.Marshal(rec)
	if err != nil {
		return fmt.Errorf("boltkv: marshal %q: %w", id, err)
	}
	return b.db.Update(func(tx *bolt.Tx) error {
		return tx.Bucket(bucketRecords).Put([]byte(id), buf)
	})
}

func (b *Backend) Load(_ context.Context, id string) ([]byte, backend.Meta, bool, error) {
	var rec onDisk
	found := false
	err := b.db.View(func(tx *bolt.Tx) error {
		data := tx.Bucket(bucketRecords).Get([]byte(id))
		if data == nil {
			return nil
		}
		found = true
		return json.Unmarshal(data, &rec)
	})
	if err != nil {
		return nil, backend.Meta{}, false, fmt.Errorf("boltkv: load %q: %w", id, err)
	}
	if !found {
		return nil, backend.Meta{}, false, nil
	}
	return rec.Bytes, rec.Meta, true, nil
}

func (b *Backend) Delete(_ context.Context, id string) error {
	return b.db.Update(func(tx *bolt.Tx) error {
		return tx.Bucket(bucketRecords).Delete([]byte(id))
	})
}

func (b *Backend) LoadAll(ctx context.Context) iter.Seq2[backend.Entry, error] {
	return b.ExportChanges(ctx)
}

func (b *Backend) ExportChanges(_ context.Context) iter.Seq2[backend.Entry, error] {
	return func(yield func(backend.Entry, error) bool) {
		var entries []backend.Entry
		err := b.db.View(func(tx *bolt.Tx) error {
			return tx.Bucket(bucketRecords).ForEach(func(k, v []byte) error {
				var rec onDisk
				if err := json.Unmarshal(v, &rec); err != nil {
					// Corrupt entry: skip, don't abort the scan.
					return nil
				}
				entries = append(entries, backend.Entry{ID: string(k), Bytes: rec.Bytes, Meta: rec.Meta})
				return nil
			})
		})
		if err != nil {
			yield(backend.Entry{}, fmt.Errorf("boltkv: scan: %w", err))
			return
		}
		for _, e := range entries {
			if !yield(e, nil) {
				return
			}
		}
	}
}

func (b *Backend) History(_ context.Context, _ string) ([]backend.Entry, error) {
	return nil, backend.UnsupportedHistory("boltkv.History")
}

func (b *Backend) Capabilities() backend.Capabilities {
	return backend.Capabilities{
		SupportsHistory: false,
		SupportsSync:    true,
		IsDurable:       true,
		SupportsAsync:   false,
		TrunkKind:       "boltkv",
	}
}

func (b *Backend) Close() error {
	return b.db.Close()
}
