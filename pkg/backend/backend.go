// Package backend defines the Storage Backend contract every durable (or
// volatile) persistence implementation satisfies, plus the Capabilities value
// callers use to avoid invoking operations a given backend doesn't support.
//
// The contract is a single id-keyed, bytes-in/bytes-out surface
// (Save/Load/Delete/LoadAll/ExportChanges/History) — a Collection stores
// one entity shape, so per-entity method pairs would add nothing.
package backend

import (
	"context"
	"iter"

	"github.com/cuemby/acorndb/pkg/acorndberrors"
)

// Meta carries the non-payload Record fields a backend needs to persist
// alongside the serialized bytes, without requiring the backend package to
// import pkg/record and without forcing every backend to round-trip full
// JSON to answer History/ExportChanges.
type Meta struct {
	Timestamp    int64 // unix nanos
	ExpiresAt    int64 // unix nanos, 0 = none
	Version      int
	ChangeID     string
	OriginNodeID string
	HopCount     int
}

// Entry is one (id, bytes, meta) tuple as produced by LoadAll/ExportChanges.
type Entry struct {
	ID    string
	Bytes []byte
	Meta  Meta
}

// Capabilities describes what a backend implementation supports, so callers
// can branch instead of discovering unsupported operations via errors.
type Capabilities struct {
	SupportsHistory bool
	SupportsSync    bool
	IsDurable       bool
	SupportsAsync   bool
	TrunkKind       string
}

// Backend is the durable persistence contract a Collection depends on
// exclusively. Implementations must be safe for concurrent use; the
// Collection itself never holds its cache lock across a Backend call.
type Backend interface {
	// Save idempotently replaces the stored bytes+meta for id.
	Save(ctx context.Context, id string, data []byte, meta Meta) error

	// Load returns the stored bytes+meta for id, or ok=false if absent.
	Load(ctx context.Context, id string) (data []byte, meta Meta, ok bool, err error)

	// Delete removes id. Soft-delete backends retain history; hard-delete
	// backends do not. Deleting an absent id is not an error.
	Delete(ctx context.Context, id string) error

	// LoadAll iterates every current record, used at Collection open.
	LoadAll(ctx context.Context) iter.Seq2[Entry, error]

	// ExportChanges iterates every current record, used for full sync.
	ExportChanges(ctx context.Context) iter.Seq2[Entry, error]

	// History returns ordered versions for id, oldest first. Returns
	// acorndberrors.Unsupported if Capabilities().SupportsHistory is false.
	History(ctx context.Context, id string) ([]Entry, error)

	// Capabilities reports what this backend instance supports.
	Capabilities() Capabilities

	// Close releases any held resources (file handles, mmaps).
	Close() error
}

// UnsupportedHistory is the standard error History() returns when a backend
// doesn't keep versions.
func UnsupportedHistory(op string) error {
	return acorndberrors.New(acorndberrors.KindUnsupported, op, nil)
}
