// Package nearfar composes a fast "near" Backend (typically memory or
// filekv) with a slower, more durable "far" Backend (boltkv, or a remote
// store), writing to both and reading from near with a fall-through to far
// on miss. Reads that fall through to far promote the record back into
// near; far-side write failures are surfaced, near-side promote failures
// are only logged.
package nearfar

import (
	"context"
	"iter"

	"github.com/cuemby/acorndb/pkg/backend"
	"github.com/cuemby/acorndb/pkg/log"
)

// Backend mirrors writes to both near and far, and promotes far-only reads
// into near on access.
type Backend struct {
	near backend.Backend
	far  backend.Backend
}

// New pairs near (fast, may be volatile) with far (slow, durable).
func New(near, far backend.Backend) *Backend {
	return &Backend{near: near, far: far}
}

func (b *Backend) Save(ctx context.Context, id string, data []byte, meta backend.Meta) error {
	if err := b.far.Save(ctx, id, data, meta); err != nil {
		return err
	}
	if err := b.near.Save(ctx, id, data, meta); err != nil {
		log.WithBackend("nearfar").Warn().Err(err).Str("id", id).Msg("near save failed after far succeeded")
	}
	return nil
}

func (b *Backend) Load(ctx context.Context, id string) ([]byte, backend.Meta, bool, error) {
	data, meta, found, err := b.near.Load(ctx, id)
	if err == nil && found {
		return data, meta, true, nil
	}

	data, meta, found, err = b.far.Load(ctx, id)
	if err != nil || !found {
		return data, meta, found, err
	}

	if promoteErr := b.near.Save(ctx, id, data, meta); promoteErr != nil {
		log.WithBackend("nearfar").Warn().Err(promoteErr).Str("id", id).Msg("promotion to near failed")
	}
	return data, meta, true, nil
}

func (b *Backend) Delete(ctx context.Context, id string) error {
	if err := b.far.Delete(ctx, id); err != nil {
		return err
	}
	if err := b.near.Delete(ctx, id); err != nil {
		log.WithBackend("nearfar").Warn().Err(err).Str("id", id).Msg("near delete failed after far succeeded")
	}
	return nil
}

func (b *Backend) LoadAll(ctx context.Context) iter.Seq2[backend.Entry, error] {
	return b.far.LoadAll(ctx)
}

func (b *Backend) ExportChanges(ctx context.Context) iter.Seq2[backend.Entry, error] {
	return b.far.ExportChanges(ctx)
}

func (b *Backend) History(ctx context.Context, id string) ([]backend.Entry, error) {
	if b.far.Capabilities().SupportsHistory {
		return b.far.History(ctx, id)
	}
	return b.near.History(ctx, id)
}

func (b *Backend) Capabilities() backend.Capabilities {
	farCaps := b.far.Capabilities()
	nearCaps := b.near.Capabilities()
	return backend.Capabilities{
		SupportsHistory: farCaps.SupportsHistory || nearCaps.SupportsHistory,
		SupportsSync:    farCaps.SupportsSync,
		IsDurable:       farCaps.IsDurable,
		SupportsAsync:   nearCaps.SupportsAsync || farCaps.SupportsAsync,
		TrunkKind:       "nearfar(" + nearCaps.TrunkKind + "," + farCaps.TrunkKind + ")",
	}
}

func (b *Backend) Close() error {
	nearErr := b.near.Close()
	farErr := b.far.Close()
	if farErr != nil {
		return farErr
	}
	return nearErr
}
