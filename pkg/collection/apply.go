package collection

import (
	"context"
	"fmt"

	"github.com/cuemby/acorndb/pkg/acorndberrors"
	"github.com/cuemby/acorndb/pkg/conflict"
	"github.com/cuemby/acorndb/pkg/record"
	"github.com/cuemby/acorndb/pkg/replication"
)

// collectionApplier adapts a Collection[T] to replication.Applier: it is
// the seam through which a Fabric, after loop-prevention has accepted an
// inbound delivery, resolves the conflict and writes the winner using the
// same commit path a local Put uses. It never calls back into the Fabric's
// push path — Fabric.Receive/ReceiveDelete already re-propagate.
type collectionApplier[T any] struct {
	c *Collection[T]
}

func (a *collectionApplier[T]) ApplyIncoming(rec *record.Record, override replication.ConflictOverride) error {
	c := a.c
	if c.isDisposed() {
		return acorndberrors.New(acorndberrors.KindDisposed, "Collection.ApplyIncoming", nil)
	}

	judge := c.judge
	switch override {
	case replication.PreferLocal:
		judge = conflict.PreferLocal
	case replication.PreferRemote:
		judge = conflict.PreferRemote
	}

	c.writeMu.Lock()
	local, hadLocal := c.cacheMgr.Peek(rec.ID)
	winner := rec
	if hadLocal {
		winner = judge(local, rec)
	}

	doc, err := decodeDoc[T](winner.Payload)
	if err != nil {
		c.writeMu.Unlock()
		return acorndberrors.NewWithID(acorndberrors.KindInvalidID, "Collection.ApplyIncoming", rec.ID, err)
	}

	version := 1
	if hadLocal {
		version = local.Version + 1
	}
	winner.Version = version

	err = c.commit(context.Background(), winner, any(doc), acorndberrors.KindConflict)
	c.writeMu.Unlock()
	if err != nil {
		return fmt.Errorf("collection %q: apply incoming: %w", c.name, err)
	}
	c.bus.Publish(doc)
	return nil
}

func (a *collectionApplier[T]) ApplyIncomingDelete(id string) error {
	c := a.c
	if c.isDisposed() {
		return acorndberrors.New(acorndberrors.KindDisposed, "Collection.ApplyIncomingDelete", nil)
	}
	return c.Delete(context.Background(), id, false)
}
