package replication

import (
	"fmt"
	"time"

	"github.com/cuemby/acorndb/pkg/acorndberrors"
	"github.com/cuemby/acorndb/pkg/record"
)

// RemotePeer is the two-operation abstract remote the core requires:
// best-effort push of a single record, and a full fetch used by Shake to
// pull remote state for merge. How these map onto a transport is the
// surrounding code's concern; pkg/replication/httpremote is one concrete
// implementation.
type RemotePeer interface {
	Push(id string, rec *record.Record) error
	FetchAll() ([]*record.Record, error)
}

// RemoteTarget adapts a RemotePeer into a Peer.Target so a two-operation
// remote can be entangled like any other peer. Delta exports are derived by
// filtering FetchAll client-side, since the abstract remote has no
// since-parameterized export. Delete propagation cannot be expressed over a
// push/fetch-only remote and reports Unsupported, which the owning Fabric
// counts as a push failure.
type RemoteTarget struct {
	remote RemotePeer
}

// NewRemoteTarget wraps remote for use as a Peer.Target.
func NewRemoteTarget(remote RemotePeer) *RemoteTarget {
	return &RemoteTarget{remote: remote}
}

func (t *RemoteTarget) Deliver(rec *record.Record, _ string) error {
	return t.remote.Push(rec.ID, rec)
}

func (t *RemoteTarget) DeliverDelete(id, _, _ string, _ int, _ string) error {
	return acorndberrors.NewWithID(acorndberrors.KindUnsupported, "RemoteTarget.DeliverDelete", id,
		fmt.Errorf("push/fetch remote cannot express deletes"))
}

func (t *RemoteTarget) ExportSince(since time.Time) ([]*record.Record, error) {
	recs, err := t.remote.FetchAll()
	if err != nil {
		return nil, err
	}
	out := make([]*record.Record, 0, len(recs))
	for _, rec := range recs {
		if rec.Timestamp.After(since) {
			out = append(out, rec)
		}
	}
	return out, nil
}

func (t *RemoteTarget) ExportAll() ([]*record.Record, error) {
	return t.remote.FetchAll()
}
