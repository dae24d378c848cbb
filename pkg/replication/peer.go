package replication

import (
	"fmt"
	"sync"
	"time"

	"github.com/cuemby/acorndb/pkg/acorndberrors"
	"github.com/cuemby/acorndb/pkg/record"
)

// Target is what a Peer delivers to: an in-process peer wraps the target
// Fabric's Receive/ReceiveDelete directly; a remote peer translates to/from
// an external wire protocol (see pkg/replication/httpremote).
type Target interface {
	Deliver(rec *record.Record, fromPeer string) error
	DeliverDelete(id, changeID, originNodeID string, hopCount int, fromPeer string) error
	ExportSince(t time.Time) ([]*record.Record, error)
	ExportAll() ([]*record.Record, error)
}

// Stats are the counters exposed per Peer for observability and the mesh
// dedup testable property (tracked_change_ids incremented exactly once per
// distinct mutation).
type Stats struct {
	Pushed           int64
	PushFailed       int64
	Pulled           int64
	PullFailed       int64
	Delivered        int64
	Dropped          int64
	TrackedChangeIDs int64
}

// Peer is a replication endpoint addressable by a Collection's Fabric.
type Peer struct {
	Name             string
	Mode             Mode
	ConflictOverride ConflictOverride
	DeltaSyncEnabled bool
	Target           Target

	mu                sync.Mutex
	disposed          bool
	lastSyncTimestamp time.Time
	stats             Stats
}

// NewPeer builds a Peer named name, delivering through target.
func NewPeer(name string, mode Mode, target Target) *Peer {
	return &Peer{Name: name, Mode: mode, Target: target}
}

// LastSyncTimestamp reports the last instant this peer's delta sync ran.
func (p *Peer) LastSyncTimestamp() time.Time {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.lastSyncTimestamp
}

// SetLastSyncTimestamp updates the delta-sync watermark.
func (p *Peer) SetLastSyncTimestamp(t time.Time) {
	p.mu.Lock()
	p.lastSyncTimestamp = t
	p.mu.Unlock()
}

// Stats returns a snapshot of this peer's counters.
func (p *Peer) Stats() Stats {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.stats
}

// Dispose marks the peer permanently unusable. Detangling a peer disposes
// it; entangling a disposed peer again registers it, but every delivery and
// export through it still fails with a Disposed error.
func (p *Peer) Dispose() {
	p.mu.Lock()
	p.disposed = true
	p.mu.Unlock()
}

// IsDisposed reports whether Dispose has been called.
func (p *Peer) IsDisposed() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.disposed
}

func (p *Peer) disposedErr(op string) error {
	return acorndberrors.New(acorndberrors.KindDisposed, op, fmt.Errorf("peer %s is disposed", p.Name))
}

func (p *Peer) deliver(rec *record.Record, fromPeer string) error {
	if p.IsDisposed() {
		return p.disposedErr("Peer.Deliver")
	}
	return p.Target.Deliver(rec, fromPeer)
}

func (p *Peer) deliverDelete(id, changeID, originNodeID string, hopCount int, fromPeer string) error {
	if p.IsDisposed() {
		return p.disposedErr("Peer.DeliverDelete")
	}
	return p.Target.DeliverDelete(id, changeID, originNodeID, hopCount, fromPeer)
}

func (p *Peer) exportSince(since time.Time) ([]*record.Record, error) {
	if p.IsDisposed() {
		return nil, p.disposedErr("Peer.ExportSince")
	}
	return p.Target.ExportSince(since)
}

func (p *Peer) exportAll() ([]*record.Record, error) {
	if p.IsDisposed() {
		return nil, p.disposedErr("Peer.ExportAll")
	}
	return p.Target.ExportAll()
}

func (p *Peer) recordPush(err error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if err != nil {
		p.stats.PushFailed++
		return
	}
	p.stats.Pushed++
}

func (p *Peer) recordDelivered() {
	p.mu.Lock()
	p.stats.Delivered++
	p.stats.TrackedChangeIDs++
	p.mu.Unlock()
}

func (p *Peer) recordDropped() {
	p.mu.Lock()
	p.stats.Dropped++
	p.mu.Unlock()
}

func (p *Peer) recordPull(err error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if err != nil {
		p.stats.PullFailed++
		return
	}
	p.stats.Pulled++
}
