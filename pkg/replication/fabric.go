package replication

import (
	"fmt"
	"sync"
	"time"

	"github.com/cuemby/acorndb/pkg/log"
	"github.com/cuemby/acorndb/pkg/metrics"
	"github.com/cuemby/acorndb/pkg/record"
)

// Applier is how a Fabric hands an accepted inbound mutation back to its
// owning Collection: store the winner (after conflict resolution) and
// update cache/indexes/event bus, without re-entering replication push.
type Applier interface {
	ApplyIncoming(rec *record.Record, override ConflictOverride) error
	ApplyIncomingDelete(id string) error
}

// Fabric is the per-Collection replication engine: it owns this
// Collection's peer set, loop-prevention state, and delta-sync watermark.
type Fabric struct {
	collection  string
	nodeID      string
	maxHopCount int
	applier     Applier
	exporter    func(since time.Time) ([]*record.Record, error)
	exportAll   func() ([]*record.Record, error)

	seen *seenSet

	mu                sync.RWMutex
	peers             map[string]*Peer
	lastSyncTimestamp time.Time
}

// New builds a Fabric for nodeID, bounding its loop-prevention set to
// seenCapacity entries (0 = default 1000) and rejecting hops at
// maxHopCount (0 = default 10).
func New(collection, nodeID string, maxHopCount, seenCapacity int, applier Applier,
	exportSince func(since time.Time) ([]*record.Record, error),
	exportAll func() ([]*record.Record, error)) *Fabric {

	if maxHopCount <= 0 {
		maxHopCount = 10
	}
	return &Fabric{
		collection:  collection,
		nodeID:      nodeID,
		maxHopCount: maxHopCount,
		applier:     applier,
		exporter:    exportSince,
		exportAll:   exportAll,
		seen:        newSeenSet(seenCapacity),
		peers:       make(map[string]*Peer),
	}
}

// Entangle registers peer, replacing any existing peer of the same name.
func (f *Fabric) Entangle(peer *Peer) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.peers[peer.Name] = peer
}

// Detangle removes a peer by name and disposes it. A disposed peer rejects
// every further operation, including after it is entangled again.
func (f *Fabric) Detangle(name string) {
	f.mu.Lock()
	p, ok := f.peers[name]
	delete(f.peers, name)
	f.mu.Unlock()
	if ok {
		p.Dispose()
	}
}

// DetangleAll removes and disposes every entangled peer.
func (f *Fabric) DetangleAll() {
	for _, p := range f.Peers() {
		f.Detangle(p.Name)
	}
}

// Peers returns a snapshot of every entangled peer.
func (f *Fabric) Peers() []*Peer {
	f.mu.RLock()
	defer f.mu.RUnlock()
	out := make([]*Peer, 0, len(f.peers))
	for _, p := range f.peers {
		out = append(out, p)
	}
	return out
}

// PushPut sends a freshly-written local record to every push-enabled peer.
// Push failures are logged and counted, never surfaced to the Put caller.
func (f *Fabric) PushPut(rec *record.Record) {
	f.seen.Insert(rec.ChangeID)
	for _, p := range f.Peers() {
		if !p.Mode.pushes() {
			continue
		}
		err := p.deliver(rec, f.nodeID)
		p.recordPush(err)
		status := "ok"
		if err != nil {
			status = "error"
			log.WithPeer(p.Name).Warn().Err(err).Str("collection", f.collection).Msg("replication push failed")
		}
		metrics.ReplicationPushTotal.WithLabelValues(f.collection, p.Name, status).Inc()
	}
}

// PushDelete sends a delete mutation to every push-enabled peer.
func (f *Fabric) PushDelete(id, changeID, originNodeID string, hopCount int) {
	f.seen.Insert(changeID)
	for _, p := range f.Peers() {
		if !p.Mode.pushes() {
			continue
		}
		err := p.deliverDelete(id, changeID, originNodeID, hopCount, f.nodeID)
		p.recordPush(err)
		status := "ok"
		if err != nil {
			status = "error"
			log.WithPeer(p.Name).Warn().Err(err).Str("collection", f.collection).Msg("replication delete push failed")
		}
		metrics.ReplicationPushTotal.WithLabelValues(f.collection, p.Name, status).Inc()
	}
}

func (f *Fabric) allow(changeID, originNodeID string, hopCount int) (bool, string) {
	if f.seen.Contains(changeID) {
		return false, "seen"
	}
	if originNodeID == f.nodeID {
		return false, "origin_self"
	}
	if hopCount >= f.maxHopCount {
		return false, "max_hop_count"
	}
	return true, ""
}

// Receive is called when fromPeer delivers rec. It applies loop-prevention,
// hands the accepted record to the Applier, then propagates onward to every
// other push-enabled peer.
func (f *Fabric) Receive(rec *record.Record, fromPeer string) error {
	ok, reason := f.allow(rec.ChangeID, rec.OriginNodeID, rec.HopCount)
	if !ok {
		f.dropFrom(fromPeer)
		metrics.ReplicationDroppedTotal.WithLabelValues(f.collection, reason).Inc()
		return nil
	}
	if peer, found := f.peerNamed(fromPeer); found && !peer.Mode.accepts() {
		peer.recordDropped()
		metrics.ReplicationDroppedTotal.WithLabelValues(f.collection, "push_only_peer").Inc()
		return nil
	}

	f.seen.Insert(rec.ChangeID)
	rec.HopCount++

	var override ConflictOverride
	if peer, found := f.peerNamed(fromPeer); found {
		override = peer.ConflictOverride
	}
	if err := f.applier.ApplyIncoming(rec, override); err != nil {
		return fmt.Errorf("replication: apply incoming: %w", err)
	}

	if peer, found := f.peerNamed(fromPeer); found {
		peer.recordDelivered()
	}
	metrics.ReplicationApplyTotal.WithLabelValues(f.collection).Inc()

	for _, p := range f.Peers() {
		if p.Name == fromPeer || !p.Mode.pushes() {
			continue
		}
		err := p.deliver(rec, f.nodeID)
		p.recordPush(err)
	}
	return nil
}

// ReceiveDelete mirrors Receive for delete propagation.
func (f *Fabric) ReceiveDelete(id, changeID, originNodeID string, hopCount int, fromPeer string) error {
	ok, reason := f.allow(changeID, originNodeID, hopCount)
	if !ok {
		f.dropFrom(fromPeer)
		metrics.ReplicationDroppedTotal.WithLabelValues(f.collection, reason).Inc()
		return nil
	}
	if peer, found := f.peerNamed(fromPeer); found && !peer.Mode.accepts() {
		peer.recordDropped()
		metrics.ReplicationDroppedTotal.WithLabelValues(f.collection, "push_only_peer").Inc()
		return nil
	}

	f.seen.Insert(changeID)
	hopCount++

	if err := f.applier.ApplyIncomingDelete(id); err != nil {
		return fmt.Errorf("replication: apply incoming delete: %w", err)
	}

	if peer, found := f.peerNamed(fromPeer); found {
		peer.recordDelivered()
	}
	metrics.ReplicationApplyTotal.WithLabelValues(f.collection).Inc()

	for _, p := range f.Peers() {
		if p.Name == fromPeer || !p.Mode.pushes() {
			continue
		}
		err := p.deliverDelete(id, changeID, originNodeID, hopCount, f.nodeID)
		p.recordPush(err)
	}
	return nil
}

func (f *Fabric) peerNamed(name string) (*Peer, bool) {
	f.mu.RLock()
	defer f.mu.RUnlock()
	p, ok := f.peers[name]
	return p, ok
}

func (f *Fabric) dropFrom(fromPeer string) {
	if p, ok := f.peerNamed(fromPeer); ok {
		p.recordDropped()
	}
}

// ExportSince returns every record with timestamp after t.
func (f *Fabric) ExportSince(t time.Time) ([]*record.Record, error) {
	return f.exporter(t)
}

// ExportAll returns every current record.
func (f *Fabric) ExportAll() ([]*record.Record, error) {
	return f.exportAll()
}

// ExportDelta returns records since the fabric's own last-sync watermark,
// then advances the watermark to now.
func (f *Fabric) ExportDelta() ([]*record.Record, error) {
	f.mu.Lock()
	since := f.lastSyncTimestamp
	f.mu.Unlock()

	recs, err := f.exporter(since)
	if err != nil {
		return nil, err
	}

	f.mu.Lock()
	f.lastSyncTimestamp = time.Now()
	f.mu.Unlock()
	return recs, nil
}

// Shake pulls each accept-enabled peer's exported state and merges it
// through the same loop-prevention and conflict path inbound deliveries
// take. A peer with delta sync enabled is asked only for records newer than
// its last-sync watermark; otherwise its full export is fetched. Fetch
// failures are logged and counted per peer, never surfaced. Returns the
// number of records applied.
func (f *Fabric) Shake() int {
	applied := 0
	for _, p := range f.Peers() {
		if !p.Mode.accepts() || p.IsDisposed() {
			continue
		}

		var recs []*record.Record
		var err error
		if p.DeltaSyncEnabled {
			recs, err = p.exportSince(p.LastSyncTimestamp())
		} else {
			recs, err = p.exportAll()
		}
		if err != nil {
			p.recordPull(err)
			log.WithPeer(p.Name).Warn().Err(err).Str("collection", f.collection).Msg("replication pull failed")
			continue
		}
		p.recordPull(nil)
		p.SetLastSyncTimestamp(time.Now())

		for _, rec := range recs {
			ok, _ := f.allow(rec.ChangeID, rec.OriginNodeID, rec.HopCount)
			// Clone: an in-process peer's export hands back live cache
			// pointers, and Receive mutates what it accepts.
			if err := f.Receive(rec.Clone(), p.Name); err != nil {
				log.WithPeer(p.Name).Warn().Err(err).Str("collection", f.collection).Msg("replication pull apply failed")
				continue
			}
			if ok {
				applied++
			}
		}
	}
	return applied
}
