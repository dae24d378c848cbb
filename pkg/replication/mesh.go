package replication

import (
	"time"

	"github.com/cuemby/acorndb/pkg/record"
)

// Node is a fabric addressable by name for mesh construction.
type Node struct {
	Name   string
	Fabric *Fabric
}

// InProcessTarget adapts a Fabric so it can be entangled as another Fabric's
// Peer.Target without leaving the process: deliveries call straight into
// Receive/ReceiveDelete, and exports call the wrapped Fabric's own exporters.
type InProcessTarget struct {
	fabric *Fabric
}

// NewInProcessTarget wraps fabric for use as a Peer.Target.
func NewInProcessTarget(fabric *Fabric) *InProcessTarget {
	return &InProcessTarget{fabric: fabric}
}

// Deliver clones before handing off: Receive mutates hop counts and the
// accepted record lands in the receiving Collection's cache, so sharing one
// pointer across in-process peers would cross-contaminate nodes.
func (t *InProcessTarget) Deliver(rec *record.Record, fromPeer string) error {
	return t.fabric.Receive(rec.Clone(), fromPeer)
}

func (t *InProcessTarget) DeliverDelete(id, changeID, originNodeID string, hopCount int, fromPeer string) error {
	return t.fabric.ReceiveDelete(id, changeID, originNodeID, hopCount, fromPeer)
}

func (t *InProcessTarget) ExportSince(since time.Time) ([]*record.Record, error) {
	return t.fabric.ExportSince(since)
}

func (t *InProcessTarget) ExportAll() ([]*record.Record, error) {
	return t.fabric.ExportAll()
}

// Mesh builds a full-mesh replication topology across nodes: every pair of
// distinct nodes gets a Peer in the given mode pointing at the other's Fabric.
// Mesh is idempotent — calling it again on the same node set entangles the
// same peer names over the existing ones, adding nothing new.
func Mesh(nodes []Node, mode Mode) {
	for _, a := range nodes {
		for _, b := range nodes {
			if a.Name == b.Name {
				continue
			}
			target := NewInProcessTarget(b.Fabric)
			peer := NewPeer(b.Name, mode, target)
			a.Fabric.Entangle(peer)
		}
	}
}
