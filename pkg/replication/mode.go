// Package replication implements the Replication Fabric: peer objects,
// full-mesh topology construction, loop-prevention bookkeeping, and
// delta/full sync. A Fabric pushes local mutations to peers and applies
// inbound deliveries back into its owning Collection via the Applier it is
// constructed with.
package replication

// Mode controls which direction traffic flows across a Peer.
type Mode string

const (
	Bidirectional Mode = "bidirectional"
	PushOnly      Mode = "push_only"
	PullOnly      Mode = "pull_only"
	Disabled      Mode = "disabled"
)

func (m Mode) pushes() bool {
	return m == Bidirectional || m == PushOnly
}

func (m Mode) accepts() bool {
	return m == Bidirectional || m == PullOnly
}

// ConflictOverride lets a Peer bypass its Collection's default Conflict
// Judge for deliveries arriving through it.
type ConflictOverride string

const (
	UseJudge     ConflictOverride = ""
	PreferLocal  ConflictOverride = "prefer_local"
	PreferRemote ConflictOverride = "prefer_remote"
)
