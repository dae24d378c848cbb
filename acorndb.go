// Package acorndb is an embeddable, generic document store: a Collection[T]
// backed by a pluggable Storage Backend, with a Root Pipeline for
// compression/encryption/policy, an in-memory Cache Manager, TTL expiry, a
// pluggable Index Manager with a cost-based Query Planner, a Conflict Judge
// for merge resolution, and a peer-to-peer Replication Fabric.
//
// The subsystems live in their own importable pkg/ packages (pkg/backend,
// pkg/cache, pkg/index, pkg/query, pkg/conflict, pkg/replication, and so on)
// so an embedder can reach for one directly. This root package only
// re-exports the handful of names most programs need to open a Collection,
// the way a library's top-level package commonly aliases its most-used
// constructor out of an internal-ish subpackage.
package acorndb

import (
	"github.com/cuemby/acorndb/pkg/backend"
	"github.com/cuemby/acorndb/pkg/collection"
)

// Collection is a generic, typed view over a pluggable Storage Backend. See
// pkg/collection.Collection for the full method set.
type Collection[T any] = collection.Collection[T]

// Handle is the element-type-erased view of a Collection, for code that
// manages collections of differing element types behind one registry.
type Handle = collection.Handle

// New starts a Builder for a Collection named name, backed by be. Chain
// With* calls and finish with Open.
func New[T any](name string, be backend.Backend) *collection.Builder[T] {
	return collection.New[T](name, be)
}
