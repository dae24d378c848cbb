package collection

import (
	"context"

	"github.com/cuemby/acorndb/pkg/index"
	"github.com/cuemby/acorndb/pkg/query"
	"github.com/cuemby/acorndb/pkg/replication"
)

// Handle is the element-type-erased view of a Collection: every operation
// whose signature does not mention T. Surrounding code that manages many
// collections of differing element types (a registry, a server exposing
// collections over a wire) holds Handles; typed callers keep the full
// Collection[T].
type Handle interface {
	Name() string
	NodeID() string

	Delete(ctx context.Context, id string, propagate bool) error
	Entangle(peer *replication.Peer)
	Detangle(name string)
	DetangleAll()
	Shake() int
	EvictNow() int
	CleanupExpiredNow() int
	Subscribe(cb func())

	Indexes() *index.Manager
	Planner() *query.Planner
	Stats() Stats
	Verify() []string
	Rebuild()
	Dispose() error
}

// handleAdapter wraps a Collection[T] as a Handle. The only seam that needs
// adapting is Subscribe, whose typed callback signature mentions T; the
// Handle form drops the document argument.
type handleAdapter[T any] struct {
	*Collection[T]
}

// AsHandle returns the type-erased view of c.
func AsHandle[T any](c *Collection[T]) Handle {
	return handleAdapter[T]{Collection: c}
}

func (h handleAdapter[T]) Subscribe(cb func()) {
	h.Collection.Subscribe(func(T) { cb() })
}

var _ Handle = handleAdapter[struct{}]{}
