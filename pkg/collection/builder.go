package collection

import (
	"github.com/cuemby/acorndb/pkg/backend"
	"github.com/cuemby/acorndb/pkg/cache"
	"github.com/cuemby/acorndb/pkg/conflict"
	"github.com/cuemby/acorndb/pkg/config"
	"github.com/cuemby/acorndb/pkg/pipeline"
)

// Builder assembles a Collection's components before Open: a small struct
// filled in by chained With* calls, finished by a terminal build step.
type Builder[T any] struct {
	name     string
	backend  backend.Backend
	pipeline *pipeline.Pipeline
	strategy cache.Strategy
	judge    conflict.Judge
	opts     []config.Option
}

// New starts a Builder for a Collection named name, backed by be.
func New[T any](name string, be backend.Backend) *Builder[T] {
	return &Builder[T]{name: name, backend: be}
}

// WithPipeline sets the Root Pipeline. Unset defaults to an empty pipeline.
func (b *Builder[T]) WithPipeline(p *pipeline.Pipeline) *Builder[T] {
	b.pipeline = p
	return b
}

// WithCacheStrategy sets the eviction Strategy. Unset defaults to None.
func (b *Builder[T]) WithCacheStrategy(s cache.Strategy) *Builder[T] {
	b.strategy = s
	return b
}

// WithJudge sets the default Conflict Judge. Unset defaults to Timestamp.
func (b *Builder[T]) WithJudge(j conflict.Judge) *Builder[T] {
	b.judge = j
	return b
}

// WithOptions appends config.Options functional options, applied over
// config.Default() at Open time.
func (b *Builder[T]) WithOptions(opts ...config.Option) *Builder[T] {
	b.opts = append(b.opts, opts...)
	return b
}

// Open finalizes the Builder, pre-populating the cache from the backend's
// current contents and starting the TTL sweep.
func (b *Builder[T]) Open() (*Collection[T], error) {
	return open[T](b.name, b.backend, b.pipeline, b.strategy, b.judge, config.Apply(b.opts...))
}
