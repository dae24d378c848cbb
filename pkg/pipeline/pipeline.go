// Package pipeline implements the Root Pipeline: a user-ordered chain of
// bytes-in/bytes-out transforms applied to every record on its way to and
// from a Storage Backend. Roots run ascending by sequence on write and
// descending on read, so the last transform applied on write is the first
// reversed on read.
package pipeline

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"github.com/cuemby/acorndb/pkg/metrics"
)

// Operation tags which direction a Root is being invoked for.
type Operation string

const (
	OpWrite Operation = "write"
	OpRead  Operation = "read"
)

// Context carries per-call state across a pipeline invocation. Roots may
// append to Signatures to build a tamper-evident trail, and may stash
// arbitrary state in Metadata for a later Root (or the caller) to read.
type Context struct {
	Op         Operation
	DocumentID string
	Signatures []string
	Metadata   map[string]any
	Policy     context.Context // policy sub-context, nil if unused
}

// NewContext returns a Context ready for a single pipeline pass.
func NewContext(op Operation, docID string) *Context {
	return &Context{Op: op, DocumentID: docID, Metadata: make(map[string]any)}
}

// AppendSignature records a transform's identity in the tamper-evident trail.
func (c *Context) AppendSignature(sig string) {
	c.Signatures = append(c.Signatures, sig)
}

// Root is one transform in the pipeline. Sequence determines ordering:
// ascending on write, descending on read. Implementations should be pure
// functions of their input plus their own fixed configuration.
type Root interface {
	Name() string
	Sequence() int
	OnWrite(ctx *Context, data []byte) ([]byte, error)
	OnRead(ctx *Context, data []byte) ([]byte, error)
}

// Pipeline runs an ordered set of Roots over record bytes.
type Pipeline struct {
	collection string
	mu         sync.RWMutex
	roots      []Root
}

// New builds a Pipeline from roots, which may be supplied in any order.
// collection labels the pipeline's metrics.
func New(collection string, roots ...Root) *Pipeline {
	p := &Pipeline{collection: collection}
	p.roots = append(p.roots, roots...)
	p.sort()
	return p
}

// Add appends a Root and re-sorts by sequence.
func (p *Pipeline) Add(r Root) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.roots = append(p.roots, r)
	p.sort()
}

func (p *Pipeline) sort() {
	sort.SliceStable(p.roots, func(i, j int) bool {
		return p.roots[i].Sequence() < p.roots[j].Sequence()
	})
}

// Roots returns a snapshot of the configured roots in write order.
func (p *Pipeline) Roots() []Root {
	p.mu.RLock()
	defer p.mu.RUnlock()
	out := make([]Root, len(p.roots))
	copy(out, p.roots)
	return out
}

// OnWrite runs every Root ascending by sequence.
func (p *Pipeline) OnWrite(ctx *Context, data []byte) ([]byte, error) {
	roots := p.Roots()
	var err error
	for _, r := range roots {
		before := len(data)
		data, err = r.OnWrite(ctx, data)
		if err != nil {
			metrics.PipelineErrorsTotal.WithLabelValues(p.collection, r.Name()).Inc()
			return nil, fmt.Errorf("pipeline: root %q on_write: %w", r.Name(), err)
		}
		metrics.PipelineBytesIn.WithLabelValues(p.collection, r.Name()).Add(float64(before))
		metrics.PipelineBytesOut.WithLabelValues(p.collection, r.Name()).Add(float64(len(data)))
	}
	return data, nil
}

// OnRead runs every Root descending by sequence, the inverse of OnWrite.
func (p *Pipeline) OnRead(ctx *Context, data []byte) ([]byte, error) {
	roots := p.Roots()
	var err error
	for i := len(roots) - 1; i >= 0; i-- {
		r := roots[i]
		before := len(data)
		data, err = r.OnRead(ctx, data)
		if err != nil {
			metrics.PipelineErrorsTotal.WithLabelValues(p.collection, r.Name()).Inc()
			return nil, fmt.Errorf("pipeline: root %q on_read: %w", r.Name(), err)
		}
		metrics.PipelineBytesIn.WithLabelValues(p.collection, r.Name()).Add(float64(before))
		metrics.PipelineBytesOut.WithLabelValues(p.collection, r.Name()).Add(float64(len(data)))
	}
	return data, nil
}
