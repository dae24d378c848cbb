package roots

import (
	"fmt"

	"github.com/cuemby/acorndb/pkg/pipeline"
)

// PolicyEngine is consulted by a Policy Root before allowing a write or
// after loading bytes for a read. Implementations decide what "allowed"
// means for their embedding application (redaction, tenancy, size limits).
type PolicyEngine interface {
	Allow(ctx *pipeline.Context, data []byte) error
}

// FuncPolicyEngine adapts a plain function to PolicyEngine, sparing
// callers a named type for a single method.
type FuncPolicyEngine func(ctx *pipeline.Context, data []byte) error

func (f FuncPolicyEngine) Allow(ctx *pipeline.Context, data []byte) error {
	return f(ctx, data)
}

// Policy is a Root that enforces engine on both directions without
// transforming the bytes themselves.
type Policy struct {
	name     string
	sequence int
	engine   PolicyEngine
}

// NewPolicy builds a Policy Root backed by engine.
func NewPolicy(name string, sequence int, engine PolicyEngine) *Policy {
	return &Policy{name: name, sequence: sequence, engine: engine}
}

func (p *Policy) Name() string  { return p.name }
func (p *Policy) Sequence() int { return p.sequence }

func (p *Policy) OnWrite(ctx *pipeline.Context, data []byte) ([]byte, error) {
	if err := p.engine.Allow(ctx, data); err != nil {
		return nil, fmt.Errorf("roots: policy denied write: %w", err)
	}
	ctx.AppendSignature(p.name)
	return data, nil
}

func (p *Policy) OnRead(ctx *pipeline.Context, data []byte) ([]byte, error) {
	if err := p.engine.Allow(ctx, data); err != nil {
		return nil, fmt.Errorf("roots: policy denied read: %w", err)
	}
	return data, nil
}
