// IndexHook is a pass-through Root that notifies a callback of every write
// and read without altering the bytes. It lets the Index Manager observe
// raw bytes at the pipeline boundary for diagnostics without giving it
// write access to the pipeline.
package roots

import (
	"github.com/cuemby/acorndb/pkg/pipeline"
)

// Observer is called with the byte length seen at each pipeline boundary.
type Observer func(ctx *pipeline.Context, byteLen int)

// IndexHook observes traffic through the pipeline without transforming it.
type IndexHook struct {
	name     string
	sequence int
	onWrite  Observer
	onRead   Observer
}

// NewIndexHook builds an IndexHook Root. Either observer may be nil.
func NewIndexHook(name string, sequence int, onWrite, onRead Observer) *IndexHook {
	return &IndexHook{name: name, sequence: sequence, onWrite: onWrite, onRead: onRead}
}

func (h *IndexHook) Name() string  { return h.name }
func (h *IndexHook) Sequence() int { return h.sequence }

func (h *IndexHook) OnWrite(ctx *pipeline.Context, data []byte) ([]byte, error) {
	if h.onWrite != nil {
		h.onWrite(ctx, len(data))
	}
	return data, nil
}

func (h *IndexHook) OnRead(ctx *pipeline.Context, data []byte) ([]byte, error) {
	if h.onRead != nil {
		h.onRead(ctx, len(data))
	}
	return data, nil
}
