package roots

import (
	"bytes"
	"compress/gzip"
	"fmt"
	"io"

	"github.com/andybalholm/brotli"

	"github.com/cuemby/acorndb/pkg/pipeline"
)

// Algorithm selects which codec a Compression Root uses.
type Algorithm string

const (
	Gzip   Algorithm = "gzip"
	Brotli Algorithm = "brotli"
)

// Compression is a Root that shrinks record bytes on write and restores
// them on read. It never fails open: a decode error on read is returned to
// the caller as a corrupt-record condition rather than silently passed
// through.
type Compression struct {
	name      string
	sequence  int
	algorithm Algorithm
	level     int
}

// NewCompression builds a Compression Root. level is algorithm-specific
// (gzip: -1..9, brotli: 0..11); 0 picks each codec's default.
func NewCompression(name string, sequence int, algo Algorithm, level int) *Compression {
	return &Compression{name: name, sequence: sequence, algorithm: algo, level: level}
}

func (c *Compression) Name() string  { return c.name }
func (c *Compression) Sequence() int { return c.sequence }

func (c *Compression) OnWrite(ctx *pipeline.Context, data []byte) ([]byte, error) {
	var buf bytes.Buffer
	switch c.algorithm {
	case Brotli:
		level := c.level
		if level == 0 {
			level = brotli.DefaultCompression
		}
		w := brotli.NewWriterLevel(&buf, level)
		if _, err := w.Write(data); err != nil {
			return nil, fmt.Errorf("roots: brotli write: %w", err)
		}
		if err := w.Close(); err != nil {
			return nil, fmt.Errorf("roots: brotli close: %w", err)
		}
	default:
		level := c.level
		if level == 0 {
			level = gzip.DefaultCompression
		}
		w, err := gzip.NewWriterLevel(&buf, level)
		if err != nil {
			return nil, fmt.Errorf("roots: gzip writer: %w", err)
		}
		if _, err := w.Write(data); err != nil {
			return nil, fmt.Errorf("roots: gzip write: %w", err)
		}
		if err := w.Close(); err != nil {
			return nil, fmt.Errorf("roots: gzip close: %w", err)
		}
	}
	ctx.AppendSignature(c.name)
	return buf.Bytes(), nil
}

func (c *Compression) OnRead(ctx *pipeline.Context, data []byte) ([]byte, error) {
	switch c.algorithm {
	case Brotli:
		r := brotli.NewReader(bytes.NewReader(data))
		out, err := io.ReadAll(r)
		if err != nil {
			return nil, fmt.Errorf("roots: brotli decode: %w", err)
		}
		return out, nil
	default:
		r, err := gzip.NewReader(bytes.NewReader(data))
		if err != nil {
			return nil, fmt.Errorf("roots: gzip decode: %w", err)
		}
		defer r.Close()
		out, err := io.ReadAll(r)
		if err != nil {
			return nil, fmt.Errorf("roots: gzip decode: %w", err)
		}
		return out, nil
	}
}
