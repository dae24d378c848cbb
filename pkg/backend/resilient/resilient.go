// Package resilient decorates a Backend with retry and an optional
// fallback, behind a three-state circuit breaker (Closed/Open/Half-Open):
// the breaker opens after a configured run of consecutive failures, rejects
// fast while open, and admits a single probe after a cooldown. Retry pacing
// is github.com/cenkalti/backoff/v4's exponential backoff.
package resilient

import (
	"context"
	"iter"
	"sync"
	"time"

	"github.com/cenkalti/backoff/v4"

	"github.com/cuemby/acorndb/pkg/acorndberrors"
	"github.com/cuemby/acorndb/pkg/backend"
	"github.com/cuemby/acorndb/pkg/log"
)

type breakerState int

const (
	closed breakerState = iota
	open
	halfOpen
)

// Config tunes the resilient wrapper's retry and circuit-breaker behavior.
type Config struct {
	MaxRetries          int
	FailureThreshold    int // consecutive failures before tripping to Open
	Cooldown            time.Duration
	Fallback            backend.Backend // optional, may be nil
}

// DefaultConfig returns sensible defaults.
func DefaultConfig() Config {
	return Config{
		MaxRetries:       3,
		FailureThreshold: 5,
		Cooldown:         30 * time.Second,
	}
}

// Backend wraps an inner Backend with retry, a circuit breaker, and an
// optional fallback Backend consulted when the circuit is open.
type Backend struct {
	inner backend.Backend
	cfg   Config

	mu                  sync.Mutex
	state               breakerState
	consecutiveFailures int
	openedAt            time.Time
}

// New wraps inner with cfg's retry/circuit-breaker policy.
func New(inner backend.Backend, cfg Config) *Backend {
	if cfg.MaxRetries <= 0 {
		cfg.MaxRetries = 1
	}
	if cfg.FailureThreshold <= 0 {
		cfg.FailureThreshold = 5
	}
	if cfg.Cooldown <= 0 {
		cfg.Cooldown = 30 * time.Second
	}
	return &Backend{inner: inner, cfg: cfg}
}

func (b *Backend) allow() bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	switch b.state {
	case open:
		if time.Since(b.openedAt) >= b.cfg.Cooldown {
			b.state = halfOpen
			return true
		}
		return false
	default:
		return true
	}
}

func (b *Backend) recordResult(err error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if err == nil {
		b.consecutiveFailures = 0
		b.state = closed
		return
	}
	b.consecutiveFailures++
	if b.state == halfOpen || b.consecutiveFailures >= b.cfg.FailureThreshold {
		b.state = open
		b.openedAt = time.Now()
	}
}

func (b *Backend) withRetry(ctx context.Context, op string, fn func() error) error {
	if !b.allow() {
		return acorndberrors.New(acorndberrors.KindCircuitOpen, op, nil)
	}

	bo := backoff.WithContext(backoff.WithMaxRetries(backoff.NewExponentialBackOff(), uint64(b.cfg.MaxRetries-1)), ctx)
	err := backoff.Retry(func() error {
		e := fn()
		if e != nil {
			log.WithBackend("resilient").Warn().Err(e).Str("op", op).Msg("resilient backend attempt failed")
		}
		return e
	}, bo)

	b.recordResult(err)
	if err != nil {
		return acorndberrors.New(acorndberrors.KindBackendIO, op, err)
	}
	return nil
}

func (b *Backend) Save(ctx context.Context, id string, data []byte, meta backend.Meta) error {
	return b.withRetry(ctx, "resilient.Save", func() error {
		return b.inner.Save(ctx, id, data, meta)
	})
}

func (b *Backend) Load(ctx context.Context, id string) ([]byte, backend.Meta, bool, error) {
	if !b.allow() {
		if b.cfg.Fallback != nil {
			return b.cfg.Fallback.Load(ctx, id)
		}
		return nil, backend.Meta{}, false, acorndberrors.New(acorndberrors.KindCircuitOpen, "resilient.Load", nil)
	}

	var data []byte
	var meta backend.Meta
	var found bool
	err := b.withRetry(ctx, "resilient.Load", func() error {
		var e error
		data, meta, found, e = b.inner.Load(ctx, id)
		return e
	})
	if err != nil {
		if b.cfg.Fallback != nil {
			return b.cfg.Fallback.Load(ctx, id)
		}
		return nil, backend.Meta{}, false, err
	}
	return data, meta, found, nil
}

func (b *Backend) Delete(ctx context.Context, id string) error {
	return b.withRetry(ctx, "resilient.Delete", func() error {
		return b.inner.Delete(ctx, id)
	})
}

func (b *Backend) LoadAll(ctx context.Context) iter.Seq2[backend.Entry, error] {
	return b.inner.LoadAll(ctx)
}

func (b *Backend) ExportChanges(ctx context.Context) iter.Seq2[backend.Entry, error] {
	return b.inner.ExportChanges(ctx)
}

func (b *Backend) History(ctx context.Context, id string) ([]backend.Entry, error) {
	return b.inner.History(ctx, id)
}

func (b *Backend) Capabilities() backend.Capabilities {
	return b.inner.Capabilities()
}

func (b *Backend) Close() error {
	return b.inner.Close()
}
