// Package config holds Collection-level configuration, built with
// functional options over a Default() baseline rather than an
// env/file-driven loader. AcornDB is an embedded library, so the embedding
// application owns whatever file/flag/env parsing it wants and hands the
// result to these options.
package config

import "time"

// Options collects the tunables a Collection needs at Open time.
type Options struct {
	// NodeID identifies this process in the replication mesh. Required for
	// any Collection that will be entangled with peers.
	NodeID string

	// TTLSweepInterval is how often the TTL Manager scans for expired
	// records. Defaults to 60s.
	TTLSweepInterval time.Duration

	// MaxHopCount bounds peer-to-peer relays of one mutation. Defaults to 10.
	MaxHopCount int

	// CacheMaxSize is the strategy's max size trigger. 0 means unbounded
	// (equivalent to the None strategy regardless of the strategy chosen).
	CacheMaxSize int

	// AutoEvictionDisabled turns off strategy-driven eviction on Put,
	// leaving only explicit EvictNow calls. Useful for tests.
	AutoEvictionDisabled bool

	// SeenChangeIDCapacity bounds the FIFO+set used for mesh loop
	// prevention. Defaults to 1000.
	SeenChangeIDCapacity int
}

// Option mutates Options.
type Option func(*Options)

// Default returns the baseline Options.
func Default() Options {
	return Options{
		TTLSweepInterval:     60 * time.Second,
		MaxHopCount:          10,
		SeenChangeIDCapacity: 1000,
	}
}

// WithNodeID sets the node identifier used to stamp and filter replicated
// mutations.
func WithNodeID(id string) Option {
	return func(o *Options) { o.NodeID = id }
}

// WithTTLSweepInterval overrides the TTL sweep period.
func WithTTLSweepInterval(d time.Duration) Option {
	return func(o *Options) { o.TTLSweepInterval = d }
}

// WithMaxHopCount overrides the replication hop ceiling.
func WithMaxHopCount(n int) Option {
	return func(o *Options) { o.MaxHopCount = n }
}

// WithCacheMaxSize sets the cache strategy's size trigger.
func WithCacheMaxSize(n int) Option {
	return func(o *Options) { o.CacheMaxSize = n }
}

// WithAutoEvictionDisabled disables strategy-driven eviction on Put.
func WithAutoEvictionDisabled(disabled bool) Option {
	return func(o *Options) { o.AutoEvictionDisabled = disabled }
}

// WithSeenChangeIDCapacity overrides the mesh dedup set's capacity.
func WithSeenChangeIDCapacity(n int) Option {
	return func(o *Options) { o.SeenChangeIDCapacity = n }
}

// Apply builds an Options value from Default() plus opts, in order.
func Apply(opts ...Option) Options {
	o := Default()
	for _, opt := range opts {
		opt(&o)
	}
	return o
}
