// Package ttl implements the TTL Manager: a periodic sweep that deletes
// cache entries whose expires_at has passed. The background task is a
// goroutine selecting on a ticker and a stop channel, restartable on
// interval change, started and stopped explicitly by its owner rather than
// tied to the process lifetime.
package ttl

import (
	"sync"
	"time"

	"github.com/cuemby/acorndb/pkg/log"
	"github.com/cuemby/acorndb/pkg/metrics"
	"github.com/cuemby/acorndb/pkg/record"
)

// Snapshot returns the current cache contents, id to record.
type Snapshot func() map[string]*record.Record

// Expire is invoked for each id whose record has passed expiry. It should
// perform the same removal a caller-initiated Delete would.
type Expire func(id string) error

// Manager owns the periodic expiry sweep for one Collection.
type Manager struct {
	collection string
	snapshot   Snapshot
	expire     Expire

	mu       sync.Mutex
	interval time.Duration
	enabled  bool
	stopCh   chan struct{}
	running  bool
}

// New builds a Manager with the given sweep interval (default 60s if <= 0),
// reading the working set via snapshot and removing expired ids via expire.
func New(collection string, interval time.Duration, snapshot Snapshot, expire Expire) *Manager {
	if interval <= 0 {
		interval = 60 * time.Second
	}
	return &Manager{
		collection: collection,
		snapshot:   snapshot,
		expire:     expire,
		interval:   interval,
		enabled:    true,
	}
}

// Start begins the periodic sweep goroutine. Calling Start while already
// running is a no-op.
func (m *Manager) Start() {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.running {
		return
	}
	m.stopCh = make(chan struct{})
	m.running = true
	go m.run(m.stopCh, m.interval)
}

// Stop halts the sweep goroutine. Calling Stop while not running is a no-op.
func (m *Manager) Stop() {
	m.mu.Lock()
	defer m.mu.Unlock()
	if !m.running {
		return
	}
	close(m.stopCh)
	m.running = false
}

func (m *Manager) run(stopCh chan struct{}, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			if n := m.CleanupNow(); n > 0 {
				log.WithComponent("ttl").Debug().Str("collection", m.collection).Int("count", n).Msg("ttl sweep removed expired records")
			}
		case <-stopCh:
			return
		}
	}
}

// SetInterval changes the sweep interval, restarting the background task if
// it is currently running.
func (m *Manager) SetInterval(interval time.Duration) {
	if interval <= 0 {
		interval = 60 * time.Second
	}

	m.mu.Lock()
	m.interval = interval
	wasRunning := m.running
	if wasRunning {
		close(m.stopCh)
		m.running = false
	}
	m.mu.Unlock()

	if wasRunning {
		m.Start()
	}
}

// SetEnabled toggles whether CleanupNow (and therefore the periodic sweep)
// actually removes anything; disabling leaves the background goroutine
// running but idle, useful for tests that want deterministic control.
func (m *Manager) SetEnabled(enabled bool) {
	m.mu.Lock()
	m.enabled = enabled
	m.mu.Unlock()
}

// ExpiringWithin returns the ids whose expires_at falls within delta of now,
// excluding records with no expiry.
func (m *Manager) ExpiringWithin(delta time.Duration) []string {
	cutoff := time.Now().Add(delta)
	var ids []string
	for id, rec := range m.snapshot() {
		if rec.ExpiresAt != nil && !rec.ExpiresAt.After(cutoff) {
			ids = append(ids, id)
		}
	}
	return ids
}

// CleanupNow scans the cache immediately and expires every record whose
// expires_at has already passed, returning the number removed. A record
// with a nil expires_at is never removed by this pass.
func (m *Manager) CleanupNow() int {
	m.mu.Lock()
	enabled := m.enabled
	m.mu.Unlock()
	if !enabled {
		return 0
	}

	now := time.Now()
	removed := 0
	for id, rec := range m.snapshot() {
		if rec.ExpiresAt == nil || !rec.Expired(now) {
			continue
		}
		if err := m.expire(id); err != nil {
			log.WithComponent("ttl").Warn().Err(err).Str("collection", m.collection).Str("id", id).Msg("ttl expire failed")
			continue
		}
		removed++
	}
	if removed > 0 {
		metrics.TTLExpiredTotal.WithLabelValues(m.collection).Add(float64(removed))
	}
	return removed
}
