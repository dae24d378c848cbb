// Package collection implements Collection[T], the generic per-type handle
// that wires together a Storage Backend, Root Pipeline, Cache Manager, TTL
// Manager, Index Manager, Query Planner, Conflict Judge, Replication Fabric,
// and Event Bus into the single engine an embedding application opens and
// calls Put/Get/Delete/Query against.
//
// Construction goes through Builder, then Open. The lock discipline: the
// cache, the Index Manager and the Replication Fabric (seen-change-id set,
// peer list) each guard their own state with their own lock. A
// Collection-level writeMu serializes each mutation across index
// validation and update, pipeline, backend write and cache update; readers
// do not take it. Subscriber callbacks and peer pushes run after writeMu is
// released.
package collection

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/cuemby/acorndb/pkg/acorndberrors"
	"github.com/cuemby/acorndb/pkg/backend"
	"github.com/cuemby/acorndb/pkg/cache"
	"github.com/cuemby/acorndb/pkg/conflict"
	"github.com/cuemby/acorndb/pkg/config"
	"github.com/cuemby/acorndb/pkg/events"
	"github.com/cuemby/acorndb/pkg/idextract"
	"github.com/cuemby/acorndb/pkg/index"
	"github.com/cuemby/acorndb/pkg/log"
	"github.com/cuemby/acorndb/pkg/metrics"
	"github.com/cuemby/acorndb/pkg/pipeline"
	"github.com/cuemby/acorndb/pkg/query"
	"github.com/cuemby/acorndb/pkg/record"
	"github.com/cuemby/acorndb/pkg/replication"
	"github.com/cuemby/acorndb/pkg/ttl"
)

// Stats is a snapshot of a Collection's current occupancy, useful for
// dashboards and the Verify/Rebuild diagnostics.
type Stats struct {
	CachedEntries  int
	IndexCount     int
	PeerCount      int
	CorruptSkipped int
}

// Collection is a typed document set with its backend, indexes, cache, TTL
// sweep, peers, and event bus.
type Collection[T any] struct {
	name   string
	nodeID string

	be       backend.Backend
	pipe     *pipeline.Pipeline
	cacheMgr *cache.Manager
	ttlMgr   *ttl.Manager
	indexes  *index.Manager
	planner  *query.Planner
	judge    conflict.Judge
	fabric   *replication.Fabric
	bus      *events.Bus[T]
	opts     config.Options

	// writeMu serializes writers: the unique-index validation, index
	// mutation, backend save, and cache insert of one Put/Delete/Squabble
	// form a single critical section, so two concurrent Puts can never
	// both pass a unique check before either mutates. Readers are not
	// blocked — they go through the cache manager's own lock.
	writeMu sync.Mutex

	// mu guards disposal state and the corrupt-record counter. It is
	// never held across Backend I/O, pipeline execution, peer push, or
	// subscriber callbacks.
	mu             sync.RWMutex
	disposed       bool
	corruptSkipped int
}

func open[T any](name string, be backend.Backend, pipe *pipeline.Pipeline, strategy cache.Strategy,
	judge conflict.Judge, opts config.Options) (*Collection[T], error) {

	if pipe == nil {
		pipe = pipeline.New(name)
	}
	if strategy == nil {
		strategy = cache.NoneStrategy{}
	}
	if judge == nil {
		judge = conflict.Timestamp
	}

	c := &Collection[T]{
		name:     name,
		nodeID:   opts.NodeID,
		be:       be,
		pipe:     pipe,
		cacheMgr: cache.New(name, strategy, opts.CacheMaxSize),
		indexes:  index.NewManager(name),
		judge:    judge,
		bus:      events.New[T](),
		opts:     opts,
	}
	c.cacheMgr.SetAutoEvictDisabled(opts.AutoEvictionDisabled)
	c.planner = query.NewPlanner(name, c.indexes, func() int { return c.cacheMgr.Len() })
	c.ttlMgr = ttl.New(name, opts.TTLSweepInterval, c.cacheMgr.All, c.expireForTTL)

	applier := &collectionApplier[T]{c: c}
	c.fabric = replication.New(name, opts.NodeID, opts.MaxHopCount, opts.SeenChangeIDCapacity, applier,
		c.exportSinceRecords, c.exportAllRecords)

	if err := c.loadFromBackend(context.Background()); err != nil {
		return nil, fmt.Errorf("collection %q: open: %w", name, err)
	}
	c.ttlMgr.Start()
	return c, nil
}

func (c *Collection[T]) loadFromBackend(ctx context.Context) error {
	for entry, err := range c.be.LoadAll(ctx) {
		if err != nil {
			c.mu.Lock()
			c.corruptSkipped++
			c.mu.Unlock()
			log.WithCollection(c.name).Debug().Msg("skipping corrupt record on load")
			continue
		}

		payload, perr := c.pipe.OnRead(pipeline.NewContext(pipeline.OpRead, entry.ID), entry.Bytes)
		if perr != nil {
			c.mu.Lock()
			c.corruptSkipped++
			c.mu.Unlock()
			continue
		}

		rec := metaToRecord(entry.ID, payload, entry.Meta)
		c.cacheMgr.Stash(entry.ID, rec)

		doc, derr := decodeDoc[T](payload)
		if derr != nil {
			continue
		}
		_ = c.indexes.OnPut(entry.ID, any(doc))
	}
	return nil
}

func metaToRecord(id string, payload []byte, meta backend.Meta) *record.Record {
	rec := &record.Record{
		ID:           id,
		Payload:      json.RawMessage(payload),
		Timestamp:    time.Unix(0, meta.Timestamp),
		Version:      meta.Version,
		ChangeID:     meta.ChangeID,
		OriginNodeID: meta.OriginNodeID,
		HopCount:     meta.HopCount,
	}
	if meta.ExpiresAt != 0 {
		t := time.Unix(0, meta.ExpiresAt)
		rec.ExpiresAt = &t
	}
	return rec
}

func recordToMeta(rec *record.Record) backend.Meta {
	m := backend.Meta{
		Timestamp:    rec.Timestamp.UnixNano(),
		Version:      rec.Version,
		ChangeID:     rec.ChangeID,
		OriginNodeID: rec.OriginNodeID,
		HopCount:     rec.HopCount,
	}
	if rec.ExpiresAt != nil {
		m.ExpiresAt = rec.ExpiresAt.UnixNano()
	}
	return m
}

func decodeDoc[T any](payload []byte) (T, error) {
	var v T
	err := json.Unmarshal(payload, &v)
	return v, err
}

// Put stores doc under an id extracted from its fields (or Identified
// implementation), writing through cache, backend, indexes, event bus, and
// any entangled peers.
func (c *Collection[T]) Put(ctx context.Context, doc T) (string, error) {
	id, err := extractID(doc)
	if err != nil {
		return "", err
	}
	return id, c.put(ctx, id, doc)
}

// PutWithID stores doc under an explicit id, bypassing id extraction. An
// empty or whitespace-only id is rejected.
func (c *Collection[T]) PutWithID(ctx context.Context, id string, doc T) error {
	if strings.TrimSpace(id) == "" {
		return acorndberrors.NewWithID(acorndberrors.KindInvalidID, "Collection.PutWithID", id, nil)
	}
	return c.put(ctx, id, doc)
}

func (c *Collection[T]) put(ctx context.Context, id string, doc T) error {
	if c.isDisposed() {
		return acorndberrors.New(acorndberrors.KindDisposed, "Collection.Put", nil)
	}

	payload, err := json.Marshal(doc)
	if err != nil {
		return acorndberrors.NewWithID(acorndberrors.KindInvalidID, "Collection.Put", id, err)
	}

	c.writeMu.Lock()
	version := 1
	if prior, ok := c.cacheMgr.Peek(id); ok {
		version = prior.Version + 1
	}

	rec := &record.Record{
		ID:           id,
		Payload:      payload,
		Timestamp:    time.Now(),
		Version:      version,
		ChangeID:     uuid.NewString(),
		OriginNodeID: c.nodeID,
		HopCount:     0,
	}

	err = c.commit(ctx, rec, any(doc), acorndberrors.KindPolicyDenied)
	c.writeMu.Unlock()
	if err != nil {
		return err
	}

	metrics.PutsTotal.WithLabelValues(c.name).Inc()
	c.bus.Publish(doc)
	c.fabric.PushPut(rec)
	return nil
}

// commit runs the write path shared by local Puts and accepted sync
// deliveries: index first (so a UniqueIndexViolation leaves cache and
// backend untouched), then pipeline + backend, then cache. The caller
// holds writeMu.
func (c *Collection[T]) commit(ctx context.Context, rec *record.Record, doc any, policyKind acorndberrors.Kind) error {
	if err := c.indexes.OnPut(rec.ID, doc); err != nil {
		return err
	}

	transformed, err := c.pipe.OnWrite(pipeline.NewContext(pipeline.OpWrite, rec.ID), rec.Payload)
	if err != nil {
		c.indexes.OnDelete(rec.ID)
		return acorndberrors.NewWithID(policyKind, "Collection.commit", rec.ID, err)
	}

	if err := c.be.Save(ctx, rec.ID, transformed, recordToMeta(rec)); err != nil {
		c.indexes.OnDelete(rec.ID)
		return acorndberrors.NewWithID(acorndberrors.KindBackendIO, "Collection.commit", rec.ID, err)
	}

	c.cacheMgr.Stash(rec.ID, rec)
	return nil
}

// Get returns the document stored under id, or ok=false if absent.
func (c *Collection[T]) Get(ctx context.Context, id string) (T, bool, error) {
	var zero T
	if rec, ok := c.cacheMgr.Crack(id); ok {
		if rec.Expired(time.Now()) {
			return zero, false, nil
		}
		doc, err := decodeDoc[T](rec.Payload)
		return doc, err == nil, err
	}

	data, meta, ok, err := c.be.Load(ctx, id)
	if err != nil {
		return zero, false, acorndberrors.NewWithID(acorndberrors.KindBackendIO, "Collection.Get", id, err)
	}
	if !ok {
		return zero, false, nil
	}

	payload, err := c.pipe.OnRead(pipeline.NewContext(pipeline.OpRead, id), data)
	if err != nil {
		return zero, false, acorndberrors.NewWithID(acorndberrors.KindCorrupt, "Collection.Get", id, err)
	}

	rec := metaToRecord(id, payload, meta)
	if rec.Expired(time.Now()) {
		return zero, false, nil
	}
	c.cacheMgr.Stash(id, rec)

	doc, err := decodeDoc[T](payload)
	return doc, err == nil, err
}

// Delete removes id. If propagate is true (the default for user-initiated
// deletes), the deletion is pushed to entangled peers.
func (c *Collection[T]) Delete(ctx context.Context, id string, propagate bool) error {
	if c.isDisposed() {
		return acorndberrors.New(acorndberrors.KindDisposed, "Collection.Delete", nil)
	}

	c.writeMu.Lock()
	existing, existed := c.cacheMgr.Peek(id)
	var doc T
	if existed {
		doc, _ = decodeDoc[T](existing.Payload)
	}

	if err := c.be.Delete(ctx, id); err != nil {
		c.writeMu.Unlock()
		return acorndberrors.NewWithID(acorndberrors.KindBackendIO, "Collection.Delete", id, err)
	}
	c.cacheMgr.Toss(id)
	c.indexes.OnDelete(id)
	c.writeMu.Unlock()
	metrics.DeletesTotal.WithLabelValues(c.name).Inc()

	if existed {
		c.bus.Publish(doc)
	}

	if propagate {
		changeID := uuid.NewString()
		c.fabric.PushDelete(id, changeID, c.nodeID, 0)
	}
	return nil
}

func (c *Collection[T]) expireForTTL(id string) error {
	return c.Delete(context.Background(), id, true)
}

// History returns every stored version of id, oldest first. Returns
// acorndberrors.Unsupported if the backend doesn't keep versions.
func (c *Collection[T]) History(ctx context.Context, id string) ([]T, error) {
	entries, err := c.be.History(ctx, id)
	if err != nil {
		return nil, err
	}
	out := make([]T, 0, len(entries))
	for _, e := range entries {
		payload, perr := c.pipe.OnRead(pipeline.NewContext(pipeline.OpRead, id), e.Bytes)
		if perr != nil {
			continue
		}
		doc, derr := decodeDoc[T](payload)
		if derr != nil {
			continue
		}
		out = append(out, doc)
	}
	return out, nil
}

// Squabble resolves a conflict between the locally stored version of id and
// an incoming candidate, storing and returning the winner. override, if
// non-empty, bypasses the Collection's default Judge for this call only.
func (c *Collection[T]) Squabble(ctx context.Context, id string, incoming T, override conflict.Judge) (T, error) {
	if strings.TrimSpace(id) == "" {
		var zero T
		return zero, acorndberrors.NewWithID(acorndberrors.KindInvalidID, "Collection.Squabble", id, nil)
	}
	payload, err := json.Marshal(incoming)
	if err != nil {
		var zero T
		return zero, acorndberrors.NewWithID(acorndberrors.KindInvalidID, "Collection.Squabble", id, err)
	}

	incomingRec := &record.Record{
		ID: id, Payload: payload, Timestamp: time.Now(),
		ChangeID: uuid.NewString(), OriginNodeID: c.nodeID,
	}

	judge := c.judge
	if override != nil {
		judge = override
	}

	c.writeMu.Lock()
	localRec, hadLocal := c.cacheMgr.Peek(id)
	winner := incomingRec
	if hadLocal {
		winner = judge(localRec, incomingRec)
	}

	doc, err := decodeDoc[T](winner.Payload)
	if err != nil {
		c.writeMu.Unlock()
		var zero T
		return zero, acorndberrors.NewWithID(acorndberrors.KindInvalidID, "Collection.Squabble", id, err)
	}

	version := 1
	if hadLocal {
		version = localRec.Version + 1
	}
	winner.Version = version

	err = c.commit(ctx, winner, any(doc), acorndberrors.KindConflict)
	c.writeMu.Unlock()
	if err != nil {
		var zero T
		return zero, err
	}
	metrics.ConflictsResolvedTotal.WithLabelValues(c.name, winnerLabel(winner, incomingRec)).Inc()
	c.bus.Publish(doc)
	c.fabric.PushPut(winner)
	return doc, nil
}

func winnerLabel(winner, incoming *record.Record) string {
	if winner == incoming {
		return "incoming"
	}
	return "local"
}

// ExportChanges returns every currently stored document. Expired records
// are logically absent and never exported.
func (c *Collection[T]) ExportChanges() ([]T, error) {
	now := time.Now()
	out := make([]T, 0, c.cacheMgr.Len())
	for _, rec := range c.cacheMgr.All() {
		if rec.Expired(now) {
			continue
		}
		doc, err := decodeDoc[T](rec.Payload)
		if err != nil {
			continue
		}
		out = append(out, doc)
	}
	return out, nil
}

// ExportSince returns every document whose timestamp is after t.
func (c *Collection[T]) ExportSince(t time.Time) ([]T, error) {
	now := time.Now()
	out := make([]T, 0)
	for _, rec := range c.cacheMgr.All() {
		if !rec.Timestamp.After(t) || rec.Expired(now) {
			continue
		}
		doc, err := decodeDoc[T](rec.Payload)
		if err != nil {
			continue
		}
		out = append(out, doc)
	}
	return out, nil
}

func (c *Collection[T]) exportAllRecords() ([]*record.Record, error) {
	now := time.Now()
	all := c.cacheMgr.All()
	out := make([]*record.Record, 0, len(all))
	for _, rec := range all {
		if rec.Expired(now) {
			continue
		}
		out = append(out, rec)
	}
	return out, nil
}

func (c *Collection[T]) exportSinceRecords(since time.Time) ([]*record.Record, error) {
	now := time.Now()
	var out []*record.Record
	for _, rec := range c.cacheMgr.All() {
		if rec.Timestamp.After(since) && !rec.Expired(now) {
			out = append(out, rec)
		}
	}
	return out, nil
}

// Entangle registers peer with this Collection's Replication Fabric.
func (c *Collection[T]) Entangle(peer *replication.Peer) {
	c.fabric.Entangle(peer)
}

// Detangle removes a peer by name.
func (c *Collection[T]) Detangle(name string) {
	c.fabric.Detangle(name)
}

// DetangleAll removes and disposes every entangled peer.
func (c *Collection[T]) DetangleAll() {
	c.fabric.DetangleAll()
}

// Shake pulls every accept-enabled peer's exported state and merges it
// through the same loop-prevention and conflict path inbound deliveries
// take, returning the number of records applied. Fetch failures are
// best-effort: logged and counted on the peer, never surfaced here.
func (c *Collection[T]) Shake() int {
	if c.isDisposed() {
		return 0
	}
	return c.fabric.Shake()
}

// EvictNow runs one cache eviction pass immediately, returning the count
// removed. Eviction only removes entries from the cache, not the backend.
func (c *Collection[T]) EvictNow() int {
	return c.cacheMgr.EvictNow()
}

// SetCacheStrategy atomically replaces the active eviction strategy. The
// outgoing strategy's access bookkeeping is not migrated.
func (c *Collection[T]) SetCacheStrategy(s cache.Strategy) {
	c.cacheMgr.SetStrategy(s)
}

// CleanupExpiredNow runs one TTL sweep immediately, returning the count of
// records removed.
func (c *Collection[T]) CleanupExpiredNow() int {
	return c.ttlMgr.CleanupNow()
}

// Subscribe registers cb to be called after every Put that changed state
// and every Delete of a record that existed.
func (c *Collection[T]) Subscribe(cb events.Callback[T]) {
	c.bus.Subscribe(cb)
}

// Indexes exposes the Index Manager so callers can register secondary
// indexes before the first Put.
func (c *Collection[T]) Indexes() *index.Manager {
	return c.indexes
}

// Planner exposes the Query Planner for Explain/Execute access, used by
// Query's fluent builder.
func (c *Collection[T]) Planner() *query.Planner {
	return c.planner
}

// Stats reports current occupancy.
func (c *Collection[T]) Stats() Stats {
	c.mu.RLock()
	corrupt := c.corruptSkipped
	c.mu.RUnlock()
	return Stats{
		CachedEntries:  c.cacheMgr.Len(),
		IndexCount:     len(c.indexes.All()) + 1,
		PeerCount:      len(c.fabric.Peers()),
		CorruptSkipped: corrupt,
	}
}

// Name returns the Collection's name.
func (c *Collection[T]) Name() string {
	return c.name
}

// NodeID returns the identifier this Collection stamps as origin on every
// local mutation.
func (c *Collection[T]) NodeID() string {
	return c.nodeID
}

// Verify walks the cache against the index set and reports invariant
// violations as human-readable strings, one per finding. It is a read-only
// diagnostic: nothing is repaired. An empty result means cache and indexes
// agree.
func (c *Collection[T]) Verify() []string {
	var findings []string

	all := c.cacheMgr.All()
	identity := c.indexes.Identity()
	for id := range all {
		if !identity.Contains(id) {
			findings = append(findings, fmt.Sprintf("cached id %q missing from identity index", id))
		}
	}
	for _, id := range identity.Sorted() {
		if _, ok := all[id]; !ok {
			findings = append(findings, fmt.Sprintf("identity index id %q not present in cache", id))
		}
	}
	for _, idx := range c.indexes.All() {
		if idx.State() == index.StateFailed {
			findings = append(findings, fmt.Sprintf("index %q is in the failed state", idx.Name()))
		}
		if idx.Len() > len(all) {
			findings = append(findings, fmt.Sprintf("index %q tracks %d ids but only %d are cached",
				idx.Name(), idx.Len(), len(all)))
		}
	}
	return findings
}

// Rebuild clears and repopulates every secondary index from the current
// cache contents, for recovery after a manual index definition change.
// Rebuild excludes concurrent writers for its duration.
func (c *Collection[T]) Rebuild() {
	c.writeMu.Lock()
	defer c.writeMu.Unlock()

	snapshot := make(map[string]any)
	for id, rec := range c.cacheMgr.All() {
		doc, err := decodeDoc[T](rec.Payload)
		if err != nil {
			continue
		}
		snapshot[id] = doc
	}
	c.indexes.RebuildAll(snapshot)
}

// Dispose cancels the TTL sweep, detaches every peer, and marks the
// Collection unusable for further writes.
func (c *Collection[T]) Dispose() error {
	c.mu.Lock()
	if c.disposed {
		c.mu.Unlock()
		return nil
	}
	c.disposed = true
	c.mu.Unlock()

	c.ttlMgr.Stop()
	c.DetangleAll()
	c.bus.Reset()
	return c.be.Close()
}

func (c *Collection[T]) isDisposed() bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.disposed
}

func extractID(doc any) (string, error) {
	return idextract.Extract(doc)
}
