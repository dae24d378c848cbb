package collection

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/cuemby/acorndb/pkg/acorndberrors"
	"github.com/cuemby/acorndb/pkg/backend/memory"
	"github.com/cuemby/acorndb/pkg/cache"
	"github.com/cuemby/acorndb/pkg/config"
	"github.com/cuemby/acorndb/pkg/conflict"
	"github.com/cuemby/acorndb/pkg/index"
	"github.com/cuemby/acorndb/pkg/query"
	"github.com/cuemby/acorndb/pkg/replication"
)

type widget struct {
	ID    string
	Name  string
	Price int
}

func openWidgets(t *testing.T, opts ...config.Option) *Collection[widget] {
	t.Helper()
	col, err := New[widget]("widgets", memory.New()).WithOptions(opts...).Open()
	require.NoError(t, err)
	t.Cleanup(func() { _ = col.Dispose() })
	return col
}

func TestPutAndGetRoundTrip(t *testing.T) {
	col := openWidgets(t)
	ctx := context.Background()

	id, err := col.Put(ctx, widget{ID: "w-1", Name: "widget one", Price: 10})
	require.NoError(t, err)
	assert.Equal(t, "w-1", id)

	got, ok, err := col.Get(ctx, "w-1")
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, "widget one", got.Name)
}

func TestGetMissingReturnsNotOK(t *testing.T) {
	col := openWidgets(t)
	_, ok, err := col.Get(context.Background(), "nope")
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestPutRejectsDocumentWithoutID(t *testing.T) {
	type noID struct{ Name string }
	col, err := New[noID]("anon", memory.New()).Open()
	require.NoError(t, err)
	defer col.Dispose()

	_, err = col.Put(context.Background(), noID{Name: "x"})
	require.Error(t, err)
	kind, ok := acorndberrors.Of(err)
	require.True(t, ok)
	assert.Equal(t, acorndberrors.KindIDExtractionUnavailable, kind)
}

func TestPutWithIDRejectsWhitespaceOnlyID(t *testing.T) {
	col := openWidgets(t)
	for _, id := range []string{"", " ", "\t ", "\n"} {
		err := col.PutWithID(context.Background(), id, widget{Name: "x"})
		require.Error(t, err, "id %q", id)
		kind, ok := acorndberrors.Of(err)
		require.True(t, ok)
		assert.Equal(t, acorndberrors.KindInvalidID, kind)
	}
	assert.Equal(t, 0, col.Stats().CachedEntries)
}

func TestSquabbleRejectsWhitespaceOnlyID(t *testing.T) {
	col := openWidgets(t)
	_, err := col.Squabble(context.Background(), "  ", widget{Name: "x"}, nil)
	require.Error(t, err)
	kind, ok := acorndberrors.Of(err)
	require.True(t, ok)
	assert.Equal(t, acorndberrors.KindInvalidID, kind)
}

func TestDeleteRemovesRecordAndFiresEvent(t *testing.T) {
	col := openWidgets(t)
	ctx := context.Background()
	_, err := col.Put(ctx, widget{ID: "w-1", Name: "one"})
	require.NoError(t, err)

	var deleted widget
	col.Subscribe(func(doc widget) { deleted = doc })

	require.NoError(t, col.Delete(ctx, "w-1", true))
	_, ok, _ := col.Get(ctx, "w-1")
	assert.False(t, ok)
	assert.Equal(t, "w-1", deleted.ID)
}

func TestDeleteOfAbsentIDDoesNotFireEvent(t *testing.T) {
	col := openWidgets(t)
	fired := false
	col.Subscribe(func(doc widget) { fired = true })
	require.NoError(t, col.Delete(context.Background(), "missing", true))
	assert.False(t, fired)
}

func TestUniqueIndexViolationLeavesCollectionUnchanged(t *testing.T) {
	col := openWidgets(t)
	ctx := context.Background()

	uniqName := index.NewScalarIndex[string]("IX_Widget_Name", "Name",
		func(doc any) (string, bool) {
			w, ok := doc.(widget)
			if !ok {
				return "", false
			}
			return w.Name, true
		},
		func(a, b string) bool { return a < b },
		index.WithUnique[string](),
	)
	col.Indexes().Register(uniqName)

	_, err := col.Put(ctx, widget{ID: "w-1", Name: "dup"})
	require.NoError(t, err)

	_, err = col.Put(ctx, widget{ID: "w-2", Name: "dup"})
	require.Error(t, err)
	kind, ok := acorndberrors.Of(err)
	require.True(t, ok)
	assert.Equal(t, acorndberrors.KindUniqueIndexViolation, kind)

	_, ok, _ = col.Get(ctx, "w-2")
	assert.False(t, ok, "rejected put must not leave a cache entry")
}

func TestSquabbleTimestampJudgeDefault(t *testing.T) {
	col := openWidgets(t)
	ctx := context.Background()

	_, err := col.Put(ctx, widget{ID: "w-1", Name: "old", Price: 1})
	require.NoError(t, err)
	time.Sleep(2 * time.Millisecond)

	winner, err := col.Squabble(ctx, "w-1", widget{ID: "w-1", Name: "new", Price: 2}, nil)
	require.NoError(t, err)
	assert.Equal(t, "new", winner.Name)

	got, _, _ := col.Get(ctx, "w-1")
	assert.Equal(t, "new", got.Name)
}

func TestSquabbleOverridePreferLocal(t *testing.T) {
	col := openWidgets(t)
	ctx := context.Background()
	_, err := col.Put(ctx, widget{ID: "w-1", Name: "old"})
	require.NoError(t, err)
	time.Sleep(2 * time.Millisecond)

	winner, err := col.Squabble(ctx, "w-1", widget{ID: "w-1", Name: "new"}, conflict.PreferLocal)
	require.NoError(t, err)
	assert.Equal(t, "old", winner.Name)
}

func TestEvictNowOnlyTouchesCache(t *testing.T) {
	col, err := New[widget]("widgets", memory.New()).
		WithCacheStrategy(cache.NewLRUStrategy()).
		WithOptions(config.WithCacheMaxSize(2)).
		Open()
	require.NoError(t, err)
	t.Cleanup(func() { _ = col.Dispose() })
	ctx := context.Background()
	for i := 0; i < 5; i++ {
		_, err := col.Put(ctx, widget{ID: string(rune('a' + i)), Name: "x"})
		require.NoError(t, err)
	}
	assert.LessOrEqual(t, col.Stats().CachedEntries, 2)

	// Evicted entries still load from the backend.
	_, ok, err := col.Get(ctx, "a")
	require.NoError(t, err)
	assert.True(t, ok)
}

func TestCleanupExpiredNowRemovesPastExpiry(t *testing.T) {
	col := openWidgets(t)
	ctx := context.Background()
	id, err := col.Put(ctx, widget{ID: "w-1", Name: "temp"})
	require.NoError(t, err)

	past := time.Now().Add(-time.Hour)
	rec, ok := col.cacheMgr.Peek(id)
	require.True(t, ok)
	rec.ExpiresAt = &past

	n := col.CleanupExpiredNow()
	assert.Equal(t, 1, n)
	_, ok, _ = col.Get(ctx, id)
	assert.False(t, ok)
}

func TestEntangleReplicatesPutToPeer(t *testing.T) {
	ctx := context.Background()
	a, err := New[widget]("widgets", memory.New()).WithOptions(config.WithNodeID("node-a")).Open()
	require.NoError(t, err)
	defer a.Dispose()
	b, err := New[widget]("widgets", memory.New()).WithOptions(config.WithNodeID("node-b")).Open()
	require.NoError(t, err)
	defer b.Dispose()

	replication.Mesh([]replication.Node{
		{Name: "node-a", Fabric: aFabric(a)},
		{Name: "node-b", Fabric: aFabric(b)},
	}, replication.Bidirectional)

	_, err = a.Put(ctx, widget{ID: "w-1", Name: "from-a"})
	require.NoError(t, err)

	got, ok, err := b.Get(ctx, "w-1")
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, "from-a", got.Name)
}

func aFabric[T any](c *Collection[T]) *replication.Fabric {
	return c.fabric
}

func TestQueryWithScalarIndexSeeksRatherThanScans(t *testing.T) {
	col := openWidgets(t)
	ctx := context.Background()

	priceIdx := index.NewScalarIndex[int]("IX_Widget_Price", "Price",
		func(doc any) (int, bool) {
			w, ok := doc.(widget)
			if !ok {
				return 0, false
			}
			return w.Price, true
		},
		func(a, b int) bool { return a < b },
	)
	col.Indexes().Register(priceIdx)

	_, _ = col.Put(ctx, widget{ID: "w-1", Name: "cheap", Price: 5})
	_, _ = col.Put(ctx, widget{ID: "w-2", Name: "mid", Price: 10})
	_, _ = col.Put(ctx, widget{ID: "w-3", Name: "also-mid", Price: 10})

	results, err := col.Query().Where(query.Cmp{
		Property: "Price",
		Get:      func(doc any) any { return doc.(widget).Price },
		Op:       query.OpEqual,
		Value:    10,
		Compare:  func(a, b any) int { return a.(int) - b.(int) },
	}).Run()
	require.NoError(t, err)
	assert.Len(t, results, 2)

	plan := col.Query().Where(query.Cmp{
		Property: "Price", Op: query.OpEqual, Value: 10,
		Get:     func(doc any) any { return doc.(widget).Price },
		Compare: func(a, b any) int { return a.(int) - b.(int) },
	}).Explain()
	assert.Equal(t, query.IndexSeek, plan.Strategy)
	assert.Equal(t, "IX_Widget_Price", plan.IndexName)
}

func TestHistoryUnsupportedOnMemoryBackend(t *testing.T) {
	col := openWidgets(t)
	_, err := col.Put(context.Background(), widget{ID: "w-1", Name: "x"})
	require.NoError(t, err)

	_, err = col.History(context.Background(), "w-1")
	require.Error(t, err)
	assert.True(t, errors.Is(err, acorndberrors.Unsupported))
}

func TestDisposeStopsFurtherUseOfSweepAndPeers(t *testing.T) {
	col := openWidgets(t)
	require.NoError(t, col.Dispose())
	require.NoError(t, col.Dispose()) // idempotent
}
