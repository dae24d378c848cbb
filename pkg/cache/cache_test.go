package cache_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/cuemby/acorndb/pkg/cache"
	"github.com/cuemby/acorndb/pkg/record"
)

func rec(id string) *record.Record {
	return &record.Record{ID: id}
}

func TestNoneStrategyNeverEvicts(t *testing.T) {
	mgr := cache.New("t", cache.NoneStrategy{}, 2)
	for _, id := range []string{"a", "b", "c", "d"} {
		mgr.Stash(id, rec(id))
	}
	assert.Equal(t, 4, mgr.Len())
}

func TestStashAndCrackRoundTrip(t *testing.T) {
	mgr := cache.New("t", cache.NoneStrategy{}, 0)
	mgr.Stash("a", rec("a"))

	got, ok := mgr.Crack("a")
	require.True(t, ok)
	assert.Equal(t, "a", got.ID)

	_, ok = mgr.Crack("missing")
	assert.False(t, ok)
}

func TestTossRemovesEntry(t *testing.T) {
	mgr := cache.New("t", cache.NoneStrategy{}, 0)
	mgr.Stash("a", rec("a"))
	mgr.Toss("a")
	_, ok := mgr.Peek("a")
	assert.False(t, ok)
}

func TestPeekDoesNotCountAsHitOrMiss(t *testing.T) {
	mgr := cache.New("t", cache.NoneStrategy{}, 0)
	mgr.Stash("a", rec("a"))
	_, ok := mgr.Peek("a")
	assert.True(t, ok)
}

func TestLRUStrategyEvictsDownToNinetyPercent(t *testing.T) {
	mgr := cache.New("t", cache.NewLRUStrategy(), 10)
	for i := 0; i < 10; i++ {
		mgr.Stash(string(rune('a'+i)), rec(string(rune('a'+i))))
	}
	// Touch "a" so it's no longer the least-recently-used.
	mgr.Crack("a")

	mgr.Stash("k", rec("k")) // 11th entry triggers eviction
	assert.LessOrEqual(t, mgr.Len(), 9)

	_, ok := mgr.Peek("a")
	assert.True(t, ok, "recently touched entry should survive eviction")
}

func TestAutoEvictDisabledLeavesCacheOverCapacity(t *testing.T) {
	mgr := cache.New("t", cache.NewLRUStrategy(), 2)
	mgr.SetAutoEvictDisabled(true)
	mgr.Stash("a", rec("a"))
	mgr.Stash("b", rec("b"))
	mgr.Stash("c", rec("c"))
	assert.Equal(t, 3, mgr.Len())

	removed := mgr.EvictNow()
	assert.Equal(t, 1, removed)
	assert.Equal(t, 2, mgr.Len())
}

func TestAllReturnsSnapshotNotLiveView(t *testing.T) {
	mgr := cache.New("t", cache.NoneStrategy{}, 0)
	mgr.Stash("a", rec("a"))
	snap := mgr.All()
	mgr.Stash("b", rec("b"))
	_, ok := snap["b"]
	assert.False(t, ok)
}
