package walog_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/cuemby/acorndb/pkg/backend"
	"github.com/cuemby/acorndb/pkg/backend/walog"
)

func openTestBackend(t *testing.T) *walog.Backend {
	t.Helper()
	b, err := walog.Open(t.TempDir())
	require.NoError(t, err)
	t.Cleanup(func() { _ = b.Close() })
	return b
}

func TestWalogSaveLoadRoundTrip(t *testing.T) {
	b := openTestBackend(t)
	ctx := context.Background()
	require.NoError(t, b.Save(ctx, "k", []byte("hello"), backend.Meta{Version: 2}))

	data, meta, ok, err := b.Load(ctx, "k")
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, "hello", string(data))
	assert.Equal(t, 2, meta.Version)
}

func TestWalogDeleteSupersedesPriorStash(t *testing.T) {
	b := openTestBackend(t)
	ctx := context.Background()
	require.NoError(t, b.Save(ctx, "k", []byte("v1"), backend.Meta{Version: 1}))
	require.NoError(t, b.Delete(ctx, "k"))

	_, _, ok, err := b.Load(ctx, "k")
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestWalogHistoryPreservesInsertionOrderExcludingDeletes(t *testing.T) {
	b := openTestBackend(t)
	ctx := context.Background()
	require.NoError(t, b.Save(ctx, "k", []byte("v1"), backend.Meta{Version: 1}))
	require.NoError(t, b.Save(ctx, "k", []byte("v2"), backend.Meta{Version: 2}))
	require.NoError(t, b.Delete(ctx, "k"))
	require.NoError(t, b.Save(ctx, "k", []byte("v3"), backend.Meta{Version: 3}))

	hist, err := b.History(ctx, "k")
	require.NoError(t, err)
	require.Len(t, hist, 3)
	assert.Equal(t, "v1", string(hist[0].Bytes))
	assert.Equal(t, "v2", string(hist[1].Bytes))
	assert.Equal(t, "v3", string(hist[2].Bytes))
}

func TestWalogReplaysLogOnReopen(t *testing.T) {
	dir := t.TempDir()
	b, err := walog.Open(dir)
	require.NoError(t, err)
	ctx := context.Background()
	require.NoError(t, b.Save(ctx, "a", []byte("1"), backend.Meta{Version: 1}))
	require.NoError(t, b.Save(ctx, "b", []byte("2"), backend.Meta{Version: 1}))
	require.NoError(t, b.Delete(ctx, "a"))
	require.NoError(t, b.Close())

	reopened, err := walog.Open(dir)
	require.NoError(t, err)
	defer reopened.Close()

	_, _, ok, err := reopened.Load(ctx, "a")
	require.NoError(t, err)
	assert.False(t, ok, "deleted id must stay absent after replay")

	data, _, ok, err := reopened.Load(ctx, "b")
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, "2", string(data))
}

func TestWalogCapabilitiesAdvertiseHistoryAndDurability(t *testing.T) {
	b := openTestBackend(t)
	caps := b.Capabilities()
	assert.True(t, caps.SupportsHistory)
	assert.True(t, caps.SupportsSync)
	assert.True(t, caps.IsDurable)
	assert.Equal(t, "walog", caps.TrunkKind)
}

func TestWalogCompactKeepsOnlyLatestNonDeletePerID(t *testing.T) {
	dir := t.TempDir()
	b, err := walog.Open(dir)
	require.NoError(t, err)
	ctx := context.Background()
	require.NoError(t, b.Save(ctx, "k", []byte("v1"), backend.Meta{Version: 1}))
	require.NoError(t, b.Save(ctx, "k", []byte("v2"), backend.Meta{Version: 2}))
	require.NoError(t, b.Compact())
	require.NoError(t, b.Close())

	reopened, err := walog.Open(dir)
	require.NoError(t, err)
	defer reopened.Close()

	data, _, ok, err := reopened.Load(ctx, "k")
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, "v2", string(data))

	hist, err := reopened.History(ctx, "k")
	require.NoError(t, err)
	assert.Len(t, hist, 1, "compaction collapses history to the latest entry")
}

func TestWalogExportChangesIteratesCurrentStateOnly(t *testing.T) {
	b := openTestBackend(t)
	ctx := context.Background()
	require.NoError(t, b.Save(ctx, "a", []byte("1"), backend.Meta{}))
	require.NoError(t, b.Save(ctx, "b", []byte("2"), backend.Meta{}))
	require.NoError(t, b.Delete(ctx, "a"))

	seen := map[string]string{}
	for entry, err := range b.ExportChanges(ctx) {
		require.NoError(t, err)
		seen[entry.ID] = string(entry.Bytes)
	}
	assert.Equal(t, map[string]string{"b": "2"}, seen)
}
