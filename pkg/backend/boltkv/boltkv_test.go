package boltkv_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/cuemby/acorndb/pkg/backend"
	"github.com/cuemby/acorndb/pkg/backend/boltkv"
)

func openTestBackend(t *testing.T) *boltkv.Backend {
	t.Helper()
	b, err := boltkv.Open(t.TempDir())
	require.NoError(t, err)
	t.Cleanup(func() { _ = b.Close() })
	return b
}

func TestBoltSaveLoadRoundTrip(t *testing.T) {
	b := openTestBackend(t)
	ctx := context.Background()
	require.NoError(t, b.Save(ctx, "a", []byte("hello"), backend.Meta{Version: 2}))

	data, meta, ok, err := b.Load(ctx, "a")
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, "hello", string(data))
	assert.Equal(t, 2, meta.Version)
}

func TestBoltSurvivesReopen(t *testing.T) {
	dir := t.TempDir()
	b, err := boltkv.Open(dir)
	require.NoError(t, err)
	require.NoError(t, b.Save(context.Background(), "a", []byte("persisted"), backend.Meta{}))
	require.NoError(t, b.Close())

	reopened, err := boltkv.Open(dir)
	require.NoError(t, err)
	defer reopened.Close()

	data, _, ok, err := reopened.Load(context.Background(), "a")
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, "persisted", string(data))
}

func TestBoltDeleteRemovesEntry(t *testing.T) {
	b := openTestBackend(t)
	ctx := context.Background()
	require.NoError(t, b.Save(ctx, "a", []byte("x"), backend.Meta{}))
	require.NoError(t, b.Delete(ctx, "a"))
	_, _, ok, err := b.Load(ctx, "a")
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestBoltHistoryUnsupported(t *testing.T) {
	b := openTestBackend(t)
	_, err := b.History(context.Background(), "a")
	assert.Error(t, err)
}

func TestBoltCapabilitiesReportDurable(t *testing.T) {
	b := openTestBackend(t)
	assert.True(t, b.Capabilities().IsDurable)
}

func TestBoltExportChangesIteratesAll(t *testing.T) {
	b := openTestBackend(t)
	ctx := context.Background()
	require.NoError(t, b.Save(ctx, "a", []byte("1"), backend.Meta{}))
	require.NoError(t, b.Save(ctx, "b", []byte("2"), backend.Meta{}))

	seen := map[string]string{}
	for entry, err := range b.ExportChanges(ctx) {
		require.NoError(t, err)
		seen[entry.ID] = string(entry.Bytes)
	}
	assert.Equal(t, map[string]string{"a": "1", "b": "2"}, seen)
}
