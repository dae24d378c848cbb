package memory_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/cuemby/acorndb/pkg/acorndberrors"
	"github.com/cuemby/acorndb/pkg/backend"
	"github.com/cuemby/acorndb/pkg/backend/memory"
)

func TestSaveLoadRoundTrip(t *testing.T) {
	b := memory.New()
	ctx := context.Background()
	require.NoError(t, b.Save(ctx, "a", []byte("hello"), backend.Meta{Version: 1}))

	data, meta, ok, err := b.Load(ctx, "a")
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, "hello", string(data))
	assert.Equal(t, 1, meta.Version)
}

func TestLoadMissingReturnsNotOK(t *testing.T) {
	b := memory.New()
	_, _, ok, err := b.Load(context.Background(), "nope")
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestDeleteRemovesEntry(t *testing.T) {
	b := memory.New()
	ctx := context.Background()
	require.NoError(t, b.Save(ctx, "a", []byte("x"), backend.Meta{}))
	require.NoError(t, b.Delete(ctx, "a"))
	_, _, ok, err := b.Load(ctx, "a")
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestSaveCopiesInputBytes(t *testing.T) {
	b := memory.New()
	ctx := context.Background()
	buf := []byte("hello")
	require.NoError(t, b.Save(ctx, "a", buf, backend.Meta{}))
	buf[0] = 'X'

	data, _, _, err := b.Load(ctx, "a")
	require.NoError(t, err)
	assert.Equal(t, "hello", string(data), "backend must not alias caller's slice")
}

func TestLoadAllIteratesEveryEntry(t *testing.T) {
	b := memory.New()
	ctx := context.Background()
	require.NoError(t, b.Save(ctx, "a", []byte("1"), backend.Meta{}))
	require.NoError(t, b.Save(ctx, "b", []byte("2"), backend.Meta{}))

	seen := map[string]string{}
	for entry, err := range b.LoadAll(ctx) {
		require.NoError(t, err)
		seen[entry.ID] = string(entry.Bytes)
	}
	assert.Equal(t, map[string]string{"a": "1", "b": "2"}, seen)
}

func TestHistoryUnsupported(t *testing.T) {
	b := memory.New()
	_, err := b.History(context.Background(), "a")
	require.Error(t, err)
	kind, ok := acorndberrors.Of(err)
	require.True(t, ok)
	assert.Equal(t, acorndberrors.KindUnsupported, kind)
}

func TestCapabilitiesReportVolatile(t *testing.T) {
	b := memory.New()
	caps := b.Capabilities()
	assert.False(t, caps.IsDurable)
	assert.False(t, caps.SupportsHistory)
}
