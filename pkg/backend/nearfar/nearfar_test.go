package nearfar_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/cuemby/acorndb/pkg/backend"
	"github.com/cuemby/acorndb/pkg/backend/memory"
	"github.com/cuemby/acorndb/pkg/backend/nearfar"
)

func TestNearFarWritesThroughToBoth(t *testing.T) {
	near, far := memory.New(), memory.New()
	b := nearfar.New(near, far)
	ctx := context.Background()

	require.NoError(t, b.Save(ctx, "k", []byte("v"), backend.Meta{Version: 1}))

	_, _, ok, err := near.Load(ctx, "k")
	require.NoError(t, err)
	assert.True(t, ok, "near must receive the write")

	_, _, ok, err = far.Load(ctx, "k")
	require.NoError(t, err)
	assert.True(t, ok, "far must receive the write")
}

func TestNearFarReadPromotesFarOnlyEntryIntoNear(t *testing.T) {
	near, far := memory.New(), memory.New()
	ctx := context.Background()
	require.NoError(t, far.Save(ctx, "k", []byte("far-only"), backend.Meta{}))

	b := nearfar.New(near, far)
	data, _, ok, err := b.Load(ctx, "k")
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, "far-only", string(data))

	promoted, _, ok, err := near.Load(ctx, "k")
	require.NoError(t, err)
	require.True(t, ok, "far hit must promote into near")
	assert.Equal(t, "far-only", string(promoted))
}

func TestNearFarLoadMissingFromBothReturnsNotOK(t *testing.T) {
	b := nearfar.New(memory.New(), memory.New())
	_, _, ok, err := b.Load(context.Background(), "missing")
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestNearFarDeleteRemovesFromBoth(t *testing.T) {
	near, far := memory.New(), memory.New()
	b := nearfar.New(near, far)
	ctx := context.Background()
	require.NoError(t, b.Save(ctx, "k", []byte("v"), backend.Meta{}))
	require.NoError(t, b.Delete(ctx, "k"))

	_, _, ok, _ := near.Load(ctx, "k")
	assert.False(t, ok)
	_, _, ok, _ = far.Load(ctx, "k")
	assert.False(t, ok)
}

func TestNearFarCapabilitiesCombineNearAndFar(t *testing.T) {
	b := nearfar.New(memory.New(), memory.New())
	caps := b.Capabilities()
	assert.Contains(t, caps.TrunkKind, "nearfar(")
	assert.False(t, caps.IsDurable, "memory far is not durable")
}
