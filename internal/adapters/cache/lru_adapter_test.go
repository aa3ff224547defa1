package cache

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLRUAdapter_SetGet(t *testing.T) {
	adapter, err := NewLRUAdapter(16)
	require.NoError(t, err)
	ctx := context.Background()

	require.NoError(t, adapter.Set(ctx, "k1", []byte("v1"), 60))

	got, err := adapter.Get(ctx, "k1")
	require.NoError(t, err)
	assert.Equal(t, []byte("v1"), got)

	exists, err := adapter.Exists(ctx, "k1")
	require.NoError(t, err)
	assert.True(t, exists)
}

func TestLRUAdapter_MissAndDelete(t *testing.T) {
	adapter, err := NewLRUAdapter(16)
	require.NoError(t, err)
	ctx := context.Background()

	_, err = adapter.Get(ctx, "missing")
	assert.Error(t, err)

	require.NoError(t, adapter.Set(ctx, "k1", []byte("v1"), 60))
	require.NoError(t, adapter.Delete(ctx, "k1"))

	exists, err := adapter.Exists(ctx, "k1")
	require.NoError(t, err)
	assert.False(t, exists)
}

func TestLRUAdapter_Expiry(t *testing.T) {
	adapter, err := NewLRUAdapter(16)
	require.NoError(t, err)
	ctx := context.Background()

	require.NoError(t, adapter.Set(ctx, "k1", []byte("v1"), 60))
	lruCache := adapter.(*LRUAdapter)
	lruCache.cache.Add("k1", lruEntry{value: []byte("v1"), expiresAt: time.Now().Add(-time.Second)})

	_, err = adapter.Get(ctx, "k1")
	assert.Error(t, err)
}

func TestLRUAdapter_Eviction(t *testing.T) {
	adapter, err := NewLRUAdapter(2)
	require.NoError(t, err)
	ctx := context.Background()

	require.NoError(t, adapter.Set(ctx, "k1", []byte("v1"), 0))
	require.NoError(t, adapter.Set(ctx, "k2", []byte("v2"), 0))
	require.NoError(t, adapter.Set(ctx, "k3", []byte("v3"), 0))

	exists, err := adapter.Exists(ctx, "k1")
	require.NoError(t, err)
	assert.False(t, exists)

	exists, err = adapter.Exists(ctx, "k3")
	require.NoError(t, err)
	assert.True(t, exists)
}
