package cache_test

import (
	"context"
	"testing"
	"time"

	"github.com/enlacemx/recordkit/internal/cache"
	"github.com/stretchr/testify/require"
)

func TestMemoryStore_SetGet(t *testing.T) {
	t.Parallel()

	store := cache.NewMemoryStore()
	ctx := context.Background()

	err := store.Set(ctx, "d-abc-f--10", []byte(`{"status":true}`), time.Minute)
	require.NoError(t, err)

	value, ok, err := store.Get(ctx, "d-abc-f--10")
	require.NoError(t, err)
	require.True(t, ok)
	require.JSONEq(t, `{"status":true}`, string(value))
}

func TestMemoryStore_GetMissingKey(t *testing.T) {
	t.Parallel()

	store := cache.NewMemoryStore()

	value, ok, err := store.Get(context.Background(), "missing")
	require.NoError(t, err)
	require.False(t, ok)
	require.Nil(t, value)
}

func TestMemoryStore_Expiry(t *testing.T) {
	t.Parallel()

	store := cache.NewMemoryStore()
	ctx := context.Background()

	require.NoError(t, store.Set(ctx, "ephemeral", []byte("x"), time.Millisecond))

	time.Sleep(5 * time.Millisecond)

	_, ok, err := store.Get(ctx, "ephemeral")
	require.NoError(t, err)
	require.False(t, ok)
}

func TestMemoryStore_ZeroTTLNeverExpires(t *testing.T) {
	t.Parallel()

	store := cache.NewMemoryStore()
	ctx := context.Background()

	require.NoError(t, store.Set(ctx, "pinned", []byte("x"), 0))

	_, ok, err := store.Get(ctx, "pinned")
	require.NoError(t, err)
	require.True(t, ok)
}

func TestMemoryStore_ClearByPrefix(t *testing.T) {
	t.Parallel()

	store := cache.NewMemoryStore()
	ctx := context.Background()

	require.NoError(t, store.Set(ctx, "clients:page-1", []byte("a"), time.Minute))
	require.NoError(t, store.Set(ctx, "clients:page-2", []byte("b"), time.Minute))
	require.NoError(t, store.Set(ctx, "invoices:page-1", []byte("c"), time.Minute))

	require.NoError(t, store.Clear(ctx, "clients:"))

	_, ok, _ := store.Get(ctx, "clients:page-1")
	require.False(t, ok)
	_, ok, _ = store.Get(ctx, "clients:page-2")
	require.False(t, ok)
	_, ok, _ = store.Get(ctx, "invoices:page-1")
	require.True(t, ok)
}

func TestMemoryStore_ClearAll(t *testing.T) {
	t.Parallel()

	store := cache.NewMemoryStore()
	ctx := context.Background()

	require.NoError(t, store.Set(ctx, "a", []byte("1"), time.Minute))
	require.NoError(t, store.Set(ctx, "b", []byte("2"), time.Minute))

	require.NoError(t, store.Clear(ctx, ""))
	require.Zero(t, store.Len())
}

func TestMemoryStore_CopiesValues(t *testing.T) {
	t.Parallel()

	store := cache.NewMemoryStore()
	ctx := context.Background()

	original := []byte("immutable")
	require.NoError(t, store.Set(ctx, "k", original, time.Minute))

	original[0] = 'X'

	value, ok, err := store.Get(ctx, "k")
	require.NoError(t, err)
	require.True(t, ok)
	require.Equal(t, "immutable", string(value))
}
