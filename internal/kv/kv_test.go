package kv_test

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	miniredis "github.com/alicebob/miniredis/v2"
	redis "github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/toko-cart/internal/kv"
)

func exerciseStore(t *testing.T, store kv.Store) {
	t.Helper()
	ctx := context.Background()

	require.NoError(t, store.Ping(ctx))

	_, ok, err := store.Get(ctx, "missing")
	require.NoError(t, err)
	require.False(t, ok)

	require.NoError(t, store.Set(ctx, "s1:cart", []byte(`[["Pizza",{"price":9.99,"quantity":1}]]`)))
	got, ok, err := store.Get(ctx, "s1:cart")
	require.NoError(t, err)
	require.True(t, ok)
	require.JSONEq(t, `[["Pizza",{"price":9.99,"quantity":1}]]`, string(got))

	require.NoError(t, store.Set(ctx, "s1:cart", []byte(`[]`)))
	got, ok, err = store.Get(ctx, "s1:cart")
	require.NoError(t, err)
	require.True(t, ok)
	require.Equal(t, "[]", string(got))

	require.NoError(t, store.Delete(ctx, "s1:cart"))
	_, ok, err = store.Get(ctx, "s1:cart")
	require.NoError(t, err)
	require.False(t, ok)
}

func TestMemoryStore(t *testing.T) {
	exerciseStore(t, kv.NewMemory(0))
}

func TestMemoryStoreQuota(t *testing.T) {
	ctx := context.Background()
	store := kv.NewMemory(8)

	require.NoError(t, store.Set(ctx, "a", []byte("1234")))
	require.NoError(t, store.Set(ctx, "a", []byte("12345678")))
	require.ErrorIs(t, store.Set(ctx, "b", []byte("x")), kv.ErrQuotaExceeded)

	require.NoError(t, store.Delete(ctx, "a"))
	require.NoError(t, store.Set(ctx, "b", []byte("x")))
}

func TestMemoryStoreCopiesValues(t *testing.T) {
	ctx := context.Background()
	store := kv.NewMemory(0)
	value := []byte("abc")
	require.NoError(t, store.Set(ctx, "k", value))
	value[0] = 'z'

	got, _, err := store.Get(ctx, "k")
	require.NoError(t, err)
	require.Equal(t, "abc", string(got))
}

func TestRedisStore(t *testing.T) {
	mr, err := miniredis.Run()
	require.NoError(t, err)
	t.Cleanup(mr.Close)

	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })

	exerciseStore(t, kv.NewRedis(client, 0))
}

func TestRedisStoreTTL(t *testing.T) {
	mr, err := miniredis.Run()
	require.NoError(t, err)
	t.Cleanup(mr.Close)

	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })

	store := kv.NewRedis(client, time.Minute)
	ctx := context.Background()
	require.NoError(t, store.Set(ctx, "s1:cart", []byte("[]")))
	require.Equal(t, time.Minute, mr.TTL("s1:cart"))

	mr.FastForward(2 * time.Minute)
	_, ok, err := store.Get(ctx, "s1:cart")
	require.NoError(t, err)
	require.False(t, ok)
}

func TestSQLiteStore(t *testing.T) {
	store, err := kv.OpenSQLite(filepath.Join(t.TempDir(), "cart.db"))
	require.NoError(t, err)
	t.Cleanup(func() { _ = store.Close() })

	exerciseStore(t, store)
}

func TestSQLiteStoreSurvivesReopen(t *testing.T) {
	path := filepath.Join(t.TempDir(), "cart.db")
	ctx := context.Background()

	first, err := kv.OpenSQLite(path)
	require.NoError(t, err)
	require.NoError(t, first.Set(ctx, "s1:cart", []byte("[]")))
	require.NoError(t, first.Close())

	second, err := kv.OpenSQLite(path)
	require.NoError(t, err)
	t.Cleanup(func() { _ = second.Close() })
	got, ok, err := second.Get(ctx, "s1:cart")
	require.NoError(t, err)
	require.True(t, ok)
	require.Equal(t, "[]", string(got))
}

func TestPrefixKey(t *testing.T) {
	require.Equal(t, "cart", kv.PrefixKey("", "cart"))
	require.Equal(t, "abc:cart", kv.PrefixKey("abc", "cart"))
}
