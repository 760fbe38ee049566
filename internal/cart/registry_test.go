package cart

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/noah-isme/toko-cart/internal/kv"
)

func TestRegistryIsolatesSessions(t *testing.T) {
	ctx := context.Background()
	mem := kv.NewMemory(0)
	reg := &Registry{KV: mem}

	alice, err := reg.Store(ctx, "alice")
	require.NoError(t, err)
	bob, err := reg.Store(ctx, "bob")
	require.NoError(t, err)

	require.NoError(t, alice.AddItem(ctx, "Pizza", 9.99))
	require.Empty(t, bob.Items())
	require.Equal(t, "alice:cart", alice.Key())

	again, err := reg.Store(ctx, "alice")
	require.NoError(t, err)
	require.Same(t, alice, again)
	require.Equal(t, 2, reg.Len())

	_, ok, err := mem.Get(ctx, "alice:cart")
	require.NoError(t, err)
	require.True(t, ok)
}

func TestRegistryRequiresSession(t *testing.T) {
	reg := &Registry{}
	_, err := reg.Store(context.Background(), "  ")
	require.ErrorIs(t, err, ErrNoSession)
}

func TestRegistryReloadsAfterEvict(t *testing.T) {
	ctx := context.Background()
	reg := &Registry{KV: kv.NewMemory(0), Key: "basket"}

	first, err := reg.Store(ctx, "s1")
	require.NoError(t, err)
	require.NoError(t, first.AddItem(ctx, "Pizza", 9.99))
	first.AdjustQuantity(ctx, "Pizza", 1)

	reg.Evict("s1")
	require.Zero(t, reg.Len())

	second, err := reg.Store(ctx, "s1")
	require.NoError(t, err)
	require.NotSame(t, first, second)
	require.Equal(t, "s1:basket", second.Key())
	require.Equal(t, 2, second.Totals().ItemCount)
}

func TestRegistrySweepDropsIdleSessions(t *testing.T) {
	ctx := context.Background()
	now := time.Date(2024, 1, 1, 10, 0, 0, 0, time.UTC)
	reg := &Registry{Now: func() time.Time { return now }}

	_, err := reg.Store(ctx, "old")
	require.NoError(t, err)
	now = now.Add(20 * time.Minute)
	_, err = reg.Store(ctx, "fresh")
	require.NoError(t, err)
	now = now.Add(15 * time.Minute)

	require.Zero(t, reg.Sweep(0))
	require.Equal(t, 1, reg.Sweep(30*time.Minute))
	require.Equal(t, 1, reg.Len())
}

func TestRegistrySweepKeepsUnsavedSessions(t *testing.T) {
	ctx := context.Background()
	now := time.Date(2024, 1, 1, 10, 0, 0, 0, time.UTC)
	reg := &Registry{KV: kv.NewMemory(40), Now: func() time.Time { return now }}

	store, err := reg.Store(ctx, "s1")
	require.NoError(t, err)
	require.NoError(t, store.AddItem(ctx, "Pizza", 9.99))
	require.NoError(t, store.AddItem(ctx, "A very long item name that will not fit", 1))
	require.True(t, store.Unsaved())

	now = now.Add(time.Hour)
	require.Zero(t, reg.Sweep(30*time.Minute))
	again, err := reg.Store(ctx, "s1")
	require.NoError(t, err)
	require.Same(t, store, again)
	require.Len(t, again.Items(), 2)

	store.RemoveItem(ctx, "A very long item name that will not fit")
	now = now.Add(time.Hour)
	require.Equal(t, 1, reg.Sweep(30*time.Minute))
}
