package resilience

import (
	"context"
	"errors"
	"fmt"

	"github.com/noah-isme/toko-cart/internal/kv"
)

// GuardedStore fails fast with ErrOpenCircuit while the wrapped backend keeps
// failing, so cart mutations are not stalled by a dead store. Cancelled calls
// do not count against the backend.
type GuardedStore struct {
	Store   kv.Store
	Breaker *Breaker
}

// Guard wraps store with breaker.
func Guard(store kv.Store, breaker *Breaker) *GuardedStore {
	return &GuardedStore{Store: store, Breaker: breaker}
}

func (g *GuardedStore) Get(ctx context.Context, key string) ([]byte, bool, error) {
	if err := g.admit(ctx); err != nil {
		return nil, false, err
	}
	v, ok, err := g.Store.Get(ctx, key)
	g.report(ctx, err)
	return v, ok, err
}

func (g *GuardedStore) Set(ctx context.Context, key string, value []byte) error {
	if err := g.admit(ctx); err != nil {
		return err
	}
	err := g.Store.Set(ctx, key, value)
	g.report(ctx, err)
	return err
}

func (g *GuardedStore) Delete(ctx context.Context, key string) error {
	if err := g.admit(ctx); err != nil {
		return err
	}
	err := g.Store.Delete(ctx, key)
	g.report(ctx, err)
	return err
}

// Ping bypasses the breaker so readiness reflects the backend itself.
func (g *GuardedStore) Ping(ctx context.Context) error {
	return g.Store.Ping(ctx)
}

func (g *GuardedStore) admit(ctx context.Context) error {
	if g.Breaker == nil || g.Breaker.Allow(ctx) {
		return nil
	}
	return fmt.Errorf("%s: %w", g.Breaker.label(), ErrOpenCircuit)
}

func (g *GuardedStore) report(ctx context.Context, err error) {
	if g.Breaker == nil {
		return
	}
	switch {
	case err == nil, errors.Is(err, kv.ErrQuotaExceeded):
		// a full store is reachable
		g.Breaker.Report(ctx, true)
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded) && ctx.Err() != nil:
		g.Breaker.Skip()
	default:
		g.Breaker.Report(ctx, false)
	}
}
