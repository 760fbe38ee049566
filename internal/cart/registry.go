package cart

import (
	"context"
	"errors"
	"strings"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/noah-isme/toko-cart/internal/events"
	"github.com/noah-isme/toko-cart/internal/kv"
	"github.com/noah-isme/toko-cart/internal/obs"
)

// ErrNoSession is returned when a cart is requested without a session identifier.
var ErrNoSession = errors.New("cart session required")

// Registry owns one Store per cart session, hydrating each lazily on first use.
type Registry struct {
	KV             kv.Store
	Key            string
	Logger         zerolog.Logger
	Events         *events.Bus
	ClearOnConfirm bool
	OnWarning      WarningFunc
	Now            func() time.Time

	mu      sync.Mutex
	entries map[string]*registryEntry
}

type registryEntry struct {
	store    *Store
	lastUsed time.Time
}

func (r *Registry) now() time.Time {
	if r.Now != nil {
		return r.Now()
	}
	return time.Now()
}

func (r *Registry) key() string {
	if strings.TrimSpace(r.Key) == "" {
		return DefaultKey
	}
	return r.Key
}

// Store returns the cart for sessionID, loading it from persistence the first
// time the session is seen.
func (r *Registry) Store(ctx context.Context, sessionID string) (*Store, error) {
	sessionID = strings.TrimSpace(sessionID)
	if sessionID == "" {
		return nil, ErrNoSession
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.entries == nil {
		r.entries = make(map[string]*registryEntry)
	}
	if entry, ok := r.entries[sessionID]; ok {
		entry.lastUsed = r.now()
		return entry.store, nil
	}
	store := NewStore(Options{
		KV:             r.KV,
		Key:            kv.PrefixKey(sessionID, r.key()),
		ID:             sessionID,
		Logger:         r.Logger.With().Str("session_id", sessionID).Logger(),
		Events:         r.Events,
		ClearOnConfirm: r.ClearOnConfirm,
		OnWarning:      r.OnWarning,
		Now:            r.Now,
	})
	if err := store.Load(ctx); err != nil {
		return nil, err
	}
	r.entries[sessionID] = &registryEntry{store: store, lastUsed: r.now()}
	r.setGauge()
	return store, nil
}

// Len reports how many sessions are held in memory.
func (r *Registry) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.entries)
}

// Evict drops the in-memory cart for sessionID. Persisted state is kept, so the
// next request reloads it.
func (r *Registry) Evict(sessionID string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.entries, sessionID)
	r.setGauge()
}

// Sweep evicts sessions idle for longer than idle and returns how many were
// dropped. Sessions whose last write failed stay resident since memory holds
// the only current copy.
func (r *Registry) Sweep(idle time.Duration) int {
	if idle <= 0 {
		return 0
	}
	cutoff := r.now().Add(-idle)
	r.mu.Lock()
	defer r.mu.Unlock()
	evicted := 0
	for id, entry := range r.entries {
		if entry.lastUsed.Before(cutoff) && !entry.store.Unsaved() {
			delete(r.entries, id)
			evicted++
		}
	}
	if evicted > 0 {
		r.setGauge()
	}
	return evicted
}

func (r *Registry) setGauge() {
	if obs.CartSessionsActive != nil {
		obs.CartSessionsActive.Set(float64(len(r.entries)))
	}
}
