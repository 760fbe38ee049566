package cart

import (
	"context"
	"errors"
	"fmt"
	"math"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"

	"github.com/noah-isme/toko-cart/internal/events"
	"github.com/noah-isme/toko-cart/internal/kv"
	"github.com/noah-isme/toko-cart/internal/obs"
)

// ErrInvalidItem is returned when an item name or price is unusable.
var ErrInvalidItem = errors.New("invalid item")

// ErrPersistedData indicates a stored cart blob is corrupt or malformed.
var ErrPersistedData = errors.New("invalid persisted cart data")

// ErrEmptyCart is returned when confirming an order with nothing in the cart.
var ErrEmptyCart = errors.New("cart is empty")

// DefaultKey is the storage key a cart is saved under.
const DefaultKey = "cart"

// Listener is invoked after every successful mutation.
type Listener func(ctx context.Context, snap Snapshot)

// WarningFunc receives non-fatal persistence problems.
type WarningFunc func(ctx context.Context, err error)

// Options configures a Store.
type Options struct {
	// KV is where the cart is persisted. A nil KV keeps the cart in memory only.
	KV  kv.Store
	Key string
	// ID identifies the cart in emitted events; defaults to Key.
	ID             string
	Logger         zerolog.Logger
	Events         *events.Bus
	ClearOnConfirm bool
	OnWarning      WarningFunc
	Now            func() time.Time
}

// Store holds one cart: an ordered mapping from item name to price and quantity.
type Store struct {
	opts Options

	mu        sync.Mutex
	items     map[string]Item
	order     []string
	active    string
	listeners map[int]Listener
	nextID    int
	// unsaved is set while the last persist attempt failed.
	unsaved bool
}

// NewStore constructs an empty store. Call Load to hydrate it from persistence.
func NewStore(opts Options) *Store {
	if strings.TrimSpace(opts.Key) == "" {
		opts.Key = DefaultKey
	}
	if opts.ID == "" {
		opts.ID = opts.Key
	}
	return &Store{
		opts:      opts,
		items:     make(map[string]Item),
		listeners: make(map[int]Listener),
	}
}

func (s *Store) now() time.Time {
	if s.opts.Now != nil {
		return s.opts.Now()
	}
	return time.Now()
}

// Key returns the storage key of the cart.
func (s *Store) Key() string { return s.opts.Key }

// ClearsOnConfirm reports the integrator's clear-on-confirm policy.
func (s *Store) ClearsOnConfirm() bool { return s.opts.ClearOnConfirm }

// Unsaved reports whether the in-memory cart is newer than what storage holds
// because the last write failed.
func (s *Store) Unsaved() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.unsaved
}

// Subscribe registers fn for change notifications and returns a function that
// removes it again.
func (s *Store) Subscribe(fn Listener) func() {
	if fn == nil {
		return func() {}
	}
	s.mu.Lock()
	id := s.nextID
	s.nextID++
	s.listeners[id] = fn
	s.mu.Unlock()
	return func() {
		s.mu.Lock()
		delete(s.listeners, id)
		s.mu.Unlock()
	}
}

// AddItem inserts name with quantity 1. Adding an item already in the cart is a
// no-op and does not reset its quantity.
func (s *Store) AddItem(ctx context.Context, name string, price float64) error {
	if strings.TrimSpace(name) == "" {
		obs.ObserveMutation("add", "invalid")
		return fmt.Errorf("name is required: %w", ErrInvalidItem)
	}
	if math.IsNaN(price) || math.IsInf(price, 0) || price < 0 {
		obs.ObserveMutation("add", "invalid")
		return fmt.Errorf("price must be a finite non-negative number: %w", ErrInvalidItem)
	}

	s.mu.Lock()
	if _, ok := s.items[name]; ok {
		s.mu.Unlock()
		obs.ObserveMutation("add", "noop")
		return nil
	}
	item := Item{Name: name, Price: decimal.NewFromFloat(price), Quantity: 1}
	s.items[name] = item
	s.order = append(s.order, name)
	s.active = name
	s.commit(ctx, "add", events.TopicItemAdded, item)
	return nil
}

// AdjustQuantity adds delta to the quantity of name. The item is removed when
// the result drops to zero or below. Unknown names are ignored.
func (s *Store) AdjustQuantity(ctx context.Context, name string, delta int) {
	s.mu.Lock()
	item, ok := s.items[name]
	if !ok {
		s.mu.Unlock()
		obs.ObserveMutation("adjust", "noop")
		return
	}
	item.Quantity = addQuantity(item.Quantity, delta)
	if item.Quantity <= 0 {
		s.deleteLocked(name)
		s.commit(ctx, "adjust", events.TopicItemRemoved, map[string]any{"name": name, "reason": "quantity"})
		return
	}
	s.items[name] = item
	s.commit(ctx, "adjust", events.TopicQuantityChanged, map[string]any{"name": name, "delta": delta, "quantity": item.Quantity})
}

// RemoveItem deletes name from the cart if present.
func (s *Store) RemoveItem(ctx context.Context, name string) {
	s.mu.Lock()
	if _, ok := s.items[name]; !ok {
		s.mu.Unlock()
		obs.ObserveMutation("remove", "noop")
		return
	}
	s.deleteLocked(name)
	s.commit(ctx, "remove", events.TopicItemRemoved, map[string]any{"name": name, "reason": "removed"})
}

// Clear empties the cart.
func (s *Store) Clear(ctx context.Context) {
	s.mu.Lock()
	if len(s.order) == 0 {
		s.mu.Unlock()
		obs.ObserveMutation("clear", "noop")
		return
	}
	s.resetLocked()
	s.commit(ctx, "clear", events.TopicCartCleared, nil)
}

// Totals returns the item count and total cost of the cart.
func (s *Store) Totals() Totals {
	s.mu.Lock()
	defer s.mu.Unlock()
	return ComputeTotals(s.itemsLocked())
}

// Items returns the cart contents in insertion order.
func (s *Store) Items() []Item {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.itemsLocked()
}

// Snapshot returns the current items and totals.
func (s *Store) Snapshot() Snapshot {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.snapshotLocked()
}

// Serialize encodes the cart in its persisted form.
func (s *Store) Serialize() ([]byte, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return Serialize(s.itemsLocked())
}

// Deserialize replaces the cart with the contents of blob, persists and notifies.
// An invalid blob returns ErrPersistedData and leaves the cart untouched.
func (s *Store) Deserialize(ctx context.Context, blob []byte) error {
	items, skipped, err := decode(blob)
	if err != nil {
		obs.ObserveMutation("restore", "invalid")
		return err
	}
	if skipped > 0 {
		s.warn(ctx, "restore", fmt.Errorf("ignored %d incomplete rows: %w", skipped, ErrPersistedData))
	}
	s.mu.Lock()
	s.replaceLocked(items)
	s.commit(ctx, "restore", events.TopicCartRestored, map[string]any{"items": len(items)})
	return nil
}

// Load hydrates the cart from persistence. Missing, unreadable or corrupt data
// leaves the cart empty and is reported as a warning. Only context errors are
// returned.
func (s *Store) Load(ctx context.Context) error {
	if s.opts.KV == nil {
		return nil
	}
	blob, ok, err := s.opts.KV.Get(ctx, s.opts.Key)
	if err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return ctxErr
		}
		obs.ObserveRestore("error")
		s.warn(ctx, "load", fmt.Errorf("read cart: %w", err))
		s.hydrate(ctx, nil)
		return nil
	}
	if !ok {
		obs.ObserveRestore("empty")
		s.hydrate(ctx, nil)
		return nil
	}
	items, skipped, err := decode(blob)
	if err != nil {
		obs.ObserveRestore("rejected")
		s.warn(ctx, "load", err)
		s.hydrate(ctx, nil)
		return nil
	}
	if skipped > 0 {
		s.warn(ctx, "load", fmt.Errorf("ignored %d incomplete rows: %w", skipped, ErrPersistedData))
	}
	obs.ObserveRestore("restored")
	s.hydrate(ctx, items)
	return nil
}

// Confirmation is the receipt for a confirmed order.
type Confirmation struct {
	ID          uuid.UUID `json:"id"`
	Items       []Line    `json:"items"`
	Totals      Totals    `json:"totals"`
	ConfirmedAt time.Time `json:"confirmedAt"`
	Cleared     bool      `json:"cleared"`
}

// ConfirmOrder produces a receipt for the current cart. The cart is emptied
// only when the store was built with ClearOnConfirm.
func (s *Store) ConfirmOrder(ctx context.Context) (Confirmation, error) {
	s.mu.Lock()
	if len(s.order) == 0 {
		s.mu.Unlock()
		obs.ObserveMutation("confirm", "empty")
		return Confirmation{}, ErrEmptyCart
	}
	snap := s.snapshotLocked()
	conf := Confirmation{
		ID:          uuid.New(),
		Items:       snap.Items,
		Totals:      snap.Totals,
		ConfirmedAt: s.now().UTC(),
		Cleared:     s.opts.ClearOnConfirm,
	}
	var cleared *change
	if s.opts.ClearOnConfirm {
		s.resetLocked()
		c := s.stageLocked(ctx)
		cleared = &c
	}
	s.mu.Unlock()

	obs.ObserveMutation("confirm", "ok")
	if obs.OrdersConfirmedTotal != nil {
		obs.OrdersConfirmedTotal.Inc()
	}
	s.emit(ctx, events.TopicOrderConfirmed, conf)
	if cleared != nil {
		s.publish(ctx, "clear", events.TopicCartCleared, map[string]any{"orderId": conf.ID}, *cleared)
	}
	return conf, nil
}

// change is a staged mutation waiting to be published.
type change struct {
	persistErr error
	snap       Snapshot
	listeners  []Listener
}

// stageLocked persists the current state and captures what listeners will see.
func (s *Store) stageLocked(ctx context.Context) change {
	err := s.persistLocked(ctx)
	s.unsaved = err != nil
	return change{
		persistErr: err,
		snap:       s.snapshotLocked(),
		listeners:  s.listenersLocked(),
	}
}

// commit must be called with s.mu held; it releases the lock before fanning out.
func (s *Store) commit(ctx context.Context, op, topic string, payload any) {
	c := s.stageLocked(ctx)
	s.mu.Unlock()
	s.publish(ctx, op, topic, payload, c)
}

func (s *Store) publish(ctx context.Context, op, topic string, payload any, c change) {
	obs.ObserveMutation(op, "ok")
	if c.persistErr != nil {
		s.warn(ctx, op, c.persistErr)
	}
	s.emit(ctx, topic, payload)
	for _, fn := range c.listeners {
		fn(ctx, c.snap)
	}
}

func (s *Store) hydrate(ctx context.Context, items []Item) {
	s.mu.Lock()
	s.replaceLocked(items)
	snap := s.snapshotLocked()
	listeners := s.listenersLocked()
	s.mu.Unlock()
	if len(items) > 0 {
		s.emit(ctx, events.TopicCartRestored, map[string]any{"items": len(items)})
	}
	for _, fn := range listeners {
		fn(ctx, snap)
	}
}

func (s *Store) persistLocked(ctx context.Context) error {
	if s.opts.KV == nil {
		return nil
	}
	blob, err := Serialize(s.itemsLocked())
	if err != nil {
		return fmt.Errorf("encode cart: %w", err)
	}
	if err := s.opts.KV.Set(ctx, s.opts.Key, blob); err != nil {
		return fmt.Errorf("write cart: %w", err)
	}
	return nil
}

func (s *Store) warn(ctx context.Context, op string, err error) {
	obs.ObservePersistFailure(op)
	s.opts.Logger.Warn().Err(err).Str("cart_key", s.opts.Key).Str("op", op).Msg("cart persistence problem")
	if s.opts.OnWarning != nil {
		s.opts.OnWarning(ctx, err)
	}
}

func (s *Store) emit(ctx context.Context, topic string, payload any) {
	if s.opts.Events == nil {
		return
	}
	if _, err := s.opts.Events.Emit(ctx, topic, s.opts.ID, payload); err != nil {
		s.opts.Logger.Error().Err(err).Str("topic", topic).Msg("emit cart event")
	}
}

func (s *Store) deleteLocked(name string) {
	delete(s.items, name)
	for i, n := range s.order {
		if n == name {
			s.order = append(s.order[:i], s.order[i+1:]...)
			break
		}
	}
	if s.active == name {
		s.active = ""
	}
}

func (s *Store) resetLocked() {
	s.items = make(map[string]Item)
	s.order = nil
	s.active = ""
}

func (s *Store) replaceLocked(items []Item) {
	s.resetLocked()
	for _, it := range items {
		if _, dup := s.items[it.Name]; !dup {
			s.order = append(s.order, it.Name)
		}
		s.items[it.Name] = it
	}
}

func (s *Store) itemsLocked() []Item {
	out := make([]Item, 0, len(s.order))
	for _, name := range s.order {
		out = append(out, s.items[name])
	}
	return out
}

func (s *Store) snapshotLocked() Snapshot {
	items := s.itemsLocked()
	lines := make([]Line, 0, len(items))
	for _, it := range items {
		lines = append(lines, Line{Item: it, Subtotal: it.Subtotal()})
	}
	totals := ComputeTotals(items)
	return Snapshot{
		Items:  lines,
		Totals: totals,
		Active: s.active,
		Empty:  !totals.TotalCost.IsPositive(),
	}
}

func (s *Store) listenersLocked() []Listener {
	out := make([]Listener, 0, len(s.listeners))
	for i := 0; i < s.nextID; i++ {
		if fn, ok := s.listeners[i]; ok {
			out = append(out, fn)
		}
	}
	return out
}
