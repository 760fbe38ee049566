package cart

import (
	"context"
	"errors"
	"fmt"
	"strings"
)

// ErrUnknownEvent is returned when no intent is registered for a UI event type.
var ErrUnknownEvent = errors.New("unknown cart event")

// EventType names a UI interaction.
type EventType string

// UI event types understood by DefaultIntents.
const (
	EventAdd           EventType = "add"
	EventIncrement     EventType = "increment"
	EventDecrement     EventType = "decrement"
	EventRemove        EventType = "remove"
	EventConfirm       EventType = "confirm"
	EventStartNewOrder EventType = "start_new_order"
)

// UIEvent is a single interaction reported by the presentation layer.
type UIEvent struct {
	Type  EventType `json:"type" validate:"required"`
	Name  string    `json:"name"`
	Price *float64  `json:"price"`
}

// Result is what an intent produced.
type Result struct {
	Snapshot     Snapshot      `json:"cart"`
	Confirmation *Confirmation `json:"confirmation,omitempty"`
}

// IntentFunc applies a UI event to a store.
type IntentFunc func(ctx context.Context, store *Store, ev UIEvent) (Result, error)

// Intents maps UI event types to store operations.
type Intents map[EventType]IntentFunc

// DefaultIntents returns the standard event-to-intent table.
func DefaultIntents() Intents {
	return Intents{
		EventAdd: func(ctx context.Context, store *Store, ev UIEvent) (Result, error) {
			if ev.Price == nil {
				return Result{}, fmt.Errorf("price is required: %w", ErrInvalidItem)
			}
			if err := store.AddItem(ctx, ev.Name, *ev.Price); err != nil {
				return Result{}, err
			}
			return Result{Snapshot: store.Snapshot()}, nil
		},
		EventIncrement: adjustBy(1),
		EventDecrement: adjustBy(-1),
		EventRemove: func(ctx context.Context, store *Store, ev UIEvent) (Result, error) {
			if err := requireName(ev); err != nil {
				return Result{}, err
			}
			store.RemoveItem(ctx, ev.Name)
			return Result{Snapshot: store.Snapshot()}, nil
		},
		EventConfirm: func(ctx context.Context, store *Store, _ UIEvent) (Result, error) {
			conf, err := store.ConfirmOrder(ctx)
			if err != nil {
				return Result{}, err
			}
			return Result{Snapshot: store.Snapshot(), Confirmation: &conf}, nil
		},
		// Empties the cart only under ClearOnConfirm.
		EventStartNewOrder: func(ctx context.Context, store *Store, _ UIEvent) (Result, error) {
			if store.ClearsOnConfirm() {
				store.Clear(ctx)
			}
			return Result{Snapshot: store.Snapshot()}, nil
		},
	}
}

// Dispatch routes ev to its registered intent.
func (t Intents) Dispatch(ctx context.Context, store *Store, ev UIEvent) (Result, error) {
	if store == nil {
		return Result{}, errors.New("cart store not configured")
	}
	fn, ok := t[EventType(strings.ToLower(strings.TrimSpace(string(ev.Type))))]
	if !ok || fn == nil {
		return Result{}, fmt.Errorf("%q: %w", ev.Type, ErrUnknownEvent)
	}
	return fn(ctx, store, ev)
}

func adjustBy(delta int) IntentFunc {
	return func(ctx context.Context, store *Store, ev UIEvent) (Result, error) {
		if err := requireName(ev); err != nil {
			return Result{}, err
		}
		store.AdjustQuantity(ctx, ev.Name, delta)
		return Result{Snapshot: store.Snapshot()}, nil
	}
}

func requireName(ev UIEvent) error {
	if strings.TrimSpace(ev.Name) == "" {
		return fmt.Errorf("name is required: %w", ErrInvalidItem)
	}
	return nil
}
