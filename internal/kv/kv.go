package kv

import (
	"context"
	"errors"
)

// ErrQuotaExceeded is returned when a backend refuses a write because it is full.
var ErrQuotaExceeded = errors.New("kv: quota exceeded")

// Store is the key-value persistence port carts are saved to.
type Store interface {
	// Get returns the stored value and whether the key existed.
	Get(ctx context.Context, key string) ([]byte, bool, error)
	Set(ctx context.Context, key string, value []byte) error
	Delete(ctx context.Context, key string) error
	Ping(ctx context.Context) error
}

// PrefixKey namespaces a key per session identifier.
func PrefixKey(session, key string) string {
	if session == "" {
		return key
	}
	return session + ":" + key
}
