package kv

import (
	"context"
	"sync"
)

// Memory is a process-local Store. MaxBytes bounds the total size of stored
// values; zero means unbounded.
type Memory struct {
	MaxBytes int

	mu      sync.Mutex
	entries map[string][]byte
	size    int
}

// NewMemory constructs an empty in-memory store.
func NewMemory(maxBytes int) *Memory {
	return &Memory{MaxBytes: maxBytes, entries: make(map[string][]byte)}
}

func (m *Memory) Get(_ context.Context, key string) ([]byte, bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	v, ok := m.entries[key]
	if !ok {
		return nil, false, nil
	}
	return append([]byte(nil), v...), true, nil
}

func (m *Memory) Set(_ context.Context, key string, value []byte) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.entries == nil {
		m.entries = make(map[string][]byte)
	}
	next := m.size - len(m.entries[key]) + len(value)
	if m.MaxBytes > 0 && next > m.MaxBytes {
		return ErrQuotaExceeded
	}
	m.entries[key] = append([]byte(nil), value...)
	m.size = next
	return nil
}

func (m *Memory) Delete(_ context.Context, key string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.size -= len(m.entries[key])
	delete(m.entries, key)
	return nil
}

func (m *Memory) Ping(context.Context) error { return nil }
