// Package storage provides the opaque byte key/value stores backing the
// client stash and the alert engine settings. Backends: in-memory map,
// filesystem directory, SQL table and redis.
package storage

import (
	"context"
	"sync"
)

// Storage is the minimal persistence capability. Load returns nil with no
// error when the key is absent.
type Storage interface {
	Load(ctx context.Context, name string) ([]byte, error)
	Store(ctx context.Context, name string, value []byte) error
}

// Mem keeps values in process memory. Not actually persistent.
type Mem struct {
	mu     sync.Mutex
	values map[string][]byte
}

func NewMem() *Mem {
	return &Mem{values: make(map[string][]byte)}
}

func (m *Mem) Load(ctx context.Context, name string) ([]byte, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	value, ok := m.values[name]
	if !ok {
		return nil, nil
	}
	return append([]byte(nil), value...), nil
}

func (m *Mem) Store(ctx context.Context, name string, value []byte) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.values[name] = append([]byte(nil), value...)
	return nil
}
