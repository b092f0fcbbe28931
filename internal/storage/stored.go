package storage

import (
	"context"
	"encoding/json"
	"log"
	"sync"
)

// Stored wraps a JSON-serializable value persisted in a Storage under a
// fixed key. Mutations go through Update, which writes the new value back
// before releasing the lock: every observed mutation is persisted before
// the next acquisition. Concurrent Stored instances over the same key are
// not supported.
type Stored[T any] struct {
	name    string
	storage Storage

	mu    sync.RWMutex
	value T
}

// LoadStored reads and decodes the current value. A missing key, read
// failure or decode failure falls back to def; failures are logged.
func LoadStored[T any](ctx context.Context, storage Storage, name string, def T) *Stored[T] {
	value := def
	data, err := storage.Load(ctx, name)
	switch {
	case err != nil:
		log.Printf("[stored] error reading %q: %v", name, err)
	case data != nil:
		if err := json.Unmarshal(data, &value); err != nil {
			log.Printf("[stored] error decoding %q: %v", name, err)
			value = def
		}
	}
	return &Stored[T]{name: name, storage: storage, value: value}
}

// View calls fn with the value under the read lock. fn must not retain or
// mutate the value.
func (s *Stored[T]) View(fn func(*T)) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	fn(&s.value)
}

// Update calls fn with the value under the write lock and persists the
// result before unlocking. The mutation is kept in memory even when the
// write fails, so the next Update retries persisting it.
func (s *Stored[T]) Update(ctx context.Context, fn func(*T)) error {
	return s.UpdateIf(ctx, func(value *T) bool {
		fn(value)
		return true
	})
}

// UpdateIf is Update for callers that often change nothing: the value is
// persisted only when fn reports a change.
func (s *Stored[T]) UpdateIf(ctx context.Context, fn func(*T) bool) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !fn(&s.value) {
		return nil
	}
	return s.dump(ctx)
}

func (s *Stored[T]) dump(ctx context.Context) error {
	data, err := json.Marshal(&s.value)
	if err != nil {
		log.Printf("[stored] error serializing %q: %v", s.name, err)
		return err
	}
	if err := s.storage.Store(ctx, s.name, data); err != nil {
		log.Printf("[stored] error writing %q: %v", s.name, err)
		return err
	}
	return nil
}
