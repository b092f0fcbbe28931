package stash

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"

	"thermoline/internal/model"
	"thermoline/internal/storage"
)

// Key is the storage key the persistent stash lives under.
const Key = "stash"

// Stored is a stash persisted through a storage backend, giving the
// client at-least-once retention across restarts.
type Stored struct {
	storage storage.Storage
	mu      sync.Mutex
}

func NewStored(s storage.Storage) *Stored {
	return &Stored{storage: s}
}

func (s *Stored) Store(meas model.Measurements) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	acc, err := s.read()
	if err != nil {
		return err
	}
	return s.write(model.MergeGroups(acc, meas))
}

func (s *Stored) Load() (Guard, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	acc, err := s.read()
	if err != nil {
		return nil, err
	}
	return &storedGuard{stash: s, acc: acc}, nil
}

func (s *Stored) read() (model.Measurements, error) {
	data, err := s.storage.Load(context.Background(), Key)
	if err != nil {
		return nil, fmt.Errorf("stash load: %w", err)
	}
	if data == nil {
		return make(model.Measurements), nil
	}
	var acc model.Measurements
	if err := json.Unmarshal(data, &acc); err != nil {
		return nil, fmt.Errorf("stash decode: %w", err)
	}
	return acc, nil
}

func (s *Stored) write(acc model.Measurements) error {
	data, err := json.Marshal(acc)
	if err != nil {
		return fmt.Errorf("stash encode: %w", err)
	}
	if err := s.storage.Store(context.Background(), Key, data); err != nil {
		return fmt.Errorf("stash store: %w", err)
	}
	return nil
}

type storedGuard struct {
	stash *Stored
	acc   model.Measurements
}

func (g *storedGuard) Measurements() model.Measurements {
	return g.acc
}

func (g *storedGuard) Remove() (model.Measurements, error) {
	g.stash.mu.Lock()
	defer g.stash.mu.Unlock()
	// Re-read under the lock: batches stored after this guard was taken
	// must survive the take.
	acc, err := g.stash.read()
	if err != nil {
		return nil, err
	}
	if err := g.stash.write(subtract(acc, g.acc)); err != nil {
		return nil, err
	}
	return g.acc, nil
}
