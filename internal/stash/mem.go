package stash

import (
	"sync"

	"thermoline/internal/model"
)

// Mem is the memory-only stash. Retention does not survive a restart.
type Mem struct {
	mu  sync.Mutex
	acc model.Measurements
}

func NewMem() *Mem {
	return &Mem{acc: make(model.Measurements)}
}

func (m *Mem) Store(meas model.Measurements) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.acc = model.MergeGroups(m.acc, meas)
	return nil
}

func (m *Mem) Load() (Guard, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return &memGuard{stash: m, acc: m.acc}, nil
}

type memGuard struct {
	stash *Mem
	acc   model.Measurements
}

func (g *memGuard) Measurements() model.Measurements {
	return g.acc
}

func (g *memGuard) Remove() (model.Measurements, error) {
	g.stash.mu.Lock()
	defer g.stash.mu.Unlock()
	g.stash.acc = subtract(g.stash.acc, g.acc)
	return g.acc, nil
}
