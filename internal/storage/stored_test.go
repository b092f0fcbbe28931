package storage

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type counts struct {
	A int `json:"a"`
	B int `json:"b"`
}

func TestLoadStored_DefaultOnMissing(t *testing.T) {
	s := LoadStored(context.Background(), NewMem(), "counts", counts{A: 7})
	s.View(func(c *counts) {
		assert.Equal(t, 7, c.A)
	})
}

func TestLoadStored_DefaultOnGarbage(t *testing.T) {
	ctx := context.Background()
	mem := NewMem()
	require.NoError(t, mem.Store(ctx, "counts", []byte("{not json")))

	s := LoadStored(ctx, mem, "counts", counts{A: 7})
	s.View(func(c *counts) {
		assert.Equal(t, 7, c.A)
	})
}

func TestStored_UpdatePersistsBeforeUnlock(t *testing.T) {
	ctx := context.Background()
	mem := NewMem()

	s := LoadStored(ctx, mem, "counts", counts{})
	require.NoError(t, s.Update(ctx, func(c *counts) { c.A = 1; c.B = 2 }))

	// A fresh instance over the same storage sees the mutation.
	reloaded := LoadStored(ctx, mem, "counts", counts{})
	reloaded.View(func(c *counts) {
		assert.Equal(t, counts{A: 1, B: 2}, *c)
	})
}

type countingStorage struct {
	*Mem
	writes int
}

func (c *countingStorage) Store(ctx context.Context, name string, value []byte) error {
	c.writes++
	return c.Mem.Store(ctx, name, value)
}

func TestStored_UpdateIfSkipsWriteWhenUnchanged(t *testing.T) {
	ctx := context.Background()
	backing := &countingStorage{Mem: NewMem()}
	s := LoadStored(ctx, backing, "counts", counts{})

	require.NoError(t, s.UpdateIf(ctx, func(c *counts) bool { return false }))
	assert.Equal(t, 0, backing.writes)

	require.NoError(t, s.UpdateIf(ctx, func(c *counts) bool { c.A = 1; return true }))
	assert.Equal(t, 1, backing.writes)

	reloaded := LoadStored(ctx, backing, "counts", counts{})
	reloaded.View(func(c *counts) { assert.Equal(t, 1, c.A) })
}

type failingStorage struct {
	*Mem
	fail bool
}

func (f *failingStorage) Store(ctx context.Context, name string, value []byte) error {
	if f.fail {
		return errors.New("disk full")
	}
	return f.Mem.Store(ctx, name, value)
}

func TestStored_UpdateKeepsMutationOnWriteFailure(t *testing.T) {
	ctx := context.Background()
	backing := &failingStorage{Mem: NewMem(), fail: true}

	s := LoadStored(ctx, backing, "counts", counts{})
	err := s.Update(ctx, func(c *counts) { c.A = 5 })
	require.Error(t, err)

	// The in-memory value carries the mutation and the next successful
	// Update writes it out.
	s.View(func(c *counts) { assert.Equal(t, 5, c.A) })

	backing.fail = false
	require.NoError(t, s.Update(ctx, func(c *counts) { c.B = 6 }))
	reloaded := LoadStored(ctx, backing, "counts", counts{})
	reloaded.View(func(c *counts) {
		assert.Equal(t, counts{A: 5, B: 6}, *c)
	})
}
