package storage

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/alicebob/miniredis/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testRoundTrip(t *testing.T, s Storage) {
	t.Helper()
	ctx := context.Background()

	missing, err := s.Load(ctx, "absent")
	require.NoError(t, err)
	assert.Nil(t, missing)

	require.NoError(t, s.Store(ctx, "key", []byte("first")))
	got, err := s.Load(ctx, "key")
	require.NoError(t, err)
	assert.Equal(t, []byte("first"), got)

	// Overwrite replaces, not appends.
	require.NoError(t, s.Store(ctx, "key", []byte("second")))
	got, err = s.Load(ctx, "key")
	require.NoError(t, err)
	assert.Equal(t, []byte("second"), got)
}

func TestMem(t *testing.T) {
	testRoundTrip(t, NewMem())
}

func TestMem_CopiesValues(t *testing.T) {
	ctx := context.Background()
	m := NewMem()
	value := []byte("abc")
	require.NoError(t, m.Store(ctx, "k", value))
	value[0] = 'x'

	got, err := m.Load(ctx, "k")
	require.NoError(t, err)
	assert.Equal(t, []byte("abc"), got)
}

func TestFile(t *testing.T) {
	f, err := NewFile(t.TempDir())
	require.NoError(t, err)
	testRoundTrip(t, f)
}

func TestFile_RequiresExistingDir(t *testing.T) {
	_, err := NewFile(filepath.Join(t.TempDir(), "missing"))
	assert.Error(t, err)
}

func TestSqlite(t *testing.T) {
	s, err := OpenSqlite(filepath.Join(t.TempDir(), "storage.db"))
	require.NoError(t, err)
	defer s.Close()
	testRoundTrip(t, s)
}

func TestRedis(t *testing.T) {
	mr := miniredis.RunT(t)
	r, err := NewRedis(RedisConfig{Addr: mr.Addr()})
	require.NoError(t, err)
	defer r.Close()
	testRoundTrip(t, r)
}

func TestRedis_Unreachable(t *testing.T) {
	_, err := NewRedis(RedisConfig{Addr: "127.0.0.1:1"})
	assert.Error(t, err)
}

func TestOpen(t *testing.T) {
	mem, err := Open("", "", "", "")
	require.NoError(t, err)
	assert.IsType(t, &Mem{}, mem)

	fs, err := Open("fs", t.TempDir(), "", "")
	require.NoError(t, err)
	assert.IsType(t, &File{}, fs)

	db, err := Open("db", filepath.Join(t.TempDir(), "s.db"), "", "")
	require.NoError(t, err)
	assert.IsType(t, &DB{}, db)

	_, err = Open("bogus", "", "", "")
	assert.Error(t, err)
}
