package storage

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
)

// File stores one file per key inside an existing directory.
type File struct {
	dir string
}

// NewFile fails when the directory does not exist; the operator is
// expected to create it with the permissions they want.
func NewFile(dir string) (*File, error) {
	info, err := os.Stat(dir)
	if err != nil {
		return nil, fmt.Errorf("storage dir: %w", err)
	}
	if !info.IsDir() {
		return nil, fmt.Errorf("storage dir: %s is not a directory", dir)
	}
	return &File{dir: dir}, nil
}

func (f *File) Load(ctx context.Context, name string) ([]byte, error) {
	data, err := os.ReadFile(filepath.Join(f.dir, name))
	if os.IsNotExist(err) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return data, nil
}

func (f *File) Store(ctx context.Context, name string, value []byte) error {
	return os.WriteFile(filepath.Join(f.dir, name), value, 0o644)
}
