package storage

import (
	"context"
	"errors"
	"io/fs"
	"os"

	"github.com/Skryldev/audiobatch/domain/ports"
)

// LocalStorage implements ports.StorageProvider for local filesystem
type LocalStorage struct{}

// NewLocalStorage creates a new local storage provider
func NewLocalStorage() *LocalStorage {
	return &LocalStorage{}
}

// List returns the entries of dir. Symlinks are reported as files and
// never descended into, like filepath.WalkDir.
func (s *LocalStorage) List(_ context.Context, dir string) ([]ports.DirEntry, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, err
	}
	out := make([]ports.DirEntry, 0, len(entries))
	for _, e := range entries {
		out = append(out, ports.DirEntry{Name: e.Name(), IsDir: e.IsDir()})
	}
	return out, nil
}

// Exists checks if a file exists
func (s *LocalStorage) Exists(_ context.Context, path string) (bool, error) {
	_, err := os.Stat(path)
	if errors.Is(err, fs.ErrNotExist) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	return true, nil
}

// MkdirAll creates dir and any missing parents
func (s *LocalStorage) MkdirAll(_ context.Context, dir string) error {
	return os.MkdirAll(dir, 0o755)
}

// ReadFile returns the contents of path
func (s *LocalStorage) ReadFile(_ context.Context, path string) ([]byte, error) {
	return os.ReadFile(path)
}

// WriteFile writes data to path, creating or truncating it
func (s *LocalStorage) WriteFile(_ context.Context, path string, data []byte, perm fs.FileMode) error {
	return os.WriteFile(path, data, perm)
}

// Size returns file size in bytes
func (s *LocalStorage) Size(_ context.Context, path string) (int64, error) {
	info, err := os.Stat(path)
	if err != nil {
		return 0, err
	}
	return info.Size(), nil
}

// Remove deletes a file. A missing file is not an error.
func (s *LocalStorage) Remove(_ context.Context, path string) error {
	err := os.Remove(path)
	if errors.Is(err, fs.ErrNotExist) {
		return nil
	}
	return err
}
