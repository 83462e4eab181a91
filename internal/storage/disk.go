// Package storage persists profile pictures under a fixed media root.
package storage

import (
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/google/uuid"
)

// uploadChunkSize bounds how much of an upload is buffered at a time.
const uploadChunkSize = 1024

// DiskStore stores byte streams as files under a fixed root directory.
type DiskStore struct {
	root string
}

// NewDiskStore constructs a store rooted at dir, creating it when missing.
func NewDiskStore(dir string) (*DiskStore, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("storage: create root %s: %w", dir, err)
	}
	return &DiskStore{root: dir}, nil
}

// Root returns the fixed media root.
func (s *DiskStore) Root() string {
	return s.root
}

// NewName generates a unique file name for an uploaded picture.
func (s *DiskStore) NewName() string {
	return uuid.New().String() + ".jpg"
}

// Save streams r into a file with the given name, in fixed-size chunks.
func (s *DiskStore) Save(name string, r io.Reader) error {
	path := filepath.Join(s.root, name)
	out, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("storage: create %s: %w", name, err)
	}
	buf := make([]byte, uploadChunkSize)
	if _, err := io.CopyBuffer(out, r, buf); err != nil {
		_ = out.Close()
		_ = os.Remove(path)
		return fmt.Errorf("storage: write %s: %w", name, err)
	}
	if err := out.Close(); err != nil {
		return fmt.Errorf("storage: close %s: %w", name, err)
	}
	return nil
}

// Delete removes the named file. A file that is already gone is not an error.
func (s *DiskStore) Delete(name string) error {
	err := os.Remove(filepath.Join(s.root, name))
	if err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("storage: delete %s: %w", name, err)
	}
	return nil
}

// List returns the names of all stored files.
func (s *DiskStore) List() ([]string, error) {
	entries, err := os.ReadDir(s.root)
	if err != nil {
		return nil, fmt.Errorf("storage: list %s: %w", s.root, err)
	}
	names := make([]string, 0, len(entries))
	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}
		names = append(names, entry.Name())
	}
	return names, nil
}
