package objectstore

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
)

// LocalStore reads and writes files on the local filesystem.
type LocalStore struct {
	// Perm is applied to newly written files.
	Perm os.FileMode
}

// NewLocalStore creates a LocalStore writing files with mode 0644.
func NewLocalStore() *LocalStore {
	return &LocalStore{Perm: 0o644}
}

// Fetch reads the file at path.
func (s *LocalStore) Fetch(_ context.Context, path string) ([]byte, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read file %q: %w", path, err)
	}
	return data, nil
}

// Put writes data to a temporary file in the target directory and renames it
// over path.
func (s *LocalStore) Put(_ context.Context, path string, data []byte) error {
	dir := filepath.Dir(path)
	tmp, err := os.CreateTemp(dir, "."+filepath.Base(path)+".*.tmp")
	if err != nil {
		return fmt.Errorf("create temp file in %q: %w", dir, err)
	}
	tmpName := tmp.Name()
	committed := false
	defer func() {
		if !committed {
			_ = os.Remove(tmpName)
		}
	}()

	if _, err := tmp.Write(data); err != nil {
		_ = tmp.Close()
		return fmt.Errorf("write temp file %q: %w", tmpName, err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("close temp file %q: %w", tmpName, err)
	}
	if err := os.Chmod(tmpName, s.Perm); err != nil {
		return fmt.Errorf("chmod %q: %w", tmpName, err)
	}
	if err := os.Rename(tmpName, path); err != nil {
		return fmt.Errorf("rename %q to %q: %w", tmpName, path, err)
	}
	committed = true
	return nil
}
