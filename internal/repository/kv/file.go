package kv

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"gopkg.in/yaml.v3"
)

// filePermissions restricts the store file to its owner.
const filePermissions = 0o600

// FileStore persists all pairs as one YAML mapping on disk.
// Writes go to a temporary file that is renamed over the original,
// so a crash never leaves a half-written store behind.
type FileStore struct {
	// path is the location of the YAML file.
	path string
	// mu serialises read-modify-write cycles within the process.
	mu sync.Mutex
}

// NewFileStore creates a store backed by the file at path.
// The file is created on first Set.
func NewFileStore(path string) *FileStore {
	return &FileStore{
		path: filepath.Clean(path),
	}
}

// Get implements Store.
func (s *FileStore) Get(_ context.Context, key string) (string, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	values, err := s.read()
	if err != nil {
		return "", false, err
	}

	value, ok := values[key]

	return value, ok, nil
}

// Set implements Store.
func (s *FileStore) Set(_ context.Context, key, value string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	values, err := s.read()
	if err != nil {
		return err
	}

	values[key] = value

	return s.write(values)
}

// read loads the whole mapping; a missing file is an empty store.
func (s *FileStore) read() (map[string]string, error) {
	contents, err := os.ReadFile(s.path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return make(map[string]string), nil
		}

		return nil, fmt.Errorf("read store file: %w", err)
	}

	values := make(map[string]string)
	if err = yaml.Unmarshal(contents, &values); err != nil {
		return nil, fmt.Errorf("decode store file: %w", err)
	}

	if values == nil {
		values = make(map[string]string)
	}

	return values, nil
}

// write replaces the file contents with values.
func (s *FileStore) write(values map[string]string) error {
	data, err := yaml.Marshal(values)
	if err != nil {
		return fmt.Errorf("encode store: %w", err)
	}

	tmp, err := os.CreateTemp(filepath.Dir(s.path), filepath.Base(s.path)+".*.tmp")
	if err != nil {
		return fmt.Errorf("create temporary store file: %w", err)
	}

	tmpName := tmp.Name()

	defer func() {
		_ = os.Remove(tmpName)
	}()

	if _, err = tmp.Write(data); err != nil {
		_ = tmp.Close()
		return fmt.Errorf("write temporary store file: %w", err)
	}

	if err = tmp.Close(); err != nil {
		return fmt.Errorf("close temporary store file: %w", err)
	}

	if err = os.Chmod(tmpName, filePermissions); err != nil {
		return fmt.Errorf("restrict store file: %w", err)
	}

	if err = os.Rename(tmpName, s.path); err != nil {
		return fmt.Errorf("replace store file: %w", err)
	}

	return nil
}
