// Package credentials persists the game account used by the automation loop.
//
// The store holds exactly one record. Saving replaces it wholesale through a
// temp file and rename, so readers never observe a partially written file.
package credentials

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"
)

// ErrNotFound is returned by Load when no usable record is stored.
var ErrNotFound = errors.New("credentials not configured")

// Credentials is the game account login.
type Credentials struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

// Valid reports whether both fields are set.
func (c Credentials) Valid() bool {
	return c.Username != "" && c.Password != ""
}

// Store provides persistence for the single credentials record.
type Store interface {
	// Load returns the stored record, or ErrNotFound when nothing usable is
	// stored.
	Load() (Credentials, error)

	// Save overwrites the stored record.
	Save(creds Credentials) error
}

// FileStore implements Store using a JSON file.
type FileStore struct {
	path string
	mu   sync.RWMutex
}

// NewFileStore creates a file-based credentials store.
// If path is empty, defaults to ~/.farmrunner/credentials.json
func NewFileStore(path string) (*FileStore, error) {
	if path == "" {
		homeDir, err := os.UserHomeDir()
		if err != nil {
			return nil, fmt.Errorf("failed to get user home directory: %w", err)
		}
		path = filepath.Join(homeDir, ".farmrunner", "credentials.json")
	}

	return &FileStore{path: path}, nil
}

// Load reads the record from disk. A missing file, an unreadable document and
// a record with an empty field all count as not configured.
func (s *FileStore) Load() (Credentials, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	data, err := os.ReadFile(s.path)
	if err != nil {
		if os.IsNotExist(err) {
			return Credentials{}, ErrNotFound
		}
		return Credentials{}, fmt.Errorf("failed to read credentials file: %w", err)
	}

	var creds Credentials
	if err := json.Unmarshal(data, &creds); err != nil {
		return Credentials{}, fmt.Errorf("%w: failed to decode credentials file: %v", ErrNotFound, err)
	}

	if !creds.Valid() {
		return Credentials{}, ErrNotFound
	}
	return creds, nil
}

// Save writes the record to disk.
func (s *FileStore) Save(creds Credentials) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	dir := filepath.Dir(s.path)
	if err := os.MkdirAll(dir, 0700); err != nil {
		return fmt.Errorf("failed to create credentials directory: %w", err)
	}

	// Create temp file for atomic write
	tempPath := s.path + ".tmp"
	file, err := os.OpenFile(tempPath, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, 0600)
	if err != nil {
		return fmt.Errorf("failed to create temp credentials file: %w", err)
	}

	if err := json.NewEncoder(file).Encode(creds); err != nil {
		file.Close()
		os.Remove(tempPath)
		return fmt.Errorf("failed to encode credentials: %w", err)
	}

	if err := file.Close(); err != nil {
		os.Remove(tempPath)
		return fmt.Errorf("failed to close temp file: %w", err)
	}

	if err := os.Rename(tempPath, s.path); err != nil {
		os.Remove(tempPath)
		return fmt.Errorf("failed to rename temp file: %w", err)
	}

	return nil
}

// Path returns the file path of the store.
func (s *FileStore) Path() string {
	return s.path
}
