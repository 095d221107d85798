// Package blob stores uploaded document files.
package blob

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"regexp"
	"strings"
	"time"
)

var unsafeChars = regexp.MustCompile(`[^a-zA-Z0-9._-]`)

// Store persists raw document uploads keyed by an opaque path.
type Store interface {
	// Put writes the content under path, creating parent directories
	// as needed. It fails if the path already exists.
	Put(path string, r io.Reader) error
	// Delete removes the content at path. Deleting a missing path is
	// not an error.
	Delete(path string) error
	// Open returns a reader for the content at path.
	Open(path string) (io.ReadCloser, error)
}

// ObjectPath builds the storage path for an uploaded file. The
// original name is sanitized so the path stays filesystem-safe.
func ObjectPath(agentID, filename string) string {
	name := unsafeChars.ReplaceAllString(filepath.Base(filename), "_")
	return fmt.Sprintf("%s/%d-%s", agentID, time.Now().UnixMilli(), name)
}

// LocalStore is a Store backed by a directory on the local filesystem.
type LocalStore struct {
	root string
}

// NewLocalStore creates the root directory if it does not exist.
func NewLocalStore(root string) (*LocalStore, error) {
	if err := os.MkdirAll(root, 0755); err != nil {
		return nil, fmt.Errorf("failed to create storage root: %w", err)
	}
	return &LocalStore{root: root}, nil
}

func (s *LocalStore) resolve(path string) (string, error) {
	clean := filepath.Clean(path)
	if clean == "." || strings.HasPrefix(clean, "..") || filepath.IsAbs(clean) {
		return "", fmt.Errorf("invalid storage path: %s", path)
	}
	return filepath.Join(s.root, clean), nil
}

func (s *LocalStore) Put(path string, r io.Reader) error {
	full, err := s.resolve(path)
	if err != nil {
		return err
	}
	if err := os.MkdirAll(filepath.Dir(full), 0755); err != nil {
		return fmt.Errorf("failed to create directory: %w", err)
	}
	f, err := os.OpenFile(full, os.O_WRONLY|os.O_CREATE|os.O_EXCL, 0644)
	if err != nil {
		return fmt.Errorf("failed to create blob: %w", err)
	}
	defer f.Close()
	if _, err := io.Copy(f, r); err != nil {
		os.Remove(full)
		return fmt.Errorf("failed to write blob: %w", err)
	}
	return nil
}

func (s *LocalStore) Delete(path string) error {
	full, err := s.resolve(path)
	if err != nil {
		return err
	}
	if err := os.Remove(full); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("failed to delete blob: %w", err)
	}
	return nil
}

func (s *LocalStore) Open(path string) (io.ReadCloser, error) {
	full, err := s.resolve(path)
	if err != nil {
		return nil, err
	}
	f, err := os.Open(full)
	if err != nil {
		return nil, fmt.Errorf("failed to open blob: %w", err)
	}
	return f, nil
}
