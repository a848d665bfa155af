package storage

import (
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/codewave/panel/internal/models"
	"github.com/google/uuid"
)

// ErrNotFound is returned for unknown staged file IDs.
var ErrNotFound = errors.New("staged file not found")

// Store holds selected PDFs between selection and submission.
type Store interface {
	Save(name, contentType string, r io.Reader) (*models.SelectedFile, error)
	Get(id string) (*models.SelectedFile, error)
	Open(id string) (io.ReadCloser, error)
	Delete(id string) error
	Purge() error
}

// LocalStore implements Store on the local filesystem.
type LocalStore struct {
	mu         sync.RWMutex
	stagingDir string
	files      map[string]*models.SelectedFile
}

// NewLocalStore creates a LocalStore rooted at stagingDir.
func NewLocalStore(stagingDir string) (*LocalStore, error) {
	if err := os.MkdirAll(stagingDir, 0755); err != nil {
		return nil, fmt.Errorf("creating staging directory: %w", err)
	}

	return &LocalStore{
		stagingDir: stagingDir,
		files:      make(map[string]*models.SelectedFile),
	}, nil
}

// Save copies r into a new staged file.
func (s *LocalStore) Save(name, contentType string, r io.Reader) (*models.SelectedFile, error) {
	id := uuid.New().String()
	path := filepath.Join(s.stagingDir, id)

	f, err := os.Create(path)
	if err != nil {
		return nil, fmt.Errorf("creating file: %w", err)
	}

	size, err := io.Copy(f, r)
	if cerr := f.Close(); err == nil && cerr != nil {
		err = fmt.Errorf("closing file: %w", cerr)
	}
	if err != nil {
		os.Remove(path)
		return nil, fmt.Errorf("writing file: %w", err)
	}

	info := &models.SelectedFile{
		ID:          id,
		Name:        name,
		ContentType: contentType,
		Size:        size,
		SelectedAt:  time.Now(),
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	s.files[id] = info

	return info, nil
}

// Get retrieves staged file metadata by ID.
func (s *LocalStore) Get(id string) (*models.SelectedFile, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	info, ok := s.files[id]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrNotFound, id)
	}

	return info, nil
}

// Open returns a reader over the staged bytes. The caller closes it.
func (s *LocalStore) Open(id string) (io.ReadCloser, error) {
	s.mu.RLock()
	_, ok := s.files[id]
	s.mu.RUnlock()
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrNotFound, id)
	}

	f, err := os.Open(filepath.Join(s.stagingDir, id))
	if err != nil {
		return nil, fmt.Errorf("opening staged file: %w", err)
	}
	return f, nil
}

// Delete removes a staged file.
func (s *LocalStore) Delete(id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.files[id]; !ok {
		return fmt.Errorf("%w: %s", ErrNotFound, id)
	}

	path := filepath.Join(s.stagingDir, id)
	if err := os.Remove(path); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("deleting file: %w", err)
	}

	delete(s.files, id)
	return nil
}

// Purge removes every staged file, including leftovers from a previous run.
// Only files named like staged file IDs are touched; anything else in the
// directory is left alone.
func (s *LocalStore) Purge() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	entries, err := os.ReadDir(s.stagingDir)
	if err != nil {
		return fmt.Errorf("reading staging directory: %w", err)
	}
	for _, e := range entries {
		if e.IsDir() {
			continue
		}
		if _, err := uuid.Parse(e.Name()); err != nil {
			continue
		}
		if err := os.Remove(filepath.Join(s.stagingDir, e.Name())); err != nil && !os.IsNotExist(err) {
			return fmt.Errorf("purging %s: %w", e.Name(), err)
		}
	}

	s.files = make(map[string]*models.SelectedFile)
	return nil
}

// Len returns the number of staged files.
func (s *LocalStore) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.files)
}
