// mock_storage.go - In-memory staging store for tests
package testutil

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"sync"
	"sync/atomic"
	"time"

	"github.com/codewave/panel/internal/models"
	"github.com/codewave/panel/internal/storage"
)

var _ storage.Store = (*MockStorage)(nil)

var testIDCounter atomic.Int64

// MockStorage implements storage.Store in memory
type MockStorage struct {
	files    map[string]*models.SelectedFile
	fileData map[string][]byte
	mu       sync.RWMutex

	// SaveErr, when set, is returned by Save.
	SaveErr error
	// OpenErr, when set, is returned by Open.
	OpenErr error
}

// NewMockStorage creates an empty mock storage
func NewMockStorage() *MockStorage {
	return &MockStorage{
		files:    make(map[string]*models.SelectedFile),
		fileData: make(map[string][]byte),
	}
}

func (m *MockStorage) Save(name, contentType string, r io.Reader) (*models.SelectedFile, error) {
	if m.SaveErr != nil {
		return nil, m.SaveErr
	}
	data, err := io.ReadAll(r)
	if err != nil {
		return nil, err
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	file := &models.SelectedFile{
		ID:          generateTestID(),
		Name:        name,
		ContentType: contentType,
		Size:        int64(len(data)),
		SelectedAt:  time.Now(),
	}
	m.files[file.ID] = file
	m.fileData[file.ID] = data
	return file, nil
}

func (m *MockStorage) Get(id string) (*models.SelectedFile, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	file, ok := m.files[id]
	if !ok {
		return nil, storage.ErrNotFound
	}
	return file, nil
}

func (m *MockStorage) Open(id string) (io.ReadCloser, error) {
	if m.OpenErr != nil {
		return nil, m.OpenErr
	}
	m.mu.RLock()
	defer m.mu.RUnlock()

	data, ok := m.fileData[id]
	if !ok {
		return nil, storage.ErrNotFound
	}
	return io.NopCloser(bytes.NewReader(data)), nil
}

func (m *MockStorage) Delete(id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if _, exists := m.files[id]; !exists {
		return errors.New("file not found")
	}

	delete(m.files, id)
	delete(m.fileData, id)
	return nil
}

func (m *MockStorage) Purge() error {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.files = make(map[string]*models.SelectedFile)
	m.fileData = make(map[string][]byte)
	return nil
}

// Len returns the number of staged files
func (m *MockStorage) Len() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.files)
}

// Has reports whether id is staged
func (m *MockStorage) Has(id string) bool {
	m.mu.RLock()
	defer m.mu.RUnlock()
	_, ok := m.files[id]
	return ok
}

func generateTestID() string {
	return fmt.Sprintf("test-%d", testIDCounter.Add(1))
}
