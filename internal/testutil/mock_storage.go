// mock_storage.go - Mock storage implementation for testing
package testutil

import (
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/battery-insight/backend/internal/models"
)

// MockStorage implements storage.Store for testing. File contents are
// kept in memory and spilled to a temp directory only when a path is
// requested.
type MockStorage struct {
	mu       sync.RWMutex
	files    map[string]*models.FileInfo
	fileData map[string][]byte
	tempDir  string
	nextID   int
}

// NewMockStorage creates a new mock storage
func NewMockStorage() *MockStorage {
	return &MockStorage{
		files:    make(map[string]*models.FileInfo),
		fileData: make(map[string][]byte),
	}
}

// AddFile seeds the store with a file under a fixed ID
func (m *MockStorage) AddFile(id, name string, data []byte) {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.files[id] = &models.FileInfo{
		ID:         id,
		Name:       name,
		Size:       int64(len(data)),
		UploadedAt: time.Now(),
		Status:     "uploaded",
	}
	m.fileData[id] = data
}

func (m *MockStorage) Save(name string, r io.Reader) (*models.FileInfo, error) {
	data, err := io.ReadAll(r)
	if err != nil {
		return nil, err
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	m.nextID++
	id := fmt.Sprintf("mock-file-%d", m.nextID)
	info := &models.FileInfo{
		ID:         id,
		Name:       name,
		Size:       int64(len(data)),
		UploadedAt: time.Now(),
		Status:     "uploaded",
	}
	m.files[id] = info
	m.fileData[id] = data
	return info, nil
}

func (m *MockStorage) ImportFile(path string) (*models.FileInfo, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()
	return m.Save(filepath.Base(path), f)
}

func (m *MockStorage) Get(id string) (*models.FileInfo, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	info, ok := m.files[id]
	if !ok {
		return nil, errors.New("file not found")
	}
	return info, nil
}

func (m *MockStorage) List(limit int) ([]*models.FileInfo, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	var files []*models.FileInfo
	for _, info := range m.files {
		files = append(files, info)
		if limit > 0 && len(files) >= limit {
			break
		}
	}
	return files, nil
}

func (m *MockStorage) Delete(id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if _, ok := m.files[id]; !ok {
		return errors.New("file not found")
	}
	delete(m.files, id)
	delete(m.fileData, id)
	return nil
}

func (m *MockStorage) Rename(id string, newName string) (*models.FileInfo, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	info, ok := m.files[id]
	if !ok {
		return nil, errors.New("file not found")
	}
	info.Name = newName
	return info, nil
}

func (m *MockStorage) GetFilePath(id string) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	data, ok := m.fileData[id]
	if !ok {
		return "", errors.New("file not found")
	}

	if m.tempDir == "" {
		dir, err := os.MkdirTemp("", "mockstore")
		if err != nil {
			return "", err
		}
		m.tempDir = dir
	}

	path := filepath.Join(m.tempDir, id)
	if err := os.WriteFile(path, data, 0644); err != nil {
		return "", err
	}
	return path, nil
}
