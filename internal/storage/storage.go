// Package storage keeps the raw bytes of uploaded and generated documents.
package storage

import (
	"context"
	"errors"
	"sync"
)

var ErrNotFound = errors.New("object not found")

// Blobs is the object store used by the document service.
type Blobs interface {
	Put(ctx context.Context, key string, data []byte, contentType string) error
	Get(ctx context.Context, key string) ([]byte, error)
	Delete(ctx context.Context, key string) error
}

// MemoryStorage is an in-process Blobs used when MinIO is not configured.
type MemoryStorage struct {
	mu   sync.RWMutex
	objs map[string][]byte
}

func NewMemoryStorage() *MemoryStorage {
	return &MemoryStorage{objs: map[string][]byte{}}
}

func (m *MemoryStorage) Put(_ context.Context, key string, data []byte, _ string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.objs[key] = append([]byte(nil), data...)
	return nil
}

func (m *MemoryStorage) Get(_ context.Context, key string) ([]byte, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	b, ok := m.objs[key]
	if !ok {
		return nil, ErrNotFound
	}
	return append([]byte(nil), b...), nil
}

func (m *MemoryStorage) Delete(_ context.Context, key string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.objs, key)
	return nil
}
