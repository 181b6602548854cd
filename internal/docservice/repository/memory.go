package repository

import (
	"context"
	"errors"
	"sort"
	"sync"
	"time"

	"github.com/gogotex/pdf-annotator/internal/docservice"
)

var (
	ErrNotFound = errors.New("upload not found")
)

// MemoryRepo is an in-memory upload index used when MongoDB is not
// configured, and in tests.
type MemoryRepo struct {
	mu    sync.RWMutex
	store map[string]*docservice.Upload
}

func NewMemoryRepo() *MemoryRepo {
	return &MemoryRepo{store: make(map[string]*docservice.Upload)}
}

func (m *MemoryRepo) Create(_ context.Context, u *docservice.Upload) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if u.CreatedAt.IsZero() {
		u.CreatedAt = time.Now()
	}
	cp := *u
	m.store[u.FilePath] = &cp
	return nil
}

func (m *MemoryRepo) Get(_ context.Context, filePath string) (*docservice.Upload, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if u, ok := m.store[filePath]; ok {
		cp := *u
		return &cp, nil
	}
	return nil, ErrNotFound
}

// List returns uploads oldest first.
func (m *MemoryRepo) List(_ context.Context) ([]*docservice.Upload, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make([]*docservice.Upload, 0, len(m.store))
	for _, u := range m.store {
		cp := *u
		out = append(out, &cp)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.Before(out[j].CreatedAt) })
	return out, nil
}

func (m *MemoryRepo) Delete(_ context.Context, filePath string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.store[filePath]; !ok {
		return ErrNotFound
	}
	delete(m.store, filePath)
	return nil
}
