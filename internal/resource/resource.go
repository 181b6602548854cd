// Package resource holds materialized preview documents behind opaque
// references. A reference is created from bytes, may be opened any number
// of times, and is released exactly once by its owner. Releasing a zero,
// unknown or already released reference is a no-op.
package resource

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"errors"
	"sync"

	"github.com/gogotex/pdf-annotator/pkg/metrics"
)

var ErrNotFound = errors.New("resource not found")

// Ref is an opaque handle to stored bytes. The zero Ref means "none".
type Ref string

func (r Ref) IsZero() bool { return r == "" }

// Store creates, serves and releases binary resources.
type Store interface {
	Create(ctx context.Context, data []byte) (Ref, error)
	Open(ctx context.Context, ref Ref) ([]byte, error)
	Release(ctx context.Context, ref Ref) error
}

func newRef() (Ref, error) {
	b := make([]byte, 16)
	if _, err := rand.Read(b); err != nil {
		return "", err
	}
	return Ref("res_" + hex.EncodeToString(b)), nil
}

// MemoryStore keeps resources in process memory.
type MemoryStore struct {
	mu    sync.RWMutex
	items map[Ref][]byte
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{items: make(map[Ref][]byte)}
}

func (m *MemoryStore) Create(ctx context.Context, data []byte) (Ref, error) {
	ref, err := newRef()
	if err != nil {
		return "", err
	}
	cp := append([]byte(nil), data...)
	m.mu.Lock()
	m.items[ref] = cp
	m.mu.Unlock()
	metrics.ResourcesCreated.WithLabelValues("memory").Inc()
	return ref, nil
}

func (m *MemoryStore) Open(ctx context.Context, ref Ref) ([]byte, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	b, ok := m.items[ref]
	if !ok {
		return nil, ErrNotFound
	}
	return b, nil
}

func (m *MemoryStore) Release(ctx context.Context, ref Ref) error {
	if ref.IsZero() {
		return nil
	}
	m.mu.Lock()
	_, ok := m.items[ref]
	delete(m.items, ref)
	m.mu.Unlock()
	if ok {
		metrics.ResourcesReleased.WithLabelValues("memory").Inc()
	}
	return nil
}

// Len reports how many resources are currently held.
func (m *MemoryStore) Len() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.items)
}
