package repository

import (
	"context"
	"sync"

	"github.com/okian/league/internal/domain/model"
)

// MemoryStore keeps snapshots in process memory. It backs tests and dry runs.
type MemoryStore struct {
	mu     sync.RWMutex
	ix     *index
	closed bool
}

// NewMemoryStore returns an empty MemoryStore.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{ix: newIndex()}
}

// Put implements Store.
func (m *MemoryStore) Put(_ context.Context, s model.Snapshot) error {
	if err := s.Validate(); err != nil {
		return writeErr(BackendMemory, "put", err)
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.closed {
		return writeErr(BackendMemory, "put", ErrClosed)
	}
	m.ix.put(s)
	return nil
}

// Get implements Store.
func (m *MemoryStore) Get(_ context.Context, username string, date model.Date) (model.Snapshot, bool, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if m.closed {
		return model.Snapshot{}, false, readErr(BackendMemory, "get", ErrClosed)
	}
	s, ok := m.ix.get(username, date)
	return s, ok, nil
}

// GetRange implements Store.
func (m *MemoryStore) GetRange(_ context.Context, username string, start, end model.Date) ([]model.Snapshot, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if m.closed {
		return nil, readErr(BackendMemory, "get_range", ErrClosed)
	}
	return m.ix.rangeOf(username, start, end), nil
}

// ListUsers implements Store.
func (m *MemoryStore) ListUsers(_ context.Context) ([]string, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if m.closed {
		return nil, readErr(BackendMemory, "list_users", ErrClosed)
	}
	return m.ix.users(), nil
}

// Prune implements Store.
func (m *MemoryStore) Prune(_ context.Context, retainDays int) (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.closed {
		return 0, writeErr(BackendMemory, "prune", ErrClosed)
	}
	return len(m.ix.prune(retainDays)), nil
}

// Close implements Store.
func (m *MemoryStore) Close() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.closed = true
	return nil
}
