package registry

import (
	"context"
	"sync"

	"github.com/shawn/tankwatch/internal/webhook"
)

// MockStore is an in-memory registration store for testing
type MockStore struct {
	mu    sync.RWMutex
	order []string
	hooks map[string]*webhook.Registration
	// Err, when set, is returned by every List call.
	Err error
}

func NewMock() *MockStore {
	return &MockStore{hooks: make(map[string]*webhook.Registration)}
}

func (m *MockStore) Get(_ context.Context, id string) (*webhook.Registration, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	r, ok := m.hooks[id]
	if !ok {
		return nil, nil
	}
	cp := r.Clone()
	return &cp, nil
}

func (m *MockStore) Create(_ context.Context, r *webhook.Registration) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.hooks[r.ID]; ok {
		return &ConditionalCheckFailed{ID: r.ID, Exists: true}
	}
	cp := r.Clone()
	m.hooks[r.ID] = &cp
	m.order = append(m.order, r.ID)
	return nil
}

func (m *MockStore) Put(_ context.Context, r *webhook.Registration) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.hooks[r.ID]; !ok {
		return &ConditionalCheckFailed{ID: r.ID}
	}
	cp := r.Clone()
	m.hooks[r.ID] = &cp
	return nil
}

func (m *MockStore) List(_ context.Context) ([]*webhook.Registration, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if m.Err != nil {
		return nil, m.Err
	}
	records := make([]*webhook.Registration, 0, len(m.order))
	for _, id := range m.order {
		cp := m.hooks[id].Clone()
		records = append(records, &cp)
	}
	return records, nil
}
