package contacts

import (
	"context"
	"sync"
)

// MockDirectory is an in-memory directory for testing
type MockDirectory struct {
	mu       sync.RWMutex
	contacts map[string]Contact
	// Err, when set, is returned by every Resolve call.
	Err error
}

func NewMock(cs ...Contact) *MockDirectory {
	m := &MockDirectory{contacts: make(map[string]Contact)}
	for _, c := range cs {
		m.contacts[c.ID] = c
	}
	return m
}

func (m *MockDirectory) Resolve(_ context.Context, ids []string) ([]Contact, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if m.Err != nil {
		return nil, m.Err
	}
	if len(ids) == 0 {
		return nil, nil
	}
	out := make([]Contact, 0, len(ids))
	var missing []string
	for _, id := range ids {
		c, ok := m.contacts[id]
		if !ok {
			missing = append(missing, id)
			continue
		}
		out = append(out, c)
	}
	if len(missing) > 0 {
		return nil, &UnknownError{IDs: missing}
	}
	return out, nil
}

func (m *MockDirectory) Put(_ context.Context, c Contact) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.contacts[c.ID] = c
	return nil
}

func (m *MockDirectory) Delete(_ context.Context, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.contacts, id)
	return nil
}
