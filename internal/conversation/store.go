package conversation

import (
	"context"
	"sort"
	"sync"
)

// Store holds conversation states keyed by phone number. Implementations
// must return copies so callers cannot mutate stored state without Put.
type Store interface {
	Get(ctx context.Context, phone string) (*State, bool, error)
	Put(ctx context.Context, s *State) error
	Delete(ctx context.Context, phone string) error
	List(ctx context.Context) ([]*State, error)
}

// MemoryStore is an in-process Store.
type MemoryStore struct {
	mu     sync.RWMutex
	states map[string]*State
}

// NewMemoryStore creates an empty MemoryStore.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{states: make(map[string]*State)}
}

// Get returns a copy of the state for phone.
func (m *MemoryStore) Get(_ context.Context, phone string) (*State, bool, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	s, ok := m.states[phone]
	if !ok {
		return nil, false, nil
	}
	return s.Clone(), true, nil
}

// Put stores a copy of s.
func (m *MemoryStore) Put(_ context.Context, s *State) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.states[s.Phone] = s.Clone()
	return nil
}

// Delete removes the state for phone. Deleting a missing key is not an error.
func (m *MemoryStore) Delete(_ context.Context, phone string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.states, phone)
	return nil
}

// List returns copies of all states ordered by phone.
func (m *MemoryStore) List(_ context.Context) ([]*State, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make([]*State, 0, len(m.states))
	for _, s := range m.states {
		out = append(out, s.Clone())
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Phone < out[j].Phone })
	return out, nil
}
