package state

import (
	"context"
	"sync"

	"github.com/ajitpratap0/nebula-gocardless/pkg/connector/core"
)

// MemoryStore keeps state for the life of the process.
type MemoryStore struct {
	mu     sync.RWMutex
	states map[string]core.State
}

// NewMemoryStore creates an empty in-memory store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{states: make(map[string]core.State)}
}

func (m *MemoryStore) Load(_ context.Context, stream string) (core.State, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.states[stream].Copy(), nil
}

func (m *MemoryStore) Save(_ context.Context, stream string, state core.State) error {
	if err := validateStream(stream); err != nil {
		return err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.states[stream] = state.Copy()
	return nil
}

func (m *MemoryStore) Delete(_ context.Context, stream string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.states, stream)
	return nil
}

func (m *MemoryStore) Close() error { return nil }
