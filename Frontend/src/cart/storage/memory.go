package storage

import (
	"context"
	"sync"
)

// Memory keeps values in a map. Useful for tests and throwaway sessions.
type Memory struct {
	mu     sync.RWMutex
	values map[string]string
	// failSet, when set, is returned by every Set call.
	failSet error
}

func NewMemory() *Memory {
	return &Memory{values: make(map[string]string)}
}

func (m *Memory) Get(_ context.Context, key string) (string, bool, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	v, ok := m.values[key]
	return v, ok, nil
}

func (m *Memory) Set(_ context.Context, key, value string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.failSet != nil {
		return m.failSet
	}
	m.values[key] = value
	return nil
}

// FailWrites makes subsequent Set calls return err; nil restores writes.
func (m *Memory) FailWrites(err error) {
	m.mu.Lock()
	m.failSet = err
	m.mu.Unlock()
}

func (m *Memory) Ping(context.Context) error { return nil }
