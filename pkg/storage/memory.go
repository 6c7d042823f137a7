package storage

import (
	"sync"
)

type memoryKV struct {
	values map[string][]byte
	mu     sync.RWMutex
}

// NewMemoryStore returns a process-local handoff store. Values are lost on
// restart.
func NewMemoryStore() HandoffStore {
	return NewHandoffStore(NewMemoryKV())
}

func NewMemoryKV() KV {
	return &memoryKV{
		values: make(map[string][]byte),
	}
}

func (m *memoryKV) Set(key string, value []byte) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.values[key] = append([]byte(nil), value...)
	return nil
}

func (m *memoryKV) Get(key string) ([]byte, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	v, exists := m.values[key]
	if !exists {
		return nil, ErrSlotEmpty
	}
	return append([]byte(nil), v...), nil
}

func (m *memoryKV) Delete(key string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.values, key)
	return nil
}

func (m *memoryKV) Close() error {
	return nil
}
