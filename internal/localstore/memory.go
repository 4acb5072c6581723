package localstore

import (
	"errors"
	"sync"
)

var ErrStorageDisabled = errors.New("local storage disabled")

// Memory is a map-backed store. With Disabled set every write and delete
// fails, which is how tests simulate a full or blocked storage.
type Memory struct {
	mu       sync.Mutex
	data     map[string][]byte
	Disabled bool
}

func NewMemory() *Memory {
	return &Memory{data: make(map[string][]byte)}
}

func (m *Memory) Read(key string) ([]byte, bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	v, ok := m.data[key]
	if !ok {
		return nil, false, nil
	}
	return append([]byte(nil), v...), true, nil
}

func (m *Memory) Write(key string, data []byte) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.Disabled {
		return ErrStorageDisabled
	}
	m.data[key] = append([]byte(nil), data...)
	return nil
}

func (m *Memory) Delete(key string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.Disabled {
		return ErrStorageDisabled
	}
	delete(m.data, key)
	return nil
}
