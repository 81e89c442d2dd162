package store

import "sync"

// Memory is a [TokenStore] held in process memory.
type Memory struct {
	mu     sync.RWMutex
	values map[Kind]string
}

// NewMemory creates an empty in-memory [TokenStore].
func NewMemory() *Memory {
	return &Memory{values: make(map[Kind]string)}
}

func (m *Memory) Set(kind Kind, value string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.values[kind] = value
}

func (m *Memory) Get(kind Kind) (string, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	v, ok := m.values[kind]
	return v, ok && v != ""
}

func (m *Memory) Clear() {
	m.mu.Lock()
	defer m.mu.Unlock()
	clear(m.values)
}

// Nop is a [TokenStore] that never holds anything.
type Nop struct{}

func (Nop) Set(Kind, string)        {}
func (Nop) Get(Kind) (string, bool) { return "", false }
func (Nop) Clear()                  {}
