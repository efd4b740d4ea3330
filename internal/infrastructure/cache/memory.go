package cache

import (
	"context"
	"sync"
)

// MemoryHistory keeps history in process. It is used when Redis is not configured.
type MemoryHistory struct {
	mu       sync.Mutex
	locks    map[string]*sync.Mutex
	turns    map[string][]Turn
	maxTurns int
}

var _ HistoryStore = (*MemoryHistory)(nil)

// NewMemoryHistory creates an in-process store keeping at most maxTurns per key.
func NewMemoryHistory(maxTurns int) *MemoryHistory {
	if maxTurns <= 0 {
		maxTurns = 10
	}
	return &MemoryHistory{
		locks:    map[string]*sync.Mutex{},
		turns:    map[string][]Turn{},
		maxTurns: maxTurns,
	}
}

// Load returns a copy of the stored turns.
func (m *MemoryHistory) Load(_ context.Context, contextKey string) ([]Turn, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]Turn(nil), m.turns[contextKey]...), nil
}

// Append adds turns, keeping the most recent maxTurns.
func (m *MemoryHistory) Append(_ context.Context, contextKey string, turns ...Turn) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	all := append(m.turns[contextKey], turns...)
	if len(all) > m.maxTurns {
		all = all[len(all)-m.maxTurns:]
	}
	m.turns[contextKey] = all
	return nil
}

// WithLock runs fn under a per-key mutex.
func (m *MemoryHistory) WithLock(_ context.Context, contextKey string, fn func() error) error {
	m.mu.Lock()
	lock, ok := m.locks[contextKey]
	if !ok {
		lock = &sync.Mutex{}
		m.locks[contextKey] = lock
	}
	m.mu.Unlock()

	lock.Lock()
	defer lock.Unlock()
	return fn()
}
