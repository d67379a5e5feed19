package history

import (
	"context"
	"sync"
)

// MemoryStore keeps the most recent records in a fixed-size ring.
type MemoryStore struct {
	mu      sync.RWMutex
	records []LoadRecord
	next    int
	full    bool
}

// NewMemoryStore creates a ring holding at most capacity records.
func NewMemoryStore(capacity int) *MemoryStore {
	if capacity <= 0 {
		capacity = DefaultLimit
	}
	return &MemoryStore{records: make([]LoadRecord, capacity)}
}

// Record implements Store.
func (m *MemoryStore) Record(_ context.Context, rec LoadRecord) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.records[m.next] = rec
	m.next = (m.next + 1) % len(m.records)
	if m.next == 0 {
		m.full = true
	}
	return nil
}

// Recent implements Store.
func (m *MemoryStore) Recent(_ context.Context, limit int) ([]LoadRecord, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	n := m.next
	if m.full {
		n = len(m.records)
	}
	if limit = clampLimit(limit); limit < n {
		n = limit
	}

	out := make([]LoadRecord, 0, n)
	for i := 1; i <= n; i++ {
		idx := (m.next - i + len(m.records)) % len(m.records)
		out = append(out, m.records[idx])
	}
	return out, nil
}

// Reset implements Store.
func (m *MemoryStore) Reset(_ context.Context) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	clear(m.records)
	m.next, m.full = 0, false
	return nil
}

// Close implements Store.
func (m *MemoryStore) Close() error { return nil }
