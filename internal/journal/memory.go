package journal

import (
	"errors"
	"sync"
)

// ErrClosed is returned when recording into a closed backend.
var ErrClosed = errors.New("journal closed")

// DefaultCapacity is used when a memory journal is created without one.
const DefaultCapacity = 256

// Memory keeps the most recent entries in a ring.
type Memory struct {
	mu      sync.RWMutex
	entries []Entry
	next    int
	full    bool
	closed  bool
}

// NewMemory returns a ring holding the last capacity entries.
// A non-positive capacity means DefaultCapacity.
func NewMemory(capacity int) *Memory {
	if capacity <= 0 {
		capacity = DefaultCapacity
	}
	return &Memory{entries: make([]Entry, capacity)}
}

func (m *Memory) Init() error {
	return nil
}

func (m *Memory) Close() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.closed = true
	return nil
}

// Record stores e, overwriting the oldest entry once the ring is full.
func (m *Memory) Record(e Entry) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.closed {
		return ErrClosed
	}
	m.entries[m.next] = e
	m.next = (m.next + 1) % len(m.entries)
	if m.next == 0 {
		m.full = true
	}
	return nil
}

func (m *Memory) Recent(limit int) ([]Entry, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	n := m.next
	if m.full {
		n = len(m.entries)
	}
	if limit <= 0 || limit > n {
		limit = n
	}

	out := make([]Entry, 0, limit)
	for i := 1; i <= limit; i++ {
		idx := (m.next - i + len(m.entries)) % len(m.entries)
		out = append(out, m.entries[idx])
	}
	return out, nil
}
