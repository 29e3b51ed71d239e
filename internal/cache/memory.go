package cache

import (
	"context"
	"errors"
	"sync"
	"time"
)

// MemoryStore is the per-process store used when Redis is not configured.
type MemoryStore struct {
	mu       sync.Mutex
	attempts map[string][]time.Time
}

// NewMemoryStore returns an empty store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{attempts: make(map[string][]time.Time)}
}

// RecordAttempt appends an attempt. Attempts of one key are kept in time order.
func (m *MemoryStore) RecordAttempt(_ context.Context, identifier string, at time.Time) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	list := m.attempts[identifier]
	i := len(list)
	for i > 0 && list[i-1].After(at) {
		i--
	}

	list = append(list, time.Time{})
	copy(list[i+1:], list[i:])
	list[i] = at
	m.attempts[identifier] = list

	return nil
}

func (m *MemoryStore) CountAttempts(_ context.Context, identifier string, window time.Duration, reference time.Time) (int, error) {
	if window <= 0 {
		return 0, errors.New("window must be positive")
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	from := reference.Add(-window)
	n := 0
	for _, t := range m.attempts[identifier] {
		if t.After(from) && !t.After(reference) {
			n++
		}
	}

	return n, nil
}

// TrimWindow drops attempts older than the window and forgets empty keys.
func (m *MemoryStore) TrimWindow(_ context.Context, identifier string, window time.Duration, reference time.Time) error {
	if window <= 0 {
		return errors.New("window must be positive")
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	from := reference.Add(-window)
	list := m.attempts[identifier]
	i := 0
	for i < len(list) && !list[i].After(from) {
		i++
	}

	if i == len(list) {
		delete(m.attempts, identifier)
		return nil
	}

	m.attempts[identifier] = list[i:]

	return nil
}

func (m *MemoryStore) OldestAttempt(_ context.Context, identifier string, window time.Duration, reference time.Time) (time.Time, bool, error) {
	if window <= 0 {
		return time.Time{}, false, errors.New("window must be positive")
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	from := reference.Add(-window)
	for _, t := range m.attempts[identifier] {
		if t.After(from) && !t.After(reference) {
			return t, true, nil
		}
	}

	return time.Time{}, false, nil
}
