package ratelimit

import (
	"context"
	"sync"
	"time"
)

type entry struct {
	count   int
	resetAt time.Time
}

// Memory is the single-process backing: a mutex-guarded map from origin to
// window state. Entries accumulate under sustained attack traffic, so expired
// windows are evicted by Sweep (driven by a background job).
type Memory struct {
	mu      sync.Mutex
	entries map[string]*entry
	ceiling int
	window  time.Duration
	now     func() time.Time
}

func NewMemory(ceiling int, window time.Duration) *Memory {
	return &Memory{
		entries: make(map[string]*entry),
		ceiling: ceiling,
		window:  window,
		now:     time.Now,
	}
}

func (m *Memory) Allow(_ context.Context, origin string) (Decision, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	now := m.now()
	e, ok := m.entries[origin]
	if !ok || now.After(e.resetAt) {
		m.entries[origin] = &entry{count: 1, resetAt: now.Add(m.window)}
		return Decision{Allowed: true, Remaining: m.ceiling - 1}, nil
	}
	if e.count >= m.ceiling {
		return Decision{Allowed: false, RetryAfter: e.resetAt.Sub(now)}, nil
	}
	e.count++
	return Decision{Allowed: true, Remaining: m.ceiling - e.count}, nil
}

func (m *Memory) Clear(_ context.Context, origin string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.entries, origin)
	return nil
}

// Sweep evicts windows that expired before now and returns how many were
// removed.
func (m *Memory) Sweep(now time.Time) int {
	m.mu.Lock()
	defer m.mu.Unlock()
	removed := 0
	for origin, e := range m.entries {
		if now.After(e.resetAt) {
			delete(m.entries, origin)
			removed++
		}
	}
	return removed
}
