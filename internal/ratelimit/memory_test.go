package ratelimit

import (
	"context"
	"testing"
	"time"
)

func newTestMemory(ceiling int, window time.Duration, start time.Time) (*Memory, *time.Time) {
	m := NewMemory(ceiling, window)
	now := start
	m.now = func() time.Time { return now }
	return m, &now
}

func TestMemoryCeiling(t *testing.T) {
	start := time.Date(2026, 2, 1, 9, 0, 0, 0, time.UTC)
	m, _ := newTestMemory(3, 15*time.Minute, start)
	ctx := context.Background()

	for i := 0; i < 3; i++ {
		decision, err := m.Allow(ctx, "10.0.0.1")
		if err != nil {
			t.Fatalf("allow error: %v", err)
		}
		if !decision.Allowed {
			t.Fatalf("attempt %d should be allowed", i+1)
		}
	}

	decision, err := m.Allow(ctx, "10.0.0.1")
	if err != nil {
		t.Fatalf("allow error: %v", err)
	}
	if decision.Allowed {
		t.Fatalf("expected 4th attempt to be rejected")
	}
	if decision.RetryAfter <= 0 || decision.RetryAfter > 15*time.Minute {
		t.Fatalf("unexpected retry-after %s", decision.RetryAfter)
	}
}

func TestMemoryWindowReset(t *testing.T) {
	start := time.Date(2026, 2, 1, 9, 0, 0, 0, time.UTC)
	m, now := newTestMemory(2, 15*time.Minute, start)
	ctx := context.Background()

	for i := 0; i < 2; i++ {
		if _, err := m.Allow(ctx, "10.0.0.1"); err != nil {
			t.Fatalf("allow error: %v", err)
		}
	}
	if decision, _ := m.Allow(ctx, "10.0.0.1"); decision.Allowed {
		t.Fatalf("expected rejection before window elapses")
	}

	*now = start.Add(16 * time.Minute)
	decision, err := m.Allow(ctx, "10.0.0.1")
	if err != nil {
		t.Fatalf("allow error: %v", err)
	}
	if !decision.Allowed {
		t.Fatalf("expected fresh window after expiry")
	}
	if decision.Remaining != 1 {
		t.Fatalf("expected count reset to 1, remaining 1, got %d", decision.Remaining)
	}
}

func TestMemoryClear(t *testing.T) {
	start := time.Date(2026, 2, 1, 9, 0, 0, 0, time.UTC)
	m, _ := newTestMemory(2, 15*time.Minute, start)
	ctx := context.Background()

	for i := 0; i < 2; i++ {
		if _, err := m.Allow(ctx, "10.0.0.1"); err != nil {
			t.Fatalf("allow error: %v", err)
		}
	}
	if err := m.Clear(ctx, "10.0.0.1"); err != nil {
		t.Fatalf("clear error: %v", err)
	}

	decision, err := m.Allow(ctx, "10.0.0.1")
	if err != nil {
		t.Fatalf("allow error: %v", err)
	}
	if !decision.Allowed || decision.Remaining != 1 {
		t.Fatalf("expected cleared origin to start over, got %+v", decision)
	}
}

func TestMemoryOriginsIndependent(t *testing.T) {
	start := time.Date(2026, 2, 1, 9, 0, 0, 0, time.UTC)
	m, _ := newTestMemory(1, 15*time.Minute, start)
	ctx := context.Background()

	if _, err := m.Allow(ctx, "10.0.0.1"); err != nil {
		t.Fatalf("allow error: %v", err)
	}
	if decision, _ := m.Allow(ctx, "10.0.0.1"); decision.Allowed {
		t.Fatalf("expected first origin to be exhausted")
	}
	decision, err := m.Allow(ctx, "10.0.0.2")
	if err != nil {
		t.Fatalf("allow error: %v", err)
	}
	if !decision.Allowed {
		t.Fatalf("expected second origin to be unaffected")
	}
}

func TestMemorySweep(t *testing.T) {
	start := time.Date(2026, 2, 1, 9, 0, 0, 0, time.UTC)
	m, now := newTestMemory(5, 15*time.Minute, start)
	ctx := context.Background()

	if _, err := m.Allow(ctx, "10.0.0.1"); err != nil {
		t.Fatalf("allow error: %v", err)
	}
	*now = start.Add(10 * time.Minute)
	if _, err := m.Allow(ctx, "10.0.0.2"); err != nil {
		t.Fatalf("allow error: %v", err)
	}

	removed := m.Sweep(start.Add(16 * time.Minute))
	if removed != 1 {
		t.Fatalf("expected 1 expired window removed, got %d", removed)
	}
	if len(m.entries) != 1 {
		t.Fatalf("expected 1 live entry, got %d", len(m.entries))
	}
}
