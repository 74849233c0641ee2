// Package throttle decides whether a live location update is forwarded or
// dropped. At most one update per actor is accepted within a window.
package throttle

import (
	"context"
	"sync"
	"time"
)

type Throttle interface {
	// Accept reports whether an update from actorID arriving now should be
	// processed. Accepting an update starts a new window for that actor.
	Accept(ctx context.Context, actorID string, window time.Duration) (bool, error)
}

// Memory keeps the last accepted time per actor in process memory.
// It is correct only for a single instance.
type Memory struct {
	mu   sync.Mutex
	last map[string]time.Time
	now  func() time.Time
}

func NewMemory() *Memory {
	return &Memory{last: make(map[string]time.Time), now: time.Now}
}

// WithClock replaces the time source.
func (m *Memory) WithClock(now func() time.Time) *Memory {
	m.now = now
	return m
}

func (m *Memory) Accept(_ context.Context, actorID string, window time.Duration) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	now := m.now()
	if last, ok := m.last[actorID]; ok && now.Sub(last) < window {
		return false, nil
	}
	m.last[actorID] = now
	return true, nil
}

// Sweep forgets actors whose last accepted update is older than maxWindow
// and returns how many were dropped.
func (m *Memory) Sweep(maxWindow time.Duration) int {
	m.mu.Lock()
	defer m.mu.Unlock()

	now := m.now()
	dropped := 0
	for actor, last := range m.last {
		if now.Sub(last) >= maxWindow {
			delete(m.last, actor)
			dropped++
		}
	}
	return dropped
}

func (m *Memory) Len() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.last)
}
