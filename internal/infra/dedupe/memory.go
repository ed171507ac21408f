// Package dedupe records keys that were already handled so that repeated
// events trigger work only once within a TTL.
package dedupe

import (
	"context"
	"sync"
	"time"
)

// Memory is a process-local claim set. Expired keys are swept lazily.
type Memory struct {
	mu        sync.Mutex
	expires   map[string]time.Time
	lastSweep time.Time
	now       func() time.Time
}

// NewMemory creates an empty claim set.
func NewMemory() *Memory {
	return &Memory{expires: make(map[string]time.Time), now: time.Now}
}

// Claim reports true if key was not claimed within the last ttl, and claims it.
func (m *Memory) Claim(_ context.Context, key string, ttl time.Duration) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	now := m.now()
	m.sweep(now, ttl)

	if exp, ok := m.expires[key]; ok && now.Before(exp) {
		return false, nil
	}
	m.expires[key] = now.Add(ttl)
	return true, nil
}

// Len returns the number of keys currently held, expired or not.
func (m *Memory) Len() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.expires)
}

// sweep drops expired keys at most once per ttl.
func (m *Memory) sweep(now time.Time, ttl time.Duration) {
	if now.Sub(m.lastSweep) < ttl {
		return
	}
	for k, exp := range m.expires {
		if !now.Before(exp) {
			delete(m.expires, k)
		}
	}
	m.lastSweep = now
}
