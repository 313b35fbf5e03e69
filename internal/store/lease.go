// Package store keeps the per-owner exclusive lease on import sessions.
package store

import (
	"context"
	"errors"
	"sync"
	"time"

	"golang.org/x/sync/semaphore"
)

// ErrLeaseHeld is returned when the owner already has an outstanding session.
var ErrLeaseHeld = errors.New("owner already has an outstanding import session")

// Leaser grants one outstanding session per owner.
type Leaser interface {
	// Acquire takes the owner's lease for sessionID. ttl bounds how long the
	// lease survives if it is never released.
	Acquire(ctx context.Context, owner, sessionID string, ttl time.Duration) error
	// Release frees the lease if sessionID still holds it.
	Release(ctx context.Context, owner, sessionID string) error
}

// Memory is a process-local Leaser. An expired lease is handed to the next
// session that asks for it.
type Memory struct {
	slots   map[string]*semaphore.Weighted
	holders map[string]holder
	mu      sync.Mutex
	now     func() time.Time
}

type holder struct {
	sessionID string
	expires   time.Time
}

// NewMemory creates an in-memory leaser
func NewMemory() *Memory {
	return &Memory{
		slots:   make(map[string]*semaphore.Weighted),
		holders: make(map[string]holder),
		now:     time.Now,
	}
}

func (m *Memory) Acquire(ctx context.Context, owner, sessionID string, ttl time.Duration) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	sem, exists := m.slots[owner]
	if !exists {
		sem = semaphore.NewWeighted(1)
		m.slots[owner] = sem
	}

	now := m.now()
	if !sem.TryAcquire(1) {
		h := m.holders[owner]
		if h.expires.IsZero() || now.Before(h.expires) {
			return ErrLeaseHeld
		}
		// the stale holder's slot passes straight to sessionID
	}

	h := holder{sessionID: sessionID}
	if ttl > 0 {
		h.expires = now.Add(ttl)
	}
	m.holders[owner] = h
	return nil
}

func (m *Memory) Release(ctx context.Context, owner, sessionID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	h, ok := m.holders[owner]
	if !ok || h.sessionID != sessionID {
		return nil
	}

	delete(m.holders, owner)
	m.slots[owner].Release(1)
	return nil
}

// Holder returns the session currently holding owner's lease.
func (m *Memory) Holder(owner string) (string, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()

	h, ok := m.holders[owner]
	return h.sessionID, ok
}
