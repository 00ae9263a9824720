package session

import (
	"context"
	"sync"
	"time"
)

// MemoryStore is an in-process session store for single-instance deployments
// and tests.
type MemoryStore struct {
	mu       sync.RWMutex
	ttl      time.Duration
	now      func() time.Time
	sessions map[string]Session
}

// NewMemoryStore creates an empty store. A zero ttl selects DefaultTTL.
func NewMemoryStore(ttl time.Duration) *MemoryStore {
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	return &MemoryStore{
		ttl:      ttl,
		now:      time.Now,
		sessions: make(map[string]Session),
	}
}

// WithClock replaces the time source. Intended for tests.
func (ms *MemoryStore) WithClock(now func() time.Time) *MemoryStore {
	ms.now = now
	return ms
}

// Create stores a new session and returns the token.
// PRE: accountID is non-empty
// POST: Session is stored until now+ttl
func (ms *MemoryStore) Create(_ context.Context, accountID, email string) (string, Session, error) {
	token, err := newToken()
	if err != nil {
		return "", Session{}, err
	}
	now := ms.now()
	s := Session{
		AccountID: accountID,
		Email:     email,
		CreatedAt: now,
		ExpiresAt: now.Add(ms.ttl),
	}
	ms.mu.Lock()
	defer ms.mu.Unlock()
	ms.sessions[token] = s
	return token, s, nil
}

// Get retrieves a session by token.
// POST: expired sessions are removed and reported as ErrNotFound
func (ms *MemoryStore) Get(_ context.Context, token string) (Session, error) {
	ms.mu.RLock()
	s, ok := ms.sessions[token]
	ms.mu.RUnlock()
	if !ok {
		return Session{}, ErrNotFound
	}
	if !ms.now().Before(s.ExpiresAt) {
		ms.mu.Lock()
		delete(ms.sessions, token)
		ms.mu.Unlock()
		return Session{}, ErrNotFound
	}
	return s, nil
}

// Refresh extends a live session to now+ttl.
func (ms *MemoryStore) Refresh(ctx context.Context, token string) (Session, error) {
	if _, err := ms.Get(ctx, token); err != nil {
		return Session{}, err
	}
	ms.mu.Lock()
	defer ms.mu.Unlock()
	s, ok := ms.sessions[token]
	if !ok {
		return Session{}, ErrNotFound
	}
	s.ExpiresAt = ms.now().Add(ms.ttl)
	ms.sessions[token] = s
	return s, nil
}

// Delete removes a session by token.
func (ms *MemoryStore) Delete(_ context.Context, token string) error {
	ms.mu.Lock()
	defer ms.mu.Unlock()
	delete(ms.sessions, token)
	return nil
}

// DeleteForAccount removes every session belonging to accountID.
func (ms *MemoryStore) DeleteForAccount(_ context.Context, accountID string) error {
	ms.mu.Lock()
	defer ms.mu.Unlock()
	for token, s := range ms.sessions {
		if s.AccountID == accountID {
			delete(ms.sessions, token)
		}
	}
	return nil
}

// Len returns the number of stored sessions, expired ones included.
func (ms *MemoryStore) Len() int {
	ms.mu.RLock()
	defer ms.mu.RUnlock()
	return len(ms.sessions)
}
