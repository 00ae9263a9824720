// Package session keeps signed-in sessions keyed by an opaque cookie token.
package session

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"errors"
	"time"
)

// DefaultTTL is how long a session lives without activity.
const DefaultTTL = 24 * time.Hour

var (
	// ErrNotFound is returned for unknown or expired tokens.
	ErrNotFound = errors.New("session not found")
	// ErrUnavailable wraps backend failures. The access gate treats it as
	// no session.
	ErrUnavailable = errors.New("session store unavailable")
)

// Session is one signed-in browser.
type Session struct {
	AccountID string    `json:"account_id"`
	Email     string    `json:"email"`
	CreatedAt time.Time `json:"created_at"`
	ExpiresAt time.Time `json:"expires_at"`
}

// Store defines the session persistence interface.
type Store interface {
	// Create stores a new session and returns its token.
	Create(ctx context.Context, accountID, email string) (string, Session, error)
	// Get returns the session without extending it.
	Get(ctx context.Context, token string) (Session, error)
	// Refresh slides the expiry of a live session.
	Refresh(ctx context.Context, token string) (Session, error)
	// Delete removes one session. Deleting an unknown token is not an error.
	Delete(ctx context.Context, token string) error
	// DeleteForAccount removes every session of an account.
	DeleteForAccount(ctx context.Context, accountID string) error
}

func newToken() (string, error) {
	b := make([]byte, 32)
	if _, err := rand.Read(b); err != nil {
		return "", err
	}
	return hex.EncodeToString(b), nil
}
