package orchestrators

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"time"

	"github.com/google/uuid"

	"studio/internal/domain/account"
)

// clock returns now(), or the wall clock when now is nil.
func clock(now func() time.Time) time.Time {
	if now == nil {
		return time.Now()
	}
	return now()
}

// newID returns gen(), or a random UUID when gen is nil.
func newID(gen func() string) string {
	if gen == nil {
		return uuid.NewString()
	}
	return gen()
}

// newSecret returns gen(), or 32 random bytes hex-encoded when gen is nil.
func newSecret(gen func() (string, error)) (string, error) {
	if gen != nil {
		return gen()
	}
	b := make([]byte, 32)
	if _, err := rand.Read(b); err != nil {
		return "", err
	}
	return hex.EncodeToString(b), nil
}

// TokenStore is the slice of the account store that issues mailed tokens.
type TokenStore interface {
	SaveToken(ctx context.Context, token account.Token) error
	InvalidateTokens(ctx context.Context, accountID, purpose string) error
}

// TokenDeps generates token ids and secrets.
type TokenDeps struct {
	GenerateID     func() string
	GenerateSecret func() (string, error)
	Now            func() time.Time
}

// issueToken invalidates earlier tokens of the same purpose and stores a
// fresh one.
// POST: at most one redeemable token per (account, purpose)
func issueToken(ctx context.Context, store TokenStore, deps TokenDeps, accountID, purpose string) (account.Token, error) {
	secret, err := newSecret(deps.GenerateSecret)
	if err != nil {
		return account.Token{}, err
	}
	tok, err := account.NewToken(newID(deps.GenerateID), accountID, purpose, secret, clock(deps.Now))
	if err != nil {
		return account.Token{}, err
	}
	if err := store.InvalidateTokens(ctx, accountID, purpose); err != nil {
		return account.Token{}, err
	}
	if err := store.SaveToken(ctx, tok); err != nil {
		return account.Token{}, err
	}
	return tok, nil
}
