package consent

import (
	"context"

	domain "studio/internal/domain/consent"
)

// Store persists captured consent signatures.
type Store interface {
	// Save persists a signature.
	// PRE: signature is valid
	Save(ctx context.Context, s domain.Signature) error

	// ListByProfile returns every signature of a profile, oldest first.
	ListByProfile(ctx context.Context, profileID string) ([]domain.Signature, error)

	// DeleteByProfile removes every signature of a profile.
	DeleteByProfile(ctx context.Context, profileID string) error
}

// Ensure SQLiteStore implements Store interface.
var _ Store = (*SQLiteStore)(nil)
