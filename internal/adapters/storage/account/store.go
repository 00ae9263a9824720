package account

import (
	"context"
	"time"

	domain "studio/internal/domain/account"
)

// Store persists principals and their mailed tokens.
type Store interface {
	GetByID(ctx context.Context, id string) (domain.Account, error)
	GetByEmail(ctx context.Context, email string) (domain.Account, error)
	Save(ctx context.Context, value domain.Account) error
	Delete(ctx context.Context, id string) error
	Count(ctx context.Context) (int, error)
	ExistsByEmail(ctx context.Context, email string) (bool, error)

	SaveToken(ctx context.Context, token domain.Token) error
	GetToken(ctx context.Context, token string) (domain.Token, error)
	InvalidateTokens(ctx context.Context, accountID, purpose string) error
	LatestTokenAt(ctx context.Context, accountID, purpose string) (time.Time, error)
}

// Ensure SQLiteStore implements Store interface.
var _ Store = (*SQLiteStore)(nil)
