package account

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"studio/internal/adapters/storage"
	domain "studio/internal/domain/account"
)

const accountColumns = "id, email, password_hash, email_verified, verified_at, created_at, failed_logins, locked_until, password_change_required"

// SQLiteStore implements Store using SQLite.
type SQLiteStore struct {
	db storage.SQLDB
}

// NewSQLiteStore creates a new account store.
func NewSQLiteStore(db storage.SQLDB) *SQLiteStore {
	return &SQLiteStore{db: db}
}

// GetByID retrieves an Account by its ID.
// PRE: id is non-empty
// POST: Returns the entity or an error wrapping storage.ErrNotFound
func (s *SQLiteStore) GetByID(ctx context.Context, id string) (domain.Account, error) {
	row := s.db.QueryRowContext(ctx, "SELECT "+accountColumns+" FROM account WHERE id = ?", id)
	return scanOne(row)
}

// GetByEmail retrieves an Account by its normalized email.
// PRE: email is non-empty
// POST: Returns the entity or an error wrapping storage.ErrNotFound
func (s *SQLiteStore) GetByEmail(ctx context.Context, email string) (domain.Account, error) {
	row := s.db.QueryRowContext(ctx, "SELECT "+accountColumns+" FROM account WHERE email = ?", domain.NormalizeEmail(email))
	return scanOne(row)
}

// Save persists an Account (insert or update).
// PRE: entity has been validated
// POST: Entity is persisted
func (s *SQLiteStore) Save(ctx context.Context, entity domain.Account) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO account (`+accountColumns+`) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			email=excluded.email,
			password_hash=excluded.password_hash,
			email_verified=excluded.email_verified,
			verified_at=excluded.verified_at,
			failed_logins=excluded.failed_logins,
			locked_until=excluded.locked_until,
			password_change_required=excluded.password_change_required`,
		entity.ID,
		domain.NormalizeEmail(entity.Email),
		entity.PasswordHash,
		storage.BoolInt(entity.EmailVerified),
		storage.FormatTime(entity.VerifiedAt),
		storage.FormatTime(entity.CreatedAt),
		entity.FailedLogins,
		storage.FormatTime(entity.LockedUntil),
		storage.BoolInt(entity.PasswordChangeRequired),
	)
	return err
}

// Delete removes an Account and its tokens.
// PRE: id is non-empty; no profile row references the account
// POST: Account and tokens are gone
func (s *SQLiteStore) Delete(ctx context.Context, id string) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx, "DELETE FROM account_token WHERE account_id = ?", id); err != nil {
		return err
	}
	if _, err := tx.ExecContext(ctx, "DELETE FROM account WHERE id = ?", id); err != nil {
		return err
	}
	return tx.Commit()
}

// Count returns the total number of accounts.
func (s *SQLiteStore) Count(ctx context.Context) (int, error) {
	var count int
	err := s.db.QueryRowContext(ctx, "SELECT COUNT(*) FROM account").Scan(&count)
	return count, err
}

// ExistsByEmail reports whether a principal already uses email.
func (s *SQLiteStore) ExistsByEmail(ctx context.Context, email string) (bool, error) {
	var n int
	err := s.db.QueryRowContext(ctx, "SELECT COUNT(*) FROM account WHERE email = ?", domain.NormalizeEmail(email)).Scan(&n)
	return n > 0, err
}

// SaveToken persists a token (insert or update).
func (s *SQLiteStore) SaveToken(ctx context.Context, t domain.Token) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO account_token (id, account_id, purpose, token, expires_at, used, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET used=excluded.used`,
		t.ID, t.AccountID, t.Purpose, t.Token,
		storage.FormatTime(t.ExpiresAt), storage.BoolInt(t.Used), storage.FormatTime(t.CreatedAt),
	)
	return err
}

// GetToken looks a token up by its secret.
// POST: Returns the token or an error wrapping storage.ErrNotFound
func (s *SQLiteStore) GetToken(ctx context.Context, token string) (domain.Token, error) {
	var t domain.Token
	var used int
	var expiresAt, createdAt sql.NullString
	err := s.db.QueryRowContext(ctx,
		"SELECT id, account_id, purpose, token, expires_at, used, created_at FROM account_token WHERE token = ?",
		token,
	).Scan(&t.ID, &t.AccountID, &t.Purpose, &t.Token, &expiresAt, &used, &createdAt)
	if errors.Is(err, sql.ErrNoRows) {
		return domain.Token{}, fmt.Errorf("token %w", storage.ErrNotFound)
	}
	if err != nil {
		return domain.Token{}, err
	}
	t.Used = used == 1
	if t.ExpiresAt, err = storage.ParseTime(expiresAt); err != nil {
		return domain.Token{}, err
	}
	if t.CreatedAt, err = storage.ParseTime(createdAt); err != nil {
		return domain.Token{}, err
	}
	return t, nil
}

// InvalidateTokens marks every unused token of purpose for the account as used.
func (s *SQLiteStore) InvalidateTokens(ctx context.Context, accountID, purpose string) error {
	_, err := s.db.ExecContext(ctx,
		"UPDATE account_token SET used = 1 WHERE account_id = ? AND purpose = ? AND used = 0",
		accountID, purpose)
	return err
}

// LatestTokenAt returns when the newest token of purpose was issued, or
// the zero time when none was.
func (s *SQLiteStore) LatestTokenAt(ctx context.Context, accountID, purpose string) (time.Time, error) {
	var latest sql.NullString
	err := s.db.QueryRowContext(ctx,
		"SELECT MAX(created_at) FROM account_token WHERE account_id = ? AND purpose = ?",
		accountID, purpose).Scan(&latest)
	if err != nil {
		return time.Time{}, err
	}
	return storage.ParseTime(latest)
}

func scanOne(row *sql.Row) (domain.Account, error) {
	a, err := scanAccount(row.Scan)
	if errors.Is(err, sql.ErrNoRows) {
		return domain.Account{}, fmt.Errorf("account %w", storage.ErrNotFound)
	}
	return a, err
}

// scanAccount extracts an Account from a row scanner function.
func scanAccount(scan func(dest ...any) error) (domain.Account, error) {
	var a domain.Account
	var verified, mustChange int
	var verifiedAt, createdAt, lockedUntil sql.NullString
	if err := scan(&a.ID, &a.Email, &a.PasswordHash, &verified, &verifiedAt, &createdAt, &a.FailedLogins, &lockedUntil, &mustChange); err != nil {
		return domain.Account{}, err
	}
	a.EmailVerified = verified == 1
	a.PasswordChangeRequired = mustChange == 1
	var err error
	if a.VerifiedAt, err = storage.ParseTime(verifiedAt); err != nil {
		return domain.Account{}, err
	}
	if a.CreatedAt, err = storage.ParseTime(createdAt); err != nil {
		return domain.Account{}, err
	}
	if a.LockedUntil, err = storage.ParseTime(lockedUntil); err != nil {
		return domain.Account{}, err
	}
	return a, nil
}
