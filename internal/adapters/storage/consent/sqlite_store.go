package consent

import (
	"context"
	"database/sql"

	"studio/internal/adapters/storage"
	domain "studio/internal/domain/consent"
)

// SQLiteStore implements the consent Store interface using SQLite.
type SQLiteStore struct {
	db storage.SQLDB
}

// NewSQLiteStore creates a new consent store.
func NewSQLiteStore(db storage.SQLDB) *SQLiteStore {
	return &SQLiteStore{db: db}
}

// Save persists a signature. Signatures are immutable once written.
// PRE: signature is valid
// POST: Signature is persisted
func (s *SQLiteStore) Save(ctx context.Context, sig domain.Signature) error {
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO consent_signature (id, profile_id, type, version, image, ip_address, user_agent, signed_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		sig.ID, sig.ProfileID, string(sig.Type), sig.Version, sig.Image,
		sig.IPAddress, sig.UserAgent, storage.FormatTime(sig.SignedAt))
	return err
}

// ListByProfile returns every signature of a profile, oldest first.
// PRE: profileID is non-empty
func (s *SQLiteStore) ListByProfile(ctx context.Context, profileID string) ([]domain.Signature, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, profile_id, type, version, image, ip_address, user_agent, signed_at
		 FROM consent_signature WHERE profile_id = ? ORDER BY signed_at, type DESC`,
		profileID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []domain.Signature
	for rows.Next() {
		var sig domain.Signature
		var typ string
		var signedAt sql.NullString
		if err := rows.Scan(&sig.ID, &sig.ProfileID, &typ, &sig.Version, &sig.Image,
			&sig.IPAddress, &sig.UserAgent, &signedAt); err != nil {
			return nil, err
		}
		sig.Type = domain.Type(typ)
		if sig.SignedAt, err = storage.ParseTime(signedAt); err != nil {
			return nil, err
		}
		out = append(out, sig)
	}
	return out, rows.Err()
}

// DeleteByProfile removes every signature of a profile.
func (s *SQLiteStore) DeleteByProfile(ctx context.Context, profileID string) error {
	_, err := s.db.ExecContext(ctx, "DELETE FROM consent_signature WHERE profile_id = ?", profileID)
	return err
}
