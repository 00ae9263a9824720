package profile

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"

	"studio/internal/adapters/storage"
	domain "studio/internal/domain/profile"
)

const profileColumns = "id, email, given_name, first_surname, second_surname, phone, birth_date, gender, role, active, onboarding_complete, terms_accepted_at, created_at, updated_at"

// SQLiteStore implements Store using SQLite.
type SQLiteStore struct {
	db storage.SQLDB
}

// NewSQLiteStore creates a new profile store.
func NewSQLiteStore(db storage.SQLDB) *SQLiteStore {
	return &SQLiteStore{db: db}
}

// GetByID retrieves a Profile by principal id.
// PRE: id is non-empty
// POST: Returns the entity or an error wrapping storage.ErrNotFound
func (s *SQLiteStore) GetByID(ctx context.Context, id string) (domain.Profile, error) {
	row := s.db.QueryRowContext(ctx, "SELECT "+profileColumns+" FROM profile WHERE id = ?", id)
	p, err := scanProfile(row.Scan)
	if errors.Is(err, sql.ErrNoRows) {
		return domain.Profile{}, fmt.Errorf("profile %w", storage.ErrNotFound)
	}
	return p, err
}

// Save upserts a Profile.
// PRE: entity has been validated; an account with the same id exists
// POST: Entity is persisted
func (s *SQLiteStore) Save(ctx context.Context, p domain.Profile) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO profile (`+profileColumns+`) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			email=excluded.email,
			given_name=excluded.given_name,
			first_surname=excluded.first_surname,
			second_surname=excluded.second_surname,
			phone=excluded.phone,
			birth_date=excluded.birth_date,
			gender=excluded.gender,
			role=excluded.role,
			active=excluded.active,
			onboarding_complete=excluded.onboarding_complete,
			terms_accepted_at=excluded.terms_accepted_at,
			updated_at=excluded.updated_at`,
		p.ID,
		strings.ToLower(strings.TrimSpace(p.Email)),
		p.GivenName,
		p.FirstSurname,
		p.SecondSurname,
		p.Phone,
		p.BirthDate,
		p.Gender,
		p.Role,
		storage.BoolInt(p.Active),
		storage.BoolInt(p.OnboardingComplete),
		storage.FormatTime(p.TermsAcceptedAt),
		storage.FormatTime(p.CreatedAt),
		storage.FormatTime(p.UpdatedAt),
	)
	return err
}

// Delete removes a Profile.
// PRE: no client or signature row references it
func (s *SQLiteStore) Delete(ctx context.Context, id string) error {
	_, err := s.db.ExecContext(ctx, "DELETE FROM profile WHERE id = ?", id)
	return err
}

// ExistsByEmail reports whether any profile uses email.
func (s *SQLiteStore) ExistsByEmail(ctx context.Context, email string) (bool, error) {
	return s.exists(ctx, "email", strings.ToLower(strings.TrimSpace(email)))
}

// ExistsByPhone reports whether any profile uses phone.
func (s *SQLiteStore) ExistsByPhone(ctx context.Context, phone string) (bool, error) {
	return s.exists(ctx, "phone", phone)
}

func (s *SQLiteStore) exists(ctx context.Context, column, value string) (bool, error) {
	var one int
	err := s.db.QueryRowContext(ctx, "SELECT 1 FROM profile WHERE "+column+" = ? LIMIT 1", value).Scan(&one)
	if errors.Is(err, sql.ErrNoRows) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	return true, nil
}

// CountByRole returns how many profiles hold each role.
func (s *SQLiteStore) CountByRole(ctx context.Context) (map[string]int, error) {
	rows, err := s.db.QueryContext(ctx, "SELECT role, COUNT(*) FROM profile GROUP BY role")
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	counts := make(map[string]int)
	for rows.Next() {
		var role string
		var n int
		if err := rows.Scan(&role, &n); err != nil {
			return nil, err
		}
		counts[role] = n
	}
	return counts, rows.Err()
}

// scanProfile extracts a Profile from a row scanner function.
func scanProfile(scan func(dest ...any) error) (domain.Profile, error) {
	var p domain.Profile
	var active, onboarding int
	var termsAt, createdAt, updatedAt sql.NullString
	err := scan(&p.ID, &p.Email, &p.GivenName, &p.FirstSurname, &p.SecondSurname, &p.Phone,
		&p.BirthDate, &p.Gender, &p.Role, &active, &onboarding, &termsAt, &createdAt, &updatedAt)
	if err != nil {
		return domain.Profile{}, err
	}
	p.Active = active == 1
	p.OnboardingComplete = onboarding == 1
	if p.TermsAcceptedAt, err = storage.ParseTime(termsAt); err != nil {
		return domain.Profile{}, err
	}
	if p.CreatedAt, err = storage.ParseTime(createdAt); err != nil {
		return domain.Profile{}, err
	}
	if p.UpdatedAt, err = storage.ParseTime(updatedAt); err != nil {
		return domain.Profile{}, err
	}
	return p, nil
}
