package client

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"

	"studio/internal/adapters/storage"
	domain "studio/internal/domain/client"
)

const clientColumns = "id, referral_code, discipline, preferred_schedule, heard_from, credits, loyalty_level, notify_email, notify_push, notify_telegram, medical_conditions, emergency_name, emergency_phone, emergency_relation, terms_signed_at, waiver_signed, waiver_signed_at, created_at, updated_at"

// SQLiteStore implements Store using SQLite.
type SQLiteStore struct {
	db storage.SQLDB
}

// NewSQLiteStore creates a new client store.
func NewSQLiteStore(db storage.SQLDB) *SQLiteStore {
	return &SQLiteStore{db: db}
}

// GetByID retrieves a Client by profile id.
// POST: Returns the entity or an error wrapping storage.ErrNotFound
func (s *SQLiteStore) GetByID(ctx context.Context, id string) (domain.Client, error) {
	row := s.db.QueryRowContext(ctx, "SELECT "+clientColumns+" FROM client WHERE id = ?", id)
	c, err := scanClient(row.Scan)
	if errors.Is(err, sql.ErrNoRows) {
		return domain.Client{}, fmt.Errorf("client %w", storage.ErrNotFound)
	}
	return c, err
}

// Save upserts a Client. Medical conditions are stored as a JSON array.
// PRE: entity has been validated; the profile row exists
// POST: Entity is persisted
func (s *SQLiteStore) Save(ctx context.Context, c domain.Client) error {
	conditions := c.MedicalConditions
	if conditions == nil {
		conditions = []string{}
	}
	medical, err := json.Marshal(conditions)
	if err != nil {
		return err
	}
	_, err = s.db.ExecContext(ctx, `
		INSERT INTO client (`+clientColumns+`) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			referral_code=excluded.referral_code,
			discipline=excluded.discipline,
			preferred_schedule=excluded.preferred_schedule,
			heard_from=excluded.heard_from,
			credits=excluded.credits,
			loyalty_level=excluded.loyalty_level,
			notify_email=excluded.notify_email,
			notify_push=excluded.notify_push,
			notify_telegram=excluded.notify_telegram,
			medical_conditions=excluded.medical_conditions,
			emergency_name=excluded.emergency_name,
			emergency_phone=excluded.emergency_phone,
			emergency_relation=excluded.emergency_relation,
			terms_signed_at=excluded.terms_signed_at,
			waiver_signed=excluded.waiver_signed,
			waiver_signed_at=excluded.waiver_signed_at,
			updated_at=excluded.updated_at`,
		c.ID,
		c.ReferralCode,
		c.Discipline,
		c.PreferredSchedule,
		c.HeardFrom,
		c.Credits,
		c.LoyaltyLevel,
		storage.BoolInt(c.NotifyEmail),
		storage.BoolInt(c.NotifyPush),
		storage.BoolInt(c.NotifyTelegram),
		string(medical),
		c.EmergencyName,
		c.EmergencyPhone,
		c.EmergencyRelation,
		storage.FormatTime(c.TermsSignedAt),
		storage.BoolInt(c.WaiverSigned),
		storage.FormatTime(c.WaiverSignedAt),
		storage.FormatTime(c.CreatedAt),
		storage.FormatTime(c.UpdatedAt),
	)
	return err
}

// Delete removes a Client.
func (s *SQLiteStore) Delete(ctx context.Context, id string) error {
	_, err := s.db.ExecContext(ctx, "DELETE FROM client WHERE id = ?", id)
	return err
}

// scanClient extracts a Client from a row scanner function.
func scanClient(scan func(dest ...any) error) (domain.Client, error) {
	var c domain.Client
	var notifyEmail, notifyPush, notifyTelegram, waiverSigned int
	var medical string
	var termsAt, waiverAt, createdAt, updatedAt sql.NullString
	err := scan(&c.ID, &c.ReferralCode, &c.Discipline, &c.PreferredSchedule, &c.HeardFrom, &c.Credits,
		&c.LoyaltyLevel, &notifyEmail, &notifyPush, &notifyTelegram, &medical, &c.EmergencyName,
		&c.EmergencyPhone, &c.EmergencyRelation, &termsAt, &waiverSigned, &waiverAt, &createdAt, &updatedAt)
	if err != nil {
		return domain.Client{}, err
	}
	c.NotifyEmail = notifyEmail == 1
	c.NotifyPush = notifyPush == 1
	c.NotifyTelegram = notifyTelegram == 1
	c.WaiverSigned = waiverSigned == 1
	if err := json.Unmarshal([]byte(medical), &c.MedicalConditions); err != nil {
		return domain.Client{}, fmt.Errorf("client %s medical conditions: %w", c.ID, err)
	}
	if c.TermsSignedAt, err = storage.ParseTime(termsAt); err != nil {
		return domain.Client{}, err
	}
	if c.WaiverSignedAt, err = storage.ParseTime(waiverAt); err != nil {
		return domain.Client{}, err
	}
	if c.CreatedAt, err = storage.ParseTime(createdAt); err != nil {
		return domain.Client{}, err
	}
	if c.UpdatedAt, err = storage.ParseTime(updatedAt); err != nil {
		return domain.Client{}, err
	}
	return c, nil
}
