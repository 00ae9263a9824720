package storage

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"studio/internal/domain/store"
)

// TimeLayout is how every timestamp column is written.
const TimeLayout = "2006-01-02T15:04:05.999999999Z07:00"

// ErrNotFound is wrapped by every store lookup that matches no row.
var ErrNotFound = store.ErrNotFound

// migration moves the schema from version-1 to version.
type migration struct {
	version     int
	description string
	apply       func(tx *sql.Tx) error
}

// migrations is the ordered schema history. Append only.
var migrations = []migration{
	{1, "baseline: accounts, tokens, profiles, clients, signatures", migrateBaseline},
	{2, "lookup indexes for uniqueness checks and token expiry", migrateLookupIndexes},
	{3, "account: password_change_required", migratePasswordChangeRequired},
}

// LatestSchemaVersion returns the version MigrateDB brings a database to.
func LatestSchemaVersion() int {
	return migrations[len(migrations)-1].version
}

// OpenDB configures pragmas on an open SQLite handle.
// PRE: db is a valid database connection
// POST: WAL mode (file databases) and foreign keys enabled
func OpenDB(db *sql.DB, path string) error {
	if path != ":memory:" {
		if _, err := db.Exec("PRAGMA journal_mode=WAL"); err != nil {
			return fmt.Errorf("failed to enable WAL mode: %w", err)
		}
	}
	if _, err := db.Exec("PRAGMA foreign_keys=ON"); err != nil {
		return fmt.Errorf("failed to enable foreign keys: %w", err)
	}
	if _, err := db.Exec("PRAGMA busy_timeout=5000"); err != nil {
		return fmt.Errorf("failed to set busy timeout: %w", err)
	}
	return nil
}

// SchemaVersion returns the applied version, 0 for a fresh database.
func SchemaVersion(db *sql.DB) (int, error) {
	if _, err := db.Exec(`CREATE TABLE IF NOT EXISTS schema_version (
		version INTEGER NOT NULL,
		applied_at TEXT NOT NULL
	)`); err != nil {
		return 0, fmt.Errorf("failed to create schema_version: %w", err)
	}
	var v sql.NullInt64
	if err := db.QueryRow("SELECT MAX(version) FROM schema_version").Scan(&v); err != nil {
		return 0, err
	}
	return int(v.Int64), nil
}

// MigrateDB applies every pending migration, each in its own transaction.
// A file database that already holds data is snapshotted to
// "<path>.bak-v<N>" before the first pending migration runs.
// PRE: OpenDB has been called
// POST: SchemaVersion(db) == LatestSchemaVersion()
func MigrateDB(db *sql.DB, path string) error {
	current, err := SchemaVersion(db)
	if err != nil {
		return err
	}
	if current >= LatestSchemaVersion() {
		return nil
	}
	if current > 0 && path != "" && path != ":memory:" {
		backup := fmt.Sprintf("%s.bak-v%d", path, current)
		if _, err := db.Exec("VACUUM INTO ?", backup); err != nil {
			return fmt.Errorf("failed to back up before migrating: %w", err)
		}
		slog.Info("db_backup", "path", backup, "version", current)
	}

	for _, m := range migrations {
		if m.version <= current {
			continue
		}
		if err := applyMigration(db, m); err != nil {
			return fmt.Errorf("migration %d (%s): %w", m.version, m.description, err)
		}
		slog.Info("db_migrated", "version", m.version, "description", m.description)
	}
	return nil
}

func applyMigration(db *sql.DB, m migration) error {
	tx, err := db.BeginTx(context.Background(), nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	if err := m.apply(tx); err != nil {
		return err
	}
	if _, err := tx.Exec("INSERT INTO schema_version (version, applied_at) VALUES (?, ?)",
		m.version, time.Now().UTC().Format(TimeLayout)); err != nil {
		return err
	}
	return tx.Commit()
}

func execAll(tx *sql.Tx, statements string) error {
	for _, stmt := range strings.Split(statements, ";") {
		if strings.TrimSpace(stmt) == "" {
			continue
		}
		if _, err := tx.Exec(stmt); err != nil {
			return err
		}
	}
	return nil
}

func migrateBaseline(tx *sql.Tx) error {
	return execAll(tx, `
	CREATE TABLE IF NOT EXISTS account (
		id TEXT PRIMARY KEY,
		email TEXT NOT NULL UNIQUE,
		password_hash TEXT NOT NULL DEFAULT '',
		email_verified INTEGER NOT NULL DEFAULT 0,
		verified_at TEXT,
		created_at TEXT NOT NULL,
		failed_logins INTEGER NOT NULL DEFAULT 0,
		locked_until TEXT
	);

	CREATE TABLE IF NOT EXISTS account_token (
		id TEXT PRIMARY KEY,
		account_id TEXT NOT NULL,
		purpose TEXT NOT NULL,
		token TEXT NOT NULL UNIQUE,
		expires_at TEXT NOT NULL,
		used INTEGER NOT NULL DEFAULT 0,
		created_at TEXT NOT NULL,
		FOREIGN KEY (account_id) REFERENCES account(id)
	);

	CREATE TABLE IF NOT EXISTS profile (
		id TEXT PRIMARY KEY,
		email TEXT NOT NULL,
		given_name TEXT NOT NULL,
		first_surname TEXT NOT NULL DEFAULT '',
		second_surname TEXT NOT NULL DEFAULT '',
		phone TEXT NOT NULL DEFAULT '',
		birth_date TEXT NOT NULL DEFAULT '',
		gender TEXT NOT NULL DEFAULT '',
		role TEXT NOT NULL,
		active INTEGER NOT NULL DEFAULT 1,
		onboarding_complete INTEGER NOT NULL DEFAULT 0,
		terms_accepted_at TEXT,
		created_at TEXT NOT NULL,
		updated_at TEXT NOT NULL,
		FOREIGN KEY (id) REFERENCES account(id)
	);

	CREATE TABLE IF NOT EXISTS client (
		id TEXT PRIMARY KEY,
		referral_code TEXT NOT NULL,
		discipline TEXT NOT NULL,
		preferred_schedule TEXT NOT NULL DEFAULT '',
		heard_from TEXT NOT NULL DEFAULT '',
		credits INTEGER NOT NULL DEFAULT 0,
		loyalty_level TEXT NOT NULL,
		notify_email INTEGER NOT NULL DEFAULT 1,
		notify_push INTEGER NOT NULL DEFAULT 1,
		notify_telegram INTEGER NOT NULL DEFAULT 0,
		medical_conditions TEXT NOT NULL DEFAULT '[]',
		emergency_name TEXT NOT NULL DEFAULT '',
		emergency_phone TEXT NOT NULL DEFAULT '',
		emergency_relation TEXT NOT NULL DEFAULT '',
		terms_signed_at TEXT,
		waiver_signed INTEGER NOT NULL DEFAULT 0,
		waiver_signed_at TEXT,
		created_at TEXT NOT NULL,
		updated_at TEXT NOT NULL,
		FOREIGN KEY (id) REFERENCES profile(id)
	);

	CREATE TABLE IF NOT EXISTS consent_signature (
		id TEXT PRIMARY KEY,
		profile_id TEXT NOT NULL,
		type TEXT NOT NULL,
		version TEXT NOT NULL,
		image BLOB NOT NULL,
		ip_address TEXT NOT NULL DEFAULT '',
		user_agent TEXT NOT NULL DEFAULT '',
		signed_at TEXT NOT NULL,
		FOREIGN KEY (profile_id) REFERENCES profile(id)
	)`)
}

func migrateLookupIndexes(tx *sql.Tx) error {
	return execAll(tx, `
	CREATE INDEX IF NOT EXISTS idx_profile_email ON profile(email);
	CREATE INDEX IF NOT EXISTS idx_profile_phone ON profile(phone);
	CREATE INDEX IF NOT EXISTS idx_account_token_account ON account_token(account_id, purpose);
	CREATE INDEX IF NOT EXISTS idx_consent_signature_profile ON consent_signature(profile_id)`)
}

func migratePasswordChangeRequired(tx *sql.Tx) error {
	_, err := tx.Exec("ALTER TABLE account ADD COLUMN password_change_required INTEGER NOT NULL DEFAULT 0")
	return err
}

// FormatTime writes t in TimeLayout, or NULL for the zero time.
func FormatTime(t time.Time) any {
	if t.IsZero() {
		return nil
	}
	return t.UTC().Format(TimeLayout)
}

// ParseTime reads a timestamp column. NULL and empty values yield the zero
// time.
func ParseTime(s sql.NullString) (time.Time, error) {
	if !s.Valid || s.String == "" {
		return time.Time{}, nil
	}
	for _, layout := range []string{time.RFC3339Nano, time.RFC3339, "2006-01-02 15:04:05"} {
		if t, err := time.Parse(layout, s.String); err == nil {
			return t, nil
		}
	}
	return time.Time{}, fmt.Errorf("cannot parse time: %s", s.String)
}

// BoolInt maps a bool to SQLite's integer representation.
func BoolInt(b bool) int {
	if b {
		return 1
	}
	return 0
}
