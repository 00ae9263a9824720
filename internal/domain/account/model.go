package account

import (
	"errors"
	"regexp"
	"strings"
	"time"

	"golang.org/x/crypto/bcrypt"
)

// Max length constants for user-editable fields.
const (
	MaxEmailLength    = 254
	MinPasswordLength = 8
	// bcrypt rejects longer inputs
	MaxPasswordBytes = 72
)

// Lockout policy
const (
	MaxFailedLogins = 5
	LockoutDuration = 15 * time.Minute
)

// Token purposes
const (
	PurposeSignup   = "signup"
	PurposeRecovery = "recovery"
)

// Token lifetimes per purpose.
const (
	SignupTokenTTL   = 24 * time.Hour
	RecoveryTokenTTL = time.Hour
)

// emailPattern is the local@domain.tld shape accepted everywhere in the app.
var emailPattern = regexp.MustCompile(`^[^\s@]+@[^\s@]+\.[^\s@]+$`)

// Domain errors
var (
	ErrEmptyEmail       = errors.New("el email es obligatorio")
	ErrInvalidEmail     = errors.New("formato de email inválido")
	ErrEmailTooLong     = errors.New("el email no puede exceder 254 caracteres")
	ErrEmptyPassword    = errors.New("la contraseña es obligatoria")
	ErrPasswordTooShort = errors.New("la contraseña debe tener al menos 8 caracteres")
	ErrPasswordTooLong  = errors.New("la contraseña no puede exceder 72 bytes")
	ErrWrongPassword    = errors.New("contraseña incorrecta")
	ErrTokenExpired     = errors.New("el enlace ha expirado")
	ErrTokenInvalid     = errors.New("el enlace no es válido")
	ErrTokenPurpose     = errors.New("token purpose must be signup or recovery")
	ErrAlreadyVerified  = errors.New("el email ya fue verificado")
)

// Account is the authenticated principal: credentials plus the
// email-verification fact. Display data lives on the profile.
type Account struct {
	ID            string
	Email         string
	PasswordHash  string
	EmailVerified bool
	VerifiedAt    time.Time
	CreatedAt     time.Time
	FailedLogins  int
	LockedUntil   time.Time
	// PasswordChangeRequired blocks the dashboards until the owner picks
	// a new password. Set on the seeded admin.
	PasswordChangeRequired bool
}

// Token is a single-use, time-limited secret mailed to the account owner.
type Token struct {
	ID        string
	AccountID string
	Purpose   string
	Token     string
	ExpiresAt time.Time
	Used      bool
	CreatedAt time.Time
}

// ValidEmail reports whether email has the local@domain.tld shape.
func ValidEmail(email string) bool {
	return emailPattern.MatchString(email)
}

// NormalizeEmail trims and lowercases an address.
func NormalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

// Validate checks if the Account has valid data.
// PRE: Account struct is populated
// POST: Returns nil if valid, error otherwise
func (a *Account) Validate() error {
	if strings.TrimSpace(a.Email) == "" {
		return ErrEmptyEmail
	}
	if len(a.Email) > MaxEmailLength {
		return ErrEmailTooLong
	}
	if !ValidEmail(a.Email) {
		return ErrInvalidEmail
	}
	return nil
}

// SetPassword hashes and stores a password using bcrypt with cost 12.
// PRE: plaintext is non-empty, >= 8 characters and <= 72 bytes
// POST: PasswordHash is set to bcrypt hash
func (a *Account) SetPassword(plaintext string) error {
	if plaintext == "" {
		return ErrEmptyPassword
	}
	if len(plaintext) < MinPasswordLength {
		return ErrPasswordTooShort
	}
	if len(plaintext) > MaxPasswordBytes {
		return ErrPasswordTooLong
	}
	hash, err := bcrypt.GenerateFromPassword([]byte(plaintext), 12)
	if err != nil {
		return err
	}
	a.PasswordHash = string(hash)
	return nil
}

// CheckPassword verifies a plaintext password against the stored hash.
// PRE: PasswordHash is set
// INVARIANT: Account fields are not mutated
func (a *Account) CheckPassword(plaintext string) error {
	if a.PasswordHash == "" {
		return ErrWrongPassword
	}
	if err := bcrypt.CompareHashAndPassword([]byte(a.PasswordHash), []byte(plaintext)); err != nil {
		return ErrWrongPassword
	}
	return nil
}

// IsLocked returns true if the account is currently locked out.
// INVARIANT: Account fields are not mutated
func (a *Account) IsLocked(now time.Time) bool {
	if a.LockedUntil.IsZero() {
		return false
	}
	return now.Before(a.LockedUntil)
}

// RecordFailedLogin increments the failed login counter and locks the
// account after MaxFailedLogins failures.
func (a *Account) RecordFailedLogin(now time.Time) {
	a.FailedLogins++
	if a.FailedLogins >= MaxFailedLogins {
		a.LockedUntil = now.Add(LockoutDuration)
	}
}

// ResetFailedLogins clears the failed login counter and lock.
func (a *Account) ResetFailedLogins() {
	a.FailedLogins = 0
	a.LockedUntil = time.Time{}
}

// MarkVerified records that the owner proved control of the address.
// PRE: EmailVerified is false
// POST: EmailVerified is true, VerifiedAt is now
func (a *Account) MarkVerified(now time.Time) error {
	if a.EmailVerified {
		return ErrAlreadyVerified
	}
	a.EmailVerified = true
	a.VerifiedAt = now
	return nil
}

// NewToken builds an unused token for the given purpose.
// PRE: purpose is PurposeSignup or PurposeRecovery
func NewToken(id, accountID, purpose, secret string, now time.Time) (Token, error) {
	var ttl time.Duration
	switch purpose {
	case PurposeSignup:
		ttl = SignupTokenTTL
	case PurposeRecovery:
		ttl = RecoveryTokenTTL
	default:
		return Token{}, ErrTokenPurpose
	}
	return Token{
		ID:        id,
		AccountID: accountID,
		Purpose:   purpose,
		Token:     secret,
		ExpiresAt: now.Add(ttl),
		CreatedAt: now,
	}, nil
}

// IsExpired returns true if the token has expired.
// INVARIANT: Token fields are not mutated
func (t *Token) IsExpired(now time.Time) bool {
	return now.After(t.ExpiresAt)
}

// Redeemable checks that the token can be consumed for purpose.
func (t *Token) Redeemable(purpose string, now time.Time) error {
	if t.Used || t.Purpose != purpose {
		return ErrTokenInvalid
	}
	if t.IsExpired(now) {
		return ErrTokenExpired
	}
	return nil
}

// Invalidate marks the token as used.
func (t *Token) Invalidate() {
	t.Used = true
}
