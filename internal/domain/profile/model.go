package profile

import (
	"errors"
	"strings"
	"time"
)

// Max length constants for user-editable fields.
const (
	MaxNameLength = 100
	PhoneDigits   = 10
)

// Role constants. The role name doubles as the first path segment of
// that role's area of the site.
const (
	RoleAdmin  = "admin"
	RoleCoach  = "coach"
	RoleStaff  = "staff"
	RoleClient = "cliente"
)

// Gender values offered at registration.
const (
	GenderMale        = "masculino"
	GenderFemale      = "femenino"
	GenderOther       = "otro"
	GenderUndisclosed = "prefiero_no_decir"
)

// ValidRoles contains all valid role values.
var ValidRoles = []string{RoleAdmin, RoleCoach, RoleStaff, RoleClient}

// ValidGenders contains all valid gender values.
var ValidGenders = []string{GenderMale, GenderFemale, GenderOther, GenderUndisclosed}

// Domain errors
var (
	ErrEmptyName    = errors.New("el nombre es obligatorio")
	ErrNameTooLong  = errors.New("el nombre no puede exceder 100 caracteres")
	ErrInvalidRole  = errors.New("role must be one of: admin, coach, staff, cliente")
	ErrInvalidPhone = errors.New("el teléfono debe tener 10 dígitos")
	ErrEmptyID      = errors.New("profile id cannot be empty")
)

// Profile is the application-level user record keyed by principal id.
type Profile struct {
	ID                 string
	Email              string
	GivenName          string
	FirstSurname       string
	SecondSurname      string
	Phone              string
	BirthDate          string // YYYY-MM-DD
	Gender             string
	Role               string
	Active             bool
	OnboardingComplete bool
	TermsAcceptedAt    time.Time
	CreatedAt          time.Time
	UpdatedAt          time.Time
}

// FullName joins the given name and both surnames.
func (p Profile) FullName() string {
	parts := make([]string, 0, 3)
	for _, s := range []string{p.GivenName, p.FirstSurname, p.SecondSurname} {
		if s = strings.TrimSpace(s); s != "" {
			parts = append(parts, s)
		}
	}
	return strings.Join(parts, " ")
}

// FirstName returns the first word of the given name.
func (p Profile) FirstName() string {
	fields := strings.Fields(p.GivenName)
	if len(fields) == 0 {
		return ""
	}
	return fields[0]
}

// Validate checks if the Profile has valid data.
// PRE: Profile struct is initialized
// POST: Returns error if validation fails, nil otherwise
func (p *Profile) Validate() error {
	if p.ID == "" {
		return ErrEmptyID
	}
	name := p.FullName()
	if name == "" {
		return ErrEmptyName
	}
	if len(name) > MaxNameLength {
		return ErrNameTooLong
	}
	if !IsValidRole(p.Role) {
		return ErrInvalidRole
	}
	if p.Phone != "" && !IsPhone(p.Phone) {
		return ErrInvalidPhone
	}
	return nil
}

// IsClient reports whether the profile belongs to a studio client.
func (p *Profile) IsClient() bool {
	return p.Role == RoleClient
}

// IsValidRole reports whether role is one of ValidRoles.
func IsValidRole(role string) bool {
	for _, r := range ValidRoles {
		if r == role {
			return true
		}
	}
	return false
}

// IsPhone reports whether s is exactly PhoneDigits ASCII digits.
func IsPhone(s string) bool {
	if len(s) != PhoneDigits {
		return false
	}
	for i := 0; i < len(s); i++ {
		if s[i] < '0' || s[i] > '9' {
			return false
		}
	}
	return true
}
