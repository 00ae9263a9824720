package client

import (
	cryptorand "crypto/rand"
	"errors"
	"io"
	"math/big"
	"strings"
	"time"
)

// Discipline preferences
const (
	DisciplineCycling    = "cycling"
	DisciplineFunctional = "funcional"
	DisciplineBoth       = "ambos"
)

// Loyalty tiers
const (
	LoyaltyBronze = "bronze"
)

// ReferralSuffixLength is the number of random base-36 characters
// appended to the first name in a referral code.
const ReferralSuffixLength = 4

const base36 = "0123456789ABCDEFGHIJKLMNOPQRSTUVWXYZ"

// ValidDisciplines contains all valid discipline values.
var ValidDisciplines = []string{DisciplineCycling, DisciplineFunctional, DisciplineBoth}

// DisciplineLabels maps disciplines to display names.
var DisciplineLabels = map[string]string{
	DisciplineCycling:    "Indoor Cycling",
	DisciplineFunctional: "Funcional",
	DisciplineBoth:       "Ambos",
}

// Domain errors
var (
	ErrEmptyID           = errors.New("client id cannot be empty")
	ErrInvalidDiscipline = errors.New("discipline must be one of: cycling, funcional, ambos")
	ErrNegativeCredits   = errors.New("credits cannot be negative")
)

// Client extends a profile with studio-specific data for the client role.
// Keyed by the same id as the profile.
type Client struct {
	ID                string
	ReferralCode      string
	Discipline        string
	PreferredSchedule string
	HeardFrom         string
	Credits           int
	LoyaltyLevel      string
	NotifyEmail       bool
	NotifyPush        bool
	NotifyTelegram    bool
	MedicalConditions []string
	EmergencyName     string
	EmergencyPhone    string
	EmergencyRelation string
	TermsSignedAt     time.Time
	WaiverSigned      bool
	WaiverSignedAt    time.Time
	CreatedAt         time.Time
	UpdatedAt         time.Time
}

// New returns a client row with the defaults every new registration gets:
// zero credits, bronze tier, email and push notifications on.
func New(id string, now time.Time) Client {
	return Client{
		ID:           id,
		Discipline:   DisciplineBoth,
		LoyaltyLevel: LoyaltyBronze,
		NotifyEmail:  true,
		NotifyPush:   true,
		CreatedAt:    now,
		UpdatedAt:    now,
	}
}

// Validate checks if the Client has valid data.
// PRE: Client struct is initialized
// POST: Returns error if validation fails, nil otherwise
func (c *Client) Validate() error {
	if c.ID == "" {
		return ErrEmptyID
	}
	if !IsValidDiscipline(c.Discipline) {
		return ErrInvalidDiscipline
	}
	if c.Credits < 0 {
		return ErrNegativeCredits
	}
	return nil
}

// IsValidDiscipline reports whether d is one of ValidDisciplines.
func IsValidDiscipline(d string) bool {
	for _, v := range ValidDisciplines {
		if v == d {
			return true
		}
	}
	return false
}

// ParseMedicalConditions splits free text on commas, trims each entry and
// drops empties. It never returns nil.
func ParseMedicalConditions(text string) []string {
	out := []string{}
	for _, part := range strings.Split(text, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}

// NewReferralCode builds the upper-cased first name followed by
// ReferralSuffixLength random base-36 characters read from rnd
// (crypto/rand when nil). Codes are not checked for collisions.
func NewReferralCode(firstName string, rnd io.Reader) (string, error) {
	if rnd == nil {
		rnd = cryptorand.Reader
	}
	var b strings.Builder
	b.WriteString(strings.ToUpper(strings.TrimSpace(firstName)))
	max := big.NewInt(int64(len(base36)))
	for i := 0; i < ReferralSuffixLength; i++ {
		n, err := cryptorand.Int(rnd, max)
		if err != nil {
			return "", err
		}
		b.WriteByte(base36[n.Int64()])
	}
	return b.String(), nil
}
