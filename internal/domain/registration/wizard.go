// Package registration holds the client sign-up wizard: a five step
// finite-state machine over an in-memory form. Transitions are pure
// functions of State; the only side effect, persisting the finished
// registration, is delegated to a Submitter.
package registration

import (
	"context"
	"errors"

	"studio/internal/domain/client"
	"studio/internal/domain/consent"
)

// Steps
const (
	StepIdentity    = 1
	StepPreferences = 2
	StepHealth      = 3
	StepConsent     = 4
	StepDone        = 5

	TotalSteps   = StepDone
	LastDataStep = StepConsent
)

// ErrNotSubmittable is returned when Submit is called away from the
// consent step.
var ErrNotSubmittable = errors.New("registration can only be submitted from the consent step")

// StepTitles are shown in the step indicator.
var StepTitles = map[int]string{
	StepIdentity:    "Datos personales",
	StepPreferences: "Preferencias",
	StepHealth:      "Salud y emergencia",
	StepConsent:     "Firmas",
	StepDone:        "Listo",
}

// State is one browser's progress through the wizard.
type State struct {
	Step            int
	Form            Form
	TermsSignature  *string
	WaiverSignature *string

	// Error is the single visible error slot. Every Next or Submit
	// attempt clears it first.
	Error string

	// Result is set once Submit succeeds.
	Result *Result
}

// Submission is everything the persistence side needs, with medical
// conditions already parsed.
type Submission struct {
	Email             string
	Password          string
	GivenName         string
	FirstSurname      string
	SecondSurname     string
	Phone             string
	BirthDate         string
	Gender            string
	PreferredSchedule string
	HeardFrom         string
	Discipline        string
	EmergencyName     string
	EmergencyPhone    string
	EmergencyRelation string
	MedicalConditions []string
	TermsSignature    string
	WaiverSignature   string
}

// Result describes the persisted registration.
type Result struct {
	AccountID    string
	ReferralCode string
	Email        string
}

// Submitter persists a finished registration.
type Submitter interface {
	Submit(ctx context.Context, sub Submission) (Result, error)
}

// SubmitterFunc adapts a function to Submitter.
type SubmitterFunc func(ctx context.Context, sub Submission) (Result, error)

// Submit calls f.
func (f SubmitterFunc) Submit(ctx context.Context, sub Submission) (Result, error) {
	return f(ctx, sub)
}

// NewState returns a wizard positioned on the first step.
func NewState() State {
	return State{Step: StepIdentity, Form: NewForm()}
}

// IsFirstStep reports whether Previous would be a no-op.
func (s State) IsFirstStep() bool { return s.Step == StepIdentity }

// IsDone reports whether the wizard reached its terminal step.
func (s State) IsDone() bool { return s.Step == StepDone }

// CanSubmit reports whether the current step offers submission.
func (s State) CanSubmit() bool { return s.Step == LastDataStep }

// ValidateStep runs the validator that guards leaving step.
func ValidateStep(s State, step int) error {
	switch step {
	case StepIdentity:
		return ValidateIdentity(s.Form)
	case StepPreferences:
		return ValidatePreferences(s.Form)
	case StepHealth:
		return ValidateHealth(s.Form)
	case StepConsent:
		return ValidateConsent(s.TermsSignature, s.WaiverSignature)
	}
	return nil
}

// Next advances one step when the current step validates. It never moves
// past the consent step; leaving that step requires Submit.
func Next(s State) (State, error) {
	s.Error = ""
	if s.Step >= LastDataStep {
		return s, nil
	}
	if err := ValidateStep(s, s.Step); err != nil {
		s.Error = err.Error()
		return s, err
	}
	s.Step++
	return s, nil
}

// Previous goes back one step without validating. It is a no-op on the
// first and terminal steps.
func Previous(s State) State {
	if s.Step > StepIdentity && s.Step < StepDone {
		s.Step--
	}
	return s
}

// SetSignature records or clears (empty dataURL) a captured signature.
func SetSignature(s State, t consent.Type, dataURL string) State {
	var v *string
	if dataURL != "" {
		v = &dataURL
	}
	switch t {
	case consent.TypeTerms:
		s.TermsSignature = v
	case consent.TypeWaiver:
		s.WaiverSignature = v
	}
	return s
}

// Update stores every known field of values on the form. Unknown names
// leave the form untouched and are reported together, wrapping
// ErrUnknownField.
func Update(s State, values map[string]string) (State, error) {
	var errs []error
	for k, v := range values {
		if err := s.Form.Set(k, v); err != nil {
			errs = append(errs, err)
		}
	}
	return s, errors.Join(errs...)
}

// Submit validates every data step and hands the submission to sub. On
// success the wizard moves to StepDone and the passwords are wiped from
// the form; on failure the step is unchanged and the error slot holds the
// message.
func Submit(ctx context.Context, s State, sub Submitter) (State, error) {
	s.Error = ""
	if !s.CanSubmit() {
		s.Error = ErrNotSubmittable.Error()
		return s, ErrNotSubmittable
	}
	for step := StepIdentity; step <= LastDataStep; step++ {
		if err := ValidateStep(s, step); err != nil {
			s.Error = err.Error()
			return s, err
		}
	}

	res, err := sub.Submit(ctx, s.submission())
	if err != nil {
		s.Error = err.Error()
		return s, err
	}

	s.Form.Password = ""
	s.Form.ConfirmPassword = ""
	s.Result = &res
	s.Step = StepDone
	return s, nil
}

func (s State) submission() Submission {
	f := s.Form
	return Submission{
		Email:             f.Email,
		Password:          f.Password,
		GivenName:         f.GivenName,
		FirstSurname:      f.FirstSurname,
		SecondSurname:     f.SecondSurname,
		Phone:             f.Phone,
		BirthDate:         f.BirthDate,
		Gender:            f.Gender,
		PreferredSchedule: f.PreferredSchedule,
		HeardFrom:         f.HeardFrom,
		Discipline:        f.Discipline,
		EmergencyName:     f.EmergencyName,
		EmergencyPhone:    f.EmergencyPhone,
		EmergencyRelation: f.EmergencyRelation,
		MedicalConditions: client.ParseMedicalConditions(f.MedicalConditions),
		TermsSignature:    *s.TermsSignature,
		WaiverSignature:   *s.WaiverSignature,
	}
}
