package registration

import (
	"errors"
	"fmt"
	"strings"

	"studio/internal/domain/client"
	"studio/internal/domain/profile"
)

// Form field names as posted by the wizard pages.
const (
	FieldGivenName         = "nombre"
	FieldFirstSurname      = "apellido_paterno"
	FieldSecondSurname     = "apellido_materno"
	FieldEmail             = "email"
	FieldPhone             = "telefono"
	FieldPassword          = "password"
	FieldConfirmPassword   = "confirmar_password"
	FieldBirthDate         = "fecha_nacimiento"
	FieldGender            = "genero"
	FieldPreferredSchedule = "horario_preferido"
	FieldHeardFrom         = "como_nos_conociste"
	FieldDiscipline        = "disciplina"
	FieldEmergencyName     = "contacto_emergencia_nombre"
	FieldEmergencyPhone    = "contacto_emergencia_telefono"
	FieldEmergencyRelation = "contacto_emergencia_relacion"
	FieldMedicalConditions = "condiciones_medicas"
)

// Schedule bands a client can prefer.
var ScheduleBands = []string{"manana", "mediodia", "tarde", "noche"}

// HeardFromOptions are the answers to "how did you hear about us".
var HeardFromOptions = []string{"instagram", "facebook", "google", "recomendacion", "volante", "otro"}

// Relations accepted for the emergency contact.
var Relations = []string{"madre", "padre", "pareja", "hermano", "hijo", "amigo", "otro"}

// StepFields lists the fields each data step owns.
var StepFields = map[int][]string{
	StepIdentity: {
		FieldGivenName, FieldFirstSurname, FieldSecondSurname, FieldEmail, FieldPhone,
		FieldPassword, FieldConfirmPassword, FieldBirthDate, FieldGender,
	},
	StepPreferences: {FieldPreferredSchedule, FieldHeardFrom, FieldDiscipline},
	StepHealth:      {FieldEmergencyName, FieldEmergencyPhone, FieldEmergencyRelation, FieldMedicalConditions},
}

// ErrUnknownField is returned by Form.Set for names outside the wizard.
var ErrUnknownField = errors.New("unknown registration field")

// Form is the flat bag of values collected across the wizard.
type Form struct {
	GivenName         string
	FirstSurname      string
	SecondSurname     string
	Email             string
	Phone             string
	Password          string
	ConfirmPassword   string
	BirthDate         string
	Gender            string
	PreferredSchedule string
	HeardFrom         string
	Discipline        string
	EmergencyName     string
	EmergencyPhone    string
	EmergencyRelation string
	MedicalConditions string
}

// NewForm returns an empty form with the discipline defaulted to both.
func NewForm() Form {
	return Form{Discipline: client.DisciplineBoth}
}

// Set stores a single field. Phone fields are filtered the same way the
// page filters keystrokes: non-digits are dropped and input stops at ten
// digits.
func (f *Form) Set(field, value string) error {
	switch field {
	case FieldGivenName:
		f.GivenName = value
	case FieldFirstSurname:
		f.FirstSurname = value
	case FieldSecondSurname:
		f.SecondSurname = value
	case FieldEmail:
		f.Email = strings.TrimSpace(value)
	case FieldPhone:
		f.Phone = SanitizePhone(value)
	case FieldPassword:
		f.Password = value
	case FieldConfirmPassword:
		f.ConfirmPassword = value
	case FieldBirthDate:
		f.BirthDate = strings.TrimSpace(value)
	case FieldGender:
		f.Gender = value
	case FieldPreferredSchedule:
		f.PreferredSchedule = value
	case FieldHeardFrom:
		f.HeardFrom = value
	case FieldDiscipline:
		f.Discipline = value
	case FieldEmergencyName:
		f.EmergencyName = value
	case FieldEmergencyPhone:
		f.EmergencyPhone = SanitizePhone(value)
	case FieldEmergencyRelation:
		f.EmergencyRelation = value
	case FieldMedicalConditions:
		f.MedicalConditions = value
	default:
		return fmt.Errorf("%w: %q", ErrUnknownField, field)
	}
	return nil
}

// Get returns the stored value of a field, or "" for unknown names.
func (f Form) Get(field string) string {
	switch field {
	case FieldGivenName:
		return f.GivenName
	case FieldFirstSurname:
		return f.FirstSurname
	case FieldSecondSurname:
		return f.SecondSurname
	case FieldEmail:
		return f.Email
	case FieldPhone:
		return f.Phone
	case FieldPassword:
		return f.Password
	case FieldConfirmPassword:
		return f.ConfirmPassword
	case FieldBirthDate:
		return f.BirthDate
	case FieldGender:
		return f.Gender
	case FieldPreferredSchedule:
		return f.PreferredSchedule
	case FieldHeardFrom:
		return f.HeardFrom
	case FieldDiscipline:
		return f.Discipline
	case FieldEmergencyName:
		return f.EmergencyName
	case FieldEmergencyPhone:
		return f.EmergencyPhone
	case FieldEmergencyRelation:
		return f.EmergencyRelation
	case FieldMedicalConditions:
		return f.MedicalConditions
	}
	return ""
}

// FilterPhoneInput applies one keystroke to a phone field value. A
// non-digit or an eleventh digit is dropped silently.
func FilterPhoneInput(current string, typed rune) string {
	if typed < '0' || typed > '9' {
		return current
	}
	if len(current) >= profile.PhoneDigits {
		return current
	}
	return current + string(typed)
}

// SanitizePhone replays raw keystroke by keystroke through FilterPhoneInput.
func SanitizePhone(raw string) string {
	out := ""
	for _, r := range raw {
		out = FilterPhoneInput(out, r)
	}
	return out
}
