package registration

import (
	"errors"
	"fmt"
	"strings"

	"github.com/go-playground/validator/v10"

	"studio/internal/domain/account"
	"studio/internal/domain/consent"
	"studio/internal/domain/profile"
)

// Validation errors, one per field. Each is shown verbatim in the wizard's
// error slot.
var (
	ErrGivenName         = errors.New("el nombre debe tener al menos 2 caracteres")
	ErrFirstSurname      = errors.New("el apellido paterno debe tener al menos 2 caracteres")
	ErrSecondSurname     = errors.New("el apellido materno debe tener al menos 2 caracteres")
	ErrEmailFormat       = errors.New("formato de email inválido")
	ErrPhoneLength       = errors.New("el teléfono debe tener 10 dígitos")
	ErrPasswordLength    = errors.New("la contraseña debe tener al menos 8 caracteres")
	ErrPasswordMismatch  = errors.New("las contraseñas no coinciden")
	ErrPasswordTooLong   = account.ErrPasswordTooLong
	ErrBirthDate         = errors.New("la fecha de nacimiento es obligatoria")
	ErrGender            = errors.New("selecciona un género")
	ErrSchedule          = errors.New("selecciona tu horario preferido")
	ErrHeardFrom         = errors.New("cuéntanos cómo nos conociste")
	ErrDiscipline        = errors.New("selecciona una disciplina")
	ErrEmergencyName     = errors.New("el nombre del contacto de emergencia es obligatorio")
	ErrEmergencyPhone    = errors.New("el teléfono de emergencia debe tener 10 dígitos")
	ErrEmergencyRelation = errors.New("selecciona la relación con tu contacto de emergencia")
	ErrTermsSignature    = errors.New("firma los términos y condiciones")
	ErrWaiverSignature   = errors.New("firma el deslinde de responsabilidad")
)

type identityStep struct {
	GivenName       string `validate:"min=2"`
	FirstSurname    string `validate:"min=2"`
	SecondSurname   string `validate:"min=2"`
	Email           string `validate:"email_shape"`
	Phone           string `validate:"phone"`
	Password        string `validate:"min=8,bcrypt_len"`
	ConfirmPassword string `validate:"eqfield=Password"`
	BirthDate       string `validate:"required,datetime=2006-01-02"`
	Gender          string `validate:"oneof=masculino femenino otro prefiero_no_decir"`
}

type preferencesStep struct {
	PreferredSchedule string `validate:"oneof=manana mediodia tarde noche"`
	HeardFrom         string `validate:"oneof=instagram facebook google recomendacion volante otro"`
	Discipline        string `validate:"oneof=cycling funcional ambos"`
}

type healthStep struct {
	EmergencyName     string `validate:"required"`
	EmergencyPhone    string `validate:"phone"`
	EmergencyRelation string `validate:"oneof=madre padre pareja hermano hijo amigo otro"`
}

var fieldErrors = map[string]error{
	"GivenName":         ErrGivenName,
	"FirstSurname":      ErrFirstSurname,
	"SecondSurname":     ErrSecondSurname,
	"Email":             ErrEmailFormat,
	"Phone":             ErrPhoneLength,
	"Password":          ErrPasswordLength,
	"ConfirmPassword":   ErrPasswordMismatch,
	"BirthDate":         ErrBirthDate,
	"Gender":            ErrGender,
	"PreferredSchedule": ErrSchedule,
	"HeardFrom":         ErrHeardFrom,
	"Discipline":        ErrDiscipline,
	"EmergencyName":     ErrEmergencyName,
	"EmergencyPhone":    ErrEmergencyPhone,
	"EmergencyRelation": ErrEmergencyRelation,
}

// tagErrors overrides fieldErrors for a field failing one specific tag.
var tagErrors = map[string]error{
	"Password.bcrypt_len": ErrPasswordTooLong,
}

var validate = newValidator()

func newValidator() *validator.Validate {
	v := validator.New(validator.WithRequiredStructEnabled())
	must := func(err error) {
		if err != nil {
			panic(err)
		}
	}
	must(v.RegisterValidation("email_shape", func(fl validator.FieldLevel) bool {
		return account.ValidEmail(fl.Field().String())
	}))
	must(v.RegisterValidation("phone", func(fl validator.FieldLevel) bool {
		return profile.IsPhone(fl.Field().String())
	}))
	must(v.RegisterValidation("bcrypt_len", func(fl validator.FieldLevel) bool {
		return len(fl.Field().String()) <= account.MaxPasswordBytes
	}))
	return v
}

// check runs the struct validator and maps the first failing field to its
// domain error.
func check(step any) error {
	err := validate.Struct(step)
	if err == nil {
		return nil
	}
	var ve validator.ValidationErrors
	if !errors.As(err, &ve) || len(ve) == 0 {
		return err
	}
	fe := ve[0]
	if mapped, ok := tagErrors[fe.StructField()+"."+fe.Tag()]; ok {
		return mapped
	}
	if mapped, ok := fieldErrors[fe.StructField()]; ok {
		return mapped
	}
	return fmt.Errorf("%s failed validation (%s)", strings.ToLower(fe.Field()), fe.Tag())
}

// ValidateIdentity checks step 1.
func ValidateIdentity(f Form) error {
	return check(identityStep{
		GivenName:       strings.TrimSpace(f.GivenName),
		FirstSurname:    strings.TrimSpace(f.FirstSurname),
		SecondSurname:   strings.TrimSpace(f.SecondSurname),
		Email:           f.Email,
		Phone:           f.Phone,
		Password:        f.Password,
		ConfirmPassword: f.ConfirmPassword,
		BirthDate:       f.BirthDate,
		Gender:          f.Gender,
	})
}

// ValidatePreferences checks step 2.
func ValidatePreferences(f Form) error {
	return check(preferencesStep{
		PreferredSchedule: f.PreferredSchedule,
		HeardFrom:         f.HeardFrom,
		Discipline:        f.Discipline,
	})
}

// ValidateHealth checks step 3. Medical conditions are optional.
func ValidateHealth(f Form) error {
	return check(healthStep{
		EmergencyName:     strings.TrimSpace(f.EmergencyName),
		EmergencyPhone:    f.EmergencyPhone,
		EmergencyRelation: f.EmergencyRelation,
	})
}

// ValidateConsent checks step 4: both signatures present and decodable.
func ValidateConsent(terms, waiver *string) error {
	if terms == nil {
		return ErrTermsSignature
	}
	if _, err := consent.DecodeSignature(*terms); err != nil {
		return fmt.Errorf("%w: %w", ErrTermsSignature, err)
	}
	if waiver == nil {
		return ErrWaiverSignature
	}
	if _, err := consent.DecodeSignature(*waiver); err != nil {
		return fmt.Errorf("%w: %w", ErrWaiverSignature, err)
	}
	return nil
}
