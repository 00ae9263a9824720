package registration_test

import (
	"errors"
	"testing"

	"studio/internal/domain/registration"
)

func TestFilterPhoneInput(t *testing.T) {
	tests := []struct {
		current string
		typed   rune
		want    string
	}{
		{"", '4', "4"},
		{"477", 'a', "477"},
		{"477", '-', "477"},
		{"477123456", '7', "4771234567"},
		{"4771234567", '8', "4771234567"},
	}
	for _, tt := range tests {
		if got := registration.FilterPhoneInput(tt.current, tt.typed); got != tt.want {
			t.Errorf("FilterPhoneInput(%q, %q) = %q, want %q", tt.current, tt.typed, got, tt.want)
		}
	}
}

func TestSanitizePhone(t *testing.T) {
	tests := map[string]string{
		"12a34":          "1234",
		"(477) 123-4567": "4771234567",
		"477123456789":   "4771234567",
		"":               "",
		"teléfono":       "",
	}
	for in, want := range tests {
		if got := registration.SanitizePhone(in); got != want {
			t.Errorf("SanitizePhone(%q) = %q, want %q", in, got, want)
		}
	}
}

func TestForm_SetGet(t *testing.T) {
	f := registration.NewForm()
	if f.Discipline != "ambos" {
		t.Errorf("default discipline = %q", f.Discipline)
	}
	if err := f.Set(registration.FieldPhone, "12a34"); err != nil {
		t.Fatal(err)
	}
	if got := f.Get(registration.FieldPhone); got != "1234" {
		t.Errorf("phone = %q, want 1234", got)
	}
	if err := f.Set(registration.FieldEmail, "  ana@strive.mx "); err != nil {
		t.Fatal(err)
	}
	if f.Email != "ana@strive.mx" {
		t.Errorf("email = %q", f.Email)
	}
	if err := f.Set("color_favorito", "azul"); !errors.Is(err, registration.ErrUnknownField) {
		t.Errorf("unknown field err = %v", err)
	}
	if got := f.Get("color_favorito"); got != "" {
		t.Errorf("Get unknown = %q", got)
	}
}

func TestStepFieldsCoverForm(t *testing.T) {
	f := registration.NewForm()
	for step, fields := range registration.StepFields {
		for _, name := range fields {
			if err := f.Set(name, "x"); err != nil {
				t.Errorf("step %d field %q: %v", step, name, err)
			}
		}
	}
}
