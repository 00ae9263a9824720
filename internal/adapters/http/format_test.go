package web

import (
	"testing"
	"time"
)

func TestFormatPhone(t *testing.T) {
	tests := []struct{ in, want string }{
		{"5512345678", "(551) 234-5678"},
		{"551234567", "551234567"},
		{"55-1234-5678", "55-1234-5678"},
		{"", ""},
	}
	for _, tt := range tests {
		if got := formatPhone(tt.in); got != tt.want {
			t.Errorf("formatPhone(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}
}

func TestFormatDate(t *testing.T) {
	tests := []struct {
		in   time.Time
		want string
	}{
		{time.Date(2006, 1, 2, 18, 0, 0, 0, time.UTC), "02 de enero de 2006"},
		{time.Date(2025, 9, 15, 12, 0, 0, 0, time.UTC), "15 de septiembre de 2025"},
		// 03:00 UTC is still the previous evening in Mexico City.
		{time.Date(2025, 12, 1, 3, 0, 0, 0, time.UTC), "30 de noviembre de 2025"},
		{time.Time{}, ""},
	}
	for _, tt := range tests {
		if got := formatDate(tt.in); got != tt.want {
			t.Errorf("formatDate(%v) = %q, want %q", tt.in, got, tt.want)
		}
	}
}

func TestFormatISODate(t *testing.T) {
	if got := formatISODate("1990-07-04"); got != "04 de julio de 1990" {
		t.Errorf("formatISODate = %q", got)
	}
	if got := formatISODate("ayer"); got != "ayer" {
		t.Errorf("formatISODate(unparsable) = %q, want input back", got)
	}
}

func TestFormatMXN(t *testing.T) {
	tests := []struct {
		in   float64
		want string
	}{
		{0, "$0.00"},
		{5, "$5.00"},
		{1234.5, "$1,234.50"},
		{158000, "$158,000.00"},
		{1234567.891, "$1,234,567.89"},
		{-42.1, "-$42.10"},
	}
	for _, tt := range tests {
		if got := formatMXN(tt.in); got != tt.want {
			t.Errorf("formatMXN(%v) = %q, want %q", tt.in, got, tt.want)
		}
	}
}

func TestTruncate(t *testing.T) {
	tests := []struct {
		in   string
		max  int
		want string
	}{
		{"hola", 10, "hola"},
		{"hola", 4, "hola"},
		{"entrenamiento", 6, "entren..."},
		{"ñandú corre", 5, "ñandú..."},
	}
	for _, tt := range tests {
		if got := truncate(tt.in, tt.max); got != tt.want {
			t.Errorf("truncate(%q, %d) = %q, want %q", tt.in, tt.max, got, tt.want)
		}
	}
}
