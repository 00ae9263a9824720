package web

import (
	"strconv"
	"strings"
	"time"
	"unicode/utf8"

	"studio/internal/domain/profile"
)

// studioLocation is the time zone dates are shown in.
var studioLocation = loadLocation("America/Mexico_City", -6*60*60)

func loadLocation(name string, fallbackOffset int) *time.Location {
	loc, err := time.LoadLocation(name)
	if err != nil {
		return time.FixedZone(name, fallbackOffset)
	}
	return loc
}

var spanishMonths = [...]string{
	"enero", "febrero", "marzo", "abril", "mayo", "junio",
	"julio", "agosto", "septiembre", "octubre", "noviembre", "diciembre",
}

// formatPhone renders ten digits as "(XXX) XXX-XXXX". Anything else is
// returned unchanged.
func formatPhone(phone string) string {
	if !profile.IsPhone(phone) {
		return phone
	}
	return "(" + phone[:3] + ") " + phone[3:6] + "-" + phone[6:]
}

// formatDate renders a date as "02 de enero de 2006" in the studio's
// local time. The zero time renders empty.
func formatDate(t time.Time) string {
	if t.IsZero() {
		return ""
	}
	t = t.In(studioLocation)
	return t.Format("02") + " de " + spanishMonths[t.Month()-1] + " de " + strconv.Itoa(t.Year())
}

// formatISODate renders a "2006-01-02" string with formatDate. Unparsable
// input is returned unchanged.
func formatISODate(s string) string {
	t, err := time.ParseInLocation("2006-01-02", s, studioLocation)
	if err != nil {
		return s
	}
	return formatDate(t)
}

// formatMXN renders an amount in pesos as "$1,234.50".
func formatMXN(amount float64) string {
	neg := amount < 0
	if neg {
		amount = -amount
	}
	cents := int64(amount*100 + 0.5)
	whole := strconv.FormatInt(cents/100, 10)

	var b strings.Builder
	if neg && cents > 0 {
		b.WriteByte('-')
	}
	b.WriteByte('$')
	for i, r := range whole {
		if i > 0 && (len(whole)-i)%3 == 0 {
			b.WriteByte(',')
		}
		b.WriteRune(r)
	}
	frac := cents % 100
	b.WriteByte('.')
	if frac < 10 {
		b.WriteByte('0')
	}
	b.WriteString(strconv.FormatInt(frac, 10))
	return b.String()
}

// truncate cuts s to max runes and appends "...".
func truncate(s string, max int) string {
	if max < 0 || utf8.RuneCountInString(s) <= max {
		return s
	}
	runes := []rune(s)
	return string(runes[:max]) + "..."
}
