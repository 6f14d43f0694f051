// Package normalize converts loosely typed backing-store values into their
// canonical forms. Everything here is pure; the caller supplies "today".
package normalize

import (
	"strings"
	"time"

	"github.com/aicare/casemgr/internal/schema"
)

// DateLayout is the canonical stored date format.
const DateLayout = "2006-01-02"

var dateLayouts = []string{
	DateLayout,
	"2006/01/02",
	"2006/1/2",
	"2006-1-2",
	time.RFC3339,
	"2006-01-02T15:04:05.999999",
	"2006-01-02 15:04:05",
}

// phoneColumns are normalized as phone numbers on ingestion, per table.
var phoneColumns = map[string][]string{
	schema.Patients: {"phone", "emergency_phone"},
}

// stripFraction removes the ".0" style artifact that numeric-typed cells
// leave behind ("912345678.0" -> "912345678").
func stripFraction(s string) string {
	s = strings.TrimSpace(s)
	if i := strings.IndexByte(s, '.'); i >= 0 {
		return s[:i]
	}
	return s
}

// Phone returns the canonical Taiwanese mobile form of raw.
func Phone(raw string) string {
	p := stripFraction(raw)
	if len(p) == 9 && !strings.HasPrefix(p, "0") {
		p = "0" + p
	}
	return p
}

// PhonesEqual compares two phones, tolerating a missing leading zero on either side.
func PhonesEqual(a, b string) bool {
	a, b = Phone(a), Phone(b)
	if a == b {
		return true
	}
	ta, tb := strings.TrimLeft(a, "0"), strings.TrimLeft(b, "0")
	return ta != "" && ta == tb
}

// Password strips the fractional artifact and nothing else.
func Password(raw string) string {
	return stripFraction(raw)
}

// Identifier cleans IDs that were stored as numbers.
func Identifier(raw string) string {
	s := strings.TrimSpace(raw)
	if strings.HasSuffix(s, ".0") {
		return strings.TrimSuffix(s, ".0")
	}
	return s
}

// Date parses a stored date in any of the tolerated layouts.
func Date(raw string) (time.Time, bool) {
	s := strings.TrimSpace(raw)
	if s == "" {
		return time.Time{}, false
	}
	for _, layout := range dateLayouts {
		if t, err := time.ParseInLocation(layout, s, time.Local); err == nil {
			return t, true
		}
	}
	return time.Time{}, false
}

// PostOpDay is the whole number of days between surgeryDate and today.
// Missing or unparseable dates yield 0.
func PostOpDay(surgeryDate string, today time.Time) int {
	d, ok := Date(surgeryDate)
	if !ok {
		return 0
	}
	return daysBetween(d, today)
}

// daysBetween counts calendar days, so DST shifts do not drop a day.
func daysBetween(from, to time.Time) int {
	f := time.Date(from.Year(), from.Month(), from.Day(), 0, 0, 0, 0, time.UTC)
	t := time.Date(to.Year(), to.Month(), to.Day(), 0, 0, 0, 0, time.UTC)
	return int(t.Sub(f).Hours() / 24)
}

// Row applies the ingestion transforms for table to row in place.
func Row(table *schema.Table, row map[string]string) {
	if id, ok := row[table.IDColumn]; ok {
		row[table.IDColumn] = Identifier(id)
	}
	if table.Name != schema.Patients {
		if pid, ok := row["patient_id"]; ok {
			row["patient_id"] = Identifier(pid)
		}
	}
	for _, col := range phoneColumns[table.Name] {
		if v, ok := row[col]; ok {
			row[col] = Phone(v)
		}
	}
	if pwd, ok := row["password"]; ok && table.Name == schema.Patients {
		row["password"] = Password(pwd)
	}
}
