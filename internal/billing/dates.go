package billing

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"
	"time"
)

// monthIndex maps the three-letter month abbreviations printed on bills.
// Spanish abbreviations are canonical; the English spellings that differ are
// accepted too because some providers print them.
var monthIndex = map[string]time.Month{
	"ENE": time.January,
	"FEB": time.February,
	"MAR": time.March,
	"ABR": time.April,
	"MAY": time.May,
	"JUN": time.June,
	"JUL": time.July,
	"AGO": time.August,
	"SEP": time.September,
	"OCT": time.October,
	"NOV": time.November,
	"DIC": time.December,

	"JAN": time.January,
	"APR": time.April,
	"AUG": time.August,
	"DEC": time.December,
}

var monthAbbrev = [...]string{"", "ENE", "FEB", "MAR", "ABR", "MAY", "JUN", "JUL", "AGO", "SEP", "OCT", "NOV", "DIC"}

// centuryPivot splits two-digit years: below it are 20xx, at or above 19xx
const centuryPivot = 50

var dateRe = regexp.MustCompile(`^(\d{1,2})[\s/\-.]*([A-Za-z]{3})[\s/\-.]*(\d{2}|\d{4})$`)

var compactGasDateRe = regexp.MustCompile(`^(\d{1,2})([A-Z0]{3})(\d{2}|\d{4})$`)

// ParseDate parses a bill date such as "15 MAR 24", "15/MAR/2024" or
// "15-mar-24". It returns ok=false for anything malformed.
func ParseDate(s string) (time.Time, bool) {
	m := dateRe.FindStringSubmatch(strings.TrimSpace(s))
	if m == nil {
		return time.Time{}, false
	}

	day, err := strconv.Atoi(m[1])
	if err != nil {
		return time.Time{}, false
	}
	month, ok := LookupMonth(m[2])
	if !ok {
		return time.Time{}, false
	}
	year, ok := ExpandYear(m[3])
	if !ok {
		return time.Time{}, false
	}

	t := time.Date(year, month, day, 0, 0, 0, 0, time.UTC)
	// Reject overflow such as 31 FEB instead of letting time.Date roll over
	if t.Day() != day || t.Month() != month {
		return time.Time{}, false
	}
	return t, true
}

// FormatDate renders t the way ParseDate reads it back: "DD MON YY"
func FormatDate(t time.Time) string {
	return fmt.Sprintf("%02d %s %02d", t.Day(), monthAbbrev[t.Month()], t.Year()%100)
}

// LookupMonth resolves a three-letter month abbreviation, case-insensitively
func LookupMonth(abbrev string) (time.Month, bool) {
	m, ok := monthIndex[strings.ToUpper(abbrev)]
	return m, ok
}

// ExpandYear turns "24" into 2024 and "87" into 1987. Four-digit years pass through.
func ExpandYear(s string) (int, bool) {
	y, err := strconv.Atoi(s)
	if err != nil || y < 0 {
		return 0, false
	}
	switch len(s) {
	case 2:
		if y < centuryPivot {
			return 2000 + y, true
		}
		return 1900 + y, true
	case 4:
		return y, true
	default:
		return 0, false
	}
}

// ParseGasDate parses the inline reading date of a gas bill. OCR regularly
// reads the letter O inside month abbreviations as the digit 0 ("0CT",
// "N0V"), so the month token is repaired before matching.
func ParseGasDate(s string) (time.Time, bool) {
	s = strings.Trim(strings.TrimSpace(s), "()")
	parts := strings.FieldsFunc(s, func(r rune) bool {
		return r == '/' || r == '-' || r == ' ' || r == '.'
	})
	if len(parts) != 3 || len(parts[1]) != 3 {
		// Unseparated, as in "150CT24"
		if m := compactGasDateRe.FindStringSubmatch(strings.ToUpper(s)); m != nil {
			parts = m[1:]
		} else {
			return ParseDate(s)
		}
	}
	month := strings.ReplaceAll(strings.ToUpper(parts[1]), "0", "O")
	return ParseDate(parts[0] + " " + month + " " + parts[2])
}
