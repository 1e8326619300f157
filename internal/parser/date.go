package parser

import (
	"regexp"
	"strconv"
	"strings"
	"time"
)

// NumericOrder selects how an all-numeric date such as 03/04/2025 is read.
type NumericOrder int

const (
	// OrderAuto reads "/" dates as MM/DD/YYYY and "." or "-" dates as
	// DD.MM.YYYY. Every order falls back to the other reading when the
	// preferred one yields a month above 12.
	OrderAuto NumericOrder = iota
	OrderMDY
	OrderDMY
)

func ParseNumericOrder(s string) NumericOrder {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "mdy", "us":
		return OrderMDY
	case "dmy", "eu":
		return OrderDMY
	}
	return OrderAuto
}

var (
	isoDatePattern  = regexp.MustCompile(`\b(\d{4})-(\d{1,2})-(\d{1,2})\b`)
	numericPattern  = regexp.MustCompile(`\b(\d{1,2})([./-])(\d{1,2})([./-])(\d{4})\b`)
	dayMonthPattern = regexp.MustCompile(`(?i)\b(\d{1,2})(?:st|nd|rd|th)?\.?\s+([\p{L}]{3,10})\.?,?\s+(\d{4})\b`)
	monthDayPattern = regexp.MustCompile(`(?i)\b([\p{L}]{3,10})\.?\s+(\d{1,2})(?:st|nd|rd|th)?,?\s+(\d{4})\b`)
)

// monthNames holds whole month tokens: English and German full names and
// their common abbreviations.
var monthNames = map[string]time.Month{
	"jan": time.January, "january": time.January, "januar": time.January, "jän": time.January,
	"feb": time.February, "february": time.February, "februar": time.February,
	"mar": time.March, "march": time.March, "mär": time.March, "märz": time.March, "maerz": time.March,
	"apr": time.April, "april": time.April,
	"may": time.May, "mai": time.May,
	"jun": time.June, "june": time.June, "juni": time.June,
	"jul": time.July, "july": time.July, "juli": time.July,
	"aug": time.August, "august": time.August,
	"sep": time.September, "sept": time.September, "september": time.September,
	"oct": time.October, "october": time.October, "okt": time.October, "oktober": time.October,
	"nov": time.November, "november": time.November,
	"dec": time.December, "december": time.December, "dez": time.December, "dezember": time.December,
}

// ParseDate recognises ISO, numeric and month-name dates anywhere in s.
// The result is midnight UTC of the parsed calendar day.
func ParseDate(s string, order NumericOrder) (time.Time, bool) {
	s = strings.TrimSpace(s)
	if s == "" {
		return time.Time{}, false
	}

	if m := isoDatePattern.FindStringSubmatch(s); m != nil {
		if t, ok := buildDate(m[1], m[2], m[3]); ok {
			return t, true
		}
	}

	if m := numericPattern.FindStringSubmatch(s); m != nil && m[2] == m[4] {
		first, second, year := m[1], m[3], m[5]
		dmy := order == OrderDMY || (order == OrderAuto && m[2] != "/")
		if t, ok := numericDate(year, first, second, dmy); ok {
			return t, true
		}
	}

	for _, m := range dayMonthPattern.FindAllStringSubmatch(s, -1) {
		if month, ok := lookupMonth(m[2]); ok {
			if t, ok := buildDate(m[3], strconv.Itoa(int(month)), m[1]); ok {
				return t, true
			}
		}
	}

	for _, m := range monthDayPattern.FindAllStringSubmatch(s, -1) {
		if month, ok := lookupMonth(m[1]); ok {
			if t, ok := buildDate(m[3], strconv.Itoa(int(month)), m[2]); ok {
				return t, true
			}
		}
	}

	return time.Time{}, false
}

// ParseDateOrNow substitutes the day of now when s cannot be parsed. The
// second return value reports whether the fallback was used.
func ParseDateOrNow(s string, order NumericOrder, now time.Time) (time.Time, bool) {
	if t, ok := ParseDate(s, order); ok {
		return t, false
	}
	y, m, d := now.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC), true
}

func lookupMonth(name string) (time.Month, bool) {
	month, ok := monthNames[strings.ToLower(name)]
	return month, ok
}

func numericDate(year, first, second string, dmy bool) (time.Time, bool) {
	day, month := second, first
	if dmy {
		day, month = first, second
	}
	if t, ok := buildDate(year, month, day); ok {
		return t, true
	}
	if m, err := strconv.Atoi(month); err == nil && m > 12 {
		return buildDate(year, day, month)
	}
	return time.Time{}, false
}

func buildDate(year, month, day string) (time.Time, bool) {
	y, err := strconv.Atoi(year)
	if err != nil {
		return time.Time{}, false
	}
	m, err := strconv.Atoi(month)
	if err != nil || m < 1 || m > 12 {
		return time.Time{}, false
	}
	d, err := strconv.Atoi(day)
	if err != nil || d < 1 {
		return time.Time{}, false
	}

	t := time.Date(y, time.Month(m), d, 0, 0, 0, 0, time.UTC)
	if t.Day() != d || t.Month() != time.Month(m) {
		return time.Time{}, false
	}
	return t, true
}
