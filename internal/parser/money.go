package parser

import (
	"fmt"
	"math"
	"regexp"
	"strconv"
	"strings"
)

var (
	amountPattern   = regexp.MustCompile(`(?i)^(\d[\d.,]*?)\s*([kmb]|mio|mn|bn)?\.?$`)
	plainNumber     = regexp.MustCompile(`^\d+(?:\.\d+)?$`)
	dotGrouped      = regexp.MustCompile(`^\d{1,3}(?:\.\d{3})+(?:,\d+)?$`)
	commaDecimal    = regexp.MustCompile(`^\d+,\d{1,2}$`)
	spaceGrouping   = strings.NewReplacer(" ", "", "\u00a0", "", "\u202f", "")
	currencyCleaner = strings.NewReplacer("$", "", "€", "", "£", "", "₽", "", "¥", "", "₹", "", "USD", "", "EUR", "", "GBP", "")
	dashReplacer    = strings.NewReplacer("–", "-", "—", "-", "‒", "-", " to ", "-", " bis ", "-")
)

var multipliers = map[string]float64{
	"":    1,
	"k":   1_000,
	"m":   1_000_000,
	"mio": 1_000_000,
	"mn":  1_000_000,
	"b":   1_000_000_000,
	"bn":  1_000_000_000,
}

// SizeRange is a disclosed value bracket with both bounds expanded to
// explicit dollar strings. Empty strings mean the bound is unknown.
type SizeRange struct {
	Min string
	Max string
}

// IsNotAvailable reports whether s is one of the placeholder values sites use
// for missing data.
func IsNotAvailable(s string) bool {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "n/a", "na", "n.a.", "-", "--", "—", "–", "none", "unknown":
		return true
	}
	return false
}

// ParseSize expands compact (15K–50K), explicit ($1,001 - $15,000), open ended
// (50M+, < 1K) and single amounts into a SizeRange.
func ParseSize(text string) SizeRange {
	t := strings.TrimSpace(text)
	if IsNotAvailable(t) {
		return SizeRange{}
	}
	t = dashReplacer.Replace(t)

	switch {
	case strings.HasPrefix(t, "<"):
		if v, ok := parseAmount(strings.TrimPrefix(t, "<")); ok {
			return SizeRange{Max: FormatDollars(v)}
		}
		return SizeRange{}
	case strings.HasSuffix(t, "+"):
		if v, ok := parseAmount(strings.TrimSuffix(t, "+")); ok {
			return SizeRange{Min: FormatDollars(v)}
		}
		return SizeRange{}
	}

	if parts := strings.SplitN(t, "-", 2); len(parts) == 2 {
		lo, okLo := parseAmount(parts[0])
		hi, okHi := parseAmount(parts[1])
		if okLo && okHi {
			return SizeRange{Min: FormatDollars(lo), Max: FormatDollars(hi)}
		}
		if okLo {
			return SizeRange{Min: FormatDollars(lo)}
		}
		return SizeRange{}
	}

	if v, ok := parseAmount(t); ok {
		s := FormatDollars(v)
		return SizeRange{Min: s, Max: s}
	}
	return SizeRange{}
}

// ParseNumber strips currency symbols and thousands separators. Both the
// 1,234.56 and the 1.234,56 conventions are understood. It returns nil for
// anything that is not a number; zero is returned as a real value.
func ParseNumber(s string) *float64 {
	t := strings.TrimSpace(s)
	if IsNotAvailable(t) {
		return nil
	}
	cleaned := spaceGrouping.Replace(currencyCleaner.Replace(t))
	negative := strings.HasPrefix(cleaned, "-")
	cleaned = strings.TrimPrefix(cleaned, "-")

	if digits, ok := canonicalDigits(cleaned, false); ok {
		v, err := strconv.ParseFloat(digits, 64)
		if err != nil {
			return nil
		}
		if negative {
			v = -v
		}
		return &v
	}

	if v, ok := parseAmount(t); ok {
		return &v
	}
	return nil
}

func parseAmount(s string) (float64, bool) {
	t := spaceGrouping.Replace(currencyCleaner.Replace(s))
	m := amountPattern.FindStringSubmatch(t)
	if m == nil {
		return 0, false
	}
	digits, ok := canonicalDigits(m[1], m[2] != "")
	if !ok {
		return 0, false
	}
	v, err := strconv.ParseFloat(digits, 64)
	if err != nil {
		return 0, false
	}
	mult, ok := multipliers[strings.ToLower(m[2])]
	if !ok {
		return 0, false
	}
	return v * mult, true
}

// canonicalDigits rewrites a grouped number into the form ParseFloat reads.
// A "."-grouped integer part or a trailing two-digit comma group marks the
// continental convention. Scaled amounts such as 1.250M keep "." as the
// decimal point.
func canonicalDigits(s string, scaled bool) (string, bool) {
	s = strings.TrimSuffix(s, ".")
	switch {
	case !scaled && dotGrouped.MatchString(s):
		s = strings.ReplaceAll(s, ".", "")
		s = strings.Replace(s, ",", ".", 1)
	case commaDecimal.MatchString(s):
		s = strings.Replace(s, ",", ".", 1)
	default:
		s = strings.ReplaceAll(s, ",", "")
	}
	if !plainNumber.MatchString(s) {
		return "", false
	}
	return s, true
}

// FormatDollars renders v as "$15,000" or "$135.50".
func FormatDollars(v float64) string {
	cents := int64(math.Round(v * 100))
	digits := strconv.FormatInt(cents/100, 10)

	var b strings.Builder
	b.WriteString("$")
	for i, r := range digits {
		if i > 0 && (len(digits)-i)%3 == 0 {
			b.WriteByte(',')
		}
		b.WriteRune(r)
	}
	if rem := cents % 100; rem > 0 {
		fmt.Fprintf(&b, ".%02d", rem)
	}
	return b.String()
}
