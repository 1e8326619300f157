package parser

import (
	"regexp"
	"strings"
)

var (
	whitespace   = regexp.MustCompile(`\s+`)
	tickerSuffix = regexp.MustCompile(`:[A-Z]{2,4}$`)
	tickerShape  = regexp.MustCompile(`^[A-Z0-9][A-Z0-9.\-/]{0,9}$`)
)

// CleanText collapses runs of whitespace and trims the result.
func CleanText(s string) string {
	return strings.TrimSpace(whitespace.ReplaceAllString(s, " "))
}

// CleanTicker uppercases a ticker, drops exchange suffixes such as ":US" and
// returns "" for placeholders or values that do not look like a symbol.
func CleanTicker(s string) string {
	t := strings.ToUpper(CleanText(s))
	if IsNotAvailable(t) {
		return ""
	}
	t = tickerSuffix.ReplaceAllString(t, "")
	t = strings.TrimPrefix(t, "$")
	if !tickerShape.MatchString(t) {
		return ""
	}
	return t
}
