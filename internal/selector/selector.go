// Package selector resolves ordered CSS selector candidates against a parsed
// document so scrapers keep working when a site renames its markup.
package selector

import (
	"fmt"
	"strings"

	"github.com/PuerkitoBio/goquery"
	"golang.org/x/net/html"
)

// NoMatchError is returned when none of the candidates match an element.
type NoMatchError struct {
	Candidates []string
}

func (e *NoMatchError) Error() string {
	return fmt.Sprintf("no selector matched: %s", strings.Join(e.Candidates, " | "))
}

// Match is the first candidate that produced elements.
type Match struct {
	Selector  string
	Selection *goquery.Selection
}

func (m Match) Len() int {
	if m.Selection == nil {
		return 0
	}
	return m.Selection.Length()
}

// Resolve returns the first candidate that matches at least one element
// under root, in priority order.
func Resolve(root *goquery.Selection, candidates []string) (Match, error) {
	for _, candidate := range candidates {
		if strings.TrimSpace(candidate) == "" {
			continue
		}
		sel := root.Find(candidate)
		if sel.Length() > 0 {
			return Match{Selector: candidate, Selection: sel}, nil
		}
	}
	return Match{}, &NoMatchError{Candidates: candidates}
}

// FirstText returns the flattened text of the first candidate that yields a
// non-empty value.
func FirstText(row *goquery.Selection, candidates []string) string {
	for _, candidate := range candidates {
		sel := row.Find(candidate).First()
		if sel.Length() == 0 {
			continue
		}
		if text := FlattenText(sel); text != "" {
			return text
		}
	}
	return ""
}

// FirstAttr returns the first non-empty attribute value among the candidates.
func FirstAttr(row *goquery.Selection, candidates []string, attr string) string {
	for _, candidate := range candidates {
		sel := row.Find(candidate).First()
		if sel.Length() == 0 {
			continue
		}
		if v, ok := sel.Attr(attr); ok && strings.TrimSpace(v) != "" {
			return strings.TrimSpace(v)
		}
	}
	return ""
}

// Exists reports whether any candidate matches under row.
func Exists(row *goquery.Selection, candidates []string) bool {
	for _, candidate := range candidates {
		if row.Find(candidate).Length() > 0 || row.Is(candidate) {
			return true
		}
	}
	return false
}

// FlattenText joins all descendant text nodes with single spaces, so that
// "<div>30 Oct</div><div>2025</div>" reads "30 Oct 2025".
func FlattenText(sel *goquery.Selection) string {
	var parts []string
	for _, n := range sel.Nodes {
		collectText(n, &parts)
	}
	return strings.Join(parts, " ")
}

func collectText(n *html.Node, parts *[]string) {
	if n.Type == html.TextNode {
		if t := strings.Join(strings.Fields(n.Data), " "); t != "" {
			*parts = append(*parts, t)
		}
		return
	}
	if n.Type == html.ElementNode && (n.Data == "script" || n.Data == "style") {
		return
	}
	for c := n.FirstChild; c != nil; c = c.NextSibling {
		collectText(c, parts)
	}
}
