package fetch

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"
)

type WaitUntil string

const (
	WaitLoad             WaitUntil = "load"
	WaitDOMContentLoaded WaitUntil = "domcontentloaded"
	WaitNetworkIdle      WaitUntil = "networkidle"
)

const (
	DefaultTimeout         = 30 * time.Second
	DefaultSelectorTimeout = 10 * time.Second
)

// Options controls a single navigation.
type Options struct {
	WaitUntil WaitUntil
	Timeout   time.Duration
	// WaitExtra is slept after the load event for sites that render their
	// tables client side after the network goes idle.
	WaitExtra time.Duration
	// WaitForSelectors are awaited (any of them) before the content is read.
	WaitForSelectors []string
	SelectorTimeout  time.Duration
	HandleConsent    bool
	// ScreenshotOnMiss stores a full page screenshot when none of the
	// WaitForSelectors appeared.
	ScreenshotOnMiss bool
	ScreenshotName   string
}

// WithDefaults fills unset fields.
func (o Options) WithDefaults() Options {
	if o.WaitUntil == "" {
		o.WaitUntil = WaitNetworkIdle
	}
	if o.Timeout <= 0 {
		o.Timeout = DefaultTimeout
	}
	if o.SelectorTimeout <= 0 {
		o.SelectorTimeout = DefaultSelectorTimeout
	}
	return o
}

// Document is a rendered page ready for selector resolution.
type Document struct {
	URL       string
	HTML      string
	Doc       *goquery.Document
	FetchedAt time.Time
	// SelectorFound is false when WaitForSelectors were given and none appeared
	// before SelectorTimeout.
	SelectorFound bool
}

// NewDocument parses html into a Document.
func NewDocument(url, html string) (*Document, error) {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(html))
	if err != nil {
		return nil, fmt.Errorf("failed to parse html: %w", err)
	}
	return &Document{
		URL:           url,
		HTML:          html,
		Doc:           doc,
		FetchedAt:     time.Now(),
		SelectorFound: true,
	}, nil
}

// Fetcher loads a URL and returns the rendered document.
type Fetcher interface {
	Fetch(ctx context.Context, url string, opts Options) (*Document, error)
}

// NavigationError is a transient fetch level failure. Callers retry it.
type NavigationError struct {
	URL string
	// Attempt is set by the retrying caller; zero when unknown.
	Attempt    int
	StatusCode int
	Err        error
}

func (e *NavigationError) Error() string {
	msg := "navigation to " + e.URL
	if e.Attempt > 0 {
		msg += fmt.Sprintf(" (attempt %d)", e.Attempt)
	}
	if e.StatusCode > 0 {
		return fmt.Sprintf("%s failed with status %d: %v", msg, e.StatusCode, e.Err)
	}
	return fmt.Sprintf("%s failed: %v", msg, e.Err)
}

func (e *NavigationError) Unwrap() error {
	return e.Err
}
