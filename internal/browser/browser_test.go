package browser

import (
	"testing"
	"time"

	"github.com/playwright-community/playwright-go"

	"github.com/maltedev/politician-trades/internal/fetch"
)

func TestDefaultOptions(t *testing.T) {
	opts := DefaultOptions()

	if !opts.Headless {
		t.Error("Expected headless to be true by default")
	}

	if opts.Timeout != 30*time.Second {
		t.Errorf("Expected timeout to be 30s, got %v", opts.Timeout)
	}

	if opts.ViewportWidth != 1920 || opts.ViewportHeight != 1080 {
		t.Errorf("Expected viewport to be 1920x1080, got %dx%d", opts.ViewportWidth, opts.ViewportHeight)
	}

	if opts.Locale != "en-US" {
		t.Errorf("Expected locale to be en-US, got %s", opts.Locale)
	}
}

func TestApplyDefaults(t *testing.T) {
	opts := &Options{Headless: true, Locale: "de-DE", ViewportWidth: 1280}
	opts.applyDefaults()

	if opts.Locale != "de-DE" {
		t.Errorf("Expected locale to be kept, got %s", opts.Locale)
	}
	if opts.ViewportWidth != 1920 || opts.ViewportHeight != 1080 {
		t.Errorf("Expected incomplete viewport to fall back to 1920x1080, got %dx%d", opts.ViewportWidth, opts.ViewportHeight)
	}
	if opts.UserAgent == "" {
		t.Error("Expected a user agent")
	}
	if opts.Timeout != 30*time.Second {
		t.Errorf("Expected timeout to be 30s, got %v", opts.Timeout)
	}
}

func TestWaitUntilState(t *testing.T) {
	tests := []struct {
		in   fetch.WaitUntil
		want *playwright.WaitUntilState
	}{
		{fetch.WaitLoad, playwright.WaitUntilStateLoad},
		{fetch.WaitDOMContentLoaded, playwright.WaitUntilStateDomcontentloaded},
		{fetch.WaitNetworkIdle, playwright.WaitUntilStateNetworkidle},
		{"", playwright.WaitUntilStateNetworkidle},
	}

	for _, tt := range tests {
		if got := waitUntilState(tt.in); *got != *tt.want {
			t.Errorf("waitUntilState(%q) = %v, want %v", tt.in, *got, *tt.want)
		}
	}
}

func TestFetcher_CloseWithoutLaunch(t *testing.T) {
	f := &Fetcher{}
	if err := f.Close(); err != nil {
		t.Errorf("Expected nil error closing an unused fetcher, got %v", err)
	}
}
