package browser

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"regexp"
	"strings"
	"sync"
	"time"

	"github.com/playwright-community/playwright-go"

	"github.com/maltedev/politician-trades/internal/fetch"
	"github.com/maltedev/politician-trades/internal/retry"
)

// consentSelectors are tried in order; the first visible one is clicked.
var consentSelectors = []string{
	"#onetrust-accept-btn-handler",
	`button[id*="accept"]`,
	`button[id*="cookie"]`,
	`button[class*="accept"]`,
	`button[class*="cookie"]`,
	".cookie-consent-accept",
	"#cookie-accept",
	`[data-testid="cookie-accept"]`,
	`button:has-text("Accept all")`,
	`button:has-text("Accept")`,
	`button:has-text("Alle akzeptieren")`,
}

var unsafeFileChars = regexp.MustCompile(`[^a-zA-Z0-9_-]+`)

// Fetcher renders pages in a shared headless browser. The browser is
// launched on first use.
type Fetcher struct {
	opts     *Options
	debugDir string
	logger   *slog.Logger

	mu      sync.Mutex
	browser *Browser
}

func NewFetcher(opts *Options, debugDir string, logger *slog.Logger) *Fetcher {
	return &Fetcher{
		opts:     opts,
		debugDir: debugDir,
		logger:   logger.With("component", "browser_fetcher"),
	}
}

func (f *Fetcher) ensureBrowser() (*Browser, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	if f.browser != nil {
		return f.browser, nil
	}
	b, err := New(f.opts, f.logger)
	if err != nil {
		return nil, err
	}
	f.browser = b
	return b, nil
}

func (f *Fetcher) Fetch(ctx context.Context, url string, opts fetch.Options) (*fetch.Document, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	opts = opts.WithDefaults()

	b, err := f.ensureBrowser()
	if err != nil {
		return nil, retry.Permanent(err)
	}

	page, err := b.NewPage()
	if err != nil {
		return nil, &fetch.NavigationError{URL: url, Err: err}
	}
	defer page.Close()

	f.logger.Debug("navigating", "url", url, "wait_until", opts.WaitUntil)

	resp, err := page.Goto(url, playwright.PageGotoOptions{
		WaitUntil: waitUntilState(opts.WaitUntil),
		Timeout:   playwright.Float(float64(opts.Timeout.Milliseconds())),
	})
	if err != nil {
		return nil, &fetch.NavigationError{URL: url, Err: err}
	}
	if resp != nil && resp.Status() >= 400 {
		return nil, &fetch.NavigationError{
			URL:        url,
			StatusCode: resp.Status(),
			Err:        fmt.Errorf("unexpected response %s", resp.StatusText()),
		}
	}

	if opts.HandleConsent {
		if f.handleConsent(page) {
			f.logger.Debug("consent dialog accepted", "url", url)
		}
	}

	if opts.WaitExtra > 0 {
		if err := retry.Sleep(ctx, opts.WaitExtra); err != nil {
			return nil, err
		}
	}

	found := true
	if len(opts.WaitForSelectors) > 0 {
		found = f.waitForAny(page, opts.WaitForSelectors, opts.SelectorTimeout)
		if !found {
			f.logger.Warn("no expected element rendered", "url", url, "selectors", opts.WaitForSelectors)
			if opts.ScreenshotOnMiss {
				f.screenshot(page, opts.ScreenshotName)
			}
		}
	}

	content, err := page.Content()
	if err != nil {
		return nil, &fetch.NavigationError{URL: url, Err: fmt.Errorf("failed to read page content: %w", err)}
	}

	doc, err := fetch.NewDocument(page.URL(), content)
	if err != nil {
		return nil, err
	}
	doc.SelectorFound = found

	return doc, nil
}

func (f *Fetcher) waitForAny(page playwright.Page, selectors []string, timeout time.Duration) bool {
	err := page.Locator(strings.Join(selectors, ", ")).First().WaitFor(playwright.LocatorWaitForOptions{
		State:   playwright.WaitForSelectorStateAttached,
		Timeout: playwright.Float(float64(timeout.Milliseconds())),
	})
	return err == nil
}

func (f *Fetcher) handleConsent(page playwright.Page) bool {
	for _, selector := range consentSelectors {
		button := page.Locator(selector).First()

		count, err := button.Count()
		if err != nil || count == 0 {
			continue
		}
		visible, err := button.IsVisible()
		if err != nil || !visible {
			continue
		}

		if err := button.Click(playwright.LocatorClickOptions{Timeout: playwright.Float(3000)}); err != nil {
			f.logger.Debug("failed to click consent button", "selector", selector, "error", err)
			continue
		}

		time.Sleep(time.Second)
		return true
	}
	return false
}

func (f *Fetcher) screenshot(page playwright.Page, name string) {
	if f.debugDir == "" {
		return
	}
	if err := os.MkdirAll(f.debugDir, 0o755); err != nil {
		f.logger.Error("failed to create debug directory", "dir", f.debugDir, "error", err)
		return
	}
	if name == "" {
		name = "page"
	}

	path := filepath.Join(f.debugDir, fmt.Sprintf("%s-%s.png",
		unsafeFileChars.ReplaceAllString(name, "_"), time.Now().Format("20060102-150405")))

	if _, err := page.Screenshot(playwright.PageScreenshotOptions{
		Path:     playwright.String(path),
		FullPage: playwright.Bool(true),
	}); err != nil {
		f.logger.Error("screenshot failed", "error", err)
		return
	}
	f.logger.Info("debug screenshot saved", "path", path)
}

func (f *Fetcher) Close() error {
	f.mu.Lock()
	defer f.mu.Unlock()

	if f.browser == nil {
		return nil
	}
	err := f.browser.Close()
	f.browser = nil
	return err
}

func waitUntilState(w fetch.WaitUntil) *playwright.WaitUntilState {
	switch w {
	case fetch.WaitLoad:
		return playwright.WaitUntilStateLoad
	case fetch.WaitDOMContentLoaded:
		return playwright.WaitUntilStateDomcontentloaded
	default:
		return playwright.WaitUntilStateNetworkidle
	}
}
