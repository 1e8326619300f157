package fetch

import (
	"context"
	"log/slog"
	"time"

	"github.com/go-resty/resty/v2"
)

// HTTPFetcher loads server rendered pages without a browser.
type HTTPFetcher struct {
	client *resty.Client
	logger *slog.Logger
}

func NewHTTPFetcher(userAgent string, logger *slog.Logger) *HTTPFetcher {
	client := resty.New().
		SetHeader("User-Agent", userAgent).
		SetHeader("Accept", "text/html,application/xhtml+xml,application/xml;q=0.9,*/*;q=0.8").
		SetHeader("Accept-Language", "en-US,en;q=0.9").
		SetRedirectPolicy(resty.FlexibleRedirectPolicy(5))

	return &HTTPFetcher{
		client: client,
		logger: logger.With("component", "http_fetcher"),
	}
}

func (f *HTTPFetcher) Fetch(ctx context.Context, url string, opts Options) (*Document, error) {
	opts = opts.WithDefaults()

	reqCtx, cancel := context.WithTimeout(ctx, opts.Timeout)
	defer cancel()

	start := time.Now()
	resp, err := f.client.R().SetContext(reqCtx).Get(url)
	if err != nil {
		return nil, &NavigationError{URL: url, Err: err}
	}
	if resp.IsError() {
		return nil, &NavigationError{URL: url, StatusCode: resp.StatusCode(), Err: errStatus(resp.Status())}
	}

	f.logger.Debug("page fetched",
		"url", url,
		"status", resp.StatusCode(),
		"bytes", len(resp.Body()),
		"duration", time.Since(start))

	doc, err := NewDocument(url, resp.String())
	if err != nil {
		return nil, err
	}

	if len(opts.WaitForSelectors) > 0 {
		doc.SelectorFound = false
		for _, s := range opts.WaitForSelectors {
			if doc.Doc.Find(s).Length() > 0 {
				doc.SelectorFound = true
				break
			}
		}
	}

	return doc, nil
}

type errStatus string

func (e errStatus) Error() string {
	return "unexpected response " + string(e)
}
