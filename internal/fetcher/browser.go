package fetcher

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/go-rod/rod"
	"github.com/go-rod/rod/lib/launcher"
	"github.com/go-rod/rod/lib/proto"
	"github.com/go-rod/stealth"

	"github.com/IshaanNene/TableScout/internal/config"
	"github.com/IshaanNene/TableScout/internal/types"
)

// BrowserFetcher renders pages in headless Chromium via Rod. Pages are
// pooled, one per crawler worker.
type BrowserFetcher struct {
	browser  *rod.Browser
	stealth  bool
	timeout  time.Duration
	logger   *slog.Logger
	pagePool chan *rod.Page
}

// NewBrowserFetcher launches a browser and connects to it.
func NewBrowserFetcher(cfg *config.Config, logger *slog.Logger) (*BrowserFetcher, error) {
	launchURL, err := launcher.New().
		Headless(true).
		Set("disable-gpu").
		Set("disable-dev-shm-usage").
		Set("no-sandbox").
		Set("disable-blink-features", "AutomationControlled").
		Launch()
	if err != nil {
		return nil, fmt.Errorf("launch browser: %w", err)
	}

	browser := rod.New().ControlURL(launchURL)
	if err := browser.Connect(); err != nil {
		return nil, fmt.Errorf("connect browser: %w", err)
	}

	bf := &BrowserFetcher{
		browser:  browser,
		stealth:  cfg.Fetcher.Stealth,
		timeout:  cfg.Crawler.RequestTimeout,
		logger:   logger.With("component", "browser_fetcher"),
		pagePool: make(chan *rod.Page, max(cfg.Crawler.Concurrency, 1)),
	}
	bf.logger.Info("browser fetcher ready", "max_pages", cap(bf.pagePool), "stealth", bf.stealth)
	return bf, nil
}

// Fetch navigates to the request URL and returns the rendered HTML. Rod
// does not expose the document status, so successful navigations report 200.
func (bf *BrowserFetcher) Fetch(ctx context.Context, req *types.Request) (*types.Response, error) {
	start := time.Now()

	page, err := bf.getPage()
	if err != nil {
		return nil, &types.FetchError{URL: req.URLString(), Err: err, Retryable: true}
	}
	defer bf.putPage(page)

	page = page.Context(ctx)

	if ua := req.Headers.Get("User-Agent"); ua != "" {
		if err := page.SetUserAgent(&proto.NetworkSetUserAgentOverride{UserAgent: ua}); err != nil {
			bf.logger.Warn("failed to set user agent", "error", err)
		}
	}

	timeout := bf.timeout
	if req.Timeout > 0 {
		timeout = req.Timeout
	}
	if err := page.Timeout(timeout).Navigate(req.URLString()); err != nil {
		return nil, &types.FetchError{URL: req.URLString(), Err: err, Retryable: ctx.Err() == nil}
	}
	if err := page.Timeout(timeout).WaitStable(300 * time.Millisecond); err != nil {
		bf.logger.Warn("page stability timeout, continuing", "url", req.URLString(), "error", err)
	}

	html, err := page.HTML()
	if err != nil {
		return nil, &types.FetchError{URL: req.URLString(), Err: err, Retryable: true}
	}

	finalURL := req.URLString()
	if info, err := page.Info(); err == nil && info != nil {
		finalURL = info.URL
	}

	duration := time.Since(start)
	bf.logger.Debug("browser fetch complete",
		"url", req.URLString(),
		"final_url", finalURL,
		"size", len(html),
		"duration", duration,
	)
	return types.NewBrowserResponse(req, 200, []byte(html), finalURL, duration), nil
}

func (bf *BrowserFetcher) Close() error {
	close(bf.pagePool)
	for page := range bf.pagePool {
		_ = page.Close()
	}
	return bf.browser.Close()
}

func (bf *BrowserFetcher) Type() string {
	return "browser"
}

// getPage reuses a pooled page or opens a new one, patched by go-rod/stealth
// when stealth is enabled.
func (bf *BrowserFetcher) getPage() (*rod.Page, error) {
	select {
	case page := <-bf.pagePool:
		return page, nil
	default:
	}
	if bf.stealth {
		return stealth.Page(bf.browser)
	}
	return bf.browser.Page(proto.TargetCreateTarget{URL: "about:blank"})
}

func (bf *BrowserFetcher) putPage(page *rod.Page) {
	_ = page.Navigate("about:blank")

	select {
	case bf.pagePool <- page:
	default:
		_ = page.Close()
	}
}
