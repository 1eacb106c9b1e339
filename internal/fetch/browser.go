package fetch

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/go-rod/rod"
	"github.com/go-rod/rod/lib/launcher"
	"github.com/go-rod/rod/lib/proto"
	"github.com/go-rod/stealth"

	"github.com/habarihub/habari/internal/config"
	"github.com/habarihub/habari/internal/types"
)

// RenderClient fetches pages through headless Chromium, for sources
// whose listings only materialize after script execution. Requests are
// serialized on a single browser; the throttle applies as usual.
type RenderClient struct {
	browser   *rod.Browser
	launcher  *launcher.Launcher
	throttler Throttler
	timeout   time.Duration
	stealth   bool
	userAgent string
	logger    *slog.Logger

	mu sync.Mutex
}

// NewRenderClient launches a headless browser. Callers must Close it.
func NewRenderClient(cfg *config.Config, th Throttler, logger *slog.Logger) (*RenderClient, error) {
	l := launcher.New().
		Headless(true).
		Set("disable-gpu").
		Set("no-sandbox").
		Set("disable-dev-shm-usage").
		Set("disable-blink-features", "AutomationControlled")

	controlURL, err := l.Launch()
	if err != nil {
		return nil, fmt.Errorf("launch browser: %w", err)
	}

	browser := rod.New().ControlURL(controlURL)
	if err := browser.Connect(); err != nil {
		l.Kill()
		return nil, fmt.Errorf("connect browser: %w", err)
	}

	ua := ""
	if len(cfg.Fetch.UserAgents) > 0 {
		ua = cfg.Fetch.UserAgents[0]
	}

	return &RenderClient{
		browser:   browser,
		launcher:  l,
		throttler: th,
		timeout:   cfg.Fetch.Browser.NavTimeout,
		stealth:   cfg.Fetch.Browser.Stealth,
		userAgent: ua,
		logger:    logger.With("component", "browser"),
	}, nil
}

// Get navigates to rawURL, waits for the page to settle and returns the
// rendered HTML.
func (rc *RenderClient) Get(ctx context.Context, rawURL string) (*Response, error) {
	if err := rc.throttler.Wait(ctx, rawURL); err != nil {
		return nil, &types.FetchError{URL: rawURL, Err: err}
	}

	rc.mu.Lock()
	defer rc.mu.Unlock()

	page, err := rc.newPage()
	if err != nil {
		return nil, &types.FetchError{URL: rawURL, Err: err, Retryable: true}
	}
	defer page.Close()

	page = page.Context(ctx)
	if rc.userAgent != "" {
		if err := page.SetUserAgent(&proto.NetworkSetUserAgentOverride{UserAgent: rc.userAgent}); err != nil {
			rc.logger.Warn("set user agent failed", "error", err)
		}
	}

	start := time.Now()
	if err := page.Timeout(rc.timeout).Navigate(rawURL); err != nil {
		return nil, &types.FetchError{URL: rawURL, Err: fmt.Errorf("navigate: %w", err), Retryable: true}
	}
	if err := page.Timeout(rc.timeout).WaitStable(300 * time.Millisecond); err != nil {
		rc.logger.Debug("page did not settle", "url", rawURL, "error", err)
	}

	html, err := page.HTML()
	if err != nil {
		return nil, &types.FetchError{URL: rawURL, Err: fmt.Errorf("read html: %w", err), Retryable: true}
	}
	duration := time.Since(start)

	finalURL := rawURL
	if info, err := page.Info(); err == nil && info.URL != "" {
		finalURL = info.URL
	}

	rc.logger.Debug("rendered",
		"url", rawURL,
		"bytes", len(html),
		"duration", duration)

	return &Response{
		URL:        finalURL,
		StatusCode: http.StatusOK,
		Body:       []byte(html),
		Header:     make(http.Header),
		FetchedAt:  start,
		Duration:   duration,
	}, nil
}

func (rc *RenderClient) newPage() (*rod.Page, error) {
	if rc.stealth {
		return stealth.Page(rc.browser)
	}
	return rc.browser.Page(proto.TargetCreateTarget{URL: "about:blank"})
}

// Close shuts down the browser and its launcher process.
func (rc *RenderClient) Close() error {
	err := rc.browser.Close()
	rc.launcher.Kill()
	return err
}
