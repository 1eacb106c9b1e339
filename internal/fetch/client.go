package fetch

import (
	"compress/flate"
	"compress/gzip"
	"context"
	"crypto/tls"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net"
	"net/http"
	"net/http/cookiejar"
	"os"
	"strconv"
	"strings"
	"sync/atomic"
	"syscall"
	"time"

	"github.com/andybalholm/brotli"

	"github.com/habarihub/habari/internal/config"
	"github.com/habarihub/habari/internal/observability"
	"github.com/habarihub/habari/internal/types"
)

// Client fetches pages over HTTP with per-domain throttling, user agent
// rotation and retry on transient failures. Safe for concurrent use.
type Client struct {
	http      *http.Client
	cfg       config.FetchConfig
	throttler Throttler
	logger    *slog.Logger
	metrics   *observability.Metrics
	uaIndex   atomic.Int64
}

// NewClient builds a Client from config. The throttler gates every
// attempt, including retries.
func NewClient(cfg *config.Config, th Throttler, logger *slog.Logger) (*Client, error) {
	jar, err := cookiejar.New(nil)
	if err != nil {
		return nil, fmt.Errorf("create cookie jar: %w", err)
	}

	transport := &http.Transport{
		MaxIdleConns:        cfg.Fetch.MaxIdleConns,
		MaxIdleConnsPerHost: cfg.Fetch.MaxIdleConns / 2,
		IdleConnTimeout:     cfg.Fetch.IdleConnTimeout,
		TLSHandshakeTimeout: 10 * time.Second,
		// Compression is negotiated in our own headers so the body can
		// be decoded by content encoding, brotli included.
		DisableCompression: true,
	}
	if cfg.Fetch.TLSInsecure {
		transport.TLSClientConfig = &tls.Config{InsecureSkipVerify: true}
	}

	client := &http.Client{
		Transport: transport,
		Jar:       jar,
		Timeout:   cfg.Fetch.RequestTimeout,
	}
	if cfg.Fetch.FollowRedirects {
		client.CheckRedirect = redirectPolicy(cfg.Fetch.MaxRedirects)
	} else {
		client.CheckRedirect = func(req *http.Request, via []*http.Request) error {
			return http.ErrUseLastResponse
		}
	}

	return &Client{
		http:      client,
		cfg:       cfg.Fetch,
		throttler: th,
		logger:    logger.With("component", "fetch"),
	}, nil
}

// SetMetrics attaches run counters. A nil receiver value disables them.
func (c *Client) SetMetrics(m *observability.Metrics) {
	c.metrics = m
}

// Get fetches rawURL, waiting out the domain throttle before every
// attempt and retrying transient failures with exponential backoff.
// Errors are always *types.FetchError.
func (c *Client) Get(ctx context.Context, rawURL string) (*Response, error) {
	policy := c.cfg.Retry
	var lastErr *types.FetchError

	for attempt := 1; attempt <= policy.MaxAttempts; attempt++ {
		if attempt > 1 {
			delay := policy.Backoff(attempt - 1)
			if lastErr != nil && lastErr.RetryAfter > delay {
				delay = lastErr.RetryAfter
			}
			c.logger.Debug("retrying fetch",
				"url", rawURL,
				"attempt", attempt,
				"backoff", delay)
			if c.metrics != nil {
				c.metrics.FetchRetries.Add(1)
			}
			select {
			case <-ctx.Done():
				return nil, &types.FetchError{URL: rawURL, Err: ctx.Err()}
			case <-time.After(delay):
			}
		}

		resp, err := c.fetchOnce(ctx, rawURL)
		if err == nil {
			return resp, nil
		}

		var fe *types.FetchError
		if !errors.As(err, &fe) {
			fe = &types.FetchError{URL: rawURL, Err: err}
		}
		if !fe.Retryable {
			if c.metrics != nil {
				c.metrics.FetchFailures.Add(1)
			}
			return nil, fe
		}
		lastErr = fe
	}

	if c.metrics != nil {
		c.metrics.FetchFailures.Add(1)
	}
	return nil, &types.FetchError{
		URL:        rawURL,
		StatusCode: lastErr.StatusCode,
		Err:        fmt.Errorf("%w after %d attempts: %w", types.ErrMaxRetries, policy.MaxAttempts, lastErr.Err),
	}
}

// fetchOnce performs a single throttled request.
func (c *Client) fetchOnce(ctx context.Context, rawURL string) (*Response, error) {
	if err := c.throttler.Wait(ctx, rawURL); err != nil {
		return nil, &types.FetchError{URL: rawURL, Err: err}
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
	if err != nil {
		return nil, &types.FetchError{URL: rawURL, Err: fmt.Errorf("%w: %v", types.ErrInvalidURL, err)}
	}
	c.setHeaders(req)

	if c.metrics != nil {
		c.metrics.FetchesTotal.Add(1)
	}

	start := time.Now()
	httpResp, err := c.http.Do(req)
	duration := time.Since(start)
	if err != nil {
		return nil, &types.FetchError{
			URL:       rawURL,
			Err:       err,
			Retryable: isRetryableError(err),
		}
	}
	defer httpResp.Body.Close()

	switch {
	case httpResp.StatusCode == http.StatusTooManyRequests:
		return nil, &types.FetchError{
			URL:        rawURL,
			StatusCode: httpResp.StatusCode,
			Err:        fmt.Errorf("rate limited"),
			Retryable:  true,
			RetryAfter: parseRetryAfter(httpResp.Header.Get("Retry-After")),
		}
	case httpResp.StatusCode == http.StatusRequestTimeout || httpResp.StatusCode >= 500:
		return nil, &types.FetchError{
			URL:        rawURL,
			StatusCode: httpResp.StatusCode,
			Err:        fmt.Errorf("server error"),
			Retryable:  true,
		}
	case httpResp.StatusCode >= 400:
		return nil, &types.FetchError{
			URL:        rawURL,
			StatusCode: httpResp.StatusCode,
			Err:        fmt.Errorf("HTTP %s", httpResp.Status),
		}
	}

	reader, err := decompressReader(
		io.LimitReader(httpResp.Body, c.cfg.MaxBodySize),
		httpResp.Header.Get("Content-Encoding"),
	)
	if err != nil {
		return nil, &types.FetchError{URL: rawURL, StatusCode: httpResp.StatusCode, Err: err, Retryable: true}
	}
	body, err := io.ReadAll(reader)
	if err != nil {
		return nil, &types.FetchError{
			URL:        rawURL,
			StatusCode: httpResp.StatusCode,
			Err:        fmt.Errorf("read body: %w", err),
			Retryable:  isRetryableError(err),
		}
	}

	if c.metrics != nil {
		c.metrics.BytesDownloaded.Add(int64(len(body)))
	}
	c.logger.Debug("fetched",
		"url", rawURL,
		"status", httpResp.StatusCode,
		"bytes", len(body),
		"duration", duration)

	return &Response{
		URL:        httpResp.Request.URL.String(),
		StatusCode: httpResp.StatusCode,
		Body:       body,
		Header:     httpResp.Header,
		FetchedAt:  start,
		Duration:   duration,
	}, nil
}

func (c *Client) setHeaders(req *http.Request) {
	req.Header.Set("User-Agent", c.nextUserAgent())
	req.Header.Set("Accept", "text/html,application/xhtml+xml,application/xml;q=0.9,*/*;q=0.8")
	req.Header.Set("Accept-Language", "en-US,en;q=0.5")
	req.Header.Set("Accept-Encoding", "gzip, deflate, br")
	req.Header.Set("Connection", "keep-alive")
	req.Header.Set("Upgrade-Insecure-Requests", "1")
}

// nextUserAgent rotates through the configured pool.
func (c *Client) nextUserAgent() string {
	if len(c.cfg.UserAgents) == 0 {
		return "habari/" + config.Version
	}
	if !c.cfg.RotateUserAgent || len(c.cfg.UserAgents) == 1 {
		return c.cfg.UserAgents[0]
	}
	idx := c.uaIndex.Add(1) % int64(len(c.cfg.UserAgents))
	return c.cfg.UserAgents[idx]
}

func redirectPolicy(max int) func(*http.Request, []*http.Request) error {
	return func(req *http.Request, via []*http.Request) error {
		if len(via) >= max {
			return fmt.Errorf("stopped after %d redirects", max)
		}
		return nil
	}
}

// decompressReader wraps r according to the Content-Encoding header.
func decompressReader(r io.Reader, encoding string) (io.Reader, error) {
	switch strings.ToLower(strings.TrimSpace(encoding)) {
	case "", "identity":
		return r, nil
	case "gzip":
		return gzip.NewReader(r)
	case "deflate":
		return flate.NewReader(r), nil
	case "br":
		return brotli.NewReader(r), nil
	default:
		return r, nil
	}
}

// isRetryableError classifies transport errors. Context cancellation is
// final; connection resets, refusals and timeouts are worth retrying.
func isRetryableError(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return false
	}
	if errors.Is(err, io.ErrUnexpectedEOF) || errors.Is(err, io.EOF) {
		return true
	}
	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return true
	}
	var opErr *net.OpError
	if errors.As(err, &opErr) {
		if opErr.Op == "dial" || opErr.Op == "read" {
			return true
		}
		var sysErr *os.SyscallError
		if errors.As(opErr.Err, &sysErr) {
			if errors.Is(sysErr.Err, syscall.ECONNRESET) || errors.Is(sysErr.Err, syscall.ECONNREFUSED) {
				return true
			}
		}
	}
	return false
}

// parseRetryAfter reads a Retry-After header value, either seconds or
// an HTTP date, capped at two minutes.
func parseRetryAfter(header string) time.Duration {
	const fallback = 5 * time.Second
	const ceiling = 2 * time.Minute

	if header == "" {
		return fallback
	}
	if secs, err := strconv.Atoi(strings.TrimSpace(header)); err == nil {
		d := time.Duration(secs) * time.Second
		if d < 0 {
			return fallback
		}
		if d > ceiling {
			return ceiling
		}
		return d
	}
	if t, err := http.ParseTime(header); err == nil {
		d := time.Until(t)
		if d < 0 {
			return fallback
		}
		if d > ceiling {
			return ceiling
		}
		return d
	}
	return fallback
}
