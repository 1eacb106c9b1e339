package fetch

import (
	"compress/gzip"
	"context"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/habarihub/habari/internal/config"
	"github.com/habarihub/habari/internal/throttle"
	"github.com/habarihub/habari/internal/types"
)

func testClient(t *testing.T) *Client {
	t.Helper()
	cfg := config.DefaultConfig()
	cfg.Fetch.RequestTimeout = 5 * time.Second
	cfg.Fetch.Retry.InitialDelay = 10 * time.Millisecond
	cfg.Fetch.Retry.MaxDelay = 50 * time.Millisecond

	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	c, err := NewClient(cfg, throttle.New(0, nil), logger)
	if err != nil {
		t.Fatalf("NewClient failed: %v", err)
	}
	return c
}

func TestGetSuccess(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte("<html><body>hello</body></html>"))
	}))
	defer srv.Close()

	resp, err := testClient(t).Get(context.Background(), srv.URL)
	if err != nil {
		t.Fatalf("Get failed: %v", err)
	}
	if resp.StatusCode != 200 {
		t.Errorf("status = %d, want 200", resp.StatusCode)
	}
	if string(resp.Body) != "<html><body>hello</body></html>" {
		t.Errorf("unexpected body: %q", resp.Body)
	}
	doc, err := resp.Document()
	if err != nil {
		t.Fatalf("Document failed: %v", err)
	}
	if got := doc.Find("body").Text(); got != "hello" {
		t.Errorf("parsed body text = %q", got)
	}
}

func TestGetRetriesServerErrors(t *testing.T) {
	var calls atomic.Int64
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if calls.Add(1) < 3 {
			w.WriteHeader(http.StatusServiceUnavailable)
			return
		}
		w.Write([]byte("recovered"))
	}))
	defer srv.Close()

	resp, err := testClient(t).Get(context.Background(), srv.URL)
	if err != nil {
		t.Fatalf("Get failed after retries: %v", err)
	}
	if string(resp.Body) != "recovered" {
		t.Errorf("body = %q", resp.Body)
	}
	if got := calls.Load(); got != 3 {
		t.Errorf("server saw %d requests, want 3", got)
	}
}

func TestGetExhaustsRetries(t *testing.T) {
	var calls atomic.Int64
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		w.WriteHeader(http.StatusBadGateway)
	}))
	defer srv.Close()

	_, err := testClient(t).Get(context.Background(), srv.URL)
	if err == nil {
		t.Fatal("expected error after exhausting retries")
	}
	if !errors.Is(err, types.ErrMaxRetries) {
		t.Errorf("error = %v, want ErrMaxRetries", err)
	}
	var fe *types.FetchError
	if !errors.As(err, &fe) {
		t.Fatalf("error is not a FetchError: %T", err)
	}
	if fe.StatusCode != http.StatusBadGateway {
		t.Errorf("StatusCode = %d, want 502", fe.StatusCode)
	}
	if got := calls.Load(); got != 3 {
		t.Errorf("server saw %d requests, want exactly 3 attempts", got)
	}
}

func TestGetDoesNotRetryClientErrors(t *testing.T) {
	var calls atomic.Int64
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		http.NotFound(w, r)
	}))
	defer srv.Close()

	_, err := testClient(t).Get(context.Background(), srv.URL)
	if err == nil {
		t.Fatal("expected error for 404")
	}
	var fe *types.FetchError
	if !errors.As(err, &fe) {
		t.Fatalf("error is not a FetchError: %T", err)
	}
	if fe.StatusCode != http.StatusNotFound {
		t.Errorf("StatusCode = %d, want 404", fe.StatusCode)
	}
	if fe.Retryable {
		t.Error("404 must not be retryable")
	}
	if got := calls.Load(); got != 1 {
		t.Errorf("server saw %d requests, want 1", got)
	}
}

func TestGetRotatesUserAgents(t *testing.T) {
	seen := make(chan string, 4)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		seen <- r.UserAgent()
		w.Write([]byte("ok"))
	}))
	defer srv.Close()

	c := testClient(t)
	for i := 0; i < 4; i++ {
		if _, err := c.Get(context.Background(), srv.URL); err != nil {
			t.Fatal(err)
		}
	}
	close(seen)

	agents := make(map[string]bool)
	for ua := range seen {
		if ua == "" {
			t.Error("request sent without a User-Agent")
		}
		agents[ua] = true
	}
	if len(agents) < 2 {
		t.Errorf("user agent did not rotate, saw %v", agents)
	}
}

func TestGetDecompressesGzip(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Encoding", "gzip")
		gz := gzip.NewWriter(w)
		gz.Write([]byte("compressed payload"))
		gz.Close()
	}))
	defer srv.Close()

	resp, err := testClient(t).Get(context.Background(), srv.URL)
	if err != nil {
		t.Fatalf("Get failed: %v", err)
	}
	if string(resp.Body) != "compressed payload" {
		t.Errorf("body = %q, want decompressed text", resp.Body)
	}
}

func TestGetFollowsRedirects(t *testing.T) {
	var target *httptest.Server
	target = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte("final"))
	}))
	defer target.Close()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Redirect(w, r, target.URL+"/landed", http.StatusFound)
	}))
	defer srv.Close()

	resp, err := testClient(t).Get(context.Background(), srv.URL)
	if err != nil {
		t.Fatalf("Get failed: %v", err)
	}
	if string(resp.Body) != "final" {
		t.Errorf("body = %q", resp.Body)
	}
	if resp.URL != target.URL+"/landed" {
		t.Errorf("final URL = %q, want redirect target", resp.URL)
	}
}

func TestGetHonorsContextCancel(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		time.Sleep(2 * time.Second)
	}))
	defer srv.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()

	start := time.Now()
	_, err := testClient(t).Get(ctx, srv.URL)
	if err == nil {
		t.Fatal("expected error for cancelled context")
	}
	if elapsed := time.Since(start); elapsed > time.Second {
		t.Errorf("Get blocked %v after cancel", elapsed)
	}
}

func TestIsRetryableError(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want bool
	}{
		{"nil", nil, false},
		{"context canceled", context.Canceled, false},
		{"deadline exceeded", context.DeadlineExceeded, false},
		{"unexpected EOF", io.ErrUnexpectedEOF, true},
		{"plain EOF", io.EOF, true},
		{"generic error", errors.New("boom"), false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := isRetryableError(tt.err); got != tt.want {
				t.Errorf("isRetryableError(%v) = %v, want %v", tt.err, got, tt.want)
			}
		})
	}
}

func TestParseRetryAfter(t *testing.T) {
	tests := []struct {
		header string
		want   time.Duration
	}{
		{"", 5 * time.Second},
		{"10", 10 * time.Second},
		{"0", 0},
		{"-5", 5 * time.Second},
		{"600", 2 * time.Minute},
		{"garbage", 5 * time.Second},
	}

	for _, tt := range tests {
		if got := parseRetryAfter(tt.header); got != tt.want {
			t.Errorf("parseRetryAfter(%q) = %v, want %v", tt.header, got, tt.want)
		}
	}

	// HTTP-date form: a point 30s out parses to roughly that wait.
	future := time.Now().Add(30 * time.Second).UTC().Format(http.TimeFormat)
	got := parseRetryAfter(future)
	if got < 25*time.Second || got > 35*time.Second {
		t.Errorf("parseRetryAfter(http date) = %v, want about 30s", got)
	}
}

func TestNextUserAgentStable(t *testing.T) {
	cfg := config.DefaultConfig()
	cfg.Fetch.RotateUserAgent = false
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	c, err := NewClient(cfg, throttle.New(0, nil), logger)
	if err != nil {
		t.Fatal(err)
	}
	first := c.nextUserAgent()
	for i := 0; i < 5; i++ {
		if got := c.nextUserAgent(); got != first {
			t.Fatalf("rotation disabled but UA changed: %q vs %q", got, first)
		}
	}
}
