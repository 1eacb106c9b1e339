package types

import (
	"errors"
	"fmt"
	"time"
)

// Sentinel errors for common failure modes.
var (
	ErrTimeout       = errors.New("request timed out")
	ErrMaxRetries    = errors.New("max retries exceeded")
	ErrEmptyResponse = errors.New("empty response body")
	ErrInvalidURL    = errors.New("invalid URL")
	ErrMissingTitle  = errors.New("article has no title")
	ErrMissingURL    = errors.New("article has no URL")
	ErrWrongDomain   = errors.New("URL host outside source domain")
	ErrNotArticle    = errors.New("URL does not look like an article page")
	ErrUnknownRegion = errors.New("unknown region")
	ErrUnknownSource = errors.New("unknown source")
	ErrNoSources     = errors.New("no sources configured")
)

// FetchError wraps errors that occur during fetching.
type FetchError struct {
	URL        string
	StatusCode int
	Err        error
	Retryable  bool
	RetryAfter time.Duration // populated from Retry-After header on HTTP 429
}

func (e *FetchError) Error() string {
	if e.StatusCode > 0 {
		return fmt.Sprintf("fetch error for %s (status %d): %v", e.URL, e.StatusCode, e.Err)
	}
	return fmt.Sprintf("fetch error for %s: %v", e.URL, e.Err)
}

func (e *FetchError) Unwrap() error { return e.Err }

func (e *FetchError) IsRetryable() bool { return e.Retryable }

// ScrapeError wraps errors that occur while scraping a single source.
type ScrapeError struct {
	Source string
	Stage  string // "feed", "listing" or "content"
	Err    error
}

func (e *ScrapeError) Error() string {
	if e.Stage != "" {
		return fmt.Sprintf("scrape error for %s (stage=%s): %v", e.Source, e.Stage, e.Err)
	}
	return fmt.Sprintf("scrape error for %s: %v", e.Source, e.Err)
}

func (e *ScrapeError) Unwrap() error { return e.Err }

// StoreError wraps errors that occur during persistence/export.
type StoreError struct {
	Backend string
	Op      string
	Err     error
}

func (e *StoreError) Error() string {
	if e.Op != "" {
		return fmt.Sprintf("store error (%s/%s): %v", e.Backend, e.Op, e.Err)
	}
	return fmt.Sprintf("store error (%s): %v", e.Backend, e.Err)
}

func (e *StoreError) Unwrap() error { return e.Err }
