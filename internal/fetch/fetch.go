// Package fetch retrieves pages over HTTP or a headless browser,
// applying per-domain throttling and retry with backoff.
package fetch

import (
	"bytes"
	"context"
	"net/http"
	"time"

	"github.com/PuerkitoBio/goquery"
)

// Getter is the fetch surface scrapers consume.
type Getter interface {
	Get(ctx context.Context, url string) (*Response, error)
}

// Throttler gates outbound requests per domain. Satisfied by
// *throttle.Throttler.
type Throttler interface {
	Wait(ctx context.Context, rawURL string) error
}

// Response is the result of fetching a URL.
type Response struct {
	// URL is the final URL after any redirects.
	URL string

	// StatusCode is the HTTP status code.
	StatusCode int

	// Body is the decoded response body.
	Body []byte

	// Header holds the response headers.
	Header http.Header

	// FetchedAt is when the request started.
	FetchedAt time.Time

	// Duration is how long the fetch took.
	Duration time.Duration

	doc *goquery.Document
}

// Document parses the body as HTML, caching the result.
func (r *Response) Document() (*goquery.Document, error) {
	if r.doc != nil {
		return r.doc, nil
	}
	doc, err := goquery.NewDocumentFromReader(bytes.NewReader(r.Body))
	if err != nil {
		return nil, err
	}
	r.doc = doc
	return doc, nil
}

// IsSuccess returns true if the response status is 2xx.
func (r *Response) IsSuccess() bool {
	return r.StatusCode >= 200 && r.StatusCode < 300
}

// ContentType returns the response Content-Type header.
func (r *Response) ContentType() string {
	return r.Header.Get("Content-Type")
}
