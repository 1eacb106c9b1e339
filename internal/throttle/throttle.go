// Package throttle enforces per-domain politeness delays between
// outbound requests.
package throttle

import (
	"context"
	"net/url"
	"strings"
	"sync"
	"time"

	"golang.org/x/time/rate"
)

// Throttler spaces requests to the same scheme+host bucket by a
// minimum delay. Different domains never block each other. Safe for
// concurrent use.
type Throttler struct {
	defaultDelay time.Duration
	overrides    map[string]time.Duration

	mu       sync.Mutex
	limiters map[string]*rate.Limiter
}

// New creates a Throttler with the given default inter-request delay.
// Overrides map bare hostnames (no scheme, www optional) to custom
// delays for hosts that need slower or faster pacing.
func New(defaultDelay time.Duration, overrides map[string]time.Duration) *Throttler {
	t := &Throttler{
		defaultDelay: defaultDelay,
		overrides:    make(map[string]time.Duration, len(overrides)),
		limiters:     make(map[string]*rate.Limiter),
	}
	for host, d := range overrides {
		t.overrides[hostKey(host)] = d
	}
	return t
}

// Wait blocks until the domain of rawURL is clear to fetch and claims
// the slot, so concurrent callers for one domain are serialized. It
// returns early only when ctx is cancelled.
func (t *Throttler) Wait(ctx context.Context, rawURL string) error {
	return t.limiterFor(rawURL).Wait(ctx)
}

// Delay reports the delay configured for rawURL's host.
func (t *Throttler) Delay(rawURL string) time.Duration {
	if d, ok := t.overrides[hostKey(hostOf(rawURL))]; ok {
		return d
	}
	return t.defaultDelay
}

func (t *Throttler) limiterFor(rawURL string) *rate.Limiter {
	key := bucketKey(rawURL)

	t.mu.Lock()
	defer t.mu.Unlock()
	if lim, ok := t.limiters[key]; ok {
		return lim
	}
	// rate.Every treats a zero delay as unlimited.
	lim := rate.NewLimiter(rate.Every(t.Delay(rawURL)), 1)
	t.limiters[key] = lim
	return lim
}

// bucketKey buckets URLs by scheme and host, so http and https
// variants of one site are paced independently.
func bucketKey(rawURL string) string {
	u, err := url.Parse(rawURL)
	if err != nil || u.Host == "" {
		return rawURL
	}
	return strings.ToLower(u.Scheme) + "://" + strings.ToLower(u.Host)
}

func hostOf(rawURL string) string {
	u, err := url.Parse(rawURL)
	if err != nil {
		return rawURL
	}
	if u.Host == "" {
		return rawURL
	}
	return u.Hostname()
}

func hostKey(host string) string {
	return strings.TrimPrefix(strings.ToLower(strings.TrimSpace(host)), "www.")
}
