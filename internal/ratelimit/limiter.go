// Package ratelimit implements a per-domain token bucket used to pace
// outbound page fetches and renders.
package ratelimit

import (
	"context"
	"fmt"
	"net/url"
	"strings"
	"sync"

	"golang.org/x/time/rate"
)

// Config holds limiter defaults applied to every domain.
type Config struct {
	// QPS is the sustained request rate per domain. Zero or negative
	// disables limiting.
	QPS float64
	// Burst is the bucket size per domain. Defaults to 1.
	Burst int
}

// Limiter hands out tokens keyed by URL host. Safe for concurrent use.
type Limiter struct {
	mu       sync.Mutex
	limiters map[string]*rate.Limiter
	qps      rate.Limit
	burst    int
}

// New creates a Limiter from cfg.
func New(cfg Config) *Limiter {
	qps := rate.Limit(cfg.QPS)
	if cfg.QPS <= 0 {
		qps = rate.Inf
	}
	burst := cfg.Burst
	if burst <= 0 {
		burst = 1
	}
	return &Limiter{
		limiters: make(map[string]*rate.Limiter),
		qps:      qps,
		burst:    burst,
	}
}

// Wait blocks until a token is available for rawURL's host, or the context
// is done.
func (l *Limiter) Wait(ctx context.Context, rawURL string) error {
	if l == nil || l.qps == rate.Inf {
		return nil
	}
	host := hostOf(rawURL)

	l.mu.Lock()
	limiter, ok := l.limiters[host]
	if !ok {
		limiter = rate.NewLimiter(l.qps, l.burst)
		l.limiters[host] = limiter
	}
	l.mu.Unlock()

	if err := limiter.Wait(ctx); err != nil {
		return fmt.Errorf("rate limit wait for %s: %w", host, err)
	}
	return nil
}

func hostOf(rawURL string) string {
	u, err := url.Parse(rawURL)
	if err != nil || u.Host == "" {
		return "unknown"
	}
	return strings.ToLower(u.Host)
}
