package discovery

import (
	"context"
	"fmt"
	"time"

	"github.com/gocolly/colly/v2"
)

// CollyConfig controls the HTTP discoverer's collector.
type CollyConfig struct {
	UserAgent string        `mapstructure:"user_agent" yaml:"user_agent"`
	Timeout   time.Duration `mapstructure:"timeout" yaml:"timeout"`
	PageLimit int           `mapstructure:"page_limit" yaml:"page_limit"`
}

// CollyDiscoverer extracts links from the seed page over plain HTTP with a
// Colly collector. Cheaper than a browser render but blind to links that
// only exist after script execution.
type CollyDiscoverer struct {
	cfg           CollyConfig
	baseCollector *colly.Collector
}

// NewCollyDiscoverer builds an HTTP-mode discoverer.
func NewCollyDiscoverer(cfg CollyConfig) *CollyDiscoverer {
	if cfg.Timeout <= 0 {
		cfg.Timeout = 15 * time.Second
	}
	if cfg.PageLimit <= 0 {
		cfg.PageLimit = DefaultPageLimit
	}
	c := colly.NewCollector(colly.Async(false))
	c.IgnoreRobotsTxt = true
	return &CollyDiscoverer{cfg: cfg, baseCollector: c}
}

// seedFetch is the outcome of a single plain-HTTP visit of the seed page.
type seedFetch struct {
	candidates []string
	statusCode int
	body       []byte
}

// Discover fetches the seed page once and filters its anchor links.
func (d *CollyDiscoverer) Discover(ctx context.Context, seedURL string) ([]string, error) {
	fetched, err := d.fetch(ctx, seedURL)
	if err != nil {
		return nil, err
	}
	return CollectPages(seedURL, fetched.candidates, d.cfg.PageLimit), nil
}

func (d *CollyDiscoverer) fetch(ctx context.Context, seedURL string) (seedFetch, error) {
	collector := d.baseCollector.Clone()
	if d.cfg.UserAgent != "" {
		collector.UserAgent = d.cfg.UserAgent
	}
	collector.SetRequestTimeout(d.cfg.Timeout)

	var (
		fetched  seedFetch
		fetchErr error
	)
	collector.OnResponse(func(r *colly.Response) {
		fetched.statusCode = r.StatusCode
		fetched.body = r.Body
	})
	collector.OnHTML("a[href]", func(e *colly.HTMLElement) {
		fetched.candidates = append(fetched.candidates, e.Request.AbsoluteURL(e.Attr("href")))
	})
	collector.OnError(func(_ *colly.Response, err error) {
		fetchErr = err
	})

	done := make(chan struct{})
	go func() {
		defer close(done)
		if err := collector.Visit(seedURL); err != nil && fetchErr == nil {
			fetchErr = err
		}
	}()
	select {
	case <-done:
	case <-ctx.Done():
		return seedFetch{}, fmt.Errorf("discover %s: %w", seedURL, ctx.Err())
	}
	if fetchErr != nil {
		return seedFetch{}, fmt.Errorf("discover %s: %w", seedURL, fetchErr)
	}
	return fetched, nil
}
