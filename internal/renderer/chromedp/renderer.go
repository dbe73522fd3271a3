// Package chromedp renders pages in headless Chrome and produces screenshot
// artifacts plus extracted page facts (title, outbound links).
package chromedp

import (
	"context"
	"fmt"
	"time"

	"github.com/chromedp/cdproto/emulation"
	"github.com/chromedp/cdproto/page"
	"github.com/chromedp/chromedp"
	"go.uber.org/zap"

	"github.com/sitelens/sitelens/internal/capture"
	"github.com/sitelens/sitelens/internal/metrics"
	"github.com/sitelens/sitelens/internal/ratelimit"
)

// Config captures the renderer tuning knobs.
type Config struct {
	// MaxConcurrency caps the number of simultaneously open tabs.
	MaxConcurrency int `mapstructure:"max_concurrency" yaml:"max_concurrency"`
	// NavTimeout bounds a single page render end to end.
	NavTimeout time.Duration `mapstructure:"nav_timeout" yaml:"nav_timeout"`
	// DomainQPS rate-limits renders per target host. Zero disables the limit.
	DomainQPS float64 `mapstructure:"domain_qps" yaml:"domain_qps"`
	// DynamicSettle is how long to wait after scrolling when dynamic
	// element capture is requested.
	DynamicSettle time.Duration `mapstructure:"dynamic_settle" yaml:"dynamic_settle"`
	// UserAgent overrides the browser user agent when non-empty.
	UserAgent string `mapstructure:"user_agent" yaml:"user_agent"`
}

// Renderer drives a shared headless Chrome process, one tab per render.
type Renderer struct {
	allocatorCancel context.CancelFunc
	browserCtx      context.Context
	browserCancel   context.CancelFunc
	logger          *zap.Logger
	sem             chan struct{}
	navTimeout      time.Duration
	dynamicSettle   time.Duration
	domainLimiter   *ratelimit.Limiter
}

// New launches the browser process and warms up a context.
func New(cfg Config, logger *zap.Logger) (*Renderer, error) {
	if cfg.MaxConcurrency <= 0 {
		cfg.MaxConcurrency = 2
	}
	if cfg.NavTimeout <= 0 {
		cfg.NavTimeout = 30 * time.Second
	}
	if cfg.DynamicSettle <= 0 {
		cfg.DynamicSettle = 2 * time.Second
	}

	metrics.Init()

	opts := chromedp.DefaultExecAllocatorOptions[:]
	opts = append(opts,
		chromedp.Flag("headless", true),
		chromedp.Flag("disable-gpu", true),
		chromedp.Flag("hide-scrollbars", true),
	)
	if cfg.UserAgent != "" {
		opts = append(opts, chromedp.UserAgent(cfg.UserAgent))
	}
	allocatorCtx, allocatorCancel := chromedp.NewExecAllocator(context.Background(), opts...)
	browserCtx, browserCancel := chromedp.NewContext(allocatorCtx)
	if err := chromedp.Run(browserCtx); err != nil {
		allocatorCancel()
		browserCancel()
		return nil, fmt.Errorf("chromedp warmup: %w", err)
	}

	return &Renderer{
		allocatorCancel: allocatorCancel,
		browserCtx:      browserCtx,
		browserCancel:   browserCancel,
		logger:          logger,
		sem:             make(chan struct{}, cfg.MaxConcurrency),
		navTimeout:      cfg.NavTimeout,
		dynamicSettle:   cfg.DynamicSettle,
		domainLimiter:   ratelimit.New(ratelimit.Config{QPS: cfg.DomainQPS}),
	}, nil
}

// Close tears down the browser and allocator contexts.
func (r *Renderer) Close(_ context.Context) error {
	if r == nil {
		return nil
	}
	r.browserCancel()
	r.allocatorCancel()
	return nil
}

// collectLinks gathers every anchor href as an absolute url.
const collectLinks = `Array.from(document.querySelectorAll('a[href]'), a => a.href)`

// Render opens a tab sized to the requested viewport, navigates, and returns
// the screenshot, its thumbnail, the document title, and outbound links.
func (r *Renderer) Render(ctx context.Context, req capture.RenderRequest) (capture.RenderResult, error) {
	release, err := r.acquireSlot(ctx)
	if err != nil {
		return capture.RenderResult{}, err
	}
	defer release()

	metrics.IncActiveRenders()
	start := time.Now()
	status := "success"
	defer func() {
		metrics.DecActiveRenders()
		metrics.ObserveRender(req.URL, req.DeviceType, status, time.Since(start))
	}()

	if waitErr := r.domainLimiter.Wait(ctx, req.URL); waitErr != nil {
		status = "error"
		return capture.RenderResult{}, fmt.Errorf("render rate limit: %w", waitErr)
	}

	tabCtx, cancelTab := chromedp.NewContext(r.browserCtx)
	defer cancelTab()

	taskCtx, cancelTask := context.WithTimeout(tabCtx, r.navTimeout)
	defer cancelTask()

	stopForward := forwardCancel(ctx, cancelTask)
	defer stopForward()

	var (
		image []byte
		title string
		links []string
	)

	tasks := chromedp.Tasks{
		emulation.SetDeviceMetricsOverride(int64(req.Width), int64(req.Height), 1, false),
		chromedp.Navigate(req.URL),
		chromedp.WaitReady("body", chromedp.ByQuery),
	}
	if req.WaitForDynamic {
		tasks = append(tasks,
			chromedp.Evaluate(`window.scrollTo(0, document.body.scrollHeight)`, nil),
			chromedp.Sleep(r.dynamicSettle),
			chromedp.Evaluate(`window.scrollTo(0, 0)`, nil),
		)
	}
	tasks = append(tasks,
		chromedp.Title(&title),
		chromedp.Evaluate(collectLinks, &links),
		chromedp.ActionFunc(func(ctx context.Context) error {
			buf, err := page.CaptureScreenshot().
				WithFormat(page.CaptureScreenshotFormatPng).
				WithCaptureBeyondViewport(req.FullPage).
				Do(ctx)
			if err != nil {
				return fmt.Errorf("capture screenshot: %w", err)
			}
			image = buf
			return nil
		}),
	)

	if err := chromedp.Run(taskCtx, tasks); err != nil {
		status = "error"
		return capture.RenderResult{}, fmt.Errorf("chromedp run: %w", err)
	}

	thumb, err := Thumbnail(image, thumbnailWidth)
	if err != nil {
		// A render without a thumbnail is still usable.
		if r.logger != nil {
			r.logger.Warn("thumbnail generation failed", zap.String("url", req.URL), zap.Error(err))
		}
		thumb = nil
	}

	return capture.RenderResult{
		Image:         image,
		Thumbnail:     thumb,
		Title:         title,
		OutboundLinks: links,
	}, nil
}

func (r *Renderer) acquireSlot(ctx context.Context) (func(), error) {
	select {
	case r.sem <- struct{}{}:
		return func() { <-r.sem }, nil
	case <-ctx.Done():
		return nil, fmt.Errorf("acquire render slot: %w", ctx.Err())
	}
}

func forwardCancel(parent context.Context, cancel context.CancelFunc) func() {
	if parent == nil {
		return func() {}
	}
	done := make(chan struct{})
	go func() {
		select {
		case <-parent.Done():
			cancel()
		case <-done:
		}
	}()
	return func() { close(done) }
}
