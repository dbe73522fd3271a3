// Package runner orchestrates capture jobs: it accepts submissions, runs
// page discovery, fans page x device tasks out to a worker pool, and drives
// the capture through its status lifecycle.
package runner

import (
	"context"
	"fmt"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/sitelens/sitelens/internal/archive"
	"github.com/sitelens/sitelens/internal/capture"
	"github.com/sitelens/sitelens/internal/clock/system"
	"github.com/sitelens/sitelens/internal/discovery"
	"github.com/sitelens/sitelens/internal/hash/sha256"
	"github.com/sitelens/sitelens/internal/progress"
)

// Config controls job execution.
type Config struct {
	// WorkerPoolSize caps concurrent screenshot tasks per capture.
	WorkerPoolSize int `mapstructure:"worker_pool_size" yaml:"worker_pool_size"`
	// PageLimit caps discovered pages per capture, seed included.
	PageLimit int `mapstructure:"page_limit" yaml:"page_limit"`
	// CompletionTopic names the topic completion events publish to.
	CompletionTopic string `mapstructure:"completion_topic" yaml:"completion_topic"`
}

// Runner owns the capture job lifecycle. Submissions return immediately with
// a pending capture; execution happens on background goroutines.
type Runner struct {
	store      capture.Store
	discoverer discovery.Discoverer
	renderer   capture.Renderer
	archive    capture.Archive
	publisher  capture.Publisher
	emitter    progress.Emitter
	clock      capture.Clock
	logger     *zap.Logger
	cfg        Config

	mu      sync.Mutex
	running map[int64]context.CancelFunc
	wg      sync.WaitGroup
}

// Deps bundles the runner's collaborators. Publisher and Emitter are
// optional; the rest are required.
type Deps struct {
	Store      capture.Store
	Discoverer discovery.Discoverer
	Renderer   capture.Renderer
	Archive    capture.Archive
	Publisher  capture.Publisher
	Emitter    progress.Emitter
	Clock      capture.Clock
	Logger     *zap.Logger
}

// New constructs a Runner.
func New(cfg Config, deps Deps) (*Runner, error) {
	if deps.Store == nil {
		return nil, fmt.Errorf("store is required")
	}
	if deps.Discoverer == nil {
		return nil, fmt.Errorf("discoverer is required")
	}
	if deps.Renderer == nil {
		return nil, fmt.Errorf("renderer is required")
	}
	if deps.Archive == nil {
		return nil, fmt.Errorf("archive is required")
	}
	if deps.Clock == nil {
		deps.Clock = system.New()
	}
	if deps.Logger == nil {
		deps.Logger = zap.NewNop()
	}
	if cfg.WorkerPoolSize <= 0 {
		cfg.WorkerPoolSize = 4
	}
	if cfg.PageLimit <= 0 {
		cfg.PageLimit = discovery.DefaultPageLimit
	}
	if cfg.CompletionTopic == "" {
		cfg.CompletionTopic = "captures.completed"
	}
	return &Runner{
		store:      deps.Store,
		discoverer: deps.Discoverer,
		renderer:   deps.Renderer,
		archive:    deps.Archive,
		publisher:  deps.Publisher,
		emitter:    deps.Emitter,
		clock:      deps.Clock,
		logger:     deps.Logger,
		cfg:        cfg,
		running:    make(map[int64]context.CancelFunc),
	}, nil
}

// Submission is the result of accepting a capture request.
type Submission struct {
	Capture capture.Capture `json:"capture"`
	Website capture.Website `json:"website"`
	// WebsiteCreated reports whether this submission created the website.
	WebsiteCreated bool `json:"website_created"`
}

// Submit validates the request, resolves the website, records a pending
// capture, and starts execution in the background.
func (r *Runner) Submit(ctx context.Context, cfg capture.Config) (Submission, error) {
	if err := cfg.Validate(); err != nil {
		return Submission{}, err
	}

	seed, err := capture.ParseSubmissionURL(cfg.URL)
	if err != nil {
		return Submission{}, &capture.ValidationError{Field: "url", Reason: err.Error()}
	}
	normalized := capture.NormalizeURL(seed)
	domain := capture.ExtractDomain(seed)

	site, created, err := r.store.GetOrCreateWebsite(ctx, capture.NewWebsite{
		URL:    normalized,
		Name:   capture.SiteName(seed),
		Domain: domain,
	})
	if err != nil {
		return Submission{}, fmt.Errorf("resolve website: %w", err)
	}

	// Initial tags apply only when this submission created the website;
	// resubmissions leave existing tags alone. Tags are reused by name.
	if created {
		for _, name := range cfg.InitialTags {
			if name == "" {
				continue
			}
			tag, _, err := r.store.GetOrCreateTag(ctx, capture.NewTag{Name: name, Color: RandomTagColor()})
			if err != nil {
				return Submission{}, fmt.Errorf("resolve tag %q: %w", name, err)
			}
			if _, err := r.store.AddTagToWebsite(ctx, site.ID, tag.ID); err != nil {
				return Submission{}, fmt.Errorf("attach tag %q: %w", name, err)
			}
		}
	}

	job, err := r.store.CreateCapture(ctx, capture.NewCapture{
		WebsiteID:              site.ID,
		DeviceTypes:            cfg.DeviceTypes,
		CaptureFullPage:        cfg.CaptureFullPage,
		CaptureDynamicElements: cfg.CaptureDynamicElements,
	})
	if err != nil {
		return Submission{}, fmt.Errorf("create capture: %w", err)
	}

	jobCtx, cancel := context.WithCancel(context.Background())
	r.mu.Lock()
	r.running[job.ID] = cancel
	r.mu.Unlock()

	r.wg.Add(1)
	go func() {
		defer r.wg.Done()
		defer func() {
			r.mu.Lock()
			delete(r.running, job.ID)
			r.mu.Unlock()
			cancel()
		}()
		r.execute(jobCtx, job, site, normalized, cfg.CustomSizes)
	}()

	return Submission{Capture: job, Website: site, WebsiteCreated: created}, nil
}

// Cancel aborts a running capture. It reports whether a job was found.
func (r *Runner) Cancel(captureID int64) bool {
	r.mu.Lock()
	cancel, ok := r.running[captureID]
	r.mu.Unlock()
	if ok {
		cancel()
	}
	return ok
}

// Close waits for in-flight jobs to finish or the context to expire.
func (r *Runner) Close(ctx context.Context) error {
	done := make(chan struct{})
	go func() {
		r.wg.Wait()
		close(done)
	}()
	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return fmt.Errorf("runner close wait: %w", ctx.Err())
	}
}

type task struct {
	page       capture.Page
	deviceType string
	viewport   capture.Viewport
}

func (r *Runner) execute(ctx context.Context, job capture.Capture, site capture.Website, seedURL string, customSizes []capture.CustomSize) {
	started := r.clock.Now()
	logger := r.logger.With(
		zap.Int64("capture_id", job.ID),
		zap.Int64("website_id", site.ID),
		zap.String("domain", site.Domain),
	)

	if _, err := r.store.UpdateCaptureStatus(ctx, job.ID, capture.StatusInProgress); err != nil {
		logger.Error("start capture", zap.Error(err))
		r.fail(ctx, job.ID, site, started, err.Error())
		return
	}
	r.emit(progress.Event{
		CaptureID: job.ID,
		TS:        r.clock.Now(),
		Stage:     progress.StageCaptureStart,
		Site:      site.Domain,
	})

	pageURLs, err := r.discoverer.Discover(ctx, seedURL)
	if err != nil {
		// A failed discovery degrades to capturing the seed page alone.
		logger.Warn("link discovery failed, capturing seed only", zap.Error(err))
		pageURLs = []string{seedURL}
	}
	// The runner's cap is authoritative even when a discoverer is wired
	// with a looser limit.
	if len(pageURLs) > r.cfg.PageLimit {
		pageURLs = pageURLs[:r.cfg.PageLimit]
	}

	pages := make([]capture.Page, 0, len(pageURLs))
	for _, pageURL := range pageURLs {
		page, _, err := r.store.GetOrCreatePage(ctx, capture.NewPage{WebsiteID: site.ID, URL: pageURL})
		if err != nil {
			r.fail(ctx, job.ID, site, started, fmt.Sprintf("register page %s: %v", pageURL, err))
			return
		}
		pages = append(pages, page)
	}

	tasks := make([]task, 0, len(pages)*len(job.DeviceTypes))
	for _, page := range pages {
		for _, deviceType := range job.DeviceTypes {
			tasks = append(tasks, task{
				page:       page,
				deviceType: deviceType,
				viewport:   capture.ResolveViewport(deviceType, customSizes),
			})
		}
	}
	if len(tasks) == 0 {
		r.fail(ctx, job.ID, site, started, "no capture tasks to run")
		return
	}

	tracker := newProgressTracker(len(tasks))
	sem := make(chan struct{}, r.cfg.WorkerPoolSize)
	var wg sync.WaitGroup
	for _, tk := range tasks {
		if ctx.Err() != nil {
			break
		}
		wg.Add(1)
		sem <- struct{}{}
		go func(tk task) {
			defer wg.Done()
			defer func() { <-sem }()
			r.runTask(ctx, job, site, tk, tracker)
		}(tk)
	}
	wg.Wait()

	if ctx.Err() != nil {
		r.fail(context.Background(), job.ID, site, started, "capture canceled")
		return
	}

	if _, err := r.store.UpdateCaptureProgress(ctx, job.ID, 100); err != nil {
		logger.Warn("final progress write", zap.Error(err))
	}
	done, err := r.store.MarkCaptureComplete(ctx, job.ID)
	if err != nil {
		logger.Error("complete capture", zap.Error(err))
		return
	}
	elapsed := r.clock.Now().Sub(started)
	r.emit(progress.Event{
		CaptureID: job.ID,
		TS:        r.clock.Now(),
		Stage:     progress.StageCaptureDone,
		Site:      site.Domain,
		Progress:  100,
		Dur:       elapsed,
	})
	logger.Info("capture complete",
		zap.Int("pages", len(pages)),
		zap.Int("tasks", len(tasks)),
		zap.Int("failed_tasks", tracker.failures()),
		zap.Duration("elapsed", elapsed),
	)
	r.publishCompletion(done, site, tracker)
}

func (r *Runner) runTask(ctx context.Context, job capture.Capture, site capture.Website, tk task, tracker *progressTracker) {
	start := r.clock.Now()
	err := r.captureTask(ctx, job, tk)
	elapsed := r.clock.Now().Sub(start)

	pct := tracker.completeTask(err == nil)
	if ctx.Err() == nil {
		if _, perr := r.store.UpdateCaptureProgress(ctx, job.ID, pct); perr != nil {
			r.logger.Warn("progress write", zap.Int64("capture_id", job.ID), zap.Error(perr))
		}
	}

	evt := progress.Event{
		CaptureID:  job.ID,
		TS:         r.clock.Now(),
		Stage:      progress.StageTaskDone,
		Site:       site.Domain,
		URL:        tk.page.URL,
		DeviceType: tk.deviceType,
		Progress:   pct,
		Dur:        elapsed,
	}
	if err != nil {
		// One failing task never takes the rest of the capture down.
		evt.Stage = progress.StageTaskError
		evt.Note = err.Error()
		r.logger.Warn("capture task failed",
			zap.Int64("capture_id", job.ID),
			zap.String("url", tk.page.URL),
			zap.String("device_type", tk.deviceType),
			zap.Error(err),
		)
	}
	r.emit(evt)
}

func (r *Runner) captureTask(ctx context.Context, job capture.Capture, tk task) error {
	result, err := r.renderer.Render(ctx, capture.RenderRequest{
		URL:            tk.page.URL,
		DeviceType:     tk.deviceType,
		Width:          tk.viewport.Width,
		Height:         tk.viewport.Height,
		FullPage:       job.CaptureFullPage,
		WaitForDynamic: job.CaptureDynamicElements,
	})
	if err != nil {
		return fmt.Errorf("render %s: %w", tk.page.URL, err)
	}

	shotObject := archive.ScreenshotPath(tk.page.WebsiteID, job.ID, tk.page.ID, tk.deviceType)
	path, err := r.archive.PutObject(ctx, shotObject, archive.ContentTypePNG, result.Image)
	if err != nil {
		return fmt.Errorf("archive screenshot: %w", err)
	}
	var thumbPath string
	if len(result.Thumbnail) > 0 {
		thumbObject := archive.ThumbnailPath(tk.page.WebsiteID, job.ID, tk.page.ID, tk.deviceType)
		thumbPath, err = r.archive.PutObject(ctx, thumbObject, archive.ContentTypePNG, result.Thumbnail)
		if err != nil {
			return fmt.Errorf("archive thumbnail: %w", err)
		}
	}

	if result.Title != "" {
		if err := r.store.SetPageTitle(ctx, tk.page.ID, result.Title); err != nil {
			r.logger.Warn("set page title", zap.Int64("page_id", tk.page.ID), zap.Error(err))
		}
	}

	_, err = r.store.CreateScreenshot(ctx, capture.NewScreenshot{
		PageID:        tk.page.ID,
		CaptureID:     job.ID,
		DeviceType:    tk.deviceType,
		Path:          path,
		ThumbnailPath: thumbPath,
		Width:         tk.viewport.Width,
		Height:        tk.viewport.Height,
		Metadata: map[string]any{
			"full_page":        job.CaptureFullPage,
			"dynamic_elements": job.CaptureDynamicElements,
			"captured_at":      r.clock.Now().Format(time.RFC3339),
			"checksum":         sha256.Digest(result.Image),
		},
	})
	if err != nil {
		return fmt.Errorf("record screenshot: %w", err)
	}
	return nil
}

func (r *Runner) fail(ctx context.Context, captureID int64, site capture.Website, started time.Time, note string) {
	if _, err := r.store.MarkCaptureFailed(ctx, captureID, note); err != nil {
		r.logger.Error("mark capture failed", zap.Int64("capture_id", captureID), zap.Error(err))
	}
	r.emit(progress.Event{
		CaptureID: captureID,
		TS:        r.clock.Now(),
		Stage:     progress.StageCaptureError,
		Site:      site.Domain,
		Dur:       r.clock.Now().Sub(started),
		Note:      note,
	})
}

func (r *Runner) emit(evt progress.Event) {
	if r.emitter != nil {
		r.emitter.Emit(evt)
	}
}

// CompletionEvent is published when a capture finishes successfully.
type CompletionEvent struct {
	CaptureID   int64  `json:"capture_id"`
	WebsiteID   int64  `json:"website_id"`
	Domain      string `json:"domain"`
	Status      string `json:"status"`
	TaskCount   int    `json:"task_count"`
	FailedTasks int    `json:"failed_tasks"`
	CompletedAt string `json:"completed_at"`
}

func (r *Runner) publishCompletion(job capture.Capture, site capture.Website, tracker *progressTracker) {
	if r.publisher == nil {
		return
	}
	completedAt := ""
	if job.CompletedAt != nil {
		completedAt = job.CompletedAt.Format(time.RFC3339)
	}
	evt := CompletionEvent{
		CaptureID:   job.ID,
		WebsiteID:   site.ID,
		Domain:      site.Domain,
		Status:      string(job.Status),
		TaskCount:   tracker.total,
		FailedTasks: tracker.failures(),
		CompletedAt: completedAt,
	}
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if _, err := r.publisher.Publish(ctx, r.cfg.CompletionTopic, evt); err != nil {
		r.logger.Warn("publish completion event", zap.Int64("capture_id", job.ID), zap.Error(err))
	}
}

// progressTracker serializes task completions so percentages are handed out
// monotonically even when tasks finish concurrently.
type progressTracker struct {
	mu     sync.Mutex
	total  int
	done   int
	failed int
}

func newProgressTracker(total int) *progressTracker {
	return &progressTracker{total: total}
}

// completeTask records one finished task and returns the rounded percentage
// of processed tasks.
func (t *progressTracker) completeTask(ok bool) int {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.done++
	if !ok {
		t.failed++
	}
	return (100*t.done + t.total/2) / t.total
}

func (t *progressTracker) failures() int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.failed
}
