package runner

import (
	"context"
	"errors"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	memarchive "github.com/sitelens/sitelens/internal/archive/memory"
	"github.com/sitelens/sitelens/internal/capture"
	"github.com/sitelens/sitelens/internal/hash/sha256"
	mempub "github.com/sitelens/sitelens/internal/publisher/memory"
	memstore "github.com/sitelens/sitelens/internal/store/memory"
)

type stubDiscoverer struct {
	pages []string
	err   error
}

func (d *stubDiscoverer) Discover(_ context.Context, seedURL string) ([]string, error) {
	if d.err != nil {
		return nil, d.err
	}
	if len(d.pages) == 0 {
		return []string{seedURL}, nil
	}
	return d.pages, nil
}

// stubRenderer fails renders for device types listed in failDevices and can
// optionally block until the context is canceled.
type stubRenderer struct {
	mu          sync.Mutex
	failDevices map[string]bool
	block       bool
	calls       int
}

func (r *stubRenderer) Render(ctx context.Context, req capture.RenderRequest) (capture.RenderResult, error) {
	r.mu.Lock()
	r.calls++
	r.mu.Unlock()
	if r.block {
		<-ctx.Done()
		return capture.RenderResult{}, ctx.Err()
	}
	if r.failDevices[req.DeviceType] {
		return capture.RenderResult{}, errors.New("render crashed")
	}
	return capture.RenderResult{
		Image:     []byte("png:" + req.URL + ":" + req.DeviceType),
		Thumbnail: []byte("thumb"),
		Title:     "Title of " + req.URL,
	}, nil
}

func (r *stubRenderer) renderCalls() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.calls
}

type fixture struct {
	runner   *Runner
	store    *memstore.Store
	archive  *memarchive.Archive
	pub      *mempub.Publisher
	renderer *stubRenderer
}

func newFixture(t *testing.T, disc *stubDiscoverer, rend *stubRenderer) *fixture {
	t.Helper()
	st := memstore.New(nil)
	ar := memarchive.New()
	pub := mempub.New()
	r, err := New(Config{WorkerPoolSize: 2}, Deps{
		Store:      st,
		Discoverer: disc,
		Renderer:   rend,
		Archive:    ar,
		Publisher:  pub,
	})
	require.NoError(t, err)
	return &fixture{runner: r, store: st, archive: ar, pub: pub, renderer: rend}
}

func waitForStatus(t *testing.T, st *memstore.Store, captureID int64, want capture.Status) capture.Capture {
	t.Helper()
	var got capture.Capture
	require.Eventually(t, func() bool {
		c, err := st.GetCapture(context.Background(), captureID)
		if err != nil {
			return false
		}
		got = c
		return c.Status == want
	}, 5*time.Second, 10*time.Millisecond)
	return got
}

func TestSubmitRejectsInvalidConfig(t *testing.T) {
	t.Parallel()

	f := newFixture(t, &stubDiscoverer{}, &stubRenderer{})
	_, err := f.runner.Submit(context.Background(), capture.Config{
		URL: "not-a-url", DeviceTypes: []string{"desktop"},
	})
	require.True(t, capture.IsValidation(err))

	_, err = f.runner.Submit(context.Background(), capture.Config{URL: "https://example.com"})
	require.True(t, capture.IsValidation(err))
}

func TestCaptureFansOutPagesAndDevices(t *testing.T) {
	t.Parallel()

	disc := &stubDiscoverer{pages: []string{
		"https://example.com",
		"https://example.com/about",
	}}
	f := newFixture(t, disc, &stubRenderer{})

	sub, err := f.runner.Submit(context.Background(), capture.Config{
		URL:         "https://example.com",
		DeviceTypes: []string{"desktop", "mobile"},
		InitialTags: []string{"portfolio"},
	})
	require.NoError(t, err)
	require.True(t, sub.WebsiteCreated)
	require.Equal(t, capture.StatusPending, sub.Capture.Status)
	require.Equal(t, "Example", sub.Website.Name)
	require.Equal(t, "example.com", sub.Website.Domain)

	done := waitForStatus(t, f.store, sub.Capture.ID, capture.StatusComplete)
	require.Equal(t, 100, done.Progress)
	require.NotNil(t, done.CompletedAt)

	ctx := context.Background()
	pages, err := f.store.ListPagesByWebsite(ctx, sub.Website.ID)
	require.NoError(t, err)
	require.Len(t, pages, 2)

	// 2 pages x 2 devices, each with screenshot + thumbnail.
	require.Equal(t, 8, f.archive.Len())
	for _, page := range pages {
		shots, err := f.store.ListScreenshotsByPage(ctx, page.ID)
		require.NoError(t, err)
		require.Len(t, shots, 2)
		require.Equal(t, "Title of "+page.URL, mustPageTitle(t, f.store, page.ID))
	}

	tags, err := f.store.GetWebsiteTags(ctx, sub.Website.ID)
	require.NoError(t, err)
	require.Len(t, tags, 1)
	require.Equal(t, "portfolio", tags[0].Name)
	require.True(t, strings.HasPrefix(tags[0].Color, "#"))

	msgs := f.pub.Messages()
	require.Len(t, msgs, 1)
	evt, ok := msgs[0].Payload.(CompletionEvent)
	require.True(t, ok)
	require.Equal(t, sub.Capture.ID, evt.CaptureID)
	require.Equal(t, 4, evt.TaskCount)
	require.Zero(t, evt.FailedTasks)
}

func mustPageTitle(t *testing.T, st *memstore.Store, pageID int64) string {
	t.Helper()
	page, err := st.GetPage(context.Background(), pageID)
	require.NoError(t, err)
	return page.Title
}

func TestTaskFailuresAreIsolated(t *testing.T) {
	t.Parallel()

	f := newFixture(t,
		&stubDiscoverer{},
		&stubRenderer{failDevices: map[string]bool{"mobile": true}},
	)

	sub, err := f.runner.Submit(context.Background(), capture.Config{
		URL:         "https://example.com",
		DeviceTypes: []string{"desktop", "mobile"},
	})
	require.NoError(t, err)

	done := waitForStatus(t, f.store, sub.Capture.ID, capture.StatusComplete)
	require.Equal(t, 100, done.Progress)
	require.Empty(t, done.Error)

	pages, err := f.store.ListPagesByWebsite(context.Background(), sub.Website.ID)
	require.NoError(t, err)
	require.Len(t, pages, 1)

	shots, err := f.store.ListScreenshotsByPage(context.Background(), pages[0].ID)
	require.NoError(t, err)
	require.Len(t, shots, 1)
	require.Equal(t, "desktop", shots[0].DeviceType)

	msgs := f.pub.Messages()
	require.Len(t, msgs, 1)
	evt := msgs[0].Payload.(CompletionEvent)
	require.Equal(t, 1, evt.FailedTasks)
}

func TestDiscoveryFailureDegradesToSeed(t *testing.T) {
	t.Parallel()

	f := newFixture(t,
		&stubDiscoverer{err: errors.New("seed unreachable over http")},
		&stubRenderer{},
	)

	sub, err := f.runner.Submit(context.Background(), capture.Config{
		URL:         "https://example.com/landing",
		DeviceTypes: []string{"desktop"},
	})
	require.NoError(t, err)

	waitForStatus(t, f.store, sub.Capture.ID, capture.StatusComplete)

	pages, err := f.store.ListPagesByWebsite(context.Background(), sub.Website.ID)
	require.NoError(t, err)
	require.Len(t, pages, 1)
	require.Equal(t, "https://example.com/landing", pages[0].URL)
}

func TestCancelMarksCaptureFailed(t *testing.T) {
	t.Parallel()

	rend := &stubRenderer{block: true}
	f := newFixture(t, &stubDiscoverer{}, rend)

	sub, err := f.runner.Submit(context.Background(), capture.Config{
		URL:         "https://example.com",
		DeviceTypes: []string{"desktop"},
	})
	require.NoError(t, err)

	require.Eventually(t, func() bool { return rend.renderCalls() > 0 }, 5*time.Second, 10*time.Millisecond)
	require.True(t, f.runner.Cancel(sub.Capture.ID))

	done := waitForStatus(t, f.store, sub.Capture.ID, capture.StatusFailed)
	require.Equal(t, "capture canceled", done.Error)
	require.Empty(t, f.pub.Messages())

	// The id is gone once the job exits.
	require.Eventually(t, func() bool { return !f.runner.Cancel(sub.Capture.ID) }, 5*time.Second, 10*time.Millisecond)
}

func TestConcurrentSubmissionsShareWebsite(t *testing.T) {
	t.Parallel()

	f := newFixture(t, &stubDiscoverer{}, &stubRenderer{})

	const submissions = 8
	results := make(chan Submission, submissions)
	var wg sync.WaitGroup
	for i := 0; i < submissions; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			sub, err := f.runner.Submit(context.Background(), capture.Config{
				URL:         "https://example.com",
				DeviceTypes: []string{"desktop"},
			})
			require.NoError(t, err)
			results <- sub
		}()
	}
	wg.Wait()
	close(results)

	var websiteID int64
	captureIDs := make(map[int64]struct{})
	for sub := range results {
		if websiteID == 0 {
			websiteID = sub.Website.ID
		}
		require.Equal(t, websiteID, sub.Website.ID)
		captureIDs[sub.Capture.ID] = struct{}{}
	}
	require.Len(t, captureIDs, submissions)

	require.NoError(t, f.runner.Close(context.Background()))
	sites, err := f.store.ListWebsites(context.Background())
	require.NoError(t, err)
	require.Len(t, sites, 1)
	require.Equal(t, submissions, sites[0].CaptureCount)
}

func TestCustomSizeViewports(t *testing.T) {
	t.Parallel()

	f := newFixture(t, &stubDiscoverer{}, &stubRenderer{})

	sub, err := f.runner.Submit(context.Background(), capture.Config{
		URL:         "https://example.com",
		DeviceTypes: []string{"Ultrawide"},
		CustomSizes: []capture.CustomSize{{Name: "ultrawide", Width: 3440, Height: 1440}},
	})
	require.NoError(t, err)

	waitForStatus(t, f.store, sub.Capture.ID, capture.StatusComplete)

	pages, err := f.store.ListPagesByWebsite(context.Background(), sub.Website.ID)
	require.NoError(t, err)
	shots, err := f.store.ListScreenshotsByPage(context.Background(), pages[0].ID)
	require.NoError(t, err)
	require.Len(t, shots, 1)
	require.Equal(t, 3440, shots[0].Width)
	require.Equal(t, 1440, shots[0].Height)
	require.Equal(t,
		sha256.Digest([]byte("png:https://example.com:Ultrawide")),
		shots[0].Metadata["checksum"])
}

func TestInitialTagsApplyOnlyOnWebsiteCreation(t *testing.T) {
	t.Parallel()

	f := newFixture(t, &stubDiscoverer{}, &stubRenderer{})
	ctx := context.Background()

	first, err := f.runner.Submit(ctx, capture.Config{
		URL:         "https://example.com",
		DeviceTypes: []string{"desktop"},
		InitialTags: []string{"portfolio"},
	})
	require.NoError(t, err)
	require.True(t, first.WebsiteCreated)
	waitForStatus(t, f.store, first.Capture.ID, capture.StatusComplete)

	second, err := f.runner.Submit(ctx, capture.Config{
		URL:         "https://example.com",
		DeviceTypes: []string{"desktop"},
		InitialTags: []string{"portfolio", "redesign"},
	})
	require.NoError(t, err)
	require.False(t, second.WebsiteCreated)
	waitForStatus(t, f.store, second.Capture.ID, capture.StatusComplete)

	// Resubmission creates no tag rows and attaches nothing new.
	tags, err := f.store.ListTags(ctx)
	require.NoError(t, err)
	require.Len(t, tags, 1)
	require.Equal(t, "portfolio", tags[0].Name)

	siteTags, err := f.store.GetWebsiteTags(ctx, first.Website.ID)
	require.NoError(t, err)
	require.Len(t, siteTags, 1)
	require.Equal(t, tags[0].ID, siteTags[0].ID)
}

func TestInitialTagsReuseExistingTagByName(t *testing.T) {
	t.Parallel()

	f := newFixture(t, &stubDiscoverer{}, &stubRenderer{})
	ctx := context.Background()

	existing, err := f.store.CreateTag(ctx, capture.NewTag{Name: "portfolio", Color: "#10B981"})
	require.NoError(t, err)

	sub, err := f.runner.Submit(ctx, capture.Config{
		URL:         "https://example.com",
		DeviceTypes: []string{"desktop"},
		InitialTags: []string{"portfolio"},
	})
	require.NoError(t, err)
	waitForStatus(t, f.store, sub.Capture.ID, capture.StatusComplete)

	tags, err := f.store.ListTags(ctx)
	require.NoError(t, err)
	require.Len(t, tags, 1)

	siteTags, err := f.store.GetWebsiteTags(ctx, sub.Website.ID)
	require.NoError(t, err)
	require.Len(t, siteTags, 1)
	require.Equal(t, existing.ID, siteTags[0].ID)
	require.Equal(t, "#10B981", siteTags[0].Color)
}

func TestPageLimitCapsDiscoveredPages(t *testing.T) {
	t.Parallel()

	disc := &stubDiscoverer{pages: []string{
		"https://example.com",
		"https://example.com/a",
		"https://example.com/b",
		"https://example.com/c",
		"https://example.com/d",
	}}
	rend := &stubRenderer{}
	st := memstore.New(nil)
	r, err := New(Config{WorkerPoolSize: 2, PageLimit: 2}, Deps{
		Store:      st,
		Discoverer: disc,
		Renderer:   rend,
		Archive:    memarchive.New(),
	})
	require.NoError(t, err)

	sub, err := r.Submit(context.Background(), capture.Config{
		URL:         "https://example.com",
		DeviceTypes: []string{"desktop"},
	})
	require.NoError(t, err)
	waitForStatus(t, st, sub.Capture.ID, capture.StatusComplete)

	pages, err := st.ListPagesByWebsite(context.Background(), sub.Website.ID)
	require.NoError(t, err)
	require.Len(t, pages, 2)
	require.Equal(t, 2, rend.renderCalls())
}
