package capture

import (
	"context"
	"time"
)

// Store persists the entity graph: tags, websites, captures, pages,
// screenshots, device profiles, and the tag join rows. Implementations must
// be safe for concurrent callers; id assignment is monotonic per entity type
// and ids are never reused. Reads return ErrNotFound on a miss.
type Store interface {
	// Tags.
	CreateTag(ctx context.Context, tag NewTag) (Tag, error)
	// GetOrCreateTag resolves a tag by exact name, creating it when absent.
	// The check-and-create is atomic. The bool reports creation.
	GetOrCreateTag(ctx context.Context, tag NewTag) (Tag, bool, error)
	GetTag(ctx context.Context, id int64) (Tag, error)
	ListTags(ctx context.Context) ([]Tag, error)
	// DeleteTag removes the tag and every WebsiteTag/PageTag row referencing
	// it. It is idempotent and never fails for a referenced or missing tag.
	DeleteTag(ctx context.Context, id int64) error

	// Websites.
	CreateWebsite(ctx context.Context, site NewWebsite) (Website, error)
	// GetOrCreateWebsite resolves the website for the url key, creating it
	// when absent. The check-and-create is atomic: concurrent submissions
	// for one url share a single row (first writer wins). The bool reports
	// whether a row was created.
	GetOrCreateWebsite(ctx context.Context, site NewWebsite) (Website, bool, error)
	GetWebsite(ctx context.Context, id int64) (Website, error)
	GetWebsiteByURL(ctx context.Context, url string) (Website, error)
	ListWebsites(ctx context.Context) ([]WebsiteDetails, error)
	SetWebsiteName(ctx context.Context, id int64, name string) error
	AddTagToWebsite(ctx context.Context, websiteID, tagID int64) (WebsiteTag, error)
	GetWebsiteTags(ctx context.Context, websiteID int64) ([]Tag, error)

	// Captures.
	CreateCapture(ctx context.Context, cap NewCapture) (Capture, error)
	GetCapture(ctx context.Context, id int64) (Capture, error)
	GetCaptureDetails(ctx context.Context, id int64) (CaptureDetails, error)
	ListCaptures(ctx context.Context) ([]CaptureDetails, error)
	// UpdateCaptureStatus enforces the strict pending -> in_progress ->
	// {complete, failed} transition order.
	UpdateCaptureStatus(ctx context.Context, id int64, status Status) (Capture, error)
	// UpdateCaptureProgress persists a 0-100 progress value; regressions are
	// ignored so the persisted value is non-decreasing.
	UpdateCaptureProgress(ctx context.Context, id int64, progress int) (Capture, error)
	MarkCaptureFailed(ctx context.Context, id int64, errText string) (Capture, error)
	MarkCaptureComplete(ctx context.Context, id int64) (Capture, error)

	// Pages.
	CreatePage(ctx context.Context, page NewPage) (Page, error)
	// GetOrCreatePage reuses an existing (websiteID, url) row rather than
	// duplicating pages across jobs. The bool reports creation.
	GetOrCreatePage(ctx context.Context, page NewPage) (Page, bool, error)
	GetPage(ctx context.Context, id int64) (Page, error)
	GetPageDetails(ctx context.Context, id int64) (PageDetails, error)
	ListPagesByWebsite(ctx context.Context, websiteID int64) ([]Page, error)
	// SetPageTitle fills the title only when it is still unset.
	SetPageTitle(ctx context.Context, id int64, title string) error
	AddTagToPage(ctx context.Context, pageID, tagID int64) (PageTag, error)
	GetPageTags(ctx context.Context, pageID int64) ([]Tag, error)

	// Screenshots.
	CreateScreenshot(ctx context.Context, shot NewScreenshot) (Screenshot, error)
	GetScreenshot(ctx context.Context, id int64) (Screenshot, error)
	ListScreenshotsByPage(ctx context.Context, pageID int64) ([]Screenshot, error)
	ListScreenshotsByDevice(ctx context.Context, pageID int64, deviceType string) ([]Screenshot, error)
	GetLatestScreenshot(ctx context.Context, pageID int64, deviceType string) (Screenshot, error)

	// Device profiles.
	CreateDeviceProfile(ctx context.Context, profile NewDeviceProfile) (DeviceProfile, error)
	ListDeviceProfiles(ctx context.Context) ([]DeviceProfile, error)
	ListDefaultDeviceProfiles(ctx context.Context) ([]DeviceProfile, error)
}

// Renderer is the render engine contract consumed by the core. A call can
// fail and can be slow; implementations enforce their own navigation timeout.
type Renderer interface {
	Render(ctx context.Context, req RenderRequest) (RenderResult, error)
}

// Archive writes screenshot artifacts and returns a URI.
type Archive interface {
	PutObject(ctx context.Context, path string, contentType string, data []byte) (string, error)
}

// Publisher pushes capture completion events to Pub/Sub (or similar).
type Publisher interface {
	Publish(ctx context.Context, topic string, payload any) (string, error)
}

// Clock returns the current time (useful for testing).
type Clock interface {
	Now() time.Time
}
