// Package capture defines core types shared across subsystems.
package capture

import "time"

// Status represents the lifecycle state of a capture job.
type Status string

// Capture status values persisted in the entity store.
const (
	StatusPending    Status = "pending"
	StatusInProgress Status = "in_progress"
	StatusComplete   Status = "complete"
	StatusFailed     Status = "failed"
)

// Terminal reports whether the status permits no further transitions.
func (s Status) Terminal() bool {
	return s == StatusComplete || s == StatusFailed
}

// Tag labels websites and pages. Deleting a tag cascades to its join rows.
type Tag struct {
	ID          int64  `json:"id"`
	Name        string `json:"name"`
	Color       string `json:"color"`
	Description string `json:"description,omitempty"`
}

// Website is created on the first capture submission for an unseen URL.
// URL and Domain are immutable after creation; Name may be updated later.
type Website struct {
	ID        int64     `json:"id"`
	URL       string    `json:"url"`
	Name      string    `json:"name"`
	Domain    string    `json:"domain"`
	CreatedAt time.Time `json:"created_at"`
}

// WebsiteTag joins a website to a tag.
type WebsiteTag struct {
	ID        int64 `json:"id"`
	WebsiteID int64 `json:"website_id"`
	TagID     int64 `json:"tag_id"`
}

// Capture is one submitted job: render a website's pages across devices.
type Capture struct {
	ID                     int64      `json:"id"`
	WebsiteID              int64      `json:"website_id"`
	Status                 Status     `json:"status"`
	DeviceTypes            []string   `json:"device_types"`
	CaptureFullPage        bool       `json:"capture_full_page"`
	CaptureDynamicElements bool       `json:"capture_dynamic_elements"`
	Progress               int        `json:"progress"`
	Error                  string     `json:"error,omitempty"`
	CreatedAt              time.Time  `json:"created_at"`
	CompletedAt            *time.Time `json:"completed_at,omitempty"`
}

// Page belongs to a website. Pages are created during link discovery and
// persist across capture jobs.
type Page struct {
	ID        int64     `json:"id"`
	WebsiteID int64     `json:"website_id"`
	URL       string    `json:"url"`
	Title     string    `json:"title,omitempty"`
	CreatedAt time.Time `json:"created_at"`
}

// PageTag joins a page to a tag.
type PageTag struct {
	ID     int64 `json:"id"`
	PageID int64 `json:"page_id"`
	TagID  int64 `json:"tag_id"`
}

// Screenshot records one rendered (page, device) artifact. Version is
// monotonic per (page, device), starting at 1.
type Screenshot struct {
	ID            int64          `json:"id"`
	PageID        int64          `json:"page_id"`
	CaptureID     int64          `json:"capture_id"`
	DeviceType    string         `json:"device_type"`
	Path          string         `json:"path"`
	ThumbnailPath string         `json:"thumbnail_path"`
	Width         int            `json:"width"`
	Height        int            `json:"height"`
	Version       int            `json:"version"`
	Metadata      map[string]any `json:"metadata,omitempty"`
	CreatedAt     time.Time      `json:"created_at"`
}

// DeviceProfile is a named viewport. Three defaults are seeded at store
// initialization.
type DeviceProfile struct {
	ID        int64  `json:"id"`
	Name      string `json:"name"`
	Width     int    `json:"width"`
	Height    int    `json:"height"`
	IsDefault bool   `json:"is_default"`
	UserID    *int64 `json:"user_id,omitempty"`
}

// NewTag carries the caller-supplied fields for tag creation.
type NewTag struct {
	Name        string `json:"name"`
	Color       string `json:"color"`
	Description string `json:"description,omitempty"`
}

// NewWebsite carries the caller-supplied fields for website creation.
type NewWebsite struct {
	URL    string `json:"url"`
	Name   string `json:"name"`
	Domain string `json:"domain"`
}

// NewCapture carries the caller-supplied fields for capture creation. The
// store stamps status, progress, and creation time.
type NewCapture struct {
	WebsiteID              int64    `json:"website_id"`
	DeviceTypes            []string `json:"device_types"`
	CaptureFullPage        bool     `json:"capture_full_page"`
	CaptureDynamicElements bool     `json:"capture_dynamic_elements"`
}

// NewPage carries the caller-supplied fields for page creation.
type NewPage struct {
	WebsiteID int64  `json:"website_id"`
	URL       string `json:"url"`
	Title     string `json:"title,omitempty"`
}

// NewScreenshot carries the caller-supplied fields for screenshot creation.
// The store assigns the version.
type NewScreenshot struct {
	PageID        int64          `json:"page_id"`
	CaptureID     int64          `json:"capture_id"`
	DeviceType    string         `json:"device_type"`
	Path          string         `json:"path"`
	ThumbnailPath string         `json:"thumbnail_path"`
	Width         int            `json:"width"`
	Height        int            `json:"height"`
	Metadata      map[string]any `json:"metadata,omitempty"`
}

// NewDeviceProfile carries the caller-supplied fields for profile creation.
type NewDeviceProfile struct {
	Name      string `json:"name"`
	Width     int    `json:"width"`
	Height    int    `json:"height"`
	IsDefault bool   `json:"is_default"`
	UserID    *int64 `json:"user_id,omitempty"`
}

// CaptureSummary is the latest-capture view embedded in website listings.
type CaptureSummary struct {
	Status    Status    `json:"status"`
	CreatedAt time.Time `json:"created_at"`
}

// WebsiteDetails is the derived listing view of a website.
type WebsiteDetails struct {
	Website
	Tags          []Tag           `json:"tags"`
	CaptureCount  int             `json:"capture_count"`
	PageCount     int             `json:"page_count"`
	LatestCapture *CaptureSummary `json:"latest_capture,omitempty"`
}

// WebsiteSummary is the owning-website view embedded in capture details.
type WebsiteSummary struct {
	ID     int64  `json:"id"`
	Name   string `json:"name"`
	Domain string `json:"domain"`
	URL    string `json:"url"`
}

// PageSummary is the page view embedded in capture details.
type PageSummary struct {
	ID    int64  `json:"id"`
	URL   string `json:"url"`
	Title string `json:"title"`
}

// CaptureDetails is a capture joined with its website and page set.
// CompletedPageCount counts distinct pages with at least one screenshot
// belonging to this capture; it can be less than PageCount when individual
// render tasks fail.
type CaptureDetails struct {
	Capture
	Website            *WebsiteSummary `json:"website,omitempty"`
	Pages              []PageSummary   `json:"pages"`
	PageCount          int             `json:"page_count"`
	CompletedPageCount int             `json:"completed_page_count"`
}

// PageDetails is a page joined with its tags and screenshots.
type PageDetails struct {
	Page
	Tags        []Tag        `json:"tags"`
	Screenshots []Screenshot `json:"screenshots"`
}

// CustomSize is a caller-supplied named viewport for a single job.
type CustomSize struct {
	Name   string `json:"name"`
	Width  int    `json:"width"`
	Height int    `json:"height"`
}

// Config captures per-job configuration requested by the client.
type Config struct {
	URL                    string       `json:"url"`
	DeviceTypes            []string     `json:"device_types"`
	CustomSizes            []CustomSize `json:"custom_sizes,omitempty"`
	CaptureFullPage        bool         `json:"capture_full_page"`
	CaptureDynamicElements bool         `json:"capture_dynamic_elements"`
	InitialTags            []string     `json:"initial_tags,omitempty"`
}

// Validate rejects malformed submissions before any state is persisted.
func (c Config) Validate() error {
	if c.URL == "" {
		return &ValidationError{Field: "url", Reason: "url is required"}
	}
	if _, err := ParseSubmissionURL(c.URL); err != nil {
		return &ValidationError{Field: "url", Reason: err.Error()}
	}
	if len(c.DeviceTypes) == 0 {
		return &ValidationError{Field: "device_types", Reason: "at least one device type is required"}
	}
	for _, dt := range c.DeviceTypes {
		if dt == "" {
			return &ValidationError{Field: "device_types", Reason: "device type must not be empty"}
		}
	}
	for _, cs := range c.CustomSizes {
		if cs.Name == "" {
			return &ValidationError{Field: "custom_sizes", Reason: "custom size name must not be empty"}
		}
		if cs.Width <= 0 || cs.Height <= 0 {
			return &ValidationError{Field: "custom_sizes", Reason: "custom size dimensions must be positive"}
		}
	}
	return nil
}

// RenderRequest captures everything needed to render one (page, device) pair.
type RenderRequest struct {
	URL            string
	DeviceType     string
	Width          int
	Height         int
	FullPage       bool
	WaitForDynamic bool
}

// RenderResult is returned by a Renderer implementation. OutboundLinks are
// best-effort absolute URLs and may be empty.
type RenderResult struct {
	Image         []byte
	Thumbnail     []byte
	Title         string
	OutboundLinks []string
}
