// Package memory implements the entity store as an in-memory relational
// repository with monotonic per-entity-type ids and cascade-delete rules.
package memory

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"github.com/sitelens/sitelens/internal/capture"
	"github.com/sitelens/sitelens/internal/clock/system"
)

// Store holds every entity behind one RWMutex. All mutating operations take
// the write lock, so a single observer never sees interleaved partial state
// (cascade deletes in particular are atomic).
type Store struct {
	mu sync.RWMutex

	tags           map[int64]capture.Tag
	websites       map[int64]capture.Website
	websiteTags    map[int64]capture.WebsiteTag
	captures       map[int64]capture.Capture
	pages          map[int64]capture.Page
	pageTags       map[int64]capture.PageTag
	screenshots    map[int64]capture.Screenshot
	deviceProfiles map[int64]capture.DeviceProfile

	nextTagID           int64
	nextWebsiteID       int64
	nextWebsiteTagID    int64
	nextCaptureID       int64
	nextPageID          int64
	nextPageTagID       int64
	nextScreenshotID    int64
	nextDeviceProfileID int64

	clock capture.Clock
}

// New constructs a Store seeded with the default device profiles.
func New(clock capture.Clock) *Store {
	if clock == nil {
		clock = system.New()
	}
	s := &Store{
		tags:                make(map[int64]capture.Tag),
		websites:            make(map[int64]capture.Website),
		websiteTags:         make(map[int64]capture.WebsiteTag),
		captures:            make(map[int64]capture.Capture),
		pages:               make(map[int64]capture.Page),
		pageTags:            make(map[int64]capture.PageTag),
		screenshots:         make(map[int64]capture.Screenshot),
		deviceProfiles:      make(map[int64]capture.DeviceProfile),
		nextTagID:           1,
		nextWebsiteID:       1,
		nextWebsiteTagID:    1,
		nextCaptureID:       1,
		nextPageID:          1,
		nextPageTagID:       1,
		nextScreenshotID:    1,
		nextDeviceProfileID: 1,
		clock:               clock,
	}
	for _, profile := range capture.DefaultDeviceProfiles() {
		s.deviceProfiles[s.nextDeviceProfileID] = capture.DeviceProfile{
			ID:        s.nextDeviceProfileID,
			Name:      profile.Name,
			Width:     profile.Width,
			Height:    profile.Height,
			IsDefault: profile.IsDefault,
		}
		s.nextDeviceProfileID++
	}
	return s
}

// CreateTag assigns the next tag id and stores the record.
func (s *Store) CreateTag(_ context.Context, tag capture.NewTag) (capture.Tag, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	record := capture.Tag{
		ID:          s.nextTagID,
		Name:        tag.Name,
		Color:       tag.Color,
		Description: tag.Description,
	}
	s.tags[record.ID] = record
	s.nextTagID++
	return record, nil
}

// GetOrCreateTag resolves a tag by exact name under the store lock,
// creating it when absent. The color and description of an existing tag
// are left alone.
func (s *Store) GetOrCreateTag(_ context.Context, tag capture.NewTag) (capture.Tag, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, existing := range s.tags {
		if existing.Name == tag.Name {
			return existing, false, nil
		}
	}
	record := capture.Tag{
		ID:          s.nextTagID,
		Name:        tag.Name,
		Color:       tag.Color,
		Description: tag.Description,
	}
	s.tags[record.ID] = record
	s.nextTagID++
	return record, true, nil
}

// GetTag fetches a tag by id.
func (s *Store) GetTag(_ context.Context, id int64) (capture.Tag, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	tag, ok := s.tags[id]
	if !ok {
		return capture.Tag{}, fmt.Errorf("tag %d: %w", id, capture.ErrNotFound)
	}
	return tag, nil
}

// ListTags returns all tags ordered by id.
func (s *Store) ListTags(_ context.Context) ([]capture.Tag, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]capture.Tag, 0, len(s.tags))
	for _, tag := range s.tags {
		out = append(out, tag)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

// DeleteTag removes the tag and cascades to every join row referencing it.
// It is idempotent: deleting a missing tag is not an error.
func (s *Store) DeleteTag(_ context.Context, id int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.tags, id)
	for wtID, wt := range s.websiteTags {
		if wt.TagID == id {
			delete(s.websiteTags, wtID)
		}
	}
	for ptID, pt := range s.pageTags {
		if pt.TagID == id {
			delete(s.pageTags, ptID)
		}
	}
	return nil
}

// CreateWebsite stores a new website, stamping creation time.
func (s *Store) CreateWebsite(_ context.Context, site capture.NewWebsite) (capture.Website, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.createWebsiteLocked(site), nil
}

// GetOrCreateWebsite resolves or creates the website for the url key. The
// lookup and insert happen under one lock acquisition, so two concurrent
// submissions for the same url observe a single row.
func (s *Store) GetOrCreateWebsite(_ context.Context, site capture.NewWebsite) (capture.Website, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, existing := range s.websites {
		if existing.URL == site.URL {
			return existing, false, nil
		}
	}
	return s.createWebsiteLocked(site), true, nil
}

func (s *Store) createWebsiteLocked(site capture.NewWebsite) capture.Website {
	record := capture.Website{
		ID:        s.nextWebsiteID,
		URL:       site.URL,
		Name:      site.Name,
		Domain:    site.Domain,
		CreatedAt: s.clock.Now(),
	}
	s.websites[record.ID] = record
	s.nextWebsiteID++
	return record
}

// GetWebsite fetches a website by id.
func (s *Store) GetWebsite(_ context.Context, id int64) (capture.Website, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	site, ok := s.websites[id]
	if !ok {
		return capture.Website{}, fmt.Errorf("website %d: %w", id, capture.ErrNotFound)
	}
	return site, nil
}

// GetWebsiteByURL fetches a website by its url key.
func (s *Store) GetWebsiteByURL(_ context.Context, url string) (capture.Website, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	for _, site := range s.websites {
		if site.URL == url {
			return site, nil
		}
	}
	return capture.Website{}, fmt.Errorf("website %q: %w", url, capture.ErrNotFound)
}

// ListWebsites computes the derived listing view: tags, capture/page counts,
// latest capture summary. Pure read, no side effects.
func (s *Store) ListWebsites(_ context.Context) ([]capture.WebsiteDetails, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]capture.WebsiteDetails, 0, len(s.websites))
	for _, site := range s.websites {
		details := capture.WebsiteDetails{
			Website: site,
			Tags:    s.websiteTagsLocked(site.ID),
		}
		var latest *capture.Capture
		for _, c := range s.captures {
			if c.WebsiteID != site.ID {
				continue
			}
			details.CaptureCount++
			if latest == nil || c.CreatedAt.After(latest.CreatedAt) {
				cc := c
				latest = &cc
			}
		}
		if latest != nil {
			details.LatestCapture = &capture.CaptureSummary{
				Status:    latest.Status,
				CreatedAt: latest.CreatedAt,
			}
		}
		for _, p := range s.pages {
			if p.WebsiteID == site.ID {
				details.PageCount++
			}
		}
		out = append(out, details)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

// SetWebsiteName updates the display name; url and domain stay immutable.
func (s *Store) SetWebsiteName(_ context.Context, id int64, name string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	site, ok := s.websites[id]
	if !ok {
		return fmt.Errorf("website %d: %w", id, capture.ErrNotFound)
	}
	site.Name = name
	s.websites[id] = site
	return nil
}

// AddTagToWebsite inserts a join row after verifying both sides exist.
func (s *Store) AddTagToWebsite(_ context.Context, websiteID, tagID int64) (capture.WebsiteTag, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.websites[websiteID]; !ok {
		return capture.WebsiteTag{}, fmt.Errorf("website %d: %w", websiteID, capture.ErrNotFound)
	}
	if _, ok := s.tags[tagID]; !ok {
		return capture.WebsiteTag{}, fmt.Errorf("tag %d: %w", tagID, capture.ErrNotFound)
	}
	for _, wt := range s.websiteTags {
		if wt.WebsiteID == websiteID && wt.TagID == tagID {
			return wt, nil
		}
	}
	record := capture.WebsiteTag{ID: s.nextWebsiteTagID, WebsiteID: websiteID, TagID: tagID}
	s.websiteTags[record.ID] = record
	s.nextWebsiteTagID++
	return record, nil
}

// GetWebsiteTags joins the tag rows for a website.
func (s *Store) GetWebsiteTags(_ context.Context, websiteID int64) ([]capture.Tag, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.websiteTagsLocked(websiteID), nil
}

func (s *Store) websiteTagsLocked(websiteID int64) []capture.Tag {
	tags := make([]capture.Tag, 0)
	for _, wt := range s.websiteTags {
		if wt.WebsiteID != websiteID {
			continue
		}
		if tag, ok := s.tags[wt.TagID]; ok {
			tags = append(tags, tag)
		}
	}
	sort.Slice(tags, func(i, j int) bool { return tags[i].ID < tags[j].ID })
	return tags
}

// CreateCapture stores a new capture in pending with zero progress.
func (s *Store) CreateCapture(_ context.Context, cap capture.NewCapture) (capture.Capture, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.websites[cap.WebsiteID]; !ok {
		return capture.Capture{}, fmt.Errorf("website %d: %w", cap.WebsiteID, capture.ErrNotFound)
	}
	record := capture.Capture{
		ID:                     s.nextCaptureID,
		WebsiteID:              cap.WebsiteID,
		Status:                 capture.StatusPending,
		DeviceTypes:            append([]string(nil), cap.DeviceTypes...),
		CaptureFullPage:        cap.CaptureFullPage,
		CaptureDynamicElements: cap.CaptureDynamicElements,
		Progress:               0,
		CreatedAt:              s.clock.Now(),
	}
	s.captures[record.ID] = record
	s.nextCaptureID++
	return record, nil
}

// GetCapture fetches a capture by id.
func (s *Store) GetCapture(_ context.Context, id int64) (capture.Capture, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	c, ok := s.captures[id]
	if !ok {
		return capture.Capture{}, fmt.Errorf("capture %d: %w", id, capture.ErrNotFound)
	}
	return cloneCapture(c), nil
}

// GetCaptureDetails joins the capture with its website summary and page set.
func (s *Store) GetCaptureDetails(_ context.Context, id int64) (capture.CaptureDetails, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	c, ok := s.captures[id]
	if !ok {
		return capture.CaptureDetails{}, fmt.Errorf("capture %d: %w", id, capture.ErrNotFound)
	}
	return s.captureDetailsLocked(c), nil
}

// ListCaptures returns the detail view for every capture, newest first.
func (s *Store) ListCaptures(_ context.Context) ([]capture.CaptureDetails, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]capture.CaptureDetails, 0, len(s.captures))
	for _, c := range s.captures {
		out = append(out, s.captureDetailsLocked(c))
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID > out[j].ID })
	return out, nil
}

func (s *Store) captureDetailsLocked(c capture.Capture) capture.CaptureDetails {
	details := capture.CaptureDetails{
		Capture: cloneCapture(c),
		Pages:   make([]capture.PageSummary, 0),
	}
	if site, ok := s.websites[c.WebsiteID]; ok {
		details.Website = &capture.WebsiteSummary{
			ID:     site.ID,
			Name:   site.Name,
			Domain: site.Domain,
			URL:    site.URL,
		}
	}
	for _, p := range s.pages {
		if p.WebsiteID == c.WebsiteID {
			details.Pages = append(details.Pages, capture.PageSummary{ID: p.ID, URL: p.URL, Title: p.Title})
		}
	}
	sort.Slice(details.Pages, func(i, j int) bool { return details.Pages[i].ID < details.Pages[j].ID })
	details.PageCount = len(details.Pages)

	completed := make(map[int64]struct{})
	for _, shot := range s.screenshots {
		if shot.CaptureID == c.ID {
			completed[shot.PageID] = struct{}{}
		}
	}
	details.CompletedPageCount = len(completed)
	return details
}

var validTransitions = map[capture.Status][]capture.Status{
	capture.StatusPending:    {capture.StatusInProgress, capture.StatusFailed},
	capture.StatusInProgress: {capture.StatusComplete, capture.StatusFailed},
}

func transitionAllowed(from, to capture.Status) bool {
	for _, next := range validTransitions[from] {
		if next == to {
			return true
		}
	}
	return false
}

// UpdateCaptureStatus applies a state-machine transition. Transitions out of
// complete or failed are rejected.
func (s *Store) UpdateCaptureStatus(_ context.Context, id int64, status capture.Status) (capture.Capture, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	c, ok := s.captures[id]
	if !ok {
		return capture.Capture{}, fmt.Errorf("capture %d: %w", id, capture.ErrNotFound)
	}
	if !transitionAllowed(c.Status, status) {
		return capture.Capture{}, fmt.Errorf("capture %d: transition %s -> %s not allowed", id, c.Status, status)
	}
	c.Status = status
	s.captures[id] = c
	return cloneCapture(c), nil
}

// UpdateCaptureProgress persists progress, clamped to 0-100. A regressive
// write is ignored so the persisted value never decreases.
func (s *Store) UpdateCaptureProgress(_ context.Context, id int64, progress int) (capture.Capture, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	c, ok := s.captures[id]
	if !ok {
		return capture.Capture{}, fmt.Errorf("capture %d: %w", id, capture.ErrNotFound)
	}
	if progress < 0 {
		progress = 0
	}
	if progress > 100 {
		progress = 100
	}
	if progress > c.Progress {
		c.Progress = progress
		s.captures[id] = c
	}
	return cloneCapture(c), nil
}

// MarkCaptureFailed transitions to failed and records the error text.
func (s *Store) MarkCaptureFailed(_ context.Context, id int64, errText string) (capture.Capture, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	c, ok := s.captures[id]
	if !ok {
		return capture.Capture{}, fmt.Errorf("capture %d: %w", id, capture.ErrNotFound)
	}
	if !transitionAllowed(c.Status, capture.StatusFailed) {
		return capture.Capture{}, fmt.Errorf("capture %d: transition %s -> %s not allowed", id, c.Status, capture.StatusFailed)
	}
	c.Status = capture.StatusFailed
	c.Error = errText
	s.captures[id] = c
	return cloneCapture(c), nil
}

// MarkCaptureComplete transitions to complete, sets progress to 100, and
// stamps completion time.
func (s *Store) MarkCaptureComplete(_ context.Context, id int64) (capture.Capture, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	c, ok := s.captures[id]
	if !ok {
		return capture.Capture{}, fmt.Errorf("capture %d: %w", id, capture.ErrNotFound)
	}
	if !transitionAllowed(c.Status, capture.StatusComplete) {
		return capture.Capture{}, fmt.Errorf("capture %d: transition %s -> %s not allowed", id, c.Status, capture.StatusComplete)
	}
	now := s.clock.Now()
	c.Status = capture.StatusComplete
	c.Progress = 100
	c.CompletedAt = &now
	s.captures[id] = c
	return cloneCapture(c), nil
}

// CreatePage stores a new page, stamping creation time.
func (s *Store) CreatePage(_ context.Context, page capture.NewPage) (capture.Page, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.websites[page.WebsiteID]; !ok {
		return capture.Page{}, fmt.Errorf("website %d: %w", page.WebsiteID, capture.ErrNotFound)
	}
	return s.createPageLocked(page), nil
}

// GetOrCreatePage reuses an existing (websiteID, url) row; a missing title
// is filled from the candidate.
func (s *Store) GetOrCreatePage(_ context.Context, page capture.NewPage) (capture.Page, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.websites[page.WebsiteID]; !ok {
		return capture.Page{}, false, fmt.Errorf("website %d: %w", page.WebsiteID, capture.ErrNotFound)
	}
	for id, existing := range s.pages {
		if existing.WebsiteID == page.WebsiteID && existing.URL == page.URL {
			if existing.Title == "" && page.Title != "" {
				existing.Title = page.Title
				s.pages[id] = existing
			}
			return existing, false, nil
		}
	}
	return s.createPageLocked(page), true, nil
}

func (s *Store) createPageLocked(page capture.NewPage) capture.Page {
	record := capture.Page{
		ID:        s.nextPageID,
		WebsiteID: page.WebsiteID,
		URL:       page.URL,
		Title:     page.Title,
		CreatedAt: s.clock.Now(),
	}
	s.pages[record.ID] = record
	s.nextPageID++
	return record
}

// GetPage fetches a page by id.
func (s *Store) GetPage(_ context.Context, id int64) (capture.Page, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	p, ok := s.pages[id]
	if !ok {
		return capture.Page{}, fmt.Errorf("page %d: %w", id, capture.ErrNotFound)
	}
	return p, nil
}

// GetPageDetails joins the page with its tags and screenshots.
func (s *Store) GetPageDetails(_ context.Context, id int64) (capture.PageDetails, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	p, ok := s.pages[id]
	if !ok {
		return capture.PageDetails{}, fmt.Errorf("page %d: %w", id, capture.ErrNotFound)
	}
	details := capture.PageDetails{
		Page:        p,
		Tags:        s.pageTagsLocked(id),
		Screenshots: make([]capture.Screenshot, 0),
	}
	for _, shot := range s.screenshots {
		if shot.PageID == id {
			details.Screenshots = append(details.Screenshots, cloneScreenshot(shot))
		}
	}
	sort.Slice(details.Screenshots, func(i, j int) bool {
		return details.Screenshots[i].ID < details.Screenshots[j].ID
	})
	return details, nil
}

// ListPagesByWebsite returns the website's pages ordered by id.
func (s *Store) ListPagesByWebsite(_ context.Context, websiteID int64) ([]capture.Page, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]capture.Page, 0)
	for _, p := range s.pages {
		if p.WebsiteID == websiteID {
			out = append(out, p)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

// SetPageTitle fills the title only when it is still unset.
func (s *Store) SetPageTitle(_ context.Context, id int64, title string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	p, ok := s.pages[id]
	if !ok {
		return fmt.Errorf("page %d: %w", id, capture.ErrNotFound)
	}
	if p.Title != "" || title == "" {
		return nil
	}
	p.Title = title
	s.pages[id] = p
	return nil
}

// AddTagToPage inserts a join row after verifying both sides exist.
func (s *Store) AddTagToPage(_ context.Context, pageID, tagID int64) (capture.PageTag, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.pages[pageID]; !ok {
		return capture.PageTag{}, fmt.Errorf("page %d: %w", pageID, capture.ErrNotFound)
	}
	if _, ok := s.tags[tagID]; !ok {
		return capture.PageTag{}, fmt.Errorf("tag %d: %w", tagID, capture.ErrNotFound)
	}
	for _, pt := range s.pageTags {
		if pt.PageID == pageID && pt.TagID == tagID {
			return pt, nil
		}
	}
	record := capture.PageTag{ID: s.nextPageTagID, PageID: pageID, TagID: tagID}
	s.pageTags[record.ID] = record
	s.nextPageTagID++
	return record, nil
}

// GetPageTags joins the tag rows for a page.
func (s *Store) GetPageTags(_ context.Context, pageID int64) ([]capture.Tag, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.pageTagsLocked(pageID), nil
}

func (s *Store) pageTagsLocked(pageID int64) []capture.Tag {
	tags := make([]capture.Tag, 0)
	for _, pt := range s.pageTags {
		if pt.PageID != pageID {
			continue
		}
		if tag, ok := s.tags[pt.TagID]; ok {
			tags = append(tags, tag)
		}
	}
	sort.Slice(tags, func(i, j int) bool { return tags[i].ID < tags[j].ID })
	return tags
}

// CreateScreenshot stores a screenshot record. The version is assigned under
// the store lock as one more than the count of existing screenshots for the
// same (page, device) pair, so re-captures version monotonically.
func (s *Store) CreateScreenshot(_ context.Context, shot capture.NewScreenshot) (capture.Screenshot, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	page, ok := s.pages[shot.PageID]
	if !ok {
		return capture.Screenshot{}, fmt.Errorf("page %d: %w", shot.PageID, capture.ErrNotFound)
	}
	c, ok := s.captures[shot.CaptureID]
	if !ok {
		return capture.Screenshot{}, fmt.Errorf("capture %d: %w", shot.CaptureID, capture.ErrNotFound)
	}
	if page.WebsiteID != c.WebsiteID {
		return capture.Screenshot{}, fmt.Errorf(
			"page %d belongs to website %d, capture %d to website %d",
			page.ID, page.WebsiteID, c.ID, c.WebsiteID,
		)
	}
	version := 1
	for _, existing := range s.screenshots {
		if existing.PageID == shot.PageID && existing.DeviceType == shot.DeviceType {
			version++
		}
	}
	record := capture.Screenshot{
		ID:            s.nextScreenshotID,
		PageID:        shot.PageID,
		CaptureID:     shot.CaptureID,
		DeviceType:    shot.DeviceType,
		Path:          shot.Path,
		ThumbnailPath: shot.ThumbnailPath,
		Width:         shot.Width,
		Height:        shot.Height,
		Version:       version,
		Metadata:      cloneMetadata(shot.Metadata),
		CreatedAt:     s.clock.Now(),
	}
	s.screenshots[record.ID] = record
	s.nextScreenshotID++
	return cloneScreenshot(record), nil
}

// GetScreenshot fetches a screenshot by id.
func (s *Store) GetScreenshot(_ context.Context, id int64) (capture.Screenshot, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	shot, ok := s.screenshots[id]
	if !ok {
		return capture.Screenshot{}, fmt.Errorf("screenshot %d: %w", id, capture.ErrNotFound)
	}
	return cloneScreenshot(shot), nil
}

// ListScreenshotsByPage returns every screenshot for a page ordered by id.
func (s *Store) ListScreenshotsByPage(_ context.Context, pageID int64) ([]capture.Screenshot, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]capture.Screenshot, 0)
	for _, shot := range s.screenshots {
		if shot.PageID == pageID {
			out = append(out, cloneScreenshot(shot))
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

// ListScreenshotsByDevice returns a page's screenshots for one device,
// newest version first.
func (s *Store) ListScreenshotsByDevice(_ context.Context, pageID int64, deviceType string) ([]capture.Screenshot, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]capture.Screenshot, 0)
	for _, shot := range s.screenshots {
		if shot.PageID == pageID && shot.DeviceType == deviceType {
			out = append(out, cloneScreenshot(shot))
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Version > out[j].Version })
	return out, nil
}

// GetLatestScreenshot returns the highest-version screenshot for the pair.
func (s *Store) GetLatestScreenshot(ctx context.Context, pageID int64, deviceType string) (capture.Screenshot, error) {
	shots, err := s.ListScreenshotsByDevice(ctx, pageID, deviceType)
	if err != nil {
		return capture.Screenshot{}, err
	}
	if len(shots) == 0 {
		return capture.Screenshot{}, fmt.Errorf(
			"screenshot for page %d device %q: %w", pageID, deviceType, capture.ErrNotFound,
		)
	}
	return shots[0], nil
}

// CreateDeviceProfile stores a named viewport.
func (s *Store) CreateDeviceProfile(_ context.Context, profile capture.NewDeviceProfile) (capture.DeviceProfile, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	record := capture.DeviceProfile{
		ID:        s.nextDeviceProfileID,
		Name:      profile.Name,
		Width:     profile.Width,
		Height:    profile.Height,
		IsDefault: profile.IsDefault,
		UserID:    profile.UserID,
	}
	s.deviceProfiles[record.ID] = record
	s.nextDeviceProfileID++
	return record, nil
}

// ListDeviceProfiles returns all profiles ordered by id.
func (s *Store) ListDeviceProfiles(_ context.Context) ([]capture.DeviceProfile, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]capture.DeviceProfile, 0, len(s.deviceProfiles))
	for _, profile := range s.deviceProfiles {
		out = append(out, profile)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

// ListDefaultDeviceProfiles returns the seeded defaults.
func (s *Store) ListDefaultDeviceProfiles(ctx context.Context) ([]capture.DeviceProfile, error) {
	all, err := s.ListDeviceProfiles(ctx)
	if err != nil {
		return nil, err
	}
	out := make([]capture.DeviceProfile, 0, len(all))
	for _, profile := range all {
		if profile.IsDefault {
			out = append(out, profile)
		}
	}
	return out, nil
}

func cloneCapture(c capture.Capture) capture.Capture {
	out := c
	out.DeviceTypes = append([]string(nil), c.DeviceTypes...)
	if c.CompletedAt != nil {
		ts := *c.CompletedAt
		out.CompletedAt = &ts
	}
	return out
}

func cloneScreenshot(shot capture.Screenshot) capture.Screenshot {
	out := shot
	out.Metadata = cloneMetadata(shot.Metadata)
	return out
}

func cloneMetadata(meta map[string]any) map[string]any {
	if meta == nil {
		return nil
	}
	out := make(map[string]any, len(meta))
	for k, v := range meta {
		out[k] = v
	}
	return out
}
