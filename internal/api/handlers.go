package api

import (
	"encoding/json"
	"net/http"

	"github.com/sitelens/sitelens/internal/capture"
	"github.com/sitelens/sitelens/internal/runner"
)

func (s *Server) submitCapture(w http.ResponseWriter, r *http.Request) {
	var cfg capture.Config
	if err := json.NewDecoder(r.Body).Decode(&cfg); err != nil {
		s.writeError(w, http.StatusBadRequest, "invalid JSON")
		return
	}
	sub, err := s.service.Submit(r.Context(), cfg)
	if err != nil {
		if capture.IsValidation(err) {
			s.writeError(w, http.StatusBadRequest, err.Error())
			return
		}
		s.writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	s.writeJSON(w, http.StatusCreated, sub)
}

func (s *Server) listCaptures(w http.ResponseWriter, r *http.Request) {
	captures, err := s.store.ListCaptures(r.Context())
	if err != nil {
		s.writeStoreError(w, err)
		return
	}
	s.writeJSON(w, http.StatusOK, map[string]any{"captures": captures})
}

func (s *Server) getCapture(w http.ResponseWriter, r *http.Request) {
	id, err := parseID(r, "capture_id")
	if err != nil {
		s.writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	details, err := s.store.GetCaptureDetails(r.Context(), id)
	if err != nil {
		s.writeStoreError(w, err)
		return
	}
	s.writeJSON(w, http.StatusOK, details)
}

// captureStatus is the lightweight poll shape for in-flight jobs.
type captureStatus struct {
	ID       int64          `json:"id"`
	Status   capture.Status `json:"status"`
	Progress int            `json:"progress"`
	Error    string         `json:"error,omitempty"`
}

func (s *Server) getCaptureStatus(w http.ResponseWriter, r *http.Request) {
	id, err := parseID(r, "capture_id")
	if err != nil {
		s.writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	c, err := s.store.GetCapture(r.Context(), id)
	if err != nil {
		s.writeStoreError(w, err)
		return
	}
	s.writeJSON(w, http.StatusOK, captureStatus{
		ID:       c.ID,
		Status:   c.Status,
		Progress: c.Progress,
		Error:    c.Error,
	})
}

func (s *Server) cancelCapture(w http.ResponseWriter, r *http.Request) {
	id, err := parseID(r, "capture_id")
	if err != nil {
		s.writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	c, err := s.store.GetCapture(r.Context(), id)
	if err != nil {
		s.writeStoreError(w, err)
		return
	}
	if c.Status.Terminal() {
		s.writeError(w, http.StatusConflict, "capture already finished")
		return
	}
	if !s.service.Cancel(id) {
		s.writeError(w, http.StatusConflict, "capture is not running")
		return
	}
	s.writeJSON(w, http.StatusAccepted, map[string]any{"id": id, "status": "canceling"})
}

type createTagRequest struct {
	Name        string `json:"name"`
	Color       string `json:"color"`
	Description string `json:"description"`
}

func (s *Server) createTag(w http.ResponseWriter, r *http.Request) {
	var req createTagRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.Name == "" {
		s.writeError(w, http.StatusBadRequest, "tag name is required")
		return
	}
	if req.Color == "" {
		req.Color = runner.RandomTagColor()
	}
	tag, err := s.store.CreateTag(r.Context(), capture.NewTag{
		Name:        req.Name,
		Color:       req.Color,
		Description: req.Description,
	})
	if err != nil {
		s.writeStoreError(w, err)
		return
	}
	s.writeJSON(w, http.StatusCreated, tag)
}

func (s *Server) listTags(w http.ResponseWriter, r *http.Request) {
	tags, err := s.store.ListTags(r.Context())
	if err != nil {
		s.writeStoreError(w, err)
		return
	}
	s.writeJSON(w, http.StatusOK, map[string]any{"tags": tags})
}

func (s *Server) getTag(w http.ResponseWriter, r *http.Request) {
	id, err := parseID(r, "tag_id")
	if err != nil {
		s.writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	tag, err := s.store.GetTag(r.Context(), id)
	if err != nil {
		s.writeStoreError(w, err)
		return
	}
	s.writeJSON(w, http.StatusOK, tag)
}

func (s *Server) deleteTag(w http.ResponseWriter, r *http.Request) {
	id, err := parseID(r, "tag_id")
	if err != nil {
		s.writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	if err := s.store.DeleteTag(r.Context(), id); err != nil {
		s.writeStoreError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) listWebsites(w http.ResponseWriter, r *http.Request) {
	sites, err := s.store.ListWebsites(r.Context())
	if err != nil {
		s.writeStoreError(w, err)
		return
	}
	s.writeJSON(w, http.StatusOK, map[string]any{"websites": sites})
}

func (s *Server) getWebsite(w http.ResponseWriter, r *http.Request) {
	id, err := parseID(r, "website_id")
	if err != nil {
		s.writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	site, err := s.store.GetWebsite(r.Context(), id)
	if err != nil {
		s.writeStoreError(w, err)
		return
	}
	tags, err := s.store.GetWebsiteTags(r.Context(), id)
	if err != nil {
		s.writeStoreError(w, err)
		return
	}
	s.writeJSON(w, http.StatusOK, map[string]any{"website": site, "tags": tags})
}

func (s *Server) listWebsitePages(w http.ResponseWriter, r *http.Request) {
	id, err := parseID(r, "website_id")
	if err != nil {
		s.writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	if _, err := s.store.GetWebsite(r.Context(), id); err != nil {
		s.writeStoreError(w, err)
		return
	}
	pages, err := s.store.ListPagesByWebsite(r.Context(), id)
	if err != nil {
		s.writeStoreError(w, err)
		return
	}
	s.writeJSON(w, http.StatusOK, map[string]any{"pages": pages})
}

type attachTagRequest struct {
	TagID int64 `json:"tag_id"`
}

func (s *Server) addWebsiteTag(w http.ResponseWriter, r *http.Request) {
	id, err := parseID(r, "website_id")
	if err != nil {
		s.writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	var req attachTagRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.TagID <= 0 {
		s.writeError(w, http.StatusBadRequest, "tag_id is required")
		return
	}
	wt, err := s.store.AddTagToWebsite(r.Context(), id, req.TagID)
	if err != nil {
		s.writeStoreError(w, err)
		return
	}
	s.writeJSON(w, http.StatusCreated, wt)
}

func (s *Server) getPage(w http.ResponseWriter, r *http.Request) {
	id, err := parseID(r, "page_id")
	if err != nil {
		s.writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	details, err := s.store.GetPageDetails(r.Context(), id)
	if err != nil {
		s.writeStoreError(w, err)
		return
	}
	s.writeJSON(w, http.StatusOK, details)
}

func (s *Server) listPageScreenshots(w http.ResponseWriter, r *http.Request) {
	id, err := parseID(r, "page_id")
	if err != nil {
		s.writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	if _, err := s.store.GetPage(r.Context(), id); err != nil {
		s.writeStoreError(w, err)
		return
	}
	var shots []capture.Screenshot
	if deviceType := r.URL.Query().Get("device_type"); deviceType != "" {
		shots, err = s.store.ListScreenshotsByDevice(r.Context(), id, deviceType)
	} else {
		shots, err = s.store.ListScreenshotsByPage(r.Context(), id)
	}
	if err != nil {
		s.writeStoreError(w, err)
		return
	}
	s.writeJSON(w, http.StatusOK, map[string]any{"screenshots": shots})
}

func (s *Server) addPageTag(w http.ResponseWriter, r *http.Request) {
	id, err := parseID(r, "page_id")
	if err != nil {
		s.writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	var req attachTagRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.TagID <= 0 {
		s.writeError(w, http.StatusBadRequest, "tag_id is required")
		return
	}
	pt, err := s.store.AddTagToPage(r.Context(), id, req.TagID)
	if err != nil {
		s.writeStoreError(w, err)
		return
	}
	s.writeJSON(w, http.StatusCreated, pt)
}

func (s *Server) getScreenshot(w http.ResponseWriter, r *http.Request) {
	id, err := parseID(r, "screenshot_id")
	if err != nil {
		s.writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	shot, err := s.store.GetScreenshot(r.Context(), id)
	if err != nil {
		s.writeStoreError(w, err)
		return
	}
	s.writeJSON(w, http.StatusOK, shot)
}

type createDeviceProfileRequest struct {
	Name   string `json:"name"`
	Width  int    `json:"width"`
	Height int    `json:"height"`
	UserID *int64 `json:"user_id"`
}

func (s *Server) createDeviceProfile(w http.ResponseWriter, r *http.Request) {
	var req createDeviceProfileRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.Name == "" {
		s.writeError(w, http.StatusBadRequest, "profile name is required")
		return
	}
	if req.Width <= 0 || req.Height <= 0 {
		s.writeError(w, http.StatusBadRequest, "profile dimensions must be positive")
		return
	}
	profile, err := s.store.CreateDeviceProfile(r.Context(), capture.NewDeviceProfile{
		Name:   req.Name,
		Width:  req.Width,
		Height: req.Height,
		UserID: req.UserID,
	})
	if err != nil {
		s.writeStoreError(w, err)
		return
	}
	s.writeJSON(w, http.StatusCreated, profile)
}

func (s *Server) listDeviceProfiles(w http.ResponseWriter, r *http.Request) {
	profiles, err := s.store.ListDeviceProfiles(r.Context())
	if err != nil {
		s.writeStoreError(w, err)
		return
	}
	s.writeJSON(w, http.StatusOK, map[string]any{"device_profiles": profiles})
}

func (s *Server) listDefaultDeviceProfiles(w http.ResponseWriter, r *http.Request) {
	profiles, err := s.store.ListDefaultDeviceProfiles(r.Context())
	if err != nil {
		s.writeStoreError(w, err)
		return
	}
	s.writeJSON(w, http.StatusOK, map[string]any{"device_profiles": profiles})
}
