// Package archive defines the object layout for stored screenshots and the
// backends that persist them.
package archive

import "fmt"

// Content types for stored screenshot objects.
const (
	ContentTypePNG = "image/png"
)

// ScreenshotPath returns the canonical object path for a full-size
// screenshot: websites/{websiteID}/{captureID}/pages/{pageID}/{device}/current.png.
// Re-captures overwrite the object at this path; history lives in the
// screenshot records, not the archive.
func ScreenshotPath(websiteID, captureID, pageID int64, deviceType string) string {
	return fmt.Sprintf("websites/%d/%d/pages/%d/%s/current.png", websiteID, captureID, pageID, deviceType)
}

// ThumbnailPath returns the object path for the thumbnail next to the
// full-size screenshot.
func ThumbnailPath(websiteID, captureID, pageID int64, deviceType string) string {
	return fmt.Sprintf("websites/%d/%d/pages/%d/%s/thumbnail.png", websiteID, captureID, pageID, deviceType)
}
