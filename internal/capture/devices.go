package capture

import "strings"

// Built-in device identifiers.
const (
	DeviceDesktop = "desktop"
	DeviceTablet  = "tablet"
	DeviceMobile  = "mobile"
)

// Viewport is a render surface in CSS pixels.
type Viewport struct {
	Width  int
	Height int
}

var builtinViewports = map[string]Viewport{
	DeviceDesktop: {Width: 1920, Height: 1080},
	DeviceTablet:  {Width: 768, Height: 1024},
	DeviceMobile:  {Width: 375, Height: 667},
}

// DesktopViewport is the discovery viewport and the fallback for unknown
// device identifiers.
func DesktopViewport() Viewport {
	return builtinViewports[DeviceDesktop]
}

// ResolveViewport maps a device identifier to dimensions: built-in
// identifiers first, then a case-insensitive match against the job's custom
// sizes, then desktop dimensions as the deterministic fallback.
func ResolveViewport(deviceType string, customSizes []CustomSize) Viewport {
	if vp, ok := builtinViewports[strings.ToLower(deviceType)]; ok {
		return vp
	}
	for _, cs := range customSizes {
		if strings.EqualFold(cs.Name, deviceType) {
			return Viewport{Width: cs.Width, Height: cs.Height}
		}
	}
	return DesktopViewport()
}

// DefaultDeviceProfiles returns the three profiles seeded at store
// initialization.
func DefaultDeviceProfiles() []NewDeviceProfile {
	return []NewDeviceProfile{
		{Name: "Desktop", Width: 1920, Height: 1080, IsDefault: true},
		{Name: "Tablet", Width: 768, Height: 1024, IsDefault: true},
		{Name: "Mobile", Width: 375, Height: 667, IsDefault: true},
	}
}
