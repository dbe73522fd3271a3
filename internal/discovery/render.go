package discovery

import (
	"context"
	"fmt"

	"github.com/sitelens/sitelens/internal/capture"
)

// RenderDiscoverer extracts links by rendering the seed page once in the
// headless browser at a desktop viewport. Link-heavy single-page apps need
// this mode; plain sites can use the cheaper HTTP discoverer.
type RenderDiscoverer struct {
	renderer capture.Renderer
	limit    int
}

// NewRenderDiscoverer builds a discoverer on top of a renderer.
func NewRenderDiscoverer(renderer capture.Renderer, limit int) *RenderDiscoverer {
	if limit <= 0 {
		limit = DefaultPageLimit
	}
	return &RenderDiscoverer{renderer: renderer, limit: limit}
}

// Discover renders the seed once and filters its outbound links.
func (d *RenderDiscoverer) Discover(ctx context.Context, seedURL string) ([]string, error) {
	viewport := capture.DesktopViewport()
	result, err := d.renderer.Render(ctx, capture.RenderRequest{
		URL:        seedURL,
		DeviceType: capture.DeviceDesktop,
		Width:      viewport.Width,
		Height:     viewport.Height,
	})
	if err != nil {
		return nil, fmt.Errorf("render seed %s: %w", seedURL, err)
	}
	return CollectPages(seedURL, result.OutboundLinks, d.limit), nil
}
