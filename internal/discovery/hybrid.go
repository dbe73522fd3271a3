package discovery

import (
	"context"

	"go.uber.org/zap"

	"github.com/sitelens/sitelens/internal/discovery/detector"
)

// HybridDiscoverer tries a cheap plain-HTTP fetch first and promotes to a
// browser render when the document looks like a client-rendered shell that
// hides its links from static parsing.
type HybridDiscoverer struct {
	static    *CollyDiscoverer
	rendered  *RenderDiscoverer
	heuristic *detector.Heuristic
	logger    *zap.Logger
}

// NewHybridDiscoverer combines a static and a rendered discoverer.
func NewHybridDiscoverer(static *CollyDiscoverer, rendered *RenderDiscoverer, logger *zap.Logger) *HybridDiscoverer {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &HybridDiscoverer{
		static:    static,
		rendered:  rendered,
		heuristic: detector.NewHeuristic(0),
		logger:    logger,
	}
}

// Discover fetches the seed over HTTP; when the fetch fails or the document
// needs script execution to expose its anchors, it renders the seed instead.
func (d *HybridDiscoverer) Discover(ctx context.Context, seedURL string) ([]string, error) {
	fetched, err := d.static.fetch(ctx, seedURL)
	if err != nil {
		d.logger.Debug("static discovery failed, promoting to render",
			zap.String("seed_url", seedURL), zap.Error(err))
		return d.rendered.Discover(ctx, seedURL)
	}
	if d.heuristic.NeedsRender(fetched.statusCode, fetched.body) {
		d.logger.Debug("client-rendered shell detected, promoting to render",
			zap.String("seed_url", seedURL))
		return d.rendered.Discover(ctx, seedURL)
	}
	return CollectPages(seedURL, fetched.candidates, d.static.cfg.PageLimit), nil
}
