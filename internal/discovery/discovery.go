// Package discovery finds the set of pages to capture for a submitted site.
// A discoverer looks at the seed page only; the result is seed-first,
// same-host, deduplicated, and capped.
package discovery

import (
	"context"
	"net/url"

	"github.com/sitelens/sitelens/internal/capture"
)

// DefaultPageLimit caps discovered pages per capture, seed included.
const DefaultPageLimit = 10

// Discoverer resolves a seed url into the ordered list of page urls to
// capture. The seed is always first. Implementations return an error only
// when the seed itself cannot be fetched; callers degrade to capturing the
// seed alone.
type Discoverer interface {
	Discover(ctx context.Context, seedURL string) ([]string, error)
}

// CollectPages applies the shared discovery policy to raw candidate links:
// normalize, keep same-host only, drop duplicates and the seed itself, and
// cap the result at limit entries including the seed. Malformed candidates
// are discarded silently.
func CollectPages(seedURL string, candidates []string, limit int) []string {
	if limit <= 0 {
		limit = DefaultPageLimit
	}
	seed, err := capture.ParseSubmissionURL(seedURL)
	if err != nil {
		return []string{seedURL}
	}
	normalizedSeed := capture.NormalizeURL(seed)

	pages := []string{normalizedSeed}
	seen := map[string]struct{}{normalizedSeed: {}}
	for _, raw := range candidates {
		if len(pages) >= limit {
			break
		}
		if !capture.SameHost(seed, raw) {
			continue
		}
		parsed, err := url.Parse(raw)
		if err != nil {
			continue
		}
		normalized := capture.NormalizeURL(parsed)
		if _, dup := seen[normalized]; dup {
			continue
		}
		seen[normalized] = struct{}{}
		pages = append(pages, normalized)
	}
	return pages
}
