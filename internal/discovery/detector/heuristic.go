// Package detector decides when a plain HTTP fetch of a page is unlikely to
// expose its real link graph, so discovery should fall back to a browser
// render.
package detector

import (
	"bytes"
	"strings"
)

// Heuristic applies rule-based checks to a fetched HTML document.
type Heuristic struct {
	// ThinBodyBytes is the size below which a script-heavy document is
	// treated as a client-rendered shell.
	ThinBodyBytes int
}

// NewHeuristic creates a detector. A zero threshold selects the default.
func NewHeuristic(thinBodyBytes int) *Heuristic {
	if thinBodyBytes <= 0 {
		thinBodyBytes = 2048
	}
	return &Heuristic{ThinBodyBytes: thinBodyBytes}
}

// Mount-point markers left behind by the common client-side frameworks.
var shellMarkers = [][]byte{
	[]byte("__next"),
	[]byte(`id="root"`),
	[]byte(`id="app"`),
	[]byte("data-reactroot"),
	[]byte("ng-version"),
}

// NeedsRender reports whether the document looks like a client-rendered
// shell whose anchors only appear after script execution.
func (h *Heuristic) NeedsRender(statusCode int, body []byte) bool {
	if statusCode != 200 {
		return false
	}
	if len(body) == 0 {
		return true
	}
	if len(body) < h.ThinBodyBytes && scriptHeavy(body) {
		return true
	}
	for _, marker := range shellMarkers {
		if bytes.Contains(body, marker) {
			return true
		}
	}
	return false
}

// scriptHeavy reports whether script tags cover at least a quarter of the
// document.
func scriptHeavy(body []byte) bool {
	doc := strings.ToLower(string(body))
	total := len(doc)
	if total == 0 {
		return false
	}

	const (
		openTag  = "<script"
		closeTag = "</script>"
	)
	covered := 0
	pos := 0
	for {
		rel := strings.Index(doc[pos:], openTag)
		if rel == -1 {
			break
		}
		start := pos + rel

		tagEnd := strings.IndexByte(doc[start:], '>')
		if tagEnd == -1 {
			// Malformed open tag; count the remainder as script.
			covered += total - start
			break
		}
		contentStart := start + tagEnd + 1

		relEnd := strings.Index(doc[contentStart:], closeTag)
		var next int
		if relEnd == -1 {
			next = total
		} else {
			next = contentStart + relEnd + len(closeTag)
		}
		covered += next - start
		pos = next
	}

	if covered == 0 {
		return false
	}
	return covered*100/total >= 25
}
