package detector

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestNeedsRenderEmptyBody(t *testing.T) {
	t.Parallel()

	h := NewHeuristic(100)
	require.True(t, h.NeedsRender(200, nil))
}

func TestNeedsRenderShellMarkers(t *testing.T) {
	t.Parallel()

	h := NewHeuristic(100)
	require.True(t, h.NeedsRender(200, []byte(`<div id="__next"></div>`)))
	require.True(t, h.NeedsRender(200, []byte(`<div id="root"></div>`)))
	require.True(t, h.NeedsRender(200, []byte(`<app-root ng-version="17.0.0"></app-root>`)))
}

func TestNeedsRenderScriptHeavyThinBody(t *testing.T) {
	t.Parallel()

	h := NewHeuristic(1000)
	require.True(t, h.NeedsRender(200, []byte(`<html><script>var a=1;</script><p>t</p></html>`)))
}

func TestNeedsRenderStaticDocument(t *testing.T) {
	t.Parallel()

	h := NewHeuristic(100)
	body := "<html><body>" + strings.Repeat(`<a href="/p">p</a>`, 50) + "</body></html>"
	require.False(t, h.NeedsRender(200, []byte(body)))
}

func TestNeedsRenderSkipsNon200(t *testing.T) {
	t.Parallel()

	h := NewHeuristic(100)
	require.False(t, h.NeedsRender(404, []byte("not found")))
	require.False(t, h.NeedsRender(500, nil))
}

func TestNeedsRenderMalformedScriptTag(t *testing.T) {
	t.Parallel()

	h := NewHeuristic(1000)
	require.True(t, h.NeedsRender(200, []byte(`<p>x</p><script src="app.js"`)))
}
