package discovery

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"
)

func newHybridFixture(t *testing.T, handler http.Handler, rendererLinks []string) (*HybridDiscoverer, *httptest.Server) {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)

	static := NewCollyDiscoverer(CollyConfig{PageLimit: DefaultPageLimit})
	rendered := NewRenderDiscoverer(&stubRenderer{links: rendererLinks}, DefaultPageLimit)
	return NewHybridDiscoverer(static, rendered, nil), srv
}

func TestHybridDiscovererStaysStaticForPlainHTML(t *testing.T) {
	t.Parallel()

	var handler http.HandlerFunc = func(w http.ResponseWriter, _ *http.Request) {
		// Padding keeps the document above the thin-body threshold.
		w.Write([]byte(`<html><body>` +
			`<a href="/about">about</a><a href="/pricing">pricing</a>` +
			strings.Repeat("<p>content</p>", 200) +
			`</body></html>`))
	}
	d, srv := newHybridFixture(t, handler, nil)

	pages, err := d.Discover(context.Background(), srv.URL)
	require.NoError(t, err)
	require.Equal(t, []string{srv.URL, srv.URL + "/about", srv.URL + "/pricing"}, pages)
}

func TestHybridDiscovererPromotesClientRenderedShell(t *testing.T) {
	t.Parallel()

	var handler http.HandlerFunc = func(w http.ResponseWriter, _ *http.Request) {
		w.Write([]byte(`<html><body><div id="root"></div><script src="/app.js"></script></body></html>`))
	}
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)

	static := NewCollyDiscoverer(CollyConfig{PageLimit: DefaultPageLimit})
	rendered := NewRenderDiscoverer(&stubRenderer{links: []string{srv.URL + "/spa-route"}}, DefaultPageLimit)
	d := NewHybridDiscoverer(static, rendered, nil)

	pages, err := d.Discover(context.Background(), srv.URL)
	require.NoError(t, err)
	require.Equal(t, []string{srv.URL, srv.URL + "/spa-route"}, pages)
}

func TestHybridDiscovererPromotesOnFetchFailure(t *testing.T) {
	t.Parallel()

	var handler http.HandlerFunc = func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusServiceUnavailable)
	}
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)

	static := NewCollyDiscoverer(CollyConfig{PageLimit: DefaultPageLimit})
	rendered := NewRenderDiscoverer(&stubRenderer{links: []string{srv.URL + "/fallback"}}, DefaultPageLimit)
	d := NewHybridDiscoverer(static, rendered, nil)

	pages, err := d.Discover(context.Background(), srv.URL)
	require.NoError(t, err)
	require.Equal(t, []string{srv.URL, srv.URL + "/fallback"}, pages)
}
