// Package metrics exposes Prometheus collectors for the capture service.
package metrics

import (
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	httpRequestsTotal          *prometheus.CounterVec
	httpRequestDurationSeconds *prometheus.HistogramVec

	rendersTotal          *prometheus.CounterVec
	renderDurationSeconds *prometheus.HistogramVec
	activeRenders         prometheus.Gauge

	archiveWritesTotal *prometheus.CounterVec
	archiveBytesTotal  *prometheus.CounterVec

	once sync.Once
)

// Init initializes the Prometheus metrics collectors.
// It is safe to call this function multiple times.
func Init() {
	once.Do(func() {
		httpRequestsTotal = promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "sitelens_http_requests_total",
				Help: "Total number of HTTP requests, labeled by method and code.",
			},
			[]string{"method", "code"},
		)

		httpRequestDurationSeconds = promauto.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "sitelens_http_request_duration_seconds",
				Help:    "Histogram of HTTP request latencies, labeled by method and route.",
				Buckets: []float64{0.05, 0.1, 0.25, 0.5, 1, 2, 5},
			},
			[]string{"method", "route"},
		)

		rendersTotal = promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "sitelens_renders_total",
				Help: "Total page renders, labeled by site, device, and status.",
			},
			[]string{"site", "device_type", "status"},
		)

		renderDurationSeconds = promauto.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "sitelens_render_duration_seconds",
				Help:    "Histogram of headless render latencies, labeled by device.",
				Buckets: []float64{0.5, 1, 2, 5, 10, 30, 60},
			},
			[]string{"device_type"},
		)

		activeRenders = promauto.NewGauge(
			prometheus.GaugeOpts{
				Name: "sitelens_active_renders",
				Help: "Number of renders currently executing in the browser.",
			},
		)

		archiveWritesTotal = promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "sitelens_archive_writes_total",
				Help: "Total archive object writes, labeled by backend.",
			},
			[]string{"backend"},
		)

		archiveBytesTotal = promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "sitelens_archive_bytes_total",
				Help: "Total bytes written to the archive, labeled by backend.",
			},
			[]string{"backend"},
		)
	})
}

// SanitizeSite sanitizes a URL to extract a lowercase hostname.
// It returns "unknown" if the URL is invalid.
func SanitizeSite(rawURL string) string {
	if !strings.HasPrefix(rawURL, "http") {
		rawURL = "http://" + rawURL
	}
	u, err := url.Parse(rawURL)
	if err != nil || u.Hostname() == "" {
		return "unknown"
	}
	return strings.ToLower(u.Hostname())
}

// Handler returns an http.Handler for exposing Prometheus metrics.
func Handler() http.Handler {
	return promhttp.Handler()
}

// ObserveHTTPRequest increments the HTTP request metrics.
func ObserveHTTPRequest(method, route string, code int, duration time.Duration) {
	httpRequestsTotal.WithLabelValues(method, strconv.Itoa(code)).Inc()
	httpRequestDurationSeconds.WithLabelValues(method, route).Observe(duration.Seconds())
}

// ObserveRender records a completed render attempt.
func ObserveRender(site, deviceType, status string, duration time.Duration) {
	rendersTotal.WithLabelValues(SanitizeSite(site), deviceType, status).Inc()
	if duration > 0 {
		renderDurationSeconds.WithLabelValues(deviceType).Observe(duration.Seconds())
	}
}

// IncActiveRenders increments the active renders gauge.
func IncActiveRenders() {
	activeRenders.Inc()
}

// DecActiveRenders decrements the active renders gauge.
func DecActiveRenders() {
	activeRenders.Dec()
}

// ObserveArchiveWrite records one object written to the archive.
func ObserveArchiveWrite(backend string, bytes int) {
	archiveWritesTotal.WithLabelValues(backend).Inc()
	if bytes > 0 {
		archiveBytesTotal.WithLabelValues(backend).Add(float64(bytes))
	}
}
