package sinks

import (
	"context"
	"fmt"
	"sync"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/sitelens/sitelens/internal/progress"
)

// PrometheusSink exports capture progress metrics via Prometheus. It owns all
// collectors for captures started/completed/running and per-site task
// counters.
type PrometheusSink struct {
	capturesStarted   prometheus.Counter
	capturesCompleted *prometheus.CounterVec
	capturesRunning   prometheus.Gauge
	captureRuntime    *prometheus.HistogramVec

	tasks        *prometheus.CounterVec
	taskDuration *prometheus.HistogramVec

	tracker *captureTracker
}

// NewPrometheusSink registers the collectors against the provided registry.
func NewPrometheusSink(reg prometheus.Registerer) (*PrometheusSink, error) {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	s := &PrometheusSink{
		capturesStarted: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "sitelens_captures_started_total",
			Help: "Total capture jobs that have started.",
		}),
		capturesCompleted: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "sitelens_captures_completed_total",
			Help: "Total capture jobs completed partitioned by result.",
		}, []string{"result"}),
		capturesRunning: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "sitelens_captures_running",
			Help: "Current number of running capture jobs.",
		}),
		captureRuntime: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "sitelens_capture_runtime_seconds",
			Help:    "Wall time per completed capture job.",
			Buckets: []float64{1, 5, 15, 30, 60, 120, 300, 600},
		}, []string{"result"}),
		tasks: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "sitelens_capture_tasks_total",
			Help: "Screenshot tasks partitioned by site, device, and result.",
		}, []string{"site", "device_type", "result"}),
		taskDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "sitelens_capture_task_duration_seconds",
			Help:    "Screenshot task duration partitioned by device.",
			Buckets: []float64{0.1, 0.5, 1, 2, 5, 10, 30, 60},
		}, []string{"device_type"}),
		tracker: newCaptureTracker(),
	}
	for _, collector := range []prometheus.Collector{
		s.capturesStarted,
		s.capturesCompleted,
		s.capturesRunning,
		s.captureRuntime,
		s.tasks,
		s.taskDuration,
	} {
		if err := reg.Register(collector); err != nil {
			return nil, fmt.Errorf("register progress collector: %w", err)
		}
	}
	return s, nil
}

// Consume updates the Prometheus collectors using the provided batch. It is
// safe for concurrent use by multiple goroutines.
func (s *PrometheusSink) Consume(_ context.Context, batch []progress.Event) error {
	for _, evt := range batch {
		s.consumeEvent(evt)
	}
	return nil
}

func (s *PrometheusSink) consumeEvent(evt progress.Event) {
	switch evt.Stage {
	case progress.StageCaptureStart:
		s.capturesStarted.Inc()
		if s.tracker.start(evt.CaptureID) {
			s.capturesRunning.Inc()
		}
	case progress.StageCaptureDone:
		s.completeCapture(evt, "success")
	case progress.StageCaptureError:
		s.completeCapture(evt, "error")
	case progress.StageTaskDone:
		s.observeTask(evt, "success")
	case progress.StageTaskError:
		s.observeTask(evt, "error")
	}
}

func (s *PrometheusSink) completeCapture(evt progress.Event, result string) {
	s.capturesCompleted.WithLabelValues(result).Inc()
	if evt.Dur > 0 {
		s.captureRuntime.WithLabelValues(result).Observe(evt.Dur.Seconds())
	}
	if s.tracker.complete(evt.CaptureID) {
		s.capturesRunning.Dec()
	}
}

func (s *PrometheusSink) observeTask(evt progress.Event, result string) {
	site := evt.Site
	if site == "" {
		site = "unknown"
	}
	device := evt.DeviceType
	if device == "" {
		device = "unknown"
	}
	s.tasks.WithLabelValues(site, device, result).Inc()
	if evt.Dur > 0 {
		s.taskDuration.WithLabelValues(device).Observe(evt.Dur.Seconds())
	}
}

// Close implements the Sink interface; it performs no action.
func (s *PrometheusSink) Close(context.Context) error {
	return nil
}

type captureTracker struct {
	mu      sync.Mutex
	running map[int64]struct{}
}

func newCaptureTracker() *captureTracker {
	return &captureTracker{running: make(map[int64]struct{})}
}

func (t *captureTracker) start(id int64) bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	if _, ok := t.running[id]; ok {
		return false
	}
	t.running[id] = struct{}{}
	return true
}

func (t *captureTracker) complete(id int64) bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	if _, ok := t.running[id]; !ok {
		return false
	}
	delete(t.running, id)
	return true
}
