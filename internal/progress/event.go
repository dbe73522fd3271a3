// Package progress provides the event primitives, non-blocking hub, and
// emitter interfaces that capture jobs use to report their milestones. It
// batches events on a background goroutine and fans them out to pluggable
// sinks such as Prometheus metrics or persistent storage.
package progress

import (
	"errors"
	"fmt"
	"time"
)

// Stage denotes the type of milestone represented by an Event.
type Stage string

// Supported progress stages.
const (
	StageCaptureStart Stage = "CAPTURE_START"
	StageTaskDone     Stage = "TASK_DONE"
	StageTaskError    Stage = "TASK_ERROR"
	StageCaptureDone  Stage = "CAPTURE_DONE"
	StageCaptureError Stage = "CAPTURE_ERROR"
)

// Event captures a single milestone of a running capture job.
type Event struct {
	// CaptureID identifies the capture the event belongs to.
	CaptureID int64
	// TS is the UTC timestamp recorded by the emitter.
	TS time.Time
	// Stage denotes which lifecycle or task milestone occurred.
	Stage Stage
	// Site optionally scopes the event to the website's domain label.
	Site string
	// URL is the page url for task events; empty for lifecycle events.
	URL string
	// DeviceType labels task events with the rendered device.
	DeviceType string
	// Progress is the capture's percentage after this event (0-100).
	Progress int
	// Dur captures execution latency for tasks and whole captures.
	Dur time.Duration
	// Note lets emitters attach low-volume debug context (e.g. error text).
	Note string
}

// Validate performs coarse validation on Event payloads.
func (e Event) Validate() error {
	if e.CaptureID <= 0 {
		return errors.New("capture id is required")
	}
	if e.TS.IsZero() {
		return errors.New("timestamp is required")
	}
	switch e.Stage {
	case StageCaptureStart, StageCaptureDone, StageCaptureError:
	case StageTaskDone, StageTaskError:
		if e.URL == "" {
			return errors.New("task event requires url")
		}
		if e.DeviceType == "" {
			return errors.New("task event requires device type")
		}
	default:
		return fmt.Errorf("unknown stage %q", e.Stage)
	}
	if e.Progress < 0 || e.Progress > 100 {
		return fmt.Errorf("progress %d out of range", e.Progress)
	}
	if e.Dur < 0 {
		return errors.New("duration must be >= 0")
	}
	return nil
}
