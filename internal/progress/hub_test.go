package progress

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

type countingSink struct {
	mu      sync.Mutex
	batches [][]Event
	closed  bool
}

func (s *countingSink) Consume(_ context.Context, batch []Event) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.batches = append(s.batches, append([]Event(nil), batch...))
	return nil
}

func (s *countingSink) Close(context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.closed = true
	return nil
}

func (s *countingSink) total() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	n := 0
	for _, b := range s.batches {
		n += len(b)
	}
	return n
}

func validEvent(captureID int64, stage Stage) Event {
	evt := Event{
		CaptureID: captureID,
		TS:        time.Now().UTC(),
		Stage:     stage,
		Site:      "example.com",
	}
	if stage == StageTaskDone || stage == StageTaskError {
		evt.URL = "https://example.com"
		evt.DeviceType = "desktop"
	}
	return evt
}

func TestHubFlushesOnClose(t *testing.T) {
	t.Parallel()

	sink := &countingSink{}
	hub := NewHub(Config{MaxBatchWait: time.Hour}, sink)

	hub.Emit(validEvent(1, StageCaptureStart))
	hub.Emit(validEvent(1, StageTaskDone))
	hub.Emit(validEvent(1, StageCaptureDone))

	require.NoError(t, hub.Close(context.Background()))
	require.Equal(t, 3, sink.total())
	require.True(t, sink.closed)
}

func TestHubFlushesOnBatchSize(t *testing.T) {
	t.Parallel()

	sink := &countingSink{}
	hub := NewHub(Config{MaxBatchEvents: 2, MaxBatchWait: time.Hour}, sink)
	defer func() { _ = hub.Close(context.Background()) }()

	hub.Emit(validEvent(1, StageTaskDone))
	hub.Emit(validEvent(1, StageTaskDone))

	require.Eventually(t, func() bool { return sink.total() == 2 }, time.Second, 10*time.Millisecond)
}

func TestHubFlushesOnTimer(t *testing.T) {
	t.Parallel()

	sink := &countingSink{}
	hub := NewHub(Config{MaxBatchWait: 20 * time.Millisecond}, sink)
	defer func() { _ = hub.Close(context.Background()) }()

	hub.Emit(validEvent(2, StageCaptureStart))

	require.Eventually(t, func() bool { return sink.total() == 1 }, time.Second, 10*time.Millisecond)
}

func TestHubDiscardsInvalidEvents(t *testing.T) {
	t.Parallel()

	sink := &countingSink{}
	hub := NewHub(Config{}, sink)

	hub.Emit(Event{})                          // missing everything
	hub.Emit(validEvent(0, StageCaptureStart)) // missing capture id
	hub.Emit(Event{CaptureID: 1, TS: time.Now(), Stage: "BOGUS"})

	require.NoError(t, hub.Close(context.Background()))
	require.Zero(t, sink.total())
}

func TestHubEmitAfterCloseIsNoop(t *testing.T) {
	t.Parallel()

	sink := &countingSink{}
	hub := NewHub(Config{}, sink)
	require.NoError(t, hub.Close(context.Background()))

	hub.Emit(validEvent(1, StageCaptureStart))
	require.Zero(t, sink.total())
	require.NoError(t, hub.Close(context.Background()))
}

func TestEventValidate(t *testing.T) {
	t.Parallel()

	require.NoError(t, validEvent(1, StageCaptureStart).Validate())
	require.NoError(t, validEvent(1, StageTaskError).Validate())

	evt := validEvent(1, StageTaskDone)
	evt.URL = ""
	require.Error(t, evt.Validate())

	evt = validEvent(1, StageTaskDone)
	evt.DeviceType = ""
	require.Error(t, evt.Validate())

	evt = validEvent(1, StageCaptureDone)
	evt.Progress = 101
	require.Error(t, evt.Validate())

	evt = validEvent(1, StageCaptureDone)
	evt.Dur = -time.Second
	require.Error(t, evt.Validate())
}
