package sinks

import (
	"context"
	"testing"
	"time"

	"github.com/pashagolub/pgxmock/v4"
	"github.com/stretchr/testify/require"

	"github.com/sitelens/sitelens/internal/progress"
)

func TestPostgresSinkInsertsEvents(t *testing.T) {
	t.Parallel()

	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	sink, err := NewPostgresSinkWithPool(mock)
	require.NoError(t, err)

	now := time.Unix(1700000000, 0).UTC()
	evt := progress.Event{
		CaptureID:  7,
		TS:         now,
		Stage:      progress.StageTaskDone,
		Site:       "example.com",
		URL:        "https://example.com/about",
		DeviceType: "mobile",
		Progress:   50,
		Dur:        1500 * time.Millisecond,
	}

	mock.ExpectExec("INSERT INTO capture_events").
		WithArgs(
			evt.CaptureID,
			evt.TS,
			string(evt.Stage),
			evt.Site,
			evt.URL,
			evt.DeviceType,
			evt.Progress,
			int64(1500),
			"",
		).
		WillReturnResult(pgxmock.NewResult("INSERT", 1))

	require.NoError(t, sink.Consume(context.Background(), []progress.Event{evt}))
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresSinkPropagatesExecError(t *testing.T) {
	t.Parallel()

	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	sink, err := NewPostgresSinkWithPool(mock)
	require.NoError(t, err)

	mock.ExpectExec("INSERT INTO capture_events").
		WillReturnError(context.DeadlineExceeded)

	err = sink.Consume(context.Background(), []progress.Event{{
		CaptureID: 1,
		TS:        time.Now(),
		Stage:     progress.StageCaptureStart,
	}})
	require.Error(t, err)
}

func TestNewPostgresSinkRequiresDSN(t *testing.T) {
	t.Parallel()

	_, err := NewPostgresSink(context.Background(), PostgresConfig{})
	require.Error(t, err)
}
