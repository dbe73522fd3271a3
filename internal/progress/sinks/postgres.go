package sinks

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/sitelens/sitelens/internal/progress"
)

// PostgresConfig controls the connection pool used for the event log.
type PostgresConfig struct {
	DSN             string        `mapstructure:"dsn" yaml:"dsn"`
	MaxConns        int32         `mapstructure:"max_conns" yaml:"max_conns"`
	MinConns        int32         `mapstructure:"min_conns" yaml:"min_conns"`
	MaxConnLifetime time.Duration `mapstructure:"max_conn_lifetime" yaml:"max_conn_lifetime"`
}

type execCloser interface {
	Exec(context.Context, string, ...any) (pgconn.CommandTag, error)
	Close()
}

// PostgresSink appends progress events to a capture_events table so progress
// history survives process restarts.
type PostgresSink struct {
	pool execCloser
}

// NewPostgresSink connects a pool using the provided config.
func NewPostgresSink(ctx context.Context, cfg PostgresConfig) (*PostgresSink, error) {
	if cfg.DSN == "" {
		return nil, fmt.Errorf("progress postgres dsn is required")
	}
	poolCfg, err := pgxpool.ParseConfig(cfg.DSN)
	if err != nil {
		return nil, fmt.Errorf("parse postgres dsn: %w", err)
	}
	if cfg.MaxConns > 0 {
		poolCfg.MaxConns = cfg.MaxConns
	}
	if cfg.MinConns > 0 {
		poolCfg.MinConns = cfg.MinConns
	}
	if cfg.MaxConnLifetime > 0 {
		poolCfg.MaxConnLifetime = cfg.MaxConnLifetime
	}
	pool, err := pgxpool.NewWithConfig(ctx, poolCfg)
	if err != nil {
		return nil, fmt.Errorf("connect postgres: %w", err)
	}
	return &PostgresSink{pool: pool}, nil
}

// NewPostgresSinkWithPool constructs a sink from an existing pool (primarily
// for testing).
func NewPostgresSinkWithPool(pool execCloser) (*PostgresSink, error) {
	if pool == nil {
		return nil, fmt.Errorf("pool is required")
	}
	return &PostgresSink{pool: pool}, nil
}

const insertEventSQL = `
	INSERT INTO capture_events
		(capture_id, ts, stage, site, url, device_type, progress, duration_ms, note)
	VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9);
`

// Consume appends each event in the batch to the event log.
func (s *PostgresSink) Consume(ctx context.Context, batch []progress.Event) error {
	for _, evt := range batch {
		_, err := s.pool.Exec(ctx, insertEventSQL,
			evt.CaptureID,
			evt.TS,
			string(evt.Stage),
			evt.Site,
			evt.URL,
			evt.DeviceType,
			evt.Progress,
			evt.Dur.Milliseconds(),
			evt.Note,
		)
		if err != nil {
			return fmt.Errorf("insert capture event: %w", err)
		}
	}
	return nil
}

// Close releases the underlying pool resources.
func (s *PostgresSink) Close(context.Context) error {
	s.pool.Close()
	return nil
}
