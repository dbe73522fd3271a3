// Package config loads and validates service configuration via Viper.
package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Config captures all service configuration knobs loaded via Viper.
type Config struct {
	Server    ServerConfig    `mapstructure:"server"`
	Auth      AuthConfig      `mapstructure:"auth"`
	Logging   LoggingConfig   `mapstructure:"logging"`
	Capture   CaptureConfig   `mapstructure:"capture"`
	Discovery DiscoveryConfig `mapstructure:"discovery"`
	Renderer  RendererConfig  `mapstructure:"renderer"`
	Archive   ArchiveConfig   `mapstructure:"archive"`
	Progress  ProgressConfig  `mapstructure:"progress"`
	PubSub    PubSubConfig    `mapstructure:"pubsub"`
}

// ServerConfig controls HTTP server behavior.
type ServerConfig struct {
	Port           int `mapstructure:"port"`
	TimeoutSeconds int `mapstructure:"timeout_seconds"`
}

// AuthConfig defines API authentication toggles.
type AuthConfig struct {
	Enabled bool   `mapstructure:"enabled"`
	APIKey  string `mapstructure:"api_key"`
}

// LoggingConfig toggles zap development features.
type LoggingConfig struct {
	Development bool `mapstructure:"development"`
}

// CaptureConfig governs job execution.
type CaptureConfig struct {
	WorkerPoolSize  int    `mapstructure:"worker_pool_size"`
	PageLimit       int    `mapstructure:"page_limit"`
	CompletionTopic string `mapstructure:"completion_topic"`
}

// DiscoveryConfig selects and tunes the link discoverer.
type DiscoveryConfig struct {
	// Mode is "render" (headless browser), "http" (plain fetch), or
	// "auto" (plain fetch, promoted to a render for client-rendered
	// shells).
	Mode           string `mapstructure:"mode"`
	UserAgent      string `mapstructure:"user_agent"`
	TimeoutSeconds int    `mapstructure:"timeout_seconds"`
}

// RendererConfig tunes the headless browser.
type RendererConfig struct {
	MaxConcurrency   int     `mapstructure:"max_concurrency"`
	NavTimeoutSec    int     `mapstructure:"nav_timeout_seconds"`
	DomainQPS        float64 `mapstructure:"domain_qps"`
	DynamicSettleSec int     `mapstructure:"dynamic_settle_seconds"`
	UserAgent        string  `mapstructure:"user_agent"`
}

// ArchiveConfig selects the screenshot storage backend.
type ArchiveConfig struct {
	// Backend is "local", "gcs", or "memory".
	Backend   string `mapstructure:"backend"`
	BaseDir   string `mapstructure:"base_dir"`
	GCSBucket string `mapstructure:"gcs_bucket"`
}

// ProgressConfig tunes the event hub and its optional Postgres sink.
type ProgressConfig struct {
	BufferSize     int    `mapstructure:"buffer_size"`
	MaxBatchEvents int    `mapstructure:"max_batch_events"`
	MaxBatchWaitMs int    `mapstructure:"max_batch_wait_ms"`
	PostgresDSN    string `mapstructure:"postgres_dsn"`
}

// PubSubConfig holds metadata for completion notifications. An empty topic
// disables publishing.
type PubSubConfig struct {
	ProjectID string `mapstructure:"project_id"`
	TopicName string `mapstructure:"topic_name"`
}

// Load builds a Config from disk/environment.
func Load(path string) (Config, error) {
	v := viper.New()
	v.SetEnvPrefix("SITELENS")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	setDefaults(v)

	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return Config{}, fmt.Errorf("read config: %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return Config{}, fmt.Errorf("unmarshal config: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}

	return cfg, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("server.port", 8080)
	v.SetDefault("server.timeout_seconds", 60)
	v.SetDefault("logging.development", true)
	v.SetDefault("capture.worker_pool_size", 4)
	v.SetDefault("capture.page_limit", 10)
	v.SetDefault("capture.completion_topic", "captures.completed")
	v.SetDefault("discovery.mode", "render")
	v.SetDefault("discovery.timeout_seconds", 15)
	v.SetDefault("renderer.max_concurrency", 2)
	v.SetDefault("renderer.nav_timeout_seconds", 30)
	v.SetDefault("renderer.domain_qps", 1.0)
	v.SetDefault("renderer.dynamic_settle_seconds", 2)
	v.SetDefault("renderer.user_agent", "sitelens-bot/0.1")
	v.SetDefault("archive.backend", "local")
	v.SetDefault("archive.base_dir", "./archive")
	v.SetDefault("progress.buffer_size", 1024)
	v.SetDefault("progress.max_batch_events", 256)
	v.SetDefault("progress.max_batch_wait_ms", 500)
}

// Validate enforces required values and reasonable limits.
func (c Config) Validate() error {
	if c.Server.Port <= 0 {
		return fmt.Errorf("server.port must be > 0")
	}
	if c.Server.TimeoutSeconds <= 0 {
		return fmt.Errorf("server.timeout_seconds must be > 0")
	}
	if c.Auth.Enabled && c.Auth.APIKey == "" {
		return fmt.Errorf("auth.api_key must be set when auth is enabled")
	}
	if c.Capture.WorkerPoolSize <= 0 {
		return fmt.Errorf("capture.worker_pool_size must be > 0")
	}
	if c.Capture.PageLimit <= 0 {
		return fmt.Errorf("capture.page_limit must be > 0")
	}
	switch c.Discovery.Mode {
	case "render", "http", "auto":
	default:
		return fmt.Errorf("discovery.mode must be render, http, or auto, got %q", c.Discovery.Mode)
	}
	if c.Renderer.MaxConcurrency <= 0 {
		return fmt.Errorf("renderer.max_concurrency must be > 0")
	}
	switch c.Archive.Backend {
	case "local":
		if c.Archive.BaseDir == "" {
			return fmt.Errorf("archive.base_dir must be set for the local backend")
		}
	case "gcs":
		if c.Archive.GCSBucket == "" {
			return fmt.Errorf("archive.gcs_bucket must be set for the gcs backend")
		}
	case "memory":
	default:
		return fmt.Errorf("archive.backend must be local, gcs, or memory, got %q", c.Archive.Backend)
	}
	if c.PubSub.TopicName != "" && c.PubSub.ProjectID == "" {
		return fmt.Errorf("pubsub.project_id must be set when a topic is configured")
	}
	return nil
}

// ServerTimeout returns the HTTP request timeout as a duration.
func (c Config) ServerTimeout() time.Duration {
	return time.Duration(c.Server.TimeoutSeconds) * time.Second
}
