// Package main wires together the capture service binary.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	pubsubv2 "cloud.google.com/go/pubsub/v2"
	gcstorage "cloud.google.com/go/storage"
	"github.com/prometheus/client_golang/prometheus"
	"go.uber.org/zap"

	"github.com/sitelens/sitelens/internal/api"
	gcsarchive "github.com/sitelens/sitelens/internal/archive/gcs"
	localarchive "github.com/sitelens/sitelens/internal/archive/local"
	memarchive "github.com/sitelens/sitelens/internal/archive/memory"
	"github.com/sitelens/sitelens/internal/capture"
	"github.com/sitelens/sitelens/internal/clock/system"
	"github.com/sitelens/sitelens/internal/config"
	"github.com/sitelens/sitelens/internal/discovery"
	"github.com/sitelens/sitelens/internal/logging"
	"github.com/sitelens/sitelens/internal/progress"
	"github.com/sitelens/sitelens/internal/progress/sinks"
	pubsubpublisher "github.com/sitelens/sitelens/internal/publisher/pubsub"
	chromedprenderer "github.com/sitelens/sitelens/internal/renderer/chromedp"
	"github.com/sitelens/sitelens/internal/runner"
	memstore "github.com/sitelens/sitelens/internal/store/memory"
)

func main() {
	cfgPath := flag.String("config", "", "Path to config file")
	flag.Parse()

	cfg, err := config.Load(*cfgPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "load config failed: %v\n", err)
		os.Exit(1)
	}
	logger, err := logging.New(cfg.Logging.Development)
	if err != nil {
		fmt.Fprintf(os.Stderr, "logger init failed: %v\n", err)
		os.Exit(1)
	}
	defer func() {
		if syncErr := logger.Sync(); syncErr != nil {
			fmt.Fprintf(os.Stderr, "logger sync failed: %v\n", syncErr)
		}
	}()
	zap.ReplaceGlobals(logger)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	clock := system.New()
	store := memstore.New(clock)

	archive, err := buildArchive(ctx, cfg, logger)
	if err != nil {
		logger.Fatal("archive init failed", zap.Error(err))
	}

	renderer, err := chromedprenderer.New(chromedprenderer.Config{
		MaxConcurrency: cfg.Renderer.MaxConcurrency,
		NavTimeout:     time.Duration(cfg.Renderer.NavTimeoutSec) * time.Second,
		DomainQPS:      cfg.Renderer.DomainQPS,
		DynamicSettle:  time.Duration(cfg.Renderer.DynamicSettleSec) * time.Second,
		UserAgent:      cfg.Renderer.UserAgent,
	}, logger.Named("renderer"))
	if err != nil {
		logger.Fatal("renderer init failed", zap.Error(err))
	}

	var discoverer discovery.Discoverer
	switch cfg.Discovery.Mode {
	case "http":
		discoverer = discovery.NewCollyDiscoverer(discovery.CollyConfig{
			UserAgent: cfg.Discovery.UserAgent,
			Timeout:   time.Duration(cfg.Discovery.TimeoutSeconds) * time.Second,
			PageLimit: cfg.Capture.PageLimit,
		})
	case "auto":
		static := discovery.NewCollyDiscoverer(discovery.CollyConfig{
			UserAgent: cfg.Discovery.UserAgent,
			Timeout:   time.Duration(cfg.Discovery.TimeoutSeconds) * time.Second,
			PageLimit: cfg.Capture.PageLimit,
		})
		rendered := discovery.NewRenderDiscoverer(renderer, cfg.Capture.PageLimit)
		discoverer = discovery.NewHybridDiscoverer(static, rendered, logger.Named("discovery"))
	default:
		discoverer = discovery.NewRenderDiscoverer(renderer, cfg.Capture.PageLimit)
	}

	hub := buildProgressHub(ctx, cfg, logger)

	var publisher capture.Publisher
	if cfg.PubSub.TopicName != "" {
		client, err := pubsubv2.NewClient(ctx, cfg.PubSub.ProjectID)
		if err != nil {
			logger.Fatal("pubsub client init failed", zap.Error(err))
		}
		defer func() {
			if closeErr := client.Close(); closeErr != nil {
				logger.Warn("pubsub client close failed", zap.Error(closeErr))
			}
		}()
		publisher = pubsubpublisher.New(client.Publisher(cfg.PubSub.TopicName))
	}

	jobs, err := runner.New(runner.Config{
		WorkerPoolSize:  cfg.Capture.WorkerPoolSize,
		PageLimit:       cfg.Capture.PageLimit,
		CompletionTopic: cfg.Capture.CompletionTopic,
	}, runner.Deps{
		Store:      store,
		Discoverer: discoverer,
		Renderer:   renderer,
		Archive:    archive,
		Publisher:  publisher,
		Emitter:    hub,
		Clock:      clock,
		Logger:     logger.Named("runner"),
	})
	if err != nil {
		logger.Fatal("runner init failed", zap.Error(err))
	}

	apiServer := api.NewServer(api.Config{
		RequestTimeout: cfg.ServerTimeout(),
		AuthEnabled:    cfg.Auth.Enabled,
		APIKey:         cfg.Auth.APIKey,
	}, store, jobs, prometheus.DefaultGatherer, logger.Named("api"))

	srv := &http.Server{
		Addr:              fmt.Sprintf(":%d", cfg.Server.Port),
		Handler:           apiServer.Handler(),
		ReadHeaderTimeout: 5 * time.Second,
	}

	go func() {
		logger.Info("http server started", zap.Int("port", cfg.Server.Port))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("http server error", zap.Error(err))
			stop()
		}
	}()

	<-ctx.Done()
	logger.Info("shutdown initiated")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("server shutdown error", zap.Error(err))
	}
	if err := jobs.Close(shutdownCtx); err != nil {
		logger.Error("runner shutdown error", zap.Error(err))
	}
	if err := hub.Close(shutdownCtx); err != nil {
		logger.Error("progress hub shutdown error", zap.Error(err))
	}
	if err := renderer.Close(shutdownCtx); err != nil {
		logger.Error("renderer shutdown error", zap.Error(err))
	}
	logger.Info("shutdown complete")
}

func buildArchive(ctx context.Context, cfg config.Config, logger *zap.Logger) (capture.Archive, error) {
	switch cfg.Archive.Backend {
	case "gcs":
		client, err := gcstorage.NewClient(ctx)
		if err != nil {
			return nil, fmt.Errorf("gcs client: %w", err)
		}
		return gcsarchive.New(client, gcsarchive.Config{Bucket: cfg.Archive.GCSBucket})
	case "memory":
		logger.Warn("using in-memory archive; screenshots will not survive restarts")
		return memarchive.New(), nil
	default:
		return localarchive.New(localarchive.Config{BaseDir: cfg.Archive.BaseDir})
	}
}

func buildProgressHub(ctx context.Context, cfg config.Config, logger *zap.Logger) *progress.Hub {
	hubSinks := []progress.Sink{sinks.NewLogSink(logger.Named("progress"))}

	promSink, err := sinks.NewPrometheusSink(prometheus.DefaultRegisterer)
	if err != nil {
		logger.Warn("prometheus progress sink init failed", zap.Error(err))
	} else {
		hubSinks = append(hubSinks, promSink)
	}

	if cfg.Progress.PostgresDSN != "" {
		pgSink, err := sinks.NewPostgresSink(ctx, sinks.PostgresConfig{DSN: cfg.Progress.PostgresDSN})
		if err != nil {
			logger.Warn("postgres progress sink init failed", zap.Error(err))
		} else {
			hubSinks = append(hubSinks, pgSink)
		}
	}

	hub := progress.NewHub(progress.Config{
		BufferSize:     cfg.Progress.BufferSize,
		MaxBatchEvents: cfg.Progress.MaxBatchEvents,
		MaxBatchWait:   time.Duration(cfg.Progress.MaxBatchWaitMs) * time.Millisecond,
		BaseContext:    ctx,
		Logger:         logger.Named("progress-hub"),
	}, hubSinks...)
	return hub
}
