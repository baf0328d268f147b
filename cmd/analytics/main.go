package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/jonboulle/clockwork"
	"github.com/joho/godotenv"

	"github.com/couchcryptid/sf-incident-analytics/internal/adapter/csvfile"
	"github.com/couchcryptid/sf-incident-analytics/internal/adapter/datasf"
	httpadapter "github.com/couchcryptid/sf-incident-analytics/internal/adapter/http"
	kafkaadapter "github.com/couchcryptid/sf-incident-analytics/internal/adapter/kafka"
	"github.com/couchcryptid/sf-incident-analytics/internal/config"
	"github.com/couchcryptid/sf-incident-analytics/internal/dashboard"
	"github.com/couchcryptid/sf-incident-analytics/internal/forecast"
	"github.com/couchcryptid/sf-incident-analytics/internal/observability"
	"github.com/couchcryptid/sf-incident-analytics/internal/pipeline"
)

func main() {
	// Optional .env file; real environment variables take precedence.
	_ = godotenv.Load()

	cfg, err := config.Load()
	if err != nil {
		slog.Error("failed to load config", "error", err)
		os.Exit(1)
	}

	logger := observability.NewLogger(cfg)
	metrics := observability.NewMetrics()
	clock := clockwork.NewRealClock()

	var extractor pipeline.Extractor
	if cfg.IncidentsFile != "" {
		extractor = csvfile.NewReader(cfg.IncidentsFile, logger)
	} else {
		extractor = datasf.NewClient(datasf.Options{
			BaseURL:         cfg.DataSFURL,
			AppToken:        cfg.DataSFAppToken,
			Timeout:         cfg.DataSFTimeout,
			PageSize:        cfg.PageSize,
			MaxTotalRecords: cfg.MaxTotalRecords,
			Scope:           cfg.Scope,
		}, logger, metrics)
	}
	logger.Info("incident source configured", "source", extractor.Describe(), "scope", cfg.Scope.String())

	// Publication is feature-flagged via KAFKA_ENABLED.
	var publisher pipeline.Publisher
	var writer *kafkaadapter.Writer
	if cfg.KafkaEnabled {
		writer = kafkaadapter.NewWriter(cfg, logger, metrics, clock)
		publisher = writer
		logger.Info("kafka publication enabled", "topic", cfg.KafkaTopic, "brokers", cfg.KafkaBrokers)
	} else {
		logger.Info("kafka publication disabled")
	}

	p := pipeline.New(extractor, publisher, cfg.Scope, logger, metrics, clock)
	snapshots := pipeline.NewSnapshotCache(p, cfg.CacheTTL, cfg.IngestTimeout, clock, logger, metrics)
	svc := dashboard.NewService(snapshots, forecast.NewSeasonalNaive(), cfg.ViewCacheSize, logger, metrics)

	srv := httpadapter.NewServer(cfg.HTTPAddr, svc, p, cfg.CORSOrigins, logger)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// Start HTTP server.
	go func() {
		if err := srv.Start(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("http server error", "error", err)
		}
	}()

	// Warm the snapshot cache.
	go func() {
		if _, err := snapshots.Get(ctx); err != nil && ctx.Err() == nil {
			logger.Error("initial ingestion failed", "error", err)
		}
	}()

	<-ctx.Done()
	logger.Info("shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("http server shutdown error", "error", err)
	}
	if writer != nil {
		if err := p.WaitPublished(shutdownCtx); err != nil {
			logger.Error("snapshot publish still running at shutdown", "error", err)
		}
		if err := writer.Close(); err != nil {
			logger.Error("kafka writer close error", "error", err)
		}
	}

	logger.Info("shutdown complete")
}
