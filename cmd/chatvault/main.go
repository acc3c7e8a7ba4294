package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/sirupsen/logrus"

	"chatvault/internal/config"
	"chatvault/internal/constants"
	"chatvault/internal/database"
	"chatvault/internal/events"
	"chatvault/internal/metrics"
	"chatvault/internal/queue"
	"chatvault/internal/resolver"
	"chatvault/internal/retry"
	"chatvault/internal/service"
	"chatvault/internal/tracing"
	"chatvault/pkg/embedding"
	"chatvault/pkg/mediastore"
	"chatvault/pkg/platform"
)

var (
	// Version information (set at build time)
	Version   = "dev"
	BuildTime = "unknown"
	GitCommit = "unknown"

	// CLI flags
	verbose    = flag.Bool("verbose", false, "Enable verbose logging")
	configPath = flag.String("config", "config.json", "Path to configuration file")
	version    = flag.Bool("version", false, "Show version information")
)

func main() {
	flag.Parse()

	if *version {
		fmt.Printf("chatvault %s\nBuild Time: %s\nGit Commit: %s\n", Version, BuildTime, GitCommit)
		os.Exit(0)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := run(ctx); err != nil {
		logrus.Fatalf("Application error: %v", err)
	}
}

func run(ctx context.Context) error {
	logger := logrus.New()
	logger.SetFormatter(&logrus.JSONFormatter{})

	logger.WithFields(logrus.Fields{
		"version": Version,
		"build":   BuildTime,
		"commit":  GitCommit,
	}).Info("Starting chatvault")

	cfg, err := config.LoadConfig(*configPath)
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}

	if *verbose {
		logger.SetLevel(logrus.DebugLevel)
	} else if cfg.LogLevel != "" {
		level, err := logrus.ParseLevel(cfg.LogLevel)
		if err != nil {
			logger.Warnf("Invalid log level %q, defaulting to info", cfg.LogLevel)
			logger.SetLevel(logrus.InfoLevel)
		} else {
			logger.SetLevel(level)
		}
	} else {
		logger.SetLevel(logrus.InfoLevel)
	}

	tracingManager := tracing.NewManager(cfg.Tracing, logger)
	if err := tracingManager.Initialize(ctx); err != nil {
		logger.Warnf("Failed to initialize tracing: %v", err)
	}
	defer func() {
		if err := tracingManager.Shutdown(context.Background()); err != nil {
			logger.Warnf("Failed to shutdown tracing: %v", err)
		}
	}()

	// Initialize database with exponential backoff retry
	var db *database.Database
	backoff := retry.NewBackoff(retry.BackoffConfig{
		InitialDelay: time.Duration(cfg.Retry.InitialBackoffMs) * time.Millisecond,
		MaxDelay:     time.Duration(cfg.Retry.MaxBackoffMs) * time.Millisecond,
		Multiplier:   2.0,
		MaxAttempts:  cfg.Retry.MaxAttempts,
		Jitter:       true,
	})
	err = backoff.Retry(ctx, func() error {
		var initErr error
		db, initErr = database.New(cfg.Database.Path)
		if initErr != nil {
			logger.Warnf("Failed to initialize database: %v", initErr)
		}
		return initErr
	})
	if err != nil {
		return fmt.Errorf("failed to initialize database after retries: %w", err)
	}
	defer db.Close()

	store, err := mediastore.New(cfg.Media.StoreDir, cfg.Media.MaxSizeMB)
	if err != nil {
		return fmt.Errorf("failed to initialize media store: %w", err)
	}

	httpTimeout := time.Duration(cfg.Platform.HTTPTimeoutSec) * time.Second
	client := platform.NewClient(cfg.Platform.APIBaseURL, httpTimeout)

	if identity, err := client.GetMe(ctx); err != nil {
		logger.Warnf("Platform session check failed: %v. chatvault may not be able to sync.", err)
	} else {
		logger.WithField("user_id", identity.UserID).Info("Platform session verified")
	}

	bus := events.NewBus(constants.DefaultEventBufferSize, logger)
	defer bus.Close()

	registry := metrics.NewRegistry()

	batchPool := queue.NewPool("batch", cfg.Queues.BatchWorkers, logger)
	mediaPool := queue.NewPool("media", cfg.Queues.MediaWorkers, logger)

	embedTimeout := time.Duration(constants.DefaultEmbeddingTimeoutSec) * time.Second
	embedClient := embedding.NewClient(cfg.Embedding.BaseURL, cfg.Embedding.Model, cfg.Embedding.Dimension, embedTimeout)

	resolvers := resolver.NewRegistry()
	if err := resolvers.Register(resolver.NewMediaResolver(client, db, store, mediaPool, cfg.Platform.Name, logger)); err != nil {
		return fmt.Errorf("failed to register media resolver: %w", err)
	}
	if err := resolvers.Register(resolver.NewEmbeddingResolver(embedClient, cfg.Embedding.ChunkSize, logger)); err != nil {
		return fmt.Errorf("failed to register embedding resolver: %w", err)
	}

	if cfg.Embedding.PhotoEmbedding {
		visionBase := cfg.Embedding.VisionBaseURL
		if visionBase == "" {
			visionBase = cfg.Embedding.BaseURL
		}
		visionClient := embedding.NewVisionClient(visionBase, cfg.Embedding.VisionModel, embedTimeout)
		photoResolver := resolver.NewPhotoEmbeddingResolver(visionClient, embedClient, store, true, logger)
		if err := resolvers.Register(photoResolver); err != nil {
			return fmt.Errorf("failed to register photo embedding resolver: %w", err)
		}
	}

	orchestrator := service.NewOrchestrator(resolvers, db, bus, registry, cfg.Platform.Name, nil, logger)
	tracker := service.NewAccountStateTracker(db, logger)

	rateInterval := time.Duration(cfg.Takeout.RateIntervalMs) * time.Millisecond
	engine := service.NewTakeoutEngine(client, bus, cfg.Takeout.PageLimit, rateInterval, logger)
	takeouts := service.NewTakeoutService(engine, orchestrator, tracker, batchPool, bus, cfg.Takeout.PageLimit, cfg.TenantID, logger)

	feed := service.NewFeedPoller(client, orchestrator, tracker, cfg.Feed, cfg.Retry, cfg.TenantID, logger)
	if err := feed.Start(ctx); err != nil {
		logger.Warnf("Failed to start feed poller: %v", err)
	}
	defer feed.Stop()

	if cfg.Media.RetentionDay > 0 {
		go runMediaCleanup(ctx, store, cfg.Media.RetentionDay, logger)
	}

	server := NewServer(cfg.Server.Port, takeouts, registry, bus, logger)
	serverErrCh := make(chan error, 1)
	go func() {
		if err := server.Start(); err != nil {
			serverErrCh <- fmt.Errorf("server error: %w", err)
		}
	}()

	select {
	case <-ctx.Done():
		logger.Info("Received shutdown signal")
	case err := <-serverErrCh:
		logger.Error(err)
		return err
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), time.Duration(constants.DefaultGracefulShutdownSec)*time.Second)
	defer cancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Warnf("Server shutdown error: %v", err)
	}

	batchPool.Wait()
	mediaPool.Wait()

	logger.Info("chatvault stopped")
	return nil
}

// runMediaCleanup removes stored media older than the retention window once
// a day.
func runMediaCleanup(ctx context.Context, store mediastore.Store, retentionDays int, logger *logrus.Logger) {
	maxAge := time.Duration(retentionDays) * 24 * time.Hour
	ticker := time.NewTicker(24 * time.Hour)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if err := store.CleanupOldFiles(maxAge); err != nil {
				logger.WithError(err).Warn("Media cleanup failed")
			}
		}
	}
}
