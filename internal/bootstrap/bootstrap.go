// Package bootstrap provides dependency initialization for the wan gateway.
package bootstrap

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/wan-video/wan-gateway/internal/cache"
	"github.com/wan-video/wan-gateway/internal/config"
	"github.com/wan-video/wan-gateway/internal/download"
	"github.com/wan-video/wan-gateway/internal/generate"
	"github.com/wan-video/wan-gateway/internal/imageref"
	"github.com/wan-video/wan-gateway/internal/storage"
	"github.com/wan-video/wan-gateway/internal/wanx"
)

// Dependencies holds all initialized dependencies for the HTTP server.
type Dependencies struct {
	Orchestrator *generate.Orchestrator
	Results      *cache.ResultCache
	Store        storage.Storage

	videoStore *storage.LocalStorage
}

// NewDependencies creates and initializes all dependencies for the application.
func NewDependencies(cfg *config.Config, logger *slog.Logger) (*Dependencies, error) {
	// Initialize storage
	store, err := initStorage(cfg, logger)
	if err != nil {
		return nil, err
	}

	// Initialize DashScope client
	client, err := wanx.NewClient(
		wanx.WithAPIKey(cfg.DashScopeAPIKey),
		wanx.WithBaseURL(cfg.DashScopeBaseURL),
	)
	if err != nil {
		return nil, fmt.Errorf("create DashScope client: %w", err)
	}

	// Initialize video downloader
	downloader, err := download.New(cfg.ResolvedVideoDir(), download.WithLogger(logger))
	if err != nil {
		return nil, fmt.Errorf("create downloader: %w", err)
	}

	// The video directory is swept separately from the temp directory.
	videoStore, err := storage.NewLocalStorage(cfg.ResolvedVideoDir())
	if err != nil {
		return nil, fmt.Errorf("create video storage: %w", err)
	}

	// Initialize image resolver and task poller
	resolver := imageref.NewResolver(store, imageref.WithLogger(logger))
	poller := generate.NewPoller(client, generate.WithPollerLogger(logger))

	// Initialize generation orchestrator
	orchestrator := generate.NewOrchestrator(
		client,
		poller,
		downloader,
		resolver,
		generate.WithLogger(logger),
		generate.WithAPIConfigured(cfg.DashScopeAPIKey != ""),
	)

	// Initialize result cache
	results, err := cache.New(cfg.CacheSize, cache.WithLogger(logger))
	if err != nil {
		return nil, fmt.Errorf("create result cache: %w", err)
	}

	return &Dependencies{
		Orchestrator: orchestrator,
		Results:      results,
		Store:        store,
		videoStore:   videoStore,
	}, nil
}

// StartCleanup launches a background loop that removes aged temp files and
// downloaded videos. It returns immediately; the loop stops when ctx is
// cancelled.
func (d *Dependencies) StartCleanup(ctx context.Context, retention time.Duration, logger *slog.Logger) {
	if retention <= 0 {
		retention = storage.DefaultRetention
	}
	interval := retention / 4
	if interval > time.Hour {
		interval = time.Hour
	}

	go func() {
		ticker := time.NewTicker(interval)
		defer ticker.Stop()

		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				d.sweep(ctx, retention, logger)
			}
		}
	}()
}

// objectSweeper is implemented by storage backends that can also expire
// uploaded objects, such as S3Storage.
type objectSweeper interface {
	CleanupAgedObjects(ctx context.Context, maxAge time.Duration) (int, error)
}

func (d *Dependencies) sweep(ctx context.Context, retention time.Duration, logger *slog.Logger) {
	removed := 0
	if n, err := d.Store.CleanupAged(ctx, retention); err != nil {
		logger.Warn("temp cleanup failed", slog.String("error", err.Error()))
	} else {
		removed += n
	}
	if n, err := d.videoStore.CleanupAged(ctx, retention); err != nil {
		logger.Warn("video cleanup failed", slog.String("error", err.Error()))
	} else {
		removed += n
	}
	if sweeper, ok := d.Store.(objectSweeper); ok {
		if n, err := sweeper.CleanupAgedObjects(ctx, retention); err != nil {
			logger.Warn("uploaded image cleanup failed", slog.String("error", err.Error()))
		} else {
			removed += n
		}
	}
	if removed > 0 {
		logger.Info("removed aged files", slog.Int("count", removed))
	}
}

// initStorage creates the appropriate storage backend based on configuration.
func initStorage(cfg *config.Config, logger *slog.Logger) (storage.Storage, error) {
	if cfg.S3Enabled() {
		s3Cfg := storage.S3Config{
			Bucket:          cfg.S3Bucket,
			Region:          cfg.S3Region,
			Endpoint:        cfg.S3Endpoint,
			AccessKeyID:     cfg.AWSAccessKeyID,
			SecretAccessKey: cfg.AWSSecretAccessKey,
		}
		s3Store, err := storage.NewS3Storage(cfg.TempDir, s3Cfg)
		if err != nil {
			return nil, fmt.Errorf("create S3 storage: %w", err)
		}
		logger.Info("S3 storage configured",
			slog.String("bucket", cfg.S3Bucket),
			slog.String("region", cfg.S3Region),
		)
		return s3Store, nil
	}

	localStore, err := storage.NewLocalStorage(cfg.TempDir)
	if err != nil {
		return nil, fmt.Errorf("create local storage: %w", err)
	}
	logger.Info("local storage configured",
		slog.String("temp_dir", cfg.TempDir),
	)
	return localStore, nil
}
