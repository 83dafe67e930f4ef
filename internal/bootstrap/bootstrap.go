// Package bootstrap provides dependency initialization for the slideshow pipeline.
package bootstrap

import (
	"fmt"
	"log/slog"
	"path"
	"path/filepath"

	"github.com/maauso/slideshow/internal/audio"
	"github.com/maauso/slideshow/internal/batch"
	"github.com/maauso/slideshow/internal/config"
	"github.com/maauso/slideshow/internal/media"
	"github.com/maauso/slideshow/internal/pipeline"
	"github.com/maauso/slideshow/internal/storage"
)

// Dependencies holds all initialized dependencies for one run.
type Dependencies struct {
	Driver *pipeline.Driver
}

// NewDependencies creates and initializes all dependencies for the application.
func NewDependencies(cfg *config.Config, logger *slog.Logger) (*Dependencies, error) {
	store, err := initStorage(cfg, logger)
	if err != nil {
		return nil, err
	}

	runner := media.NewRunner(cfg.FFmpegPath, cfg.FFprobePath)
	attacher := audio.NewFFmpegAttacher(runner,
		audio.WithSilencePadding(cfg.AudioShortfall == config.ShortfallPad),
	)

	opts := pipeline.Options{
		ImageDuration: cfg.ImageDurationSec,
		FPS:           cfg.FPS,
		Width:         cfg.Width,
		Height:        cfg.Height,
		AudioPath:     cfg.AudioPath,
		OutputPath:    cfg.OutputPath,
		Ext:           cfg.ArtifactExt(),
	}
	if cfg.S3Enabled() {
		opts.PublishKey = publishKey(cfg.S3KeyPrefix, cfg.OutputPath)
	}

	driver := pipeline.NewDriver(
		&batch.Batcher{Dir: cfg.ImageDir, Ext: cfg.ImageExt, Size: cfg.BatchSize},
		media.NewFFmpegRenderer(runner),
		attacher,
		media.NewFFmpegMerger(runner),
		store,
		opts,
		pipeline.WithLogger(logger),
	)

	return &Dependencies{Driver: driver}, nil
}

// initStorage creates the appropriate storage backend based on configuration.
func initStorage(cfg *config.Config, logger *slog.Logger) (storage.Storage, error) {
	workDir := cfg.ResolvedWorkDir()

	if cfg.S3Enabled() {
		s3Cfg := storage.S3Config{
			Bucket:          cfg.S3Bucket,
			Region:          cfg.S3Region,
			Endpoint:        cfg.S3Endpoint,
			AccessKeyID:     cfg.AWSAccessKeyID,
			SecretAccessKey: cfg.AWSSecretAccessKey,
		}
		s3Store, err := storage.NewS3Storage(workDir, s3Cfg)
		if err != nil {
			return nil, fmt.Errorf("create S3 storage: %w", err)
		}
		logger.Info("S3 storage configured",
			slog.String("bucket", cfg.S3Bucket),
			slog.String("region", cfg.S3Region),
			slog.String("work_dir", workDir),
		)
		return s3Store, nil
	}

	localStore, err := storage.NewLocalStorage(workDir)
	if err != nil {
		return nil, fmt.Errorf("create local storage: %w", err)
	}
	logger.Info("local storage configured",
		slog.String("work_dir", workDir),
	)
	return localStore, nil
}

// publishKey is the S3 object key of the final video.
func publishKey(prefix, outputPath string) string {
	return path.Join(prefix, filepath.Base(outputPath))
}
