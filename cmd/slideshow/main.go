// Package main provides the slideshow command, which turns a directory of
// images and a background track into a single zooming slideshow video.
package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/maauso/slideshow/internal/bootstrap"
	"github.com/maauso/slideshow/internal/config"
)

func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}

func run() error {
	// Load configuration from environment; flags override it
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	return newRootCmd(cfg).ExecuteContext(ctx)
}

func newRootCmd(cfg *config.Config) *cobra.Command {
	cmd := &cobra.Command{
		Use:           "slideshow",
		Short:         "Render a zooming slideshow video with background audio",
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return execute(cmd.Context(), cfg)
		},
	}

	f := cmd.Flags()
	f.StringVar(&cfg.ImageDir, "images", cfg.ImageDir, "directory of input images")
	f.StringVar(&cfg.ImageExt, "ext", cfg.ImageExt, "image file extension")
	f.StringVar(&cfg.AudioPath, "audio", cfg.AudioPath, "background audio file")
	f.StringVarP(&cfg.OutputPath, "output", "o", cfg.OutputPath, "final video path")
	f.StringVar(&cfg.WorkDir, "work-dir", cfg.WorkDir, "directory for intermediate files (default: output directory)")
	f.IntVar(&cfg.BatchSize, "batch-size", cfg.BatchSize, "images per batch")
	f.Float64Var(&cfg.ImageDurationSec, "duration", cfg.ImageDurationSec, "seconds each image is shown")
	f.IntVar(&cfg.FPS, "fps", cfg.FPS, "frames per second")
	f.IntVar(&cfg.Width, "width", cfg.Width, "output width in pixels")
	f.IntVar(&cfg.Height, "height", cfg.Height, "output height in pixels")
	f.StringVar(&cfg.AudioShortfall, "audio-shortfall", cfg.AudioShortfall, "when audio is shorter than a clip: fail or pad")
	f.StringVar(&cfg.LogFormat, "log-format", cfg.LogFormat, "log format: text or json")
	f.StringVar(&cfg.LogLevel, "log-level", cfg.LogLevel, "log level: debug, info, warn, error")

	return cmd
}

func execute(ctx context.Context, cfg *config.Config) error {
	if err := cfg.Validate(); err != nil {
		return err
	}

	// Create structured logger
	logger := cfg.NewLogger()
	slog.SetDefault(logger)

	logger.Info("starting slideshow",
		slog.String("images", cfg.ImageDir),
		slog.String("audio", cfg.AudioPath),
		slog.String("output", cfg.OutputPath),
		slog.Int("batch_size", cfg.BatchSize),
		slog.Float64("image_duration_sec", cfg.ImageDurationSec),
		slog.Int("fps", cfg.FPS),
		slog.Bool("s3_enabled", cfg.S3Enabled()),
	)
	logger.Debug("configuration", slog.String("config", cfg.String()))

	deps, err := bootstrap.NewDependencies(cfg, logger)
	if err != nil {
		return fmt.Errorf("initialize dependencies: %w", err)
	}

	r, err := deps.Driver.Run(ctx)
	if err != nil {
		return err
	}

	if r.FinalURL != "" {
		fmt.Fprintln(os.Stdout, r.FinalURL)
	} else {
		fmt.Fprintln(os.Stdout, r.FinalPath)
	}
	return nil
}
