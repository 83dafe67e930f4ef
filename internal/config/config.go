// Package config provides configuration loading from environment variables.
package config

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/sethvargo/go-envconfig"
)

// ErrInvalidConfig is returned when a configuration value fails validation.
var ErrInvalidConfig = errors.New("config: invalid value")

// Audio shortfall policies.
const (
	// ShortfallFail rejects an audio source shorter than the clip it scores.
	ShortfallFail = "fail"
	// ShortfallPad pads a short audio source with silence up to the clip length.
	ShortfallPad = "pad"
)

// Config holds all configuration for a pipeline run.
type Config struct {
	// Inputs
	ImageDir  string `env:"IMAGE_DIR, default=images" json:"image_dir" validate:"required"`
	ImageExt  string `env:"IMAGE_EXT, default=.png" json:"image_ext" validate:"required,startswith=."`
	AudioPath string `env:"AUDIO_PATH, default=background.m4a" json:"audio_path" validate:"required"`

	// Outputs
	OutputPath string `env:"OUTPUT_PATH, default=final_output.mp4" json:"output_path" validate:"required"`
	WorkDir    string `env:"WORK_DIR" json:"work_dir,omitempty"` // Defaults to the output directory

	// Rendering settings
	BatchSize        int     `env:"BATCH_SIZE, default=10" json:"batch_size" validate:"min=1"`
	ImageDurationSec float64 `env:"IMAGE_DURATION_SEC, default=2" json:"image_duration_sec" validate:"gt=0"`
	FPS              int     `env:"FPS, default=30" json:"fps" validate:"min=1,max=240"`
	Width            int     `env:"WIDTH, default=1920" json:"width" validate:"min=16,max=8192,even"`
	Height           int     `env:"HEIGHT, default=1080" json:"height" validate:"min=16,max=8192,even"`
	AudioShortfall   string  `env:"AUDIO_SHORTFALL, default=fail" json:"audio_shortfall" validate:"oneof=fail pad"`

	// Backend binaries
	FFmpegPath  string `env:"FFMPEG_PATH, default=ffmpeg" json:"ffmpeg_path"`
	FFprobePath string `env:"FFPROBE_PATH, default=ffprobe" json:"ffprobe_path"`

	// Optional S3 settings for publishing the final artifact
	S3Bucket           string `env:"S3_BUCKET" json:"s3_bucket,omitempty"`
	S3Region           string `env:"S3_REGION" json:"s3_region,omitempty"`
	S3Endpoint         string `env:"S3_ENDPOINT" json:"s3_endpoint,omitempty"`
	S3KeyPrefix        string `env:"S3_KEY_PREFIX, default=slideshow/" json:"s3_key_prefix,omitempty"`
	AWSAccessKeyID     string `env:"AWS_ACCESS_KEY_ID" json:"-"`     // Masked in JSON
	AWSSecretAccessKey string `env:"AWS_SECRET_ACCESS_KEY" json:"-"` // Masked in JSON

	// Logging settings
	LogFormat string `env:"LOG_FORMAT, default=text" json:"log_format" validate:"oneof=text json TEXT JSON"`
	LogLevel  string `env:"LOG_LEVEL, default=info" json:"log_level"`
}

// S3Enabled returns true if S3 configuration is provided.
func (c *Config) S3Enabled() bool {
	return c.S3Bucket != "" && c.S3Region != ""
}

// ResolvedWorkDir returns the directory that holds intermediate artifacts.
// An empty WorkDir resolves to the directory of OutputPath.
func (c *Config) ResolvedWorkDir() string {
	if c.WorkDir != "" {
		return c.WorkDir
	}
	return filepath.Dir(c.OutputPath)
}

// ArtifactExt returns the container extension (without dot) shared by all
// intermediate and final artifacts. It follows OutputPath and falls back to mp4.
func (c *Config) ArtifactExt() string {
	ext := strings.TrimPrefix(filepath.Ext(c.OutputPath), ".")
	if ext == "" {
		return "mp4"
	}
	return strings.ToLower(ext)
}

// Load reads configuration from environment variables using go-envconfig.
func Load() (*Config, error) {
	return LoadWithLookuper(envconfig.OsLookuper())
}

// LoadWithLookuper reads configuration through the given lookuper.
func LoadWithLookuper(l envconfig.Lookuper) (*Config, error) {
	cfg := &Config{}

	if err := envconfig.ProcessWith(context.Background(), &envconfig.Config{
		Target:   cfg,
		Lookuper: l,
	}); err != nil {
		return nil, fmt.Errorf("config: %w", err)
	}

	return cfg, nil
}

// Validate checks every field against its validation tags.
func (c *Config) Validate() error {
	v := validator.New(validator.WithRequiredStructEnabled())
	if err := v.RegisterValidation("even", func(fl validator.FieldLevel) bool {
		return fl.Field().Int()%2 == 0
	}); err != nil {
		return fmt.Errorf("config: register validation: %w", err)
	}

	err := v.Struct(c)
	if err == nil {
		if c.ImageDurationSec*float64(c.FPS) < 1 {
			return fmt.Errorf("%w: ImageDurationSec=%g is shorter than one frame at %d fps", ErrInvalidConfig, c.ImageDurationSec, c.FPS)
		}
		return nil
	}

	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) || len(verrs) == 0 {
		return fmt.Errorf("config: %w", err)
	}

	fe := verrs[0]
	if fe.Param() != "" {
		return fmt.Errorf("%w: %s=%v fails %s=%s", ErrInvalidConfig, fe.Field(), fe.Value(), fe.Tag(), fe.Param())
	}
	return fmt.Errorf("%w: %s=%v fails %s", ErrInvalidConfig, fe.Field(), fe.Value(), fe.Tag())
}

// NewLogger creates a structured logger based on the configuration.
// When LogFormat is "json", it outputs JSON logs suitable for production.
// Otherwise, it outputs human-readable text logs.
func (c *Config) NewLogger() *slog.Logger {
	level := parseLogLevel(c.LogLevel)

	var handler slog.Handler
	if strings.ToLower(c.LogFormat) == "json" {
		handler = slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{
			Level: level,
		})
	} else {
		handler = slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{
			Level: level,
		})
	}

	return slog.New(handler)
}

// String returns a string representation of the config with sensitive values masked.
func (c *Config) String() string {
	return fmt.Sprintf(
		"Config{ImageDir: %s, ImageExt: %s, AudioPath: %s, OutputPath: %s, WorkDir: %s, BatchSize: %d, ImageDurationSec: %g, FPS: %d, Size: %dx%d, AudioShortfall: %s, S3Bucket: %s, S3Region: %s, LogFormat: %s, LogLevel: %s}",
		c.ImageDir,
		c.ImageExt,
		c.AudioPath,
		c.OutputPath,
		c.ResolvedWorkDir(),
		c.BatchSize,
		c.ImageDurationSec,
		c.FPS,
		c.Width,
		c.Height,
		c.AudioShortfall,
		c.S3Bucket,
		c.S3Region,
		c.LogFormat,
		c.LogLevel,
	)
}

// parseLogLevel converts a string log level to slog.Level.
func parseLogLevel(level string) slog.Level {
	switch strings.ToLower(level) {
	case "debug":
		return slog.LevelDebug
	case "info":
		return slog.LevelInfo
	case "warn", "warning":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}
