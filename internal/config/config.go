// Package config provides configuration loading from environment variables.
package config

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"strings"

	"github.com/sethvargo/go-envconfig"
)

// Static errors for configuration validation.
var (
	// ErrInvalidBGMVolume is returned when BGM_VOLUME is outside (0, 1].
	ErrInvalidBGMVolume = errors.New("config: BGM_VOLUME must be in (0, 1]")
	// ErrInvalidTimeout is returned when a timeout setting is not positive.
	ErrInvalidTimeout = errors.New("config: timeouts must be positive")
)

// Config holds all configuration for the application.
type Config struct {
	// Server settings
	Port int `env:"PORT, default=8000" json:"port"`

	// Storage settings
	TempDir string `env:"TEMP_DIR, default=/tmp/combiner" json:"temp_dir"`
	// DBPath is the SQLite job store location. Empty selects the in-memory store.
	DBPath string `env:"DB_PATH" json:"db_path,omitempty"`

	// FFmpeg settings
	FFmpegPath       string `env:"FFMPEG_PATH, default=ffmpeg" json:"ffmpeg_path"`
	FFprobePath      string `env:"FFPROBE_PATH, default=ffprobe" json:"ffprobe_path"`
	FFmpegTimeoutSec int    `env:"FFMPEG_TIMEOUT_SEC, default=300" json:"ffmpeg_timeout_sec"`
	// BGMVolume is the background-music volume applied when mixing onto a
	// video that already carries an audio track.
	BGMVolume float64 `env:"BGM_VOLUME, default=0.25" json:"bgm_volume"`

	// Download settings
	DownloadTimeoutSec int `env:"DOWNLOAD_TIMEOUT_SEC, default=120" json:"download_timeout_sec"`
	MaxDownloadMB      int `env:"MAX_DOWNLOAD_MB, default=512" json:"max_download_mb"`

	// Processing settings
	MaxConcurrentJobs int `env:"MAX_CONCURRENT_JOBS, default=2" json:"max_concurrent_jobs"`

	// Optional S3 settings
	S3Bucket           string `env:"S3_BUCKET" json:"s3_bucket,omitempty"`
	S3Region           string `env:"S3_REGION" json:"s3_region,omitempty"`
	AWSAccessKeyID     string `env:"AWS_ACCESS_KEY_ID" json:"-"`     // Masked in JSON
	AWSSecretAccessKey string `env:"AWS_SECRET_ACCESS_KEY" json:"-"` // Masked in JSON

	// Logging settings
	LogFormat string `env:"LOG_FORMAT, default=text" json:"log_format"` // "json" or "text"
	LogLevel  string `env:"LOG_LEVEL, default=info" json:"log_level"`   // "debug", "info", "warn", "error"
}

// S3Enabled returns true if S3 configuration is provided.
func (c *Config) S3Enabled() bool {
	return c.S3Bucket != "" && c.S3Region != ""
}

// Load reads configuration from environment variables using go-envconfig.
func Load() (*Config, error) {
	cfg := &Config{}

	if err := envconfig.Process(context.Background(), cfg); err != nil {
		return nil, fmt.Errorf("config: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

// Validate checks that the configuration values are usable.
func (c *Config) Validate() error {
	if c.BGMVolume <= 0 || c.BGMVolume > 1 {
		return fmt.Errorf("%w: got %g", ErrInvalidBGMVolume, c.BGMVolume)
	}
	if c.FFmpegTimeoutSec <= 0 || c.DownloadTimeoutSec <= 0 {
		return ErrInvalidTimeout
	}
	return nil
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
		"Config{Port: %d, TempDir: %s, DBPath: %s, FFmpegPath: %s, FFmpegTimeoutSec: %d, BGMVolume: %g, DownloadTimeoutSec: %d, MaxDownloadMB: %d, MaxConcurrentJobs: %d, S3Bucket: %s, S3Region: %s, LogFormat: %s, LogLevel: %s}",
		c.Port,
		c.TempDir,
		c.DBPath,
		c.FFmpegPath,
		c.FFmpegTimeoutSec,
		c.BGMVolume,
		c.DownloadTimeoutSec,
		c.MaxDownloadMB,
		c.MaxConcurrentJobs,
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
