// Package config provides configuration loading from environment variables.
package config

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"strings"
	"time"

	"github.com/sethvargo/go-envconfig"
)

// ErrAPIKeyRequired is returned when DASHSCOPE_API_KEY is not set.
var ErrAPIKeyRequired = errors.New("config: DASHSCOPE_API_KEY is required")

// Config holds all configuration for the application.
type Config struct {
	// Server settings
	Port int `env:"PORT, default=8080" json:"port"`

	// DashScope settings
	DashScopeAPIKey  string `env:"DASHSCOPE_API_KEY, required" json:"-"` // Masked in JSON
	DashScopeBaseURL string `env:"DASHSCOPE_BASE_URL, default=https://dashscope.aliyuncs.com/api/v1" json:"dashscope_base_url"`

	// Storage settings
	TempDir        string        `env:"TEMP_DIR, default=/tmp/wan-gateway" json:"temp_dir"`
	VideoDir       string        `env:"VIDEO_DIR" json:"video_dir,omitempty"` // Defaults to TempDir/videos
	VideoRetention time.Duration `env:"VIDEO_RETENTION, default=24h" json:"video_retention"`

	// Result cache settings
	CacheSize int `env:"CACHE_SIZE, default=128" json:"cache_size"`

	// Optional object-storage settings (S3 or any S3-compatible store)
	S3Bucket           string `env:"S3_BUCKET" json:"s3_bucket,omitempty"`
	S3Region           string `env:"S3_REGION" json:"s3_region,omitempty"`
	S3Endpoint         string `env:"S3_ENDPOINT" json:"s3_endpoint,omitempty"`
	AWSAccessKeyID     string `env:"AWS_ACCESS_KEY_ID" json:"-"`     // Masked in JSON
	AWSSecretAccessKey string `env:"AWS_SECRET_ACCESS_KEY" json:"-"` // Masked in JSON

	// Logging settings
	LogFormat string `env:"LOG_FORMAT, default=text" json:"log_format"` // "json" or "text"
	LogLevel  string `env:"LOG_LEVEL, default=info" json:"log_level"`   // "debug", "info", "warn", "error"
}

// S3Enabled returns true if object-storage configuration is provided.
func (c *Config) S3Enabled() bool {
	return c.S3Bucket != "" && c.S3Region != ""
}

// ResolvedVideoDir returns the directory for downloaded videos.
func (c *Config) ResolvedVideoDir() string {
	if c.VideoDir != "" {
		return c.VideoDir
	}
	return c.TempDir + "/videos"
}

// Load reads configuration from environment variables using go-envconfig.
// It returns an error if required variables are not set.
func Load() (*Config, error) {
	cfg := &Config{}

	if err := envconfig.Process(context.Background(), cfg); err != nil {
		// Map envconfig errors to our domain errors for required fields
		if strings.Contains(err.Error(), "DASHSCOPE_API_KEY") {
			return nil, ErrAPIKeyRequired
		}
		return nil, fmt.Errorf("config: %w", err)
	}

	return cfg, nil
}

// Validate checks that all required configuration is present.
func (c *Config) Validate() error {
	if c.DashScopeAPIKey == "" {
		return ErrAPIKeyRequired
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
		"Config{Port: %d, DashScopeBaseURL: %s, TempDir: %s, VideoRetention: %s, CacheSize: %d, S3Bucket: %s, S3Region: %s, LogFormat: %s, LogLevel: %s}",
		c.Port,
		c.DashScopeBaseURL,
		c.TempDir,
		c.VideoRetention,
		c.CacheSize,
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
