package config

import (
	"fmt"
	"log/slog"
	"strconv"
	"strings"
	"time"

	"smartscan/internal/ocr"
)

// Config holds all server configuration
type Config struct {
	// Server configuration
	ServerPort      string
	ServerHost      string
	ReadTimeout     time.Duration
	WriteTimeout    time.Duration
	ShutdownTimeout time.Duration
	// TrustProxy honours X-Forwarded-For when identifying clients
	TrustProxy bool

	// Database configuration
	DBPath string

	// Upload handling
	UploadDir       string
	MaxUploadBytes  int64
	UploadRetention time.Duration
	CleanupInterval time.Duration
	KeepDebugCopy   bool

	// OCR engine
	OCRLanguages   []string
	OCRPageSegMode int
	OCRWhitelist   string
	OCRPreprocess  bool

	// Result cache
	CacheTTL     time.Duration
	DisableCache bool

	// Per-client rate limiting on scan endpoints
	DisableRateLimit bool
	RateLimitRPS     float64
	RateLimitBurst   int

	// Logging
	LogLevel string
	Debug    bool

	// Metrics
	MetricsEnabled bool

	// Scan history paging
	HistoryDefaultLimit int
	HistoryMaxLimit     int
}

// validate checks if the configuration is valid
func (c *Config) validate() error {
	if c.ServerPort == "" {
		return fmt.Errorf("server port cannot be empty")
	}
	if _, err := strconv.Atoi(c.ServerPort); err != nil {
		return fmt.Errorf("invalid server port: %s", c.ServerPort)
	}

	if c.DBPath == "" {
		return fmt.Errorf("database path cannot be empty")
	}
	if c.UploadDir == "" {
		return fmt.Errorf("upload directory cannot be empty")
	}
	if c.MaxUploadBytes <= 0 {
		return fmt.Errorf("max upload size must be positive")
	}
	if c.UploadRetention < 0 {
		return fmt.Errorf("upload retention must be non-negative")
	}
	if c.CleanupInterval <= 0 {
		return fmt.Errorf("cleanup interval must be positive")
	}

	if c.ReadTimeout <= 0 || c.WriteTimeout <= 0 || c.ShutdownTimeout <= 0 {
		return fmt.Errorf("server timeouts must be positive")
	}

	validLogLevels := []string{"debug", "info", "warn", "error"}
	isValidLogLevel := false
	for _, level := range validLogLevels {
		if c.LogLevel == level {
			isValidLogLevel = true
			break
		}
	}
	if !isValidLogLevel {
		return fmt.Errorf("invalid log level: %s (must be one of: debug, info, warn, error)", c.LogLevel)
	}

	if c.OCRPageSegMode < 0 || c.OCRPageSegMode > 13 {
		return fmt.Errorf("ocr page segmentation mode must be between 0 and 13")
	}
	if len(c.OCRLanguages) == 0 {
		return fmt.Errorf("at least one ocr language is required")
	}

	if c.CacheTTL <= 0 {
		return fmt.Errorf("cache TTL must be positive")
	}

	if !c.DisableRateLimit {
		if c.RateLimitRPS <= 0 {
			return fmt.Errorf("rate limit rps must be positive")
		}
		if c.RateLimitBurst < 1 {
			return fmt.Errorf("rate limit burst must be at least 1")
		}
	}

	if c.HistoryDefaultLimit < 1 || c.HistoryMaxLimit < 1 {
		return fmt.Errorf("history limits must be at least 1")
	}
	if c.HistoryDefaultLimit > c.HistoryMaxLimit {
		return fmt.Errorf("history default limit %d exceeds max limit %d", c.HistoryDefaultLimit, c.HistoryMaxLimit)
	}

	return nil
}

// Address returns the full server address
func (c *Config) Address() string {
	return c.ServerHost + ":" + c.ServerPort
}

// OCROptions returns the engine options for the text extractor
func (c *Config) OCROptions() ocr.Options {
	return ocr.Options{
		Languages:   c.OCRLanguages,
		PageSegMode: c.OCRPageSegMode,
		Whitelist:   c.OCRWhitelist,
		Preprocess:  c.OCRPreprocess,
	}
}

// SlogLevel maps the configured level to slog. DEBUG=true forces debug.
func (c *Config) SlogLevel() slog.Level {
	if c.Debug {
		return slog.LevelDebug
	}
	switch strings.ToLower(c.LogLevel) {
	case "debug":
		return slog.LevelDebug
	case "warn":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

// GetDisableRateLimit returns the rate limit disable flag
func (c *Config) GetDisableRateLimit() bool {
	return c.DisableRateLimit
}

// GetRateLimitRPS returns the sustained scan requests per second per client
func (c *Config) GetRateLimitRPS() float64 {
	return c.RateLimitRPS
}

// GetRateLimitBurst returns the per-client burst size
func (c *Config) GetRateLimitBurst() int {
	return c.RateLimitBurst
}

// GetDisableCache returns the cache disable flag
func (c *Config) GetDisableCache() bool {
	return c.DisableCache
}

// GetUploadDir returns where uploaded images are stored
func (c *Config) GetUploadDir() string {
	return c.UploadDir
}

// GetMaxUploadBytes returns the largest accepted upload
func (c *Config) GetMaxUploadBytes() int64 {
	return c.MaxUploadBytes
}

// GetKeepDebugCopy returns whether the last upload is also copied to a fixed debug file
func (c *Config) GetKeepDebugCopy() bool {
	return c.KeepDebugCopy
}

// GetHistoryDefaultLimit returns the page size used when a listing names none
func (c *Config) GetHistoryDefaultLimit() int {
	return c.HistoryDefaultLimit
}

// GetHistoryMaxLimit returns the largest page a listing may request
func (c *Config) GetHistoryMaxLimit() int {
	return c.HistoryMaxLimit
}
