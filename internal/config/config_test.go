package config

import (
	"log/slog"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func validConfig() *Config {
	return &Config{
		ServerPort:          "8000",
		ServerHost:          "0.0.0.0",
		ReadTimeout:         15 * time.Second,
		WriteTimeout:        60 * time.Second,
		ShutdownTimeout:     30 * time.Second,
		DBPath:              "./smartscan.db",
		UploadDir:           "./uploads",
		MaxUploadBytes:      10 << 20,
		UploadRetention:     168 * time.Hour,
		CleanupInterval:     time.Hour,
		OCRLanguages:        []string{"eng"},
		OCRPageSegMode:      6,
		CacheTTL:            24 * time.Hour,
		RateLimitRPS:        2,
		RateLimitBurst:      5,
		LogLevel:            "info",
		HistoryDefaultLimit: 50,
		HistoryMaxLimit:     500,
	}
}

func TestConfig_Validate(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(c *Config)
		wantErr bool
	}{
		{"Valid", func(c *Config) {}, false},
		{"Empty port", func(c *Config) { c.ServerPort = "" }, true},
		{"Empty database path", func(c *Config) { c.DBPath = "" }, true},
		{"Empty upload dir", func(c *Config) { c.UploadDir = "" }, true},
		{"Negative retention", func(c *Config) { c.UploadRetention = -time.Hour }, true},
		{"Zero retention disables purge", func(c *Config) { c.UploadRetention = 0 }, false},
		{"Zero cleanup interval", func(c *Config) { c.CleanupInterval = 0 }, true},
		{"Zero shutdown timeout", func(c *Config) { c.ShutdownTimeout = 0 }, true},
		{"No languages", func(c *Config) { c.OCRLanguages = nil }, true},
		{"Negative PSM", func(c *Config) { c.OCRPageSegMode = -1 }, true},
		{"Zero cache TTL", func(c *Config) { c.CacheTTL = 0 }, true},
		{"Zero rps when disabled", func(c *Config) { c.DisableRateLimit = true; c.RateLimitRPS = 0 }, false},
		{"Zero rps when enabled", func(c *Config) { c.RateLimitRPS = 0 }, true},
		{"Zero history limit", func(c *Config) { c.HistoryDefaultLimit = 0 }, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := validConfig()
			tt.mutate(c)
			err := c.validate()
			if tt.wantErr {
				assert.Error(t, err)
			} else {
				assert.NoError(t, err)
			}
		})
	}
}

func TestConfig_SlogLevel(t *testing.T) {
	tests := []struct {
		level    string
		debug    bool
		expected slog.Level
	}{
		{"debug", false, slog.LevelDebug},
		{"info", false, slog.LevelInfo},
		{"warn", false, slog.LevelWarn},
		{"error", false, slog.LevelError},
		{"error", true, slog.LevelDebug},
	}

	for _, tt := range tests {
		c := &Config{LogLevel: tt.level, Debug: tt.debug}
		assert.Equal(t, tt.expected, c.SlogLevel(), "level=%s debug=%v", tt.level, tt.debug)
	}
}

func TestConfig_OCROptions(t *testing.T) {
	c := validConfig()
	c.OCRWhitelist = "ABC123"
	c.OCRPreprocess = true

	opts := c.OCROptions()
	assert.Equal(t, []string{"eng"}, opts.Languages)
	assert.Equal(t, 6, opts.PageSegMode)
	assert.Equal(t, "ABC123", opts.Whitelist)
	assert.True(t, opts.Preprocess)
}

func TestSplitList(t *testing.T) {
	assert.Equal(t, []string{"eng"}, splitList("eng"))
	assert.Equal(t, []string{"eng", "deu"}, splitList("eng+deu"))
	assert.Equal(t, []string{"eng", "fra"}, splitList("eng, fra"))
	assert.Empty(t, splitList(""))
}
