package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"

	"smartscan/internal/ocr"
)

// LoadServerConfigWithViper loads server configuration using Viper
func LoadServerConfigWithViper(v *viper.Viper) (*Config, error) {
	setServerDefaults(v)

	setupServerEnvBinding(v)

	if err := loadConfigFile(v); err != nil {
		return nil, fmt.Errorf("failed to load config file: %w", err)
	}

	config := &Config{}
	if err := unmarshalServerConfig(v, config); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	if err := config.validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return config, nil
}

// setServerDefaults sets default values for server configuration
func setServerDefaults(v *viper.Viper) {
	// Server defaults, listening on all interfaces so phones on the LAN can reach it
	v.SetDefault("server.port", "8000")
	v.SetDefault("server.host", "0.0.0.0")
	v.SetDefault("server.read_timeout", "15s")
	v.SetDefault("server.write_timeout", "60s")
	v.SetDefault("server.shutdown_timeout", "30s")
	v.SetDefault("server.trust_proxy", false)

	// Database defaults
	v.SetDefault("database.path", "./smartscan.db")

	// Upload defaults
	v.SetDefault("uploads.dir", "./uploads")
	v.SetDefault("uploads.max_bytes", 10<<20)
	v.SetDefault("uploads.retention", "168h")
	v.SetDefault("uploads.cleanup_interval", "1h")
	v.SetDefault("uploads.keep_debug_copy", false)

	// OCR defaults
	v.SetDefault("ocr.languages", "eng")
	v.SetDefault("ocr.psm", 6)
	v.SetDefault("ocr.whitelist", ocr.DefaultWhitelist)
	v.SetDefault("ocr.preprocess", true)

	// Cache defaults
	v.SetDefault("cache.ttl", "24h")
	v.SetDefault("cache.disabled", false)

	// Rate limit defaults
	v.SetDefault("rate_limit.disabled", false)
	v.SetDefault("rate_limit.rps", 2)
	v.SetDefault("rate_limit.burst", 5)

	// Logging defaults
	v.SetDefault("logging.level", "info")
	v.SetDefault("debug", false)

	v.SetDefault("metrics.enabled", true)

	v.SetDefault("history.default_limit", 50)
	v.SetDefault("history.max_limit", 500)
}

// setupServerEnvBinding sets up environment variable binding for server configuration
func setupServerEnvBinding(v *viper.Viper) {
	v.SetEnvPrefix("SMARTSCAN")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	envBindings := map[string]string{
		"server.port":              "SERVER_PORT",
		"server.host":              "SERVER_HOST",
		"server.read_timeout":      "SERVER_READ_TIMEOUT",
		"server.write_timeout":     "SERVER_WRITE_TIMEOUT",
		"server.shutdown_timeout":  "SERVER_SHUTDOWN_TIMEOUT",
		"server.trust_proxy":       "TRUST_PROXY",
		"database.path":            "DATABASE_PATH",
		"uploads.dir":              "UPLOADS_DIR",
		"uploads.max_bytes":        "UPLOADS_MAX_BYTES",
		"uploads.retention":        "UPLOADS_RETENTION",
		"uploads.cleanup_interval": "UPLOADS_CLEANUP_INTERVAL",
		"uploads.keep_debug_copy":  "UPLOADS_KEEP_DEBUG_COPY",
		"ocr.languages":            "OCR_LANGUAGES",
		"ocr.psm":                  "OCR_PSM",
		"ocr.whitelist":            "OCR_WHITELIST",
		"ocr.preprocess":           "OCR_PREPROCESS",
		"cache.ttl":                "CACHE_TTL",
		"cache.disabled":           "CACHE_DISABLED",
		"rate_limit.disabled":      "RATE_LIMIT_DISABLED",
		"rate_limit.rps":           "RATE_LIMIT_RPS",
		"rate_limit.burst":         "RATE_LIMIT_BURST",
		"logging.level":            "LOGGING_LEVEL",
		"metrics.enabled":          "METRICS_ENABLED",
		"history.default_limit":    "HISTORY_DEFAULT_LIMIT",
		"history.max_limit":        "HISTORY_MAX_LIMIT",
		"debug":                    "DEBUG",
	}

	// Bare names accepted for existing deployments
	legacyEnvBindings := map[string]string{
		"server.port":   "PORT",
		"database.path": "DB_PATH",
		"logging.level": "LOG_LEVEL",
		"debug":         "DEBUG",
	}

	for configKey, envSuffix := range envBindings {
		envVars := []string{"SMARTSCAN_" + envSuffix}
		if legacy, ok := legacyEnvBindings[configKey]; ok {
			envVars = append(envVars, legacy)
		}
		// BindEnv checks names in order, so the prefixed form wins
		v.BindEnv(append([]string{configKey}, envVars...)...)
	}
}

// loadConfigFile loads configuration file if it exists
func loadConfigFile(v *viper.Viper) error {
	if v.ConfigFileUsed() == "" {
		v.AddConfigPath(".")
		v.AddConfigPath("./config")
		v.AddConfigPath("$HOME/.smartscan")

		v.SetConfigName("config")
	}

	if err := v.ReadInConfig(); err != nil {
		// Config file is optional, only return error if it's not a "not found" error
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return err
		}
	}

	return nil
}

// unmarshalServerConfig maps Viper keys onto Config fields
func unmarshalServerConfig(v *viper.Viper, config *Config) error {
	config.ServerPort = v.GetString("server.port")
	config.ServerHost = v.GetString("server.host")
	config.DBPath = v.GetString("database.path")
	config.UploadDir = v.GetString("uploads.dir")
	config.OCRWhitelist = v.GetString("ocr.whitelist")
	config.LogLevel = strings.ToLower(v.GetString("logging.level"))

	durations := []struct {
		key    string
		target *time.Duration
	}{
		{"server.read_timeout", &config.ReadTimeout},
		{"server.write_timeout", &config.WriteTimeout},
		{"server.shutdown_timeout", &config.ShutdownTimeout},
		{"uploads.retention", &config.UploadRetention},
		{"uploads.cleanup_interval", &config.CleanupInterval},
		{"cache.ttl", &config.CacheTTL},
	}
	for _, d := range durations {
		parsed, err := time.ParseDuration(v.GetString(d.key))
		if err != nil {
			return fmt.Errorf("invalid %s: %w", d.key, err)
		}
		*d.target = parsed
	}

	config.OCRLanguages = splitList(v.GetString("ocr.languages"))

	config.TrustProxy = v.GetBool("server.trust_proxy")
	config.KeepDebugCopy = v.GetBool("uploads.keep_debug_copy")
	config.OCRPreprocess = v.GetBool("ocr.preprocess")
	config.DisableCache = v.GetBool("cache.disabled")
	config.DisableRateLimit = v.GetBool("rate_limit.disabled")
	config.MetricsEnabled = v.GetBool("metrics.enabled")
	config.Debug = v.GetBool("debug")

	config.MaxUploadBytes = v.GetInt64("uploads.max_bytes")
	config.OCRPageSegMode = v.GetInt("ocr.psm")
	config.RateLimitRPS = v.GetFloat64("rate_limit.rps")
	config.RateLimitBurst = v.GetInt("rate_limit.burst")
	config.HistoryDefaultLimit = v.GetInt("history.default_limit")
	config.HistoryMaxLimit = v.GetInt("history.max_limit")

	return nil
}

// splitList accepts "eng+deu" (Tesseract style) or "eng,deu"
func splitList(value string) []string {
	fields := strings.FieldsFunc(value, func(r rune) bool {
		return r == ',' || r == '+' || r == ' '
	})
	return fields
}

// LoadServerConfig loads server configuration using a fresh Viper instance
func LoadServerConfig() (*Config, error) {
	return LoadServerConfigWithViper(viper.New())
}

// LoadServerConfigWithFile loads server configuration from a specific file
func LoadServerConfigWithFile(configFile string) (*Config, error) {
	v := viper.New()
	v.SetConfigFile(configFile)
	return LoadServerConfigWithViper(v)
}

// LoadServerConfigWithEnvFile loads a .env file (".env" when envFile is empty) before
// reading configuration
func LoadServerConfigWithEnvFile(envFile string) (*Config, error) {
	if envFile == "" {
		envFile = ".env"
	}
	if err := LoadEnvFile(envFile); err != nil {
		return nil, fmt.Errorf("failed to load env file %s: %w", envFile, err)
	}

	return LoadServerConfigWithViper(viper.New())
}
