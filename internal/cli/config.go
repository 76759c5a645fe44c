package cli

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"
)

const configFileName = ".smartscan.json"

// Config holds CLI configuration
type Config struct {
	ServerURL      string        `json:"server_url"`
	Format         string        `json:"format"`
	Quiet          bool          `json:"quiet"`
	NoColor        bool          `json:"no_color"`
	RequestTimeout time.Duration `json:"-"`
}

// fileConfig is the on-disk shape; the timeout is stored as a duration string
type fileConfig struct {
	*Config
	Timeout string `json:"request_timeout,omitempty"`
}

// DefaultConfig returns the default configuration
func DefaultConfig() *Config {
	return &Config{
		ServerURL:      "http://localhost:8000",
		Format:         "table",
		Quiet:          false,
		RequestTimeout: 60 * time.Second,
	}
}

// LoadConfig loads configuration from file, environment variables, and CLI flags
func LoadConfig(serverFlag, formatFlag string, quietFlag, noColorFlag bool) (*Config, error) {
	config := DefaultConfig()

	// Config file is optional
	if err := config.loadFromFile(); err != nil && !os.IsNotExist(err) {
		return nil, fmt.Errorf("failed to read %s: %w", configFileName, err)
	}

	if err := config.loadFromEnv(); err != nil {
		return nil, err
	}

	// Override with CLI flags (highest priority)
	if serverFlag != "" {
		config.ServerURL = serverFlag
	}
	if formatFlag != "" {
		config.Format = formatFlag
	}
	if quietFlag {
		config.Quiet = true
	}
	if noColorFlag {
		config.NoColor = true
	}

	return config, config.validate()
}

func configPath() (string, error) {
	homeDir, err := os.UserHomeDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(homeDir, configFileName), nil
}

// loadFromFile loads configuration from ~/.smartscan.json
func (c *Config) loadFromFile() error {
	path, err := configPath()
	if err != nil {
		return err
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return err
	}

	fc := fileConfig{Config: c}
	if err := json.Unmarshal(data, &fc); err != nil {
		return err
	}
	if fc.Timeout != "" {
		timeout, err := parseTimeout(fc.Timeout)
		if err != nil {
			return fmt.Errorf("invalid request_timeout: %w", err)
		}
		c.RequestTimeout = timeout
	}
	return nil
}

// loadFromEnv loads configuration from environment variables
func (c *Config) loadFromEnv() error {
	if serverURL := os.Getenv("SMARTSCAN_SERVER"); serverURL != "" {
		c.ServerURL = serverURL
	}
	if format := os.Getenv("SMARTSCAN_FORMAT"); format != "" {
		c.Format = format
	}
	if os.Getenv("SMARTSCAN_QUIET") == "true" {
		c.Quiet = true
	}
	// Any value disables colour, see no-color.org
	if os.Getenv("NO_COLOR") != "" {
		c.NoColor = true
	}
	if timeout := os.Getenv("SMARTSCAN_TIMEOUT"); timeout != "" {
		d, err := parseTimeout(timeout)
		if err != nil {
			return fmt.Errorf("invalid SMARTSCAN_TIMEOUT: %w", err)
		}
		c.RequestTimeout = d
	}
	return nil
}

// parseTimeout accepts a Go duration or a bare number of seconds
func parseTimeout(value string) (time.Duration, error) {
	if seconds, err := strconv.Atoi(value); err == nil {
		return time.Duration(seconds) * time.Second, nil
	}
	return time.ParseDuration(value)
}

// validate checks if the configuration is valid
func (c *Config) validate() error {
	if strings.TrimSpace(c.ServerURL) == "" {
		return fmt.Errorf("server URL cannot be empty")
	}

	validFormats := []string{"table", "json"}
	isValidFormat := false
	for _, format := range validFormats {
		if c.Format == format {
			isValidFormat = true
			break
		}
	}
	if !isValidFormat {
		return fmt.Errorf("invalid format: %s (must be one of: table, json)", c.Format)
	}

	if c.RequestTimeout <= 0 {
		return fmt.Errorf("request timeout must be positive")
	}

	return nil
}

// SaveConfig saves the current configuration to ~/.smartscan.json
func (c *Config) SaveConfig() error {
	path, err := configPath()
	if err != nil {
		return err
	}

	data, err := json.MarshalIndent(fileConfig{Config: c, Timeout: c.RequestTimeout.String()}, "", "  ")
	if err != nil {
		return err
	}

	return os.WriteFile(path, data, 0o644)
}
