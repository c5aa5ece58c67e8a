package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

// Config holds all configuration for the telelink scraper.
type Config struct {
	Telegram TelegramConfig `yaml:"telegram" json:"telegram"`
	Scrape   ScrapeConfig   `yaml:"scrape" json:"scrape"`
	Database DatabaseConfig `yaml:"database" json:"database"`
	Logging  LoggingConfig  `yaml:"logging" json:"logging"`
}

// TelegramConfig holds the credentials handed to the messaging-source
// client. The auth handshake itself is outside the scraper.
type TelegramConfig struct {
	APIID       int    `yaml:"api_id" json:"api_id"`
	APIHash     string `yaml:"api_hash" json:"api_hash"`
	SessionFile string `yaml:"session_file" json:"session_file"`
}

// ScrapeConfig holds fetch-loop tuning.
type ScrapeConfig struct {
	PageSize          int           `yaml:"page_size" json:"page_size"`
	RequestsPerMinute int           `yaml:"requests_per_minute" json:"requests_per_minute"`
	MaxRetries        int           `yaml:"max_retries" json:"max_retries"`
	RetryBaseDelay    time.Duration `yaml:"retry_base_delay" json:"retry_base_delay"`
	RetryMaxDelay     time.Duration `yaml:"retry_max_delay" json:"retry_max_delay"`
}

// DatabaseConfig holds the SQLite location.
type DatabaseConfig struct {
	Path string `yaml:"path" json:"path"`
}

// LoggingConfig holds logging configuration.
type LoggingConfig struct {
	Level string `yaml:"level" json:"level"`
	File  string `yaml:"file" json:"file"`
}

// DefaultConfig returns a Config with sensible defaults.
func DefaultConfig() *Config {
	return &Config{
		Telegram: TelegramConfig{
			SessionFile: "./telelink.session",
		},
		Scrape: ScrapeConfig{
			PageSize:          100,
			RequestsPerMinute: 30,
			MaxRetries:        3,
			RetryBaseDelay:    1 * time.Second,
			RetryMaxDelay:     30 * time.Second,
		},
		Database: DatabaseConfig{
			Path: "./telelink.db",
		},
		Logging: LoggingConfig{
			Level: "info",
		},
	}
}

// LoadFromEnv overrides configuration from TELELINK_* environment variables.
func (c *Config) LoadFromEnv() error {
	if v := os.Getenv("TELELINK_API_ID"); v != "" {
		id, err := strconv.Atoi(v)
		if err != nil {
			return fmt.Errorf("TELELINK_API_ID: %w", err)
		}
		c.Telegram.APIID = id
	}
	if v := os.Getenv("TELELINK_API_HASH"); v != "" {
		c.Telegram.APIHash = v
	}
	if v := os.Getenv("TELELINK_SESSION"); v != "" {
		c.Telegram.SessionFile = v
	}
	if v := os.Getenv("TELELINK_DB_PATH"); v != "" {
		c.Database.Path = v
	}
	if v := os.Getenv("TELELINK_PAGE_SIZE"); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			c.Scrape.PageSize = n
		}
	}
	if v := os.Getenv("TELELINK_REQUESTS_PER_MINUTE"); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			c.Scrape.RequestsPerMinute = n
		}
	}
	if v := os.Getenv("TELELINK_LOG_LEVEL"); v != "" {
		c.Logging.Level = v
	}
	return nil
}

// LoadFromFile loads configuration from a YAML file. An empty path means
// "use the first default location that exists"; no file is not an error.
func (c *Config) LoadFromFile(path string) error {
	if path == "" {
		path = findConfigFile()
		if path == "" {
			return nil
		}
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("failed to read config file: %w", err)
	}
	if err := yaml.Unmarshal(data, c); err != nil {
		return fmt.Errorf("failed to parse config file: %w", err)
	}
	return nil
}

func findConfigFile() string {
	locations := []string{
		".telelink.yaml",
		".telelink.yml",
		filepath.Join(os.Getenv("HOME"), ".config", "telelink", "config.yaml"),
		filepath.Join(os.Getenv("HOME"), ".telelink.yaml"),
	}
	for _, loc := range locations {
		if _, err := os.Stat(loc); err == nil {
			return loc
		}
	}
	return ""
}

// MergeFlags merges command line flag values into the configuration.
func (c *Config) MergeFlags(flags map[string]interface{}) {
	if dbPath, ok := flags["db"].(string); ok && dbPath != "" {
		c.Database.Path = dbPath
	}
	if pageSize, ok := flags["page-size"].(int); ok && pageSize > 0 {
		c.Scrape.PageSize = pageSize
	}
	if rpm, ok := flags["rate-limit"].(int); ok && rpm > 0 {
		c.Scrape.RequestsPerMinute = rpm
	}
	if retries, ok := flags["max-retries"].(int); ok && retries >= 0 {
		c.Scrape.MaxRetries = retries
	}
	if logLevel, ok := flags["log-level"].(string); ok && logLevel != "" {
		c.Logging.Level = logLevel
	}
}

// Validate checks the final configuration.
func (c *Config) Validate() error {
	var errs []error

	if c.Scrape.PageSize <= 0 {
		errs = append(errs, errors.New("page size must be positive"))
	}
	if c.Scrape.PageSize > 1000 {
		errs = append(errs, errors.New("page size must not exceed 1000"))
	}
	if c.Scrape.RequestsPerMinute <= 0 {
		errs = append(errs, errors.New("requests per minute must be positive"))
	}
	if c.Scrape.MaxRetries < 0 {
		errs = append(errs, errors.New("max retries cannot be negative"))
	}
	if c.Database.Path == "" {
		errs = append(errs, errors.New("database path is required"))
	}

	validLogLevels := map[string]bool{
		"debug": true, "info": true, "warn": true, "error": true, "disabled": true,
	}
	if !validLogLevels[strings.ToLower(c.Logging.Level)] {
		errs = append(errs, errors.New("invalid log level"))
	}

	if len(errs) > 0 {
		return errors.Join(errs...)
	}
	return nil
}

// Load loads configuration from all sources.
// Precedence: flags > environment (including .env) > config file > defaults.
func Load(configPath string, flags map[string]interface{}) (*Config, error) {
	_ = godotenv.Load(".env")
	_ = godotenv.Load(filepath.Join(os.Getenv("HOME"), ".telelink.env"))

	cfg := DefaultConfig()

	if err := cfg.LoadFromFile(configPath); err != nil {
		return nil, fmt.Errorf("failed to load config file: %w", err)
	}
	if err := cfg.LoadFromEnv(); err != nil {
		return nil, fmt.Errorf("failed to load environment variables: %w", err)
	}
	cfg.MergeFlags(flags)

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("configuration validation failed: %w", err)
	}
	return cfg, nil
}
