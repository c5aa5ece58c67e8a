package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefaultConfig(t *testing.T) {
	cfg := DefaultConfig()

	assert.Equal(t, 100, cfg.Scrape.PageSize)
	assert.Equal(t, 30, cfg.Scrape.RequestsPerMinute)
	assert.Equal(t, 3, cfg.Scrape.MaxRetries)
	assert.Equal(t, time.Second, cfg.Scrape.RetryBaseDelay)
	assert.Equal(t, "./telelink.db", cfg.Database.Path)
	assert.Equal(t, "info", cfg.Logging.Level)
	assert.NoError(t, cfg.Validate())
}

func TestLoadFromEnv(t *testing.T) {
	t.Setenv("TELELINK_API_ID", "12345")
	t.Setenv("TELELINK_API_HASH", "abcdef")
	t.Setenv("TELELINK_DB_PATH", "/tmp/other.db")
	t.Setenv("TELELINK_PAGE_SIZE", "50")
	t.Setenv("TELELINK_LOG_LEVEL", "debug")

	cfg := DefaultConfig()
	require.NoError(t, cfg.LoadFromEnv())

	assert.Equal(t, 12345, cfg.Telegram.APIID)
	assert.Equal(t, "abcdef", cfg.Telegram.APIHash)
	assert.Equal(t, "/tmp/other.db", cfg.Database.Path)
	assert.Equal(t, 50, cfg.Scrape.PageSize)
	assert.Equal(t, "debug", cfg.Logging.Level)
}

func TestLoadFromEnvRejectsBadAPIID(t *testing.T) {
	t.Setenv("TELELINK_API_ID", "not-a-number")

	cfg := DefaultConfig()
	assert.Error(t, cfg.LoadFromEnv())
}

func TestLoadFromFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`
scrape:
  page_size: 25
  requests_per_minute: 10
database:
  path: /tmp/from-file.db
logging:
  level: warn
`), 0644))

	cfg := DefaultConfig()
	require.NoError(t, cfg.LoadFromFile(path))

	assert.Equal(t, 25, cfg.Scrape.PageSize)
	assert.Equal(t, 10, cfg.Scrape.RequestsPerMinute)
	assert.Equal(t, "/tmp/from-file.db", cfg.Database.Path)
	assert.Equal(t, "warn", cfg.Logging.Level)
	// Untouched sections keep their defaults.
	assert.Equal(t, 3, cfg.Scrape.MaxRetries)
}

func TestLoadFromFileMissingExplicitPath(t *testing.T) {
	cfg := DefaultConfig()
	assert.Error(t, cfg.LoadFromFile(filepath.Join(t.TempDir(), "missing.yaml")))
}

func TestMergeFlags(t *testing.T) {
	cfg := DefaultConfig()
	cfg.MergeFlags(map[string]interface{}{
		"db":          "/tmp/flags.db",
		"page-size":   10,
		"rate-limit":  5,
		"max-retries": 7,
		"log-level":   "error",
	})

	assert.Equal(t, "/tmp/flags.db", cfg.Database.Path)
	assert.Equal(t, 10, cfg.Scrape.PageSize)
	assert.Equal(t, 5, cfg.Scrape.RequestsPerMinute)
	assert.Equal(t, 7, cfg.Scrape.MaxRetries)
	assert.Equal(t, "error", cfg.Logging.Level)
}

func TestFlagsOverrideEnv(t *testing.T) {
	t.Setenv("TELELINK_PAGE_SIZE", "50")

	cfg, err := Load("", map[string]interface{}{"page-size": 20})
	require.NoError(t, err)
	assert.Equal(t, 20, cfg.Scrape.PageSize)
}

func TestValidateRejectsBadValues(t *testing.T) {
	cases := []struct {
		name   string
		mutate func(*Config)
	}{
		{"zero page size", func(c *Config) { c.Scrape.PageSize = 0 }},
		{"oversized page", func(c *Config) { c.Scrape.PageSize = 5000 }},
		{"zero rate", func(c *Config) { c.Scrape.RequestsPerMinute = 0 }},
		{"negative retries", func(c *Config) { c.Scrape.MaxRetries = -1 }},
		{"empty db path", func(c *Config) { c.Database.Path = "" }},
		{"bad log level", func(c *Config) { c.Logging.Level = "loud" }},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			cfg := DefaultConfig()
			tc.mutate(cfg)
			assert.Error(t, cfg.Validate())
		})
	}
}
