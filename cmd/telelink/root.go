package main

import (
	"fmt"
	"os"
	"time"

	"github.com/spf13/cobra"

	"telelink/pkg/config"
	"telelink/pkg/logger"
)

var (
	// Version information
	version   = "1.0.0"
	gitCommit = "unknown"
	buildDate = "unknown"

	// Global flags
	configFile string
	logLevel   string
	dbPath     string
)

// rootCmd represents the base command when called without any subcommands
var rootCmd = &cobra.Command{
	Use:   "telelink",
	Short: "Scrape Telegram channels and collect the links they post",
	Long: `telelink walks Telegram channel histories, extracts every link a message
carries (plain URLs, hyperlinked text, inline buttons), and stores messages
and links in a local SQLite database.

Scrapes are resumable: each channel keeps a cursor at the last ingested
message, so a rerun only fetches what is new. Rate limits imposed by
Telegram are absorbed with a visible countdown instead of failing the run.`,
	Version: fmt.Sprintf("%s (commit: %s, built: %s)", version, gitCommit, buildDate),
}

// Execute adds all child commands to the root command and sets flags appropriately.
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&configFile, "config", "c", "", "config file (default is .telelink.yaml)")
	rootCmd.PersistentFlags().StringVar(&logLevel, "log-level", "", "log level (debug, info, warn, error)")
	rootCmd.PersistentFlags().StringVar(&dbPath, "db", "", "path to the SQLite database")
}

// loadConfig builds the effective configuration from the global flags plus
// any command-local overrides, then initializes the logger.
func loadConfig(extra map[string]interface{}) (*config.Config, error) {
	flags := map[string]interface{}{}
	if logLevel != "" {
		flags["log-level"] = logLevel
	}
	if dbPath != "" {
		flags["db"] = dbPath
	}
	for k, v := range extra {
		flags[k] = v
	}

	cfg, err := config.Load(configFile, flags)
	if err != nil {
		return nil, err
	}
	if err := logger.Initialize(&cfg.Logging); err != nil {
		return nil, err
	}
	return cfg, nil
}

// parseDateFlag accepts a plain date or a full RFC 3339 timestamp.
func parseDateFlag(value string) (*time.Time, error) {
	if value == "" {
		return nil, nil
	}
	for _, layout := range []string{"2006-01-02", time.RFC3339} {
		if t, err := time.Parse(layout, value); err == nil {
			t = t.UTC()
			return &t, nil
		}
	}
	return nil, fmt.Errorf("invalid date %q (expected YYYY-MM-DD or RFC 3339)", value)
}
