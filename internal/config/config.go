// Package config handles environment-driven configuration for the polite CLI.
package config

import (
	"bufio"
	"fmt"
	"log/slog"
	"os"
	"strconv"
	"strings"
)

// Defaults applied when neither flags, environment nor profile set a value.
const (
	DefaultOutput     = "table"
	DefaultLogLevel   = "warn"
	DefaultParallel   = 1
	DefaultFlightAddr = "127.0.0.1:32010"
)

// Config holds the settings the CLI reads from the environment. Zero values
// mean "not set" so that flags and profiles can fill them in.
type Config struct {
	DBPath     string // POLITE_DB: default store path or descriptor
	Output     string // POLITE_OUTPUT: table, csv or json
	LogLevel   string // POLITE_LOG_LEVEL: debug, info, warn, error
	Parallel   int    // POLITE_PARALLEL: read connections for partitioned queries
	FlightAddr string // POLITE_FLIGHT_ADDR: listen address of `polite serve`
	Atomic     bool   // POLITE_ATOMIC: persist frames in a single transaction

	// Warnings collects non-fatal problems found while loading.
	Warnings []string
}

// SlogLevel converts the LogLevel string to a slog.Level. Unset or unknown
// levels map to warn.
func (c *Config) SlogLevel() slog.Level {
	switch strings.ToLower(c.LogLevel) {
	case "debug":
		return slog.LevelDebug
	case "info":
		return slog.LevelInfo
	case "error":
		return slog.LevelError
	default:
		return slog.LevelWarn
	}
}

// LoadFromEnv reads configuration from environment variables.
func LoadFromEnv() (*Config, error) {
	cfg := &Config{
		DBPath:     os.Getenv("POLITE_DB"),
		Output:     strings.ToLower(strings.TrimSpace(os.Getenv("POLITE_OUTPUT"))),
		LogLevel:   os.Getenv("POLITE_LOG_LEVEL"),
		FlightAddr: os.Getenv("POLITE_FLIGHT_ADDR"),
		Atomic:     parseBoolEnvDefault("POLITE_ATOMIC", false),
	}

	if v := strings.TrimSpace(os.Getenv("POLITE_PARALLEL")); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 1 {
			cfg.Warnings = append(cfg.Warnings,
				fmt.Sprintf("POLITE_PARALLEL=%q is not a positive integer, ignoring it", v))
		} else {
			cfg.Parallel = n
		}
	}

	switch cfg.Output {
	case "", "table", "csv", "json":
	default:
		return nil, fmt.Errorf("POLITE_OUTPUT must be one of table, csv, json; got %q", cfg.Output)
	}
	return cfg, nil
}

func parseBoolEnvDefault(key string, defaultVal bool) bool {
	v := strings.TrimSpace(strings.ToLower(os.Getenv(key)))
	if v == "" {
		return defaultVal
	}
	if v == "0" || v == "false" || v == "no" || v == "off" {
		return false
	}
	if v == "1" || v == "true" || v == "yes" || v == "on" {
		return true
	}
	return defaultVal
}

// LoadDotEnv reads a .env file and sets environment variables that are not
// already set. Lines are KEY=VALUE; blank lines and # comments are skipped.
// A missing file is not an error.
func LoadDotEnv(path string) error {
	f, err := os.Open(path) //nolint:gosec // path is caller-controlled
	if err != nil {
		if os.IsNotExist(err) {
			return nil
		}
		return fmt.Errorf("open %s: %w", path, err)
	}
	defer f.Close() //nolint:errcheck

	scanner := bufio.NewScanner(f)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		key, value, ok := strings.Cut(strings.TrimPrefix(line, "export "), "=")
		if !ok {
			continue
		}
		key = strings.TrimSpace(key)
		value = stripQuotes(strings.TrimSpace(value))
		// Only set if not already in the environment (env vars take precedence)
		if os.Getenv(key) == "" {
			if err := os.Setenv(key, value); err != nil {
				return fmt.Errorf("setenv %s: %w", key, err)
			}
		}
	}
	return scanner.Err()
}

func stripQuotes(s string) string {
	if len(s) >= 2 {
		if (s[0] == '"' && s[len(s)-1] == '"') || (s[0] == '\'' && s[len(s)-1] == '\'') {
			return s[1 : len(s)-1]
		}
	}
	return s
}
