// Package config loads and validates process configuration from environment
// variables for the IBC relayer core.
package config

import (
	"fmt"
	"log"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"
)

// Config holds all process-wide configuration for the relayer. It is loaded
// once at startup and threaded by reference; nothing in the core reads
// process.Env directly after Load returns.
type Config struct {
	// Persistence
	DBFile         string // resolved inside the current working directory, used when DatabaseURL is unset
	DatabaseURL    string // selects the Postgres backend over the KV file when set; no default, per secrets convention
	ErrorLogFile   string
	CombinedLogFile string

	// Logging
	LogLevel string // error, warn, info, debug, verbose

	// Relay loop
	PollInterval time.Duration

	// Staleness thresholds for light-client refresh
	MaxAgeDest time.Duration
	MaxAgeSrc  time.Duration

	// Safety margins applied before a packet is treated as timed out
	TimeoutBlocks   uint64
	TimeoutSeconds  time.Duration

	// Network retry policy (§5)
	MaxRetries        int
	RetryBackoff      time.Duration
	MaxRetryBackoff   time.Duration
	EstimatedBlockTime time.Duration
	EstimatedIndexerTime time.Duration
}

// clampInfo is printed in the startup warning when a value is clamped or
// falls back to its default.
type clampInfo struct {
	name  string
	value string
	note  string
}

// Load reads configuration from environment variables, applying defaults
// and clamps to each numeric setting. Out-of-range numeric values are
// clamped to their bound; non-numeric values fall back to the default.
// Both cases are logged as warnings, never treated as fatal.
func Load() (*Config, error) {
	var warnings []clampInfo

	cfg := &Config{
		DBFile:          getPathEnv("DB_FILE", "relayer.db", &warnings),
		DatabaseURL:     os.Getenv("DATABASE_URL"), // no default: unset means "use the KV file backend"
		ErrorLogFile:    getPathEnv("ERROR_LOG_FILE", "error.log", &warnings),
		CombinedLogFile: getPathEnv("COMBINED_LOG_FILE", "combined.log", &warnings),

		LogLevel: getLogLevel("LOG_LEVEL", "debug", &warnings),

		PollInterval: time.Duration(getEnvIntClamped("RELAY_POLL_INTERVAL", 5000, 1000, 60000, &warnings)) * time.Millisecond,

		MaxAgeDest: time.Duration(getEnvIntClampedNoMax("RELAY_MAX_AGE_DEST", 86400, 60, &warnings)) * time.Second,
		MaxAgeSrc:  time.Duration(getEnvIntClampedNoMax("RELAY_MAX_AGE_SRC", 86400, 60, &warnings)) * time.Second,

		TimeoutBlocks:  uint64(getEnvIntClamped("RELAY_TIMEOUT_BLOCKS", 2, 0, 1000, &warnings)),
		TimeoutSeconds: time.Duration(getEnvIntClamped("RELAY_TIMEOUT_SECONDS", 6, 0, 3600, &warnings)) * time.Second,

		MaxRetries:      getEnvIntClamped("NETWORK_MAX_RETRIES", 3, 0, 10, &warnings),
		RetryBackoff:    time.Duration(getEnvIntClamped("NETWORK_RETRY_BACKOFF", 1000, 100, 10000, &warnings)) * time.Millisecond,
		MaxRetryBackoff: time.Duration(getEnvIntClamped("NETWORK_MAX_RETRY_BACKOFF", 30000, 1000, 120000, &warnings)) * time.Millisecond,

		EstimatedBlockTime:   time.Duration(getEnvIntClamped("ESTIMATED_BLOCK_TIME", 6000, 1000, 60000, &warnings)) * time.Millisecond,
		EstimatedIndexerTime: time.Duration(getEnvIntClamped("ESTIMATED_INDEXER_TIME", 500, 0, 10000, &warnings)) * time.Millisecond,
	}

	for _, w := range warnings {
		log.Printf("[config] %s=%s: %s", w.name, w.value, w.note)
	}

	return cfg, nil
}

// Validate performs structural validation not expressible as a clamp: it
// checks only that MaxRetryBackoff >= RetryBackoff. Path values that escape
// the current working directory never reach it, since Load has already
// replaced them with their defaults; such a path does not make Load or
// Validate fail.
func (c *Config) Validate() error {
	var errs []string
	if c.MaxRetryBackoff < c.RetryBackoff {
		errs = append(errs, "NETWORK_MAX_RETRY_BACKOFF must be >= NETWORK_RETRY_BACKOFF")
	}
	if len(errs) > 0 {
		return fmt.Errorf("configuration validation failed:\n  - %s", strings.Join(errs, "\n  - "))
	}
	return nil
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

// getPathEnv resolves a path-valued env var (DB_FILE, ERROR_LOG_FILE,
// COMBINED_LOG_FILE). A value that would escape the current working
// directory is replaced with defaultValue and recorded as a warning; it is
// not returned as an error.
func getPathEnv(key, defaultValue string, warnings *[]clampInfo) string {
	raw := getEnv(key, defaultValue)

	cwd, err := os.Getwd()
	if err != nil {
		return defaultValue
	}
	abs := raw
	if !filepath.IsAbs(abs) {
		abs = filepath.Join(cwd, abs)
	}
	abs = filepath.Clean(abs)
	cwdClean := filepath.Clean(cwd)
	if abs != cwdClean && !strings.HasPrefix(abs, cwdClean+string(filepath.Separator)) {
		*warnings = append(*warnings, clampInfo{key, raw, "path escapes working directory, falling back to default"})
		return defaultValue
	}
	return raw
}

func getLogLevel(key, defaultValue string, warnings *[]clampInfo) string {
	raw := getEnv(key, defaultValue)
	switch raw {
	case "error", "warn", "info", "debug", "verbose":
		return raw
	default:
		*warnings = append(*warnings, clampInfo{key, raw, fmt.Sprintf("unknown log level, falling back to %q", defaultValue)})
		return defaultValue
	}
}

// getEnvIntClamped parses an integer env var and clamps it into [min, max].
// A non-numeric value falls back to defaultValue.
func getEnvIntClamped(key string, defaultValue, min, max int, warnings *[]clampInfo) int {
	raw := os.Getenv(key)
	if raw == "" {
		return defaultValue
	}
	v, err := strconv.Atoi(raw)
	if err != nil {
		*warnings = append(*warnings, clampInfo{key, raw, fmt.Sprintf("not numeric, falling back to %d", defaultValue)})
		return defaultValue
	}
	if v < min {
		*warnings = append(*warnings, clampInfo{key, raw, fmt.Sprintf("below minimum %d, clamped", min)})
		return min
	}
	if v > max {
		*warnings = append(*warnings, clampInfo{key, raw, fmt.Sprintf("above maximum %d, clamped", max)})
		return max
	}
	return v
}

// getEnvIntClampedNoMax is getEnvIntClamped for the "[min, ∞)" ranges in §6.
func getEnvIntClampedNoMax(key string, defaultValue, min int, warnings *[]clampInfo) int {
	raw := os.Getenv(key)
	if raw == "" {
		return defaultValue
	}
	v, err := strconv.Atoi(raw)
	if err != nil {
		*warnings = append(*warnings, clampInfo{key, raw, fmt.Sprintf("not numeric, falling back to %d", defaultValue)})
		return defaultValue
	}
	if v < min {
		*warnings = append(*warnings, clampInfo{key, raw, fmt.Sprintf("below minimum %d, clamped", min)})
		return min
	}
	return v
}
