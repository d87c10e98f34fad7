// Package config loads and validates application configuration from environment variables.
package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"
)

// Config holds all configuration values for the API server.
// Values are populated by Load from environment variables.
type Config struct {
	// Port is the TCP port the HTTP server listens on. Defaults to "8080".
	Port string

	// DatabaseURL is the Postgres connection string. Required.
	DatabaseURL string

	// LogLevel controls the minimum log level. Defaults to "info".
	// Valid values: debug, info, warn, error.
	LogLevel string

	// CORSOrigins is the list of allowed cross-origin request origins.
	// Defaults to ["http://localhost:8081"] (Expo dev server).
	// Set CORS_ORIGINS to a comma-separated list to override.
	CORSOrigins []string

	// MaxBodyBytes caps request bodies. Defaults to 1 MiB.
	MaxBodyBytes int64

	// SweepInterval is how often expired markers are soft-deleted.
	// Defaults to 1m. Zero disables the sweeper.
	SweepInterval time.Duration
}

// Load reads configuration from environment variables and returns a Config.
// Returns an error listing any required variables that are not set.
func Load() (Config, error) {
	cfg := Config{
		Port:        getEnv("PORT", "8080"),
		LogLevel:    getEnv("LOG_LEVEL", "info"),
		CORSOrigins: splitCSV(getEnv("CORS_ORIGINS", "http://localhost:8081")),
	}

	var missing, invalid []string

	cfg.DatabaseURL = os.Getenv("DATABASE_URL")
	if cfg.DatabaseURL == "" {
		missing = append(missing, "DATABASE_URL")
	}

	maxBody, err := strconv.ParseInt(getEnv("MAX_BODY_BYTES", "1048576"), 10, 64)
	if err != nil || maxBody <= 0 {
		invalid = append(invalid, "MAX_BODY_BYTES")
	}
	cfg.MaxBodyBytes = maxBody

	cfg.SweepInterval, err = getDuration("SWEEP_INTERVAL", time.Minute)
	if err != nil {
		invalid = append(invalid, "SWEEP_INTERVAL")
	}

	if len(missing) > 0 {
		return Config{}, fmt.Errorf("required environment variables not set: %s", strings.Join(missing, ", "))
	}
	if len(invalid) > 0 {
		return Config{}, fmt.Errorf("invalid environment variables: %s", strings.Join(invalid, ", "))
	}

	return cfg, nil
}

// ClientConfig holds the settings of the markerctl client.
type ClientConfig struct {
	// APIURL is the base URL of the marker API. Defaults to "http://localhost:8080".
	APIURL string

	// RefreshInterval is the period of the watch loop. Defaults to 30s.
	RefreshInterval time.Duration

	// FetchTimeout bounds a single refresh. Defaults to 15s.
	FetchTimeout time.Duration

	// CachePath is the SQLite snapshot file. Empty disables the snapshot.
	CachePath string

	// LogLevel controls the minimum log level. Defaults to "warn".
	LogLevel string
}

// LoadClient reads the client configuration from MARKERS_* variables.
// Every value has a default, so only malformed values are an error.
func LoadClient() (ClientConfig, error) {
	cfg := ClientConfig{
		APIURL:    getEnv("MARKERS_API_URL", "http://localhost:8080"),
		CachePath: os.Getenv("MARKERS_CACHE_PATH"),
		LogLevel:  getEnv("MARKERS_LOG_LEVEL", "warn"),
	}

	var invalid []string
	var err error

	cfg.RefreshInterval, err = getDuration("MARKERS_REFRESH_INTERVAL", 30*time.Second)
	if err != nil || cfg.RefreshInterval <= 0 {
		invalid = append(invalid, "MARKERS_REFRESH_INTERVAL")
	}
	cfg.FetchTimeout, err = getDuration("MARKERS_FETCH_TIMEOUT", 15*time.Second)
	if err != nil || cfg.FetchTimeout <= 0 {
		invalid = append(invalid, "MARKERS_FETCH_TIMEOUT")
	}

	if len(invalid) > 0 {
		return ClientConfig{}, fmt.Errorf("invalid environment variables: %s", strings.Join(invalid, ", "))
	}
	return cfg, nil
}

// getEnv returns the value of the environment variable named by key,
// or fallback if the variable is not set or is empty.
func getEnv(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func getDuration(key string, fallback time.Duration) (time.Duration, error) {
	v := os.Getenv(key)
	if v == "" {
		return fallback, nil
	}
	d, err := time.ParseDuration(v)
	if err != nil || d < 0 {
		return fallback, fmt.Errorf("%s: invalid duration %q", key, v)
	}
	return d, nil
}

// splitCSV splits a comma-separated string into a trimmed slice, ignoring empty entries.
func splitCSV(s string) []string {
	var out []string
	for _, part := range strings.Split(s, ",") {
		if t := strings.TrimSpace(part); t != "" {
			out = append(out, t)
		}
	}
	return out
}
