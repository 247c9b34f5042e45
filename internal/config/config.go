// Package config provides environment-driven configuration for the screener.
package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"
)

// Secret wraps a sensitive string to prevent accidental logging or marshalling.
type Secret string

// String implements fmt.Stringer, returning a redacted placeholder.
func (s Secret) String() string { return "[REDACTED]" }

// GoString implements fmt.GoStringer, returning a redacted placeholder.
func (s Secret) GoString() string { return "[REDACTED]" }

// MarshalText implements encoding.TextMarshaler, returning a redacted placeholder.
func (s Secret) MarshalText() ([]byte, error) { return []byte("[REDACTED]"), nil }

// Value returns the underlying secret string.
func (s Secret) Value() string { return string(s) }

// Config holds all application configuration values.
type Config struct {
	EtherscanURL    string
	EtherscanAPIKey Secret

	RiskLimit        float64
	MaxIters         int
	FetchWorkers     int
	FetchRate        float64
	FetchBurst       int
	FetchMaxAttempts int
	HubThreshold     int
	PruneMode        string
	EdgeDirection    string
	RetainAttributes bool
	PathCutoff       int
	SearchTimeout    time.Duration

	AllowListPath string
	CheckpointDir string
	DatabaseURL   Secret

	LogLevel    string
	ListenHost  string
	Port        string
	CORSOrigins []string
}

// Load reads configuration from environment variables with sensible defaults.
// When SCREENER_CONFIG names a YAML file its values are used for any variable
// the environment leaves unset.
func Load() (*Config, error) {
	file, err := readOverlay(os.Getenv("SCREENER_CONFIG"))
	if err != nil {
		return nil, err
	}

	get := func(key, fallback string) string {
		return envOrDefault(key, file.getOrDefault(key, fallback))
	}

	cfg := &Config{
		EtherscanURL:     get("ETHERSCAN_URL", "https://api.etherscan.io/api"),
		EtherscanAPIKey:  Secret(get("ETHERSCAN_API_KEY", "")),
		PruneMode:        get("PRUNE_MODE", "exclude"),
		EdgeDirection:    get("EDGE_DIRECTION", "undirected"),
		RetainAttributes: get("RETAIN_ATTRIBUTES", "false") == "true",
		AllowListPath:    get("ALLOWLIST_PATH", ""),
		CheckpointDir:    get("CHECKPOINT_DIR", ""),
		DatabaseURL:      Secret(get("DATABASE_URL", "")),
		LogLevel:         get("LOG_LEVEL", "info"),
		ListenHost:       get("LISTEN_HOST", "127.0.0.1"),
		Port:             get("PORT", "3040"),
	}

	if err := cfg.parseNumbers(get); err != nil {
		return nil, err
	}

	origins := get("CORS_ORIGINS", "http://localhost:3002")
	cfg.CORSOrigins = strings.Split(origins, ",")

	for i, o := range cfg.CORSOrigins {
		cfg.CORSOrigins[i] = strings.TrimSpace(o)
	}

	if err := cfg.validate(); err != nil {
		return nil, fmt.Errorf("config validation: %w", err)
	}

	return cfg, nil
}

func (c *Config) parseNumbers(get func(key, fallback string) string) error {
	var err error

	if c.RiskLimit, err = strconv.ParseFloat(get("RISK_LIMIT", "0.01"), 64); err != nil {
		return fmt.Errorf("RISK_LIMIT must be a number")
	}

	if c.FetchRate, err = strconv.ParseFloat(get("FETCH_RATE", "5"), 64); err != nil {
		return fmt.Errorf("FETCH_RATE must be a number")
	}

	ints := []struct {
		key      string
		fallback string
		min, max int
		dst      *int
	}{
		{"MAX_ITERS", "10", 1, 100, &c.MaxIters},
		{"FETCH_WORKERS", "4", 1, 32, &c.FetchWorkers},
		{"FETCH_BURST", "1", 1, 100, &c.FetchBurst},
		{"FETCH_MAX_ATTEMPTS", "4", 1, 10, &c.FetchMaxAttempts},
		{"HUB_THRESHOLD", "10000", 0, 1_000_000, &c.HubThreshold},
		{"PATH_CUTOFF", "4", 1, 8, &c.PathCutoff},
	}

	for _, f := range ints {
		v, err := strconv.Atoi(get(f.key, f.fallback))
		if err != nil || v < f.min || v > f.max {
			return fmt.Errorf("%s must be an integer between %d and %d", f.key, f.min, f.max)
		}
		*f.dst = v
	}

	timeout, err := time.ParseDuration(get("SEARCH_TIMEOUT", "0s"))
	if err != nil || timeout < 0 {
		return fmt.Errorf("SEARCH_TIMEOUT must be a non-negative duration such as 90s or 10m")
	}
	c.SearchTimeout = timeout

	return nil
}

// Addr returns the listen address in host:port format.
func (c *Config) Addr() string {
	return c.ListenHost + ":" + c.Port
}

func envOrDefault(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}

	return fallback
}
