// Package config defines service configuration and how it is loaded.
package config

import (
	"context"
	"fmt"
	"time"
)

// Store drivers.
const (
	StoreMemory = "memory"
	StoreSQLite = "sqlite"
)

// Config contains process configuration.
type Config struct {
	// LogLevel controls verbosity: debug, info, warn, error.
	LogLevel string `koanf:"log_level"`
	// LogFormat is text or json.
	LogFormat string `koanf:"log_format"`
	// LogFile, when set, receives a JSON copy of every record.
	LogFile string `koanf:"log_file"`

	// Addr configures the HTTP listen address, e.g. ":8080".
	Addr string `koanf:"addr"`

	KFactor       float64 `koanf:"k_factor"`
	InitialRating float64 `koanf:"initial_rating"`

	// TopFraction and TopPickProbability shape pair selection.
	TopFraction        float64 `koanf:"top_fraction"`
	TopPickProbability float64 `koanf:"top_pick_probability"`

	// ExclusionWindow is how many recent pairs a session avoids.
	ExclusionWindow int `koanf:"exclusion_window"`
	// PoolSampleSize bounds profiles fetched per pair request; 0 means all.
	PoolSampleSize int `koanf:"pool_sample_size"`

	// MaxLeaderboardLimit caps GET /leaderboard?limit.
	MaxLeaderboardLimit int `koanf:"max_leaderboard_limit"`
	MaxPageSize         int `koanf:"max_page_size"`

	SessionTTLSeconds int `koanf:"session_ttl_seconds"`
	SessionCapacity   int `koanf:"session_capacity"`
	VoteDedupeSize    int `koanf:"vote_dedupe_size"`

	// StoreDriver is memory or sqlite.
	StoreDriver string `koanf:"store_driver"`
	SQLitePath  string `koanf:"sqlite_path"`
	// SeedFile is a YAML file of profiles loaded at startup.
	SeedFile string `koanf:"seed_file"`

	// Enrichment is off while EnrichBaseURL is empty.
	EnrichBaseURL         string  `koanf:"enrich_base_url"`
	EnrichAPIKey          string  `koanf:"enrich_api_key"`
	EnrichRatePerSec      float64 `koanf:"enrich_rate_per_sec"`
	EnrichCacheTTLSeconds int     `koanf:"enrich_cache_ttl_seconds"`
	EnrichTimeoutMS       int     `koanf:"enrich_timeout_ms"`

	// QueueSize bounds the enrichment queue.
	QueueSize int `koanf:"queue_size"`
	// WorkerCount sets the number of enrichment workers.
	WorkerCount int `koanf:"worker_count"`
}

// New returns a Config holding the defaults.
func New(_ context.Context) *Config {
	return &Config{
		LogLevel:              "info",
		LogFormat:             "text",
		Addr:                  ":9080",
		KFactor:               32,
		InitialRating:         1500,
		TopFraction:           0.15,
		TopPickProbability:    0.3,
		ExclusionWindow:       3,
		PoolSampleSize:        100,
		MaxLeaderboardLimit:   100,
		MaxPageSize:           100,
		SessionTTLSeconds:     1800,
		SessionCapacity:       10_000,
		VoteDedupeSize:        50_000,
		StoreDriver:           StoreMemory,
		SQLitePath:            "versus.db",
		EnrichRatePerSec:      2,
		EnrichCacheTTLSeconds: 3600,
		EnrichTimeoutMS:       5000,
		QueueSize:             1024,
		WorkerCount:           2,
	}
}

// Validate reports the first invalid field.
func (c *Config) Validate() error {
	switch {
	case c.Addr == "":
		return fmt.Errorf("%w: addr must not be empty", ErrInvalidConfig)
	case c.KFactor <= 0:
		return fmt.Errorf("%w: k_factor must be positive, got %v", ErrInvalidConfig, c.KFactor)
	case c.InitialRating <= 0:
		return fmt.Errorf("%w: initial_rating must be positive, got %v", ErrInvalidConfig, c.InitialRating)
	case c.TopFraction < 0 || c.TopFraction > 1:
		return fmt.Errorf("%w: top_fraction must be in [0,1], got %v", ErrInvalidConfig, c.TopFraction)
	case c.TopPickProbability < 0 || c.TopPickProbability > 1:
		return fmt.Errorf("%w: top_pick_probability must be in [0,1], got %v", ErrInvalidConfig, c.TopPickProbability)
	case c.ExclusionWindow < 0:
		return fmt.Errorf("%w: exclusion_window must not be negative", ErrInvalidConfig)
	case c.PoolSampleSize < 0:
		return fmt.Errorf("%w: pool_sample_size must not be negative", ErrInvalidConfig)
	case c.StoreDriver != StoreMemory && c.StoreDriver != StoreSQLite:
		return fmt.Errorf("%w: unknown store_driver %q", ErrInvalidConfig, c.StoreDriver)
	case c.StoreDriver == StoreSQLite && c.SQLitePath == "":
		return fmt.Errorf("%w: sqlite_path is required for the sqlite driver", ErrInvalidConfig)
	}
	return nil
}

// SessionTTL returns SessionTTLSeconds as a duration.
func (c *Config) SessionTTL() time.Duration {
	return time.Duration(c.SessionTTLSeconds) * time.Second
}

// EnrichCacheTTL returns EnrichCacheTTLSeconds as a duration.
func (c *Config) EnrichCacheTTL() time.Duration {
	return time.Duration(c.EnrichCacheTTLSeconds) * time.Second
}

// EnrichTimeout returns EnrichTimeoutMS as a duration.
func (c *Config) EnrichTimeout() time.Duration {
	return time.Duration(c.EnrichTimeoutMS) * time.Millisecond
}
