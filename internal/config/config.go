// Package config defines service configuration structures and loading hooks.
//
// Conventions:
// - Provide New() to build a Config with defaults.
// - Load layers a YAML file and environment variables over the defaults.
// - Validation failures wrap ErrInvalidConfig; load failures wrap ErrLoadConfig.
package config

import (
	"fmt"
	"strings"
	"time"
)

// Scorer kinds.
const (
	ScorerSimulated = "simulated"
	ScorerHTTP      = "http"
)

// Source kinds.
const (
	SourceMemory = "memory"
	SourceSQLite = "sqlite"
	SourceXLSX   = "xlsx"
)

// Config contains process configuration.
type Config struct {
	// LogLevel controls verbosity: debug, info, warn, error.
	LogLevel string `koanf:"log_level"`

	// Addr configures the HTTP listen address, e.g. ":8080".
	Addr string `koanf:"addr"`

	// LookbackDays is the trailing attendance window.
	LookbackDays int `koanf:"lookback_days"`

	// MinEvaluations is the eligibility threshold. Never below two.
	MinEvaluations int `koanf:"min_evaluations"`

	// RecentScores caps how many recent evaluation scores are sent to the scorer.
	RecentScores int `koanf:"recent_scores"`

	// ScorerKind selects the risk scorer: simulated or http.
	ScorerKind  string `koanf:"scorer_kind"`
	ScorerURL   string `koanf:"scorer_url"`
	ScorerToken string `koanf:"scorer_token"`

	// ScorerTimeoutMS bounds every individual scorer call.
	ScorerTimeoutMS int `koanf:"scorer_timeout_ms"`

	// ScoringLatencyMinMS and ScoringLatencyMaxMS bound the simulated scorer latency.
	ScoringLatencyMinMS int `koanf:"scoring_latency_min_ms"`
	ScoringLatencyMaxMS int `koanf:"scoring_latency_max_ms"`

	// MaxConcurrency caps in-flight scorer calls per run. Zero is unbounded.
	MaxConcurrency int `koanf:"max_concurrency"`

	// SourceKind selects the record source: memory, sqlite or xlsx.
	SourceKind string `koanf:"source_kind"`
	SourcePath string `koanf:"source_path"`

	// DemoPeople seeds the memory source with a synthetic population.
	DemoPeople int `koanf:"demo_people"`

	// QueueSize bounds pending analysis triggers.
	QueueSize int `koanf:"queue_size"`

	// WorkerCount sets the number of analysis workers.
	WorkerCount int `koanf:"worker_count"`

	// RefreshIntervalMS schedules periodic re-analysis. Zero disables it.
	RefreshIntervalMS int `koanf:"refresh_interval_ms"`
}

// New creates a Config populated with defaults.
func New() *Config {
	return &Config{
		LogLevel:            "info",
		Addr:                ":9080",
		LookbackDays:        90,
		MinEvaluations:      2,
		RecentScores:        3,
		ScorerKind:          ScorerSimulated,
		ScorerTimeoutMS:     10_000,
		ScoringLatencyMinMS: 80,
		ScoringLatencyMaxMS: 150,
		SourceKind:          SourceMemory,
		DemoPeople:          50,
		QueueSize:           16,
		WorkerCount:         1,
	}
}

// Lookback returns the attendance window as a duration.
func (c *Config) Lookback() time.Duration {
	return time.Duration(c.LookbackDays) * 24 * time.Hour
}

// ScorerTimeout returns the per-call scorer timeout.
func (c *Config) ScorerTimeout() time.Duration {
	return time.Duration(c.ScorerTimeoutMS) * time.Millisecond
}

// ScoringLatency returns the simulated scorer latency bounds.
func (c *Config) ScoringLatency() (time.Duration, time.Duration) {
	return time.Duration(c.ScoringLatencyMinMS) * time.Millisecond,
		time.Duration(c.ScoringLatencyMaxMS) * time.Millisecond
}

// RefreshInterval returns the periodic re-analysis interval.
func (c *Config) RefreshInterval() time.Duration {
	return time.Duration(c.RefreshIntervalMS) * time.Millisecond
}

// Validate reports the first invalid setting.
func (c *Config) Validate() error {
	c.ScorerKind = strings.ToLower(strings.TrimSpace(c.ScorerKind))
	c.SourceKind = strings.ToLower(strings.TrimSpace(c.SourceKind))

	switch {
	case c.Addr == "":
		return fmt.Errorf("%w: addr must not be empty", ErrInvalidConfig)
	case c.LookbackDays <= 0:
		return fmt.Errorf("%w: lookback_days must be positive", ErrInvalidConfig)
	case c.MinEvaluations < 2:
		return fmt.Errorf("%w: min_evaluations must be at least 2", ErrInvalidConfig)
	case c.RecentScores < 2:
		return fmt.Errorf("%w: recent_scores must be at least 2", ErrInvalidConfig)
	case c.ScorerTimeoutMS <= 0:
		return fmt.Errorf("%w: scorer_timeout_ms must be positive", ErrInvalidConfig)
	case c.ScoringLatencyMinMS < 0 || c.ScoringLatencyMaxMS < c.ScoringLatencyMinMS:
		return fmt.Errorf("%w: scoring latency bounds must satisfy 0 <= min <= max", ErrInvalidConfig)
	case c.MaxConcurrency < 0:
		return fmt.Errorf("%w: max_concurrency must not be negative", ErrInvalidConfig)
	case c.DemoPeople < 0:
		return fmt.Errorf("%w: demo_people must not be negative", ErrInvalidConfig)
	case c.QueueSize <= 0:
		return fmt.Errorf("%w: queue_size must be positive", ErrInvalidConfig)
	case c.WorkerCount <= 0:
		return fmt.Errorf("%w: worker_count must be positive", ErrInvalidConfig)
	case c.RefreshIntervalMS < 0:
		return fmt.Errorf("%w: refresh_interval_ms must not be negative", ErrInvalidConfig)
	}

	switch c.ScorerKind {
	case ScorerSimulated:
	case ScorerHTTP:
		if c.ScorerURL == "" {
			return fmt.Errorf("%w: scorer_url is required for the http scorer", ErrInvalidConfig)
		}
	default:
		return fmt.Errorf("%w: unknown scorer_kind %q", ErrInvalidConfig, c.ScorerKind)
	}

	switch c.SourceKind {
	case SourceMemory:
	case SourceSQLite, SourceXLSX:
		if c.SourcePath == "" {
			return fmt.Errorf("%w: source_path is required for the %s source", ErrInvalidConfig, c.SourceKind)
		}
	default:
		return fmt.Errorf("%w: unknown source_kind %q", ErrInvalidConfig, c.SourceKind)
	}
	return nil
}
