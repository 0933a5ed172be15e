// Package config defines service configuration structures and loading hooks.
//
// Conventions:
// - Provide New() to build a Config with defaults.
// - Load layers a YAML file and environment variables over the defaults.
// - Validation failures wrap ErrInvalidConfig.
package config

import (
	"fmt"
	"runtime"
	"strings"

	"github.com/okian/coachlens/internal/adapters/cache"
	"github.com/okian/coachlens/internal/adapters/repository"
	"github.com/okian/coachlens/internal/domain/thresholds"
	"github.com/okian/coachlens/pkg/telemetry"
)

// Store drivers.
const (
	DriverMemory   = "memory"
	DriverPostgres = "postgres"
)

// Config contains process configuration.
type Config struct {
	// LogLevel controls verbosity: debug, info, warn, error.
	LogLevel string `koanf:"log_level"`

	// LogFormat selects the log handler: text or json.
	LogFormat string `koanf:"log_format"`

	// Addr configures the HTTP listen address, e.g. ":9080".
	Addr string `koanf:"addr"`

	// QueueSize bounds the in-memory ingest queue.
	QueueSize int `koanf:"queue_size"`

	// WorkerCount sets the number of evaluation workers.
	WorkerCount int `koanf:"worker_count"`

	// DedupeSize bounds the per-day snapshot dedupe set.
	DedupeSize int `koanf:"dedupe_size"`

	// MaxTriageLimit caps GET /triage?limit.
	MaxTriageLimit int `koanf:"max_triage_limit"`

	// BatchLimit bounds concurrent evaluations in a batch.
	BatchLimit int `koanf:"batch_limit"`

	// HistoryLimit caps snapshots kept per student by the memory store.
	HistoryLimit int `koanf:"history_limit"`

	Thresholds thresholds.Table `koanf:"thresholds"`
	Difficulty Difficulty       `koanf:"difficulty"`
	Store      Store            `koanf:"store"`
	Cache      cache.Config     `koanf:"cache"`
	Telemetry  telemetry.Config `koanf:"telemetry"`
}

// Difficulty holds explicit tier assignments consulted before heuristics.
type Difficulty struct {
	// Topics maps course -> topic -> tier.
	Topics  map[string]map[string]string `koanf:"topics"`
	Courses map[string]string            `koanf:"courses"`
}

// Store selects and configures the persistence backend.
type Store struct {
	Driver   string                    `koanf:"driver"`
	Postgres repository.PostgresConfig `koanf:"postgres"`
}

// New creates a Config with defaults.
func New() *Config {
	return &Config{
		LogLevel:       "info",
		LogFormat:      "text",
		Addr:           ":9080",
		QueueSize:      10_000,
		WorkerCount:    runtime.NumCPU() * 2,
		DedupeSize:     100_000,
		MaxTriageLimit: 500,
		BatchLimit:     8,
		HistoryLimit:   365,
		Thresholds:     thresholds.Default(),
		Difficulty: Difficulty{
			Topics:  map[string]map[string]string{},
			Courses: map[string]string{},
		},
		Store: Store{
			Driver:   DriverMemory,
			Postgres: repository.DefaultPostgresConfig(),
		},
		Cache:     cache.DefaultConfig(),
		Telemetry: telemetry.DefaultConfig(),
	}
}

// Validate checks cross-field constraints.
func (c *Config) Validate() error {
	if c.Addr == "" {
		return fmt.Errorf("%w: addr must not be empty", ErrInvalidConfig)
	}
	if c.QueueSize < 1 {
		return fmt.Errorf("%w: queue_size must be positive", ErrInvalidConfig)
	}
	if c.WorkerCount < 1 {
		return fmt.Errorf("%w: worker_count must be positive", ErrInvalidConfig)
	}
	if c.MaxTriageLimit < 1 {
		return fmt.Errorf("%w: max_triage_limit must be positive", ErrInvalidConfig)
	}
	switch c.Store.Driver {
	case DriverMemory:
	case DriverPostgres:
		if c.Store.Postgres.DSN == "" {
			return fmt.Errorf("%w: store.postgres.dsn is required for the postgres driver", ErrInvalidConfig)
		}
	default:
		return fmt.Errorf("%w: unknown store driver %q", ErrInvalidConfig, c.Store.Driver)
	}
	for course, byTopic := range c.Difficulty.Topics {
		for topic, tier := range byTopic {
			if !validTier(tier) {
				return fmt.Errorf("%w: topic %q of %q has unknown tier %q", ErrInvalidConfig, topic, course, tier)
			}
		}
	}
	for name, tier := range c.Difficulty.Courses {
		if !validTier(tier) {
			return fmt.Errorf("%w: course %q has unknown tier %q", ErrInvalidConfig, name, tier)
		}
	}
	if err := c.Thresholds.Validate(); err != nil {
		return fmt.Errorf("%w: %w", ErrInvalidConfig, err)
	}
	return nil
}

// canonicalTier upper-cases a tier name and accepts K8 and K_8 for K-8,
// since environment variable names cannot carry a hyphen.
func canonicalTier(s string) string {
	s = strings.ToUpper(strings.TrimSpace(s))
	switch s {
	case "K8", "K_8":
		return thresholds.TierK8
	}
	return s
}

// Normalize canonicalises tier names in the difficulty tables and the
// tier factor keys. A non-canonical factor key is an explicit override
// and wins over the canonical default it collides with.
func (c *Config) Normalize() {
	for _, byTopic := range c.Difficulty.Topics {
		for topic, tier := range byTopic {
			byTopic[topic] = canonicalTier(tier)
		}
	}
	for course, tier := range c.Difficulty.Courses {
		c.Difficulty.Courses[course] = canonicalTier(tier)
	}

	factors := make(map[string]float64, len(c.Thresholds.TopicDifficulty))
	for tier, f := range c.Thresholds.TopicDifficulty {
		if canonicalTier(tier) == tier {
			factors[tier] = f
		}
	}
	for tier, f := range c.Thresholds.TopicDifficulty {
		if key := canonicalTier(tier); key != tier {
			factors[key] = f
		}
	}
	c.Thresholds.TopicDifficulty = factors
}

func validTier(t string) bool {
	switch t {
	case thresholds.TierK8, thresholds.TierHS, thresholds.TierAP:
		return true
	}
	return false
}
