// Package config defines service configuration structures and loading hooks.
//
// Values are layered: built-in defaults from New, then an optional YAML file
// named by FAIRWAY_CONFIG, then FAIRWAY_* environment variables. Keys are
// flat and snake_case, e.g. FAIRWAY_STORE_DSN maps to store_dsn.
package config

import (
	"runtime"
	"time"

	"github.com/okian/fairway/internal/adapters/repository"
	"github.com/okian/fairway/internal/domain/scoring"
)

// Config contains process configuration.
type Config struct {
	// LogLevel controls verbosity: debug, info, warn, error.
	LogLevel string `koanf:"log_level"`
	// LogFormat is text or json.
	LogFormat string `koanf:"log_format"`

	// Addr configures the HTTP listen address, e.g. ":8080".
	Addr            string        `koanf:"addr"`
	ReadTimeout     time.Duration `koanf:"read_timeout"`
	WriteTimeout    time.Duration `koanf:"write_timeout"`
	IdleTimeout     time.Duration `koanf:"idle_timeout"`
	ShutdownTimeout time.Duration `koanf:"shutdown_timeout"`

	// StoreDriver selects the gorm dialect: sqlite or postgres.
	StoreDriver       string        `koanf:"store_driver"`
	StoreDSN          string        `koanf:"store_dsn"`
	StoreMaxOpenConns int           `koanf:"store_max_open_conns"`
	RetryAttempts     int           `koanf:"store_retry_attempts"`
	RetryBackoff      time.Duration `koanf:"store_retry_backoff"`
	BreakerFailures   uint32        `koanf:"breaker_failures"`
	BreakerTimeout    time.Duration `koanf:"breaker_timeout"`

	// RedisAddr enables the review cache when set.
	RedisAddr      string        `koanf:"redis_addr"`
	RedisPassword  string        `koanf:"redis_password"`
	RedisDB        int           `koanf:"redis_db"`
	ReviewCacheTTL time.Duration `koanf:"review_cache_ttl"`

	// MinEvidence is the review count at which a result stops being low confidence.
	MinEvidence      int `koanf:"min_evidence"`
	CandidateLimit   int `koanf:"candidate_limit"`
	ReviewsPerItem   int `koanf:"reviews_per_item"`
	FetchConcurrency int `koanf:"fetch_concurrency"`

	// Similarity weights.
	HandicapUnit       float64 `koanf:"handicap_unit"`
	SwingSpeedUnit     float64 `koanf:"swing_speed_unit"`
	SkillAdjacent      float64 `koanf:"skill_adjacent"`
	SkillDistant       float64 `koanf:"skill_distant"`
	BallFlightMismatch float64 `koanf:"ball_flight_mismatch"`

	// QueueSize bounds the in-memory review ingestion queue.
	QueueSize int `koanf:"queue_size"`
	// WorkerCount sets the number of ingestion workers.
	WorkerCount int `koanf:"worker_count"`
	// DedupeSize sets the size of the submission deduplication cache.
	DedupeSize int `koanf:"dedupe_size"`

	// RateLimitRequests per RateLimitWindow per client IP; zero disables it.
	RateLimitRequests int           `koanf:"rate_limit_requests"`
	RateLimitWindow   time.Duration `koanf:"rate_limit_window"`

	// AdminPasswordHash is a bcrypt hash; empty leaves the API open.
	AdminUsername     string `koanf:"admin_username"`
	AdminPasswordHash string `koanf:"admin_password_hash"`

	// SeedOnStart loads the embedded historical catalog at startup.
	SeedOnStart bool `koanf:"seed_on_start"`
	SeedYears   int  `koanf:"seed_years"`
}

// New creates a Config populated with defaults.
func New() *Config {
	w := scoring.DefaultWeights()
	r := repository.DefaultResilienceConfig()
	return &Config{
		LogLevel:        "info",
		LogFormat:       "text",
		Addr:            ":8080",
		ReadTimeout:     10 * time.Second,
		WriteTimeout:    30 * time.Second,
		IdleTimeout:     2 * time.Minute,
		ShutdownTimeout: 15 * time.Second,

		StoreDriver:       "sqlite",
		StoreDSN:          "file:fairway.db?_pragma=foreign_keys(1)&_pragma=busy_timeout(5000)",
		StoreMaxOpenConns: 10,
		RetryAttempts:     r.RetryAttempts,
		RetryBackoff:      r.RetryBackoff,
		BreakerFailures:   r.BreakerFailures,
		BreakerTimeout:    r.BreakerTimeout,

		ReviewCacheTTL: 5 * time.Minute,

		MinEvidence:      3,
		CandidateLimit:   200,
		ReviewsPerItem:   200,
		FetchConcurrency: 4,

		HandicapUnit:       w.HandicapUnit,
		SwingSpeedUnit:     w.SwingSpeedUnit,
		SkillAdjacent:      w.SkillAdjacent,
		SkillDistant:       w.SkillDistant,
		BallFlightMismatch: w.BallFlightMismatch,

		QueueSize:   10_000,
		WorkerCount: runtime.NumCPU() * 2,
		DedupeSize:  50_000,

		RateLimitRequests: 100,
		RateLimitWindow:   time.Minute,

		AdminUsername: "admin",
		SeedYears:     10,
	}
}

// Weights returns the similarity weights.
func (c *Config) Weights() scoring.Weights {
	return scoring.Weights{
		HandicapUnit:       c.HandicapUnit,
		SwingSpeedUnit:     c.SwingSpeedUnit,
		SkillAdjacent:      c.SkillAdjacent,
		SkillDistant:       c.SkillDistant,
		BallFlightMismatch: c.BallFlightMismatch,
	}
}

// Resilience returns the retry and circuit breaker settings for catalog reads.
func (c *Config) Resilience() repository.ResilienceConfig {
	r := repository.DefaultResilienceConfig()
	r.RetryAttempts = c.RetryAttempts
	r.RetryBackoff = c.RetryBackoff
	r.BreakerFailures = c.BreakerFailures
	r.BreakerTimeout = c.BreakerTimeout
	return r
}

// Store returns the database connection settings.
func (c *Config) Store() repository.OpenConfig {
	return repository.OpenConfig{Driver: c.StoreDriver, DSN: c.StoreDSN, MaxOpenConns: c.StoreMaxOpenConns}
}
