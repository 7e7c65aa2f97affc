package config

import (
	"time"

	rediskv "github.com/defterlab/defter/internal/infra/redis"
	"github.com/defterlab/defter/internal/infra/storage/sqldb"
)

// AppConfig represents the top-level configuration.
type AppConfig struct {
	Server    ServerConfig    `yaml:"server"`
	Logging   LoggingConfig   `yaml:"logging"`
	Database  sqldb.Config    `yaml:"database"`
	Redis     rediskv.Config  `yaml:"redis"`
	RateLimit RateLimitConfig `yaml:"rate_limit"`
	Retry     RetryConfig     `yaml:"retry"`
	Trash     TrashConfig     `yaml:"trash"`
	Cache     CacheConfig     `yaml:"cache"`
}

// ServerConfig holds HTTP server settings for health and metrics.
type ServerConfig struct {
	Port int `yaml:"port"`
}

// LoggingConfig holds logging configuration.
type LoggingConfig struct {
	Level  string `yaml:"level"`  // debug, info, warn, error
	Format string `yaml:"format"` // json, text
}

// RateLimitConfig holds per-class budgets per one-second window.
type RateLimitConfig struct {
	Read   int    `yaml:"read"`
	Write  int    `yaml:"write"`
	Delete int    `yaml:"delete"`
	Heavy  int    `yaml:"heavy"`
	Policy string `yaml:"policy"` // reject, queue
}

// RetryConfig holds retry executor settings.
type RetryConfig struct {
	MaxRetries   int           `yaml:"max_retries"`
	InitialDelay time.Duration `yaml:"initial_delay"`
	MaxDelay     time.Duration `yaml:"max_delay"`
}

// TrashConfig holds the trash retention policy.
type TrashConfig struct {
	RetentionDays int    `yaml:"retention_days"`
	Schedule      string `yaml:"schedule"` // cron spec for purge runs
}

// CacheConfig holds staleness-aware cache settings.
type CacheConfig struct {
	Backend         string        `yaml:"backend"` // memory, redis
	TTL             time.Duration `yaml:"ttl"`
	RefreshInterval time.Duration `yaml:"refresh_interval"`
}
