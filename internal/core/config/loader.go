package config

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v2"
)

// Load reads configuration from a YAML file.
func Load(path string) (*AppConfig, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	var cfg AppConfig
	// Expand environment variables in the YAML content
	expandedData := os.ExpandEnv(string(data))
	if err := yaml.Unmarshal([]byte(expandedData), &cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config file: %w", err)
	}

	cfg.ApplyDefaults()

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// ApplyDefaults fills unset fields with their documented defaults.
func (cfg *AppConfig) ApplyDefaults() {
	if cfg.Server.Port == 0 {
		cfg.Server.Port = 8080
	}
	if cfg.Database.Driver == "" {
		cfg.Database.Driver = "sqlite3"
	}
	if cfg.Database.DSN == "" {
		cfg.Database.DSN = "defter.db"
	}

	if cfg.RateLimit.Read == 0 {
		cfg.RateLimit.Read = 100
	}
	if cfg.RateLimit.Write == 0 {
		cfg.RateLimit.Write = 30
	}
	if cfg.RateLimit.Delete == 0 {
		cfg.RateLimit.Delete = 10
	}
	if cfg.RateLimit.Heavy == 0 {
		cfg.RateLimit.Heavy = 5
	}
	if cfg.RateLimit.Policy == "" {
		cfg.RateLimit.Policy = "reject"
	}

	if cfg.Retry.MaxRetries == 0 {
		cfg.Retry.MaxRetries = 3
	}
	if cfg.Retry.InitialDelay == 0 {
		cfg.Retry.InitialDelay = 1 * time.Second
	}
	if cfg.Retry.MaxDelay == 0 {
		cfg.Retry.MaxDelay = 10 * time.Second
	}

	if cfg.Trash.RetentionDays == 0 {
		cfg.Trash.RetentionDays = 30
	}
	if cfg.Trash.Schedule == "" {
		cfg.Trash.Schedule = "@hourly"
	}

	if cfg.Cache.Backend == "" {
		cfg.Cache.Backend = "memory"
	}
	if cfg.Cache.TTL == 0 {
		cfg.Cache.TTL = 30 * time.Second
	}
	if cfg.Cache.RefreshInterval == 0 {
		cfg.Cache.RefreshInterval = 10 * time.Second
	}
}

// Validate rejects configurations that cannot be started.
func (cfg *AppConfig) Validate() error {
	switch cfg.Database.Driver {
	case "sqlite3", "postgres":
	default:
		return fmt.Errorf("unsupported database driver %q", cfg.Database.Driver)
	}
	switch cfg.RateLimit.Policy {
	case "reject", "queue":
	default:
		return fmt.Errorf("unsupported rate limit policy %q", cfg.RateLimit.Policy)
	}
	switch cfg.Cache.Backend {
	case "memory":
	case "redis":
		if cfg.Redis.URL == "" {
			return fmt.Errorf("cache backend redis requires redis.url")
		}
	default:
		return fmt.Errorf("unsupported cache backend %q", cfg.Cache.Backend)
	}
	return nil
}
