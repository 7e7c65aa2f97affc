// Package sqldb implements the repository core over an embedded SQLite
// database (PostgreSQL optional), with every call gated by the rate
// limiter and retried through the retry executor.
package sqldb

import (
	"context"
	"embed"
	"fmt"
	"time"

	_ "github.com/jackc/pgx/v5/stdlib" // postgres via database/sql
	"github.com/jmoiron/sqlx"
	_ "github.com/mattn/go-sqlite3" // embedded default engine
	"github.com/pressly/goose/v3"

	"github.com/defterlab/defter/internal/metrics"
)

//go:embed migrations/*.sql
var embedMigrations embed.FS

// Config holds database connection configuration.
type Config struct {
	Driver   string `yaml:"driver"` // sqlite3 (default) or postgres
	DSN      string `yaml:"dsn"`
	MaxConns int    `yaml:"max_conns"`
	MinConns int    `yaml:"min_conns"`
}

// DB wraps the database connection.
type DB struct {
	*sqlx.DB
	driver string
}

// NewDB opens the database, tunes the pool and runs migrations for the
// embedded engine. Postgres schemas are provisioned by an external
// bootstrap step.
func NewDB(ctx context.Context, cfg Config) (*DB, error) {
	driver := cfg.Driver
	if driver == "" {
		driver = "sqlite3"
	}

	driverName := driver
	if driver == "postgres" {
		driverName = "pgx"
	}

	dsn := cfg.DSN
	if driver == "sqlite3" {
		dsn = sqliteDSN(dsn)
	}

	db, err := sqlx.Open(driverName, dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	switch driver {
	case "sqlite3":
		// Single local writer; serializing connections avoids
		// SQLITE_BUSY under concurrent calls.
		if cfg.MaxConns > 0 {
			db.SetMaxOpenConns(cfg.MaxConns)
		} else {
			db.SetMaxOpenConns(1)
		}
	default:
		if cfg.MaxConns > 0 {
			db.SetMaxOpenConns(cfg.MaxConns)
		} else {
			db.SetMaxOpenConns(10)
		}
		if cfg.MinConns > 0 {
			db.SetMaxIdleConns(cfg.MinConns)
		} else {
			db.SetMaxIdleConns(2)
		}
		db.SetConnMaxLifetime(time.Hour)
		db.SetConnMaxIdleTime(30 * time.Minute)
	}

	// Test connection
	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	d := &DB{DB: db, driver: driver}
	if err := d.migrate(); err != nil {
		_ = db.Close()
		return nil, err
	}
	return d, nil
}

// sqliteDSN appends the busy timeout and foreign key pragmas unless the
// caller already set options.
func sqliteDSN(dsn string) string {
	if dsn == "" {
		dsn = "defter.db"
	}
	for _, c := range dsn {
		if c == '?' {
			return dsn
		}
	}
	return dsn + "?_busy_timeout=5000&_foreign_keys=on"
}

// migrate runs the embedded goose migrations for the sqlite engine.
func (db *DB) migrate() error {
	if db.driver != "sqlite3" {
		// External bootstrap owns non-embedded schemas.
		return nil
	}
	goose.SetBaseFS(embedMigrations)
	if err := goose.SetDialect("sqlite3"); err != nil {
		return err
	}
	if err := goose.Up(db.DB.DB, "migrations"); err != nil {
		return fmt.Errorf("failed to migrate db: %w", err)
	}
	return nil
}

// Driver returns the configured driver name.
func (db *DB) Driver() string { return db.driver }

// StartMetricsCollector starts a background goroutine to collect DB metrics.
func (db *DB) StartMetricsCollector(ctx context.Context) {
	go func() {
		ticker := time.NewTicker(15 * time.Second)
		defer ticker.Stop()

		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				stats := db.Stats()
				if stats.MaxOpenConnections > 0 {
					usage := float64(
						stats.OpenConnections,
					) / float64(
						stats.MaxOpenConnections,
					) * 100
					metrics.DBConnectionPoolUsage.Set(usage)
				}
			}
		}
	}()
}

// Health checks if the database is healthy.
func (db *DB) Health(ctx context.Context) error {
	return db.PingContext(ctx)
}
