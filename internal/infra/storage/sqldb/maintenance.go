package sqldb

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"github.com/google/uuid"

	"github.com/defterlab/defter/internal/resilience"
)

// Maintenance runs backup and integrity operations against the
// database. Both count against the heavy operation class.
type Maintenance struct {
	db    *DB
	guard *resilience.Guard
	log   *slog.Logger
}

func NewMaintenance(db *DB, guard *resilience.Guard) *Maintenance {
	return &Maintenance{db: db, guard: guard, log: slog.With("component", "maintenance")}
}

// Backup writes a consistent copy of the embedded database into dir and
// returns the backup path. Postgres deployments back up with their own
// tooling.
func (m *Maintenance) Backup(ctx context.Context, dir string) (string, error) {
	if m.db.Driver() != "sqlite3" {
		return "", fmt.Errorf("backup is only supported for the embedded sqlite3 engine")
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", fmt.Errorf("failed to create backup dir: %w", err)
	}

	name := fmt.Sprintf("defter-%s-%s.db",
		time.Now().Format("20060102-150405"), uuid.NewString()[:8])
	path := filepath.Join(dir, name)

	err := m.guard.Do(ctx, resilience.ClassHeavy, func(ctx context.Context) error {
		_, err := m.db.ExecContext(ctx, "VACUUM INTO ?", path)
		return err
	})
	if err != nil {
		return "", fmt.Errorf("failed to back up database: %w", err)
	}

	m.log.Info("database backup written", "path", path)
	return path, nil
}

// IntegrityCheck verifies storage health. SQLite runs a full integrity
// scan; postgres falls back to a connectivity check.
func (m *Maintenance) IntegrityCheck(ctx context.Context) error {
	return m.guard.Do(ctx, resilience.ClassHeavy, func(ctx context.Context) error {
		if m.db.Driver() != "sqlite3" {
			return m.db.PingContext(ctx)
		}
		var result string
		if err := m.db.GetContext(ctx, &result, "PRAGMA integrity_check"); err != nil {
			return fmt.Errorf("failed to run integrity check: %w", err)
		}
		if result != "ok" {
			return fmt.Errorf("integrity check reported: %s", result)
		}
		return nil
	})
}
