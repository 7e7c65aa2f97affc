// Package trash implements the recycle-bin lifecycle over soft-deleted
// records: listing, restore, permanent delete and scheduled purge of
// entries past the retention window.
package trash

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/robfig/cron/v3"

	"github.com/defterlab/defter/internal/core/domain"
	"github.com/defterlab/defter/internal/infra/storage"
	"github.com/defterlab/defter/internal/metrics"
)

// DefaultRetention keeps deleted records recoverable for 30 days.
const DefaultRetention = 30 * 24 * time.Hour

// Manager coordinates the trash table with the per-entity stores.
type Manager struct {
	trash     storage.TrashRepository
	stores    map[domain.EntityType]storage.EntityStore
	retention time.Duration
	now       func() time.Time
	cron      *cron.Cron
	log       *slog.Logger
}

// NewManager builds a manager over the trash repo and the dispatch table
// of entity stores. retention <= 0 falls back to the 30 day default.
func NewManager(trash storage.TrashRepository, stores map[domain.EntityType]storage.EntityStore, retention time.Duration) *Manager {
	if retention <= 0 {
		retention = DefaultRetention
	}
	return &Manager{
		trash:     trash,
		stores:    stores,
		retention: retention,
		now:       time.Now,
		log:       slog.With("component", "trash"),
	}
}

// SetClock overrides the time source. Tests only.
func (m *Manager) SetClock(now func() time.Time) { m.now = now }

// List returns every record currently in the trash.
func (m *Manager) List(ctx context.Context) ([]domain.TrashEntry, error) {
	return m.trash.List(ctx)
}

// Restore puts the record behind a trash entry back among the living.
func (m *Manager) Restore(ctx context.Context, trashID int64) error {
	entry, err := m.trash.Get(ctx, trashID)
	if err != nil {
		return err
	}
	store, ok := m.stores[entry.EntityType]
	if !ok {
		return fmt.Errorf("no store registered for entity type %q", entry.EntityType)
	}
	if err := store.RestoreByID(ctx, entry.EntityID); err != nil {
		return err
	}
	m.log.Info("record restored from trash",
		"entity", entry.EntityType, "id", entry.EntityID)
	return nil
}

// PermanentDelete purges the record behind a trash entry irreversibly.
func (m *Manager) PermanentDelete(ctx context.Context, trashID int64) error {
	entry, err := m.trash.Get(ctx, trashID)
	if err != nil {
		return err
	}
	store, ok := m.stores[entry.EntityType]
	if !ok {
		return fmt.Errorf("no store registered for entity type %q", entry.EntityType)
	}
	if err := store.PurgeByID(ctx, entry.EntityID); err != nil {
		return err
	}
	m.log.Info("record permanently deleted",
		"entity", entry.EntityType, "id", entry.EntityID)
	return nil
}

// EmptyAll purges everything in the trash. Entries that disappear
// mid-run are skipped.
func (m *Manager) EmptyAll(ctx context.Context) (int, error) {
	entries, err := m.trash.List(ctx)
	if err != nil {
		return 0, err
	}
	return m.purgeEntries(ctx, entries)
}

// PurgeExpired purges entries past the retention window and returns how
// many went. Safe to run repeatedly; an empty sweep is a no-op.
func (m *Manager) PurgeExpired(ctx context.Context) (int, error) {
	cutoff := m.now().Add(-m.retention)
	entries, err := m.trash.ListExpired(ctx, cutoff)
	if err != nil {
		return 0, err
	}
	n, err := m.purgeEntries(ctx, entries)
	if n > 0 {
		m.log.Info("expired trash purged", "count", n, "cutoff", cutoff)
	}
	return n, err
}

func (m *Manager) purgeEntries(ctx context.Context, entries []domain.TrashEntry) (int, error) {
	purged := 0
	for _, entry := range entries {
		store, ok := m.stores[entry.EntityType]
		if !ok {
			m.log.Warn("skipping trash entry with unknown entity type",
				"entity", entry.EntityType, "id", entry.EntityID)
			continue
		}
		if err := store.PurgeByID(ctx, entry.EntityID); err != nil {
			if errors.Is(err, domain.ErrNotFound) {
				continue
			}
			return purged, fmt.Errorf("failed to purge %s %d: %w",
				entry.EntityType, entry.EntityID, err)
		}
		purged++
		metrics.TrashPurgedTotal.Inc()
	}
	return purged, nil
}

// StartSchedule runs PurgeExpired on a cron schedule until Stop.
func (m *Manager) StartSchedule(spec string) error {
	c := cron.New()
	_, err := c.AddFunc(spec, func() {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Minute)
		defer cancel()
		if _, err := m.PurgeExpired(ctx); err != nil {
			m.log.Error("scheduled trash purge failed", "error", err)
		}
	})
	if err != nil {
		return fmt.Errorf("failed to schedule trash purge: %w", err)
	}
	c.Start()
	m.cron = c
	m.log.Info("trash purge scheduled", "spec", spec, "retention", m.retention)
	return nil
}

// Stop halts the schedule and waits for a running sweep to finish.
func (m *Manager) Stop() {
	if m.cron != nil {
		<-m.cron.Stop().Done()
		m.cron = nil
	}
}
