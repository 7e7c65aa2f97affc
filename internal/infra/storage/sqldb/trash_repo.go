package sqldb

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/defterlab/defter/internal/core/domain"
	"github.com/defterlab/defter/internal/metrics"
	"github.com/defterlab/defter/internal/resilience"
)

// TrashRepo reads the trash table. Rows are written and cleared inside
// the entity stores' soft-delete, restore and purge transactions.
type TrashRepo struct {
	db    *DB
	guard *resilience.Guard
}

func NewTrashRepo(db *DB, guard *resilience.Guard) *TrashRepo {
	return &TrashRepo{db: db, guard: guard}
}

const trashColumns = "id, entity_type, entity_id, snapshot, deleted_at"

// List returns every trash entry, most recently deleted first.
func (r *TrashRepo) List(ctx context.Context) ([]domain.TrashEntry, error) {
	metrics.StorageOpsTotal.WithLabelValues("trash", "list").Inc()

	var out []domain.TrashEntry
	err := r.guard.Do(ctx, resilience.ClassRead, func(ctx context.Context) error {
		out = out[:0]
		query := fmt.Sprintf("SELECT %s FROM trash_entries ORDER BY deleted_at DESC, id DESC", trashColumns)
		return r.db.SelectContext(ctx, &out, query)
	})
	if err != nil {
		return nil, fmt.Errorf("failed to list trash: %w", err)
	}
	return out, nil
}

// Get returns a single trash entry by its own identity.
func (r *TrashRepo) Get(ctx context.Context, trashID int64) (domain.TrashEntry, error) {
	metrics.StorageOpsTotal.WithLabelValues("trash", "get").Inc()

	var e domain.TrashEntry
	err := r.guard.Do(ctx, resilience.ClassRead, func(ctx context.Context) error {
		query := r.db.Rebind(fmt.Sprintf("SELECT %s FROM trash_entries WHERE id = ?", trashColumns))
		if err := r.db.GetContext(ctx, &e, query, trashID); err != nil {
			if errors.Is(err, sql.ErrNoRows) {
				return domain.ErrNotFound
			}
			return fmt.Errorf("failed to get trash entry: %w", err)
		}
		return nil
	})
	if err != nil {
		return domain.TrashEntry{}, err
	}
	return e, nil
}

// ListExpired returns entries deleted before the retention cutoff.
func (r *TrashRepo) ListExpired(ctx context.Context, olderThan time.Time) ([]domain.TrashEntry, error) {
	metrics.StorageOpsTotal.WithLabelValues("trash", "list_expired").Inc()

	var out []domain.TrashEntry
	err := r.guard.Do(ctx, resilience.ClassRead, func(ctx context.Context) error {
		out = out[:0]
		query := r.db.Rebind(fmt.Sprintf(
			"SELECT %s FROM trash_entries WHERE deleted_at < ? ORDER BY deleted_at, id", trashColumns,
		))
		return r.db.SelectContext(ctx, &out, query, olderThan)
	})
	if err != nil {
		return nil, fmt.Errorf("failed to list expired trash: %w", err)
	}
	return out, nil
}
