package sqldb

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/defterlab/defter/internal/core/domain"
	"github.com/defterlab/defter/internal/infra/storage"
	"github.com/defterlab/defter/internal/metrics"
	"github.com/defterlab/defter/internal/resilience"
)

// Record is what every persisted entity exposes to the generic store.
type Record interface {
	EntityType() domain.EntityType
	RecordID() int64
	SetRecordID(id int64)
	StampCreate(now time.Time)
	StampUpdate(now time.Time)
	Validate() error
}

// Store is the generic repository core for one entity table. Every call
// goes through the resilience guard: rate-limit admission inside the
// retry loop, then the storage statement.
type Store[E Record] struct {
	db        *DB
	guard     *resilience.Guard
	table     string
	cols      []string // entity columns beyond the base set
	immutable map[string]bool
	newFn     func() E
	now       func() time.Time
}

func newStore[E Record](db *DB, guard *resilience.Guard, table string, cols []string, immutable []string, newFn func() E) *Store[E] {
	im := make(map[string]bool, len(immutable))
	for _, c := range immutable {
		im[c] = true
	}
	return &Store[E]{
		db:        db,
		guard:     guard,
		table:     table,
		cols:      cols,
		immutable: im,
		newFn:     newFn,
		now:       time.Now,
	}
}

// SetClock overrides the time source. Tests only.
func (s *Store[E]) SetClock(now func() time.Time) { s.now = now }

// Entity returns the entity type this store persists.
func (s *Store[E]) Entity() domain.EntityType { return s.newFn().EntityType() }

func (s *Store[E]) selectCols() string {
	return "id, created_at, updated_at, deleted_at, " + strings.Join(s.cols, ", ")
}

func (s *Store[E]) observe(op string) func() {
	entity := string(s.Entity())
	metrics.StorageOpsTotal.WithLabelValues(entity, op).Inc()
	start := time.Now()
	return func() {
		metrics.OpLatency.WithLabelValues(entity, op).Observe(time.Since(start).Seconds())
	}
}

// Create validates and inserts a new record, assigning its identity.
func (s *Store[E]) Create(ctx context.Context, e E) error {
	defer s.observe("create")()

	if err := e.Validate(); err != nil {
		return domain.NewValidationError(err)
	}
	e.StampCreate(s.now())

	named := make([]string, 0, len(s.cols)+2)
	for _, c := range s.cols {
		named = append(named, ":"+c)
	}
	named = append(named, ":created_at", ":updated_at")
	query := fmt.Sprintf(
		"INSERT INTO %s (%s, created_at, updated_at) VALUES (%s) RETURNING id",
		s.table, strings.Join(s.cols, ", "), strings.Join(named, ", "),
	)

	return s.guard.Do(ctx, resilience.ClassWrite, func(ctx context.Context) error {
		q, args, err := s.db.BindNamed(query, e)
		if err != nil {
			return fmt.Errorf("failed to bind insert: %w", err)
		}
		var id int64
		if err := s.db.GetContext(ctx, &id, q, args...); err != nil {
			return fmt.Errorf("failed to insert %s: %w", s.table, err)
		}
		e.SetRecordID(id)
		return nil
	})
}

// GetByID retrieves a live record. Soft-deleted rows are invisible here.
func (s *Store[E]) GetByID(ctx context.Context, id int64) (E, error) {
	defer s.observe("get")()

	e := s.newFn()
	err := s.guard.Do(ctx, resilience.ClassRead, func(ctx context.Context) error {
		query := s.db.Rebind(fmt.Sprintf(
			"SELECT %s FROM %s WHERE id = ? AND deleted_at IS NULL", s.selectCols(), s.table,
		))
		if err := s.db.GetContext(ctx, e, query, id); err != nil {
			if errors.Is(err, sql.ErrNoRows) {
				return domain.ErrNotFound
			}
			return fmt.Errorf("failed to get %s: %w", s.table, err)
		}
		return nil
	})
	if err != nil {
		var zero E
		return zero, err
	}
	return e, nil
}

// List returns live records ordered by identity.
func (s *Store[E]) List(ctx context.Context, f storage.ListFilter) ([]E, error) {
	defer s.observe("list")()

	query := fmt.Sprintf("SELECT %s FROM %s WHERE deleted_at IS NULL ORDER BY id", s.selectCols(), s.table)
	args := []any{}
	if f.Limit > 0 {
		query += " LIMIT ? OFFSET ?"
		args = append(args, f.Limit, f.Offset)
	}

	var out []E
	err := s.guard.Do(ctx, resilience.ClassRead, func(ctx context.Context) error {
		out = out[:0]
		return s.db.SelectContext(ctx, &out, s.db.Rebind(query), args...)
	})
	if err != nil {
		return nil, fmt.Errorf("failed to list %s: %w", s.table, err)
	}
	return out, nil
}

// Count returns the number of live records.
func (s *Store[E]) Count(ctx context.Context) (int64, error) {
	defer s.observe("count")()

	var n int64
	err := s.guard.Do(ctx, resilience.ClassRead, func(ctx context.Context) error {
		query := fmt.Sprintf("SELECT COUNT(*) FROM %s WHERE deleted_at IS NULL", s.table)
		return s.db.GetContext(ctx, &n, query)
	})
	if err != nil {
		return 0, fmt.Errorf("failed to count %s: %w", s.table, err)
	}
	return n, nil
}

// Update applies a partial update and returns the updated record.
// Unknown and immutable columns are rejected before touching storage.
func (s *Store[E]) Update(ctx context.Context, id int64, patch storage.Patch) (E, error) {
	defer s.observe("update")()

	var zero E
	if len(patch) == 0 {
		return zero, domain.NewValidationError(errors.New("empty update patch"))
	}

	allowed := make(map[string]bool, len(s.cols))
	for _, c := range s.cols {
		allowed[c] = !s.immutable[c]
	}

	keys := make([]string, 0, len(patch))
	for k := range patch {
		if ok, known := allowed[k]; !known || !ok {
			return zero, domain.NewValidationError(fmt.Errorf("column %q cannot be updated", k))
		}
		keys = append(keys, k)
	}
	sort.Strings(keys)

	sets := make([]string, 0, len(keys)+1)
	args := make([]any, 0, len(keys)+2)
	for _, k := range keys {
		sets = append(sets, k+" = ?")
		args = append(args, patch[k])
	}
	sets = append(sets, "updated_at = ?")
	args = append(args, s.now(), id)

	query := fmt.Sprintf(
		"UPDATE %s SET %s WHERE id = ? AND deleted_at IS NULL",
		s.table, strings.Join(sets, ", "),
	)

	e := s.newFn()
	err := s.guard.Do(ctx, resilience.ClassWrite, func(ctx context.Context) error {
		res, err := s.db.ExecContext(ctx, s.db.Rebind(query), args...)
		if err != nil {
			return fmt.Errorf("failed to update %s: %w", s.table, err)
		}
		affected, err := res.RowsAffected()
		if err != nil {
			return err
		}
		if affected == 0 {
			return domain.ErrNotFound
		}
		fetch := s.db.Rebind(fmt.Sprintf(
			"SELECT %s FROM %s WHERE id = ?", s.selectCols(), s.table,
		))
		return s.db.GetContext(ctx, e, fetch, id)
	})
	if err != nil {
		return zero, err
	}
	return e, nil
}

// SoftDelete hides the record from normal reads and files a trash entry
// holding a snapshot of the pre-delete row, atomically.
func (s *Store[E]) SoftDelete(ctx context.Context, id int64) error {
	defer s.observe("soft_delete")()

	return s.guard.Do(ctx, resilience.ClassDelete, func(ctx context.Context) error {
		tx, err := s.db.BeginTxx(ctx, nil)
		if err != nil {
			return fmt.Errorf("failed to begin transaction: %w", err)
		}
		defer tx.Rollback()

		e := s.newFn()
		get := tx.Rebind(fmt.Sprintf(
			"SELECT %s FROM %s WHERE id = ? AND deleted_at IS NULL", s.selectCols(), s.table,
		))
		if err := tx.GetContext(ctx, e, get, id); err != nil {
			if errors.Is(err, sql.ErrNoRows) {
				return domain.ErrNotFound
			}
			return fmt.Errorf("failed to load %s for delete: %w", s.table, err)
		}

		now := s.now()
		upd := tx.Rebind(fmt.Sprintf(
			"UPDATE %s SET deleted_at = ?, updated_at = ? WHERE id = ?", s.table,
		))
		if _, err := tx.ExecContext(ctx, upd, now, now, id); err != nil {
			return fmt.Errorf("failed to soft delete %s: %w", s.table, err)
		}

		snapshot, err := json.Marshal(e)
		if err != nil {
			return fmt.Errorf("failed to snapshot %s: %w", s.table, err)
		}
		ins := tx.Rebind(
			"INSERT INTO trash_entries (entity_type, entity_id, snapshot, deleted_at) VALUES (?, ?, ?, ?)",
		)
		if _, err := tx.ExecContext(ctx, ins, string(s.Entity()), id, string(snapshot), now); err != nil {
			return fmt.Errorf("failed to file trash entry: %w", err)
		}

		return tx.Commit()
	})
}

// Restore clears deleted_at and removes the trash entry, returning the
// record as it is after restoration.
func (s *Store[E]) Restore(ctx context.Context, id int64) (E, error) {
	defer s.observe("restore")()

	var zero E
	err := s.guard.Do(ctx, resilience.ClassWrite, func(ctx context.Context) error {
		tx, err := s.db.BeginTxx(ctx, nil)
		if err != nil {
			return fmt.Errorf("failed to begin transaction: %w", err)
		}
		defer tx.Rollback()

		upd := tx.Rebind(fmt.Sprintf(
			"UPDATE %s SET deleted_at = NULL, updated_at = ? WHERE id = ? AND deleted_at IS NOT NULL",
			s.table,
		))
		res, err := tx.ExecContext(ctx, upd, s.now(), id)
		if err != nil {
			return fmt.Errorf("failed to restore %s: %w", s.table, err)
		}
		affected, err := res.RowsAffected()
		if err != nil {
			return err
		}
		if affected == 0 {
			return domain.ErrNotFound
		}

		del := tx.Rebind("DELETE FROM trash_entries WHERE entity_type = ? AND entity_id = ?")
		if _, err := tx.ExecContext(ctx, del, string(s.Entity()), id); err != nil {
			return fmt.Errorf("failed to clear trash entry: %w", err)
		}

		return tx.Commit()
	})
	if err != nil {
		return zero, err
	}
	return s.GetByID(ctx, id)
}

// Purge removes the row and its trash entry irreversibly.
func (s *Store[E]) Purge(ctx context.Context, id int64) error {
	defer s.observe("purge")()

	return s.guard.Do(ctx, resilience.ClassDelete, func(ctx context.Context) error {
		tx, err := s.db.BeginTxx(ctx, nil)
		if err != nil {
			return fmt.Errorf("failed to begin transaction: %w", err)
		}
		defer tx.Rollback()

		del := tx.Rebind(fmt.Sprintf("DELETE FROM %s WHERE id = ?", s.table))
		res, err := tx.ExecContext(ctx, del, id)
		if err != nil {
			return fmt.Errorf("failed to purge %s: %w", s.table, err)
		}
		affected, err := res.RowsAffected()
		if err != nil {
			return err
		}
		if affected == 0 {
			return domain.ErrNotFound
		}

		delTrash := tx.Rebind("DELETE FROM trash_entries WHERE entity_type = ? AND entity_id = ?")
		if _, err := tx.ExecContext(ctx, delTrash, string(s.Entity()), id); err != nil {
			return fmt.Errorf("failed to clear trash entry: %w", err)
		}

		return tx.Commit()
	})
}

// RestoreByID adapts Restore for type-erased trash dispatch.
func (s *Store[E]) RestoreByID(ctx context.Context, id int64) error {
	_, err := s.Restore(ctx, id)
	return err
}

// PurgeByID adapts Purge for type-erased trash dispatch.
func (s *Store[E]) PurgeByID(ctx context.Context, id int64) error {
	return s.Purge(ctx, id)
}
