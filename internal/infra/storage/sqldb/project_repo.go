package sqldb

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/defterlab/defter/internal/core/domain"
	"github.com/defterlab/defter/internal/resilience"
)

var projectColumns = []string{"name", "company_id", "status", "note"}

// ProjectRepo persists projects and serves the derived summary view.
type ProjectRepo struct {
	*Store[*domain.Project]
}

func NewProjectRepo(db *DB, guard *resilience.Guard) *ProjectRepo {
	return &ProjectRepo{
		Store: newStore(db, guard, "projects", projectColumns, nil,
			func() *domain.Project { return &domain.Project{} }),
	}
}

const projectSummaryQuery = `
SELECT p.id AS project_id, p.name, p.status,
       COALESCE(SUM(CASE WHEN t.txn_type = 'invoice_out' THEN t.amount_try
                         WHEN t.txn_type = 'payment_in'  THEN -t.amount_try
                         ELSE 0 END), 0) AS receivable,
       COALESCE(SUM(CASE WHEN t.txn_type = 'invoice_in'  THEN t.amount_try
                         WHEN t.txn_type = 'payment_out' THEN -t.amount_try
                         ELSE 0 END), 0) AS payable,
       COUNT(t.id) AS txn_count
FROM projects p
LEFT JOIN transactions t
       ON t.scope = 'project' AND t.scope_id = p.id AND t.deleted_at IS NULL
WHERE p.deleted_at IS NULL`

// GetWithSummary lists live projects with their transaction totals.
func (r *ProjectRepo) GetWithSummary(ctx context.Context) ([]domain.ProjectSummary, error) {
	defer r.observe("summary_list")()

	var out []domain.ProjectSummary
	err := r.guard.Do(ctx, resilience.ClassRead, func(ctx context.Context) error {
		out = out[:0]
		query := projectSummaryQuery + " GROUP BY p.id, p.name, p.status ORDER BY p.id"
		return r.db.SelectContext(ctx, &out, query)
	})
	if err != nil {
		return nil, fmt.Errorf("failed to load project summaries: %w", err)
	}
	return out, nil
}

// SummaryFor computes the summary view for a single project.
func (r *ProjectRepo) SummaryFor(ctx context.Context, projectID int64) (domain.ProjectSummary, error) {
	defer r.observe("summary")()

	var s domain.ProjectSummary
	err := r.guard.Do(ctx, resilience.ClassRead, func(ctx context.Context) error {
		query := r.db.Rebind(projectSummaryQuery + " AND p.id = ? GROUP BY p.id, p.name, p.status")
		if err := r.db.GetContext(ctx, &s, query, projectID); err != nil {
			if errors.Is(err, sql.ErrNoRows) {
				return domain.ErrNotFound
			}
			return fmt.Errorf("failed to load project summary: %w", err)
		}
		return nil
	})
	if err != nil {
		return domain.ProjectSummary{}, err
	}
	return s, nil
}
