package sqldb

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/defterlab/defter/internal/core/domain"
	"github.com/defterlab/defter/internal/resilience"
)

var companyColumns = []string{"name", "tax_number", "phone", "city", "note"}

// CompanyRepo persists companies and serves the derived balance view.
type CompanyRepo struct {
	*Store[*domain.Company]
}

func NewCompanyRepo(db *DB, guard *resilience.Guard) *CompanyRepo {
	return &CompanyRepo{
		Store: newStore(db, guard, "companies", companyColumns, nil,
			func() *domain.Company { return &domain.Company{} }),
	}
}

const companyBalanceQuery = `
SELECT c.id AS company_id, c.name,
       COALESCE(SUM(CASE WHEN t.txn_type = 'invoice_out' THEN t.amount_try
                         WHEN t.txn_type = 'payment_in'  THEN -t.amount_try
                         ELSE 0 END), 0) AS receivable,
       COALESCE(SUM(CASE WHEN t.txn_type = 'invoice_in'  THEN t.amount_try
                         WHEN t.txn_type = 'payment_out' THEN -t.amount_try
                         ELSE 0 END), 0) AS payable
FROM companies c
LEFT JOIN transactions t
       ON t.scope = 'company' AND t.scope_id = c.id AND t.deleted_at IS NULL
WHERE c.deleted_at IS NULL`

// GetWithBalance lists every live company with its receivable and
// payable recomputed from non-deleted transactions.
func (r *CompanyRepo) GetWithBalance(ctx context.Context) ([]domain.CompanyBalance, error) {
	defer r.observe("balance_list")()

	var out []domain.CompanyBalance
	err := r.guard.Do(ctx, resilience.ClassRead, func(ctx context.Context) error {
		out = out[:0]
		query := companyBalanceQuery + " GROUP BY c.id, c.name ORDER BY c.id"
		return r.db.SelectContext(ctx, &out, query)
	})
	if err != nil {
		return nil, fmt.Errorf("failed to load company balances: %w", err)
	}
	return out, nil
}

// BalanceFor computes the balance view for a single company.
func (r *CompanyRepo) BalanceFor(ctx context.Context, companyID int64) (domain.CompanyBalance, error) {
	defer r.observe("balance")()

	var b domain.CompanyBalance
	err := r.guard.Do(ctx, resilience.ClassRead, func(ctx context.Context) error {
		query := r.db.Rebind(companyBalanceQuery + " AND c.id = ? GROUP BY c.id, c.name")
		if err := r.db.GetContext(ctx, &b, query, companyID); err != nil {
			if errors.Is(err, sql.ErrNoRows) {
				return domain.ErrNotFound
			}
			return fmt.Errorf("failed to load company balance: %w", err)
		}
		return nil
	})
	if err != nil {
		return domain.CompanyBalance{}, err
	}
	return b, nil
}

// TopByReceivable ranks companies by outstanding receivable.
func (r *CompanyRepo) TopByReceivable(ctx context.Context, limit int) ([]domain.CompanyBalance, error) {
	defer r.observe("balance_top")()

	if limit <= 0 {
		limit = 5
	}
	var out []domain.CompanyBalance
	err := r.guard.Do(ctx, resilience.ClassRead, func(ctx context.Context) error {
		out = out[:0]
		query := r.db.Rebind(
			companyBalanceQuery + " GROUP BY c.id, c.name ORDER BY receivable DESC, c.id LIMIT ?",
		)
		return r.db.SelectContext(ctx, &out, query, limit)
	})
	if err != nil {
		return nil, fmt.Errorf("failed to rank company balances: %w", err)
	}
	return out, nil
}
