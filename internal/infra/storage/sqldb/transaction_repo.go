package sqldb

import (
	"context"
	"fmt"

	"github.com/defterlab/defter/internal/core/domain"
	"github.com/defterlab/defter/internal/infra/storage"
	"github.com/defterlab/defter/internal/resilience"
)

var transactionColumns = []string{
	"scope", "scope_id", "txn_type", "amount", "currency",
	"exchange_rate", "amount_try", "description", "category_id", "txn_date",
}

// amount_try and exchange_rate are locked at creation; correcting a
// mistake means deleting the line and entering a new one.
var transactionImmutable = []string{"amount_try", "exchange_rate"}

// TransactionRepo persists ledger lines.
type TransactionRepo struct {
	*Store[*domain.Transaction]
}

func NewTransactionRepo(db *DB, guard *resilience.Guard) *TransactionRepo {
	return &TransactionRepo{
		Store: newStore(db, guard, "transactions", transactionColumns, transactionImmutable,
			func() *domain.Transaction { return &domain.Transaction{} }),
	}
}

// Create fills currency defaults and locks the base-currency amount
// before inserting.
func (r *TransactionRepo) Create(ctx context.Context, t *domain.Transaction) error {
	if t.Currency == "" {
		t.Currency = "TRY"
	}
	if t.ExchangeRate == 0 {
		t.ExchangeRate = 1
	}
	t.AmountTRY = t.Amount * t.ExchangeRate
	return r.Store.Create(ctx, t)
}

// ListByScope returns live transactions owned by one scope record,
// newest first.
func (r *TransactionRepo) ListByScope(ctx context.Context, scope domain.TxnScope, scopeID int64, f storage.ListFilter) ([]*domain.Transaction, error) {
	defer r.observe("list_by_scope")()

	query := fmt.Sprintf(
		"SELECT %s FROM transactions WHERE scope = ? AND scope_id = ? AND deleted_at IS NULL ORDER BY txn_date DESC, id DESC",
		r.selectCols(),
	)
	args := []any{string(scope), scopeID}
	if f.Limit > 0 {
		query += " LIMIT ? OFFSET ?"
		args = append(args, f.Limit, f.Offset)
	}

	var out []*domain.Transaction
	err := r.guard.Do(ctx, resilience.ClassRead, func(ctx context.Context) error {
		out = out[:0]
		return r.db.SelectContext(ctx, &out, r.db.Rebind(query), args...)
	})
	if err != nil {
		return nil, fmt.Errorf("failed to list transactions: %w", err)
	}
	return out, nil
}

// TotalsByType sums base-currency amounts per transaction type across
// all live transactions.
func (r *TransactionRepo) TotalsByType(ctx context.Context) (map[domain.TxnType]float64, error) {
	defer r.observe("totals")()

	rows := []struct {
		Type  domain.TxnType `db:"txn_type"`
		Total float64        `db:"total"`
	}{}
	err := r.guard.Do(ctx, resilience.ClassRead, func(ctx context.Context) error {
		rows = rows[:0]
		query := `SELECT txn_type, COALESCE(SUM(amount_try), 0) AS total
		          FROM transactions WHERE deleted_at IS NULL GROUP BY txn_type`
		return r.db.SelectContext(ctx, &rows, query)
	})
	if err != nil {
		return nil, fmt.Errorf("failed to total transactions: %w", err)
	}

	totals := make(map[domain.TxnType]float64, len(rows))
	for _, row := range rows {
		totals[row.Type] = row.Total
	}
	return totals, nil
}
