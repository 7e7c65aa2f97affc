package sqldb

import (
	"context"
	"fmt"

	"github.com/defterlab/defter/internal/core/domain"
	"github.com/defterlab/defter/internal/infra/storage"
	"github.com/defterlab/defter/internal/resilience"
)

var materialColumns = []string{"name", "unit", "unit_price"}

// MaterialRepo persists materials and serves the derived stock view.
type MaterialRepo struct {
	*Store[*domain.Material]
}

func NewMaterialRepo(db *DB, guard *resilience.Guard) *MaterialRepo {
	return &MaterialRepo{
		Store: newStore(db, guard, "materials", materialColumns, nil,
			func() *domain.Material { return &domain.Material{} }),
	}
}

// StockLevels computes on-hand quantity per live material from its
// non-deleted movements.
func (r *MaterialRepo) StockLevels(ctx context.Context) ([]domain.StockLevel, error) {
	defer r.observe("stock_levels")()

	var out []domain.StockLevel
	err := r.guard.Do(ctx, resilience.ClassRead, func(ctx context.Context) error {
		out = out[:0]
		query := `
SELECT m.id AS material_id, m.name, m.unit,
       COALESCE(SUM(CASE WHEN s.direction = 'in'  THEN s.quantity
                         WHEN s.direction = 'out' THEN -s.quantity
                         ELSE 0 END), 0) AS on_hand
FROM materials m
LEFT JOIN stock_movements s
       ON s.material_id = m.id AND s.deleted_at IS NULL
WHERE m.deleted_at IS NULL
GROUP BY m.id, m.name, m.unit
ORDER BY m.id`
		return r.db.SelectContext(ctx, &out, query)
	})
	if err != nil {
		return nil, fmt.Errorf("failed to load stock levels: %w", err)
	}
	return out, nil
}

var stockMovementColumns = []string{"material_id", "direction", "quantity", "unit_price", "note"}

// StockMovementRepo persists stock movements.
type StockMovementRepo struct {
	*Store[*domain.StockMovement]
}

func NewStockMovementRepo(db *DB, guard *resilience.Guard) *StockMovementRepo {
	return &StockMovementRepo{
		Store: newStore(db, guard, "stock_movements", stockMovementColumns, nil,
			func() *domain.StockMovement { return &domain.StockMovement{} }),
	}
}

// ListByMaterial returns live movements for one material, newest first.
func (r *StockMovementRepo) ListByMaterial(ctx context.Context, materialID int64, f storage.ListFilter) ([]*domain.StockMovement, error) {
	defer r.observe("list_by_material")()

	query := fmt.Sprintf(
		"SELECT %s FROM stock_movements WHERE material_id = ? AND deleted_at IS NULL ORDER BY id DESC",
		r.selectCols(),
	)
	args := []any{materialID}
	if f.Limit > 0 {
		query += " LIMIT ? OFFSET ?"
		args = append(args, f.Limit, f.Offset)
	}

	var out []*domain.StockMovement
	err := r.guard.Do(ctx, resilience.ClassRead, func(ctx context.Context) error {
		out = out[:0]
		return r.db.SelectContext(ctx, &out, r.db.Rebind(query), args...)
	})
	if err != nil {
		return nil, fmt.Errorf("failed to list stock movements: %w", err)
	}
	return out, nil
}
