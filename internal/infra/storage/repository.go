package storage

import (
	"context"
	"time"

	"github.com/defterlab/defter/internal/core/domain"
)

// ListFilter bounds and orders list queries.
type ListFilter struct {
	Limit  int
	Offset int
}

// Patch is a partial update keyed by column name. Unknown or immutable
// columns are rejected as validation errors.
type Patch map[string]any

// CRUD is the generic per-entity repository contract. SoftDelete hides a
// record and files a trash entry; Restore undoes it; Purge removes the
// record and its trash entry irreversibly.
type CRUD[E any] interface {
	Create(ctx context.Context, e E) error
	GetByID(ctx context.Context, id int64) (E, error)
	List(ctx context.Context, f ListFilter) ([]E, error)
	Update(ctx context.Context, id int64, patch Patch) (E, error)
	SoftDelete(ctx context.Context, id int64) error
	Restore(ctx context.Context, id int64) (E, error)
	Purge(ctx context.Context, id int64) error
	Count(ctx context.Context) (int64, error)
}

// CompanyRepository adds the balance view over companies.
type CompanyRepository interface {
	CRUD[*domain.Company]
	GetWithBalance(ctx context.Context) ([]domain.CompanyBalance, error)
	BalanceFor(ctx context.Context, companyID int64) (domain.CompanyBalance, error)
	TopByReceivable(ctx context.Context, limit int) ([]domain.CompanyBalance, error)
}

// ProjectRepository adds the summary view over projects.
type ProjectRepository interface {
	CRUD[*domain.Project]
	GetWithSummary(ctx context.Context) ([]domain.ProjectSummary, error)
	SummaryFor(ctx context.Context, projectID int64) (domain.ProjectSummary, error)
}

// TransactionRepository adds scope-filtered listing and totals.
type TransactionRepository interface {
	CRUD[*domain.Transaction]
	ListByScope(ctx context.Context, scope domain.TxnScope, scopeID int64, f ListFilter) ([]*domain.Transaction, error)
	TotalsByType(ctx context.Context) (map[domain.TxnType]float64, error)
}

// MaterialRepository adds the derived stock level view.
type MaterialRepository interface {
	CRUD[*domain.Material]
	StockLevels(ctx context.Context) ([]domain.StockLevel, error)
}

// StockMovementRepository adds per-material history.
type StockMovementRepository interface {
	CRUD[*domain.StockMovement]
	ListByMaterial(ctx context.Context, materialID int64, f ListFilter) ([]*domain.StockMovement, error)
}

// CategoryRepository has no extra queries.
type CategoryRepository interface {
	CRUD[*domain.Category]
}

// TrashRepository reads the trash table. Writing happens inside the
// entity stores' soft-delete/restore/purge transactions.
type TrashRepository interface {
	List(ctx context.Context) ([]domain.TrashEntry, error)
	Get(ctx context.Context, trashID int64) (domain.TrashEntry, error)
	ListExpired(ctx context.Context, olderThan time.Time) ([]domain.TrashEntry, error)
}

// EntityStore is the type-erased surface the trash lifecycle manager
// dispatches restore/purge calls through.
type EntityStore interface {
	Entity() domain.EntityType
	RestoreByID(ctx context.Context, id int64) error
	PurgeByID(ctx context.Context, id int64) error
}
