package sqldb

import (
	"github.com/defterlab/defter/internal/core/domain"
	"github.com/defterlab/defter/internal/infra/storage"
	"github.com/defterlab/defter/internal/resilience"
)

var (
	_ storage.CompanyRepository       = (*CompanyRepo)(nil)
	_ storage.ProjectRepository       = (*ProjectRepo)(nil)
	_ storage.TransactionRepository   = (*TransactionRepo)(nil)
	_ storage.MaterialRepository      = (*MaterialRepo)(nil)
	_ storage.StockMovementRepository = (*StockMovementRepo)(nil)
	_ storage.CategoryRepository      = (*CategoryRepo)(nil)
	_ storage.TrashRepository         = (*TrashRepo)(nil)
)

// Repositories bundles one repo per entity over a shared connection and
// guard.
type Repositories struct {
	Companies      *CompanyRepo
	Projects       *ProjectRepo
	Transactions   *TransactionRepo
	Materials      *MaterialRepo
	StockMovements *StockMovementRepo
	Categories     *CategoryRepo
	Trash          *TrashRepo
}

func NewRepositories(db *DB, guard *resilience.Guard) *Repositories {
	return &Repositories{
		Companies:      NewCompanyRepo(db, guard),
		Projects:       NewProjectRepo(db, guard),
		Transactions:   NewTransactionRepo(db, guard),
		Materials:      NewMaterialRepo(db, guard),
		StockMovements: NewStockMovementRepo(db, guard),
		Categories:     NewCategoryRepo(db, guard),
		Trash:          NewTrashRepo(db, guard),
	}
}

// EntityStores returns the type-erased dispatch table the trash
// lifecycle manager restores and purges through.
func (r *Repositories) EntityStores() map[domain.EntityType]storage.EntityStore {
	stores := []storage.EntityStore{
		r.Companies, r.Projects, r.Transactions,
		r.Materials, r.StockMovements, r.Categories,
	}
	out := make(map[domain.EntityType]storage.EntityStore, len(stores))
	for _, s := range stores {
		out[s.Entity()] = s
	}
	return out
}
