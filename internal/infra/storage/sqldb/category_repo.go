package sqldb

import (
	"github.com/defterlab/defter/internal/core/domain"
	"github.com/defterlab/defter/internal/resilience"
)

var categoryColumns = []string{"name", "kind"}

// CategoryRepo persists reporting categories.
type CategoryRepo struct {
	*Store[*domain.Category]
}

func NewCategoryRepo(db *DB, guard *resilience.Guard) *CategoryRepo {
	return &CategoryRepo{
		Store: newStore(db, guard, "categories", categoryColumns, nil,
			func() *domain.Category { return &domain.Category{} }),
	}
}
