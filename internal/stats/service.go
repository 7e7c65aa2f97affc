// Package stats serves the read-heavy dashboard aggregates through the
// staleness-aware cache so a slow recomputation never blocks a reader.
package stats

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/defterlab/defter/internal/cache"
	"github.com/defterlab/defter/internal/core/domain"
	"github.com/defterlab/defter/internal/infra/storage"
)

const keyPrefix = "stats:"

// Dashboard is the headline totals view.
type Dashboard struct {
	TotalReceivable  float64 `json:"total_receivable"`
	TotalPayable     float64 `json:"total_payable"`
	InvoicedOut      float64 `json:"invoiced_out"`
	PaymentsIn       float64 `json:"payments_in"`
	InvoicedIn       float64 `json:"invoiced_in"`
	PaymentsOut      float64 `json:"payments_out"`
	CompanyCount     int64   `json:"company_count"`
	ProjectCount     int64   `json:"project_count"`
	TransactionCount int64   `json:"transaction_count"`
}

// Service computes and caches dashboard aggregates.
type Service struct {
	companies    storage.CompanyRepository
	projects     storage.ProjectRepository
	transactions storage.TransactionRepository
	cache        *cache.Cache
	log          *slog.Logger
}

func NewService(
	companies storage.CompanyRepository,
	projects storage.ProjectRepository,
	transactions storage.TransactionRepository,
	c *cache.Cache,
) *Service {
	return &Service{
		companies:    companies,
		projects:     projects,
		transactions: transactions,
		cache:        c,
		log:          slog.With("component", "stats"),
	}
}

// Dashboard returns the headline totals, possibly stale while a
// background refresh recomputes them.
func (s *Service) Dashboard(ctx context.Context) (Dashboard, bool, error) {
	res, err := s.cache.Get(ctx, keyPrefix+"dashboard", s.computeDashboard, cache.Options{})
	if err != nil {
		return Dashboard{}, false, err
	}
	var d Dashboard
	if err := cache.Decode(res.Data, &d); err != nil {
		return Dashboard{}, false, fmt.Errorf("failed to decode dashboard stats: %w", err)
	}
	return d, res.Stale, nil
}

func (s *Service) computeDashboard(ctx context.Context) (any, error) {
	totals, err := s.transactions.TotalsByType(ctx)
	if err != nil {
		return nil, err
	}

	d := Dashboard{
		InvoicedOut: totals[domain.TxnInvoiceOut],
		PaymentsIn:  totals[domain.TxnPaymentIn],
		InvoicedIn:  totals[domain.TxnInvoiceIn],
		PaymentsOut: totals[domain.TxnPaymentOut],
	}
	d.TotalReceivable = d.InvoicedOut - d.PaymentsIn
	d.TotalPayable = d.InvoicedIn - d.PaymentsOut

	if d.CompanyCount, err = s.companies.Count(ctx); err != nil {
		return nil, err
	}
	if d.ProjectCount, err = s.projects.Count(ctx); err != nil {
		return nil, err
	}
	if d.TransactionCount, err = s.transactions.Count(ctx); err != nil {
		return nil, err
	}
	return d, nil
}

// Rankings returns the companies with the largest outstanding
// receivables.
func (s *Service) Rankings(ctx context.Context, limit int) ([]domain.CompanyBalance, bool, error) {
	if limit <= 0 {
		limit = 5
	}
	key := fmt.Sprintf("%srankings:%d", keyPrefix, limit)
	fetch := func(ctx context.Context) (any, error) {
		return s.companies.TopByReceivable(ctx, limit)
	}

	res, err := s.cache.Get(ctx, key, fetch, cache.Options{})
	if err != nil {
		return nil, false, err
	}
	var out []domain.CompanyBalance
	if err := cache.Decode(res.Data, &out); err != nil {
		return nil, false, fmt.Errorf("failed to decode rankings: %w", err)
	}
	return out, res.Stale, nil
}

// InvalidateAll drops every cached aggregate. Call it after any write
// that moves a balance.
func (s *Service) InvalidateAll(ctx context.Context) {
	if err := s.cache.InvalidatePrefix(ctx, keyPrefix); err != nil {
		s.log.Warn("failed to invalidate stats cache", "error", err)
	}
}
