package sqldb

import (
	"context"
	"errors"
	"math"
	"testing"
	"time"

	"github.com/defterlab/defter/internal/core/domain"
	"github.com/defterlab/defter/internal/infra/storage"
)

func approx(a, b float64) bool { return math.Abs(a-b) < 1e-9 }

func TestCompanyBalance_ReceivableAndPayable(t *testing.T) {
	_, repos := newTestDB(t)
	ctx := context.Background()

	c := mustCreateCompany(t, repos, "Musteri AS")
	mustCreateTxn(t, repos, domain.ScopeCompany, c.ID, domain.TxnInvoiceOut, 1000)
	mustCreateTxn(t, repos, domain.ScopeCompany, c.ID, domain.TxnPaymentIn, 400)
	mustCreateTxn(t, repos, domain.ScopeCompany, c.ID, domain.TxnInvoiceIn, 300)
	mustCreateTxn(t, repos, domain.ScopeCompany, c.ID, domain.TxnPaymentOut, 120)

	b, err := repos.Companies.BalanceFor(ctx, c.ID)
	if err != nil {
		t.Fatalf("balance failed: %v", err)
	}
	if !approx(b.Receivable, 600) {
		t.Errorf("receivable = %v, want 600", b.Receivable)
	}
	if !approx(b.Payable, 180) {
		t.Errorf("payable = %v, want 180", b.Payable)
	}
}

func TestCompanyBalance_ExcludesSoftDeletedTransactions(t *testing.T) {
	_, repos := newTestDB(t)
	ctx := context.Background()

	c := mustCreateCompany(t, repos, "Musteri AS")
	mustCreateTxn(t, repos, domain.ScopeCompany, c.ID, domain.TxnInvoiceOut, 1000)
	payment := mustCreateTxn(t, repos, domain.ScopeCompany, c.ID, domain.TxnPaymentIn, 400)

	if err := repos.Transactions.SoftDelete(ctx, payment.ID); err != nil {
		t.Fatalf("soft delete failed: %v", err)
	}

	b, err := repos.Companies.BalanceFor(ctx, c.ID)
	if err != nil {
		t.Fatalf("balance failed: %v", err)
	}
	if !approx(b.Receivable, 1000) {
		t.Errorf("receivable = %v, want 1000 after deleting the payment", b.Receivable)
	}

	// Restoring the payment brings the balance back.
	if _, err := repos.Transactions.Restore(ctx, payment.ID); err != nil {
		t.Fatalf("restore failed: %v", err)
	}
	b, err = repos.Companies.BalanceFor(ctx, c.ID)
	if err != nil {
		t.Fatalf("balance failed: %v", err)
	}
	if !approx(b.Receivable, 600) {
		t.Errorf("receivable = %v, want 600 after restore", b.Receivable)
	}
}

func TestCompanyBalance_NoTransactionsIsZero(t *testing.T) {
	_, repos := newTestDB(t)

	c := mustCreateCompany(t, repos, "Sessiz Ltd")
	b, err := repos.Companies.BalanceFor(context.Background(), c.ID)
	if err != nil {
		t.Fatalf("balance failed: %v", err)
	}
	if b.Receivable != 0 || b.Payable != 0 {
		t.Errorf("balance = %+v, want zeros", b)
	}
}

func TestCompanyBalance_MissingCompanyIsNotFound(t *testing.T) {
	_, repos := newTestDB(t)

	_, err := repos.Companies.BalanceFor(context.Background(), 404)
	if !errors.Is(err, domain.ErrNotFound) {
		t.Fatalf("err = %v, want ErrNotFound", err)
	}
}

func TestCompanyBalance_TopByReceivable(t *testing.T) {
	_, repos := newTestDB(t)
	ctx := context.Background()

	small := mustCreateCompany(t, repos, "Small")
	big := mustCreateCompany(t, repos, "Big")
	mustCreateTxn(t, repos, domain.ScopeCompany, small.ID, domain.TxnInvoiceOut, 100)
	mustCreateTxn(t, repos, domain.ScopeCompany, big.ID, domain.TxnInvoiceOut, 9000)

	top, err := repos.Companies.TopByReceivable(ctx, 1)
	if err != nil {
		t.Fatalf("ranking failed: %v", err)
	}
	if len(top) != 1 || top[0].CompanyID != big.ID {
		t.Errorf("top = %+v, want only %q", top, "Big")
	}
}

func TestProjectSummary_TotalsAndCount(t *testing.T) {
	_, repos := newTestDB(t)
	ctx := context.Background()

	p := &domain.Project{Name: "Santiye 1"}
	if err := repos.Projects.Create(ctx, p); err != nil {
		t.Fatalf("failed to create project: %v", err)
	}
	mustCreateTxn(t, repos, domain.ScopeProject, p.ID, domain.TxnInvoiceOut, 500)
	mustCreateTxn(t, repos, domain.ScopeProject, p.ID, domain.TxnPaymentIn, 200)
	mustCreateTxn(t, repos, domain.ScopeProject, p.ID, domain.TxnInvoiceIn, 50)

	s, err := repos.Projects.SummaryFor(ctx, p.ID)
	if err != nil {
		t.Fatalf("summary failed: %v", err)
	}
	if !approx(s.Receivable, 300) || !approx(s.Payable, 50) {
		t.Errorf("summary = %+v, want receivable 300 payable 50", s)
	}
	if s.TxnCount != 3 {
		t.Errorf("txn count = %d, want 3", s.TxnCount)
	}
	if s.Status != domain.ProjectActive {
		t.Errorf("status = %q, want default active", s.Status)
	}
}

func TestTransaction_CreateLocksBaseAmount(t *testing.T) {
	_, repos := newTestDB(t)
	ctx := context.Background()

	c := mustCreateCompany(t, repos, "Doviz AS")
	txn := &domain.Transaction{
		Scope: domain.ScopeCompany, ScopeID: c.ID, Type: domain.TxnInvoiceOut,
		Amount: 100, Currency: "USD", ExchangeRate: 40, TxnDate: time.Now(),
	}
	if err := repos.Transactions.Create(ctx, txn); err != nil {
		t.Fatalf("create failed: %v", err)
	}
	if !approx(txn.AmountTRY, 4000) {
		t.Errorf("amount_try = %v, want 4000", txn.AmountTRY)
	}

	// The locked columns refuse updates.
	_, err := repos.Transactions.Update(ctx, txn.ID, storage.Patch{"amount_try": 1})
	ce, ok := domain.AsClassified(err)
	if !ok || ce.Kind != domain.KindValidation {
		t.Fatalf("err = %v, want validation error for locked column", err)
	}

	// Mutable columns still update.
	got, err := repos.Transactions.Update(ctx, txn.ID, storage.Patch{"description": "export invoice"})
	if err != nil {
		t.Fatalf("update failed: %v", err)
	}
	if got.Description != "export invoice" || !approx(got.AmountTRY, 4000) {
		t.Errorf("updated = %+v, want new description and untouched amount_try", got)
	}
}

func TestTransaction_DefaultsCurrencyAndRate(t *testing.T) {
	_, repos := newTestDB(t)

	c := mustCreateCompany(t, repos, "Yerli Ltd")
	txn := mustCreateTxn(t, repos, domain.ScopeCompany, c.ID, domain.TxnPaymentIn, 250)
	if txn.Currency != "TRY" || !approx(txn.ExchangeRate, 1) || !approx(txn.AmountTRY, 250) {
		t.Errorf("txn = %+v, want TRY defaults", txn)
	}
}

func TestTransaction_ListByScopeAndTotals(t *testing.T) {
	_, repos := newTestDB(t)
	ctx := context.Background()

	a := mustCreateCompany(t, repos, "A")
	b := mustCreateCompany(t, repos, "B")
	mustCreateTxn(t, repos, domain.ScopeCompany, a.ID, domain.TxnInvoiceOut, 100)
	mustCreateTxn(t, repos, domain.ScopeCompany, a.ID, domain.TxnPaymentIn, 30)
	mustCreateTxn(t, repos, domain.ScopeCompany, b.ID, domain.TxnInvoiceOut, 999)

	list, err := repos.Transactions.ListByScope(ctx, domain.ScopeCompany, a.ID, storage.ListFilter{})
	if err != nil {
		t.Fatalf("list failed: %v", err)
	}
	if len(list) != 2 {
		t.Fatalf("list has %d rows, want 2", len(list))
	}
	for _, txn := range list {
		if txn.ScopeID != a.ID {
			t.Errorf("row %+v leaked from another scope", txn)
		}
	}

	totals, err := repos.Transactions.TotalsByType(ctx)
	if err != nil {
		t.Fatalf("totals failed: %v", err)
	}
	if !approx(totals[domain.TxnInvoiceOut], 1099) || !approx(totals[domain.TxnPaymentIn], 30) {
		t.Errorf("totals = %+v", totals)
	}
}

func TestMaterial_StockLevels(t *testing.T) {
	_, repos := newTestDB(t)
	ctx := context.Background()

	m := &domain.Material{Name: "Cimento", Unit: "kg", UnitPrice: 3.5}
	if err := repos.Materials.Create(ctx, m); err != nil {
		t.Fatalf("failed to create material: %v", err)
	}
	in := &domain.StockMovement{MaterialID: m.ID, Direction: domain.StockIn, Quantity: 100}
	out := &domain.StockMovement{MaterialID: m.ID, Direction: domain.StockOut, Quantity: 40}
	if err := repos.StockMovements.Create(ctx, in); err != nil {
		t.Fatalf("failed to create movement: %v", err)
	}
	if err := repos.StockMovements.Create(ctx, out); err != nil {
		t.Fatalf("failed to create movement: %v", err)
	}

	levels, err := repos.Materials.StockLevels(ctx)
	if err != nil {
		t.Fatalf("stock levels failed: %v", err)
	}
	if len(levels) != 1 || !approx(levels[0].OnHand, 60) {
		t.Errorf("levels = %+v, want 60 on hand", levels)
	}

	// Deleting the outgoing movement restores its quantity.
	if err := repos.StockMovements.SoftDelete(ctx, out.ID); err != nil {
		t.Fatalf("soft delete failed: %v", err)
	}
	levels, err = repos.Materials.StockLevels(ctx)
	if err != nil {
		t.Fatalf("stock levels failed: %v", err)
	}
	if !approx(levels[0].OnHand, 100) {
		t.Errorf("on hand = %v, want 100 after deleting the out movement", levels[0].OnHand)
	}
}
