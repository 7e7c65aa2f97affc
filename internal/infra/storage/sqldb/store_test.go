package sqldb

import (
	"context"
	"encoding/json"
	"errors"
	"path/filepath"
	"testing"
	"time"

	"github.com/defterlab/defter/internal/core/domain"
	"github.com/defterlab/defter/internal/infra/storage"
	"github.com/defterlab/defter/internal/resilience"
)

func newTestDB(t *testing.T) (*DB, *Repositories) {
	t.Helper()

	dsn := filepath.Join(t.TempDir(), "defter_test.db")
	db, err := NewDB(context.Background(), Config{Driver: "sqlite3", DSN: dsn})
	if err != nil {
		t.Fatalf("failed to open test db: %v", err)
	}
	t.Cleanup(func() { _ = db.Close() })

	// Generous budgets and fast retries so tests never sit in backoff.
	limiter := resilience.NewLimiter(resilience.LimiterConfig{
		Read: 10000, Write: 10000, Delete: 10000, Heavy: 100,
		Window: time.Second, Policy: resilience.PolicyReject,
	})
	guard := resilience.NewGuard(limiter, resilience.RetryConfig{
		MaxRetries: 1, InitialDelay: 5 * time.Millisecond, MaxDelay: 20 * time.Millisecond,
	})
	return db, NewRepositories(db, guard)
}

func mustCreateCompany(t *testing.T, repos *Repositories, name string) *domain.Company {
	t.Helper()
	c := &domain.Company{Name: name, City: "Istanbul"}
	if err := repos.Companies.Create(context.Background(), c); err != nil {
		t.Fatalf("failed to create company: %v", err)
	}
	if c.ID == 0 {
		t.Fatal("create did not assign an id")
	}
	return c
}

func mustCreateTxn(t *testing.T, repos *Repositories, scope domain.TxnScope, scopeID int64, typ domain.TxnType, amount float64) *domain.Transaction {
	t.Helper()
	txn := &domain.Transaction{
		Scope: scope, ScopeID: scopeID, Type: typ,
		Amount: amount, TxnDate: time.Now(),
	}
	if err := repos.Transactions.Create(context.Background(), txn); err != nil {
		t.Fatalf("failed to create transaction: %v", err)
	}
	return txn
}

func TestStore_CreateAndGet(t *testing.T) {
	_, repos := newTestDB(t)
	ctx := context.Background()

	c := mustCreateCompany(t, repos, "Acme Insaat")

	got, err := repos.Companies.GetByID(ctx, c.ID)
	if err != nil {
		t.Fatalf("get failed: %v", err)
	}
	if got.Name != "Acme Insaat" || got.City != "Istanbul" {
		t.Errorf("got %+v, want created fields back", got)
	}
	if got.CreatedAt.IsZero() || got.UpdatedAt.IsZero() {
		t.Error("timestamps not stamped on create")
	}
}

func TestStore_CreateRejectsInvalid(t *testing.T) {
	_, repos := newTestDB(t)

	err := repos.Companies.Create(context.Background(), &domain.Company{Name: "  "})
	ce, ok := domain.AsClassified(err)
	if !ok || ce.Kind != domain.KindValidation {
		t.Fatalf("err = %v, want validation error", err)
	}
	if ce.Retryable {
		t.Error("validation error must not be retryable")
	}
}

func TestStore_GetMissingReturnsNotFound(t *testing.T) {
	_, repos := newTestDB(t)

	_, err := repos.Companies.GetByID(context.Background(), 999)
	if !errors.Is(err, domain.ErrNotFound) {
		t.Fatalf("err = %v, want ErrNotFound", err)
	}
	if _, ok := domain.AsClassified(err); ok {
		t.Error("NotFound must pass through unclassified")
	}
}

func TestStore_SoftDeleteHidesRecordAndFilesTrash(t *testing.T) {
	_, repos := newTestDB(t)
	ctx := context.Background()

	c := mustCreateCompany(t, repos, "Gone Ltd")
	if err := repos.Companies.SoftDelete(ctx, c.ID); err != nil {
		t.Fatalf("soft delete failed: %v", err)
	}

	if _, err := repos.Companies.GetByID(ctx, c.ID); !errors.Is(err, domain.ErrNotFound) {
		t.Errorf("get after soft delete = %v, want ErrNotFound", err)
	}

	entries, err := repos.Trash.List(ctx)
	if err != nil {
		t.Fatalf("trash list failed: %v", err)
	}
	if len(entries) != 1 {
		t.Fatalf("trash has %d entries, want 1", len(entries))
	}
	e := entries[0]
	if e.EntityType != domain.EntityCompany || e.EntityID != c.ID {
		t.Errorf("trash entry = %+v, want company %d", e, c.ID)
	}

	var snap domain.Company
	if err := json.Unmarshal(e.Snapshot, &snap); err != nil {
		t.Fatalf("snapshot is not valid json: %v", err)
	}
	if snap.Name != "Gone Ltd" {
		t.Errorf("snapshot name = %q, want pre-delete value", snap.Name)
	}
}

func TestStore_RestoreBringsRecordBack(t *testing.T) {
	_, repos := newTestDB(t)
	ctx := context.Background()

	c := mustCreateCompany(t, repos, "Phoenix AS")
	if err := repos.Companies.SoftDelete(ctx, c.ID); err != nil {
		t.Fatalf("soft delete failed: %v", err)
	}

	restored, err := repos.Companies.Restore(ctx, c.ID)
	if err != nil {
		t.Fatalf("restore failed: %v", err)
	}
	if restored.ID != c.ID || restored.Name != "Phoenix AS" {
		t.Errorf("restored = %+v, want original record", restored)
	}
	if restored.DeletedAt.Valid {
		t.Error("restored record still flagged deleted")
	}

	entries, err := repos.Trash.List(ctx)
	if err != nil {
		t.Fatalf("trash list failed: %v", err)
	}
	if len(entries) != 0 {
		t.Errorf("trash has %d entries after restore, want 0", len(entries))
	}
}

func TestStore_RestoreLiveRecordIsNotFound(t *testing.T) {
	_, repos := newTestDB(t)

	c := mustCreateCompany(t, repos, "Alive")
	_, err := repos.Companies.Restore(context.Background(), c.ID)
	if !errors.Is(err, domain.ErrNotFound) {
		t.Fatalf("restore of live record = %v, want ErrNotFound", err)
	}
}

func TestStore_PurgeRemovesRowAndTrash(t *testing.T) {
	_, repos := newTestDB(t)
	ctx := context.Background()

	c := mustCreateCompany(t, repos, "Dust")
	if err := repos.Companies.SoftDelete(ctx, c.ID); err != nil {
		t.Fatalf("soft delete failed: %v", err)
	}
	if err := repos.Companies.Purge(ctx, c.ID); err != nil {
		t.Fatalf("purge failed: %v", err)
	}

	if _, err := repos.Companies.Restore(ctx, c.ID); !errors.Is(err, domain.ErrNotFound) {
		t.Errorf("restore after purge = %v, want ErrNotFound", err)
	}
	entries, _ := repos.Trash.List(ctx)
	if len(entries) != 0 {
		t.Errorf("trash has %d entries after purge, want 0", len(entries))
	}
}

func TestStore_UpdatePatch(t *testing.T) {
	_, repos := newTestDB(t)
	ctx := context.Background()

	c := mustCreateCompany(t, repos, "Old Name")
	updated, err := repos.Companies.Update(ctx, c.ID, storage.Patch{"name": "New Name", "phone": "0212"})
	if err != nil {
		t.Fatalf("update failed: %v", err)
	}
	if updated.Name != "New Name" || updated.Phone != "0212" {
		t.Errorf("updated = %+v, want patched fields", updated)
	}
	if !updated.UpdatedAt.After(updated.CreatedAt) {
		t.Error("update did not bump updated_at")
	}
}

func TestStore_UpdateRejectsUnknownColumn(t *testing.T) {
	_, repos := newTestDB(t)

	c := mustCreateCompany(t, repos, "Strict")
	_, err := repos.Companies.Update(context.Background(), c.ID, storage.Patch{"nonexistent": 1})
	ce, ok := domain.AsClassified(err)
	if !ok || ce.Kind != domain.KindValidation {
		t.Fatalf("err = %v, want validation error", err)
	}
}

func TestStore_UpdateMissingReturnsNotFound(t *testing.T) {
	_, repos := newTestDB(t)

	_, err := repos.Companies.Update(context.Background(), 12345, storage.Patch{"name": "x"})
	if !errors.Is(err, domain.ErrNotFound) {
		t.Fatalf("err = %v, want ErrNotFound", err)
	}
}

func TestStore_ListAndCountSkipDeleted(t *testing.T) {
	_, repos := newTestDB(t)
	ctx := context.Background()

	a := mustCreateCompany(t, repos, "A")
	mustCreateCompany(t, repos, "B")
	if err := repos.Companies.SoftDelete(ctx, a.ID); err != nil {
		t.Fatalf("soft delete failed: %v", err)
	}

	list, err := repos.Companies.List(ctx, storage.ListFilter{})
	if err != nil {
		t.Fatalf("list failed: %v", err)
	}
	if len(list) != 1 || list[0].Name != "B" {
		t.Errorf("list = %+v, want only the live company", list)
	}

	n, err := repos.Companies.Count(ctx)
	if err != nil {
		t.Fatalf("count failed: %v", err)
	}
	if n != 1 {
		t.Errorf("count = %d, want 1", n)
	}
}
