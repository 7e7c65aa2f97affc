package domain

import (
	"database/sql"
	"fmt"
	"time"
)

// TxnScope is the owning side of a transaction.
type TxnScope string

const (
	ScopeCompany TxnScope = "company"
	ScopeProject TxnScope = "project"
	ScopeCari    TxnScope = "cari"
)

// TxnType is the fixed four-type transaction model. Invoices raise a
// balance, payments settle it.
type TxnType string

const (
	TxnInvoiceOut TxnType = "invoice_out"
	TxnPaymentIn  TxnType = "payment_in"
	TxnInvoiceIn  TxnType = "invoice_in"
	TxnPaymentOut TxnType = "payment_out"
)

// Transaction is a single ledger line. AmountTRY is the amount converted
// to the base currency at the recorded exchange rate; it is locked at
// creation time and never updated.
type Transaction struct {
	Base
	Scope        TxnScope      `db:"scope"         json:"scope"`
	ScopeID      int64         `db:"scope_id"      json:"scope_id"`
	Type         TxnType       `db:"txn_type"      json:"type"`
	Amount       float64       `db:"amount"        json:"amount"`
	Currency     string        `db:"currency"      json:"currency"`
	ExchangeRate float64       `db:"exchange_rate" json:"exchange_rate"`
	AmountTRY    float64       `db:"amount_try"    json:"amount_try"`
	Description  string        `db:"description"   json:"description,omitempty"`
	CategoryID   sql.NullInt64 `db:"category_id"   json:"category_id,omitempty"`
	TxnDate      time.Time     `db:"txn_date"      json:"txn_date"`
}

func (t *Transaction) EntityType() EntityType { return EntityTransaction }

func (t *Transaction) Validate() error {
	switch t.Scope {
	case ScopeCompany, ScopeProject, ScopeCari:
	default:
		return fmt.Errorf("unknown transaction scope %q", t.Scope)
	}
	if t.ScopeID <= 0 {
		return fmt.Errorf("transaction requires an owning %s", t.Scope)
	}
	switch t.Type {
	case TxnInvoiceOut, TxnPaymentIn, TxnInvoiceIn, TxnPaymentOut:
	default:
		return fmt.Errorf("unknown transaction type %q", t.Type)
	}
	if t.Amount <= 0 {
		return fmt.Errorf("transaction amount must be positive")
	}
	if t.ExchangeRate < 0 {
		return fmt.Errorf("exchange rate must not be negative")
	}
	return nil
}

// CompanyBalance is the derived receivable/payable view for one company.
// Never persisted; always recomputed from non-deleted transactions.
type CompanyBalance struct {
	CompanyID  int64   `db:"company_id" json:"company_id"`
	Name       string  `db:"name"       json:"name"`
	Receivable float64 `db:"receivable" json:"receivable"`
	Payable    float64 `db:"payable"    json:"payable"`
}

// ProjectSummary is the derived totals view for one project.
type ProjectSummary struct {
	ProjectID  int64         `db:"project_id" json:"project_id"`
	Name       string        `db:"name"       json:"name"`
	Status     ProjectStatus `db:"status"     json:"status"`
	Receivable float64       `db:"receivable" json:"receivable"`
	Payable    float64       `db:"payable"    json:"payable"`
	TxnCount   int64         `db:"txn_count"  json:"txn_count"`
}
