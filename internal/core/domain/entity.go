package domain

import (
	"database/sql"
	"fmt"
	"strings"
	"time"
)

// EntityType identifies which table a record belongs to. Trash entries
// reference records by (EntityType, ID).
type EntityType string

const (
	EntityCompany       EntityType = "company"
	EntityProject       EntityType = "project"
	EntityTransaction   EntityType = "transaction"
	EntityMaterial      EntityType = "material"
	EntityStockMovement EntityType = "stock_movement"
	EntityCategory      EntityType = "category"
)

// Base holds the columns shared by every entity table. A record with
// DeletedAt set is invisible to normal reads but stays addressable by ID
// for trash operations.
type Base struct {
	ID        int64        `db:"id"         json:"id"`
	CreatedAt time.Time    `db:"created_at" json:"created_at"`
	UpdatedAt time.Time    `db:"updated_at" json:"updated_at"`
	DeletedAt sql.NullTime `db:"deleted_at" json:"deleted_at,omitempty"`
}

// RecordID returns the primary key.
func (b *Base) RecordID() int64 { return b.ID }

// SetRecordID sets the primary key after insert.
func (b *Base) SetRecordID(id int64) { b.ID = id }

// StampCreate sets both timestamps for a new record.
func (b *Base) StampCreate(now time.Time) {
	b.CreatedAt = now
	b.UpdatedAt = now
}

// StampUpdate bumps the update timestamp.
func (b *Base) StampUpdate(now time.Time) { b.UpdatedAt = now }

// Company is a counterparty the business invoices and pays.
type Company struct {
	Base
	Name      string `db:"name"       json:"name"`
	TaxNumber string `db:"tax_number" json:"tax_number,omitempty"`
	Phone     string `db:"phone"      json:"phone,omitempty"`
	City      string `db:"city"       json:"city,omitempty"`
	Note      string `db:"note"       json:"note,omitempty"`
}

func (c *Company) EntityType() EntityType { return EntityCompany }

// Validate checks domain constraints before insert.
func (c *Company) Validate() error {
	if strings.TrimSpace(c.Name) == "" {
		return fmt.Errorf("company name is required")
	}
	return nil
}

// ProjectStatus tracks the lifecycle of a project.
type ProjectStatus string

const (
	ProjectActive    ProjectStatus = "active"
	ProjectCompleted ProjectStatus = "completed"
	ProjectOnHold    ProjectStatus = "on_hold"
)

// Project groups transactions for a single job or site.
type Project struct {
	Base
	Name      string        `db:"name"       json:"name"`
	CompanyID sql.NullInt64 `db:"company_id" json:"company_id,omitempty"`
	Status    ProjectStatus `db:"status"     json:"status"`
	Note      string        `db:"note"       json:"note,omitempty"`
}

func (p *Project) EntityType() EntityType { return EntityProject }

func (p *Project) Validate() error {
	if strings.TrimSpace(p.Name) == "" {
		return fmt.Errorf("project name is required")
	}
	switch p.Status {
	case ProjectActive, ProjectCompleted, ProjectOnHold:
	case "":
		p.Status = ProjectActive
	default:
		return fmt.Errorf("unknown project status %q", p.Status)
	}
	return nil
}

// CategoryKind splits categories into income and expense sides.
type CategoryKind string

const (
	CategoryIncome  CategoryKind = "income"
	CategoryExpense CategoryKind = "expense"
)

// Category labels transactions for reporting.
type Category struct {
	Base
	Name string       `db:"name" json:"name"`
	Kind CategoryKind `db:"kind" json:"kind"`
}

func (c *Category) EntityType() EntityType { return EntityCategory }

func (c *Category) Validate() error {
	if strings.TrimSpace(c.Name) == "" {
		return fmt.Errorf("category name is required")
	}
	if c.Kind != CategoryIncome && c.Kind != CategoryExpense {
		return fmt.Errorf("unknown category kind %q", c.Kind)
	}
	return nil
}

// Material is a stock item tracked through stock movements.
type Material struct {
	Base
	Name      string  `db:"name"       json:"name"`
	Unit      string  `db:"unit"       json:"unit"`
	UnitPrice float64 `db:"unit_price" json:"unit_price"`
}

func (m *Material) EntityType() EntityType { return EntityMaterial }

func (m *Material) Validate() error {
	if strings.TrimSpace(m.Name) == "" {
		return fmt.Errorf("material name is required")
	}
	if m.UnitPrice < 0 {
		return fmt.Errorf("material unit price must not be negative")
	}
	return nil
}

// StockDirection is the direction of a stock movement.
type StockDirection string

const (
	StockIn  StockDirection = "in"
	StockOut StockDirection = "out"
)

// StockMovement records material entering or leaving stock.
type StockMovement struct {
	Base
	MaterialID int64          `db:"material_id" json:"material_id"`
	Direction  StockDirection `db:"direction"   json:"direction"`
	Quantity   float64        `db:"quantity"    json:"quantity"`
	UnitPrice  float64        `db:"unit_price"  json:"unit_price"`
	Note       string         `db:"note"        json:"note,omitempty"`
}

func (s *StockMovement) EntityType() EntityType { return EntityStockMovement }

func (s *StockMovement) Validate() error {
	if s.MaterialID <= 0 {
		return fmt.Errorf("stock movement requires a material")
	}
	if s.Direction != StockIn && s.Direction != StockOut {
		return fmt.Errorf("unknown stock direction %q", s.Direction)
	}
	if s.Quantity <= 0 {
		return fmt.Errorf("stock quantity must be positive")
	}
	return nil
}

// StockLevel is the derived on-hand quantity for a material.
type StockLevel struct {
	MaterialID int64   `db:"material_id" json:"material_id"`
	Name       string  `db:"name"        json:"name"`
	Unit       string  `db:"unit"        json:"unit"`
	OnHand     float64 `db:"on_hand"     json:"on_hand"`
}
