package models

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/terra-sneakers/terra-backend/pkg/enums"
	"github.com/terra-sneakers/terra-backend/pkg/pagination"
)

// StockMovement is an append-only stock ledger entry.
type StockMovement struct {
	ID                uuid.UUID           `gorm:"column:id;type:uuid;primaryKey"`
	Reference         string              `gorm:"column:reference;not null;uniqueIndex"`
	Type              enums.MovementType  `gorm:"column:type;type:text;not null"`
	ProductID         uuid.UUID           `gorm:"column:product_id;type:uuid;not null;index:idx_stock_movements_size_entry"`
	Size              string              `gorm:"column:size;not null;index:idx_stock_movements_size_entry"`
	Quantity          int                 `gorm:"column:quantity;not null"`
	StockBefore       int                 `gorm:"column:stock_before;not null"`
	StockAfter        int                 `gorm:"column:stock_after;not null"`
	ReservedBefore    int                 `gorm:"column:reserved_before;not null"`
	ReservedAfter     int                 `gorm:"column:reserved_after;not null"`
	Reason            string              `gorm:"column:reason;not null;default:''"`
	OrderReference    *string             `gorm:"column:order_reference"`
	PaymentIntentID   *string             `gorm:"column:payment_intent_id"`
	SupplierReference *string             `gorm:"column:supplier_reference"`
	UnitCost          decimal.NullDecimal `gorm:"column:unit_cost;type:numeric(10,2)"`
	TotalCost         decimal.NullDecimal `gorm:"column:total_cost;type:numeric(12,2)"`
	IsAutomated       bool                `gorm:"column:is_automated;not null"`
	CreatedAt         time.Time           `gorm:"column:created_at;not null;index"`
}

// PageKey orders ledger listings newest first.
func (m StockMovement) PageKey() pagination.Cursor {
	return pagination.Cursor{CreatedAt: m.CreatedAt, ID: m.ID}
}
