package models

import (
	"time"

	"github.com/google/uuid"

	"github.com/terra-sneakers/terra-backend/pkg/enums"
	"github.com/terra-sneakers/terra-backend/pkg/pagination"
)

// StockAlert flags a size entry that ran low or out of stock.
type StockAlert struct {
	ID                uuid.UUID           `gorm:"column:id;type:uuid;primaryKey"`
	AlertReference    string              `gorm:"column:alert_reference;not null;uniqueIndex"`
	AlertType         enums.AlertType     `gorm:"column:alert_type;type:text;not null"`
	Priority          enums.AlertPriority `gorm:"column:priority;type:text;not null"`
	ProductID         uuid.UUID           `gorm:"column:product_id;type:uuid;not null;index:idx_stock_alerts_open"`
	Size              string              `gorm:"column:size;not null;index:idx_stock_alerts_open"`
	CurrentStock      int                 `gorm:"column:current_stock;not null"`
	Threshold         int                 `gorm:"column:threshold;not null"`
	SuggestedQuantity int                 `gorm:"column:suggested_quantity;not null"`
	Message           string              `gorm:"column:message;not null"`
	IsResolved        bool                `gorm:"column:is_resolved;not null;default:false;index:idx_stock_alerts_open"`
	ResolvedAt        *time.Time          `gorm:"column:resolved_at"`
	ResolutionNotes   *string             `gorm:"column:resolution_notes"`
	ActionTaken       *enums.AlertAction  `gorm:"column:action_taken;type:text"`
	CreatedAt         time.Time           `gorm:"column:created_at;autoCreateTime"`
}

// PageKey orders alert listings newest first.
func (a StockAlert) PageKey() pagination.Cursor {
	return pagination.Cursor{CreatedAt: a.CreatedAt, ID: a.ID}
}
