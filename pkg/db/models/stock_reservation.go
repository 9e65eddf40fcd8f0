package models

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/terra-sneakers/terra-backend/pkg/enums"
)

// StockReservation is one checkout line held against a payment intent.
type StockReservation struct {
	ID              uuid.UUID               `gorm:"column:id;type:uuid;primaryKey"`
	PaymentIntentID string                  `gorm:"column:payment_intent_id;not null;index"`
	ProductID       uuid.UUID               `gorm:"column:product_id;type:uuid;not null"`
	ProductTitle    string                  `gorm:"column:product_title;not null;default:''"`
	Size            string                  `gorm:"column:size;not null"`
	Quantity        int                     `gorm:"column:quantity;not null"`
	UnitPrice       decimal.Decimal         `gorm:"column:unit_price;type:numeric(10,2);not null"`
	Status          enums.ReservationStatus `gorm:"column:status;type:text;not null;index:idx_stock_reservations_expiry,priority:1"`
	ReservedAt      time.Time               `gorm:"column:reserved_at;not null"`
	ExpiresAt       time.Time               `gorm:"column:expires_at;not null;index:idx_stock_reservations_expiry,priority:2"`
	ResolvedAt      *time.Time              `gorm:"column:resolved_at"`
	ReleaseReason   *string                 `gorm:"column:release_reason"`
}
