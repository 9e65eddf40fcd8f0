package models

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// Product is a catalog entry sold in several sizes.
type Product struct {
	ID        uuid.UUID       `gorm:"column:id;type:uuid;primaryKey"`
	Title     string          `gorm:"column:title;not null"`
	Slug      string          `gorm:"column:slug;not null;uniqueIndex"`
	Price     decimal.Decimal `gorm:"column:price;type:numeric(10,2);not null"`
	Sizes     []ProductSize   `gorm:"foreignKey:ProductID"`
	CreatedAt time.Time       `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt time.Time       `gorm:"column:updated_at;autoUpdateTime"`
}

// ProductSize holds the stock counters of one size of a product.
// AvailableStock is derived from Stock and ReservedStock and is rewritten on
// every mutation.
type ProductSize struct {
	ID                uuid.UUID `gorm:"column:id;type:uuid;primaryKey"`
	ProductID         uuid.UUID `gorm:"column:product_id;type:uuid;not null;uniqueIndex:ux_product_sizes_product_size"`
	Size              string    `gorm:"column:size;not null;uniqueIndex:ux_product_sizes_product_size"`
	Stock             int       `gorm:"column:stock;not null;default:0"`
	ReservedStock     int       `gorm:"column:reserved_stock;not null;default:0"`
	AvailableStock    int       `gorm:"column:available_stock;not null;default:0"`
	LowStockThreshold int       `gorm:"column:low_stock_threshold;not null;default:5"`
	Version           int64     `gorm:"column:version;not null;default:0"`
	UpdatedAt         time.Time `gorm:"column:updated_at;autoUpdateTime"`
}

func (ProductSize) TableName() string { return "product_sizes" }
