package inventory

import (
	"context"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/terra-sneakers/terra-backend/pkg/db/models"
)

// SizeRow is a size entry joined with its product, used by read-side reports.
type SizeRow struct {
	ProductID         uuid.UUID
	ProductTitle      string
	Price             decimal.Decimal
	Size              string
	Stock             int
	ReservedStock     int
	AvailableStock    int
	LowStockThreshold int
}

// Repository persists products and their size entries.
type Repository interface {
	WithTx(tx *gorm.DB) Repository
	LockSize(ctx context.Context, productID uuid.UUID, size string) (*models.ProductSize, error)
	UpdateCounters(ctx context.Context, id uuid.UUID, version int64, next Counters) (bool, error)
	FindProduct(ctx context.Context, id uuid.UUID) (*models.Product, error)
	FindSize(ctx context.Context, productID uuid.UUID, size string) (*models.ProductSize, error)
	ProductTitle(ctx context.Context, id uuid.UUID) (string, error)
	CreateProduct(ctx context.Context, product *models.Product) error
	ListSizes(ctx context.Context) ([]SizeRow, error)
	CountProducts(ctx context.Context) (int64, error)
}

type repository struct {
	db *gorm.DB
}

func NewRepository(db *gorm.DB) Repository {
	return &repository{db: db}
}

func (r *repository) WithTx(tx *gorm.DB) Repository {
	if tx == nil {
		return r
	}
	return &repository{db: tx}
}

// LockSize reads the size entry with a row lock held until the transaction ends.
func (r *repository) LockSize(ctx context.Context, productID uuid.UUID, size string) (*models.ProductSize, error) {
	var row models.ProductSize
	err := r.db.WithContext(ctx).
		Clauses(clause.Locking{Strength: "UPDATE"}).
		Where("product_id = ? AND size = ?", productID, size).
		First(&row).Error
	if err != nil {
		return nil, err
	}
	return &row, nil
}

// UpdateCounters writes next only if the row still carries version. It
// reports false when another writer got there first.
func (r *repository) UpdateCounters(ctx context.Context, id uuid.UUID, version int64, next Counters) (bool, error) {
	res := r.db.WithContext(ctx).
		Model(&models.ProductSize{}).
		Where("id = ? AND version = ?", id, version).
		Updates(map[string]any{
			"stock":           next.Stock,
			"reserved_stock":  next.Reserved,
			"available_stock": next.Available,
			"version":         gorm.Expr("version + 1"),
		})
	if res.Error != nil {
		return false, res.Error
	}
	return res.RowsAffected == 1, nil
}

func (r *repository) FindProduct(ctx context.Context, id uuid.UUID) (*models.Product, error) {
	var product models.Product
	err := r.db.WithContext(ctx).
		Preload("Sizes", func(db *gorm.DB) *gorm.DB { return db.Order("size ASC") }).
		First(&product, "id = ?", id).Error
	if err != nil {
		return nil, err
	}
	return &product, nil
}

func (r *repository) FindSize(ctx context.Context, productID uuid.UUID, size string) (*models.ProductSize, error) {
	var row models.ProductSize
	if err := r.db.WithContext(ctx).
		Where("product_id = ? AND size = ?", productID, size).
		First(&row).Error; err != nil {
		return nil, err
	}
	return &row, nil
}

func (r *repository) ProductTitle(ctx context.Context, id uuid.UUID) (string, error) {
	var titles []string
	if err := r.db.WithContext(ctx).
		Model(&models.Product{}).
		Where("id = ?", id).
		Limit(1).
		Pluck("title", &titles).Error; err != nil {
		return "", err
	}
	if len(titles) == 0 {
		return "", gorm.ErrRecordNotFound
	}
	return titles[0], nil
}

func (r *repository) CreateProduct(ctx context.Context, product *models.Product) error {
	return r.db.WithContext(ctx).Create(product).Error
}

func (r *repository) ListSizes(ctx context.Context) ([]SizeRow, error) {
	var rows []SizeRow
	err := r.db.WithContext(ctx).
		Table("product_sizes AS ps").
		Select(`ps.product_id,
			p.title AS product_title,
			p.price,
			ps.size,
			ps.stock,
			ps.reserved_stock,
			ps.available_stock,
			ps.low_stock_threshold`).
		Joins("JOIN products AS p ON p.id = ps.product_id").
		Order("p.title ASC, ps.size ASC").
		Scan(&rows).Error
	return rows, err
}

func (r *repository) CountProducts(ctx context.Context) (int64, error) {
	var count int64
	err := r.db.WithContext(ctx).Model(&models.Product{}).Count(&count).Error
	return count, err
}
