package ledger

import (
	"context"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/terra-sneakers/terra-backend/pkg/db/models"
	"github.com/terra-sneakers/terra-backend/pkg/enums"
	"github.com/terra-sneakers/terra-backend/pkg/pagination"
)

// Filter narrows ledger listings.
type Filter struct {
	ProductID *uuid.UUID
	Size      string
	Type      *enums.MovementType
	Since     *time.Time
}

// SizeSums is the net effect of every ledger entry recorded for one size entry.
type SizeSums struct {
	ProductID     uuid.UUID
	Size          string
	StockDelta    int
	ReservedDelta int
	Entries       int
}

// Repository manages persistence for stock ledger entries.
type Repository interface {
	WithTx(tx *gorm.DB) Repository
	Create(ctx context.Context, entry *models.StockMovement) error
	List(ctx context.Context, filter Filter, params pagination.Params) ([]models.StockMovement, error)
	CountSince(ctx context.Context, since time.Time) (int64, error)
	SumsBySize(ctx context.Context) ([]SizeSums, error)
	ListAfter(ctx context.Context, after *pagination.Cursor, until time.Time, limit int) ([]models.StockMovement, error)
}

type repository struct {
	db *gorm.DB
}

// NewRepository returns a ledger repository bound to the provided database.
func NewRepository(db *gorm.DB) Repository {
	return &repository{db: db}
}

func (r *repository) WithTx(tx *gorm.DB) Repository {
	if tx == nil {
		return r
	}
	return &repository{db: tx}
}

func (r *repository) Create(ctx context.Context, entry *models.StockMovement) error {
	return r.db.WithContext(ctx).Create(entry).Error
}

func (r *repository) List(ctx context.Context, filter Filter, params pagination.Params) ([]models.StockMovement, error) {
	query := r.db.WithContext(ctx).Model(&models.StockMovement{})
	if filter.ProductID != nil {
		query = query.Where("product_id = ?", *filter.ProductID)
	}
	if filter.Size != "" {
		query = query.Where("size = ?", filter.Size)
	}
	if filter.Type != nil {
		query = query.Where("type = ?", *filter.Type)
	}
	if filter.Since != nil {
		query = query.Where("created_at >= ?", *filter.Since)
	}
	query, err := pagination.ApplyDescending(query, "", params)
	if err != nil {
		return nil, err
	}
	var entries []models.StockMovement
	if err := query.Find(&entries).Error; err != nil {
		return nil, err
	}
	return entries, nil
}

func (r *repository) CountSince(ctx context.Context, since time.Time) (int64, error) {
	var count int64
	err := r.db.WithContext(ctx).
		Model(&models.StockMovement{}).
		Where("created_at >= ?", since).
		Count(&count).Error
	return count, err
}

func (r *repository) SumsBySize(ctx context.Context) ([]SizeSums, error) {
	var rows []SizeSums
	err := r.db.WithContext(ctx).
		Model(&models.StockMovement{}).
		Select(`product_id,
			size,
			COALESCE(SUM(stock_after - stock_before), 0) AS stock_delta,
			COALESCE(SUM(reserved_after - reserved_before), 0) AS reserved_delta,
			COUNT(*) AS entries`).
		Group("product_id, size").
		Scan(&rows).Error
	return rows, err
}

// ListAfter returns entries strictly after the cursor and no newer than until,
// oldest first.
func (r *repository) ListAfter(ctx context.Context, after *pagination.Cursor, until time.Time, limit int) ([]models.StockMovement, error) {
	query := r.db.WithContext(ctx).
		Model(&models.StockMovement{}).
		Where("created_at <= ?", until)
	if after != nil {
		query = query.Where("(created_at > ?) OR (created_at = ? AND id > ?)", after.CreatedAt, after.CreatedAt, after.ID)
	}
	var entries []models.StockMovement
	err := query.
		Order("created_at ASC").
		Order("id ASC").
		Limit(limit).
		Find(&entries).Error
	return entries, err
}
