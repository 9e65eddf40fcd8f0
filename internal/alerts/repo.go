package alerts

import (
	"context"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/terra-sneakers/terra-backend/pkg/db/models"
	"github.com/terra-sneakers/terra-backend/pkg/enums"
	"github.com/terra-sneakers/terra-backend/pkg/pagination"
)

// Filter narrows alert listings.
type Filter struct {
	Resolved *bool
	Type     *enums.AlertType
}

// Repository persists stock alerts.
type Repository interface {
	WithTx(tx *gorm.DB) Repository
	Create(ctx context.Context, alert *models.StockAlert) error
	FindByID(ctx context.Context, id uuid.UUID) (*models.StockAlert, error)
	FindOpen(ctx context.Context, productID uuid.UUID, size string) ([]models.StockAlert, error)
	MarkResolved(ctx context.Context, id uuid.UUID, action enums.AlertAction, notes *string, at time.Time) (bool, error)
	List(ctx context.Context, filter Filter, params pagination.Params) ([]models.StockAlert, error)
	CountUnresolved(ctx context.Context) (int64, error)
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

func (r *repository) Create(ctx context.Context, alert *models.StockAlert) error {
	return r.db.WithContext(ctx).Create(alert).Error
}

func (r *repository) FindByID(ctx context.Context, id uuid.UUID) (*models.StockAlert, error) {
	var alert models.StockAlert
	if err := r.db.WithContext(ctx).First(&alert, "id = ?", id).Error; err != nil {
		return nil, err
	}
	return &alert, nil
}

func (r *repository) FindOpen(ctx context.Context, productID uuid.UUID, size string) ([]models.StockAlert, error) {
	var rows []models.StockAlert
	err := r.db.WithContext(ctx).
		Where("product_id = ? AND size = ? AND is_resolved = ?", productID, size, false).
		Find(&rows).Error
	return rows, err
}

// MarkResolved only touches open alerts; it reports whether a row changed.
func (r *repository) MarkResolved(ctx context.Context, id uuid.UUID, action enums.AlertAction, notes *string, at time.Time) (bool, error) {
	res := r.db.WithContext(ctx).
		Model(&models.StockAlert{}).
		Where("id = ? AND is_resolved = ?", id, false).
		Updates(map[string]any{
			"is_resolved":      true,
			"resolved_at":      at,
			"action_taken":     action,
			"resolution_notes": notes,
		})
	return res.RowsAffected > 0, res.Error
}

func (r *repository) List(ctx context.Context, filter Filter, params pagination.Params) ([]models.StockAlert, error) {
	query := r.db.WithContext(ctx).Model(&models.StockAlert{})
	if filter.Resolved != nil {
		query = query.Where("is_resolved = ?", *filter.Resolved)
	}
	if filter.Type != nil {
		query = query.Where("alert_type = ?", *filter.Type)
	}
	query, err := pagination.ApplyDescending(query, "", params)
	if err != nil {
		return nil, err
	}
	var rows []models.StockAlert
	if err := query.Find(&rows).Error; err != nil {
		return nil, err
	}
	return rows, nil
}

func (r *repository) CountUnresolved(ctx context.Context) (int64, error) {
	var count int64
	err := r.db.WithContext(ctx).
		Model(&models.StockAlert{}).
		Where("is_resolved = ?", false).
		Count(&count).Error
	return count, err
}
