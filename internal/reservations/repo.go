package reservations

import (
	"context"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/terra-sneakers/terra-backend/pkg/db/models"
	"github.com/terra-sneakers/terra-backend/pkg/enums"
)

// Repository persists checkout line holds.
type Repository interface {
	WithTx(tx *gorm.DB) Repository
	CreateBatch(ctx context.Context, rows []models.StockReservation) error
	ListByIntent(ctx context.Context, intentID string, statuses ...enums.ReservationStatus) ([]models.StockReservation, error)
	ListExpired(ctx context.Context, now time.Time, limit int) ([]models.StockReservation, error)
	ListActive(ctx context.Context) ([]models.StockReservation, error)
	LockByID(ctx context.Context, id uuid.UUID) (*models.StockReservation, error)
	LockByIntent(ctx context.Context, intentID string) ([]models.StockReservation, error)
	Transition(ctx context.Context, ids []uuid.UUID, to enums.ReservationStatus, reason *string, at time.Time) (int64, error)
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

func (r *repository) CreateBatch(ctx context.Context, rows []models.StockReservation) error {
	if len(rows) == 0 {
		return nil
	}
	return r.db.WithContext(ctx).Create(&rows).Error
}

func (r *repository) ListByIntent(ctx context.Context, intentID string, statuses ...enums.ReservationStatus) ([]models.StockReservation, error) {
	query := r.db.WithContext(ctx).Where("payment_intent_id = ?", intentID)
	if len(statuses) > 0 {
		query = query.Where("status IN ?", statuses)
	}
	var rows []models.StockReservation
	err := query.Order("reserved_at ASC").Order("id ASC").Find(&rows).Error
	return rows, err
}

// ListExpired returns active holds whose expiry is at or before now, oldest first.
func (r *repository) ListExpired(ctx context.Context, now time.Time, limit int) ([]models.StockReservation, error) {
	query := r.db.WithContext(ctx).
		Where("status = ? AND expires_at <= ?", enums.ReservationActive, now).
		Order("expires_at ASC")
	if limit > 0 {
		query = query.Limit(limit)
	}
	var rows []models.StockReservation
	err := query.Find(&rows).Error
	return rows, err
}

func (r *repository) ListActive(ctx context.Context) ([]models.StockReservation, error) {
	var rows []models.StockReservation
	err := r.db.WithContext(ctx).
		Select("id", "payment_intent_id", "product_id", "size", "quantity", "reserved_at").
		Where("status = ?", enums.ReservationActive).
		Find(&rows).Error
	return rows, err
}

func (r *repository) LockByID(ctx context.Context, id uuid.UUID) (*models.StockReservation, error) {
	var row models.StockReservation
	err := r.db.WithContext(ctx).
		Clauses(clause.Locking{Strength: "UPDATE"}).
		First(&row, "id = ?", id).Error
	if err != nil {
		return nil, err
	}
	return &row, nil
}

// LockByIntent takes row locks on every line of the intent in id order, so
// resolutions and the expiry sweep serialize on the same rows.
func (r *repository) LockByIntent(ctx context.Context, intentID string) ([]models.StockReservation, error) {
	var rows []models.StockReservation
	err := r.db.WithContext(ctx).
		Clauses(clause.Locking{Strength: "UPDATE"}).
		Where("payment_intent_id = ?", intentID).
		Order("id ASC").
		Find(&rows).Error
	return rows, err
}

// Transition moves non-terminal rows to the target status and reports how many changed.
func (r *repository) Transition(ctx context.Context, ids []uuid.UUID, to enums.ReservationStatus, reason *string, at time.Time) (int64, error) {
	if len(ids) == 0 {
		return 0, nil
	}
	res := r.db.WithContext(ctx).
		Model(&models.StockReservation{}).
		Where("id IN ? AND status IN ?", ids, []enums.ReservationStatus{
			enums.ReservationActive,
			enums.ReservationFailed,
			enums.ReservationBypassed,
		}).
		Updates(map[string]any{
			"status":         to,
			"resolved_at":    at,
			"release_reason": reason,
		})
	return res.RowsAffected, res.Error
}
