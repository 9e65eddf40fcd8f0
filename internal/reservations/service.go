package reservations

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"go.uber.org/multierr"
	"gorm.io/gorm"

	"github.com/terra-sneakers/terra-backend/internal/inventory"
	"github.com/terra-sneakers/terra-backend/pkg/db/models"
	"github.com/terra-sneakers/terra-backend/pkg/enums"
	pkgerrors "github.com/terra-sneakers/terra-backend/pkg/errors"
	"github.com/terra-sneakers/terra-backend/pkg/logger"
)

const (
	defaultTTL       = 30 * time.Minute
	defaultBatchSize = 200
)

// Line is one checkout line to record against a payment intent.
type Line struct {
	ProductID    uuid.UUID
	ProductTitle string
	Size         string
	Quantity     int
	UnitPrice    decimal.Decimal
	Status       enums.ReservationStatus
}

// SweepResult summarizes one expiry pass.
type SweepResult struct {
	Scanned  int `json:"scanned"`
	Released int `json:"released"`
	Failed   int `json:"failed"`
}

type ProductReservations struct {
	ProductID     uuid.UUID `json:"product_id"`
	Size          string    `json:"size"`
	Count         int       `json:"count"`
	TotalQuantity int       `json:"total_quantity"`
	Oldest        time.Time `json:"oldest"`
}

// StatusReport lists the active holds grouped by size entry.
type StatusReport struct {
	TotalProducts     int                   `json:"total_products"`
	TotalReservations int                   `json:"total_reservations"`
	Products          []ProductReservations `json:"products"`
}

type Service interface {
	Record(ctx context.Context, tx *gorm.DB, intentID string, lines []Line) ([]models.StockReservation, error)
	// LinesForIntent and ActiveForIntent read through tx when it is set.
	LinesForIntent(ctx context.Context, tx *gorm.DB, intentID string) ([]models.StockReservation, error)
	ActiveForIntent(ctx context.Context, tx *gorm.DB, intentID string) ([]models.StockReservation, error)
	// LockForIntent locks the intent's lines until tx ends.
	LockForIntent(ctx context.Context, tx *gorm.DB, intentID string) ([]models.StockReservation, error)
	MarkResolved(ctx context.Context, tx *gorm.DB, ids []uuid.UUID, status enums.ReservationStatus, reason string) (int64, error)
	Sweep(ctx context.Context, now time.Time) (SweepResult, error)
	Status(ctx context.Context) (StatusReport, error)
	TTL() time.Duration
}

type stockReleaser interface {
	ApplyTx(ctx context.Context, tx *gorm.DB, op inventory.Operation, in inventory.MutationInput) (inventory.MutationResult, error)
}

type txRunner interface {
	WithTx(ctx context.Context, fn func(tx *gorm.DB) error) error
}

type ServiceParams struct {
	Repository Repository
	Inventory  stockReleaser
	TxRunner   txRunner
	Logger     *logger.Logger
	TTL        time.Duration
	BatchSize  int
}

type service struct {
	repo      Repository
	inventory stockReleaser
	tx        txRunner
	logg      *logger.Logger
	ttl       time.Duration
	batchSize int
	now       func() time.Time
}

func NewService(params ServiceParams) (Service, error) {
	if params.Repository == nil {
		return nil, fmt.Errorf("reservation repository required")
	}
	if params.Inventory == nil {
		return nil, fmt.Errorf("inventory service required")
	}
	if params.TxRunner == nil {
		return nil, fmt.Errorf("transaction runner required")
	}
	if params.Logger == nil {
		return nil, fmt.Errorf("logger required")
	}
	ttl := params.TTL
	if ttl <= 0 {
		ttl = defaultTTL
	}
	batch := params.BatchSize
	if batch <= 0 {
		batch = defaultBatchSize
	}
	return &service{
		repo:      params.Repository,
		inventory: params.Inventory,
		tx:        params.TxRunner,
		logg:      params.Logger,
		ttl:       ttl,
		batchSize: batch,
		now:       time.Now,
	}, nil
}

func (s *service) TTL() time.Duration { return s.ttl }

// Record stores one row per line inside tx. Active rows expire after the TTL.
func (s *service) Record(ctx context.Context, tx *gorm.DB, intentID string, lines []Line) ([]models.StockReservation, error) {
	intentID = strings.TrimSpace(intentID)
	if intentID == "" {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "payment intent id is required")
	}
	if tx == nil {
		return nil, pkgerrors.New(pkgerrors.CodeInternal, "transaction required")
	}
	now := s.now().UTC()
	rows := make([]models.StockReservation, 0, len(lines))
	for _, line := range lines {
		status := line.Status
		if status == "" {
			status = enums.ReservationActive
		}
		switch status {
		case enums.ReservationActive, enums.ReservationFailed, enums.ReservationBypassed:
		default:
			return nil, pkgerrors.Newf(pkgerrors.CodeValidation, "reservation cannot start as %q", status)
		}
		rows = append(rows, models.StockReservation{
			PaymentIntentID: intentID,
			ProductID:       line.ProductID,
			ProductTitle:    line.ProductTitle,
			Size:            line.Size,
			Quantity:        line.Quantity,
			UnitPrice:       line.UnitPrice,
			Status:          status,
			ReservedAt:      now,
			ExpiresAt:       now.Add(s.ttl),
		})
	}
	if err := s.repo.WithTx(tx).CreateBatch(ctx, rows); err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "record reservations")
	}
	return rows, nil
}

func (s *service) LinesForIntent(ctx context.Context, tx *gorm.DB, intentID string) ([]models.StockReservation, error) {
	rows, err := s.repo.WithTx(tx).ListByIntent(ctx, intentID)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load reservations")
	}
	return rows, nil
}

func (s *service) ActiveForIntent(ctx context.Context, tx *gorm.DB, intentID string) ([]models.StockReservation, error) {
	rows, err := s.repo.WithTx(tx).ListByIntent(ctx, intentID, enums.ReservationActive)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load active reservations")
	}
	return rows, nil
}

func (s *service) LockForIntent(ctx context.Context, tx *gorm.DB, intentID string) ([]models.StockReservation, error) {
	if tx == nil {
		return nil, pkgerrors.New(pkgerrors.CodeInternal, "transaction required")
	}
	rows, err := s.repo.WithTx(tx).LockByIntent(ctx, intentID)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "lock reservations")
	}
	return rows, nil
}

func (s *service) MarkResolved(ctx context.Context, tx *gorm.DB, ids []uuid.UUID, status enums.ReservationStatus, reason string) (int64, error) {
	if !status.IsTerminal() {
		return 0, pkgerrors.Newf(pkgerrors.CodeValidation, "%q is not a terminal reservation status", status)
	}
	var reasonPtr *string
	if trimmed := strings.TrimSpace(reason); trimmed != "" {
		reasonPtr = &trimmed
	}
	changed, err := s.repo.WithTx(tx).Transition(ctx, ids, status, reasonPtr, s.now().UTC())
	if err != nil {
		return 0, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "update reservations")
	}
	return changed, nil
}

// Sweep releases active holds whose expiry is at or before now. Every row is
// handled in its own transaction; rows that fail stay active for the next pass.
func (s *service) Sweep(ctx context.Context, now time.Time) (SweepResult, error) {
	var result SweepResult
	now = now.UTC()
	rows, err := s.repo.ListExpired(ctx, now, s.batchSize)
	if err != nil {
		return result, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "list expired reservations")
	}
	result.Scanned = len(rows)

	var errs error
	for _, row := range rows {
		released, err := s.expire(ctx, row.ID, now)
		switch {
		case err != nil:
			result.Failed++
			errs = multierr.Append(errs, fmt.Errorf("reservation %s: %w", row.ID, err))
		case released:
			result.Released++
		}
	}

	logCtx := s.logg.WithFields(ctx, map[string]any{
		"scanned":  result.Scanned,
		"released": result.Released,
		"failed":   result.Failed,
	})
	if errs != nil {
		s.logg.Warn(s.logg.WithField(logCtx, "cause", errs.Error()), "reservation sweep finished with failures")
	} else if result.Scanned > 0 {
		s.logg.Info(logCtx, "reservation sweep finished")
	}
	return result, nil
}

func (s *service) expire(ctx context.Context, id uuid.UUID, now time.Time) (bool, error) {
	released := false
	err := s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		repo := s.repo.WithTx(tx)
		row, err := repo.LockByID(ctx, id)
		if err != nil {
			return err
		}
		if row.Status != enums.ReservationActive || row.ExpiresAt.After(now) {
			return nil
		}
		res, err := s.inventory.ApplyTx(ctx, tx, inventory.OpRelease, inventory.MutationInput{
			ProductID:       row.ProductID,
			Size:            row.Size,
			Quantity:        row.Quantity,
			PaymentIntentID: row.PaymentIntentID,
			Reason:          fmt.Sprintf("Expired reservation - payment %s", row.PaymentIntentID),
		})
		if err != nil {
			return err
		}
		reason := "expired"
		if !res.Applied {
			reason = "expired; size entry missing"
			s.logg.Warn(s.logg.WithSizeEntry(s.logg.WithPaymentIntent(ctx, row.PaymentIntentID), row.ProductID.String(), row.Size),
				"expired reservation points at a missing size entry")
		}
		changed, err := repo.Transition(ctx, []uuid.UUID{row.ID}, enums.ReservationExpired, &reason, now)
		if err != nil {
			return err
		}
		if changed == 0 {
			return errors.New("reservation changed during sweep")
		}
		released = res.Applied
		return nil
	})
	return released, err
}

func (s *service) Status(ctx context.Context) (StatusReport, error) {
	rows, err := s.repo.ListActive(ctx)
	if err != nil {
		return StatusReport{}, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load active reservations")
	}
	type key struct {
		productID uuid.UUID
		size      string
	}
	groups := map[key]*ProductReservations{}
	products := map[uuid.UUID]struct{}{}
	for _, row := range rows {
		k := key{row.ProductID, row.Size}
		group, ok := groups[k]
		if !ok {
			group = &ProductReservations{ProductID: row.ProductID, Size: row.Size, Oldest: row.ReservedAt}
			groups[k] = group
		}
		group.Count++
		group.TotalQuantity += row.Quantity
		if row.ReservedAt.Before(group.Oldest) {
			group.Oldest = row.ReservedAt
		}
		products[row.ProductID] = struct{}{}
	}

	report := StatusReport{
		TotalProducts:     len(products),
		TotalReservations: len(rows),
		Products:          make([]ProductReservations, 0, len(groups)),
	}
	for _, group := range groups {
		report.Products = append(report.Products, *group)
	}
	sort.Slice(report.Products, func(i, j int) bool {
		return report.Products[i].Oldest.Before(report.Products[j].Oldest)
	})
	return report, nil
}
