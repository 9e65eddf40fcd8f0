package alerts

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/terra-sneakers/terra-backend/pkg/db/models"
	"github.com/terra-sneakers/terra-backend/pkg/enums"
	pkgerrors "github.com/terra-sneakers/terra-backend/pkg/errors"
	"github.com/terra-sneakers/terra-backend/pkg/logger"
	"github.com/terra-sneakers/terra-backend/pkg/outbox"
	"github.com/terra-sneakers/terra-backend/pkg/outbox/payloads"
	"github.com/terra-sneakers/terra-backend/pkg/pagination"
)

const (
	defaultThreshold       = 5
	suggestedRestockFactor = 3
	autoResolveNotes       = "stock replenished automatically"
)

// Snapshot is the post-mutation state of a size entry.
type Snapshot struct {
	ProductID    uuid.UUID
	ProductTitle string
	Size         string
	Available    int
	Threshold    int
}

// Outcome lists what Evaluate changed.
type Outcome struct {
	Raised   []models.StockAlert
	Resolved int
}

type Service interface {
	Evaluate(ctx context.Context, tx *gorm.DB, snap Snapshot) (Outcome, error)
	List(ctx context.Context, filter Filter, params pagination.Params) (pagination.Page[models.StockAlert], error)
	CountUnresolved(ctx context.Context) (int64, error)
	Resolve(ctx context.Context, id uuid.UUID, action enums.AlertAction, notes string) (*models.StockAlert, error)
}

type outboxEmitter interface {
	Emit(ctx context.Context, tx *gorm.DB, event outbox.DomainEvent) error
}

type txRunner interface {
	WithTx(ctx context.Context, fn func(tx *gorm.DB) error) error
}

type ServiceParams struct {
	Repository Repository
	Outbox     outboxEmitter
	TxRunner   txRunner
	Logger     *logger.Logger
}

type service struct {
	repo   Repository
	outbox outboxEmitter
	tx     txRunner
	logg   *logger.Logger
	now    func() time.Time
}

func NewService(params ServiceParams) (Service, error) {
	if params.Repository == nil {
		return nil, fmt.Errorf("alert repository required")
	}
	if params.Outbox == nil {
		return nil, fmt.Errorf("outbox emitter required")
	}
	if params.TxRunner == nil {
		return nil, fmt.Errorf("transaction runner required")
	}
	return &service{
		repo:   params.Repository,
		outbox: params.Outbox,
		tx:     params.TxRunner,
		logg:   params.Logger,
		now:    time.Now,
	}, nil
}

// Classify returns the alert type and priority for an availability level, or
// ok=false when the size entry is healthy.
func Classify(available, threshold int) (alertType enums.AlertType, priority enums.AlertPriority, ok bool) {
	if threshold <= 0 {
		threshold = defaultThreshold
	}
	switch {
	case available <= 0:
		return enums.AlertOutOfStock, enums.AlertPriorityCritical, true
	case available <= threshold:
		if available <= (threshold+1)/2 {
			return enums.AlertLowStock, enums.AlertPriorityHigh, true
		}
		return enums.AlertLowStock, enums.AlertPriorityMedium, true
	default:
		return "", "", false
	}
}

// Evaluate raises or resolves alerts for the snapshot inside tx.
func (s *service) Evaluate(ctx context.Context, tx *gorm.DB, snap Snapshot) (Outcome, error) {
	var out Outcome
	if tx == nil {
		return out, fmt.Errorf("transaction required")
	}
	threshold := snap.Threshold
	if threshold <= 0 {
		threshold = defaultThreshold
	}
	repo := s.repo.WithTx(tx)
	open, err := repo.FindOpen(ctx, snap.ProductID, snap.Size)
	if err != nil {
		return out, fmt.Errorf("load open alerts: %w", err)
	}

	alertType, priority, raise := Classify(snap.Available, threshold)
	if raise {
		for _, existing := range open {
			if existing.AlertType == alertType {
				return out, nil
			}
		}
		now := s.now().UTC()
		alert := models.StockAlert{
			AlertReference:    NewReference(alertType, now),
			AlertType:         alertType,
			Priority:          priority,
			ProductID:         snap.ProductID,
			Size:              snap.Size,
			CurrentStock:      snap.Available,
			Threshold:         threshold,
			SuggestedQuantity: threshold * suggestedRestockFactor,
			Message:           message(alertType, snap),
			CreatedAt:         now,
		}
		if err := repo.Create(ctx, &alert); err != nil {
			return out, fmt.Errorf("create alert: %w", err)
		}
		if err := s.emit(ctx, tx, enums.EventStockAlertRaised, alert); err != nil {
			return out, err
		}
		out.Raised = append(out.Raised, alert)
		return out, nil
	}

	now := s.now().UTC()
	notes := autoResolveNotes
	for _, existing := range open {
		if existing.AlertType != enums.AlertLowStock && existing.AlertType != enums.AlertOutOfStock {
			continue
		}
		changed, err := repo.MarkResolved(ctx, existing.ID, enums.AlertActionRestocked, &notes, now)
		if err != nil {
			return out, fmt.Errorf("resolve alert: %w", err)
		}
		if !changed {
			continue
		}
		existing.CurrentStock = snap.Available
		if err := s.emit(ctx, tx, enums.EventStockAlertResolved, existing); err != nil {
			return out, err
		}
		out.Resolved++
	}
	return out, nil
}

func (s *service) emit(ctx context.Context, tx *gorm.DB, eventType enums.OutboxEventType, alert models.StockAlert) error {
	err := s.outbox.Emit(ctx, tx, outbox.DomainEvent{
		EventType:     eventType,
		AggregateType: enums.AggregateStockAlert,
		AggregateID:   alert.ID,
		OccurredAt:    s.now().UTC(),
		Data: payloads.StockAlertEvent{
			AlertID:           alert.ID,
			AlertType:         alert.AlertType,
			Priority:          alert.Priority,
			ProductID:         alert.ProductID,
			Size:              alert.Size,
			AvailableStock:    alert.CurrentStock,
			Threshold:         alert.Threshold,
			SuggestedQuantity: alert.SuggestedQuantity,
		},
	})
	if err != nil {
		return fmt.Errorf("emit %s: %w", eventType, err)
	}
	return nil
}

func (s *service) List(ctx context.Context, filter Filter, params pagination.Params) (pagination.Page[models.StockAlert], error) {
	if _, err := pagination.ParseCursor(params.Cursor); err != nil {
		return pagination.Page[models.StockAlert]{}, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid cursor")
	}
	rows, err := s.repo.List(ctx, filter, params)
	if err != nil {
		return pagination.Page[models.StockAlert]{}, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "list stock alerts")
	}
	return pagination.BuildPage(rows, params.Limit), nil
}

func (s *service) CountUnresolved(ctx context.Context) (int64, error) {
	return s.repo.CountUnresolved(ctx)
}

// Resolve closes an alert by hand.
func (s *service) Resolve(ctx context.Context, id uuid.UUID, action enums.AlertAction, notes string) (*models.StockAlert, error) {
	if !action.IsValid() {
		return nil, pkgerrors.Newf(pkgerrors.CodeValidation, "invalid alert action %q", action)
	}
	var resolved *models.StockAlert
	err := s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		repo := s.repo.WithTx(tx)
		alert, err := repo.FindByID(ctx, id)
		if err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return pkgerrors.New(pkgerrors.CodeNotFound, "alert not found")
			}
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load alert")
		}
		if alert.IsResolved {
			return pkgerrors.New(pkgerrors.CodeStateConflict, "alert already resolved")
		}
		var notesPtr *string
		if trimmed := strings.TrimSpace(notes); trimmed != "" {
			notesPtr = &trimmed
		}
		now := s.now().UTC()
		changed, err := repo.MarkResolved(ctx, id, action, notesPtr, now)
		if err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "resolve alert")
		}
		if !changed {
			return pkgerrors.New(pkgerrors.CodeStateConflict, "alert already resolved")
		}
		alert.IsResolved = true
		alert.ResolvedAt = &now
		alert.ActionTaken = &action
		alert.ResolutionNotes = notesPtr
		if err := s.emit(ctx, tx, enums.EventStockAlertResolved, *alert); err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "emit alert resolution")
		}
		resolved = alert
		return nil
	})
	if err != nil {
		return nil, err
	}
	if s.logg != nil {
		s.logg.Info(s.logg.WithFields(ctx, map[string]any{
			"alert_id": id.String(),
			"action":   action,
		}), "stock alert resolved")
	}
	return resolved, nil
}

// NewReference builds ALERT-<TYPE>-<unix-ms>-<suffix>.
func NewReference(alertType enums.AlertType, at time.Time) string {
	suffix := strings.ToUpper(strings.ReplaceAll(uuid.NewString(), "-", "")[:4])
	return fmt.Sprintf("ALERT-%s-%d-%s", strings.ToUpper(string(alertType)), at.UnixMilli(), suffix)
}

func message(alertType enums.AlertType, snap Snapshot) string {
	title := snap.ProductTitle
	if title == "" {
		title = snap.ProductID.String()
	}
	if alertType == enums.AlertOutOfStock {
		return fmt.Sprintf("Out of stock: %s size %s", title, snap.Size)
	}
	return fmt.Sprintf("Low stock: %s size %s (%d left)", title, snap.Size, snap.Available)
}
