package orders

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/terra-sneakers/terra-backend/internal/inventory"
	"github.com/terra-sneakers/terra-backend/pkg/db"
	"github.com/terra-sneakers/terra-backend/pkg/db/models"
	"github.com/terra-sneakers/terra-backend/pkg/enums"
	pkgerrors "github.com/terra-sneakers/terra-backend/pkg/errors"
	"github.com/terra-sneakers/terra-backend/pkg/logger"
	"github.com/terra-sneakers/terra-backend/pkg/outbox"
	"github.com/terra-sneakers/terra-backend/pkg/outbox/payloads"
)

type txRunner interface {
	WithTx(ctx context.Context, fn func(tx *gorm.DB) error) error
}

type outboxPublisher interface {
	Emit(ctx context.Context, tx *gorm.DB, event outbox.DomainEvent) error
}

// StockReturner puts cancelled items back in stock inside the caller's transaction.
type StockReturner interface {
	ApplyTx(ctx context.Context, tx *gorm.DB, op inventory.Operation, in inventory.MutationInput) (inventory.MutationResult, error)
}

// Service defines order operations.
type Service interface {
	Create(ctx context.Context, tx *gorm.DB, in CreateInput) (*models.Order, error)
	Get(ctx context.Context, id uuid.UUID) (*models.Order, error)
	// FindByPaymentIntent reads through tx when it is set and returns nil
	// without error when no order exists for the intent.
	FindByPaymentIntent(ctx context.Context, tx *gorm.DB, intentID string) (*models.Order, error)
	UpdateStatus(ctx context.Context, id uuid.UUID, status enums.OrderStatus) (*models.Order, error)
}

type ServiceParams struct {
	Repository Repository
	TxRunner   txRunner
	Outbox     outboxPublisher
	Inventory  StockReturner
	Logger     *logger.Logger
}

type service struct {
	repo      Repository
	tx        txRunner
	outbox    outboxPublisher
	inventory StockReturner
	logg      *logger.Logger
	now       func() time.Time
}

// NewService builds an order service with the required dependencies.
func NewService(params ServiceParams) (Service, error) {
	if params.Repository == nil {
		return nil, fmt.Errorf("orders repository required")
	}
	if params.TxRunner == nil {
		return nil, fmt.Errorf("transaction runner required")
	}
	if params.Outbox == nil {
		return nil, fmt.Errorf("outbox publisher required")
	}
	if params.Inventory == nil {
		return nil, fmt.Errorf("stock returner required")
	}
	if params.Logger == nil {
		return nil, fmt.Errorf("logger required")
	}
	return &service{
		repo:      params.Repository,
		tx:        params.TxRunner,
		outbox:    params.Outbox,
		inventory: params.Inventory,
		logg:      params.Logger,
		now:       time.Now,
	}, nil
}

// Create stores a confirmed order and queues order.confirmed inside tx.
func (s *service) Create(ctx context.Context, tx *gorm.DB, in CreateInput) (*models.Order, error) {
	if tx == nil {
		return nil, pkgerrors.New(pkgerrors.CodeInternal, "transaction required")
	}
	intentID := strings.TrimSpace(in.PaymentIntentID)
	if intentID == "" {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "payment intent id is required")
	}
	if len(in.Lines) == 0 {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "order requires at least one line")
	}

	now := s.now().UTC()
	order := &models.Order{
		OrderNumber:     NewOrderNumber(now),
		PaymentIntentID: intentID,
		Status:          enums.OrderStatusConfirmed,
		CustomerEmail:   strings.TrimSpace(in.CustomerEmail),
		Subtotal:        in.Subtotal.Round(2),
		Shipping:        in.Shipping.Round(2),
		Total:           in.Total.Round(2),
		Currency:        strings.ToLower(in.Currency),
	}
	for _, line := range in.Lines {
		if line.Quantity <= 0 {
			return nil, pkgerrors.Newf(pkgerrors.CodeValidation, "quantity of size %s must be positive", line.Size)
		}
		order.Items = append(order.Items, models.OrderItem{
			ProductID: line.ProductID,
			Size:      line.Size,
			Quantity:  line.Quantity,
			UnitPrice: line.UnitPrice.Round(2),
			Bypassed:  line.Bypassed,
		})
	}

	if err := s.repo.WithTx(tx).Create(ctx, order); err != nil {
		if db.IsUniqueViolation(err, "") {
			return nil, pkgerrors.Wrap(pkgerrors.CodeConflict, err, "order already exists for payment intent")
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "create order")
	}
	if err := s.emit(ctx, tx, enums.EventOrderConfirmed, order, now); err != nil {
		return nil, err
	}
	return order, nil
}

func (s *service) Get(ctx context.Context, id uuid.UUID) (*models.Order, error) {
	if id == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "order id required")
	}
	order, err := s.repo.FindByID(ctx, id)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, pkgerrors.New(pkgerrors.CodeNotFound, "order not found")
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load order")
	}
	return order, nil
}

func (s *service) FindByPaymentIntent(ctx context.Context, tx *gorm.DB, intentID string) (*models.Order, error) {
	order, err := s.repo.WithTx(tx).FindByPaymentIntent(ctx, intentID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load order by payment intent")
	}
	return order, nil
}

// UpdateStatus applies a status transition. Cancelling a confirmed or
// preparing order returns its items to stock in the same transaction.
func (s *service) UpdateStatus(ctx context.Context, id uuid.UUID, status enums.OrderStatus) (*models.Order, error) {
	if id == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "order id required")
	}
	if !status.IsValid() {
		return nil, pkgerrors.Newf(pkgerrors.CodeValidation, "invalid order status %q", status)
	}

	var updated *models.Order
	err := s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		repo := s.repo.WithTx(tx)
		order, err := repo.LockByID(ctx, id)
		if err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return pkgerrors.New(pkgerrors.CodeNotFound, "order not found")
			}
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load order")
		}
		if order.Status == status {
			updated = order
			return nil
		}
		if !CanTransition(order.Status, status) {
			return pkgerrors.Newf(pkgerrors.CodeStateConflict, "order cannot move from %s to %s", order.Status, status).
				WithDetails(map[string]any{"current_status": order.Status, "requested_status": status})
		}

		if returnsStock(order.Status, status) {
			if err := s.returnItems(ctx, tx, order); err != nil {
				return err
			}
		}

		ok, err := repo.UpdateStatus(ctx, order.ID, order.Status, status)
		if err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "update order status")
		}
		if !ok {
			return pkgerrors.New(pkgerrors.CodeConflict, "order changed concurrently")
		}
		order.Status = status

		if status == enums.OrderStatusCancelled {
			if err := s.emit(ctx, tx, enums.EventOrderCancelled, order, s.now().UTC()); err != nil {
				return err
			}
		}
		updated = order
		return nil
	})
	if err != nil {
		return nil, err
	}
	s.logg.Info(s.logg.WithFields(ctx, map[string]any{
		"order_id":     id.String(),
		"order_number": updated.OrderNumber,
		"status":       updated.Status,
	}), "order status updated")
	return updated, nil
}

func (s *service) returnItems(ctx context.Context, tx *gorm.DB, order *models.Order) error {
	for _, item := range order.Items {
		if item.Bypassed {
			continue
		}
		res, err := s.inventory.ApplyTx(ctx, tx, inventory.OpReturn, inventory.MutationInput{
			ProductID:      item.ProductID,
			Size:           item.Size,
			Quantity:       item.Quantity,
			OrderReference: order.OrderNumber,
		})
		if err != nil {
			return err
		}
		if !res.Applied {
			s.logg.Warn(s.logg.WithSizeEntry(s.logg.WithField(ctx, "order_number", order.OrderNumber), item.ProductID.String(), item.Size),
				"cancelled item has no size entry to return to")
		}
	}
	return nil
}

func (s *service) emit(ctx context.Context, tx *gorm.DB, eventType enums.OutboxEventType, order *models.Order, at time.Time) error {
	lines := make([]payloads.OrderLine, 0, len(order.Items))
	for _, item := range order.Items {
		lines = append(lines, payloads.OrderLine{
			ProductID: item.ProductID,
			Size:      item.Size,
			Quantity:  item.Quantity,
			UnitPrice: item.UnitPrice.StringFixed(2),
		})
	}
	err := s.outbox.Emit(ctx, tx, outbox.DomainEvent{
		EventType:     eventType,
		AggregateType: enums.AggregateOrder,
		AggregateID:   order.ID,
		OccurredAt:    at,
		Data: payloads.OrderEvent{
			OrderID:         order.ID,
			OrderNumber:     order.OrderNumber,
			PaymentIntentID: order.PaymentIntentID,
			Status:          order.Status,
			Total:           order.Total.StringFixed(2),
			Currency:        order.Currency,
			Lines:           lines,
			ChangedAt:       at,
		},
	})
	if err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeDependency, err, fmt.Sprintf("emit %s", eventType))
	}
	return nil
}
