package checkout

import (
	"context"
	"fmt"
	"strconv"
	"strings"

	"github.com/google/uuid"
	"github.com/stripe/stripe-go/v84"
	"gorm.io/gorm"

	"github.com/terra-sneakers/terra-backend/internal/inventory"
	"github.com/terra-sneakers/terra-backend/internal/orders"
	"github.com/terra-sneakers/terra-backend/internal/reservations"
	pkgcheckout "github.com/terra-sneakers/terra-backend/pkg/checkout"
	"github.com/terra-sneakers/terra-backend/pkg/db/models"
	"github.com/terra-sneakers/terra-backend/pkg/enums"
	pkgerrors "github.com/terra-sneakers/terra-backend/pkg/errors"
	"github.com/terra-sneakers/terra-backend/pkg/logger"
)

const (
	defaultCurrency       = "eur"
	maxLineSummaryLength  = 450
	cancellationAbandoned = "abandoned"
)

type txRunner interface {
	WithTx(ctx context.Context, fn func(tx *gorm.DB) error) error
}

type catalog interface {
	GetProduct(ctx context.Context, id uuid.UUID) (*models.Product, error)
}

type stockMutator interface {
	ApplyTx(ctx context.Context, tx *gorm.DB, op inventory.Operation, in inventory.MutationInput) (inventory.MutationResult, error)
}

type reservationStore interface {
	Record(ctx context.Context, tx *gorm.DB, intentID string, lines []reservations.Line) ([]models.StockReservation, error)
	LockForIntent(ctx context.Context, tx *gorm.DB, intentID string) ([]models.StockReservation, error)
	MarkResolved(ctx context.Context, tx *gorm.DB, ids []uuid.UUID, status enums.ReservationStatus, reason string) (int64, error)
}

type orderStore interface {
	Create(ctx context.Context, tx *gorm.DB, in orders.CreateInput) (*models.Order, error)
	FindByPaymentIntent(ctx context.Context, tx *gorm.DB, intentID string) (*models.Order, error)
}

// PaymentIntents creates and cancels provider payment intents.
type PaymentIntents interface {
	Create(ctx context.Context, params *stripe.PaymentIntentParams) (*stripe.PaymentIntent, error)
	Cancel(ctx context.Context, id string, params *stripe.PaymentIntentCancelParams) (*stripe.PaymentIntent, error)
}

// Service coordinates stock holds with the payment lifecycle.
type Service interface {
	CreatePaymentIntent(ctx context.Context, req Request) (*Response, error)
	// ResolvePaymentSucceeded is idempotent: a second call for the same
	// intent returns the order created by the first.
	ResolvePaymentSucceeded(ctx context.Context, intentID string, details PaymentDetails) (*models.Order, error)
	ResolvePaymentFailed(ctx context.Context, intentID, reason string) (int, error)
}

type ServiceParams struct {
	Catalog        catalog
	Stock          stockMutator
	Reservations   reservationStore
	Orders         orderStore
	PaymentIntents PaymentIntents
	TxRunner       txRunner
	Logger         *logger.Logger
	Config         Config
}

type service struct {
	catalog      catalog
	stock        stockMutator
	reservations reservationStore
	orders       orderStore
	intents      PaymentIntents
	tx           txRunner
	logg         *logger.Logger
	cfg          Config
}

// NewService builds the checkout coordinator.
func NewService(params ServiceParams) (Service, error) {
	if params.Catalog == nil {
		return nil, fmt.Errorf("catalog required")
	}
	if params.Stock == nil {
		return nil, fmt.Errorf("stock mutator required")
	}
	if params.Reservations == nil {
		return nil, fmt.Errorf("reservation store required")
	}
	if params.Orders == nil {
		return nil, fmt.Errorf("order store required")
	}
	if params.PaymentIntents == nil {
		return nil, fmt.Errorf("payment intents client required")
	}
	if params.TxRunner == nil {
		return nil, fmt.Errorf("tx runner required")
	}
	if params.Logger == nil {
		return nil, fmt.Errorf("logger required")
	}
	cfg := params.Config
	cfg.Currency = strings.ToLower(strings.TrimSpace(cfg.Currency))
	if cfg.Currency == "" {
		cfg.Currency = defaultCurrency
	}
	return &service{
		catalog:      params.Catalog,
		stock:        params.Stock,
		reservations: params.Reservations,
		orders:       params.Orders,
		intents:      params.PaymentIntents,
		tx:           params.TxRunner,
		logg:         params.Logger,
		cfg:          cfg,
	}, nil
}

func (s *service) CreatePaymentIntent(ctx context.Context, req Request) (*Response, error) {
	lines, err := s.price(ctx, req)
	if err != nil {
		return nil, err
	}

	priced := make([]pkgcheckout.PricedLine, 0, len(lines))
	for _, line := range lines {
		priced = append(priced, pkgcheckout.PricedLine{UnitPrice: line.UnitPrice, Quantity: line.Quantity})
	}
	totals := pkgcheckout.ComputeTotals(priced, s.cfg.FreeShippingThreshold, s.cfg.ShippingFee)

	intent, err := s.intents.Create(ctx, s.intentParams(req, lines, totals))
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "create payment intent")
	}
	ctx = s.logg.WithPaymentIntent(ctx, intent.ID)

	holds, err := s.hold(ctx, intent.ID, lines)
	if err != nil {
		s.cancelIntent(ctx, intent.ID)
		return nil, err
	}

	s.logg.Info(s.logg.WithFields(ctx, map[string]any{
		"lines": len(lines),
		"total": totals.Total.StringFixed(2),
	}), "payment intent created")

	return &Response{
		PaymentIntentID: intent.ID,
		ClientSecret:    intent.ClientSecret,
		Subtotal:        totals.Subtotal,
		Shipping:        totals.Shipping,
		Total:           totals.Total,
		Currency:        s.cfg.Currency,
		Reservations:    holds,
	}, nil
}

// price resolves every line against the catalog and rejects the request when
// a line cannot be served from current stock.
func (s *service) price(ctx context.Context, req Request) ([]pricedLine, error) {
	if len(req.Items) == 0 {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "at least one item is required")
	}
	products := map[uuid.UUID]*models.Product{}
	lines := make([]pricedLine, 0, len(req.Items))
	index := map[string]int{}
	var checks []pkgcheckout.AvailabilityInput

	for _, item := range req.Items {
		item.Size = strings.TrimSpace(item.Size)
		if item.ProductID == uuid.Nil || item.Size == "" {
			return nil, pkgerrors.New(pkgerrors.CodeValidation, "every item needs a product id and a size")
		}
		if item.Quantity <= 0 {
			return nil, pkgerrors.New(pkgerrors.CodeValidation, "item quantity must be positive")
		}
		if item.TestFixture && !s.cfg.AllowTestFixtures {
			return nil, pkgerrors.New(pkgerrors.CodeValidation, "test fixture items are not accepted").
				WithDetails(map[string]any{"product_id": item.ProductID, "size": item.Size})
		}

		key := fmt.Sprintf("%s|%s|%t", item.ProductID, item.Size, item.TestFixture)
		if i, ok := index[key]; ok {
			lines[i].Quantity += item.Quantity
			continue
		}

		product, ok := products[item.ProductID]
		if !ok {
			loaded, err := s.catalog.GetProduct(ctx, item.ProductID)
			if err != nil {
				if pkgerrors.IsCode(err, pkgerrors.CodeNotFound) {
					return nil, pkgerrors.New(pkgerrors.CodeNotFound, "product not found").
						WithDetails(map[string]any{"product_id": item.ProductID})
				}
				return nil, err
			}
			product = loaded
			products[item.ProductID] = product
		}
		size := findSize(product, item.Size)
		if size == nil {
			return nil, pkgerrors.Newf(pkgerrors.CodeNotFound, "size %s not found for %s", item.Size, product.Title).
				WithDetails(map[string]any{"product_id": item.ProductID, "size": item.Size})
		}

		index[key] = len(lines)
		lines = append(lines, pricedLine{
			Item:      item,
			Title:     product.Title,
			UnitPrice: product.Price,
			Available: size.AvailableStock,
		})
	}

	for _, line := range lines {
		if line.TestFixture {
			continue
		}
		checks = append(checks, pkgcheckout.AvailabilityInput{
			ProductID:    line.ProductID,
			ProductTitle: line.Title,
			Size:         line.Size,
			Available:    line.Available,
			Quantity:     line.Quantity,
		})
	}
	if err := pkgcheckout.ValidateAvailability(checks); err != nil {
		return nil, err
	}
	return lines, nil
}

func (s *service) intentParams(req Request, lines []pricedLine, totals pkgcheckout.Totals) *stripe.PaymentIntentParams {
	params := &stripe.PaymentIntentParams{
		Amount:   stripe.Int64(pkgcheckout.ToMinorUnits(totals.Total)),
		Currency: stripe.String(s.cfg.Currency),
		AutomaticPaymentMethods: &stripe.PaymentIntentAutomaticPaymentMethodsParams{
			Enabled: stripe.Bool(true),
		},
	}
	email := strings.TrimSpace(req.CustomerEmail)
	if email != "" {
		params.ReceiptEmail = stripe.String(email)
		params.AddMetadata("customer_email", email)
	}
	items := 0
	summary := make([]string, 0, len(lines))
	for _, line := range lines {
		items += line.Quantity
		summary = append(summary, fmt.Sprintf("%s:%s:%d", line.ProductID, line.Size, line.Quantity))
	}
	params.AddMetadata("item_count", strconv.Itoa(items))
	joined := strings.Join(summary, ",")
	if len(joined) > maxLineSummaryLength {
		joined = joined[:maxLineSummaryLength]
	}
	params.AddMetadata("line_summary", joined)
	return params
}

// hold reserves every non-fixture line and records all lines against the
// intent in one transaction.
func (s *service) hold(ctx context.Context, intentID string, lines []pricedLine) ([]LineReservation, error) {
	var out []LineReservation
	err := s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		out = make([]LineReservation, 0, len(lines))
		records := make([]reservations.Line, 0, len(lines))
		for _, line := range lines {
			status := enums.ReservationBypassed
			if !line.TestFixture {
				res, err := s.stock.ApplyTx(ctx, tx, inventory.OpReserve, inventory.MutationInput{
					ProductID:       line.ProductID,
					Size:            line.Size,
					Quantity:        line.Quantity,
					PaymentIntentID: intentID,
				})
				if err != nil {
					return err
				}
				status = enums.ReservationActive
				if !res.Applied {
					if s.cfg.StrictReservations {
						return inventory.AsError(res)
					}
					status = enums.ReservationFailed
					s.logg.Warn(s.logg.WithSizeEntry(s.logg.WithFields(ctx, map[string]any{
						"quantity": line.Quantity,
						"failure":  res.Failure,
					}), line.ProductID.String(), line.Size), "stock reservation failed, continuing checkout")
				}
			}
			records = append(records, reservations.Line{
				ProductID:    line.ProductID,
				ProductTitle: line.Title,
				Size:         line.Size,
				Quantity:     line.Quantity,
				UnitPrice:    line.UnitPrice,
				Status:       status,
			})
			out = append(out, LineReservation{
				ProductID: line.ProductID,
				Size:      line.Size,
				Quantity:  line.Quantity,
				Status:    status,
			})
		}
		_, err := s.reservations.Record(ctx, tx, intentID, records)
		return err
	})
	if err != nil {
		if pkgerrors.As(err) == nil {
			err = pkgerrors.Wrap(pkgerrors.CodeDependency, err, "reserve checkout stock")
		}
		return nil, err
	}
	return out, nil
}

func (s *service) cancelIntent(ctx context.Context, intentID string) {
	_, err := s.intents.Cancel(ctx, intentID, &stripe.PaymentIntentCancelParams{
		CancellationReason: stripe.String(cancellationAbandoned),
	})
	if err != nil {
		s.logg.Error(ctx, "cancel payment intent after failed reservation", err)
	}
}

func (s *service) ResolvePaymentSucceeded(ctx context.Context, intentID string, details PaymentDetails) (*models.Order, error) {
	intentID = strings.TrimSpace(intentID)
	if intentID == "" {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "payment intent id is required")
	}
	ctx = s.logg.WithPaymentIntent(ctx, intentID)

	var (
		order    *models.Order
		existing bool
	)
	err := s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		rows, err := s.reservations.LockForIntent(ctx, tx, intentID)
		if err != nil {
			return err
		}
		found, err := s.orders.FindByPaymentIntent(ctx, tx, intentID)
		if err != nil {
			return err
		}
		if found != nil {
			order, existing = found, true
			return nil
		}
		if len(rows) == 0 {
			return pkgerrors.New(pkgerrors.CodeNotFound, "no checkout recorded for payment intent")
		}

		priced := make([]pkgcheckout.PricedLine, 0, len(rows))
		orderLines := make([]orders.Line, 0, len(rows))
		email := strings.TrimSpace(details.CustomerEmail)
		for _, row := range rows {
			priced = append(priced, pkgcheckout.PricedLine{UnitPrice: row.UnitPrice, Quantity: row.Quantity})
			orderLines = append(orderLines, orders.Line{
				ProductID: row.ProductID,
				Size:      row.Size,
				Quantity:  row.Quantity,
				UnitPrice: row.UnitPrice,
				Bypassed:  row.Status == enums.ReservationBypassed,
			})
		}
		totals := pkgcheckout.ComputeTotals(priced, s.cfg.FreeShippingThreshold, s.cfg.ShippingFee)
		if details.AmountReceived > 0 && details.AmountReceived != pkgcheckout.ToMinorUnits(totals.Total) {
			s.logg.Warn(s.logg.WithFields(ctx, map[string]any{
				"amount_received": details.AmountReceived,
				"expected_amount": pkgcheckout.ToMinorUnits(totals.Total),
			}), "payment amount differs from recorded checkout")
		}

		created, err := s.orders.Create(ctx, tx, orders.CreateInput{
			PaymentIntentID: intentID,
			CustomerEmail:   email,
			Subtotal:        totals.Subtotal,
			Shipping:        totals.Shipping,
			Total:           totals.Total,
			Currency:        s.cfg.Currency,
			Lines:           orderLines,
		})
		if err != nil {
			return err
		}

		// Released or expired lines were already given back, so they are
		// sold from free stock and keep their terminal status.
		open := make([]uuid.UUID, 0, len(rows))
		for _, row := range rows {
			if row.Status == enums.ReservationConsumed {
				continue
			}
			if !row.Status.IsTerminal() {
				open = append(open, row.ID)
			}
			if row.Status == enums.ReservationBypassed {
				continue
			}
			res, err := s.stock.ApplyTx(ctx, tx, inventory.OpDecrement, inventory.MutationInput{
				ProductID:       row.ProductID,
				Size:            row.Size,
				Quantity:        row.Quantity,
				PaymentIntentID: intentID,
				OrderReference:  created.OrderNumber,
				WithoutHold:     row.Status != enums.ReservationActive,
			})
			if err != nil {
				return err
			}
			if !res.Applied {
				return pkgerrors.New(pkgerrors.CodeDependency, "paid line has no size entry").
					WithDetails(map[string]any{"product_id": row.ProductID, "size": row.Size})
			}
		}
		if err := s.resolve(ctx, tx, open, enums.ReservationConsumed, "order "+created.OrderNumber); err != nil {
			return err
		}
		order = created
		return nil
	})
	if err != nil {
		if pkgerrors.As(err) == nil {
			err = pkgerrors.Wrap(pkgerrors.CodeDependency, err, "confirm paid checkout")
		}
		return nil, err
	}
	if existing {
		s.logg.Info(s.logg.WithField(ctx, "order_number", order.OrderNumber), "payment already resolved")
		return order, nil
	}
	s.logg.Info(s.logg.WithFields(ctx, map[string]any{
		"order_number": order.OrderNumber,
		"total":        order.Total.StringFixed(2),
	}), "order confirmed")
	return order, nil
}

// ResolvePaymentFailed returns the held stock of the intent and reports how
// many lines were released.
func (s *service) ResolvePaymentFailed(ctx context.Context, intentID, reason string) (int, error) {
	intentID = strings.TrimSpace(intentID)
	if intentID == "" {
		return 0, pkgerrors.New(pkgerrors.CodeValidation, "payment intent id is required")
	}
	ctx = s.logg.WithPaymentIntent(ctx, intentID)
	reason = strings.TrimSpace(reason)
	if reason == "" {
		reason = "payment failed"
	}

	released := 0
	err := s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		rows, err := s.reservations.LockForIntent(ctx, tx, intentID)
		if err != nil {
			return err
		}
		found, err := s.orders.FindByPaymentIntent(ctx, tx, intentID)
		if err != nil {
			return err
		}
		if found != nil {
			s.logg.Warn(s.logg.WithField(ctx, "order_number", found.OrderNumber), "ignoring payment failure for a confirmed order")
			return nil
		}
		open := make([]uuid.UUID, 0, len(rows))
		for _, row := range rows {
			if row.Status.IsTerminal() {
				continue
			}
			open = append(open, row.ID)
			if row.Status != enums.ReservationActive {
				continue
			}
			res, err := s.stock.ApplyTx(ctx, tx, inventory.OpRelease, inventory.MutationInput{
				ProductID:       row.ProductID,
				Size:            row.Size,
				Quantity:        row.Quantity,
				PaymentIntentID: intentID,
			})
			if err != nil {
				return err
			}
			if res.Applied {
				released++
			}
		}
		return s.resolve(ctx, tx, open, enums.ReservationReleased, reason)
	})
	if err != nil {
		if pkgerrors.As(err) == nil {
			err = pkgerrors.Wrap(pkgerrors.CodeDependency, err, "release failed checkout")
		}
		return 0, err
	}
	if released > 0 {
		s.logg.Info(s.logg.WithFields(ctx, map[string]any{
			"released": released,
			"reason":   reason,
		}), "checkout stock released")
	}
	return released, nil
}

// resolve closes the open lines and fails when any of them was closed by
// someone else since they were read.
func (s *service) resolve(ctx context.Context, tx *gorm.DB, open []uuid.UUID, status enums.ReservationStatus, reason string) error {
	changed, err := s.reservations.MarkResolved(ctx, tx, open, status, reason)
	if err != nil {
		return err
	}
	if changed != int64(len(open)) {
		return pkgerrors.New(pkgerrors.CodeConflict, "checkout reservations changed concurrently").
			WithDetails(map[string]any{"expected": len(open), "changed": changed})
	}
	return nil
}

func findSize(product *models.Product, size string) *models.ProductSize {
	for i := range product.Sizes {
		if product.Sizes[i].Size == size {
			return &product.Sizes[i]
		}
	}
	return nil
}
