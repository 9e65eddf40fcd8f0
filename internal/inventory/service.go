package inventory

import (
	"context"
	"errors"
	"fmt"
	"regexp"
	"strings"

	"github.com/google/uuid"
	"go.uber.org/multierr"
	"gorm.io/gorm"

	"github.com/terra-sneakers/terra-backend/internal/alerts"
	"github.com/terra-sneakers/terra-backend/internal/ledger"
	"github.com/terra-sneakers/terra-backend/pkg/db"
	"github.com/terra-sneakers/terra-backend/pkg/db/models"
	"github.com/terra-sneakers/terra-backend/pkg/enums"
	pkgerrors "github.com/terra-sneakers/terra-backend/pkg/errors"
	"github.com/terra-sneakers/terra-backend/pkg/logger"
	"github.com/terra-sneakers/terra-backend/pkg/metrics"
)

const (
	defaultMutationAttempts  = 3
	defaultLowStockThreshold = 5
	defaultBulkRestockReason = "bulk restock"
	unknownOrderReference    = "N/A"
)

var (
	errVersionConflict = errors.New("size entry version changed")
	slugSanitizeRe     = regexp.MustCompile(`[^a-z0-9]+`)
)

// Service exposes the stock mutations of size entries. Every mutation reads
// the entry under a row lock, writes the counters with a version check and
// appends its ledger entry in the same transaction.
type Service interface {
	Reserve(ctx context.Context, in MutationInput) (MutationResult, error)
	Release(ctx context.Context, in MutationInput) (MutationResult, error)
	Decrement(ctx context.Context, in MutationInput) (MutationResult, error)
	Return(ctx context.Context, in MutationInput) (MutationResult, error)
	Restock(ctx context.Context, in RestockInput) (MutationResult, error)
	BulkRestock(ctx context.Context, lines []RestockInput) (BulkRestockResult, error)
	Adjust(ctx context.Context, in AdjustInput) (MutationResult, error)
	// ApplyTx runs a reserve, release, decrement or return inside the
	// caller's transaction.
	ApplyTx(ctx context.Context, tx *gorm.DB, op Operation, in MutationInput) (MutationResult, error)

	CreateProduct(ctx context.Context, in CreateProductInput) (*models.Product, error)
	GetProduct(ctx context.Context, id uuid.UUID) (*models.Product, error)
	GetSize(ctx context.Context, productID uuid.UUID, size string) (*models.ProductSize, error)
}

type ledgerAppender interface {
	Append(ctx context.Context, tx *gorm.DB, entry ledger.Entry) (*models.StockMovement, error)
}

type alertEvaluator interface {
	Evaluate(ctx context.Context, tx *gorm.DB, snap alerts.Snapshot) (alerts.Outcome, error)
}

type txRunner interface {
	WithTx(ctx context.Context, fn func(tx *gorm.DB) error) error
}

type ServiceParams struct {
	Repository       Repository
	Ledger           ledgerAppender
	Alerts           alertEvaluator
	TxRunner         txRunner
	Logger           *logger.Logger
	Metrics          *metrics.StockMetrics
	MutationAttempts int
	DefaultThreshold int
}

type service struct {
	repo      Repository
	ledger    ledgerAppender
	alerts    alertEvaluator
	tx        txRunner
	logg      *logger.Logger
	metrics   *metrics.StockMetrics
	attempts  int
	threshold int
}

func NewService(params ServiceParams) (Service, error) {
	if params.Repository == nil {
		return nil, fmt.Errorf("inventory repository required")
	}
	if params.Ledger == nil {
		return nil, fmt.Errorf("ledger required")
	}
	if params.Alerts == nil {
		return nil, fmt.Errorf("alert evaluator required")
	}
	if params.TxRunner == nil {
		return nil, fmt.Errorf("transaction runner required")
	}
	if params.Logger == nil {
		return nil, fmt.Errorf("logger required")
	}
	attempts := params.MutationAttempts
	if attempts <= 0 {
		attempts = defaultMutationAttempts
	}
	threshold := params.DefaultThreshold
	if threshold <= 0 {
		threshold = defaultLowStockThreshold
	}
	return &service{
		repo:      params.Repository,
		ledger:    params.Ledger,
		alerts:    params.Alerts,
		tx:        params.TxRunner,
		logg:      params.Logger,
		metrics:   params.Metrics,
		attempts:  attempts,
		threshold: threshold,
	}, nil
}

func (s *service) Reserve(ctx context.Context, in MutationInput) (MutationResult, error) {
	return s.run(ctx, OpReserve, in, change{quantity: in.Quantity})
}

func (s *service) Release(ctx context.Context, in MutationInput) (MutationResult, error) {
	return s.run(ctx, OpRelease, in, change{quantity: in.Quantity})
}

func (s *service) Decrement(ctx context.Context, in MutationInput) (MutationResult, error) {
	return s.run(ctx, OpDecrement, in, change{quantity: in.Quantity, withoutHold: in.WithoutHold})
}

func (s *service) Return(ctx context.Context, in MutationInput) (MutationResult, error) {
	return s.run(ctx, OpReturn, in, change{quantity: in.Quantity})
}

func (s *service) Restock(ctx context.Context, in RestockInput) (MutationResult, error) {
	return s.restock(ctx, in, "")
}

func (s *service) restock(ctx context.Context, in RestockInput, defaultReason string) (MutationResult, error) {
	if in.UnitCost != nil && in.UnitCost.IsNegative() {
		return MutationResult{}, pkgerrors.New(pkgerrors.CodeValidation, "unit cost must not be negative")
	}
	reason := strings.TrimSpace(in.Reason)
	if reason == "" {
		reason = defaultReason
	}
	return s.runWith(ctx, OpRestock, MutationInput{
		ProductID: in.ProductID,
		Size:      in.Size,
		Quantity:  in.Quantity,
		Reason:    reason,
	}, change{quantity: in.Quantity}, func(entry *ledger.Entry) {
		entry.SupplierReference = in.SupplierReference
		entry.UnitCost = in.UnitCost
		entry.Automated = false
	})
}

// BulkRestock applies every line on its own; one failing line never blocks
// the others.
func (s *service) BulkRestock(ctx context.Context, lines []RestockInput) (BulkRestockResult, error) {
	result := BulkRestockResult{Results: make([]BulkRestockLine, 0, len(lines))}
	if len(lines) == 0 {
		return result, pkgerrors.New(pkgerrors.CodeValidation, "at least one restock line is required")
	}
	var errs error
	for _, line := range lines {
		row := BulkRestockLine{ProductID: line.ProductID, Size: line.Size, Quantity: line.Quantity}
		res, err := s.restock(ctx, line, defaultBulkRestockReason)
		switch {
		case err != nil:
			row.Status = BulkLineError
			row.Message = publicMessage(err)
			errs = multierr.Append(errs, err)
		case !res.Applied:
			row.Status = BulkLineError
			row.Message = failureMessage(res.Failure)
		default:
			row.Status = BulkLineSuccess
			row.Message = fmt.Sprintf("stock %d -> %d", res.Before.Stock, res.After.Stock)
			row.StockBefore = res.Before.Stock
			row.StockAfter = res.After.Stock
		}
		if row.Status == BulkLineSuccess {
			result.Summary.Success++
		} else {
			result.Summary.Errors++
		}
		result.Results = append(result.Results, row)
	}
	result.Summary.Total = len(lines)
	if errs != nil {
		s.logg.Warn(s.logg.WithFields(ctx, map[string]any{
			"lines":  len(lines),
			"errors": result.Summary.Errors,
			"cause":  errs.Error(),
		}), "bulk restock finished with errors")
	}
	return result, nil
}

func (s *service) Adjust(ctx context.Context, in AdjustInput) (MutationResult, error) {
	if in.NewStock < 0 {
		return MutationResult{}, pkgerrors.New(pkgerrors.CodeValidation, "new stock must not be negative")
	}
	reason := strings.TrimSpace(in.Reason)
	if reason == "" {
		return MutationResult{}, pkgerrors.New(pkgerrors.CodeValidation, "adjustment reason is required")
	}
	return s.runWith(ctx, OpAdjust, MutationInput{
		ProductID: in.ProductID,
		Size:      in.Size,
		Reason:    reason,
	}, change{newStock: in.NewStock}, func(entry *ledger.Entry) {
		entry.Automated = false
	})
}

func (s *service) ApplyTx(ctx context.Context, tx *gorm.DB, op Operation, in MutationInput) (MutationResult, error) {
	switch op {
	case OpReserve, OpRelease, OpDecrement, OpReturn:
	default:
		return MutationResult{}, pkgerrors.Newf(pkgerrors.CodeValidation, "operation %q cannot join a transaction", op)
	}
	res, err := s.apply(ctx, tx, op, in, change{quantity: in.Quantity, withoutHold: in.WithoutHold}, nil)
	if errors.Is(err, errVersionConflict) {
		err = pkgerrors.Wrap(pkgerrors.CodeConflict, err, "stock changed concurrently")
	}
	s.observe(op, res, err)
	return res, err
}

func (s *service) run(ctx context.Context, op Operation, in MutationInput, c change) (MutationResult, error) {
	return s.runWith(ctx, op, in, c, nil)
}

// runWith retries the whole transaction when the version check loses a race.
func (s *service) runWith(ctx context.Context, op Operation, in MutationInput, c change, decorate func(*ledger.Entry)) (MutationResult, error) {
	var (
		res MutationResult
		err error
	)
	for attempt := 1; attempt <= s.attempts; attempt++ {
		err = s.tx.WithTx(ctx, func(tx *gorm.DB) error {
			var applyErr error
			res, applyErr = s.apply(ctx, tx, op, in, c, decorate)
			return applyErr
		})
		if !errors.Is(err, errVersionConflict) {
			break
		}
		s.logg.Warn(s.logg.WithFields(s.logg.WithSizeEntry(ctx, in.ProductID.String(), in.Size), map[string]any{
			"operation": op,
			"attempt":   attempt,
		}), "stock version conflict, retrying")
	}
	if errors.Is(err, errVersionConflict) {
		err = pkgerrors.Wrap(pkgerrors.CodeConflict, err, "stock changed concurrently")
	}
	s.observe(op, res, err)
	if err != nil {
		return MutationResult{}, err
	}
	return res, nil
}

func (s *service) apply(ctx context.Context, tx *gorm.DB, op Operation, in MutationInput, c change, decorate func(*ledger.Entry)) (MutationResult, error) {
	res := MutationResult{Operation: op, ProductID: in.ProductID, Size: strings.TrimSpace(in.Size), Quantity: c.quantity}
	if err := validateTarget(in.ProductID, res.Size); err != nil {
		return res, err
	}
	if op != OpAdjust && c.quantity <= 0 {
		return res, pkgerrors.New(pkgerrors.CodeValidation, "quantity must be positive")
	}
	if c.quantity > MaxStock || c.newStock > MaxStock {
		return res, pkgerrors.Newf(pkgerrors.CodeValidation, "quantity must be at most %d", MaxStock)
	}
	if tx == nil {
		return res, pkgerrors.New(pkgerrors.CodeInternal, "transaction required")
	}

	ctx = s.logg.WithSizeEntry(ctx, in.ProductID.String(), res.Size)
	repo := s.repo.WithTx(tx)
	row, err := repo.LockSize(ctx, in.ProductID, res.Size)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			res.Failure = FailureNotFound
			return res, nil
		}
		return res, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load size entry")
	}

	res.Before = counters(row.Stock, row.ReservedStock)
	after, clamped, failure := plan(op, res.Before, c)
	if failure != FailureNone {
		res.Failure = failure
		res.After = res.Before
		return res, nil
	}
	if after.Stock > MaxStock {
		return res, pkgerrors.Newf(pkgerrors.CodeValidation, "stock of size %s would exceed %d", res.Size, MaxStock).
			WithDetails(map[string]any{"stock": res.Before.Stock, "quantity": c.quantity})
	}

	ok, err := repo.UpdateCounters(ctx, row.ID, row.Version, after)
	if err != nil {
		return res, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "update size entry")
	}
	if !ok {
		return res, errVersionConflict
	}

	entry := ledger.Entry{
		Type:            movementType(op),
		ProductID:       in.ProductID,
		Size:            res.Size,
		Quantity:        ledgerQuantity(op, res.Before, after, c.quantity),
		StockBefore:     res.Before.Stock,
		StockAfter:      after.Stock,
		ReservedBefore:  res.Before.Reserved,
		ReservedAfter:   after.Reserved,
		Reason:          ledgerReason(op, in),
		OrderReference:  orderReference(op, in),
		PaymentIntentID: in.PaymentIntentID,
		Automated:       true,
	}
	if decorate != nil {
		decorate(&entry)
	}
	movement, err := s.ledger.Append(ctx, tx, entry)
	if err != nil {
		return res, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "append stock ledger entry")
	}

	title, err := repo.ProductTitle(ctx, in.ProductID)
	if err != nil {
		return res, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load product title")
	}
	if _, err := s.alerts.Evaluate(ctx, tx, alerts.Snapshot{
		ProductID:    in.ProductID,
		ProductTitle: title,
		Size:         res.Size,
		Available:    after.Available,
		Threshold:    s.thresholdFor(row.LowStockThreshold),
	}); err != nil {
		return res, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "evaluate stock alerts")
	}

	res.Applied = true
	res.After = after
	res.Clamped = clamped
	res.MovementReference = movement.Reference

	logCtx := s.logg.WithFields(ctx, map[string]any{
		"operation": op,
		"quantity":  c.quantity,
		"stock":     after.Stock,
		"reserved":  after.Reserved,
		"available": after.Available,
		"movement":  movement.Reference,
	})
	if clamped {
		s.logg.Warn(s.logg.WithFields(logCtx, map[string]any{
			"previous_stock":    res.Before.Stock,
			"previous_reserved": res.Before.Reserved,
		}), "stock counter clamped at bound")
	} else {
		s.logg.Info(logCtx, "stock mutation applied")
	}
	return res, nil
}

func (s *service) observe(op Operation, res MutationResult, err error) {
	switch {
	case errors.Is(err, errVersionConflict) || pkgerrors.IsCode(err, pkgerrors.CodeConflict):
		s.metrics.ObserveMutation(string(op), metrics.OutcomeConflict)
	case err != nil:
		s.metrics.ObserveMutation(string(op), metrics.OutcomeError)
	case res.Failure == FailureNotFound:
		s.metrics.ObserveMutation(string(op), metrics.OutcomeNotFound)
	case res.Failure == FailureInsufficientStock:
		s.metrics.ObserveMutation(string(op), metrics.OutcomeInsufficientStock)
	default:
		s.metrics.ObserveMutation(string(op), metrics.OutcomeApplied)
		if res.Clamped {
			s.metrics.IncClamp(string(op))
		}
	}
}

func (s *service) thresholdFor(value int) int {
	if value <= 0 {
		return s.threshold
	}
	return value
}

// CreateProduct stores the product and its sizes and opens the ledger of each
// size with an initial entry.
func (s *service) CreateProduct(ctx context.Context, in CreateProductInput) (*models.Product, error) {
	title := strings.TrimSpace(in.Title)
	if title == "" {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "title is required")
	}
	if in.Price.IsNegative() {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "price must not be negative")
	}
	if len(in.Sizes) == 0 {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "at least one size is required")
	}
	slug := Slugify(in.Slug)
	if slug == "" {
		slug = Slugify(title)
	}
	if slug == "" {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "slug could not be derived from title")
	}

	product := &models.Product{Title: title, Slug: slug, Price: in.Price.Round(2)}
	seen := map[string]struct{}{}
	for _, size := range in.Sizes {
		label := strings.TrimSpace(size.Size)
		if label == "" {
			return nil, pkgerrors.New(pkgerrors.CodeValidation, "size label is required")
		}
		if _, dup := seen[label]; dup {
			return nil, pkgerrors.Newf(pkgerrors.CodeValidation, "size %s listed twice", label)
		}
		seen[label] = struct{}{}
		if size.Stock < 0 || size.Stock > MaxStock {
			return nil, pkgerrors.Newf(pkgerrors.CodeValidation, "stock of size %s must be between 0 and %d", label, MaxStock)
		}
		c := counters(size.Stock, 0)
		product.Sizes = append(product.Sizes, models.ProductSize{
			Size:              label,
			Stock:             c.Stock,
			ReservedStock:     c.Reserved,
			AvailableStock:    c.Available,
			LowStockThreshold: s.thresholdFor(size.LowStockThreshold),
		})
	}

	err := s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		if err := s.repo.WithTx(tx).CreateProduct(ctx, product); err != nil {
			if db.IsUniqueViolation(err, "") {
				return pkgerrors.Wrap(pkgerrors.CodeConflict, err, "product slug already exists")
			}
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "create product")
		}
		for _, size := range product.Sizes {
			if _, err := s.ledger.Append(ctx, tx, ledger.Entry{
				Type:        enums.MovementInitial,
				ProductID:   product.ID,
				Size:        size.Size,
				Quantity:    size.Stock,
				StockBefore: 0,
				StockAfter:  size.Stock,
				Reason:      "initial stock",
				Automated:   false,
			}); err != nil {
				return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "append initial ledger entry")
			}
			if _, err := s.alerts.Evaluate(ctx, tx, alerts.Snapshot{
				ProductID:    product.ID,
				ProductTitle: product.Title,
				Size:         size.Size,
				Available:    size.AvailableStock,
				Threshold:    size.LowStockThreshold,
			}); err != nil {
				return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "evaluate stock alerts")
			}
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	s.logg.Info(s.logg.WithFields(ctx, map[string]any{
		"product_id": product.ID.String(),
		"slug":       product.Slug,
		"sizes":      len(product.Sizes),
	}), "product created")
	return product, nil
}

func (s *service) GetProduct(ctx context.Context, id uuid.UUID) (*models.Product, error) {
	if id == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "product id is required")
	}
	product, err := s.repo.FindProduct(ctx, id)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, pkgerrors.New(pkgerrors.CodeNotFound, "product not found")
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load product")
	}
	return product, nil
}

func (s *service) GetSize(ctx context.Context, productID uuid.UUID, size string) (*models.ProductSize, error) {
	size = strings.TrimSpace(size)
	if err := validateTarget(productID, size); err != nil {
		return nil, err
	}
	row, err := s.repo.FindSize(ctx, productID, size)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, pkgerrors.New(pkgerrors.CodeNotFound, "size not found")
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load size entry")
	}
	return row, nil
}

// Slugify lowercases value and joins its alphanumeric runs with dashes.
func Slugify(value string) string {
	slug := strings.ToLower(strings.TrimSpace(value))
	slug = slugSanitizeRe.ReplaceAllString(slug, "-")
	return strings.Trim(slug, "-")
}

func validateTarget(productID uuid.UUID, size string) error {
	if productID == uuid.Nil {
		return pkgerrors.New(pkgerrors.CodeValidation, "product id is required")
	}
	if size == "" {
		return pkgerrors.New(pkgerrors.CodeValidation, "size is required")
	}
	return nil
}

func movementType(op Operation) enums.MovementType {
	switch op {
	case OpReserve:
		return enums.MovementReservation
	case OpRelease:
		return enums.MovementRelease
	case OpDecrement:
		return enums.MovementSale
	case OpReturn:
		return enums.MovementReturn
	case OpRestock:
		return enums.MovementRestock
	default:
		return enums.MovementAdjustment
	}
}

func orderReference(op Operation, in MutationInput) string {
	ref := strings.TrimSpace(in.OrderReference)
	if ref == "" && (op == OpDecrement || op == OpReturn) {
		return unknownOrderReference
	}
	return ref
}

func ledgerReason(op Operation, in MutationInput) string {
	if reason := strings.TrimSpace(in.Reason); reason != "" {
		return reason
	}
	switch op {
	case OpReserve:
		return fmt.Sprintf("Reservation - payment %s", fallback(in.PaymentIntentID))
	case OpRelease:
		return fmt.Sprintf("Release - payment %s", fallback(in.PaymentIntentID))
	case OpDecrement:
		return fmt.Sprintf("Sale - order %s", orderReference(op, in))
	case OpReturn:
		return fmt.Sprintf("Cancellation - order %s", orderReference(op, in))
	default:
		return ""
	}
}

func fallback(value string) string {
	if strings.TrimSpace(value) == "" {
		return unknownOrderReference
	}
	return value
}

func failureMessage(f Failure) string {
	switch f {
	case FailureNotFound:
		return "size not found"
	case FailureInsufficientStock:
		return "insufficient stock"
	default:
		return "not applied"
	}
}

func publicMessage(err error) string {
	if typed := pkgerrors.As(err); typed != nil {
		return typed.Message()
	}
	return err.Error()
}

// AsError maps a not-applied result onto the typed error the HTTP edge renders.
func AsError(res MutationResult) error {
	switch res.Failure {
	case FailureNotFound:
		return pkgerrors.New(pkgerrors.CodeNotFound, "size not found").
			WithDetails(map[string]any{"product_id": res.ProductID, "size": res.Size})
	case FailureInsufficientStock:
		return pkgerrors.New(pkgerrors.CodeInsufficientStock, "insufficient stock").
			WithDetails(map[string]any{"product_id": res.ProductID, "size": res.Size, "available": res.Before.Available, "requested": res.Quantity})
	default:
		return nil
	}
}
