package ledger

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"

	"github.com/terra-sneakers/terra-backend/pkg/db/models"
	"github.com/terra-sneakers/terra-backend/pkg/enums"
	pkgerrors "github.com/terra-sneakers/terra-backend/pkg/errors"
	"github.com/terra-sneakers/terra-backend/pkg/pagination"
)

// Service records and reads stock ledger entries.
type Service interface {
	Append(ctx context.Context, tx *gorm.DB, entry Entry) (*models.StockMovement, error)
	List(ctx context.Context, filter Filter, params pagination.Params) (pagination.Page[models.StockMovement], error)
	CountSince(ctx context.Context, since time.Time) (int64, error)
	SumsBySize(ctx context.Context) ([]SizeSums, error)
	ListAfter(ctx context.Context, after *pagination.Cursor, until time.Time, limit int) ([]models.StockMovement, error)
}

// Entry is the immutable data of one counter change. Quantity is signed.
type Entry struct {
	Type              enums.MovementType
	ProductID         uuid.UUID
	Size              string
	Quantity          int
	StockBefore       int
	StockAfter        int
	ReservedBefore    int
	ReservedAfter     int
	Reason            string
	OrderReference    string
	PaymentIntentID   string
	SupplierReference string
	UnitCost          *decimal.Decimal
	Automated         bool
}

type service struct {
	repo Repository
	now  func() time.Time
}

// NewService wires a ledger service with the provided repository.
func NewService(repo Repository) (Service, error) {
	if repo == nil {
		return nil, fmt.Errorf("ledger repository required")
	}
	return &service{repo: repo, now: time.Now}, nil
}

// Append writes the entry inside the caller's transaction.
func (s *service) Append(ctx context.Context, tx *gorm.DB, entry Entry) (*models.StockMovement, error) {
	if tx == nil {
		return nil, fmt.Errorf("transaction required")
	}
	if !entry.Type.IsValid() {
		return nil, fmt.Errorf("invalid movement type %q", entry.Type)
	}
	if entry.ProductID == uuid.Nil {
		return nil, fmt.Errorf("product id is required")
	}
	if strings.TrimSpace(entry.Size) == "" {
		return nil, fmt.Errorf("size is required")
	}

	now := s.now().UTC()
	row := &models.StockMovement{
		Reference:         NewReference(now),
		Type:              entry.Type,
		ProductID:         entry.ProductID,
		Size:              entry.Size,
		Quantity:          entry.Quantity,
		StockBefore:       entry.StockBefore,
		StockAfter:        entry.StockAfter,
		ReservedBefore:    entry.ReservedBefore,
		ReservedAfter:     entry.ReservedAfter,
		Reason:            entry.Reason,
		OrderReference:    optional(entry.OrderReference),
		PaymentIntentID:   optional(entry.PaymentIntentID),
		SupplierReference: optional(entry.SupplierReference),
		IsAutomated:       entry.Automated,
		CreatedAt:         now,
	}
	if entry.UnitCost != nil {
		qty := entry.Quantity
		if qty < 0 {
			qty = -qty
		}
		row.UnitCost = decimal.NewNullDecimal(*entry.UnitCost)
		row.TotalCost = decimal.NewNullDecimal(entry.UnitCost.Mul(decimal.NewFromInt(int64(qty))))
	}

	if err := s.repo.WithTx(tx).Create(ctx, row); err != nil {
		return nil, err
	}
	return row, nil
}

func (s *service) List(ctx context.Context, filter Filter, params pagination.Params) (pagination.Page[models.StockMovement], error) {
	if filter.Type != nil && !filter.Type.IsValid() {
		return pagination.Page[models.StockMovement]{}, pkgerrors.Newf(pkgerrors.CodeValidation, "invalid movement type %q", *filter.Type)
	}
	rows, err := s.repo.List(ctx, filter, params)
	if err != nil {
		if _, cursorErr := pagination.ParseCursor(params.Cursor); cursorErr != nil {
			return pagination.Page[models.StockMovement]{}, pkgerrors.Wrap(pkgerrors.CodeValidation, cursorErr, "invalid cursor")
		}
		return pagination.Page[models.StockMovement]{}, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "list stock movements")
	}
	return pagination.BuildPage(rows, params.Limit), nil
}

func (s *service) CountSince(ctx context.Context, since time.Time) (int64, error) {
	return s.repo.CountSince(ctx, since)
}

func (s *service) SumsBySize(ctx context.Context) ([]SizeSums, error) {
	return s.repo.SumsBySize(ctx)
}

func (s *service) ListAfter(ctx context.Context, after *pagination.Cursor, until time.Time, limit int) ([]models.StockMovement, error) {
	if limit <= 0 {
		limit = pagination.MaxLimit
	}
	return s.repo.ListAfter(ctx, after, until, limit)
}

// NewReference builds a ledger reference of the form MOV-<unix-ms>-<suffix>.
func NewReference(at time.Time) string {
	return fmt.Sprintf("MOV-%d-%s", at.UnixMilli(), randomSuffix(3))
}

// randomSuffix returns 2n upper-case hex characters.
func randomSuffix(n int) string {
	buf := make([]byte, n)
	if _, err := rand.Read(buf); err != nil {
		return strings.ToUpper(strings.ReplaceAll(uuid.NewString(), "-", "")[:2*n])
	}
	return strings.ToUpper(hex.EncodeToString(buf))
}

func optional(value string) *string {
	value = strings.TrimSpace(value)
	if value == "" {
		return nil
	}
	return &value
}
