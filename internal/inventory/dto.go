package inventory

import (
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// Operation names a stock mutation.
type Operation string

const (
	OpReserve   Operation = "reserve"
	OpRelease   Operation = "release"
	OpDecrement Operation = "decrement"
	OpReturn    Operation = "return"
	OpRestock   Operation = "restock"
	OpAdjust    Operation = "adjust"
)

// Failure explains why a mutation was not applied.
type Failure string

const (
	FailureNone              Failure = ""
	FailureNotFound          Failure = "not_found"
	FailureInsufficientStock Failure = "insufficient_stock"
)

// MaxStock bounds every stock counter and the quantity of any single mutation.
const MaxStock = 1_000_000

// Counters is the stock state of one size entry.
type Counters struct {
	Stock     int `json:"stock"`
	Reserved  int `json:"reserved_stock"`
	Available int `json:"available_stock"`
}

// MutationInput targets one size entry.
type MutationInput struct {
	ProductID       uuid.UUID
	Size            string
	Quantity        int
	PaymentIntentID string
	OrderReference  string
	Reason          string
	// WithoutHold decrements stock for a line whose reservation is no longer
	// held, so reserved units of other checkouts are left alone.
	WithoutHold bool
}

// RestockInput adds received units to a size entry.
type RestockInput struct {
	ProductID         uuid.UUID        `json:"product_id" validate:"required"`
	Size              string           `json:"size" validate:"required"`
	Quantity          int              `json:"quantity" validate:"required,gt=0,lte=1000000"`
	UnitCost          *decimal.Decimal `json:"unit_cost,omitempty"`
	SupplierReference string           `json:"supplier_reference,omitempty"`
	Reason            string           `json:"reason,omitempty"`
}

// AdjustInput sets the physical stock after a count.
type AdjustInput struct {
	ProductID uuid.UUID
	Size      string
	NewStock  int
	Reason    string
}

// MutationResult reports the outcome of one mutation. Applied is false when
// Failure is set; no counters or ledger rows were written in that case.
type MutationResult struct {
	Operation         Operation `json:"operation"`
	ProductID         uuid.UUID `json:"product_id"`
	Size              string    `json:"size"`
	Quantity          int       `json:"quantity"`
	Applied           bool      `json:"applied"`
	Failure           Failure   `json:"failure,omitempty"`
	Clamped           bool      `json:"clamped"`
	Before            Counters  `json:"before"`
	After             Counters  `json:"after"`
	MovementReference string    `json:"movement_reference,omitempty"`
}

// BulkLineStatus is the per-line outcome of a bulk restock.
type BulkLineStatus string

const (
	BulkLineSuccess BulkLineStatus = "success"
	BulkLineError   BulkLineStatus = "error"
)

type BulkRestockLine struct {
	ProductID   uuid.UUID      `json:"product_id"`
	Size        string         `json:"size"`
	Quantity    int            `json:"quantity"`
	Status      BulkLineStatus `json:"status"`
	Message     string         `json:"message"`
	StockBefore int            `json:"stock_before"`
	StockAfter  int            `json:"stock_after"`
}

type BulkRestockSummary struct {
	Total   int `json:"total"`
	Success int `json:"success"`
	Errors  int `json:"errors"`
}

type BulkRestockResult struct {
	Results []BulkRestockLine  `json:"results"`
	Summary BulkRestockSummary `json:"summary"`
}

// CreateProductInput seeds a catalog entry with its sizes.
type CreateProductInput struct {
	Title string            `json:"title" validate:"required"`
	Slug  string            `json:"slug"`
	Price decimal.Decimal   `json:"price"`
	Sizes []CreateSizeInput `json:"sizes" validate:"required,min=1,dive"`
}

type CreateSizeInput struct {
	Size              string `json:"size" validate:"required"`
	Stock             int    `json:"stock" validate:"gte=0,lte=1000000"`
	LowStockThreshold int    `json:"low_stock_threshold" validate:"gte=0"`
}
