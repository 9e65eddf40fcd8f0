package orders

import (
	"crypto/rand"
	"encoding/hex"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/terra-sneakers/terra-backend/pkg/enums"
)

// Line is one purchased item.
type Line struct {
	ProductID uuid.UUID
	Size      string
	Quantity  int
	UnitPrice decimal.Decimal
	// Bypassed marks a test-fixture line that never held or sold stock.
	Bypassed bool
}

// CreateInput describes an order confirmed by a successful payment.
type CreateInput struct {
	PaymentIntentID string
	CustomerEmail   string
	Subtotal        decimal.Decimal
	Shipping        decimal.Decimal
	Total           decimal.Decimal
	Currency        string
	Lines           []Line
}

// transitions lists the statuses each status may move to.
var transitions = map[enums.OrderStatus][]enums.OrderStatus{
	enums.OrderStatusPending:   {enums.OrderStatusConfirmed, enums.OrderStatusCancelled},
	enums.OrderStatusConfirmed: {enums.OrderStatusPreparing, enums.OrderStatusShipped, enums.OrderStatusCancelled, enums.OrderStatusRefunded},
	enums.OrderStatusPreparing: {enums.OrderStatusShipped, enums.OrderStatusCancelled},
	enums.OrderStatusShipped:   {enums.OrderStatusDelivered},
}

// CanTransition reports whether an order may move from one status to another.
func CanTransition(from, to enums.OrderStatus) bool {
	for _, next := range transitions[from] {
		if next == to {
			return true
		}
	}
	return false
}

// returnsStock reports whether the move puts the order's items back on the shelf.
func returnsStock(from, to enums.OrderStatus) bool {
	return to == enums.OrderStatusCancelled &&
		(from == enums.OrderStatusConfirmed || from == enums.OrderStatusPreparing)
}

// NewOrderNumber builds TERRA-<base36 unix-ms>-<suffix>.
func NewOrderNumber(at time.Time) string {
	buf := make([]byte, 2)
	suffix := ""
	if _, err := rand.Read(buf); err == nil {
		suffix = hex.EncodeToString(buf)
	} else {
		suffix = strings.ReplaceAll(uuid.NewString(), "-", "")[:4]
	}
	return "TERRA-" + strings.ToUpper(strconv.FormatInt(at.UnixMilli(), 36)) + "-" + strings.ToUpper(suffix)
}
