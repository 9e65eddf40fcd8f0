package payloads

import (
	"time"

	"github.com/google/uuid"

	"github.com/terra-sneakers/terra-backend/pkg/enums"
)

// StockAlertEvent is emitted when a size entry crosses its low-stock threshold
// or runs out, and again when the alert resolves.
type StockAlertEvent struct {
	AlertID           uuid.UUID           `json:"alert_id"`
	AlertType         enums.AlertType     `json:"alert_type"`
	Priority          enums.AlertPriority `json:"priority"`
	ProductID         uuid.UUID           `json:"product_id"`
	Size              string              `json:"size"`
	AvailableStock    int                 `json:"available_stock"`
	Threshold         int                 `json:"threshold"`
	SuggestedQuantity int                 `json:"suggested_quantity"`
}

// OrderLine is one item of an order event.
type OrderLine struct {
	ProductID uuid.UUID `json:"product_id"`
	Size      string    `json:"size"`
	Quantity  int       `json:"quantity"`
	UnitPrice string    `json:"unit_price"`
}

// OrderEvent covers order confirmation and cancellation.
type OrderEvent struct {
	OrderID         uuid.UUID         `json:"order_id"`
	OrderNumber     string            `json:"order_number"`
	PaymentIntentID string            `json:"payment_intent_id"`
	Status          enums.OrderStatus `json:"status"`
	Total           string            `json:"total"`
	Currency        string            `json:"currency"`
	Lines           []OrderLine       `json:"lines"`
	ChangedAt       time.Time         `json:"changed_at"`
}
