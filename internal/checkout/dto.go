package checkout

import (
	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/terra-sneakers/terra-backend/pkg/enums"
)

// Item is one requested checkout line.
type Item struct {
	ProductID   uuid.UUID `json:"productId" validate:"required"`
	Size        string    `json:"size" validate:"required"`
	Quantity    int       `json:"quantity" validate:"required,gt=0"`
	TestFixture bool      `json:"testFixture,omitempty"`
}

// Request starts a checkout.
type Request struct {
	Items         []Item `json:"items" validate:"required,min=1,dive"`
	CustomerEmail string `json:"customerEmail" validate:"omitempty,email"`
}

// LineReservation reports how each line was held.
type LineReservation struct {
	ProductID uuid.UUID               `json:"productId"`
	Size      string                  `json:"size"`
	Quantity  int                     `json:"quantity"`
	Status    enums.ReservationStatus `json:"status"`
}

// Response is returned to the storefront to confirm the payment client side.
type Response struct {
	PaymentIntentID string            `json:"paymentIntentId"`
	ClientSecret    string            `json:"clientSecret"`
	Subtotal        decimal.Decimal   `json:"subtotal"`
	Shipping        decimal.Decimal   `json:"shipping"`
	Total           decimal.Decimal   `json:"total"`
	Currency        string            `json:"currency"`
	Reservations    []LineReservation `json:"reservations"`
}

// PaymentDetails carries what the payment provider reported on success.
type PaymentDetails struct {
	CustomerEmail  string
	AmountReceived int64
}

// Config holds the checkout pricing and reservation rules.
type Config struct {
	Currency              string
	FreeShippingThreshold decimal.Decimal
	ShippingFee           decimal.Decimal
	StrictReservations    bool
	AllowTestFixtures     bool
}

// pricedLine is a requested line resolved against the catalog.
type pricedLine struct {
	Item
	Title     string
	UnitPrice decimal.Decimal
	Available int
}
