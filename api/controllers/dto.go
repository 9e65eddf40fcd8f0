package controllers

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/terra-sneakers/terra-backend/pkg/db/models"
	"github.com/terra-sneakers/terra-backend/pkg/enums"
	"github.com/terra-sneakers/terra-backend/pkg/pagination"
)

// MovementDTO is a ledger entry as returned to admin clients.
type MovementDTO struct {
	ID                uuid.UUID          `json:"id"`
	Reference         string             `json:"reference"`
	Type              enums.MovementType `json:"type"`
	ProductID         uuid.UUID          `json:"product_id"`
	Size              string             `json:"size"`
	Quantity          int                `json:"quantity"`
	StockBefore       int                `json:"stock_before"`
	StockAfter        int                `json:"stock_after"`
	ReservedBefore    int                `json:"reserved_before"`
	ReservedAfter     int                `json:"reserved_after"`
	Reason            string             `json:"reason"`
	OrderReference    *string            `json:"order_reference,omitempty"`
	PaymentIntentID   *string            `json:"payment_intent_id,omitempty"`
	SupplierReference *string            `json:"supplier_reference,omitempty"`
	UnitCost          *decimal.Decimal   `json:"unit_cost,omitempty"`
	TotalCost         *decimal.Decimal   `json:"total_cost,omitempty"`
	IsAutomated       bool               `json:"is_automated"`
	CreatedAt         time.Time          `json:"created_at"`
}

type AlertDTO struct {
	ID                uuid.UUID           `json:"id"`
	AlertReference    string              `json:"alert_reference"`
	AlertType         enums.AlertType     `json:"alert_type"`
	Priority          enums.AlertPriority `json:"priority"`
	ProductID         uuid.UUID           `json:"product_id"`
	Size              string              `json:"size"`
	CurrentStock      int                 `json:"current_stock"`
	Threshold         int                 `json:"threshold"`
	SuggestedQuantity int                 `json:"suggested_quantity"`
	Message           string              `json:"message"`
	IsResolved        bool                `json:"is_resolved"`
	ResolvedAt        *time.Time          `json:"resolved_at,omitempty"`
	ResolutionNotes   *string             `json:"resolution_notes,omitempty"`
	ActionTaken       *enums.AlertAction  `json:"action_taken,omitempty"`
	CreatedAt         time.Time           `json:"created_at"`
}

type SizeDTO struct {
	Size              string `json:"size"`
	Stock             int    `json:"stock"`
	ReservedStock     int    `json:"reserved_stock"`
	AvailableStock    int    `json:"available_stock"`
	LowStockThreshold int    `json:"low_stock_threshold"`
}

type ProductDTO struct {
	ID        uuid.UUID       `json:"id"`
	Title     string          `json:"title"`
	Slug      string          `json:"slug"`
	Price     decimal.Decimal `json:"price"`
	Sizes     []SizeDTO       `json:"sizes"`
	CreatedAt time.Time       `json:"created_at"`
}

type OrderItemDTO struct {
	ProductID uuid.UUID       `json:"product_id"`
	Size      string          `json:"size"`
	Quantity  int             `json:"quantity"`
	UnitPrice decimal.Decimal `json:"unit_price"`
}

type OrderDTO struct {
	ID              uuid.UUID         `json:"id"`
	OrderNumber     string            `json:"order_number"`
	PaymentIntentID string            `json:"payment_intent_id"`
	Status          enums.OrderStatus `json:"status"`
	CustomerEmail   string            `json:"customer_email,omitempty"`
	Subtotal        decimal.Decimal   `json:"subtotal"`
	Shipping        decimal.Decimal   `json:"shipping"`
	Total           decimal.Decimal   `json:"total"`
	Currency        string            `json:"currency"`
	Items           []OrderItemDTO    `json:"items"`
	UpdatedAt       time.Time         `json:"updated_at"`
}

func movementDTO(m models.StockMovement) MovementDTO {
	return MovementDTO{
		ID:                m.ID,
		Reference:         m.Reference,
		Type:              m.Type,
		ProductID:         m.ProductID,
		Size:              m.Size,
		Quantity:          m.Quantity,
		StockBefore:       m.StockBefore,
		StockAfter:        m.StockAfter,
		ReservedBefore:    m.ReservedBefore,
		ReservedAfter:     m.ReservedAfter,
		Reason:            m.Reason,
		OrderReference:    m.OrderReference,
		PaymentIntentID:   m.PaymentIntentID,
		SupplierReference: m.SupplierReference,
		UnitCost:          nullable(m.UnitCost),
		TotalCost:         nullable(m.TotalCost),
		IsAutomated:       m.IsAutomated,
		CreatedAt:         m.CreatedAt,
	}
}

func alertDTO(a models.StockAlert) AlertDTO {
	return AlertDTO{
		ID:                a.ID,
		AlertReference:    a.AlertReference,
		AlertType:         a.AlertType,
		Priority:          a.Priority,
		ProductID:         a.ProductID,
		Size:              a.Size,
		CurrentStock:      a.CurrentStock,
		Threshold:         a.Threshold,
		SuggestedQuantity: a.SuggestedQuantity,
		Message:           a.Message,
		IsResolved:        a.IsResolved,
		ResolvedAt:        a.ResolvedAt,
		ResolutionNotes:   a.ResolutionNotes,
		ActionTaken:       a.ActionTaken,
		CreatedAt:         a.CreatedAt,
	}
}

func productDTO(p *models.Product) ProductDTO {
	dto := ProductDTO{
		ID:        p.ID,
		Title:     p.Title,
		Slug:      p.Slug,
		Price:     p.Price,
		Sizes:     make([]SizeDTO, 0, len(p.Sizes)),
		CreatedAt: p.CreatedAt,
	}
	for _, s := range p.Sizes {
		dto.Sizes = append(dto.Sizes, SizeDTO{
			Size:              s.Size,
			Stock:             s.Stock,
			ReservedStock:     s.ReservedStock,
			AvailableStock:    s.AvailableStock,
			LowStockThreshold: s.LowStockThreshold,
		})
	}
	return dto
}

func orderDTO(o *models.Order) OrderDTO {
	dto := OrderDTO{
		ID:              o.ID,
		OrderNumber:     o.OrderNumber,
		PaymentIntentID: o.PaymentIntentID,
		Status:          o.Status,
		CustomerEmail:   o.CustomerEmail,
		Subtotal:        o.Subtotal,
		Shipping:        o.Shipping,
		Total:           o.Total,
		Currency:        o.Currency,
		Items:           make([]OrderItemDTO, 0, len(o.Items)),
		UpdatedAt:       o.UpdatedAt,
	}
	for _, item := range o.Items {
		dto.Items = append(dto.Items, OrderItemDTO{
			ProductID: item.ProductID,
			Size:      item.Size,
			Quantity:  item.Quantity,
			UnitPrice: item.UnitPrice,
		})
	}
	return dto
}

func mapPage[T, D any](page pagination.Page[T], fn func(T) D) pagination.Page[D] {
	out := pagination.Page[D]{Items: make([]D, 0, len(page.Items)), NextCursor: page.NextCursor}
	for _, item := range page.Items {
		out.Items = append(out.Items, fn(item))
	}
	return out
}

func nullable(v decimal.NullDecimal) *decimal.Decimal {
	if !v.Valid {
		return nil
	}
	d := v.Decimal
	return &d
}
