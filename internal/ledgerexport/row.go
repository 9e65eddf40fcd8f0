package ledgerexport

import (
	"time"

	cbigquery "cloud.google.com/go/bigquery"

	"github.com/terra-sneakers/terra-backend/pkg/db/models"
)

// MovementRow mirrors the stock_movements BigQuery schema.
type MovementRow struct {
	MovementID        string    `bigquery:"movement_id"`
	Reference         string    `bigquery:"reference"`
	Type              string    `bigquery:"type"`
	ProductID         string    `bigquery:"product_id"`
	Size              string    `bigquery:"size"`
	Quantity          int64     `bigquery:"quantity"`
	StockBefore       int64     `bigquery:"stock_before"`
	StockAfter        int64     `bigquery:"stock_after"`
	ReservedBefore    int64     `bigquery:"reserved_before"`
	ReservedAfter     int64     `bigquery:"reserved_after"`
	Reason            string    `bigquery:"reason"`
	OrderReference    *string   `bigquery:"order_reference"`
	PaymentIntentID   *string   `bigquery:"payment_intent_id"`
	SupplierReference *string   `bigquery:"supplier_reference"`
	UnitCost          *string   `bigquery:"unit_cost"`
	TotalCost         *string   `bigquery:"total_cost"`
	IsAutomated       bool      `bigquery:"is_automated"`
	CreatedAt         time.Time `bigquery:"created_at"`
}

func rowFromMovement(m models.StockMovement) MovementRow {
	row := MovementRow{
		MovementID:        m.ID.String(),
		Reference:         m.Reference,
		Type:              string(m.Type),
		ProductID:         m.ProductID.String(),
		Size:              m.Size,
		Quantity:          int64(m.Quantity),
		StockBefore:       int64(m.StockBefore),
		StockAfter:        int64(m.StockAfter),
		ReservedBefore:    int64(m.ReservedBefore),
		ReservedAfter:     int64(m.ReservedAfter),
		Reason:            m.Reason,
		OrderReference:    m.OrderReference,
		PaymentIntentID:   m.PaymentIntentID,
		SupplierReference: m.SupplierReference,
		IsAutomated:       m.IsAutomated,
		CreatedAt:         m.CreatedAt.UTC(),
	}
	if m.UnitCost.Valid {
		cost := m.UnitCost.Decimal.StringFixed(2)
		row.UnitCost = &cost
	}
	if m.TotalCost.Valid {
		cost := m.TotalCost.Decimal.StringFixed(2)
		row.TotalCost = &cost
	}
	return row
}

// saver keys the streaming insert on the ledger reference so a replayed batch
// is deduplicated by BigQuery.
func saver(m models.StockMovement) *cbigquery.StructSaver {
	row := rowFromMovement(m)
	return &cbigquery.StructSaver{Struct: &row, InsertID: m.Reference}
}
