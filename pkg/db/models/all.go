package models

// All lists every persisted model, in dependency order.
func All() []any {
	return []any{
		&Product{},
		&ProductSize{},
		&StockMovement{},
		&StockReservation{},
		&StockAlert{},
		&Order{},
		&OrderItem{},
		&OutboxEvent{},
	}
}
