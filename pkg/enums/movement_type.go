package enums

// MovementType classifies a stock ledger entry (stock_movements.type).
type MovementType string

const (
	MovementRestock     MovementType = "restock"
	MovementSale        MovementType = "sale"
	MovementReturn      MovementType = "return"
	MovementAdjustment  MovementType = "adjustment"
	MovementReservation MovementType = "reservation"
	MovementRelease     MovementType = "release"
	MovementInitial     MovementType = "initial"
)

var validMovementTypes = []MovementType{
	MovementRestock,
	MovementSale,
	MovementReturn,
	MovementAdjustment,
	MovementReservation,
	MovementRelease,
	MovementInitial,
}

// IsValid reports whether the value is a known movement type.
func (m MovementType) IsValid() bool {
	return contains(validMovementTypes, m)
}

// ParseMovementType converts raw input into MovementType.
func ParseMovementType(value string) (MovementType, error) {
	return parse(validMovementTypes, value, "movement type")
}
