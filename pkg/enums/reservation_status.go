package enums

// ReservationStatus tracks a checkout line hold in stock_reservations.
type ReservationStatus string

const (
	ReservationActive   ReservationStatus = "active"
	ReservationFailed   ReservationStatus = "failed"
	ReservationBypassed ReservationStatus = "bypassed"
	ReservationReleased ReservationStatus = "released"
	ReservationExpired  ReservationStatus = "expired"
	ReservationConsumed ReservationStatus = "consumed"
)

var validReservationStatuses = []ReservationStatus{
	ReservationActive,
	ReservationFailed,
	ReservationBypassed,
	ReservationReleased,
	ReservationExpired,
	ReservationConsumed,
}

func (s ReservationStatus) IsValid() bool { return contains(validReservationStatuses, s) }

// IsTerminal reports whether no further transition is allowed.
func (s ReservationStatus) IsTerminal() bool {
	return s == ReservationReleased || s == ReservationExpired || s == ReservationConsumed
}

func ParseReservationStatus(value string) (ReservationStatus, error) {
	return parse(validReservationStatuses, value, "reservation status")
}
