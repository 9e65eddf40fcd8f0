package inventory

// change is the normalized request handed to plan.
type change struct {
	quantity    int
	newStock    int
	withoutHold bool
}

func counters(stock, reserved int) Counters {
	return Counters{Stock: stock, Reserved: reserved, Available: max(0, stock-reserved)}
}

// plan computes the counters after op. It never lets a counter go negative
// or reserved exceed stock; clamped reports that one of those bounds was hit.
func plan(op Operation, before Counters, c change) (after Counters, clamped bool, failure Failure) {
	stock, reserved := before.Stock, before.Reserved
	q := c.quantity

	switch op {
	case OpReserve:
		if before.Available < q {
			return before, false, FailureInsufficientStock
		}
		reserved += q
	case OpRelease:
		if q > reserved {
			clamped = true
		}
		reserved = max(0, reserved-q)
	case OpDecrement:
		if q > stock {
			clamped = true
		}
		stock = max(0, stock-q)
		if !c.withoutHold {
			if q > reserved {
				clamped = true
			}
			reserved = max(0, reserved-q)
		}
	case OpReturn, OpRestock:
		stock += q
	case OpAdjust:
		stock = max(0, c.newStock)
	}

	if reserved > stock {
		reserved = stock
		clamped = true
	}
	return counters(stock, reserved), clamped, FailureNone
}

// ledgerQuantity is the signed quantity recorded on the ledger entry.
func ledgerQuantity(op Operation, before, after Counters, q int) int {
	switch op {
	case OpRelease, OpDecrement:
		return -q
	case OpAdjust:
		return after.Stock - before.Stock
	default:
		return q
	}
}
