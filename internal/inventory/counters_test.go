package inventory

import (
	"math/rand"
	"testing"
)

func TestPlan(t *testing.T) {
	cases := []struct {
		name    string
		op      Operation
		before  Counters
		change  change
		after   Counters
		clamped bool
		failure Failure
	}{
		{"reserve within available", OpReserve, counters(10, 0), change{quantity: 3}, counters(10, 3), false, FailureNone},
		{"reserve exactly available", OpReserve, counters(10, 7), change{quantity: 3}, counters(10, 10), false, FailureNone},
		{"reserve beyond available", OpReserve, counters(5, 2), change{quantity: 4}, counters(5, 2), false, FailureInsufficientStock},
		{"release", OpRelease, counters(10, 3), change{quantity: 3}, counters(10, 0), false, FailureNone},
		{"release beyond reserved", OpRelease, counters(10, 2), change{quantity: 5}, counters(10, 0), true, FailureNone},
		{"decrement held line", OpDecrement, counters(10, 3), change{quantity: 3}, counters(7, 0), false, FailureNone},
		{"decrement without hold", OpDecrement, counters(10, 4), change{quantity: 2, withoutHold: true}, counters(8, 4), false, FailureNone},
		{"decrement without hold trims reserved", OpDecrement, counters(3, 3), change{quantity: 2, withoutHold: true}, counters(1, 1), true, FailureNone},
		{"decrement beyond stock", OpDecrement, counters(2, 1), change{quantity: 5}, counters(0, 0), true, FailureNone},
		{"return", OpReturn, counters(4, 1), change{quantity: 2}, counters(6, 1), false, FailureNone},
		{"restock", OpRestock, counters(7, 0), change{quantity: 20}, counters(27, 0), false, FailureNone},
		{"adjust down below reserved", OpAdjust, counters(10, 6), change{newStock: 4}, counters(4, 4), true, FailureNone},
		{"adjust up", OpAdjust, counters(10, 6), change{newStock: 12}, counters(12, 6), false, FailureNone},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			after, clamped, failure := plan(tc.op, tc.before, tc.change)
			if after != tc.after || clamped != tc.clamped || failure != tc.failure {
				t.Fatalf("plan(%s) = %+v clamped=%v failure=%q, want %+v clamped=%v failure=%q",
					tc.op, after, clamped, failure, tc.after, tc.clamped, tc.failure)
			}
		})
	}
}

func TestLedgerQuantity(t *testing.T) {
	if got := ledgerQuantity(OpRelease, counters(5, 3), counters(5, 0), 3); got != -3 {
		t.Fatalf("release quantity = %d", got)
	}
	if got := ledgerQuantity(OpDecrement, counters(5, 3), counters(2, 0), 3); got != -3 {
		t.Fatalf("decrement quantity = %d", got)
	}
	if got := ledgerQuantity(OpAdjust, counters(10, 0), counters(4, 0), 0); got != -6 {
		t.Fatalf("adjust quantity = %d", got)
	}
	if got := ledgerQuantity(OpReserve, counters(10, 0), counters(10, 2), 2); got != 2 {
		t.Fatalf("reserve quantity = %d", got)
	}
}

func TestPlanKeepsCountersConsistent(t *testing.T) {
	ops := []Operation{OpReserve, OpRelease, OpDecrement, OpReturn, OpRestock, OpAdjust}
	rng := rand.New(rand.NewSource(42))
	state := counters(10, 0)
	for i := 0; i < 5000; i++ {
		op := ops[rng.Intn(len(ops))]
		c := change{quantity: rng.Intn(8) + 1, newStock: rng.Intn(30), withoutHold: rng.Intn(4) == 0}
		after, _, failure := plan(op, state, c)
		if failure == FailureInsufficientStock {
			if after != state {
				t.Fatalf("step %d: rejected %s changed counters", i, op)
			}
			continue
		}
		if after.Stock < 0 || after.Reserved < 0 || after.Available < 0 {
			t.Fatalf("step %d: negative counter after %s: %+v", i, op, after)
		}
		if after.Reserved > after.Stock {
			t.Fatalf("step %d: reserved above stock after %s: %+v", i, op, after)
		}
		if after.Available != after.Stock-after.Reserved {
			t.Fatalf("step %d: available drifted after %s: %+v", i, op, after)
		}
		state = after
	}
}
