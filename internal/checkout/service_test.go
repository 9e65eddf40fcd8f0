package checkout

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stripe/stripe-go/v84"
	"gorm.io/gorm"

	"github.com/terra-sneakers/terra-backend/internal/inventory"
	"github.com/terra-sneakers/terra-backend/internal/orders"
	"github.com/terra-sneakers/terra-backend/internal/reservations"
	"github.com/terra-sneakers/terra-backend/internal/stocktest"
	"github.com/terra-sneakers/terra-backend/pkg/db/models"
	"github.com/terra-sneakers/terra-backend/pkg/enums"
	pkgerrors "github.com/terra-sneakers/terra-backend/pkg/errors"
)

var ctx = context.Background()

type fakeIntents struct {
	created   []*stripe.PaymentIntentParams
	cancelled []string
	createErr error
}

func (f *fakeIntents) Create(_ context.Context, params *stripe.PaymentIntentParams) (*stripe.PaymentIntent, error) {
	if f.createErr != nil {
		return nil, f.createErr
	}
	f.created = append(f.created, params)
	id := fmt.Sprintf("pi_test_%d", len(f.created))
	return &stripe.PaymentIntent{ID: id, ClientSecret: id + "_secret", Amount: *params.Amount}, nil
}

func (f *fakeIntents) Cancel(_ context.Context, id string, _ *stripe.PaymentIntentCancelParams) (*stripe.PaymentIntent, error) {
	f.cancelled = append(f.cancelled, id)
	return &stripe.PaymentIntent{ID: id}, nil
}

type fixture struct {
	env          *stocktest.Env
	svc          Service
	intents      *fakeIntents
	orders       orders.Service
	reservations reservations.Service
}

func newFixture(t *testing.T, opts ...func(*ServiceParams)) *fixture {
	t.Helper()
	env := stocktest.NewEnv(t)
	reservationSvc, err := reservations.NewService(reservations.ServiceParams{
		Repository: reservations.NewRepository(env.DB),
		Inventory:  env.Inventory,
		TxRunner:   env.Client,
		Logger:     env.Logger,
	})
	if err != nil {
		t.Fatalf("reservations: %v", err)
	}
	orderSvc, err := orders.NewService(orders.ServiceParams{
		Repository: orders.NewRepository(env.DB),
		TxRunner:   env.Client,
		Outbox:     env.Outbox,
		Inventory:  env.Inventory,
		Logger:     env.Logger,
	})
	if err != nil {
		t.Fatalf("orders: %v", err)
	}
	intents := &fakeIntents{}
	params := ServiceParams{
		Catalog:        env.Inventory,
		Stock:          env.Inventory,
		Reservations:   reservationSvc,
		Orders:         orderSvc,
		PaymentIntents: intents,
		TxRunner:       env.Client,
		Logger:         env.Logger,
		Config: Config{
			Currency:              "EUR",
			FreeShippingThreshold: decimal.RequireFromString("75.00"),
			ShippingFee:           decimal.RequireFromString("7.90"),
		},
	}
	for _, opt := range opts {
		opt(&params)
	}
	svc, err := NewService(params)
	if err != nil {
		t.Fatalf("checkout: %v", err)
	}
	return &fixture{env: env, svc: svc, intents: intents, orders: orderSvc, reservations: reservationSvc}
}

func (f *fixture) rows(t *testing.T, intentID string) []models.StockReservation {
	t.Helper()
	var rows []models.StockReservation
	if err := f.env.DB.Where("payment_intent_id = ?", intentID).Order("product_id").Find(&rows).Error; err != nil {
		t.Fatalf("load reservations: %v", err)
	}
	return rows
}

func TestCreatePaymentIntentReservesStock(t *testing.T) {
	f := newFixture(t)
	productID := f.env.SeedSize(t, "Terra Runner", "89.90", "42", 10, 0)

	resp, err := f.svc.CreatePaymentIntent(ctx, Request{
		Items:         []Item{{ProductID: productID, Size: "42", Quantity: 3}},
		CustomerEmail: "runner@example.com",
	})
	if err != nil {
		t.Fatalf("create payment intent: %v", err)
	}
	if resp.Subtotal.String() != "269.7" || !resp.Shipping.IsZero() || resp.Currency != "eur" {
		t.Fatalf("unexpected totals %+v", resp)
	}
	if len(f.intents.created) != 1 {
		t.Fatalf("expected one intent")
	}
	params := f.intents.created[0]
	if *params.Amount != 26970 || *params.Currency != "eur" {
		t.Fatalf("unexpected intent params amount=%d currency=%s", *params.Amount, *params.Currency)
	}
	if params.Metadata["customer_email"] != "runner@example.com" || params.Metadata["item_count"] != "3" {
		t.Fatalf("unexpected metadata %v", params.Metadata)
	}
	if len(resp.Reservations) != 1 || resp.Reservations[0].Status != enums.ReservationActive {
		t.Fatalf("unexpected reservations %+v", resp.Reservations)
	}
	if got := f.env.Counters(t, productID, "42"); got != [3]int{10, 3, 7} {
		t.Fatalf("unexpected counters %v", got)
	}
	rows := f.rows(t, resp.PaymentIntentID)
	if len(rows) != 1 || rows[0].Status != enums.ReservationActive || rows[0].ProductTitle != "Terra Runner" {
		t.Fatalf("unexpected reservation rows %+v", rows)
	}
}

func TestCreatePaymentIntentChargesShippingBelowThreshold(t *testing.T) {
	f := newFixture(t)
	productID := f.env.SeedSize(t, "Terra Socks", "12.00", "M", 10, 0)

	resp, err := f.svc.CreatePaymentIntent(ctx, Request{Items: []Item{
		{ProductID: productID, Size: "M", Quantity: 1},
		{ProductID: productID, Size: "M", Quantity: 1},
	}})
	if err != nil {
		t.Fatalf("create payment intent: %v", err)
	}
	if resp.Shipping.String() != "7.9" || resp.Total.String() != "31.9" {
		t.Fatalf("unexpected totals %+v", resp)
	}
	if len(resp.Reservations) != 1 || resp.Reservations[0].Quantity != 2 {
		t.Fatalf("duplicate lines should merge, got %+v", resp.Reservations)
	}
	if *f.intents.created[0].Amount != 3190 {
		t.Fatalf("unexpected amount %d", *f.intents.created[0].Amount)
	}
}

func TestCreatePaymentIntentRejectsUnavailableStock(t *testing.T) {
	f := newFixture(t)
	productID := f.env.SeedSize(t, "Terra Runner", "89.90", "42", 3, 1)

	_, err := f.svc.CreatePaymentIntent(ctx, Request{Items: []Item{{ProductID: productID, Size: "42", Quantity: 3}}})
	typed := pkgerrors.As(err)
	if typed == nil || typed.Code() != pkgerrors.CodeInsufficientStock {
		t.Fatalf("expected insufficient stock, got %v", err)
	}
	if typed.Message() != "Insufficient stock for Terra Runner size 42" {
		t.Fatalf("unexpected message %q", typed.Message())
	}
	if len(f.intents.created) != 0 {
		t.Fatalf("no intent should be created")
	}

	_, err = f.svc.CreatePaymentIntent(ctx, Request{Items: []Item{{ProductID: productID, Size: "47", Quantity: 1}}})
	if !pkgerrors.IsCode(err, pkgerrors.CodeNotFound) {
		t.Fatalf("expected unknown size to be not found, got %v", err)
	}
	_, err = f.svc.CreatePaymentIntent(ctx, Request{Items: []Item{{ProductID: uuid.New(), Size: "42", Quantity: 1}}})
	if !pkgerrors.IsCode(err, pkgerrors.CodeNotFound) {
		t.Fatalf("expected unknown product to be not found, got %v", err)
	}
}

func TestTestFixtureRequiresFlag(t *testing.T) {
	f := newFixture(t)
	productID := f.env.SeedSize(t, "Terra Runner", "89.90", "42", 10, 0)

	_, err := f.svc.CreatePaymentIntent(ctx, Request{Items: []Item{{ProductID: productID, Size: "42", Quantity: 1, TestFixture: true}}})
	if !pkgerrors.IsCode(err, pkgerrors.CodeValidation) {
		t.Fatalf("expected validation error without flag, got %v", err)
	}

	allowed := newFixture(t, func(p *ServiceParams) { p.Config.AllowTestFixtures = true })
	fixtureProduct := allowed.env.SeedSize(t, "Terra Fixture", "80.00", "42", 0, 0)
	resp, err := allowed.svc.CreatePaymentIntent(ctx, Request{Items: []Item{{ProductID: fixtureProduct, Size: "42", Quantity: 2, TestFixture: true}}})
	if err != nil {
		t.Fatalf("create with fixture: %v", err)
	}
	if resp.Reservations[0].Status != enums.ReservationBypassed {
		t.Fatalf("expected bypassed line, got %+v", resp.Reservations)
	}
	order, err := allowed.svc.ResolvePaymentSucceeded(ctx, resp.PaymentIntentID, PaymentDetails{})
	if err != nil {
		t.Fatalf("resolve: %v", err)
	}
	if order == nil {
		t.Fatalf("expected order")
	}
	if got := allowed.env.Counters(t, fixtureProduct, "42"); got != [3]int{0, 0, 0} {
		t.Fatalf("fixture lines must not touch stock, got %v", got)
	}
	if len(order.Items) != 1 || !order.Items[0].Bypassed {
		t.Fatalf("expected the fixture line to be flagged on the order, got %+v", order.Items)
	}
}

func TestPaymentSucceededDecrementsAndIsIdempotent(t *testing.T) {
	f := newFixture(t)
	productID := f.env.SeedSize(t, "Terra Runner", "89.90", "42", 10, 0)
	resp, err := f.svc.CreatePaymentIntent(ctx, Request{Items: []Item{{ProductID: productID, Size: "42", Quantity: 3}}})
	if err != nil {
		t.Fatalf("create payment intent: %v", err)
	}

	order, err := f.svc.ResolvePaymentSucceeded(ctx, resp.PaymentIntentID, PaymentDetails{CustomerEmail: "runner@example.com", AmountReceived: 26970})
	if err != nil {
		t.Fatalf("resolve: %v", err)
	}
	if order.Status != enums.OrderStatusConfirmed || !order.Total.Equal(decimal.RequireFromString("269.70")) {
		t.Fatalf("unexpected order %+v", order)
	}
	if !strings.HasPrefix(order.OrderNumber, "TERRA-") {
		t.Fatalf("unexpected order number %q", order.OrderNumber)
	}
	if got := f.env.Counters(t, productID, "42"); got != [3]int{7, 0, 7} {
		t.Fatalf("unexpected counters after payment %v", got)
	}
	moves := f.env.Movements(t, productID)
	sale := moves[len(moves)-1]
	if sale.Type != enums.MovementSale || sale.StockBefore != 10 || sale.StockAfter != 7 || sale.Reason != "Sale - order "+order.OrderNumber {
		t.Fatalf("unexpected sale entry %+v", sale)
	}
	rows := f.rows(t, resp.PaymentIntentID)
	if rows[0].Status != enums.ReservationConsumed {
		t.Fatalf("expected consumed reservation, got %s", rows[0].Status)
	}

	again, err := f.svc.ResolvePaymentSucceeded(ctx, resp.PaymentIntentID, PaymentDetails{})
	if err != nil {
		t.Fatalf("second resolve: %v", err)
	}
	if again.ID != order.ID {
		t.Fatalf("expected the same order on replay")
	}
	if got := f.env.Counters(t, productID, "42"); got != [3]int{7, 0, 7} {
		t.Fatalf("replay must not decrement again %v", got)
	}
	var confirmed int64
	f.env.DB.Model(&models.OutboxEvent{}).Where("event_type = ?", enums.EventOrderConfirmed).Count(&confirmed)
	if confirmed != 1 {
		t.Fatalf("expected a single order.confirmed event, got %d", confirmed)
	}
}

func TestPaymentSucceededAfterExpiryTouchesOnlyStock(t *testing.T) {
	f := newFixture(t)
	productID := f.env.SeedSize(t, "Terra Runner", "89.90", "42", 10, 0)
	resp, err := f.svc.CreatePaymentIntent(ctx, Request{Items: []Item{{ProductID: productID, Size: "42", Quantity: 2}}})
	if err != nil {
		t.Fatalf("create payment intent: %v", err)
	}
	other, err := f.svc.CreatePaymentIntent(ctx, Request{Items: []Item{{ProductID: productID, Size: "42", Quantity: 4}}})
	if err != nil {
		t.Fatalf("second checkout: %v", err)
	}
	if _, err := f.svc.ResolvePaymentFailed(ctx, resp.PaymentIntentID, "expired"); err != nil {
		t.Fatalf("release first checkout: %v", err)
	}
	if got := f.env.Counters(t, productID, "42"); got != [3]int{10, 4, 6} {
		t.Fatalf("unexpected counters before late payment %v", got)
	}

	if _, err := f.svc.ResolvePaymentSucceeded(ctx, resp.PaymentIntentID, PaymentDetails{}); err != nil {
		t.Fatalf("late payment: %v", err)
	}
	if got := f.env.Counters(t, productID, "42"); got != [3]int{8, 4, 4} {
		t.Fatalf("late payment must keep the other hold, got %v", got)
	}
	if rows := f.rows(t, other.PaymentIntentID); rows[0].Status != enums.ReservationActive {
		t.Fatalf("other checkout should still be active")
	}
}

func TestPaymentFailedReleasesHeldLines(t *testing.T) {
	f := newFixture(t)
	productID := f.env.SeedSize(t, "Terra Runner", "89.90", "42", 10, 0)
	resp, err := f.svc.CreatePaymentIntent(ctx, Request{Items: []Item{{ProductID: productID, Size: "42", Quantity: 3}}})
	if err != nil {
		t.Fatalf("create payment intent: %v", err)
	}

	released, err := f.svc.ResolvePaymentFailed(ctx, resp.PaymentIntentID, "card_declined")
	if err != nil {
		t.Fatalf("resolve failed: %v", err)
	}
	if released != 1 {
		t.Fatalf("expected 1 released line, got %d", released)
	}
	if got := f.env.Counters(t, productID, "42"); got != [3]int{10, 0, 10} {
		t.Fatalf("unexpected counters %v", got)
	}
	rows := f.rows(t, resp.PaymentIntentID)
	if rows[0].Status != enums.ReservationReleased || rows[0].ReleaseReason == nil || *rows[0].ReleaseReason != "card_declined" {
		t.Fatalf("unexpected row %+v", rows[0])
	}

	released, err = f.svc.ResolvePaymentFailed(ctx, resp.PaymentIntentID, "card_declined")
	if err != nil || released != 0 {
		t.Fatalf("second failure must be a no-op, got %d (%v)", released, err)
	}
	if got := f.env.Counters(t, productID, "42"); got != [3]int{10, 0, 10} {
		t.Fatalf("second failure changed counters %v", got)
	}
}

func TestPaymentSucceededForUnknownIntent(t *testing.T) {
	f := newFixture(t)
	if _, err := f.svc.ResolvePaymentSucceeded(ctx, "pi_unknown", PaymentDetails{}); !pkgerrors.IsCode(err, pkgerrors.CodeNotFound) {
		t.Fatalf("expected not found, got %v", err)
	}
	if _, err := f.svc.ResolvePaymentSucceeded(ctx, " ", PaymentDetails{}); !pkgerrors.IsCode(err, pkgerrors.CodeValidation) {
		t.Fatalf("expected validation error, got %v", err)
	}
}

func TestIntentCreationFailureLeavesStockUntouched(t *testing.T) {
	f := newFixture(t)
	f.intents.createErr = errors.New("stripe down")
	productID := f.env.SeedSize(t, "Terra Runner", "89.90", "42", 10, 0)

	_, err := f.svc.CreatePaymentIntent(ctx, Request{Items: []Item{{ProductID: productID, Size: "42", Quantity: 1}}})
	if !pkgerrors.IsCode(err, pkgerrors.CodeDependency) {
		t.Fatalf("expected dependency error, got %v", err)
	}
	if got := f.env.Counters(t, productID, "42"); got != [3]int{10, 0, 10} {
		t.Fatalf("unexpected counters %v", got)
	}
}

// staleCatalog reports plenty of stock so the hold step sees the real counters.
type staleCatalog struct {
	catalog
}

func (c staleCatalog) GetProduct(ctx context.Context, id uuid.UUID) (*models.Product, error) {
	product, err := c.catalog.GetProduct(ctx, id)
	if err != nil {
		return nil, err
	}
	for i := range product.Sizes {
		product.Sizes[i].AvailableStock = 99
	}
	return product, nil
}

func TestReservationFailureIsRecordedWhenNotStrict(t *testing.T) {
	f := newFixture(t, func(p *ServiceParams) { p.Catalog = staleCatalog{p.Catalog} })
	productID := f.env.SeedSize(t, "Terra Runner", "89.90", "42", 1, 0)

	resp, err := f.svc.CreatePaymentIntent(ctx, Request{Items: []Item{{ProductID: productID, Size: "42", Quantity: 3}}})
	if err != nil {
		t.Fatalf("create payment intent: %v", err)
	}
	if resp.Reservations[0].Status != enums.ReservationFailed {
		t.Fatalf("expected failed reservation, got %+v", resp.Reservations)
	}
	if got := f.env.Counters(t, productID, "42"); got != [3]int{1, 0, 1} {
		t.Fatalf("failed reservation must not change counters %v", got)
	}
	if !strings.Contains(f.env.Logs.String(), "stock reservation failed, continuing checkout") {
		t.Fatalf("expected reservation failure warning")
	}

	if _, err := f.svc.ResolvePaymentSucceeded(ctx, resp.PaymentIntentID, PaymentDetails{}); err != nil {
		t.Fatalf("resolve: %v", err)
	}
	if got := f.env.Counters(t, productID, "42"); got != [3]int{0, 0, 0} {
		t.Fatalf("paid line should still leave stock, got %v", got)
	}
}

func TestStrictReservationsCancelIntent(t *testing.T) {
	f := newFixture(t, func(p *ServiceParams) {
		p.Catalog = staleCatalog{p.Catalog}
		p.Config.StrictReservations = true
	})
	plenty := f.env.SeedSize(t, "Terra Court", "60.00", "40", 10, 0)
	scarce := f.env.SeedSize(t, "Terra Runner", "89.90", "42", 1, 0)

	_, err := f.svc.CreatePaymentIntent(ctx, Request{Items: []Item{
		{ProductID: plenty, Size: "40", Quantity: 2},
		{ProductID: scarce, Size: "42", Quantity: 3},
	}})
	if !pkgerrors.IsCode(err, pkgerrors.CodeInsufficientStock) {
		t.Fatalf("expected insufficient stock, got %v", err)
	}
	if len(f.intents.cancelled) != 1 || f.intents.cancelled[0] != "pi_test_1" {
		t.Fatalf("expected intent cancellation, got %v", f.intents.cancelled)
	}
	if got := f.env.Counters(t, plenty, "40"); got != [3]int{10, 0, 10} {
		t.Fatalf("reserved lines must be rolled back, got %v", got)
	}
	if rows := f.rows(t, "pi_test_1"); len(rows) != 0 {
		t.Fatalf("no reservation rows expected, got %d", len(rows))
	}
}

func TestCancelledFixtureOrderLeavesStock(t *testing.T) {
	f := newFixture(t, func(p *ServiceParams) { p.Config.AllowTestFixtures = true })
	fixtureProduct := f.env.SeedSize(t, "Terra Fixture", "80.00", "42", 0, 0)
	resp, err := f.svc.CreatePaymentIntent(ctx, Request{Items: []Item{{ProductID: fixtureProduct, Size: "42", Quantity: 2, TestFixture: true}}})
	if err != nil {
		t.Fatalf("create with fixture: %v", err)
	}
	order, err := f.svc.ResolvePaymentSucceeded(ctx, resp.PaymentIntentID, PaymentDetails{})
	if err != nil {
		t.Fatalf("resolve: %v", err)
	}

	if _, err := f.orders.UpdateStatus(ctx, order.ID, enums.OrderStatusCancelled); err != nil {
		t.Fatalf("cancel: %v", err)
	}
	if got := f.env.Counters(t, fixtureProduct, "42"); got != [3]int{0, 0, 0} {
		t.Fatalf("cancelling a fixture order must not add stock, got %v", got)
	}
	if moves := f.env.Movements(t, fixtureProduct); len(moves) != 0 {
		t.Fatalf("expected no ledger entries, got %+v", moves)
	}
}

// sweptUnderfoot expires one locked line inside the resolving transaction,
// standing in for a sweep that commits between the read and the update.
type sweptUnderfoot struct {
	reservations.Service
}

func (s sweptUnderfoot) LockForIntent(ctx context.Context, tx *gorm.DB, intentID string) ([]models.StockReservation, error) {
	rows, err := s.Service.LockForIntent(ctx, tx, intentID)
	if err != nil || len(rows) == 0 {
		return rows, err
	}
	err = tx.Model(&models.StockReservation{}).
		Where("id = ?", rows[0].ID).
		Update("status", enums.ReservationExpired).Error
	return rows, err
}

func TestResolutionConflictsWhenLinesChangeUnderneath(t *testing.T) {
	f := newFixture(t)
	productID := f.env.SeedSize(t, "Terra Runner", "89.90", "42", 10, 0)
	resp, err := f.svc.CreatePaymentIntent(ctx, Request{Items: []Item{{ProductID: productID, Size: "42", Quantity: 2}}})
	if err != nil {
		t.Fatalf("create payment intent: %v", err)
	}
	if _, err := f.svc.CreatePaymentIntent(ctx, Request{Items: []Item{{ProductID: productID, Size: "42", Quantity: 3}}}); err != nil {
		t.Fatalf("second checkout: %v", err)
	}

	racing, err := NewService(ServiceParams{
		Catalog:        f.env.Inventory,
		Stock:          f.env.Inventory,
		Reservations:   sweptUnderfoot{f.reservations},
		Orders:         f.orders,
		PaymentIntents: f.intents,
		TxRunner:       f.env.Client,
		Logger:         f.env.Logger,
		Config:         Config{Currency: "EUR"},
	})
	if err != nil {
		t.Fatalf("checkout: %v", err)
	}

	if _, err := racing.ResolvePaymentSucceeded(ctx, resp.PaymentIntentID, PaymentDetails{}); !pkgerrors.IsCode(err, pkgerrors.CodeConflict) {
		t.Fatalf("expected conflict on paid checkout, got %v", err)
	}
	if _, err := racing.ResolvePaymentFailed(ctx, resp.PaymentIntentID, "canceled"); !pkgerrors.IsCode(err, pkgerrors.CodeConflict) {
		t.Fatalf("expected conflict on failed checkout, got %v", err)
	}
	if got := f.env.Counters(t, productID, "42"); got != [3]int{10, 5, 5} {
		t.Fatalf("both holds must survive a rolled back resolution, got %v", got)
	}
	if rows := f.rows(t, resp.PaymentIntentID); rows[0].Status != enums.ReservationActive {
		t.Fatalf("line should stay active after rollback, got %s", rows[0].Status)
	}
}

func TestPaymentSucceededAfterSweepSellsFromFreeStock(t *testing.T) {
	f := newFixture(t)
	productID := f.env.SeedSize(t, "Terra Runner", "89.90", "42", 10, 0)
	resp, err := f.svc.CreatePaymentIntent(ctx, Request{Items: []Item{{ProductID: productID, Size: "42", Quantity: 2}}})
	if err != nil {
		t.Fatalf("create payment intent: %v", err)
	}
	if _, err := f.svc.CreatePaymentIntent(ctx, Request{Items: []Item{{ProductID: productID, Size: "42", Quantity: 3}}}); err != nil {
		t.Fatalf("second checkout: %v", err)
	}
	if err := f.env.DB.Model(&models.StockReservation{}).
		Where("payment_intent_id = ?", resp.PaymentIntentID).
		Update("expires_at", time.Now().UTC().Add(-time.Minute)).Error; err != nil {
		t.Fatalf("age reservation: %v", err)
	}
	swept, err := f.reservations.Sweep(ctx, time.Now())
	if err != nil || swept.Released != 1 {
		t.Fatalf("sweep: %+v %v", swept, err)
	}
	if got := f.env.Counters(t, productID, "42"); got != [3]int{10, 3, 7} {
		t.Fatalf("unexpected counters after sweep %v", got)
	}

	if _, err := f.svc.ResolvePaymentSucceeded(ctx, resp.PaymentIntentID, PaymentDetails{}); err != nil {
		t.Fatalf("late payment: %v", err)
	}
	if got := f.env.Counters(t, productID, "42"); got != [3]int{8, 3, 5} {
		t.Fatalf("the other checkout's hold must survive, got %v", got)
	}
	if rows := f.rows(t, resp.PaymentIntentID); rows[0].Status != enums.ReservationExpired {
		t.Fatalf("expired line keeps its status, got %s", rows[0].Status)
	}
}

type brokenStock struct {
	stockMutator
}

func (brokenStock) ApplyTx(context.Context, *gorm.DB, inventory.Operation, inventory.MutationInput) (inventory.MutationResult, error) {
	return inventory.MutationResult{}, errors.New("connection reset")
}

func TestReservePersistenceErrorFailsCheckoutWhenNotStrict(t *testing.T) {
	f := newFixture(t, func(p *ServiceParams) { p.Stock = brokenStock{p.Stock} })
	productID := f.env.SeedSize(t, "Terra Runner", "89.90", "42", 10, 0)

	_, err := f.svc.CreatePaymentIntent(ctx, Request{Items: []Item{{ProductID: productID, Size: "42", Quantity: 1}}})
	if !pkgerrors.IsCode(err, pkgerrors.CodeDependency) {
		t.Fatalf("expected dependency error, got %v", err)
	}
	if len(f.intents.cancelled) != 1 {
		t.Fatalf("expected the intent to be cancelled, got %v", f.intents.cancelled)
	}
	if rows := f.rows(t, f.intents.cancelled[0]); len(rows) != 0 {
		t.Fatalf("no reservation rows should remain, got %d", len(rows))
	}
	if got := f.env.Counters(t, productID, "42"); got != [3]int{10, 0, 10} {
		t.Fatalf("unexpected counters %v", got)
	}
}
