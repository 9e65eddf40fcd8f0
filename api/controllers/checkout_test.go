package controllers

import (
	"context"
	"net/http"
	"testing"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	checkoutsvc "github.com/terra-sneakers/terra-backend/internal/checkout"
	"github.com/terra-sneakers/terra-backend/pkg/enums"
	pkgerrors "github.com/terra-sneakers/terra-backend/pkg/errors"
)

type stubCheckout struct {
	got  checkoutsvc.Request
	resp *checkoutsvc.Response
	err  error
}

func (s *stubCheckout) CreatePaymentIntent(ctx context.Context, req checkoutsvc.Request) (*checkoutsvc.Response, error) {
	s.got = req
	return s.resp, s.err
}

func TestCreatePaymentIntentSuccess(t *testing.T) {
	t.Parallel()

	productID := uuid.New()
	svc := &stubCheckout{resp: &checkoutsvc.Response{
		PaymentIntentID: "pi_123",
		ClientSecret:    "pi_123_secret",
		Subtotal:        decimal.RequireFromString("120.00"),
		Shipping:        decimal.Zero,
		Total:           decimal.RequireFromString("120.00"),
		Currency:        "usd",
		Reservations: []checkoutsvc.LineReservation{
			{ProductID: productID, Size: "42", Quantity: 1, Status: enums.ReservationActive},
		},
	}}
	body := `{"items":[{"productId":"` + productID.String() + `","size":"42","quantity":1}],"customerEmail":"buyer@example.com"}`

	rec, env := serve(t, http.MethodPost, "/checkout/payment-intent", "/checkout/payment-intent", body, CreatePaymentIntent(svc, nil))
	if rec.Code != http.StatusCreated {
		t.Fatalf("expected 201, got %d (%s)", rec.Code, rec.Body.String())
	}
	var resp checkoutsvc.Response
	decodeData(t, env, &resp)
	if resp.ClientSecret != "pi_123_secret" || len(resp.Reservations) != 1 {
		t.Fatalf("unexpected response %+v", resp)
	}
	if svc.got.CustomerEmail != "buyer@example.com" || svc.got.Items[0].ProductID != productID {
		t.Fatalf("request not forwarded: %+v", svc.got)
	}
}

func TestCreatePaymentIntentRejectsEmptyItems(t *testing.T) {
	t.Parallel()

	svc := &stubCheckout{}
	rec, env := serve(t, http.MethodPost, "/checkout/payment-intent", "/checkout/payment-intent", `{"items":[]}`, CreatePaymentIntent(svc, nil))
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", rec.Code)
	}
	if env.Error == nil || env.Error.Code != string(pkgerrors.CodeValidation) {
		t.Fatalf("expected validation error, got %+v", env.Error)
	}
	if _, ok := env.Error.Details["items"]; !ok {
		t.Fatalf("expected items detail, got %+v", env.Error.Details)
	}
}

func TestCreatePaymentIntentInsufficientStock(t *testing.T) {
	t.Parallel()

	svc := &stubCheckout{err: pkgerrors.New(pkgerrors.CodeInsufficientStock, "Jordan 1 size 42: only 1 available")}
	body := `{"items":[{"productId":"` + uuid.NewString() + `","size":"42","quantity":3}]}`

	rec, env := serve(t, http.MethodPost, "/checkout/payment-intent", "/checkout/payment-intent", body, CreatePaymentIntent(svc, nil))
	if rec.Code != http.StatusConflict {
		t.Fatalf("expected 409, got %d", rec.Code)
	}
	if env.Error.Message != "Jordan 1 size 42: only 1 available" {
		t.Fatalf("expected stock message passed through, got %q", env.Error.Message)
	}
}

func TestCreatePaymentIntentUnknownField(t *testing.T) {
	t.Parallel()

	rec, _ := serve(t, http.MethodPost, "/checkout/payment-intent", "/checkout/payment-intent", `{"items":[],"coupon":"FREE"}`, CreatePaymentIntent(&stubCheckout{}, nil))
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 for unknown field, got %d", rec.Code)
	}
}
