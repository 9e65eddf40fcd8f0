package stripewebhook

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/stripe/stripe-go/v84"

	"github.com/terra-sneakers/terra-backend/internal/checkout"
	"github.com/terra-sneakers/terra-backend/pkg/db/models"
	pkgerrors "github.com/terra-sneakers/terra-backend/pkg/errors"
	"github.com/terra-sneakers/terra-backend/pkg/logger"
)

type paymentResolver interface {
	ResolvePaymentSucceeded(ctx context.Context, intentID string, details checkout.PaymentDetails) (*models.Order, error)
	ResolvePaymentFailed(ctx context.Context, intentID, reason string) (int, error)
}

type ServiceParams struct {
	Checkout paymentResolver
	Logger   *logger.Logger
}

// Service turns verified Stripe events into checkout resolutions.
type Service struct {
	checkout paymentResolver
	logg     *logger.Logger
}

func NewService(params ServiceParams) (*Service, error) {
	if params.Checkout == nil {
		return nil, pkgerrors.New(pkgerrors.CodeInternal, "checkout service required")
	}
	if params.Logger == nil {
		return nil, pkgerrors.New(pkgerrors.CodeInternal, "logger required")
	}
	return &Service{checkout: params.Checkout, logg: params.Logger}, nil
}

// HandleEvent returns an error only when Stripe should retry delivery.
func (s *Service) HandleEvent(ctx context.Context, event *stripe.Event) error {
	if event == nil || event.Data == nil {
		return pkgerrors.New(pkgerrors.CodeValidation, "stripe event data required")
	}
	ctx = s.logg.WithFields(ctx, map[string]any{"stripe_event_id": event.ID, "stripe_event_type": string(event.Type)})

	switch event.Type {
	case stripe.EventTypePaymentIntentSucceeded:
		intent, err := decodeIntent(event)
		if err != nil {
			return err
		}
		return s.succeeded(s.logg.WithPaymentIntent(ctx, intent.ID), intent)
	case stripe.EventTypePaymentIntentPaymentFailed, stripe.EventTypePaymentIntentCanceled:
		intent, err := decodeIntent(event)
		if err != nil {
			return err
		}
		return s.failed(s.logg.WithPaymentIntent(ctx, intent.ID), intent, failureReason(event.Type, intent))
	default:
		return nil
	}
}

func (s *Service) succeeded(ctx context.Context, intent *stripe.PaymentIntent) error {
	details := checkout.PaymentDetails{
		CustomerEmail:  intent.Metadata["customer_email"],
		AmountReceived: intent.AmountReceived,
	}
	if details.CustomerEmail == "" {
		details.CustomerEmail = intent.ReceiptEmail
	}
	order, err := s.checkout.ResolvePaymentSucceeded(ctx, intent.ID, details)
	if err != nil {
		if pkgerrors.IsCode(err, pkgerrors.CodeNotFound) {
			s.logg.Warn(ctx, "payment succeeded for unknown intent; acknowledging")
			return nil
		}
		return err
	}
	s.logg.Info(s.logg.WithField(ctx, "order_number", order.OrderNumber), "payment confirmed")
	return nil
}

func (s *Service) failed(ctx context.Context, intent *stripe.PaymentIntent, reason string) error {
	released, err := s.checkout.ResolvePaymentFailed(ctx, intent.ID, reason)
	if err != nil {
		return err
	}
	s.logg.Info(s.logg.WithFields(ctx, map[string]any{"released": released, "reason": reason}), "payment failure resolved")
	return nil
}

func decodeIntent(event *stripe.Event) (*stripe.PaymentIntent, error) {
	var intent stripe.PaymentIntent
	if err := json.Unmarshal(event.Data.Raw, &intent); err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "decode payment intent event")
	}
	if strings.TrimSpace(intent.ID) == "" {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "payment intent id missing")
	}
	return &intent, nil
}

func failureReason(eventType stripe.EventType, intent *stripe.PaymentIntent) string {
	if eventType == stripe.EventTypePaymentIntentCanceled {
		if intent.CancellationReason != "" {
			return fmt.Sprintf("payment canceled: %s", intent.CancellationReason)
		}
		return "payment canceled"
	}
	if intent.LastPaymentError != nil && intent.LastPaymentError.Msg != "" {
		return "payment failed: " + intent.LastPaymentError.Msg
	}
	return "payment failed"
}
