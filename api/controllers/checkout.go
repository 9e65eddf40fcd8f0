package controllers

import (
	"context"
	"net/http"

	"github.com/terra-sneakers/terra-backend/api/responses"
	"github.com/terra-sneakers/terra-backend/api/validators"
	checkoutsvc "github.com/terra-sneakers/terra-backend/internal/checkout"
	pkgerrors "github.com/terra-sneakers/terra-backend/pkg/errors"
	"github.com/terra-sneakers/terra-backend/pkg/logger"
)

type paymentIntentCreator interface {
	CreatePaymentIntent(ctx context.Context, req checkoutsvc.Request) (*checkoutsvc.Response, error)
}

// CreatePaymentIntent prices the requested lines, holds their stock and
// returns the client secret the storefront confirms the payment with.
func CreatePaymentIntent(svc paymentIntentCreator, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "checkout service unavailable"))
			return
		}

		var req checkoutsvc.Request
		if err := validators.DecodeJSONBody(r, &req); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		resp, err := svc.CreatePaymentIntent(r.Context(), req)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccessStatus(w, http.StatusCreated, resp)
	}
}
