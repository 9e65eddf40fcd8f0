package controllers

import (
	"context"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/terra-sneakers/terra-backend/api/responses"
	"github.com/terra-sneakers/terra-backend/api/validators"
	"github.com/terra-sneakers/terra-backend/pkg/db/models"
	"github.com/terra-sneakers/terra-backend/pkg/enums"
	pkgerrors "github.com/terra-sneakers/terra-backend/pkg/errors"
	"github.com/terra-sneakers/terra-backend/pkg/logger"
)

type orderStatusUpdater interface {
	UpdateStatus(ctx context.Context, id uuid.UUID, status enums.OrderStatus) (*models.Order, error)
}

type UpdateOrderStatusRequest struct {
	Status enums.OrderStatus `json:"status" validate:"required"`
}

// UpdateOrderStatus moves an order along its lifecycle; cancelling returns its stock.
func UpdateOrderStatus(svc orderStatusUpdater, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "order service unavailable"))
			return
		}

		orderID, err := validators.ParseUUIDParam(chi.URLParam(r, "orderId"), "orderId")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		var req UpdateOrderStatusRequest
		if err := validators.DecodeJSONBody(r, &req); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		order, err := svc.UpdateStatus(r.Context(), orderID, req.Status)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, orderDTO(order))
	}
}
