package controllers

import (
	"context"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/terra-sneakers/terra-backend/api/responses"
	"github.com/terra-sneakers/terra-backend/api/validators"
	"github.com/terra-sneakers/terra-backend/internal/alerts"
	"github.com/terra-sneakers/terra-backend/pkg/db/models"
	"github.com/terra-sneakers/terra-backend/pkg/enums"
	pkgerrors "github.com/terra-sneakers/terra-backend/pkg/errors"
	"github.com/terra-sneakers/terra-backend/pkg/logger"
	"github.com/terra-sneakers/terra-backend/pkg/pagination"
)

type alertManager interface {
	List(ctx context.Context, filter alerts.Filter, params pagination.Params) (pagination.Page[models.StockAlert], error)
	Resolve(ctx context.Context, id uuid.UUID, action enums.AlertAction, notes string) (*models.StockAlert, error)
}

const maxNotesLen = 2000

type ResolveAlertRequest struct {
	ActionTaken enums.AlertAction `json:"action_taken" validate:"required"`
	Notes       string            `json:"notes"`
}

func ListAlerts(svc alertManager, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "alert service unavailable"))
			return
		}

		var filter alerts.Filter
		resolved, err := validators.ParseQueryBool(r, "resolved")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		filter.Resolved = resolved
		if raw := validators.ParseQueryString(r, "type"); raw != nil {
			alertType, err := enums.ParseAlertType(*raw)
			if err != nil {
				responses.WriteError(r.Context(), logg, w, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid alert type").WithDetails(map[string]any{"field": "type"}))
				return
			}
			filter.Type = &alertType
		}
		params, err := pageParams(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		page, err := svc.List(r.Context(), filter, params)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, mapPage(page, alertDTO))
	}
}

// ResolveAlert closes an open alert with the action staff took.
func ResolveAlert(svc alertManager, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "alert service unavailable"))
			return
		}

		alertID, err := validators.ParseUUIDParam(chi.URLParam(r, "alertId"), "alertId")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		var req ResolveAlertRequest
		if err := validators.DecodeJSONBody(r, &req); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		alert, err := svc.Resolve(r.Context(), alertID, req.ActionTaken, validators.SanitizeString(req.Notes, maxNotesLen))
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, alertDTO(*alert))
	}
}
