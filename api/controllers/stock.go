package controllers

import (
	"context"
	"net/http"
	"strings"

	"github.com/google/uuid"

	"github.com/terra-sneakers/terra-backend/api/responses"
	"github.com/terra-sneakers/terra-backend/api/validators"
	"github.com/terra-sneakers/terra-backend/internal/inventory"
	"github.com/terra-sneakers/terra-backend/internal/ledger"
	"github.com/terra-sneakers/terra-backend/internal/reconcile"
	"github.com/terra-sneakers/terra-backend/internal/stats"
	"github.com/terra-sneakers/terra-backend/pkg/db/models"
	"github.com/terra-sneakers/terra-backend/pkg/enums"
	pkgerrors "github.com/terra-sneakers/terra-backend/pkg/errors"
	"github.com/terra-sneakers/terra-backend/pkg/logger"
	"github.com/terra-sneakers/terra-backend/pkg/pagination"
)

type statsReader interface {
	GetStockStatistics(ctx context.Context) (*stats.StockStatistics, error)
}

type stockWriter interface {
	BulkRestock(ctx context.Context, lines []inventory.RestockInput) (inventory.BulkRestockResult, error)
	Adjust(ctx context.Context, in inventory.AdjustInput) (inventory.MutationResult, error)
}

type movementLister interface {
	List(ctx context.Context, filter ledger.Filter, params pagination.Params) (pagination.Page[models.StockMovement], error)
}

type reconciler interface {
	Run(ctx context.Context) (reconcile.Report, error)
}

const maxReasonLen = 500

// RestockRequest receives a delivery covering one or more size entries.
type RestockRequest struct {
	Items []inventory.RestockInput `json:"items" validate:"required,min=1,dive"`
}

// AdjustRequest sets the counted stock of a size entry.
type AdjustRequest struct {
	ProductID uuid.UUID `json:"product_id" validate:"required"`
	Size      string    `json:"size" validate:"required"`
	NewStock  *int      `json:"new_stock" validate:"required,gte=0"`
	Reason    string    `json:"reason" validate:"required"`
}

func StockStats(svc statsReader, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "stats service unavailable"))
			return
		}
		out, err := svc.GetStockStatistics(r.Context())
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, out)
	}
}

// Restock applies every line independently and reports per-line outcomes.
func Restock(svc stockWriter, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "inventory service unavailable"))
			return
		}

		var req RestockRequest
		if err := validators.DecodeJSONBody(r, &req); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		result, err := svc.BulkRestock(r.Context(), req.Items)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, result)
	}
}

func AdjustStock(svc stockWriter, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "inventory service unavailable"))
			return
		}

		var req AdjustRequest
		if err := validators.DecodeJSONBody(r, &req); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		res, err := svc.Adjust(r.Context(), inventory.AdjustInput{
			ProductID: req.ProductID,
			Size:      strings.TrimSpace(req.Size),
			NewStock:  *req.NewStock,
			Reason:    validators.SanitizeString(req.Reason, maxReasonLen),
		})
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		if !res.Applied {
			responses.WriteError(r.Context(), logg, w, inventory.AsError(res))
			return
		}
		responses.WriteSuccess(w, res)
	}
}

// ListMovements pages the stock ledger newest first.
func ListMovements(svc movementLister, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "ledger service unavailable"))
			return
		}

		filter, err := movementFilter(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
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
		responses.WriteSuccess(w, mapPage(page, movementDTO))
	}
}

func ReconcileStock(svc reconciler, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "reconcile service unavailable"))
			return
		}
		report, err := svc.Run(r.Context())
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, report)
	}
}

func movementFilter(r *http.Request) (ledger.Filter, error) {
	var filter ledger.Filter
	productID, err := validators.ParseQueryUUID(r, "product_id")
	if err != nil {
		return filter, err
	}
	filter.ProductID = productID
	if size := validators.ParseQueryString(r, "size"); size != nil {
		filter.Size = *size
	}
	if raw := validators.ParseQueryString(r, "type"); raw != nil {
		movementType, err := enums.ParseMovementType(*raw)
		if err != nil {
			return filter, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid movement type").WithDetails(map[string]any{"field": "type"})
		}
		filter.Type = &movementType
	}
	return filter, nil
}

func pageParams(r *http.Request) (pagination.Params, error) {
	limit, err := validators.ParseQueryInt(r, "limit", pagination.DefaultLimit, 1, pagination.MaxLimit)
	if err != nil {
		return pagination.Params{}, err
	}
	return pagination.Params{
		Limit:  limit,
		Cursor: strings.TrimSpace(r.URL.Query().Get("cursor")),
	}, nil
}
