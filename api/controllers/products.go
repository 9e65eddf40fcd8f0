package controllers

import (
	"context"
	"net/http"

	"github.com/terra-sneakers/terra-backend/api/responses"
	"github.com/terra-sneakers/terra-backend/api/validators"
	"github.com/terra-sneakers/terra-backend/internal/inventory"
	"github.com/terra-sneakers/terra-backend/pkg/db/models"
	pkgerrors "github.com/terra-sneakers/terra-backend/pkg/errors"
	"github.com/terra-sneakers/terra-backend/pkg/logger"
)

type productCreator interface {
	CreateProduct(ctx context.Context, in inventory.CreateProductInput) (*models.Product, error)
}

// CreateProduct adds a catalog entry together with its size entries.
func CreateProduct(svc productCreator, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "inventory service unavailable"))
			return
		}

		var req inventory.CreateProductInput
		if err := validators.DecodeJSONBody(r, &req); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		product, err := svc.CreateProduct(r.Context(), req)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccessStatus(w, http.StatusCreated, productDTO(product))
	}
}
