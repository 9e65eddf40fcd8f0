package controllers

import (
	"context"
	"net/http"
	"time"

	"github.com/terra-sneakers/terra-backend/api/responses"
	"github.com/terra-sneakers/terra-backend/pkg/config"
	pkgerrors "github.com/terra-sneakers/terra-backend/pkg/errors"
	"github.com/terra-sneakers/terra-backend/pkg/logger"
)

const readinessTimeout = 2 * time.Second

// Pinger is a dependency that can report whether it is reachable.
type Pinger interface {
	Ping(ctx context.Context) error
}

func HealthLive(cfg *config.Config) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("X-Terra-Env", cfg.App.Env)
		responses.WriteSuccess(w, map[string]string{"status": "live"})
	}
}

// HealthReady pings the database and Redis; either failing reports 503.
func HealthReady(cfg *config.Config, database, cache Pinger, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("X-Terra-Env", cfg.App.Env)

		ctx, cancel := context.WithTimeout(r.Context(), readinessTimeout)
		defer cancel()

		checks := map[string]string{"database": "ok", "redis": "ok"}
		var failed error
		if database == nil {
			checks["database"] = "unconfigured"
			failed = pkgerrors.New(pkgerrors.CodeDependency, "database unavailable")
		} else if err := database.Ping(ctx); err != nil {
			checks["database"] = "down"
			failed = pkgerrors.Wrap(pkgerrors.CodeDependency, err, "database unavailable")
		}
		if cache == nil {
			checks["redis"] = "unconfigured"
			failed = pkgerrors.New(pkgerrors.CodeDependency, "redis unavailable")
		} else if err := cache.Ping(ctx); err != nil {
			checks["redis"] = "down"
			failed = pkgerrors.Wrap(pkgerrors.CodeDependency, err, "redis unavailable")
		}

		if failed != nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.As(failed).WithDetails(checks))
			return
		}
		responses.WriteSuccess(w, map[string]any{"status": "ready", "checks": checks})
	}
}
