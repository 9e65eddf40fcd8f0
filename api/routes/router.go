package routes

import (
	"context"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/terra-sneakers/terra-backend/api/controllers"
	webhookcontrollers "github.com/terra-sneakers/terra-backend/api/controllers/webhooks"
	"github.com/terra-sneakers/terra-backend/api/middleware"
	"github.com/terra-sneakers/terra-backend/internal/alerts"
	checkoutsvc "github.com/terra-sneakers/terra-backend/internal/checkout"
	"github.com/terra-sneakers/terra-backend/internal/inventory"
	"github.com/terra-sneakers/terra-backend/internal/ledger"
	"github.com/terra-sneakers/terra-backend/internal/orders"
	"github.com/terra-sneakers/terra-backend/internal/reconcile"
	"github.com/terra-sneakers/terra-backend/internal/reservations"
	"github.com/terra-sneakers/terra-backend/internal/stats"
	stripewebhook "github.com/terra-sneakers/terra-backend/internal/webhooks/stripe"
	"github.com/terra-sneakers/terra-backend/pkg/config"
	"github.com/terra-sneakers/terra-backend/pkg/db"
	"github.com/terra-sneakers/terra-backend/pkg/enums"
	"github.com/terra-sneakers/terra-backend/pkg/logger"
	"github.com/terra-sneakers/terra-backend/pkg/redis"
	"github.com/terra-sneakers/terra-backend/pkg/stripe"
)

// Deps carries everything the HTTP surface dispatches to.
type Deps struct {
	Config   *config.Config
	Logger   *logger.Logger
	DB       db.Pinger
	Redis    *redis.Client
	Gatherer prometheus.Gatherer

	Checkout      checkoutsvc.Service
	Inventory     inventory.Service
	Ledger        ledger.Service
	Alerts        alerts.Service
	Reservations  reservations.Service
	Orders        orders.Service
	Stats         stats.Service
	Reconcile     reconcile.Service
	StripeClient  *stripe.Client
	StripeWebhook *stripewebhook.Service
	StripeGuard   *stripewebhook.EventGuard
}

func NewRouter(d Deps) http.Handler {
	cfg, logg := d.Config, d.Logger

	r := chi.NewRouter()
	r.Use(
		middleware.Recoverer(logg),
		middleware.RequestID(logg),
		middleware.Logging(logg),
		middleware.CORS(cfg.HTTP.AllowedOrigins),
	)

	checkoutPolicy := middleware.NewRateLimitPolicy(
		"checkout",
		cfg.HTTP.CheckoutRateWindow,
		cfg.HTTP.CheckoutIPLimit,
		cfg.HTTP.CheckoutEmailLimit,
	)
	idempotency := middleware.Idempotency(d.Redis, cfg.Checkout.IdempotencyTTL, logg)

	var webhookSvc webhookcontrollers.StripeWebhookService
	if d.StripeWebhook != nil {
		webhookSvc = d.StripeWebhook
	}

	r.Route("/health", func(r chi.Router) {
		r.Get("/live", controllers.HealthLive(cfg))
		r.Get("/ready", controllers.HealthReady(cfg, d.DB, d.Redis, logg))
	})

	if d.Gatherer != nil {
		r.Handle("/metrics", promhttp.HandlerFor(d.Gatherer, promhttp.HandlerOpts{}))
	}

	r.Route("/api/v1", func(r chi.Router) {
		r.With(
			middleware.RateLimit(checkoutPolicy, d.Redis, logg),
			idempotency,
		).Post("/checkout/payment-intent", controllers.CreatePaymentIntent(d.Checkout, logg))

		r.Post("/webhooks/stripe", webhookcontrollers.StripeWebhook(webhookSvc, d.StripeClient, guardOrNil(d.StripeGuard), logg))
	})

	r.Route("/api/admin/v1", func(r chi.Router) {
		r.Use(middleware.AdminAuth(cfg.JWT, logg))
		r.Use(middleware.RequireRole(logg, enums.AdminRoleAdmin, enums.AdminRoleInventory))
		r.Use(idempotency)

		r.Route("/stock", func(r chi.Router) {
			r.Get("/stats", controllers.StockStats(d.Stats, logg))
			r.Post("/restock", controllers.Restock(d.Inventory, logg))
			r.Post("/adjust", controllers.AdjustStock(d.Inventory, logg))
			r.Get("/movements", controllers.ListMovements(d.Ledger, logg))
			r.Get("/alerts", controllers.ListAlerts(d.Alerts, logg))
			r.Post("/alerts/{alertId}/resolve", controllers.ResolveAlert(d.Alerts, logg))
			r.Post("/reconcile", controllers.ReconcileStock(d.Reconcile, logg))
		})

		r.Get("/reservations", controllers.ReservationStatus(d.Reservations, logg))
		r.Post("/reservations/sweep", controllers.SweepReservations(d.Reservations, logg))

		r.Group(func(r chi.Router) {
			r.Use(middleware.RequireRole(logg, enums.AdminRoleAdmin))
			r.Post("/products", controllers.CreateProduct(d.Inventory, logg))
			r.Patch("/orders/{orderId}/status", controllers.UpdateOrderStatus(d.Orders, logg))
		})
	})

	return r
}

func guardOrNil(guard *stripewebhook.EventGuard) interface {
	Claim(ctx context.Context, eventID string) (bool, error)
	Forget(ctx context.Context, eventID string) error
} {
	if guard == nil {
		return nil
	}
	return guard
}
