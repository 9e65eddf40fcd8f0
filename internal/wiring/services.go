// Package wiring builds the stock service graph shared by the binaries.
package wiring

import (
	"errors"
	"fmt"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/terra-sneakers/terra-backend/internal/alerts"
	"github.com/terra-sneakers/terra-backend/internal/checkout"
	"github.com/terra-sneakers/terra-backend/internal/inventory"
	"github.com/terra-sneakers/terra-backend/internal/ledger"
	"github.com/terra-sneakers/terra-backend/internal/orders"
	"github.com/terra-sneakers/terra-backend/internal/reconcile"
	"github.com/terra-sneakers/terra-backend/internal/reservations"
	"github.com/terra-sneakers/terra-backend/internal/stats"
	"github.com/terra-sneakers/terra-backend/pkg/config"
	"github.com/terra-sneakers/terra-backend/pkg/db"
	"github.com/terra-sneakers/terra-backend/pkg/logger"
	"github.com/terra-sneakers/terra-backend/pkg/metrics"
	"github.com/terra-sneakers/terra-backend/pkg/outbox"
)

type Params struct {
	Config     *config.Config
	Logger     *logger.Logger
	DB         *db.Client
	Registerer prometheus.Registerer
	// PaymentIntents is optional; Checkout stays nil without it.
	PaymentIntents checkout.PaymentIntents
	Source         string
}

type Services struct {
	Metrics      *metrics.StockMetrics
	Outbox       *outbox.Service
	Ledger       ledger.Service
	Alerts       alerts.Service
	Inventory    inventory.Service
	Reservations reservations.Service
	Orders       orders.Service
	Checkout     checkout.Service
	Stats        stats.Service
	Reconcile    reconcile.Service
}

func Build(params Params) (*Services, error) {
	if params.Config == nil {
		return nil, errors.New("config is required")
	}
	if params.Logger == nil {
		return nil, errors.New("logger is required")
	}
	if params.DB == nil {
		return nil, errors.New("database client is required")
	}
	cfg, logg, conn := params.Config, params.Logger, params.DB.DB()

	out := &Services{Metrics: metrics.NewStockMetrics(params.Registerer)}
	out.Outbox = outbox.NewService(outbox.NewRepository(conn), logg, params.Source)

	var err error
	if out.Ledger, err = ledger.NewService(ledger.NewRepository(conn)); err != nil {
		return nil, fmt.Errorf("ledger service: %w", err)
	}
	if out.Alerts, err = alerts.NewService(alerts.ServiceParams{
		Repository: alerts.NewRepository(conn),
		Outbox:     out.Outbox,
		TxRunner:   params.DB,
		Logger:     logg,
	}); err != nil {
		return nil, fmt.Errorf("alert service: %w", err)
	}

	sizes := inventory.NewRepository(conn)
	if out.Inventory, err = inventory.NewService(inventory.ServiceParams{
		Repository:       sizes,
		Ledger:           out.Ledger,
		Alerts:           out.Alerts,
		TxRunner:         params.DB,
		Logger:           logg,
		Metrics:          out.Metrics,
		MutationAttempts: cfg.Stock.MutationAttempts,
		DefaultThreshold: cfg.Stock.DefaultLowStockThreshold,
	}); err != nil {
		return nil, fmt.Errorf("inventory service: %w", err)
	}
	if out.Reservations, err = reservations.NewService(reservations.ServiceParams{
		Repository: reservations.NewRepository(conn),
		Inventory:  out.Inventory,
		TxRunner:   params.DB,
		Logger:     logg,
		TTL:        cfg.Stock.ReservationTTL,
		BatchSize:  cfg.Stock.SweepBatchSize,
	}); err != nil {
		return nil, fmt.Errorf("reservation service: %w", err)
	}
	if out.Orders, err = orders.NewService(orders.ServiceParams{
		Repository: orders.NewRepository(conn),
		TxRunner:   params.DB,
		Outbox:     out.Outbox,
		Inventory:  out.Inventory,
		Logger:     logg,
	}); err != nil {
		return nil, fmt.Errorf("order service: %w", err)
	}
	if out.Stats, err = stats.NewService(stats.ServiceParams{
		Sizes:            sizes,
		Ledger:           out.Ledger,
		Alerts:           out.Alerts,
		Window:           cfg.Stock.StatsWindow,
		DefaultThreshold: cfg.Stock.DefaultLowStockThreshold,
	}); err != nil {
		return nil, fmt.Errorf("stats service: %w", err)
	}
	if out.Reconcile, err = reconcile.NewService(reconcile.ServiceParams{
		Sizes:   sizes,
		Ledger:  out.Ledger,
		Logger:  logg,
		Metrics: out.Metrics,
	}); err != nil {
		return nil, fmt.Errorf("reconcile service: %w", err)
	}

	if params.PaymentIntents == nil {
		return out, nil
	}
	checkoutCfg, err := checkoutConfig(cfg.Checkout)
	if err != nil {
		return nil, err
	}
	if out.Checkout, err = checkout.NewService(checkout.ServiceParams{
		Catalog:        out.Inventory,
		Stock:          out.Inventory,
		Reservations:   out.Reservations,
		Orders:         out.Orders,
		PaymentIntents: params.PaymentIntents,
		TxRunner:       params.DB,
		Logger:         logg,
		Config:         checkoutCfg,
	}); err != nil {
		return nil, fmt.Errorf("checkout service: %w", err)
	}
	return out, nil
}

func checkoutConfig(cfg config.CheckoutConfig) (checkout.Config, error) {
	threshold, err := cfg.FreeShippingThresholdAmount()
	if err != nil {
		return checkout.Config{}, fmt.Errorf("free shipping threshold: %w", err)
	}
	fee, err := cfg.ShippingFeeAmount()
	if err != nil {
		return checkout.Config{}, fmt.Errorf("shipping fee: %w", err)
	}
	return checkout.Config{
		Currency:              cfg.Currency,
		FreeShippingThreshold: threshold,
		ShippingFee:           fee,
		StrictReservations:    cfg.StrictReservations,
		AllowTestFixtures:     cfg.AllowTestFixtures,
	}, nil
}
