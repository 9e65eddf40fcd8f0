package inventory

import (
	"bytes"
	"context"
	"testing"

	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/shopspring/decimal"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"

	"github.com/terra-sneakers/terra-backend/internal/alerts"
	"github.com/terra-sneakers/terra-backend/internal/ledger"
	"github.com/terra-sneakers/terra-backend/pkg/db"
	"github.com/terra-sneakers/terra-backend/pkg/db/models"
	"github.com/terra-sneakers/terra-backend/pkg/logger"
	"github.com/terra-sneakers/terra-backend/pkg/metrics"
	"github.com/terra-sneakers/terra-backend/pkg/outbox"
)

type harness struct {
	db       *gorm.DB
	client   *db.Client
	svc      Service
	repo     Repository
	registry *prometheus.Registry
	logs     *bytes.Buffer
}

type harnessOption func(*ServiceParams)

func newHarness(t *testing.T, opts ...harnessOption) *harness {
	t.Helper()
	dsn := "file:inventory_" + uuid.NewString() + "?mode=memory&cache=shared"
	conn, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{SkipDefaultTransaction: true})
	if err != nil {
		t.Fatalf("open db: %v", err)
	}
	sqlDB, err := conn.DB()
	if err != nil {
		t.Fatalf("sql db: %v", err)
	}
	sqlDB.SetMaxOpenConns(1)
	t.Cleanup(func() { _ = sqlDB.Close() })
	if err := conn.AutoMigrate(models.All()...); err != nil {
		t.Fatalf("migrate: %v", err)
	}

	logs := &bytes.Buffer{}
	logg := logger.New(logger.Options{ServiceName: "inventory-test", Output: logs})
	client := db.Wrap(conn)
	registry := prometheus.NewRegistry()

	ledgerSvc, err := ledger.NewService(ledger.NewRepository(conn))
	if err != nil {
		t.Fatalf("ledger service: %v", err)
	}
	alertSvc, err := alerts.NewService(alerts.ServiceParams{
		Repository: alerts.NewRepository(conn),
		Outbox:     outbox.NewService(outbox.NewRepository(conn), logg, "inventory-test"),
		TxRunner:   client,
		Logger:     logg,
	})
	if err != nil {
		t.Fatalf("alert service: %v", err)
	}

	repo := NewRepository(conn)
	params := ServiceParams{
		Repository: repo,
		Ledger:     ledgerSvc,
		Alerts:     alertSvc,
		TxRunner:   client,
		Logger:     logg,
		Metrics:    metrics.NewStockMetrics(registry),
	}
	for _, opt := range opts {
		opt(&params)
	}
	svc, err := NewService(params)
	if err != nil {
		t.Fatalf("inventory service: %v", err)
	}
	return &harness{db: conn, client: client, svc: svc, repo: repo, registry: registry, logs: logs}
}

// seedSize creates a product with one size and the given counters.
func (h *harness) seedSize(t *testing.T, size string, stock, reserved, threshold int) uuid.UUID {
	t.Helper()
	product := models.Product{
		Title: "Terra Runner " + size,
		Slug:  "terra-runner-" + uuid.NewString()[:8],
		Price: decimal.RequireFromString("89.90"),
		Sizes: []models.ProductSize{{
			Size:              size,
			Stock:             stock,
			ReservedStock:     reserved,
			AvailableStock:    max(0, stock-reserved),
			LowStockThreshold: threshold,
		}},
	}
	if err := h.db.Create(&product).Error; err != nil {
		t.Fatalf("seed product: %v", err)
	}
	return product.ID
}

func (h *harness) size(t *testing.T, productID uuid.UUID, size string) models.ProductSize {
	t.Helper()
	var row models.ProductSize
	if err := h.db.Where("product_id = ? AND size = ?", productID, size).First(&row).Error; err != nil {
		t.Fatalf("load size: %v", err)
	}
	return row
}

func (h *harness) movements(t *testing.T, productID uuid.UUID) []models.StockMovement {
	t.Helper()
	var rows []models.StockMovement
	if err := h.db.Where("product_id = ?", productID).Order("created_at ASC, reference ASC").Find(&rows).Error; err != nil {
		t.Fatalf("load movements: %v", err)
	}
	return rows
}

func (h *harness) openAlerts(t *testing.T, productID uuid.UUID) []models.StockAlert {
	t.Helper()
	var rows []models.StockAlert
	if err := h.db.Where("product_id = ? AND is_resolved = ?", productID, false).Find(&rows).Error; err != nil {
		t.Fatalf("load alerts: %v", err)
	}
	return rows
}

func assertCounters(t *testing.T, row models.ProductSize, stock, reserved, available int) {
	t.Helper()
	if row.Stock != stock || row.ReservedStock != reserved || row.AvailableStock != available {
		t.Fatalf("expected counters {%d,%d,%d}, got {%d,%d,%d}",
			stock, reserved, available, row.Stock, row.ReservedStock, row.AvailableStock)
	}
}

var bg = context.Background()
