// Package stocktest wires the stock services against an in-memory sqlite
// database for package tests.
package stocktest

import (
	"bytes"
	"testing"

	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/shopspring/decimal"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"

	"github.com/terra-sneakers/terra-backend/internal/alerts"
	"github.com/terra-sneakers/terra-backend/internal/inventory"
	"github.com/terra-sneakers/terra-backend/internal/ledger"
	"github.com/terra-sneakers/terra-backend/pkg/db"
	"github.com/terra-sneakers/terra-backend/pkg/db/models"
	"github.com/terra-sneakers/terra-backend/pkg/logger"
	"github.com/terra-sneakers/terra-backend/pkg/metrics"
	"github.com/terra-sneakers/terra-backend/pkg/outbox"
)

type Env struct {
	DB        *gorm.DB
	Client    *db.Client
	Logger    *logger.Logger
	Logs      *bytes.Buffer
	Registry  *prometheus.Registry
	Metrics   *metrics.StockMetrics
	Outbox    *outbox.Service
	Ledger    ledger.Service
	Alerts    alerts.Service
	Inventory inventory.Service
}

func NewEnv(t *testing.T) *Env {
	t.Helper()
	conn, err := gorm.Open(sqlite.Open("file:stock_"+uuid.NewString()+"?mode=memory&cache=shared"), &gorm.Config{SkipDefaultTransaction: true})
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
	logg := logger.New(logger.Options{ServiceName: "stocktest", Output: logs})
	client := db.Wrap(conn)
	registry := prometheus.NewRegistry()
	stockMetrics := metrics.NewStockMetrics(registry)
	outboxSvc := outbox.NewService(outbox.NewRepository(conn), logg, "stocktest")

	ledgerSvc, err := ledger.NewService(ledger.NewRepository(conn))
	if err != nil {
		t.Fatalf("ledger service: %v", err)
	}
	alertSvc, err := alerts.NewService(alerts.ServiceParams{
		Repository: alerts.NewRepository(conn),
		Outbox:     outboxSvc,
		TxRunner:   client,
		Logger:     logg,
	})
	if err != nil {
		t.Fatalf("alert service: %v", err)
	}
	inventorySvc, err := inventory.NewService(inventory.ServiceParams{
		Repository: inventory.NewRepository(conn),
		Ledger:     ledgerSvc,
		Alerts:     alertSvc,
		TxRunner:   client,
		Logger:     logg,
		Metrics:    stockMetrics,
	})
	if err != nil {
		t.Fatalf("inventory service: %v", err)
	}

	return &Env{
		DB:        conn,
		Client:    client,
		Logger:    logg,
		Logs:      logs,
		Registry:  registry,
		Metrics:   stockMetrics,
		Outbox:    outboxSvc,
		Ledger:    ledgerSvc,
		Alerts:    alertSvc,
		Inventory: inventorySvc,
	}
}

// SeedSize creates a product priced at price with a single size entry.
func (e *Env) SeedSize(t *testing.T, title, price, size string, stock, reserved int) uuid.UUID {
	t.Helper()
	product := models.Product{
		Title: title,
		Slug:  inventory.Slugify(title) + "-" + uuid.NewString()[:8],
		Price: decimal.RequireFromString(price),
		Sizes: []models.ProductSize{{
			Size:              size,
			Stock:             stock,
			ReservedStock:     reserved,
			AvailableStock:    max(0, stock-reserved),
			LowStockThreshold: 2,
		}},
	}
	if err := e.DB.Create(&product).Error; err != nil {
		t.Fatalf("seed product: %v", err)
	}
	return product.ID
}

// AddSize attaches another size entry to an existing product.
func (e *Env) AddSize(t *testing.T, productID uuid.UUID, size string, stock, reserved int) {
	t.Helper()
	row := models.ProductSize{
		ProductID:         productID,
		Size:              size,
		Stock:             stock,
		ReservedStock:     reserved,
		AvailableStock:    max(0, stock-reserved),
		LowStockThreshold: 2,
	}
	if err := e.DB.Create(&row).Error; err != nil {
		t.Fatalf("seed size: %v", err)
	}
}

func (e *Env) Size(t *testing.T, productID uuid.UUID, size string) models.ProductSize {
	t.Helper()
	var row models.ProductSize
	if err := e.DB.Where("product_id = ? AND size = ?", productID, size).First(&row).Error; err != nil {
		t.Fatalf("load size: %v", err)
	}
	return row
}

// Counters returns stock, reserved and available of one size entry.
func (e *Env) Counters(t *testing.T, productID uuid.UUID, size string) [3]int {
	t.Helper()
	row := e.Size(t, productID, size)
	return [3]int{row.Stock, row.ReservedStock, row.AvailableStock}
}

func (e *Env) Movements(t *testing.T, productID uuid.UUID) []models.StockMovement {
	t.Helper()
	var rows []models.StockMovement
	if err := e.DB.Where("product_id = ?", productID).Order("created_at ASC").Find(&rows).Error; err != nil {
		t.Fatalf("load movements: %v", err)
	}
	return rows
}

func (e *Env) OutboxEvents(t *testing.T) []models.OutboxEvent {
	t.Helper()
	var rows []models.OutboxEvent
	if err := e.DB.Order("created_at ASC").Find(&rows).Error; err != nil {
		t.Fatalf("load outbox events: %v", err)
	}
	return rows
}
