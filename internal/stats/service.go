package stats

import (
	"context"
	"fmt"
	"time"

	"github.com/shopspring/decimal"

	"github.com/terra-sneakers/terra-backend/internal/alerts"
	"github.com/terra-sneakers/terra-backend/internal/inventory"
	"github.com/terra-sneakers/terra-backend/pkg/enums"
)

const (
	defaultWindow    = 7 * 24 * time.Hour
	defaultThreshold = 5
)

// StockStatistics is the admin dashboard summary of the catalogue's stock.
type StockStatistics struct {
	TotalProducts       int64           `json:"total_products"`
	TotalSizes          int             `json:"total_sizes"`
	LowStockCount       int             `json:"low_stock_count"`
	OutOfStockCount     int             `json:"out_of_stock_count"`
	TotalStockUnits     int             `json:"total_stock_units"`
	TotalAvailableUnits int             `json:"total_available_units"`
	TotalReservedUnits  int             `json:"total_reserved_units"`
	StockValue          decimal.Decimal `json:"stock_value"`
	RecentLedgerCount   int64           `json:"recent_ledger_count"`
	PendingAlertCount   int64           `json:"pending_alert_count"`
	GeneratedAt         time.Time       `json:"generated_at"`
}

type Service interface {
	GetStockStatistics(ctx context.Context) (*StockStatistics, error)
}

type sizeReader interface {
	ListSizes(ctx context.Context) ([]inventory.SizeRow, error)
	CountProducts(ctx context.Context) (int64, error)
}

type ledgerCounter interface {
	CountSince(ctx context.Context, since time.Time) (int64, error)
}

type alertCounter interface {
	CountUnresolved(ctx context.Context) (int64, error)
}

type ServiceParams struct {
	Sizes            sizeReader
	Ledger           ledgerCounter
	Alerts           alertCounter
	Window           time.Duration
	DefaultThreshold int
}

type service struct {
	sizes     sizeReader
	ledger    ledgerCounter
	alerts    alertCounter
	window    time.Duration
	threshold int
	now       func() time.Time
}

func NewService(params ServiceParams) (Service, error) {
	if params.Sizes == nil {
		return nil, fmt.Errorf("size reader required")
	}
	if params.Ledger == nil {
		return nil, fmt.Errorf("ledger required")
	}
	if params.Alerts == nil {
		return nil, fmt.Errorf("alerts required")
	}
	window := params.Window
	if window <= 0 {
		window = defaultWindow
	}
	threshold := params.DefaultThreshold
	if threshold <= 0 {
		threshold = defaultThreshold
	}
	return &service{
		sizes:     params.Sizes,
		ledger:    params.Ledger,
		alerts:    params.Alerts,
		window:    window,
		threshold: threshold,
		now:       time.Now,
	}, nil
}

// GetStockStatistics aggregates counters over every size entry. It never writes.
func (s *service) GetStockStatistics(ctx context.Context) (*StockStatistics, error) {
	now := s.now().UTC()

	products, err := s.sizes.CountProducts(ctx)
	if err != nil {
		return nil, fmt.Errorf("count products: %w", err)
	}
	rows, err := s.sizes.ListSizes(ctx)
	if err != nil {
		return nil, fmt.Errorf("list sizes: %w", err)
	}

	out := &StockStatistics{
		TotalProducts: products,
		TotalSizes:    len(rows),
		StockValue:    decimal.Zero,
		GeneratedAt:   now,
	}
	for _, row := range rows {
		out.TotalStockUnits += row.Stock
		out.TotalAvailableUnits += row.AvailableStock
		out.TotalReservedUnits += row.ReservedStock
		out.StockValue = out.StockValue.Add(row.Price.Mul(decimal.NewFromInt(int64(row.Stock))))

		threshold := row.LowStockThreshold
		if threshold <= 0 {
			threshold = s.threshold
		}
		alertType, _, ok := alerts.Classify(row.AvailableStock, threshold)
		if !ok {
			continue
		}
		switch alertType {
		case enums.AlertOutOfStock:
			out.OutOfStockCount++
		case enums.AlertLowStock:
			out.LowStockCount++
		}
	}
	out.StockValue = out.StockValue.Round(2)

	if out.RecentLedgerCount, err = s.ledger.CountSince(ctx, now.Add(-s.window)); err != nil {
		return nil, fmt.Errorf("count ledger entries: %w", err)
	}
	if out.PendingAlertCount, err = s.alerts.CountUnresolved(ctx); err != nil {
		return nil, fmt.Errorf("count alerts: %w", err)
	}
	return out, nil
}
