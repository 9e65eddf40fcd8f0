package reconcile

import (
	"context"
	"fmt"
	"sort"

	"github.com/google/uuid"

	"github.com/terra-sneakers/terra-backend/internal/inventory"
	"github.com/terra-sneakers/terra-backend/internal/ledger"
	"github.com/terra-sneakers/terra-backend/pkg/logger"
	"github.com/terra-sneakers/terra-backend/pkg/metrics"
)

// Mismatch describes a size entry whose counters cannot be derived from its ledger.
type Mismatch struct {
	ProductID      uuid.UUID `json:"product_id"`
	ProductTitle   string    `json:"product_title"`
	Size           string    `json:"size"`
	Stock          int       `json:"stock"`
	LedgerStock    int       `json:"ledger_stock"`
	Reserved       int       `json:"reserved"`
	LedgerReserved int       `json:"ledger_reserved"`
	Available      int       `json:"available"`
}

type Report struct {
	Checked    int        `json:"checked"`
	Mismatches []Mismatch `json:"mismatches"`
}

type Service interface {
	Run(ctx context.Context) (Report, error)
}

type sizeReader interface {
	ListSizes(ctx context.Context) ([]inventory.SizeRow, error)
}

type ledgerSummer interface {
	SumsBySize(ctx context.Context) ([]ledger.SizeSums, error)
}

type ServiceParams struct {
	Sizes   sizeReader
	Ledger  ledgerSummer
	Logger  *logger.Logger
	Metrics *metrics.StockMetrics
}

type service struct {
	sizes   sizeReader
	ledger  ledgerSummer
	logg    *logger.Logger
	metrics *metrics.StockMetrics
}

func NewService(params ServiceParams) (Service, error) {
	if params.Sizes == nil {
		return nil, fmt.Errorf("size reader required")
	}
	if params.Ledger == nil {
		return nil, fmt.Errorf("ledger required")
	}
	if params.Logger == nil {
		return nil, fmt.Errorf("logger required")
	}
	return &service{
		sizes:   params.Sizes,
		ledger:  params.Ledger,
		logg:    params.Logger,
		metrics: params.Metrics,
	}, nil
}

type sizeKey struct {
	productID uuid.UUID
	size      string
}

// Run replays ledger sums against the stored counters of every size entry.
// Ledger entries whose size entry no longer exists are ignored.
func (s *service) Run(ctx context.Context) (Report, error) {
	sums, err := s.ledger.SumsBySize(ctx)
	if err != nil {
		return Report{}, fmt.Errorf("sum ledger: %w", err)
	}
	rows, err := s.sizes.ListSizes(ctx)
	if err != nil {
		return Report{}, fmt.Errorf("list sizes: %w", err)
	}

	bySize := make(map[sizeKey]ledger.SizeSums, len(sums))
	for _, sum := range sums {
		bySize[sizeKey{productID: sum.ProductID, size: sum.Size}] = sum
	}

	report := Report{Checked: len(rows), Mismatches: []Mismatch{}}
	for _, row := range rows {
		sum := bySize[sizeKey{productID: row.ProductID, size: row.Size}]
		if sum.StockDelta == row.Stock &&
			sum.ReservedDelta == row.ReservedStock &&
			row.AvailableStock == max(0, row.Stock-row.ReservedStock) {
			continue
		}
		mismatch := Mismatch{
			ProductID:      row.ProductID,
			ProductTitle:   row.ProductTitle,
			Size:           row.Size,
			Stock:          row.Stock,
			LedgerStock:    sum.StockDelta,
			Reserved:       row.ReservedStock,
			LedgerReserved: sum.ReservedDelta,
			Available:      row.AvailableStock,
		}
		report.Mismatches = append(report.Mismatches, mismatch)

		logCtx := s.logg.WithSizeEntry(ctx, row.ProductID.String(), row.Size)
		logCtx = s.logg.WithFields(logCtx, map[string]any{
			"stock":           row.Stock,
			"ledger_stock":    sum.StockDelta,
			"reserved":        row.ReservedStock,
			"ledger_reserved": sum.ReservedDelta,
			"available":       row.AvailableStock,
		})
		s.logg.Warn(logCtx, "stock counters disagree with ledger")
	}

	sort.SliceStable(report.Mismatches, func(i, j int) bool {
		if report.Mismatches[i].ProductTitle != report.Mismatches[j].ProductTitle {
			return report.Mismatches[i].ProductTitle < report.Mismatches[j].ProductTitle
		}
		return report.Mismatches[i].Size < report.Mismatches[j].Size
	})
	s.metrics.SetReconcileMismatches(len(report.Mismatches))

	logCtx := s.logg.WithFields(ctx, map[string]any{"checked": report.Checked, "mismatches": len(report.Mismatches)})
	s.logg.Info(logCtx, "ledger reconciliation finished")
	return report, nil
}
