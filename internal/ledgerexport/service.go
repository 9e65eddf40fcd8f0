// Package ledgerexport streams stock ledger entries into the analytics
// warehouse, resuming from a watermark kept in Redis.
package ledgerexport

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/terra-sneakers/terra-backend/pkg/db/models"
	"github.com/terra-sneakers/terra-backend/pkg/logger"
	"github.com/terra-sneakers/terra-backend/pkg/pagination"
)

const (
	defaultBatchSize  = 500
	defaultMaxBatches = 20
	// Entries younger than this may belong to transactions that have not
	// committed yet, so they wait for the next run.
	defaultSettleLag = time.Minute
)

type movementSource interface {
	ListAfter(ctx context.Context, after *pagination.Cursor, until time.Time, limit int) ([]models.StockMovement, error)
}

type rowWriter interface {
	Write(ctx context.Context, rows []any) error
}

type watermarkStore interface {
	Get(ctx context.Context, key string) (string, error)
	Set(ctx context.Context, key string, value any, ttl time.Duration) error
}

type ServiceParams struct {
	Logger       *logger.Logger
	Source       movementSource
	Writer       rowWriter
	Store        watermarkStore
	WatermarkKey string
	BatchSize    int
	MaxBatches   int
	SettleLag    time.Duration
}

// Result summarizes one export run.
type Result struct {
	Exported  int
	Batches   int
	Watermark string
}

type Service struct {
	logg       *logger.Logger
	source     movementSource
	writer     rowWriter
	store      watermarkStore
	key        string
	batchSize  int
	maxBatches int
	settleLag  time.Duration
	now        func() time.Time
}

func NewService(params ServiceParams) (*Service, error) {
	if params.Logger == nil {
		return nil, errors.New("logger required")
	}
	if params.Source == nil {
		return nil, errors.New("movement source required")
	}
	if params.Writer == nil {
		return nil, errors.New("row writer required")
	}
	if params.Store == nil {
		return nil, errors.New("watermark store required")
	}
	if params.WatermarkKey == "" {
		return nil, errors.New("watermark key required")
	}
	batch := params.BatchSize
	if batch <= 0 {
		batch = defaultBatchSize
	}
	maxBatches := params.MaxBatches
	if maxBatches <= 0 {
		maxBatches = defaultMaxBatches
	}
	lag := params.SettleLag
	if lag <= 0 {
		lag = defaultSettleLag
	}
	return &Service{
		logg:       params.Logger,
		source:     params.Source,
		writer:     params.Writer,
		store:      params.Store,
		key:        params.WatermarkKey,
		batchSize:  batch,
		maxBatches: maxBatches,
		settleLag:  lag,
		now:        time.Now,
	}, nil
}

// Export ships settled ledger entries after the stored watermark. The
// watermark only advances after a batch is accepted, so a failed run resumes
// where it stopped.
func (s *Service) Export(ctx context.Context) (Result, error) {
	var out Result
	raw, err := s.store.Get(ctx, s.key)
	if err != nil {
		return out, fmt.Errorf("read export watermark: %w", err)
	}
	after, err := pagination.ParseCursor(raw)
	if err != nil {
		return out, fmt.Errorf("parse export watermark %q: %w", raw, err)
	}
	out.Watermark = raw

	until := s.now().UTC().Add(-s.settleLag)
	for out.Batches < s.maxBatches {
		entries, err := s.source.ListAfter(ctx, after, until, s.batchSize)
		if err != nil {
			return out, fmt.Errorf("list ledger entries: %w", err)
		}
		if len(entries) == 0 {
			break
		}

		rows := make([]any, 0, len(entries))
		for _, entry := range entries {
			rows = append(rows, saver(entry))
		}
		if err := s.writer.Write(ctx, rows); err != nil {
			return out, err
		}

		last := entries[len(entries)-1].PageKey()
		mark := pagination.EncodeCursor(last)
		if err := s.store.Set(ctx, s.key, mark, 0); err != nil {
			return out, fmt.Errorf("store export watermark: %w", err)
		}
		after = &last
		out.Watermark = mark
		out.Exported += len(entries)
		out.Batches++

		if len(entries) < s.batchSize {
			break
		}
	}

	if out.Exported > 0 {
		logCtx := s.logg.WithFields(ctx, map[string]any{
			"exported": out.Exported,
			"batches":  out.Batches,
		})
		s.logg.Info(logCtx, "ledger entries exported")
	}
	return out, nil
}
