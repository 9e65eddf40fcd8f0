package cron

import (
	"context"
	"time"

	"gorm.io/gorm"

	"github.com/terra-sneakers/terra-backend/internal/ledgerexport"
	"github.com/terra-sneakers/terra-backend/internal/reconcile"
	"github.com/terra-sneakers/terra-backend/internal/reservations"
)

type txRunner interface {
	WithTx(ctx context.Context, fn func(tx *gorm.DB) error) error
}

type reservationSweeper interface {
	Sweep(ctx context.Context, now time.Time) (reservations.SweepResult, error)
}

type ledgerReconciler interface {
	Run(ctx context.Context) (reconcile.Report, error)
}

type movementExporter interface {
	Export(ctx context.Context) (ledgerexport.Result, error)
}
