package cron

import (
	"context"
	"fmt"

	"github.com/terra-sneakers/terra-backend/pkg/logger"
)

type LedgerReconcileJobParams struct {
	Logger     *logger.Logger
	Reconciler ledgerReconciler
}

func NewLedgerReconcileJob(params LedgerReconcileJobParams) (Job, error) {
	if params.Logger == nil {
		return nil, fmt.Errorf("logger required")
	}
	if params.Reconciler == nil {
		return nil, fmt.Errorf("reconciler required")
	}
	return &ledgerReconcileJob{logg: params.Logger, reconciler: params.Reconciler}, nil
}

type ledgerReconcileJob struct {
	logg       *logger.Logger
	reconciler ledgerReconciler
}

func (j *ledgerReconcileJob) Name() string { return "ledger-reconcile" }

// Run reports drift through logs and the mismatch gauge. Drift alone is not a job failure.
func (j *ledgerReconcileJob) Run(ctx context.Context) error {
	report, err := j.reconciler.Run(ctx)
	if err != nil {
		return fmt.Errorf("reconcile ledger: %w", err)
	}
	if len(report.Mismatches) > 0 {
		logCtx := j.logg.WithFields(ctx, map[string]any{
			"checked":    report.Checked,
			"mismatches": len(report.Mismatches),
		})
		j.logg.Warn(logCtx, "ledger drift detected")
	}
	return nil
}
