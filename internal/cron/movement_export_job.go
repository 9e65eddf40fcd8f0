package cron

import (
	"context"
	"fmt"

	"github.com/terra-sneakers/terra-backend/pkg/logger"
)

type MovementExportJobParams struct {
	Logger   *logger.Logger
	Exporter movementExporter
}

// NewMovementExportJob ships settled ledger entries to the warehouse each cycle.
func NewMovementExportJob(params MovementExportJobParams) (Job, error) {
	if params.Logger == nil {
		return nil, fmt.Errorf("logger required")
	}
	if params.Exporter == nil {
		return nil, fmt.Errorf("exporter required")
	}
	return &movementExportJob{logg: params.Logger, exporter: params.Exporter}, nil
}

type movementExportJob struct {
	logg     *logger.Logger
	exporter movementExporter
}

func (j *movementExportJob) Name() string { return "movement-export" }

func (j *movementExportJob) Run(ctx context.Context) error {
	res, err := j.exporter.Export(ctx)
	if err != nil {
		if res.Exported > 0 {
			logCtx := j.logg.WithField(ctx, "exported_before_failure", res.Exported)
			j.logg.Warn(logCtx, "movement export stopped part way")
		}
		return fmt.Errorf("export movements: %w", err)
	}
	return nil
}
