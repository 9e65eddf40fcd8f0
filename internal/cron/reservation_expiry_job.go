package cron

import (
	"context"
	"fmt"
	"time"

	"github.com/terra-sneakers/terra-backend/pkg/logger"
)

type ReservationExpiryJobParams struct {
	Logger  *logger.Logger
	Sweeper reservationSweeper
}

// NewReservationExpiryJob releases stock held by reservations past their expiry.
func NewReservationExpiryJob(params ReservationExpiryJobParams) (Job, error) {
	if params.Logger == nil {
		return nil, fmt.Errorf("logger required")
	}
	if params.Sweeper == nil {
		return nil, fmt.Errorf("reservation sweeper required")
	}
	return &reservationExpiryJob{
		logg:    params.Logger,
		sweeper: params.Sweeper,
		now:     time.Now,
	}, nil
}

type reservationExpiryJob struct {
	logg    *logger.Logger
	sweeper reservationSweeper
	now     func() time.Time
}

func (j *reservationExpiryJob) Name() string { return "reservation-expiry" }

// Run fails the cycle when any row could not be released so the failure shows
// up in the job metrics; the released rows stay committed.
func (j *reservationExpiryJob) Run(ctx context.Context) error {
	result, err := j.sweeper.Sweep(ctx, j.now())
	if err != nil {
		return fmt.Errorf("sweep reservations: %w", err)
	}
	if result.Scanned == 0 {
		return nil
	}
	logCtx := j.logg.WithFields(ctx, map[string]any{
		"scanned":  result.Scanned,
		"released": result.Released,
		"failed":   result.Failed,
	})
	j.logg.Info(logCtx, "expired reservations processed")
	if result.Failed > 0 {
		return fmt.Errorf("%d of %d expired reservations could not be released", result.Failed, result.Scanned)
	}
	return nil
}
