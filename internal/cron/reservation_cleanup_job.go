package cron

import (
	"context"
	"fmt"

	"github.com/northcart/storefront-backend/pkg/logger"
)

type reservationSweeper interface {
	CleanupExpired(ctx context.Context) (int, error)
}

// ReservationCleanupJobParams configure the expired-reservation sweep.
type ReservationCleanupJobParams struct {
	Logger    *logger.Logger
	Inventory reservationSweeper
}

// NewReservationCleanupJob releases stock holds whose TTL lapsed without the
// checkout completing or aborting them.
func NewReservationCleanupJob(params ReservationCleanupJobParams) (Job, error) {
	if params.Logger == nil {
		return nil, fmt.Errorf("logger required")
	}
	if params.Inventory == nil {
		return nil, fmt.Errorf("inventory manager required")
	}
	return &reservationCleanupJob{
		logg:      params.Logger,
		inventory: params.Inventory,
	}, nil
}

type reservationCleanupJob struct {
	logg      *logger.Logger
	inventory reservationSweeper
}

func (j *reservationCleanupJob) Name() string { return "reservation-cleanup" }

func (j *reservationCleanupJob) Run(ctx context.Context) error {
	count, err := j.inventory.CleanupExpired(ctx)
	if err != nil {
		return fmt.Errorf("reservation cleanup: %w", err)
	}
	logCtx := j.logg.WithField(ctx, "expired_count", count)
	j.logg.Info(logCtx, "expired reservations released")
	return nil
}
