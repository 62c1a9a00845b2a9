package controllers

import (
	"context"
	"net/http"

	"github.com/northcart/storefront-backend/api/responses"
	pkgerrors "github.com/northcart/storefront-backend/pkg/errors"
	"github.com/northcart/storefront-backend/pkg/logger"
)

type reservationSweeper interface {
	CleanupExpired(ctx context.Context) (int, error)
}

// CleanupReservations releases every active reservation past its TTL. Exposed
// as an internal trigger so an external scheduler can drive the sweep.
func CleanupReservations(sweeper reservationSweeper, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if sweeper == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "inventory manager unavailable"))
			return
		}
		count, err := sweeper.CleanupExpired(r.Context())
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, map[string]int{"expiredCount": count})
	}
}
