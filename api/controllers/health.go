package controllers

import (
	"context"
	"net/http"

	"github.com/northcart/storefront-backend/api/responses"
	pkgerrors "github.com/northcart/storefront-backend/pkg/errors"
	"github.com/northcart/storefront-backend/pkg/logger"
)

type pinger interface {
	Ping(ctx context.Context) error
}

// Health reports readiness of the API's backing stores.
func Health(db pinger, cache pinger, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		checks := map[string]string{}
		healthy := true

		if db != nil {
			checks["database"] = "ok"
			if err := db.Ping(r.Context()); err != nil {
				checks["database"] = err.Error()
				healthy = false
			}
		}
		if cache != nil {
			checks["redis"] = "ok"
			if err := cache.Ping(r.Context()); err != nil {
				checks["redis"] = err.Error()
				healthy = false
			}
		}

		if !healthy {
			responses.WriteError(r.Context(), logg, w,
				pkgerrors.New(pkgerrors.CodeDependency, "dependency check failed").WithDetails(checks))
			return
		}
		responses.WriteSuccess(w, map[string]any{"status": "ok", "checks": checks})
	}
}
