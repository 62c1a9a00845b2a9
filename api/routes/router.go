package routes

import (
	"context"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/northcart/storefront-backend/api/controllers"
	"github.com/northcart/storefront-backend/api/middleware"
	checkoutsvc "github.com/northcart/storefront-backend/internal/checkout"
	"github.com/northcart/storefront-backend/internal/inventory"
	"github.com/northcart/storefront-backend/internal/orders"
	"github.com/northcart/storefront-backend/internal/shipping"
	"github.com/northcart/storefront-backend/pkg/config"
	"github.com/northcart/storefront-backend/pkg/logger"
	"github.com/northcart/storefront-backend/pkg/redis"
)

type pinger interface {
	Ping(ctx context.Context) error
}

// Deps carries everything the router wires into handlers.
type Deps struct {
	Config    *config.Config
	Logger    *logger.Logger
	DB        pinger
	Redis     *redis.Client
	Checkout  checkoutsvc.Service
	Orders    orders.Service
	Shipping  shipping.Calculator
	Inventory inventory.Manager
}

// NewRouter builds the storefront HTTP surface.
func NewRouter(deps Deps) http.Handler {
	logg := deps.Logger
	r := chi.NewRouter()
	r.Use(
		middleware.Recoverer(logg),
		middleware.RequestID(logg),
		middleware.Logging(logg),
		middleware.CORS(),
	)

	var cache pinger
	if deps.Redis != nil {
		cache = deps.Redis
	}
	r.Get("/healthz", controllers.Health(deps.DB, cache, logg))
	r.Method(http.MethodGet, "/metrics", promhttp.Handler())

	r.Route("/api/v1", func(r chi.Router) {
		if deps.Redis != nil {
			r.Use(middleware.Idempotency(deps.Redis, logg))
		}

		r.Post("/checkout", controllers.Checkout(deps.Checkout, logg))
		r.Post("/shipping/options", controllers.ShippingOptions(deps.Shipping, logg))
		r.Route("/orders", func(r chi.Router) {
			r.Get("/", controllers.ListOrders(deps.Orders, logg))
			r.Get("/{id}", controllers.GetOrder(deps.Orders, logg))
			r.Patch("/{id}/status", controllers.UpdateOrderStatus(deps.Orders, logg))
			r.Post("/{id}/cancel", controllers.CancelOrder(deps.Orders, logg))
		})
	})

	r.Route("/internal", func(r chi.Router) {
		r.Use(middleware.BearerToken(deps.Config.Reservations.CleanupToken, logg))
		r.Post("/reservations/cleanup", controllers.CleanupReservations(deps.Inventory, logg))
	})

	return r
}
