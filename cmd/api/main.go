package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus"

	"github.com/northcart/storefront-backend/api/routes"
	"github.com/northcart/storefront-backend/internal/cart"
	"github.com/northcart/storefront-backend/internal/catalog"
	checkoutsvc "github.com/northcart/storefront-backend/internal/checkout"
	"github.com/northcart/storefront-backend/internal/inventory"
	"github.com/northcart/storefront-backend/internal/orders"
	"github.com/northcart/storefront-backend/internal/payments"
	"github.com/northcart/storefront-backend/internal/shipping"
	"github.com/northcart/storefront-backend/pkg/config"
	"github.com/northcart/storefront-backend/pkg/db"
	"github.com/northcart/storefront-backend/pkg/logger"
	"github.com/northcart/storefront-backend/pkg/metrics"
	"github.com/northcart/storefront-backend/pkg/migrate"
	"github.com/northcart/storefront-backend/pkg/outbox"
	"github.com/northcart/storefront-backend/pkg/redis"
	"github.com/northcart/storefront-backend/pkg/square"
)

func main() {
	logg := logger.New(logger.Options{ServiceName: "api"})

	if err := godotenv.Load(); err != nil {
		logg.Warn(context.Background(), ".env file not found, relying on environment")
	}

	cfg, err := config.Load()
	if err != nil {
		logg.Error(context.Background(), "failed to load config", err)
		os.Exit(1)
	}

	logg = logger.New(logger.Options{
		ServiceName: "api",
		Level:       logger.ParseLevel(cfg.App.LogLevel),
		WarnStack:   cfg.App.LogWarnStack,
	})

	dbClient, err := db.New(context.Background(), cfg.DB, logg)
	if err != nil {
		logg.Error(context.Background(), "failed to bootstrap database", err)
		os.Exit(1)
	}
	defer func() {
		if err := dbClient.Close(); err != nil {
			logg.Error(context.Background(), "error closing database", err)
		}
	}()

	if err := migrate.MaybeRunDev(context.Background(), cfg, logg, dbClient); err != nil {
		logg.Error(context.Background(), "failed to run dev migrations", err)
		os.Exit(1)
	}

	redisClient, err := redis.New(context.Background(), cfg.Redis, logg)
	if err != nil {
		logg.Error(context.Background(), "failed to bootstrap redis", err)
		os.Exit(1)
	}
	defer func() {
		if err := redisClient.Close(); err != nil {
			logg.Error(context.Background(), "error closing redis", err)
		}
	}()

	squareClient, err := square.NewClient(context.Background(), cfg.Square, logg)
	if err != nil {
		logg.Error(context.Background(), "failed to bootstrap square client", err)
		os.Exit(1)
	}

	cardGateway, err := payments.NewCardProvider(squareClient)
	if err != nil {
		logg.Error(context.Background(), "failed to create card gateway", err)
		os.Exit(1)
	}
	swishGateway, err := payments.NewSwishProvider(cfg.Swish)
	if err != nil {
		logg.Error(context.Background(), "failed to create swish gateway", err)
		os.Exit(1)
	}
	bnplGateway, err := payments.NewBNPLProvider(cfg.BNPL)
	if err != nil {
		logg.Error(context.Background(), "failed to create bnpl gateway", err)
		os.Exit(1)
	}
	gateways, err := payments.NewSelector(cardGateway, swishGateway, bnplGateway)
	if err != nil {
		logg.Error(context.Background(), "failed to create payment selector", err)
		os.Exit(1)
	}

	outboxSvc := outbox.NewService(outbox.NewRepository(dbClient.DB()), logg)

	inventoryManager, err := inventory.NewManager(dbClient, logg, outboxSvc, cfg.Reservations.TTL)
	if err != nil {
		logg.Error(context.Background(), "failed to create inventory manager", err)
		os.Exit(1)
	}

	catalogRepo := catalog.NewRepository(dbClient.DB())

	shippingCalc, err := shipping.NewCalculator(shipping.NewRepository(dbClient.DB()), catalogRepo, logg)
	if err != nil {
		logg.Error(context.Background(), "failed to create shipping calculator", err)
		os.Exit(1)
	}

	ordersRepo := orders.NewRepository(dbClient.DB())
	ordersService, err := orders.NewService(ordersRepo, dbClient, outboxSvc, inventoryManager, logg)
	if err != nil {
		logg.Error(context.Background(), "failed to create orders service", err)
		os.Exit(1)
	}

	cartRepo := cart.NewRepository(dbClient.DB())

	checkoutMetrics := metrics.NewCheckoutMetrics(prometheus.DefaultRegisterer)
	checkoutService, err := checkoutsvc.NewService(
		ordersRepo,
		ordersService,
		inventoryManager,
		shippingCalc,
		catalogRepo,
		cartRepo,
		gateways,
		dbClient,
		outboxSvc,
		checkoutMetrics,
		cfg.Checkout,
		logg,
	)
	if err != nil {
		logg.Error(context.Background(), "failed to create checkout service", err)
		os.Exit(1)
	}

	port := os.Getenv("PORT")
	if port == "" {
		port = cfg.App.Port
	}
	addr := ":" + port
	ctx := logg.WithFields(context.Background(), map[string]any{
		"env":  cfg.App.Env,
		"addr": addr,
	})
	logg.Info(ctx, "starting api server")

	server := &http.Server{
		Addr: addr,
		Handler: routes.NewRouter(routes.Deps{
			Config:    cfg,
			Logger:    logg,
			DB:        dbClient,
			Redis:     redisClient,
			Checkout:  checkoutService,
			Orders:    ordersService,
			Shipping:  shippingCalc,
			Inventory: inventoryManager,
		}),
	}

	shutdownCtx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	go func() {
		<-shutdownCtx.Done()
		logg.Info(ctx, "shutting down api server")
		drainCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
		defer cancel()
		if err := server.Shutdown(drainCtx); err != nil {
			logg.Error(ctx, "server shutdown failed", err)
		}
	}()

	if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		logg.Error(ctx, "api server stopped unexpectedly", err)
		os.Exit(1)
	}
}
