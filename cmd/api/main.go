package main

import (
	"context"
	"net/http"
	"os"

	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"

	"github.com/alimansour/cardvault-backend/api/routes"
	"github.com/alimansour/cardvault-backend/internal/export"
	"github.com/alimansour/cardvault-backend/internal/fulfillment"
	"github.com/alimansour/cardvault-backend/internal/inventory"
	"github.com/alimansour/cardvault-backend/internal/notify"
	"github.com/alimansour/cardvault-backend/internal/orders"
	"github.com/alimansour/cardvault-backend/internal/reconcile"
	"github.com/alimansour/cardvault-backend/internal/reveal"
	"github.com/alimansour/cardvault-backend/internal/supplier"
	"github.com/alimansour/cardvault-backend/internal/wallet"
	"github.com/alimansour/cardvault-backend/pkg/config"
	"github.com/alimansour/cardvault-backend/pkg/db"
	"github.com/alimansour/cardvault-backend/pkg/logger"
	"github.com/alimansour/cardvault-backend/pkg/metrics"
	"github.com/alimansour/cardvault-backend/pkg/migrate"
	"github.com/alimansour/cardvault-backend/pkg/outbox"
	"github.com/alimansour/cardvault-backend/pkg/redis"
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

	promRegistry := prometheus.NewRegistry()
	promRegistry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	fulfillmentMetrics := metrics.NewFulfillmentMetrics(promRegistry)

	gormDB := dbClient.DB()
	inventoryRepo := inventory.NewRepository(gormDB)
	walletRepo := wallet.NewRepository(gormDB)
	supplierRepo := supplier.NewRepository(gormDB)
	ordersRepo := orders.NewRepository(gormDB)
	fulfillmentRepo := fulfillment.NewRepository(gormDB)
	reconcileRepo := reconcile.NewRepository(gormDB)
	outboxService := outbox.NewService(outbox.NewRepository(gormDB), logg)

	inventoryService := inventory.NewService(dbClient, inventoryRepo, logg)
	supplierGateway := supplier.NewGateway(
		supplierRepo,
		supplier.NewClient(cfg.Supplier.HTTPTimeout),
		redisClient,
		cfg.Supplier,
		fulfillmentMetrics,
		logg,
	)
	exportService := export.NewService(cfg.Export, logg)
	notifier := notify.NewDispatcher(cfg.Notify, logg)

	fulfillmentService := fulfillment.NewService(
		dbClient,
		fulfillmentRepo,
		inventoryService,
		inventoryRepo,
		ordersRepo,
		supplierGateway,
		exportService,
		notifier,
		outboxService,
		fulfillmentMetrics,
		logg,
	)
	revealService := reveal.NewService(
		dbClient,
		ordersRepo,
		walletRepo,
		inventoryRepo,
		outboxService,
		notifier,
		fulfillmentMetrics,
		logg,
	)
	reconcileService := reconcile.NewService(reconcileRepo, inventoryService, inventoryRepo, ordersRepo, logg)

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
		Handler: routes.NewRouter(cfg, logg, dbClient, redisClient, promRegistry, routes.Services{
			Fulfillment: fulfillmentService,
			Reveal:      revealService,
			Inventory:   inventoryService,
			Reconcile:   reconcileService,
		}),
	}

	if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		logg.Error(ctx, "api server stopped unexpectedly", err)
		os.Exit(1)
	}
}
