package routes

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/alimansour/cardvault-backend/api/controllers"
	"github.com/alimansour/cardvault-backend/api/middleware"
	"github.com/alimansour/cardvault-backend/internal/fulfillment"
	"github.com/alimansour/cardvault-backend/internal/inventory"
	"github.com/alimansour/cardvault-backend/internal/reconcile"
	"github.com/alimansour/cardvault-backend/internal/reveal"
	"github.com/alimansour/cardvault-backend/pkg/config"
	"github.com/alimansour/cardvault-backend/pkg/db"
	"github.com/alimansour/cardvault-backend/pkg/logger"
	"github.com/alimansour/cardvault-backend/pkg/redis"
)

type Services struct {
	Fulfillment *fulfillment.Service
	Reveal      *reveal.Service
	Inventory   *inventory.Service
	Reconcile   *reconcile.Service
}

func NewRouter(
	cfg *config.Config,
	logg *logger.Logger,
	dbP db.Pinger,
	redisClient *redis.Client,
	promRegistry *prometheus.Registry,
	svcs Services,
) http.Handler {
	r := chi.NewRouter()
	r.Use(
		middleware.Recoverer(logg),
		middleware.RequestID(logg),
		middleware.Logging(logg),
	)

	r.Route("/health", func(r chi.Router) {
		r.Get("/live", controllers.HealthLive(cfg))
		r.Get("/ready", controllers.HealthReady(cfg, logg, dbP, redisClient))
	})

	if promRegistry != nil {
		r.Method(http.MethodGet, "/metrics", promhttp.HandlerFor(promRegistry, promhttp.HandlerOpts{}))
	}

	r.Route("/api/v1", func(r chi.Router) {
		r.Use(middleware.TenantAuth(logg))
		r.Use(middleware.Idempotency(redisClient, logg))

		r.Route("/orders/{orderId}", func(r chi.Router) {
			r.Post("/fulfill", controllers.FulfillOrder(svcs.Fulfillment, logg))
			r.Post("/reveal", controllers.RevealOrder(svcs.Reveal, logg))
		})

		r.Get("/inventory", controllers.UserInventory(svcs.Reconcile, logg))
		r.Post("/cards", controllers.UpsertCard(svcs.Inventory, logg))
		r.Get("/products/{productId}/availability", controllers.ProductAvailability(svcs.Inventory, logg))
	})

	return r
}
