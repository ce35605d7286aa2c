package routes

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/pleasantpearl/pleasantpearl-backend/api/controllers"
	"github.com/pleasantpearl/pleasantpearl-backend/api/middleware"
	"github.com/pleasantpearl/pleasantpearl-backend/internal/catalog"
	"github.com/pleasantpearl/pleasantpearl-backend/pkg/config"
	"github.com/pleasantpearl/pleasantpearl-backend/pkg/db"
	"github.com/pleasantpearl/pleasantpearl-backend/pkg/logger"
)

func NewRouter(
	cfg *config.Config,
	logg *logger.Logger,
	dbP db.Pinger,
	registry *prometheus.Registry,
	catalogService catalog.Service,
) http.Handler {
	r := chi.NewRouter()
	r.Use(
		middleware.Recoverer(logg),
		middleware.RequestID(logg),
		middleware.Logging(logg),
	)

	r.Route("/health", func(r chi.Router) {
		r.Get("/live", controllers.HealthLive(cfg))
		r.Get("/ready", controllers.HealthReady(cfg, logg, dbP))
	})

	if registry != nil {
		r.Method(http.MethodGet, "/metrics", promhttp.HandlerFor(registry, promhttp.HandlerOpts{}))
	}

	r.Route("/api/v1/products", func(r chi.Router) {
		r.Get("/", controllers.ListProducts(catalogService, logg))
		r.Post("/", controllers.CreateProduct(catalogService, cfg.Media.MaxUploadMB, logg))
		r.Get("/{productId}", controllers.GetProduct(catalogService, logg))
		r.Patch("/{productId}", controllers.UpdateProduct(catalogService, cfg.Media.MaxUploadMB, logg))
		r.Delete("/{productId}", controllers.DeleteProduct(catalogService, logg))
		r.Post("/{productId}/stock/decrement", controllers.DecrementStock(catalogService, logg))
	})

	return r
}
