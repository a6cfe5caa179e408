package http

import (
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/suivie/storefront/internal/service"
	"github.com/suivie/storefront/pkg/health"
	"github.com/suivie/storefront/pkg/middleware"
)

// RouterConfig carries the router's dependencies.
type RouterConfig struct {
	ServiceName     string
	Carts           CartProvider
	Catalog         Catalog
	Checkout        *service.CheckoutService
	Health          *health.Handler
	Logger          *slog.Logger
	CORS            middleware.CORSConfig
	PprofCIDRs      []string
	ProductCacheTTL time.Duration
	RequestTimeout  time.Duration

	// Per-client limit on routes that call Shopify; zero disables it.
	RateLimitRPS   float64
	RateLimitBurst int
}

// NewRouter creates a chi router with all storefront routes registered.
func NewRouter(cfg RouterConfig) http.Handler {
	if cfg.RequestTimeout <= 0 {
		cfg.RequestTimeout = 30 * time.Second
	}
	logger := cfg.Logger

	r := chi.NewRouter()

	// Global middleware
	r.Use(middleware.Recovery(logger))
	r.Use(middleware.CORS(cfg.CORS))
	r.Use(chimw.Compress(5))
	r.Use(chimw.Timeout(cfg.RequestTimeout))
	r.Use(middleware.RequestLogging(logger))
	r.Use(middleware.PrometheusMetrics(cfg.ServiceName))
	r.Use(middleware.Tracing(cfg.ServiceName))
	r.Use(middleware.RequestLogger(logger))

	// Health check endpoints
	r.Get("/health/live", cfg.Health.LivenessHandler())
	r.Get("/health/ready", cfg.Health.ReadinessHandler())
	r.Handle("/metrics", promhttp.Handler())

	middleware.RegisterPprof(r, cfg.PprofCIDRs, logger)

	upstreamLimit := middleware.RateLimit(cfg.RateLimitRPS, cfg.RateLimitBurst, logger)

	cartHandler := NewCartHandler(cfg.Carts, cfg.Checkout, logger)
	productHandler := NewProductHandler(cfg.Catalog, logger)

	r.Route("/api/v1/cart", func(r chi.Router) {
		r.Use(middleware.NoStore)
		r.Use(ContentTypeJSON)
		r.Use(ProfileFromHeader)

		r.Get("/", cartHandler.GetCart)
		r.Delete("/", cartHandler.ClearCart)

		r.Post("/items", cartHandler.AddItem)
		r.Put("/items/{merchandiseId}", cartHandler.UpdateItemQuantity)
		r.Delete("/items/{merchandiseId}", cartHandler.RemoveItem)

		r.With(upstreamLimit).Post("/checkout", cartHandler.Checkout)
		r.With(upstreamLimit).Post("/shipping", cartHandler.QuoteShipping)
	})

	r.Route("/api/v1/products", func(r chi.Router) {
		r.Use(upstreamLimit)
		r.Use(middleware.CacheControl(cfg.ProductCacheTTL))

		r.Get("/", productHandler.ListProducts)
		r.Get("/search", productHandler.SearchProducts)
		r.Get("/{handle}", productHandler.GetProduct)
	})

	return r
}
