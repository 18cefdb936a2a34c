package http

import (
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/utafrali/cartstore/internal/service"
	"github.com/utafrali/cartstore/pkg/health"
	"github.com/utafrali/cartstore/pkg/middleware"
)

// ServiceName labels metrics and spans emitted by the router.
const ServiceName = "cart"

// RouterConfig holds the HTTP surface settings.
type RouterConfig struct {
	CORS           middleware.CORSConfig
	RateLimit      middleware.RateLimitConfig
	PprofCIDRs     []string
	RequestTimeout time.Duration
}

// NewRouter creates a chi router with all cart service routes registered.
func NewRouter(
	cartService *service.CartService,
	healthHandler *health.Handler,
	logger *slog.Logger,
	cfg RouterConfig,
) http.Handler {
	if cfg.RequestTimeout <= 0 {
		cfg.RequestTimeout = 30 * time.Second
	}

	r := chi.NewRouter()

	// Global middleware
	r.Use(middleware.Recovery(logger))
	r.Use(chimw.Compress(5))
	r.Use(chimw.Timeout(cfg.RequestTimeout))
	r.Use(middleware.RequestLogging(logger))
	r.Use(middleware.Tracing(ServiceName))
	r.Use(middleware.RequestLogger(logger))
	r.Use(middleware.PrometheusMetrics(ServiceName))
	r.Use(middleware.CORS(cfg.CORS))

	r.Get("/health/live", healthHandler.LivenessHandler())
	r.Get("/health/ready", healthHandler.ReadinessHandler())
	r.Handle("/metrics", promhttp.Handler())

	middleware.RegisterPprof(r, cfg.PprofCIDRs, logger)

	cartHandler := NewCartHandler(cartService, logger)

	r.Route("/api/v1/sessions", func(r chi.Router) {
		r.Post("/", cartHandler.StartSession)
		r.With(RequireSession).Delete("/", cartHandler.EndSession)
	})

	r.Route("/api/v1/cart", func(r chi.Router) {
		r.Use(ContentTypeJSON)
		r.Use(RequireSession)
		r.Use(middleware.RateLimit(cfg.RateLimit, logger))

		r.Get("/", cartHandler.GetCart)
		r.Delete("/", cartHandler.ClearCart)
		r.Post("/checkout", cartHandler.Checkout)

		r.Post("/items", cartHandler.AddItem)
		r.Route("/items/{name}", func(r chi.Router) {
			r.Put("/", cartHandler.SetQuantity)
			r.Delete("/", cartHandler.RemoveItem)
			r.Get("/total", cartHandler.EntryTotal)
			r.Post("/increment", cartHandler.Increment)
			r.Post("/decrement", cartHandler.Decrement)
		})
	})

	return r
}
