package http

import (
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/hariomGiri/localshop-connect-sub001/internal/domain"
	"github.com/hariomGiri/localshop-connect-sub001/pkg/health"
	"github.com/hariomGiri/localshop-connect-sub001/pkg/middleware"
)

// ServiceName labels metrics and spans emitted by the router.
const ServiceName = "order"

// RouterConfig carries the transport settings of the router.
type RouterConfig struct {
	RequestTimeout  time.Duration
	CORS            middleware.CORSConfig
	PprofCIDRs      []string
	// CreateRateLimit throttles order placement per customer. Zero RPS disables it.
	CreateRateLimit middleware.RateLimitConfig
}

// NewRouter creates a chi router with all order service routes registered.
func NewRouter(
	orderService OrderService,
	healthHandler *health.Handler,
	validate middleware.TokenValidator,
	logger *slog.Logger,
	cfg RouterConfig,
) http.Handler {
	if cfg.RequestTimeout <= 0 {
		cfg.RequestTimeout = 30 * time.Second
	}

	r := chi.NewRouter()

	// Global middleware
	r.Use(middleware.RequestLogging(logger))
	r.Use(middleware.Recovery(logger))
	r.Use(middleware.CORS(cfg.CORS))
	r.Use(chimw.Compress(5))
	r.Use(chimw.Timeout(cfg.RequestTimeout))
	r.Use(middleware.PrometheusMetrics(ServiceName))
	r.Use(middleware.Tracing(ServiceName))
	r.Use(middleware.RequestLogger(logger))

	// Health check endpoints
	r.Get("/health/live", healthHandler.LivenessHandler())
	r.Get("/health/ready", healthHandler.ReadinessHandler())
	r.Handle("/metrics", promhttp.Handler())

	// Pprof debug endpoints with IP allowlist.
	middleware.RegisterPprof(r, cfg.PprofCIDRs, logger)

	h := NewOrderHandler(orderService, logger)

	createChain := []func(http.Handler) http.Handler{middleware.RequireRole(domain.RoleCustomer)}
	if cfg.CreateRateLimit.RPS > 0 {
		createChain = append(createChain, middleware.RateLimit(cfg.CreateRateLimit, logger))
	}

	r.Route("/api/v1/orders", func(r chi.Router) {
		r.Use(middleware.Auth(validate))
		r.Use(middleware.NoStore)
		r.Use(middleware.RequireJSON)

		r.With(createChain...).Post("/", h.CreateOrder)
		r.Get("/me", h.ListMyOrders)
		r.With(middleware.RequireRole(domain.RoleShopkeeper, domain.RoleAdmin)).Get("/shop", h.ListShopOrders)
		r.Get("/{id}", h.GetOrder)
		r.Put("/{id}/cancel", h.CancelOrder)
		r.With(middleware.RequireRole(domain.RoleShopkeeper, domain.RoleAdmin)).Put("/{id}/status", h.UpdateStatus)
		r.With(middleware.RequireRole(domain.RoleAdmin)).Put("/{id}/payment-status", h.UpdatePaymentStatus)
	})

	return r
}
