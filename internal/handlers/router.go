package handlers

import (
	"context"
	"io"
	"log/slog"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"church-checkin/internal/auth"
	"church-checkin/internal/metrics"
	"church-checkin/internal/services"
)

const healthCheckTimeout = 2 * time.Second

type RouterConfig struct {
	CheckIn    services.CheckInProcessor
	Dashboard  services.StatsProvider
	Identities IdentityRegistry
	Sessions   Authenticator
	Tokens     TokenValidator
	Events     EventSubscriber
	Metrics    *metrics.Metrics
	// Gatherer backs /metrics; the route is omitted when nil
	Gatherer  prometheus.Gatherer
	PublicURL string
	// Ping reports store health on /health
	Ping   func(ctx context.Context) error
	Logger *slog.Logger
}

// NewRouter wires the HTTP API
func NewRouter(cfg RouterConfig) *gin.Engine {
	logger := cfg.Logger
	if logger == nil {
		logger = slog.New(slog.NewJSONHandler(io.Discard, nil))
	}
	logger = logger.With("component", "http")

	router := gin.New()
	router.Use(gin.Recovery(), RequestLogger(logger), cfg.Metrics.Instrument())

	router.GET("/health", healthHandler(cfg.Ping))
	if cfg.Gatherer != nil {
		router.GET("/metrics", gin.WrapH(promhttp.HandlerFor(cfg.Gatherer, promhttp.HandlerOpts{})))
	}

	checkIn := NewCheckInHandler(cfg.CheckIn)
	dashboard := NewDashboardHandler(cfg.Dashboard, cfg.Events, logger)
	identities := NewIdentityHandler(cfg.Identities, cfg.PublicURL)
	sessions := NewSessionHandler(cfg.Sessions)

	api := router.Group("/api")
	api.POST("/auth/login", sessions.HandleLogin)
	api.POST("/identities", identities.HandleRegister)
	api.GET("/identities/:code/qr.png", identities.HandleQR)

	protected := api.Group("")
	protected.Use(AuthMiddleware(cfg.Tokens))
	{
		protected.POST("/checkin", RequireRole(auth.RoleScanner, auth.RoleAdmin), checkIn.HandleCheckIn)

		admin := protected.Group("")
		admin.Use(RequireRole(auth.RoleAdmin))
		admin.GET("/dashboard", dashboard.HandleDashboard)
		admin.GET("/dashboard/stream", dashboard.HandleStream)
		admin.GET("/identities/:code", identities.HandleGet)
		admin.PUT("/identities/:code", identities.HandleUpdate)
	}
	return router
}

func healthHandler(ping func(ctx context.Context) error) gin.HandlerFunc {
	return func(c *gin.Context) {
		if ping != nil {
			ctx, cancel := context.WithTimeout(c.Request.Context(), healthCheckTimeout)
			defer cancel()
			if err := ping(ctx); err != nil {
				c.JSON(http.StatusServiceUnavailable, gin.H{"status": "unavailable", "error": err.Error()})
				return
			}
		}
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	}
}
