package http

import (
	"log/slog"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/jsamuelsen/quote-sync/internal/adapters/http/handlers"
	"github.com/jsamuelsen/quote-sync/internal/adapters/http/middleware"
	"github.com/jsamuelsen/quote-sync/internal/platform/config"
	"github.com/jsamuelsen/quote-sync/internal/platform/telemetry"
)

// DefaultRequestTimeout bounds /api/v1 requests when the config leaves it unset.
const DefaultRequestTimeout = 30 * time.Second

// RouterConfig holds what SetupRouter mounts. Nil handlers are skipped.
type RouterConfig struct {
	Logger    *slog.Logger
	AppConfig *config.AppConfig

	// AuthConfig gates the write routes when Enabled.
	AuthConfig *config.AuthConfig

	HealthHandler *handlers.HealthHandler
	QuoteHandler  *handlers.QuoteHandler
	SyncHandler   *handlers.SyncHandler

	// Timeout is the /api/v1 request deadline; zero disables it.
	Timeout time.Duration
}

// SetupRouter installs the middleware chain and mounts the routes.
//
// Every request passes recovery, request and correlation IDs, tracing and
// metrics, then the access log. Probes live under /-/ without auth or
// deadline; quote, filter and sync routes live under /api/v1.
func SetupRouter(engine *gin.Engine, cfg RouterConfig) {
	engine.Use(
		middleware.Recovery(cfg.Logger),
		middleware.RequestID(),
		middleware.CorrelationID(),
	)
	engine.Use(telemetry.Middleware(cfg.AppConfig.Name)...)
	engine.Use(middleware.Logging(cfg.Logger))

	if cfg.HealthHandler != nil {
		cfg.HealthHandler.RegisterRoutes(engine)
	}

	api := engine.Group("/api/v1")
	if cfg.Timeout > 0 {
		api.Use(middleware.SimpleTimeout(cfg.Timeout))
	}

	setupAPIRoutes(api, cfg)
}

func setupAPIRoutes(rg *gin.RouterGroup, cfg RouterConfig) {
	var write []gin.HandlerFunc
	if cfg.AuthConfig != nil && cfg.AuthConfig.Enabled {
		write = append(write, middleware.RequireWriter(cfg.AuthConfig))
	}

	if cfg.QuoteHandler != nil {
		cfg.QuoteHandler.RegisterRoutes(rg, write...)
	}

	if cfg.SyncHandler != nil {
		cfg.SyncHandler.RegisterRoutes(rg, write...)
	}
}

// NewDefaultRouterConfig builds a RouterConfig from loaded settings. Callers
// add the quote and sync handlers.
func NewDefaultRouterConfig(logger *slog.Logger, cfg *config.Config, health *handlers.HealthHandler) RouterConfig {
	timeout := cfg.Server.RequestTimeout
	if timeout <= 0 {
		timeout = DefaultRequestTimeout
	}

	return RouterConfig{
		Logger:        logger,
		AuthConfig:    &cfg.Auth,
		AppConfig:     &cfg.App,
		HealthHandler: health,
		Timeout:       timeout,
	}
}
