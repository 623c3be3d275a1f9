package routes

import (
	"context"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"github.com/arklim/authcore/internal/infra/config"
	"github.com/arklim/authcore/internal/infra/telemetry"
	"github.com/arklim/authcore/internal/transport/http/handlers"
	"github.com/arklim/authcore/internal/transport/http/middleware"
	"github.com/arklim/authcore/internal/usecase"
)

// ServiceSet groups the services the HTTP layer depends on.
type ServiceSet struct {
	Auth    *usecase.AuthService
	APIKeys *usecase.APIKeyService
}

// Dependencies encapsulates the objects required to register routes.
type Dependencies struct {
	Config      *config.AppConfig
	Logger      *zap.Logger
	RateLimiter *middleware.RateLimiter
	Services    ServiceSet
	Telemetry   *telemetry.Provider
	Database    DatabaseChecker
	Cache       CacheChecker
}

// DatabaseChecker exposes readiness behaviour for database connections.
type DatabaseChecker interface {
	Ping(ctx context.Context) error
}

// CacheChecker exposes readiness behaviour for cache backends.
type CacheChecker interface {
	HealthCheck(ctx context.Context) error
}

// Register configures the Gin engine with routes and middleware.
func Register(deps Dependencies) *gin.Engine {
	if deps.Config.App.Env == "production" {
		gin.SetMode(gin.ReleaseMode)
	}

	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(middleware.EnrichContext())
	r.Use(middleware.RequestID())
	r.Use(middleware.Logger(deps.Logger))

	if len(deps.Config.App.CORSAllowedOrigins) > 0 {
		r.Use(middleware.CORS(deps.Config.App.CORSAllowedOrigins))
	}

	if deps.Config.Telemetry.MetricsEnabled {
		if httpMetrics, err := middleware.NewHTTPMetrics(middleware.HTTPMetricsOptions{}); err == nil {
			r.Use(httpMetrics.Handler())
		} else if deps.Logger != nil {
			deps.Logger.Warn("http metrics disabled", zap.Error(err))
		}
	}

	healthOptions := make([]handlers.HealthOption, 0, 2)

	if deps.Database != nil {
		healthOptions = append(healthOptions, handlers.WithReadinessCheck("database", deps.Database.Ping))
	}

	if deps.Cache != nil {
		healthOptions = append(healthOptions, handlers.WithReadinessCheck("redis", deps.Cache.HealthCheck))
	}

	healthHandler := handlers.NewHealthHandler(healthOptions...)

	r.GET("/healthz", healthHandler.Status)
	r.GET("/readyz", healthHandler.Readiness)

	r.GET("/metrics", gin.WrapH(promhttp.Handler()))

	api := r.Group("/api/v1")
	{
		authGroup := api.Group("/auth")

		authHandler := handlers.NewAuthHandler(deps.Services.Auth, handlers.WithTelemetry(deps.Telemetry))

		loginMiddlewares := buildLoginMiddlewares(deps)
		authHandler.RegisterRoutes(authGroup, loginMiddlewares...)

		if deps.Services.APIKeys != nil {
			tokenHandler := handlers.NewTokenHandler(deps.Services.Auth)
			serviceGroup := api.Group("/service")
			serviceGroup.Use(middleware.RequireAPIKey(deps.Services.APIKeys))
			serviceGroup.POST("/token/verify", middleware.RequireScope("token:verify"), tokenHandler.Verify)
		}
	}

	return r
}

// buildLoginMiddlewares guards the login route with an IP-scoped window in
// front of the per-identifier admission check inside the use case.
func buildLoginMiddlewares(deps Dependencies) []gin.HandlerFunc {
	if deps.RateLimiter == nil || deps.Config == nil {
		return nil
	}

	limit := deps.Config.RateLimit.LoginMaxAttempts
	if limit <= 0 {
		return nil
	}

	window := deps.Config.RateLimit.LoginWindow
	if window <= 0 {
		window = time.Minute
	}

	rule := middleware.RateLimitRule{
		Name:       "login-ip",
		Limit:      limit,
		Window:     window,
		Identifier: middleware.ClientIPIdentifier(),
	}

	return []gin.HandlerFunc{deps.RateLimiter.RateLimit(rule)}
}
