package router // package router defines how HTTP routes are registered for the API

import (
	"github.com/labstack/echo/v4"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"

	"github.com/iliyamo/club-payments/internal/config"
	"github.com/iliyamo/club-payments/internal/handler"
	"github.com/iliyamo/club-payments/internal/middleware"
	"github.com/iliyamo/club-payments/internal/utils"
)

// Deps bundles what the payment routes need.  Redis may be nil.
type Deps struct {
	Payments  *handler.PaymentHandler
	Status    handler.StatusReporter
	JWTSecret string
	Redis     *redis.Client
	Cache     config.CacheConfig
	RateLimit config.RateLimitConfig
	Log       zerolog.Logger
}

// RegisterRoutes registers routes that do not require authentication.
func RegisterRoutes(e *echo.Echo) {
	e.GET("/healthz", handler.Health)
}

// RegisterPayments registers the authenticated /v1 API.  Any operator may
// read; only OPERATOR tokens may record, correct or delete payments.
// Rate limiting runs after authentication so keys include the operator,
// and the cache sits behind both.
func RegisterPayments(e *echo.Echo, d Deps) {
	v1 := e.Group("/v1",
		middleware.JWTAuth(d.JWTSecret),
		middleware.RequireRole(utils.RoleOperator, utils.RoleViewer),
		middleware.NewTokenBucket(d.RateLimit, d.Redis, d.Log),
	)
	v1.GET("/storage/status", handler.StorageStatus(d.Status))

	payments := v1.Group("/payments", middleware.NewRedisCache(d.Cache, d.Redis, d.Log))
	payments.GET("", d.Payments.ListPayments)
	payments.GET("/:id", d.Payments.GetPayment)

	write := middleware.RequireRole(utils.RoleOperator)
	payments.POST("", d.Payments.CreatePayment, write)
	payments.PUT("/:id", d.Payments.UpdatePayment, write)
	payments.DELETE("/:id", d.Payments.DeletePayment, write)
}
