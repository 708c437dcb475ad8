package bootstrap

import (
	"github.com/eleven-am/overlord/internal/health"
	"github.com/eleven-am/overlord/internal/insult"
	"github.com/eleven-am/overlord/internal/loop"
	"github.com/eleven-am/overlord/internal/vision"
	"github.com/labstack/echo/v4"
	"github.com/redis/go-redis/v9"
	"go.uber.org/fx"
	"gorm.io/gorm"
)

const version = "1.0.0"

func ProvideHealthHandler(
	db *gorm.DB,
	redis *redis.Client,
	chat *insult.Client,
	source vision.VideoSource,
	ctrl *loop.Controller,
) *health.Handler {
	return health.NewHandler(db, redis, chat, source, ctrl, version)
}

func metricsMiddleware(h *health.Handler) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			h.IncrementRequests()
			h.IncrementConnections()
			defer h.DecrementConnections()
			return next(c)
		}
	}
}

func RegisterHealthRoutes(e *echo.Echo, h *health.Handler) {
	e.Use(metricsMiddleware(h))
	h.RegisterRoutes(e)
}

var HealthModule = fx.Options(
	fx.Provide(ProvideHealthHandler),
	fx.Invoke(RegisterHealthRoutes),
)
