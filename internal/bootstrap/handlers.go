package bootstrap

import (
	"log/slog"
	"os"

	"github.com/eleven-am/overlord/internal/api"
	"github.com/eleven-am/overlord/internal/journal"
	"github.com/eleven-am/overlord/internal/loop"
	"github.com/eleven-am/overlord/internal/vision"
	"github.com/labstack/echo/v4"
	"go.uber.org/fx"
)

func parseLogLevel(level string) slog.Level {
	switch level {
	case "debug":
		return slog.LevelDebug
	case "warn":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

func ProvideLogger(cfg *Config) *slog.Logger {
	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{
		Level: parseLogLevel(cfg.LogLevel),
	}))
	slog.SetDefault(logger)
	return logger
}

func ProvideAPIHandler(ctrl *loop.Controller, frames *vision.Store, journalStore *journal.Store, logger *slog.Logger) *api.Handler {
	var frameReader api.FrameReader
	if frames != nil {
		frameReader = frames
	}
	return api.NewHandler(ctrl, frameReader, journalStore, logger.With("handler", "loop"))
}

func RegisterRoutes(e *echo.Echo, h *api.Handler) {
	h.RegisterRoutes(e.Group("/v1"))
}

var HandlersModule = fx.Options(
	fx.Provide(
		ProvideLogger,
		ProvideAPIHandler,
	),
	fx.Invoke(RegisterRoutes),
)
