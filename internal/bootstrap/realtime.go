package bootstrap

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/eleven-am/overlord/internal/realtime"
	"github.com/eleven-am/overlord/internal/vision"
	"github.com/labstack/echo/v4"
	"go.uber.org/fx"
)

func ProvideRealtimeConfig(cfg *Config) realtime.Config {
	return realtime.Config{
		ICEServers: cfg.RTCICEServers,
		PortRange: realtime.PortRange{
			Min: cfg.RTCPortMin,
			Max: cfg.RTCPortMax,
		},
		MaxSDPSize:       cfg.RTCMaxSDPSize,
		KeyframeInterval: cfg.RTCKeyframeInterval,
	}
}

// ProvideRealtimeManager returns nil unless the webcam is published from a
// browser over WebRTC.
func ProvideRealtimeManager(
	lc fx.Lifecycle,
	cfg *Config,
	rtcCfg realtime.Config,
	source vision.VideoSource,
	logger *slog.Logger,
) (*realtime.Manager, error) {
	if cfg.VideoSource != VideoSourceWebRTC {
		return nil, nil
	}

	sink, ok := source.(realtime.PacketSink)
	if !ok {
		return nil, fmt.Errorf("video source %T cannot accept rtp packets", source)
	}

	mgr, err := realtime.NewManager(rtcCfg, sink, logger)
	if err != nil {
		return nil, err
	}

	lc.Append(fx.Hook{
		OnStop: func(ctx context.Context) error {
			return mgr.Close()
		},
	})
	return mgr, nil
}

func RegisterRealtimeRoutes(e *echo.Echo, mgr *realtime.Manager, logger *slog.Logger) {
	if mgr == nil {
		return
	}
	h := realtime.NewHandler(mgr, logger.With("handler", "realtime"))
	h.RegisterRoutes(e.Group("/v1"))
}

var RealtimeModule = fx.Options(
	fx.Provide(
		ProvideRealtimeConfig,
		ProvideRealtimeManager,
	),
	fx.Invoke(RegisterRealtimeRoutes),
)
