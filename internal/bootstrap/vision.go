package bootstrap

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/eleven-am/overlord/internal/vision"
	"go.uber.org/fx"
)

// NewVideoSource builds the configured source without starting it.
func NewVideoSource(cfg *Config, logger *slog.Logger) (vision.VideoSource, error) {
	switch cfg.VideoSource {
	case VideoSourceFile:
		if cfg.ImagePath == "" {
			return nil, errors.New("IMAGE_PATH is required for the file video source")
		}
		return vision.OpenStillSource(cfg.ImagePath)
	case VideoSourceRTP, "":
		return vision.NewRTPSource(vision.RTPSourceConfig{
			Addr:     cfg.RTPAddr,
			MIMEType: cfg.RTPMIMEType,
			Logger:   logger,
		}), nil
	case VideoSourceWebRTC:
		// Packets arrive from the realtime manager instead of a socket.
		return vision.NewRTPSource(vision.RTPSourceConfig{
			MIMEType: "video/VP8",
			Logger:   logger,
		}), nil
	default:
		return nil, fmt.Errorf("unsupported video source %q", cfg.VideoSource)
	}
}

// ProvideVideoSource acquires the feed on start and releases it on stop,
// whether or not the loop is running.
func ProvideVideoSource(lc fx.Lifecycle, cfg *Config, logger *slog.Logger) (vision.VideoSource, error) {
	src, err := NewVideoSource(cfg, logger)
	if err != nil {
		return nil, err
	}

	lc.Append(fx.Hook{
		OnStart: func(ctx context.Context) error {
			if rtp, ok := src.(*vision.RTPSource); ok && cfg.VideoSource != VideoSourceWebRTC {
				return rtp.Listen(ctx)
			}
			return nil
		},
		OnStop: func(ctx context.Context) error {
			return src.Close()
		},
	})
	return src, nil
}

func ProvideCapturer(cfg *Config) *vision.Capturer {
	return vision.NewCapturer(vision.Config{
		FrameWidth:  cfg.FrameWidth,
		JPEGQuality: cfg.JPEGQuality,
	})
}

var VisionModule = fx.Options(
	fx.Provide(
		ProvideVideoSource,
		ProvideCapturer,
	),
)
