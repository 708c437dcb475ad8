package bootstrap

import (
	"context"
	"log/slog"

	"github.com/eleven-am/overlord/internal/conversation"
	"github.com/eleven-am/overlord/internal/insult"
	"github.com/eleven-am/overlord/internal/journal"
	"github.com/eleven-am/overlord/internal/loop"
	"github.com/eleven-am/overlord/internal/reveal"
	"github.com/eleven-am/overlord/internal/vision"
	"go.uber.org/fx"
)

func ProvideChatConfig(cfg *Config) insult.Config {
	return insult.Config{
		BaseURL:       cfg.ChatBaseURL,
		Model:         cfg.ChatModel,
		Timeout:       cfg.ChatTimeout,
		HistoryLength: cfg.HistoryLength,
		SystemPrompt:  cfg.SystemPrompt,
	}
}

func ProvideChatClient(cfg insult.Config) *insult.Client {
	return insult.NewClient(cfg)
}

func ProvideRequester(client *insult.Client, cfg insult.Config, logger *slog.Logger) *insult.Requester {
	return insult.NewRequester(client, cfg, logger)
}

func ProvideHistory(cfg *Config) *conversation.History {
	return conversation.NewHistory(cfg.HistoryLength)
}

func ProvideRevealer(cfg *Config) *reveal.Revealer {
	return reveal.New(reveal.Config{
		Duration: cfg.RevealDuration,
		Hold:     cfg.RevealHold,
	})
}

type ControllerParams struct {
	fx.In

	Config     *Config
	Source     vision.VideoSource
	Capturer   *vision.Capturer
	Requester  *insult.Requester
	Revealer   *reveal.Revealer
	History    *conversation.History
	Journal    *journal.Store
	FrameStore *vision.Store
	Logger     *slog.Logger
}

func ProvideController(p ControllerParams) *loop.Controller {
	recorders := []loop.Recorder{p.Journal}
	if p.FrameStore != nil {
		recorders = append(recorders, loop.FrameRecorder(p.FrameStore))
	}

	return loop.NewController(loop.ControllerConfig{
		Source:      p.Source,
		Capturer:    p.Capturer,
		Requester:   p.Requester,
		Revealer:    p.Revealer,
		History:     p.History,
		Recorders:   recorders,
		MinInterval: p.Config.CycleInterval,
		Logger:      p.Logger,
	})
}

// ManageLoop starts the loop after the video source when AUTO_START is set
// and drains it on shutdown. fx stops hooks in reverse order, so the loop
// is closed before the source is released.
func ManageLoop(lc fx.Lifecycle, ctrl *loop.Controller, cfg *Config, logger *slog.Logger) {
	lc.Append(fx.Hook{
		OnStart: func(ctx context.Context) error {
			if !cfg.AutoStart {
				return nil
			}
			logger.Info("auto-starting loop")
			return ctrl.Start()
		},
		OnStop: func(ctx context.Context) error {
			return ctrl.Close(ctx)
		},
	})
}

var LoopModule = fx.Options(
	fx.Provide(
		ProvideChatConfig,
		ProvideChatClient,
		ProvideRequester,
		ProvideHistory,
		ProvideRevealer,
		ProvideController,
	),
	fx.Invoke(ManageLoop),
)
