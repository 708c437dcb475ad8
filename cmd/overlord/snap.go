package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"

	"github.com/eleven-am/overlord/internal/bootstrap"
	"github.com/eleven-am/overlord/internal/conversation"
	"github.com/eleven-am/overlord/internal/insult"
	"github.com/eleven-am/overlord/internal/vision"
	"github.com/spf13/cobra"
)

var (
	snapImage   string
	snapVerbose bool
)

var snapCmd = &cobra.Command{
	Use:   "snap",
	Short: "Run one capture and request against a still image",
	RunE:  runSnap,
}

func init() {
	snapCmd.Flags().StringVar(&snapImage, "image", "", "path to a JPEG, PNG or WebP image")
	snapCmd.Flags().BoolVarP(&snapVerbose, "verbose", "v", false, "print outcome and latency")
	_ = snapCmd.MarkFlagRequired("image")
	rootCmd.AddCommand(snapCmd)
}

func runSnap(cmd *cobra.Command, args []string) error {
	cfg := bootstrap.LoadConfig()

	src, err := vision.OpenStillSource(snapImage)
	if err != nil {
		return err
	}
	defer src.Close()

	capturer := vision.NewCapturer(vision.Config{
		FrameWidth:  cfg.FrameWidth,
		JPEGQuality: cfg.JPEGQuality,
	})
	frame, err := capturer.Capture(src)
	if err != nil {
		return fmt.Errorf("capturing frame: %w", err)
	}

	chatCfg := bootstrap.ProvideChatConfig(cfg)
	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelWarn}))
	requester := insult.NewRequester(insult.NewClient(chatCfg), chatCfg, logger)

	res := requester.Request(context.Background(), conversation.NewHistory(cfg.HistoryLength), frame)
	fmt.Fprintln(cmd.OutOrStdout(), res.Text)
	if snapVerbose {
		fmt.Fprintf(cmd.ErrOrStderr(), "outcome=%s latency=%s frame=%dx%d\n", res.Outcome, res.Latency, frame.Width, frame.Height)
	}
	if !res.Outcome.Succeeded() {
		return fmt.Errorf("request failed: %w", res.Err)
	}
	return nil
}
