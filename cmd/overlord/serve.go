package main

import (
	"strings"

	"github.com/eleven-am/overlord/internal/bootstrap"
	"github.com/spf13/cobra"
)

var (
	serveAddr      string
	serveImage     string
	serveSource    string
	serveAutoStart bool
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the Overlord service",
	Long:  "Start the HTTP service that owns the video source and the capture/reveal loop.",
	RunE:  runServe,
}

func init() {
	serveCmd.Flags().StringVar(&serveAddr, "addr", "", "listen address (overrides SERVER_ADDR)")
	serveCmd.Flags().StringVar(&serveImage, "image", "", "serve a still image instead of RTP video")
	serveCmd.Flags().StringVar(&serveSource, "source", "", "video source: rtp, webrtc or file (overrides VIDEO_SOURCE)")
	serveCmd.Flags().BoolVar(&serveAutoStart, "start", false, "start the loop immediately")
	rootCmd.AddCommand(serveCmd)
}

func runServe(cmd *cobra.Command, args []string) error {
	cfg := bootstrap.LoadConfig()
	if serveAddr != "" {
		cfg.ServerAddr = serveAddr
	}
	if serveSource != "" {
		cfg.VideoSource = strings.ToLower(serveSource)
	}
	if serveImage != "" {
		cfg.VideoSource = bootstrap.VideoSourceFile
		cfg.ImagePath = serveImage
	}
	if serveAutoStart {
		cfg.AutoStart = true
	}

	app := bootstrap.NewApp(cfg)
	if err := app.Err(); err != nil {
		return err
	}
	app.Run()
	return nil
}
