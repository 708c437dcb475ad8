// Overlord watches a camera feed and types out what a vision model thinks of
// whoever is standing in front of it.
package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

var (
	version   = "dev"
	serverURL string
)

var rootCmd = &cobra.Command{
	Use:   "overlord",
	Short: "Overlord - a webcam heckler backed by a vision model",
	Long: `Overlord captures a frame, asks a vision model for a one-liner about it and
reveals the answer one character at a time, forever.

  overlord serve                       Start the service
  overlord snap --image face.jpg       One capture and request against a still image
  overlord start | stop | state        Control a running service`,
	Version: version,
}

func init() {
	rootCmd.PersistentFlags().StringVar(&serverURL, "server", envOr("OVERLORD_SERVER", "http://localhost:8080"), "Overlord server URL")
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}
