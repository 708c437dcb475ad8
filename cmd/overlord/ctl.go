package main

import (
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"

	"github.com/eleven-am/overlord/internal/loop"
	"github.com/spf13/cobra"
)

var startCmd = &cobra.Command{
	Use:   "start",
	Short: "Start the loop on a running service",
	RunE: func(cmd *cobra.Command, args []string) error {
		return callLoop(cmd, http.MethodPost, "/v1/loop/start")
	},
}

var stopCmd = &cobra.Command{
	Use:   "stop",
	Short: "Stop the loop on a running service",
	RunE: func(cmd *cobra.Command, args []string) error {
		return callLoop(cmd, http.MethodPost, "/v1/loop/stop")
	},
}

var stateCmd = &cobra.Command{
	Use:   "state",
	Short: "Show the current loop state",
	RunE: func(cmd *cobra.Command, args []string) error {
		return callLoop(cmd, http.MethodGet, "/v1/loop/state")
	},
}

func init() {
	rootCmd.AddCommand(startCmd, stopCmd, stateCmd)
}

func callLoop(cmd *cobra.Command, method, path string) error {
	req, err := http.NewRequestWithContext(cmd.Context(), method, strings.TrimRight(serverURL, "/")+path, nil)
	if err != nil {
		return err
	}

	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		return fmt.Errorf("connecting to server: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(resp.Body)
		return fmt.Errorf("server error (%d): %s", resp.StatusCode, string(body))
	}

	var state loop.State
	if err := json.NewDecoder(resp.Body).Decode(&state); err != nil {
		return fmt.Errorf("decoding state: %w", err)
	}

	out := cmd.OutOrStdout()
	fmt.Fprintf(out, "Running: %v\n", state.Running)
	if state.RunID != "" {
		fmt.Fprintf(out, "Run:     %s (cycle %d)\n", state.RunID, state.Cycle)
	}
	if state.Text != "" {
		fmt.Fprintf(out, "Text:    %s\n", state.Text)
	}
	if state.Status != "" {
		fmt.Fprintf(out, "Status:  %s\n", state.Status)
	}
	return nil
}
