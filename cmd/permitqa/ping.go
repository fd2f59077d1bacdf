package main

import (
	"context"
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/kirillkom/permit-query-assistant/internal/observability/logging"
)

const pingTimeout = 5 * time.Second

func init() {
	rootCmd.AddCommand(pingCmd)
}

var pingCmd = &cobra.Command{
	Use:   "ping",
	Short: "Check secrets and backend connectivity",
	Long: `Report which secrets are configured (without printing them) and probe
every configured backend.

Examples:
  permitqa ping
  permitqa ping --secrets ./secrets.toml`,
	Args: cobra.NoArgs,
	RunE: runPing,
}

func runPing(cmd *cobra.Command, _ []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	out := cmd.OutOrStdout()

	fmt.Fprintln(out, "Secrets:")
	for _, status := range cfg.SecretStatuses() {
		state := "missing"
		if status.Present {
			state = "set"
		}
		fmt.Fprintf(out, "  %-22s %s\n", status.Name, state)
	}
	if cfg.ChatAPIKey != "" {
		fmt.Fprintf(out, "  chat api key: %s\n", logging.MaskSecret(cfg.ChatAPIKey))
	}

	app, err := openApp(cmd.Context(), cfg)
	if err != nil {
		return err
	}
	defer app.Close()

	fmt.Fprintf(out, "Backends (store=%s embedding=%s chat=%s):\n", cfg.StoreProvider, cfg.EmbeddingProvider, cfg.ChatProvider)
	failed := 0
	for _, check := range app.Checks {
		ctx, cancel := context.WithTimeout(cmd.Context(), pingTimeout)
		err := check.Ping(ctx)
		cancel()
		if err != nil {
			failed++
			fmt.Fprintf(out, "  %-10s FAIL %v\n", check.Name, err)
			continue
		}
		fmt.Fprintf(out, "  %-10s ok\n", check.Name)
	}
	if failed > 0 {
		return fmt.Errorf("%d backend check(s) failed", failed)
	}
	return nil
}
