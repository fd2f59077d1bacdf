// Package main implements the permitqa CLI for asking questions and loading
// permit exports without running the HTTP API.
package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"

	"github.com/kirillkom/permit-query-assistant/internal/bootstrap"
	"github.com/kirillkom/permit-query-assistant/internal/config"
	"github.com/kirillkom/permit-query-assistant/internal/observability/logging"
)

var (
	configPath  string
	secretsPath string
	verbose     bool
	version     = "dev"
)

func main() {
	_ = godotenv.Load()
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	if err := rootCmd.ExecuteContext(ctx); err != nil {
		stop()
		os.Exit(1)
	}
}

var rootCmd = &cobra.Command{
	Use:   "permitqa",
	Short: "Answer questions about permit records",
	Long: `permitqa loads permit exports into the configured document store and
answers natural-language questions grounded in the stored records.

Configuration is read from config.yaml, .streamlit/secrets.toml and the
environment, in that order.`,
	Version:      version,
	SilenceUsage: true,
}

func init() {
	rootCmd.PersistentFlags().StringVar(&configPath, "config", "", "YAML config file (default: config.yaml when present)")
	rootCmd.PersistentFlags().StringVar(&secretsPath, "secrets", "", "secrets.toml file (default: .streamlit/secrets.toml when present)")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "log at debug level to stderr")
}

func loadConfig() (config.Config, error) {
	return config.LoadFrom(configPath, secretsPath)
}

// openApp builds the application for one command invocation. Logging stays
// at warn level unless --verbose is set so command output is not drowned.
func openApp(ctx context.Context, cfg config.Config) (*bootstrap.App, error) {
	level := "warn"
	if verbose {
		level = "debug"
	}
	logger, err := logging.NewLogger(cfg.ServiceName+"-cli", level, "console")
	if err != nil {
		return nil, err
	}
	return bootstrap.New(ctx, cfg, bootstrap.Options{Logger: logger})
}
