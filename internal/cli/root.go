// Package cli implements hazardctl, the operator command line for the hazard
// sync service.
package cli

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/couchcryptid/hazard-sync/internal/adapter/postgres"
	"github.com/couchcryptid/hazard-sync/internal/config"
	"github.com/couchcryptid/hazard-sync/internal/observability"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/spf13/cobra"
)

var (
	cfg          *config.Config
	outputFormat string
	verbose      bool
)

var rootCmd = &cobra.Command{
	Use:   "hazardctl",
	Short: "Operate the hazard sync service",
	Long: `hazardctl runs one-off hazard sync operations against the same database
and source catalog as the hazardsync service.

Configuration comes from the same environment variables (DATABASE_URL,
SOURCES_FILE, MAPBOX_TOKEN, ...).`,
	Version:       "0.1.0",
	SilenceUsage:  true,
	SilenceErrors: true,
	PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
		loaded, err := config.Load()
		if err != nil {
			return fmt.Errorf("load config: %w", err)
		}
		cfg = loaded
		return nil
	},
}

// Execute runs the root command and prints any error.
func Execute() error {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	err := rootCmd.ExecuteContext(ctx)
	if err != nil {
		errorf(os.Stderr, "%v", err)
	}
	return err
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&outputFormat, "output", "o", "table", "output format: table, json")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "log sync activity to stderr")

	rootCmd.AddCommand(migrateCmd, syncCmd, cleanupCmd, statusCmd, seedCmd)
}

// commandLogger logs to stderr at debug when --verbose is set and stays
// quiet otherwise.
func commandLogger() *slog.Logger {
	if !verbose {
		return slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	return slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelDebug}))
}

// commandMetrics registers into a private registry; a one-shot command has
// no scrape endpoint.
func commandMetrics() *observability.Metrics {
	return observability.NewMetricsWithRegistry(prometheus.NewRegistry())
}

func openStore(ctx context.Context) (*postgres.Store, error) {
	store, err := postgres.New(ctx, cfg.DatabaseURL, cfg.DBMaxConns)
	if err != nil {
		return nil, fmt.Errorf("connect to database: %w", err)
	}
	return store, nil
}
