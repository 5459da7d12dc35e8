// Package cli holds the trackfit command tree: the HTTP server, schema
// migration and operator helpers for background jobs.
package cli

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/MeghanaKotharu25/SIH-AIQR-PIXELS/internal/app"
	"github.com/MeghanaKotharu25/SIH-AIQR-PIXELS/internal/platform/db"
)

var rootCmd = &cobra.Command{
	Use:           "trackfit",
	Short:         "Track-fitting identification and capability service",
	SilenceUsage:  true,
	SilenceErrors: true,
	RunE: func(cmd *cobra.Command, args []string) error {
		return serveCmd.RunE(cmd, args)
	},
}

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the HTTP API server",
	RunE: func(cmd *cobra.Command, _ []string) error {
		ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
		defer stop()
		cfg, err := app.LoadConfig()
		if err != nil {
			return fmt.Errorf("load config: %w", err)
		}
		return Serve(ctx, cfg, app.NewLogger(cfg))
	},
}

var migrateCmd = &cobra.Command{
	Use:   "migrate",
	Short: "Apply the database schema",
	RunE: func(cmd *cobra.Command, _ []string) error {
		cfg, err := app.LoadConfig()
		if err != nil {
			return fmt.Errorf("load config: %w", err)
		}
		logger := app.NewLogger(cfg)
		pool, err := db.New(cmd.Context(), cfg.PGDSN, 2)
		if err != nil {
			return err
		}
		defer pool.Close()
		if err := db.Migrate(cmd.Context(), pool); err != nil {
			return err
		}
		logger.Info("schema applied")
		return nil
	},
}

func init() {
	rootCmd.AddCommand(serveCmd, migrateCmd, jobsCmd)
}

// Execute runs the command tree and exits non-zero on failure.
func Execute() {
	if err := rootCmd.ExecuteContext(context.Background()); err != nil {
		slog.Default().Error("trackfit", slog.Any("error", err))
		os.Exit(1)
	}
}
