// Package cli is the storefront command tree.
package cli

import (
	"context"
	"fmt"
	"log/slog"
	"os"

	"github.com/spf13/cobra"
	"gorm.io/gorm"

	"github.com/Skotchmaster/gedebog_store/internal/config"
	"github.com/Skotchmaster/gedebog_store/internal/db"
	"github.com/Skotchmaster/gedebog_store/internal/logging"
)

var rootCmd = &cobra.Command{
	Use:   "storefront",
	Short: "Gedebog chips storefront",
	Long: `Storefront serves the guest shop (catalog, cart, checkout, order history)
and the admin dashboard over HTTP.

Configuration is read from the environment and an optional .env file.`,
	SilenceUsage: true,
}

// Execute runs the root command.
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

// bootstrap loads configuration and opens the database, which every
// subcommand needs.
func bootstrap(ctx context.Context) (config.Config, *slog.Logger, *gorm.DB, error) {
	cfg := config.Load()
	config.MustNonEmpty(cfg.DatabaseURL, "DATABASE_URL")

	logger := logging.New(cfg.LogLevel).With("service", cfg.ServiceName)
	slog.SetDefault(logger)

	gdb, err := db.Open(ctx, cfg.DatabaseURL)
	if err != nil {
		return cfg, logger, nil, err
	}
	return cfg, logger, gdb, nil
}
