package cli

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"telemetry-service/app/src/database"
	"telemetry-service/app/src/infra"
)

var migrateDir string

var migrateCmd = &cobra.Command{
	Use:   "migrate",
	Short: "Apply SQL migrations to the configured database",
	RunE: func(cmd *cobra.Command, _ []string) error {
		return runMigrate(cmd.Context())
	},
}

func init() {
	migrateCmd.Flags().StringVar(&migrateDir, "dir", database.ResolveMigrationsDir(), "directory with SQL migration files")
}

func runMigrate(parent context.Context) error {
	ctx, stop := signal.NotifyContext(parent, os.Interrupt, syscall.SIGTERM)
	defer stop()

	cfg, err := infra.LoadConfig()
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}
	logger := infra.NewLogger(os.Stdout, "migrate")

	if database.ShouldCheckDatabase(cfg) {
		waitCtx, cancel := context.WithTimeout(ctx, 30*time.Second)
		defer cancel()

		if err := database.WaitForDatabase(waitCtx, cfg, logger); err != nil {
			return fmt.Errorf("database connectivity check: %w", err)
		}
	}

	dsn, err := database.BuildDatabaseDSN(cfg)
	if err != nil {
		return fmt.Errorf("build database DSN: %w", err)
	}

	runner := database.NewSQLRunner()
	defer runner.Close()

	if err := database.ApplyMigrations(ctx, runner, dsn, migrateDir, logger); err != nil {
		return fmt.Errorf("migrate: %w", err)
	}

	return nil
}
