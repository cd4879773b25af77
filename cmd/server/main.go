package main

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"

	"github.com/AnshRaj112/empowerment-backend/internal/config"
	"github.com/AnshRaj112/empowerment-backend/internal/database"
	"github.com/AnshRaj112/empowerment-backend/internal/logging"
)

var rootCmd = &cobra.Command{
	Use:           "empower",
	Short:         "Authenticated API gateway for the empowerment app",
	SilenceUsage:  true,
	SilenceErrors: true,
	RunE:          runServe,
}

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the HTTP server",
	RunE:  runServe,
}

var migrateCmd = &cobra.Command{
	Use:   "migrate",
	Short: "Manage PostgreSQL schema migrations",
}

var migrateUpCmd = &cobra.Command{
	Use:   "up",
	Short: "Apply all pending migrations",
	RunE: func(cmd *cobra.Command, args []string) error {
		return withPostgres(cmd.Context(), func(ctx context.Context, db *sql.DB, logger *slog.Logger) error {
			if err := database.Migrate(ctx, db); err != nil {
				return err
			}
			logger.Info("PostgreSQL migrations applied")
			return nil
		})
	},
}

var migrateStatusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show applied and pending migrations",
	RunE: func(cmd *cobra.Command, args []string) error {
		return withPostgres(cmd.Context(), func(ctx context.Context, db *sql.DB, _ *slog.Logger) error {
			return database.MigrationStatus(ctx, db)
		})
	},
}

func init() {
	migrateCmd.AddCommand(migrateUpCmd, migrateStatusCmd)
	rootCmd.AddCommand(serveCmd, migrateCmd)
}

func main() {
	if err := godotenv.Load(); err != nil && !os.IsNotExist(err) {
		fmt.Fprintln(os.Stderr, "load .env:", err)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := rootCmd.ExecuteContext(ctx); err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		os.Exit(1)
	}
}

func runServe(cmd *cobra.Command, args []string) error {
	cfg := config.Load()
	if err := cfg.Validate(); err != nil {
		return err
	}
	logger := logging.New(cfg.Environment, os.Stderr)

	app, err := build(cmd.Context(), cfg, logger)
	if err != nil {
		return err
	}
	defer app.close()
	return app.run(cmd.Context())
}

func withPostgres(ctx context.Context, fn func(context.Context, *sql.DB, *slog.Logger) error) error {
	cfg := config.Load()
	logger := logging.New(cfg.Environment, os.Stderr)
	db, err := database.ConnectPostgres(ctx, cfg.PostgresURI)
	if err != nil {
		return err
	}
	defer db.Close()
	logger.Info("connected to PostgreSQL")
	return fn(ctx, db, logger)
}
