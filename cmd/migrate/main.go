// Command migrate runs schema operations for the backend.
package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"strconv"

	"inkwell/internal/config"
	"inkwell/internal/database"
	"inkwell/internal/middleware"

	"github.com/spf13/cobra"
)

func main() {
	root := &cobra.Command{
		Use:           "migrate",
		Short:         "Manage the Inkwell database schema",
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	root.AddCommand(
		&cobra.Command{
			Use:   "up",
			Short: "Apply pending SQL migrations",
			Args:  cobra.NoArgs,
			RunE: withDB(func(ctx context.Context, db *database.Manager, _ *config.Config, _ []string) error {
				n, err := database.NewMigrator(db.DB()).Up(ctx)
				if err != nil {
					return fmt.Errorf("sql migrations failed: %w", err)
				}
				middleware.Logger.Info("SQL migrations applied", slog.Int("count", n))
				return nil
			}),
		},
		&cobra.Command{
			Use:   "auto",
			Short: "Create or update tables from the models",
			Args:  cobra.NoArgs,
			RunE: withDB(func(ctx context.Context, db *database.Manager, cfg *config.Config, _ []string) error {
				cfg.DBSchemaMode = database.SchemaModeAuto
				if err := database.ApplySchema(ctx, db.DB(), cfg); err != nil {
					return fmt.Errorf("auto schema apply failed: %w", err)
				}
				middleware.Logger.Info("Automigrations applied")
				return nil
			}),
		},
		&cobra.Command{
			Use:   "status",
			Short: "Show the schema policy and pending migrations",
			Args:  cobra.NoArgs,
			RunE: withDB(func(ctx context.Context, db *database.Manager, cfg *config.Config, _ []string) error {
				status, err := database.GetSchemaStatus(ctx, db.DB(), cfg)
				if err != nil {
					return fmt.Errorf("schema status failed: %w", err)
				}
				middleware.Logger.Info("Schema status",
					slog.String("mode", status.Mode),
					slog.String("dialect", status.Dialect),
					slog.String("env", status.Environment),
					slog.Bool("run_sql", status.WillRunSQL),
					slog.Bool("run_auto", status.WillRunAutoMigrate),
					slog.Int("applied", len(status.AppliedVersions)),
					slog.Int("pending", len(status.PendingMigrations)),
				)
				for _, m := range status.PendingMigrations {
					fmt.Printf("pending: %s\n", m.String())
				}
				return nil
			}),
		},
		&cobra.Command{
			Use:   "down <version>",
			Short: "Roll back one SQL migration",
			Args:  cobra.ExactArgs(1),
			RunE: withDB(func(ctx context.Context, db *database.Manager, _ *config.Config, args []string) error {
				version, err := strconv.Atoi(args[0])
				if err != nil {
					return fmt.Errorf("invalid version %q: %w", args[0], err)
				}
				if err := database.NewMigrator(db.DB()).Down(ctx, version); err != nil {
					return fmt.Errorf("rollback failed: %w", err)
				}
				middleware.Logger.Info("Rolled back migration", slog.Int("version", version))
				return nil
			}),
		},
	)

	if err := root.Execute(); err != nil {
		middleware.Logger.Error("Migration command failed", slog.String("error", err.Error()))
		os.Exit(1)
	}
}

type dbCommand func(ctx context.Context, db *database.Manager, cfg *config.Config, args []string) error

// withDB loads config and connects without applying the schema, then runs fn.
func withDB(fn dbCommand) func(cmd *cobra.Command, args []string) error {
	return func(cmd *cobra.Command, args []string) error {
		cfg, err := config.LoadConfig()
		if err != nil {
			return fmt.Errorf("load config: %w", err)
		}
		ctx := cmd.Context()
		if ctx == nil {
			ctx = context.Background()
		}
		db, err := database.ConnectWithOptions(ctx, cfg, database.ConnectOptions{ApplySchema: false})
		if err != nil {
			return fmt.Errorf("connect database: %w", err)
		}
		defer func() { _ = db.Close() }()
		return fn(ctx, db, cfg, args)
	}
}
