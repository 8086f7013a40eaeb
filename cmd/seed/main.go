// Command seed fills the database with demo authors, posts and interactions.
package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"

	"inkwell/internal/config"
	"inkwell/internal/database"
	"inkwell/internal/middleware"
	"inkwell/internal/seed"

	"github.com/spf13/cobra"
)

func main() {
	var opts seed.Options

	cmd := &cobra.Command{
		Use:          "seed",
		Short:        "Populate the database with demo content",
		Args:         cobra.NoArgs,
		SilenceUsage: true,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := config.LoadConfig()
			if err != nil {
				return fmt.Errorf("load config: %w", err)
			}
			if cfg.IsProduction() {
				return fmt.Errorf("refusing to seed a %q database", cfg.Env)
			}

			ctx := cmd.Context()
			if ctx == nil {
				ctx = context.Background()
			}
			db, err := database.Connect(ctx, cfg)
			if err != nil {
				return fmt.Errorf("connect database: %w", err)
			}
			defer func() { _ = db.Close() }()

			middleware.Logger.Info("Seeding database",
				slog.Int("users", opts.NumUsers),
				slog.Int("posts", opts.NumPosts),
				slog.Bool("clean", opts.ShouldClean),
			)
			if _, err := seed.Seed(ctx, db.DB(), opts); err != nil {
				return err
			}
			fmt.Printf("All seeded users have the password: %s\n", seed.Password)
			return nil
		},
	}

	cmd.Flags().IntVar(&opts.NumUsers, "users", 50, "number of users to create")
	cmd.Flags().IntVar(&opts.NumPosts, "posts", 200, "number of posts to create")
	cmd.Flags().IntVar(&opts.MaxImages, "max-images", 2, "maximum images per post")
	cmd.Flags().BoolVar(&opts.ShouldClean, "clean", true, "delete existing data first")
	cmd.Flags().Int64Var(&opts.RandSeed, "rand-seed", 0, "content seed; 0 picks one from the clock")

	if err := cmd.Execute(); err != nil {
		middleware.Logger.Error("Seeding failed", slog.String("error", err.Error()))
		os.Exit(1)
	}
}
