package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/MikeMC777/storefront-ecom/internal/config"
	"github.com/MikeMC777/storefront-ecom/internal/db"
	"github.com/MikeMC777/storefront-ecom/internal/httpx"
	"github.com/MikeMC777/storefront-ecom/internal/product"
	"github.com/MikeMC777/storefront-ecom/internal/seed"
	"github.com/MikeMC777/storefront-ecom/internal/user"
)

var (
	// serve flags
	skipMigrate bool
	skipSeed    bool
)

var rootCmd = &cobra.Command{
	Use:   "storefront",
	Short: "Storefront API server and maintenance commands",
	Long: `Storefront serves the shop HTTP API and a gRPC health endpoint.

Configuration comes from the environment (and a .env file if present):
  HTTP_ADDR, GRPC_HEALTH_ADDR, POSTGRES_DSN, SESSION_SECRET, COOKIE_SECURE,
  ADMIN_PASSWORD, LOG_LEVEL, CORS_ORIGINS, ENVIRONMENT`,
	SilenceUsage: true,
}

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the HTTP API and the gRPC health server",
	RunE: func(cmd *cobra.Command, args []string) error {
		return withEnv(func(ctx context.Context, cfg config.Config, log *zap.Logger) error {
			return runServe(ctx, cfg, log)
		})
	},
}

var migrateCmd = &cobra.Command{
	Use:   "migrate",
	Short: "Create or update the database schema",
	RunE: func(cmd *cobra.Command, args []string) error {
		return withEnv(func(ctx context.Context, cfg config.Config, log *zap.Logger) error {
			pool, err := db.Connect(ctx, cfg.PostgresDSN)
			if err != nil {
				return err
			}
			defer pool.Close()
			if err := db.Migrate(ctx, pool); err != nil {
				return err
			}
			log.Info("schema up to date")
			return nil
		})
	},
}

var seedCmd = &cobra.Command{
	Use:   "seed",
	Short: "Load the demo catalog and the bootstrap admin account",
	RunE: func(cmd *cobra.Command, args []string) error {
		return withEnv(func(ctx context.Context, cfg config.Config, log *zap.Logger) error {
			pool, err := db.Connect(ctx, cfg.PostgresDSN)
			if err != nil {
				return err
			}
			defer pool.Close()
			users := user.NewService(user.NewPGRepo(pool), log)
			seed.Run(ctx, product.NewPGRepo(pool), users, cfg.AdminPassword, log)
			return nil
		})
	},
}

// Execute runs the root command
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func init() {
	serveCmd.Flags().BoolVar(&skipMigrate, "skip-migrate", false, "Do not apply the schema on startup")
	serveCmd.Flags().BoolVar(&skipSeed, "skip-seed", false, "Do not seed demo data on startup")
	rootCmd.AddCommand(serveCmd, migrateCmd, seedCmd)
}

// withEnv loads config and the logger and runs fn until SIGINT/SIGTERM.
func withEnv(fn func(ctx context.Context, cfg config.Config, log *zap.Logger) error) error {
	cfg := config.Load()
	log, err := httpx.NewLogger(cfg.LogLevel)
	if err != nil {
		return fmt.Errorf("init logger: %w", err)
	}
	defer func() { _ = log.Sync() }()

	if err := cfg.Validate(); err != nil {
		return err
	}
	cfg.Log(log)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	return fn(ctx, cfg, log)
}
