// Package app wires configuration, storage and HTTP into the vidtube command line.
package app

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/spf13/cobra"

	"github.com/vidtube/backend/internal/config"
	"github.com/vidtube/backend/internal/db"
	"github.com/vidtube/backend/internal/handlers"
	"github.com/vidtube/backend/internal/httpserver"
	"github.com/vidtube/backend/internal/logging"
)

// Run bootstraps the vidtube backend with the given command line arguments.
func Run(ctx context.Context, args []string) error {
	root := NewRootCommand()
	root.SetArgs(args)
	return root.ExecuteContext(ctx)
}

// NewRootCommand builds the vidtube command tree.
func NewRootCommand() *cobra.Command {
	root := &cobra.Command{
		Use:           "vidtube",
		Short:         "Video sharing backend: HTTP API, migrations and seed data",
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	root.AddCommand(
		&cobra.Command{
			Use:   "serve",
			Short: "Run the HTTP API",
			Args:  cobra.NoArgs,
			RunE: func(cmd *cobra.Command, _ []string) error {
				return serve(cmd.Context())
			},
		},
		&cobra.Command{
			Use:       "migrate [up|down|status]",
			Short:     "Apply, roll back or list database migrations",
			Args:      cobra.MatchAll(cobra.MaximumNArgs(1), cobra.OnlyValidArgs),
			ValidArgs: []string{"up", "down", "status"},
			RunE: func(cmd *cobra.Command, args []string) error {
				command := "up"
				if len(args) > 0 {
					command = args[0]
				}
				return withPool(cmd.Context(), func(ctx context.Context, pool *pgxpool.Pool, _ config.Config) error {
					return db.Migrate(ctx, pool, command)
				})
			},
		},
		&cobra.Command{
			Use:   "seed <name>",
			Short: "Execute seeds/<name>_seed.sql against the database",
			Args:  cobra.ExactArgs(1),
			RunE: func(cmd *cobra.Command, args []string) error {
				return withPool(cmd.Context(), func(ctx context.Context, pool *pgxpool.Pool, cfg config.Config) error {
					return runSeed(ctx, pool, cfg.SeedDir, args[0])
				})
			},
		},
	)
	return root
}

func setup(ctx context.Context) (context.Context, config.Config, error) {
	cfg, err := config.Load()
	if err != nil {
		return ctx, config.Config{}, err
	}
	logger := logging.New(os.Stdout, cfg.LogLevel)
	slog.SetDefault(logger)
	return logging.WithLogger(ctx, logger), cfg, nil
}

func withPool(ctx context.Context, fn func(context.Context, *pgxpool.Pool, config.Config) error) error {
	ctx, cfg, err := setup(ctx)
	if err != nil {
		return err
	}
	pool, err := db.Connect(ctx, cfg.DatabaseURL, cfg.DBReadyTimeout)
	if err != nil {
		return err
	}
	defer pool.Close()
	return fn(ctx, pool, cfg)
}

func serve(ctx context.Context) error {
	ctx, cfg, err := setup(ctx)
	if err != nil {
		return err
	}
	logger := logging.FromContext(ctx)

	pool, err := db.Connect(ctx, cfg.DatabaseURL, cfg.DBReadyTimeout)
	if err != nil {
		return err
	}
	defer pool.Close()

	deps, cleanup, err := buildDependencies(ctx, pool, cfg, logger, pool.Ping)
	if err != nil {
		return err
	}
	defer func() {
		drainCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), httpserver.ShutdownTimeout)
		defer cancel()
		if err := cleanup(drainCtx); err != nil {
			logger.Warn("media reaper did not drain", "error", err)
		}
	}()

	srv := httpserver.New(cfg.AppPort, handlers.NewRouter(deps))
	logger.Info("starting http server", "addr", srv.Addr())

	ctx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := srv.Run(ctx); err != nil {
		return err
	}
	logger.Info("http server stopped")
	return nil
}

func runSeed(ctx context.Context, pool *pgxpool.Pool, seedDir, name string) error {
	if !strings.HasSuffix(name, ".sql") {
		name = fmt.Sprintf("%s_seed.sql", name)
	}
	if filepath.Base(name) != name {
		return fmt.Errorf("seed name %q must not contain a path", name)
	}

	contents, err := os.ReadFile(filepath.Join(seedDir, name))
	if err != nil {
		return fmt.Errorf("read seed %s: %w", name, err)
	}

	conn, err := pool.Acquire(ctx)
	if err != nil {
		return fmt.Errorf("acquire connection: %w", err)
	}
	defer conn.Release()

	if _, err := conn.Exec(ctx, string(contents)); err != nil {
		return fmt.Errorf("apply seed %s: %w", name, err)
	}

	logging.FromContext(ctx).Info("applied seed", "seed", name)
	return nil
}
