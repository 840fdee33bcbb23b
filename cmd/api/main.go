package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"jobtracker/aggregate"
	"jobtracker/application"
	"jobtracker/config"
	"jobtracker/db"
	"jobtracker/logging"
	"jobtracker/metrics"
	"jobtracker/posting"
	"jobtracker/profile"
)

func main() {
	if err := newRootCommand().Execute(); err != nil {
		os.Exit(1)
	}
}

func newRootCommand() *cobra.Command {
	var configFile string

	root := &cobra.Command{
		Use:          "jobtracker",
		Short:        "Application status tracking and per-author aggregation service",
		SilenceUsage: true,
	}
	root.PersistentFlags().StringVarP(&configFile, "config", "c", "", "YAML config file (environment overrides it)")

	root.AddCommand(newServeCommand(&configFile))
	root.AddCommand(newMigrateCommand(&configFile))
	return root
}

func newServeCommand(configFile *string) *cobra.Command {
	var migrateFirst bool

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the HTTP API",
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, log, err := bootstrap(*configFile)
			if err != nil {
				return err
			}
			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()
			return serve(ctx, cfg, log, migrateFirst)
		},
	}
	cmd.Flags().BoolVar(&migrateFirst, "migrate", false, "apply pending migrations before serving")
	return cmd
}

func newMigrateCommand(configFile *string) *cobra.Command {
	return &cobra.Command{
		Use:   "migrate",
		Short: "Apply pending database migrations and exit",
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, log, err := bootstrap(*configFile)
			if err != nil {
				return err
			}
			pool, err := db.NewPool(cmd.Context(), poolConfig(cfg))
			if err != nil {
				return fmt.Errorf("bootstrap database pool: %w", err)
			}
			defer pool.Close()
			return migrate(cmd.Context(), pool, log)
		},
	}
}

func bootstrap(configFile string) (config.Config, *logrus.Logger, error) {
	cfg, err := config.Load(configFile)
	if err != nil {
		return config.Config{}, nil, err
	}
	if err := cfg.Validate(); err != nil {
		return config.Config{}, nil, err
	}
	log, err := logging.New(cfg.Log.Level, cfg.Log.Format)
	if err != nil {
		return config.Config{}, nil, err
	}
	return cfg, log, nil
}

func poolConfig(cfg config.Config) db.PoolConfig {
	return db.PoolConfig{
		URL:             cfg.Database.URL,
		MaxConns:        cfg.Database.MaxConns,
		MinConns:        cfg.Database.MinConns,
		MaxConnLifetime: cfg.Database.MaxConnLifetime,
		MaxConnIdleTime: cfg.Database.MaxConnIdleTime,
		ConnectTimeout:  cfg.Database.ConnectTimeout,
	}
}

func migrate(ctx context.Context, conn db.Execer, log logrus.FieldLogger) error {
	applied, err := db.Migrate(ctx, conn)
	if err != nil {
		return err
	}
	log.WithField("applied", applied).Info("migrations complete")
	return nil
}

func serve(ctx context.Context, cfg config.Config, log *logrus.Logger, migrateFirst bool) error {
	pool, err := db.NewPool(ctx, poolConfig(cfg))
	if err != nil {
		return fmt.Errorf("bootstrap database pool: %w", err)
	}
	defer pool.Close()

	if migrateFirst {
		if err := migrate(ctx, pool, log); err != nil {
			return err
		}
	}

	applications := application.NewRepository(pool)
	engine := aggregate.NewEngine(
		posting.NewRepository(pool),
		applications,
		profile.NewRepository(pool),
	).WithObserver(metrics.AggregationObserver{})

	server := NewServer(application.NewService(applications), engine, pool, log, cfg.HTTP.RequestTimeout)
	httpServer := &http.Server{
		Addr:              cfg.HTTP.Addr,
		Handler:           server.Routes(),
		ReadHeaderTimeout: 5 * time.Second,
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		log.WithField("addr", cfg.HTTP.Addr).Info("http server listening")
		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("http server: %w", err)
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		log.Info("shutting down")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.HTTP.ShutdownTimeout)
		defer cancel()
		return httpServer.Shutdown(shutdownCtx)
	})
	return g.Wait()
}
