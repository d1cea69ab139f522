// README: Entry point; loads config, wires services, starts the HTTP server and the expiry sweeper.
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

	"github.com/rs/zerolog"
	"github.com/spf13/cobra"

	"lifeline/internal/config"
	"lifeline/internal/events"
	httptransport "lifeline/internal/http"
	"lifeline/internal/http/handlers"
	"lifeline/internal/infra"
	"lifeline/internal/maps"
	"lifeline/internal/modules/facility"
	"lifeline/internal/modules/inventory"
	"lifeline/internal/modules/matching"
	"lifeline/internal/modules/reservation"
)

func main() {
	var configPath string

	rootCmd := &cobra.Command{
		Use:   "lifeline",
		Short: "Emergency bed matching API",
	}
	rootCmd.PersistentFlags().StringVar(&configPath, "config", "", "optional config file (yaml, json or toml)")

	rootCmd.AddCommand(serveCmd(&configPath))
	rootCmd.AddCommand(migrateCmd(&configPath))

	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func serveCmd(configPath *string) *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Start the API server",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runServer(*configPath)
		},
	}
}

func migrateCmd(configPath *string) *cobra.Command {
	return &cobra.Command{
		Use:   "migrate",
		Short: "Apply the embedded database migrations",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load(*configPath)
			if err != nil {
				return err
			}

			ctx := context.Background()
			pool, err := infra.NewDB(ctx, cfg.DB)
			if err != nil {
				return err
			}
			defer pool.Close()

			n, err := infra.ApplyMigrations(ctx, pool)
			if err != nil {
				return fmt.Errorf("migration failed: %w", err)
			}
			fmt.Printf("Applied %d migration file(s) successfully.\n", n)
			return nil
		},
	}
}

func runServer(configPath string) error {
	cfg, err := config.Load(configPath)
	if err != nil {
		return err
	}
	logger := infra.NewLogger(cfg.Log)

	if _, err := inventory.ParseKinds(cfg.Matching.Kinds); err != nil {
		return fmt.Errorf("invalid matching.kinds: %w", err)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	pool, err := infra.NewDB(ctx, cfg.DB)
	if err != nil {
		return fmt.Errorf("connect database: %w", err)
	}
	defer pool.Close()
	logger.Info().Msg("connected to database")

	var index facility.Indexer
	if cfg.Redis.Addr != "" {
		rdb, err := infra.NewRedis(ctx, cfg.Redis.Addr)
		if err != nil {
			logger.Warn().Err(err).Msg("redis unavailable; nearby search falls back to a linear scan")
		} else {
			defer rdb.Close()
			index = facility.NewGeoIndex(rdb)
		}
	}

	var publisher events.Publisher = events.Nop{}
	if cfg.KafkaEnabled() {
		kp := events.NewKafkaPublisher(infra.NewKafkaWriter(cfg.Kafka, logger))
		defer kp.Close()
		publisher = kp
		logger.Info().Strs("brokers", cfg.Kafka.Brokers).Str("topic", cfg.Kafka.Topic).Msg("publishing events to kafka")
	}

	var eta handlers.ETAEstimator
	if cfg.Maps.APIKey != "" {
		routes, err := maps.NewRouteService(cfg.Maps.APIKey)
		if err != nil {
			logger.Warn().Err(err).Msg("maps client unavailable; responses carry no eta")
		} else {
			eta = routes
		}
	}

	facilitySvc := facility.NewService(facility.NewStore(pool), index, publisher, logger)
	invStore := inventory.NewStore(pool)
	invSvc := inventory.NewService(invStore, publisher, logger)
	resStore := reservation.NewStore(pool, cfg.Matching.HoldDuration)
	matchingSvc := matching.NewService(facilitySvc, invStore, resStore, cfg.Matching,
		matching.WithPublisher(publisher),
		matching.WithLogger(logger),
	)

	if index != nil {
		n, err := facilitySvc.Reindex(ctx)
		if err != nil {
			logger.Warn().Err(err).Msg("geo reindex failed")
		} else {
			logger.Info().Int("facilities", n).Msg("geo index rebuilt")
		}
	}

	if cfg.Matching.SweepInterval > 0 {
		go matchingSvc.RunExpirySweeper(ctx, cfg.Matching.SweepInterval)
	}

	handler := httptransport.NewServer(httptransport.ServerDeps{
		Matching:  matchingSvc,
		Facility:  facilitySvc,
		Inventory: invSvc,
		ETA:       eta,
		Logger:    logger,
	})
	server := &http.Server{
		Addr:              cfg.HTTP.Addr,
		Handler:           handler.Routes(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		logger.Info().Str("addr", cfg.HTTP.Addr).Msg("starting server")
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		if err != nil {
			stop()
			return fmt.Errorf("server error: %w", err)
		}
		return nil
	case <-ctx.Done():
	}
	return shutdown(server, logger)
}

func shutdown(server *http.Server, logger zerolog.Logger) error {
	logger.Info().Msg("shutting down server")
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := server.Shutdown(ctx); err != nil {
		return fmt.Errorf("server shutdown: %w", err)
	}
	logger.Info().Msg("server stopped")
	return nil
}
