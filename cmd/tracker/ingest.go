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

	"github.com/spf13/cobra"

	"github.com/99minutos/courier-tracking/internal/api"
	"github.com/99minutos/courier-tracking/internal/core/service"
	redisstore "github.com/99minutos/courier-tracking/internal/infrastructure/db/redis"
	"github.com/99minutos/courier-tracking/internal/infrastructure/queue"
	"github.com/99minutos/courier-tracking/pkg/logger"
)

const shutdownTimeout = 10 * time.Second

var ingestCmd = &cobra.Command{
	Use:   "ingest",
	Short: "Serve the development tracking ingest endpoint",
	Long: `Serve POST /deliveries/{id}/tracking and GET /deliveries/{id} backed by Redis,
plus PUT /deliveries/{id}/status to drive deliveries through their lifecycle.
Requests need an HS256 bearer token signed with JWT_SECRET (see "tracker token").`,
	Example: `  JWT_SECRET=dev REDIS_ADDR=localhost:6379 tracker ingest`,
	RunE:    runIngest,
}

func init() {
	rootCmd.AddCommand(ingestCmd)
}

func runIngest(cmd *cobra.Command, _ []string) error {
	if cfg.Ingest.JWTSecret == "" {
		return errors.New("JWT_SECRET is required")
	}

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	rdb, err := redisstore.Connect(ctx, cfg.RedisStore())
	if err != nil {
		return err
	}
	defer func() {
		if err := rdb.Close(); err != nil {
			log.Error().Err(err).Msg("failed to close redis client")
		}
	}()
	log.Info().Str("addr", cfg.Redis.Addr).Msg("redis connected")

	svcLog := logger.Component("ingest")
	svc := service.NewIngestService(
		redisstore.NewDeliveryStore(rdb, cfg.Ingest.DeliveryTTL),
		redisstore.NewDedupChecker(rdb, cfg.Ingest.DedupTTL),
		svcLog,
	)

	workerCtx, stopWorkers := context.WithCancel(context.Background())
	defer stopWorkers()
	dispatcher := queue.NewDispatcher(cfg.Ingest.Workers, cfg.Ingest.BufferSize, svc, svcLog)
	dispatcher.Start(workerCtx)

	e := api.NewRouter(api.Deps{
		Service:    svc,
		Dispatcher: dispatcher,
		Redis:      rdb,
		JWTSecret:  cfg.Ingest.JWTSecret,
		Log:        logger.Component("api"),
	})

	addr := ":" + cfg.Ingest.Port
	errCh := make(chan error, 1)
	go func() {
		if err := e.Start(addr); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()
	log.Info().Str("addr", addr).Int("workers", cfg.Ingest.Workers).Msg("ingest endpoint started")

	select {
	case err := <-errCh:
		return fmt.Errorf("ingest server: %w", err)
	case <-ctx.Done():
	}

	log.Info().Msg("shutting down ingest endpoint")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := e.Shutdown(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("ingest server shutdown")
	}
	return nil
}
