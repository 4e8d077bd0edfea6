package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/mot25/event-emitter-sync/internal/api"
	"github.com/mot25/event-emitter-sync/internal/application/factories/infrastructure"
	"github.com/mot25/event-emitter-sync/internal/audit"
	"github.com/mot25/event-emitter-sync/internal/bus"
	"github.com/mot25/event-emitter-sync/internal/config"
	"github.com/mot25/event-emitter-sync/internal/domain/event"
	"github.com/mot25/event-emitter-sync/internal/driver"
	"github.com/mot25/event-emitter-sync/internal/handler"
	"github.com/mot25/event-emitter-sync/internal/infrastructure/postgres"
	"github.com/mot25/event-emitter-sync/internal/repository"
	"github.com/mot25/event-emitter-sync/internal/verifier"

	go_redis "github.com/redis/go-redis/v9"
)

func main() {
	cfg, err := config.New()
	if err != nil {
		slog.Error("failed to load config", "error", err)
		os.Exit(1)
	}

	// Initialize structured JSON logger
	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: cfg.Log.SlogLevel()}))
	slog.SetDefault(logger)

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	if err := run(ctx, cfg, logger); err != nil {
		logger.Error("run failed", "error", err)
		os.Exit(1)
	}
	logger.Info("emitter exited")
}

func run(ctx context.Context, cfg *config.Config, logger *slog.Logger) error {
	kinds, err := event.ParseKinds(cfg.Emitter.Kinds)
	if err != nil {
		return err
	}

	infraFactory := infrastructure.NewFactory(cfg, logger)
	defer infraFactory.Close()

	store, err := infraFactory.RemoteStore(ctx)
	if err != nil {
		return err
	}
	if err := infraFactory.ResetRemote(ctx, kinds); err != nil {
		return fmt.Errorf("reset remote stats: %w", err)
	}

	var observers repository.Observers
	if cfg.Repository.Backend == config.BackendPostgres {
		pool, err := infraFactory.Postgres(ctx)
		if err != nil {
			return err
		}
		observers = append(observers, postgres.NewDeltaLogRepository(pool))
	}
	if prod := infraFactory.KafkaProducer(); prod != nil {
		logger.Info("publishing applied deltas", "topic", prod.Topic())
		observers = append(observers, audit.NewPublisher(prod, cfg.App.Name))
	}

	repoOpts := []repository.Option{
		repository.WithDelay(cfg.Repository.MinDelay, cfg.Repository.MaxDelay),
		repository.WithFaults(repository.NewRandomFaults(cfg.Repository.FailureRate, cfg.Repository.Seed)),
		repository.WithSeed(cfg.Repository.Seed),
		repository.WithLogger(logger),
	}
	if len(observers) > 0 {
		repoOpts = append(repoOpts, repository.WithObserver(observers))
	}
	repo := repository.New(store, repoOpts...)

	emitter := bus.New()
	h := handler.New(emitter, repo, kinds,
		handler.WithBackoff(cfg.Handler.BaseBackoff, cfg.Handler.MaxBackoff),
		handler.WithWarnAfter(cfg.Handler.WarnAfter),
		handler.WithLogger(logger),
	)
	defer h.Close()

	d := driver.New(emitter, cfg.Emitter.MaxEvents, cfg.Emitter.MaxInterval, cfg.Emitter.Seed)
	v := verifier.New(kinds, h, repo, emitter, logger)

	var redisClient *go_redis.Client
	if cfg.Redis.Idempotency {
		if redisClient, err = infraFactory.Redis(ctx); err != nil {
			return err
		}
	}

	srv := &http.Server{
		Addr:    ":" + cfg.HTTP.Port,
		Handler: api.NewRouter(api.NewHandlers(emitter, v, kinds), redisClient),
	}
	go func() {
		logger.Info("Server starting", "port", cfg.HTTP.Port)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("listen failed", "error", err)
		}
	}()
	defer func() {
		shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer shutdownCancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			logger.Error("Server forced to shutdown", "error", err)
		}
	}()

	logger.Info("emission started",
		"kinds", cfg.Emitter.Kinds, "max_events", cfg.Emitter.MaxEvents, "backend", cfg.Repository.Backend)

	sampleCtx, stopSampling := context.WithCancel(ctx)
	go v.Run(sampleCtx, cfg.Verifier.Interval)

	if err := d.Run(ctx, kinds); err != nil {
		stopSampling()
		return err
	}
	for _, k := range kinds {
		logger.Info("emission finished, draining",
			"kind", k, "driver_fired", d.Fired(k), "bus_fired", emitter.Fired(k), "outstanding", h.Pending(k))
	}

	drainCtx, drainCancel := context.WithTimeout(ctx, cfg.Verifier.DrainTimeout)
	defer drainCancel()
	err = h.WaitDrained(drainCtx)
	stopSampling()
	if err != nil {
		logger.Warn("drain did not finish", "outstanding", h.Outstanding(), "error", err)
	}

	if _, err := v.Check(ctx); err != nil {
		return err
	}
	logger.Info("local and remote stats converged")
	return nil
}
