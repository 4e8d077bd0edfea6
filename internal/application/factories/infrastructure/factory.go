package infrastructure

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/mot25/event-emitter-sync/internal/config"
	"github.com/mot25/event-emitter-sync/internal/counter"
	"github.com/mot25/event-emitter-sync/internal/domain/event"
	"github.com/mot25/event-emitter-sync/internal/infrastructure/kafka"
	"github.com/mot25/event-emitter-sync/internal/infrastructure/postgres"
	"github.com/mot25/event-emitter-sync/internal/infrastructure/redis"
	"github.com/mot25/event-emitter-sync/internal/infrastructure/sqlite"

	pgxpool "github.com/jackc/pgx/v5/pgxpool"
	go_redis "github.com/redis/go-redis/v9"
)

type Factory struct {
	cfg       *config.Config
	logger    *slog.Logger
	memory    *counter.Memory
	pgPool    *pgxpool.Pool
	redisCli  *go_redis.Client
	sqlite    *sqlite.Store
	kafkaProd *kafka.Producer

	connectAttempts int
	connectBackoff  time.Duration
}

func NewFactory(cfg *config.Config, logger *slog.Logger) *Factory {
	if logger == nil {
		logger = slog.Default()
	}
	return &Factory{
		cfg:             cfg,
		logger:          logger,
		connectAttempts: 5,
		connectBackoff:  2 * time.Second,
	}
}

// RemoteStore returns the counter.Store selected by repository.backend.
func (f *Factory) RemoteStore(ctx context.Context) (counter.Store, error) {
	switch f.cfg.Repository.Backend {
	case config.BackendMemory:
		if f.memory == nil {
			f.memory = counter.NewMemory()
		}
		return f.memory, nil
	case config.BackendRedis:
		client, err := f.Redis(ctx)
		if err != nil {
			return nil, err
		}
		return redis.NewCounterStore(client, f.cfg.Redis.KeyPrefix), nil
	case config.BackendPostgres:
		pool, err := f.Postgres(ctx)
		if err != nil {
			return nil, err
		}
		return postgres.NewCounterRepository(pool), nil
	case config.BackendSQLite:
		s, err := f.SQLite()
		if err != nil {
			return nil, err
		}
		return s, nil
	default:
		return nil, fmt.Errorf("unknown repository backend %q", f.cfg.Repository.Backend)
	}
}

// ResetRemote zeroes kinds in the configured backend so a run starts from
// the same baseline as the local counters. On postgres the applied delta log
// is cleared in the same transaction.
func (f *Factory) ResetRemote(ctx context.Context, kinds []event.Kind) error {
	if f.cfg.Repository.Backend == config.BackendPostgres {
		pool, err := f.Postgres(ctx)
		if err != nil {
			return err
		}
		stats := postgres.NewCounterRepository(pool)
		if err := postgres.Reset(ctx, postgres.NewTxManager(pool), stats, postgres.NewDeltaLogRepository(pool)); err != nil {
			return err
		}
		return counter.Zero(ctx, stats, kinds)
	}
	store, err := f.RemoteStore(ctx)
	if err != nil {
		return err
	}
	return counter.Zero(ctx, store, kinds)
}

func (f *Factory) Postgres(ctx context.Context) (*pgxpool.Pool, error) {
	if f.pgPool != nil {
		return f.pgPool, nil
	}

	var pool *pgxpool.Pool
	var err error

	for i := 0; i < f.connectAttempts; i++ {
		pool, err = postgres.NewClient(ctx, postgres.Config{
			Host:     f.cfg.Postgres.Host,
			Port:     f.cfg.Postgres.Port,
			User:     f.cfg.Postgres.User,
			Password: f.cfg.Postgres.Password,
			DBName:   f.cfg.Postgres.DBName,
		})
		if err == nil {
			break
		}
		f.logger.Warn("failed to connect to postgres, retrying",
			"attempt", i+1, "max", f.connectAttempts, "backoff", f.connectBackoff, "error", err)
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-time.After(f.connectBackoff):
		}
	}

	if err != nil {
		return nil, fmt.Errorf("failed to init postgres after retries: %w", err)
	}

	if err := postgres.EnsureSchema(ctx, pool); err != nil {
		pool.Close()
		return nil, err
	}

	f.pgPool = pool
	return pool, nil
}

func (f *Factory) Redis(ctx context.Context) (*go_redis.Client, error) {
	if f.redisCli != nil {
		return f.redisCli, nil
	}

	client, err := redis.NewClient(ctx, redis.Config{
		Addr:       f.cfg.Redis.Addr,
		Password:   f.cfg.Redis.Password,
		DB:         f.cfg.Redis.DB,
		PoolSize:   f.cfg.Redis.PoolSize,
		ClientName: f.cfg.App.Name,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to init redis: %w", err)
	}

	f.redisCli = client
	return client, nil
}

func (f *Factory) SQLite() (*sqlite.Store, error) {
	if f.sqlite != nil {
		return f.sqlite, nil
	}
	s, err := sqlite.NewStore(f.cfg.SQLite.Path)
	if err != nil {
		return nil, fmt.Errorf("failed to init sqlite: %w", err)
	}
	f.sqlite = s
	return s, nil
}

// KafkaProducer returns nil when the audit feed is disabled.
func (f *Factory) KafkaProducer() *kafka.Producer {
	if !f.cfg.Kafka.Enabled {
		return nil
	}
	if f.kafkaProd == nil {
		f.kafkaProd = kafka.NewProducer(kafka.Config{
			Brokers: f.cfg.Kafka.Brokers,
			Topic:   f.cfg.Kafka.Topic,
		})
	}
	return f.kafkaProd
}

func (f *Factory) Close() {
	if f.kafkaProd != nil {
		f.logger.Info("closing kafka producer", "topic", f.kafkaProd.Topic(), "written", f.kafkaProd.Written())
		if err := f.kafkaProd.Close(); err != nil {
			f.logger.Warn("close kafka producer", "error", err)
		}
	}
	if f.pgPool != nil {
		f.pgPool.Close()
	}
	if f.redisCli != nil {
		f.redisCli.Close()
	}
	if f.sqlite != nil {
		if err := f.sqlite.Close(); err != nil {
			f.logger.Warn("close sqlite", "error", err)
		}
	}
}
