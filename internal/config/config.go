package config

import (
	"errors"
	"fmt"
	"log/slog"
	"os"
	"time"

	"github.com/ilyakaznacheev/cleanenv"
)

const (
	BackendMemory   = "memory"
	BackendRedis    = "redis"
	BackendPostgres = "postgres"
	BackendSQLite   = "sqlite"
)

type Config struct {
	App        App        `yaml:"app"`
	HTTP       HTTP       `yaml:"http"`
	Log        Log        `yaml:"log"`
	Emitter    Emitter    `yaml:"emitter"`
	Repository Repository `yaml:"repository"`
	Handler    Handler    `yaml:"handler"`
	Verifier   Verifier   `yaml:"verifier"`
	Postgres   Postgres   `yaml:"postgres"`
	Redis      Redis      `yaml:"redis"`
	SQLite     SQLite     `yaml:"sqlite"`
	Kafka      Kafka      `yaml:"kafka"`
}

type App struct {
	Name    string `yaml:"name" env:"APP_NAME" env-default:"event-emitter-sync"`
	Version string `yaml:"version" env:"APP_VERSION" env-default:"1.0.0"`
}

type HTTP struct {
	Port string `yaml:"port" env:"HTTP_PORT" env-default:"8080"`
}

type Log struct {
	Level string `yaml:"level" env:"LOG_LEVEL" env-default:"info"`
}

type Emitter struct {
	Kinds       []string      `yaml:"kinds" env:"EMITTER_KINDS" env-default:"A,B"`
	MaxEvents   int           `yaml:"max_events" env:"EMITTER_MAX_EVENTS" env-default:"1000"`
	MaxInterval time.Duration `yaml:"max_interval" env:"EMITTER_MAX_INTERVAL" env-default:"5ms"`
	Seed        int64         `yaml:"seed" env:"EMITTER_SEED" env-default:"1"`
}

type Repository struct {
	Backend     string        `yaml:"backend" env:"REPOSITORY_BACKEND" env-default:"memory"`
	MinDelay    time.Duration `yaml:"min_delay" env:"REPOSITORY_MIN_DELAY" env-default:"1ms"`
	MaxDelay    time.Duration `yaml:"max_delay" env:"REPOSITORY_MAX_DELAY" env-default:"20ms"`
	FailureRate float64       `yaml:"failure_rate" env:"REPOSITORY_FAILURE_RATE" env-default:"0.1"`
	Seed        int64         `yaml:"seed" env:"REPOSITORY_SEED" env-default:"1"`
}

type Handler struct {
	BaseBackoff time.Duration `yaml:"base_backoff" env:"HANDLER_BASE_BACKOFF" env-default:"5ms"`
	MaxBackoff  time.Duration `yaml:"max_backoff" env:"HANDLER_MAX_BACKOFF" env-default:"1s"`
	WarnAfter   int           `yaml:"warn_after" env:"HANDLER_WARN_AFTER" env-default:"3"`
}

type Verifier struct {
	Interval     time.Duration `yaml:"interval" env:"VERIFIER_INTERVAL" env-default:"500ms"`
	DrainTimeout time.Duration `yaml:"drain_timeout" env:"VERIFIER_DRAIN_TIMEOUT" env-default:"1m"`
}

type Postgres struct {
	Host     string `yaml:"host" env:"POSTGRES_HOST" env-default:"localhost"`
	Port     string `yaml:"port" env:"POSTGRES_PORT" env-default:"5432"`
	User     string `yaml:"user" env:"POSTGRES_USER" env-default:"user"`
	Password string `yaml:"password" env:"POSTGRES_PASSWORD" env-default:"password"`
	DBName   string `yaml:"dbname" env:"POSTGRES_DB" env-default:"event_stats"`
}

type Redis struct {
	Addr      string `yaml:"addr" env:"REDIS_ADDR" env-default:"localhost:6379"`
	Password  string `yaml:"password" env:"REDIS_PASSWORD"`
	DB        int    `yaml:"db" env:"REDIS_DB" env-default:"0"`
	PoolSize  int    `yaml:"pool_size" env:"REDIS_POOL_SIZE" env-default:"10"`
	KeyPrefix string `yaml:"key_prefix" env:"REDIS_KEY_PREFIX" env-default:"emitter:stats:"`
	// Idempotency enables the Idempotency-Key middleware on POST /events.
	Idempotency bool `yaml:"idempotency" env:"REDIS_IDEMPOTENCY" env-default:"false"`
}

type SQLite struct {
	Path string `yaml:"path" env:"SQLITE_PATH" env-default:"event_stats.db"`
}

type Kafka struct {
	Enabled bool     `yaml:"enabled" env:"KAFKA_ENABLED" env-default:"false"`
	Brokers []string `yaml:"brokers" env:"KAFKA_BROKERS" env-default:"localhost:9092"`
	Topic   string   `yaml:"topic" env:"KAFKA_TOPIC" env-default:"event-stats-deltas"`
	GroupID string   `yaml:"group_id" env:"KAFKA_GROUP_ID" env-default:"event-stats-auditor"`
}

// New loads config.yaml, or the file named by CONFIG_PATH.
func New() (*Config, error) {
	path := os.Getenv("CONFIG_PATH")
	if path == "" {
		path = "config.yaml"
	}
	return Load(path)
}

// Load reads path and lets env vars override it. A missing or unreadable
// file falls back to env vars and defaults.
func Load(path string) (*Config, error) {
	cfg := &Config{}

	if err := cleanenv.ReadConfig(path, cfg); err != nil {
		// fallback to env vars if file not found
		if err := cleanenv.ReadEnv(cfg); err != nil {
			return nil, fmt.Errorf("config error: %w", err)
		}
	} else {
		// Allow env vars to override config file
		if err := cleanenv.ReadEnv(cfg); err != nil {
			return nil, fmt.Errorf("config error: %w", err)
		}
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("config error: %w", err)
	}
	return cfg, nil
}

func (c *Config) Validate() error {
	var errs []error
	if len(c.Emitter.Kinds) == 0 {
		errs = append(errs, errors.New("emitter.kinds must not be empty"))
	}
	if c.Emitter.MaxEvents < 0 {
		errs = append(errs, errors.New("emitter.max_events must be >= 0"))
	}
	if c.Repository.MinDelay < 0 || c.Repository.MaxDelay < c.Repository.MinDelay {
		errs = append(errs, fmt.Errorf("repository delay bounds invalid: min=%s max=%s", c.Repository.MinDelay, c.Repository.MaxDelay))
	}
	if c.Repository.FailureRate < 0 || c.Repository.FailureRate >= 1 {
		errs = append(errs, fmt.Errorf("repository.failure_rate must be in [0,1), got %v", c.Repository.FailureRate))
	}
	switch c.Repository.Backend {
	case BackendMemory, BackendRedis, BackendPostgres, BackendSQLite:
	default:
		errs = append(errs, fmt.Errorf("repository.backend %q is not one of memory, redis, postgres, sqlite", c.Repository.Backend))
	}
	if c.Handler.BaseBackoff < 0 || c.Handler.MaxBackoff < c.Handler.BaseBackoff {
		errs = append(errs, fmt.Errorf("handler backoff bounds invalid: base=%s max=%s", c.Handler.BaseBackoff, c.Handler.MaxBackoff))
	}
	if c.Verifier.Interval <= 0 {
		errs = append(errs, errors.New("verifier.interval must be positive"))
	}
	if c.Redis.DB < 0 || c.Redis.PoolSize < 0 {
		errs = append(errs, fmt.Errorf("redis db and pool_size must be >= 0: db=%d pool_size=%d", c.Redis.DB, c.Redis.PoolSize))
	}
	if c.Kafka.Enabled && len(c.Kafka.Brokers) == 0 {
		errs = append(errs, errors.New("kafka.brokers required when kafka is enabled"))
	}
	return errors.Join(errs...)
}

// SlogLevel parses Log.Level, defaulting to info.
func (l Log) SlogLevel() slog.Level {
	var lvl slog.Level
	if err := lvl.UnmarshalText([]byte(l.Level)); err != nil {
		return slog.LevelInfo
	}
	return lvl
}
