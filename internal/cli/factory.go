// Package cli assembles the service from configuration for the escrow commands.
package cli

import (
	"context"
	"fmt"
	"io"
	"log/slog"

	"github.com/aretw0/escrow"
	"github.com/aretw0/escrow/internal/config"
	"github.com/aretw0/escrow/internal/logging"
	"github.com/aretw0/escrow/internal/metrics"
	httpAdapter "github.com/aretw0/escrow/pkg/adapters/http"
	"github.com/aretw0/escrow/pkg/adapters/memory"
	"github.com/aretw0/escrow/pkg/adapters/postgres"
	redisAdapter "github.com/aretw0/escrow/pkg/adapters/redis"
	"github.com/aretw0/escrow/pkg/domain"
	"github.com/aretw0/escrow/pkg/ports"
	goredis "github.com/redis/go-redis/v9"
	"go.opentelemetry.io/otel"
)

// Runtime is everything a command needs once configuration has been applied.
type Runtime struct {
	Service *escrow.Service
	Metrics *metrics.Metrics // nil when metrics are disabled
	Streams *httpAdapter.StreamManager
	Logger  *slog.Logger
}

// Close releases the store and any clients opened for it.
func (r *Runtime) Close() error {
	return r.Service.Close()
}

// NewLogger builds the logger described by cfg.Log.
func NewLogger(cfg *config.Config) (*slog.Logger, error) {
	level, err := logging.ParseLevel(cfg.Log.Level)
	if err != nil {
		return nil, err
	}
	return logging.NewWithFormat(cfg.Log.Format, level)
}

// Build connects the configured store and assembles the service around it.
func Build(ctx context.Context, cfg *config.Config, logger *slog.Logger) (*Runtime, error) {
	rt := &Runtime{
		Streams: httpAdapter.NewStreamManager(),
		Logger:  logger,
	}

	opts := []escrow.Option{
		escrow.WithLogger(logger),
		escrow.WithUserID(cfg.UserID),
		escrow.WithRetry(cfg.Tracker.RetryInitial, cfg.Tracker.MaxRetries),
		escrow.WithLifecycleHooks(rt.Streams.Hooks()),
		escrow.WithLifecycleHooks(createLogHooks(logger)),
	}
	if cfg.Metrics.Enabled {
		rt.Metrics = metrics.New()
		opts = append(opts, escrow.WithLifecycleHooks(rt.Metrics.Hooks()))
	}

	store, redisClient, err := openStore(ctx, cfg, logger)
	if err != nil {
		return nil, err
	}
	opts = append(opts, escrow.WithStore(store))

	if cfg.Lock.Enabled {
		if redisClient == nil {
			redisClient = newRedisClient(cfg.Store.Redis)
			if err := redisClient.Ping(ctx).Err(); err != nil {
				closeQuietly(logger, store)
				_ = redisClient.Close()
				return nil, fmt.Errorf("failed to reach redis for locking: %w", err)
			}
			opts = append(opts, escrow.WithCloser(redisClient))
		}
		opts = append(opts,
			escrow.WithLocker(redisAdapter.NewLocker(redisClient, cfg.Store.Redis.Prefix)),
			escrow.WithLockTTL(cfg.Lock.TTL),
		)
	}

	svc, err := escrow.New(opts...)
	if err != nil {
		closeQuietly(logger, store)
		return nil, err
	}
	rt.Service = svc

	logger.Debug("Service assembled",
		"store", cfg.Store.Driver,
		"lock", cfg.Lock.Enabled,
		"metrics", cfg.Metrics.Enabled,
		"user_id", cfg.UserID,
	)
	return rt, nil
}

// openStore returns the store for cfg.Store.Driver and, for Redis, the client behind it.
func openStore(ctx context.Context, cfg *config.Config, logger *slog.Logger) (ports.TransactionStore, *goredis.Client, error) {
	switch cfg.Store.Driver {
	case config.DriverRedis:
		client := newRedisClient(cfg.Store.Redis)
		if err := client.Ping(ctx).Err(); err != nil {
			_ = client.Close()
			return nil, nil, fmt.Errorf("failed to reach redis at %s: %w", cfg.Store.Redis.Addr, err)
		}
		return redisAdapter.NewFromClient(client, redisAdapter.WithPrefix(cfg.Store.Redis.Prefix)), client, nil

	case config.DriverPostgres:
		store, err := postgres.Connect(ctx, cfg.Store.Postgres.DSN,
			postgres.WithTracer(otel.Tracer("github.com/aretw0/escrow/pkg/adapters/postgres")),
		)
		if err != nil {
			return nil, nil, err
		}
		if cfg.Store.Postgres.Migrate {
			if err := postgres.Migrate(ctx, store.Pool()); err != nil {
				_ = store.Close()
				return nil, nil, err
			}
			logger.Info("Database migrations applied")
		}
		return store, nil, nil

	case config.DriverMemory, "":
		return memory.NewStore(), nil, nil
	}
	return nil, nil, fmt.Errorf("unknown store driver %q", cfg.Store.Driver)
}

func newRedisClient(cfg config.RedisConfig) *goredis.Client {
	return goredis.NewClient(&goredis.Options{
		Addr:     cfg.Addr,
		Password: cfg.Password,
		DB:       cfg.DB,
	})
}

// createLogHooks reports stage movements at info level and task toggles at debug.
func createLogHooks(logger *slog.Logger) domain.LifecycleHooks {
	return domain.LifecycleHooks{
		OnTaskUpdated: func(_ context.Context, e *domain.TaskEvent) {
			logger.Debug("task_updated", "transaction_id", e.TransactionID, "task_id", e.TaskID, "completed", e.Completed)
		},
		OnStageOverridden: func(_ context.Context, e *domain.StageEvent) {
			logger.Warn("stage_overridden", "transaction_id", e.TransactionID, "from", e.From, "to", e.To)
		},
	}
}

func closeQuietly(logger *slog.Logger, store ports.TransactionStore) {
	if c, ok := store.(io.Closer); ok {
		if err := c.Close(); err != nil {
			logger.Warn("Failed to close store", "err", err)
		}
	}
}
