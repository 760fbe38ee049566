package app

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/redis/go-redis/extra/redisotel/v9"
	redis "github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"

	"github.com/noah-isme/toko-cart/internal/config"
	"github.com/noah-isme/toko-cart/internal/health"
	"github.com/noah-isme/toko-cart/internal/kv"
	"github.com/noah-isme/toko-cart/internal/obs"
	"github.com/noah-isme/toko-cart/internal/resilience"
)

// Dependencies holds the infrastructure shared by the API and the tools.
type Dependencies struct {
	// KV is the cart storage backend selected by CART_STORAGE, behind a
	// circuit breaker for networked backends.
	KV kv.Store
	// Redis is set whenever REDIS_URL is configured, even when carts live
	// elsewhere; idempotency and rate limiting use it.
	Redis  *redis.Client
	DB     *pgxpool.Pool
	Probes map[string]health.Probe

	closers []func() error
}

// Options tweaks how dependencies are opened.
type Options struct {
	ApplicationName string
	Metrics         bool
}

// Open connects to the backends named by cfg.
func Open(ctx context.Context, cfg *config.Config, logger zerolog.Logger, opts Options) (*Dependencies, error) {
	deps := &Dependencies{Probes: map[string]health.Probe{}}

	if cfg.RedisURL != "" {
		client, err := openRedis(ctx, cfg.RedisURL, logger, opts.Metrics)
		if err != nil {
			return nil, err
		}
		deps.Redis = client
		deps.closers = append(deps.closers, client.Close)
		deps.Probes["redis"] = health.ProbeFunc(func(ctx context.Context) error { return client.Ping(ctx).Err() })
	}

	store, err := deps.openStorage(ctx, cfg, opts)
	if err != nil {
		_ = deps.Close()
		return nil, err
	}
	deps.Probes["storage"] = store
	deps.KV = store
	if cfg.Storage != config.StorageMemory {
		breaker := resilience.NewBreaker("storage", 5, 0.5, 10*time.Second)
		breaker.Logger = obs.Component(logger, "storage")
		deps.KV = resilience.Guard(store, breaker)
	}
	return deps, nil
}

func (d *Dependencies) openStorage(ctx context.Context, cfg *config.Config, opts Options) (kv.Store, error) {
	switch cfg.Storage {
	case config.StorageRedis:
		if d.Redis == nil {
			return nil, errors.New("redis storage requires REDIS_URL")
		}
		return kv.NewRedis(d.Redis, cfg.CartTTL), nil
	case config.StorageSQLite:
		store, err := kv.OpenSQLite(cfg.SQLitePath)
		if err != nil {
			return nil, fmt.Errorf("open sqlite: %w", err)
		}
		d.closers = append(d.closers, store.Close)
		return store, nil
	case config.StoragePostgres:
		pool, err := openPostgres(ctx, cfg.DatabaseURL, opts.ApplicationName)
		if err != nil {
			return nil, err
		}
		d.DB = pool
		d.closers = append(d.closers, func() error { pool.Close(); return nil })
		store, err := kv.NewPostgres(ctx, pool)
		if err != nil {
			return nil, fmt.Errorf("prepare postgres storage: %w", err)
		}
		return store, nil
	default:
		return kv.NewMemory(cfg.MemoryMaxBytes), nil
	}
}

// Close releases every opened backend in reverse order.
func (d *Dependencies) Close() error {
	var errs []error
	for i := len(d.closers) - 1; i >= 0; i-- {
		if err := d.closers[i](); err != nil {
			errs = append(errs, err)
		}
	}
	d.closers = nil
	return errors.Join(errs...)
}

func openRedis(ctx context.Context, url string, logger zerolog.Logger, metrics bool) (*redis.Client, error) {
	redisOpts, err := redis.ParseURL(url)
	if err != nil {
		return nil, fmt.Errorf("parse redis url: %w", err)
	}
	client := redis.NewClient(redisOpts)
	if err := redisotel.InstrumentTracing(client); err != nil {
		logger.Error().Err(err).Msg("instrument redis tracing")
	}
	if metrics {
		if err := redisotel.InstrumentMetrics(client); err != nil {
			logger.Error().Err(err).Msg("instrument redis metrics")
		}
	}
	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("ping redis: %w", err)
	}
	return client, nil
}

func openPostgres(ctx context.Context, url, appName string) (*pgxpool.Pool, error) {
	poolConfig, err := pgxpool.ParseConfig(url)
	if err != nil {
		return nil, fmt.Errorf("parse database config: %w", err)
	}
	poolConfig.ConnConfig.Tracer = obs.PGXTracer{}
	if poolConfig.ConnConfig.RuntimeParams == nil {
		poolConfig.ConnConfig.RuntimeParams = map[string]string{}
	}
	if appName != "" {
		poolConfig.ConnConfig.RuntimeParams["application_name"] = appName
	}
	pool, err := pgxpool.NewWithConfig(ctx, poolConfig)
	if err != nil {
		return nil, fmt.Errorf("connect database: %w", err)
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}
	return pool, nil
}
