package store

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/pitabwire/cmsadmin/internal/config"
)

// Backend is an opened collection store together with the connections
// behind it. Pool and Cache are nil when not configured.
type Backend struct {
	Store CollectionStore
	Pool  *pgxpool.Pool
	Cache *CachedStore

	closers []func()
}

// Close releases every connection the backend opened.
func (b *Backend) Close() {
	for i := len(b.closers) - 1; i >= 0; i-- {
		b.closers[i]()
	}
}

// Open builds the store selected by cfg.Driver, wrapped in the Redis cache
// when it is enabled.
func Open(ctx context.Context, cfg config.StoreConfig, logger *zap.Logger) (*Backend, error) {
	b := &Backend{}

	switch cfg.Driver {
	case "memory", "":
		logger.Info("using in-memory collection store")
		b.Store = NewMemoryStore()
	case "postgres":
		pool, err := OpenPool(ctx, cfg)
		if err != nil {
			return nil, err
		}
		b.Pool = pool
		b.closers = append(b.closers, pool.Close)

		if cfg.MigrateOnStart {
			if err := Migrate(ctx, pool, MigrateUp, logger); err != nil {
				b.Close()
				return nil, err
			}
		}
		b.Store = NewPgStore(pool)
	default:
		return nil, fmt.Errorf("store: unsupported driver %q", cfg.Driver)
	}

	if cfg.Cache.Enabled {
		addr := config.Env(cfg.Cache.AddrEnv)
		if addr == "" {
			b.Close()
			return nil, fmt.Errorf("store: %s environment variable not set", cfg.Cache.AddrEnv)
		}
		client := redis.NewClient(&redis.Options{Addr: addr, DB: cfg.Cache.DB})
		b.closers = append(b.closers, func() { _ = client.Close() })

		if err := client.Ping(ctx).Err(); err != nil {
			// The cache is optional; reads fall through to the store while
			// Redis is unreachable.
			logger.Warn("redis cache unreachable at startup", zap.String("addr", addr), zap.Error(err))
		}
		b.Cache = NewCachedStore(b.Store, client, cfg.Cache.TTL)
		b.Store = b.Cache
	}
	return b, nil
}

// OpenPool connects to the Postgres database named by cfg.DSNEnv.
func OpenPool(ctx context.Context, cfg config.StoreConfig) (*pgxpool.Pool, error) {
	dsn := config.Env(cfg.DSNEnv)
	if dsn == "" {
		return nil, fmt.Errorf("store: %s environment variable not set", cfg.DSNEnv)
	}
	poolCfg, err := pgxpool.ParseConfig(dsn)
	if err != nil {
		return nil, fmt.Errorf("store: parse DSN: %w", err)
	}
	if cfg.MaxConns > 0 {
		poolCfg.MaxConns = cfg.MaxConns
	}
	pool, err := pgxpool.NewWithConfig(ctx, poolCfg)
	if err != nil {
		return nil, fmt.Errorf("store: connect: %w", err)
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("store: ping: %w", err)
	}
	return pool, nil
}
