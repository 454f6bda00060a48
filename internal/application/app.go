// Package application assembles the runtime shared by the server and the CLI:
// the database pool, the sync service and its optional collaborators.
package application

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/url"
	"strings"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/redis/go-redis/v9"

	"github.com/JonMunkholm/dayroster/internal/config"
	"github.com/JonMunkholm/dayroster/internal/core"
	"github.com/JonMunkholm/dayroster/internal/notify"
	"github.com/JonMunkholm/dayroster/internal/source"
)

// App owns every long-lived client. Close releases them in reverse order.
type App struct {
	Config  *config.Config
	Pool    *pgxpool.Pool
	Store   *core.PgStore
	Service *core.Service

	closers []func() error
}

// Open connects to Postgres and, when configured, Redis and Pub/Sub.
func Open(ctx context.Context, cfg *config.Config) (*App, error) {
	app := &App{Config: cfg}

	pool, err := openPool(ctx, cfg.Database)
	if err != nil {
		return nil, err
	}
	app.Pool = pool
	app.closers = append(app.closers, func() error { pool.Close(); return nil })
	app.Store = core.NewPgStore(pool)

	opts := []core.Option{
		core.WithThreshold(cfg.Sync.Threshold),
		core.WithMaxFileSize(cfg.Sync.MaxFileSize),
		core.WithTimeout(cfg.Sync.Timeout),
		core.WithLimiter(core.NewRunLimiter(1, cfg.Sync.LockWait)),
		core.WithAtomicApply(cfg.Sync.AtomicApply),
	}

	if cfg.Redis.Address != "" {
		rdb := redis.NewClient(&redis.Options{
			Addr:     cfg.Redis.Address,
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
		})
		app.closers = append(app.closers, rdb.Close)
		if err := rdb.Ping(ctx).Err(); err != nil {
			app.Close()
			return nil, fmt.Errorf("connect redis %s: %w", cfg.Redis.Address, err)
		}
		opts = append(opts, core.WithRunLock(core.NewRedisRunLock(rdb, cfg.Redis.LockKey, cfg.Redis.LockTTL)))
		slog.Info("distributed run lock enabled", "key", cfg.Redis.LockKey, "ttl", cfg.Redis.LockTTL)
	}

	if cfg.PubSub.Topic != "" {
		pub, err := notify.NewPubSubPublisher(ctx, cfg.PubSub.ProjectID, cfg.PubSub.Topic, cfg.PubSub.CredentialsJSON)
		if err != nil {
			app.Close()
			return nil, err
		}
		app.closers = append(app.closers, pub.Close)
		opts = append(opts, core.WithNotifier(pub))
		slog.Info("run notifications enabled", "topic", cfg.PubSub.Topic)
	}

	app.Service = core.NewPostgresService(app.Store, opts...)
	return app, nil
}

// RosterFetcher builds the scheduled import source from the schedule config.
func (a *App) RosterFetcher(ctx context.Context) (core.RosterFetcher, error) {
	sc := a.Config.Schedule
	if !sc.UsesGCS() {
		return source.NewFileSource(sc.File), nil
	}
	gcs, err := source.NewGCSSource(ctx, sc.GCSBucket, sc.GCSObject, sc.GCSCredentialsJSON)
	if err != nil {
		return nil, err
	}
	a.closers = append(a.closers, gcs.Close)
	return gcs, nil
}

// Close releases clients in reverse order of creation.
func (a *App) Close() error {
	var errs []error
	for i := len(a.closers) - 1; i >= 0; i-- {
		if err := a.closers[i](); err != nil {
			errs = append(errs, err)
		}
	}
	a.closers = nil
	return errors.Join(errs...)
}

func openPool(ctx context.Context, dc config.DatabaseConfig) (*pgxpool.Pool, error) {
	poolConfig, err := pgxpool.ParseConfig(dc.URL)
	if err != nil {
		return nil, fmt.Errorf("parse database URL: %w", err)
	}
	poolConfig.MaxConns = int32(dc.MaxConns)
	poolConfig.MinConns = int32(dc.MinConns)
	poolConfig.MaxConnLifetime = dc.MaxConnLifetime
	poolConfig.MaxConnIdleTime = dc.MaxConnIdleTime

	pool, err := pgxpool.NewWithConfig(ctx, poolConfig)
	if err != nil {
		return nil, fmt.Errorf("connect to database: %w", err)
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}

	if u, err := url.Parse(dc.URL); err == nil {
		slog.Info("connected to database", "name", strings.TrimPrefix(u.Path, "/"))
	}
	return pool, nil
}
