package main

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/jackc/pgx/v5/stdlib"
	"github.com/redis/go-redis/v9"
	"github.com/sirupsen/logrus"
	"github.com/uptrace/bun"
	"github.com/uptrace/bun/dialect/pgdialect"
	"github.com/uptrace/bun/migrate"

	authgin "github.com/PaulFidika/tenantauth/adapters/gin"
	"github.com/PaulFidika/tenantauth/config"
	migrations "github.com/PaulFidika/tenantauth/migrations/postgres"
	memorylimiter "github.com/PaulFidika/tenantauth/ratelimit/memory"
	redislimiter "github.com/PaulFidika/tenantauth/ratelimit/redis"
	memorystore "github.com/PaulFidika/tenantauth/storage/memory"
	pgstore "github.com/PaulFidika/tenantauth/storage/postgres"
	redisstore "github.com/PaulFidika/tenantauth/storage/redis"
	"github.com/PaulFidika/tenantauth/tenantcfg"
)

// resources are the backends selected by configuration.
type resources struct {
	store   tenantcfg.Store
	limiter authgin.RateLimiter
	closers []func()
}

func (r *resources) Close() {
	for i := len(r.closers) - 1; i >= 0; i-- {
		r.closers[i]()
	}
}

func newResources(ctx context.Context, cfg config.Config, log logrus.FieldLogger) (*resources, error) {
	res := &resources{}

	var rdb *redis.Client
	if cfg.RedisURL != "" {
		opt, err := redis.ParseURL(cfg.RedisURL)
		if err != nil {
			return nil, fmt.Errorf("parse redis url: %w", err)
		}
		rdb = redis.NewClient(opt)
		res.closers = append(res.closers, func() { _ = rdb.Close() })
	}

	if cfg.TenantResolveLimit > 0 {
		limits := map[string]memorylimiter.Limit{authgin.BucketTenantResolve: {Limit: cfg.TenantResolveLimit, Window: time.Minute}}
		if rdb != nil {
			res.limiter = redislimiter.New(rdb, map[string]redislimiter.Limit{
				authgin.BucketTenantResolve: {Limit: cfg.TenantResolveLimit, Window: time.Minute},
			})
		} else {
			res.limiter = memorylimiter.New(limits)
		}
	}

	if !strings.EqualFold(cfg.Strategy, string(tenantcfg.StrategyLookup)) {
		return res, nil
	}

	switch strings.ToLower(cfg.Store) {
	case "memory":
		if cfg.TenantsFile == "" {
			res.store = memorystore.New(nil)
			log.Warn("lookup strategy with an empty memory store: every tenant is unknown")
			break
		}
		s, err := memorystore.LoadFile(cfg.TenantsFile)
		if err != nil {
			res.Close()
			return nil, fmt.Errorf("load tenants file: %w", err)
		}
		log.WithField("tenants", len(s.Tenants())).Info("loaded tenants")
		res.store = s
	case "redis":
		res.store = redisstore.New(rdb, "")
	case "postgres":
		pool, err := pgxpool.New(ctx, cfg.DatabaseURL)
		if err != nil {
			res.Close()
			return nil, fmt.Errorf("connect postgres: %w", err)
		}
		res.closers = append(res.closers, pool.Close)
		if cfg.Migrate {
			if err := runMigrations(ctx, pool, log); err != nil {
				res.Close()
				return nil, err
			}
		}
		res.store = pgstore.NewStore(pool, "")
	}
	return res, nil
}

func runMigrations(ctx context.Context, pool *pgxpool.Pool, log logrus.FieldLogger) error {
	sqldb := stdlib.OpenDBFromPool(pool)
	db := bun.NewDB(sqldb, pgdialect.New())
	defer db.Close()

	m := migrate.NewMigrator(db, migrations.Migrations)
	if err := m.Init(ctx); err != nil {
		return fmt.Errorf("init migrations: %w", err)
	}
	if err := m.Lock(ctx); err != nil {
		return fmt.Errorf("lock migrations: %w", err)
	}
	defer m.Unlock(ctx) //nolint:errcheck
	group, err := m.Migrate(ctx)
	if err != nil {
		return fmt.Errorf("migrate: %w", err)
	}
	if group.IsZero() {
		log.Info("database schema up to date")
	} else {
		log.WithField("group", group.String()).Info("applied migrations")
	}
	return nil
}
