package main

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/alem-hub/progression-engine/config"
	app "github.com/alem-hub/progression-engine/internal/application/progression"
	domain "github.com/alem-hub/progression-engine/internal/domain/progression"
	"github.com/alem-hub/progression-engine/internal/domain/shared"
	"github.com/alem-hub/progression-engine/internal/infrastructure/catalog"
	"github.com/alem-hub/progression-engine/internal/infrastructure/messaging"
	"github.com/alem-hub/progression-engine/internal/infrastructure/observability"
	"github.com/alem-hub/progression-engine/internal/infrastructure/persistence/memory"
	"github.com/alem-hub/progression-engine/internal/infrastructure/persistence/postgres"
	"github.com/alem-hub/progression-engine/internal/infrastructure/persistence/redis"
	"github.com/alem-hub/progression-engine/internal/infrastructure/persistence/sqlite"
	"github.com/alem-hub/progression-engine/internal/interface/http/handlers"
	"github.com/alem-hub/progression-engine/pkg/circuitbreaker"
	"github.com/alem-hub/progression-engine/pkg/logger"
)

// ══════════════════════════════════════════════════════════════════════════════
// RUNTIME
// ══════════════════════════════════════════════════════════════════════════════

// storeBackend is the profile store plus its audit log. The memory and sqlite
// stores serve both roles; postgres splits them over one pool.
type storeBackend struct {
	profiles domain.ProfileStore
	unlocks  domain.UnlockLog
	pinger   handlers.Pinger
	close    func()
}

// runtime holds everything a command needs, in construction order.
type runtime struct {
	cfg     *config.Config
	log     *logger.Logger
	defs    *catalog.Definitions
	store   storeBackend
	cache   *redis.ProfileCache
	service *app.Service

	closers []func()
}

// loadConfig reads the environment and applies command-line overrides.
func loadConfig() (*config.Config, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, err
	}
	if logLevel != "" {
		cfg.App.LogLevel = logLevel
	}
	if catalogPath != "" {
		cfg.Catalog.Path = catalogPath
	}
	return cfg, nil
}

func newLogger(cfg *config.Config) *logger.Logger {
	return logger.NewForMode(string(cfg.App.Environment), logger.ParseLevel(cfg.App.LogLevel)).
		With(logger.String("service", cfg.App.Name), logger.String("version", cfg.App.Version))
}

// bootstrap wires the service the way serve and reconcile both need it.
func bootstrap(ctx context.Context, cfg *config.Config, log *logger.Logger) (_ *runtime, err error) {
	rt := &runtime{cfg: cfg, log: log}
	defer func() {
		if err != nil {
			rt.Close()
		}
	}()

	// ─────────────────────────────────────────────────────────────────────────
	// 1. TRACING
	// ─────────────────────────────────────────────────────────────────────────
	shutdownTracing, err := observability.InitTracing(ctx, log, observability.TracingConfig{
		Enabled:     cfg.Tracing.Enabled,
		ServiceName: cfg.App.Name,
		Environment: string(cfg.App.Environment),
		Version:     cfg.App.Version,
		Endpoint:    cfg.Tracing.Endpoint,
		Insecure:    cfg.Tracing.Insecure,
		SampleRatio: cfg.Tracing.SampleRatio,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to init tracing: %w", err)
	}
	rt.closers = append(rt.closers, func() {
		flushCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := shutdownTracing(flushCtx); err != nil {
			log.Warn("tracer shutdown failed", logger.Err(err))
		}
	})

	// ─────────────────────────────────────────────────────────────────────────
	// 2. CATALOG
	// ─────────────────────────────────────────────────────────────────────────
	rt.defs, err = catalog.Load(cfg.Catalog.Path)
	if err != nil {
		return nil, fmt.Errorf("failed to load catalog: %w", err)
	}
	log.Info("catalog loaded",
		logger.String("source", rt.defs.Source),
		logger.Int("achievements", rt.defs.Catalog.Len()),
		logger.Int("max_level", int(rt.defs.Levels.MaxLevel())),
	)

	// ─────────────────────────────────────────────────────────────────────────
	// 3. STORE
	// ─────────────────────────────────────────────────────────────────────────
	rt.store, err = openStore(ctx, cfg, log)
	if err != nil {
		return nil, err
	}
	rt.closers = append(rt.closers, rt.store.close)

	// ─────────────────────────────────────────────────────────────────────────
	// 4. REDIS (optional cache and event fan-out)
	// ─────────────────────────────────────────────────────────────────────────
	var publisher shared.EventPublisher
	if !cfg.Redis.Disabled {
		redisCache, err := redis.NewCache(ctx, redisConfig(cfg.Redis))
		if err != nil {
			log.Warn("redis unavailable, caching disabled", logger.Err(err))
		} else {
			rt.closers = append(rt.closers, func() { _ = redisCache.Close() })

			breaker := circuitbreaker.CacheBreaker(func(name string, from, to circuitbreaker.State) {
				log.Warn("circuit breaker state changed",
					logger.String("breaker", name),
					logger.String("from", from.String()),
					logger.String("to", to.String()),
				)
			})
			rt.cache = redis.NewProfileCache(redisCache, cfg.Redis.ProfileTTL, breaker)

			bus, err := messaging.NewRedisEventBus(messaging.RedisEventBusConfig{
				Cache:      redisCache,
				InstanceID: cfg.App.Name + "-" + uuid.NewString(),
				Logger:     log,
			})
			if err != nil {
				return nil, fmt.Errorf("failed to start event bus: %w", err)
			}
			rt.closers = append(rt.closers, func() { _ = bus.Close() })
			publisher = bus
		}
	}
	if publisher == nil {
		busCfg := messaging.DefaultInMemoryEventBusConfig()
		busCfg.Logger = log
		bus := messaging.NewInMemoryEventBus(busCfg)
		rt.closers = append(rt.closers, func() { _ = bus.Close() })
		publisher = bus
	}

	// ─────────────────────────────────────────────────────────────────────────
	// 5. SERVICE
	// ─────────────────────────────────────────────────────────────────────────
	deps := app.Dependencies{
		Store:     rt.store.profiles,
		Unlocks:   rt.store.unlocks,
		Catalog:   rt.defs.Catalog,
		Levels:    rt.defs.Levels,
		Publisher: publisher,
		Logger:    log,
	}
	if rt.cache != nil {
		deps.Cache = rt.cache
	}

	rt.service, err = app.NewService(deps, app.Config{
		MaxAttempts:  cfg.Progression.MaxAttempts,
		AuditTimeout: cfg.Progression.AuditTimeout,
		CacheTimeout: cfg.Progression.CacheTimeout,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to build service: %w", err)
	}

	return rt, nil
}

// healthChecker registers the store as required and the cache as optional.
func (rt *runtime) healthChecker() *handlers.CompositeHealthChecker {
	checker := handlers.NewCompositeHealthChecker(rt.cfg.App.Version)
	checker.AddCheck("store", handlers.NewPingCheck(rt.store.pinger))
	if rt.cache != nil {
		checker.AddOptionalCheck("cache", handlers.NewPingCheck(rt.cache))
	}
	return checker
}

// Close releases resources in reverse construction order.
func (rt *runtime) Close() {
	for i := len(rt.closers) - 1; i >= 0; i-- {
		rt.closers[i]()
	}
	rt.closers = nil
}

// ══════════════════════════════════════════════════════════════════════════════
// STORES
// ══════════════════════════════════════════════════════════════════════════════

func openStore(ctx context.Context, cfg *config.Config, log *logger.Logger) (storeBackend, error) {
	switch cfg.Store.Driver {
	case config.DriverPostgres:
		conn, err := connectPostgres(ctx, cfg.Store)
		if err != nil {
			return storeBackend{}, err
		}
		if cfg.Store.MigrateOnStart {
			applied, err := postgres.NewMigrator(conn).Migrate(ctx)
			if err != nil {
				conn.Close()
				return storeBackend{}, fmt.Errorf("failed to run migrations: %w", err)
			}
			log.Info("database schema is up to date", logger.Int("applied", applied))
		}
		log.Info("postgres store ready")
		profiles := postgres.NewProfileStore(conn, postgres.WithTimeout(cfg.Store.Timeout))
		return storeBackend{
			profiles: profiles,
			unlocks:  postgres.NewUnlockLog(conn, postgres.WithTimeout(cfg.Store.Timeout)),
			pinger:   profiles,
			close:    conn.Close,
		}, nil

	case config.DriverSQLite:
		store, err := sqlite.Open(cfg.Store.SQLitePath, sqlite.WithTimeout(cfg.Store.Timeout))
		if err != nil {
			return storeBackend{}, fmt.Errorf("failed to open sqlite store: %w", err)
		}
		log.Info("sqlite store ready", logger.String("path", store.Path()))
		return storeBackend{
			profiles: store,
			unlocks:  store,
			pinger:   store,
			close:    func() { _ = store.Close() },
		}, nil

	default:
		log.Warn("using in-memory store, state is lost on restart")
		store := memory.NewStore()
		return storeBackend{
			profiles: store,
			unlocks:  store,
			pinger:   store,
			close:    func() {},
		}, nil
	}
}

func connectPostgres(ctx context.Context, cfg config.StoreConfig) (*postgres.Connection, error) {
	pgCfg := postgres.DefaultConfig()
	pgCfg.URL = cfg.DatabaseURL
	pgCfg.MaxConns = int32(cfg.MaxConns)
	pgCfg.MinConns = int32(cfg.MinConns)
	pgCfg.MaxConnLifetime = cfg.ConnMaxLifetime
	pgCfg.MaxConnIdleTime = cfg.ConnMaxIdleTime

	conn, err := postgres.NewConnection(ctx, pgCfg)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}
	return conn, nil
}

func redisConfig(cfg config.RedisConfig) redis.Config {
	rc := redis.DefaultConfig()
	rc.URL = cfg.URL
	rc.Host = cfg.Host
	rc.Port = cfg.Port
	rc.Password = cfg.Password
	rc.DB = cfg.DB
	rc.PoolSize = cfg.PoolSize
	rc.MinIdleConns = cfg.MinIdleConns
	rc.DialTimeout = cfg.DialTimeout
	rc.ReadTimeout = cfg.ReadTimeout
	rc.WriteTimeout = cfg.WriteTimeout
	return rc
}
