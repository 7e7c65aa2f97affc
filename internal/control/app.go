// Package control wires the persistence layer together and manages the
// application lifecycle.
package control

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/defterlab/defter/internal/cache"
	"github.com/defterlab/defter/internal/core/config"
	"github.com/defterlab/defter/internal/health"
	rediskv "github.com/defterlab/defter/internal/infra/redis"
	"github.com/defterlab/defter/internal/infra/storage/sqldb"
	"github.com/defterlab/defter/internal/resilience"
	"github.com/defterlab/defter/internal/stats"
	"github.com/defterlab/defter/internal/trash"
)

// App owns every component of the persistence layer.
type App struct {
	cfg config.AppConfig
	log *slog.Logger

	db          *sqldb.DB
	repos       *sqldb.Repositories
	limiter     *resilience.Limiter
	guard       *resilience.Guard
	maintenance *sqldb.Maintenance

	redisKV *rediskv.KV
	cache   *cache.Cache
	stats   *stats.Service
	trash   *trash.Manager

	healthServer *health.Server
	cancel       context.CancelFunc
}

// New initializes every component from config. Nothing runs until Start.
func New(ctx context.Context, cfg config.AppConfig) (*App, error) {
	log := slog.With("component", "app")

	db, err := sqldb.NewDB(ctx, cfg.Database)
	if err != nil {
		return nil, fmt.Errorf("failed to init db: %w", err)
	}
	log.Info("database opened", "driver", db.Driver())

	policy := resilience.PolicyReject
	if cfg.RateLimit.Policy == string(resilience.PolicyQueue) {
		policy = resilience.PolicyQueue
	}
	limiter := resilience.NewLimiter(resilience.LimiterConfig{
		Read:   cfg.RateLimit.Read,
		Write:  cfg.RateLimit.Write,
		Delete: cfg.RateLimit.Delete,
		Heavy:  cfg.RateLimit.Heavy,
		Window: time.Second,
		Policy: policy,
	})
	guard := resilience.NewGuard(limiter, resilience.RetryConfig{
		MaxRetries:   cfg.Retry.MaxRetries,
		InitialDelay: cfg.Retry.InitialDelay,
		MaxDelay:     cfg.Retry.MaxDelay,
	})

	repos := sqldb.NewRepositories(db, guard)

	var store cache.Store
	var kv *rediskv.KV
	if cfg.Cache.Backend == "redis" {
		kv, err = rediskv.NewKV(cfg.Redis)
		if err != nil {
			_ = db.Close()
			return nil, fmt.Errorf("failed to init redis: %w", err)
		}
		store = cache.NewRedisStore(kv)
		log.Info("cache backend: redis")
	} else {
		store = cache.NewMemoryStore()
		log.Info("cache backend: memory")
	}
	c := cache.New(store, cache.Options{
		TTL:             cfg.Cache.TTL,
		RefreshInterval: cfg.Cache.RefreshInterval,
	})

	retention := time.Duration(cfg.Trash.RetentionDays) * 24 * time.Hour
	trashMgr := trash.NewManager(repos.Trash, repos.EntityStores(), retention)

	return &App{
		cfg:          cfg,
		log:          log,
		db:           db,
		repos:        repos,
		limiter:      limiter,
		guard:        guard,
		maintenance:  sqldb.NewMaintenance(db, guard),
		redisKV:      kv,
		cache:        c,
		stats:        stats.NewService(repos.Companies, repos.Projects, repos.Transactions, c),
		trash:        trashMgr,
		healthServer: health.NewServer(db, limiter, cfg.Server.Port),
	}, nil
}

// Start launches the background pieces: pool metrics, the health server,
// an initial trash sweep and the recurring purge schedule.
func (a *App) Start(ctx context.Context) error {
	runCtx, cancel := context.WithCancel(ctx)
	a.cancel = cancel

	a.db.StartMetricsCollector(runCtx)

	go func() {
		a.log.Info("health server listening", "port", a.cfg.Server.Port)
		if err := a.healthServer.Start(); err != nil && err != http.ErrServerClosed {
			a.log.Error("health server failed", "error", err)
		}
	}()

	if n, err := a.trash.PurgeExpired(runCtx); err != nil {
		a.log.Warn("startup trash sweep failed", "error", err)
	} else if n > 0 {
		a.log.Info("startup trash sweep", "purged", n)
	}

	if err := a.trash.StartSchedule(a.cfg.Trash.Schedule); err != nil {
		return err
	}

	a.log.Info("application started")
	return nil
}

// Stop shuts everything down in reverse order of startup and waits for
// in-flight work.
func (a *App) Stop(ctx context.Context) error {
	a.log.Info("shutting down")

	if a.cancel != nil {
		a.cancel()
	}
	a.trash.Stop()
	a.cache.Close()

	if err := a.healthServer.Stop(ctx); err != nil {
		a.log.Warn("health server shutdown failed", "error", err)
	}

	if a.redisKV != nil {
		if err := a.redisKV.Close(); err != nil {
			a.log.Warn("redis close failed", "error", err)
		}
	}
	if err := a.db.Close(); err != nil {
		return fmt.Errorf("failed to close database: %w", err)
	}

	a.log.Info("shutdown complete")
	return nil
}

// Repos exposes the entity repositories.
func (a *App) Repos() *sqldb.Repositories { return a.repos }

// Trash exposes the trash lifecycle manager.
func (a *App) Trash() *trash.Manager { return a.trash }

// Stats exposes the cached aggregates service.
func (a *App) Stats() *stats.Service { return a.stats }

// Maintenance exposes backup and integrity operations.
func (a *App) Maintenance() *sqldb.Maintenance { return a.maintenance }

// Guard exposes the shared resilience guard.
func (a *App) Guard() *resilience.Guard { return a.guard }
