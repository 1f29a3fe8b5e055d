// Package main is the entry point for the Questlog Hub worker: the REST API
// for achievements, levels and the leaderboard, plus the background jobs
// that keep the leaderboard slices warm and reconcile experience grants
// that did not land.
package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/questlog-gg/questlog-hub/config"
	"github.com/questlog-gg/questlog-hub/internal/application/command"
	"github.com/questlog-gg/questlog-hub/internal/application/eventhandler"
	"github.com/questlog-gg/questlog-hub/internal/application/query"
	"github.com/questlog-gg/questlog-hub/internal/domain/achievement"
	"github.com/questlog-gg/questlog-hub/internal/domain/leaderboard"
	"github.com/questlog-gg/questlog-hub/internal/domain/shared"
	"github.com/questlog-gg/questlog-hub/internal/infrastructure/messaging"
	"github.com/questlog-gg/questlog-hub/internal/infrastructure/persistence/postgres"
	redisstore "github.com/questlog-gg/questlog-hub/internal/infrastructure/persistence/redis"
	"github.com/questlog-gg/questlog-hub/internal/infrastructure/scheduler"
	"github.com/questlog-gg/questlog-hub/internal/infrastructure/scheduler/jobs"
	"github.com/questlog-gg/questlog-hub/internal/infrastructure/service"
	httpapi "github.com/questlog-gg/questlog-hub/internal/interface/http"
	"github.com/questlog-gg/questlog-hub/pkg/logger"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(),
		syscall.SIGINT, syscall.SIGTERM, syscall.SIGHUP)
	defer stop()

	if err := run(ctx); err != nil {
		fmt.Fprintf(os.Stderr, "fatal error: %v\n", err)
		os.Exit(1)
	}
}

func run(ctx context.Context) error {
	// ─────────────────────────────────────────────────────────────────────────
	// 1. CONFIGURATION
	// ─────────────────────────────────────────────────────────────────────────
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}

	// ─────────────────────────────────────────────────────────────────────────
	// 2. LOGGING
	// ─────────────────────────────────────────────────────────────────────────
	log := setupLogger(cfg)
	slogger := setupSlog(cfg)
	log.Info("starting Questlog Hub worker",
		logger.String("env", string(cfg.App.Environment)),
		logger.String("version", cfg.App.Version),
	)

	// ─────────────────────────────────────────────────────────────────────────
	// 3. POSTGRESQL
	// ─────────────────────────────────────────────────────────────────────────
	log.Info("connecting to database")
	conn, err := connectPostgres(ctx, cfg)
	if err != nil {
		return fmt.Errorf("failed to connect to database: %w", err)
	}
	defer conn.Close()

	if err := conn.Ping(ctx); err != nil {
		return fmt.Errorf("database ping failed: %w", err)
	}

	if cfg.Database.RunMigrations {
		log.Info("applying database migrations")
		migrator := postgres.NewMigrator(conn)
		if err := migrator.Migrate(ctx); err != nil {
			return fmt.Errorf("failed to run migrations: %w", err)
		}
	}

	// ─────────────────────────────────────────────────────────────────────────
	// 4. REDIS
	// ─────────────────────────────────────────────────────────────────────────
	log.Info("connecting to redis")
	cache, err := redisstore.NewCache(buildRedisConfig(cfg))
	if err != nil {
		return fmt.Errorf("failed to connect to redis: %w", err)
	}
	defer cache.Close()

	achievementCache := redisstore.NewAchievementCache(cache)
	leaderboardCache := redisstore.NewLeaderboardCache(cache)

	// ─────────────────────────────────────────────────────────────────────────
	// 5. EVENT BUS
	// ─────────────────────────────────────────────────────────────────────────
	bus, err := buildEventBus(cfg, cache, slogger)
	if err != nil {
		return fmt.Errorf("failed to start event bus: %w", err)
	}
	defer bus.Close()

	// ─────────────────────────────────────────────────────────────────────────
	// 6. DOMAIN WIRING
	// ─────────────────────────────────────────────────────────────────────────
	catalog := achievement.DefaultCatalog()
	awardLedger := postgres.NewAwardLedgerRepository(conn)
	experienceLedger := postgres.NewExperienceLedgerRepository(conn)
	snapshots := postgres.NewActivitySnapshotRepository(conn)
	leaderboardRepo := postgres.NewLeaderboardRepository(conn)

	var notifier achievement.Notifier
	if cfg.Features.IsEnabled(config.FeatureEngineNotifications, nil) {
		notifier = service.NewAchievementNotifier(log)
	}

	engine := achievement.NewEngine(
		catalog,
		awardLedger,
		achievementCache,
		snapshots,
		experienceLedger,
		notifier,
		bus,
		log,
	)

	// ─────────────────────────────────────────────────────────────────────────
	// 7. APPLICATION LAYER
	// ─────────────────────────────────────────────────────────────────────────
	var lbCache leaderboard.Cache
	if cfg.Features.IsEnabled(config.FeatureLeaderboardCache, nil) {
		lbCache = leaderboardCache
	}

	getLeaderboard := query.NewGetLeaderboardHandler(
		leaderboardRepo, lbCache, cfg.Redis.LeaderboardCacheTTL, log)
	getUserAchievements := query.NewGetUserAchievementsHandler(engine)
	getLevelProgress := query.NewGetLevelProgressHandler(engine, experienceLedger)
	getActivityFeed := query.NewGetActivityFeedHandler(awardLedger, catalog)
	evaluateAchievements := command.NewEvaluateAchievementsHandler(engine, log)

	// Experience changes make cached leaderboard slices stale.
	onXPGained := eventhandler.NewOnXPGained(leaderboardCache, log)
	if err := onXPGained.Register(bus); err != nil {
		return fmt.Errorf("failed to register event handlers: %w", err)
	}

	// ─────────────────────────────────────────────────────────────────────────
	// 8. SCHEDULER
	// ─────────────────────────────────────────────────────────────────────────
	if cfg.Scheduler.Enabled {
		sched := scheduler.NewScheduler(scheduler.SchedulerConfig{
			Logger:        slogger,
			EnableMetrics: true,
		})

		if cfg.Features.IsEnabled(config.FeatureReconcileSweep, nil) {
			reconcile := jobs.NewReconcileAwardsJob(
				awardLedger, experienceLedger, bus, log,
				jobs.ReconcileAwardsConfig{Timeout: cfg.Scheduler.JobTimeout})
			if err := sched.Register(reconcile,
				scheduler.NewIntervalSchedule(cfg.Scheduler.ReconcileInterval)); err != nil {
				return fmt.Errorf("failed to register reconcile job: %w", err)
			}
		}

		if cfg.Features.IsEnabled(config.FeatureLeaderboardRefresh, nil) {
			refresh := jobs.NewRefreshLeaderboardJob(
				leaderboardRepo, leaderboardCache, bus, log,
				jobs.RefreshLeaderboardConfig{
					Limits:   cfg.Scheduler.LeaderboardLimits,
					CacheTTL: cfg.Redis.LeaderboardCacheTTL,
					Timeout:  cfg.Scheduler.JobTimeout,
				})
			if err := sched.Register(refresh,
				scheduler.NewIntervalSchedule(cfg.Scheduler.LeaderboardRefreshInterval)); err != nil {
				return fmt.Errorf("failed to register leaderboard refresh job: %w", err)
			}
		}

		if err := sched.Start(ctx); err != nil {
			return fmt.Errorf("failed to start scheduler: %w", err)
		}
		defer func() {
			if err := sched.Stop(); err != nil {
				log.Warn("scheduler stop failed", logger.Err(err))
			}
		}()
	}

	// ─────────────────────────────────────────────────────────────────────────
	// 9. HTTP API
	// ─────────────────────────────────────────────────────────────────────────
	server := httpapi.NewServer(buildHTTPConfig(cfg), httpapi.Dependencies{
		GetLeaderboardHandler:       getLeaderboard,
		GetUserAchievementsHandler:  getUserAchievements,
		GetLevelProgressHandler:     getLevelProgress,
		GetActivityFeedHandler:      getActivityFeed,
		EvaluateAchievementsHandler: evaluateAchievements,
		Logger:                      log,
		HealthCheckers: []httpapi.HealthChecker{
			pingChecker{name: "postgres", ping: conn.Ping},
			pingChecker{name: "redis", ping: cache.Ping},
		},
	})

	errCh := server.StartAsync()
	log.Info("Questlog Hub worker is running",
		logger.String("address", server.Address()))

	// ─────────────────────────────────────────────────────────────────────────
	// 10. GRACEFUL SHUTDOWN
	// ─────────────────────────────────────────────────────────────────────────
	select {
	case err := <-errCh:
		return fmt.Errorf("http server failed: %w", err)
	case <-ctx.Done():
	}

	log.Info("shutdown signal received",
		logger.String("timeout", cfg.App.ShutdownTimeout.String()))

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.App.ShutdownTimeout)
	defer cancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		log.Warn("http server shutdown failed", logger.Err(err))
	}

	log.Info("shutdown completed")
	return nil
}

// ══════════════════════════════════════════════════════════════════════════════
// WIRING HELPERS
// ══════════════════════════════════════════════════════════════════════════════

func connectPostgres(ctx context.Context, cfg *config.Config) (*postgres.Connection, error) {
	if cfg.Database.URL != "" {
		return postgres.NewConnectionFromURL(ctx, cfg.Database.URL)
	}

	pgCfg := postgres.DefaultConfig()
	pgCfg.Host = cfg.Database.Host
	pgCfg.Port = cfg.Database.Port
	pgCfg.Database = cfg.Database.Name
	pgCfg.User = cfg.Database.User
	pgCfg.Password = cfg.Database.Password
	pgCfg.SSLMode = cfg.Database.SSLMode
	pgCfg.MaxConns = cfg.Database.MaxConns
	pgCfg.MinConns = cfg.Database.MinConns
	pgCfg.MaxConnLifetime = cfg.Database.ConnMaxLifetime
	pgCfg.MaxConnIdleTime = cfg.Database.ConnMaxIdleTime
	pgCfg.ConnectTimeout = cfg.Database.ConnectTimeout
	return postgres.NewConnection(ctx, pgCfg)
}

func buildRedisConfig(cfg *config.Config) redisstore.Config {
	rc := redisstore.DefaultConfig()
	rc.Host = cfg.Redis.Host
	rc.Port = cfg.Redis.Port
	rc.Password = cfg.Redis.Password
	rc.DB = cfg.Redis.DB
	rc.PoolSize = cfg.Redis.PoolSize
	rc.MinIdleConns = cfg.Redis.MinIdleConns
	rc.MaxRetries = cfg.Redis.MaxRetries
	rc.DialTimeout = cfg.Redis.DialTimeout
	rc.ReadTimeout = cfg.Redis.ReadTimeout
	rc.WriteTimeout = cfg.Redis.WriteTimeout
	return rc
}

func buildHTTPConfig(cfg *config.Config) httpapi.Config {
	hc := httpapi.DefaultConfig()
	hc.Host = cfg.HTTP.Host
	hc.Port = cfg.HTTP.Port
	hc.ReadTimeout = cfg.HTTP.ReadTimeout
	hc.WriteTimeout = cfg.HTTP.WriteTimeout
	hc.IdleTimeout = cfg.HTTP.IdleTimeout
	hc.MaxHeaderBytes = cfg.HTTP.MaxHeaderBytes
	hc.EnableCORS = cfg.HTTP.EnableCORS
	hc.AllowedOrigins = cfg.HTTP.AllowedOrigins
	hc.RateLimitPerMinute = cfg.HTTP.RateLimitPerMinute
	return hc
}

// buildEventBus returns the Redis-backed bus when cross-instance fan-out is
// enabled, otherwise a purely in-process one.
func buildEventBus(cfg *config.Config, cache *redisstore.Cache, slogger *slog.Logger) (eventBus, error) {
	busCfg := messaging.DefaultInMemoryEventBusConfig()
	busCfg.WorkerPoolSize = cfg.EventBus.WorkerPoolSize
	busCfg.Logger = slogger

	if !cfg.EventBus.UseRedis {
		return messaging.NewInMemoryEventBus(busCfg), nil
	}

	return messaging.NewRedisEventBus(messaging.RedisEventBusConfig{
		Client:         cache.Client(),
		ChannelName:    cfg.EventBus.ChannelName,
		InstanceID:     cfg.App.InstanceID,
		LocalBusConfig: busCfg,
		Logger:         slogger,
	})
}

// eventBus is the composed surface both bus implementations provide.
type eventBus interface {
	shared.EventPublisher
	shared.EventSubscriber
	Close() error
}

// pingChecker adapts a Ping func to the health check surface.
type pingChecker struct {
	name string
	ping func(ctx context.Context) error
}

func (p pingChecker) Name() string                    { return p.name }
func (p pingChecker) Check(ctx context.Context) error { return p.ping(ctx) }

// ══════════════════════════════════════════════════════════════════════════════
// LOGGER SETUP
// ══════════════════════════════════════════════════════════════════════════════

func setupLogger(cfg *config.Config) *logger.Logger {
	opts := logger.DefaultOptions()
	opts.Level = logger.ParseLevel(cfg.Observability.LogLevel)
	if cfg.App.Debug {
		opts.Level = logger.LevelDebug
	}
	return logger.New(opts)
}

// setupSlog builds the slog logger the scheduler and event bus use.
func setupSlog(cfg *config.Config) *slog.Logger {
	opts := &slog.HandlerOptions{Level: slog.LevelInfo}
	if cfg.App.Debug {
		opts.Level = slog.LevelDebug
	}

	var handler slog.Handler
	if cfg.Observability.LogFormat == "text" {
		handler = slog.NewTextHandler(os.Stdout, opts)
	} else {
		handler = slog.NewJSONHandler(os.Stdout, opts)
	}

	log := slog.New(handler)
	slog.SetDefault(log)
	return log
}
