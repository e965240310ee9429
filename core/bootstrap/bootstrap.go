// Package bootstrap assembles the bot from configuration: logger, metrics,
// durable store, cache, scenario registry, conversation manager and the
// Telegram transport.
package bootstrap

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/redis/go-redis/v9"
	"golang.org/x/sync/errgroup"

	coreconfig "github.com/m3rciful/swingbot/core/config"
	"github.com/m3rciful/swingbot/core/conversation"
	coredatabase "github.com/m3rciful/swingbot/core/database"
	"github.com/m3rciful/swingbot/core/logger"
	"github.com/m3rciful/swingbot/core/metrics"
	"github.com/m3rciful/swingbot/core/records"
	"github.com/m3rciful/swingbot/core/scenario"
	"github.com/m3rciful/swingbot/core/state"
	"github.com/m3rciful/swingbot/core/state/memstore"
	"github.com/m3rciful/swingbot/core/state/pgstore"
	"github.com/m3rciful/swingbot/core/state/rediscache"
	coretelegram "github.com/m3rciful/swingbot/core/telegram"
)

const redisPingTimeout = 3 * time.Second

// Options control the bootstrap pipeline. Nil hooks fall back to the real
// implementations.
type Options struct {
	Config *coreconfig.Config

	LoggerInit func(*coreconfig.Config) error
	Connect    func(context.Context, coreconfig.DatabaseConfig) (*sqlx.DB, error)
	Migrate    func(context.Context, coreconfig.DatabaseConfig) error
	NewRedis   func(coreconfig.RedisConfig) redis.UniversalClient

	// Scenarios replaces the built-in definitions.
	Scenarios []scenario.Definition
	// Registerer receives the bot's collectors; defaults to a fresh registry
	// with runtime collectors.
	Registerer *prometheus.Registry

	RunTelegram func(context.Context, coretelegram.RunOptions) error
}

// App holds the initialized infrastructure.
type App struct {
	Config    *coreconfig.Config
	DB        *sqlx.DB
	Redis     redis.UniversalClient
	Prom      *prometheus.Registry
	Metrics   *metrics.Recorder
	Exporter  *metrics.Exporter
	Durable   state.Durable
	Store     *state.Store
	Scenarios *scenario.Registry
	Records   records.Repository
	Manager   *conversation.Manager
	Sweeper   *state.Sweeper

	modules     []Module
	runTelegram func(context.Context, coretelegram.RunOptions) error
}

// Run initializes every component. On error, whatever was opened is closed.
func Run(ctx context.Context, opts Options) (*App, error) {
	cfg := opts.Config
	if cfg == nil {
		return nil, fmt.Errorf("bootstrap: nil config provided")
	}

	loggerInit := opts.LoggerInit
	if loggerInit == nil {
		loggerInit = logger.InitLogger
	}
	if err := loggerInit(cfg); err != nil {
		return nil, fmt.Errorf("bootstrap: logger init failed: %w", err)
	}

	app := &App{Config: cfg, runTelegram: opts.RunTelegram}
	if app.runTelegram == nil {
		app.runTelegram = coretelegram.RunTelegram
	}

	app.Prom = opts.Registerer
	if app.Prom == nil {
		app.Prom = metrics.NewRegistry()
	}
	app.Metrics = metrics.NewRecorder(app.Prom)
	if cfg.Metrics.Listen != "" {
		app.Exporter = metrics.NewExporter(cfg.Metrics.Listen, app.Prom)
	}

	if err := app.openDurable(ctx, opts); err != nil {
		_ = app.Close()
		return nil, err
	}
	app.openCache(ctx, opts)

	storeOpts := []state.Option{
		state.WithDurableTimeout(cfg.State.DurableTimeout()),
		state.WithMetrics(app.Metrics),
	}
	if app.Redis != nil {
		storeOpts = append(storeOpts,
			state.WithCache(rediscache.New(app.Redis, rediscache.WithPrefix(cfg.Redis.Prefix))),
			state.WithTTLCeiling(cfg.Redis.TTLCeiling()),
		)
	}
	app.Store = state.NewStore(app.Durable, storeOpts...)

	defs := opts.Scenarios
	if defs == nil {
		defs = scenario.Builtin()
	}
	reg, err := scenario.NewRegistry(ApplyOverrides(cfg, defs)...)
	if err != nil {
		_ = app.Close()
		return nil, fmt.Errorf("bootstrap: scenarios: %w", err)
	}
	app.Scenarios = reg

	managerOpts := append(records.Actions(app.Records, cfg.Records.Location()), conversation.WithMetrics(app.Metrics))
	app.Manager = conversation.NewManager(app.Store, reg, managerOpts...)

	app.Sweeper = state.NewSweeper(app.Durable, state.SweeperOptions{
		Interval: cfg.State.SweepInterval(),
		Grace:    cfg.State.SweepGrace(),
		Timeout:  cfg.State.DurableTimeout(),
		Metrics:  app.Metrics,
	})

	app.modules = app.defaultModules()
	return app, nil
}

func (a *App) openDurable(ctx context.Context, opts Options) error {
	cfg := a.Config.Database
	if cfg.Driver == coreconfig.DriverMemory {
		a.Durable = memstore.New()
		a.Records = records.NewMemoryRepository()
		logger.DB.Warn("memory driver selected; state is lost on restart",
			slog.String("event", "db.driver"),
			slog.String("driver", coreconfig.DriverMemory),
		)
		return nil
	}

	connect := opts.Connect
	if connect == nil {
		connect = coredatabase.Connect
	}
	db, err := connect(ctx, cfg)
	if err != nil {
		return fmt.Errorf("bootstrap: database initialization failed: %w", err)
	}
	a.DB = db

	migrate := opts.Migrate
	if migrate == nil {
		migrate = coredatabase.RunMigrations
	}
	if err := migrate(ctx, cfg); err != nil {
		return fmt.Errorf("bootstrap: migrations failed: %w", err)
	}

	a.Durable = pgstore.New(db)
	a.Records = records.NewSQLRepository(db)
	return nil
}

// openCache connects Redis when enabled. A failed ping leaves the cache off;
// the bot keeps working against the durable store alone.
func (a *App) openCache(ctx context.Context, opts Options) {
	cfg := a.Config.Redis
	if !cfg.Enabled {
		logger.Cache.Info("cache disabled",
			slog.String("event", "cache.init"),
			slog.String("cache", "skip"),
		)
		return
	}

	newRedis := opts.NewRedis
	if newRedis == nil {
		newRedis = NewRedisClient
	}
	client := newRedis(cfg)

	pctx, cancel := context.WithTimeout(ctx, redisPingTimeout)
	defer cancel()
	if err := client.Ping(pctx).Err(); err != nil {
		logger.Cache.Warn("cache unreachable; running without it",
			slog.String("event", "cache.init"),
			slog.String("cache", "error"),
			slog.String("addr", cfg.Addr),
			slog.String("err", err.Error()),
		)
		_ = client.Close()
		return
	}
	a.Redis = client
	logger.Cache.Info("cache connected",
		slog.String("event", "cache.init"),
		slog.String("status", "ok"),
		slog.String("addr", cfg.Addr),
		slog.String("prefix", cfg.Prefix),
		slog.Duration("ttl_ceiling", cfg.TTLCeiling()),
	)
}

// NewRedisClient builds a client from cfg.
func NewRedisClient(cfg coreconfig.RedisConfig) redis.UniversalClient {
	return redis.NewClient(&redis.Options{
		Addr:        cfg.Addr,
		Password:    cfg.Password,
		DB:          cfg.DB,
		DialTimeout: cfg.DialTimeout(),
	})
}

// ApplyOverrides returns defs with configured TTL overrides applied.
func ApplyOverrides(cfg *coreconfig.Config, defs []scenario.Definition) []scenario.Definition {
	out := make([]scenario.Definition, len(defs))
	copy(out, defs)
	for i := range out {
		if ttl, ok := cfg.ScenarioTTL(string(out[i].ID)); ok {
			out[i].TTL = ttl
		}
	}
	return out
}

// Run serves Telegram updates and background modules until ctx is done or
// one of them fails.
func (a *App) Run(ctx context.Context, runOpts coretelegram.RunOptions) error {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()
	g, gctx := errgroup.WithContext(ctx)
	for _, m := range a.modules {
		g.Go(func() error {
			if err := m.Run(gctx); err != nil {
				return fmt.Errorf("bootstrap: module %s: %w", m.Name, err)
			}
			return nil
		})
	}
	g.Go(func() error {
		defer cancel()
		return a.runTelegram(gctx, runOpts)
	})
	return g.Wait()
}

// Close releases the database pool and the Redis client.
func (a *App) Close() error {
	var errs []error
	if a.Redis != nil {
		errs = append(errs, a.Redis.Close())
	}
	if a.DB != nil {
		errs = append(errs, a.DB.Close())
	}
	return errors.Join(errs...)
}
