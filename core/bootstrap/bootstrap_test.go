package bootstrap

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/jmoiron/sqlx"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	coreconfig "github.com/m3rciful/swingbot/core/config"
	"github.com/m3rciful/swingbot/core/conversation"
	"github.com/m3rciful/swingbot/core/records"
	"github.com/m3rciful/swingbot/core/scenario"
	coretelegram "github.com/m3rciful/swingbot/core/telegram"
)

func memoryConfig(t *testing.T) *coreconfig.Config {
	t.Helper()
	cfg := &coreconfig.Config{}
	cfg.Telegram.Token = "test-token"
	cfg.Database.Driver = coreconfig.DriverMemory
	cfg.State.SweepIntervalSeconds = -1
	require.NoError(t, coreconfig.Normalize(cfg))
	return cfg
}

func noLogger(*coreconfig.Config) error { return nil }

func TestRunWiresMemoryStack(t *testing.T) {
	cfg := memoryConfig(t)
	cfg.Scenarios = map[string]coreconfig.ScenarioOverride{"onboarding": {TTLSeconds: 120}}

	app, err := Run(context.Background(), Options{
		Config:     cfg,
		LoggerInit: noLogger,
		Registerer: prometheus.NewRegistry(),
	})
	require.NoError(t, err)
	t.Cleanup(func() { _ = app.Close() })

	assert.Nil(t, app.DB)
	assert.Nil(t, app.Redis)
	assert.False(t, app.Store.Stats().CacheOn)

	def, ok := app.Scenarios.Definition(scenario.Onboarding)
	require.True(t, ok)
	assert.Equal(t, 2*time.Minute, def.TTL)

	ctx := context.Background()
	for _, in := range []string{"/start", "ru", "Olga", "Riga"} {
		_, err := app.Manager.Advance(ctx, 9, in)
		require.NoError(t, err)
	}
	repo, ok := app.Records.(*records.MemoryRepository)
	require.True(t, ok)
	p, ok := repo.Profile(9)
	require.True(t, ok)
	assert.Equal(t, "Olga", p.Name)

	var names []string
	for _, m := range app.Modules() {
		names = append(names, m.Name)
	}
	assert.Equal(t, []string{"sweeper"}, names)
}

func TestRunUsesRedisWhenReachable(t *testing.T) {
	mr := miniredis.RunT(t)
	cfg := memoryConfig(t)
	cfg.Redis = coreconfig.RedisConfig{Enabled: true, Addr: mr.Addr()}
	require.NoError(t, coreconfig.Normalize(cfg))

	app, err := Run(context.Background(), Options{Config: cfg, LoggerInit: noLogger, Registerer: prometheus.NewRegistry()})
	require.NoError(t, err)
	t.Cleanup(func() { _ = app.Close() })
	require.NotNil(t, app.Redis)
	assert.True(t, app.Store.Stats().CacheOn)

	out, err := app.Manager.Advance(context.Background(), 5, "/setup_group")
	require.NoError(t, err)
	assert.Equal(t, conversation.Started, out.Kind)
	assert.True(t, mr.Exists("swingbot:context:5"))
}

func TestRunFallsBackWhenRedisDown(t *testing.T) {
	mr := miniredis.RunT(t)
	addr := mr.Addr()
	mr.Close()

	cfg := memoryConfig(t)
	cfg.Redis = coreconfig.RedisConfig{Enabled: true, Addr: addr, DialTimeoutMS: 100}
	require.NoError(t, coreconfig.Normalize(cfg))

	app, err := Run(context.Background(), Options{Config: cfg, LoggerInit: noLogger, Registerer: prometheus.NewRegistry()})
	require.NoError(t, err)
	t.Cleanup(func() { _ = app.Close() })
	assert.Nil(t, app.Redis)
	assert.False(t, app.Store.Stats().CacheOn)
}

func TestRunReportsDatabaseFailure(t *testing.T) {
	cfg := &coreconfig.Config{}
	cfg.Telegram.Token = "test-token"
	cfg.Database = coreconfig.DatabaseConfig{Host: "db", Name: "swingbot"}
	require.NoError(t, coreconfig.Normalize(cfg))

	boom := errors.New("refused")
	_, err := Run(context.Background(), Options{
		Config:     cfg,
		LoggerInit: noLogger,
		Registerer: prometheus.NewRegistry(),
		Connect: func(context.Context, coreconfig.DatabaseConfig) (*sqlx.DB, error) {
			return nil, boom
		},
	})
	assert.ErrorIs(t, err, boom)
}

func TestRunRejectsBadScenarios(t *testing.T) {
	_, err := Run(context.Background(), Options{
		Config:     memoryConfig(t),
		LoggerInit: noLogger,
		Registerer: prometheus.NewRegistry(),
		Scenarios:  []scenario.Definition{{ID: scenario.Onboarding}},
	})
	require.Error(t, err)
}

func TestAppRunStopsWithTelegram(t *testing.T) {
	var got coretelegram.RunOptions
	app, err := Run(context.Background(), Options{
		Config:     memoryConfig(t),
		LoggerInit: noLogger,
		Registerer: prometheus.NewRegistry(),
		RunTelegram: func(_ context.Context, opts coretelegram.RunOptions) error {
			got = opts
			return nil
		},
	})
	require.NoError(t, err)

	runOpts := app.TelegramRunOptions()
	require.NoError(t, app.Run(context.Background(), runOpts))
	assert.Len(t, got.Routes, 3)
	assert.NotEmpty(t, got.Commands)
	assert.Same(t, app.Config, got.Config)
}

func TestAppRunPropagatesModuleFailure(t *testing.T) {
	app, err := Run(context.Background(), Options{
		Config:     memoryConfig(t),
		LoggerInit: noLogger,
		Registerer: prometheus.NewRegistry(),
		RunTelegram: func(ctx context.Context, _ coretelegram.RunOptions) error {
			<-ctx.Done()
			return nil
		},
	})
	require.NoError(t, err)
	boom := errors.New("boom")
	app.modules = append(app.modules, Module{Name: "broken", Run: func(context.Context) error { return boom }})

	err = app.Run(context.Background(), coretelegram.RunOptions{})
	assert.ErrorIs(t, err, boom)
}

func TestApplyOverridesLeavesInputAlone(t *testing.T) {
	cfg := &coreconfig.Config{Scenarios: map[string]coreconfig.ScenarioOverride{"group_setup": {TTLSeconds: 60}}}
	defs := scenario.Builtin()
	out := ApplyOverrides(cfg, defs)
	for i := range defs {
		if defs[i].ID == scenario.GroupSetup {
			assert.Equal(t, 30*time.Minute, defs[i].TTL)
			assert.Equal(t, time.Minute, out[i].TTL)
		}
	}
}
