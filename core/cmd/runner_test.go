package cmd

import (
	"context"
	"errors"
	"os"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	coreconfig "github.com/m3rciful/swingbot/core/config"
	coretelegram "github.com/m3rciful/swingbot/core/telegram"
)

type fakeApp struct {
	opts   coretelegram.RunOptions
	runErr error
	closed bool
}

func (f *fakeApp) TelegramRunOptions() coretelegram.RunOptions { return coretelegram.RunOptions{} }

func (f *fakeApp) Run(ctx context.Context, opts coretelegram.RunOptions) error {
	f.opts = opts
	if err := opts.OnStart(ctx, coretelegram.Runtime{}); err != nil {
		return err
	}
	if err := opts.OnStop(ctx, coretelegram.Runtime{}); err != nil {
		return err
	}
	return f.runErr
}

func (f *fakeApp) Close() error {
	f.closed = true
	return nil
}

func TestRunBootstrapsAndCloses(t *testing.T) {
	t.Setenv("SWINGBOT_TEST_CONFIG", "/etc/swingbot.yaml")
	app := &fakeApp{runErr: errors.New("poller stopped")}
	var loaded string
	loggerClosed := false

	err := Run(Options{
		ConfigEnvVar:      "SWINGBOT_TEST_CONFIG",
		DefaultConfigPath: "config.yaml",
		LoadConfig: func(path string) (*coreconfig.Config, error) {
			loaded = path
			return &coreconfig.Config{}, nil
		},
		Bootstrap: func(context.Context, *coreconfig.Config) (App, error) { return app, nil },
		ShutdownLogger: func() error {
			loggerClosed = true
			return nil
		},
		Signals: []os.Signal{os.Interrupt},
	})
	assert.EqualError(t, err, "poller stopped")
	assert.Equal(t, "/etc/swingbot.yaml", loaded)
	assert.True(t, app.closed)
	assert.True(t, loggerClosed)
	assert.NotNil(t, app.opts.OnStart)
}

func TestRunStopsOnBootstrapError(t *testing.T) {
	boom := errors.New("db down")
	err := Run(Options{
		DefaultConfigPath: "config.yaml",
		LoadConfig:        func(string) (*coreconfig.Config, error) { return &coreconfig.Config{}, nil },
		Bootstrap:         func(context.Context, *coreconfig.Config) (App, error) { return nil, boom },
		ShutdownLogger:    func() error { return nil },
	})
	assert.ErrorIs(t, err, boom)
}

func TestConfigPath(t *testing.T) {
	t.Setenv(defaultConfigEnv, "")
	_, err := configPath(Options{})
	require.Error(t, err)

	p, err := configPath(Options{DefaultConfigPath: "config.yaml"})
	require.NoError(t, err)
	assert.Equal(t, "config.yaml", p)

	t.Setenv(defaultConfigEnv, "/run/config.yaml")
	p, err = configPath(Options{DefaultConfigPath: "config.yaml"})
	require.NoError(t, err)
	assert.Equal(t, "/run/config.yaml", p)
}

func TestLifecycleHooksChain(t *testing.T) {
	var calls []string
	ro := withLifecycleLogs(coretelegram.RunOptions{
		OnStart: func(context.Context, coretelegram.Runtime) error {
			calls = append(calls, "start")
			return nil
		},
		OnStop: func(context.Context, coretelegram.Runtime) error {
			calls = append(calls, "stop")
			return errors.New("flush failed")
		},
	}, time.Now())

	require.NoError(t, ro.OnStart(context.Background(), coretelegram.Runtime{}))
	assert.EqualError(t, ro.OnStop(context.Background(), coretelegram.Runtime{}), "flush failed")
	assert.Equal(t, []string{"start", "stop"}, calls)
}
