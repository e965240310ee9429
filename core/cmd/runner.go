// Package cmd is the process entry point shared by binaries: it loads
// configuration, bootstraps the app and serves until a signal arrives.
package cmd

import (
	"context"
	"errors"
	"fmt"
	"log"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	coreconfig "github.com/m3rciful/swingbot/core/config"
	"github.com/m3rciful/swingbot/core/logger"
	coretelegram "github.com/m3rciful/swingbot/core/telegram"
)

const defaultConfigEnv = "CONFIG_PATH"

// App is what Bootstrap hands back to the runner.
type App interface {
	TelegramRunOptions() coretelegram.RunOptions
	Run(ctx context.Context, opts coretelegram.RunOptions) error
	Close() error
}

// Options describe how to load configuration and bootstrap the app.
type Options struct {
	// ConfigEnvVar names the variable holding the config path; CONFIG_PATH by default.
	ConfigEnvVar      string
	DefaultConfigPath string

	LoadConfig func(path string) (*coreconfig.Config, error)
	Bootstrap  func(ctx context.Context, cfg *coreconfig.Config) (App, error)

	ShutdownLogger func() error
	// Signals cancel the run; defaults to SIGINT and SIGTERM.
	Signals []os.Signal
}

// Run serves the app until a signal arrives or it fails.
func Run(opts Options) error {
	if opts.Bootstrap == nil {
		return errors.New("cmd: Bootstrap is required")
	}
	if opts.LoadConfig == nil {
		opts.LoadConfig = coreconfig.Load
	}
	if opts.ShutdownLogger == nil {
		opts.ShutdownLogger = logger.Shutdown
	}
	if len(opts.Signals) == 0 {
		opts.Signals = []os.Signal{os.Interrupt, syscall.SIGTERM}
	}

	path, err := configPath(opts)
	if err != nil {
		return err
	}
	log.Printf("loading config: %s", path)
	cfg, err := opts.LoadConfig(path)
	if err != nil {
		return fmt.Errorf("cmd: failed to load config: %w", err)
	}

	ctx, stop := signal.NotifyContext(context.Background(), opts.Signals...)
	defer stop()

	started := time.Now()
	app, err := opts.Bootstrap(ctx, cfg)
	if err != nil {
		return fmt.Errorf("cmd: bootstrap failed: %w", err)
	}
	defer func() {
		if serr := opts.ShutdownLogger(); serr != nil {
			log.Printf("logger shutdown error: %v", serr)
		}
	}()
	defer func() {
		if cerr := app.Close(); cerr != nil {
			logger.Warn(context.Background(), "app", "shutdown",
				slog.String("status", "fail"),
				slog.String("err", cerr.Error()),
			)
		}
	}()

	return app.Run(ctx, withLifecycleLogs(app.TelegramRunOptions(), started))
}

func configPath(opts Options) (string, error) {
	env := opts.ConfigEnvVar
	if env == "" {
		env = defaultConfigEnv
	}
	if p := os.Getenv(env); p != "" {
		return p, nil
	}
	if opts.DefaultConfigPath != "" {
		return opts.DefaultConfigPath, nil
	}
	return "", fmt.Errorf("cmd: config path not provided via %s or DefaultConfigPath", env)
}

// withLifecycleLogs wraps the start and stop hooks with the ready and
// shutdown lines.
func withLifecycleLogs(ro coretelegram.RunOptions, started time.Time) coretelegram.RunOptions {
	onStart, onStop := ro.OnStart, ro.OnStop
	ro.OnStart = func(ctx context.Context, rt coretelegram.Runtime) error {
		if onStart != nil {
			if err := onStart(ctx, rt); err != nil {
				return err
			}
		}
		logger.Event(ctx, "app", slog.LevelInfo, "ready",
			slog.String("status", "ok"),
			slog.Duration("startup_duration", time.Since(started)),
		)
		return nil
	}
	ro.OnStop = func(ctx context.Context, rt coretelegram.Runtime) error {
		logger.Event(ctx, "app", slog.LevelInfo, "shutdown")
		if onStop != nil {
			return onStop(ctx, rt)
		}
		return nil
	}
	return ro
}
