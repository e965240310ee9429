package bootstrap

import (
	"context"
	"log/slog"
	"time"

	"github.com/m3rciful/swingbot/core/logger"
)

const exporterShutdownTimeout = 5 * time.Second

// Module is a background component that runs alongside the bot until its
// context is cancelled.
type Module struct {
	Name string
	Run  func(ctx context.Context) error
}

// ModuleFunc adapts a function that cannot fail.
func ModuleFunc(name string, fn func(ctx context.Context)) Module {
	return Module{Name: name, Run: func(ctx context.Context) error {
		fn(ctx)
		return nil
	}}
}

// Modules returns the background modules Run will start.
func (a *App) Modules() []Module {
	return append([]Module(nil), a.modules...)
}

func (a *App) defaultModules() []Module {
	mods := []Module{ModuleFunc("sweeper", a.Sweeper.Run)}
	if a.Exporter != nil {
		mods = append(mods, Module{Name: "metrics", Run: a.serveMetrics})
	}
	return mods
}

func (a *App) serveMetrics(ctx context.Context) error {
	errCh := make(chan error, 1)
	go func() { errCh <- a.Exporter.Start() }()
	logger.L.Info("metrics exporter listening",
		slog.String("component", "metrics"),
		slog.String("event", "metrics.listen"),
		slog.String("addr", a.Config.Metrics.Listen),
	)

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}
	sctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), exporterShutdownTimeout)
	defer cancel()
	if err := a.Exporter.Shutdown(sctx); err != nil {
		return err
	}
	return <-errCh
}
