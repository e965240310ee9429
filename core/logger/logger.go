// Package logger provides the process-wide structured logger: one flat line
// per event in JSON or key=value form, written asynchronously to stdout and an
// optional file. Component loggers are ready to use before InitLogger and
// write through slog's default handler until then.
package logger

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"runtime"
	"strings"
	"sync"

	"github.com/m3rciful/swingbot/core/buildinfo"
	coreconfig "github.com/m3rciful/swingbot/core/config"
)

var (
	initOnce sync.Once

	shutdownMu sync.Mutex
	sinks      *asyncWriter
	closers    []io.Closer

	levelVar      slog.LevelVar
	debugSampler  = newRatioSampler(1, 50)
	traceOverride bool

	// L is the base logger. Component loggers below are derived from it.
	L *slog.Logger

	DB      *slog.Logger // connection pool
	MIG     *slog.Logger // schema migrations
	TG      *slog.Logger // Telegram updates and handlers
	TWire   *slog.Logger // Telegram wiring at startup
	State   *slog.Logger // state store facade
	Cache   *slog.Logger // ephemeral cache tier
	Sweep   *slog.Logger // expired state sweeps
	Conv    *slog.Logger // scenario manager
	Records *slog.Logger // terminal action persistence
)

func init() {
	L = slog.Default()
	wireComponents()
}

// InitLogger configures the global logger from cfg. Only the first call has
// an effect.
func InitLogger(cfg *coreconfig.Config) error {
	var err error
	initOnce.Do(func() {
		opts := resolveOptions(cfg)
		levelVar.Set(opts.level)
		debugSampler.Set(opts.sampleNum, opts.sampleDen)
		traceOverride = opts.trace

		outputs, files, oerr := openOutputs(opts)
		if oerr != nil {
			err = oerr
			return
		}
		shutdownMu.Lock()
		sinks = newAsyncWriter(outputs, 64*1024)
		closers = files
		shutdownMu.Unlock()

		L = slog.New(newStructuredHandler(handlerConfig{
			level:    &levelVar,
			writer:   sinks,
			format:   opts.format,
			keyOrder: opts.keyOrder,
		}))
		slog.SetDefault(L)
		wireComponents()

		L.LogAttrs(context.Background(), slog.LevelInfo, "",
			slog.String("component", "app"),
			slog.String("event", "startup"),
			slog.String("go_version", runtime.Version()),
			slog.String("build_version", buildinfo.Version),
			slog.String("build_commit", buildinfo.Revision()),
			slog.String("build_time", buildinfo.Date),
			slog.String("cfg_profile", opts.profile),
		)
	})
	return err
}

func wireComponents() {
	DB = L.With("component", "db")
	MIG = L.With("component", "db.migrate")
	TG = L.With("component", "tg")
	TWire = L.With("component", "tg.wire")
	State = L.With("component", "state")
	Cache = L.With("component", "state.cache")
	Sweep = L.With("component", "state.sweep")
	Conv = L.With("component", "conversation")
	Records = L.With("component", "records")
}

// Shutdown flushes pending lines and closes log files. Later calls are no-ops.
func Shutdown() error {
	shutdownMu.Lock()
	defer shutdownMu.Unlock()
	if sinks == nil {
		return nil
	}
	errs := []error{sinks.Close()}
	for _, c := range closers {
		errs = append(errs, c.Close())
	}
	sinks, closers = nil, nil
	return errors.Join(errs...)
}

// Background returns context.Background() for call sites outside a request.
func Background() context.Context {
	return context.Background()
}

// LogEvent logs attrs under event, resolving the logger from ctx when logg is nil.
func LogEvent(ctx context.Context, logg *slog.Logger, level slog.Level, event string, attrs ...slog.Attr) {
	if logg == nil {
		logg = FromContext(ctx)
	}
	if logg == nil {
		return
	}
	if event != "" {
		attrs = append([]slog.Attr{slog.String("event", event)}, attrs...)
	}
	logg.LogAttrs(ctx, level, "", attrs...)
}

// Component returns L scoped to name.
func Component(name string) *slog.Logger {
	if name = strings.TrimSpace(name); name != "" {
		return L.With("component", name)
	}
	return L
}

// Event logs through the component logger for name.
func Event(ctx context.Context, component string, level slog.Level, event string, attrs ...slog.Attr) {
	LogEvent(ctx, Component(component), level, event, attrs...)
}

// Warn is Event at warn level.
func Warn(ctx context.Context, component, event string, attrs ...slog.Attr) {
	Event(ctx, component, slog.LevelWarn, event, attrs...)
}

// ShouldSampleDebug reports whether a high-volume debug line should be
// written. TRACE=1 lets every line through.
func ShouldSampleDebug() bool {
	return traceOverride || debugSampler.Allow()
}
