package telegram

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	coreconfig "github.com/m3rciful/swingbot/core/config"
	"github.com/m3rciful/swingbot/core/logger"
	tghelpers "github.com/m3rciful/swingbot/core/telegram/helpers"

	tele "gopkg.in/telebot.v4"
)

const stopHookTimeout = 10 * time.Second

// Middleware is a named global middleware applied with bot.Use.
type Middleware struct {
	Name string
	Use  tele.MiddlewareFunc
}

// Route binds a handler to any endpoint tele.Bot.Handle accepts.
type Route struct {
	Endpoint any
	Handler  tele.HandlerFunc
}

// RunOptions describe the bot RunTelegram serves.
type RunOptions struct {
	Config *coreconfig.Config

	Middlewares []Middleware
	Routes      []Route
	// Commands populate the Telegram command menu.
	Commands []tele.Command

	// DisableWebhookCleanup keeps a registered webhook in long-poll mode.
	DisableWebhookCleanup bool

	OnStart func(ctx context.Context, rt Runtime) error
	OnStop  func(ctx context.Context, rt Runtime) error
}

// Runtime is handed to lifecycle hooks.
type Runtime struct {
	Bot *tele.Bot
}

// RunTelegram serves updates until ctx is done or the poller stops.
// Cancellation is a clean exit.
func RunTelegram(ctx context.Context, opts RunOptions) error {
	if opts.Config == nil {
		return fmt.Errorf("telegram: nil config provided")
	}
	bot, err := newBot(opts.Config)
	if err != nil {
		return err
	}
	if !opts.DisableWebhookCleanup {
		if _, isHook := bot.Poller.(*tele.Webhook); !isHook {
			if err := bot.RemoveWebhook(); err != nil {
				logger.Warn(ctx, "tg.wire", "tg.webhook.remove", slog.String("err", err.Error()))
			}
		}
	}
	wire(bot, opts)
	if len(opts.Commands) > 0 {
		if err := bot.SetCommands(opts.Commands); err != nil {
			logger.Warn(ctx, "tg.wire", "tg.commands", slog.String("err", err.Error()))
		}
	}

	rt := Runtime{Bot: bot}
	if opts.OnStart != nil {
		if err := opts.OnStart(ctx, rt); err != nil {
			return err
		}
	}
	runErr := serve(ctx, bot)
	if opts.OnStop != nil {
		sctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), stopHookTimeout)
		defer cancel()
		if err := opts.OnStop(sctx, rt); err != nil {
			return err
		}
	}
	return runErr
}

func newBot(cfg *coreconfig.Config) (*tele.Bot, error) {
	start := time.Now()
	poller := BuildPoller(cfg)
	bot, err := tele.NewBot(tele.Settings{
		Token:  cfg.Telegram.Token,
		Poller: poller,
		Client: BuildHTTPClient(longPollTimeout(cfg)),
		OnError: func(err error, c tele.Context) {
			ctx := context.Background()
			if c != nil {
				ctx = tghelpers.RequestContext(c)
			}
			logger.TG.LogAttrs(ctx, slog.LevelError, "",
				slog.String("event", "tg.error"),
				slog.String("status", "fail"),
				slog.String("err", err.Error()),
			)
		},
	})
	if err != nil {
		return nil, fmt.Errorf("telegram: bot initialization failed: %w", err)
	}

	attrs := []slog.Attr{
		slog.String("event", "tg.mode"),
		slog.Duration("duration", time.Since(start)),
	}
	if hook, ok := poller.(*tele.Webhook); ok {
		attrs = append(attrs,
			slog.String("mode", coreconfig.RunModeWebhook),
			slog.String("listen", hook.Listen),
			slog.String("public_url", hook.Endpoint.PublicURL),
		)
	} else {
		attrs = append(attrs,
			slog.String("mode", coreconfig.RunModeLongpoll),
			slog.Duration("timeout", longPollTimeout(cfg)),
		)
	}
	logger.TWire.LogAttrs(context.Background(), slog.LevelInfo, "", attrs...)
	return bot, nil
}

// wire installs middlewares in order, then routes.
func wire(bot *tele.Bot, opts RunOptions) {
	names := make([]string, 0, len(opts.Middlewares))
	for _, mw := range opts.Middlewares {
		if mw.Use == nil {
			continue
		}
		bot.Use(mw.Use)
		names = append(names, mw.Name)
	}
	routes := 0
	for _, r := range opts.Routes {
		if r.Endpoint == nil || r.Handler == nil {
			continue
		}
		bot.Handle(r.Endpoint, r.Handler)
		routes++
	}
	logger.TWire.Info("",
		slog.String("event", "tg.wire"),
		slog.String("status", "ok"),
		slog.String("middlewares", strings.Join(names, ",")),
		slog.Int("routes", routes),
		slog.Int("commands", len(opts.Commands)),
	)
}

// serve runs the poller until it returns or ctx is done.
func serve(ctx context.Context, bot *tele.Bot) error {
	done := make(chan struct{})
	go func() {
		defer close(done)
		bot.Start()
	}()
	select {
	case <-done:
		return nil
	case <-ctx.Done():
		bot.Stop()
		<-done
	}
	if err := ctx.Err(); !errors.Is(err, context.Canceled) {
		return err
	}
	return nil
}
