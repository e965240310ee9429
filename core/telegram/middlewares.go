package telegram

import (
	"time"

	coreconfig "github.com/m3rciful/swingbot/core/config"
	"github.com/m3rciful/swingbot/core/metrics"
	"github.com/m3rciful/swingbot/core/telegram/middleware"

	tele "gopkg.in/telebot.v4"
)

// MiddlewareOptions feeds DefaultMiddlewares.
type MiddlewareOptions struct {
	Metrics   *metrics.Recorder
	OnLimited tele.HandlerFunc
	// Admin guards admin-only inputs; nil Protected disables the guard.
	Admin middleware.AdminOptions
}

// DefaultMiddlewares builds the shared middleware chain. Logging precedes rate
// limiting so limited updates carry a rid.
func DefaultMiddlewares(cfg *coreconfig.Config, opts MiddlewareOptions) []Middleware {
	mws := []Middleware{
		{Name: "recover", Use: middleware.RecoverMiddleware},
		{Name: "logger", Use: middleware.LoggerMiddleware},
	}

	if cfg != nil {
		interval := time.Duration(cfg.RateLimit.IntervalMS) * time.Millisecond
		if interval > 0 {
			ex := make(map[string]struct{}, len(cfg.RateLimit.ExcludeUpdates))
			for _, t := range cfg.RateLimit.ExcludeUpdates {
				ex[t] = struct{}{}
			}
			mws = append(mws, Middleware{
				Name: "rate_limit",
				Use: middleware.RateLimitMiddleware(middleware.RateLimitOptions{
					Interval:  interval,
					Exclude:   ex,
					OnLimited: opts.OnLimited,
				}),
			})
		}
	}

	if opts.Admin.Protected != nil {
		mws = append(mws, Middleware{Name: "admin", Use: middleware.AdminOnly(opts.Admin)})
	}

	return append(mws, Middleware{Name: "metrics", Use: middleware.MessageMetrics(opts.Metrics)})
}
