package middleware

import (
	"log/slog"
	"sync"
	"time"

	"github.com/m3rciful/swingbot/core/logger"
	tghelpers "github.com/m3rciful/swingbot/core/telegram/helpers"

	tele "gopkg.in/telebot.v4"
)

// RateLimitOptions configures behaviour of the rate limit middleware.
type RateLimitOptions struct {
	Interval  time.Duration
	Exclude   map[string]struct{}
	OnLimited tele.HandlerFunc
	Now       func() time.Time
}

// limiter tracks the last accepted update per user.
type limiter struct {
	mu       sync.Mutex
	interval time.Duration
	last     map[int64]time.Time
	pruned   time.Time
}

func newLimiter(interval time.Duration) *limiter {
	return &limiter{interval: interval, last: make(map[int64]time.Time)}
}

// allow reports whether userID may proceed at now and records the attempt.
func (l *limiter) allow(userID int64, now time.Time) bool {
	l.mu.Lock()
	defer l.mu.Unlock()
	if now.Sub(l.pruned) > time.Minute {
		for id, ts := range l.last {
			if now.Sub(ts) >= l.interval {
				delete(l.last, id)
			}
		}
		l.pruned = now
	}
	if ts, ok := l.last[userID]; ok && now.Sub(ts) < l.interval {
		return false
	}
	l.last[userID] = now
	return true
}

func updateKind(upd tele.Update) string {
	switch {
	case upd.Callback != nil:
		return "callback"
	case upd.Message != nil:
		return "message"
	case upd.Query != nil:
		return "inline_query"
	}
	return "other"
}

// RateLimitMiddleware returns a middleware that enforces a minimum interval
// between updates from the same user. Limited updates never reach the
// conversation layer.
func RateLimitMiddleware(opts RateLimitOptions) tele.MiddlewareFunc {
	lim := newLimiter(opts.Interval)
	now := opts.Now
	if now == nil {
		now = time.Now
	}
	return func(next tele.HandlerFunc) tele.HandlerFunc {
		return func(c tele.Context) error {
			user := c.Sender()
			if user == nil || opts.Interval <= 0 {
				return next(c)
			}
			kind := updateKind(c.Update())
			if _, skip := opts.Exclude[kind]; skip {
				return next(c)
			}
			if lim.allow(user.ID, now()) {
				return next(c)
			}

			attrs := []slog.Attr{
				slog.String("event", "tg.rate_limit"),
				slog.String("status", "rate_limited"),
				slog.String("kind", kind),
				slog.Int64("user_id", user.ID),
			}
			if chat := c.Chat(); chat != nil {
				attrs = append(attrs, slog.Int64("chat_id", chat.ID))
			}
			logger.TG.LogAttrs(tghelpers.RequestContext(c), slog.LevelWarn, "rate limit", attrs...)
			if opts.OnLimited != nil {
				_ = opts.OnLimited(c)
			}
			return nil
		}
	}
}
