package middleware

import (
	"log/slog"
	"sync"
	"time"

	"github.com/m3rciful/swingbot/core/logger"
	"github.com/m3rciful/swingbot/core/telegram/callbacks"
	tghelpers "github.com/m3rciful/swingbot/core/telegram/helpers"

	tele "gopkg.in/telebot.v4"
)

const dedupWindow = 10 * time.Second

// seenUpdates remembers recently logged update IDs so nested chains log once.
type seenUpdates struct {
	mu   sync.Mutex
	seen map[int]time.Time
}

func (s *seenUpdates) first(updateID int, now time.Time) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	for id, ts := range s.seen {
		if now.Sub(ts) > dedupWindow {
			delete(s.seen, id)
		}
	}
	if _, ok := s.seen[updateID]; ok {
		return false
	}
	s.seen[updateID] = now
	return true
}

var received = &seenUpdates{seen: make(map[int]time.Time)}

// LoggerMiddleware stores a request-scoped context (rid, user, chat) for
// downstream handlers and logs one sampled receipt line per update.
func LoggerMiddleware(next tele.HandlerFunc) tele.HandlerFunc {
	return func(c tele.Context) error {
		upd := c.Update()
		ctx := tghelpers.RequestContext(c)

		if logger.ShouldSampleDebug() && received.first(upd.ID, time.Now()) {
			attrs := []slog.Attr{
				slog.String("status", "ok"),
				slog.Int("update_id", upd.ID),
			}
			if chat := c.Chat(); chat != nil {
				attrs = append(attrs, slog.String("chat_type", string(chat.Type)))
			}
			if user := c.Sender(); user != nil && user.LanguageCode != "" {
				attrs = append(attrs, slog.String("lang", user.LanguageCode))
			}
			switch {
			case upd.Callback != nil:
				attrs = append(attrs,
					slog.String("cb_key", logger.SanitizeLimit(callbacks.CallbackKey(upd.Callback), 128)),
					slog.String("payload", logger.SanitizeLimit(callbacks.CallbackPayload(upd.Callback), 256)),
				)
			case upd.Message != nil:
				if t := c.Text(); t != "" {
					attrs = append(attrs, slog.String("payload", logger.SanitizeLimit(t, 256)))
				}
			}
			logger.LogEvent(ctx, nil, slog.LevelDebug, "update.received", attrs...)
		}

		return next(c)
	}
}
