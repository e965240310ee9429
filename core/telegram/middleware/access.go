package middleware

import (
	"log/slog"

	"github.com/m3rciful/swingbot/core/logger"

	tele "gopkg.in/telebot.v4"
)

// AdminOptions defines how admin-only checks should behave.
type AdminOptions struct {
	AdminID int64
	// Protected reports whether the update's text is reserved for the admin.
	Protected func(text string) bool
	OnReject  tele.HandlerFunc
}

// AdminOnly drops protected inputs from anyone but the configured admin.
// With AdminID unset every protected input is rejected.
func AdminOnly(opts AdminOptions) tele.MiddlewareFunc {
	return func(next tele.HandlerFunc) tele.HandlerFunc {
		return func(c tele.Context) error {
			if opts.Protected == nil || !opts.Protected(c.Text()) {
				return next(c)
			}
			sender := c.Sender()
			if sender != nil && opts.AdminID != 0 && sender.ID == opts.AdminID {
				return next(c)
			}
			var userID int64
			if sender != nil {
				userID = sender.ID
			}
			logger.TG.Warn("admin input rejected",
				slog.String("event", "tg.access"),
				slog.String("status", "skip"),
				slog.Int64("user_id", userID),
			)
			if opts.OnReject != nil {
				return opts.OnReject(c)
			}
			return nil
		}
	}
}
