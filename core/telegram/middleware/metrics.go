package middleware

import (
	"github.com/m3rciful/swingbot/core/metrics"

	tele "gopkg.in/telebot.v4"
)

const sendStatsKey = "send_stats"

// sendStats counts what handlers sent while serving one update.
type sendStats struct {
	messages int
	keyboard bool
}

// countingContext records every successful Send, Reply and EditOrSend.
type countingContext struct {
	tele.Context
	stats *sendStats
	rec   *metrics.Recorder
}

func (c countingContext) count(err error, opts []any) error {
	if err != nil {
		return err
	}
	kb := hasKeyboard(opts)
	c.stats.messages++
	c.stats.keyboard = c.stats.keyboard || kb
	c.rec.MessageSent(kb)
	return nil
}

func (c countingContext) Send(what any, opts ...any) error {
	return c.count(c.Context.Send(what, opts...), opts)
}

func (c countingContext) Reply(what any, opts ...any) error {
	return c.count(c.Context.Reply(what, opts...), opts)
}

func (c countingContext) EditOrSend(what any, opts ...any) error {
	return c.count(c.Context.EditOrSend(what, opts...), opts)
}

func hasKeyboard(opts []any) bool {
	for _, o := range opts {
		switch v := o.(type) {
		case *tele.ReplyMarkup:
			if v != nil {
				return true
			}
		case *tele.SendOptions:
			if v != nil && v.ReplyMarkup != nil {
				return true
			}
		}
	}
	return false
}

// MessageMetrics counts replies per update for the handler summary and
// exports them through rec, which may be nil.
func MessageMetrics(rec *metrics.Recorder) tele.MiddlewareFunc {
	return func(next tele.HandlerFunc) tele.HandlerFunc {
		return func(c tele.Context) error {
			stats := &sendStats{}
			c.Set(sendStatsKey, stats)
			return next(countingContext{Context: c, stats: stats, rec: rec})
		}
	}
}

// GetCounters returns how many messages were sent for the update and whether
// any carried a keyboard.
func GetCounters(c tele.Context) (int, bool) {
	stats, ok := c.Get(sendStatsKey).(*sendStats)
	if !ok {
		return 0, false
	}
	return stats.messages, stats.keyboard
}
