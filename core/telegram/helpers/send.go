package helpers

import (
	"log/slog"

	"github.com/m3rciful/swingbot/core/logger"

	tele "gopkg.in/telebot.v4"
)

// SendText sends raw text (no parse mode) with optional reply markup.
func SendText(c tele.Context, text string, markup ...*tele.ReplyMarkup) error {
	opts := &tele.SendOptions{DisableWebPagePreview: true}
	if len(markup) > 0 && markup[0] != nil {
		opts.ReplyMarkup = markup[0]
	}
	if err := c.Send(text, opts); err != nil {
		logger.Warn(RequestContext(c), "tg", "send.failed",
			slog.String("status", "fail"),
			slog.String("err", err.Error()),
		)
		return err
	}
	return nil
}
