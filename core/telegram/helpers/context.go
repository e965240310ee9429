package helpers

import (
	"context"

	"github.com/m3rciful/swingbot/core/logger"

	tele "gopkg.in/telebot.v4"
)

const ctxStoreKey = "request_ctx"

// RequestContext returns the context stored for this update, creating one
// tagged with the rid and the update, user and chat ids on first use.
func RequestContext(c tele.Context) context.Context {
	if ctx, ok := c.Get(ctxStoreKey).(context.Context); ok {
		return ctx
	}
	var userID, chatID int64
	if u := c.Sender(); u != nil {
		userID = u.ID
	}
	if ch := c.Chat(); ch != nil {
		chatID = ch.ID
	}
	updateID := c.Update().ID
	rid := logger.BuildRID(updateID, chatID, userID)

	ctx := logger.WithRID(context.Background(), rid)
	ctx = logger.WithUpdateMeta(ctx, updateID, userID, chatID)
	ctx = logger.WithLogger(ctx, logger.TG)
	c.Set(ctxStoreKey, ctx)
	return ctx
}

// WithHandler tags the request context with the handler name and stores it back.
func WithHandler(c tele.Context, handler string) context.Context {
	ctx := RequestContext(c)
	if handler != "" && logger.HandlerFrom(ctx) != handler {
		ctx = logger.WithHandler(ctx, handler)
		c.Set(ctxStoreKey, ctx)
	}
	return ctx
}
