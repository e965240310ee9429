package router

import (
	"context"
	"errors"
	"log/slog"
	"strings"
	"time"

	"github.com/m3rciful/swingbot/core/logger"
	"github.com/m3rciful/swingbot/core/state"
	tghelpers "github.com/m3rciful/swingbot/core/telegram/helpers"
	"github.com/m3rciful/swingbot/core/telegram/middleware"

	tele "gopkg.in/telebot.v4"
)

// logHandlerSummary writes the one summary line an update gets once handled.
func logHandlerSummary(c tele.Context, handler string, start time.Time, outcome string, err error, extras ...slog.Attr) {
	ctx := tghelpers.WithHandler(c, handler)
	msgs, kb := middleware.GetCounters(c)

	status := "ok"
	if err != nil {
		status = "fail"
	}
	attrs := append([]slog.Attr{
		slog.String("status", status),
		slog.String("outcome", cmpOr(outcome, status)),
		slog.Int("messages", msgs),
		slog.Bool("kb", kb),
		slog.Duration("duration", time.Since(start)),
	}, extras...)
	if err != nil {
		attrs = append(attrs,
			slog.String("err", logger.SanitizeLimit(err.Error(), 256)),
			slog.String("err_code", errorCode(err)),
		)
	}
	logger.LogEvent(ctx, logger.TG, slog.LevelInfo, "handler.handled", attrs...)
}

func cmpOr(a, b string) string {
	if a != "" {
		return a
	}
	return b
}

func normalizeHandlerName(name string) string {
	name = strings.ToLower(strings.TrimPrefix(strings.TrimSpace(name), "/"))
	if name == "" {
		return "unknown"
	}
	return strings.ReplaceAll(name, " ", "_")
}

// errorCode classifies err for dashboards.
func errorCode(err error) string {
	var apiErr *tele.Error
	switch {
	case errors.Is(err, state.ErrStorageUnavailable):
		return "STORAGE_UNAVAILABLE"
	case errors.Is(err, context.DeadlineExceeded):
		return "TIMEOUT"
	case errors.Is(err, context.Canceled):
		return "CANCELLED"
	case errors.As(err, &apiErr):
		return "TG_API"
	}
	return "INTERNAL"
}
