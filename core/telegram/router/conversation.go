package router

import (
	"context"
	"errors"
	"log/slog"
	"strings"
	"time"

	"github.com/m3rciful/swingbot/core/conversation"
	tg "github.com/m3rciful/swingbot/core/telegram"
	"github.com/m3rciful/swingbot/core/telegram/callbacks"
	tghelpers "github.com/m3rciful/swingbot/core/telegram/helpers"
	"github.com/m3rciful/swingbot/core/telegram/keyboard"

	tele "gopkg.in/telebot.v4"
)

// Advancer is the conversation entry point the routes drive.
type Advancer interface {
	Advance(ctx context.Context, userID int64, raw string) (conversation.Outcome, error)
}

type conversationHandler struct {
	conv   Advancer
	render *Renderer
	send   func(c tele.Context, r Reply) error
}

func sendReply(c tele.Context, r Reply) error {
	return tghelpers.SendText(c, r.Text, r.Markup)
}

// ConversationRoutes maps text messages and choice buttons onto conv.
func ConversationRoutes(conv Advancer, render *Renderer) []tg.Route {
	h := &conversationHandler{conv: conv, render: render, send: sendReply}
	return []tg.Route{
		{Endpoint: tele.OnText, Handler: h.onText},
		{Endpoint: &tele.Btn{Unique: keyboard.ChoiceUnique}, Handler: h.onChoice},
		{Endpoint: tele.OnCallback, Handler: h.onUnknownCallback},
	}
}

func (h *conversationHandler) onText(c tele.Context) error {
	text := c.Text()
	return h.handle(c, handlerName(text), text)
}

func (h *conversationHandler) onChoice(c tele.Context) error {
	_ = c.Respond()
	return h.handle(c, "choice", callbacks.CallbackPayload(c.Callback()))
}

func (h *conversationHandler) onUnknownCallback(c tele.Context) error {
	start := time.Now()
	err := c.Respond(&tele.CallbackResponse{Text: "Unsupported action"})
	logHandlerSummary(c, "callback."+normalizeHandlerName(callbacks.CallbackKey(c.Callback())), start, "", err,
		slog.String("reason", "not_found"))
	return err
}

func (h *conversationHandler) handle(c tele.Context, name, input string) error {
	start := time.Now()
	sender := c.Sender()
	if sender == nil {
		return nil
	}
	ctx := tghelpers.WithHandler(c, name)

	out, advErr := h.conv.Advance(ctx, sender.ID, input)
	reply := h.render.Outcome(out)
	outcome := out.Kind.String()
	if advErr != nil {
		reply = h.render.Unavailable()
		outcome = "fail"
	}
	sendErr := h.send(c, reply)

	extras := []slog.Attr{}
	if out.Scenario != "" {
		extras = append(extras, slog.String("scenario", string(out.Scenario)))
	}
	if out.Step != "" {
		extras = append(extras, slog.String("step", out.Step))
	}
	logHandlerSummary(c, name, start, outcome, errors.Join(advErr, sendErr), extras...)
	return sendErr
}

// handlerName names a text update after its command, or "text".
func handlerName(text string) string {
	text = strings.TrimSpace(text)
	if !strings.HasPrefix(text, "/") {
		return "text"
	}
	cmd := strings.Fields(text)[0]
	if at := strings.IndexByte(cmd, '@'); at > 0 {
		cmd = cmd[:at]
	}
	return normalizeHandlerName(cmd)
}
