package bootstrap

import (
	"github.com/m3rciful/swingbot/core/scenario"
	coretelegram "github.com/m3rciful/swingbot/core/telegram"
	"github.com/m3rciful/swingbot/core/telegram/middleware"
	"github.com/m3rciful/swingbot/core/telegram/router"

	tele "gopkg.in/telebot.v4"
)

const textAdminOnly = "This command is only available to the bot admin."

var completedTexts = map[scenario.ID]string{
	scenario.Onboarding:    "✅ Profile saved. Welcome to the community!",
	scenario.EventCreation: "🎉 Event created.",
	scenario.GroupSetup:    "✅ Group created.",
	scenario.AdminPanel:    "Admin panel closed.",
}

// TelegramRunOptions wires the conversation manager into the Telegram transport.
func (a *App) TelegramRunOptions() coretelegram.RunOptions {
	render := router.NewRenderer(a.Scenarios, router.RenderOptions{
		Completed: completedTexts,
		Hidden:    []scenario.ID{scenario.AdminPanel},
	})

	mws := coretelegram.DefaultMiddlewares(a.Config, coretelegram.MiddlewareOptions{
		Metrics: a.Metrics,
		Admin: middleware.AdminOptions{
			AdminID:   a.Config.Telegram.AdminID,
			Protected: router.ProtectsScenario(a.Scenarios, scenario.AdminPanel),
			OnReject: func(c tele.Context) error {
				return c.Send(textAdminOnly)
			},
		},
	})

	return coretelegram.RunOptions{
		Config:      a.Config,
		Middlewares: mws,
		Routes:      router.ConversationRoutes(a.Manager, render),
		Commands:    render.MenuCommands(),
	}
}
