package router

import (
	"fmt"
	"strings"

	"github.com/m3rciful/swingbot/core/conversation"
	"github.com/m3rciful/swingbot/core/scenario"
	"github.com/m3rciful/swingbot/core/telegram/keyboard"

	tele "gopkg.in/telebot.v4"
)

const (
	textCancelled    = "Cancelled. Nothing was saved."
	textCompleted    = "✅ Done."
	textUnavailable  = "⚠️ I can't reach my storage right now. Please try again in a minute."
	textNoScenario   = "I didn't get that. Here is what I can do:"
	textCancelHint   = "/cancel - stop the current dialog"
	defaultPerRow    = 2
	startedPrefixFmt = "📝 %s\n\n%s"
)

// Reply is a rendered message.
type Reply struct {
	Text   string
	Markup *tele.ReplyMarkup
}

// RenderOptions customise user-facing texts.
type RenderOptions struct {
	// Completed maps a scenario to the message shown when it finishes.
	Completed map[scenario.ID]string
	// ChoicesPerRow bounds choice buttons per keyboard row; 0 means 2.
	ChoicesPerRow int
	// Hidden scenarios are left out of help and the command menu.
	Hidden []scenario.ID
}

// Renderer turns conversation outcomes into Telegram replies.
type Renderer struct {
	reg       *scenario.Registry
	completed map[scenario.ID]string
	perRow    int
	hidden    map[scenario.ID]struct{}
}

// NewRenderer builds a Renderer over reg.
func NewRenderer(reg *scenario.Registry, opts RenderOptions) *Renderer {
	r := &Renderer{
		reg:       reg,
		completed: opts.Completed,
		perRow:    opts.ChoicesPerRow,
		hidden:    make(map[scenario.ID]struct{}, len(opts.Hidden)),
	}
	if r.perRow <= 0 {
		r.perRow = defaultPerRow
	}
	for _, id := range opts.Hidden {
		r.hidden[id] = struct{}{}
	}
	return r
}

// Outcome renders out.
func (r *Renderer) Outcome(out conversation.Outcome) Reply {
	switch out.Kind {
	case conversation.Started:
		reply := r.prompt(out.Scenario, out.Step)
		if def, ok := r.reg.Definition(out.Scenario); ok && def.Title != "" {
			reply.Text = fmt.Sprintf(startedPrefixFmt, def.Title, reply.Text)
		}
		return reply
	case conversation.Advanced:
		return r.prompt(out.Scenario, out.Step)
	case conversation.Invalid:
		reply := r.prompt(out.Scenario, out.Step)
		reply.Text = "⚠️ " + out.Reason + "\n\n" + reply.Text
		return reply
	case conversation.Failed:
		return Reply{Text: "⚠️ " + out.Reason, Markup: keyboard.CancelOnly()}
	case conversation.Completed:
		if msg, ok := r.completed[out.Scenario]; ok {
			return Reply{Text: msg}
		}
		return Reply{Text: textCompleted}
	case conversation.Cancelled:
		return Reply{Text: textCancelled}
	default:
		return Reply{Text: r.Help()}
	}
}

// Unavailable is sent when Advance fails on storage.
func (r *Renderer) Unavailable() Reply {
	return Reply{Text: textUnavailable}
}

// Help lists the scenarios a user can start.
func (r *Renderer) Help() string {
	var b strings.Builder
	b.WriteString(textNoScenario)
	for _, id := range r.reg.IDs() {
		if _, hidden := r.hidden[id]; hidden {
			continue
		}
		def, ok := r.reg.Definition(id)
		if !ok || len(def.Triggers) == 0 {
			continue
		}
		fmt.Fprintf(&b, "\n%s - %s", def.Triggers[0], def.Title)
	}
	b.WriteString("\n" + textCancelHint)
	return b.String()
}

// MenuCommands returns the bot command menu: slash triggers of visible
// scenarios plus /cancel.
func (r *Renderer) MenuCommands() []tele.Command {
	var cmds []tele.Command
	for _, id := range r.reg.IDs() {
		if _, hidden := r.hidden[id]; hidden {
			continue
		}
		def, _ := r.reg.Definition(id)
		for _, t := range def.Triggers {
			if strings.HasPrefix(t, "/") {
				cmds = append(cmds, tele.Command{Text: strings.TrimPrefix(t, "/"), Description: def.Title})
				break
			}
		}
	}
	return append(cmds, tele.Command{Text: "cancel", Description: "Stop the current dialog"})
}

func (r *Renderer) prompt(id scenario.ID, stepName string) Reply {
	step, ok := r.reg.Step(id, stepName)
	if !ok {
		return Reply{Text: r.Help()}
	}
	return Reply{Text: step.Prompt, Markup: keyboard.Choices(step.Choices, r.perRow)}
}

// ProtectsScenario reports whether text triggers scenario id.
func ProtectsScenario(reg *scenario.Registry, id scenario.ID) func(text string) bool {
	return func(text string) bool {
		def, ok := reg.ByTrigger(text)
		return ok && def.ID == id
	}
}
