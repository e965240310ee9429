// Package keyboard builds the inline keyboards shown under scenario prompts.
package keyboard

import tele "gopkg.in/telebot.v4"

const (
	// ChoiceUnique is the callback unique shared by all choice buttons.
	ChoiceUnique = "choice"
	// CancelPayload is the payload of the cancel button. It is fed to the
	// conversation like a typed /cancel.
	CancelPayload = "/cancel"

	cancelLabel = "❌ Cancel"
)

// Choices lays choices out perRow to a row with a cancel row underneath.
// Every button echoes its label back as the payload.
func Choices(choices []string, perRow int) *tele.ReplyMarkup {
	markup := &tele.ReplyMarkup{}
	btns := make([]tele.Btn, 0, len(choices))
	for _, choice := range choices {
		btns = append(btns, markup.Data(choice, ChoiceUnique, choice))
	}
	rows := markup.Split(max(perRow, 1), btns)
	rows = append(rows, markup.Row(markup.Data(cancelLabel, ChoiceUnique, CancelPayload)))
	markup.Inline(rows...)
	return markup
}

// CancelOnly is a keyboard with just the cancel button.
func CancelOnly() *tele.ReplyMarkup {
	return Choices(nil, 1)
}
