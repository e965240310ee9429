package keyboard

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestChoicesLayout(t *testing.T) {
	markup := Choices([]string{"users", "groups", "events", "stats", "exit"}, 2)
	require.Len(t, markup.InlineKeyboard, 4)
	assert.Len(t, markup.InlineKeyboard[0], 2)
	assert.Len(t, markup.InlineKeyboard[2], 1)

	first := markup.InlineKeyboard[0][0]
	assert.Equal(t, "users", first.Text)
	assert.Equal(t, ChoiceUnique, first.Unique)
	assert.Equal(t, "users", first.Data)

	cancel := markup.InlineKeyboard[3][0]
	assert.Equal(t, CancelPayload, cancel.Data)
}

func TestChoicesClampsRowWidth(t *testing.T) {
	markup := Choices([]string{"en", "ru"}, 0)
	require.Len(t, markup.InlineKeyboard, 3)
	assert.Len(t, markup.InlineKeyboard[0], 1)
}

func TestCancelOnly(t *testing.T) {
	markup := CancelOnly()
	require.Len(t, markup.InlineKeyboard, 1)
	assert.Equal(t, CancelPayload, markup.InlineKeyboard[0][0].Data)
	assert.Equal(t, cancelLabel, markup.InlineKeyboard[0][0].Text)
}
