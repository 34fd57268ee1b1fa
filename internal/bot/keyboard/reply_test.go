package keyboard

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	telebot "gopkg.in/telebot.v3"
)

func labels(m *telebot.ReplyMarkup) []string {
	out := make([]string, 0)
	for _, row := range m.ReplyKeyboard {
		for _, btn := range row {
			out = append(out, btn.Text)
		}
	}
	return out
}

func TestCommoditiesKeyboard(t *testing.T) {
	b := NewBuilder()

	withCancel := b.Commodities(true)
	assert.Equal(t, []string{"Золото", "Серебро", BtnCancel}, labels(withCancel))
	assert.True(t, withCancel.ResizeKeyboard)

	noCancel := b.Commodities(false)
	assert.Equal(t, []string{"Золото", "Серебро"}, labels(noCancel))
}

func TestOrgTypesKeyboardOnePerRow(t *testing.T) {
	m := NewBuilder().OrgTypes()

	require.Len(t, m.ReplyKeyboard, 4)
	for _, row := range m.ReplyKeyboard {
		assert.Len(t, row, 1)
	}
	assert.Equal(t, "Банк РФ", m.ReplyKeyboard[0][0].Text)
}

func TestNotificationKeyboard(t *testing.T) {
	m := NewBuilder().Notification()

	assert.Equal(t, []string{BtnSendQuotes, BtnDeclineQuotes}, labels(m))
}

func TestRemoveHidesKeyboard(t *testing.T) {
	m := NewBuilder().Remove()

	assert.True(t, m.RemoveKeyboard)
	assert.Empty(t, m.ReplyKeyboard)
}
