// Package keyboard builds the reply keyboards shown to participants.
package keyboard

import (
	telebot "gopkg.in/telebot.v3"

	"github.com/metals-desk/quotes-bot/internal/domain"
)

// Button labels. Incoming messages are matched against these exact strings.
const (
	BtnRegister      = "Регистрация"
	BtnNewOffer      = "📨 Направить предложение о покупке"
	BtnSendQuotes    = "📈 Отправить котировки"
	BtnDeclineQuotes = "🚫 Не отправлять котировки"
	BtnCancel        = "❌ Отмена"
	BtnSkipContacts  = "Не указывать"
	BtnYes           = "Да"
	BtnNo            = "Нет"
)

// Builder creates the reply keyboards used across the conversation flows.
type Builder struct{}

// NewBuilder returns a new Builder instance.
func NewBuilder() *Builder {
	return &Builder{}
}

func markup() *telebot.ReplyMarkup {
	return &telebot.ReplyMarkup{ResizeKeyboard: true}
}

// Registration is shown to unregistered users.
func (b *Builder) Registration() *telebot.ReplyMarkup {
	m := markup()
	m.Reply(m.Row(m.Text(BtnRegister)))
	return m
}

// MainMenu is the idle-state keyboard for registered participants.
func (b *Builder) MainMenu() *telebot.ReplyMarkup {
	m := markup()
	m.Reply(m.Row(m.Text(BtnNewOffer)))
	return m
}

// Commodities offers the commodity choice, optionally with a cancel row.
// The quote flow omits cancel: a broadcast-opened session ends only by
// answering, declining, or timing out.
func (b *Builder) Commodities(withCancel bool) *telebot.ReplyMarkup {
	m := markup()
	row := make([]telebot.Btn, 0, 2)
	for _, c := range domain.Commodities() {
		row = append(row, m.Text(c.Title()))
	}

	if withCancel {
		m.Reply(m.Row(row...), m.Row(m.Text(BtnCancel)))
	} else {
		m.Reply(m.Row(row...))
	}
	return m
}

// SkipContacts is shown at the contacts step of registration.
func (b *Builder) SkipContacts() *telebot.ReplyMarkup {
	m := markup()
	m.Reply(m.Row(m.Text(BtnSkipContacts)))
	return m
}

// OrgTypes lists the fixed organization type options, one per row.
func (b *Builder) OrgTypes() *telebot.ReplyMarkup {
	m := markup()
	rows := make([]telebot.Row, 0, len(domain.OrgTypes()))
	for _, t := range domain.OrgTypes() {
		rows = append(rows, m.Row(m.Text(t)))
	}
	m.Reply(rows...)
	return m
}

// Notification accompanies a quote-request broadcast.
func (b *Builder) Notification() *telebot.ReplyMarkup {
	m := markup()
	m.Reply(
		m.Row(m.Text(BtnSendQuotes)),
		m.Row(m.Text(BtnDeclineQuotes)),
	)
	return m
}

// YesNo is shown at the second-commodity prompt.
func (b *Builder) YesNo() *telebot.ReplyMarkup {
	m := markup()
	m.Reply(m.Row(m.Text(BtnYes), m.Text(BtnNo)))
	return m
}

// Remove hides the reply keyboard for free-text input steps.
func (b *Builder) Remove() *telebot.ReplyMarkup {
	return &telebot.ReplyMarkup{RemoveKeyboard: true}
}
