package handlers

import (
	"log/slog"

	telebot "gopkg.in/telebot.v3"

	"github.com/metals-desk/quotes-bot/internal/bot/keyboard"
)

// NewStartHandler shows the main menu to registered participants and the
// registration keyboard to everyone else.
func NewStartHandler(kb *keyboard.Builder, log *slog.Logger) Handler {
	if log == nil {
		log = slog.Default()
	}

	return func(c telebot.Context) error {
		if c == nil || c.Sender() == nil {
			log.Warn("start handler invoked without sender")
			return nil
		}

		if _, ok := ParticipantFrom(c); ok {
			return c.Send("Главное меню:", kb.MainMenu())
		}

		return c.Send(
			"Добрый день! Для регистрации нажмите кнопку Регистрация:",
			kb.Registration(),
		)
	}
}
