package bot

import (
	"fmt"
	"log/slog"

	telebot "gopkg.in/telebot.v3"

	"github.com/metals-desk/quotes-bot/internal/bot/keyboard"
	apperrors "github.com/metals-desk/quotes-bot/internal/errors"
)

// Notifier delivers out-of-band messages: broadcast fan-out, timeout
// notices, and the group chat copy of accepted offers. It satisfies the
// notifier interfaces of the broadcast, quotes, and offers packages.
type Notifier struct {
	bot         *telebot.Bot
	kb          *keyboard.Builder
	groupChatID int64
	log         *slog.Logger
}

// NewNotifier builds a Notifier over the running telebot instance.
func NewNotifier(tb *telebot.Bot, kb *keyboard.Builder, groupChatID int64, log *slog.Logger) *Notifier {
	if log == nil {
		log = slog.Default()
	}

	return &Notifier{
		bot:         tb,
		kb:          kb,
		groupChatID: groupChatID,
		log:         log,
	}
}

// SendQuoteRequest delivers a quote-request broadcast with the send/decline
// keyboard attached.
func (n *Notifier) SendQuoteRequest(telegramID int64, text string) error {
	return n.send(telegramID, text, n.kb.Notification())
}

// SendInfo delivers an informational broadcast without touching the
// recipient's keyboard.
func (n *Notifier) SendInfo(telegramID int64, text string) error {
	_, err := n.bot.Send(&telebot.User{ID: telegramID}, text)
	if err != nil {
		return apperrors.NewDeliveryError(telegramID, err)
	}
	return nil
}

// SendMainMenu delivers a terminal notice and restores the main menu.
func (n *Notifier) SendMainMenu(telegramID int64, text string) error {
	return n.send(telegramID, text, n.kb.MainMenu())
}

// NotifyGroup posts a message to the desk group chat.
func (n *Notifier) NotifyGroup(text string) error {
	if n.groupChatID == 0 {
		return fmt.Errorf("group chat is not configured")
	}

	_, err := n.bot.Send(&telebot.Chat{ID: n.groupChatID}, text)
	if err != nil {
		return apperrors.NewDeliveryError(n.groupChatID, err)
	}
	return nil
}

func (n *Notifier) send(telegramID int64, text string, markup *telebot.ReplyMarkup) error {
	_, err := n.bot.Send(&telebot.User{ID: telegramID}, text, markup)
	if err != nil {
		return apperrors.NewDeliveryError(telegramID, err)
	}
	return nil
}
