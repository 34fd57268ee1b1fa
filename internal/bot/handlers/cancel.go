package handlers

import (
	"context"
	"errors"
	"log/slog"

	telebot "gopkg.in/telebot.v3"

	"github.com/metals-desk/quotes-bot/internal/bot/keyboard"
	"github.com/metals-desk/quotes-bot/internal/quotes"
)

// CancelFlow terminates an in-flight form: the deadline timer (if any) is
// cancelled, the session cleared, and the participant returned to the menu.
// A cancel inside a live response window counts as a refusal, so the
// commodities not answered yet are recorded as declined before the session
// ends.
type CancelFlow struct {
	quotes *quotes.Service
	kb     *keyboard.Builder
	log    *slog.Logger
}

func NewCancelFlow(quotesSvc *quotes.Service, kb *keyboard.Builder, log *slog.Logger) *CancelFlow {
	if log == nil {
		log = slog.Default()
	}

	return &CancelFlow{quotes: quotesSvc, kb: kb, log: log}
}

// CancelOffer handles the "❌ Отмена" button inside a form.
func (f *CancelFlow) CancelOffer(c telebot.Context) error {
	return f.end(c, "❌ Очень жаль, что вы отказались предоставить предложение. Хорошего Вам дня")
}

// Command handles the /cancel command from any state.
func (f *CancelFlow) Command(c telebot.Context) error {
	return f.end(c, "Действие отменено.")
}

func (f *CancelFlow) end(c telebot.Context, text string) error {
	if c == nil || c.Sender() == nil {
		return nil
	}

	ctx := context.Background()
	telegramID := c.Sender().ID

	markup := f.kb.Registration()
	if p, ok := ParticipantFrom(c); ok {
		markup = f.kb.MainMenu()

		_, err := f.quotes.DeclineRemaining(ctx, p, false)
		if errors.Is(err, quotes.ErrSessionExpired) {
			return c.Send(quoteExpiredText, markup)
		}
		if err != nil {
			f.log.Error("failed to end session on cancel",
				slog.Int64("telegram_id", telegramID),
				slog.Any("error", err),
			)
			return err
		}

		return c.Send(text, markup)
	}

	if err := f.quotes.Complete(ctx, telegramID); err != nil {
		f.log.Error("failed to clear session on cancel",
			slog.Int64("telegram_id", telegramID),
			slog.Any("error", err),
		)
		return err
	}

	return c.Send(text, markup)
}
