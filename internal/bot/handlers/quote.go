package handlers

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	telebot "gopkg.in/telebot.v3"

	"github.com/metals-desk/quotes-bot/internal/bot/keyboard"
	"github.com/metals-desk/quotes-bot/internal/domain"
	"github.com/metals-desk/quotes-bot/internal/quotes"
	"github.com/metals-desk/quotes-bot/internal/state"
	"github.com/metals-desk/quotes-bot/internal/validation"
)

const quoteExpiredText = "⌛ Время для предоставления котировок вышло!"

// errQuoteExpired aborts a session mutation whose deadline has passed. The
// expired rows themselves are written by the deadline finalizer, never here.
var errQuoteExpired = errors.New("quote session expired")

func guardDeadline(sess *state.Session) error {
	if sess.TimedOut || sess.Expired(time.Now()) {
		return errQuoteExpired
	}
	return nil
}

// NewQuoteStartHandler enters the quote flow for the "📈 Отправить
// котировки" button.
func NewQuoteStartHandler(sessions state.Manager, kb *keyboard.Builder) Handler {
	return func(c telebot.Context) error {
		if c == nil || c.Sender() == nil {
			return nil
		}

		if _, ok := ParticipantFrom(c); !ok {
			return c.Send("❌ Сначала пройдите регистрацию!", kb.Registration())
		}

		_, err := sessions.Update(context.Background(), c.Sender().ID, func(sess *state.Session) error {
			if err := guardDeadline(sess); err != nil {
				return err
			}
			if sess.Quote == nil {
				sess.Quote = &state.QuoteDraft{}
			}
			sess.State = state.StateQuoteCommodity
			return nil
		})
		if errors.Is(err, errQuoteExpired) {
			return c.Send(quoteExpiredText, kb.MainMenu())
		}
		if err != nil {
			return err
		}

		return c.Send(
			"Выберите, пожалуйста, первый металл для предоставления котировок. Котировку по второму металлу можно будет предоставить на следующем этапе:",
			kb.Commodities(false),
		)
	}
}

// NewQuoteCommodityHandler accepts the commodity whose quote comes next.
func NewQuoteCommodityHandler(sessions state.Manager, kb *keyboard.Builder) Handler {
	return func(c telebot.Context) error {
		commodity, ok := domain.CommodityFromTitle(c.Text())
		if !ok {
			return c.Send("❌ Выберите, пожалуйста, вариант из кнопок!", kb.Commodities(false))
		}

		_, err := sessions.Update(context.Background(), c.Sender().ID, func(sess *state.Session) error {
			if err := guardDeadline(sess); err != nil {
				return err
			}
			sess.Quote.Commodity = commodity
			sess.State = state.StateQuoteValue
			return nil
		})
		if errors.Is(err, errQuoteExpired) {
			return c.Send(quoteExpiredText, kb.MainMenu())
		}
		if err != nil {
			return err
		}

		return c.Send(
			"Введите, пожалуйста, котировку в % (в случае премии число без знаков, например, 1.5, а в случае дисконта число со знаком - : -0.5):",
			kb.Remove(),
		)
	}
}

// NewQuoteValueHandler accepts a numeric quote, persists it immediately,
// and either opens the second-commodity prompt or completes the session.
func NewQuoteValueHandler(
	sessions state.Manager,
	svc *quotes.Service,
	flow *CancelFlow,
	kb *keyboard.Builder,
	log *slog.Logger,
) Handler {
	if log == nil {
		log = slog.Default()
	}

	return func(c telebot.Context) error {
		if c.Text() == keyboard.BtnCancel {
			return flow.CancelOffer(c)
		}

		value, ok, reason := validation.QuotePct(c.Text())
		if !ok {
			return c.Send(fmt.Sprintf("❌ %s\nПопробуйте еще раз:", reason), kb.Remove())
		}

		p, ok := ParticipantFrom(c)
		if !ok {
			return c.Send("❌ Ошибка: данные пользователя не найдены!", kb.Registration())
		}

		ctx := context.Background()
		telegramID := c.Sender().ID

		var (
			answered domain.Commodity
			next     domain.Commodity
			done     bool
		)

		// the deadline guard, the persist, and the draft mutation share the
		// participant lock with the timeout finalizer, so a fired timer can
		// never see this commodity as unanswered once the row is written. A
		// store failure aborts the mutation: the session stays in the value
		// state and the participant can resend the same quote.
		_, err := sessions.Update(ctx, telegramID, func(sess *state.Session) error {
			if err := guardDeadline(sess); err != nil {
				return err
			}
			if sess.Quote == nil || sess.Quote.Commodity == "" {
				return errors.New("quote draft missing commodity")
			}

			answered = sess.Quote.Commodity
			if err := svc.RecordValue(ctx, p, answered, value); err != nil {
				return err
			}

			sess.Quote.Answered = append(sess.Quote.Answered, answered)
			sess.Quote.Commodity = ""

			remaining := sess.Quote.Unanswered()
			if len(remaining) == 0 || sess.Quote.PendingSecond != "" {
				done = true
				return nil
			}

			next = remaining[0]
			sess.Quote.PendingSecond = next
			sess.State = state.StateQuoteSecond
			return nil
		})
		if errors.Is(err, errQuoteExpired) {
			return c.Send(quoteExpiredText, kb.MainMenu())
		}
		if err != nil {
			return err
		}

		if done {
			if err := svc.Complete(ctx, telegramID); err != nil {
				return err
			}
			return c.Send("✅ Спасибо! Обе котировки сохранены! Хорошего Вам дня!", kb.MainMenu())
		}

		return c.Send(fmt.Sprintf(
			"✅ Спасибо, котировка на %s сохранена!\nХотите отправить котировку на %s?",
			answered.Title(), next.Title(),
		), kb.YesNo())
	}
}

// NewQuoteSecondHandler handles the yes/no prompt for the second commodity.
func NewQuoteSecondHandler(
	sessions state.Manager,
	svc *quotes.Service,
	kb *keyboard.Builder,
	log *slog.Logger,
) Handler {
	if log == nil {
		log = slog.Default()
	}

	return func(c telebot.Context) error {
		p, ok := ParticipantFrom(c)
		if !ok {
			return c.Send("❌ Ошибка: данные пользователя не найдены!", kb.Registration())
		}

		ctx := context.Background()
		telegramID := c.Sender().ID

		switch c.Text() {
		case keyboard.BtnNo:
			var second domain.Commodity
			_, err := sessions.Update(ctx, telegramID, func(sess *state.Session) error {
				if err := guardDeadline(sess); err != nil {
					return err
				}
				if sess.Quote == nil || sess.Quote.PendingSecond == "" {
					return errors.New("no pending second commodity")
				}
				second = sess.Quote.PendingSecond
				if err := svc.RecordDecline(ctx, p, second); err != nil {
					return err
				}
				sess.Quote.Answered = append(sess.Quote.Answered, second)
				return nil
			})
			if errors.Is(err, errQuoteExpired) {
				return c.Send(quoteExpiredText, kb.MainMenu())
			}
			if err != nil {
				return err
			}

			if err := svc.Complete(ctx, telegramID); err != nil {
				return err
			}

			return c.Send("Спасибо за предоставленную котировку! Желаем хорошего дня!", kb.MainMenu())

		case keyboard.BtnYes:
			var second domain.Commodity
			_, err := sessions.Update(ctx, telegramID, func(sess *state.Session) error {
				if err := guardDeadline(sess); err != nil {
					return err
				}
				if sess.Quote == nil || sess.Quote.PendingSecond == "" {
					return errors.New("no pending second commodity")
				}
				second = sess.Quote.PendingSecond
				sess.Quote.Commodity = second
				sess.State = state.StateQuoteValue
				return nil
			})
			if errors.Is(err, errQuoteExpired) {
				return c.Send(quoteExpiredText, kb.MainMenu())
			}
			if err != nil {
				return err
			}

			return c.Send(fmt.Sprintf("Введите котировку для %s в %%:", second.Title()), kb.Remove())

		default:
			return c.Send("Пожалуйста, используйте кнопки для ответа", kb.YesNo())
		}
	}
}

// NewQuoteDeclineHandler handles the "🚫 Не отправлять котировки" button:
// declined rows for every commodity not yet answered, then session end. The
// rows are written under the participant lock so a deadline firing at the
// same moment cannot double-record the commodities as expired.
func NewQuoteDeclineHandler(
	sessions state.Manager,
	svc *quotes.Service,
	kb *keyboard.Builder,
	log *slog.Logger,
) Handler {
	if log == nil {
		log = slog.Default()
	}

	return func(c telebot.Context) error {
		if c == nil || c.Sender() == nil {
			return nil
		}

		p, ok := ParticipantFrom(c)
		if !ok {
			return c.Send("❌ Сначала пройдите регистрацию!", kb.Registration())
		}

		if _, err := svc.DeclineRemaining(context.Background(), p, true); err != nil {
			if errors.Is(err, quotes.ErrSessionExpired) {
				return c.Send(quoteExpiredText, kb.MainMenu())
			}
			return err
		}

		return c.Send("Очень жаль! Желаем Вам хорошего дня!", kb.MainMenu())
	}
}
