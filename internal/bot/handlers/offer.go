package handlers

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	telebot "gopkg.in/telebot.v3"

	"github.com/metals-desk/quotes-bot/internal/bot/keyboard"
	"github.com/metals-desk/quotes-bot/internal/domain"
	apperrors "github.com/metals-desk/quotes-bot/internal/errors"
	"github.com/metals-desk/quotes-bot/internal/offers"
	"github.com/metals-desk/quotes-bot/internal/state"
	"github.com/metals-desk/quotes-bot/internal/validation"
)

// NewOfferStartHandler opens the purchase offer form. Entry is gated on
// registration and on the offer gates (global flag, business hours,
// holidays); gate errors surface through the error middleware with their
// user-facing reason.
func NewOfferStartHandler(sessions state.Manager, svc *offers.Service, kb *keyboard.Builder, log *slog.Logger) Handler {
	if log == nil {
		log = slog.Default()
	}

	return func(c telebot.Context) error {
		if c == nil || c.Sender() == nil {
			return nil
		}

		if _, ok := ParticipantFrom(c); !ok {
			return c.Send("❌ Сначала пройдите регистрацию!", kb.Registration())
		}

		if err := svc.CheckAllowed(context.Background()); err != nil {
			return err
		}

		// a live response window can span the offer branch too, so the
		// deadline guard applies here the same as in the quote flow
		_, err := sessions.Update(context.Background(), c.Sender().ID, func(sess *state.Session) error {
			if err := guardDeadline(sess); err != nil {
				return err
			}
			sess.State = state.StateOfferCommodity
			sess.Offer = &state.OfferDraft{}
			return nil
		})
		if errors.Is(err, errQuoteExpired) {
			return c.Send(quoteExpiredText, kb.MainMenu())
		}
		if err != nil {
			return err
		}

		return c.Send("Выберите, пожалуйста, металл:", kb.Commodities(true))
	}
}

// NewOfferCommodityHandler accepts the commodity choice.
func NewOfferCommodityHandler(sessions state.Manager, flow *CancelFlow, kb *keyboard.Builder) Handler {
	return func(c telebot.Context) error {
		if c.Text() == keyboard.BtnCancel {
			return flow.CancelOffer(c)
		}

		commodity, ok := domain.CommodityFromTitle(c.Text())
		if !ok {
			return c.Send("❌ Выберите, пожалуйста, вариант из кнопок", kb.Commodities(true))
		}

		_, err := sessions.Update(context.Background(), c.Sender().ID, func(sess *state.Session) error {
			if err := guardDeadline(sess); err != nil {
				return err
			}
			sess.Offer.Commodity = commodity
			sess.State = state.StateOfferQuantity
			return nil
		})
		if errors.Is(err, errQuoteExpired) {
			return c.Send(quoteExpiredText, kb.MainMenu())
		}
		if err != nil {
			return err
		}

		return c.Send("Введите, пожалуйста, массу партии в кг (например: 100):", kb.Remove())
	}
}

// NewOfferQuantityHandler accepts the lot mass in kilograms.
func NewOfferQuantityHandler(sessions state.Manager, flow *CancelFlow, kb *keyboard.Builder) Handler {
	return func(c telebot.Context) error {
		if c.Text() == keyboard.BtnCancel {
			return flow.CancelOffer(c)
		}

		quantity, ok, reason := validation.OfferQuantity(c.Text())
		if !ok {
			return c.Send(fmt.Sprintf("❌ %s", reason), kb.Remove())
		}

		_, err := sessions.Update(context.Background(), c.Sender().ID, func(sess *state.Session) error {
			if err := guardDeadline(sess); err != nil {
				return err
			}
			sess.Offer.QuantityKg = quantity
			sess.State = state.StateOfferQuote
			return nil
		})
		if errors.Is(err, errQuoteExpired) {
			return c.Send(quoteExpiredText, kb.MainMenu())
		}
		if err != nil {
			return err
		}

		return c.Send(
			"Введите, пожалуйста, котировку в % (в случае премии число без знаков, например, 1.5 , а в случае дисконта число со знаком - : -0.5):",
			kb.Remove(),
		)
	}
}

// NewOfferQuoteHandler accepts the quote percent and submits the offer.
func NewOfferQuoteHandler(sessions state.Manager, svc *offers.Service, flow *CancelFlow, kb *keyboard.Builder, log *slog.Logger) Handler {
	if log == nil {
		log = slog.Default()
	}

	return func(c telebot.Context) error {
		if c.Text() == keyboard.BtnCancel {
			return flow.CancelOffer(c)
		}

		quote, ok, reason := validation.QuotePct(c.Text())
		if !ok {
			return c.Send(fmt.Sprintf("❌ %s\nПопробуйте еще раз:", reason), kb.Remove())
		}

		p, ok := ParticipantFrom(c)
		if !ok {
			return c.Send("❌ Ошибка: данные пользователя не найдены!", kb.Registration())
		}

		ctx := context.Background()
		telegramID := c.Sender().ID

		sess, err := sessions.Get(ctx, telegramID)
		if err != nil {
			return err
		}
		if err := guardDeadline(sess); err != nil {
			return c.Send(quoteExpiredText, kb.MainMenu())
		}
		if sess.Offer == nil {
			return flow.CancelOffer(c)
		}
		draft := sess.Offer

		if err := svc.Submit(ctx, p, draft.Commodity, draft.QuantityKg, quote); err != nil {
			// terminal rejections (daily cap, closed gate) end the form; a
			// store failure leaves the session in place so the same quote
			// can be resent
			var appErr *apperrors.AppError
			if errors.As(err, &appErr) && !appErr.Retryable {
				_ = sessions.Clear(ctx, telegramID)
			}
			return err
		}

		if err := sessions.Clear(ctx, telegramID); err != nil {
			return err
		}

		return c.Send(fmt.Sprintf(
			"✅ Спасибо! Ваше предложение принято:\n"+
				"• Металл: %s\n"+
				"• Масса: %g кг\n"+
				"• Котировка: %g%%",
			draft.Commodity.Title(), draft.QuantityKg, quote,
		), kb.MainMenu())
	}
}
