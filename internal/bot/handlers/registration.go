package handlers

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	telebot "gopkg.in/telebot.v3"

	"github.com/metals-desk/quotes-bot/internal/bot/keyboard"
	"github.com/metals-desk/quotes-bot/internal/domain"
	"github.com/metals-desk/quotes-bot/internal/participant"
	"github.com/metals-desk/quotes-bot/internal/state"
	"github.com/metals-desk/quotes-bot/internal/validation"
)

// NewRegistrationStartHandler opens the registration form for the
// "Регистрация" button.
func NewRegistrationStartHandler(sessions state.Manager, kb *keyboard.Builder, log *slog.Logger) Handler {
	if log == nil {
		log = slog.Default()
	}

	return func(c telebot.Context) error {
		if c == nil || c.Sender() == nil {
			return nil
		}

		if _, ok := ParticipantFrom(c); ok {
			return c.Send("Вы уже зарегистрированы!", kb.MainMenu())
		}

		_, err := sessions.Update(context.Background(), c.Sender().ID, func(sess *state.Session) error {
			sess.State = state.StateRegName
			sess.Registration = &state.RegistrationDraft{}
			return nil
		})
		if err != nil {
			return err
		}

		return c.Send(
			"Введите, пожалуйста, Ваше имя (только буквы и дефис, 3-25 символов):",
			kb.Remove(),
		)
	}
}

// NewRegNameHandler accepts the participant's name.
func NewRegNameHandler(sessions state.Manager, kb *keyboard.Builder) Handler {
	return func(c telebot.Context) error {
		ok, reason := validation.Name(c.Text())
		if !ok {
			return c.Send(fmt.Sprintf("❌ %s\nПопробуйте еще раз:", reason), kb.Remove())
		}

		name := strings.TrimSpace(c.Text())
		_, err := sessions.Update(context.Background(), c.Sender().ID, func(sess *state.Session) error {
			sess.Registration.Name = name
			sess.State = state.StateRegOrganization
			return nil
		})
		if err != nil {
			return err
		}

		return c.Send(
			"Спасибо! Теперь введите, пожалуйста, название Вашей организации (3-25 символов, можно использовать цифры и знаки препинания):",
			kb.Remove(),
		)
	}
}

// NewRegOrganizationHandler accepts the organization name.
func NewRegOrganizationHandler(sessions state.Manager, kb *keyboard.Builder) Handler {
	return func(c telebot.Context) error {
		ok, reason := validation.Organization(c.Text())
		if !ok {
			return c.Send(fmt.Sprintf("❌ %s\nПопробуйте еще раз:", reason), kb.Remove())
		}

		org := strings.TrimSpace(c.Text())
		_, err := sessions.Update(context.Background(), c.Sender().ID, func(sess *state.Session) error {
			sess.Registration.Organization = org
			sess.State = state.StateRegOrgType
			return nil
		})
		if err != nil {
			return err
		}

		return c.Send("Теперь выберите тип Вашей организации:", kb.OrgTypes())
	}
}

// NewRegOrgTypeHandler accepts one of the fixed organization types.
func NewRegOrgTypeHandler(sessions state.Manager, kb *keyboard.Builder) Handler {
	return func(c telebot.Context) error {
		if !domain.ValidOrgType(c.Text()) {
			return c.Send("❌ Пожалуйста, выберите тип Вашей организации из предложенных вариантов!", kb.OrgTypes())
		}

		orgType := c.Text()
		_, err := sessions.Update(context.Background(), c.Sender().ID, func(sess *state.Session) error {
			sess.Registration.OrgType = orgType
			sess.State = state.StateRegContacts
			return nil
		})
		if err != nil {
			return err
		}

		return c.Send(
			"Оставьте, пожалуйста, Ваши контакты (телефон/почта) или нажмите «Не указывать»:",
			kb.SkipContacts(),
		)
	}
}

// NewRegContactsHandler completes registration: contacts or an explicit
// skip, then the persisted participant record and the main menu.
func NewRegContactsHandler(
	sessions state.Manager,
	participants *participant.Service,
	kb *keyboard.Builder,
	log *slog.Logger,
) Handler {
	if log == nil {
		log = slog.Default()
	}

	return func(c telebot.Context) error {
		contacts := "Не указано"
		if c.Text() != keyboard.BtnSkipContacts {
			ok, reason := validation.Contacts(c.Text())
			if !ok {
				return c.Send(
					fmt.Sprintf("❌ %s\nПопробуйте, пожалуйста, еще раз или нажмите «Не указывать»:", reason),
					kb.SkipContacts(),
				)
			}
			contacts = strings.TrimSpace(c.Text())
		}

		ctx := context.Background()
		telegramID := c.Sender().ID

		sess, err := sessions.Get(ctx, telegramID)
		if err != nil {
			return err
		}
		if sess.Registration == nil {
			return c.Send("❌ Произошла ошибка при регистрации. Пожалуйста, попробуйте ещё раз.", kb.Registration())
		}

		draft := sess.Registration
		if _, err := participants.Register(ctx, telegramID, draft.Name, draft.Organization, draft.OrgType, contacts); err != nil {
			log.Error("registration failed",
				slog.Int64("telegram_id", telegramID),
				slog.Any("error", err),
			)
			return c.Send("❌ Произошла ошибка при регистрации. Пожалуйста, попробуйте ещё раз.", kb.SkipContacts())
		}

		if err := sessions.Clear(ctx, telegramID); err != nil {
			return err
		}

		return c.Send(
			"✅ Отлично, регистрация завершена! Теперь вы можете направлять запросы о покупке драгоценных металлов и, по желанию, предоставлять котировки! Желаем Вам хорошего дня!",
			kb.MainMenu(),
		)
	}
}
