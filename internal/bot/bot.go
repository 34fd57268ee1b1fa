package bot

import (
	"fmt"
	"log/slog"

	telebot "gopkg.in/telebot.v3"

	"github.com/metals-desk/quotes-bot/internal/bot/handlers"
	"github.com/metals-desk/quotes-bot/internal/bot/keyboard"
	errors "github.com/metals-desk/quotes-bot/internal/errors"
	"github.com/metals-desk/quotes-bot/internal/idempotency"
	"github.com/metals-desk/quotes-bot/internal/middleware"
	"github.com/metals-desk/quotes-bot/internal/offers"
	"github.com/metals-desk/quotes-bot/internal/participant"
	"github.com/metals-desk/quotes-bot/internal/quotes"
	"github.com/metals-desk/quotes-bot/internal/state"
	"github.com/metals-desk/quotes-bot/pkg/config"
)

// Bot wraps telebot.Bot with the routing layer for the conversation flows.
type Bot struct {
	telebot    *telebot.Bot
	log        *slog.Logger
	cfg        config.Config
	router     *Router
	dispatcher *Dispatcher
	keyboard   *keyboard.Builder
	errHandler *errors.Handler
}

// Deps carries the services the handlers are wired against.
type Deps struct {
	Sessions     state.Manager
	Participants *participant.Service
	Offers       *offers.Service
	Quotes       *quotes.Service
	Idempotency  idempotency.Manager
	RateLimit    *middleware.RateLimitMiddleware
}

// New builds a telegram bot instance configured according to the
// application settings. Handlers are registered separately via Setup once
// the services (which themselves need the bot's notifier) exist.
func New(cfg config.Config, log *slog.Logger) (*Bot, error) {
	settings := telebot.Settings{
		Token: cfg.Bot.Token,
	}

	if cfg.Bot.Mode == "webhook" {
		settings.Poller = &telebot.Webhook{
			Listen: cfg.Server.Port,
		}
	} else {
		settings.Poller = &telebot.LongPoller{
			Timeout: cfg.Bot.Timeout,
		}
	}

	tb, err := telebot.NewBot(settings)
	if err != nil {
		return nil, fmt.Errorf("initialize telebot: %w", err)
	}

	return &Bot{
		telebot:    tb,
		log:        log,
		cfg:        cfg,
		keyboard:   keyboard.NewBuilder(),
		errHandler: errors.NewHandler(log, cfg.Sentry.Enabled),
	}, nil
}

// Setup wires the middleware chain, the command and button tables, and the
// per-state handlers.
func (b *Bot) Setup(deps Deps) {
	b.dispatcher = NewDispatcher(deps.Sessions, b.log)
	b.router = NewRouter(b.dispatcher, b.log)

	b.router.Use(RecoveryMiddleware(b.log, b.errHandler))
	b.router.Use(middleware.Idempotency(deps.Idempotency, b.log))
	b.router.Use(ErrorHandlingMiddleware(b.errHandler))
	b.router.Use(LoggingMiddleware(b.log))
	b.router.Use(StalenessMiddleware(b.cfg.Bot.StaleAfter, b.log))
	b.router.Use(AuthMiddleware(deps.Participants, b.log))
	b.router.Use(middleware.Metrics)

	kb := b.keyboard
	flow := handlers.NewCancelFlow(deps.Quotes, kb, b.log)

	b.router.RegisterCommand(CommandStart, handlers.NewStartHandler(kb, b.log))
	b.router.RegisterCommand(CommandCancel, flow.Command)

	b.router.RegisterButton(keyboard.BtnRegister, handlers.NewRegistrationStartHandler(deps.Sessions, kb, b.log))
	b.router.RegisterButton(keyboard.BtnNewOffer, handlers.NewOfferStartHandler(deps.Sessions, deps.Offers, kb, b.log))
	b.router.RegisterButton(keyboard.BtnSendQuotes, handlers.NewQuoteStartHandler(deps.Sessions, kb))
	b.router.RegisterButton(keyboard.BtnDeclineQuotes, handlers.NewQuoteDeclineHandler(deps.Sessions, deps.Quotes, kb, b.log))

	b.dispatcher.RegisterStateHandler(state.StateRegName, handlers.NewRegNameHandler(deps.Sessions, kb))
	b.dispatcher.RegisterStateHandler(state.StateRegOrganization, handlers.NewRegOrganizationHandler(deps.Sessions, kb))
	b.dispatcher.RegisterStateHandler(state.StateRegOrgType, handlers.NewRegOrgTypeHandler(deps.Sessions, kb))
	b.dispatcher.RegisterStateHandler(state.StateRegContacts, handlers.NewRegContactsHandler(deps.Sessions, deps.Participants, kb, b.log))

	b.dispatcher.RegisterStateHandler(state.StateOfferCommodity, handlers.NewOfferCommodityHandler(deps.Sessions, flow, kb))
	b.dispatcher.RegisterStateHandler(state.StateOfferQuantity, handlers.NewOfferQuantityHandler(deps.Sessions, flow, kb))
	b.dispatcher.RegisterStateHandler(state.StateOfferQuote, handlers.NewOfferQuoteHandler(deps.Sessions, deps.Offers, flow, kb, b.log))

	b.dispatcher.RegisterStateHandler(state.StateQuoteCommodity, handlers.NewQuoteCommodityHandler(deps.Sessions, kb))
	b.dispatcher.RegisterStateHandler(state.StateQuoteValue, handlers.NewQuoteValueHandler(deps.Sessions, deps.Quotes, flow, kb, b.log))
	b.dispatcher.RegisterStateHandler(state.StateQuoteSecond, handlers.NewQuoteSecondHandler(deps.Sessions, deps.Quotes, kb, b.log))

	if deps.RateLimit != nil {
		b.telebot.Use(deps.RateLimit.Handle)
	}

	b.telebot.Handle(telebot.OnText, b.router.Route)
}

// Start runs the telegram bot event loop.
func (b *Bot) Start() {
	if b.telebot != nil {
		b.telebot.Start()
	}
}

// Stop gracefully stops the telegram bot.
func (b *Bot) Stop() {
	if b.telebot == nil {
		return
	}

	if b.log != nil {
		b.log.Info("stopping telegram bot...")
	}

	b.telebot.Stop()
}

// Telebot exposes the underlying telebot.Bot instance for integrations
// such as the notifier and health checks.
func (b *Bot) Telebot() *telebot.Bot {
	return b.telebot
}

// Keyboard exposes the shared keyboard builder.
func (b *Bot) Keyboard() *keyboard.Builder {
	return b.keyboard
}
