package bot

import (
	"context"
	stdErrors "errors"
	"fmt"
	"log/slog"
	"runtime/debug"
	"time"

	telebot "gopkg.in/telebot.v3"

	"github.com/metals-desk/quotes-bot/internal/bot/handlers"
	errors "github.com/metals-desk/quotes-bot/internal/errors"
	"github.com/metals-desk/quotes-bot/internal/participant"
)

// RecoveryMiddleware catches panics, reports them via the centralized handler, and notifies the user.
func RecoveryMiddleware(log *slog.Logger, errHandler *errors.Handler) handlers.Middleware {
	if log == nil {
		log = slog.Default()
	}

	return func(next handlers.Handler) handlers.Handler {
		if next == nil {
			return nil
		}

		return func(c telebot.Context) (err error) {
			defer func() {
				if r := recover(); r != nil {
					log.Error("panic recovered in handler", slog.Any("panic", r), slog.String("stack", string(debug.Stack())))

					userMsg := "Произошла ошибка. Попробуйте позже"
					if errHandler != nil {
						appErr := errors.NewStateError(fmt.Sprintf("panic recovered: %v", r))
						if msg, _ := errHandler.Handle(context.Background(), appErr); msg != "" {
							userMsg = msg
						}
					}

					if c != nil {
						if sendErr := c.Send(userMsg); sendErr != nil {
							log.Error("failed to notify user about panic", slog.Any("error", sendErr))
						}
					}

					err = nil
				}
			}()

			return next(c)
		}
	}
}

// ErrorHandlingMiddleware centralizes error reporting and user messaging for handler failures.
func ErrorHandlingMiddleware(errHandler *errors.Handler) handlers.Middleware {
	return func(next handlers.Handler) handlers.Handler {
		if next == nil {
			return nil
		}

		return func(c telebot.Context) error {
			err := next(c)
			if err == nil {
				return nil
			}

			userMsg := "Произошла ошибка. Попробуйте позже"
			if errHandler != nil {
				if msg, _ := errHandler.Handle(context.Background(), err); msg != "" {
					userMsg = msg
				}
			}

			if c != nil {
				_ = c.Send(userMsg)
			}

			return nil
		}
	}
}

// LoggingMiddleware logs basic telemetry about incoming updates.
func LoggingMiddleware(log *slog.Logger) handlers.Middleware {
	if log == nil {
		log = slog.Default()
	}

	return func(next handlers.Handler) handlers.Handler {
		if next == nil {
			return nil
		}

		return func(c telebot.Context) error {
			start := time.Now()
			userID := int64(0)
			if c != nil && c.Sender() != nil {
				userID = c.Sender().ID
			}

			action := ""
			if c != nil {
				action = c.Text()
			}

			err := next(c)
			log.Info("handled update",
				slog.Int64("telegram_id", userID),
				slog.String("action", action),
				slog.Duration("duration", time.Since(start)),
				slog.Any("error", err),
			)

			return err
		}
	}
}

// StalenessMiddleware drops messages older than maxAge. Telegram redelivers
// queued updates after an outage; reacting to them would reopen long-dead
// conversations.
func StalenessMiddleware(maxAge time.Duration, log *slog.Logger) handlers.Middleware {
	if log == nil {
		log = slog.Default()
	}

	return func(next handlers.Handler) handlers.Handler {
		if next == nil {
			return nil
		}

		return func(c telebot.Context) error {
			if maxAge <= 0 || c == nil {
				return next(c)
			}

			msg := c.Message()
			if msg == nil || msg.Unixtime == 0 {
				return next(c)
			}

			if age := time.Since(msg.Time()); age > maxAge {
				userID := int64(0)
				if c.Sender() != nil {
					userID = c.Sender().ID
				}
				log.Info("dropped stale message",
					slog.Int64("telegram_id", userID),
					slog.Duration("age", age),
				)
				return nil
			}

			return next(c)
		}
	}
}

// AuthMiddleware resolves the sender's registration and attaches the
// participant record to the update context. Unregistered senders pass
// through: registration itself must remain reachable.
func AuthMiddleware(participants *participant.Service, log *slog.Logger) handlers.Middleware {
	if log == nil {
		log = slog.Default()
	}

	return func(next handlers.Handler) handlers.Handler {
		if next == nil {
			return nil
		}

		return func(c telebot.Context) error {
			if participants == nil || c == nil || c.Sender() == nil {
				return next(c)
			}

			p, err := participants.Get(context.Background(), c.Sender().ID)
			if err == nil {
				handlers.SetParticipant(c, p)
			} else if !stdErrors.Is(err, participant.ErrNotRegistered) {
				log.Warn("participant lookup failed",
					slog.Int64("telegram_id", c.Sender().ID),
					slog.Any("error", err),
				)
			}

			return next(c)
		}
	}
}
