package middleware

import (
	"strings"
	"time"

	telebot "gopkg.in/telebot.v3"

	"github.com/metals-desk/quotes-bot/internal/bot/handlers"
	"github.com/metals-desk/quotes-bot/internal/bot/keyboard"
	"github.com/metals-desk/quotes-bot/pkg/metrics"
)

// Metrics measures execution time and status for bot handlers, reporting them to Prometheus.
func Metrics(next handlers.Handler) handlers.Handler {
	if next == nil {
		return nil
	}

	return func(c telebot.Context) error {
		start := time.Now()
		err := next(c)

		action := extractAction(c)
		status := "ok"
		if err != nil {
			status = "error"
		}

		metrics.RecordUpdate(action, status, time.Since(start))

		return err
	}
}

// extractAction keeps the label space bounded: commands and button labels
// pass through, free-form input collapses to "text".
func extractAction(c telebot.Context) string {
	if c == nil {
		return "unknown"
	}

	text := c.Text()
	switch {
	case text == "":
		return "unknown"
	case strings.HasPrefix(text, "/"):
		return strings.Fields(text)[0]
	case knownButtons[text]:
		return text
	default:
		return "text"
	}
}

var knownButtons = map[string]bool{
	keyboard.BtnRegister:      true,
	keyboard.BtnNewOffer:      true,
	keyboard.BtnSendQuotes:    true,
	keyboard.BtnDeclineQuotes: true,
	keyboard.BtnCancel:        true,
	keyboard.BtnSkipContacts:  true,
	keyboard.BtnYes:           true,
	keyboard.BtnNo:            true,
}
