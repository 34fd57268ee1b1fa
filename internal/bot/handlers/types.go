package handlers

import (
	telebot "gopkg.in/telebot.v3"

	"github.com/metals-desk/quotes-bot/internal/domain"
)

// Handler processes one incoming update.
type Handler func(c telebot.Context) error

// Middleware wraps handlers with additional behavior.
type Middleware func(Handler) Handler

const participantKey = "participant"

// SetParticipant stores the resolved participant on the update context.
func SetParticipant(c telebot.Context, p *domain.Participant) {
	c.Set(participantKey, p)
}

// ParticipantFrom returns the participant resolved by the auth middleware,
// or false when the sender is not registered.
func ParticipantFrom(c telebot.Context) (*domain.Participant, bool) {
	p, ok := c.Get(participantKey).(*domain.Participant)
	return p, ok && p != nil
}
