// Package state manages per-participant conversational sessions for the bot.
package state

import "context"

// Storage defines the persistence contract for participant sessions.
type Storage interface {
	// GetSession returns the stored session for the participant.
	GetSession(ctx context.Context, telegramID int64) (*Session, error)
	// SetSession saves the provided session for the participant.
	SetSession(ctx context.Context, telegramID int64, session *Session) error
	// ClearSession removes the session for the participant.
	ClearSession(ctx context.Context, telegramID int64) error
	// AllSessions returns every stored session.
	AllSessions(ctx context.Context) ([]*Session, error)
}
