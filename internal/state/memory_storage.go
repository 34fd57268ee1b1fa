package state

import (
	"context"
	"sync"
	"time"
)

// MemoryStorage keeps sessions in process memory. Sessions are ephemeral by
// design: a restart drops all in-flight conversations.
type MemoryStorage struct {
	mu       sync.RWMutex
	sessions map[int64]*Session
}

// NewMemoryStorage initializes an empty in-memory Storage implementation.
func NewMemoryStorage() *MemoryStorage {
	return &MemoryStorage{
		sessions: make(map[int64]*Session),
	}
}

// GetSession returns a copy of the stored session or ErrSessionNotFound.
func (s *MemoryStorage) GetSession(_ context.Context, telegramID int64) (*Session, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	session, ok := s.sessions[telegramID]
	if !ok {
		return nil, ErrSessionNotFound
	}

	return session.Clone(), nil
}

// SetSession stores a copy of the provided session.
func (s *MemoryStorage) SetSession(_ context.Context, telegramID int64, session *Session) error {
	if session == nil {
		return ErrNilSession
	}

	copied := session.Clone()
	copied.TelegramID = telegramID
	copied.UpdatedAt = time.Now().UTC()

	s.mu.Lock()
	s.sessions[telegramID] = copied
	s.mu.Unlock()

	return nil
}

// ClearSession removes the session for the participant. Clearing an absent
// session is a no-op.
func (s *MemoryStorage) ClearSession(_ context.Context, telegramID int64) error {
	s.mu.Lock()
	delete(s.sessions, telegramID)
	s.mu.Unlock()

	return nil
}

// AllSessions returns copies of every stored session.
func (s *MemoryStorage) AllSessions(_ context.Context) ([]*Session, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]*Session, 0, len(s.sessions))
	for _, session := range s.sessions {
		out = append(out, session.Clone())
	}

	return out, nil
}
