package state

import (
	"context"
	"errors"
	"log/slog"
	"sync"
)

var (
	// ErrInvalidTransition indicates that a requested FSM transition is not allowed.
	ErrInvalidTransition = errors.New("invalid state transition")
	// ErrSessionNotFound indicates that a session record does not exist.
	ErrSessionNotFound = errors.New("session not found")
	// ErrNilSession indicates an attempt to store a nil session.
	ErrNilSession = errors.New("session must not be nil")
)

var transitionRecorder = func(from, to string) {}

// RegisterTransitionRecorder allows external packages to observe FSM transitions.
func RegisterTransitionRecorder(recorder func(from, to string)) {
	if recorder == nil {
		transitionRecorder = func(string, string) {}
		return
	}

	transitionRecorder = recorder
}

// Manager serializes all session operations per participant. Reads used to
// decide whether to act and the subsequent mutation are atomic with respect
// to other operations on the same participant; different participants
// proceed independently.
type Manager interface {
	// Get returns the participant's session, creating the default idle
	// session when absent.
	Get(ctx context.Context, telegramID int64) (*Session, error)
	// Update runs mutate on the participant's session under the participant
	// lock and persists the result. When mutate changes the state the
	// transition is validated against the FSM table.
	Update(ctx context.Context, telegramID int64, mutate func(*Session) error) (*Session, error)
	// Clear resets the participant to the default idle session. It does not
	// touch deadline timers; callers cancel those explicitly.
	Clear(ctx context.Context, telegramID int64) error
	// All returns every live session.
	All(ctx context.Context) ([]*Session, error)
}

type manager struct {
	storage Storage
	log     *slog.Logger

	mu    sync.Mutex
	locks map[int64]*sync.Mutex
}

// NewManager creates a session manager using the provided storage backend.
func NewManager(storage Storage, log *slog.Logger) Manager {
	if log == nil {
		log = slog.Default()
	}

	return &manager{
		storage: storage,
		log:     log,
		locks:   make(map[int64]*sync.Mutex),
	}
}

func (m *manager) Get(ctx context.Context, telegramID int64) (*Session, error) {
	lock := m.participantLock(telegramID)
	lock.Lock()
	defer lock.Unlock()

	return m.load(ctx, telegramID)
}

func (m *manager) Update(ctx context.Context, telegramID int64, mutate func(*Session) error) (*Session, error) {
	if mutate == nil {
		return nil, errors.New("mutate fn must not be nil")
	}

	lock := m.participantLock(telegramID)
	lock.Lock()
	defer lock.Unlock()

	session, err := m.load(ctx, telegramID)
	if err != nil {
		return nil, err
	}

	before := session.State
	if err := mutate(session); err != nil {
		return nil, err
	}

	if session.State != before && !IsTransitionAllowed(before, session.State) {
		m.log.Warn("invalid state transition",
			slog.Int64("telegram_id", telegramID),
			slog.String("from", string(before)),
			slog.String("to", string(session.State)),
		)
		return nil, ErrInvalidTransition
	}

	if session.State != before {
		transitionRecorder(string(before), string(session.State))
	}

	if err := m.storage.SetSession(ctx, telegramID, session); err != nil {
		return nil, err
	}

	return session, nil
}

func (m *manager) Clear(ctx context.Context, telegramID int64) error {
	lock := m.participantLock(telegramID)
	lock.Lock()
	defer lock.Unlock()

	return m.storage.ClearSession(ctx, telegramID)
}

func (m *manager) All(ctx context.Context) ([]*Session, error) {
	return m.storage.AllSessions(ctx)
}

func (m *manager) load(ctx context.Context, telegramID int64) (*Session, error) {
	session, err := m.storage.GetSession(ctx, telegramID)
	if err != nil {
		if errors.Is(err, ErrSessionNotFound) {
			return NewSession(telegramID), nil
		}
		return nil, err
	}

	return session, nil
}

func (m *manager) participantLock(telegramID int64) *sync.Mutex {
	m.mu.Lock()
	defer m.mu.Unlock()

	lock, ok := m.locks[telegramID]
	if !ok {
		lock = &sync.Mutex{}
		m.locks[telegramID] = lock
	}

	return lock
}
