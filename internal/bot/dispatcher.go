package bot

import (
	"context"
	"log/slog"
	"sync"

	telebot "gopkg.in/telebot.v3"

	"github.com/metals-desk/quotes-bot/internal/bot/handlers"
	"github.com/metals-desk/quotes-bot/internal/state"
)

// Dispatcher routes incoming updates to state-specific handlers.
type Dispatcher struct {
	sessions      state.Manager
	stateHandlers map[state.State]handlers.Handler
	log           *slog.Logger
	mu            sync.RWMutex
}

// NewDispatcher creates a Dispatcher with an empty handlers registry.
func NewDispatcher(sessions state.Manager, log *slog.Logger) *Dispatcher {
	if log == nil {
		log = slog.Default()
	}

	return &Dispatcher{
		sessions:      sessions,
		stateHandlers: make(map[state.State]handlers.Handler),
		log:           log,
	}
}

// RegisterStateHandler registers a handler for the provided state.
func (d *Dispatcher) RegisterStateHandler(s state.State, h handlers.Handler) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.stateHandlers[s] = h
}

// Lookup returns the handler registered for the sender's current state,
// or nil when the session is idle or has no registered handler.
func (d *Dispatcher) Lookup(c telebot.Context) (handlers.Handler, error) {
	if c == nil || c.Sender() == nil {
		return nil, nil
	}

	session, err := d.sessions.Get(context.Background(), c.Sender().ID)
	if err != nil {
		return nil, err
	}

	return d.getHandler(session.State), nil
}

func (d *Dispatcher) getHandler(s state.State) handlers.Handler {
	d.mu.RLock()
	defer d.mu.RUnlock()
	return d.stateHandlers[s]
}
