package bot

import (
	"log/slog"
	"strings"
	"sync"

	telebot "gopkg.in/telebot.v3"

	"github.com/metals-desk/quotes-bot/internal/bot/handlers"
)

// Router dispatches commands, menu buttons, and state-aware updates.
//
// Resolution order mirrors the conversation design: slash commands first,
// then the global menu buttons (which may interrupt an in-flight form),
// then the handler bound to the sender's current state. Unmatched idle
// text is dropped.
type Router struct {
	mu          sync.RWMutex
	commands    map[string]handlers.Handler
	buttons     map[string]handlers.Handler
	dispatcher  *Dispatcher
	middlewares []handlers.Middleware
	log         *slog.Logger
}

// NewRouter builds a Router with empty registries.
func NewRouter(dispatcher *Dispatcher, log *slog.Logger) *Router {
	if log == nil {
		log = slog.Default()
	}

	return &Router{
		commands:    make(map[string]handlers.Handler),
		buttons:     make(map[string]handlers.Handler),
		dispatcher:  dispatcher,
		middlewares: make([]handlers.Middleware, 0),
		log:         log,
	}
}

// RegisterCommand registers a handler for a bot command.
func (r *Router) RegisterCommand(cmd string, h handlers.Handler) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.commands[cmd] = h
}

// RegisterButton registers a handler for an exact reply-keyboard label.
func (r *Router) RegisterButton(label string, h handlers.Handler) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.buttons[label] = h
}

// Use appends a middleware to the chain.
func (r *Router) Use(mw handlers.Middleware) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.middlewares = append(r.middlewares, mw)
}

// Route directs the incoming update to the appropriate handler.
func (r *Router) Route(c telebot.Context) error {
	if c == nil {
		return nil
	}

	text := c.Text()

	if strings.HasPrefix(text, "/") {
		if handler := r.lookup(r.commands, strings.Fields(text)[0]); handler != nil {
			return r.executeHandler(handler, c)
		}
	}

	if handler := r.lookup(r.buttons, text); handler != nil {
		return r.executeHandler(handler, c)
	}

	handler, err := r.dispatcher.Lookup(c)
	if err != nil {
		return err
	}
	if handler != nil {
		return r.executeHandler(handler, c)
	}

	r.log.Debug("unrouted update dropped", slog.String("text", text))
	return nil
}

func (r *Router) lookup(registry map[string]handlers.Handler, key string) handlers.Handler {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return registry[key]
}

func (r *Router) executeHandler(h handlers.Handler, c telebot.Context) error {
	wrapped := r.applyMiddlewares(h)
	if wrapped == nil {
		return nil
	}
	return wrapped(c)
}

// applyMiddlewares wraps the handler with all registered middlewares.
func (r *Router) applyMiddlewares(h handlers.Handler) handlers.Handler {
	if h == nil {
		return nil
	}

	middlewares := r.middlewaresSnapshot()
	wrapped := h
	for i := len(middlewares) - 1; i >= 0; i-- {
		wrapped = middlewares[i](wrapped)
	}

	return wrapped
}

func (r *Router) middlewaresSnapshot() []handlers.Middleware {
	r.mu.RLock()
	defer r.mu.RUnlock()

	if len(r.middlewares) == 0 {
		return nil
	}

	snapshot := make([]handlers.Middleware, len(r.middlewares))
	copy(snapshot, r.middlewares)
	return snapshot
}
