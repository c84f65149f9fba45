package dialogic

import (
	"context"
	"fmt"
	"log/slog"
	"sync"

	"github.com/aretw0/dialogic/internal/logging"
	"github.com/aretw0/dialogic/pkg/adapters/file"
	loamAdapter "github.com/aretw0/dialogic/pkg/adapters/loam"
	"github.com/aretw0/dialogic/pkg/adapters/memory"
	"github.com/aretw0/dialogic/pkg/domain"
	"github.com/aretw0/dialogic/pkg/history"
	"github.com/aretw0/dialogic/pkg/interpreter"
	"github.com/aretw0/dialogic/pkg/ports"
	"github.com/aretw0/dialogic/pkg/realizer"
	"github.com/aretw0/dialogic/pkg/registry"
	"github.com/aretw0/dialogic/pkg/session"
	"github.com/google/uuid"
)

// Engine is the high-level entry point for the Dialogic library.
// It owns the loaded catalog, the conversation history used by stateless
// renders and the session manager used by stateful ones.
type Engine struct {
	mu       sync.RWMutex
	realizer *realizer.Realizer

	dir      string
	loader   ports.CatalogLoader
	registry *registry.Registry
	history  *history.History
	store    ports.SessionStore
	sessions *session.Manager
	sessOpts []session.Option
	hooks    domain.RenderHooks
	logger   *slog.Logger
}

// Option defines a functional option for configuring the Engine.
type Option func(*Engine)

// WithLoader injects a custom CatalogLoader, bypassing the template directory.
func WithLoader(l ports.CatalogLoader) Option {
	return func(e *Engine) {
		e.loader = l
	}
}

// WithRegistry sets the function registry exposed to conditions.
// Defaults to registry.Default().
func WithRegistry(r *registry.Registry) Option {
	return func(e *Engine) {
		e.registry = r
	}
}

// WithHistory sets the History used by renders without a session.
func WithHistory(h *history.History) Option {
	return func(e *Engine) {
		e.history = h
	}
}

// WithSessionStore sets the store behind RenderSession. Defaults to memory.
func WithSessionStore(store ports.SessionStore) Option {
	return func(e *Engine) {
		e.store = store
	}
}

// WithLocker enables distributed locking of sessions.
func WithLocker(locker ports.DistributedLocker) Option {
	return func(e *Engine) {
		e.sessOpts = append(e.sessOpts, session.WithLocker(locker))
	}
}

// WithRenderHooks registers observability hooks.
func WithRenderHooks(hooks domain.RenderHooks) Option {
	return func(e *Engine) {
		e.hooks = hooks
	}
}

// WithLogger sets a custom structured logger for the engine.
func WithLogger(logger *slog.Logger) Option {
	return func(e *Engine) {
		e.logger = logger
	}
}

// New initializes a new Engine.
// By default, it loads the template directory at dir.
// If WithLoader option is provided, dir can be empty.
func New(dir string, opts ...Option) (*Engine, error) {
	eng := &Engine{dir: dir}
	for _, opt := range opts {
		opt(eng)
	}

	if eng.logger == nil {
		eng.logger = logging.NewNop()
	}
	if eng.loader == nil {
		if dir == "" {
			return nil, fmt.Errorf("template directory is required when no loader is provided")
		}
		eng.loader = file.NewLoader(dir, file.WithLogger(eng.logger))
	}
	if eng.registry == nil {
		eng.registry = registry.Default()
	}
	if eng.history == nil {
		h, err := history.New()
		if err != nil {
			return nil, err
		}
		eng.history = h
	}
	if eng.store == nil {
		eng.store = memory.NewStore()
	}
	eng.sessions = session.NewManager(eng.store, append([]session.Option{session.WithLogger(logging.Component(eng.logger, "session"))}, eng.sessOpts...)...)

	if err := eng.Reload(context.Background()); err != nil {
		return nil, err
	}
	return eng, nil
}

// NewWithLoader is shorthand for New("", WithLoader(loader), opts...).
func NewWithLoader(loader ports.CatalogLoader, opts ...Option) (*Engine, error) {
	return New("", append([]Option{WithLoader(loader)}, opts...)...)
}

// Reload reads the catalog again and swaps it in atomically.
// On failure the previous catalog stays active.
func (e *Engine) Reload(ctx context.Context) error {
	catalog, err := e.loader.Load(ctx)
	if err != nil {
		return fmt.Errorf("failed to load templates: %w", err)
	}

	r, err := realizer.New(catalog,
		realizer.WithFunctions(e.registry.Functions()),
		realizer.WithHistory(e.history),
		realizer.WithHooks(e.hooks),
		realizer.WithLogger(e.logger),
	)
	if err != nil {
		return err
	}

	e.mu.Lock()
	e.realizer = r
	e.mu.Unlock()

	e.logger.Debug("catalog loaded", "domains", len(catalog.Domains), "intents", len(catalog.Schema))
	return nil
}

// Realizer returns the active realizer.
func (e *Engine) Realizer() *realizer.Realizer {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return e.realizer
}

// Catalog returns the active catalog.
func (e *Engine) Catalog() *domain.Catalog {
	return e.Realizer().Catalog()
}

// History returns the History shared by renders without a session.
func (e *Engine) History() *history.History {
	return e.history
}

// Sessions returns the session manager.
func (e *Engine) Sessions() *session.Manager {
	return e.sessions
}

// Render realizes template name against env using the engine history,
// unless a render option supplies another one.
func (e *Engine) Render(ctx context.Context, name string, env map[string]any, opts ...realizer.RenderOption) (*realizer.Result, error) {
	return e.Realizer().Render(ctx, name, env, opts...)
}

// RenderSession realizes template name inside the conversation sessionID.
// The session is created on first use and saved after a successful render.
func (e *Engine) RenderSession(ctx context.Context, sessionID, name string, env map[string]any) (*realizer.Result, error) {
	return e.sessions.Render(ctx, e.Realizer(), sessionID, name, env)
}

// StartSession creates and persists an empty session with a random id.
func (e *Engine) StartSession(ctx context.Context) (string, error) {
	id := uuid.NewString()
	if _, err := e.sessions.LoadOrStart(ctx, id); err != nil {
		return "", err
	}
	return id, nil
}

// DeleteSession removes a stored session.
func (e *Engine) DeleteSession(ctx context.Context, sessionID string) error {
	return e.sessions.Delete(ctx, sessionID)
}

// Check returns a *realizer.MissingArgumentsError when env lacks a required
// argument of intent name.
func (e *Engine) Check(name string, env map[string]any) error {
	return e.Realizer().CheckRequestParameters(name, env)
}

// Evaluate runs a mini-language expression against env with the engine
// history bound.
func (e *Engine) Evaluate(expr string, env map[string]any) (any, error) {
	scope := make(map[string]any, len(env)+1)
	for k, v := range env {
		scope[k] = v
	}
	scope[interpreter.HistoryBinding] = e.history
	return e.Realizer().Interpreter().Evaluate(expr, scope)
}

// Watch returns a channel that signals when the underlying templates change.
// Loaders that implement ports.Watchable are used directly; a template
// directory is watched through Loam.
func (e *Engine) Watch(ctx context.Context) (<-chan string, error) {
	if w, ok := e.loader.(ports.Watchable); ok {
		return w.Watch(ctx)
	}
	if e.dir == "" {
		return nil, fmt.Errorf("current loader does not support watching")
	}
	w, err := loamAdapter.Open(e.dir)
	if err != nil {
		return nil, err
	}
	return w.Watch(ctx)
}

// Loader returns the underlying CatalogLoader used by the engine.
func (e *Engine) Loader() ports.CatalogLoader {
	return e.loader
}
