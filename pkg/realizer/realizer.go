package realizer

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"math/rand/v2"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/aretw0/dialogic/pkg/domain"
	"github.com/aretw0/dialogic/pkg/history"
	"github.com/aretw0/dialogic/pkg/interpreter"
)

const topLevel = "Request (top level)"

// Realizer renders templates from a catalog.
type Realizer struct {
	catalog *domain.Catalog
	interp  *interpreter.Interpreter
	fns     interpreter.Functions
	history *history.History
	hooks   domain.RenderHooks
	logger  *slog.Logger

	randMu sync.Mutex
	rand   *rand.Rand
}

// Option configures a Realizer.
type Option func(*Realizer)

// WithLogger sets a custom structured logger.
func WithLogger(logger *slog.Logger) Option {
	return func(r *Realizer) {
		r.logger = logger
	}
}

// WithFunctions sets the function table available to conditions.
func WithFunctions(fns interpreter.Functions) Option {
	return func(r *Realizer) {
		r.fns = fns
	}
}

// WithInterpreter replaces the condition interpreter entirely.
func WithInterpreter(in *interpreter.Interpreter) Option {
	return func(r *Realizer) {
		r.interp = in
	}
}

// WithHistory sets the History used by renders that do not bring their own.
func WithHistory(h *history.History) Option {
	return func(r *Realizer) {
		r.history = h
	}
}

// WithRandom sets the source used to pick among satisfied non-switch variants.
func WithRandom(rng *rand.Rand) Option {
	return func(r *Realizer) {
		r.rand = rng
	}
}

// WithHooks registers render observability hooks.
func WithHooks(hooks domain.RenderHooks) Option {
	return func(r *Realizer) {
		r.hooks = hooks
	}
}

// New creates a Realizer over catalog.
func New(catalog *domain.Catalog, opts ...Option) (*Realizer, error) {
	if catalog == nil {
		return nil, fmt.Errorf("realizer: nil catalog")
	}
	r := &Realizer{
		catalog: catalog,
		logger:  slog.New(slog.NewTextHandler(io.Discard, nil)),
	}
	for _, opt := range opts {
		opt(r)
	}
	if r.interp == nil {
		r.interp = interpreter.New(
			interpreter.WithFunctions(r.fns),
			interpreter.WithLogger(r.logger),
		)
	}
	if r.history == nil {
		h, err := history.New()
		if err != nil {
			return nil, err
		}
		r.history = h
	}
	return r, nil
}

// Catalog returns the catalog the realizer renders from.
func (r *Realizer) Catalog() *domain.Catalog {
	return r.catalog
}

// History returns the realizer-owned History.
func (r *Realizer) History() *history.History {
	return r.history
}

// Interpreter returns the condition interpreter.
func (r *Realizer) Interpreter() *interpreter.Interpreter {
	return r.interp
}

// Result is the outcome of a successful render.
type Result struct {
	Text    string
	History history.Snapshot
}

type renderConfig struct {
	domain     string
	calledFrom string
	history    *history.History
}

// RenderOption adjusts a single render call.
type RenderOption func(*renderConfig)

// InDomain resolves the template from the given domain instead of its schema owner.
func InDomain(name string) RenderOption {
	return func(c *renderConfig) {
		c.domain = name
	}
}

// CalledFrom names the caller, for logs and hooks.
func CalledFrom(parent string) RenderOption {
	return func(c *renderConfig) {
		c.calledFrom = parent
	}
}

// UsingHistory renders against h instead of the realizer-owned History.
func UsingHistory(h *history.History) RenderOption {
	return func(c *renderConfig) {
		c.history = h
	}
}

// renderState is shared by every nested render of one call.
type renderState struct {
	hist     *history.History
	inFlight map[string]bool
	stack    []string
}

// Render realizes template name against env.
// On success, if name is an intent, it is recorded as a step on the History
// in use. A failed render leaves History untouched.
func (r *Realizer) Render(ctx context.Context, name string, env map[string]any, opts ...RenderOption) (*Result, error) {
	cfg := renderConfig{calledFrom: topLevel}
	for _, opt := range opts {
		opt(&cfg)
	}
	if env == nil {
		env = map[string]any{}
	}

	hist := cfg.history
	if hist == nil {
		if bound, ok := env[interpreter.HistoryBinding].(*history.History); ok && bound != nil {
			hist = bound
		} else {
			hist = r.history
		}
	}

	st := &renderState{hist: hist, inFlight: make(map[string]bool)}
	text, err := r.render(ctx, st, name, env, cfg.domain, cfg.calledFrom)
	if err != nil {
		return nil, err
	}

	if r.catalog.IsIntent(name) {
		hist.RecordStep(name)
	}
	r.logger.Debug("template realized", "template", name, "text", text)

	return &Result{Text: text, History: hist.Export()}, nil
}

func (r *Realizer) render(ctx context.Context, st *renderState, name string, env map[string]any, domainName, calledFrom string) (text string, err error) {
	r.logger.Debug("executing template", "template", name, "called_from", calledFrom)

	ev := &domain.RenderEvent{
		Timestamp:  time.Now(),
		Template:   name,
		Domain:     domainName,
		CalledFrom: calledFrom,
	}
	if r.hooks.OnRenderStart != nil {
		r.hooks.OnRenderStart(ctx, ev)
	}
	defer func() {
		if r.hooks.OnRenderEnd != nil {
			ev.Duration = time.Since(ev.Timestamp)
			ev.Err = err
			r.hooks.OnRenderEnd(ctx, ev)
		}
	}()

	if domainName == "" {
		owner, ok := r.catalog.Owner(name)
		if !ok {
			return "", &domain.Error{
				Kind:    domain.KindReference,
				Message: fmt.Sprintf("Template %s not found in schema", name),
				Err:     domain.ErrTemplateNotFound,
			}
		}
		domainName = owner
	}

	tmpl, defining, err := r.catalog.Resolve(domainName, name)
	if err != nil {
		return "", err
	}
	ev.Domain = defining

	key := defining + "/" + name
	if st.inFlight[key] {
		return "", &domain.Error{
			Kind:    domain.KindRuntime,
			Message: fmt.Sprintf("template %s invokes itself: %s -> %s", name, strings.Join(st.stack, " -> "), name),
			Err:     domain.ErrTemplateCycle,
		}
	}
	st.inFlight[key] = true
	st.stack = append(st.stack, name)
	defer func() {
		delete(st.inFlight, key)
		st.stack = st.stack[:len(st.stack)-1]
	}()

	variant, err := r.selectVariant(name, tmpl, env, st.hist)
	if err != nil {
		return "", err
	}
	return r.realize(ctx, st, variant.Text, env, defining, name)
}

// ValidateRequestParameters reports whether env holds every required
// argument of intent name.
func (r *Realizer) ValidateRequestParameters(name string, env map[string]any) bool {
	return r.CheckRequestParameters(name, env) == nil
}

// CheckRequestParameters returns a *MissingArgumentsError naming every
// required argument of intent name absent from env.
func (r *Realizer) CheckRequestParameters(name string, env map[string]any) error {
	schema, ok := r.catalog.Schema[name]
	if !ok {
		return &domain.Error{
			Kind:    domain.KindReference,
			Message: fmt.Sprintf("Template %s not found in schema", name),
			Err:     domain.ErrTemplateNotFound,
		}
	}

	var missing []string
	for arg, spec := range schema.Args {
		if !spec.Required {
			continue
		}
		if _, present := env[arg]; !present {
			missing = append(missing, arg)
		}
	}
	if len(missing) == 0 {
		return nil
	}
	sort.Strings(missing)
	return &MissingArgumentsError{Template: name, Missing: missing}
}
