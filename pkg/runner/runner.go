package runner

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"

	"github.com/aretw0/dialogic/pkg/realizer"
)

// Engine is the subset of dialogic.Engine the runner drives.
type Engine interface {
	Render(ctx context.Context, name string, env map[string]any, opts ...realizer.RenderOption) (*realizer.Result, error)
	RenderSession(ctx context.Context, sessionID, name string, env map[string]any) (*realizer.Result, error)
}

// Runner handles the conversation loop of the engine using provided IO.
// It uses an IOHandler strategy to abstract the interaction mode (Text vs JSON).
type Runner struct {
	// Handler is the strategy for IO. If nil, a TextHandler over stdin/stdout is used.
	Handler IOHandler

	// Logger is used for internal debug logging.
	// If nil, a no-op logger is used.
	Logger *slog.Logger

	// SessionID selects per-session rendering when not empty.
	SessionID string

	// BaseEnv is merged under every turn's env.
	BaseEnv map[string]any

	// Renderer transforms text before the default text handler prints it.
	Renderer ContentRenderer
}

// ContentRenderer is a function that transforms the content before outputting it.
// This allows for TUI rendering (markdown to ANSI) without coupling the core package.
type ContentRenderer func(string) (string, error)

// NewRunner creates a new Runner.
func NewRunner(opts ...Option) *Runner {
	r := &Runner{
		Logger: slog.New(slog.NewTextHandler(io.Discard, nil)),
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Run reads turns until the input ends or ctx is cancelled. A failed render
// is reported to the handler and the loop continues; only IO failures stop it.
func (r *Runner) Run(ctx context.Context, engine Engine) error {
	handler := r.resolveHandler()

	signals := NewSignalManager()
	defer signals.Stop()

	for {
		inputCtx, cancel := mergeContexts(ctx, signals.Context())
		turn, err := handler.Input(inputCtx)
		if err != nil {
			signals.CheckRace()
		}
		interrupted := inputCtx.Err()
		cancel()

		if err != nil {
			if interrupted != nil {
				r.Logger.Debug("runner input cancelled", "err", interrupted)
				if ctx.Err() != nil {
					return ctx.Err()
				}
				// Interrupted by the user.
				return nil
			}
			if errors.Is(err, io.EOF) {
				return nil
			}
			return fmt.Errorf("input error: %w", err)
		}

		renderCtx, cancelRender := mergeContexts(ctx, signals.Context())
		done := signals.Track(turn.Template)
		reply := r.turn(renderCtx, engine, turn)
		done()
		cancelRender()

		if template := signals.Interrupted(); template != "" {
			r.Logger.Info("render interrupted", "template", template, "session_id", r.SessionID)
			if ctx.Err() != nil {
				return ctx.Err()
			}
			return nil
		}
		if err := handler.Output(ctx, reply); err != nil {
			return fmt.Errorf("output error: %w", err)
		}
	}
}

func (r *Runner) turn(ctx context.Context, engine Engine, turn Turn) Reply {
	env := make(map[string]any, len(r.BaseEnv)+len(turn.Env))
	for k, v := range r.BaseEnv {
		env[k] = v
	}
	for k, v := range turn.Env {
		env[k] = v
	}

	var (
		res *realizer.Result
		err error
	)
	if r.SessionID != "" {
		res, err = engine.RenderSession(ctx, r.SessionID, turn.Template, env)
	} else {
		res, err = engine.Render(ctx, turn.Template, env)
	}
	if err != nil {
		r.Logger.Debug("turn failed", "template", turn.Template, "err", err)
		return Reply{Template: turn.Template, Error: err.Error()}
	}
	r.Logger.Debug("turn rendered", "template", turn.Template, "session_id", r.SessionID)
	return Reply{Template: turn.Template, Text: res.Text, Success: true}
}

// resolveHandler ensures a valid IOHandler is set.
func (r *Runner) resolveHandler() IOHandler {
	if r.Handler != nil {
		return r.Handler
	}
	r.Handler = NewTextHandler(os.Stdin, os.Stdout, WithTextHandlerRenderer(r.Renderer))
	return r.Handler
}

func mergeContexts(a, b context.Context) (context.Context, context.CancelFunc) {
	ctx, cancel := context.WithCancel(a)
	stop := context.AfterFunc(b, cancel)
	return ctx, func() {
		stop()
		cancel()
	}
}
