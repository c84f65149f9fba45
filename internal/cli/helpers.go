package cli

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"strings"
	"sync"
	"syscall"

	"github.com/aretw0/dialogic/internal/logging"
	"github.com/aretw0/dialogic/internal/presentation/tui"
	"github.com/aretw0/dialogic/pkg/runner"
	"golang.org/x/term"
	"gopkg.in/yaml.v3"
)

// SignalContext wraps a context and captures the signal that cancelled it.
type SignalContext struct {
	context.Context
	Cancel func()
	start  sync.Once
	stop   sync.Once
	sigCh  chan os.Signal
	sigVal os.Signal
	mu     sync.Mutex
}

// NewSignalContext creates a context that is cancelled on SIGINT or SIGTERM.
// It acts as a drop-in replacement for signal.NotifyContext but allows retrieving the signal.
func NewSignalContext(parent context.Context) *SignalContext {
	ctx, cancel := context.WithCancel(parent)
	sc := &SignalContext{
		Context: ctx,
		Cancel:  cancel,
		sigCh:   make(chan os.Signal, 1),
	}

	sc.start.Do(func() {
		signal.Notify(sc.sigCh, os.Interrupt, syscall.SIGTERM)
		go func() {
			select {
			case sig := <-sc.sigCh:
				sc.mu.Lock()
				sc.sigVal = sig
				sc.mu.Unlock()
				sc.Cancel()
			case <-sc.Context.Done():
				// Context cancelled elsewhere
			}
			sc.stop.Do(func() {
				signal.Stop(sc.sigCh)
			})
		}()
	})

	return sc
}

// Signal returns the signal that caused the context to be cancelled, or nil.
func (sc *SignalContext) Signal() os.Signal {
	sc.mu.Lock()
	defer sc.mu.Unlock()
	return sc.sigVal
}

// NewLogger configures the application logger.
// In debug mode, it writes to Stderr (to separate from Stdout dialogue).
func NewLogger(debug bool) *slog.Logger {
	if debug {
		return logging.New(slog.LevelDebug)
	}
	return logging.NewNop()
}

// NewJSONLogger is NewLogger for NDJSON conversations, so log lines on
// stderr parse like the replies on stdout.
func NewJSONLogger(debug bool) *slog.Logger {
	if debug {
		return logging.NewJSON(slog.LevelDebug)
	}
	return logging.NewNop()
}

// PrintSystemMessage prints a standardized system message to stdout.
func PrintSystemMessage(format string, args ...any) {
	fmt.Printf(">>> %s\n", fmt.Sprintf(format, args...))
}

// IsTerminal reports whether f is attached to a terminal.
func IsTerminal(f *os.File) bool {
	return term.IsTerminal(int(f.Fd()))
}

// OutputRenderer returns the glamour renderer when stdout is a terminal,
// and nil otherwise so piped output stays plain.
func OutputRenderer(plain bool) runner.ContentRenderer {
	if plain || !IsTerminal(os.Stdout) {
		return nil
	}
	return tui.NewRenderer()
}

// ParseEnv builds a render env from an optional JSON or YAML file and
// key=value assignments, which take precedence. Values are parsed as YAML
// scalars, so "3" is a number and "[a, b]" a list.
func ParseEnv(path string, sets []string) (map[string]any, error) {
	env := make(map[string]any)
	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("failed to read env file: %w", err)
		}
		// JSON is a subset of YAML.
		if err := yaml.Unmarshal(data, &env); err != nil {
			return nil, fmt.Errorf("failed to parse env file %s: %w", path, err)
		}
	}
	for _, kv := range sets {
		k, v, ok := strings.Cut(kv, "=")
		if !ok || k == "" {
			return nil, fmt.Errorf("invalid assignment %q, expected key=value", kv)
		}
		env[k] = runner.ParseValue(v)
	}
	return runner.SanitizeEnv(env)
}
