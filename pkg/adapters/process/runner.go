package process

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os/exec"
	"strings"
	"sync"
	"time"

	"github.com/aretw0/dialogic/pkg/interpreter"
)

// ErrNotRegistered is returned when calling a command missing from the allow-list.
var ErrNotRegistered = errors.New("process plugin not registered")

// Runner executes allow-listed local commands on behalf of expressions.
// Only commands registered up front can run; expressions choose a name,
// never a command line.
type Runner struct {
	mu       sync.RWMutex
	registry map[string]Config
	baseDir  string
	timeout  time.Duration
}

// RunnerOption configures the runner.
type RunnerOption func(*Runner)

// WithBaseDir sets the working directory for executed processes.
func WithBaseDir(dir string) RunnerOption {
	return func(r *Runner) {
		r.baseDir = dir
	}
}

// WithTimeout sets the default per-call timeout.
func WithTimeout(d time.Duration) RunnerOption {
	return func(r *Runner) {
		r.timeout = d
	}
}

// NewRunner creates a new Process Runner.
func NewRunner(opts ...RunnerOption) *Runner {
	r := &Runner{
		registry: make(map[string]Config),
		timeout:  DefaultTimeout,
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Register adds a trusted command to the allow-list.
func (r *Runner) Register(cfg Config) error {
	if cfg.Name == "" || cfg.Command == "" {
		return fmt.Errorf("process plugin needs a name and a command")
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	r.registry[cfg.Name] = cfg
	return nil
}

// Call runs the command registered as name. Arguments are written to stdin
// as a JSON array and exposed as DIALOGIC_ARG_<i>. Stdout holding a JSON
// document is decoded, anything else is returned as a trimmed string.
func (r *Runner) Call(ctx context.Context, name string, args []any) (any, error) {
	r.mu.RLock()
	cfg, ok := r.registry[name]
	r.mu.RUnlock()
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrNotRegistered, name)
	}

	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = r.timeout
	}
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	plain := make([]any, len(args))
	for i, a := range args {
		plain[i] = unwrap(a)
	}
	input, err := json.Marshal(plain)
	if err != nil {
		return nil, fmt.Errorf("process plugin %s: encode arguments: %w", name, err)
	}

	// Arguments never become command flags, so they cannot inject options.
	cmd := exec.CommandContext(ctx, cfg.Command, cfg.Args...)
	cmd.Dir = r.baseDir
	cmd.Stdin = bytes.NewReader(input)

	env := cmd.Environ()
	for k, v := range cfg.Environment {
		env = append(env, k+"="+v)
	}
	for i, v := range plain {
		env = append(env, fmt.Sprintf("%s%d=%s", ArgEnvPrefix, i, envValue(v)))
	}
	cmd.Env = env

	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	if err := cmd.Run(); err != nil {
		if ctx.Err() != nil {
			return nil, fmt.Errorf("process plugin %s timed out after %s", name, timeout)
		}
		return nil, fmt.Errorf("process plugin %s failed: %v: %s", name, err, strings.TrimSpace(stderr.String()))
	}

	trimmed := strings.TrimSpace(stdout.String())
	if strings.HasPrefix(trimmed, "{") || strings.HasPrefix(trimmed, "[") {
		var out any
		if err := json.Unmarshal([]byte(trimmed), &out); err == nil {
			return out, nil
		}
	}
	return trimmed, nil
}

// Function adapts the registered command to an expression function.
func (r *Runner) Function(name string) interpreter.Func {
	return func(_ map[string]any, args ...any) (any, error) {
		return r.Call(context.Background(), name, args)
	}
}

func unwrap(v any) any {
	switch x := v.(type) {
	case interpreter.ArrayRef:
		out := make([]any, len(x.Elements))
		for i, e := range x.Elements {
			out[i] = unwrap(e)
		}
		return out
	case interpreter.ObjectRef:
		return unwrap(x.Value)
	case interpreter.DateRef:
		return x.Value.Format(time.RFC3339Nano)
	case []any:
		out := make([]any, len(x))
		for i, e := range x {
			out[i] = unwrap(e)
		}
		return out
	case map[string]any:
		out := make(map[string]any, len(x))
		for k, e := range x {
			out[k] = unwrap(e)
		}
		return out
	}
	return v
}

func envValue(v any) string {
	switch x := v.(type) {
	case nil:
		return ""
	case string:
		return x
	case bool, int, int64, float64:
		return fmt.Sprint(x)
	}
	data, err := json.Marshal(v)
	if err != nil {
		return fmt.Sprint(v)
	}
	return string(data)
}
