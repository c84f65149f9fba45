package cli

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"sort"
	"strings"

	"github.com/aretw0/dialogic/pkg/domain"
	"github.com/aretw0/dialogic/pkg/interpreter"
	"github.com/aretw0/dialogic/pkg/realizer"
	"github.com/aretw0/dialogic/pkg/runner"
	"github.com/chzyer/readline"
)

// ErrQuit is returned by Exec for the :quit command.
var ErrQuit = errors.New("quit")

// Evaluator is the part of the engine the REPL drives.
type Evaluator interface {
	Evaluate(expr string, env map[string]any) (any, error)
	Render(ctx context.Context, name string, env map[string]any, opts ...realizer.RenderOption) (*realizer.Result, error)
	Catalog() *domain.Catalog
}

// REPL evaluates mini-language expressions against a persistent env.
type REPL struct {
	engine Evaluator
	env    map[string]any
	out    io.Writer
}

// NewREPL creates a REPL writing results to out.
func NewREPL(engine Evaluator, env map[string]any, out io.Writer) *REPL {
	if env == nil {
		env = make(map[string]any)
	}
	return &REPL{engine: engine, env: env, out: out}
}

var replCommands = []string{":set", ":unset", ":env", ":render", ":templates", ":help", ":quit"}

// Run reads lines with readline until EOF, interrupt or :quit.
func (r *REPL) Run(ctx context.Context) error {
	completer := readline.NewPrefixCompleter()
	for _, cmd := range replCommands {
		completer.Children = append(completer.Children, readline.PcItem(cmd))
	}

	rl, err := readline.NewEx(&readline.Config{
		Prompt:          "dialogic> ",
		AutoComplete:    completer,
		InterruptPrompt: "^C",
		EOFPrompt:       ":quit",
	})
	if err != nil {
		return fmt.Errorf("init readline: %w", err)
	}
	defer rl.Close()

	fmt.Fprintln(r.out, "Type an expression such as `$a + 1`, or :help for commands.")
	for {
		line, err := rl.Readline()
		if err != nil {
			if err == readline.ErrInterrupt || err == io.EOF {
				return nil
			}
			return err
		}
		if err := r.Exec(ctx, line); err != nil {
			if errors.Is(err, ErrQuit) {
				return nil
			}
			fmt.Fprintf(r.out, "Error: %v\n", err)
		}
	}
}

// Exec handles one input line.
func (r *REPL) Exec(ctx context.Context, line string) error {
	line = strings.TrimSpace(line)
	if line == "" {
		return nil
	}
	if !strings.HasPrefix(line, ":") {
		val, err := r.engine.Evaluate(line, r.env)
		if err != nil {
			if kind := domain.KindOf(err); kind != "" {
				return fmt.Errorf("%s: %w", kind, err)
			}
			return err
		}
		fmt.Fprintln(r.out, formatValue(val))
		return nil
	}

	cmd, rest, _ := strings.Cut(line, " ")
	rest = strings.TrimSpace(rest)
	switch cmd {
	case ":set":
		turn, err := runner.ParseTurn("set " + rest)
		if err != nil || len(turn.Env) == 0 {
			return fmt.Errorf("usage: :set key=value ...")
		}
		for k, v := range turn.Env {
			r.env[k] = v
		}
	case ":unset":
		for _, k := range strings.Fields(rest) {
			delete(r.env, k)
		}
	case ":env":
		data, err := json.MarshalIndent(r.env, "", "  ")
		if err != nil {
			return err
		}
		fmt.Fprintln(r.out, string(data))
	case ":render":
		turn, err := runner.ParseTurn(rest)
		if err != nil {
			return fmt.Errorf("usage: :render Template [key=value ...]")
		}
		env := make(map[string]any, len(r.env)+len(turn.Env))
		for k, v := range r.env {
			env[k] = v
		}
		for k, v := range turn.Env {
			env[k] = v
		}
		res, err := r.engine.Render(ctx, turn.Template, env)
		if err != nil {
			return err
		}
		fmt.Fprintln(r.out, res.Text)
	case ":templates":
		for _, name := range r.engine.Catalog().Intents() {
			fmt.Fprintln(r.out, name)
		}
	case ":help":
		fmt.Fprintln(r.out, strings.Join([]string{
			"  <expr>                      evaluate an expression",
			"  :set k=v ...                bind variables",
			"  :unset k ...                remove variables",
			"  :env                        show bound variables",
			"  :render T [k=v ...]         render template T",
			"  :templates                  list intents",
			"  :quit                       leave",
		}, "\n"))
	case ":quit", ":q":
		return ErrQuit
	default:
		return fmt.Errorf("unknown command %q, try :help", cmd)
	}
	return nil
}

func formatValue(v any) string {
	switch x := v.(type) {
	case nil:
		return "null"
	case string:
		return x
	case interpreter.ArrayRef:
		return formatValue(x.Elements)
	case map[string]any:
		keys := make([]string, 0, len(x))
		for k := range x {
			keys = append(keys, k)
		}
		sort.Strings(keys)
		parts := make([]string, len(keys))
		for i, k := range keys {
			parts[i] = fmt.Sprintf("%s: %s", k, formatValue(x[k]))
		}
		return "{" + strings.Join(parts, ", ") + "}"
	case []any:
		parts := make([]string, len(x))
		for i, e := range x {
			parts[i] = formatValue(e)
		}
		return "[" + strings.Join(parts, ", ") + "]"
	}
	return fmt.Sprint(v)
}
