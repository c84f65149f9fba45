package interpreter

import (
	"errors"
	"fmt"
	"io"
	"log/slog"
	"slices"
	"time"

	"github.com/aretw0/dialogic/pkg/domain"
)

// Func is a host function callable from expressions as "{ Name args... }".
type Func func(env map[string]any, args ...any) (any, error)

// Function is a registered host function.
// ArrayArg functions receive all arguments collected into one []any.
type Function struct {
	Call     Func
	ArrayArg bool
}

// Functions maps expression names to host functions.
type Functions map[string]Function

// Interpret evaluates resolved tokens and returns the remaining values.
func Interpret(tokens []Token, env map[string]any, fns Functions) ([]any, error) {
	ev := &evaluator{env: env, fns: fns, logger: nopLogger}
	return ev.run(tokens)
}

// Evaluate resolves and interprets expr, returning its first value.
func Evaluate(expr string, env map[string]any, fns Functions) (any, error) {
	return New(WithFunctions(fns)).Evaluate(expr, env)
}

var nopLogger = slog.New(slog.NewTextHandler(io.Discard, nil))

type evaluator struct {
	env    map[string]any
	fns    Functions
	logger *slog.Logger
}

func (e *evaluator) run(tokens []Token) ([]any, error) {
	if err := checkObjectComparisons(tokens); err != nil {
		return nil, err
	}

	tokens, err := resolveObjects(tokens)
	if err != nil {
		return nil, err
	}
	if tokens, err = e.foldParens(tokens); err != nil {
		return nil, err
	}
	if tokens, err = e.reduce(tokens); err != nil {
		return nil, err
	}

	out := make([]any, len(tokens))
	for i, tok := range tokens {
		out[i] = result(tok)
	}
	return out, nil
}

func checkObjectComparisons(tokens []Token) error {
	for i := 0; i+2 < len(tokens); i++ {
		if tokens[i].isCompound() && tokens[i+1].Kind == Operator && tokens[i+2].isCompound() {
			return domain.Runtimef("direct comparison of objects is not permitted! use dot notation to resolve value or a comparison function")
		}
	}
	return nil
}

// resolveObjects replays each reference's trailing accessors.
func resolveObjects(tokens []Token) ([]Token, error) {
	out := make([]Token, 0, len(tokens))
	for i := 0; i < len(tokens); {
		tok := tokens[i]
		if tok.isAccessor() {
			return nil, domain.Syntaxf("accessor %s has no object to apply to", tok)
		}
		j := i + 1
		for j < len(tokens) && tokens[j].isAccessor() {
			j++
		}
		if !tok.isReference() || j == i+1 {
			out = append(out, tok)
			i++
			continue
		}

		val := tok.Value
		for _, acc := range tokens[i+1 : j] {
			next, err := applyAccessor(val, acc)
			if err != nil {
				return nil, err
			}
			val = next
		}
		out = append(out, wrapValue(val))
		i = j
	}
	return out, nil
}

// foldParens reduces the innermost parenthesis pair until none remain.
func (e *evaluator) foldParens(tokens []Token) ([]Token, error) {
	for {
		opens, closes := count(tokens, "("), count(tokens, ")")
		if opens != closes {
			return nil, domain.Syntaxf("mismatched number of enclosing symbols!")
		}
		if opens == 0 {
			return tokens, nil
		}

		open, closing := -1, -1
		for i, tok := range tokens {
			if tok.is("(") {
				open = i
			} else if tok.is(")") {
				if open < 0 {
					return nil, domain.Syntaxf("mismatched paren direction")
				}
				closing = i
				break
			}
		}
		if closing < 0 {
			return nil, domain.Syntaxf("mismatched paren direction")
		}

		inner, err := e.reduce(slices.Clone(tokens[open+1 : closing]))
		if err != nil {
			return nil, err
		}
		tokens = splice(tokens, open, closing+1, inner...)
	}
}

// reduce runs function calls, array collapsing and operators over a
// paren-free span.
func (e *evaluator) reduce(tokens []Token) ([]Token, error) {
	tokens, err := e.callFunctions(tokens)
	if err != nil {
		return nil, err
	}
	for i, tok := range tokens {
		if tok.Kind == Array {
			list, _ := tok.Value.([]any)
			tokens[i] = Token{Kind: Value, Value: len(list) > 0}
		}
	}
	return e.applyOperators(tokens)
}

func (e *evaluator) callFunctions(tokens []Token) ([]Token, error) {
	if count(tokens, "{") != count(tokens, "}") {
		return nil, domain.Syntaxf("mismatched number of enclosing symbols!")
	}

	for {
		open := -1
		for i, tok := range tokens {
			if tok.is("}") {
				return nil, domain.Syntaxf("mismatched { } brackets!")
			}
			if tok.is("{") {
				open = i
				break
			}
		}
		if open < 0 {
			return tokens, nil
		}

		closing := -1
		for j := open + 1; j < len(tokens); j++ {
			if tokens[j].is("{") {
				return nil, domain.Syntaxf("mismatched { } brackets!")
			}
			if tokens[j].is("}") {
				closing = j
				break
			}
		}
		if closing < 0 {
			return nil, domain.Syntaxf("mismatched { } brackets!")
		}
		if closing == open+1 {
			return nil, domain.Syntaxf("empty { } brackets!")
		}

		out, err := e.call(tokens[open+1], tokens[open+2:closing])
		if err != nil {
			return nil, err
		}
		tokens = splice(tokens, open, closing+1, wrapValue(out))
	}
}

func (e *evaluator) call(name Token, argTokens []Token) (any, error) {
	fn, ok := e.fns[name.Text]
	if !ok || fn.Call == nil {
		return nil, domain.Runtimef("can't find function %s! did you pass in a functions object?", name.Text)
	}

	args := make([]any, len(argTokens))
	for i, tok := range argTokens {
		args[i] = e.argument(tok)
	}
	e.logger.Debug("calling function", "function", name.Text, "args", len(args))

	var (
		out any
		err error
	)
	if fn.ArrayArg {
		out, err = fn.Call(e.env, args)
	} else {
		out, err = fn.Call(e.env, args...)
	}
	if err != nil {
		var classified *domain.Error
		if errors.As(err, &classified) {
			return nil, err
		}
		return nil, fmt.Errorf("function %s: %w", name.Text, err)
	}
	return out, nil
}

// argument converts a token into a function argument. Literal tokens are
// passed as their source text, references as typed refs.
func (e *evaluator) argument(tok Token) any {
	switch tok.Kind {
	case String:
		return unquote(tok.Text)
	case Variable:
		if v, ok := e.env[tok.Text[1:]]; ok {
			return v
		}
		return tok.Text
	case Value:
		return tok.Value
	case Object, Array, Date:
		return result(tok)
	}
	return tok.Text
}

func (e *evaluator) applyOperators(tokens []Token) ([]Token, error) {
	for _, level := range precedence {
		for {
			i := slices.IndexFunc(tokens, func(t Token) bool {
				return t.Kind == Operator && slices.Contains(level, t.Text)
			})
			if i < 0 {
				break
			}
			if i+1 < len(tokens) && tokens[i+1].Kind == Operator || i > 0 && tokens[i-1].Kind == Operator {
				return nil, domain.Runtimef("Consecutive binary operators found in condition statement")
			}
			if i == 0 || i == len(tokens)-1 {
				return nil, domain.Syntaxf("operator %s is missing an operand", tokens[i].Text)
			}

			val, err := binary(tokens[i].Text, e.operand(tokens[i-1]), e.operand(tokens[i+1]))
			if err != nil {
				return nil, err
			}
			tokens = splice(tokens, i-1, i+2, classify(jsString(val)))
		}
	}
	return tokens, nil
}

func (e *evaluator) operand(tok Token) any {
	switch tok.Kind {
	case Number:
		return toNumber(tok.Text)
	case Boolean:
		return tok.Text == "true"
	case String:
		return unquote(tok.Text)
	case Variable:
		if v, ok := e.env[tok.Text[1:]]; ok {
			return normalize(v)
		}
		return tok.Text
	case Value, Object, Array, Date:
		return normalize(tok.Value)
	}
	return tok.Text
}

func count(tokens []Token, bracket string) int {
	n := 0
	for _, tok := range tokens {
		if tok.is(bracket) {
			n++
		}
	}
	return n
}

// splice returns a new slice with tokens[from:to] replaced by repl.
func splice(tokens []Token, from, to int, repl ...Token) []Token {
	out := make([]Token, 0, len(tokens)-(to-from)+len(repl))
	out = append(out, tokens[:from]...)
	out = append(out, repl...)
	return append(out, tokens[to:]...)
}

// Interpreter evaluates expressions against a fixed function table.
type Interpreter struct {
	fns    Functions
	logger *slog.Logger
	now    func() time.Time
}

// Option configures an Interpreter.
type Option func(*Interpreter)

// WithFunctions sets the host function table.
func WithFunctions(fns Functions) Option {
	return func(in *Interpreter) {
		in.fns = fns
	}
}

// WithLogger sets the structured logger.
func WithLogger(logger *slog.Logger) Option {
	return func(in *Interpreter) {
		in.logger = logger
	}
}

// WithClock overrides the clock behind "$_.now".
func WithClock(now func() time.Time) Option {
	return func(in *Interpreter) {
		in.now = now
	}
}

// New creates an Interpreter.
func New(opts ...Option) *Interpreter {
	in := &Interpreter{
		fns:    Functions{},
		logger: nopLogger,
		now:    time.Now,
	}
	for _, opt := range opts {
		opt(in)
	}
	return in
}

// Functions returns the function table.
func (in *Interpreter) Functions() Functions {
	return in.fns
}

// Run resolves and interprets expr, returning every remaining value.
func (in *Interpreter) Run(expr string, env map[string]any) ([]any, error) {
	tokens, err := resolver{now: in.now}.resolve(expr, env)
	if err != nil {
		return nil, err
	}
	ev := &evaluator{env: env, fns: in.fns, logger: in.logger}
	return ev.run(tokens)
}

// Evaluate returns the first value of expr, or nil for an empty expression.
func (in *Interpreter) Evaluate(expr string, env map[string]any) (any, error) {
	values, err := in.Run(expr, env)
	if err != nil {
		return nil, err
	}
	if len(values) == 0 {
		return nil, nil
	}
	return values[0], nil
}

// Condition evaluates expr and applies Truthy to the result.
func (in *Interpreter) Condition(expr string, env map[string]any) (bool, error) {
	val, err := in.Evaluate(expr, env)
	if err != nil {
		return false, err
	}
	ok, err := Truthy(val)
	if err != nil {
		return false, err
	}
	in.logger.Debug("condition evaluated", "expr", expr, "result", ok)
	return ok, nil
}
