package realizer

import (
	"context"
	"reflect"
	"regexp"
	"strings"

	"github.com/aretw0/dialogic/pkg/domain"
	"github.com/aretw0/dialogic/pkg/interpreter"
)

var (
	indexSpan   = regexp.MustCompile(`^\[[\d:]+\]$`)
	invocation  = regexp.MustCompile(`(?s)^\[([^\s\]]+)\s*(.*)\]$`)
	varRef      = regexp.MustCompile(`(\()?\$(\w+)((?:\[\d*:?\d*\]|\.\w+)*)(\))?`)
	kvPair      = regexp.MustCompile(`(\S+)=(\S+)`)
	varArgument = regexp.MustCompile(`^\$(\w+)((?:\[\d*:?\d*\]|\.\w+)*)$`)
)

// EnvPassthrough forwards the caller's whole environment as "_env=$_env".
const EnvPassthrough = "_env"

// span is a half-open byte range [start, end) of a sub-template invocation.
type span struct {
	start, end int
}

// invocationSpans returns the top-level bracket spans of text that are
// sub-template invocations. Pure index or slice literals such as "[0]"
// and "[1:]" belong to variable references and are skipped, as are
// brackets that never close.
func invocationSpans(text string) []span {
	var (
		out   []span
		depth int
		start = -1
	)
	for i := 0; i < len(text); i++ {
		switch text[i] {
		case '[':
			depth++
			if start < 0 {
				start = i
			}
		case ']':
			depth--
		}
		if depth == 0 && start >= 0 {
			if !indexSpan.MatchString(text[start : i+1]) {
				out = append(out, span{start, i + 1})
			}
			start = -1
		}
		if depth < 0 {
			depth = 0
		}
	}
	return out
}

// Invocations returns the sub-template names text invokes, in order of
// appearance. Nested invocations inside arguments are not reported.
func Invocations(text string) []string {
	var names []string
	for _, sp := range invocationSpans(text) {
		if m := invocation.FindStringSubmatch(text[sp.start:sp.end]); m != nil {
			names = append(names, m[1])
		}
	}
	return names
}

// realize expands the invocations in text, then substitutes variables in
// the literal text between them.
func (r *Realizer) realize(ctx context.Context, st *renderState, text string, env map[string]any, domainName, parent string) (string, error) {
	var (
		b   strings.Builder
		ptr int
	)
	for _, sp := range invocationSpans(text) {
		literal, err := substitute(text[ptr:sp.start], env)
		if err != nil {
			return "", err
		}
		b.WriteString(literal)

		m := invocation.FindStringSubmatch(text[sp.start:sp.end])
		if m == nil {
			return "", domain.Syntaxf("malformed template invocation %s in %s", text[sp.start:sp.end], parent)
		}
		subEnv, err := SubEnv(m[2], env)
		if err != nil {
			return "", err
		}
		out, err := r.render(ctx, st, m[1], subEnv, domainName, parent)
		if err != nil {
			return "", err
		}
		b.WriteString(out)
		ptr = sp.end
	}

	literal, err := substitute(text[ptr:], env)
	if err != nil {
		return "", err
	}
	b.WriteString(literal)
	return b.String(), nil
}

// substitute replaces "$name" references, optionally wrapped in a
// balanced pair of parentheses and followed by ".key", "[i]" or "[a:b]"
// accessors, with their values from env.
func substitute(text string, env map[string]any) (string, error) {
	matches := varRef.FindAllStringSubmatchIndex(text, -1)
	if len(matches) == 0 {
		return text, nil
	}

	var (
		b   strings.Builder
		ptr int
	)
	for _, m := range matches {
		root := text[m[4]:m[5]]
		path := text[m[6]:m[7]]
		open, closing := m[2] >= 0, m[8] >= 0

		val, ok := env[root]
		if !ok {
			return "", domain.Referencef("variable %s not defined in environment", root)
		}
		if path != "" {
			var err error
			if val, err = interpreter.Select(val, path); err != nil {
				return "", err
			}
		}

		b.WriteString(text[ptr:m[0]])
		if open && !closing {
			b.WriteByte('(')
		}
		b.WriteString(interpreter.Stringify(val))
		if closing && !open {
			b.WriteByte(')')
		}
		ptr = m[1]
	}
	b.WriteString(text[ptr:])
	return b.String(), nil
}

// SubEnv builds the environment of a sub-template from the "key=value"
// pairs of its invocation. Values are literals, "$var" references with
// optional accessors (nil when the root is undefined), or for the key
// "_env" either "$_env" or an object-valued variable whose fields are
// forwarded.
func SubEnv(call string, env map[string]any) (map[string]any, error) {
	sub := make(map[string]any)
	for _, kv := range kvPair.FindAllStringSubmatch(call, -1) {
		key, value := kv[1], trimUnbalanced(kv[2])

		if key == EnvPassthrough {
			if err := forwardEnv(sub, value, env, call); err != nil {
				return nil, err
			}
			continue
		}

		m := varArgument.FindStringSubmatch(value)
		if m == nil {
			sub[key] = value
			continue
		}
		root, ok := env[m[1]]
		if !ok {
			sub[key] = nil
			continue
		}
		if m[2] == "" {
			sub[key] = root
			continue
		}
		val, err := interpreter.Select(root, m[2])
		if err != nil {
			return nil, err
		}
		sub[key] = val
	}
	return sub, nil
}

func forwardEnv(sub map[string]any, value string, env map[string]any, call string) error {
	if value == "$"+EnvPassthrough {
		for k, v := range env {
			sub[k] = v
		}
		return nil
	}

	notObject := domain.Runtimef("Value passed to _env must be an object type\n\tOriginal callstring: %s", call)
	if !strings.HasPrefix(value, "$") {
		return notObject
	}
	fields, ok := objectFields(env[value[1:]])
	if !ok {
		return notObject
	}
	for k, v := range fields {
		sub[k] = v
	}
	return nil
}

func objectFields(v any) (map[string]any, bool) {
	switch x := v.(type) {
	case map[string]any:
		return x, true
	case interpreter.ObjectRef:
		return objectFields(x.Value)
	case nil:
		return nil, false
	}
	rv := reflect.ValueOf(v)
	if rv.Kind() != reflect.Map || rv.Type().Key().Kind() != reflect.String {
		return nil, false
	}
	out := make(map[string]any, rv.Len())
	iter := rv.MapRange()
	for iter.Next() {
		out[iter.Key().String()] = iter.Value().Interface()
	}
	return out, true
}

// trimUnbalanced drops trailing "]" left over from an enclosing invocation.
func trimUnbalanced(s string) string {
	for strings.HasSuffix(s, "]") && strings.Count(s, "]") > strings.Count(s, "[") {
		s = s[:len(s)-1]
	}
	return s
}
