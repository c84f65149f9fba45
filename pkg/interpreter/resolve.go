package interpreter

import (
	"regexp"
	"strings"
	"time"

	"github.com/aretw0/dialogic/pkg/domain"
	"github.com/aretw0/dialogic/pkg/history"
	"gopkg.in/yaml.v3"
)

// Reserved environment names.
const (
	// BuiltinsName is the built-in globals object, read as "$_.now".
	BuiltinsName = "_"
	// HistoryBinding is the env key under which a *history.History is passed in.
	// Expressions cannot reference it; they use HistoryAlias.
	HistoryBinding = "historyInstance"
	// HistoryAlias is the name expressions use to reach the bound history.
	HistoryAlias = "history"
)

var (
	varPattern        = regexp.MustCompile(`^\$(\w+)((?:\.\w+)*)$`)
	slicePattern      = regexp.MustCompile(`^\[\s*(\d*)\s*:\s*(\d*)\s*\]$`)
	loneBuiltin       = regexp.MustCompile(`\$_(?:[^.\w]|$)`)
	historyRef        = regexp.MustCompile(`\$history\b`)
	historyBindingRef = regexp.MustCompile(`\$` + HistoryBinding + `\b`)
	keyChain          = regexp.MustCompile(`^(?:\.\w+)+$`)
)

type resolver struct {
	now func() time.Time
}

// ResolveVars tokenizes expr and resolves every variable reference against env.
func ResolveVars(expr string, env map[string]any) ([]Token, error) {
	return resolver{now: time.Now}.resolve(expr, env)
}

func (r resolver) resolve(expr string, env map[string]any) ([]Token, error) {
	if _, ok := env[BuiltinsName]; ok {
		return nil, domain.Syntaxf("$_ is a reserved name and is not assignable!")
	}
	if loneBuiltin.MatchString(expr) {
		return nil, domain.Syntaxf("$_ cannot be called alone, reference a child method using dot notation!")
	}
	if historyBindingRef.MatchString(expr) {
		return nil, domain.Runtimef("history cannot be referenced as $%s, use $%s instead", HistoryBinding, HistoryAlias)
	}

	var hist *history.History
	if bound, ok := env[HistoryBinding]; ok {
		h, isHistory := bound.(*history.History)
		if !isHistory || h == nil {
			return nil, domain.Runtimef("malformed history binding: expected *history.History, got %T", bound)
		}
		hist = h
	}
	if hist == nil && historyRef.MatchString(expr) {
		return nil, domain.Runtimef("$%s referenced but no history was provided", HistoryAlias)
	}

	if strings.Count(expr, "[") != strings.Count(expr, "]") {
		return nil, domain.Syntaxf("mismatched number of enclosing symbols!")
	}

	raw := Tokenize(expr)
	tokens := make([]Token, 0, len(raw))
	for i, text := range raw {
		switch {
		case varPattern.MatchString(text):
			m := varPattern.FindStringSubmatch(text)
			val, err := r.lookup(m[1], env, hist)
			if err != nil {
				return nil, err
			}
			tok := wrapValue(val)
			if s, isString := val.(string); isString && (m[2] != "" || i+1 < len(raw) && strings.HasPrefix(raw[i+1], "[")) {
				// strings followed by accessors are sliced or measured, not re-read
				tok = Token{Kind: Object, Value: s}
			}
			tokens = append(tokens, tok)
			if m[2] != "" {
				for _, key := range strings.Split(m[2][1:], ".") {
					tokens = append(tokens, Token{Kind: Key, Text: key})
				}
			}
		case keyChain.MatchString(text) && len(tokens) > 0 && tokens[len(tokens)-1].isCompound():
			for _, key := range strings.Split(text[1:], ".") {
				tokens = append(tokens, Token{Kind: Key, Text: key})
			}
		case strings.HasPrefix(text, "["):
			afterCompound := len(tokens) > 0 && tokens[len(tokens)-1].isCompound()
			tok, err := bracketToken(text, afterCompound)
			if err != nil {
				return nil, err
			}
			tokens = append(tokens, tok)
		default:
			tokens = append(tokens, classify(text))
		}
	}

	if err := checkBareObjects(tokens); err != nil {
		return nil, err
	}
	return tokens, nil
}

func (r resolver) lookup(name string, env map[string]any, hist *history.History) (any, error) {
	switch {
	case name == BuiltinsName:
		now := r.now()
		return map[string]any{"now": now.UnixMilli(), "date": now}, nil
	case name == HistoryAlias && hist != nil:
		return hist, nil
	}
	val, ok := env[name]
	if !ok {
		return nil, domain.Referencef("Undefined reference: $%s", name)
	}
	return val, nil
}

func bracketToken(text string, afterCompound bool) (Token, error) {
	if m := slicePattern.FindStringSubmatch(text); m != nil {
		return Token{Kind: Slice, Text: text, Start: bound(m[1]), End: bound(m[2])}, nil
	}

	var elems []any
	if err := yaml.Unmarshal([]byte(text), &elems); err != nil {
		return Token{}, domain.Syntaxf("malformed array literal %s", text)
	}
	elems = normalizeList(elems)

	if afterCompound {
		if len(elems) == 0 {
			return Token{}, domain.Syntaxf("empty index %s", text)
		}
		return Token{Kind: Index, Text: text, Value: elems[0]}, nil
	}
	return Token{Kind: Array, Text: text, Value: elems}, nil
}

func normalizeList(list []any) []any {
	for i, v := range list {
		if nested, ok := v.([]any); ok {
			list[i] = normalizeList(nested)
			continue
		}
		list[i] = normalize(v)
	}
	if list == nil {
		list = []any{}
	}
	return list
}

// checkBareObjects rejects objects used without an accessor outside of
// function call spans.
func checkBareObjects(tokens []Token) error {
	depth := 0
	for i, tok := range tokens {
		switch {
		case tok.is("{"):
			depth++
		case tok.is("}"):
			depth--
		case tok.Kind == Object && depth == 0:
			if i+1 >= len(tokens) || !tokens[i+1].isAccessor() {
				return domain.Syntaxf("objects cannot be referenced w/out a key reference")
			}
		}
	}
	return nil
}
