package middleware

import (
	"context"
	"fmt"
	"regexp"

	"github.com/aretw0/dialogic/pkg/domain"
	"github.com/aretw0/dialogic/pkg/ports"
)

// Mask replaces the value of every masked key.
const Mask = "***"

type maskingMiddleware struct {
	next     ports.SessionStore
	patterns []*regexp.Regexp
}

// NewMaskingMiddleware creates a middleware that masks session context values
// whose keys match any of the patterns before they reach the wrapped store.
// History is left untouched.
func NewMaskingMiddleware(patternStrings []string) (Middleware, error) {
	patterns := make([]*regexp.Regexp, len(patternStrings))
	for i, p := range patternStrings {
		re, err := regexp.Compile(p)
		if err != nil {
			return nil, fmt.Errorf("invalid mask pattern %q: %w", p, err)
		}
		patterns[i] = re
	}
	return func(next ports.SessionStore) ports.SessionStore {
		return &maskingMiddleware{next: next, patterns: patterns}
	}, nil
}

func (m *maskingMiddleware) Save(ctx context.Context, session *domain.Session) error {
	// the caller keeps using its session after Save
	cloned := *session
	cloned.Context = deepCopyMap(session.Context)
	maskMap(cloned.Context, m.patterns)

	return m.next.Save(ctx, &cloned)
}

func (m *maskingMiddleware) Load(ctx context.Context, sessionID string) (*domain.Session, error) {
	return m.next.Load(ctx, sessionID)
}

func (m *maskingMiddleware) Delete(ctx context.Context, sessionID string) error {
	return m.next.Delete(ctx, sessionID)
}

func (m *maskingMiddleware) List(ctx context.Context) ([]string, error) {
	return m.next.List(ctx)
}

func deepCopyMap(m map[string]any) map[string]any {
	out := make(map[string]any, len(m))
	for k, v := range m {
		out[k] = deepCopyValue(v)
	}
	return out
}

func deepCopyValue(v any) any {
	switch x := v.(type) {
	case map[string]any:
		return deepCopyMap(x)
	case []any:
		out := make([]any, len(x))
		for i, e := range x {
			out[i] = deepCopyValue(e)
		}
		return out
	}
	return v
}

func maskMap(m map[string]any, patterns []*regexp.Regexp) {
	for k, v := range m {
		if matchesAny(k, patterns) {
			m[k] = Mask
			continue
		}
		maskValue(v, patterns)
	}
}

func maskValue(v any, patterns []*regexp.Regexp) {
	switch x := v.(type) {
	case map[string]any:
		maskMap(x, patterns)
	case []any:
		for _, e := range x {
			maskValue(e, patterns)
		}
	}
}

func matchesAny(key string, patterns []*regexp.Regexp) bool {
	for _, p := range patterns {
		if p.MatchString(key) {
			return true
		}
	}
	return false
}
