package realizer

import (
	"fmt"
	"math/rand/v2"

	"github.com/aretw0/dialogic/pkg/domain"
	"github.com/aretw0/dialogic/pkg/history"
	"github.com/aretw0/dialogic/pkg/interpreter"
)

func (r *Realizer) selectVariant(name string, tmpl *domain.Template, env map[string]any, hist *history.History) (*domain.Variant, error) {
	scope := make(map[string]any, len(env)+1)
	for k, v := range env {
		scope[k] = v
	}
	scope[interpreter.HistoryBinding] = hist

	var satisfied []*domain.Variant
	for i := range tmpl.Forms {
		variant := &tmpl.Forms[i]
		ok, err := r.matches(variant, scope)
		if err != nil {
			return nil, fmt.Errorf("template %s: %w", name, err)
		}
		if !ok {
			continue
		}
		if tmpl.Switch {
			return variant, nil
		}
		satisfied = append(satisfied, variant)
	}

	if len(satisfied) == 0 {
		return nil, &domain.Error{
			Kind:    domain.KindRuntime,
			Message: fmt.Sprintf("No valid variant for template %s", name),
			Err:     domain.ErrNoVariant,
		}
	}
	return satisfied[r.pick(len(satisfied))], nil
}

// matches reports whether every condition of the variant holds.
func (r *Realizer) matches(variant *domain.Variant, scope map[string]any) (bool, error) {
	for _, cond := range variant.Conditions {
		ok, err := r.interp.Condition(cond, scope)
		if err != nil {
			return false, err
		}
		if !ok {
			return false, nil
		}
	}
	return true, nil
}

func (r *Realizer) pick(n int) int {
	if n == 1 {
		return 0
	}
	if r.rand == nil {
		return rand.IntN(n)
	}
	r.randMu.Lock()
	defer r.randMu.Unlock()
	return r.rand.IntN(n)
}
