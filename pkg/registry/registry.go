package registry

import (
	"fmt"
	"sort"
	"sync"

	"github.com/aretw0/dialogic/pkg/interpreter"
)

// Registry manages the functions available to expressions.
type Registry struct {
	mu  sync.RWMutex
	fns interpreter.Functions
}

// NewRegistry creates a new empty registry.
func NewRegistry() *Registry {
	return &Registry{
		fns: make(interpreter.Functions),
	}
}

// Register adds a function to the registry.
// If a function with the same name exists, it is overwritten.
func (r *Registry) Register(name string, fn interpreter.Function) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.fns[name] = fn
}

// Use registers a builtin plugin by module name, e.g. "compare-date-time".
// arrayArg overrides the plugin's default calling convention when non-nil.
func (r *Registry) Use(module string, arrayArg *bool) error {
	p, ok := builtins[module]
	if !ok {
		return fmt.Errorf("%w: %s", ErrUnknownPlugin, module)
	}
	fn := interpreter.Function{Call: p.Call, ArrayArg: p.ArrayArg}
	if arrayArg != nil {
		fn.ArrayArg = *arrayArg
	}
	r.Register(p.FuncName, fn)
	return nil
}

// Functions returns a copy of the registered function table.
func (r *Registry) Functions() interpreter.Functions {
	r.mu.RLock()
	defer r.mu.RUnlock()

	out := make(interpreter.Functions, len(r.fns))
	for name, fn := range r.fns {
		out[name] = fn
	}
	return out
}

// Names returns the registered function names, sorted.
func (r *Registry) Names() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()

	names := make([]string, 0, len(r.fns))
	for name := range r.fns {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Default returns a registry holding every builtin plugin.
func Default() *Registry {
	r := NewRegistry()
	for module := range builtins {
		_ = r.Use(module, nil)
	}
	return r
}
