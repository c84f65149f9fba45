package registry

import (
	"math"
	"sort"
	"strconv"
	"time"

	"github.com/aretw0/dialogic/pkg/domain"
	"github.com/aretw0/dialogic/pkg/history"
	"github.com/aretw0/dialogic/pkg/interpreter"
)

// Plugin is a builtin function addressable from plugin configuration.
type Plugin struct {
	Module   string
	FuncName string
	Call     interpreter.Func
	ArrayArg bool
}

var builtins = map[string]Plugin{
	"compare-date-time": {Module: "compare-date-time", FuncName: "CompareDateTime", Call: CompareDateTime},
	"is-null":           {Module: "is-null", FuncName: "IsNull", Call: IsNull},
	"length":            {Module: "length", FuncName: "Length", Call: Length, ArrayArg: true},
	"not":               {Module: "not", FuncName: "Not", Call: Not},
	"thread-touched":    {Module: "thread-touched", FuncName: "ThreadTouched", Call: ThreadTouched},
}

// Builtins lists the builtin plugin module names, sorted.
func Builtins() []string {
	names := make([]string, 0, len(builtins))
	for name := range builtins {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// DefaultOverlapSeconds is the tolerance under which CompareDateTime treats
// two instants as the same.
const DefaultOverlapSeconds = 60

// CompareDateTime compares two dates: 0 when they are closer than the
// overlap interval (seconds, optional third argument), 1 when the first is
// earlier, -1 when it is later.
func CompareDateTime(_ map[string]any, args ...any) (any, error) {
	if len(args) == 0 {
		return nil, domain.Runtimef("no arguments provided!")
	}
	if len(args) < 2 {
		return nil, domain.Runtimef("missing comparison time!")
	}
	t1, ok := asTime(args[0])
	if !ok {
		return nil, domain.Typef("cannot parse 1st time argument!")
	}
	t2, ok := asTime(args[1])
	if !ok {
		return nil, domain.Typef("cannot parse 2nd time argument!")
	}

	overlap := float64(DefaultOverlapSeconds)
	if len(args) > 2 && args[2] != nil {
		f, ok := asNumber(args[2])
		if !ok {
			return nil, domain.Typef("overlap interval must be number type!")
		}
		overlap = f
	}

	diff := math.Abs(float64(t1.Sub(t2).Milliseconds()))
	switch {
	case diff < overlap*1000:
		return 0, nil
	case t1.Before(t2):
		return 1, nil
	}
	return -1, nil
}

// IsNull returns 1 when its argument is null, 0 otherwise.
func IsNull(_ map[string]any, args ...any) (any, error) {
	if len(args) == 0 || args[0] == nil {
		return 1, nil
	}
	return 0, nil
}

// Length counts the elements of its single list argument, or the number
// of arguments when called with scalars.
func Length(_ map[string]any, args ...any) (any, error) {
	list := args
	if len(args) == 1 {
		if collected, ok := args[0].([]any); ok {
			list = collected
		}
	}
	if len(list) == 1 {
		switch x := list[0].(type) {
		case interpreter.ArrayRef:
			return len(x.Elements), nil
		case []any:
			return len(x), nil
		case interpreter.ObjectRef, interpreter.DateRef, map[string]any:
			return nil, domain.Typef("non-Array type object passed into Length function!")
		}
	}
	return len(list), nil
}

// Not negates its argument. Objects count as true.
func Not(_ map[string]any, args ...any) (any, error) {
	if len(args) == 0 {
		return true, nil
	}
	ok, err := interpreter.Truthy(args[0])
	if err != nil {
		return false, nil
	}
	return !ok, nil
}

// ThreadTouched reports whether the bound history has visited a thread.
func ThreadTouched(env map[string]any, args ...any) (any, error) {
	bound, ok := env[interpreter.HistoryBinding]
	if !ok {
		return nil, domain.Runtimef("environment does not contain %s!", interpreter.HistoryBinding)
	}
	h, ok := bound.(*history.History)
	if !ok || h == nil {
		return nil, domain.Typef("%s in env is not a history instance", interpreter.HistoryBinding)
	}
	if len(args) == 0 {
		return false, nil
	}
	return h.ThreadTouched(interpreter.Stringify(args[0])), nil
}

func asTime(v any) (time.Time, bool) {
	switch x := v.(type) {
	case time.Time:
		return x, true
	case *time.Time:
		if x != nil {
			return *x, true
		}
	case interpreter.DateRef:
		return x.Value, true
	case string:
		t, err := time.Parse(time.RFC3339, x)
		return t, err == nil
	}
	return time.Time{}, false
}

func asNumber(v any) (float64, bool) {
	switch x := v.(type) {
	case float64:
		return x, true
	case int:
		return float64(x), true
	case int64:
		return float64(x), true
	case string:
		f, err := strconv.ParseFloat(x, 64)
		return f, err == nil
	}
	return 0, false
}
