package interpreter

import (
	"fmt"
	"math"
	"reflect"
	"strconv"
	"strings"
	"time"

	"github.com/aretw0/dialogic/pkg/domain"
)

// precedence lists operator levels, highest first.
var precedence = [][]string{
	{"**"},
	{"*", "/", "%"},
	{"+", "-"},
	{"==", "!="},
	{"<", ">", "<=", ">="},
	{"&&"},
	{"||"},
}

func binary(op string, x, y any) (any, error) {
	switch op {
	case "&&":
		if truthy(x) {
			return y, nil
		}
		return x, nil
	case "||":
		if truthy(x) {
			return x, nil
		}
		return y, nil
	case "==":
		return strictEqual(x, y), nil
	case "!=":
		return !strictEqual(x, y), nil
	case "+":
		_, xs := x.(string)
		_, ys := y.(string)
		if xs || ys {
			return jsString(x) + jsString(y), nil
		}
		return toNumber(x) + toNumber(y), nil
	case "-":
		return toNumber(x) - toNumber(y), nil
	case "*":
		return toNumber(x) * toNumber(y), nil
	case "/":
		return toNumber(x) / toNumber(y), nil
	case "%":
		return math.Mod(toNumber(x), toNumber(y)), nil
	case "**":
		return math.Pow(toNumber(x), toNumber(y)), nil
	case "<", ">", "<=", ">=":
		return compare(op, x, y), nil
	}
	return nil, domain.Runtimef("unknown operator %s", op)
}

func compare(op string, x, y any) bool {
	xs, xok := x.(string)
	ys, yok := y.(string)
	if xok && yok {
		c := strings.Compare(xs, ys)
		switch op {
		case "<":
			return c < 0
		case ">":
			return c > 0
		case "<=":
			return c <= 0
		}
		return c >= 0
	}

	a, b := toNumber(x), toNumber(y)
	switch op {
	case "<":
		return a < b
	case ">":
		return a > b
	case "<=":
		return a <= b
	}
	return a >= b
}

func strictEqual(x, y any) bool {
	switch a := x.(type) {
	case nil:
		return y == nil
	case float64:
		b, ok := y.(float64)
		return ok && a == b
	case string:
		b, ok := y.(string)
		return ok && a == b
	case bool:
		b, ok := y.(bool)
		return ok && a == b
	case time.Time:
		b, ok := y.(time.Time)
		return ok && a.Equal(b)
	}
	return reflect.DeepEqual(x, y)
}

// toNumber coerces like a loosely typed language would: booleans are 0/1,
// blank strings are 0 and unparseable values are NaN.
func toNumber(v any) float64 {
	switch x := normalize(v).(type) {
	case float64:
		return x
	case bool:
		if x {
			return 1
		}
		return 0
	case nil:
		return 0
	case string:
		s := strings.TrimSpace(x)
		if s == "" {
			return 0
		}
		if !numberText.MatchString(s) {
			return math.NaN()
		}
		f, err := strconv.ParseFloat(s, 64)
		if err != nil {
			return math.NaN()
		}
		return f
	case time.Time:
		return float64(x.UnixMilli())
	}
	return math.NaN()
}

func truthy(v any) bool {
	switch x := normalize(v).(type) {
	case nil:
		return false
	case bool:
		return x
	case float64:
		return x != 0 && !math.IsNaN(x)
	case string:
		return x != ""
	}
	return true
}

func jsString(v any) string {
	switch x := normalize(v).(type) {
	case nil:
		return "null"
	case string:
		return x
	case bool:
		return strconv.FormatBool(x)
	case float64:
		return formatNumber(x)
	case time.Time:
		return x.Format(time.RFC3339)
	case DateRef:
		return x.Value.Format(time.RFC3339)
	case ArrayRef:
		return jsString(x.Elements)
	case []any:
		parts := make([]string, len(x))
		for i, e := range x {
			parts[i] = jsString(e)
		}
		return strings.Join(parts, ",")
	case map[string]any, ObjectRef:
		return "[object Object]"
	case fmt.Stringer:
		return x.String()
	}
	return fmt.Sprint(v)
}

func formatNumber(f float64) string {
	switch {
	case math.IsNaN(f):
		return "NaN"
	case math.IsInf(f, 1):
		return "Infinity"
	case math.IsInf(f, -1):
		return "-Infinity"
	case f == 0:
		return "0"
	}
	if abs := math.Abs(f); abs >= 1e21 || abs < 1e-6 {
		return strconv.FormatFloat(f, 'g', -1, 64)
	}
	return strconv.FormatFloat(f, 'f', -1, 64)
}

// Stringify renders a value the way expression results are rendered.
func Stringify(v any) string {
	return jsString(v)
}
