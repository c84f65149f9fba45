package interpreter

import (
	"reflect"
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/aretw0/dialogic/pkg/domain"
)

// keyOf looks up a named field. Missing keys yield nil.
func keyOf(v any, key string) (any, error) {
	switch x := v.(type) {
	case nil:
		return nil, nil
	case ObjectRef:
		return keyOf(x.Value, key)
	case DateRef:
		return dateField(x.Value, key), nil
	case time.Time:
		return dateField(x, key), nil
	case Accessor:
		val, _ := x.Access(key)
		return val, nil
	case map[string]any:
		return x[key], nil
	case ArrayRef:
		return keyOf(x.Elements, key)
	case string:
		if key == "length" {
			return len([]rune(x)), nil
		}
		return nil, nil
	}

	rv := reflect.ValueOf(v)
	if m := rv.MethodByName(key); m.IsValid() {
		return m.Interface(), nil
	}
	for rv.Kind() == reflect.Pointer || rv.Kind() == reflect.Interface {
		if rv.IsNil() {
			return nil, nil
		}
		rv = rv.Elem()
	}

	switch rv.Kind() {
	case reflect.Map:
		if rv.Type().Key().Kind() != reflect.String {
			return nil, nil
		}
		mv := rv.MapIndex(reflect.ValueOf(key).Convert(rv.Type().Key()))
		if !mv.IsValid() {
			return nil, nil
		}
		return mv.Interface(), nil
	case reflect.Struct:
		return structField(rv, key), nil
	case reflect.Slice, reflect.Array:
		if key == "length" {
			return rv.Len(), nil
		}
	}
	return nil, nil
}

func structField(rv reflect.Value, key string) any {
	t := rv.Type()
	for i := 0; i < t.NumField(); i++ {
		f := t.Field(i)
		if !f.IsExported() {
			continue
		}
		tag, _, _ := strings.Cut(f.Tag.Get("json"), ",")
		if f.Name == key || tag == key {
			return rv.Field(i).Interface()
		}
	}
	return nil
}

func dateField(t time.Time, key string) any {
	switch key {
	case "iso":
		return t.Format(time.RFC3339)
	case "unix":
		return t.UnixMilli()
	case "year":
		return t.Year()
	case "month":
		return int(t.Month())
	case "day":
		return t.Day()
	case "hour":
		return t.Hour()
	case "minute":
		return t.Minute()
	case "second":
		return t.Second()
	case "weekday":
		return t.Weekday().String()
	}
	return nil
}

// indexOf performs positional lookup on lists; string or non-list
// targets fall back to key lookup.
func indexOf(v any, idx any) (any, error) {
	if v == nil {
		return nil, nil
	}
	pos, numeric := normalize(idx).(float64)
	if !numeric {
		return keyOf(v, jsString(idx))
	}

	list, ok := asList(v)
	if !ok {
		return keyOf(v, jsString(idx))
	}
	i := int(pos)
	if float64(i) != pos || i < 0 || i >= len(list) {
		return nil, nil
	}
	return list[i], nil
}

// sliceOf returns the sub-sequence [start:end); -1 leaves a side open.
func sliceOf(v any, start, end int) (any, error) {
	if s, ok := v.(string); ok {
		r := []rune(s)
		lo, hi := clamp(start, end, len(r))
		return string(r[lo:hi]), nil
	}
	list, ok := asList(v)
	if !ok {
		return nil, domain.Typef("Array operation called on Non-Array value")
	}
	lo, hi := clamp(start, end, len(list))
	return append([]any{}, list[lo:hi]...), nil
}

func clamp(start, end, n int) (int, int) {
	lo, hi := 0, n
	if start >= 0 {
		lo = min(start, n)
	}
	if end >= 0 {
		hi = min(end, n)
	}
	if hi < lo {
		hi = lo
	}
	return lo, hi
}

func asList(v any) ([]any, bool) {
	switch x := v.(type) {
	case []any:
		return x, true
	case ArrayRef:
		return x.Elements, true
	case *ArrayRef:
		return x.Elements, true
	case string, []byte:
		return nil, false
	}
	rv := reflect.ValueOf(v)
	if rv.Kind() == reflect.Slice || rv.Kind() == reflect.Array {
		return toList(rv), true
	}
	return nil, false
}

// invoke calls zero-argument functions met while walking accessors.
func invoke(v any) (any, error) {
	switch f := v.(type) {
	case func() any:
		return f(), nil
	case func() (any, error):
		return f()
	}
	rv := reflect.ValueOf(v)
	if rv.Kind() != reflect.Func || rv.IsNil() || rv.Type().NumIn() != 0 || rv.Type().NumOut() == 0 {
		return v, nil
	}
	out := rv.Call(nil)
	if len(out) == 2 {
		if err, ok := out[1].Interface().(error); ok && err != nil {
			return nil, err
		}
	}
	return out[0].Interface(), nil
}

func applyAccessor(v any, acc Token) (any, error) {
	var (
		next any
		err  error
	)
	switch acc.Kind {
	case Key:
		next, err = keyOf(v, acc.Text)
	case Index:
		next, err = indexOf(v, acc.Value)
	case Slice:
		next, err = sliceOf(v, acc.Start, acc.End)
	}
	if err != nil {
		return nil, err
	}
	return invoke(next)
}

var pathStep = regexp.MustCompile(`^(?:\[(\d*)(:?)(\d*)\]|\.(\w+))`)

// Select walks an accessor chain such as ".user.tags[0]" or "[1:3]"
// starting from root. Bracket steps require a list.
func Select(root any, path string) (any, error) {
	v := root
	for rest := path; rest != ""; {
		m := pathStep.FindStringSubmatchIndex(rest)
		if m == nil {
			return nil, domain.Syntaxf("malformed accessor %q", rest)
		}
		step := rest[:m[1]]
		rest = rest[m[1]:]

		if strings.HasPrefix(step, ".") {
			next, err := keyOf(v, step[1:])
			if err != nil {
				return nil, err
			}
			if v, err = invoke(next); err != nil {
				return nil, err
			}
			continue
		}

		if v == nil {
			return nil, nil
		}
		if _, isString := v.(string); !isString {
			if _, ok := asList(v); !ok {
				return nil, domain.Typef("Array operation called on Non-Array value")
			}
		}

		lo := bound(step[m[2]:m[3]])
		colon := m[4] != m[5]
		hi := bound(step[m[6]:m[7]])

		var err error
		if colon {
			v, err = sliceOf(v, lo, hi)
		} else {
			v, err = indexOrChar(v, lo)
		}
		if err != nil {
			return nil, err
		}
	}
	return v, nil
}

func indexOrChar(v any, i int) (any, error) {
	if s, ok := v.(string); ok {
		r := []rune(s)
		if i < 0 || i >= len(r) {
			return nil, nil
		}
		return string(r[i]), nil
	}
	return indexOf(v, float64(i))
}

func bound(s string) int {
	if s == "" {
		return -1
	}
	n, err := strconv.Atoi(s)
	if err != nil {
		return -1
	}
	return n
}
