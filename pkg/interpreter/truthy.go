package interpreter

import (
	"reflect"
	"time"

	"github.com/aretw0/dialogic/pkg/domain"
)

// Truthy reports whether an expression result satisfies a condition.
// The strings "true" and "false" map to their booleans, other values
// follow loose boolean coercion. Objects, lists and dates have no
// truthiness and yield a type error.
func Truthy(v any) (bool, error) {
	switch x := v.(type) {
	case ObjectRef, ArrayRef, DateRef, time.Time, map[string]any, []any:
		return false, domain.Typef("Object Truthiness is undefined")
	case string:
		switch x {
		case "true":
			return true, nil
		case "false", "":
			return false, nil
		}
		return true, nil
	case nil:
		return false, nil
	}

	switch reflect.ValueOf(v).Kind() {
	case reflect.Map, reflect.Slice, reflect.Array, reflect.Struct:
		return false, domain.Typef("Object Truthiness is undefined")
	}
	return truthy(v), nil
}
