package interpreter

import (
	"encoding/json"
	"fmt"
	"reflect"
	"regexp"
	"time"
)

// Kind discriminates tokens.
type Kind int

const (
	// Word is raw text with no other meaning.
	Word Kind = iota
	Number
	Boolean
	// String is a quoted literal; Text keeps the delimiters.
	String
	Operator
	// Bracket is one of ( ) { }.
	Bracket
	// Variable is an unresolved "$name" produced by re-classifying a value.
	Variable
	// Value is a resolved scalar or opaque value held in Token.Value.
	Value
	Object
	Array
	Date
	Key
	Index
	Slice
)

var kindNames = [...]string{
	Word: "word", Number: "number", Boolean: "boolean", String: "string",
	Operator: "operator", Bracket: "bracket", Variable: "variable", Value: "value",
	Object: "object", Array: "array", Date: "date", Key: "key", Index: "index", Slice: "slice",
}

func (k Kind) String() string {
	if int(k) < len(kindNames) {
		return kindNames[k]
	}
	return fmt.Sprintf("kind(%d)", int(k))
}

// Token is one element of an expression.
type Token struct {
	Kind  Kind
	Text  string
	Value any
	// Start and End bound a Slice; -1 is an open bound.
	Start, End int
}

func (t Token) String() string {
	switch t.Kind {
	case Value, Object, Array, Date, Index:
		return fmt.Sprintf("%s(%v)", t.Kind, t.Value)
	case Slice:
		return fmt.Sprintf("slice(%d:%d)", t.Start, t.End)
	}
	return fmt.Sprintf("%s(%s)", t.Kind, t.Text)
}

func (t Token) isAccessor() bool {
	return t.Kind == Key || t.Kind == Index || t.Kind == Slice
}

func (t Token) isReference() bool {
	return t.Kind == Object || t.Kind == Array || t.Kind == Date
}

func (t Token) isCompound() bool {
	return t.isReference() || t.isAccessor()
}

func (t Token) is(bracket string) bool {
	return t.Kind == Bracket && t.Text == bracket
}

// ObjectRef marks a value to be treated as an object in expressions.
type ObjectRef struct {
	Value any
}

// ArrayRef marks a list value.
type ArrayRef struct {
	Elements []any
}

// DateRef marks a point in time.
type DateRef struct {
	Value time.Time
}

// Accessor is implemented by values that expose named fields to expressions.
type Accessor interface {
	Access(key string) (any, bool)
}

var operators = map[string]bool{
	"**": true, "*": true, "/": true, "%": true, "+": true, "-": true,
	"==": true, "!=": true, "<": true, ">": true, "<=": true, ">=": true,
	"&&": true, "||": true,
}

var (
	numberText   = regexp.MustCompile(`^[+-]?(?:\d+\.?\d*|\.\d+)(?:[eE][+-]?\d+)?$`)
	quotedText   = regexp.MustCompile("^(?s:'.*'|\".*\"|`.*`)$")
	variableText = regexp.MustCompile(`^\$\w+$`)
)

// classify turns raw text into a token.
func classify(text string) Token {
	tok := Token{Kind: Word, Text: text}
	switch {
	case text == "":
	case numberText.MatchString(text):
		tok.Kind = Number
	case len(text) >= 2 && quotedText.MatchString(text):
		tok.Kind = String
	case text == "true" || text == "false":
		tok.Kind = Boolean
	case operators[text]:
		tok.Kind = Operator
	case text == "(" || text == ")" || text == "{" || text == "}":
		tok.Kind = Bracket
	case variableText.MatchString(text):
		tok.Kind = Variable
	}
	return tok
}

// wrapValue turns a Go value into a token, detecting references.
func wrapValue(v any) Token {
	switch x := v.(type) {
	case nil:
		return Token{Kind: Value}
	case Token:
		return x
	case ObjectRef:
		return Token{Kind: Object, Value: x.Value}
	case *ObjectRef:
		return Token{Kind: Object, Value: x.Value}
	case ArrayRef:
		return Token{Kind: Array, Value: x.Elements}
	case *ArrayRef:
		return Token{Kind: Array, Value: x.Elements}
	case DateRef:
		return Token{Kind: Date, Value: x.Value}
	case *DateRef:
		return Token{Kind: Date, Value: x.Value}
	case time.Time:
		return Token{Kind: Date, Value: x}
	case *time.Time:
		return Token{Kind: Date, Value: *x}
	case string:
		return classify(x)
	case bool:
		return Token{Kind: Value, Value: x}
	case json.Number:
		return Token{Kind: Value, Value: normalize(x)}
	case Accessor:
		return Token{Kind: Object, Value: x}
	case []any:
		return Token{Kind: Array, Value: x}
	}

	rv := reflect.ValueOf(v)
	switch rv.Kind() {
	case reflect.Map, reflect.Struct:
		return Token{Kind: Object, Value: v}
	case reflect.Pointer:
		if rv.Elem().Kind() == reflect.Struct {
			return Token{Kind: Object, Value: v}
		}
	case reflect.Slice, reflect.Array:
		if rv.Type().Elem().Kind() != reflect.Uint8 {
			return Token{Kind: Array, Value: toList(rv)}
		}
	}
	return Token{Kind: Value, Value: normalize(v)}
}

func toList(rv reflect.Value) []any {
	out := make([]any, rv.Len())
	for i := range out {
		out[i] = rv.Index(i).Interface()
	}
	return out
}

// normalize folds every numeric type into float64.
func normalize(v any) any {
	switch x := v.(type) {
	case float64:
		return x
	case float32:
		return float64(x)
	case int:
		return float64(x)
	case int8:
		return float64(x)
	case int16:
		return float64(x)
	case int32:
		return float64(x)
	case int64:
		return float64(x)
	case uint:
		return float64(x)
	case uint8:
		return float64(x)
	case uint16:
		return float64(x)
	case uint32:
		return float64(x)
	case uint64:
		return float64(x)
	case json.Number:
		f, err := x.Float64()
		if err != nil {
			return x.String()
		}
		return f
	}
	return v
}

// result converts a terminal token into the value handed back to callers.
func result(tok Token) any {
	switch tok.Kind {
	case Value:
		return tok.Value
	case Object:
		return ObjectRef{Value: tok.Value}
	case Array:
		list, _ := tok.Value.([]any)
		return ArrayRef{Elements: list}
	case Date:
		t, _ := tok.Value.(time.Time)
		return DateRef{Value: t}
	case String:
		return unquote(tok.Text)
	}
	return tok.Text
}

func unquote(text string) string {
	if len(text) >= 2 {
		return text[1 : len(text)-1]
	}
	return text
}
