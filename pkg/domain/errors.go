package domain

import (
	"errors"
	"fmt"
)

// ErrorKind classifies failures raised while evaluating or rendering.
type ErrorKind string

const (
	KindSyntax    ErrorKind = "syntax"
	KindReference ErrorKind = "reference"
	KindType      ErrorKind = "type"
	KindRuntime   ErrorKind = "runtime"
)

// Kind sentinels. Every *Error matches the sentinel of its kind through errors.Is.
var (
	ErrSyntax    = errors.New("syntax error")
	ErrReference = errors.New("reference error")
	ErrType      = errors.New("type error")
	ErrRuntime   = errors.New("runtime error")
)

var (
	// ErrTemplateNotFound is returned when a template name resolves in no domain.
	ErrTemplateNotFound = errors.New("template not found")

	// ErrTemplateCycle is returned when a template invokes itself, directly or transitively.
	ErrTemplateCycle = errors.New("template cycle detected")

	// ErrNoVariant is returned when no variant of a template has its conditions satisfied.
	ErrNoVariant = errors.New("no valid variant")

	// ErrReservedName is returned when a template uses a reserved name.
	ErrReservedName = errors.New("reserved template name")

	// ErrInvalidTemplateName is returned for names made only of digits and colons.
	ErrInvalidTemplateName = errors.New("invalid template name")

	// ErrSessionNotFound is returned when a session ID cannot be found in the store.
	ErrSessionNotFound = errors.New("session not found")
)

// Error is a classified evaluation or rendering failure.
type Error struct {
	Kind    ErrorKind
	Message string
	// Err optionally carries a more specific sentinel, such as ErrTemplateCycle.
	Err error
}

func (e *Error) Error() string {
	return e.Message
}

func (e *Error) Unwrap() error {
	return e.Err
}

// Is matches the sentinel for the error's kind.
func (e *Error) Is(target error) bool {
	switch target {
	case ErrSyntax:
		return e.Kind == KindSyntax
	case ErrReference:
		return e.Kind == KindReference
	case ErrType:
		return e.Kind == KindType
	case ErrRuntime:
		return e.Kind == KindRuntime
	}
	return false
}

// Syntaxf builds a syntax error.
func Syntaxf(format string, args ...any) *Error {
	return &Error{Kind: KindSyntax, Message: fmt.Sprintf(format, args...)}
}

// Referencef builds a reference error.
func Referencef(format string, args ...any) *Error {
	return &Error{Kind: KindReference, Message: fmt.Sprintf(format, args...)}
}

// Typef builds a type error.
func Typef(format string, args ...any) *Error {
	return &Error{Kind: KindType, Message: fmt.Sprintf(format, args...)}
}

// Runtimef builds a runtime error.
func Runtimef(format string, args ...any) *Error {
	return &Error{Kind: KindRuntime, Message: fmt.Sprintf(format, args...)}
}

// KindOf returns the kind of err, or "" when err is not classified.
func KindOf(err error) ErrorKind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return ""
}
