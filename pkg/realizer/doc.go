// Package realizer renders named templates into text.
//
// A render resolves the template's domain, selects one of its variants by
// evaluating their conditions with the interpreter, expands nested
// "[subTemplate key=$value]" invocations recursively and finally
// substitutes "$name" references from the caller's environment.
//
// Only schema-registered templates (intents) are recorded as conversation
// steps, and only once the whole render has succeeded.
package realizer
