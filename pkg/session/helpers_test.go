package session_test

import (
	"github.com/aretw0/dialogic/pkg/interpreter"
	"github.com/aretw0/dialogic/pkg/registry"
)

func registryFunctions() interpreter.Functions {
	return registry.Default().Functions()
}
