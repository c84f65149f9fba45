package realizer

import (
	"fmt"
	"strings"
)

// MissingArgumentsError reports required intent arguments absent from an environment.
type MissingArgumentsError struct {
	Template string
	Missing  []string
}

func (e *MissingArgumentsError) Error() string {
	return fmt.Sprintf("template %s is missing required argument(s): %s", e.Template, strings.Join(e.Missing, ", "))
}
