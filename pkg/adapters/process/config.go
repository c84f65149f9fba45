package process

import (
	"time"
)

// DefaultTimeout bounds a single plugin invocation.
const DefaultTimeout = 5 * time.Second

// ArgEnvPrefix prefixes the environment variables carrying positional arguments.
const ArgEnvPrefix = "DIALOGIC_ARG_"

// Config describes an external command exposed to expressions as a function.
type Config struct {
	Name        string            `yaml:"name" json:"name"`
	Command     string            `yaml:"command" json:"command"`
	Args        []string          `yaml:"args" json:"args"`
	Environment map[string]string `yaml:"env" json:"env"`
	Timeout     time.Duration     `yaml:"timeout" json:"timeout"`
}
