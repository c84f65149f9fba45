package registry

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/aretw0/dialogic/pkg/adapters/process"
	"github.com/aretw0/dialogic/pkg/interpreter"
	"gopkg.in/yaml.v3"
)

var (
	// ErrUnknownPlugin is returned when configuration names a plugin that is not built in.
	ErrUnknownPlugin = errors.New("plugin does not exist")

	// ErrUnsupportedPluginType is returned for plugin types other than
	// "function" and "process".
	ErrUnsupportedPluginType = errors.New("unsupported plugin type")
)

const (
	// PluginTypeFunction selects a builtin by module name.
	PluginTypeFunction = "function"
	// PluginTypeProcess exposes an external command as a function.
	PluginTypeProcess = "process"
)

// Config selects builtin plugins, e.g.:
//
//	name: my-bot
//	plugins:
//	  - name: compare-date-time
//	    type: function
//	  - name: length
//	    type: function
//	    arrayArg: true
//	  - name: stock-level
//	    type: process
//	    func: StockLevel
//	    command: ./bin/stock
type Config struct {
	Name        string         `yaml:"name"`
	Description string         `yaml:"description"`
	Plugins     []PluginConfig `yaml:"plugins"`

	// dir resolves the working directory of process plugins.
	dir string
}

// PluginConfig selects one builtin or declares a process plugin.
type PluginConfig struct {
	Name     string `yaml:"name"`
	Type     string `yaml:"type"`
	ArrayArg *bool  `yaml:"arrayArg"`

	// Process plugins only.
	Func    string            `yaml:"func"`
	Command string            `yaml:"command"`
	Args    []string          `yaml:"args"`
	Env     map[string]string `yaml:"env"`
	Timeout time.Duration     `yaml:"timeout"`
}

// LoadConfig reads a plugin configuration file.
func LoadConfig(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read plugin config: %w", err)
	}
	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("failed to parse plugin config %s: %w", path, err)
	}
	cfg.dir = filepath.Dir(path)
	return &cfg, nil
}

// FromConfig builds a registry holding exactly the configured plugins.
func FromConfig(cfg *Config) (*Registry, error) {
	r := NewRegistry()
	var runner *process.Runner
	for _, p := range cfg.Plugins {
		typ := p.Type
		if typ == "" {
			typ = PluginTypeFunction
		}
		switch typ {
		case PluginTypeFunction:
			if err := r.Use(p.Name, p.ArrayArg); err != nil {
				return nil, err
			}
		case PluginTypeProcess:
			if runner == nil {
				runner = process.NewRunner(process.WithBaseDir(cfg.dir))
			}
			if err := registerProcess(r, runner, p); err != nil {
				return nil, err
			}
		default:
			return nil, fmt.Errorf("%w: %s (%s)", ErrUnsupportedPluginType, typ, p.Name)
		}
	}
	return r, nil
}

func registerProcess(r *Registry, runner *process.Runner, p PluginConfig) error {
	err := runner.Register(process.Config{
		Name:        p.Name,
		Command:     p.Command,
		Args:        p.Args,
		Environment: p.Env,
		Timeout:     p.Timeout,
	})
	if err != nil {
		return fmt.Errorf("plugin %s: %w", p.Name, err)
	}
	name := p.Func
	if name == "" {
		name = p.Name
	}
	fn := interpreter.Function{Call: runner.Function(p.Name)}
	if p.ArrayArg != nil {
		fn.ArrayArg = *p.ArrayArg
	}
	r.Register(name, fn)
	return nil
}
