package registry_test

import (
	"os"
	"path/filepath"
	"runtime"
	"testing"
	"time"

	"github.com/aretw0/dialogic/pkg/domain"
	"github.com/aretw0/dialogic/pkg/history"
	"github.com/aretw0/dialogic/pkg/interpreter"
	"github.com/aretw0/dialogic/pkg/registry"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRegistry_Default(t *testing.T) {
	r := registry.Default()
	assert.Equal(t, []string{"CompareDateTime", "IsNull", "Length", "Not", "ThreadTouched"}, r.Names())
	assert.True(t, r.Functions()["Length"].ArrayArg)
	assert.False(t, r.Functions()["Not"].ArrayArg)
}

func TestRegistry_FunctionsIsCopy(t *testing.T) {
	r := registry.NewRegistry()
	r.Register("Echo", interpreter.Function{Call: func(_ map[string]any, args ...any) (any, error) {
		return args[0], nil
	}})

	fns := r.Functions()
	delete(fns, "Echo")
	assert.Equal(t, []string{"Echo"}, r.Names())
}

func TestCompareDateTime(t *testing.T) {
	base := time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)

	tests := []struct {
		name string
		args []any
		want int
	}{
		{"within default overlap", []any{base, base.Add(30 * time.Second)}, 0},
		{"earlier", []any{base, base.Add(2 * time.Minute)}, 1},
		{"later", []any{base.Add(2 * time.Minute), base}, -1},
		{"exactly at overlap is not overlap", []any{base, base.Add(time.Minute)}, 1},
		{"custom overlap", []any{base, base.Add(2 * time.Minute), "300"}, 0},
		{"date refs", []any{interpreter.DateRef{Value: base}, interpreter.DateRef{Value: base.Add(-time.Hour)}}, -1},
		{"iso strings", []any{"2024-03-01T12:00:00Z", "2024-03-01T13:00:00Z"}, 1},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := registry.CompareDateTime(nil, tt.args...)
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestCompareDateTime_Errors(t *testing.T) {
	base := time.Now()

	_, err := registry.CompareDateTime(nil)
	assert.ErrorIs(t, err, domain.ErrRuntime)
	assert.Contains(t, err.Error(), "no arguments provided!")

	_, err = registry.CompareDateTime(nil, base)
	assert.Contains(t, err.Error(), "missing comparison time!")

	_, err = registry.CompareDateTime(nil, "yesterday", base)
	assert.ErrorIs(t, err, domain.ErrType)
	assert.Contains(t, err.Error(), "cannot parse 1st time argument!")

	_, err = registry.CompareDateTime(nil, base, 42)
	assert.Contains(t, err.Error(), "cannot parse 2nd time argument!")

	_, err = registry.CompareDateTime(nil, base, base, "soon")
	assert.Contains(t, err.Error(), "overlap interval must be number type!")
}

func TestLength(t *testing.T) {
	got, err := registry.Length(nil, []any{interpreter.ArrayRef{Elements: []any{1.0, 2.0, 3.0}}})
	require.NoError(t, err)
	assert.Equal(t, 3, got)

	got, err = registry.Length(nil, []any{"a", "b"})
	require.NoError(t, err)
	assert.Equal(t, 2, got)

	_, err = registry.Length(nil, []any{interpreter.ObjectRef{Value: map[string]any{"a": 1}}})
	assert.ErrorIs(t, err, domain.ErrType)
}

func TestNotAndIsNull(t *testing.T) {
	got, _ := registry.Not(nil, "false")
	assert.Equal(t, true, got)
	got, _ = registry.Not(nil, 1.0)
	assert.Equal(t, false, got)
	got, _ = registry.Not(nil, interpreter.ObjectRef{Value: map[string]any{}})
	assert.Equal(t, false, got)

	got, _ = registry.IsNull(nil, nil)
	assert.Equal(t, 1, got)
	got, _ = registry.IsNull(nil, "x")
	assert.Equal(t, 0, got)
}

func TestThreadTouched(t *testing.T) {
	h, err := history.New()
	require.NoError(t, err)
	h.RecordStep("1.2.0-greeting")

	env := map[string]any{interpreter.HistoryBinding: h}
	got, err := registry.ThreadTouched(env, "1.2")
	require.NoError(t, err)
	assert.Equal(t, true, got)

	got, err = registry.ThreadTouched(env, "3.1")
	require.NoError(t, err)
	assert.Equal(t, false, got)

	_, err = registry.ThreadTouched(map[string]any{}, "1.2")
	assert.ErrorIs(t, err, domain.ErrRuntime)

	_, err = registry.ThreadTouched(map[string]any{interpreter.HistoryBinding: "nope"}, "1.2")
	assert.ErrorIs(t, err, domain.ErrType)
}

func TestBuiltins_FromExpressions(t *testing.T) {
	h, err := history.New()
	require.NoError(t, err)
	h.RecordStep("1.0.0-hello")

	in := interpreter.New(interpreter.WithFunctions(registry.Default().Functions()))
	env := map[string]any{
		interpreter.HistoryBinding: h,
		"items":                    []any{"a", "b", "c"},
		"start":                    time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC),
		"end":                      time.Date(2024, 1, 2, 0, 0, 0, 0, time.UTC),
	}

	tests := []struct {
		expr string
		want bool
	}{
		{"{ Length $items } == 3", true},
		{"{ CompareDateTime $start $end } == 1", true},
		{"{ ThreadTouched '1.0' }", true},
		{"{ Not false }", true},
	}
	for _, tt := range tests {
		t.Run(tt.expr, func(t *testing.T) {
			got, err := in.Condition(tt.expr, env)
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestFromConfig(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "dialogic.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`name: demo
plugins:
  - name: length
    type: function
    arrayArg: true
  - name: not
`), 0o644))

	cfg, err := registry.LoadConfig(path)
	require.NoError(t, err)
	assert.Equal(t, "demo", cfg.Name)

	r, err := registry.FromConfig(cfg)
	require.NoError(t, err)
	assert.Equal(t, []string{"Length", "Not"}, r.Names())

	_, err = registry.FromConfig(&registry.Config{Plugins: []registry.PluginConfig{{Name: "length", Type: "middleware"}}})
	assert.ErrorIs(t, err, registry.ErrUnsupportedPluginType)

	_, err = registry.FromConfig(&registry.Config{Plugins: []registry.PluginConfig{{Name: "translate"}}})
	assert.ErrorIs(t, err, registry.ErrUnknownPlugin)
}

func TestFromConfig_ProcessPlugin(t *testing.T) {
	if runtime.GOOS == "windows" {
		t.Skip("uses sh")
	}
	dir := t.TempDir()
	path := filepath.Join(dir, "plugins.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`name: demo
plugins:
  - name: first-arg
    type: process
    func: FirstArg
    command: sh
    args: ["-c", "echo $DIALOGIC_ARG_0"]
  - name: echo-all
    type: process
    func: EchoAll
    command: sh
    args: ["-c", "cat"]
    timeout: 2s
`), 0o644))

	cfg, err := registry.LoadConfig(path)
	require.NoError(t, err)
	r, err := registry.FromConfig(cfg)
	require.NoError(t, err)
	assert.Equal(t, []string{"EchoAll", "FirstArg"}, r.Names())

	in := interpreter.New(interpreter.WithFunctions(r.Functions()))
	ok, err := in.Condition("{ FirstArg 'tea' } == 'tea'", nil)
	require.NoError(t, err)
	assert.True(t, ok)

	out, err := r.Functions()["EchoAll"].Call(nil, "a", 2)
	require.NoError(t, err)
	assert.Equal(t, []any{"a", float64(2)}, out)

	_, err = registry.FromConfig(&registry.Config{Plugins: []registry.PluginConfig{{Name: "broken", Type: "process"}}})
	assert.Error(t, err)
}
