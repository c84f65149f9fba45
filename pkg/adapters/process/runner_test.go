package process_test

import (
	"context"
	"runtime"
	"testing"
	"time"

	"github.com/aretw0/dialogic/pkg/adapters/process"
	"github.com/aretw0/dialogic/pkg/interpreter"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRunner_Call(t *testing.T) {
	if runtime.GOOS == "windows" {
		t.Skip("uses sh")
	}
	ctx := context.Background()
	r := process.NewRunner(process.WithBaseDir(t.TempDir()))

	require.NoError(t, r.Register(process.Config{Name: "first", Command: "sh", Args: []string{"-c", "echo $DIALOGIC_ARG_0"}}))
	require.NoError(t, r.Register(process.Config{Name: "stdin", Command: "sh", Args: []string{"-c", "cat"}}))
	require.NoError(t, r.Register(process.Config{
		Name:        "greeting",
		Command:     "sh",
		Args:        []string{"-c", "echo $GREETING"},
		Environment: map[string]string{"GREETING": "hi"},
	}))
	require.NoError(t, r.Register(process.Config{Name: "fail", Command: "sh", Args: []string{"-c", "echo boom >&2; exit 3"}}))
	require.NoError(t, r.Register(process.Config{Name: "slow", Command: "sleep", Args: []string{"5"}, Timeout: 50 * time.Millisecond}))

	t.Run("Passes Arguments via Env Vars", func(t *testing.T) {
		out, err := r.Call(ctx, "first", []any{"SecretMessage"})
		require.NoError(t, err)
		assert.Equal(t, "SecretMessage", out)
	})

	t.Run("Decodes JSON Output", func(t *testing.T) {
		out, err := r.Call(ctx, "stdin", []any{interpreter.ArrayRef{Elements: []any{"a", "b"}}, true})
		require.NoError(t, err)
		assert.Equal(t, []any{[]any{"a", "b"}, true}, out)
	})

	t.Run("Applies Configured Environment", func(t *testing.T) {
		out, err := r.Call(ctx, "greeting", nil)
		require.NoError(t, err)
		assert.Equal(t, "hi", out)
	})

	t.Run("Reports Stderr On Failure", func(t *testing.T) {
		_, err := r.Call(ctx, "fail", nil)
		require.Error(t, err)
		assert.Contains(t, err.Error(), "boom")
	})

	t.Run("Times Out", func(t *testing.T) {
		_, err := r.Call(ctx, "slow", nil)
		require.Error(t, err)
		assert.Contains(t, err.Error(), "timed out")
	})

	t.Run("Fails For Unregistered Command", func(t *testing.T) {
		_, err := r.Call(ctx, "hacker_script", nil)
		assert.ErrorIs(t, err, process.ErrNotRegistered)
	})
}

func TestRunner_Register(t *testing.T) {
	r := process.NewRunner()
	assert.Error(t, r.Register(process.Config{Name: "nameless"}))
	assert.Error(t, r.Register(process.Config{Command: "true"}))
}

func TestRunner_Function(t *testing.T) {
	if runtime.GOOS == "windows" {
		t.Skip("uses sh")
	}
	r := process.NewRunner()
	require.NoError(t, r.Register(process.Config{Name: "count", Command: "sh", Args: []string{"-c", "echo 42"}}))
	require.NoError(t, r.Register(process.Config{Name: "stock", Command: "sh", Args: []string{"-c", `echo '{"item": "tea", "left": 3}'`}}))

	in := interpreter.New(interpreter.WithFunctions(interpreter.Functions{
		"Count": {Call: r.Function("count")},
	}))

	// Numeric text output reads as a number in expressions.
	ok, err := in.Condition("{ Count } == 42", nil)
	require.NoError(t, err)
	assert.True(t, ok)

	out, err := r.Function("stock")(nil)
	require.NoError(t, err)
	assert.Equal(t, map[string]any{"item": "tea", "left": float64(3)}, out)
}
