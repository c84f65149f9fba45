package cli

import (
	"bytes"
	"context"
	"testing"

	"github.com/aretw0/dialogic"
	"github.com/aretw0/dialogic/pkg/dsl"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newREPL(t *testing.T) (*REPL, *bytes.Buffer) {
	t.Helper()
	b := dsl.New()
	b.Domain("d").
		Intent("Count").
		Arg("n", "num", true).
		Switch().
		Form("many", "$n > 1").
		Form("one")
	loader, err := b.Build()
	require.NoError(t, err)
	eng, err := dialogic.NewWithLoader(loader)
	require.NoError(t, err)

	var out bytes.Buffer
	return NewREPL(eng, nil, &out), &out
}

func TestREPL_Evaluate(t *testing.T) {
	r, out := newREPL(t)
	ctx := context.Background()

	require.NoError(t, r.Exec(ctx, ":set a=4"))
	require.NoError(t, r.Exec(ctx, "$a * 2"))
	assert.Equal(t, "8\n", out.String())

	err := r.Exec(ctx, "$nope")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "reference")
}

func TestREPL_Render(t *testing.T) {
	r, out := newREPL(t)
	ctx := context.Background()

	require.NoError(t, r.Exec(ctx, ":set n=3"))
	require.NoError(t, r.Exec(ctx, ":render Count"))
	require.NoError(t, r.Exec(ctx, ":render Count n=1"))
	assert.Equal(t, "many\none\n", out.String())
}

func TestREPL_Commands(t *testing.T) {
	r, out := newREPL(t)
	ctx := context.Background()

	require.NoError(t, r.Exec(ctx, ""))
	require.NoError(t, r.Exec(ctx, ":templates"))
	assert.Equal(t, "Count\n", out.String())

	require.NoError(t, r.Exec(ctx, ":set x=1"))
	require.NoError(t, r.Exec(ctx, ":unset x"))
	assert.Empty(t, r.env)

	assert.Error(t, r.Exec(ctx, ":set"))
	assert.Error(t, r.Exec(ctx, ":bogus"))
	assert.ErrorIs(t, r.Exec(ctx, ":quit"), ErrQuit)
}
