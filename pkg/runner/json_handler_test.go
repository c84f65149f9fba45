package runner

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestJSONHandler_Input(t *testing.T) {
	in := strings.NewReader(strings.Join([]string{
		`{"template": "Greet", "env": {"name": "Ada\u0007", "n": 2}}`,
		``,
		`not json`,
		`{"env": {}}`,
		`{"template": "Count"}`,
	}, "\n"))
	out := &bytes.Buffer{}
	handler := NewJSONHandler(in, out)
	ctx := context.Background()

	turn, err := handler.Input(ctx)
	require.NoError(t, err)
	assert.Equal(t, "Greet", turn.Template)
	assert.Equal(t, map[string]any{"name": "Ada", "n": 2.0}, turn.Env)

	turn, err = handler.Input(ctx)
	require.NoError(t, err)
	assert.Equal(t, "Count", turn.Template)

	_, err = handler.Input(ctx)
	assert.ErrorIs(t, err, io.EOF)

	lines := strings.Split(strings.TrimSpace(out.String()), "\n")
	require.Len(t, lines, 2, "one error reply per rejected line")
	for _, line := range lines {
		var reply Reply
		require.NoError(t, json.Unmarshal([]byte(line), &reply))
		assert.False(t, reply.Success)
		assert.Contains(t, reply.Error, "invalid request")
	}
}

func TestJSONHandler_Output(t *testing.T) {
	out := &bytes.Buffer{}
	handler := NewJSONHandler(strings.NewReader(""), out)
	ctx := context.Background()

	require.NoError(t, handler.Output(ctx, Reply{Template: "Greet", Text: "Hello", Success: true}))
	require.NoError(t, handler.SystemOutput(ctx, "ready"))

	assert.Equal(t,
		`{"template":"Greet","text":"Hello","success":true}`+"\n"+`{"system":"ready"}`+"\n",
		out.String())
}
