package runner

import (
	"bytes"
	"context"
	"errors"
	"io"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseTurn(t *testing.T) {
	tests := []struct {
		name    string
		line    string
		want    Turn
		wantErr bool
	}{
		{"Template Only", "Greet", Turn{Template: "Greet"}, false},
		{"Typed Values", "InventoryQuery num_items=3 item_plural=apples ok=true",
			Turn{Template: "InventoryQuery", Env: map[string]any{"num_items": 3, "item_plural": "apples", "ok": true}}, false},
		{"Quoted", `Greet name="Ada Lovelace"`, Turn{Template: "Greet", Env: map[string]any{"name": "Ada Lovelace"}}, false},
		{"List", "Pick items=[a,b]", Turn{Template: "Pick", Env: map[string]any{"items": []any{"a", "b"}}}, false},
		{"Empty Value", "Greet name=", Turn{Template: "Greet", Env: map[string]any{"name": ""}}, false},
		{"Pair First", "name=x", Turn{}, true},
		{"Bad Pair", "Greet name", Turn{}, true},
		{"Open Quote", `Greet name="Ada`, Turn{}, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := ParseTurn(tt.line)
			if tt.wantErr {
				assert.ErrorIs(t, err, ErrMalformedTurn)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestTextHandler_Input(t *testing.T) {
	in := strings.NewReader("\n\x07Greet name=Ada\nname=oops\nCount\nexit\nNever\n")
	out := &bytes.Buffer{}
	handler := NewTextHandler(in, out)
	ctx := context.Background()

	turn, err := handler.Input(ctx)
	require.NoError(t, err)
	assert.Equal(t, Turn{Template: "Greet", Env: map[string]any{"name": "Ada"}}, turn)

	turn, err = handler.Input(ctx)
	require.NoError(t, err)
	assert.Equal(t, "Count", turn.Template)
	assert.Contains(t, out.String(), "Error: expected: Template key=value")

	_, err = handler.Input(ctx)
	assert.ErrorIs(t, err, io.EOF)
}

func TestTextHandler_Input_Cancelled(t *testing.T) {
	r, _ := io.Pipe()
	handler := NewTextHandler(r, io.Discard)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := handler.Input(ctx)
	assert.True(t, errors.Is(err, context.Canceled))
}

func TestTextHandler_Output(t *testing.T) {
	out := &bytes.Buffer{}
	handler := NewTextHandler(strings.NewReader(""), out,
		WithTextHandlerRenderer(func(s string) (string, error) {
			return "Rendered: " + s, nil
		}),
	)
	ctx := context.Background()

	require.NoError(t, handler.Output(ctx, Reply{Template: "Greet", Text: "Hello", Success: true}))
	require.NoError(t, handler.Output(ctx, Reply{Template: "Greet", Error: "boom"}))
	require.NoError(t, handler.SystemOutput(ctx, "reloaded"))

	assert.Equal(t, "Rendered: Hello\nError: boom\n[System] reloaded\n", out.String())
}
