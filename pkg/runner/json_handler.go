package runner

import (
	"bufio"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"strings"
	"sync"
)

// JSONHandler implements the IOHandler interface for structured JSON-Lines communication.
// Every input line is a Turn ({"template": ..., "env": {...}}) and every
// reply is written as one Reply line.
type JSONHandler struct {
	Reader  *bufio.Reader
	Writer  io.Writer
	Encoder *json.Encoder

	mu sync.Mutex
}

// NewJSONHandler creates a handler for JSON IO.
func NewJSONHandler(r io.Reader, w io.Writer) *JSONHandler {
	if r == nil {
		r = os.Stdin
	}
	if w == nil {
		w = os.Stdout
	}
	return &JSONHandler{
		Reader:  bufio.NewReader(r),
		Writer:  w,
		Encoder: json.NewEncoder(w),
	}
}

func (h *JSONHandler) Input(ctx context.Context) (Turn, error) {
	for {
		if err := ctx.Err(); err != nil {
			return Turn{}, err
		}

		text, err := h.Reader.ReadString('\n')
		line := strings.TrimSpace(text)
		if line == "" {
			if err != nil {
				return Turn{}, err
			}
			continue
		}

		var turn Turn
		if jerr := json.Unmarshal([]byte(line), &turn); jerr != nil || turn.Template == "" {
			if jerr == nil {
				jerr = fmt.Errorf("missing template")
			}
			if encErr := h.encode(Reply{Error: fmt.Sprintf("invalid request: %v", jerr)}); encErr != nil {
				return Turn{}, encErr
			}
			if err != nil {
				return Turn{}, err
			}
			continue
		}

		env, serr := SanitizeEnv(turn.Env)
		if serr != nil {
			if encErr := h.encode(Reply{Template: turn.Template, Error: serr.Error()}); encErr != nil {
				return Turn{}, encErr
			}
			if err != nil {
				return Turn{}, err
			}
			continue
		}
		turn.Env = env
		return turn, nil
	}
}

func (h *JSONHandler) Output(ctx context.Context, reply Reply) error {
	return h.encode(reply)
}

// SystemOutput emits {"system": msg}.
func (h *JSONHandler) SystemOutput(ctx context.Context, msg string) error {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.Encoder.Encode(map[string]string{"system": msg})
}

func (h *JSONHandler) encode(v any) error {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.Encoder.Encode(v)
}
