package runner

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"
	"sync"
	"time"

	"gopkg.in/yaml.v3"
)

// ErrMalformedTurn is returned for a text line that is not "Template key=value...".
var ErrMalformedTurn = errors.New("expected: Template key=value ...")

// TextHandler implements the standard text-based interface.
// Each line names a template followed by key=value pairs. Values are read
// as YAML scalars, so 3 is a number, true a boolean and [a, b] a list.
type TextHandler struct {
	Reader   *bufio.Reader
	Writer   io.Writer
	Renderer ContentRenderer
	Prompt   string

	inputChan chan inputResult
	startOnce sync.Once
}

type inputResult struct {
	text string
	err  error
}

// TextHandlerOption defines configuration for TextHandler.
type TextHandlerOption func(*TextHandler)

// WithTextHandlerRenderer configures the content renderer.
func WithTextHandlerRenderer(renderer ContentRenderer) TextHandlerOption {
	return func(h *TextHandler) {
		h.Renderer = renderer
	}
}

// WithTextHandlerPrompt replaces the "> " prompt. An empty prompt disables it.
func WithTextHandlerPrompt(prompt string) TextHandlerOption {
	return func(h *TextHandler) {
		h.Prompt = prompt
	}
}

// NewTextHandler creates a handler for standard text IO.
func NewTextHandler(r io.Reader, w io.Writer, opts ...TextHandlerOption) *TextHandler {
	if r == nil {
		r = os.Stdin
	}
	if w == nil {
		w = os.Stdout
	}
	h := &TextHandler{
		Reader: bufio.NewReader(r),
		Writer: w,
		Prompt: "> ",
	}
	for _, opt := range opts {
		opt(h)
	}
	return h
}

func (h *TextHandler) initPump() {
	h.startOnce.Do(func() {
		h.inputChan = make(chan inputResult)
		go h.pump()
	})
}

func (h *TextHandler) pump() {
	for {
		text, err := h.Reader.ReadString('\n')
		if text != "" {
			h.inputChan <- inputResult{text: text}
		}
		if err != nil {
			if err != io.EOF {
				h.inputChan <- inputResult{err: err}
				// Backoff for non-fatal errors to prevent CPU spikes on persistent failure
				time.Sleep(50 * time.Millisecond)
				continue
			}
			close(h.inputChan)
			return
		}
	}
}

func (h *TextHandler) Input(ctx context.Context) (Turn, error) {
	h.initPump()

	for {
		select {
		case <-ctx.Done():
			return Turn{}, ctx.Err()
		default:
			fmt.Fprint(h.Writer, h.Prompt)
		}

		select {
		case <-ctx.Done():
			return Turn{}, ctx.Err()
		case res, ok := <-h.inputChan:
			if !ok {
				return Turn{}, io.EOF
			}
			if res.err != nil {
				return Turn{}, res.err
			}

			clean, err := SanitizeInput(strings.TrimSpace(res.text))
			if err != nil {
				fmt.Fprintf(h.Writer, "Error: %v. Please try again.\n", err)
				continue
			}
			if clean == "" {
				continue
			}
			if clean == "exit" || clean == "quit" {
				return Turn{}, io.EOF
			}

			turn, err := ParseTurn(clean)
			if err != nil {
				fmt.Fprintf(h.Writer, "Error: %v\n", err)
				continue
			}
			return turn, nil
		}
	}
}

func (h *TextHandler) Output(ctx context.Context, reply Reply) error {
	if !reply.Success {
		_, err := fmt.Fprintf(h.Writer, "Error: %s\n", reply.Error)
		return err
	}
	output := reply.Text
	if h.Renderer != nil {
		if rendered, err := h.Renderer(output); err == nil {
			output = rendered
		}
	}
	_, err := fmt.Fprintln(h.Writer, strings.TrimSpace(output))
	return err
}

func (h *TextHandler) SystemOutput(ctx context.Context, msg string) error {
	_, err := fmt.Fprintf(h.Writer, "[System] %s\n", msg)
	return err
}

// ParseTurn parses a "Template key=value ..." line. Values may be double
// quoted to include spaces.
func ParseTurn(line string) (Turn, error) {
	fields, err := splitFields(line)
	if err != nil {
		return Turn{}, err
	}
	if len(fields) == 0 || strings.Contains(fields[0], "=") {
		return Turn{}, ErrMalformedTurn
	}

	turn := Turn{Template: fields[0]}
	for _, field := range fields[1:] {
		key, raw, ok := strings.Cut(field, "=")
		if !ok || key == "" {
			return Turn{}, fmt.Errorf("%w: bad pair %q", ErrMalformedTurn, field)
		}
		if turn.Env == nil {
			turn.Env = make(map[string]any)
		}
		turn.Env[key] = ParseValue(raw)
	}
	return turn, nil
}

// ParseValue reads raw as a YAML value, falling back to the raw string.
func ParseValue(raw string) any {
	if raw == "" {
		return ""
	}
	var v any
	if err := yaml.Unmarshal([]byte(raw), &v); err != nil || v == nil {
		return raw
	}
	return v
}

func splitFields(line string) ([]string, error) {
	var (
		fields []string
		cur    strings.Builder
		quoted bool
		inWord bool
	)
	for _, r := range line {
		switch {
		case r == '"':
			quoted = !quoted
			inWord = true
		case (r == ' ' || r == '\t') && !quoted:
			if inWord {
				fields = append(fields, cur.String())
				cur.Reset()
				inWord = false
			}
		default:
			cur.WriteRune(r)
			inWord = true
		}
	}
	if quoted {
		return nil, fmt.Errorf("%w: unterminated quote", ErrMalformedTurn)
	}
	if inWord {
		fields = append(fields, cur.String())
	}
	return fields, nil
}
