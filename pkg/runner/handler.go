package runner

import (
	"context"
)

// Turn is one render request read from the user.
type Turn struct {
	Template string         `json:"template"`
	Env      map[string]any `json:"env,omitempty"`
}

// Reply is the outcome of one turn.
type Reply struct {
	Template string `json:"template"`
	Text     string `json:"text,omitempty"`
	Success  bool   `json:"success"`
	Error    string `json:"error,omitempty"`
}

// IOHandler defines the strategy for interacting with the user.
// This allows switching between Text (CLI/TUI) and JSON (Structured) modes.
type IOHandler interface {
	// Input reads the next turn. io.EOF ends the conversation.
	Input(ctx context.Context) (Turn, error)

	// Output presents the reply to a turn.
	Output(ctx context.Context, reply Reply) error

	// SystemOutput presents a meta-message to the user (e.g. status updates).
	// This is distinct from content rendering.
	SystemOutput(ctx context.Context, msg string) error
}
