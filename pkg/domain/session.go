package domain

import (
	"time"

	"github.com/aretw0/dialogic/pkg/history"
)

// Session is the persisted record of one conversation.
type Session struct {
	ID      string           `json:"id"`
	History history.Snapshot `json:"history"`

	// Context holds session-scoped variables merged under every request env.
	Context map[string]any `json:"context,omitempty"`

	// Sealed carries an encrypted envelope of the whole session when
	// persistence encryption is enabled. History and Context are then empty.
	Sealed string `json:"sealed,omitempty"`

	UpdatedAt time.Time `json:"updatedAt"`
}

// NewSession creates an empty session.
func NewSession(id string) *Session {
	return &Session{
		ID:        id,
		Context:   make(map[string]any),
		UpdatedAt: time.Now().UTC(),
	}
}

// Clone returns a copy that shares no mutable state with s.
// Context values are copied one level deep.
func (s *Session) Clone() *Session {
	out := *s
	out.History = s.History.Clone()
	out.Context = make(map[string]any, len(s.Context))
	for k, v := range s.Context {
		out.Context[k] = v
	}
	return &out
}
