package domain

import (
	"context"
	"time"
)

// RenderEvent describes one template render, top-level or nested.
type RenderEvent struct {
	Timestamp  time.Time
	Template   string
	Domain     string
	CalledFrom string
	Duration   time.Duration
	Err        error
}

// RenderHooks defines callbacks for engine observability.
type RenderHooks struct {
	OnRenderStart func(context.Context, *RenderEvent)
	OnRenderEnd   func(context.Context, *RenderEvent)
}
