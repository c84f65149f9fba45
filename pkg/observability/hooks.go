package observability

import (
	"context"
	"log/slog"

	"github.com/aretw0/dialogic/pkg/domain"
)

// LoggingHooks logs render events at debug level, and failures at warn.
func LoggingHooks(logger *slog.Logger) domain.RenderHooks {
	return domain.RenderHooks{
		OnRenderStart: func(ctx context.Context, e *domain.RenderEvent) {
			logger.DebugContext(ctx, "render_start",
				"template", e.Template,
				"domain", e.Domain,
				"called_from", e.CalledFrom,
			)
		},
		OnRenderEnd: func(ctx context.Context, e *domain.RenderEvent) {
			if e.Err != nil {
				logger.WarnContext(ctx, "render_failed",
					"template", e.Template,
					"called_from", e.CalledFrom,
					"err", e.Err,
				)
				return
			}
			logger.DebugContext(ctx, "render_end",
				"template", e.Template,
				"duration", e.Duration,
			)
		},
	}
}

// Combine returns hooks calling each of hooks in order.
func Combine(hooks ...domain.RenderHooks) domain.RenderHooks {
	return domain.RenderHooks{
		OnRenderStart: func(ctx context.Context, e *domain.RenderEvent) {
			for _, h := range hooks {
				if h.OnRenderStart != nil {
					h.OnRenderStart(ctx, e)
				}
			}
		},
		OnRenderEnd: func(ctx context.Context, e *domain.RenderEvent) {
			for _, h := range hooks {
				if h.OnRenderEnd != nil {
					h.OnRenderEnd(ctx, e)
				}
			}
		},
	}
}
