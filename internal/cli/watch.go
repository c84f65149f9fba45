package cli

import (
	"context"
	"log/slog"
	"time"
)

// ReloadDebounce lets a burst of file events settle before reloading.
const ReloadDebounce = 100 * time.Millisecond

// Reloader is the part of the engine hot reload needs.
type Reloader interface {
	Watch(ctx context.Context) (<-chan string, error)
	Reload(ctx context.Context) error
}

// WatchAndReload reloads the catalog whenever a template changes, until ctx
// is done. A failed reload keeps the previous catalog and is reported through
// onReload with the error. onReload may be nil.
func WatchAndReload(ctx context.Context, engine Reloader, logger *slog.Logger, onReload func(event string, err error)) error {
	events, err := engine.Watch(ctx)
	if err != nil {
		return err
	}
	logger.Info("Starting Watcher")

	for {
		select {
		case <-ctx.Done():
			return nil
		case event, ok := <-events:
			if !ok {
				return nil
			}
			logger.Info("Change detected, triggering reload", "event", event)

			// Coalesce the burst a single save usually produces.
			timer := time.NewTimer(ReloadDebounce)
		drain:
			for {
				select {
				case <-ctx.Done():
					timer.Stop()
					return nil
				case _, ok := <-events:
					if !ok {
						break drain
					}
				case <-timer.C:
					break drain
				}
			}

			err := engine.Reload(ctx)
			if err != nil {
				logger.Error("Reload failed, keeping previous templates", "error", err)
			} else {
				logger.Info("Templates reloaded", "event", event)
			}
			if onReload != nil {
				onReload(event, err)
			}
		}
	}
}
