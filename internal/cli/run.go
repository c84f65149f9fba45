package cli

import (
	"context"
	"errors"
	"fmt"
	"os"

	"github.com/aretw0/dialogic"
	"github.com/aretw0/dialogic/internal/presentation/tui"
	"github.com/aretw0/dialogic/pkg/runner"
)

// RunOptions contains all the configuration for the run command.
type RunOptions struct {
	EngineOptions
	JSON      bool
	Watch     bool
	Plain     bool
	SessionID string
	Fresh     bool
	Env       map[string]any
}

// Run starts a conversation loop over stdin and stdout.
func Run(opts RunOptions) error {
	logger := NewLogger(opts.Debug)
	if opts.JSON {
		logger = NewJSONLogger(opts.Debug)
	}

	app, err := NewApp(opts.EngineOptions, logger)
	if err != nil {
		return err
	}
	defer app.Close()

	sigCtx := NewSignalContext(context.Background())
	defer sigCtx.Cancel()

	if opts.Fresh && opts.SessionID != "" {
		if err := app.Engine.DeleteSession(sigCtx, opts.SessionID); err != nil {
			logger.Debug("Nothing to reset", "session_id", opts.SessionID, "error", err)
		}
	}

	var handler runner.IOHandler
	if opts.JSON {
		handler = runner.NewJSONHandler(os.Stdin, os.Stdout)
	} else {
		if !opts.Plain {
			tui.PrintBanner(os.Stdout, dialogic.Version)
		}
		var textOpts []runner.TextHandlerOption
		if r := OutputRenderer(opts.Plain); r != nil {
			textOpts = append(textOpts, runner.WithTextHandlerRenderer(r))
		}
		handler = runner.NewTextHandler(os.Stdin, os.Stdout, textOpts...)
		if opts.SessionID != "" {
			PrintSystemMessage("Session '%s' active.", opts.SessionID)
		}
	}

	if opts.Watch {
		go func() {
			err := WatchAndReload(sigCtx, app.Engine, logger, func(event string, err error) {
				if err != nil {
					handler.SystemOutput(sigCtx, fmt.Sprintf("Reload of '%s' failed: %v", event, err))
					return
				}
				handler.SystemOutput(sigCtx, fmt.Sprintf("Change detected in '%s', templates reloaded.", event))
			})
			if err != nil {
				logger.Warn("Watch disabled", "error", err)
			}
		}()
	}

	r := runner.NewRunner(
		runner.WithLogger(logger),
		runner.WithInputHandler(handler),
		runner.WithSessionID(opts.SessionID),
		runner.WithBaseEnv(opts.Env),
	)
	err = r.Run(sigCtx, app.Engine)
	if errors.Is(err, context.Canceled) {
		if !opts.JSON && sigCtx.Signal() != nil {
			fmt.Println()
			PrintSystemMessage("Interrupted.")
		}
		return nil
	}
	return err
}
