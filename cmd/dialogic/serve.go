package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/aretw0/dialogic/internal/cli"
	"github.com/aretw0/dialogic/internal/logging"
	httpAdapter "github.com/aretw0/dialogic/pkg/adapters/http"
	"github.com/spf13/cobra"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the NLG HTTP server",
	Long: `Serves the engine over a JSON API: stateless renders on /nlg, conversation
sessions on /sessions, a Dialogflow webhook on /dialogflow and Prometheus
metrics on /metrics. The OpenAPI document is served on /openapi.yaml.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		port, _ := cmd.Flags().GetString("port")
		watch, _ := cmd.Flags().GetBool("watch")

		opts := engineOptions(cmd)
		opts.Metrics = true
		logger := cli.NewLogger(opts.Debug)

		app, err := cli.NewApp(opts, logger)
		if err != nil {
			return err
		}
		defer app.Close()

		handler, err := httpAdapter.NewHandler(app.Engine,
			httpAdapter.WithLogger(logging.Component(logger, "http")),
			httpAdapter.WithMetricsHandler(app.Metrics.Handler()),
		)
		if err != nil {
			return err
		}

		srv := &http.Server{
			Addr:              ":" + port,
			Handler:           handler,
			ReadHeaderTimeout: 10 * time.Second,
		}

		sigCtx := cli.NewSignalContext(context.Background())
		defer sigCtx.Cancel()

		if watch {
			go func() {
				err := cli.WatchAndReload(sigCtx, app.Engine, logger, func(event string, err error) {
					if err != nil {
						cli.PrintSystemMessage("Reload of '%s' failed, serving previous templates: %v", event, err)
						return
					}
					cli.PrintSystemMessage("Templates reloaded after change in '%s'.", event)
				})
				if err != nil {
					logger.Warn("Watch disabled", "error", err)
				}
			}()
		}

		// Channel to listen for errors coming from the listener.
		serverErrors := make(chan error, 1)

		go func() {
			fmt.Printf("Starting Dialogic Server on %s\n", srv.Addr)
			fmt.Printf("Serving templates from: %s\n", opts.Dir)
			serverErrors <- srv.ListenAndServe()
		}()

		// Blocking main and waiting for shutdown.
		select {
		case err := <-serverErrors:
			if errors.Is(err, http.ErrServerClosed) {
				return nil
			}
			return fmt.Errorf("server error: %w", err)

		case <-sigCtx.Done():
			fmt.Printf("\nStart shutdown... Signal: %v\n", sigCtx.Signal())

			// Give outstanding requests a deadline for completion.
			ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()

			// Asking listener to shut down and shed load.
			if err := srv.Shutdown(ctx); err != nil {
				fmt.Printf("Graceful shutdown did not complete in %v: %v\n", 5*time.Second, err)
				if err := srv.Close(); err != nil {
					fmt.Printf("Error killing server: %v\n", err)
				}
			}
			fmt.Println("Dialogic Server stopped gracefully")
		}
		return nil
	},
}

func init() {
	rootCmd.AddCommand(serveCmd)
	addStoreFlags(serveCmd)
	serveCmd.Flags().StringP("port", "p", "8080", "Port to listen on")
	serveCmd.Flags().BoolP("watch", "w", false, "Reload templates when they change")
}
