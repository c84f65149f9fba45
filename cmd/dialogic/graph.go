package main

import (
	"fmt"

	"github.com/aretw0/dialogic/internal/cli"
	"github.com/aretw0/dialogic/internal/presentation/graph"
	"github.com/spf13/cobra"
)

// graphCmd represents the graph command
var graphCmd = &cobra.Command{
	Use:   "graph [dir]",
	Short: "Export the template call graph",
	Long: `Outputs a Mermaid diagram (graph TD) of which templates invoke which.
With --session the intents that conversation has visited are highlighted.`,
	Args: cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		opts := engineOptions(cmd)
		if !cmd.Flags().Changed("dir") && len(args) > 0 {
			opts.Dir = args[0]
		}
		sessionID, _ := cmd.Flags().GetString("session")

		app, err := cli.NewApp(opts, cli.NewLogger(opts.Debug))
		if err != nil {
			return err
		}
		defer app.Close()

		var overlay *graph.GraphOverlay
		if sessionID != "" {
			sess, err := app.Engine.Sessions().Load(cmd.Context(), sessionID)
			if err != nil {
				return fmt.Errorf("error loading session '%s': %w", sessionID, err)
			}
			visited := sess.History.NodeOrder
			overlay = &graph.GraphOverlay{VisitedNodes: visited}
			if len(visited) > 0 {
				overlay.CurrentNode = visited[len(visited)-1]
			}
		}

		fmt.Print(graph.GenerateMermaid(app.Engine.Catalog(), overlay))
		return nil
	},
}

func init() {
	rootCmd.AddCommand(graphCmd)
	addStoreFlags(graphCmd)
	graphCmd.Flags().String("session", "", "Highlight the intents visited by this session")
}
