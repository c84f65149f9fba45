package main

import (
	"fmt"

	"github.com/aretw0/dialogic/internal/cli"
	"github.com/spf13/cobra"
)

// runCmd represents the run command
var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Hold a conversation on stdin/stdout",
	Long: `Reads one turn per line and prints each realization.

Text mode turns look like:   Greet name=Ana count=3
JSON mode turns look like:   {"template": "Greet", "env": {"name": "Ana"}}

History carries across turns, within --session when given.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		envFile, _ := cmd.Flags().GetString("env")
		sets, _ := cmd.Flags().GetStringArray("set")
		env, err := cli.ParseEnv(envFile, sets)
		if err != nil {
			return err
		}

		opts := cli.RunOptions{EngineOptions: engineOptions(cmd), Env: env}
		opts.JSON, _ = cmd.Flags().GetBool("json")
		opts.Watch, _ = cmd.Flags().GetBool("watch")
		opts.Plain, _ = cmd.Flags().GetBool("plain")
		opts.SessionID, _ = cmd.Flags().GetString("session")
		opts.Fresh, _ = cmd.Flags().GetBool("fresh")

		if opts.Watch && opts.JSON {
			return fmt.Errorf("--watch and --json cannot be used together")
		}
		return cli.Run(opts)
	},
}

func init() {
	rootCmd.AddCommand(runCmd)
	addStoreFlags(runCmd)

	runCmd.Flags().Bool("json", false, "Run in JSON mode (NDJSON input/output)")
	runCmd.Flags().BoolP("watch", "w", false, "Reload templates when they change")
	runCmd.Flags().Bool("plain", false, "No banner and no markdown rendering")
	runCmd.Flags().String("session", "", "Conversation session to render in")
	runCmd.Flags().Bool("fresh", false, "Delete the session before starting")
	runCmd.Flags().String("env", "", "JSON or YAML file merged under every turn")
	runCmd.Flags().StringArray("set", nil, "Variable merged under every turn (key=value), repeatable")
}
