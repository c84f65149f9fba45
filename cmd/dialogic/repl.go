package main

import (
	"os"

	"github.com/aretw0/dialogic/internal/cli"
	"github.com/spf13/cobra"
)

var replCmd = &cobra.Command{
	Use:   "repl",
	Short: "Evaluate condition expressions interactively",
	Long: `Starts a read-eval-print loop over the condition mini-language, with the
template functions and history of the loaded catalog bound. Use :set to bind
variables and :render to try a template with them.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		sets, _ := cmd.Flags().GetStringArray("set")
		env, err := cli.ParseEnv("", sets)
		if err != nil {
			return err
		}

		opts := engineOptions(cmd)
		app, err := cli.NewApp(opts, cli.NewLogger(opts.Debug))
		if err != nil {
			return err
		}
		defer app.Close()

		return cli.NewREPL(app.Engine, env, os.Stdout).Run(cmd.Context())
	},
}

func init() {
	rootCmd.AddCommand(replCmd)
	addStoreFlags(replCmd)
	replCmd.Flags().StringArray("set", nil, "Bind a variable (key=value), repeatable")
}
