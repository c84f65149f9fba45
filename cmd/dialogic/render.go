package main

import (
	"fmt"
	"os"

	"github.com/aretw0/dialogic/internal/cli"
	"github.com/spf13/cobra"
)

var renderCmd = &cobra.Command{
	Use:   "render <template>",
	Short: "Render one template and print the text",
	Long: `Realizes a template against an env built from --env (a JSON or YAML file)
and --set key=value pairs. With --session the render joins that conversation,
so use a persistent --store to carry history across invocations.`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		envFile, _ := cmd.Flags().GetString("env")
		sets, _ := cmd.Flags().GetStringArray("set")
		sessionID, _ := cmd.Flags().GetString("session")
		plain, _ := cmd.Flags().GetBool("plain")

		env, err := cli.ParseEnv(envFile, sets)
		if err != nil {
			return err
		}

		opts := engineOptions(cmd)
		app, err := cli.NewApp(opts, cli.NewLogger(opts.Debug))
		if err != nil {
			return err
		}
		defer app.Close()

		ctx := cmd.Context()
		if err := app.Engine.Check(args[0], env); err != nil {
			return err
		}

		var text string
		if sessionID != "" {
			res, err := app.Engine.RenderSession(ctx, sessionID, args[0], env)
			if err != nil {
				return err
			}
			text = res.Text
		} else {
			res, err := app.Engine.Render(ctx, args[0], env)
			if err != nil {
				return err
			}
			text = res.Text
		}

		if r := cli.OutputRenderer(plain); r != nil {
			if pretty, err := r(text); err == nil {
				text = pretty
			}
		}
		fmt.Fprintln(os.Stdout, text)
		return nil
	},
}

func init() {
	rootCmd.AddCommand(renderCmd)
	addStoreFlags(renderCmd)

	renderCmd.Flags().String("env", "", "JSON or YAML file with the template arguments")
	renderCmd.Flags().StringArray("set", nil, "Set an argument (key=value), repeatable")
	renderCmd.Flags().String("session", "", "Render inside this conversation session")
	renderCmd.Flags().Bool("plain", false, "Print raw text even on a terminal")
}
