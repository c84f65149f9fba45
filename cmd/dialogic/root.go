package main

import (
	"fmt"
	"os"

	"github.com/aretw0/dialogic/internal/cli"
	"github.com/spf13/cobra"
)

var rootCmd = &cobra.Command{
	Use:   "dialogic",
	Short: "Dialogic renders natural-language responses from template catalogs",
	Long: `Dialogic realizes text from a directory of schema and content documents.
Templates pick a form by condition, invoke sub-templates and remember the
conversation history, so the same intent can answer differently the second time.`,
	SilenceUsage: true,
}

// Execute adds all child commands to the root command and sets flags appropriately.
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		os.Exit(1)
	}
}

func init() {
	// Persistent flags (available to all commands)
	rootCmd.PersistentFlags().String("dir", ".", "Template directory (with schema/ and content/)")
	rootCmd.PersistentFlags().Bool("debug", false, "Enable debug logging on stderr")
}

// addStoreFlags registers the flags selecting the session store and plugins.
func addStoreFlags(cmd *cobra.Command) {
	cmd.Flags().String("store", "", "Session store: memory (default), file[:dir], sqlite[:path] or redis[://url]")
	cmd.Flags().String("redis", "", "Redis URL for sessions and locking (implies --store redis)")
	cmd.Flags().String("plugins", "", "Plugin configuration file (defaults to <dir>/plugins.yaml)")
	cmd.Flags().StringSlice("mask", nil, "Regexps of session context keys to mask before saving")
}

func engineOptions(cmd *cobra.Command) cli.EngineOptions {
	dir, _ := cmd.Flags().GetString("dir")
	debug, _ := cmd.Flags().GetBool("debug")
	opts := cli.EngineOptions{Dir: dir, Debug: debug}
	if cmd.Flags().Lookup("store") != nil {
		opts.Store, _ = cmd.Flags().GetString("store")
		opts.RedisURL, _ = cmd.Flags().GetString("redis")
		opts.Plugins, _ = cmd.Flags().GetString("plugins")
		opts.Mask, _ = cmd.Flags().GetStringSlice("mask")
	}
	return opts
}
