package main

import (
	"fmt"
	"sort"
	"strings"

	"github.com/aretw0/dialogic"
	"github.com/aretw0/dialogic/internal/cli"
	"github.com/aretw0/dialogic/internal/validator"
	"github.com/spf13/cobra"
)

var validateCmd = &cobra.Command{
	Use:   "validate [dir]",
	Short: "Check the templates for consistency",
	Long: `Loads every schema and content document, validating each one against its
JSON Schema, then lints the catalog for unknown invocations, invocation cycles,
bad imports and unbalanced brackets in conditions.`,
	Args: cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		dir, _ := cmd.Flags().GetString("dir")
		if !cmd.Flags().Changed("dir") && len(args) > 0 {
			dir = args[0]
		}
		debug, _ := cmd.Flags().GetBool("debug")

		eng, err := dialogic.New(dir, dialogic.WithLogger(cli.NewLogger(debug)))
		if err != nil {
			return fmt.Errorf("validation failed: %w", err)
		}
		if err := validator.Validate(eng.Catalog()); err != nil {
			return fmt.Errorf("validation failed: %w", err)
		}

		c := eng.Catalog()
		fmt.Printf("Templates are valid! ✅ (%d domains, %d intents)\n", len(c.Domains), len(c.Schema))

		docs, err := cli.DomainDocuments(cmd.Context(), dir)
		if err != nil {
			return fmt.Errorf("listing documents: %w", err)
		}
		names := make([]string, 0, len(docs))
		for name := range docs {
			names = append(names, name)
		}
		sort.Strings(names)
		for _, name := range names {
			fmt.Printf("  %s: %s\n", name, strings.Join(docs[name], ", "))
		}
		return nil
	},
}

func init() {
	rootCmd.AddCommand(validateCmd)
}
