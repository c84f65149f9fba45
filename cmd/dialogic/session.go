package main

import (
	"encoding/json"
	"fmt"

	"github.com/aretw0/dialogic/internal/cli"
	"github.com/aretw0/dialogic/pkg/ports"
	"github.com/spf13/cobra"
)

var sessionCmd = &cobra.Command{
	Use:   "session",
	Short: "Manage persistent sessions",
	Long:  `List, inspect, and remove conversation sessions kept by a session store.`,
}

var sessionLsCmd = &cobra.Command{
	Use:   "ls",
	Short: "List all stored sessions",
	RunE: func(cmd *cobra.Command, args []string) error {
		store, closer, err := openStore(cmd)
		if err != nil {
			return err
		}
		defer closer()

		sessions, err := store.List(cmd.Context())
		if err != nil {
			return fmt.Errorf("error listing sessions: %w", err)
		}

		if len(sessions) == 0 {
			fmt.Println("No active sessions found.")
			return nil
		}

		fmt.Println("Active Sessions:")
		for _, s := range sessions {
			fmt.Println("- " + s)
		}
		return nil
	},
}

var sessionInspectCmd = &cobra.Command{
	Use:   "inspect <session-id>",
	Short: "Inspect the history of a session",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		sessionID := args[0]
		store, closer, err := openStore(cmd)
		if err != nil {
			return err
		}
		defer closer()

		sess, err := store.Load(cmd.Context(), sessionID)
		if err != nil {
			return fmt.Errorf("error loading session '%s': %w", sessionID, err)
		}

		data, err := json.MarshalIndent(sess, "", "  ")
		if err != nil {
			return fmt.Errorf("error marshaling session: %w", err)
		}

		fmt.Println(string(data))
		return nil
	},
}

var sessionRmCmd = &cobra.Command{
	Use:   "rm <session-id>...",
	Short: "Remove one or more sessions",
	RunE: func(cmd *cobra.Command, args []string) error {
		all, _ := cmd.Flags().GetBool("all")
		if len(args) == 0 && !all {
			return fmt.Errorf("requires at least one session id, or --all")
		}

		store, closer, err := openStore(cmd)
		if err != nil {
			return err
		}
		defer closer()

		if all {
			ids, err := store.List(cmd.Context())
			if err != nil {
				return fmt.Errorf("error listing sessions: %w", err)
			}
			args = ids
		}

		failed := 0
		for _, sessionID := range args {
			if err := store.Delete(cmd.Context(), sessionID); err != nil {
				fmt.Printf("Error removing '%s': %v\n", sessionID, err)
				failed++
			} else {
				fmt.Printf("Removed session '%s'\n", sessionID)
			}
		}

		if failed > 0 {
			return fmt.Errorf("%d session(s) could not be removed", failed)
		}
		return nil
	},
}

func init() {
	rootCmd.AddCommand(sessionCmd)
	sessionCmd.AddCommand(sessionLsCmd)
	sessionCmd.AddCommand(sessionInspectCmd)
	sessionCmd.AddCommand(sessionRmCmd)

	// Sessions only outlive the process in a persistent store.
	sessionCmd.PersistentFlags().String("store", "file", "Session store: file[:dir], sqlite[:path] or redis[://url]")
	sessionCmd.PersistentFlags().String("redis", "", "Redis URL (implies --store redis)")
	sessionRmCmd.Flags().Bool("all", false, "Remove every stored session")
}

func openStore(cmd *cobra.Command) (ports.SessionStore, func() error, error) {
	opts := engineOptions(cmd)
	opts.Store, _ = cmd.Flags().GetString("store")
	opts.RedisURL, _ = cmd.Flags().GetString("redis")
	if opts.RedisURL != "" && !cmd.Flags().Changed("store") {
		opts.Store = "redis"
	}

	store, closer, err := cli.OpenStore(opts)
	if err != nil {
		return nil, nil, err
	}
	if closer == nil {
		closer = func() error { return nil }
	}
	// Decrypts sealed sessions when DIALOGIC_KEY is set.
	wrapped, err := cli.WrapStore(store, nil)
	if err != nil {
		closer()
		return nil, nil, err
	}
	return wrapped, closer, nil
}
