package cli

import (
	"fmt"

	"github.com/spf13/cobra"
)

// newArchiveCmd creates the "lemonaid archive" subcommand.
func newArchiveCmd(app *App) *cobra.Command {
	return &cobra.Command{
		Use:   "archive <channel>",
		Short: "Retire a notification permanently",
		Long:  "Archives the channel's notification. Archived is terminal: the row\nnever returns to the list and a new session on the same channel\nstarts a fresh notification.",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			channel, err := requireChannel(args)
			if err != nil {
				return fmt.Errorf("archive: %w", err)
			}
			store, err := app.openStore(ctx)
			if err != nil {
				return fmt.Errorf("archive: %w", err)
			}
			changed, err := store.Archive(ctx, channel)
			if err != nil {
				return fmt.Errorf("archive: %w", err)
			}
			if !changed {
				fmt.Fprintf(cmd.OutOrStdout(), "%s not active\n", channel)
				return nil
			}
			fmt.Fprintf(cmd.OutOrStdout(), "archived %s\n", channel)
			return nil
		},
	}
}

// newRenameCmd creates the "lemonaid rename" subcommand.
func newRenameCmd(app *App) *cobra.Command {
	return &cobra.Command{
		Use:   "rename <channel> [name]",
		Short: "Set or clear a sticky display name",
		Long:  "Names the channel's notification. The name survives message updates\nfrom the watcher. Omitting the name reverts to the derived one.",
		Args:  cobra.RangeArgs(1, 2),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			channel := args[0]
			name := ""
			if len(args) == 2 {
				name = args[1]
			}
			store, err := app.openStore(ctx)
			if err != nil {
				return fmt.Errorf("rename: %w", err)
			}
			if err := store.Rename(ctx, channel, name); err != nil {
				return fmt.Errorf("rename: %w", err)
			}
			if name == "" {
				fmt.Fprintf(cmd.OutOrStdout(), "cleared name for %s\n", channel)
				return nil
			}
			fmt.Fprintf(cmd.OutOrStdout(), "renamed %s to %s\n", channel, name)
			return nil
		},
	}
}

// newPruneCmd creates the "lemonaid prune" subcommand.
func newPruneCmd(app *App) *cobra.Command {
	return &cobra.Command{
		Use:   "prune",
		Short: "Delete old read and archived notifications",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			cfg, err := app.config()
			if err != nil {
				return fmt.Errorf("prune: %w", err)
			}
			store, err := app.openStore(ctx)
			if err != nil {
				return fmt.Errorf("prune: %w", err)
			}
			n, err := store.Prune(ctx, cfg.PruneAfter)
			if err != nil {
				return fmt.Errorf("prune: %w", err)
			}
			fmt.Fprintf(cmd.OutOrStdout(), "pruned %d\n", n)
			return nil
		},
	}
}
