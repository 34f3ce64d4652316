package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/petergaultney/lemonaid/internal/term"
)

// newDismissCmd creates the "lemonaid dismiss" subcommand.
func newDismissCmd(app *App) *cobra.Command {
	var byTTY bool
	cmd := &cobra.Command{
		Use:   "dismiss [channel]",
		Short: "Mark a notification read",
		Long:  "Marks the channel's notification read. With --tty, dismisses every\nunread notification on the current terminal instead; shell prompt\nhooks use this so returning to a pane clears its alerts.",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			store, err := app.openStore(ctx)
			if err != nil {
				return fmt.Errorf("dismiss: %w", err)
			}
			if byTTY {
				if len(args) != 0 {
					return fmt.Errorf("dismiss: --tty takes no channel argument")
				}
				tty := term.DetectTTY(ctx, app.Runner)
				if tty == "" {
					return fmt.Errorf("dismiss: no terminal detected")
				}
				n, err := store.MarkReadByTTY(ctx, tty)
				if err != nil {
					return fmt.Errorf("dismiss: %w", err)
				}
				fmt.Fprintf(cmd.OutOrStdout(), "dismissed %d on %s\n", n, tty)
				return nil
			}
			channel, err := requireChannel(args)
			if err != nil {
				return fmt.Errorf("dismiss: %w", err)
			}
			changed, err := store.MarkRead(ctx, channel)
			if err != nil {
				return fmt.Errorf("dismiss: %w", err)
			}
			if !changed {
				fmt.Fprintf(cmd.OutOrStdout(), "%s already read\n", channel)
				return nil
			}
			fmt.Fprintf(cmd.OutOrStdout(), "dismissed %s\n", channel)
			return nil
		},
	}
	cmd.Flags().BoolVar(&byTTY, "tty", false, "dismiss everything on the current terminal")
	return cmd
}
