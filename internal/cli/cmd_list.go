package cli

import (
	"fmt"
	"io"

	"github.com/spf13/cobra"

	"github.com/petergaultney/lemonaid/internal/model"
	"github.com/petergaultney/lemonaid/internal/term"
)

// newListCmd creates the "lemonaid list" subcommand.
func newListCmd(app *App) *cobra.Command {
	var unreadOnly bool
	cmd := &cobra.Command{
		Use:   "list",
		Short: "List active notifications",
		Long:  "Shows non-archived notifications, unread first. When run inside a\nmultiplexer, sessions reachable from it are listed before the rest.",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			store, err := app.openStore(ctx)
			if err != nil {
				return fmt.Errorf("list: %w", err)
			}
			source := term.DetectSwitchSource(app.Getenv)
			listing, err := store.ListActive(ctx, model.ListFilter{
				SwitchSource: source,
				UnreadOnly:   unreadOnly,
			})
			if err != nil {
				return fmt.Errorf("list: %w", err)
			}
			out := cmd.OutOrStdout()
			printGroup(out, listing.Switchable)
			if len(listing.NonSwitchable) > 0 {
				fmt.Fprintln(out, "elsewhere:")
				printGroup(out, listing.NonSwitchable)
			}
			return nil
		},
	}
	cmd.Flags().BoolVarP(&unreadOnly, "unread", "u", false, "only unread notifications")
	return cmd
}

func printGroup(out io.Writer, group []model.Notification) {
	for _, n := range group {
		marker := " "
		if n.Status == model.StatusUnread {
			marker = "*"
		}
		line := fmt.Sprintf("%s %-16s %-20s %s", marker, n.Channel, n.DisplayName(), n.Message)
		if cwd := n.Metadata[model.MetaCwd]; cwd != "" {
			line += "  (" + term.ShortenPath(cwd) + ")"
		}
		fmt.Fprintln(out, line)
	}
}
