package cli

import (
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/petergaultney/lemonaid/internal/db"
)

// newGetCmd creates the "lemonaid get" subcommand.
func newGetCmd(app *App) *cobra.Command {
	var asJSON bool
	cmd := &cobra.Command{
		Use:   "get <channel>",
		Short: "Show one notification",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			channel, err := requireChannel(args)
			if err != nil {
				return fmt.Errorf("get: %w", err)
			}
			store, err := app.openStore(ctx)
			if err != nil {
				return fmt.Errorf("get: %w", err)
			}
			n, err := store.Get(ctx, channel)
			if errors.Is(err, db.ErrNotFound) {
				return fmt.Errorf("get: no active notification for %s", channel)
			}
			if err != nil {
				return fmt.Errorf("get: %w", err)
			}
			out := cmd.OutOrStdout()
			if asJSON {
				enc := json.NewEncoder(out)
				enc.SetIndent("", "  ")
				return enc.Encode(n)
			}
			fmt.Fprintf(out, "channel:  %s\n", n.Channel)
			fmt.Fprintf(out, "name:     %s\n", n.DisplayName())
			fmt.Fprintf(out, "status:   %s\n", n.Status)
			fmt.Fprintf(out, "message:  %s\n", n.Message)
			fmt.Fprintf(out, "created:  %s\n", n.CreatedAt.Local().Format(time.RFC3339))
			if n.ReadAt != nil {
				fmt.Fprintf(out, "read:     %s\n", n.ReadAt.Local().Format(time.RFC3339))
			}
			if n.SwitchSource != "" {
				fmt.Fprintf(out, "source:   %s\n", n.SwitchSource)
			}
			for k, v := range n.Metadata {
				fmt.Fprintf(out, "meta.%s: %s\n", k, v)
			}
			return nil
		},
	}
	cmd.Flags().BoolVar(&asJSON, "json", false, "emit JSON")
	return cmd
}
