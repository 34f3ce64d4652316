package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/petergaultney/lemonaid/internal/ingest"
)

// newNotifyCmd creates the "lemonaid notify" subcommand, the entry point
// agent lifecycle hooks call with a JSON payload on stdin.
func newNotifyCmd(app *App) *cobra.Command {
	var backendName string
	cmd := &cobra.Command{
		Use:   "notify",
		Short: "Ingest an agent hook event from stdin",
		Long:  "Reads a hook payload (session_id, hook_event_name, cwd, message)\nfrom stdin and records it. Stop events mark the session unread;\nUserPromptSubmit marks it read; SessionEnd archives it.",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			payload, err := ingest.ParsePayload(cmd.InOrStdin())
			if err != nil {
				return fmt.Errorf("notify: %w", err)
			}
			store, err := app.openStore(ctx)
			if err != nil {
				return fmt.Errorf("notify: %w", err)
			}
			env := ingest.DetectEnvironment(ctx, app.Getenv, app.Runner)
			channel, err := ingest.Ingest(ctx, store, backendName, payload, env)
			if err != nil {
				return fmt.Errorf("notify: %w", err)
			}
			fmt.Fprintln(cmd.OutOrStdout(), channel)
			return nil
		},
	}
	cmd.Flags().StringVar(&backendName, "backend", "claude", "agent backend the hook belongs to")
	return cmd
}
