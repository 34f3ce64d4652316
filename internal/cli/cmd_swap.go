package cli

import (
	"errors"
	"fmt"
	"os"

	"github.com/google/uuid"
	"github.com/spf13/cobra"

	"github.com/petergaultney/lemonaid/internal/db"
	"github.com/petergaultney/lemonaid/internal/ledger"
	"github.com/petergaultney/lemonaid/internal/model"
	"github.com/petergaultney/lemonaid/internal/term"
)

// newSwapCmd creates the "lemonaid swap" subcommand.
func newSwapCmd(app *App) *cobra.Command {
	return &cobra.Command{
		Use:   "swap [channel]",
		Short: "Jump to a session's pane, or back again",
		Long:  "With a channel, records where you are and switches to that session's\npane, marking it read. Without one, swaps back to wherever you were\nbefore the last swap; repeated bare swaps bounce between two places.",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			source := term.DetectSwitchSource(app.Getenv)
			if source == "" {
				return fmt.Errorf("swap: not inside tmux or wezterm")
			}
			current, err := term.CurrentLocation(ctx, source, app.Runner)
			if err != nil {
				return fmt.Errorf("swap: %w", err)
			}
			led, err := app.openLedger()
			if err != nil {
				return fmt.Errorf("swap: %w", err)
			}
			envID := term.EnvironmentID(source, app.Getenv)

			var dest model.Location
			if len(args) == 1 {
				dest, err = notificationLocation(cmd, app, source, args[0])
				if err != nil {
					return err
				}
				if _, err := led.Swap(envID, current); err != nil && !errors.Is(err, ledger.ErrEmpty) {
					return fmt.Errorf("swap: %w", err)
				}
			} else {
				dest, err = led.Swap(envID, current)
				if errors.Is(err, ledger.ErrEmpty) {
					return fmt.Errorf("swap: nowhere to swap back to")
				}
				if err != nil {
					return fmt.Errorf("swap: %w", err)
				}
			}
			if err := term.SwitchTo(ctx, source, dest, app.Runner); err != nil {
				return fmt.Errorf("swap: %w", err)
			}
			return nil
		},
	}
}

// notificationLocation resolves a channel to its recorded pane and marks the
// notification read.
func notificationLocation(cmd *cobra.Command, app *App, source, channel string) (model.Location, error) {
	ctx := cmd.Context()
	store, err := app.openStore(ctx)
	if err != nil {
		return model.Location{}, fmt.Errorf("swap: %w", err)
	}
	n, err := store.Get(ctx, channel)
	if errors.Is(err, db.ErrNotFound) {
		return model.Location{}, fmt.Errorf("swap: no active notification for %s", channel)
	}
	if err != nil {
		return model.Location{}, fmt.Errorf("swap: %w", err)
	}
	if n.SwitchSource != "" && n.SwitchSource != source {
		return model.Location{}, fmt.Errorf("swap: %s lives in %s, not %s", channel, n.SwitchSource, source)
	}
	loc := model.Location{
		Workspace: n.Metadata[model.MetaWorkspace],
		Session:   n.Metadata[model.MetaWorkspace],
		PaneID:    n.Metadata[model.MetaPaneID],
	}
	if loc.IsZero() {
		return model.Location{}, fmt.Errorf("swap: %s has no recorded pane", channel)
	}
	if _, err := store.MarkRead(ctx, channel); err != nil {
		return model.Location{}, fmt.Errorf("swap: %w", err)
	}
	return loc, nil
}

// newRegisterCmd creates the "lemonaid register" subcommand.
func newRegisterCmd(app *App) *cobra.Command {
	var backendName, host, path string
	cmd := &cobra.Command{
		Use:   "register [session-id]",
		Short: "Start tracking an agent session",
		Long:  "Creates a notification for the session so the watcher follows its\ntranscript. Terminal context (cwd, tty, pane) is captured from the\ninvoking shell. Remote sessions take --host and --path. Without a\nsession id, a fresh one is minted.",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			var sessionID string
			if len(args) == 1 && args[0] != "" {
				sessionID = args[0]
			} else {
				sessionID = uuid.NewString()
			}
			store, err := app.openStore(ctx)
			if err != nil {
				return fmt.Errorf("register: %w", err)
			}
			channel := model.ChannelFor(backendName, sessionID)
			metadata := map[string]string{model.MetaSessionID: sessionID}
			if cwd, err := os.Getwd(); err == nil {
				metadata[model.MetaCwd] = cwd
				if name := term.NameFromCwd(cwd); name != "" {
					metadata[model.MetaAutoName] = name
				}
			}
			if host != "" {
				metadata[model.MetaHost] = host
			}
			if path != "" {
				metadata[model.MetaPath] = path
			}
			source := term.DetectSwitchSource(app.Getenv)
			if tty := term.DetectTTY(ctx, app.Runner); tty != "" {
				metadata[model.MetaTTY] = tty
			}
			if source != "" {
				if loc, err := term.CurrentLocation(ctx, source, app.Runner); err == nil {
					if loc.PaneID != "" {
						metadata[model.MetaPaneID] = loc.PaneID
					}
					if ws := loc.Workspace; ws != "" {
						metadata[model.MetaWorkspace] = ws
					} else if loc.Session != "" {
						metadata[model.MetaWorkspace] = loc.Session
					}
				}
			}
			if _, err := store.Upsert(ctx, channel, "Registered", metadata, source); err != nil {
				return fmt.Errorf("register: %w", err)
			}
			// A fresh registration is not a request for attention.
			if _, err := store.MarkRead(ctx, channel); err != nil {
				return fmt.Errorf("register: %w", err)
			}
			fmt.Fprintln(cmd.OutOrStdout(), channel)
			return nil
		},
	}
	cmd.Flags().StringVar(&backendName, "backend", "claude", "agent backend")
	cmd.Flags().StringVar(&host, "host", "", "ssh host for a remote session")
	cmd.Flags().StringVar(&path, "path", "", "transcript path (required with --host)")
	return cmd
}
