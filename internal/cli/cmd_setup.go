package cli

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/petergaultney/lemonaid/internal/integration"
)

// newInstallCmd creates the "lemonaid install" subcommand.
func newInstallCmd(app *App) *cobra.Command {
	var dryRun bool
	var bin string
	cmd := &cobra.Command{
		Use:   "install",
		Short: "Install agent lifecycle hooks",
		Long:  "Merges lemonaid's notify command into Claude's settings so hook\nevents reach the inbox. Existing hooks are preserved and the previous\nsettings file is backed up.",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if bin == "" {
				if exe, err := os.Executable(); err == nil {
					bin = exe
				}
			}
			res, err := integration.Install(integration.InstallOptions{LemonaidBin: bin, DryRun: dryRun})
			if err != nil {
				return fmt.Errorf("install: %w", err)
			}
			out := cmd.OutOrStdout()
			for _, f := range res.FilesWritten {
				verb := "wrote"
				if res.DryRun {
					verb = "would write"
				}
				fmt.Fprintf(out, "%s %s\n", verb, f)
			}
			for _, b := range res.Backups {
				fmt.Fprintf(out, "backed up %s\n", b)
			}
			return nil
		},
	}
	cmd.Flags().BoolVar(&dryRun, "dry-run", false, "show what would change without writing")
	cmd.Flags().StringVar(&bin, "bin", "", "lemonaid binary path to install in hooks")
	return cmd
}

// newDoctorCmd creates the "lemonaid doctor" subcommand.
func newDoctorCmd(app *App) *cobra.Command {
	var asJSON bool
	cmd := &cobra.Command{
		Use:   "doctor",
		Short: "Check the installation",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := app.config()
			if err != nil {
				return fmt.Errorf("doctor: %w", err)
			}
			res, err := integration.Doctor(integration.DoctorOptions{DBPath: cfg.DBPath})
			if err != nil {
				return fmt.Errorf("doctor: %w", err)
			}
			out := cmd.OutOrStdout()
			if asJSON {
				enc := json.NewEncoder(out)
				enc.SetIndent("", "  ")
				if err := enc.Encode(res); err != nil {
					return err
				}
			} else {
				for _, c := range res.Checks {
					fmt.Fprintf(out, "%-4s %-14s %s\n", c.Status, c.Name, c.Message)
				}
			}
			if !res.OK {
				return fmt.Errorf("doctor: checks failed")
			}
			return nil
		},
	}
	cmd.Flags().BoolVar(&asJSON, "json", false, "emit JSON")
	return cmd
}
