// Package cli implements the lemonaid command tree. Commands open the
// notification database directly; the daemon and CLI share it through
// SQLite's WAL mode.
package cli

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/petergaultney/lemonaid/internal/config"
	"github.com/petergaultney/lemonaid/internal/db"
	"github.com/petergaultney/lemonaid/internal/ledger"
	"github.com/petergaultney/lemonaid/internal/term"
)

// App carries the shared state commands need. Runner and Getenv default to
// the real environment and are replaced in tests.
type App struct {
	ConfigPath string
	DBPath     string
	Backend    string

	Runner term.Runner
	Getenv term.Env

	cfg    *config.Config
	store  *db.Store
	ledger *ledger.Ledger
}

func (a *App) config() (config.Config, error) {
	if a.cfg == nil {
		cfg, err := config.Load(a.ConfigPath)
		if err != nil {
			return config.Config{}, err
		}
		if a.DBPath != "" {
			cfg.DBPath = a.DBPath
		}
		a.cfg = &cfg
	}
	return *a.cfg, nil
}

func (a *App) openStore(ctx context.Context) (*db.Store, error) {
	if a.store != nil {
		return a.store, nil
	}
	cfg, err := a.config()
	if err != nil {
		return nil, err
	}
	store, err := db.Open(ctx, cfg.DBPath)
	if err != nil {
		return nil, err
	}
	if err := db.ApplyMigrations(ctx, store.DB()); err != nil {
		store.Close() //nolint:errcheck
		return nil, err
	}
	a.store = store
	return store, nil
}

func (a *App) openLedger() (*ledger.Ledger, error) {
	if a.ledger != nil {
		return a.ledger, nil
	}
	cfg, err := a.config()
	if err != nil {
		return nil, err
	}
	l, err := ledger.New(cfg.LedgerDir)
	if err != nil {
		return nil, err
	}
	a.ledger = l
	return l, nil
}

// Close releases the store if a command opened it.
func (a *App) Close() error {
	if a.store != nil {
		return a.store.Close()
	}
	return nil
}

// NewRootCmd builds the lemonaid command tree.
func NewRootCmd(app *App) *cobra.Command {
	if app == nil {
		app = &App{}
	}
	root := &cobra.Command{
		Use:           "lemonaid",
		Short:         "Notification inbox for terminal agent sessions",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.PersistentFlags().StringVar(&app.ConfigPath, "config", "", "config file path")
	root.PersistentFlags().StringVar(&app.DBPath, "db", "", "SQLite path (overrides config)")

	root.AddCommand(
		newNotifyCmd(app),
		newListCmd(app),
		newGetCmd(app),
		newDismissCmd(app),
		newArchiveCmd(app),
		newRenameCmd(app),
		newRegisterCmd(app),
		newSwapCmd(app),
		newPruneCmd(app),
		newInstallCmd(app),
		newDoctorCmd(app),
	)
	return root
}

// requireChannel validates the positional channel argument.
func requireChannel(args []string) (string, error) {
	if len(args) != 1 || args[0] == "" {
		return "", fmt.Errorf("expected exactly one channel argument")
	}
	return args[0], nil
}
