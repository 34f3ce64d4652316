package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/petergaultney/lemonaid/internal/backend"
	"github.com/petergaultney/lemonaid/internal/config"
	"github.com/petergaultney/lemonaid/internal/db"
	"github.com/petergaultney/lemonaid/internal/liveness"
	"github.com/petergaultney/lemonaid/internal/logging"
	"github.com/petergaultney/lemonaid/internal/watch"
)

func main() {
	var (
		configPath string
		dbPath     string
		debug      bool
	)
	flag.StringVar(&configPath, "config", "", "config file path")
	flag.StringVar(&dbPath, "db", "", "SQLite path (overrides config)")
	flag.BoolVar(&debug, "debug", false, "debug logging")
	flag.Parse()

	cfg, err := config.Load(configPath)
	if err != nil {
		fatal(err)
	}
	if dbPath != "" {
		cfg.DBPath = dbPath
	}

	log, closer := logging.NewDaemonLogger(cfg.LogPath, debug)
	defer closer.Close() //nolint:errcheck

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	if err := os.MkdirAll(filepath.Dir(cfg.DBPath), 0o700); err != nil {
		fatal(err)
	}
	store, err := db.Open(ctx, cfg.DBPath)
	if err != nil {
		fatal(err)
	}
	defer store.Close() //nolint:errcheck

	if err := db.ApplyMigrations(ctx, store.DB()); err != nil {
		fatal(err)
	}

	engine := watch.NewEngine(
		store,
		backend.DefaultRegistry(),
		liveness.NewChecker(nil, 0),
		watch.Config{
			PollInterval:     cfg.PollInterval,
			LivenessInterval: cfg.LivenessInterval,
			FetchTimeout:     cfg.FetchTimeout,
			TailBytes:        cfg.TailBytes,
		},
		logging.Component(log, "watch"),
	)

	log.Info("lemonaidd starting", "db", cfg.DBPath, "poll_interval", cfg.PollInterval)

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		return engine.Run(gctx)
	})
	g.Go(func() error {
		return runPruneLoop(gctx, store, cfg, logging.Component(log, "prune"))
	})

	if err := g.Wait(); err != nil && !errors.Is(err, context.Canceled) {
		fatal(err)
	}
	log.Info("lemonaidd stopped")
}

func runPruneLoop(ctx context.Context, store *db.Store, cfg config.Config, log *slog.Logger) error {
	ticker := time.NewTicker(cfg.PruneInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
			n, err := store.Prune(ctx, cfg.PruneAfter)
			if err != nil {
				log.Error("prune archived notifications", "error", err)
				continue
			}
			if n > 0 {
				log.Info("pruned archived notifications", "count", n)
			}
		}
	}
}

func fatal(err error) {
	_, _ = fmt.Fprintf(os.Stderr, "lemonaidd: %v\n", err)
	os.Exit(1)
}
