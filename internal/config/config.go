// Package config holds daemon and CLI settings. Defaults follow XDG
// conventions; an optional TOML file overrides them.
package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/BurntSushi/toml"
)

type Config struct {
	DBPath           string
	LogPath          string
	LedgerDir        string
	PollInterval     time.Duration
	LivenessInterval time.Duration
	FetchTimeout     time.Duration
	TailBytes        int64
	PruneAfter       time.Duration
	PruneInterval    time.Duration
}

func DefaultConfig() Config {
	return Config{
		DBPath:           defaultDBPath(),
		LogPath:          defaultLogPath(),
		LedgerDir:        defaultLedgerDir(),
		PollInterval:     500 * time.Millisecond,
		LivenessInterval: 10 * time.Second,
		FetchTimeout:     5 * time.Second,
		TailBytes:        64 * 1024,
		PruneAfter:       14 * 24 * time.Hour,
		PruneInterval:    time.Hour,
	}
}

// fileConfig is the on-disk shape. Durations are written as strings
// ("500ms", "2h").
type fileConfig struct {
	DBPath           string `toml:"db_path"`
	LogPath          string `toml:"log_path"`
	LedgerDir        string `toml:"ledger_dir"`
	PollInterval     string `toml:"poll_interval"`
	LivenessInterval string `toml:"liveness_interval"`
	FetchTimeout     string `toml:"fetch_timeout"`
	TailBytes        int64  `toml:"tail_bytes"`
	PruneAfter       string `toml:"prune_after"`
	PruneInterval    string `toml:"prune_interval"`
}

// Load reads path over the defaults. A missing file is not an error; the
// defaults stand.
func Load(path string) (Config, error) {
	cfg := DefaultConfig()
	if path == "" {
		path = DefaultPath()
	}
	data, err := os.ReadFile(path)
	if errors.Is(err, os.ErrNotExist) {
		return cfg, nil
	}
	if err != nil {
		return cfg, fmt.Errorf("read config: %w", err)
	}
	var fc fileConfig
	if err := toml.Unmarshal(data, &fc); err != nil {
		return cfg, fmt.Errorf("parse config %s: %w", path, err)
	}
	if fc.DBPath != "" {
		cfg.DBPath = expandHome(fc.DBPath)
	}
	if fc.LogPath != "" {
		cfg.LogPath = expandHome(fc.LogPath)
	}
	if fc.LedgerDir != "" {
		cfg.LedgerDir = expandHome(fc.LedgerDir)
	}
	if fc.TailBytes > 0 {
		cfg.TailBytes = fc.TailBytes
	}
	for _, d := range []struct {
		raw  string
		dst  *time.Duration
		name string
	}{
		{fc.PollInterval, &cfg.PollInterval, "poll_interval"},
		{fc.LivenessInterval, &cfg.LivenessInterval, "liveness_interval"},
		{fc.FetchTimeout, &cfg.FetchTimeout, "fetch_timeout"},
		{fc.PruneAfter, &cfg.PruneAfter, "prune_after"},
		{fc.PruneInterval, &cfg.PruneInterval, "prune_interval"},
	} {
		if d.raw == "" {
			continue
		}
		dur, err := time.ParseDuration(d.raw)
		if err != nil {
			return cfg, fmt.Errorf("parse config %s: %s: %w", path, d.name, err)
		}
		if dur <= 0 {
			return cfg, fmt.Errorf("parse config %s: %s must be positive", path, d.name)
		}
		*d.dst = dur
	}
	return cfg, nil
}

// DefaultPath is the config file location.
func DefaultPath() string {
	if dir := os.Getenv("XDG_CONFIG_HOME"); dir != "" {
		return filepath.Join(dir, "lemonaid", "config.toml")
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return "lemonaid.toml"
	}
	return filepath.Join(home, ".config", "lemonaid", "config.toml")
}

func defaultDBPath() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return "lemonaid.db"
	}
	return filepath.Join(home, ".local", "state", "lemonaid", "notifications.db")
}

func defaultLogPath() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return "lemonaid.log"
	}
	return filepath.Join(home, ".local", "state", "lemonaid", "lemonaid.log")
}

func defaultLedgerDir() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return filepath.Join(os.TempDir(), "lemonaid", "ledger")
	}
	return filepath.Join(home, ".local", "state", "lemonaid", "ledger")
}

func expandHome(path string) string {
	if len(path) >= 2 && path[0] == '~' && path[1] == filepath.Separator {
		if home, err := os.UserHomeDir(); err == nil {
			return filepath.Join(home, path[2:])
		}
	}
	return path
}
