// Package integration wires lemonaid into the agents it tracks: installing
// lifecycle hooks into Claude's settings and checking that an installation
// is healthy.
package integration

import (
	"bytes"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"
)

type InstallOptions struct {
	HomeDir     string
	LemonaidBin string
	DryRun      bool
}

type InstallResult struct {
	DryRun       bool     `json:"dry_run"`
	FilesWritten []string `json:"files_written,omitempty"`
	Backups      []string `json:"backups,omitempty"`
}

// hookEvents are the Claude lifecycle events lemonaid listens on.
var hookEvents = []string{"Stop", "Notification", "UserPromptSubmit", "SessionEnd"}

// Install merges lemonaid's notify command into ~/.claude/settings.json,
// backing up the previous file. Existing unrelated hooks are preserved;
// stale lemonaid entries are replaced.
func Install(opts InstallOptions) (InstallResult, error) {
	opts, err := normalizeOptions(opts)
	if err != nil {
		return InstallResult{}, err
	}
	res := InstallResult{DryRun: opts.DryRun}

	settingsPath := filepath.Join(opts.HomeDir, ".claude", "settings.json")
	command := opts.LemonaidBin + " notify --backend claude"
	if err := mergeClaudeSettings(settingsPath, command, opts.DryRun, &res); err != nil {
		return InstallResult{}, err
	}
	return res, nil
}

func normalizeOptions(opts InstallOptions) (InstallOptions, error) {
	if strings.TrimSpace(opts.HomeDir) == "" {
		home, err := os.UserHomeDir()
		if err != nil {
			return InstallOptions{}, fmt.Errorf("resolve home dir: %w", err)
		}
		opts.HomeDir = home
	}
	if strings.TrimSpace(opts.LemonaidBin) == "" {
		opts.LemonaidBin = "lemonaid"
	}
	return opts, nil
}

// hookEntry mirrors Claude's settings.json hook schema.
type hookEntry struct {
	Type    string `json:"type"`
	Command string `json:"command"`
}

type hookMatcher struct {
	Matcher string      `json:"matcher,omitempty"`
	Hooks   []hookEntry `json:"hooks"`
}

func mergeClaudeSettings(path, command string, dryRun bool, res *InstallResult) error {
	settings := map[string]json.RawMessage{}
	if data, err := os.ReadFile(path); err == nil {
		if err := json.Unmarshal(data, &settings); err != nil {
			return fmt.Errorf("parse %s: %w", path, err)
		}
	} else if !os.IsNotExist(err) {
		return fmt.Errorf("read %s: %w", path, err)
	}

	hooks := map[string][]hookMatcher{}
	if raw, ok := settings["hooks"]; ok {
		if err := json.Unmarshal(raw, &hooks); err != nil {
			return fmt.Errorf("parse hooks in %s: %w", path, err)
		}
	}

	for _, event := range hookEvents {
		hooks[event] = upsertHookCommand(hooks[event], command)
	}

	hooksJSON, err := json.Marshal(hooks)
	if err != nil {
		return fmt.Errorf("encode hooks: %w", err)
	}
	settings["hooks"] = hooksJSON

	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetIndent("", "  ")
	if err := enc.Encode(settings); err != nil {
		return fmt.Errorf("encode settings: %w", err)
	}
	return writeManagedFile(path, buf.Bytes(), dryRun, res)
}

// upsertHookCommand replaces any previous lemonaid entry and otherwise
// appends, leaving foreign hooks untouched.
func upsertHookCommand(matchers []hookMatcher, command string) []hookMatcher {
	kept := matchers[:0]
	for _, m := range matchers {
		entries := m.Hooks[:0]
		for _, h := range m.Hooks {
			if !strings.Contains(h.Command, "lemonaid notify") {
				entries = append(entries, h)
			}
		}
		m.Hooks = entries
		if len(m.Hooks) > 0 {
			kept = append(kept, m)
		}
	}
	return append(kept, hookMatcher{Hooks: []hookEntry{{Type: "command", Command: command}}})
}

func writeManagedFile(path string, content []byte, dryRun bool, res *InstallResult) error {
	if dryRun {
		res.FilesWritten = append(res.FilesWritten, path)
		return nil
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("create %s: %w", filepath.Dir(path), err)
	}
	if prev, err := os.ReadFile(path); err == nil && !bytes.Equal(prev, content) {
		backup := fmt.Sprintf("%s.bak.%s", path, time.Now().Format("20060102-150405"))
		if err := os.WriteFile(backup, prev, 0o644); err != nil {
			return fmt.Errorf("back up %s: %w", path, err)
		}
		res.Backups = append(res.Backups, backup)
	}
	if err := os.WriteFile(path, content, 0o644); err != nil {
		return fmt.Errorf("write %s: %w", path, err)
	}
	res.FilesWritten = append(res.FilesWritten, path)
	return nil
}
