// Package liveness verifies that the terminal pane or process backing a
// session still exists, and decides which channels to auto-archive. Checks
// fail open: any error means "assume alive" so a transient ps/tmux failure
// never archives a live session.
package liveness

import (
	"context"
	"encoding/json"
	"os/exec"
	"sort"
	"strings"
	"time"

	"github.com/petergaultney/lemonaid/internal/model"
	"github.com/petergaultney/lemonaid/internal/tmuxfmt"
)

// Runner executes a probe command; substituted in tests.
type Runner interface {
	Run(ctx context.Context, name string, args ...string) ([]byte, error)
}

type OSRunner struct{}

func (OSRunner) Run(ctx context.Context, name string, args ...string) ([]byte, error) {
	cmd := exec.CommandContext(ctx, name, args...)
	return cmd.Output()
}

type Checker struct {
	runner  Runner
	timeout time.Duration
}

func NewChecker(runner Runner, timeout time.Duration) *Checker {
	if runner == nil {
		runner = OSRunner{}
	}
	if timeout <= 0 {
		timeout = 2 * time.Second
	}
	return &Checker{runner: runner, timeout: timeout}
}

// ProcessRunningOnTTY reports whether a process with the given name is
// attached to the TTY. Errors report true.
func (c *Checker) ProcessRunningOnTTY(ctx context.Context, tty, processName string) bool {
	ttyName := strings.TrimPrefix(tty, "/dev/")
	if ttyName == "" {
		return true
	}
	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()
	out, err := c.runner.Run(ctx, "ps", "-t", ttyName, "-o", "comm=")
	if err != nil {
		return true
	}
	return strings.Contains(string(out), processName)
}

// PaneExists reports whether a pane with the given TTY still exists in the
// session's terminal environment. Unknown environments and errors report
// true.
func (c *Checker) PaneExists(ctx context.Context, tty, switchSource string) bool {
	if tty == "" {
		return true
	}
	switch switchSource {
	case "tmux":
		return c.tmuxPaneExists(ctx, tty)
	case "wezterm":
		return c.weztermPaneExists(ctx, tty)
	default:
		return true
	}
}

func (c *Checker) tmuxPaneExists(ctx context.Context, tty string) bool {
	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()
	out, err := c.runner.Run(ctx, "tmux", "list-panes", "-a", "-F", tmuxfmt.Join("#{pane_tty}"))
	if err != nil {
		return true
	}
	for _, line := range strings.Split(string(out), "\n") {
		if strings.TrimSpace(line) == tty {
			return true
		}
	}
	return false
}

func (c *Checker) weztermPaneExists(ctx context.Context, tty string) bool {
	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()
	out, err := c.runner.Run(ctx, "wezterm", "cli", "list", "--format", "json")
	if err != nil {
		return true
	}
	var panes []struct {
		TTYName string `json:"tty_name"`
	}
	if err := json.Unmarshal(out, &panes); err != nil {
		return true
	}
	for _, p := range panes {
		if p.TTYName == tty {
			return true
		}
	}
	return false
}

// ProcessNamer maps a channel to the process name its backend runs as.
type ProcessNamer func(channel string) string

// Sweep inspects the active notifications and returns the channels that
// should be archived:
//   - the pane backing a session no longer exists (most reliable check);
//   - several sessions claim one TTY: only the newest can be real, and if
//     the process is gone none of them are;
//   - a lone session whose process has exited.
//
// Sessions without a recorded TTY are never swept; with only a shared cwd
// there is no safe way to tell untracked sessions apart, so attribution
// stays best-effort.
func (c *Checker) Sweep(ctx context.Context, active []model.Notification, procName ProcessNamer) []string {
	var archived []string

	type liveSession struct {
		channel   string
		tty       string
		createdAt time.Time
	}

	groups := map[string][]liveSession{}
	for _, n := range active {
		tty := n.Metadata[model.MetaTTY]
		if tty == "" {
			continue
		}
		if !c.PaneExists(ctx, tty, n.SwitchSource) {
			archived = append(archived, n.Channel)
			continue
		}
		key := tty + "\x00" + procName(n.Channel)
		groups[key] = append(groups[key], liveSession{channel: n.Channel, tty: tty, createdAt: n.CreatedAt})
	}

	for key, sessions := range groups {
		name := key[strings.IndexByte(key, '\x00')+1:]
		running := c.ProcessRunningOnTTY(ctx, sessions[0].tty, name)
		if len(sessions) == 1 {
			if !running {
				archived = append(archived, sessions[0].channel)
			}
			continue
		}
		// Newest first; only one session can own the TTY.
		sort.Slice(sessions, func(i, j int) bool {
			return sessions[i].createdAt.After(sessions[j].createdAt)
		})
		for _, s := range sessions[1:] {
			archived = append(archived, s.channel)
		}
		if !running {
			archived = append(archived, sessions[0].channel)
		}
	}

	return archived
}
