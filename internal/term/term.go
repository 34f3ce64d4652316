// Package term inspects the terminal environment a command runs in: which
// multiplexer hosts it, which TTY device it sits on, and where the user
// currently is inside that multiplexer. Hook ingestion uses this to stamp
// notifications with enough metadata for liveness sweeps and switch-back
// navigation.
package term

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"strings"

	xterm "golang.org/x/term"

	"github.com/petergaultney/lemonaid/internal/model"
	"github.com/petergaultney/lemonaid/internal/tmuxfmt"
)

// Switch sources a notification can carry. Empty means the session is not
// reachable by pane switching.
const (
	SourceTmux    = "tmux"
	SourceWezterm = "wezterm"
)

// Runner executes a command. Tests substitute a fake.
type Runner interface {
	Run(ctx context.Context, name string, args ...string) ([]byte, error)
}

type OSRunner struct{}

func (OSRunner) Run(ctx context.Context, name string, args ...string) ([]byte, error) {
	return exec.CommandContext(ctx, name, args...).Output()
}

// Env is the subset of the process environment the detector reads, injectable
// for tests.
type Env func(key string) string

// DetectSwitchSource reports which multiplexer the current process runs
// under. tmux wins over wezterm when both are set: a tmux session inside a
// wezterm window is switched to via tmux.
func DetectSwitchSource(getenv Env) string {
	if getenv == nil {
		getenv = os.Getenv
	}
	if getenv("TMUX") != "" {
		return SourceTmux
	}
	if getenv("WEZTERM_PANE") != "" {
		return SourceWezterm
	}
	return ""
}

// DetectTTY finds the controlling terminal device of the current process.
// Standard descriptors are tried first; when all three are redirected (the
// usual case for an agent hook) the parent chain is walked via ps until a
// process with a terminal turns up.
func DetectTTY(ctx context.Context, runner Runner) string {
	for _, fd := range []int{0, 1, 2} {
		if name := ttyName(fd); name != "" {
			return name
		}
	}
	if runner == nil {
		runner = OSRunner{}
	}
	return ttyFromAncestors(ctx, runner, os.Getpid())
}

func ttyName(fd int) string {
	if !xterm.IsTerminal(fd) {
		return ""
	}
	// /proc/self/fd resolves to the underlying device on Linux; on other
	// platforms readlink fails and the ps walk takes over.
	if target, err := os.Readlink(fmt.Sprintf("/proc/self/fd/%d", fd)); err == nil {
		if strings.HasPrefix(target, "/dev/") {
			return target
		}
	}
	return ""
}

const maxAncestorHops = 10

func ttyFromAncestors(ctx context.Context, runner Runner, pid int) string {
	for hops := 0; hops < maxAncestorHops && pid > 1; hops++ {
		out, err := runner.Run(ctx, "ps", "-o", "ppid=,tty=", "-p", fmt.Sprint(pid))
		if err != nil {
			return ""
		}
		fields := strings.Fields(strings.TrimSpace(string(out)))
		if len(fields) < 2 {
			return ""
		}
		ppid := 0
		if _, err := fmt.Sscanf(fields[0], "%d", &ppid); err != nil {
			return ""
		}
		if tty := fields[1]; tty != "" && tty != "?" && tty != "??" && tty != "-" {
			if !strings.HasPrefix(tty, "/dev/") {
				tty = "/dev/" + tty
			}
			return tty
		}
		pid = ppid
	}
	return ""
}

// CurrentLocation reports where the user's focus is inside the detected
// multiplexer, for recording in the location ledger before a switch.
func CurrentLocation(ctx context.Context, source string, runner Runner) (model.Location, error) {
	if runner == nil {
		runner = OSRunner{}
	}
	switch source {
	case SourceTmux:
		return currentTmuxLocation(ctx, runner)
	case SourceWezterm:
		return currentWeztermLocation(ctx, runner)
	default:
		return model.Location{}, fmt.Errorf("no switchable environment")
	}
}

func currentTmuxLocation(ctx context.Context, runner Runner) (model.Location, error) {
	format := tmuxfmt.Join("#{session_name}", "#{pane_id}")
	out, err := runner.Run(ctx, "tmux", "display-message", "-p", format)
	if err != nil {
		return model.Location{}, fmt.Errorf("tmux display-message: %w", err)
	}
	parts := tmuxfmt.SplitLine(strings.TrimSpace(string(out)), 2)
	if len(parts) != 2 {
		return model.Location{}, fmt.Errorf("unexpected tmux output %q", out)
	}
	return model.Location{Session: parts[0], PaneID: parts[1]}, nil
}

func currentWeztermLocation(ctx context.Context, runner Runner) (model.Location, error) {
	out, err := runner.Run(ctx, "wezterm", "cli", "list", "--format", "json")
	if err != nil {
		return model.Location{}, fmt.Errorf("wezterm cli list: %w", err)
	}
	var panes []struct {
		PaneID    int    `json:"pane_id"`
		Workspace string `json:"workspace"`
		IsActive  bool   `json:"is_active"`
	}
	if err := json.Unmarshal(out, &panes); err != nil {
		return model.Location{}, fmt.Errorf("decode wezterm pane list: %w", err)
	}
	for _, p := range panes {
		if p.IsActive {
			return model.Location{Workspace: p.Workspace, PaneID: fmt.Sprint(p.PaneID)}, nil
		}
	}
	return model.Location{}, fmt.Errorf("no active wezterm pane")
}

// SwitchTo focuses the pane recorded in loc.
func SwitchTo(ctx context.Context, source string, loc model.Location, runner Runner) error {
	if runner == nil {
		runner = OSRunner{}
	}
	switch source {
	case SourceTmux:
		if loc.Session != "" {
			if _, err := runner.Run(ctx, "tmux", "switch-client", "-t", loc.Session); err != nil {
				return fmt.Errorf("tmux switch-client: %w", err)
			}
		}
		if loc.PaneID != "" {
			if _, err := runner.Run(ctx, "tmux", "select-pane", "-t", loc.PaneID); err != nil {
				return fmt.Errorf("tmux select-pane: %w", err)
			}
		}
		return nil
	case SourceWezterm:
		if _, err := runner.Run(ctx, "wezterm", "cli", "activate-pane", "--pane-id", loc.PaneID); err != nil {
			return fmt.Errorf("wezterm activate-pane: %w", err)
		}
		return nil
	default:
		return fmt.Errorf("no switchable environment")
	}
}

// EnvironmentID names the multiplexer instance for ledger keying. Distinct
// tmux servers (distinct sockets) keep distinct swap slots.
func EnvironmentID(source string, getenv Env) string {
	if getenv == nil {
		getenv = os.Getenv
	}
	switch source {
	case SourceTmux:
		// $TMUX is "socket_path,pid,session_index".
		if v := getenv("TMUX"); v != "" {
			return "tmux-" + filepath.Base(strings.SplitN(v, ",", 2)[0])
		}
		return "tmux"
	case SourceWezterm:
		if v := getenv("WEZTERM_UNIX_SOCKET"); v != "" {
			return "wezterm-" + filepath.Base(v)
		}
		return "wezterm"
	default:
		return "default"
	}
}

// ShortenPath abbreviates a working directory for display: home becomes ~
// and all but the last two segments collapse to their first letter.
func ShortenPath(path string) string {
	if path == "" {
		return ""
	}
	if home, err := os.UserHomeDir(); err == nil && home != "/" {
		if path == home {
			return "~"
		}
		if strings.HasPrefix(path, home+string(filepath.Separator)) {
			path = "~" + path[len(home):]
		}
	}
	parts := strings.Split(path, string(filepath.Separator))
	if len(parts) <= 3 {
		return path
	}
	for i := 0; i < len(parts)-2; i++ {
		if r := []rune(parts[i]); len(r) > 1 && parts[i] != "~" {
			parts[i] = string(r[0])
		}
	}
	return strings.Join(parts, string(filepath.Separator))
}

// NameFromCwd derives a default display name from a working directory.
func NameFromCwd(cwd string) string {
	if cwd == "" {
		return ""
	}
	base := filepath.Base(cwd)
	if base == "." || base == string(filepath.Separator) {
		return ""
	}
	return base
}
