package integration

import (
	"encoding/json"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
)

type DoctorOptions struct {
	HomeDir string
	DBPath  string
}

type DoctorCheck struct {
	Name    string `json:"name"`
	Status  string `json:"status"` // pass | warn | fail
	Message string `json:"message"`
	Path    string `json:"path,omitempty"`
}

type DoctorResult struct {
	OK     bool          `json:"ok"`
	Checks []DoctorCheck `json:"checks"`
}

// Doctor inspects an installation: hook wiring, database presence, and the
// multiplexer and agent binaries liveness probes depend on.
func Doctor(opts DoctorOptions) (DoctorResult, error) {
	normalized, err := normalizeOptions(InstallOptions{HomeDir: opts.HomeDir})
	if err != nil {
		return DoctorResult{}, err
	}

	out := DoctorResult{OK: true}
	add := func(c DoctorCheck) {
		out.Checks = append(out.Checks, c)
		if c.Status == "fail" {
			out.OK = false
		}
	}

	settingsPath := filepath.Join(normalized.HomeDir, ".claude", "settings.json")
	add(checkClaudeHooks(settingsPath))

	if opts.DBPath != "" {
		if _, err := os.Stat(opts.DBPath); err == nil {
			add(DoctorCheck{Name: "database", Status: "pass", Message: "database exists", Path: opts.DBPath})
		} else {
			add(DoctorCheck{Name: "database", Status: "warn", Message: "database not created yet; start lemonaidd", Path: opts.DBPath})
		}
	}

	for _, bin := range []string{"tmux", "wezterm"} {
		if _, err := exec.LookPath(bin); err == nil {
			add(DoctorCheck{Name: bin, Status: "pass", Message: bin + " found"})
		} else {
			add(DoctorCheck{Name: bin, Status: "warn", Message: bin + " not on PATH; " + bin + " sessions will not be switchable"})
		}
	}

	return out, nil
}

func checkClaudeHooks(path string) DoctorCheck {
	data, err := os.ReadFile(path)
	if err != nil {
		return DoctorCheck{Name: "claude_hooks", Status: "fail", Message: "settings not found; run lemonaid install", Path: path}
	}
	var settings struct {
		Hooks map[string][]hookMatcher `json:"hooks"`
	}
	if err := json.Unmarshal(data, &settings); err != nil {
		return DoctorCheck{Name: "claude_hooks", Status: "fail", Message: fmt.Sprintf("settings unreadable: %v", err), Path: path}
	}
	var missing []string
	for _, event := range hookEvents {
		if !hasNotifyHook(settings.Hooks[event]) {
			missing = append(missing, event)
		}
	}
	if len(missing) > 0 {
		return DoctorCheck{
			Name:    "claude_hooks",
			Status:  "fail",
			Message: "missing lemonaid hook for " + strings.Join(missing, ", ") + "; run lemonaid install",
			Path:    path,
		}
	}
	return DoctorCheck{Name: "claude_hooks", Status: "pass", Message: "all lifecycle hooks installed", Path: path}
}

func hasNotifyHook(matchers []hookMatcher) bool {
	for _, m := range matchers {
		for _, h := range m.Hooks {
			if strings.Contains(h.Command, "lemonaid notify") {
				return true
			}
		}
	}
	return false
}
