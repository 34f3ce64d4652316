// Package ledger persists the per-environment "previous location" used for
// switch-and-return navigation. Each multiplexer environment (a tmux server,
// a wezterm GUI instance) gets one single-slot file; Swap atomically replaces
// the slot with the current location and hands back whatever was stored, so
// two consecutive swaps bounce between the same two places.
package ledger

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/google/uuid"

	"github.com/petergaultney/lemonaid/internal/model"
)

// ErrEmpty reports a swap against an environment with no stored location yet.
var ErrEmpty = errors.New("no previous location recorded")

type Ledger struct {
	dir string
}

// New returns a ledger rooted at dir, creating it if needed.
func New(dir string) (*Ledger, error) {
	if err := os.MkdirAll(dir, 0o700); err != nil {
		return nil, fmt.Errorf("create ledger dir: %w", err)
	}
	return &Ledger{dir: dir}, nil
}

// DefaultDir is the ledger location under the user's state directory.
func DefaultDir() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return filepath.Join(os.TempDir(), "lemonaid", "ledger")
	}
	return filepath.Join(home, ".local", "state", "lemonaid", "ledger")
}

type slot struct {
	Workspace string `json:"workspace,omitempty"`
	Session   string `json:"session,omitempty"`
	PaneID    string `json:"pane_id,omitempty"`
}

// Swap stores current as the environment's new previous-location and returns
// the location that was stored before. The replacement is write-temp then
// rename, so a crash mid-swap leaves either the old slot or the new one,
// never a torn file.
func (l *Ledger) Swap(env string, current model.Location) (model.Location, error) {
	path := l.path(env)
	prev, err := readSlot(path)
	if err != nil {
		return model.Location{}, err
	}
	if err := l.writeSlot(path, current); err != nil {
		return model.Location{}, err
	}
	if prev.IsZero() {
		return model.Location{}, ErrEmpty
	}
	return prev, nil
}

// Peek returns the stored location without replacing it.
func (l *Ledger) Peek(env string) (model.Location, error) {
	prev, err := readSlot(l.path(env))
	if err != nil {
		return model.Location{}, err
	}
	if prev.IsZero() {
		return model.Location{}, ErrEmpty
	}
	return prev, nil
}

func (l *Ledger) path(env string) string {
	return filepath.Join(l.dir, sanitizeEnv(env)+".json")
}

func readSlot(path string) (model.Location, error) {
	data, err := os.ReadFile(path)
	if errors.Is(err, os.ErrNotExist) {
		return model.Location{}, nil
	}
	if err != nil {
		return model.Location{}, fmt.Errorf("read ledger slot: %w", err)
	}
	var s slot
	if err := json.Unmarshal(data, &s); err != nil {
		// A corrupt slot is treated as empty rather than wedging swaps.
		return model.Location{}, nil
	}
	return model.Location{Workspace: s.Workspace, Session: s.Session, PaneID: s.PaneID}, nil
}

func (l *Ledger) writeSlot(path string, loc model.Location) error {
	data, err := json.Marshal(slot{Workspace: loc.Workspace, Session: loc.Session, PaneID: loc.PaneID})
	if err != nil {
		return fmt.Errorf("encode ledger slot: %w", err)
	}
	tmp := path + ".tmp." + uuid.NewString()[:8]
	if err := os.WriteFile(tmp, data, 0o600); err != nil {
		return fmt.Errorf("write ledger slot: %w", err)
	}
	if err := os.Rename(tmp, path); err != nil {
		os.Remove(tmp) //nolint:errcheck
		return fmt.Errorf("replace ledger slot: %w", err)
	}
	return nil
}

// sanitizeEnv maps an environment identifier (often a socket path or pane
// identifier) to a safe file name.
func sanitizeEnv(env string) string {
	if env == "" {
		return "default"
	}
	var b strings.Builder
	for _, r := range env {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9', r == '-', r == '_', r == '.':
			b.WriteRune(r)
		default:
			b.WriteByte('-')
		}
	}
	return b.String()
}
