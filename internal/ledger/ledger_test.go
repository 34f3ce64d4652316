package ledger

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/petergaultney/lemonaid/internal/model"
)

func newLedger(t *testing.T) *Ledger {
	t.Helper()
	l, err := New(filepath.Join(t.TempDir(), "ledger"))
	require.NoError(t, err)
	return l
}

func TestSwapEmptySlot(t *testing.T) {
	l := newLedger(t)
	_, err := l.Swap("tmux-default", model.Location{Session: "work", PaneID: "%1"})
	assert.ErrorIs(t, err, ErrEmpty)

	// The current location was still recorded.
	prev, err := l.Peek("tmux-default")
	require.NoError(t, err)
	assert.Equal(t, model.Location{Session: "work", PaneID: "%1"}, prev)
}

func TestSwapPingPong(t *testing.T) {
	l := newLedger(t)
	a := model.Location{Session: "work", PaneID: "%1"}
	b := model.Location{Session: "notes", PaneID: "%7"}

	_, _ = l.Swap("env", a)
	prev, err := l.Swap("env", b)
	require.NoError(t, err)
	assert.Equal(t, a, prev)

	// Repeated swaps bounce between the same two locations.
	prev, err = l.Swap("env", a)
	require.NoError(t, err)
	assert.Equal(t, b, prev)

	prev, err = l.Swap("env", b)
	require.NoError(t, err)
	assert.Equal(t, a, prev)
}

func TestSwapIsolatedPerEnvironment(t *testing.T) {
	l := newLedger(t)
	_, _ = l.Swap("tmux-sock1", model.Location{Session: "a"})
	_, err := l.Swap("tmux-sock2", model.Location{Session: "b"})
	assert.ErrorIs(t, err, ErrEmpty)
}

func TestCorruptSlotTreatedAsEmpty(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "ledger")
	l, err := New(dir)
	require.NoError(t, err)

	require.NoError(t, os.WriteFile(filepath.Join(dir, "env.json"), []byte("{not json"), 0o600))
	_, err = l.Swap("env", model.Location{Session: "fresh"})
	assert.ErrorIs(t, err, ErrEmpty)

	prev, err := l.Peek("env")
	require.NoError(t, err)
	assert.Equal(t, "fresh", prev.Session)
}

func TestNoTempFilesLeftBehind(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "ledger")
	l, err := New(dir)
	require.NoError(t, err)
	for i := 0; i < 5; i++ {
		_, _ = l.Swap("env", model.Location{Session: "s", PaneID: "%1"})
	}
	entries, err := os.ReadDir(dir)
	require.NoError(t, err)
	assert.Len(t, entries, 1)
	assert.Equal(t, "env.json", entries[0].Name())
}

func TestSanitizeEnv(t *testing.T) {
	assert.Equal(t, "default", sanitizeEnv(""))
	assert.Equal(t, "tmux--tmp-sock", sanitizeEnv("tmux-/tmp/sock"))
}
