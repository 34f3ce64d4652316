package cli

import (
	"bytes"
	"context"
	"errors"
	"path/filepath"
	"strings"
	"testing"

	"github.com/petergaultney/lemonaid/internal/term"
)

type noopRunner struct{}

func (noopRunner) Run(ctx context.Context, name string, args ...string) ([]byte, error) {
	return nil, errors.New("no external commands in tests")
}

func newTestApp(t *testing.T) *App {
	t.Helper()
	app := &App{
		DBPath: filepath.Join(t.TempDir(), "test.db"),
		Runner: noopRunner{},
		Getenv: func(string) string { return "" },
	}
	t.Cleanup(func() {
		_ = app.Close()
	})
	return app
}

func run(t *testing.T, app *App, stdin string, args ...string) (string, error) {
	t.Helper()
	root := NewRootCmd(app)
	var out bytes.Buffer
	root.SetOut(&out)
	root.SetErr(&out)
	root.SetIn(strings.NewReader(stdin))
	root.SetArgs(args)
	err := root.ExecuteContext(context.Background())
	return out.String(), err
}

func TestNotifyThenList(t *testing.T) {
	app := newTestApp(t)
	payload := `{"session_id":"abc12345-6789","hook_event_name":"Stop","cwd":"/repo/proj","message":"Done editing"}`
	out, err := run(t, app, payload, "notify")
	if err != nil {
		t.Fatalf("notify: %v", err)
	}
	channel := strings.TrimSpace(out)
	if !strings.HasPrefix(channel, "claude:") {
		t.Fatalf("unexpected channel: %q", channel)
	}

	out, err = run(t, app, "", "list")
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if !strings.Contains(out, channel) || !strings.Contains(out, "Done editing") {
		t.Fatalf("listing missing notification: %q", out)
	}
	if !strings.Contains(out, "proj") {
		t.Fatalf("derived name missing: %q", out)
	}
}

func TestDismissAndUnreadFilter(t *testing.T) {
	app := newTestApp(t)
	payload := `{"session_id":"abc12345-6789","hook_event_name":"Stop"}`
	out, err := run(t, app, payload, "notify")
	if err != nil {
		t.Fatalf("notify: %v", err)
	}
	channel := strings.TrimSpace(out)

	if _, err := run(t, app, "", "dismiss", channel); err != nil {
		t.Fatalf("dismiss: %v", err)
	}
	out, err = run(t, app, "", "list", "--unread")
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if strings.Contains(out, channel) {
		t.Fatalf("dismissed notification still listed as unread: %q", out)
	}

	// Dismissing again reports a no-op rather than failing.
	out, err = run(t, app, "", "dismiss", channel)
	if err != nil {
		t.Fatalf("second dismiss: %v", err)
	}
	if !strings.Contains(out, "already read") {
		t.Fatalf("expected no-op message: %q", out)
	}
}

func TestRenameShowsInList(t *testing.T) {
	app := newTestApp(t)
	payload := `{"session_id":"abc12345-6789","hook_event_name":"Stop","cwd":"/repo/proj"}`
	out, err := run(t, app, payload, "notify")
	if err != nil {
		t.Fatalf("notify: %v", err)
	}
	channel := strings.TrimSpace(out)

	if _, err := run(t, app, "", "rename", channel, "big-refactor"); err != nil {
		t.Fatalf("rename: %v", err)
	}
	out, err = run(t, app, "", "list")
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if !strings.Contains(out, "big-refactor") {
		t.Fatalf("rename not reflected: %q", out)
	}
}

func TestArchiveRemovesFromList(t *testing.T) {
	app := newTestApp(t)
	payload := `{"session_id":"abc12345-6789","hook_event_name":"Stop"}`
	out, err := run(t, app, payload, "notify")
	if err != nil {
		t.Fatalf("notify: %v", err)
	}
	channel := strings.TrimSpace(out)

	if _, err := run(t, app, "", "archive", channel); err != nil {
		t.Fatalf("archive: %v", err)
	}
	out, err = run(t, app, "", "list")
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if strings.Contains(out, channel) {
		t.Fatalf("archived notification still listed: %q", out)
	}
	if _, err := run(t, app, "", "get", channel); err == nil {
		t.Fatalf("get on archived channel must fail")
	}
}

func TestSessionEndArchives(t *testing.T) {
	app := newTestApp(t)
	start := `{"session_id":"abc12345-6789","hook_event_name":"Stop"}`
	out, err := run(t, app, start, "notify")
	if err != nil {
		t.Fatalf("notify: %v", err)
	}
	channel := strings.TrimSpace(out)

	end := `{"session_id":"abc12345-6789","hook_event_name":"SessionEnd"}`
	if _, err := run(t, app, end, "notify"); err != nil {
		t.Fatalf("session end: %v", err)
	}
	out, err = run(t, app, "", "list")
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if strings.Contains(out, channel) {
		t.Fatalf("ended session still listed: %q", out)
	}
}

func TestRegisterCreatesReadNotification(t *testing.T) {
	app := newTestApp(t)
	out, err := run(t, app, "", "register", "deadbeef-cafe", "--backend", "openclaw", "--host", "devbox", "--path", "/home/u/s.jsonl")
	if err != nil {
		t.Fatalf("register: %v", err)
	}
	channel := strings.TrimSpace(out)
	if !strings.HasPrefix(channel, "openclaw:") {
		t.Fatalf("unexpected channel: %q", channel)
	}

	out, err = run(t, app, "", "get", channel, "--json")
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if !strings.Contains(out, `"read"`) {
		t.Fatalf("registered session should start read: %q", out)
	}
	if !strings.Contains(out, "devbox") {
		t.Fatalf("remote host not recorded: %q", out)
	}
}

func TestSwapOutsideMultiplexerFails(t *testing.T) {
	app := newTestApp(t)
	if _, err := run(t, app, "", "swap"); err == nil {
		t.Fatalf("swap outside tmux/wezterm must fail")
	}
}

var _ term.Runner = noopRunner{}
