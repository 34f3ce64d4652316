package backend

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/petergaultney/lemonaid/internal/model"
	"github.com/petergaultney/lemonaid/internal/transcript"
)

func TestCodexResolveExactBeatsPartial(t *testing.T) {
	root := t.TempDir()
	day := filepath.Join(root, "2025", "06", "01")
	if err := os.MkdirAll(day, 0o755); err != nil {
		t.Fatalf("mkdir: %v", err)
	}
	sessionID := "0196d2e3-aaaa-bbbb-cccc-ddddeeeeffff"
	partial := filepath.Join(day, "rollout-2025-06-01-0196d2e3-other.jsonl")
	exact := filepath.Join(day, "rollout-2025-06-01-"+sessionID+".jsonl")
	for _, p := range []string{partial, exact} {
		if err := os.WriteFile(p, nil, 0o644); err != nil {
			t.Fatalf("write: %v", err)
		}
	}

	b := &codexBackend{sessionsDir: root}
	src, err := b.Resolve(Session{SessionID: sessionID})
	if err != nil {
		t.Fatalf("resolve: %v", err)
	}
	if local := src.(transcript.LocalFile); local.Path != exact {
		t.Fatalf("resolved %s, want exact match %s", local.Path, exact)
	}
}

func TestCodexResolvePartialFallback(t *testing.T) {
	root := t.TempDir()
	path := filepath.Join(root, "rollout-2025-06-01-0196d2e3-xyz.jsonl")
	if err := os.WriteFile(path, nil, 0o644); err != nil {
		t.Fatalf("write: %v", err)
	}
	b := &codexBackend{sessionsDir: root}
	src, err := b.Resolve(Session{SessionID: "0196d2e3"})
	if err != nil {
		t.Fatalf("resolve: %v", err)
	}
	if local := src.(transcript.LocalFile); local.Path != path {
		t.Fatalf("resolved %s, want %s", local.Path, path)
	}
}

func TestCodexParseShellCall(t *testing.T) {
	line := []byte(`{"type":"local_shell_call","timestamp":"2025-06-01T12:00:00Z","action":{"command":["/bin/cargo","test"]}}`)
	b := &codexBackend{}
	entry, ok := b.ParseEntry(line)
	if !ok || entry.Kind != model.EntryActivity || entry.Message != "Running cargo" {
		t.Fatalf("unexpected entry: %+v ok=%v", entry, ok)
	}
}

func TestCodexParseMessages(t *testing.T) {
	b := &codexBackend{}

	user := []byte(`{"type":"message","timestamp":"2025-06-01T12:00:00Z","role":"user","content":[{"type":"input_text","text":"hi"}]}`)
	entry, ok := b.ParseEntry(user)
	if !ok || entry.Kind != model.EntryUserInput {
		t.Fatalf("user message: %+v ok=%v", entry, ok)
	}

	assistant := []byte(`{"type":"message","timestamp":"2025-06-01T12:00:05Z","role":"assistant","content":[{"type":"output_text","text":"Tests pass now."}]}`)
	entry, ok = b.ParseEntry(assistant)
	if !ok || entry.Kind != model.EntryActivity || entry.Message != "Tests pass now." {
		t.Fatalf("assistant message: %+v ok=%v", entry, ok)
	}
}

func TestCodexParseResponseItems(t *testing.T) {
	b := &codexBackend{}

	call := []byte(`{"type":"response_item","timestamp":"2025-06-01T12:00:00Z","payload":{"type":"function_call","name":"apply_patch"}}`)
	entry, ok := b.ParseEntry(call)
	if !ok || entry.Message != "Calling apply_patch" {
		t.Fatalf("function call: %+v ok=%v", entry, ok)
	}

	search := []byte(`{"type":"response_item","timestamp":"2025-06-01T12:00:01Z","payload":{"type":"web_search_call","action":{"query":"go sqlite wal"}}}`)
	entry, ok = b.ParseEntry(search)
	if !ok || entry.Message != "Searching: go sqlite wal" {
		t.Fatalf("web search: %+v ok=%v", entry, ok)
	}

	nested := []byte(`{"type":"response_item","timestamp":"2025-06-01T12:00:02Z","payload":{"type":"message","role":"user"}}`)
	entry, ok = b.ParseEntry(nested)
	if !ok || entry.Kind != model.EntryUserInput {
		t.Fatalf("nested user message: %+v ok=%v", entry, ok)
	}
}
