package backend

import (
	"encoding/json"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/petergaultney/lemonaid/internal/model"
	"github.com/petergaultney/lemonaid/internal/transcript"
)

type codexBackend struct {
	sessionsDir string
}

func NewCodexBackend() Backend {
	return &codexBackend{}
}

func (*codexBackend) Prefix() string      { return "codex" }
func (*codexBackend) ProcessName() string { return "codex" }

// Resolve finds a Codex rollout file. Codex names sessions
// rollout-<date>-<uuid>.jsonl and nests them in date subdirectories, so the
// search is recursive, exact suffix first and then an 8-char prefix match.
func (b *codexBackend) Resolve(sess Session) (transcript.Source, error) {
	if sess.Path != "" {
		return transcript.LocalFile{Path: sess.Path}, nil
	}
	if sess.SessionID == "" {
		return nil, fmt.Errorf("%w: codex session needs session_id", ErrNoTranscript)
	}
	root := b.sessions()
	var exact, partial string
	shortID := sess.SessionID
	if len(shortID) > 8 {
		shortID = shortID[:8]
	}
	err := filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
		if err != nil || d.IsDir() {
			return nil //nolint:nilerr
		}
		name := d.Name()
		if !strings.HasSuffix(name, ".jsonl") {
			return nil
		}
		if strings.HasSuffix(name, sess.SessionID+".jsonl") {
			exact = path
			return fs.SkipAll
		}
		if partial == "" && strings.Contains(name, shortID) {
			partial = path
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("%w: walk %s: %v", ErrNoTranscript, root, err)
	}
	if exact != "" {
		return transcript.LocalFile{Path: exact}, nil
	}
	if partial != "" {
		return transcript.LocalFile{Path: partial}, nil
	}
	return nil, fmt.Errorf("%w: no codex rollout for %s", ErrNoTranscript, sess.SessionID)
}

func (b *codexBackend) sessions() string {
	if b.sessionsDir != "" {
		return b.sessionsDir
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return ".codex/sessions"
	}
	return filepath.Join(home, ".codex", "sessions")
}

type codexEntry struct {
	Type      string `json:"type"`
	Timestamp string `json:"timestamp"`
	Role      string `json:"role"`
	Content   []struct {
		Type string `json:"type"`
		Text string `json:"text"`
	} `json:"content"`
	Action struct {
		Command []string `json:"command"`
	} `json:"action"`
	Payload struct {
		Type      string `json:"type"`
		Role      string `json:"role"`
		Name      string `json:"name"`
		Arguments string `json:"arguments"`
		Content   []struct {
			Type string `json:"type"`
			Text string `json:"text"`
		} `json:"content"`
		Action struct {
			Query string `json:"query"`
		} `json:"action"`
	} `json:"payload"`
}

// ParseEntry classifies a Codex rollout line. Shell calls and assistant
// output are activity; user messages are user input.
func (*codexBackend) ParseEntry(line []byte) (model.Entry, bool) {
	var e codexEntry
	if err := json.Unmarshal(line, &e); err != nil {
		return model.Entry{}, false
	}
	ts, err := transcript.ParseTimestamp(e.Timestamp)
	if err != nil {
		return model.Entry{}, false
	}

	switch e.Type {
	case "local_shell_call":
		return model.Entry{Timestamp: ts, Kind: model.EntryActivity, Message: describeCodexShell(e.Action.Command)}, true
	case "message":
		if e.Role == "user" {
			return model.Entry{Timestamp: ts, Kind: model.EntryUserInput}, true
		}
		if e.Role != "assistant" {
			return model.Entry{}, false
		}
		for _, block := range e.Content {
			if block.Type == "output_text" || block.Type == "text" {
				if line := firstLine(block.Text, 60); line != "" {
					return model.Entry{Timestamp: ts, Kind: model.EntryActivity, Message: line}, true
				}
			}
		}
		return model.Entry{}, false
	case "response_item":
		return parseCodexResponseItem(e, ts)
	default:
		return model.Entry{}, false
	}
}

func parseCodexResponseItem(e codexEntry, ts time.Time) (model.Entry, bool) {
	switch e.Payload.Type {
	case "function_call":
		name := e.Payload.Name
		if name == "" {
			name = "tool"
		}
		return model.Entry{Timestamp: ts, Kind: model.EntryActivity, Message: "Calling " + name}, true
	case "web_search_call":
		msg := "Web search"
		if q := e.Payload.Action.Query; q != "" {
			msg = "Searching: " + truncate(q, 30)
		}
		return model.Entry{Timestamp: ts, Kind: model.EntryActivity, Message: msg}, true
	case "message":
		if e.Payload.Role == "user" {
			return model.Entry{Timestamp: ts, Kind: model.EntryUserInput}, true
		}
		if e.Payload.Role != "assistant" {
			return model.Entry{}, false
		}
		for _, block := range e.Payload.Content {
			if block.Type == "output_text" {
				if line := firstLine(block.Text, 60); line != "" {
					return model.Entry{Timestamp: ts, Kind: model.EntryActivity, Message: line}, true
				}
			}
		}
		return model.Entry{}, false
	default:
		return model.Entry{}, false
	}
}

func describeCodexShell(command []string) string {
	if len(command) == 0 {
		return "Running command"
	}
	return "Running " + filepath.Base(command[0])
}
