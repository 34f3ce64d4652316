package backend

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/petergaultney/lemonaid/internal/model"
	"github.com/petergaultney/lemonaid/internal/transcript"
)

type claudeBackend struct {
	// projectsDir overrides ~/.claude/projects in tests.
	projectsDir string
}

func NewClaudeBackend() Backend {
	return &claudeBackend{}
}

func (*claudeBackend) Prefix() string      { return "claude" }
func (*claudeBackend) ProcessName() string { return "claude" }

// Resolve finds the transcript under Claude's per-project session store.
// Sessions may live under a parent of the working directory (git worktrees
// keep transcripts under the main repo path), so parents are tried too.
func (b *claudeBackend) Resolve(sess Session) (transcript.Source, error) {
	if sess.Path != "" {
		return transcript.LocalFile{Path: sess.Path}, nil
	}
	if sess.SessionID == "" || sess.Cwd == "" {
		return nil, fmt.Errorf("%w: claude session needs session_id and cwd", ErrNoTranscript)
	}
	dir := sess.Cwd
	for {
		candidate := filepath.Join(b.projects(), claudeProjectDir(dir), sess.SessionID+".jsonl")
		if _, err := os.Stat(candidate); err == nil {
			return transcript.LocalFile{Path: candidate}, nil
		}
		parent := filepath.Dir(dir)
		if parent == dir || parent == "/" {
			break
		}
		dir = parent
	}
	return nil, fmt.Errorf("%w: no transcript for %s under %s", ErrNoTranscript, sess.SessionID, sess.Cwd)
}

func (b *claudeBackend) projects() string {
	if b.projectsDir != "" {
		return b.projectsDir
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return ".claude/projects"
	}
	return filepath.Join(home, ".claude", "projects")
}

// claudeProjectDir converts a cwd to Claude's project directory name:
// /Users/peter/play/lemonaid -> -Users-peter-play-lemonaid
// (slashes and dots both become dashes).
func claudeProjectDir(cwd string) string {
	name := strings.ReplaceAll(cwd, "/", "-")
	name = strings.ReplaceAll(name, ".", "-")
	name = strings.TrimPrefix(name, "-")
	return "-" + name
}

type claudeEntry struct {
	Type      string `json:"type"`
	Timestamp string `json:"timestamp"`
	Message   struct {
		Content json.RawMessage `json:"content"`
	} `json:"message"`
}

type claudeBlock struct {
	Type  string          `json:"type"`
	Text  string          `json:"text"`
	Name  string          `json:"name"`
	Input json.RawMessage `json:"input"`
}

// ParseEntry classifies a Claude transcript line. Assistant entries are
// activity (tool use first, then text); user entries with string content are
// real user input. Turn completion is signalled by Claude's Stop hook rather
// than the transcript, so no entry maps to turn_complete here.
func (*claudeBackend) ParseEntry(line []byte) (model.Entry, bool) {
	var e claudeEntry
	if err := json.Unmarshal(line, &e); err != nil {
		return model.Entry{}, false
	}
	ts, err := transcript.ParseTimestamp(e.Timestamp)
	if err != nil {
		return model.Entry{}, false
	}

	switch e.Type {
	case "assistant":
		msg := describeClaudeContent(e.Message.Content)
		if msg == "" {
			return model.Entry{}, false
		}
		return model.Entry{Timestamp: ts, Kind: model.EntryActivity, Message: msg}, true
	case "user":
		// Real user messages carry string content; tool_result arrays are
		// machinery, not input.
		var text string
		if err := json.Unmarshal(e.Message.Content, &text); err != nil {
			return model.Entry{}, false
		}
		return model.Entry{Timestamp: ts, Kind: model.EntryUserInput}, true
	default:
		return model.Entry{}, false
	}
}

func describeClaudeContent(content json.RawMessage) string {
	var blocks []claudeBlock
	if err := json.Unmarshal(content, &blocks); err != nil {
		return ""
	}
	for _, b := range blocks {
		if b.Type == "tool_use" {
			return describeClaudeToolUse(b)
		}
	}
	for _, b := range blocks {
		if b.Type == "text" {
			if line := firstLine(b.Text, 60); line != "" {
				return line
			}
		}
	}
	return ""
}

func describeClaudeToolUse(b claudeBlock) string {
	var input map[string]any
	_ = json.Unmarshal(b.Input, &input)
	str := func(key string) string {
		s, _ := input[key].(string)
		return s
	}

	switch b.Name {
	case "Read":
		return "Reading " + shortFilename(str("file_path"))
	case "Edit", "Write":
		return "Editing " + shortFilename(str("file_path"))
	case "Bash":
		cmd := strings.TrimSpace(str("command"))
		if cmd == "" {
			return "Running command"
		}
		fields := strings.Fields(cmd)
		return "Running " + fields[0]
	case "Grep", "Glob":
		if p := str("pattern"); p != "" {
			return "Searching for " + truncate(p, 30)
		}
		return "Searching"
	case "Task":
		if d := str("description"); d != "" {
			return "Task: " + truncate(d, 40)
		}
		return "Running task"
	case "WebFetch":
		return "Fetching web content"
	case "WebSearch":
		if q := str("query"); q != "" {
			return "Searching: " + truncate(q, 30)
		}
		return "Web search"
	default:
		return "Using " + b.Name
	}
}

func shortFilename(path string) string {
	if path == "" {
		return "file"
	}
	base := filepath.Base(path)
	if base == "." || base == "/" {
		return path
	}
	return base
}

func firstLine(text string, limit int) string {
	text = strings.TrimSpace(text)
	if text == "" {
		return ""
	}
	line := text
	if i := strings.IndexByte(line, '\n'); i >= 0 {
		line = line[:i]
	}
	return truncate(line, limit)
}

func truncate(s string, limit int) string {
	if len(s) <= limit {
		return s
	}
	return s[:limit] + "..."
}
