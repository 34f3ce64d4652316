package backend

import (
	"encoding/json"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"github.com/petergaultney/lemonaid/internal/model"
	"github.com/petergaultney/lemonaid/internal/transcript"
)

// openclawBackend watches OpenClaw sessions. Unlike Claude and Codex, which
// signal attention through hooks, OpenClaw's transcript itself carries the
// turn-complete marker (assistant message with stopReason "stop"), and its
// sessions may live on a remote host reached over ssh.
type openclawBackend struct {
	agentsDir string
	runner    transcript.CommandRunner
}

func NewOpenClawBackend() Backend {
	return &openclawBackend{}
}

func (*openclawBackend) Prefix() string      { return "openclaw" }
func (*openclawBackend) ProcessName() string { return "openclaw" }

func (b *openclawBackend) Resolve(sess Session) (transcript.Source, error) {
	if sess.Host != "" {
		if sess.Path == "" {
			return nil, fmt.Errorf("%w: remote openclaw session needs session_path", ErrNoTranscript)
		}
		return transcript.SSHFile{Host: sess.Host, Path: sess.Path, Runner: b.runner}, nil
	}
	if sess.Path != "" {
		return transcript.LocalFile{Path: sess.Path}, nil
	}
	if sess.SessionID == "" {
		return nil, fmt.Errorf("%w: openclaw session needs session_id", ErrNoTranscript)
	}
	// OpenClaw organizes sessions by agent, not cwd; search every agent.
	root := b.agents()
	var found string
	err := filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
		if err != nil || d.IsDir() {
			return nil //nolint:nilerr
		}
		if strings.HasSuffix(d.Name(), sess.SessionID+".jsonl") {
			found = path
			return fs.SkipAll
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("%w: walk %s: %v", ErrNoTranscript, root, err)
	}
	if found == "" {
		return nil, fmt.Errorf("%w: no openclaw session for %s", ErrNoTranscript, sess.SessionID)
	}
	return transcript.LocalFile{Path: found}, nil
}

func (b *openclawBackend) agents() string {
	if b.agentsDir != "" {
		return b.agentsDir
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return ".openclaw/agents"
	}
	return filepath.Join(home, ".openclaw", "agents")
}

type openclawEntry struct {
	Type       string          `json:"type"`
	Timestamp  string          `json:"timestamp"`
	Role       string          `json:"role"`
	StopReason string          `json:"stopReason"`
	Content    json.RawMessage `json:"content"`
	Message    struct {
		Role       string          `json:"role"`
		StopReason string          `json:"stopReason"`
		Content    json.RawMessage `json:"content"`
	} `json:"message"`
}

// ParseEntry classifies an OpenClaw session line. An assistant message with
// stopReason "stop" is turn completion; a user message is user input; other
// assistant output and compaction markers are activity.
func (*openclawBackend) ParseEntry(line []byte) (model.Entry, bool) {
	var e openclawEntry
	if err := json.Unmarshal(line, &e); err != nil {
		return model.Entry{}, false
	}
	ts, err := transcript.ParseTimestamp(e.Timestamp)
	if err != nil {
		return model.Entry{}, false
	}

	switch e.Type {
	case "message":
		role := e.Role
		if role == "" {
			role = e.Message.Role
		}
		switch role {
		case "user":
			return model.Entry{Timestamp: ts, Kind: model.EntryUserInput}, true
		case "assistant":
			content := e.Content
			if content == nil {
				content = e.Message.Content
			}
			msg := describeOpenClawContent(content)
			stopReason := e.StopReason
			if stopReason == "" {
				stopReason = e.Message.StopReason
			}
			if stopReason == "stop" {
				if msg == "" {
					msg = "Waiting for input"
				}
				return model.Entry{Timestamp: ts, Kind: model.EntryTurnComplete, Message: msg}, true
			}
			if msg == "" {
				return model.Entry{}, false
			}
			return model.Entry{Timestamp: ts, Kind: model.EntryActivity, Message: msg}, true
		default:
			return model.Entry{}, false
		}
	case "compaction":
		return model.Entry{Timestamp: ts, Kind: model.EntryActivity, Message: "Compacting context..."}, true
	case "custom_message":
		if msg := describeOpenClawContent(e.Content); msg != "" {
			return model.Entry{Timestamp: ts, Kind: model.EntryActivity, Message: msg}, true
		}
		return model.Entry{}, false
	default:
		return model.Entry{}, false
	}
}

type openclawBlock struct {
	Type      string          `json:"type"`
	Text      string          `json:"text"`
	Name      string          `json:"name"`
	ToolName  string          `json:"toolName"`
	Input     json.RawMessage `json:"input"`
	Arguments json.RawMessage `json:"arguments"`
}

func describeOpenClawContent(content json.RawMessage) string {
	if len(content) == 0 {
		return ""
	}
	var text string
	if err := json.Unmarshal(content, &text); err == nil {
		return firstLine(text, 200)
	}
	var blocks []openclawBlock
	if err := json.Unmarshal(content, &blocks); err != nil {
		return ""
	}
	for _, b := range blocks {
		switch b.Type {
		case "tool_use", "toolCall":
			return describeOpenClawTool(b)
		case "text", "output_text":
			if line := firstLine(b.Text, 200); line != "" {
				return line
			}
		}
	}
	return ""
}

func describeOpenClawTool(b openclawBlock) string {
	name := b.Name
	if name == "" {
		name = b.ToolName
	}
	raw := b.Input
	if raw == nil {
		raw = b.Arguments
	}
	var input map[string]any
	_ = json.Unmarshal(raw, &input)
	str := func(keys ...string) string {
		for _, k := range keys {
			if s, ok := input[k].(string); ok && s != "" {
				return s
			}
		}
		return ""
	}

	switch name {
	case "Read", "read_file":
		if p := str("file_path", "path"); p != "" {
			return "Reading " + shortFilename(p)
		}
		return "Reading file"
	case "Edit", "edit_file":
		if p := str("file_path", "path"); p != "" {
			return "Editing " + shortFilename(p)
		}
		return "Editing file"
	case "Write", "write_file":
		if p := str("file_path", "path"); p != "" {
			return "Writing " + shortFilename(p)
		}
		return "Writing file"
	case "Bash", "shell", "shell_command":
		if cmd := str("command"); cmd != "" {
			return "Running: " + truncate(cmd, 117)
		}
		return "Running command"
	case "Grep", "search", "grep":
		if p := str("pattern", "query"); p != "" {
			return "Searching: " + truncate(p, 80)
		}
		return "Searching"
	case "Glob", "find_files":
		if p := str("pattern"); p != "" {
			return "Finding: " + truncate(p, 80)
		}
		return "Finding files"
	case "WebFetch", "web_fetch", "fetch":
		if u := str("url"); u != "" {
			return "Fetching: " + truncate(u, 80)
		}
		return "Fetching URL"
	case "WebSearch", "web_search":
		if q := str("query"); q != "" {
			return "Searching: " + truncate(q, 80)
		}
		return "Web search"
	case "":
		return "Using tool"
	default:
		return "Using " + name
	}
}
