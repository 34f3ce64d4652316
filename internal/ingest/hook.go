// Package ingest turns agent hook payloads into notification store writes.
// Agents invoke `lemonaid notify` from their lifecycle hooks with a JSON
// payload on stdin; ingestion is the push half of tracking, the watcher
// engine is the pull half that keeps the row honest afterwards.
package ingest

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"strings"

	"github.com/petergaultney/lemonaid/internal/model"
	"github.com/petergaultney/lemonaid/internal/security"
	"github.com/petergaultney/lemonaid/internal/term"
)

// Hook event names as the agents emit them.
const (
	EventStop         = "Stop"
	EventNotification = "Notification"
	EventPromptSubmit = "UserPromptSubmit"
	EventSessionEnd   = "SessionEnd"
)

// Payload is the hook body read from stdin. Unknown fields are ignored so
// agent-side schema additions do not break ingestion.
type Payload struct {
	SessionID     string `json:"session_id"`
	HookEventName string `json:"hook_event_name"`
	Cwd           string `json:"cwd"`
	Message       string `json:"message"`
	TranscriptPath string `json:"transcript_path"`
}

func ParsePayload(r io.Reader) (Payload, error) {
	var p Payload
	dec := json.NewDecoder(io.LimitReader(r, 1<<20))
	if err := dec.Decode(&p); err != nil {
		return Payload{}, fmt.Errorf("decode hook payload: %w", err)
	}
	if p.SessionID == "" {
		return Payload{}, fmt.Errorf("hook payload missing session_id")
	}
	return p, nil
}

// Store is the slice of store operations ingestion needs.
type Store interface {
	Upsert(ctx context.Context, channel, message string, metadata map[string]string, switchSource string) (model.Notification, error)
	MarkRead(ctx context.Context, channel string) (bool, error)
	MarkUnread(ctx context.Context, channel string) (bool, error)
	Archive(ctx context.Context, channel string) (bool, error)
}

// Environment captures where the hook fired, detected once per invocation.
type Environment struct {
	SwitchSource string
	TTY          string
	Workspace    string
	PaneID       string
}

// DetectEnvironment inspects the calling process's terminal context.
func DetectEnvironment(ctx context.Context, getenv term.Env, runner term.Runner) Environment {
	source := term.DetectSwitchSource(getenv)
	env := Environment{
		SwitchSource: source,
		TTY:          term.DetectTTY(ctx, runner),
	}
	if source != "" {
		if loc, err := term.CurrentLocation(ctx, source, runner); err == nil {
			env.Workspace = loc.Workspace
			if env.Workspace == "" {
				env.Workspace = loc.Session
			}
			env.PaneID = loc.PaneID
		}
	}
	return env
}

// Ingest applies one hook event. Stop means the agent finished a turn and
// wants attention; Notification refreshes the message without changing
// status; UserPromptSubmit means the user is engaged; SessionEnd retires the
// channel.
func Ingest(ctx context.Context, store Store, backendName string, p Payload, env Environment) (string, error) {
	if backendName == "" {
		backendName = "claude"
	}
	channel := model.ChannelFor(backendName, p.SessionID)

	switch p.HookEventName {
	case EventPromptSubmit:
		if _, err := store.MarkRead(ctx, channel); err != nil {
			return channel, err
		}
		return channel, nil
	case EventSessionEnd:
		if _, err := store.Archive(ctx, channel); err != nil {
			return channel, err
		}
		return channel, nil
	case EventStop, EventNotification, "":
		// fall through to upsert
	default:
		return channel, fmt.Errorf("unknown hook event %q", p.HookEventName)
	}

	message := security.RedactMessage(strings.TrimSpace(p.Message))
	if message == "" {
		message = defaultMessage(p.HookEventName)
	}
	metadata := buildMetadata(p, env)
	if _, err := store.Upsert(ctx, channel, message, metadata, env.SwitchSource); err != nil {
		return channel, err
	}
	if p.HookEventName == EventStop {
		if _, err := store.MarkUnread(ctx, channel); err != nil {
			return channel, err
		}
	}
	return channel, nil
}

func defaultMessage(event string) string {
	if event == EventStop {
		return "Waiting for input"
	}
	return "Needs attention"
}

func buildMetadata(p Payload, env Environment) map[string]string {
	md := map[string]string{
		model.MetaSessionID: p.SessionID,
	}
	if p.Cwd != "" {
		md[model.MetaCwd] = p.Cwd
		if name := term.NameFromCwd(p.Cwd); name != "" {
			md[model.MetaAutoName] = name
		}
	}
	if p.TranscriptPath != "" {
		md[model.MetaPath] = p.TranscriptPath
	}
	if env.TTY != "" {
		md[model.MetaTTY] = env.TTY
	}
	if env.PaneID != "" {
		md[model.MetaPaneID] = env.PaneID
	}
	if env.Workspace != "" {
		md[model.MetaWorkspace] = env.Workspace
	}
	return md
}
