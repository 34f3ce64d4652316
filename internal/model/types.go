package model

import (
	"strings"
	"time"
)

// Status is the read/unread/archived lifecycle of a notification.
// Transitions: unread <-> read, either -> archived. Archived is terminal.
type Status string

const (
	StatusUnread   Status = "unread"
	StatusRead     Status = "read"
	StatusArchived Status = "archived"
)

// Notification is one row per (backend, session) channel.
type Notification struct {
	ID           int64
	Channel      string
	Name         string // user override; empty means derive from metadata
	Message      string
	Metadata     map[string]string
	Status       Status
	CreatedAt    time.Time // since when the current status has held; reset on read -> unread
	ReadAt       *time.Time
	SwitchSource string // terminal environment that originated the session, "" if unknown
}

func (n Notification) IsUnread() bool   { return n.Status == StatusUnread }
func (n Notification) IsRead() bool     { return n.Status == StatusRead }
func (n Notification) IsArchived() bool { return n.Status == StatusArchived }

// DisplayName returns the sticky user override if set, otherwise the
// auto-derived name carried in metadata.
func (n Notification) DisplayName() string {
	if n.Name != "" {
		return n.Name
	}
	return n.Metadata[MetaAutoName]
}

// Well-known metadata keys. Metadata is an open map; these are the keys the
// core itself reads or writes.
const (
	MetaSessionID = "session_id"
	MetaCwd       = "cwd"
	MetaTTY       = "tty"
	MetaHost      = "host"          // remote sessions: ssh host
	MetaPath      = "session_path"  // remote sessions: transcript path on host
	MetaAutoName  = "auto_name"     // auto-derived name preserved across rename
	MetaPaneID    = "pane_id"       // wezterm pane id
	MetaWorkspace = "workspace"     // wezterm workspace
)

// Channel formatting: "<backend>:<session-id-prefix>".
const channelSep = ":"

func ChannelFor(backend, sessionID string) string {
	id := sessionID
	if len(id) > 8 {
		id = id[:8]
	}
	return backend + channelSep + id
}

// ChannelBackend returns the backend prefix of a channel, "" if malformed.
func ChannelBackend(channel string) string {
	i := strings.Index(channel, channelSep)
	if i <= 0 {
		return ""
	}
	return channel[:i]
}

// EntryKind classifies a transcript entry.
type EntryKind string

const (
	// EntryActivity: the agent is working; the entry describes an operation
	// in progress.
	EntryActivity EntryKind = "activity"
	// EntryTurnComplete: the agent finished its turn and is waiting on the
	// user.
	EntryTurnComplete EntryKind = "turn_complete"
	// EntryUserInput: the user supplied input.
	EntryUserInput EntryKind = "user_input"
)

// Entry is a normalized transcript entry produced by a backend adapter.
type Entry struct {
	Timestamp time.Time
	Kind      EntryKind
	// Message is the derived human-readable status text. Meaningful for
	// EntryActivity; may be empty for the other kinds.
	Message string
}

// ListFilter selects notifications for list().
type ListFilter struct {
	// SwitchSource, when set, partitions results: channels whose
	// switch_source equals it (or is empty) are switchable in the caller's
	// environment.
	SwitchSource string
	// UnreadOnly restricts to status=unread.
	UnreadOnly bool
}

// Listing is the partitioned result of list().
type Listing struct {
	Switchable    []Notification
	NonSwitchable []Notification
}

// Location is an opaque terminal location for the location ledger. For tmux
// it is session+pane, for wezterm workspace+pane.
type Location struct {
	Workspace string `json:"workspace,omitempty"`
	Session   string `json:"session,omitempty"`
	PaneID    string `json:"pane_id"`
}

// IsZero reports whether no location has been recorded.
func (l Location) IsZero() bool {
	return l.Workspace == "" && l.Session == "" && l.PaneID == ""
}
