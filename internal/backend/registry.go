// Package backend holds the per-agent-tool adapters: the only place
// tool-specific transcript knowledge is permitted. The watcher engine is
// generic over the Backend contract and selects an adapter once per channel
// by prefix.
package backend

import (
	"errors"
	"fmt"
	"sort"
	"strings"
	"sync"

	"github.com/petergaultney/lemonaid/internal/model"
	"github.com/petergaultney/lemonaid/internal/transcript"
)

// ErrNoTranscript means the session's transcript resource cannot be located
// from the available metadata. The channel is skipped for the tick.
var ErrNoTranscript = errors.New("no transcript resource")

// Session is the addressing a backend needs to locate a transcript,
// extracted from a notification's channel and metadata.
type Session struct {
	Channel   string
	SessionID string
	Cwd       string
	TTY       string
	Host      string // non-empty for remote sessions
	Path      string // explicit transcript path, when the hook recorded one
}

// SessionFromNotification pulls backend addressing out of a stored
// notification.
func SessionFromNotification(n model.Notification) Session {
	return Session{
		Channel:   n.Channel,
		SessionID: n.Metadata[model.MetaSessionID],
		Cwd:       n.Metadata[model.MetaCwd],
		TTY:       n.Metadata[model.MetaTTY],
		Host:      n.Metadata[model.MetaHost],
		Path:      n.Metadata[model.MetaPath],
	}
}

// Backend is the adapter contract each supported agent tool implements.
type Backend interface {
	// Prefix is the channel prefix ("claude" in "claude:abc1"), stable.
	Prefix() string
	// ProcessName is what the liveness checker looks for on the session TTY.
	ProcessName() string
	// Resolve locates the session's transcript source.
	Resolve(sess Session) (transcript.Source, error)
	// ParseEntry normalizes and classifies one raw transcript line.
	// Returning false skips the line.
	ParseEntry(line []byte) (model.Entry, bool)
}

type Registry struct {
	mu       sync.RWMutex
	byPrefix map[string]Backend
}

func NewRegistry(backends ...Backend) *Registry {
	r := &Registry{byPrefix: map[string]Backend{}}
	for _, b := range backends {
		_ = r.Register(b)
	}
	return r
}

func DefaultRegistry() *Registry {
	return NewRegistry(
		NewClaudeBackend(),
		NewCodexBackend(),
		NewOpenClawBackend(),
	)
}

func (r *Registry) Register(b Backend) error {
	if b == nil {
		return fmt.Errorf("backend is nil")
	}
	prefix := normalizePrefix(b.Prefix())
	if prefix == "" {
		return fmt.Errorf("backend prefix is required")
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, exists := r.byPrefix[prefix]; exists {
		return fmt.Errorf("backend already registered for prefix=%s", prefix)
	}
	r.byPrefix[prefix] = b
	return nil
}

// Resolve returns the backend registered for a prefix.
func (r *Registry) Resolve(prefix string) (Backend, bool) {
	if r == nil {
		return nil, false
	}
	normalized := normalizePrefix(prefix)
	if normalized == "" {
		return nil, false
	}
	r.mu.RLock()
	defer r.mu.RUnlock()
	b, ok := r.byPrefix[normalized]
	return b, ok
}

// ResolveChannel selects the backend for a "<prefix>:<session>" channel.
func (r *Registry) ResolveChannel(channel string) (Backend, bool) {
	return r.Resolve(model.ChannelBackend(channel))
}

// Prefixes lists registered prefixes in stable order.
func (r *Registry) Prefixes() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]string, 0, len(r.byPrefix))
	for p := range r.byPrefix {
		out = append(out, p)
	}
	sort.Strings(out)
	return out
}

func normalizePrefix(prefix string) string {
	return strings.ToLower(strings.TrimSpace(prefix))
}
