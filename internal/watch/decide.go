package watch

import (
	"time"

	"github.com/petergaultney/lemonaid/internal/model"
)

// Op is the store mutation a tick decided on.
type Op int

const (
	// OpNone: nothing to do (no entry, stale entry, or state already agrees).
	OpNone Op = iota
	// OpRestore: an out-of-band writer changed the stored message while the
	// transcript stayed put; write the cached message back. Status untouched.
	OpRestore
	// OpActivity: new transcript activity; update the message only.
	OpActivity
	// OpTurnComplete: agent finished its turn; update message and flip to
	// unread (created_at resets).
	OpTurnComplete
	// OpUserInput: the user typed; mark read.
	OpUserInput
)

// Stored is the store-side state a decision needs: the current message and
// since when the current status has held.
type Stored struct {
	Message   string
	CreatedAt time.Time
}

// Decision is the pure outcome of one reconciliation step for one channel.
type Decision struct {
	Op      Op
	Message string
	// NextCache is the cache entry to record; applied only when
	// UpdateCache is true. Stale entries never touch the cache.
	NextCache   CacheEntry
	UpdateCache bool
}

// Decide reconciles one fetched transcript entry against the activity cache
// and the stored notification. It is the whole anti-flip-flop /
// anti-regression core, and deliberately free of I/O.
//
// Ordering authority is the transcript's own entry timestamp, never
// wall-clock arrival: a late-arriving older entry is discarded, a re-read of
// the same entry can only restore (not re-classify), and classification runs
// only for strictly newer entries.
func Decide(entry model.Entry, cache CacheEntry, cached bool, stored Stored) Decision {
	if cached {
		if entry.Timestamp.Before(cache.LastSeen) {
			// Out-of-order delivery (e.g. a slow remote poll); a faster path
			// already advanced this channel.
			return Decision{Op: OpNone}
		}
		if entry.Timestamp.Equal(cache.LastSeen) {
			// No new transcript activity. The transcript is ground truth: if
			// the stored message drifted from what we derived last time, a
			// lower-fidelity writer overwrote it, so put it back.
			if stored.Message != cache.LastMessage && cache.LastMessage != "" {
				return Decision{Op: OpRestore, Message: cache.LastMessage}
			}
			return Decision{Op: OpNone}
		}
	}

	next := CacheEntry{LastSeen: entry.Timestamp, LastMessage: entry.Message}

	switch entry.Kind {
	case model.EntryActivity:
		return Decision{Op: OpActivity, Message: entry.Message, NextCache: next, UpdateCache: true}
	case model.EntryTurnComplete:
		if !entry.Timestamp.After(stored.CreatedAt) {
			// The signal predates the current status period; acting on it
			// would undo a newer transition. Keep the message fresh though.
			return Decision{Op: OpActivity, Message: entry.Message, NextCache: next, UpdateCache: true}
		}
		return Decision{Op: OpTurnComplete, Message: entry.Message, NextCache: next, UpdateCache: true}
	case model.EntryUserInput:
		// User input carries no derived message; keep the previous one so a
		// later restore still has ground truth to restore to.
		next.LastMessage = cache.LastMessage
		if !entry.Timestamp.After(stored.CreatedAt) {
			return Decision{Op: OpNone, NextCache: next, UpdateCache: true}
		}
		return Decision{Op: OpUserInput, NextCache: next, UpdateCache: true}
	default:
		return Decision{Op: OpNone}
	}
}
