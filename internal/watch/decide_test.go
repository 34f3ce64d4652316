package watch

import (
	"testing"
	"time"

	"github.com/petergaultney/lemonaid/internal/model"
)

var base = time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)

func TestDecideFirstObservationClassifies(t *testing.T) {
	entry := model.Entry{Timestamp: base, Kind: model.EntryActivity, Message: "Editing main.go"}
	d := Decide(entry, CacheEntry{}, false, Stored{Message: "old", CreatedAt: base.Add(-time.Hour)})
	if d.Op != OpActivity {
		t.Fatalf("expected OpActivity, got %v", d.Op)
	}
	if !d.UpdateCache || !d.NextCache.LastSeen.Equal(base) || d.NextCache.LastMessage != "Editing main.go" {
		t.Fatalf("cache not advanced: %+v", d.NextCache)
	}
}

func TestDecideOlderEntryDiscarded(t *testing.T) {
	cache := CacheEntry{LastSeen: base, LastMessage: "current"}
	entry := model.Entry{Timestamp: base.Add(-time.Second), Kind: model.EntryTurnComplete, Message: "stale"}
	d := Decide(entry, cache, true, Stored{Message: "current", CreatedAt: base.Add(-time.Hour)})
	if d.Op != OpNone {
		t.Fatalf("stale entry must be discarded, got %v", d.Op)
	}
	if d.UpdateCache {
		t.Fatalf("stale entry must not touch the cache")
	}
}

func TestDecideSameTimestampNoReclassification(t *testing.T) {
	cache := CacheEntry{LastSeen: base, LastMessage: "Waiting for input"}
	entry := model.Entry{Timestamp: base, Kind: model.EntryTurnComplete, Message: "Waiting for input"}
	d := Decide(entry, cache, true, Stored{Message: "Waiting for input", CreatedAt: base.Add(-time.Minute)})
	if d.Op != OpNone {
		t.Fatalf("unchanged transcript must be a no-op, got %v", d.Op)
	}
}

func TestDecideRestoresDriftedMessage(t *testing.T) {
	cache := CacheEntry{LastSeen: base, LastMessage: "Waiting for input"}
	entry := model.Entry{Timestamp: base, Kind: model.EntryTurnComplete, Message: "Waiting for input"}
	d := Decide(entry, cache, true, Stored{Message: "clobbered by hook", CreatedAt: base.Add(-time.Minute)})
	if d.Op != OpRestore {
		t.Fatalf("expected OpRestore, got %v", d.Op)
	}
	if d.Message != "Waiting for input" {
		t.Fatalf("restore must use the cached message, got %q", d.Message)
	}
	if d.UpdateCache {
		t.Fatalf("restore must not advance the cache")
	}
}

func TestDecideRestoreNeedsCachedMessage(t *testing.T) {
	cache := CacheEntry{LastSeen: base, LastMessage: ""}
	entry := model.Entry{Timestamp: base, Kind: model.EntryActivity, Message: ""}
	d := Decide(entry, cache, true, Stored{Message: "anything", CreatedAt: base.Add(-time.Minute)})
	if d.Op != OpNone {
		t.Fatalf("empty cached message must not restore, got %v", d.Op)
	}
}

func TestDecideTurnCompleteAfterStatusPeriod(t *testing.T) {
	cache := CacheEntry{LastSeen: base, LastMessage: "Running tests"}
	entry := model.Entry{Timestamp: base.Add(time.Second), Kind: model.EntryTurnComplete, Message: "Waiting for input"}
	d := Decide(entry, cache, true, Stored{Message: "Running tests", CreatedAt: base.Add(-time.Minute)})
	if d.Op != OpTurnComplete {
		t.Fatalf("expected OpTurnComplete, got %v", d.Op)
	}
}

func TestDecideTurnCompleteBeforeStatusPeriodDowngrades(t *testing.T) {
	// Status period started after the completion signal; re-notifying would
	// flip-flop a notification the user already dismissed and re-engaged.
	cache := CacheEntry{LastSeen: base, LastMessage: "old"}
	entry := model.Entry{Timestamp: base.Add(time.Second), Kind: model.EntryTurnComplete, Message: "Waiting for input"}
	d := Decide(entry, cache, true, Stored{Message: "old", CreatedAt: base.Add(time.Minute)})
	if d.Op != OpActivity {
		t.Fatalf("expected downgrade to OpActivity, got %v", d.Op)
	}
	if d.Message != "Waiting for input" {
		t.Fatalf("message refresh lost: %q", d.Message)
	}
}

func TestDecideUserInputMarksRead(t *testing.T) {
	cache := CacheEntry{LastSeen: base, LastMessage: "Waiting for input"}
	entry := model.Entry{Timestamp: base.Add(2 * time.Second), Kind: model.EntryUserInput}
	d := Decide(entry, cache, true, Stored{Message: "Waiting for input", CreatedAt: base})
	if d.Op != OpUserInput {
		t.Fatalf("expected OpUserInput, got %v", d.Op)
	}
	if !d.UpdateCache || d.NextCache.LastMessage != "Waiting for input" {
		t.Fatalf("user input must keep the prior derived message, got %+v", d.NextCache)
	}
}

func TestDecideUserInputBeforeStatusPeriodIgnored(t *testing.T) {
	cache := CacheEntry{LastSeen: base, LastMessage: "m"}
	entry := model.Entry{Timestamp: base.Add(time.Second), Kind: model.EntryUserInput}
	d := Decide(entry, cache, true, Stored{Message: "m", CreatedAt: base.Add(time.Minute)})
	if d.Op != OpNone {
		t.Fatalf("old user input must not dismiss a newer notification, got %v", d.Op)
	}
	if !d.UpdateCache {
		t.Fatalf("cache should still advance past the entry")
	}
}
