package watch

import (
	"context"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/petergaultney/lemonaid/internal/backend"
	"github.com/petergaultney/lemonaid/internal/liveness"
	"github.com/petergaultney/lemonaid/internal/model"
	"github.com/petergaultney/lemonaid/internal/transcript"
)

// fakeStore is an in-memory watch.Store tracking one notification per
// channel.
type fakeStore struct {
	mu    sync.Mutex
	rows  map[string]*model.Notification
	calls []string
	clock time.Time
}

func newFakeStore() *fakeStore {
	return &fakeStore{rows: map[string]*model.Notification{}, clock: time.Now()}
}

func (s *fakeStore) setClock(t time.Time) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.clock = t
}

func (s *fakeStore) seed(channel, message string, status model.Status, createdAt time.Time) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.rows[channel] = &model.Notification{
		Channel:   channel,
		Message:   message,
		Status:    status,
		CreatedAt: createdAt,
		Metadata:  map[string]string{},
	}
}

func (s *fakeStore) get(channel string) model.Notification {
	s.mu.Lock()
	defer s.mu.Unlock()
	return *s.rows[channel]
}

func (s *fakeStore) ListActive(ctx context.Context, filter model.ListFilter) (model.Listing, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var listing model.Listing
	for _, n := range s.rows {
		if n.Status != model.StatusArchived {
			listing.Switchable = append(listing.Switchable, *n)
		}
	}
	return listing, nil
}

func (s *fakeStore) Upsert(ctx context.Context, channel, message string, metadata map[string]string, switchSource string) (model.Notification, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.calls = append(s.calls, "upsert:"+channel)
	n, ok := s.rows[channel]
	if !ok || n.Status == model.StatusArchived {
		n = &model.Notification{Channel: channel, Status: model.StatusUnread, CreatedAt: s.clock, Metadata: map[string]string{}}
		s.rows[channel] = n
	}
	n.Message = message
	return *n, nil
}

func (s *fakeStore) UpdateMessage(ctx context.Context, channel, message string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.calls = append(s.calls, "restore:"+channel)
	n, ok := s.rows[channel]
	if !ok {
		return false, nil
	}
	n.Message = message
	return true, nil
}

func (s *fakeStore) MarkRead(ctx context.Context, channel string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.calls = append(s.calls, "read:"+channel)
	n, ok := s.rows[channel]
	if !ok || n.Status != model.StatusUnread {
		return false, nil
	}
	n.Status = model.StatusRead
	return true, nil
}

func (s *fakeStore) MarkUnread(ctx context.Context, channel string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.calls = append(s.calls, "unread:"+channel)
	n, ok := s.rows[channel]
	if !ok || n.Status == model.StatusArchived {
		return false, nil
	}
	n.Status = model.StatusUnread
	n.CreatedAt = s.clock
	return true, nil
}

func (s *fakeStore) Archive(ctx context.Context, channel string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.calls = append(s.calls, "archive:"+channel)
	n, ok := s.rows[channel]
	if !ok {
		return false, nil
	}
	n.Status = model.StatusArchived
	return true, nil
}

// fakeSource serves a fixed tail.
type fakeSource struct {
	tail []byte
	err  error
}

func (f *fakeSource) FetchTail(ctx context.Context, maxBytes int64) ([]byte, error) {
	return f.tail, f.err
}

func (f *fakeSource) Ref() string { return "fake" }

// fakeBackend serves one source for every session and parses lines of the
// form "<rfc3339>|<kind>|<message>".
type fakeBackend struct {
	source *fakeSource
}

func (b *fakeBackend) Prefix() string      { return "fake" }
func (b *fakeBackend) ProcessName() string { return "fake" }

func (b *fakeBackend) Resolve(sess backend.Session) (transcript.Source, error) {
	return b.source, nil
}

func (b *fakeBackend) ParseEntry(line []byte) (model.Entry, bool) {
	parts := strings.Split(string(line), "|")
	if len(parts) != 3 {
		return model.Entry{}, false
	}
	ts, err := transcript.ParseTimestamp(parts[0])
	if err != nil {
		return model.Entry{}, false
	}
	kind := model.EntryActivity
	switch parts[1] {
	case "turn_complete":
		kind = model.EntryTurnComplete
	case "user_input":
		kind = model.EntryUserInput
	}
	return model.Entry{Timestamp: ts, Kind: kind, Message: parts[2]}, true
}

func newTestEngine(t *testing.T, store *fakeStore, source *fakeSource) *Engine {
	t.Helper()
	registry := backend.NewRegistry()
	if err := registry.Register(&fakeBackend{source: source}); err != nil {
		t.Fatalf("register fake backend: %v", err)
	}
	return NewEngine(store, registry, liveness.NewChecker(nil, 0), DefaultEngineConfig(), nil)
}

func TestTickFullLifecycle(t *testing.T) {
	ctx := context.Background()
	store := newFakeStore()
	source := &fakeSource{}
	engine := newTestEngine(t, store, source)

	channel := "fake:abc1"
	created := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	store.seed(channel, "starting", model.StatusRead, created)
	store.setClock(created.Add(11 * time.Second))

	// Agent works: message refreshes, status untouched.
	source.tail = []byte("2025-06-01T12:00:05Z|activity|Editing store.go\n")
	engine.Tick(ctx, time.Now())
	if n := store.get(channel); n.Message != "Editing store.go" || n.Status != model.StatusRead {
		t.Fatalf("after activity: %+v", n)
	}

	// Agent finishes: unread.
	source.tail = append(source.tail, []byte("2025-06-01T12:00:10Z|turn_complete|Waiting for input\n")...)
	engine.Tick(ctx, time.Now())
	if n := store.get(channel); n.Message != "Waiting for input" || n.Status != model.StatusUnread {
		t.Fatalf("after turn complete: %+v", n)
	}

	// Out-of-band writer clobbers the message; same transcript restores it.
	if _, err := store.UpdateMessage(ctx, channel, "hook overwrote this"); err != nil {
		t.Fatalf("clobber: %v", err)
	}
	engine.Tick(ctx, time.Now())
	if n := store.get(channel); n.Message != "Waiting for input" {
		t.Fatalf("message not restored: %+v", n)
	}
	if n := store.get(channel); n.Status != model.StatusUnread {
		t.Fatalf("restore must not change status: %+v", n)
	}

	// User replies: read.
	source.tail = append(source.tail, []byte("2025-06-01T12:00:20Z|user_input|\n")...)
	engine.Tick(ctx, time.Now())
	if n := store.get(channel); n.Status != model.StatusRead {
		t.Fatalf("after user input: %+v", n)
	}
}

func TestTickIdempotentOnUnchangedTranscript(t *testing.T) {
	ctx := context.Background()
	store := newFakeStore()
	source := &fakeSource{tail: []byte("2025-06-01T12:00:10Z|turn_complete|Waiting for input\n")}
	engine := newTestEngine(t, store, source)

	channel := "fake:abc1"
	store.seed(channel, "starting", model.StatusRead, time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC))

	engine.Tick(ctx, time.Now())
	first := store.get(channel)
	if first.Status != model.StatusUnread {
		t.Fatalf("setup: %+v", first)
	}
	calls := len(store.calls)

	// Re-reading the identical tail must not write anything.
	engine.Tick(ctx, time.Now())
	engine.Tick(ctx, time.Now())
	if len(store.calls) != calls {
		t.Fatalf("unchanged transcript caused writes: %v", store.calls[calls:])
	}
}

func TestTickFailedFetchLeavesCacheAlone(t *testing.T) {
	ctx := context.Background()
	store := newFakeStore()
	source := &fakeSource{tail: []byte("2025-06-01T12:00:05Z|activity|Working\n")}
	engine := newTestEngine(t, store, source)

	channel := "fake:abc1"
	store.seed(channel, "starting", model.StatusRead, time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC))

	engine.Tick(ctx, time.Now())
	entry, ok := engine.Cache().Get(channel)
	if !ok {
		t.Fatalf("cache not primed")
	}

	source.err = transcript.ErrTransport
	engine.Tick(ctx, time.Now())
	after, ok := engine.Cache().Get(channel)
	if !ok || !after.LastSeen.Equal(entry.LastSeen) {
		t.Fatalf("failed fetch moved the cache: %+v vs %+v", after, entry)
	}
}
