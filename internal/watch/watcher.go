// Package watch runs the reconciliation engine: a periodic poller that pulls
// each tracked channel's transcript tail through its backend adapter,
// consults the activity cache, and applies the resulting decision to the
// notification store. Hooks and the CLI write to the store concurrently; the
// engine's staleness checks keep those out-of-band writes from regressing
// transcript-derived truth.
package watch

import (
	"context"
	"errors"
	"log/slog"
	"path/filepath"
	"time"

	"github.com/fsnotify/fsnotify"

	"github.com/petergaultney/lemonaid/internal/backend"
	"github.com/petergaultney/lemonaid/internal/db"
	"github.com/petergaultney/lemonaid/internal/liveness"
	"github.com/petergaultney/lemonaid/internal/model"
	"github.com/petergaultney/lemonaid/internal/transcript"
)

// Store is the slice of the notification store the engine mutates. All
// writes go through these operations so the store's invariants (sticky
// name, terminal archived) hold no matter who calls.
type Store interface {
	ListActive(ctx context.Context, filter model.ListFilter) (model.Listing, error)
	Upsert(ctx context.Context, channel, message string, metadata map[string]string, switchSource string) (model.Notification, error)
	UpdateMessage(ctx context.Context, channel, message string) (bool, error)
	MarkRead(ctx context.Context, channel string) (bool, error)
	MarkUnread(ctx context.Context, channel string) (bool, error)
	Archive(ctx context.Context, channel string) (bool, error)
}

var _ Store = (*db.Store)(nil)

type Config struct {
	PollInterval     time.Duration
	LivenessInterval time.Duration
	FetchTimeout     time.Duration
	TailBytes        int64
}

func DefaultEngineConfig() Config {
	return Config{
		PollInterval:     500 * time.Millisecond,
		LivenessInterval: 10 * time.Second,
		FetchTimeout:     5 * time.Second,
		TailBytes:        transcript.DefaultTailBytes,
	}
}

type Engine struct {
	store    Store
	registry *backend.Registry
	checker  *liveness.Checker
	cache    *ActivityCache
	cfg      Config
	log      *slog.Logger

	nudge   chan struct{}
	watcher *fsnotify.Watcher
	watched map[string]bool
}

func NewEngine(store Store, registry *backend.Registry, checker *liveness.Checker, cfg Config, log *slog.Logger) *Engine {
	if registry == nil {
		registry = backend.DefaultRegistry()
	}
	if log == nil {
		log = slog.Default()
	}
	if cfg.PollInterval <= 0 {
		cfg.PollInterval = DefaultEngineConfig().PollInterval
	}
	if cfg.LivenessInterval <= 0 {
		cfg.LivenessInterval = DefaultEngineConfig().LivenessInterval
	}
	if cfg.FetchTimeout <= 0 {
		cfg.FetchTimeout = DefaultEngineConfig().FetchTimeout
	}
	if cfg.TailBytes <= 0 {
		cfg.TailBytes = transcript.DefaultTailBytes
	}
	return &Engine{
		store:    store,
		registry: registry,
		checker:  checker,
		cache:    NewActivityCache(),
		cfg:      cfg,
		log:      log,
		nudge:    make(chan struct{}, 1),
		watched:  map[string]bool{},
	}
}

// Cache exposes the engine's activity cache to tests.
func (e *Engine) Cache() *ActivityCache { return e.cache }

// Run polls until the context is cancelled. Transcript directories are also
// watched with fsnotify so local sessions reconcile sooner than the poll
// interval; the nudge only wakes the loop early, correctness stays with the
// tick's own staleness checks.
func (e *Engine) Run(ctx context.Context) error {
	if w, err := fsnotify.NewWatcher(); err == nil {
		e.watcher = w
		defer w.Close() //nolint:errcheck
		go e.forwardNudges(ctx)
	} else {
		e.log.Warn("fsnotify unavailable, plain polling", "error", err)
	}

	ticker := time.NewTicker(e.cfg.PollInterval)
	defer ticker.Stop()
	livenessTicker := time.NewTicker(e.cfg.LivenessInterval)
	defer livenessTicker.Stop()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
			e.Tick(ctx, time.Now())
		case <-e.nudge:
			e.Tick(ctx, time.Now())
		case <-livenessTicker.C:
			e.LivenessTick(ctx)
		}
	}
}

func (e *Engine) forwardNudges(ctx context.Context) {
	// Coalesce bursts of file events into one early tick.
	const debounce = 100 * time.Millisecond
	var timer *time.Timer
	for {
		select {
		case <-ctx.Done():
			return
		case ev, ok := <-e.watcher.Events:
			if !ok {
				return
			}
			if ev.Op&(fsnotify.Write|fsnotify.Create) == 0 {
				continue
			}
			if timer == nil {
				timer = time.AfterFunc(debounce, func() {
					select {
					case e.nudge <- struct{}{}:
					default:
					}
				})
			} else {
				timer.Reset(debounce)
			}
		case err, ok := <-e.watcher.Errors:
			if !ok {
				return
			}
			e.log.Debug("fsnotify error", "error", err)
		}
	}
}

// Tick reconciles every tracked channel once. Per-channel failures are
// logged and skipped; nothing here is fatal to the engine.
func (e *Engine) Tick(ctx context.Context, now time.Time) {
	listing, err := e.store.ListActive(ctx, model.ListFilter{})
	if err != nil {
		e.log.Error("list active notifications", "error", err)
		return
	}
	active := append(listing.Switchable, listing.NonSwitchable...)
	for _, n := range active {
		if ctx.Err() != nil {
			return
		}
		e.reconcileChannel(ctx, n)
	}
}

func (e *Engine) reconcileChannel(ctx context.Context, n model.Notification) {
	b, ok := e.registry.ResolveChannel(n.Channel)
	if !ok {
		return
	}
	sess := backend.SessionFromNotification(n)
	src, err := b.Resolve(sess)
	if err != nil {
		if !errors.Is(err, backend.ErrNoTranscript) {
			e.log.Debug("resolve transcript", "channel", n.Channel, "error", err)
		}
		return
	}
	e.watchDir(src)

	// Each fetch is an independently cancellable unit of work: one stuck
	// remote host must not stall the other channels.
	fetchCtx, cancel := context.WithTimeout(ctx, e.cfg.FetchTimeout)
	tail, err := src.FetchTail(fetchCtx, e.cfg.TailBytes)
	cancel()
	if err != nil {
		// An abandoned fetch must not advance the cache.
		e.log.Debug("fetch tail", "channel", n.Channel, "ref", src.Ref(), "error", err)
		return
	}

	entry, ok := transcript.LatestEntry(tail, b.ParseEntry)
	if !ok {
		return
	}

	cacheEntry, cached := e.cache.Get(n.Channel)
	d := Decide(entry, cacheEntry, cached, Stored{Message: n.Message, CreatedAt: n.CreatedAt})
	if err := e.apply(ctx, n.Channel, d); err != nil {
		e.log.Error("apply decision", "channel", n.Channel, "error", err)
		return
	}
	if d.UpdateCache {
		e.cache.Put(n.Channel, d.NextCache)
	}
}

func (e *Engine) apply(ctx context.Context, channel string, d Decision) error {
	switch d.Op {
	case OpNone:
		return nil
	case OpRestore:
		_, err := e.store.UpdateMessage(ctx, channel, d.Message)
		if err == nil {
			e.log.Info("restored message", "channel", channel, "message", d.Message)
		}
		return err
	case OpActivity:
		_, err := e.store.Upsert(ctx, channel, d.Message, nil, "")
		return err
	case OpTurnComplete:
		if _, err := e.store.Upsert(ctx, channel, d.Message, nil, ""); err != nil {
			return err
		}
		_, err := e.store.MarkUnread(ctx, channel)
		if err == nil {
			e.log.Info("marked unread", "channel", channel)
		}
		return err
	case OpUserInput:
		_, err := e.store.MarkRead(ctx, channel)
		if err == nil {
			e.log.Info("marked read", "channel", channel)
		}
		return err
	default:
		return nil
	}
}

// LivenessTick archives channels whose backing pane or process is gone.
func (e *Engine) LivenessTick(ctx context.Context) {
	if e.checker == nil {
		return
	}
	listing, err := e.store.ListActive(ctx, model.ListFilter{})
	if err != nil {
		e.log.Error("list active for liveness", "error", err)
		return
	}
	active := append(listing.Switchable, listing.NonSwitchable...)
	stale := e.checker.Sweep(ctx, active, func(channel string) string {
		if b, ok := e.registry.ResolveChannel(channel); ok {
			return b.ProcessName()
		}
		return model.ChannelBackend(channel)
	})
	for _, channel := range stale {
		if _, err := e.store.Archive(ctx, channel); err != nil {
			e.log.Error("archive stale channel", "channel", channel, "error", err)
			continue
		}
		e.cache.Forget(channel)
		e.log.Info("archived", "channel", channel)
	}
}

func (e *Engine) watchDir(src transcript.Source) {
	local, ok := src.(transcript.LocalFile)
	if !ok || e.watcher == nil {
		return
	}
	dir := filepath.Dir(local.Path)
	if e.watched[dir] {
		return
	}
	if err := e.watcher.Add(dir); err != nil {
		e.log.Debug("watch transcript dir", "dir", dir, "error", err)
		return
	}
	e.watched[dir] = true
}
