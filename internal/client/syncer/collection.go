package syncer

import (
	"context"
	"sync"
	"sync/atomic"
	"time"

	"github.com/dmitrijs2005/gophsync/internal/client/feed"
	"github.com/dmitrijs2005/gophsync/internal/client/models"
	"github.com/dmitrijs2005/gophsync/internal/client/persist"
	"github.com/dmitrijs2005/gophsync/internal/client/remote"
	"github.com/dmitrijs2005/gophsync/internal/client/store"
	"github.com/dmitrijs2005/gophsync/internal/common"
	"github.com/dmitrijs2005/gophsync/internal/logging"
	"github.com/dmitrijs2005/gophsync/internal/shared"
	"golang.org/x/sync/singleflight"
)

// SyncTableSuffix names the table holding cursors and pending ops of a
// collection.
const SyncTableSuffix = "__sync"

type syncTable struct {
	LastSync string      `json:"lastSync,omitempty"`
	Pending  []PendingOp `json:"pending"`
}

// cursor tracks the sweep in progress.
type cursor struct {
	active  bool
	since   time.Time
	started time.Time
	next    string
}

// Collection synchronizes one model.
//
// Lock order: the store lock may be held while taking mu, never the other
// way around. mergeMu serializes remote merges against resets.
type Collection struct {
	e        *Engine
	model    shared.Model
	remote   remote.Remote
	merge    MergeStrategy
	pageSize int
	store    *store.Store
	log      logging.Logger
	feed     *feed.Feed

	mergeMu sync.Mutex

	mu            sync.Mutex
	gen           uint64
	lastSync      time.Time
	cur           cursor
	resetCursor   bool
	q             *queue
	persistLoaded bool
	loaded        bool
	pulling       bool
	lastErr       error
	statusLs      map[int]func(Status)
	nextLs        int

	feedMu   sync.Mutex
	feedStop func()

	flight   singleflight.Group
	again    atomic.Bool
	pullKick chan struct{}
	pushKick chan struct{}
}

func newCollection(e *Engine, cfg CollectionConfig) *Collection {
	c := &Collection{
		e:        e,
		model:    cfg.Model,
		remote:   cfg.Remote,
		merge:    cfg.Merge,
		pageSize: cfg.Model.PageSize,
		log:      e.log.With("model", cfg.Model.Name),
		q:        newQueue(),
		statusLs: map[int]func(Status){},
		pullKick: make(chan struct{}, 1),
		pushKick: make(chan struct{}, 1),
	}
	if cfg.PageSize > 0 {
		c.pageSize = cfg.PageSize
	}
	c.store = store.New(cfg.Model.Name,
		store.WithMirror(c.scheduleData),
		store.WithCommitHook(c.onCommit),
		store.WithClock(e.opts.Clock),
	)
	c.store.OnChange(func([]store.Change) { c.notifyStatus() })

	if !e.opts.DisableFeed {
		c.feed = feed.New(cfg.Model.Name, cfg.Remote, e.log,
			feed.WithBackoff(e.opts.Backoff),
			feed.WithErrorHandler(c.report))
	}
	return c
}

func (c *Collection) Name() string        { return c.model.Name }
func (c *Collection) Model() shared.Model { return c.model }

// Store is the local table of this collection. Application code mutates it
// directly; local changes are delivered to the server automatically.
func (c *Collection) Store() *store.Store { return c.store }

func (c *Collection) dataTable() string { return c.model.Name }
func (c *Collection) syncTable() string { return c.model.Name + SyncTableSuffix }

// load restores the persisted tables.
func (c *Collection) load(ctx context.Context) error {
	a, codec := c.e.opts.Adapter, c.e.opts.Codec

	data, err := persist.LoadTable(ctx, a, codec, c.dataTable(), map[string]models.Entity{}, c.log)
	if err != nil {
		return err
	}
	st, err := persist.LoadTable(ctx, a, codec, c.syncTable(), syncTable{}, c.log)
	if err != nil {
		return err
	}

	for id, rec := range data {
		if rec == nil {
			delete(data, id)
			continue
		}
		rec[common.FieldID] = id
	}
	if err := c.store.Replace(data, store.OriginReset); err != nil {
		return err
	}

	c.mu.Lock()
	c.lastSync = parseTime(st.LastSync)
	c.q = restoreQueue(st.Pending)
	c.persistLoaded = true
	pending := c.q.len()
	c.mu.Unlock()

	c.log.Info(ctx, "persisted state loaded", "records", len(data), "pending", pending, "lastSync", st.LastSync)
	c.notifyStatus()
	return nil
}

// onCommit runs under the store lock for every committed batch.
func (c *Collection) onCommit(changes []store.Change) {
	now := models.FormatTime(c.e.now())
	queued := false

	c.mu.Lock()
	for _, ch := range changes {
		if ch.Origin != store.OriginLocal {
			continue
		}
		c.q.record(ch, now)
		queued = true
	}
	c.mu.Unlock()

	if queued {
		c.scheduleSync()
		c.kickPush()
	}
}

func (c *Collection) scheduleData() {
	c.e.writer.Schedule(c.dataTable(), func() ([]byte, error) {
		return c.e.opts.Codec.Marshal(c.store.Snapshot())
	})
}

func (c *Collection) scheduleSync() {
	c.e.writer.Schedule(c.syncTable(), func() ([]byte, error) {
		c.mu.Lock()
		st := syncTable{Pending: c.q.flatten()}
		if !c.lastSync.IsZero() {
			st.LastSync = models.FormatTime(c.lastSync)
		}
		c.mu.Unlock()
		return c.e.opts.Codec.Marshal(st)
	})
}

// ResetPersistence discards every local record, the cursors, pending ops
// and the persisted tables. Results of requests still in flight are dropped
// and the next pull starts from the beginning.
func (c *Collection) ResetPersistence(ctx context.Context) error {
	c.mergeMu.Lock()
	defer c.mergeMu.Unlock()

	c.mu.Lock()
	c.gen++
	c.lastSync = time.Time{}
	c.cur = cursor{}
	c.resetCursor = false
	c.q = newQueue()
	c.loaded = false
	c.lastErr = nil
	c.mu.Unlock()

	if err := c.store.Replace(map[string]models.Entity{}, store.OriginReset); err != nil {
		return err
	}
	if err := c.e.writer.Drop(ctx, c.dataTable()); err != nil {
		return err
	}
	if err := c.e.writer.Drop(ctx, c.syncTable()); err != nil {
		return err
	}

	c.log.Info(ctx, "collection reset")
	c.notifyStatus()
	return nil
}

// report records a failed attempt.
func (c *Collection) report(err error) {
	if err == nil {
		return
	}
	c.mu.Lock()
	c.lastErr = err
	c.mu.Unlock()

	c.log.Warn(c.e.ctx, "sync error", "error", err)
	c.e.emitError(c.model.Name, err)
	c.notifyStatus()
}

func (c *Collection) kickPull() {
	c.again.Store(true)
	select {
	case c.pullKick <- struct{}{}:
	default:
	}
}

func (c *Collection) kickPush() {
	select {
	case c.pushKick <- struct{}{}:
	default:
	}
}

// onGate reacts to the readiness signal.
func (c *Collection) onGate(open bool) {
	c.feedMu.Lock()
	defer c.feedMu.Unlock()

	if !open {
		if c.feedStop != nil {
			c.feedStop()
			c.feedStop = nil
		}
		c.notifyStatus()
		return
	}

	c.kickPull()
	c.kickPush()
	if c.feed != nil && c.feedStop == nil {
		c.feedStop = c.feed.Subscribe(c.e.ctx, func(feed.Event) { c.kickPull() })
	}
	c.notifyStatus()
}

func (c *Collection) stopFeed() {
	c.feedMu.Lock()
	defer c.feedMu.Unlock()
	if c.feedStop != nil {
		c.feedStop()
		c.feedStop = nil
	}
}

func parseTime(s string) time.Time {
	if s == "" {
		return time.Time{}
	}
	t, err := time.Parse(models.TimeLayout, s)
	if err != nil {
		return time.Time{}
	}
	return t
}
