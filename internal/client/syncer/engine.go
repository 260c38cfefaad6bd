// Package syncer keeps local collections consistent with the backend.
//
// An Engine owns one Collection per model. Each collection loads its
// persisted state on start, pulls pages of records changed since the last
// completed sweep, and pushes local mutations, coalescing edits made while a
// push is in flight. All network work waits for the readiness gate and is
// cancelled when the gate closes. Failures never escape as panics; they are
// retried, reported through OnError and kept in Status.LastError.
package syncer

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"sync"
	"sync/atomic"
	"time"

	"github.com/dmitrijs2005/gophsync/internal/client/gate"
	"github.com/dmitrijs2005/gophsync/internal/client/persist"
	"github.com/dmitrijs2005/gophsync/internal/logging"
	"golang.org/x/sync/errgroup"
)

var (
	ErrNoAdapter         = errors.New("persistence adapter is required")
	ErrUnknownCollection = errors.New("unknown collection")
)

// Engine is built once at start-up and handed to the application layer.
type Engine struct {
	opts   Options
	gate   *gate.Gate
	log    logging.Logger
	writer *persist.Writer

	ctx     context.Context
	cancel  context.CancelFunc
	wg      sync.WaitGroup
	trackMu sync.Mutex
	closing bool

	account atomic.Pointer[string]

	cols []*Collection

	errMu  sync.Mutex
	errLs  map[int]func(model string, err error)
	nextEr int

	unsubGate func()
	closeOnce sync.Once
}

// New loads the persisted state of every collection and starts the
// background loops. Network activity begins once the gate opens.
func New(ctx context.Context, opts Options, cols ...CollectionConfig) (*Engine, error) {
	opts = opts.withDefaults()
	if opts.Adapter == nil {
		return nil, ErrNoAdapter
	}

	e := &Engine{
		opts:   opts,
		gate:   opts.Gate,
		log:    opts.Logger,
		writer: persist.NewWriter(opts.Adapter, opts.Logger),
		errLs:  map[int]func(string, error){},
	}
	e.ctx, e.cancel = context.WithCancel(context.Background())

	for _, cfg := range cols {
		if cfg.Remote == nil {
			e.cancel()
			return nil, fmt.Errorf("collection %s: remote is required", cfg.Model.Name)
		}
		e.cols = append(e.cols, newCollection(e, cfg))
	}

	g, gctx := errgroup.WithContext(ctx)
	for _, c := range e.cols {
		g.Go(func() error { return c.load(gctx) })
	}
	if err := g.Wait(); err != nil {
		e.cancel()
		_ = e.writer.Close(context.Background())
		return nil, err
	}

	for _, c := range e.cols {
		if e.begin() {
			go c.pullLoop()
		}
		if e.begin() {
			go c.pushLoop()
		}
	}

	e.unsubGate = e.gate.OnChange(e.onGate)
	if e.gate.IsOpen() {
		e.onGate(true)
	}
	return e, nil
}

func (e *Engine) onGate(open bool) {
	if open {
		e.log.Info(e.ctx, "ready, starting sync")
	} else {
		e.log.Info(e.ctx, "not ready, sync paused")
	}
	for _, c := range e.cols {
		c.onGate(open)
	}
}

// begin registers a background task. It reports false once Close started.
func (e *Engine) begin() bool {
	e.trackMu.Lock()
	defer e.trackMu.Unlock()
	if e.closing {
		return false
	}
	e.wg.Add(1)
	return true
}

func (e *Engine) now() time.Time {
	return e.opts.Clock().UTC()
}

// Gate returns the readiness gate the engine observes.
func (e *Engine) Gate() *gate.Gate { return e.gate }

// SetAccountID sets the account attached to every request.
func (e *Engine) SetAccountID(id string) {
	e.account.Store(&id)
}

func (e *Engine) AccountID() string {
	if p := e.account.Load(); p != nil {
		return *p
	}
	return ""
}

// Collection returns the collection of model name.
func (e *Engine) Collection(name string) (*Collection, error) {
	i := slices.IndexFunc(e.cols, func(c *Collection) bool { return c.model.Name == name })
	if i < 0 {
		return nil, fmt.Errorf("%w: %s", ErrUnknownCollection, name)
	}
	return e.cols[i], nil
}

func (e *Engine) Collections() []*Collection {
	return slices.Clone(e.cols)
}

// SyncAll runs Sync on every collection concurrently.
func (e *Engine) SyncAll(ctx context.Context, opts SyncOptions) error {
	g, gctx := errgroup.WithContext(ctx)
	for _, c := range e.cols {
		g.Go(func() error {
			if err := c.Sync(gctx, opts); err != nil {
				return fmt.Errorf("%s: %w", c.Name(), err)
			}
			return nil
		})
	}
	return g.Wait()
}

// ResetPersistence resets every collection.
func (e *Engine) ResetPersistence(ctx context.Context) error {
	for _, c := range e.cols {
		if err := c.ResetPersistence(ctx); err != nil {
			return fmt.Errorf("%s: %w", c.Name(), err)
		}
	}
	return nil
}

// Statuses returns the status of every collection.
func (e *Engine) Statuses() []Status {
	out := make([]Status, 0, len(e.cols))
	for _, c := range e.cols {
		out = append(out, c.Status())
	}
	return out
}

// OnStatus registers fn on every collection.
func (e *Engine) OnStatus(fn func(Status)) (unsubscribe func()) {
	unsubs := make([]func(), 0, len(e.cols))
	for _, c := range e.cols {
		unsubs = append(unsubs, c.OnStatus(fn))
	}
	return func() {
		for _, u := range unsubs {
			u()
		}
	}
}

// OnError registers fn for every error any collection runs into.
func (e *Engine) OnError(fn func(model string, err error)) (unsubscribe func()) {
	e.errMu.Lock()
	id := e.nextEr
	e.nextEr++
	e.errLs[id] = fn
	e.errMu.Unlock()

	return func() {
		e.errMu.Lock()
		delete(e.errLs, id)
		e.errMu.Unlock()
	}
}

func (e *Engine) emitError(model string, err error) {
	e.errMu.Lock()
	ls := make([]func(string, error), 0, len(e.errLs))
	for _, fn := range e.errLs {
		ls = append(ls, fn)
	}
	e.errMu.Unlock()

	for _, fn := range ls {
		fn(model, err)
	}
}

// Flush waits until every scheduled persistence write has completed.
func (e *Engine) Flush(ctx context.Context) error {
	return e.writer.Flush(ctx)
}

// Close stops all background work and flushes pending writes. The adapter
// is left open for its owner to close.
func (e *Engine) Close(ctx context.Context) error {
	var err error
	e.closeOnce.Do(func() {
		if e.unsubGate != nil {
			e.unsubGate()
		}
		for _, c := range e.cols {
			c.stopFeed()
		}
		e.trackMu.Lock()
		e.closing = true
		e.trackMu.Unlock()
		e.cancel()
		e.wg.Wait()
		err = e.writer.Close(ctx)
	})
	return err
}
