package persist

import (
	"context"
	"errors"
	"sync"

	"github.com/dmitrijs2005/gophsync/internal/logging"
)

var ErrWriterClosed = errors.New("persist writer closed")

// Producer renders the current value of a table. It runs on the writer's
// goroutine right before the value is saved.
type Producer func() ([]byte, error)

// Writer saves tables in the background. Each table has its own goroutine so
// writes to one table are applied in order, and a table that is scheduled
// again before its previous value was written only gets the latest value.
type Writer struct {
	a   Adapter
	log logging.Logger

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup

	mu     sync.Mutex
	tables map[string]*tableWriter
	closed bool
}

type tableWriter struct {
	name string
	kick chan struct{}

	mu      sync.Mutex
	pending Producer
	busy    bool
	waiters []chan struct{}
}

func NewWriter(a Adapter, log logging.Logger) *Writer {
	ctx, cancel := context.WithCancel(context.Background())
	return &Writer{
		a:      a,
		log:    log,
		ctx:    ctx,
		cancel: cancel,
		tables: make(map[string]*tableWriter),
	}
}

// Schedule queues produce as the next value of table. It never blocks on I/O.
func (w *Writer) Schedule(table string, produce Producer) {
	tw, err := w.table(table)
	if err != nil {
		w.log.Warn(w.ctx, "write dropped", "table", table, "error", err)
		return
	}
	tw.mu.Lock()
	tw.pending = produce
	tw.mu.Unlock()

	select {
	case tw.kick <- struct{}{}:
	default:
	}
}

// Flush waits until every scheduled value has been written.
func (w *Writer) Flush(ctx context.Context) error {
	w.mu.Lock()
	tws := make([]*tableWriter, 0, len(w.tables))
	for _, tw := range w.tables {
		tws = append(tws, tw)
	}
	w.mu.Unlock()

	for _, tw := range tws {
		if err := tw.wait(ctx); err != nil {
			return err
		}
	}
	return nil
}

// Drop discards any unwritten value of table, waits for a write in progress
// and deletes the table from the adapter.
func (w *Writer) Drop(ctx context.Context, table string) error {
	w.mu.Lock()
	tw := w.tables[table]
	w.mu.Unlock()

	if tw != nil {
		tw.mu.Lock()
		tw.pending = nil
		tw.mu.Unlock()
		if err := tw.wait(ctx); err != nil {
			return err
		}
	}
	return w.a.Delete(ctx, table)
}

// Close flushes outstanding writes and stops the table goroutines. The
// adapter is left open.
func (w *Writer) Close(ctx context.Context) error {
	w.mu.Lock()
	if w.closed {
		w.mu.Unlock()
		return nil
	}
	w.closed = true
	w.mu.Unlock()

	err := w.Flush(ctx)
	w.cancel()
	w.wg.Wait()
	return err
}

func (w *Writer) table(name string) (*tableWriter, error) {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.closed {
		return nil, ErrWriterClosed
	}
	tw, ok := w.tables[name]
	if !ok {
		tw = &tableWriter{name: name, kick: make(chan struct{}, 1)}
		w.tables[name] = tw
		w.wg.Add(1)
		go w.run(tw)
	}
	return tw, nil
}

func (w *Writer) run(tw *tableWriter) {
	defer w.wg.Done()
	for {
		select {
		case <-w.ctx.Done():
			return
		case <-tw.kick:
		}

		tw.mu.Lock()
		produce := tw.pending
		tw.pending = nil
		tw.busy = produce != nil
		tw.mu.Unlock()

		if produce != nil {
			w.write(tw.name, produce)
		}

		tw.mu.Lock()
		tw.busy = false
		if tw.pending == nil {
			for _, ch := range tw.waiters {
				close(ch)
			}
			tw.waiters = nil
		}
		tw.mu.Unlock()
	}
}

func (w *Writer) write(table string, produce Producer) {
	data, err := produce()
	if err != nil {
		w.log.Error(w.ctx, "encode table failed", "table", table, "error", err)
		return
	}
	if err := w.a.Save(w.ctx, table, data); err != nil {
		w.log.Error(w.ctx, "save table failed", "table", table, "error", err)
	}
}

func (tw *tableWriter) wait(ctx context.Context) error {
	tw.mu.Lock()
	if tw.pending == nil && !tw.busy {
		tw.mu.Unlock()
		return nil
	}
	ch := make(chan struct{})
	tw.waiters = append(tw.waiters, ch)
	tw.mu.Unlock()

	// a pending value always has a kick queued, so the loop will get to it
	select {
	case <-ch:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
