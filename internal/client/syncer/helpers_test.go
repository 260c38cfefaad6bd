package syncer

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/dmitrijs2005/gophsync/internal/client/gate"
	"github.com/dmitrijs2005/gophsync/internal/client/persist"
	"github.com/dmitrijs2005/gophsync/internal/client/persist/memory"
	"github.com/dmitrijs2005/gophsync/internal/client/remote"
	"github.com/dmitrijs2005/gophsync/internal/client/remote/remotetest"
	"github.com/dmitrijs2005/gophsync/internal/netx"
	"github.com/dmitrijs2005/gophsync/internal/shared"
	"github.com/stretchr/testify/require"
)

var (
	t0   = time.Date(2025, 1, 1, 12, 0, 0, 0, time.UTC)
	fast = netx.Backoff{Base: time.Millisecond, Max: 5 * time.Millisecond}
)

// fixedClock is a settable clock.
type fixedClock struct {
	mu  sync.Mutex
	now time.Time
}

func (c *fixedClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fixedClock) Set(t time.Time) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = t
}

// serverClock ticks one second per call starting one minute after t0.
func serverClock() func() time.Time {
	var mu sync.Mutex
	cur := t0.Add(time.Minute)
	return func() time.Time {
		mu.Lock()
		defer mu.Unlock()
		cur = cur.Add(time.Second)
		return cur
	}
}

type harness struct {
	t       *testing.T
	backend *remotetest.Backend
	adapter persist.Adapter
	gate    *gate.Gate
	clock   *fixedClock
	engine  *Engine
	todo    *Collection
}

type harnessOpt func(*Options, *CollectionConfig)

func withPageSize(n int) harnessOpt {
	return func(_ *Options, c *CollectionConfig) { c.PageSize = n }
}

func withFeed() harnessOpt {
	return func(o *Options, _ *CollectionConfig) { o.DisableFeed = false }
}

func withFullRecordUpdates() harnessOpt {
	return func(o *Options, _ *CollectionConfig) { o.FullRecordUpdates = true }
}

func withSkew(d time.Duration) harnessOpt {
	return func(o *Options, _ *CollectionConfig) { o.WatermarkSkew = d }
}

// withRemote wraps the collection's remote.
func withRemote(wrap func(remote.Remote) remote.Remote) harnessOpt {
	return func(_ *Options, c *CollectionConfig) { c.Remote = wrap(c.Remote) }
}

func newBackend() *remotetest.Backend {
	b := remotetest.NewBackend()
	b.SetClock(serverClock())
	return b
}

// newHarness starts an engine with a closed gate over the given backend and
// adapter; nil values get fresh ones.
func newHarness(t *testing.T, b *remotetest.Backend, a persist.Adapter, opts ...harnessOpt) *harness {
	t.Helper()
	if b == nil {
		b = newBackend()
	}
	if a == nil {
		a = memory.New()
	}
	h := &harness{t: t, backend: b, adapter: a, gate: gate.New(), clock: &fixedClock{now: t0}}

	o := Options{
		Adapter:     a,
		Gate:        h.gate,
		Backoff:     fast,
		DisableFeed: true,
		Clock:       h.clock.Now,
	}
	cc := CollectionConfig{Model: shared.Todo, Remote: b.Remote("todo")}
	for _, fn := range opts {
		fn(&o, &cc)
	}

	e, err := New(context.Background(), o, cc)
	require.NoError(t, err)
	e.SetAccountID("acc-1")
	h.engine = e
	h.todo, err = e.Collection("todo")
	require.NoError(t, err)

	t.Cleanup(func() { _ = e.Close(context.Background()) })
	return h
}

// open opens the gate and waits for the first sweep to complete.
func (h *harness) open() {
	h.t.Helper()
	h.gate.Set(true)
	h.eventually(func() bool { return h.todo.Status().IsLoaded }, "first sweep")
}

func (h *harness) sync() {
	h.t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	require.NoError(h.t, h.todo.Sync(ctx, SyncOptions{}))
}

func (h *harness) idle() {
	h.t.Helper()
	h.eventually(func() bool {
		st := h.todo.Status()
		return st.Pending == 0 && st.State == StateIdle
	}, "idle")
}

// restart closes the engine and starts a new one on the same adapter.
func (h *harness) restart(opts ...harnessOpt) *harness {
	h.t.Helper()
	require.NoError(h.t, h.engine.Close(context.Background()))
	return newHarness(h.t, h.backend, h.adapter, opts...)
}

func (h *harness) eventually(cond func() bool, what string) {
	h.t.Helper()
	require.Eventually(h.t, cond, 3*time.Second, time.Millisecond, what)
}
