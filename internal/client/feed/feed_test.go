package feed

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/dmitrijs2005/gophsync/internal/client/models"
	"github.com/dmitrijs2005/gophsync/internal/client/remote"
	"github.com/dmitrijs2005/gophsync/internal/client/remote/remotetest"
	"github.com/dmitrijs2005/gophsync/internal/logging"
	"github.com/dmitrijs2005/gophsync/internal/netx"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var fast = netx.Backoff{Base: time.Millisecond, Max: 5 * time.Millisecond}

type collector struct {
	mu     sync.Mutex
	events []Event
}

func (c *collector) add(e Event) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.events = append(c.events, e)
}

func (c *collector) snapshot() []Event {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([]Event(nil), c.events...)
}

func waitSubscribers(t *testing.T, b *remotetest.Backend, model string, n int) {
	t.Helper()
	require.Eventually(t, func() bool { return b.Subscribers(model) == n },
		time.Second, time.Millisecond)
}

func TestFeed_FansInAllEventTypes(t *testing.T) {
	b := remotetest.NewBackend()
	f := New("todo", b.Remote("todo"), logging.Nop(), WithBackoff(fast))
	c := &collector{}

	unsub := f.Subscribe(context.Background(), c.add)
	defer unsub()
	waitSubscribers(t, b, "todo", 3)

	r := b.Remote("todo")
	ctx := context.Background()
	_, err := r.Create(ctx, models.Entity{"id": "a", "title": "milk"})
	require.NoError(t, err)
	_, err = r.Update(ctx, models.Entity{"id": "a", "completed": true})
	require.NoError(t, err)
	_, err = r.Update(ctx, models.Entity{"id": "a", "deleted": true})
	require.NoError(t, err)

	require.Eventually(t, func() bool { return len(c.snapshot()) == 3 }, time.Second, time.Millisecond)
	var reasons []remote.Event
	for _, e := range c.snapshot() {
		assert.Equal(t, "todo", e.Model)
		assert.Equal(t, "a", e.ID)
		reasons = append(reasons, e.Reason)
	}
	assert.ElementsMatch(t, []remote.Event{remote.EventCreate, remote.EventUpdate, remote.EventDelete}, reasons)
}

func TestFeed_UnsubscribeStopsCallbacks(t *testing.T) {
	b := remotetest.NewBackend()
	f := New("todo", b.Remote("todo"), logging.Nop(), WithBackoff(fast))
	c := &collector{}

	unsub := f.Subscribe(context.Background(), c.add)
	waitSubscribers(t, b, "todo", 3)
	unsub()
	unsub()

	assert.Zero(t, b.Subscribers("todo"))
	b.Put("todo", models.Entity{"id": "x", "title": "late"})
	time.Sleep(20 * time.Millisecond)
	assert.Empty(t, c.snapshot())
}

func TestFeed_ReconnectsAfterBrokenStream(t *testing.T) {
	b := remotetest.NewBackend()
	var errs sync.Map
	f := New("todo", b.Remote("todo"), logging.Nop(), WithBackoff(fast),
		WithErrorHandler(func(err error) { errs.Store(err.Error(), true) }))
	c := &collector{}

	unsub := f.Subscribe(context.Background(), c.add)
	defer unsub()
	waitSubscribers(t, b, "todo", 3)

	b.SetOffline(true)
	time.Sleep(20 * time.Millisecond)
	b.SetOffline(false)
	waitSubscribers(t, b, "todo", 3)

	require.Eventually(t, func() bool {
		for _, e := range c.snapshot() {
			if e.Reason == ReasonResubscribed {
				return true
			}
		}
		return false
	}, time.Second, time.Millisecond)

	b.Put("todo", models.Entity{"id": "after", "title": "x"})
	require.Eventually(t, func() bool {
		for _, e := range c.snapshot() {
			if e.ID == "after" {
				return true
			}
		}
		return false
	}, time.Second, time.Millisecond)

	_, sawErr := errs.Load("network error")
	assert.True(t, sawErr)
}

func TestFeed_ParentContextCancels(t *testing.T) {
	b := remotetest.NewBackend()
	f := New("todo", b.Remote("todo"), logging.Nop(), WithBackoff(fast))
	ctx, cancel := context.WithCancel(context.Background())

	unsub := f.Subscribe(ctx, func(Event) {})
	waitSubscribers(t, b, "todo", 3)
	cancel()
	waitSubscribers(t, b, "todo", 0)
	unsub()
}
