package statusapi

import (
	"context"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/dmitrijs2005/gophsync/internal/client/syncer"
	"github.com/dmitrijs2005/gophsync/internal/logging"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestClient_StatusSyncReset(t *testing.T) {
	e := newFakeEngine()
	s := New(e, logging.Nop(), Options{Token: "secret"})
	ts := httptest.NewServer(s.Handler())
	defer ts.Close()

	ctx := context.Background()
	c := NewClient(ts.URL, "secret")

	sts, err := c.Status(ctx)
	require.NoError(t, err)
	require.Len(t, sts, 2)
	assert.Equal(t, "todo", sts[0].Model)
	assert.Equal(t, "offline", sts[1].Error)

	_, err = c.Sync(ctx, true)
	require.NoError(t, err)
	e.mu.Lock()
	assert.Equal(t, []syncer.SyncOptions{{ResetLastSync: true}}, e.syncOpts)
	e.mu.Unlock()

	_, err = c.Reset(ctx)
	require.NoError(t, err)

	_, err = NewClient(ts.URL, "wrong").Status(ctx)
	assert.ErrorContains(t, err, "unauthorized")
}

func TestClient_AcceptsHostPort(t *testing.T) {
	c := NewClient("127.0.0.1:7070/", "")
	assert.Equal(t, "http://127.0.0.1:7070", c.base)
}

func TestClient_Watch(t *testing.T) {
	e := newFakeEngine()
	s := New(e, logging.Nop(), Options{})
	ts := httptest.NewServer(s.Handler())
	defer ts.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	msgs := make(chan Message, 4)
	done := make(chan error, 1)
	go func() {
		done <- NewClient(ts.URL, "").Watch(ctx, func(m Message) { msgs <- m })
	}()

	first := <-msgs
	assert.Equal(t, MessageSnapshot, first.Type)
	assert.Len(t, first.Statuses, 2)

	require.Eventually(t, func() bool { return e.listeners() == 1 }, 2*time.Second, 10*time.Millisecond)
	e.emit(syncer.Status{Model: "todo", State: syncer.StatePulling})

	next := <-msgs
	assert.Equal(t, MessageStatus, next.Type)
	assert.Equal(t, syncer.StatePulling, next.Statuses[0].State)

	cancel()
	assert.NoError(t, <-done)
}
