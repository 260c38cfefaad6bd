package cli

import (
	"bufio"
	"bytes"
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/dmitrijs2005/gophsync/internal/client/config"
	"github.com/dmitrijs2005/gophsync/internal/client/syncer"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func readerFromLines(lines ...string) *bufio.Reader {
	return bufio.NewReader(strings.NewReader(strings.Join(lines, "\n") + "\n"))
}

func testConfig() *config.Config {
	c := &config.Config{}
	c.LoadDefaults()
	c.OnlineCheckInterval = 0
	return c
}

func newSyncApp(eng *fakeEngine, loggedIn bool, input ...string) (*App, *bytes.Buffer) {
	var out bytes.Buffer
	return &App{engine: eng, out: &out, loggedIn: loggedIn, reader: readerFromLines(input...)}, &out
}

func TestSync_RequiresLogin(t *testing.T) {
	eng := &fakeEngine{}
	a, out := newSyncApp(eng, false)

	require.NoError(t, a.Sync(context.Background()))
	assert.Empty(t, eng.syncOpts)
	assert.Contains(t, out.String(), "Not logged in")
}

func TestSyncAndResync(t *testing.T) {
	eng := &fakeEngine{}
	a, out := newSyncApp(eng, true)

	require.NoError(t, a.Sync(context.Background()))
	require.NoError(t, a.Resync(context.Background()))

	assert.Equal(t, []syncer.SyncOptions{{}, {ResetLastSync: true}}, eng.syncOpts)
	assert.Equal(t, "Synced\nSynced\n", out.String())
}

func TestSync_ErrorAndTimeout(t *testing.T) {
	eng := &fakeEngine{syncErr: errors.New("boom")}
	a, _ := newSyncApp(eng, true)
	require.EqualError(t, a.Sync(context.Background()), "boom")

	old := syncTimeout
	syncTimeout = 10 * time.Millisecond
	t.Cleanup(func() { syncTimeout = old })

	eng = &fakeEngine{syncBlock: true}
	a, out := newSyncApp(eng, true)
	require.NoError(t, a.Sync(context.Background()))
	assert.Contains(t, out.String(), "continues in the background")
}

func TestReset_AsksForConfirmation(t *testing.T) {
	eng := &fakeEngine{}
	a, out := newSyncApp(eng, true, "no")
	require.NoError(t, a.Reset(context.Background()))
	assert.Equal(t, 0, eng.resets)
	assert.Contains(t, out.String(), "Cancelled")

	a, out = newSyncApp(eng, true, "yes")
	require.NoError(t, a.Reset(context.Background()))
	assert.Equal(t, 1, eng.resets)
	assert.Contains(t, out.String(), "Local data discarded")
}

func TestStatus_PrintsEveryCollection(t *testing.T) {
	eng := &fakeEngine{statuses: []syncer.Status{
		{Model: "todo", State: syncer.StateIdle, Records: 3, Pending: 1, LastSync: time.Date(2024, 1, 2, 3, 4, 5, 0, time.UTC)},
		{Model: "client", State: syncer.StateWaitingForReadiness, LastError: errors.New("offline")},
	}}
	a, out := newSyncApp(eng, true)

	require.NoError(t, a.Status(context.Background()))

	lines := strings.Split(strings.TrimSpace(out.String()), "\n")
	require.Len(t, lines, 3)
	assert.True(t, strings.HasPrefix(lines[0], "MODEL"))
	assert.Contains(t, lines[1], "todo")
	assert.Contains(t, lines[1], "idle")
	assert.Contains(t, lines[2], "never")
	assert.Contains(t, lines[2], "offline")
}
