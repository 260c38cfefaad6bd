package cli

import (
	"bytes"
	"context"
	"fmt"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/dmitrijs2005/gophsync/internal/client/client"
	"github.com/dmitrijs2005/gophsync/internal/client/syncer"
	"github.com/dmitrijs2005/gophsync/internal/common"
	"github.com/dmitrijs2005/gophsync/internal/logging"
)

type syncBuffer struct {
	mu sync.Mutex
	b  bytes.Buffer
}

func (s *syncBuffer) Write(p []byte) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.b.Write(p)
}

func (s *syncBuffer) String() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.b.String()
}

type fakeEngine struct {
	syncOpts  []syncer.SyncOptions
	syncErr   error
	syncBlock bool
	resets    int
	statuses  []syncer.Status
	errFn     func(string, error)
}

func (f *fakeEngine) SyncAll(ctx context.Context, opts syncer.SyncOptions) error {
	f.syncOpts = append(f.syncOpts, opts)
	if f.syncBlock {
		<-ctx.Done()
		return ctx.Err()
	}
	return f.syncErr
}
func (f *fakeEngine) ResetPersistence(ctx context.Context) error { f.resets++; return nil }
func (f *fakeEngine) Statuses() []syncer.Status                  { return f.statuses }
func (f *fakeEngine) OnError(fn func(string, error)) func() {
	f.errFn = fn
	return func() { f.errFn = nil }
}

func TestIsLoggedIn(t *testing.T) {
	app := &App{}
	if app.isLoggedIn() {
		t.Fatalf("expected isLoggedIn() == false for a new app")
	}
	app.loggedIn = true
	if !app.isLoggedIn() {
		t.Fatalf("expected isLoggedIn() == true")
	}
}

func TestSetMode_ChangesAndPrintsOnce(t *testing.T) {
	var buf bytes.Buffer
	app := &App{out: &buf}

	app.setMode(ModeOnline)
	if app.Mode != ModeOnline {
		t.Fatalf("expected mode to be %q, got %q", ModeOnline, app.Mode)
	}
	if got := buf.String(); got != "Switched to online mode\n" {
		t.Fatalf("unexpected output %q", got)
	}

	buf.Reset()
	app.setMode(ModeOnline)
	if got := buf.String(); got != "" {
		t.Fatalf("expected no output when mode doesn't change, got: %q", got)
	}

	app.setMode(ModeOffline)
	if app.Mode != ModeOffline || buf.String() == "" {
		t.Fatalf("expected a switch to offline, mode=%q out=%q", app.Mode, buf.String())
	}
}

func TestOnEngineError(t *testing.T) {
	f := &fakeAuth{}
	var buf bytes.Buffer
	app := &App{authService: f, out: &buf, log: logging.Nop(), loggedIn: true}

	app.onEngineError("todo", fmt.Errorf("pull: %w", client.ErrUnavailable))
	if buf.Len() != 0 || f.logoutCalls != 0 {
		t.Fatalf("network errors are retried silently, got %q", buf.String())
	}

	app.onEngineError("todo", &common.ValidationError{Model: "todo", ID: "1", Op: "create", Reason: "title is required"})
	if !strings.Contains(buf.String(), "Change rejected by server: title is required") {
		t.Fatalf("unexpected output %q", buf.String())
	}

	app.onEngineError("todo", fmt.Errorf("push: %w", client.ErrUnauthorized))
	if f.logoutCalls != 1 || app.isLoggedIn() || app.Mode != ModeDisabled {
		t.Fatalf("unauthorized must end the session: logout=%d loggedIn=%v mode=%q", f.logoutCalls, app.isLoggedIn(), app.Mode)
	}
}

func TestStartOnlineStatusWatcher(t *testing.T) {
	f := &fakeAuth{pingErr: client.ErrUnavailable}
	out := &syncBuffer{}
	app := &App{authService: f, out: out}

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		defer close(done)
		app.StartOnlineStatusWatcher(ctx, 5*time.Millisecond)
	}()

	deadline := time.Now().Add(2 * time.Second)
	for app.mode() != ModeOffline {
		if time.Now().After(deadline) {
			t.Fatalf("mode never switched to offline")
		}
		time.Sleep(time.Millisecond)
	}
	cancel()
	<-done

	if !strings.Contains(out.String(), "Switched to offline mode") {
		t.Fatalf("unexpected output %q", out.String())
	}
}

func TestStartOnlineStatusWatcher_KeepsDisabled(t *testing.T) {
	f := &fakeAuth{}
	app := &App{authService: f, out: &syncBuffer{}, Mode: ModeDisabled}

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Millisecond)
	defer cancel()
	app.StartOnlineStatusWatcher(ctx, 5*time.Millisecond)

	if app.mode() != ModeDisabled {
		t.Fatalf("mode changed to %q", app.mode())
	}
}

func TestRun_ExitsOnQuit(t *testing.T) {
	capturePrint(t)
	eng := &fakeEngine{}
	out := &syncBuffer{}
	app := &App{
		authService: &fakeAuth{},
		engine:      eng,
		out:         out,
		log:         logging.Nop(),
		reader:      readerFromLines("quit"),
	}
	app.config = testConfig()

	app.Run(context.Background())

	if eng.errFn != nil {
		t.Fatalf("error listener not removed")
	}
	if !strings.Contains(out.String(), "Welcome to GophSync") {
		t.Fatalf("unexpected output %q", out.String())
	}
}
