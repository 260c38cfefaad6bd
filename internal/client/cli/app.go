package cli

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"sync"
	"time"

	"github.com/dmitrijs2005/gophsync/internal/client/client"
	"github.com/dmitrijs2005/gophsync/internal/client/config"
	"github.com/dmitrijs2005/gophsync/internal/client/services"
	"github.com/dmitrijs2005/gophsync/internal/client/syncer"
	"github.com/dmitrijs2005/gophsync/internal/common"
	"github.com/dmitrijs2005/gophsync/internal/logging"
)

type Mode string

const (
	ModeOffline  Mode = "offline"
	ModeOnline   Mode = "online"
	ModeDisabled Mode = "disabled"
)

// Engine is the part of the sync engine the shell drives.
type Engine interface {
	SyncAll(ctx context.Context, opts syncer.SyncOptions) error
	ResetPersistence(ctx context.Context) error
	Statuses() []syncer.Status
	OnError(fn func(model string, err error)) (unsubscribe func())
}

type App struct {
	config      *config.Config
	engine      Engine
	authService services.AuthService
	todoService services.TodoService
	log         logging.Logger

	mu       sync.Mutex
	userName string
	loggedIn bool
	Mode     Mode

	reader *bufio.Reader
	out    io.Writer
}

func NewApp(c *config.Config, e Engine, as services.AuthService, ts services.TodoService, log logging.Logger) *App {
	return &App{
		config:      c,
		engine:      e,
		authService: as,
		todoService: ts,
		log:         log,
		reader:      bufio.NewReader(os.Stdin),
		out:         os.Stdout,
	}
}

func (a *App) setMode(mode Mode) {
	a.mu.Lock()
	changed := a.Mode != mode
	a.Mode = mode
	a.mu.Unlock()
	if changed {
		fmt.Fprintf(a.out, "Switched to %s mode\n", mode)
	}
}

func (a *App) mode() Mode {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.Mode
}

func (a *App) isLoggedIn() bool {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.loggedIn
}

func (a *App) getStatus() string {
	a.mu.Lock()
	defer a.mu.Unlock()
	s := a.userName
	if a.Mode != "" {
		if s != "" {
			s += " "
		}
		s += string(a.Mode)
	}
	if s != "" {
		s = fmt.Sprintf("(%s)", s)
	}
	return s
}

// Run starts the connectivity watcher and the REPL. It returns when the user
// exits or ctx ends.
func (a *App) Run(ctx context.Context) {
	defer a.authService.Close(ctx)

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	unsub := a.engine.OnError(a.onEngineError)
	defer unsub()

	go a.StartOnlineStatusWatcher(ctx, a.config.OnlineCheckInterval)

	fmt.Fprintln(a.out, "Welcome to GophSync (type 'help' for commands)")
	runREPL(ctx, a, a.getStatus, bufio.NewScanner(a.reader))
}

// onEngineError reacts to errors the engine reports in the background. An
// expired session stops synchronisation until the user signs in again.
func (a *App) onEngineError(model string, err error) {
	ctx := context.Background()
	var ve *common.ValidationError
	switch {
	case errors.Is(err, client.ErrUnauthorized):
		a.authService.Logout(ctx)
		a.mu.Lock()
		a.loggedIn = false
		a.mu.Unlock()
		a.setMode(ModeDisabled)
		fmt.Fprintln(a.out, "Session expired, please login again")
	case errors.As(err, &ve):
		fmt.Fprintf(a.out, "Change rejected by server: %s\n", ve.Reason)
	case errors.Is(err, common.ErrNetwork):
		a.log.Debug(ctx, "sync error", "model", model, "error", err)
	default:
		a.log.Warn(ctx, "sync error", "model", model, "error", err)
	}
}

// StartOnlineStatusWatcher pings the server every interval and switches
// between online and offline mode.
func (a *App) StartOnlineStatusWatcher(ctx context.Context, interval time.Duration) {
	if interval <= 0 {
		return
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			pctx, cancel := context.WithTimeout(ctx, 3*time.Second)
			err := a.authService.Ping(pctx)
			cancel()

			switch {
			case a.mode() == ModeDisabled:
			case err != nil:
				a.setMode(ModeOffline)
			default:
				a.setMode(ModeOnline)
			}

		case <-ctx.Done():
			return
		}
	}
}
