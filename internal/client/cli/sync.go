package cli

import (
	"context"
	"errors"
	"fmt"
	"text/tabwriter"
	"time"

	"github.com/dmitrijs2005/gophsync/internal/client/syncer"
)

// syncTimeout bounds an interactive sync. The engine keeps retrying in the
// background after it expires.
var syncTimeout = 30 * time.Second

func (a *App) runSync(ctx context.Context, opts syncer.SyncOptions) error {
	if !a.isLoggedIn() {
		fmt.Fprintln(a.out, "Not logged in: changes are kept locally until you login")
		return nil
	}
	ctx, cancel := context.WithTimeout(ctx, syncTimeout)
	defer cancel()

	err := a.engine.SyncAll(ctx, opts)
	if errors.Is(err, context.DeadlineExceeded) {
		fmt.Fprintln(a.out, "Sync is taking longer than expected, it continues in the background")
		return nil
	}
	if err != nil {
		return err
	}
	fmt.Fprintln(a.out, "Synced")
	return nil
}

// Sync pulls everything changed since the last sync.
func (a *App) Sync(ctx context.Context) error {
	return a.runSync(ctx, syncer.SyncOptions{})
}

// Resync pulls every record again, ignoring the watermark.
func (a *App) Resync(ctx context.Context) error {
	return a.runSync(ctx, syncer.SyncOptions{ResetLastSync: true})
}

// Reset discards the local copy, including unsent changes.
func (a *App) Reset(ctx context.Context) error {
	ok, err := confirm(a.reader, a.out, "Discard local data and unsent changes?")
	if err != nil {
		return err
	}
	if !ok {
		fmt.Fprintln(a.out, "Cancelled")
		return nil
	}
	if err := a.engine.ResetPersistence(ctx); err != nil {
		return err
	}
	fmt.Fprintln(a.out, "Local data discarded")
	return nil
}

func (a *App) Status(ctx context.Context) error {
	w := tabwriter.NewWriter(a.out, 0, 4, 2, ' ', 0)
	fmt.Fprintln(w, "MODEL\tSTATE\tRECORDS\tPENDING\tLAST SYNC\tERROR")
	for _, st := range a.engine.Statuses() {
		last := "never"
		if !st.LastSync.IsZero() {
			last = st.LastSync.Local().Format(time.DateTime)
		}
		errText := ""
		if st.LastError != nil {
			errText = st.LastError.Error()
		}
		fmt.Fprintf(w, "%s\t%s\t%d\t%d\t%s\t%s\n", st.Model, st.State, st.Records, st.Pending, last, errText)
	}
	return w.Flush()
}
