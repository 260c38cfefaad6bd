package syncer

import (
	"context"
	"errors"
	"time"

	"github.com/dmitrijs2005/gophsync/internal/client/models"
	"github.com/dmitrijs2005/gophsync/internal/client/remote"
	"github.com/dmitrijs2005/gophsync/internal/client/store"
	"github.com/dmitrijs2005/gophsync/internal/common"
	"github.com/dmitrijs2005/gophsync/internal/netx"
)

// Sync pulls every record changed since the last completed sweep. A call
// made while a sweep is running joins it and schedules exactly one more
// sweep after it, so changes that triggered the call are not missed. Sync
// waits for the readiness gate.
func (c *Collection) Sync(ctx context.Context, opts SyncOptions) error {
	if opts.ResetLastSync {
		c.mu.Lock()
		c.resetCursor = true
		c.mu.Unlock()
	}
	c.again.Store(true)
	return c.pull(ctx)
}

func (c *Collection) pull(ctx context.Context) error {
	for {
		ch := c.flight.DoChan("pull", func() (any, error) {
			if !c.e.begin() {
				return nil, context.Canceled
			}
			defer c.e.wg.Done()
			return nil, c.runSweeps()
		})
		select {
		case <-ctx.Done():
			return ctx.Err()
		case r := <-ch:
			if r.Err != nil {
				return r.Err
			}
		}
		// a request may have arrived after the flight checked the flag
		if !c.again.Load() {
			return nil
		}
	}
}

func (c *Collection) runSweeps() error {
	for c.again.CompareAndSwap(true, false) {
		gctx, cancel, err := c.e.gate.Wait(c.e.ctx)
		if err != nil {
			c.again.Store(true)
			return err
		}
		err = c.sweep(gctx)
		cancel()

		switch {
		case err == nil:
		case errors.Is(err, common.ErrStaleGeneration):
			// reset while pulling; start over
			c.again.Store(true)
		case gctx.Err() != nil && c.e.ctx.Err() == nil:
			// gate closed; resume once it reopens
			c.again.Store(true)
		default:
			return err
		}
	}
	return nil
}

func (c *Collection) sweep(ctx context.Context) error {
	defer c.setPulling(false)

	for {
		c.mu.Lock()
		if !c.cur.active {
			since := c.lastSync
			if c.resetCursor {
				since = time.Time{}
				c.resetCursor = false
			}
			c.cur = cursor{active: true, since: since, started: c.e.now()}
		}
		cur := c.cur
		gen := c.gen
		c.pulling = true
		c.mu.Unlock()
		c.notifyStatus()

		filter := remote.ListFilter{AccountID: c.e.AccountID()}
		if !cur.since.IsZero() {
			filter.UpdatedAfter = cur.since.Add(-c.e.opts.WatermarkSkew)
		}
		page := remote.Pagination{Limit: c.pageSize, NextToken: cur.next, SortDirection: remote.SortDesc}

		var res remote.ListResult
		err := netx.Do(ctx, c.e.opts.Backoff, func(ctx context.Context) error {
			r, err := c.remote.List(ctx, filter, page)
			if err != nil {
				return err
			}
			res = r
			return nil
		}, c.report)
		if err != nil {
			return err
		}

		if err := c.mergeRemote(res.Items, gen); err != nil {
			return err
		}

		c.mu.Lock()
		if c.gen != gen {
			c.mu.Unlock()
			return common.ErrStaleGeneration
		}
		if res.NextToken != "" {
			c.cur.next = res.NextToken
			c.mu.Unlock()
			continue
		}
		c.lastSync = cur.started
		c.cur = cursor{}
		c.loaded = true
		c.lastErr = nil
		c.mu.Unlock()

		c.log.Debug(ctx, "sweep completed", "lastSync", models.FormatTime(cur.started))
		c.scheduleSync()
		return nil
	}
}

// mergeRemote folds server records into the store. Fields of queued local
// ops are applied on top so unsent edits stay visible. A record older than
// the local copy is skipped: last write wins by server updatedAt.
func (c *Collection) mergeRemote(items []models.Entity, gen uint64) error {
	if len(items) == 0 {
		return nil
	}
	c.mergeMu.Lock()
	defer c.mergeMu.Unlock()

	return c.store.Update(store.OriginRemote, func(tx *store.Tx) error {
		c.mu.Lock()
		defer c.mu.Unlock()
		if c.gen != gen {
			return common.ErrStaleGeneration
		}
		for _, item := range items {
			id := item.ID()
			if id == "" {
				continue
			}
			rec, ok := tx.Get(id)
			if !ok {
				rec = models.Entity{}
			} else if rec.UpdatedAt().After(item.UpdatedAt()) {
				// page fetched before a newer push was confirmed
				continue
			}
			c.merge.apply(rec, item)
			models.Assign(rec, c.q.overlay(id))
			if err := tx.Set(id, rec); err != nil {
				return err
			}
		}
		return nil
	})
}

func (c *Collection) setPulling(v bool) {
	c.mu.Lock()
	changed := c.pulling != v
	c.pulling = v
	c.mu.Unlock()
	if changed {
		c.notifyStatus()
	}
}

func (c *Collection) pullLoop() {
	defer c.e.wg.Done()
	for {
		select {
		case <-c.e.ctx.Done():
			return
		case <-c.pullKick:
		}
		if err := c.pull(c.e.ctx); err != nil && c.e.ctx.Err() == nil {
			c.report(err)
		}
	}
}
