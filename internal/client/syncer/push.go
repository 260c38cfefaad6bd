package syncer

import (
	"context"
	"errors"

	"github.com/dmitrijs2005/gophsync/internal/client/models"
	"github.com/dmitrijs2005/gophsync/internal/client/store"
	"github.com/dmitrijs2005/gophsync/internal/common"
	"github.com/dmitrijs2005/gophsync/internal/netx"
)

// confirmedFields are taken from the server response after a push.
var confirmedFields = []string{common.FieldCreatedAt, common.FieldUpdatedAt, common.FieldDeleted}

func (c *Collection) pushLoop() {
	defer c.e.wg.Done()
	for {
		select {
		case <-c.e.ctx.Done():
			return
		case <-c.pushKick:
		}
		if !c.e.gate.IsOpen() {
			continue
		}

		c.mu.Lock()
		ids := c.q.ready()
		c.mu.Unlock()

		for _, id := range ids {
			if !c.e.begin() {
				return
			}
			go func() {
				defer c.e.wg.Done()
				c.pushOne(id)
			}()
		}
	}
}

// pushOne delivers the head op of id. Ops of one id never overlap; ops of
// different ids run concurrently.
func (c *Collection) pushOne(id string) {
	gctx, cancel, err := c.e.gate.Wait(c.e.ctx)
	if err != nil {
		return
	}
	defer cancel()

	c.mu.Lock()
	ops := c.q.ops[id]
	if len(ops) == 0 || c.q.inflight[id] != nil {
		c.mu.Unlock()
		return
	}
	op := ops[0]
	c.q.inflight[id] = op
	gen := c.gen
	kind := op.Kind
	payload := op.Fields.Clone()
	c.mu.Unlock()
	c.notifyStatus()

	if c.e.opts.FullRecordUpdates && kind != OpCreate {
		if rec, ok := c.store.Get(id); ok {
			payload = rec
		}
	}
	stripServerFields(payload)
	payload[common.FieldID] = id
	payload[common.FieldAccountID] = c.e.AccountID()
	if kind == OpDelete {
		payload[common.FieldDeleted] = true
	}

	var resp models.Entity
	err = netx.Do(gctx, c.e.opts.Backoff, func(ctx context.Context) error {
		var err error
		if kind == OpCreate {
			resp, err = c.remote.Create(ctx, payload)
		} else {
			resp, err = c.remote.Update(ctx, payload)
		}
		return err
	}, c.report)

	var verr *common.ValidationError
	switch {
	case err == nil:
		err = c.confirm(id, op, gen, payload, resp)
	case errors.As(err, &verr):
		err = c.reject(id, op, gen, err)
	}

	if err != nil {
		// cancelled or stale: the op stays queued unless a reset dropped it
		c.mu.Lock()
		if c.q.inflight[id] == op {
			delete(c.q.inflight, id)
		}
		c.mu.Unlock()
		if !errors.Is(err, common.ErrStaleGeneration) && gctx.Err() == nil {
			c.report(err)
		}
	}

	c.notifyStatus()
	c.kickPush()
}

// confirm dequeues op and merges the server-assigned fields back.
func (c *Collection) confirm(id string, op *PendingOp, gen uint64, sent, resp models.Entity) error {
	c.mergeMu.Lock()
	defer c.mergeMu.Unlock()

	newID := resp.ID()
	if newID == "" {
		newID = id
	}

	err := c.store.Update(store.OriginRemote, func(tx *store.Tx) error {
		c.mu.Lock()
		defer c.mu.Unlock()
		if c.gen != gen {
			return common.ErrStaleGeneration
		}

		if c.q.inflight[id] == op {
			delete(c.q.inflight, id)
		}
		if ops := c.q.ops[id]; len(ops) > 0 && ops[0] == op {
			if len(ops) == 1 {
				delete(c.q.ops, id)
			} else {
				c.q.ops[id] = ops[1:]
			}
		}

		server := models.Entity{common.FieldID: newID}
		for _, f := range confirmedFields {
			if v, ok := resp[f]; ok {
				server[f] = v
			}
		}

		confirmed := op.Base.Clone()
		if confirmed == nil {
			confirmed = models.Entity{}
		}
		models.Assign(confirmed, sent)
		models.Assign(confirmed, server)
		for _, next := range c.q.ops[id] {
			next.Base = confirmed.Clone()
		}
		c.q.rekey(id, newID)

		rec, ok := tx.Get(id)
		if !ok {
			return nil
		}
		if newID != id {
			tx.Purge(id)
		}
		models.Assign(rec, server)
		models.Assign(rec, c.q.overlay(newID))
		return tx.Set(newID, rec)
	})
	if err != nil {
		return err
	}

	c.log.Debug(c.e.ctx, "pushed", "id", newID, "kind", op.Kind)
	c.scheduleSync()
	return nil
}

// reject drops every queued op of id and rolls the record back to the last
// state the server confirmed. A record the server never accepted is removed.
func (c *Collection) reject(id string, op *PendingOp, gen uint64, cause error) error {
	c.mergeMu.Lock()
	defer c.mergeMu.Unlock()

	err := c.store.Update(store.OriginRemote, func(tx *store.Tx) error {
		c.mu.Lock()
		defer c.mu.Unlock()
		if c.gen != gen {
			return common.ErrStaleGeneration
		}
		delete(c.q.ops, id)
		delete(c.q.inflight, id)

		tx.Purge(id)
		if op.Base == nil {
			return nil
		}
		return tx.Set(id, op.Base)
	})
	if err != nil {
		return err
	}

	c.log.Warn(c.e.ctx, "mutation rejected", "id", id, "kind", op.Kind, "error", cause)
	c.scheduleSync()
	return nil
}
