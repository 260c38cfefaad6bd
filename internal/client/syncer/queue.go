package syncer

import (
	"slices"
	"strings"

	"github.com/dmitrijs2005/gophsync/internal/client/models"
	"github.com/dmitrijs2005/gophsync/internal/client/store"
	"github.com/dmitrijs2005/gophsync/internal/common"
	"github.com/oklog/ulid/v2"
)

type OpKind string

const (
	OpCreate OpKind = "create"
	OpUpdate OpKind = "update"
	// OpDelete is delivered as an update carrying deleted=true.
	OpDelete OpKind = "delete"
)

// PendingOp is a local mutation waiting for delivery. Edits to a record are
// folded into its latest queued op.
type PendingOp struct {
	OpID   string        `json:"opId"`
	ID     string        `json:"id"`
	Kind   OpKind        `json:"kind"`
	Fields models.Entity `json:"fields"`
	// Base is the last state the server confirmed; nil for records the
	// server has never seen.
	Base     models.Entity `json:"base,omitempty"`
	QueuedAt string        `json:"queuedAt"`
}

// settle makes a non-create op follow the record's current deleted flag, so
// an undelete folded into a queued delete goes out as a plain update.
func (op *PendingOp) settle(deleted bool) {
	if op.Kind == OpCreate {
		return
	}
	op.Kind = OpUpdate
	if deleted {
		op.Kind = OpDelete
	}
}

func (op *PendingOp) clone() *PendingOp {
	cp := *op
	cp.Fields = op.Fields.Clone()
	cp.Base = op.Base.Clone()
	return &cp
}

// serverFields are never sent by the client.
var serverFields = []string{common.FieldCreatedAt, common.FieldUpdatedAt}

func stripServerFields(e models.Entity) {
	for _, k := range serverFields {
		delete(e, k)
	}
}

// queue holds up to two ops per record: the head may be in flight, the
// second collects edits made meanwhile.
type queue struct {
	ops      map[string][]*PendingOp
	inflight map[string]*PendingOp
}

func newQueue() *queue {
	return &queue{ops: map[string][]*PendingOp{}, inflight: map[string]*PendingOp{}}
}

func (q *queue) len() int {
	n := 0
	for _, ops := range q.ops {
		n += len(ops)
	}
	return n
}

// record folds one local change into the queue.
func (q *queue) record(c store.Change, queuedAt string) {
	if c.Next == nil {
		return
	}
	diff := models.Diff(c.Prev, c.Next)
	stripServerFields(diff)
	if len(diff) == 0 {
		return
	}

	ops := q.ops[c.ID]
	var tail *PendingOp
	if n := len(ops); n > 0 && q.inflight[c.ID] != ops[n-1] {
		tail = ops[n-1]
	}

	if tail == nil {
		op := &PendingOp{
			OpID:     ulid.Make().String(),
			ID:       c.ID,
			Kind:     OpUpdate,
			Fields:   diff,
			Base:     c.Prev.Clone(),
			QueuedAt: queuedAt,
		}
		if c.Prev == nil {
			op.Kind = OpCreate
			op.Fields = c.Next.Clone()
			stripServerFields(op.Fields)
		}
		op.settle(c.Next.Deleted())
		q.ops[c.ID] = append(ops, op)
		return
	}

	models.Assign(tail.Fields, diff)
	tail.settle(c.Next.Deleted())
}

// ready returns the ids whose first op can be sent, oldest first.
func (q *queue) ready() []string {
	var ids []string
	for id, ops := range q.ops {
		if len(ops) > 0 && q.inflight[id] == nil {
			ids = append(ids, id)
		}
	}
	slices.SortFunc(ids, func(a, b string) int {
		return strings.Compare(q.ops[a][0].OpID, q.ops[b][0].OpID)
	})
	return ids
}

// overlay folds every queued field of id, newer edits winning.
func (q *queue) overlay(id string) models.Entity {
	out := models.Entity{}
	for _, op := range q.ops[id] {
		models.Assign(out, op.Fields)
	}
	return out
}

// flatten lists all ops in delivery order for persistence.
func (q *queue) flatten() []PendingOp {
	var out []PendingOp
	for _, ops := range q.ops {
		for _, op := range ops {
			out = append(out, *op.clone())
		}
	}
	slices.SortFunc(out, func(a, b PendingOp) int { return strings.Compare(a.OpID, b.OpID) })
	return out
}

// restore rebuilds the queue from persisted ops.
func restoreQueue(list []PendingOp) *queue {
	q := newQueue()
	slices.SortFunc(list, func(a, b PendingOp) int { return strings.Compare(a.OpID, b.OpID) })
	for i := range list {
		op := list[i].clone()
		if op.Fields == nil {
			op.Fields = models.Entity{}
		}
		ops := q.ops[op.ID]
		if len(ops) < 2 {
			q.ops[op.ID] = append(ops, op)
			continue
		}
		tail := ops[len(ops)-1]
		models.Assign(tail.Fields, op.Fields)
		// the newer op saw the record's later deleted state
		tail.settle(op.Kind == OpDelete)
	}
	return q
}

// rekey moves the ops of oldID under newID.
func (q *queue) rekey(oldID, newID string) {
	if oldID == newID {
		return
	}
	ops := q.ops[oldID]
	delete(q.ops, oldID)
	for _, op := range ops {
		op.ID = newID
		delete(op.Fields, common.FieldID)
	}
	if len(ops) > 0 {
		q.ops[newID] = append(q.ops[newID], ops...)
	}
	if f := q.inflight[oldID]; f != nil {
		delete(q.inflight, oldID)
		q.inflight[newID] = f
	}
}
