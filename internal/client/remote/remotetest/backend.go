// Package remotetest provides an in-process backend that behaves like the
// real server: server-assigned timestamps, updatedAt-descending pagination,
// soft delete and change subscriptions. It supports fault injection for
// offline scenarios.
package remotetest

import (
	"cmp"
	"context"
	"maps"
	"slices"
	"strconv"
	"sync"
	"time"

	"github.com/dmitrijs2005/gophsync/internal/client/models"
	"github.com/dmitrijs2005/gophsync/internal/client/remote"
	"github.com/dmitrijs2005/gophsync/internal/common"
	"github.com/dmitrijs2005/gophsync/internal/shared"
)

// ListCall records the arguments of one List request.
type ListCall struct {
	Filter remote.ListFilter
	Page   remote.Pagination
}

type Backend struct {
	mu      sync.Mutex
	items   map[string]map[string]models.Entity
	last    time.Time
	now     func() time.Time
	offline bool
	subs    map[string]map[remote.Event]map[*subscription]struct{}

	listCalls   map[string][]ListCall
	createCalls map[string][]models.Entity
	updateCalls map[string][]models.Entity

	// AssignID, when set, replaces client ids on create.
	AssignID func(models.Entity) string
	// BeforeList runs before every List with the call number (1-based).
	BeforeList func(ctx context.Context, model string, n int)
	// BeforeMutate runs before every Create and Update. The call fails if
	// ctx is done once it returns.
	BeforeMutate func(ctx context.Context, model string, e models.Entity)
}

func NewBackend() *Backend {
	return &Backend{
		items:       map[string]map[string]models.Entity{},
		now:         time.Now,
		subs:        map[string]map[remote.Event]map[*subscription]struct{}{},
		listCalls:   map[string][]ListCall{},
		createCalls: map[string][]models.Entity{},
		updateCalls: map[string][]models.Entity{},
	}
}

// SetClock replaces the timestamp source.
func (b *Backend) SetClock(now func() time.Time) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.now = now
}

// SetOffline makes every call fail with common.ErrNetwork and breaks open
// subscriptions.
func (b *Backend) SetOffline(off bool) {
	b.mu.Lock()
	b.offline = off
	var broken []*subscription
	if off {
		for _, byEv := range b.subs {
			for _, set := range byEv {
				for s := range set {
					broken = append(broken, s)
				}
			}
		}
	}
	b.mu.Unlock()
	for _, s := range broken {
		s.fail(common.ErrNetwork)
	}
}

// Remote returns the adapter for model.
func (b *Backend) Remote(model string) remote.Remote {
	return &Remote{b: b, model: model}
}

// Put stores e as if another client had written it, assigning timestamps.
func (b *Backend) Put(model string, e models.Entity) models.Entity {
	b.mu.Lock()
	_, exists := b.table(model)[e.ID()]
	out := b.write(model, e.Clone())
	b.mu.Unlock()
	ev := remote.EventUpdate
	if !exists {
		ev = remote.EventCreate
	}
	b.publish(model, ev, out)
	return out
}

// PutAt stores e with an explicit updatedAt, bypassing the clock.
func (b *Backend) PutAt(model string, e models.Entity, updatedAt time.Time) {
	b.mu.Lock()
	defer b.mu.Unlock()
	e = e.Clone()
	e[common.FieldUpdatedAt] = models.FormatTime(updatedAt)
	if _, ok := e[common.FieldCreatedAt]; !ok {
		e[common.FieldCreatedAt] = e[common.FieldUpdatedAt]
	}
	if _, ok := e[common.FieldDeleted]; !ok {
		e[common.FieldDeleted] = false
	}
	b.table(model)[e.ID()] = e
}

// Get returns the stored record.
func (b *Backend) Get(model, id string) (models.Entity, bool) {
	b.mu.Lock()
	defer b.mu.Unlock()
	e, ok := b.table(model)[id]
	return e.Clone(), ok
}

func (b *Backend) Len(model string) int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return len(b.table(model))
}

func (b *Backend) ListCalls(model string) []ListCall {
	b.mu.Lock()
	defer b.mu.Unlock()
	return slices.Clone(b.listCalls[model])
}

func (b *Backend) CreateCalls(model string) []models.Entity {
	b.mu.Lock()
	defer b.mu.Unlock()
	return slices.Clone(b.createCalls[model])
}

func (b *Backend) UpdateCalls(model string) []models.Entity {
	b.mu.Lock()
	defer b.mu.Unlock()
	return slices.Clone(b.updateCalls[model])
}

func (b *Backend) table(model string) map[string]models.Entity {
	t, ok := b.items[model]
	if !ok {
		t = map[string]models.Entity{}
		b.items[model] = t
	}
	return t
}

// tick returns a strictly increasing server time.
func (b *Backend) tick() time.Time {
	t := b.now().UTC()
	if !t.After(b.last) {
		t = b.last.Add(time.Microsecond)
	}
	b.last = t
	return t
}

func (b *Backend) write(model string, e models.Entity) models.Entity {
	ts := models.FormatTime(b.tick())
	t := b.table(model)
	cur, ok := t[e.ID()]
	if !ok {
		cur = models.Entity{common.FieldDeleted: false, common.FieldCreatedAt: ts}
	}
	next := cur.Clone()
	for k, v := range e {
		if k == common.FieldCreatedAt || k == common.FieldUpdatedAt {
			continue
		}
		next[k] = v
	}
	next[common.FieldUpdatedAt] = ts
	t[e.ID()] = next
	return next.Clone()
}

func (b *Backend) publish(model string, ev remote.Event, e models.Entity) {
	b.mu.Lock()
	subs := slices.Collect(maps.Keys(b.subs[model][ev]))
	b.mu.Unlock()
	for _, s := range subs {
		s.deliver(e)
	}
}

// Remote is the remote.Remote of one model on a Backend.
type Remote struct {
	b     *Backend
	model string
}

func (r *Remote) List(ctx context.Context, f remote.ListFilter, p remote.Pagination) (remote.ListResult, error) {
	if err := ctx.Err(); err != nil {
		return remote.ListResult{}, err
	}
	b := r.b
	b.mu.Lock()
	b.listCalls[r.model] = append(b.listCalls[r.model], ListCall{Filter: f, Page: p})
	n := len(b.listCalls[r.model])
	hook := b.BeforeList
	b.mu.Unlock()
	if hook != nil {
		hook(ctx, r.model, n)
		if err := ctx.Err(); err != nil {
			return remote.ListResult{}, err
		}
	}

	b.mu.Lock()
	defer b.mu.Unlock()
	if b.offline {
		return remote.ListResult{}, common.ErrNetwork
	}

	var rows []models.Entity
	for _, e := range b.table(r.model) {
		if f.AccountID != "" && e.AccountID() != f.AccountID {
			continue
		}
		if !f.UpdatedAfter.IsZero() && !e.UpdatedAt().After(f.UpdatedAfter) {
			continue
		}
		rows = append(rows, e.Clone())
	}
	slices.SortFunc(rows, func(a, c models.Entity) int {
		if x := c.UpdatedAt().Compare(a.UpdatedAt()); x != 0 {
			return x
		}
		return cmp.Compare(a.ID(), c.ID())
	})
	if p.SortDirection == remote.SortAsc {
		slices.Reverse(rows)
	}

	offset := 0
	if p.NextToken != "" {
		var err error
		if offset, err = strconv.Atoi(p.NextToken); err != nil {
			return remote.ListResult{}, &common.ValidationError{Model: r.model, Op: "list", Reason: "bad token"}
		}
	}
	limit := p.Limit
	if limit <= 0 {
		limit = len(rows)
	}
	end := min(offset+limit, len(rows))
	res := remote.ListResult{}
	if offset < len(rows) {
		res.Items = rows[offset:end]
	}
	if end < len(rows) {
		res.NextToken = strconv.Itoa(end)
	}
	return res, nil
}

func (r *Remote) Create(ctx context.Context, e models.Entity) (models.Entity, error) {
	return r.mutate(ctx, e, true)
}

func (r *Remote) Update(ctx context.Context, e models.Entity) (models.Entity, error) {
	return r.mutate(ctx, e, false)
}

func (r *Remote) mutate(ctx context.Context, e models.Entity, create bool) (models.Entity, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	b := r.b
	b.mu.Lock()
	hook := b.BeforeMutate
	b.mu.Unlock()
	if hook != nil {
		hook(ctx, r.model, e)
		if err := ctx.Err(); err != nil {
			return nil, err
		}
	}
	b.mu.Lock()
	if create {
		b.createCalls[r.model] = append(b.createCalls[r.model], e.Clone())
	} else {
		b.updateCalls[r.model] = append(b.updateCalls[r.model], e.Clone())
	}
	if b.offline {
		b.mu.Unlock()
		return nil, common.ErrNetwork
	}

	op := "update"
	if create {
		op = "create"
	}
	if m, err := shared.Lookup(r.model); err == nil {
		if err := m.Validate(op, e, !create); err != nil {
			b.mu.Unlock()
			return nil, err
		}
	}

	e = e.Clone()
	existing, exists := b.table(r.model)[e.ID()]
	ev := remote.EventUpdate
	switch {
	case create && exists:
		// idempotent create: a replay of an acknowledged create
		b.mu.Unlock()
		return existing.Clone(), nil
	case create:
		if b.AssignID != nil {
			e[common.FieldID] = b.AssignID(e)
		}
		ev = remote.EventCreate
	case !exists:
		b.mu.Unlock()
		return nil, &common.ValidationError{Model: r.model, ID: e.ID(), Op: op, Reason: "not found"}
	default:
		if e.Deleted() && !existing.Deleted() {
			ev = remote.EventDelete
		}
	}
	out := b.write(r.model, e)
	b.mu.Unlock()

	b.publish(r.model, ev, out)
	return out, nil
}

func (r *Remote) Subscribe(ctx context.Context, ev remote.Event) (remote.Subscription, error) {
	b := r.b
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.offline {
		return nil, common.ErrNetwork
	}
	s := &subscription{ch: make(chan models.Entity, 64)}
	s.remove = func() {
		b.mu.Lock()
		delete(b.subs[r.model][ev], s)
		b.mu.Unlock()
	}
	if b.subs[r.model] == nil {
		b.subs[r.model] = map[remote.Event]map[*subscription]struct{}{}
	}
	if b.subs[r.model][ev] == nil {
		b.subs[r.model][ev] = map[*subscription]struct{}{}
	}
	b.subs[r.model][ev][s] = struct{}{}

	context.AfterFunc(ctx, s.Unsubscribe)
	return s, nil
}

// Subscribers counts open subscriptions of model.
func (b *Backend) Subscribers(model string) int {
	b.mu.Lock()
	defer b.mu.Unlock()
	n := 0
	for _, set := range b.subs[model] {
		n += len(set)
	}
	return n
}

type subscription struct {
	mu     sync.Mutex
	ch     chan models.Entity
	err    error
	closed bool
	remove func()
}

func (s *subscription) Events() <-chan models.Entity { return s.ch }

func (s *subscription) Err() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.err
}

func (s *subscription) Unsubscribe() { s.fail(nil) }

func (s *subscription) fail(err error) {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return
	}
	s.closed = true
	s.err = err
	close(s.ch)
	s.mu.Unlock()
	s.remove()
}

func (s *subscription) deliver(e models.Entity) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return
	}
	select {
	case s.ch <- e:
	default:
	}
}
