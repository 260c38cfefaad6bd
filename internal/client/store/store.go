// Package store implements the observable in-memory key/value table that
// backs one synchronized collection on the client.
package store

import (
	"cmp"
	"errors"
	"iter"
	"slices"
	"sync"
	"time"

	"github.com/dmitrijs2005/gophsync/internal/client/models"
	"github.com/dmitrijs2005/gophsync/internal/common"
)

var ErrEmptyID = errors.New("empty record id")

// Origin tells listeners who caused a change.
type Origin int

const (
	// OriginLocal marks mutations made by the application.
	OriginLocal Origin = iota
	// OriginRemote marks data merged from the server.
	OriginRemote
	// OriginReset marks bulk loads and resets.
	OriginReset
)

func (o Origin) String() string {
	switch o {
	case OriginLocal:
		return "local"
	case OriginRemote:
		return "remote"
	case OriginReset:
		return "reset"
	}
	return "unknown"
}

// Change describes one record transition. Prev is nil for creations and
// Next is nil for purges.
type Change struct {
	ID     string
	Origin Origin
	Prev   models.Entity
	Next   models.Entity
}

// Listener receives the changes of one committed batch.
type Listener func([]Change)

type Option func(*Store)

// WithMirror registers fn to be called after every committed batch. It is
// meant for scheduling asynchronous persistence and must not block.
func WithMirror(fn func()) Option {
	return func(s *Store) { s.mirror = fn }
}

// WithCommitHook registers fn to see every non-empty batch before the
// store lock is released, so nothing can interleave between the commit and
// fn. fn must not call back into the store.
func WithCommitHook(fn func([]Change)) Option {
	return func(s *Store) { s.hook = fn }
}

// WithClock overrides the clock used for the changed timestamp.
func WithClock(now func() time.Time) Option {
	return func(s *Store) { s.now = now }
}

// Store is safe for concurrent use. Listeners are invoked synchronously in
// commit order and must not mutate the store from the same goroutine.
type Store struct {
	name string

	mu      sync.RWMutex
	data    map[string]models.Entity
	prints  map[string]uint64
	changed time.Time

	notifyMu  sync.Mutex
	lmu       sync.Mutex
	listeners map[int]Listener
	nextID    int

	mirror func()
	hook   func([]Change)
	now    func() time.Time
}

func New(name string, opts ...Option) *Store {
	s := &Store{
		name:      name,
		data:      make(map[string]models.Entity),
		prints:    make(map[string]uint64),
		listeners: make(map[int]Listener),
		now:       time.Now,
	}
	for _, o := range opts {
		o(s)
	}
	return s
}

func (s *Store) Name() string { return s.name }

// Get returns a copy of the record stored under id.
func (s *Store) Get(id string) (models.Entity, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	e, ok := s.data[id]
	if !ok {
		return nil, false
	}
	return e.Clone(), true
}

// Set merges fields into the record, creating it when absent.
func (s *Store) Set(id string, fields models.Entity) error {
	return s.Update(OriginLocal, func(tx *Tx) error { return tx.Set(id, fields) })
}

// Delete marks the record as deleted. The record itself is retained.
func (s *Store) Delete(id string) error {
	return s.Update(OriginLocal, func(tx *Tx) error { return tx.Delete(id) })
}

// Purge physically removes the record.
func (s *Store) Purge(id string, origin Origin) {
	_ = s.Update(origin, func(tx *Tx) error {
		tx.Purge(id)
		return nil
	})
}

// Batch groups local mutations; listeners fire once after fn returns. If fn
// fails every mutation it made is rolled back and nothing is reported.
func (s *Store) Batch(fn func(tx *Tx) error) error {
	return s.Update(OriginLocal, fn)
}

// Update is Batch with an explicit origin.
func (s *Store) Update(origin Origin, fn func(tx *Tx) error) error {
	s.mu.Lock()
	tx := &Tx{s: s, origin: origin, touched: make(map[string]*Change)}
	if err := fn(tx); err != nil {
		tx.rollback()
		s.mu.Unlock()
		return err
	}
	changes := tx.commit()
	if len(changes) > 0 {
		s.changed = s.now()
		if s.hook != nil {
			s.hook(changes)
		}
	}
	s.notifyMu.Lock()
	s.mu.Unlock()
	defer s.notifyMu.Unlock()

	if len(changes) > 0 {
		s.notify(changes)
	}
	return nil
}

// Replace swaps the whole content for snapshot. Records that differ are
// reported as changes with the given origin.
func (s *Store) Replace(snapshot map[string]models.Entity, origin Origin) error {
	return s.Update(origin, func(tx *Tx) error {
		for id := range s.data {
			if _, ok := snapshot[id]; !ok {
				tx.Purge(id)
			}
		}
		for id, e := range snapshot {
			if err := tx.put(id, e); err != nil {
				return err
			}
		}
		return nil
	})
}

// Snapshot returns a deep copy of every record.
func (s *Store) Snapshot() map[string]models.Entity {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make(map[string]models.Entity, len(s.data))
	for id, e := range s.data {
		out[id] = e.Clone()
	}
	return out
}

func (s *Store) Count() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.data)
}

// Changed returns the time of the last committed change.
func (s *Store) Changed() time.Time {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.changed
}

type listOptions struct {
	less           func(a, b models.Entity) int
	withoutDeleted bool
}

type ListOption func(*listOptions)

// SortBy orders the listed records with fn.
func SortBy(fn func(a, b models.Entity) int) ListOption {
	return func(o *listOptions) { o.less = fn }
}

// WithoutDeleted skips soft-deleted records.
func WithoutDeleted() ListOption {
	return func(o *listOptions) { o.withoutDeleted = true }
}

// ByCreatedAtDesc orders newest records first. Records not yet confirmed by
// the server have no createdAt and come first.
func ByCreatedAtDesc(a, b models.Entity) int {
	at, bt := a.CreatedAt(), b.CreatedAt()
	switch {
	case at.IsZero() && !bt.IsZero():
		return -1
	case !at.IsZero() && bt.IsZero():
		return 1
	}
	if c := bt.Compare(at); c != 0 {
		return c
	}
	return cmp.Compare(a.ID(), b.ID())
}

// List yields copies of the records. Order is unspecified unless SortBy is
// given.
func (s *Store) List(opts ...ListOption) iter.Seq[models.Entity] {
	var o listOptions
	for _, fn := range opts {
		fn(&o)
	}

	return func(yield func(models.Entity) bool) {
		s.mu.RLock()
		items := make([]models.Entity, 0, len(s.data))
		for _, e := range s.data {
			if o.withoutDeleted && e.Deleted() {
				continue
			}
			items = append(items, e.Clone())
		}
		s.mu.RUnlock()

		if o.less != nil {
			slices.SortFunc(items, o.less)
		}
		for _, e := range items {
			if !yield(e) {
				return
			}
		}
	}
}

// OnChange registers l and returns a function that removes it.
func (s *Store) OnChange(l Listener) (unsubscribe func()) {
	s.lmu.Lock()
	id := s.nextID
	s.nextID++
	s.listeners[id] = l
	s.lmu.Unlock()

	var once sync.Once
	return func() {
		once.Do(func() {
			s.lmu.Lock()
			delete(s.listeners, id)
			s.lmu.Unlock()
		})
	}
}

func (s *Store) notify(changes []Change) {
	s.lmu.Lock()
	ids := make([]int, 0, len(s.listeners))
	for id := range s.listeners {
		ids = append(ids, id)
	}
	slices.Sort(ids)
	ls := make([]Listener, 0, len(ids))
	for _, id := range ids {
		ls = append(ls, s.listeners[id])
	}
	s.lmu.Unlock()

	for _, l := range ls {
		l(changes)
	}
	if s.mirror != nil {
		s.mirror()
	}
}

// Tx is the mutation handle passed to Batch and Update. It is only valid
// inside the callback.
type Tx struct {
	s       *Store
	origin  Origin
	touched map[string]*Change
	order   []string
}

// Get reads a record including uncommitted changes of this batch.
func (tx *Tx) Get(id string) (models.Entity, bool) {
	e, ok := tx.s.data[id]
	if !ok {
		return nil, false
	}
	return e.Clone(), true
}

// Set merges fields into the record, creating it when absent.
func (tx *Tx) Set(id string, fields models.Entity) error {
	if id == "" {
		return ErrEmptyID
	}
	norm, err := models.Normalize(fields)
	if err != nil {
		return err
	}
	next := models.Entity{}
	if cur, ok := tx.s.data[id]; ok {
		next = cur.Clone()
	}
	models.Assign(next, norm)
	next[common.FieldID] = id
	return tx.put(id, next)
}

// Delete sets the deleted flag on an existing record.
func (tx *Tx) Delete(id string) error {
	if _, ok := tx.s.data[id]; !ok {
		return common.ErrorNotFound
	}
	return tx.Set(id, models.Entity{common.FieldDeleted: true})
}

// Purge removes the record entirely.
func (tx *Tx) Purge(id string) {
	cur, ok := tx.s.data[id]
	if !ok {
		return
	}
	tx.track(id, cur)
	delete(tx.s.data, id)
	delete(tx.s.prints, id)
}

// put stores e as the full record under id.
func (tx *Tx) put(id string, e models.Entity) error {
	norm, err := models.Normalize(e)
	if err != nil {
		return err
	}
	fp := models.Fingerprint(norm)
	cur, exists := tx.s.data[id]
	if exists && tx.s.prints[id] == fp {
		return nil
	}
	tx.track(id, cur)
	tx.s.data[id] = norm
	tx.s.prints[id] = fp
	return nil
}

func (tx *Tx) track(id string, prev models.Entity) {
	if _, ok := tx.touched[id]; ok {
		return
	}
	tx.touched[id] = &Change{ID: id, Origin: tx.origin, Prev: prev}
	tx.order = append(tx.order, id)
}

func (tx *Tx) rollback() {
	for _, id := range tx.order {
		c := tx.touched[id]
		if c.Prev == nil {
			delete(tx.s.data, id)
			delete(tx.s.prints, id)
			continue
		}
		tx.s.data[id] = c.Prev
		tx.s.prints[id] = models.Fingerprint(c.Prev)
	}
}

func (tx *Tx) commit() []Change {
	out := make([]Change, 0, len(tx.order))
	for _, id := range tx.order {
		c := tx.touched[id]
		next, ok := tx.s.data[id]
		if ok && c.Prev != nil && tx.s.prints[id] == models.Fingerprint(c.Prev) {
			continue
		}
		if !ok && c.Prev == nil {
			continue
		}
		ch := Change{ID: id, Origin: c.Origin, Prev: c.Prev.Clone()}
		if ok {
			ch.Next = next.Clone()
		}
		out = append(out, ch)
	}
	return out
}
