package syncer

import (
	"slices"
	"time"
)

// State is the activity of a collection.
type State string

const (
	StateWaitingForReadiness State = "waiting_for_readiness"
	StateIdle                State = "idle"
	StatePulling             State = "pulling"
	StatePushing             State = "pushing"
)

// Status is a point-in-time view of a collection.
type Status struct {
	Model string `json:"model"`
	State State  `json:"state"`
	// IsPersistLoaded is set once the persisted tables were read.
	IsPersistLoaded bool `json:"isPersistLoaded"`
	// IsLoaded is set once a full sweep completed.
	IsLoaded  bool      `json:"isLoaded"`
	LastSync  time.Time `json:"lastSync"`
	Pending   int       `json:"pending"`
	Records   int       `json:"records"`
	Changed   time.Time `json:"changed"`
	LastError error     `json:"-"`
}

func (c *Collection) Status() Status {
	open := c.e.gate.IsOpen()

	c.mu.Lock()
	st := Status{
		Model:           c.model.Name,
		IsPersistLoaded: c.persistLoaded,
		IsLoaded:        c.loaded,
		LastSync:        c.lastSync,
		Pending:         c.q.len(),
		LastError:       c.lastErr,
	}
	switch {
	case !open:
		st.State = StateWaitingForReadiness
	case c.pulling:
		st.State = StatePulling
	case len(c.q.inflight) > 0:
		st.State = StatePushing
	default:
		st.State = StateIdle
	}
	c.mu.Unlock()

	st.Records = c.store.Count()
	st.Changed = c.store.Changed()
	return st
}

// OnStatus registers fn to receive the status after every change.
func (c *Collection) OnStatus(fn func(Status)) (unsubscribe func()) {
	c.mu.Lock()
	id := c.nextLs
	c.nextLs++
	c.statusLs[id] = fn
	c.mu.Unlock()

	return func() {
		c.mu.Lock()
		delete(c.statusLs, id)
		c.mu.Unlock()
	}
}

func (c *Collection) notifyStatus() {
	c.mu.Lock()
	if len(c.statusLs) == 0 {
		c.mu.Unlock()
		return
	}
	ids := make([]int, 0, len(c.statusLs))
	for id := range c.statusLs {
		ids = append(ids, id)
	}
	slices.Sort(ids)
	ls := make([]func(Status), 0, len(ids))
	for _, id := range ids {
		ls = append(ls, c.statusLs[id])
	}
	c.mu.Unlock()

	st := c.Status()
	for _, fn := range ls {
		fn(st)
	}
}
