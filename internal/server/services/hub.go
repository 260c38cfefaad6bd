package services

import (
	"sync"
)

// Event kinds published by ItemService.
const (
	EventCreate = "create"
	EventUpdate = "update"
	EventDelete = "delete"
)

// Event is one change to a stored record.
type Event struct {
	Kind      string
	Model     string
	AccountID string
	Item      map[string]any
}

type subscriber struct {
	model     string
	accountID string
	kind      string
	ch        chan Event
}

// Hub fans out item events to the subscribers of a model, account and kind.
// Publishing never blocks: a subscriber whose buffer is full misses the
// event, which is fine because subscribers only use events as a hint to pull.
type Hub struct {
	mu     sync.RWMutex
	nextID int
	subs   map[int]*subscriber
	buffer int
}

func NewHub(buffer int) *Hub {
	if buffer <= 0 {
		buffer = 1
	}
	return &Hub{subs: make(map[int]*subscriber), buffer: buffer}
}

// Subscribe registers interest in events of kind for model and accountID.
// The returned cancel function closes the channel; it is safe to call twice.
func (h *Hub) Subscribe(model, accountID, kind string) (<-chan Event, func()) {
	h.mu.Lock()
	defer h.mu.Unlock()

	id := h.nextID
	h.nextID++
	s := &subscriber{model: model, accountID: accountID, kind: kind, ch: make(chan Event, h.buffer)}
	h.subs[id] = s

	var once sync.Once
	return s.ch, func() {
		once.Do(func() {
			h.mu.Lock()
			delete(h.subs, id)
			h.mu.Unlock()
			close(s.ch)
		})
	}
}

func (h *Hub) Publish(ev Event) {
	h.mu.RLock()
	defer h.mu.RUnlock()

	for _, s := range h.subs {
		if s.model != ev.Model || s.accountID != ev.AccountID || s.kind != ev.Kind {
			continue
		}
		select {
		case s.ch <- ev:
		default:
		}
	}
}

// Subscribers reports how many subscriptions are open.
func (h *Hub) Subscribers() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.subs)
}
