// Package gate implements the readiness signal the application shell flips
// when the user signs in or out.
package gate

import (
	"context"
	"slices"
	"sync"
)

// Gate is a boolean with change notification. Network work scoped by Wait is
// cancelled as soon as the gate closes.
type Gate struct {
	mu        sync.Mutex
	open      bool
	opened    chan struct{} // closed while the gate is open
	ctx       context.Context
	cancel    context.CancelFunc
	listeners map[int]func(bool)
	nextID    int
}

func New() *Gate {
	return &Gate{
		opened:    make(chan struct{}),
		listeners: make(map[int]func(bool)),
	}
}

// Set opens or closes the gate. Setting the current value is a no-op.
func (g *Gate) Set(open bool) {
	g.mu.Lock()
	if g.open == open {
		g.mu.Unlock()
		return
	}
	g.open = open
	if open {
		g.ctx, g.cancel = context.WithCancel(context.Background())
		close(g.opened)
	} else {
		g.cancel()
		g.ctx, g.cancel = nil, nil
		g.opened = make(chan struct{})
	}
	ids := make([]int, 0, len(g.listeners))
	for id := range g.listeners {
		ids = append(ids, id)
	}
	slices.Sort(ids)
	ls := make([]func(bool), 0, len(ids))
	for _, id := range ids {
		ls = append(ls, g.listeners[id])
	}
	g.mu.Unlock()

	for _, l := range ls {
		l(open)
	}
}

func (g *Gate) IsOpen() bool {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.open
}

// Wait blocks until the gate is open or ctx is done. The returned context
// is derived from ctx and is also cancelled when the gate closes.
func (g *Gate) Wait(ctx context.Context) (context.Context, context.CancelFunc, error) {
	for {
		g.mu.Lock()
		if g.open {
			gctx := g.ctx
			g.mu.Unlock()

			out, cancel := context.WithCancel(ctx)
			stop := context.AfterFunc(gctx, cancel)
			return out, func() {
				stop()
				cancel()
			}, nil
		}
		opened := g.opened
		g.mu.Unlock()

		select {
		case <-ctx.Done():
			return nil, nil, ctx.Err()
		case <-opened:
		}
	}
}

// OnChange registers fn to be called with the new state after every change.
func (g *Gate) OnChange(fn func(open bool)) (unsubscribe func()) {
	g.mu.Lock()
	id := g.nextID
	g.nextID++
	g.listeners[id] = fn
	g.mu.Unlock()

	return func() {
		g.mu.Lock()
		delete(g.listeners, id)
		g.mu.Unlock()
	}
}
