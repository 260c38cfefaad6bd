// Package feed turns the per-event server subscriptions of a model into one
// stream of change notifications. Notifications carry no data: consumers
// react by pulling.
package feed

import (
	"context"
	"errors"
	"sync"

	"github.com/dmitrijs2005/gophsync/internal/client/remote"
	"github.com/dmitrijs2005/gophsync/internal/logging"
	"github.com/dmitrijs2005/gophsync/internal/netx"
)

// ReasonResubscribed is reported after a broken stream was re-established,
// since notifications may have been missed while it was down.
const ReasonResubscribed remote.Event = "resubscribed"

var errStreamClosed = errors.New("subscription stream closed")

// Event is the single internal notification every channel is folded into.
type Event struct {
	Reason remote.Event
	Model  string
	ID     string
}

type Feed struct {
	model   string
	remote  remote.Remote
	log     logging.Logger
	backoff netx.Backoff
	onError func(error)
}

type Option func(*Feed)

func WithBackoff(b netx.Backoff) Option {
	return func(f *Feed) { f.backoff = b }
}

// WithErrorHandler receives every subscribe or stream failure.
func WithErrorHandler(fn func(error)) Option {
	return func(f *Feed) { f.onError = fn }
}

func New(model string, r remote.Remote, log logging.Logger, opts ...Option) *Feed {
	f := &Feed{model: model, remote: r, log: log.With("model", model)}
	for _, o := range opts {
		o(f)
	}
	return f
}

// Subscribe opens one subscription per event type and calls onChange for
// every notification, one call at a time. The returned function cancels all
// subscriptions and waits until no callback is running or will run. It must
// not be called from inside onChange.
func (f *Feed) Subscribe(ctx context.Context, onChange func(Event)) (unsubscribe func()) {
	ctx, cancel := context.WithCancel(ctx)
	out := make(chan Event)

	var watchers sync.WaitGroup
	for _, ev := range remote.Events() {
		watchers.Add(1)
		go func() {
			defer watchers.Done()
			f.watch(ctx, ev, out)
		}()
	}

	dispatched := make(chan struct{})
	go func() {
		defer close(dispatched)
		for {
			select {
			case <-ctx.Done():
				return
			case e := <-out:
				onChange(e)
			}
		}
	}()

	var once sync.Once
	return func() {
		once.Do(func() {
			cancel()
			watchers.Wait()
			<-dispatched
		})
	}
}

func (f *Feed) watch(ctx context.Context, ev remote.Event, out chan<- Event) {
	first := true
	for ctx.Err() == nil {
		var sub remote.Subscription
		err := netx.Do(ctx, f.backoff, func(ctx context.Context) error {
			s, err := f.remote.Subscribe(ctx, ev)
			if err != nil {
				return err
			}
			sub = s
			return nil
		}, f.report)
		if err != nil {
			if ctx.Err() == nil {
				f.log.Error(ctx, "subscription failed", "event", ev, "error", err)
			}
			return
		}

		if !first {
			f.log.Info(ctx, "subscription re-established", "event", ev)
			if !send(ctx, out, Event{Reason: ReasonResubscribed, Model: f.model}) {
				sub.Unsubscribe()
				return
			}
		}
		first = false

		f.drain(ctx, ev, sub, out)
		sub.Unsubscribe()
		if ctx.Err() != nil {
			return
		}

		serr := sub.Err()
		if serr == nil {
			serr = errStreamClosed
		}
		f.log.Warn(ctx, "subscription broken", "event", ev, "error", serr)
		f.report(serr)

		// pause before reconnecting so a server that drops every stream
		// right away is not hammered
		if netx.Sleep(ctx, f.backoff.Initial()) != nil {
			return
		}
	}
}

func (f *Feed) drain(ctx context.Context, ev remote.Event, sub remote.Subscription, out chan<- Event) {
	for {
		select {
		case <-ctx.Done():
			return
		case e, ok := <-sub.Events():
			if !ok {
				return
			}
			if !send(ctx, out, Event{Reason: ev, Model: f.model, ID: e.ID()}) {
				return
			}
		}
	}
}

func (f *Feed) report(err error) {
	if f.onError != nil {
		f.onError(err)
	}
}

func send(ctx context.Context, out chan<- Event, e Event) bool {
	select {
	case <-ctx.Done():
		return false
	case out <- e:
		return true
	}
}
