package client

import (
	"context"
	"errors"
	"io"
	"sync"

	"github.com/dmitrijs2005/gophsync/internal/client/models"
	"github.com/dmitrijs2005/gophsync/internal/client/remote"
	"github.com/dmitrijs2005/gophsync/internal/rpc"
)

// subscriptionBuffer bounds notifications queued for a slow consumer;
// extra ones are dropped since the consumer pulls anyway.
const subscriptionBuffer = 64

type modelRemote struct {
	c     *GRPCClient
	model string
}

func (r *modelRemote) List(ctx context.Context, f remote.ListFilter, p remote.Pagination) (remote.ListResult, error) {
	req := &rpc.ListRequest{
		Model:         r.model,
		AccountID:     f.AccountID,
		Limit:         p.Limit,
		NextToken:     p.NextToken,
		SortDirection: string(p.SortDirection),
	}
	if !f.UpdatedAfter.IsZero() {
		req.UpdatedAfter = models.FormatTime(f.UpdatedAfter)
	}

	resp, err := r.c.client.List(ctx, req)
	if err != nil {
		return remote.ListResult{}, r.c.mapError(err)
	}

	out := remote.ListResult{NextToken: resp.NextToken, Items: make([]models.Entity, 0, len(resp.Items))}
	for _, it := range resp.Items {
		out.Items = append(out.Items, models.Entity(it))
	}
	return out, nil
}

func (r *modelRemote) Create(ctx context.Context, e models.Entity) (models.Entity, error) {
	resp, err := r.c.client.Create(ctx, &rpc.MutateRequest{Model: r.model, Item: e})
	if err != nil {
		return nil, r.c.mapMutationError(err, r.model, "create", e.ID())
	}
	return models.Entity(resp.Item), nil
}

func (r *modelRemote) Update(ctx context.Context, e models.Entity) (models.Entity, error) {
	resp, err := r.c.client.Update(ctx, &rpc.MutateRequest{Model: r.model, Item: e})
	if err != nil {
		return nil, r.c.mapMutationError(err, r.model, "update", e.ID())
	}
	return models.Entity(resp.Item), nil
}

func (r *modelRemote) Subscribe(ctx context.Context, ev remote.Event) (remote.Subscription, error) {
	sctx, cancel := context.WithCancel(ctx)
	stream, err := r.c.client.Subscribe(sctx, &rpc.SubscribeRequest{Model: r.model, Event: string(ev)})
	if err != nil {
		cancel()
		return nil, r.c.mapError(err)
	}

	s := &subscription{ch: make(chan models.Entity, subscriptionBuffer), cancel: cancel}
	go s.run(sctx, stream, r.c.mapError)
	return s, nil
}

type subscription struct {
	ch     chan models.Entity
	cancel context.CancelFunc

	mu  sync.Mutex
	err error
}

var errStreamEnded = errors.New("server closed the subscription")

func (s *subscription) run(ctx context.Context, stream rpc.SubscribeClient, mapErr func(error) error) {
	defer close(s.ch)
	for {
		msg, err := stream.Recv()
		if err != nil {
			if ctx.Err() != nil {
				// unsubscribed
				return
			}
			if errors.Is(err, io.EOF) {
				err = errStreamEnded
			} else {
				err = mapErr(err)
			}
			s.mu.Lock()
			s.err = err
			s.mu.Unlock()
			return
		}
		select {
		case s.ch <- models.Entity(msg.Item):
		default:
		}
	}
}

func (s *subscription) Events() <-chan models.Entity { return s.ch }

func (s *subscription) Err() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.err
}

func (s *subscription) Unsubscribe() { s.cancel() }
