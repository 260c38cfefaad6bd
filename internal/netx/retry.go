// Package netx holds the retry policy applied to every network call the
// client makes.
package netx

import (
	"context"
	"errors"
	"time"

	"github.com/dmitrijs2005/gophsync/internal/common"
	"github.com/sethvargo/go-retry"
)

const (
	DefaultBaseDelay = time.Second
	DefaultMaxDelay  = 30 * time.Second
)

// Backoff is a capped exponential delay sequence.
type Backoff struct {
	Base time.Duration
	Max  time.Duration
}

func (b Backoff) withDefaults() Backoff {
	if b.Base <= 0 {
		b.Base = DefaultBaseDelay
	}
	if b.Max <= 0 {
		b.Max = DefaultMaxDelay
	}
	if b.Max < b.Base {
		b.Max = b.Base
	}
	return b
}

// Initial is the first delay of the sequence.
func (b Backoff) Initial() time.Duration {
	return b.withDefaults().Base
}

func (b Backoff) policy() retry.Backoff {
	b = b.withDefaults()
	return retry.WithCappedDuration(b.Max, retry.NewExponential(b.Base))
}

// Do calls fn until it succeeds. Transient failures are retried forever
// with backoff; any other failure, or the end of ctx, stops the loop and is
// returned. onErr, when not nil, sees every failed attempt.
func Do(ctx context.Context, b Backoff, fn func(ctx context.Context) error, onErr func(error)) error {
	return retry.Do(ctx, b.policy(), func(ctx context.Context) error {
		err := fn(ctx)
		if err == nil {
			return nil
		}
		if ctxErr := ctx.Err(); ctxErr != nil {
			return ctxErr
		}
		if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
			return err
		}
		if onErr != nil {
			onErr(err)
		}
		if common.IsTransient(err) {
			return retry.RetryableError(err)
		}
		return err
	})
}

// Sleep waits for d or until ctx is done.
func Sleep(ctx context.Context, d time.Duration) error {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}
