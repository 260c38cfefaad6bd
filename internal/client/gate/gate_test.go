package gate

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestGate_WaitBlocksUntilOpen(t *testing.T) {
	g := New()
	assert.False(t, g.IsOpen())

	done := make(chan struct{})
	go func() {
		defer close(done)
		ctx, cancel, err := g.Wait(context.Background())
		if !assert.NoError(t, err) {
			return
		}
		defer cancel()
		assert.NoError(t, ctx.Err())
	}()

	select {
	case <-done:
		t.Fatal("Wait returned before the gate opened")
	case <-time.After(20 * time.Millisecond):
	}

	g.Set(true)
	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("Wait did not return after open")
	}
}

func TestGate_CloseCancelsScopedContext(t *testing.T) {
	g := New()
	g.Set(true)

	ctx, cancel, err := g.Wait(context.Background())
	require.NoError(t, err)
	defer cancel()

	g.Set(false)
	select {
	case <-ctx.Done():
	case <-time.After(time.Second):
		t.Fatal("context not cancelled on close")
	}

	// reopening gives a fresh, live context
	g.Set(true)
	ctx2, cancel2, err := g.Wait(context.Background())
	require.NoError(t, err)
	defer cancel2()
	assert.NoError(t, ctx2.Err())
}

func TestGate_WaitHonorsCallerContext(t *testing.T) {
	g := New()
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Millisecond)
	defer cancel()

	_, _, err := g.Wait(ctx)
	assert.ErrorIs(t, err, context.DeadlineExceeded)
}

func TestGate_OnChange(t *testing.T) {
	g := New()
	var got []bool
	unsub := g.OnChange(func(open bool) { got = append(got, open) })

	g.Set(true)
	g.Set(true)
	g.Set(false)
	unsub()
	g.Set(true)

	assert.Equal(t, []bool{true, false}, got)
}
