package services

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestHub_RoutesByModelAccountAndKind(t *testing.T) {
	h := NewHub(4)

	todoCreates, cancel1 := h.Subscribe("todo", "acc", EventCreate)
	defer cancel1()
	todoUpdates, cancel2 := h.Subscribe("todo", "acc", EventUpdate)
	defer cancel2()
	otherAccount, cancel3 := h.Subscribe("todo", "other", EventCreate)
	defer cancel3()

	h.Publish(Event{Kind: EventCreate, Model: "todo", AccountID: "acc", Item: map[string]any{"id": "1"}})

	ev := <-todoCreates
	require.Equal(t, "1", ev.Item["id"])
	require.Empty(t, todoUpdates)
	require.Empty(t, otherAccount)
}

func TestHub_FullBufferDropsEvents(t *testing.T) {
	h := NewHub(1)
	ch, cancel := h.Subscribe("todo", "acc", EventUpdate)
	defer cancel()

	for i := 0; i < 3; i++ {
		h.Publish(Event{Kind: EventUpdate, Model: "todo", AccountID: "acc"})
	}
	require.Len(t, ch, 1)
}

func TestHub_CancelClosesChannel(t *testing.T) {
	h := NewHub(1)
	ch, cancel := h.Subscribe("todo", "acc", EventDelete)
	require.Equal(t, 1, h.Subscribers())

	cancel()
	cancel()

	_, ok := <-ch
	require.False(t, ok)
	require.Equal(t, 0, h.Subscribers())

	// publishing after cancel must not panic
	h.Publish(Event{Kind: EventDelete, Model: "todo", AccountID: "acc"})
}
