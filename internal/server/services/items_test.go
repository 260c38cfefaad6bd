package services

import (
	"context"
	"testing"
	"time"

	"github.com/dmitrijs2005/gophsync/internal/common"
	"github.com/dmitrijs2005/gophsync/internal/dbx"
	"github.com/dmitrijs2005/gophsync/internal/logging"
	"github.com/dmitrijs2005/gophsync/internal/server/models"
	"github.com/dmitrijs2005/gophsync/internal/server/repositories/items"
	"github.com/dmitrijs2005/gophsync/internal/server/repositories/repomanager"
	"github.com/dmitrijs2005/gophsync/internal/shared"
	"github.com/stretchr/testify/require"
)

func newItemService(t *testing.T, pageMax int) (*ItemService, *Hub) {
	t.Helper()
	hub := NewHub(8)
	s := NewItemService(nil, repomanager.NewMemoryRepositoryManager(), hub, pageMax, logging.Nop())
	return s, hub
}

func parseTime(t *testing.T, v any) time.Time {
	t.Helper()
	ts, err := time.Parse(TimeLayout, v.(string))
	require.NoError(t, err)
	return ts
}

// fixedClock makes every call return the same instant.
func fixedClock(s *ItemService, at time.Time) {
	s.now = func() time.Time { return at }
}

func TestItemService_CreateAssignsTimestampsAndPublishes(t *testing.T) {
	s, hub := newItemService(t, 10)
	ctx := context.Background()
	events, cancel := hub.Subscribe("todo", "acc", EventCreate)
	defer cancel()

	got, err := s.Create(ctx, "acc", "todo", map[string]any{
		"id": "t1", "title": "milk", "completed": false, "updatedAt": "1999-01-01T00:00:00Z",
	})
	require.NoError(t, err)
	require.Equal(t, "t1", got["id"])
	require.Equal(t, "acc", got["accountId"])
	require.Equal(t, false, got["deleted"])
	require.Equal(t, got["createdAt"], got["updatedAt"])
	require.NotEqual(t, "1999-01-01T00:00:00Z", got["updatedAt"])

	ev := <-events
	require.Equal(t, "t1", ev.Item["id"])
}

func TestItemService_CreateIsIdempotentPerAccount(t *testing.T) {
	s, hub := newItemService(t, 10)
	ctx := context.Background()

	first, err := s.Create(ctx, "acc", "todo", map[string]any{"id": "t1", "title": "milk"})
	require.NoError(t, err)

	events, cancel := hub.Subscribe("todo", "acc", EventCreate)
	defer cancel()

	again, err := s.Create(ctx, "acc", "todo", map[string]any{"id": "t1", "title": "bread"})
	require.NoError(t, err)
	require.Equal(t, first, again)
	require.Empty(t, events)

	_, err = s.Create(ctx, "intruder", "todo", map[string]any{"id": "t1", "title": "x"})
	require.ErrorIs(t, err, common.ErrorConflict)
}

func TestItemService_CreateGeneratesID(t *testing.T) {
	s, _ := newItemService(t, 10)

	got, err := s.Create(context.Background(), "acc", "client", map[string]any{"name": "ACME"})
	require.NoError(t, err)
	require.Len(t, got["id"], 36)
}

func TestItemService_CreateRejectsInvalid(t *testing.T) {
	s, _ := newItemService(t, 10)
	ctx := context.Background()

	var ve *common.ValidationError
	_, err := s.Create(ctx, "acc", "todo", map[string]any{"id": "t1"})
	require.ErrorAs(t, err, &ve)
	require.Equal(t, "create", ve.Op)

	_, err = s.Create(ctx, "acc", "todo", map[string]any{"id": "t1", "title": "x", "accountId": "other"})
	require.ErrorAs(t, err, &ve)

	_, err = s.Create(ctx, "acc", "nope", map[string]any{"id": "t1"})
	require.ErrorIs(t, err, shared.ErrUnknownModel)
}

func TestItemService_UpdateMergesAndSoftDeletes(t *testing.T) {
	s, hub := newItemService(t, 10)
	ctx := context.Background()

	created, err := s.Create(ctx, "acc", "todo", map[string]any{"id": "t1", "title": "milk", "note": "2l"})
	require.NoError(t, err)

	updated, err := s.Update(ctx, "acc", "todo", map[string]any{"id": "t1", "completed": true, "note": nil})
	require.NoError(t, err)
	require.Equal(t, "milk", updated["title"])
	require.Equal(t, true, updated["completed"])
	require.NotContains(t, updated, "note")
	require.Equal(t, created["createdAt"], updated["createdAt"])
	require.True(t, parseTime(t, updated["updatedAt"]).After(parseTime(t, created["updatedAt"])))

	deletes, cancel := hub.Subscribe("todo", "acc", EventDelete)
	defer cancel()

	gone, err := s.Update(ctx, "acc", "todo", map[string]any{"id": "t1", "deleted": true})
	require.NoError(t, err)
	require.Equal(t, true, gone["deleted"])
	require.Equal(t, "t1", (<-deletes).Item["id"])

	page, err := s.List(ctx, "acc", ListParams{Model: "todo", Desc: true})
	require.NoError(t, err)
	require.Len(t, page.Items, 1)
	require.Equal(t, true, page.Items[0]["deleted"])
}

func TestItemService_UpdateErrors(t *testing.T) {
	s, _ := newItemService(t, 10)
	ctx := context.Background()

	_, err := s.Create(ctx, "acc", "todo", map[string]any{"id": "t1", "title": "milk"})
	require.NoError(t, err)

	var ve *common.ValidationError
	_, err = s.Update(ctx, "acc", "todo", map[string]any{"title": "x"})
	require.ErrorAs(t, err, &ve)

	_, err = s.Update(ctx, "acc", "todo", map[string]any{"id": "t1", "title": ""})
	require.ErrorAs(t, err, &ve)

	_, err = s.Update(ctx, "acc", "todo", map[string]any{"id": "missing", "title": "x"})
	require.ErrorIs(t, err, common.ErrorNotFound)

	_, err = s.Update(ctx, "other", "todo", map[string]any{"id": "t1", "title": "x"})
	require.ErrorIs(t, err, common.ErrorNotFound)
}

func TestItemService_TimestampsStrictlyIncrease(t *testing.T) {
	s, _ := newItemService(t, 10)
	at := time.Date(2025, 5, 1, 0, 0, 0, 123456789, time.UTC)
	fixedClock(s, at)

	a := s.timestamp()
	b := s.timestamp()
	require.Equal(t, at.Truncate(time.Microsecond), a)
	require.Equal(t, a.Add(time.Microsecond), b)
}

func TestItemService_ListPaginatesDescending(t *testing.T) {
	s, _ := newItemService(t, 2)
	ctx := context.Background()

	for _, id := range []string{"a", "b", "c", "d", "e"} {
		_, err := s.Create(ctx, "acc", "todo", map[string]any{"id": id, "title": id})
		require.NoError(t, err)
	}

	var (
		got   []string
		token string
		calls int
	)
	for {
		page, err := s.List(ctx, "acc", ListParams{Model: "todo", Limit: 100, NextToken: token, Desc: true})
		require.NoError(t, err)
		calls++
		for _, it := range page.Items {
			got = append(got, it["id"].(string))
		}
		if page.NextToken == "" {
			break
		}
		token = page.NextToken
	}
	require.Equal(t, []string{"e", "d", "c", "b", "a"}, got)
	require.Equal(t, 3, calls)
}

func TestItemService_ListUpdatedAfterIsExclusive(t *testing.T) {
	s, _ := newItemService(t, 10)
	ctx := context.Background()

	first, err := s.Create(ctx, "acc", "todo", map[string]any{"id": "a", "title": "a"})
	require.NoError(t, err)
	_, err = s.Create(ctx, "acc", "todo", map[string]any{"id": "b", "title": "b"})
	require.NoError(t, err)

	watermark := parseTime(t, first["updatedAt"])

	page, err := s.List(ctx, "acc", ListParams{Model: "todo", UpdatedAfter: watermark})
	require.NoError(t, err)
	require.Len(t, page.Items, 1)
	require.Equal(t, "b", page.Items[0]["id"])

	page, err = s.List(ctx, "other", ListParams{Model: "todo"})
	require.NoError(t, err)
	require.Empty(t, page.Items)
}

func TestItemService_ListRejectsBadToken(t *testing.T) {
	s, _ := newItemService(t, 10)

	_, err := s.List(context.Background(), "acc", ListParams{Model: "todo", NextToken: "%%%"})
	require.ErrorIs(t, err, ErrInvalidPageToken)

	_, err = s.List(context.Background(), "acc", ListParams{Model: "todo", NextToken: encodePageToken(items.Cursor{})})
	require.ErrorIs(t, err, ErrInvalidPageToken)
}

type failingItems struct{ items.Repository }

func (failingItems) List(context.Context, items.ListQuery) ([]*models.Item, error) {
	return nil, errStorage
}

type failingManager struct{ repomanager.RepositoryManager }

func (failingManager) Items(dbx.DBTX) items.Repository { return failingItems{} }

func TestItemService_ListWrapsStorageError(t *testing.T) {
	s := NewItemService(nil, failingManager{}, NewHub(1), 10, logging.Nop())

	_, err := s.List(context.Background(), "acc", ListParams{Model: "todo"})
	require.Error(t, err)
	require.ErrorIs(t, err, errStorage)
}
