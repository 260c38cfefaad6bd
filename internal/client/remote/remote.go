// Package remote defines what the sync engine needs from the backend of one
// model. The gRPC implementation lives in the client package; tests use
// in-process fakes.
package remote

import (
	"context"
	"time"

	"github.com/dmitrijs2005/gophsync/internal/client/models"
)

// Event names a server-side notification channel.
type Event string

const (
	EventCreate Event = "create"
	EventUpdate Event = "update"
	EventDelete Event = "delete"
)

// Events lists every channel the change feed subscribes to.
func Events() []Event {
	return []Event{EventCreate, EventUpdate, EventDelete}
}

type SortDirection string

const (
	SortDesc SortDirection = "DESC"
	SortAsc  SortDirection = "ASC"
)

// ListFilter restricts a List call. Records with updatedAt strictly after
// UpdatedAfter are returned; a zero UpdatedAfter returns everything.
type ListFilter struct {
	AccountID    string
	UpdatedAfter time.Time
}

type Pagination struct {
	Limit         int
	NextToken     string
	SortDirection SortDirection
}

// ListResult is one page. An empty NextToken means there are no more pages.
type ListResult struct {
	Items     []models.Entity
	NextToken string
}

// Subscription delivers the records touched by one event type until
// Unsubscribe is called or the stream breaks, at which point Events is
// closed and Err reports the cause.
type Subscription interface {
	Events() <-chan models.Entity
	Err() error
	Unsubscribe()
}

// Remote is the backend of a single model.
type Remote interface {
	List(ctx context.Context, filter ListFilter, page Pagination) (ListResult, error)
	Create(ctx context.Context, e models.Entity) (models.Entity, error)
	Update(ctx context.Context, e models.Entity) (models.Entity, error)
	Subscribe(ctx context.Context, ev Event) (Subscription, error)
}
