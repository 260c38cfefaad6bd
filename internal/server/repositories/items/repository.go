package items

import (
	"context"
	"time"

	"github.com/dmitrijs2005/gophsync/internal/server/models"
)

// Cursor is the keyset position of the last item of a page.
type Cursor struct {
	UpdatedAt time.Time
	ID        string
}

// ListQuery selects the items of one model and account updated strictly
// after UpdatedAfter. Results are ordered by (updatedAt, id), descending when
// Desc is set, and start after the After cursor when it is given.
type ListQuery struct {
	Model        string
	AccountID    string
	UpdatedAfter time.Time
	After        *Cursor
	Desc         bool
	Limit        int
}

type Repository interface {
	// Create inserts a new item. It returns common.ErrorConflict when an item
	// with the same model and id already exists.
	Create(ctx context.Context, item *models.Item) error
	// Get returns common.ErrorNotFound when the item does not exist.
	Get(ctx context.Context, model, id string) (*models.Item, error)
	// Update replaces data, the deleted flag and updatedAt of an existing item.
	Update(ctx context.Context, item *models.Item) error
	List(ctx context.Context, q ListQuery) ([]*models.Item, error)
}
