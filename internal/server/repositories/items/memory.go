package items

import (
	"context"
	"maps"
	"slices"
	"strings"
	"sync"

	"github.com/dmitrijs2005/gophsync/internal/common"
	"github.com/dmitrijs2005/gophsync/internal/server/models"
)

// MemoryRepository keeps items in a map. It is safe for concurrent use and
// returns copies, so callers may modify what they get.
type MemoryRepository struct {
	mu    sync.RWMutex
	items map[string]*models.Item
}

func NewMemoryRepository() *MemoryRepository {
	return &MemoryRepository{items: make(map[string]*models.Item)}
}

func key(model, id string) string { return model + "/" + id }

func clone(it *models.Item) *models.Item {
	c := *it
	c.Data = maps.Clone(it.Data)
	if c.Data == nil {
		c.Data = map[string]any{}
	}
	return &c
}

func (r *MemoryRepository) Create(ctx context.Context, item *models.Item) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	k := key(item.Model, item.ID)
	if _, ok := r.items[k]; ok {
		return common.ErrorConflict
	}
	r.items[k] = clone(item)
	return nil
}

func (r *MemoryRepository) Get(ctx context.Context, model, id string) (*models.Item, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	it, ok := r.items[key(model, id)]
	if !ok {
		return nil, common.ErrorNotFound
	}
	return clone(it), nil
}

func (r *MemoryRepository) Update(ctx context.Context, item *models.Item) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	cur, ok := r.items[key(item.Model, item.ID)]
	if !ok {
		return common.ErrorNotFound
	}
	cur.Data = maps.Clone(item.Data)
	cur.Deleted = item.Deleted
	cur.UpdatedAt = item.UpdatedAt
	return nil
}

func (r *MemoryRepository) List(ctx context.Context, q ListQuery) ([]*models.Item, error) {
	r.mu.RLock()
	var out []*models.Item
	for _, it := range r.items {
		if it.Model != q.Model || it.AccountID != q.AccountID || !it.UpdatedAt.After(q.UpdatedAfter) {
			continue
		}
		if q.After != nil {
			c := compare(it, q.After)
			if (q.Desc && c >= 0) || (!q.Desc && c <= 0) {
				continue
			}
		}
		out = append(out, clone(it))
	}
	r.mu.RUnlock()

	slices.SortFunc(out, func(a, b *models.Item) int {
		c := compare(a, &Cursor{UpdatedAt: b.UpdatedAt, ID: b.ID})
		if q.Desc {
			return -c
		}
		return c
	})
	if q.Limit > 0 && len(out) > q.Limit {
		out = out[:q.Limit]
	}
	return out, nil
}

func compare(it *models.Item, c *Cursor) int {
	if n := it.UpdatedAt.Compare(c.UpdatedAt); n != 0 {
		return n
	}
	return strings.Compare(it.ID, c.ID)
}
