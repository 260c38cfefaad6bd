package services

import (
	"context"
	"database/sql"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"maps"
	"sync"
	"time"

	"github.com/dmitrijs2005/gophsync/internal/common"
	"github.com/dmitrijs2005/gophsync/internal/dbx"
	"github.com/dmitrijs2005/gophsync/internal/logging"
	"github.com/dmitrijs2005/gophsync/internal/server/models"
	"github.com/dmitrijs2005/gophsync/internal/server/repositories/items"
	"github.com/dmitrijs2005/gophsync/internal/server/repositories/repomanager"
	"github.com/dmitrijs2005/gophsync/internal/shared"
	"github.com/google/uuid"
)

// TimeLayout is the format of createdAt and updatedAt on the wire.
const TimeLayout = time.RFC3339Nano

var ErrInvalidPageToken = errors.New("invalid page token")

// ListParams selects a page of items of one model.
type ListParams struct {
	Model        string
	UpdatedAfter time.Time
	Limit        int
	NextToken    string
	Desc         bool
}

// Page is one List result. NextToken is empty on the last page.
type Page struct {
	Items     []map[string]any
	NextToken string
}

// ItemService stores the records of every model, assigns createdAt and
// updatedAt and publishes a hub event for each change.
type ItemService struct {
	db          *sql.DB
	repomanager repomanager.RepositoryManager
	hub         *Hub
	maxPageSize int
	log         logging.Logger

	clockMu sync.Mutex
	last    time.Time
	now     func() time.Time
}

func NewItemService(db *sql.DB, m repomanager.RepositoryManager, hub *Hub, maxPageSize int, log logging.Logger) *ItemService {
	return &ItemService{
		db:          db,
		repomanager: m,
		hub:         hub,
		maxPageSize: maxPageSize,
		log:         log.With("service", "items"),
		now:         time.Now,
	}
}

// timestamp returns a strictly increasing time at microsecond precision,
// the resolution PostgreSQL keeps. Clients use updatedAt as an exclusive
// watermark, so two changes must never share one.
func (s *ItemService) timestamp() time.Time {
	s.clockMu.Lock()
	defer s.clockMu.Unlock()

	t := s.now().UTC().Truncate(time.Microsecond)
	if !t.After(s.last) {
		t = s.last.Add(time.Microsecond)
	}
	s.last = t
	return t
}

// List returns items of p.Model owned by accountID with updatedAt strictly
// after p.UpdatedAfter, ordered by (updatedAt, id).
func (s *ItemService) List(ctx context.Context, accountID string, p ListParams) (*Page, error) {
	if _, err := shared.Lookup(p.Model); err != nil {
		return nil, err
	}

	limit := p.Limit
	if limit <= 0 || limit > s.maxPageSize {
		limit = s.maxPageSize
	}

	q := items.ListQuery{
		Model:        p.Model,
		AccountID:    accountID,
		UpdatedAfter: p.UpdatedAfter.UTC(),
		Desc:         p.Desc,
		Limit:        limit + 1,
	}
	if p.NextToken != "" {
		c, err := decodePageToken(p.NextToken)
		if err != nil {
			return nil, err
		}
		q.After = c
	}

	rows, err := s.repomanager.Items(s.db).List(ctx, q)
	if err != nil {
		return nil, fmt.Errorf("error listing items: %w", err)
	}

	page := &Page{Items: make([]map[string]any, 0, min(len(rows), limit))}
	if len(rows) > limit {
		rows = rows[:limit]
		last := rows[len(rows)-1]
		page.NextToken = encodePageToken(items.Cursor{UpdatedAt: last.UpdatedAt, ID: last.ID})
	}
	for _, it := range rows {
		page.Items = append(page.Items, toRecord(it))
	}
	return page, nil
}

// Create stores a new record. Creating an id that already exists in the same
// account returns the stored record unchanged, so a retried create is
// harmless. A record without an id gets a generated one.
func (s *ItemService) Create(ctx context.Context, accountID, model string, record map[string]any) (map[string]any, error) {
	m, err := shared.Lookup(model)
	if err != nil {
		return nil, err
	}
	if err := checkAccount(model, "create", accountID, record); err != nil {
		return nil, err
	}
	if err := m.Validate("create", record, false); err != nil {
		return nil, err
	}

	id, _ := record[common.FieldID].(string)
	if id == "" {
		id = uuid.NewString()
	}
	deleted, _ := record[common.FieldDeleted].(bool)

	var (
		result  *models.Item
		created bool
	)
	err = dbx.WithTx(ctx, s.db, nil, func(ctx context.Context, tx dbx.DBTX) error {
		repo := s.repomanager.Items(tx)

		existing, err := s.existing(ctx, repo, model, id, accountID)
		if err != nil || existing != nil {
			result = existing
			return err
		}

		now := s.timestamp()
		item := &models.Item{
			Model:     model,
			ID:        id,
			AccountID: accountID,
			Data:      userFields(record),
			Deleted:   deleted,
			CreatedAt: now,
			UpdatedAt: now,
		}
		if err := repo.Create(ctx, item); err != nil {
			if !errors.Is(err, common.ErrorConflict) {
				return fmt.Errorf("error creating item: %w", err)
			}
			// created concurrently
			existing, err := s.existing(ctx, repo, model, id, accountID)
			if err == nil && existing == nil {
				err = common.ErrorConflict
			}
			result = existing
			return err
		}
		result, created = item, true
		return nil
	})
	if err != nil {
		return nil, err
	}

	out := toRecord(result)
	if created {
		s.log.Debug(ctx, "item created", "model", model, "id", id, "account", accountID)
		s.hub.Publish(Event{Kind: EventCreate, Model: model, AccountID: accountID, Item: out})
	}
	return out, nil
}

// existing returns the stored item when it belongs to accountID, nil when
// there is none and common.ErrorConflict when another account owns the id.
func (s *ItemService) existing(ctx context.Context, repo items.Repository, model, id, accountID string) (*models.Item, error) {
	it, err := repo.Get(ctx, model, id)
	if errors.Is(err, common.ErrorNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("error loading item: %w", err)
	}
	if it.AccountID != accountID {
		return nil, common.ErrorConflict
	}
	return it, nil
}

// Update merges the present fields of record into the stored item. A nil
// value removes a field; deleted=true soft-deletes the item.
func (s *ItemService) Update(ctx context.Context, accountID, model string, record map[string]any) (map[string]any, error) {
	m, err := shared.Lookup(model)
	if err != nil {
		return nil, err
	}
	id, _ := record[common.FieldID].(string)
	if id == "" {
		return nil, &common.ValidationError{Model: model, Op: "update", Reason: "id is required"}
	}
	if err := checkAccount(model, "update", accountID, record); err != nil {
		return nil, err
	}
	if err := m.Validate("update", record, true); err != nil {
		return nil, err
	}

	var (
		result     *models.Item
		wasDeleted bool
	)
	err = dbx.WithTx(ctx, s.db, nil, func(ctx context.Context, tx dbx.DBTX) error {
		repo := s.repomanager.Items(tx)

		it, err := repo.Get(ctx, model, id)
		if err != nil {
			return err
		}
		if it.AccountID != accountID {
			return common.ErrorNotFound
		}
		wasDeleted = it.Deleted

		data := maps.Clone(it.Data)
		if data == nil {
			data = map[string]any{}
		}
		for k, v := range userFields(record) {
			if v == nil {
				delete(data, k)
				continue
			}
			data[k] = v
		}
		it.Data = data
		if d, ok := record[common.FieldDeleted].(bool); ok {
			it.Deleted = d
		}
		it.UpdatedAt = s.timestamp()

		if err := repo.Update(ctx, it); err != nil {
			return err
		}
		result = it
		return nil
	})
	if err != nil {
		if errors.Is(err, common.ErrorNotFound) {
			return nil, err
		}
		return nil, fmt.Errorf("error updating item: %w", err)
	}

	kind := EventUpdate
	if result.Deleted && !wasDeleted {
		kind = EventDelete
	}
	out := toRecord(result)
	s.log.Debug(ctx, "item updated", "model", model, "id", id, "account", accountID, "event", kind)
	s.hub.Publish(Event{Kind: kind, Model: model, AccountID: accountID, Item: out})
	return out, nil
}

func checkAccount(model, op, accountID string, record map[string]any) error {
	v, ok := record[common.FieldAccountID]
	if !ok || v == nil || v == "" {
		return nil
	}
	if s, _ := v.(string); s != accountID {
		id, _ := record[common.FieldID].(string)
		return &common.ValidationError{Model: model, ID: id, Op: op, Reason: "accountId does not match the signed-in account"}
	}
	return nil
}

// userFields drops the bookkeeping fields the server owns.
func userFields(record map[string]any) map[string]any {
	out := make(map[string]any, len(record))
	for k, v := range record {
		switch k {
		case common.FieldID, common.FieldAccountID, common.FieldCreatedAt, common.FieldUpdatedAt, common.FieldDeleted:
			continue
		}
		out[k] = v
	}
	return out
}

func toRecord(it *models.Item) map[string]any {
	out := make(map[string]any, len(it.Data)+5)
	maps.Copy(out, it.Data)
	out[common.FieldID] = it.ID
	out[common.FieldAccountID] = it.AccountID
	out[common.FieldCreatedAt] = it.CreatedAt.UTC().Format(TimeLayout)
	out[common.FieldUpdatedAt] = it.UpdatedAt.UTC().Format(TimeLayout)
	out[common.FieldDeleted] = it.Deleted
	return out
}

type pageToken struct {
	UpdatedAt string `json:"u"`
	ID        string `json:"i"`
}

func encodePageToken(c items.Cursor) string {
	b, _ := json.Marshal(pageToken{UpdatedAt: c.UpdatedAt.UTC().Format(TimeLayout), ID: c.ID})
	return base64.RawURLEncoding.EncodeToString(b)
}

func decodePageToken(s string) (*items.Cursor, error) {
	b, err := base64.RawURLEncoding.DecodeString(s)
	if err != nil {
		return nil, ErrInvalidPageToken
	}
	var pt pageToken
	if err := json.Unmarshal(b, &pt); err != nil || pt.ID == "" {
		return nil, ErrInvalidPageToken
	}
	t, err := time.Parse(TimeLayout, pt.UpdatedAt)
	if err != nil {
		return nil, ErrInvalidPageToken
	}
	return &items.Cursor{UpdatedAt: t, ID: pt.ID}, nil
}
