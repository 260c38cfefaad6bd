// Package items provides the storage of synchronized records, one row per
// model and id, in PostgreSQL or in memory.
package items

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/dmitrijs2005/gophsync/internal/common"
	"github.com/dmitrijs2005/gophsync/internal/dbx"
	"github.com/dmitrijs2005/gophsync/internal/server/models"
)

const itemColumns = `model, id, account_id, data, deleted, created_at, updated_at`

// PostgresRepository implements item storage over a dbx.DBTX (*sql.DB or *sql.Tx).
type PostgresRepository struct {
	db dbx.DBTX
}

// NewPostgresRepository constructs a repository bound to the given DBTX.
func NewPostgresRepository(db dbx.DBTX) *PostgresRepository {
	return &PostgresRepository{db: db}
}

// Create inserts the item unless a row with the same key exists, in which
// case nothing is written and common.ErrorConflict is returned.
func (r *PostgresRepository) Create(ctx context.Context, item *models.Item) error {
	data, err := json.Marshal(item.Data)
	if err != nil {
		return fmt.Errorf("encode data: %w", err)
	}

	query := `
		INSERT INTO items (model, id, account_id, data, deleted, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		ON CONFLICT (model, id) DO NOTHING
	`
	res, err := r.db.ExecContext(ctx, query,
		item.Model, item.ID, item.AccountID, string(data), item.Deleted, item.CreatedAt, item.UpdatedAt)
	if err != nil {
		return fmt.Errorf("db error: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("rows affected error: %w", err)
	}
	switch n {
	case 1:
		return nil
	case 0:
		return common.ErrorConflict
	default:
		return fmt.Errorf("unexpected rows affected: %d", n)
	}
}

// Get loads one item and locks its row until the surrounding transaction ends.
func (r *PostgresRepository) Get(ctx context.Context, model, id string) (*models.Item, error) {
	query := `SELECT ` + itemColumns + ` FROM items
		WHERE model = $1 AND id = $2
		FOR UPDATE`

	item, err := scanItem(r.db.QueryRowContext(ctx, query, model, id))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, common.ErrorNotFound
		}
		return nil, fmt.Errorf("db error: %w", err)
	}
	return item, nil
}

func (r *PostgresRepository) Update(ctx context.Context, item *models.Item) error {
	data, err := json.Marshal(item.Data)
	if err != nil {
		return fmt.Errorf("encode data: %w", err)
	}

	query := `
		UPDATE items SET data = $3, deleted = $4, updated_at = $5
		WHERE model = $1 AND id = $2
	`
	res, err := r.db.ExecContext(ctx, query, item.Model, item.ID, string(data), item.Deleted, item.UpdatedAt)
	if err != nil {
		return fmt.Errorf("db error: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("rows affected error: %w", err)
	}
	if n == 0 {
		return common.ErrorNotFound
	}
	return nil
}

// List runs a keyset query over the (model, account_id, updated_at, id) index.
func (r *PostgresRepository) List(ctx context.Context, q ListQuery) ([]*models.Item, error) {
	var sb strings.Builder
	sb.WriteString(`SELECT ` + itemColumns + ` FROM items
		WHERE model = $1 AND account_id = $2 AND updated_at > $3`)
	args := []any{q.Model, q.AccountID, q.UpdatedAfter}

	dir, cmp := "ASC", ">"
	if q.Desc {
		dir, cmp = "DESC", "<"
	}
	if q.After != nil {
		sb.WriteString(fmt.Sprintf(" AND (updated_at, id) %s ($4, $5)", cmp))
		args = append(args, q.After.UpdatedAt, q.After.ID)
	}
	sb.WriteString(fmt.Sprintf(" ORDER BY updated_at %s, id %s", dir, dir))
	if q.Limit > 0 {
		sb.WriteString(fmt.Sprintf(" LIMIT $%d", len(args)+1))
		args = append(args, q.Limit)
	}

	rows, err := r.db.QueryContext(ctx, sb.String(), args...)
	if err != nil {
		return nil, fmt.Errorf("failed to select items: %w", err)
	}
	defer rows.Close()

	var result []*models.Item
	for rows.Next() {
		item, err := scanItem(rows)
		if err != nil {
			return nil, err
		}
		result = append(result, item)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return result, nil
}

type scanner interface {
	Scan(dest ...any) error
}

func scanItem(s scanner) (*models.Item, error) {
	var (
		item models.Item
		data []byte
	)
	if err := s.Scan(&item.Model, &item.ID, &item.AccountID, &data, &item.Deleted, &item.CreatedAt, &item.UpdatedAt); err != nil {
		return nil, err
	}
	if len(data) > 0 {
		if err := json.Unmarshal(data, &item.Data); err != nil {
			return nil, fmt.Errorf("decode data of %s/%s: %w", item.Model, item.ID, err)
		}
	}
	if item.Data == nil {
		item.Data = map[string]any{}
	}
	item.CreatedAt = item.CreatedAt.UTC()
	item.UpdatedAt = item.UpdatedAt.UTC()
	return &item, nil
}
