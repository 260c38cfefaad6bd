// Package persist defines the durable key/value contract the sync engine
// stores its tables in, together with the codecs, the background writer and
// the encryption wrapper layered on top of it.
//
// A table is one opaque value. Engines live in sub-packages (sqlite, memory,
// s3) and are selected with Open.
package persist

import (
	"context"
	"errors"
	"fmt"

	"github.com/dmitrijs2005/gophsync/internal/common"
	"github.com/dmitrijs2005/gophsync/internal/logging"
)

// Adapter is a durable table store.
type Adapter interface {
	// Load returns the stored value or nil, nil when the table is absent.
	Load(ctx context.Context, table string) ([]byte, error)
	Save(ctx context.Context, table string, value []byte) error
	// Delete removes the table. Deleting an absent table is not an error.
	Delete(ctx context.Context, table string) error
	Close() error
}

// LoadTable reads and decodes a table. An absent table yields initial. A
// value that cannot be decoded is logged as corruption and also yields
// initial; only storage failures are returned as errors.
func LoadTable[T any](ctx context.Context, a Adapter, c Codec, table string, initial T, log logging.Logger) (T, error) {
	data, err := a.Load(ctx, table)
	var ce *common.CorruptionError
	if errors.As(err, &ce) {
		log.Error(ctx, "PersistenceCorruption", "table", table, "error", err)
		return initial, nil
	}
	if err != nil {
		return initial, fmt.Errorf("load table %s: %w", table, err)
	}
	if data == nil {
		return initial, nil
	}

	var v T
	if err := c.Unmarshal(data, &v); err != nil {
		log.Error(ctx, "PersistenceCorruption", "table", table,
			"error", &common.CorruptionError{Table: table, Err: err})
		return initial, nil
	}
	return v, nil
}

// SaveTable encodes v and stores it under table.
func SaveTable[T any](ctx context.Context, a Adapter, c Codec, table string, v T) error {
	data, err := c.Marshal(v)
	if err != nil {
		return fmt.Errorf("encode table %s: %w", table, err)
	}
	if err := a.Save(ctx, table, data); err != nil {
		return fmt.Errorf("save table %s: %w", table, err)
	}
	return nil
}
