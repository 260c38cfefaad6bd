package persist

import (
	"context"
	"fmt"

	"github.com/dmitrijs2005/gophsync/internal/common"
	"github.com/dmitrijs2005/gophsync/internal/cryptox"
)

// SaltTable holds the key derivation salt of an encrypted store. It is the
// only table kept in clear text.
const SaltTable = "__salt"

type encryptedAdapter struct {
	Adapter
	key []byte
}

// Encrypted wraps a so that every table is sealed with AES-GCM under a key
// derived from passphrase. The salt is created on first use and stored in a.
func Encrypted(ctx context.Context, a Adapter, passphrase string) (Adapter, error) {
	salt, err := a.Load(ctx, SaltTable)
	if err != nil {
		return nil, fmt.Errorf("load salt: %w", err)
	}
	if salt == nil {
		salt = common.GenerateRandByteArray(cryptox.SaltSize)
		if err := a.Save(ctx, SaltTable, salt); err != nil {
			return nil, fmt.Errorf("save salt: %w", err)
		}
	}

	pw := []byte(passphrase)
	key := cryptox.DeriveMasterKey(pw, salt)
	common.WipeByteArray(pw)

	return &encryptedAdapter{Adapter: a, key: key}, nil
}

func (e *encryptedAdapter) Load(ctx context.Context, table string) ([]byte, error) {
	sealed, err := e.Adapter.Load(ctx, table)
	if err != nil || sealed == nil {
		return sealed, err
	}
	plain, err := cryptox.Open(sealed, e.key)
	if err != nil {
		return nil, &common.CorruptionError{Table: table, Err: err}
	}
	return plain, nil
}

func (e *encryptedAdapter) Save(ctx context.Context, table string, value []byte) error {
	sealed, err := cryptox.Seal(value, e.key)
	if err != nil {
		return err
	}
	return e.Adapter.Save(ctx, table, sealed)
}

func (e *encryptedAdapter) Close() error {
	common.WipeByteArray(e.key)
	return e.Adapter.Close()
}
