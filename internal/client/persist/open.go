package persist

import (
	"context"
	"fmt"
	"strings"

	"github.com/dmitrijs2005/gophsync/internal/client/persist/memory"
	"github.com/dmitrijs2005/gophsync/internal/client/persist/s3"
	"github.com/dmitrijs2005/gophsync/internal/client/persist/sqlite"
	"github.com/dmitrijs2005/gophsync/internal/filex"
)

// Config selects and configures a persistence engine.
type Config struct {
	// Engine is sqlite (default), memory or s3.
	Engine string `json:"engine" mapstructure:"engine"`
	// DSN is the sqlite database path.
	DSN string `json:"dsn" mapstructure:"dsn"`

	S3Bucket    string `json:"s3_bucket" mapstructure:"s3_bucket"`
	S3Prefix    string `json:"s3_prefix" mapstructure:"s3_prefix"`
	S3Region    string `json:"s3_region" mapstructure:"s3_region"`
	S3Endpoint  string `json:"s3_endpoint" mapstructure:"s3_endpoint"`
	S3AccessKey string `json:"s3_access_key" mapstructure:"s3_access_key"`
	S3SecretKey string `json:"s3_secret_key" mapstructure:"s3_secret_key"`

	// Passphrase enables at-rest encryption when not empty.
	Passphrase string `json:"passphrase" mapstructure:"passphrase"`
}

// Open builds the configured engine, wrapped with encryption if requested.
func Open(ctx context.Context, cfg Config) (Adapter, error) {
	var (
		a   Adapter
		err error
	)
	switch strings.ToLower(cfg.Engine) {
	case "", "sqlite":
		dsn := cfg.DSN
		if dsn == "" {
			dsn = "gophsync.db"
		}
		if dsn != ":memory:" && !strings.HasPrefix(dsn, "file:") {
			if dsn, err = filex.EnsureParentDir(dsn); err != nil {
				return nil, err
			}
		}
		a, err = sqlite.Open(ctx, dsn)
	case "memory":
		a = memory.New()
	case "s3":
		a, err = s3.Open(ctx, s3.Config{
			Bucket:    cfg.S3Bucket,
			Prefix:    cfg.S3Prefix,
			Region:    cfg.S3Region,
			Endpoint:  cfg.S3Endpoint,
			AccessKey: cfg.S3AccessKey,
			SecretKey: cfg.S3SecretKey,
		})
	default:
		return nil, fmt.Errorf("unknown persistence engine %q", cfg.Engine)
	}
	if err != nil {
		return nil, err
	}

	if cfg.Passphrase == "" {
		return a, nil
	}
	enc, err := Encrypted(ctx, a, cfg.Passphrase)
	if err != nil {
		_ = a.Close()
		return nil, err
	}
	return enc, nil
}
