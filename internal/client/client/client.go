package client

import (
	"context"

	"github.com/dmitrijs2005/gophsync/internal/client/remote"
)

// Client is the session with the backend: account management plus one
// remote.Remote per model for the sync engine.
type Client interface {
	Close() error
	Register(ctx context.Context, username string, salt []byte, verifier []byte) error
	GetSalt(ctx context.Context, username string) ([]byte, error)
	Login(ctx context.Context, username string, verifier []byte) (accountID string, err error)
	Logout()
	Ping(ctx context.Context) error
	Remote(model string) remote.Remote
}
