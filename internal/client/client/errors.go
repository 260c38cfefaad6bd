package client

import (
	"errors"
	"fmt"

	"github.com/dmitrijs2005/gophsync/internal/common"
)

var (
	// ErrUnavailable wraps common.ErrNetwork so the sync engine retries it.
	ErrUnavailable  = fmt.Errorf("server unavailable: %w", common.ErrNetwork)
	ErrUnauthorized = errors.New("unauthorized")
	ErrNotLoggedIn  = errors.New("not logged in")

	// ErrLocalDataNotAvailable means no offline credentials were cached yet.
	ErrLocalDataNotAvailable = errors.New("local data not available")
)
