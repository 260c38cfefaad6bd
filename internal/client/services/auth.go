// Package services contains the application services the GophSync shell is
// built from. This file defines the authentication service: online and
// offline sign-in, registration, liveness probe and the offline credential
// cache. Signing in is what opens the sync engine's readiness gate.
package services

import (
	"context"
	"crypto/subtle"
	"fmt"

	"github.com/dmitrijs2005/gophsync/internal/client/client"
	"github.com/dmitrijs2005/gophsync/internal/client/gate"
	"github.com/dmitrijs2005/gophsync/internal/client/persist"
	"github.com/dmitrijs2005/gophsync/internal/common"
	"github.com/dmitrijs2005/gophsync/internal/cryptox"
	"github.com/dmitrijs2005/gophsync/internal/logging"
)

// AuthTable is the persistence table holding the offline credential cache.
const AuthTable = "__auth"

// Session is the part of the sync engine that authentication drives.
type Session interface {
	SetAccountID(id string)
	Gate() *gate.Gate
}

// AuthService defines authentication operations for the shell.
//
// Contract:
//   - OnlineLogin: authenticate against the server, cache offline data and
//     open the readiness gate.
//   - OfflineLogin: verify credentials against the cache; the gate stays
//     closed so local edits are queued.
//   - Logout: close the gate and forget the server session.
//   - ClearOfflineData: wipe the credential cache.
type AuthService interface {
	OfflineLogin(ctx context.Context, username string, password []byte) ([]byte, error)
	OnlineLogin(ctx context.Context, username string, password []byte) ([]byte, error)
	Logout(ctx context.Context)
	Register(ctx context.Context, username string, password []byte) error
	Ping(ctx context.Context) error
	Close(ctx context.Context) error
	ClearOfflineData(ctx context.Context) error
}

type offlineData struct {
	Username  string `json:"username"`
	AccountID string `json:"accountId"`
	Salt      []byte `json:"salt"`
	Verifier  []byte `json:"verifier"`
}

type authService struct {
	client  client.Client
	session Session
	adapter persist.Adapter
	log     logging.Logger
}

// NewAuthService constructs an AuthService. Offline data is stored in
// adapter next to the synchronized tables.
func NewAuthService(c client.Client, session Session, adapter persist.Adapter, log logging.Logger) AuthService {
	return &authService{client: c, session: session, adapter: adapter, log: log}
}

func (a *authService) loadOfflineData(ctx context.Context) (offlineData, error) {
	return persist.LoadTable(ctx, a.adapter, persist.JSONCodec{}, AuthTable, offlineData{}, a.log)
}

// OfflineLogin derives a master key from the password and the cached salt and
// checks it against the cached verifier. The cached account id is handed to
// the session so local records are attributed correctly.
func (a *authService) OfflineLogin(ctx context.Context, username string, password []byte) ([]byte, error) {
	saved, err := a.loadOfflineData(ctx)
	if err != nil {
		return nil, err
	}
	if saved.Username == "" || saved.Salt == nil || saved.Verifier == nil {
		return nil, client.ErrLocalDataNotAvailable
	}
	if saved.Username != username {
		return nil, client.ErrUnauthorized
	}

	masterKeyCandidate := cryptox.DeriveMasterKey(password, saved.Salt)
	verifierCandidate := cryptox.MakeVerifier(masterKeyCandidate)

	if subtle.ConstantTimeCompare(saved.Verifier, verifierCandidate) == 0 {
		return nil, client.ErrUnauthorized
	}

	a.session.SetAccountID(saved.AccountID)
	return masterKeyCandidate, nil
}

// OnlineLogin authenticates against the server, caches offline data and opens
// the readiness gate. It returns the derived master key.
func (a *authService) OnlineLogin(ctx context.Context, username string, password []byte) ([]byte, error) {
	salt, err := a.client.GetSalt(ctx, username)
	if err != nil {
		return nil, fmt.Errorf("get salt error: %w", err)
	}

	masterKeyCandidate := cryptox.DeriveMasterKey(password, salt)
	verifierCandidate := cryptox.MakeVerifier(masterKeyCandidate)

	accountID, err := a.client.Login(ctx, username, verifierCandidate)
	if err != nil {
		return nil, fmt.Errorf("login error: %w", err)
	}

	data := offlineData{Username: username, AccountID: accountID, Salt: salt, Verifier: verifierCandidate}
	if err := persist.SaveTable(ctx, a.adapter, persist.JSONCodec{}, AuthTable, data); err != nil {
		return nil, fmt.Errorf("offline data saving error: %w", err)
	}

	a.session.SetAccountID(accountID)
	a.session.Gate().Set(true)
	a.log.Info(ctx, "signed in", "user", username, "account", accountID)
	return masterKeyCandidate, nil
}

// Logout closes the gate first so in-flight calls stop before the tokens go.
func (a *authService) Logout(ctx context.Context) {
	a.session.Gate().Set(false)
	a.client.Logout()
	a.log.Info(ctx, "signed out")
}

// Register creates a new account on the server. It generates a random salt,
// derives a master key from the password and sends salt and verifier.
func (a *authService) Register(ctx context.Context, username string, password []byte) error {
	salt := common.GenerateRandByteArray(32)
	key := cryptox.DeriveMasterKey(password, salt)
	defer common.WipeByteArray(key)
	verifier := cryptox.MakeVerifier(key)

	return a.client.Register(ctx, username, salt, verifier)
}

func (a *authService) Ping(ctx context.Context) error {
	return a.client.Ping(ctx)
}

func (a *authService) Close(ctx context.Context) error {
	return a.client.Close()
}

func (a *authService) ClearOfflineData(ctx context.Context) error {
	return a.adapter.Delete(ctx, AuthTable)
}
