// Package services contains server-side business logic: accounts and tokens
// (UserService), synchronized records (ItemService) and the change
// notifications fanned out to subscribers (Hub).
package services

import (
	"context"
	"crypto/subtle"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/dmitrijs2005/gophsync/internal/common"
	"github.com/dmitrijs2005/gophsync/internal/dbx"
	"github.com/dmitrijs2005/gophsync/internal/server/auth"
	"github.com/dmitrijs2005/gophsync/internal/server/config"
	"github.com/dmitrijs2005/gophsync/internal/server/models"
	"github.com/dmitrijs2005/gophsync/internal/server/repositories/repomanager"
)

// TokenPair is what a successful login or refresh hands back to the client.
type TokenPair struct {
	AccessToken  string
	RefreshToken string
	AccountID    string
}

// UserService owns accounts and the tokens issued to them. Passwords never
// reach the server: clients register a salt and a verifier derived from the
// password and later prove knowledge of it by presenting the same verifier.
type UserService struct {
	db         *sql.DB
	repos      repomanager.RepositoryManager
	secret     []byte
	accessTTL  time.Duration
	refreshTTL time.Duration
	now        func() time.Time
}

// NewUserService wires the service to its repositories. db may be nil when the
// repositories keep their state in memory.
func NewUserService(db *sql.DB, m repomanager.RepositoryManager, cfg *config.Config) *UserService {
	return &UserService{
		db:         db,
		repos:      m,
		secret:     []byte(cfg.SecretKey),
		accessTTL:  cfg.AccessTokenValidityDuration,
		refreshTTL: cfg.RefreshTokenValidityDuration,
		now:        time.Now,
	}
}

// Register stores a new account. A taken username yields common.ErrorConflict.
func (s *UserService) Register(ctx context.Context, username string, salt, verifier []byte) (*models.User, error) {
	if username == "" || len(salt) == 0 || len(verifier) == 0 {
		return nil, &common.ValidationError{Model: "user", ID: username, Op: "register", Reason: "username, salt and verifier are required"}
	}
	u, err := s.repos.Users(s.db).Create(ctx, &models.User{UserName: username, Salt: salt, Verifier: verifier})
	if err != nil {
		return nil, fmt.Errorf("create user: %w", err)
	}
	return u, nil
}

// GetSalt returns the salt the client derives its verifier with. Unknown
// usernames get a random salt so the answer does not reveal which accounts
// exist.
func (s *UserService) GetSalt(ctx context.Context, username string) ([]byte, error) {
	u, err := s.repos.Users(s.db).GetUserByLogin(ctx, username)
	switch {
	case err == nil:
		return u.Salt, nil
	case errors.Is(err, common.ErrorNotFound):
		return common.GenerateRandByteArray(saltSize), nil
	default:
		return nil, common.ErrorInternal
	}
}

// Login checks the verifier in constant time and issues a token pair.
func (s *UserService) Login(ctx context.Context, username string, verifier []byte) (*TokenPair, error) {
	u, err := s.repos.Users(s.db).GetUserByLogin(ctx, username)
	if err != nil {
		if errors.Is(err, common.ErrorNotFound) {
			return nil, common.ErrorUnauthorized
		}
		return nil, common.ErrorInternal
	}
	if subtle.ConstantTimeCompare(u.Verifier, verifier) != 1 {
		return nil, common.ErrorUnauthorized
	}
	return s.issue(ctx, s.db, u.ID)
}

// RefreshToken exchanges a refresh token for a new pair. The old token is
// revoked in the same transaction that stores its successor, so each refresh
// token works once. Unknown or already used tokens yield ErrInvalidToken,
// expired ones ErrRefreshTokenExpired.
func (s *UserService) RefreshToken(ctx context.Context, refreshToken string) (*TokenPair, error) {
	token, err := s.repos.RefreshTokens(s.db).Find(ctx, refreshToken)
	if err != nil {
		if errors.Is(err, common.ErrorNotFound) {
			return nil, common.ErrInvalidToken
		}
		return nil, fmt.Errorf("find refresh token: %w", err)
	}
	if token.Expired(s.now()) {
		return nil, common.ErrRefreshTokenExpired
	}

	var pair *TokenPair
	err = dbx.WithTx(ctx, s.db, nil, func(ctx context.Context, tx dbx.DBTX) error {
		if err := s.repos.RefreshTokens(tx).Delete(ctx, refreshToken); err != nil {
			if errors.Is(err, common.ErrorNotFound) {
				// a concurrent refresh got there first
				return common.ErrInvalidToken
			}
			return fmt.Errorf("revoke refresh token: %w", err)
		}
		var err error
		pair, err = s.issue(ctx, tx, token.UserID)
		return err
	})
	if err != nil {
		return nil, err
	}
	return pair, nil
}

// Authenticate resolves an access token to the account it was issued to.
func (s *UserService) Authenticate(accessToken string) (string, error) {
	return auth.ParseAccessToken(accessToken, s.secret)
}

const (
	saltSize         = 32
	refreshTokenSize = 32
)

func (s *UserService) issue(ctx context.Context, db dbx.DBTX, accountID string) (*TokenPair, error) {
	access, err := auth.IssueAccessToken(accountID, s.secret, s.accessTTL)
	if err != nil {
		return nil, common.ErrorInternal
	}
	refresh, err := common.MakeRandHexString(refreshTokenSize)
	if err != nil {
		return nil, common.ErrorInternal
	}
	if err := s.repos.RefreshTokens(db).Create(ctx, accountID, refresh, s.refreshTTL); err != nil {
		return nil, common.ErrorInternal
	}
	return &TokenPair{AccessToken: access, RefreshToken: refresh, AccountID: accountID}, nil
}
