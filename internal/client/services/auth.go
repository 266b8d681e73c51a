// Package services contains the application services of the whattodo client.
// This file defines the authentication service: online login with an offline
// fallback, registration, liveness probe, logout, and the local session facts
// other services read the current user from.
package services

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/dmitrijs2005/whattodo/internal/client/client"
	"github.com/dmitrijs2005/whattodo/internal/client/repositories/metadata"
	"github.com/dmitrijs2005/whattodo/internal/client/repositories/mirror"
	"github.com/dmitrijs2005/whattodo/internal/client/repositories/outbox"
	"github.com/dmitrijs2005/whattodo/internal/common"
	"github.com/dmitrijs2005/whattodo/internal/cryptox"
	"github.com/dmitrijs2005/whattodo/internal/dbx"
	"github.com/dmitrijs2005/whattodo/internal/logging"
)

// Session describes the signed-in user.
type Session struct {
	UserID   string
	Username string
	// Offline is set when the login was verified against cached credentials
	// because the authority could not be reached.
	Offline bool
}

// AuthService defines authentication operations for the CLI.
//
// Contract:
//   - Login: try OnlineLogin, fall back to OfflineLogin when the authority is
//     unavailable.
//   - OnlineLogin: authenticate against the server and persist offline auth data.
//     Signing in as a different user than the cached one wipes the local
//     mirror and outbox first.
//   - OfflineLogin: verify credentials against locally cached data.
//   - Register: create a new user on the server.
//   - Ping: check server liveness.
//   - Logout: drop tokens and cached credentials. Queued mutations and the
//     last user id are kept, so a different user signing in next still
//     triggers the wipe.
//   - Current: the cached session, or client.ErrLocalDataNotAvailable.
//   - Close: release underlying client resources.
type AuthService interface {
	Login(ctx context.Context, username string, password []byte) (*Session, error)
	OnlineLogin(ctx context.Context, username string, password []byte) (*Session, error)
	OfflineLogin(ctx context.Context, username string, password []byte) (*Session, error)
	Register(ctx context.Context, username string, password []byte) error
	Ping(ctx context.Context) error
	Logout(ctx context.Context) error
	Current(ctx context.Context) (*Session, error)
	Close(ctx context.Context) error
}

// sessionHolder is implemented by clients that keep tokens between calls.
type sessionHolder interface {
	SetReauthenticator(fn client.Reauthenticator)
	Logout()
}

type authService struct {
	client client.Client
	db     *sql.DB
	logger logging.Logger
}

// NewAuthService constructs an AuthService bound to the given API client and
// DB. When the client keeps a session, it is taught to sign in again with the
// cached verifier after an offline login.
func NewAuthService(c client.Client, db *sql.DB, logger logging.Logger) AuthService {
	a := &authService{client: c, db: db, logger: logger.With("module", "auth")}
	if h, ok := c.(sessionHolder); ok {
		h.SetReauthenticator(a.reauthenticate)
	}
	return a
}

func (a *authService) Login(ctx context.Context, username string, password []byte) (*Session, error) {
	s, err := a.OnlineLogin(ctx, username, password)
	if err == nil {
		return s, nil
	}
	if !errors.Is(err, client.ErrUnavailable) {
		return nil, err
	}

	a.logger.Info(ctx, "authority unavailable, trying offline login", "username", username)
	s, offErr := a.OfflineLogin(ctx, username, password)
	if offErr != nil {
		if errors.Is(offErr, client.ErrLocalDataNotAvailable) {
			return nil, err
		}
		return nil, offErr
	}
	return s, nil
}

// OnlineLogin authenticates against the server and saves offline metadata
// (user id, username, salt, verifier).
func (a *authService) OnlineLogin(ctx context.Context, username string, password []byte) (*Session, error) {
	salt, err := a.client.GetSalt(ctx, username)
	if err != nil {
		return nil, fmt.Errorf("get salt error: %w", err)
	}

	verifier := cryptox.VerifierFor(password, salt)

	userID, err := a.client.Login(ctx, username, verifier)
	if err != nil {
		return nil, fmt.Errorf("login error: %w", err)
	}

	if err := a.saveOfflineData(ctx, userID, username, salt, verifier); err != nil {
		return nil, fmt.Errorf("offline data saving error: %w", err)
	}
	return &Session{UserID: userID, Username: username}, nil
}

// saveOfflineData persists what an offline login needs in one transaction.
// A previous user's mirror and outbox are dropped so their data never leaks
// into the new session.
func (a *authService) saveOfflineData(ctx context.Context, userID, username string, salt, verifier []byte) error {
	return dbx.WithTx(ctx, a.db, nil, func(ctx context.Context, tx dbx.DBTX) error {
		metadataRepo := metadata.NewSQLiteRepository(tx)

		prev, err := metadataRepo.Get(ctx, metadata.KeyUserID)
		if err != nil {
			return err
		}
		if prev != nil && string(prev) != userID {
			if err := a.resetLocalData(ctx, tx); err != nil {
				return err
			}
		}

		values := map[string][]byte{
			metadata.KeyUserID:   []byte(userID),
			metadata.KeyUsername: []byte(username),
			metadata.KeySalt:     salt,
			metadata.KeyVerifier: verifier,
		}
		for k, v := range values {
			if err := metadataRepo.Set(ctx, k, v); err != nil {
				return err
			}
		}
		return nil
	})
}

func (a *authService) resetLocalData(ctx context.Context, tx dbx.DBTX) error {
	outboxRepo := outbox.NewSQLiteRepository(tx)
	dropped, err := outboxRepo.PendingCount(ctx)
	if err != nil {
		return err
	}
	if dropped > 0 {
		a.logger.Warn(ctx, "discarding queued mutations of previous user", "count", dropped)
	}
	if err := outboxRepo.Clear(ctx); err != nil {
		return err
	}
	if err := mirror.NewSQLiteRepository(tx).Clear(ctx); err != nil {
		return err
	}
	return metadata.NewSQLiteRepository(tx).Clear(ctx)
}

// OfflineLogin derives the verifier from the password and the cached salt
// and compares it with the cached verifier. Missing local data yields
// client.ErrLocalDataNotAvailable; a mismatch yields client.ErrUnauthorized.
func (a *authService) OfflineLogin(ctx context.Context, username string, password []byte) (*Session, error) {
	cached, err := a.cached(ctx)
	if err != nil {
		return nil, err
	}
	if cached.username != username {
		return nil, client.ErrUnauthorized
	}

	if !cryptox.EqualVerifiers(cached.verifier, cryptox.VerifierFor(password, cached.salt)) {
		return nil, client.ErrUnauthorized
	}
	return &Session{UserID: cached.userID, Username: username, Offline: true}, nil
}

type cachedCredentials struct {
	userID   string
	username string
	salt     []byte
	verifier []byte
}

func (a *authService) cached(ctx context.Context) (*cachedCredentials, error) {
	all, err := metadata.NewSQLiteRepository(a.db).List(ctx)
	if err != nil {
		return nil, err
	}
	c := &cachedCredentials{
		userID:   string(all[metadata.KeyUserID]),
		username: string(all[metadata.KeyUsername]),
		salt:     all[metadata.KeySalt],
		verifier: all[metadata.KeyVerifier],
	}
	if c.userID == "" || c.username == "" || len(c.salt) == 0 || len(c.verifier) == 0 {
		return nil, client.ErrLocalDataNotAvailable
	}
	return c, nil
}

// reauthenticate signs in with the cached verifier. The client calls it when
// a request needs a session and no refresh token is held.
func (a *authService) reauthenticate(ctx context.Context) error {
	cached, err := a.cached(ctx)
	if err != nil {
		return client.ErrUnauthorized
	}
	userID, err := a.client.Login(ctx, cached.username, cached.verifier)
	if err != nil {
		return err
	}
	if userID != cached.userID {
		a.logger.Error(ctx, "authority returned a different user id", "cached", cached.userID, "got", userID)
		return client.ErrUnauthorized
	}
	a.logger.Info(ctx, "session restored from cached credentials", "username", cached.username)
	return nil
}

// Register creates a new account on the server with a fresh random salt.
func (a *authService) Register(ctx context.Context, username string, password []byte) error {
	salt := common.GenerateRandByteArray(32)
	verifier := cryptox.VerifierFor(password, salt)

	if err := a.client.Register(ctx, username, salt, verifier); err != nil {
		return err
	}
	return nil
}

// Ping proxies a liveness check to the underlying client.
func (a *authService) Ping(ctx context.Context) error {
	return a.client.Ping(ctx)
}

func (a *authService) Logout(ctx context.Context) error {
	if h, ok := a.client.(sessionHolder); ok {
		h.Logout()
	}
	return dbx.WithTx(ctx, a.db, nil, func(ctx context.Context, tx dbx.DBTX) error {
		metadataRepo := metadata.NewSQLiteRepository(tx)
		for _, k := range []string{metadata.KeyUsername, metadata.KeySalt, metadata.KeyVerifier, metadata.KeyLastSync} {
			if err := metadataRepo.Delete(ctx, k); err != nil {
				return err
			}
		}
		return nil
	})
}

func (a *authService) Current(ctx context.Context) (*Session, error) {
	cached, err := a.cached(ctx)
	if err != nil {
		return nil, err
	}
	return &Session{UserID: cached.userID, Username: cached.username}, nil
}

// Close releases resources held by the underlying client.
func (a *authService) Close(ctx context.Context) error {
	return a.client.Close()
}
