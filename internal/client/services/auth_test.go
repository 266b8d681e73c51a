package services

import (
	"context"
	"database/sql"
	"errors"
	"path/filepath"
	"strings"
	"testing"

	"github.com/dmitrijs2005/whattodo/internal/client/client"
	"github.com/dmitrijs2005/whattodo/internal/client/db"
	"github.com/dmitrijs2005/whattodo/internal/client/repositories/metadata"
	"github.com/dmitrijs2005/whattodo/internal/client/repositories/mirror"
	"github.com/dmitrijs2005/whattodo/internal/client/repositories/outbox"
	"github.com/dmitrijs2005/whattodo/internal/cryptox"
	"github.com/dmitrijs2005/whattodo/internal/logging"
	"github.com/dmitrijs2005/whattodo/internal/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// ---- helpers ----

func setupDB(t *testing.T) *sql.DB {
	t.Helper()
	conn, err := db.Open(context.Background(), filepath.Join(t.TempDir(), "client.db"))
	require.NoError(t, err)
	t.Cleanup(func() { _ = conn.Close() })
	return conn
}

func insertMeta(t *testing.T, conn *sql.DB, k string, v []byte) {
	t.Helper()
	require.NoError(t, metadata.NewSQLiteRepository(conn).Set(context.Background(), k, v))
}

func getMeta(t *testing.T, conn *sql.DB, k string) []byte {
	t.Helper()
	v, err := metadata.NewSQLiteRepository(conn).Get(context.Background(), k)
	require.NoError(t, err)
	return v
}

// seedCredentials caches what an earlier online login would have stored.
func seedCredentials(t *testing.T, conn *sql.DB, userID, username, password string) []byte {
	t.Helper()
	salt := []byte("salty")
	ver := cryptox.VerifierFor([]byte(password), salt)
	insertMeta(t, conn, metadata.KeyUserID, []byte(userID))
	insertMeta(t, conn, metadata.KeyUsername, []byte(username))
	insertMeta(t, conn, metadata.KeySalt, salt)
	insertMeta(t, conn, metadata.KeyVerifier, ver)
	return ver
}

type nopLogger struct{}

func (nopLogger) Debug(context.Context, string, ...any) {}
func (nopLogger) Info(context.Context, string, ...any)  {}
func (nopLogger) Warn(context.Context, string, ...any)  {}
func (nopLogger) Error(context.Context, string, ...any) {}
func (l nopLogger) With(...any) logging.Logger          { return l }

// ---- fake client ----

// fakeClient implements client.Client for service unit tests.
type fakeClient struct {
	CloseErr    error
	RegisterErr error

	GetSaltRet []byte
	GetSaltErr error

	LoginRet string
	LoginErr error

	PingErr error

	ListsRet []*models.List
	ListsErr error
	ItemsRet []*models.Item
	ItemsErr error

	PresignKey string
	PresignURL string
	PresignErr error

	LastRegisterUser     string
	LastRegisterSalt     []byte
	LastRegisterVerifier []byte

	LastLoginUser     string
	LastLoginVerifier []byte
	LoginCalls        int

	// session hooks
	reauth     client.Reauthenticator
	loggedOut  bool
	lastListID string
}

func (f *fakeClient) Close() error { return f.CloseErr }

func (f *fakeClient) Register(ctx context.Context, username string, salt []byte, verifier []byte) error {
	f.LastRegisterUser = username
	f.LastRegisterSalt = append([]byte(nil), salt...)
	f.LastRegisterVerifier = append([]byte(nil), verifier...)
	return f.RegisterErr
}

func (f *fakeClient) GetSalt(ctx context.Context, username string) ([]byte, error) {
	return append([]byte(nil), f.GetSaltRet...), f.GetSaltErr
}

func (f *fakeClient) Login(ctx context.Context, username string, verifier []byte) (string, error) {
	f.LoginCalls++
	f.LastLoginUser = username
	f.LastLoginVerifier = append([]byte(nil), verifier...)
	return f.LoginRet, f.LoginErr
}

func (f *fakeClient) Ping(ctx context.Context) error { return f.PingErr }

func (f *fakeClient) CreateList(ctx context.Context, l *models.List) (*models.List, error) {
	return l, nil
}

func (f *fakeClient) UpdateList(ctx context.Context, id string, p models.ListPatch) (*models.List, error) {
	return nil, client.ErrUnavailable
}

func (f *fakeClient) DeleteList(ctx context.Context, id string) error { return nil }

func (f *fakeClient) GetList(ctx context.Context, id string) (*models.List, error) {
	return nil, client.ErrAuthorizationRejected
}

func (f *fakeClient) ListLists(ctx context.Context) ([]*models.List, error) {
	return f.ListsRet, f.ListsErr
}

func (f *fakeClient) CreateItem(ctx context.Context, i *models.Item) (*models.Item, error) {
	return i, nil
}

func (f *fakeClient) UpdateItem(ctx context.Context, id string, p models.ItemPatch) (*models.Item, error) {
	return nil, client.ErrUnavailable
}

func (f *fakeClient) DeleteItem(ctx context.Context, id string) error { return nil }

func (f *fakeClient) ListItems(ctx context.Context, listID string) ([]*models.Item, error) {
	f.lastListID = listID
	return f.ItemsRet, f.ItemsErr
}

func (f *fakeClient) PresignCoverUpload(ctx context.Context, listID, contentType string) (string, string, error) {
	return f.PresignKey, f.PresignURL, f.PresignErr
}

// sessionFakeClient additionally keeps a session like GRPCClient does.
type sessionFakeClient struct {
	*fakeClient
}

func (f sessionFakeClient) SetReauthenticator(fn client.Reauthenticator) { f.reauth = fn }
func (f sessionFakeClient) Logout()                                      { f.loggedOut = true }

// ---- TESTS ----

func TestOfflineLogin_NoLocalData(t *testing.T) {
	conn := setupDB(t)
	svc := NewAuthService(&fakeClient{}, conn, nopLogger{})

	_, err := svc.OfflineLogin(context.Background(), "user", []byte("pass"))
	require.ErrorIs(t, err, client.ErrLocalDataNotAvailable)
}

func TestOfflineLogin_UsernameMismatch_Unauthorized(t *testing.T) {
	conn := setupDB(t)
	seedCredentials(t, conn, "u1", "other", "p")
	svc := NewAuthService(&fakeClient{}, conn, nopLogger{})

	_, err := svc.OfflineLogin(context.Background(), "user", []byte("p"))
	require.ErrorIs(t, err, client.ErrUnauthorized)
}

func TestOfflineLogin_WrongPassword_Unauthorized(t *testing.T) {
	conn := setupDB(t)
	seedCredentials(t, conn, "u1", "user", "correct")
	svc := NewAuthService(&fakeClient{}, conn, nopLogger{})

	_, err := svc.OfflineLogin(context.Background(), "user", []byte("wrong"))
	require.ErrorIs(t, err, client.ErrUnauthorized)
}

func TestOfflineLogin_Success(t *testing.T) {
	conn := setupDB(t)
	seedCredentials(t, conn, "u1", "user", "pass")
	svc := NewAuthService(&fakeClient{}, conn, nopLogger{})

	s, err := svc.OfflineLogin(context.Background(), "user", []byte("pass"))
	require.NoError(t, err)
	assert.Equal(t, &Session{UserID: "u1", Username: "user", Offline: true}, s)
}

func TestOnlineLogin_GetSaltError_Wrapped(t *testing.T) {
	conn := setupDB(t)
	svc := NewAuthService(&fakeClient{GetSaltErr: errors.New("network down")}, conn, nopLogger{})

	_, err := svc.OnlineLogin(context.Background(), "u", []byte("p"))
	require.Error(t, err)
	require.True(t, strings.HasPrefix(err.Error(), "get salt error:"))
}

func TestOnlineLogin_LoginError_Wrapped(t *testing.T) {
	conn := setupDB(t)
	fc := &fakeClient{GetSaltRet: []byte("s"), LoginErr: client.ErrUnauthorized}
	svc := NewAuthService(fc, conn, nopLogger{})

	_, err := svc.OnlineLogin(context.Background(), "u", []byte("p"))
	require.ErrorIs(t, err, client.ErrUnauthorized)
	require.True(t, strings.HasPrefix(err.Error(), "login error:"))
}

func TestOnlineLogin_Success_SavesOfflineData(t *testing.T) {
	conn := setupDB(t)
	fc := &fakeClient{GetSaltRet: []byte("salt"), LoginRet: "u1"}
	svc := NewAuthService(fc, conn, nopLogger{})

	s, err := svc.OnlineLogin(context.Background(), "user", []byte("pass"))
	require.NoError(t, err)
	assert.Equal(t, &Session{UserID: "u1", Username: "user"}, s)

	assert.Equal(t, []byte("u1"), getMeta(t, conn, metadata.KeyUserID))
	assert.Equal(t, []byte("user"), getMeta(t, conn, metadata.KeyUsername))
	assert.Equal(t, []byte("salt"), getMeta(t, conn, metadata.KeySalt))

	want := cryptox.VerifierFor([]byte("pass"), []byte("salt"))
	assert.Equal(t, want, getMeta(t, conn, metadata.KeyVerifier))
	assert.Equal(t, "user", fc.LastLoginUser)
	assert.Equal(t, want, fc.LastLoginVerifier)
}

func TestOnlineLogin_DifferentUserWipesLocalData(t *testing.T) {
	conn := setupDB(t)
	ctx := context.Background()
	seedCredentials(t, conn, "old", "olduser", "p")

	require.NoError(t, mirror.NewSQLiteRepository(conn).UpsertLists(ctx, []*models.List{{
		ID: "l1", OwnerID: "old", Title: "T", Visibility: models.VisibilityPrivate, Tags: []string{},
	}}))
	_, err := outbox.NewSQLiteRepository(conn).Enqueue(ctx, models.ListDelete{ID: "l1"})
	require.NoError(t, err)

	fc := &fakeClient{GetSaltRet: []byte("salt"), LoginRet: "new"}
	svc := NewAuthService(fc, conn, nopLogger{})
	_, err = svc.OnlineLogin(ctx, "newuser", []byte("pass"))
	require.NoError(t, err)

	n, err := outbox.NewSQLiteRepository(conn).PendingCount(ctx)
	require.NoError(t, err)
	assert.Zero(t, n)
	lists, err := mirror.NewSQLiteRepository(conn).ListsByOwner(ctx, "old")
	require.NoError(t, err)
	assert.Empty(t, lists)
	assert.Equal(t, []byte("new"), getMeta(t, conn, metadata.KeyUserID))
}

func TestOnlineLogin_SameUserKeepsQueue(t *testing.T) {
	conn := setupDB(t)
	ctx := context.Background()
	seedCredentials(t, conn, "u1", "user", "pass")
	_, err := outbox.NewSQLiteRepository(conn).Enqueue(ctx, models.ListDelete{ID: "l1"})
	require.NoError(t, err)

	svc := NewAuthService(&fakeClient{GetSaltRet: []byte("salt"), LoginRet: "u1"}, conn, nopLogger{})
	_, err = svc.OnlineLogin(ctx, "user", []byte("pass"))
	require.NoError(t, err)

	n, err := outbox.NewSQLiteRepository(conn).PendingCount(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, n)
}

func TestLogin_FallsBackOfflineWhenUnavailable(t *testing.T) {
	conn := setupDB(t)
	seedCredentials(t, conn, "u1", "user", "pass")
	svc := NewAuthService(&fakeClient{GetSaltErr: client.ErrUnavailable}, conn, nopLogger{})

	s, err := svc.Login(context.Background(), "user", []byte("pass"))
	require.NoError(t, err)
	assert.True(t, s.Offline)
	assert.Equal(t, "u1", s.UserID)
}

func TestLogin_UnavailableWithoutCacheReturnsOnlineError(t *testing.T) {
	conn := setupDB(t)
	svc := NewAuthService(&fakeClient{GetSaltErr: client.ErrUnavailable}, conn, nopLogger{})

	_, err := svc.Login(context.Background(), "user", []byte("pass"))
	require.ErrorIs(t, err, client.ErrUnavailable)
}

func TestLogin_RejectedCredentialsDoNotFallBack(t *testing.T) {
	conn := setupDB(t)
	seedCredentials(t, conn, "u1", "user", "pass")
	fc := &fakeClient{GetSaltRet: []byte("salt"), LoginErr: client.ErrUnauthorized}
	svc := NewAuthService(fc, conn, nopLogger{})

	_, err := svc.Login(context.Background(), "user", []byte("pass"))
	require.ErrorIs(t, err, client.ErrUnauthorized)
}

func TestReauthenticate_UsesCachedVerifier(t *testing.T) {
	conn := setupDB(t)
	ver := seedCredentials(t, conn, "u1", "user", "pass")
	fc := &fakeClient{LoginRet: "u1"}
	sc := sessionFakeClient{fc}
	NewAuthService(sc, conn, nopLogger{})
	require.NotNil(t, fc.reauth)

	require.NoError(t, fc.reauth(context.Background()))
	assert.Equal(t, "user", fc.LastLoginUser)
	assert.Equal(t, ver, fc.LastLoginVerifier)

	fc.LoginRet = "someone-else"
	assert.ErrorIs(t, fc.reauth(context.Background()), client.ErrUnauthorized)
}

func TestReauthenticate_NoCacheIsUnauthorized(t *testing.T) {
	conn := setupDB(t)
	fc := &fakeClient{}
	NewAuthService(sessionFakeClient{fc}, conn, nopLogger{})

	assert.ErrorIs(t, fc.reauth(context.Background()), client.ErrUnauthorized)
	assert.Zero(t, fc.LoginCalls)
}

func TestLogout_KeepsUserIDAndQueue(t *testing.T) {
	conn := setupDB(t)
	ctx := context.Background()
	seedCredentials(t, conn, "u1", "user", "pass")
	_, err := outbox.NewSQLiteRepository(conn).Enqueue(ctx, models.ListDelete{ID: "l1"})
	require.NoError(t, err)

	fc := &fakeClient{}
	svc := NewAuthService(sessionFakeClient{fc}, conn, nopLogger{})
	require.NoError(t, svc.Logout(ctx))

	assert.True(t, fc.loggedOut)
	assert.Nil(t, getMeta(t, conn, metadata.KeyVerifier))
	assert.Equal(t, []byte("u1"), getMeta(t, conn, metadata.KeyUserID))
	_, err = svc.Current(ctx)
	assert.ErrorIs(t, err, client.ErrLocalDataNotAvailable)

	n, err := outbox.NewSQLiteRepository(conn).PendingCount(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, n)
}

func TestCurrent_ReturnsCachedSession(t *testing.T) {
	conn := setupDB(t)
	seedCredentials(t, conn, "u1", "user", "pass")
	svc := NewAuthService(&fakeClient{}, conn, nopLogger{})

	s, err := svc.Current(context.Background())
	require.NoError(t, err)
	assert.Equal(t, &Session{UserID: "u1", Username: "user"}, s)
}

func TestRegister_DelegatesToClient(t *testing.T) {
	conn := setupDB(t)
	fc := &fakeClient{}
	svc := NewAuthService(fc, conn, nopLogger{})

	require.NoError(t, svc.Register(context.Background(), "u", []byte("p")))
	assert.Equal(t, "u", fc.LastRegisterUser)
	assert.Len(t, fc.LastRegisterSalt, 32)
	assert.Equal(t, cryptox.VerifierFor([]byte("p"), fc.LastRegisterSalt), fc.LastRegisterVerifier)
}

func TestRegister_ErrorFromClient(t *testing.T) {
	conn := setupDB(t)
	svc := NewAuthService(&fakeClient{RegisterErr: client.ErrAlreadyExists}, conn, nopLogger{})
	require.ErrorIs(t, svc.Register(context.Background(), "u", []byte("p")), client.ErrAlreadyExists)
}

func TestPing_Close_Delegations(t *testing.T) {
	conn := setupDB(t)
	svc := NewAuthService(&fakeClient{}, conn, nopLogger{})
	require.NoError(t, svc.Ping(context.Background()))
	require.NoError(t, svc.Close(context.Background()))

	svc = NewAuthService(&fakeClient{PingErr: errors.New("down"), CloseErr: errors.New("io")}, conn, nopLogger{})
	require.Error(t, svc.Ping(context.Background()))
	require.Error(t, svc.Close(context.Background()))
}
