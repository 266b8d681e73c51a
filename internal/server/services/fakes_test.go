package services

import (
	"context"
	"database/sql"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/dmitrijs2005/whattodo/internal/common"
	"github.com/dmitrijs2005/whattodo/internal/dbx"
	"github.com/dmitrijs2005/whattodo/internal/logging"
	"github.com/dmitrijs2005/whattodo/internal/models"
	servermodels "github.com/dmitrijs2005/whattodo/internal/server/models"
	"github.com/dmitrijs2005/whattodo/internal/server/repositories/items"
	"github.com/dmitrijs2005/whattodo/internal/server/repositories/lists"
	"github.com/dmitrijs2005/whattodo/internal/server/repositories/refreshtokens"
	"github.com/dmitrijs2005/whattodo/internal/server/repositories/users"
)

type errBoom struct{}

func (errBoom) Error() string { return "boom" }

func newSQLMockDB(t *testing.T) (*sql.DB, sqlmock.Sqlmock) {
	t.Helper()
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("sqlmock.New error: %v", err)
	}
	t.Cleanup(func() { db.Close() })
	return db, mock
}

type nopLogger struct{}

func (nopLogger) Debug(context.Context, string, ...any) {}
func (nopLogger) Info(context.Context, string, ...any)  {}
func (nopLogger) Warn(context.Context, string, ...any)  {}
func (nopLogger) Error(context.Context, string, ...any) {}
func (l nopLogger) With(...any) logging.Logger          { return l }

// ---- users ----

type fakeUsersRepo struct {
	createOut *servermodels.User
	createErr error

	getOut *servermodels.User
	getErr error
}

func (f *fakeUsersRepo) Create(_ context.Context, u *servermodels.User) (*servermodels.User, error) {
	if f.createErr != nil {
		return nil, f.createErr
	}
	return f.createOut, nil
}

func (f *fakeUsersRepo) GetUserByLogin(context.Context, string) (*servermodels.User, error) {
	if f.getErr != nil {
		return nil, f.getErr
	}
	return f.getOut, nil
}

// ---- refresh tokens ----

type fakeRefreshRepo struct {
	consumeOut *servermodels.RefreshToken
	consumeErr error
	consumed   []string

	createErr error
	created   []string

	expiredErr error
}

func (f *fakeRefreshRepo) Create(_ context.Context, _ string, token string, _ time.Duration) error {
	if f.createErr != nil {
		return f.createErr
	}
	f.created = append(f.created, token)
	return nil
}

func (f *fakeRefreshRepo) Consume(_ context.Context, token string) (*servermodels.RefreshToken, error) {
	f.consumed = append(f.consumed, token)
	if f.consumeErr != nil {
		return nil, f.consumeErr
	}
	return f.consumeOut, nil
}

func (f *fakeRefreshRepo) DeleteExpired(context.Context, string, time.Time) (int64, error) {
	return 0, f.expiredErr
}

// ---- lists ----

type memLists struct {
	rows map[string]*models.List
	err  error
}

func newMemLists(ls ...*models.List) *memLists {
	m := &memLists{rows: map[string]*models.List{}}
	for _, l := range ls {
		m.rows[l.ID] = l.Clone()
	}
	return m
}

func (m *memLists) Upsert(_ context.Context, l *models.List) (*models.List, error) {
	if m.err != nil {
		return nil, m.err
	}
	if cur, ok := m.rows[l.ID]; ok {
		if cur.OwnerID != l.OwnerID {
			return nil, common.ErrorForbidden
		}
		next := l.Clone()
		next.CreatedAt = cur.CreatedAt
		m.rows[l.ID] = next
		return next.Clone(), nil
	}
	m.rows[l.ID] = l.Clone()
	return l.Clone(), nil
}

func (m *memLists) Get(_ context.Context, id string) (*models.List, error) {
	if m.err != nil {
		return nil, m.err
	}
	l, ok := m.rows[id]
	if !ok {
		return nil, common.ErrorNotFound
	}
	return l.Clone(), nil
}

func (m *memLists) GetForUpdate(ctx context.Context, id string) (*models.List, error) {
	return m.Get(ctx, id)
}

func (m *memLists) Update(_ context.Context, l *models.List) (*models.List, error) {
	cur, ok := m.rows[l.ID]
	if !ok || cur.OwnerID != l.OwnerID {
		return nil, common.ErrorNotFound
	}
	m.rows[l.ID] = l.Clone()
	return l.Clone(), nil
}

func (m *memLists) Delete(_ context.Context, ownerID, id string) (int64, error) {
	if m.err != nil {
		return 0, m.err
	}
	if l, ok := m.rows[id]; ok && l.OwnerID == ownerID {
		delete(m.rows, id)
		return 1, nil
	}
	return 0, nil
}

func (m *memLists) ListByOwner(_ context.Context, ownerID string) ([]*models.List, error) {
	out := []*models.List{}
	for _, l := range m.rows {
		if l.OwnerID == ownerID {
			out = append(out, l.Clone())
		}
	}
	return out, nil
}

// ---- items ----

type memItems struct {
	rows map[string]*models.Item
}

func newMemItems(is ...*models.Item) *memItems {
	m := &memItems{rows: map[string]*models.Item{}}
	for _, i := range is {
		m.rows[i.ID] = i.Clone()
	}
	return m
}

func (m *memItems) Upsert(_ context.Context, i *models.Item) (*models.Item, error) {
	if cur, ok := m.rows[i.ID]; ok {
		if cur.OwnerID != i.OwnerID {
			return nil, common.ErrorForbidden
		}
		next := i.Clone()
		next.AddedAt = cur.AddedAt
		m.rows[i.ID] = next
		return next.Clone(), nil
	}
	m.rows[i.ID] = i.Clone()
	return i.Clone(), nil
}

func (m *memItems) Get(_ context.Context, id string) (*models.Item, error) {
	i, ok := m.rows[id]
	if !ok {
		return nil, common.ErrorNotFound
	}
	return i.Clone(), nil
}

func (m *memItems) GetForUpdate(ctx context.Context, id string) (*models.Item, error) {
	return m.Get(ctx, id)
}

func (m *memItems) Update(_ context.Context, i *models.Item) (*models.Item, error) {
	m.rows[i.ID] = i.Clone()
	return i.Clone(), nil
}

func (m *memItems) Delete(_ context.Context, ownerID, id string) (int64, error) {
	if i, ok := m.rows[id]; ok && i.OwnerID == ownerID {
		delete(m.rows, id)
		return 1, nil
	}
	return 0, nil
}

func (m *memItems) ListByOwner(_ context.Context, ownerID, listID string) ([]*models.Item, error) {
	out := []*models.Item{}
	for _, i := range m.rows {
		if i.OwnerID == ownerID && (listID == "" || i.ListID == listID) {
			out = append(out, i.Clone())
		}
	}
	return out, nil
}

// ---- manager ----

type fakeRepoManager struct {
	u *fakeUsersRepo
	r *fakeRefreshRepo
	l *memLists
	i *memItems
}

func (m *fakeRepoManager) RunMigrations(context.Context, *sql.DB) error    { return nil }
func (m *fakeRepoManager) Users(dbx.DBTX) users.Repository                 { return m.u }
func (m *fakeRepoManager) RefreshTokens(dbx.DBTX) refreshtokens.Repository { return m.r }
func (m *fakeRepoManager) Lists(dbx.DBTX) lists.Repository                 { return m.l }
func (m *fakeRepoManager) Items(dbx.DBTX) items.Repository                 { return m.i }
