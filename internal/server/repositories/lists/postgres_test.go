package lists

import (
	"context"
	"database/sql"
	"errors"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/dmitrijs2005/whattodo/internal/common"
	"github.com/dmitrijs2005/whattodo/internal/models"
	"github.com/stretchr/testify/require"
)

var (
	listCols = []string{"id", "owner_id", "title", "description", "visibility", "slug", "tags", "cover_url", "created_at", "updated_at"}
	created  = time.Date(2026, 2, 1, 10, 0, 0, 0, time.UTC)
	updated  = time.Date(2026, 2, 3, 10, 0, 0, 0, time.UTC)
)

func newRepoWithMock(t *testing.T) (*PostgresRepository, sqlmock.Sqlmock) {
	t.Helper()
	db, mock, err := sqlmock.New(sqlmock.QueryMatcherOption(sqlmock.QueryMatcherRegexp))
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })
	return NewPostgresRepository(db), mock
}

func sampleList() *models.List {
	slug := "books-abc123"
	return &models.List{
		ID:         "l1",
		OwnerID:    "u1",
		Title:      "Books",
		Visibility: models.VisibilityPublic,
		Slug:       &slug,
		Tags:       []string{"read"},
		CreatedAt:  created,
		UpdatedAt:  updated,
	}
}

func listRow(rows *sqlmock.Rows, l *models.List) *sqlmock.Rows {
	var slug any
	if l.Slug != nil {
		slug = *l.Slug
	}
	return rows.AddRow(l.ID, l.OwnerID, l.Title, nil, string(l.Visibility), slug, []byte(`["read"]`), nil, l.CreatedAt, l.UpdatedAt)
}

func TestUpsert_InsertsOrReplaces(t *testing.T) {
	repo, mock := newRepoWithMock(t)
	l := sampleList()

	mock.ExpectQuery(`(?s)INSERT INTO lists .*ON CONFLICT \(id\) DO UPDATE SET.*WHERE lists\.owner_id = EXCLUDED\.owner_id\s+RETURNING`).
		WithArgs("l1", "u1", "Books", nil, "public", "books-abc123", `["read"]`, nil, created, updated).
		WillReturnRows(listRow(sqlmock.NewRows(listCols), l))

	got, err := repo.Upsert(context.Background(), l)
	require.NoError(t, err)
	require.Equal(t, "Books", got.Title)
	require.Equal(t, []string{"read"}, got.Tags)
	require.Nil(t, got.Description)
	require.Equal(t, "books-abc123", *got.Slug)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestUpsert_ForeignOwnerIsForbidden(t *testing.T) {
	repo, mock := newRepoWithMock(t)

	mock.ExpectQuery(`INSERT INTO lists`).WillReturnError(sql.ErrNoRows)

	_, err := repo.Upsert(context.Background(), sampleList())
	require.ErrorIs(t, err, common.ErrorForbidden)
}

func TestGet(t *testing.T) {
	repo, mock := newRepoWithMock(t)

	mock.ExpectQuery(`SELECT .* FROM lists WHERE id = \$1$`).
		WithArgs("l1").
		WillReturnRows(listRow(sqlmock.NewRows(listCols), sampleList()))
	l, err := repo.Get(context.Background(), "l1")
	require.NoError(t, err)
	require.Equal(t, "u1", l.OwnerID)

	mock.ExpectQuery(`SELECT .* FROM lists WHERE id = \$1 FOR UPDATE`).
		WithArgs("nope").
		WillReturnError(sql.ErrNoRows)
	_, err = repo.GetForUpdate(context.Background(), "nope")
	require.ErrorIs(t, err, common.ErrorNotFound)

	mock.ExpectQuery(`SELECT .* FROM lists`).WillReturnError(errors.New("db down"))
	_, err = repo.Get(context.Background(), "l1")
	require.ErrorContains(t, err, "db error")
}

func TestUpdate(t *testing.T) {
	repo, mock := newRepoWithMock(t)
	l := sampleList()
	desc := "to read"
	l.Description = &desc

	mock.ExpectQuery(`(?s)UPDATE lists\s+SET .*WHERE id = \$8 AND owner_id = \$9`).
		WithArgs("Books", "to read", "public", "books-abc123", `["read"]`, nil, updated, "l1", "u1").
		WillReturnRows(listRow(sqlmock.NewRows(listCols), l))

	_, err := repo.Update(context.Background(), l)
	require.NoError(t, err)

	mock.ExpectQuery(`UPDATE lists`).WillReturnError(sql.ErrNoRows)
	_, err = repo.Update(context.Background(), l)
	require.ErrorIs(t, err, common.ErrorNotFound)
}

func TestDelete(t *testing.T) {
	repo, mock := newRepoWithMock(t)

	mock.ExpectExec(`DELETE FROM lists WHERE id = \$1 AND owner_id = \$2`).
		WithArgs("l1", "u1").
		WillReturnResult(sqlmock.NewResult(0, 1))

	n, err := repo.Delete(context.Background(), "u1", "l1")
	require.NoError(t, err)
	require.EqualValues(t, 1, n)
}

func TestListByOwner(t *testing.T) {
	repo, mock := newRepoWithMock(t)
	older := sampleList()
	older.ID, older.Title = "l0", "Old"

	rows := sqlmock.NewRows(listCols)
	listRow(rows, sampleList())
	listRow(rows, older)
	mock.ExpectQuery(`SELECT .* FROM lists WHERE owner_id = \$1 ORDER BY created_at DESC`).
		WithArgs("u1").
		WillReturnRows(rows)

	got, err := repo.ListByOwner(context.Background(), "u1")
	require.NoError(t, err)
	require.Len(t, got, 2)
	require.Equal(t, "l1", got[0].ID)
	require.Equal(t, "l0", got[1].ID)
}

func TestListByOwner_Empty(t *testing.T) {
	repo, mock := newRepoWithMock(t)

	mock.ExpectQuery(`FROM lists`).WithArgs("u2").WillReturnRows(sqlmock.NewRows(listCols))

	got, err := repo.ListByOwner(context.Background(), "u2")
	require.NoError(t, err)
	require.NotNil(t, got)
	require.Empty(t, got)
}
