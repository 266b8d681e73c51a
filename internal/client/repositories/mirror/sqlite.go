package mirror

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/dmitrijs2005/whattodo/internal/common"
	"github.com/dmitrijs2005/whattodo/internal/dbx"
	"github.com/dmitrijs2005/whattodo/internal/models"
)

// SQLiteRepository implements Repository over a DBTX.
type SQLiteRepository struct {
	db  dbx.DBTX
	now func() time.Time
}

func NewSQLiteRepository(db dbx.DBTX) *SQLiteRepository {
	return &SQLiteRepository{db: db, now: time.Now}
}

// WithClock replaces the clock used to stamp synced_at.
func (r *SQLiteRepository) WithClock(now func() time.Time) *SQLiteRepository {
	r.now = now
	return r
}

func storageErr(op string, err error) error {
	return fmt.Errorf("%s: %w: %w", op, common.ErrStorageFailure, err)
}

const listColumns = `id, owner_id, title, description, visibility, slug, tags, cover_url, created_at, updated_at, synced_at`

const itemColumns = `id, owner_id, list_id, type, title, url, source, source_id, status, notes, tags, metadata, added_at, completed_at, updated_at, synced_at`

const upsertListSQL = `
	INSERT INTO lists (` + listColumns + `)
	VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	ON CONFLICT(id) DO UPDATE SET
		owner_id = excluded.owner_id,
		title = excluded.title,
		description = excluded.description,
		visibility = excluded.visibility,
		slug = excluded.slug,
		tags = excluded.tags,
		cover_url = excluded.cover_url,
		created_at = excluded.created_at,
		updated_at = excluded.updated_at,
		synced_at = excluded.synced_at`

const upsertItemSQL = `
	INSERT INTO items (` + itemColumns + `)
	VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	ON CONFLICT(id) DO UPDATE SET
		owner_id = excluded.owner_id,
		list_id = excluded.list_id,
		type = excluded.type,
		title = excluded.title,
		url = excluded.url,
		source = excluded.source,
		source_id = excluded.source_id,
		status = excluded.status,
		notes = excluded.notes,
		tags = excluded.tags,
		metadata = excluded.metadata,
		added_at = excluded.added_at,
		completed_at = excluded.completed_at,
		updated_at = excluded.updated_at,
		synced_at = excluded.synced_at`

func nullString(s *string) sql.NullString {
	if s == nil {
		return sql.NullString{}
	}
	return sql.NullString{String: *s, Valid: true}
}

func stringPtr(s sql.NullString) *string {
	if !s.Valid {
		return nil
	}
	v := s.String
	return &v
}

func encodeTags(tags []string) (string, error) {
	if tags == nil {
		tags = []string{}
	}
	b, err := json.Marshal(tags)
	return string(b), err
}

func decodeTags(s string) ([]string, error) {
	tags := []string{}
	if s == "" {
		return tags, nil
	}
	err := json.Unmarshal([]byte(s), &tags)
	return tags, err
}

// UpsertLists writes lists as confirmed now.
func (r *SQLiteRepository) UpsertLists(ctx context.Context, lists []*models.List) error {
	syncedAt := dbx.FormatTime(r.now())
	for _, l := range lists {
		tags, err := encodeTags(l.Tags)
		if err != nil {
			return storageErr("encode list tags", err)
		}
		_, err = r.db.ExecContext(ctx, upsertListSQL,
			l.ID, l.OwnerID, l.Title, nullString(l.Description), string(l.Visibility),
			nullString(l.Slug), tags, nullString(l.CoverURL),
			dbx.FormatTime(l.CreatedAt), dbx.FormatTime(l.UpdatedAt), syncedAt)
		if err != nil {
			return storageErr("upsert list "+l.ID, err)
		}
	}
	return nil
}

// UpsertItems writes items as confirmed now.
func (r *SQLiteRepository) UpsertItems(ctx context.Context, items []*models.Item) error {
	syncedAt := dbx.FormatTime(r.now())
	for _, i := range items {
		tags, err := encodeTags(i.Tags)
		if err != nil {
			return storageErr("encode item tags", err)
		}
		var meta sql.NullString
		if i.Metadata != nil {
			b, err := json.Marshal(i.Metadata)
			if err != nil {
				return storageErr("encode item metadata", err)
			}
			meta = sql.NullString{String: string(b), Valid: true}
		}
		_, err = r.db.ExecContext(ctx, upsertItemSQL,
			i.ID, i.OwnerID, i.ListID, string(i.Type), i.Title,
			nullString(i.URL), nullString(i.Source), nullString(i.SourceID),
			string(i.Status), nullString(i.Notes), tags, meta,
			dbx.FormatTime(i.AddedAt), dbx.FormatNullTime(i.CompletedAt),
			dbx.FormatTime(i.UpdatedAt), syncedAt)
		if err != nil {
			return storageErr("upsert item "+i.ID, err)
		}
	}
	return nil
}

type scanner interface {
	Scan(dest ...any) error
}

func scanList(row scanner) (*models.MirrorList, error) {
	var (
		l                              models.MirrorList
		visibility, tags               string
		description, slug, cover       sql.NullString
		createdAt, updatedAt, syncedAt string
	)
	if err := row.Scan(&l.ID, &l.OwnerID, &l.Title, &description, &visibility, &slug,
		&tags, &cover, &createdAt, &updatedAt, &syncedAt); err != nil {
		return nil, err
	}
	l.Visibility = models.Visibility(visibility)
	l.Description = stringPtr(description)
	l.Slug = stringPtr(slug)
	l.CoverURL = stringPtr(cover)

	var err error
	if l.Tags, err = decodeTags(tags); err != nil {
		return nil, err
	}
	if l.CreatedAt, err = dbx.ParseTime(createdAt); err != nil {
		return nil, err
	}
	if l.UpdatedAt, err = dbx.ParseTime(updatedAt); err != nil {
		return nil, err
	}
	if l.SyncedAt, err = dbx.ParseTime(syncedAt); err != nil {
		return nil, err
	}
	return &l, nil
}

func scanItem(row scanner) (*models.MirrorItem, error) {
	var (
		i                                  models.MirrorItem
		typ, status, tags                  string
		url, source, sourceID, notes, meta sql.NullString
		completedAt                        sql.NullString
		addedAt, updatedAt, syncedAt       string
	)
	if err := row.Scan(&i.ID, &i.OwnerID, &i.ListID, &typ, &i.Title, &url, &source, &sourceID,
		&status, &notes, &tags, &meta, &addedAt, &completedAt, &updatedAt, &syncedAt); err != nil {
		return nil, err
	}
	i.Type = models.ItemType(typ)
	i.Status = models.Status(status)
	i.URL = stringPtr(url)
	i.Source = stringPtr(source)
	i.SourceID = stringPtr(sourceID)
	i.Notes = stringPtr(notes)

	var err error
	if i.Tags, err = decodeTags(tags); err != nil {
		return nil, err
	}
	if meta.Valid {
		if err := json.Unmarshal([]byte(meta.String), &i.Metadata); err != nil {
			return nil, err
		}
	}
	if i.AddedAt, err = dbx.ParseTime(addedAt); err != nil {
		return nil, err
	}
	if i.CompletedAt, err = dbx.ParseNullTime(completedAt); err != nil {
		return nil, err
	}
	if i.UpdatedAt, err = dbx.ParseTime(updatedAt); err != nil {
		return nil, err
	}
	if i.SyncedAt, err = dbx.ParseTime(syncedAt); err != nil {
		return nil, err
	}
	return &i, nil
}

func (r *SQLiteRepository) queryLists(ctx context.Context, op, query string, args ...any) ([]*models.MirrorList, error) {
	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, storageErr(op, err)
	}
	defer rows.Close()

	result := []*models.MirrorList{}
	for rows.Next() {
		l, err := scanList(rows)
		if err != nil {
			return nil, storageErr(op, err)
		}
		result = append(result, l)
	}
	if err := rows.Err(); err != nil {
		return nil, storageErr(op, err)
	}
	return result, nil
}

func (r *SQLiteRepository) queryItems(ctx context.Context, op, query string, args ...any) ([]*models.MirrorItem, error) {
	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, storageErr(op, err)
	}
	defer rows.Close()

	result := []*models.MirrorItem{}
	for rows.Next() {
		i, err := scanItem(rows)
		if err != nil {
			return nil, storageErr(op, err)
		}
		result = append(result, i)
	}
	if err := rows.Err(); err != nil {
		return nil, storageErr(op, err)
	}
	return result, nil
}

// ListsByOwner returns the owner's lists, newest first.
func (r *SQLiteRepository) ListsByOwner(ctx context.Context, ownerID string) ([]*models.MirrorList, error) {
	return r.queryLists(ctx, "select lists by owner",
		`SELECT `+listColumns+` FROM lists WHERE owner_id = ? ORDER BY created_at DESC, id`, ownerID)
}

// ItemsByOwner returns the owner's items, most recently added first.
func (r *SQLiteRepository) ItemsByOwner(ctx context.Context, ownerID string) ([]*models.MirrorItem, error) {
	return r.queryItems(ctx, "select items by owner",
		`SELECT `+itemColumns+` FROM items WHERE owner_id = ? ORDER BY added_at DESC, id`, ownerID)
}

// ItemsByList returns the items of one list, most recently added first.
func (r *SQLiteRepository) ItemsByList(ctx context.Context, listID string) ([]*models.MirrorItem, error) {
	return r.queryItems(ctx, "select items by list",
		`SELECT `+itemColumns+` FROM items WHERE list_id = ? ORDER BY added_at DESC, id`, listID)
}

func (r *SQLiteRepository) GetList(ctx context.Context, id string) (*models.MirrorList, error) {
	l, err := scanList(r.db.QueryRowContext(ctx, `SELECT `+listColumns+` FROM lists WHERE id = ?`, id))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, common.ErrorNotFound
	}
	if err != nil {
		return nil, storageErr("get list "+id, err)
	}
	return l, nil
}

func (r *SQLiteRepository) GetItem(ctx context.Context, id string) (*models.MirrorItem, error) {
	i, err := scanItem(r.db.QueryRowContext(ctx, `SELECT `+itemColumns+` FROM items WHERE id = ?`, id))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, common.ErrorNotFound
	}
	if err != nil {
		return nil, storageErr("get item "+id, err)
	}
	return i, nil
}

// DeleteList removes a list and its items. Deleting an absent list is a no-op.
func (r *SQLiteRepository) DeleteList(ctx context.Context, id string) error {
	if _, err := r.db.ExecContext(ctx, `DELETE FROM items WHERE list_id = ?`, id); err != nil {
		return storageErr("delete items of list "+id, err)
	}
	if _, err := r.db.ExecContext(ctx, `DELETE FROM lists WHERE id = ?`, id); err != nil {
		return storageErr("delete list "+id, err)
	}
	return nil
}

func (r *SQLiteRepository) DeleteItem(ctx context.Context, id string) error {
	if _, err := r.db.ExecContext(ctx, `DELETE FROM items WHERE id = ?`, id); err != nil {
		return storageErr("delete item "+id, err)
	}
	return nil
}

func (r *SQLiteRepository) Clear(ctx context.Context) error {
	if _, err := r.db.ExecContext(ctx, `DELETE FROM items`); err != nil {
		return storageErr("clear items", err)
	}
	if _, err := r.db.ExecContext(ctx, `DELETE FROM lists`); err != nil {
		return storageErr("clear lists", err)
	}
	return nil
}

func placeholders(n int) string {
	return strings.TrimSuffix(strings.Repeat("?,", n), ",")
}

// Replace makes the owner's mirror equal to the given snapshot: everything in
// it is upserted and every other row of the owner is dropped. Callers wanting
// atomicity run it on a transaction.
func (r *SQLiteRepository) Replace(ctx context.Context, ownerID string, lists []*models.List, items []*models.Item) error {
	if err := r.UpsertLists(ctx, lists); err != nil {
		return err
	}
	if err := r.UpsertItems(ctx, items); err != nil {
		return err
	}

	if err := r.dropOthers(ctx, "items", ownerID, itemIDs(items)); err != nil {
		return err
	}
	return r.dropOthers(ctx, "lists", ownerID, listIDs(lists))
}

func (r *SQLiteRepository) dropOthers(ctx context.Context, table, ownerID string, keep []string) error {
	query := `DELETE FROM ` + table + ` WHERE owner_id = ?`
	args := []any{ownerID}
	if len(keep) > 0 {
		query += ` AND id NOT IN (` + placeholders(len(keep)) + `)`
		for _, id := range keep {
			args = append(args, id)
		}
	}
	if _, err := r.db.ExecContext(ctx, query, args...); err != nil {
		return storageErr("prune "+table, err)
	}
	return nil
}

func listIDs(lists []*models.List) []string {
	ids := make([]string, 0, len(lists))
	for _, l := range lists {
		ids = append(ids, l.ID)
	}
	return ids
}

func itemIDs(items []*models.Item) []string {
	ids := make([]string, 0, len(items))
	for _, i := range items {
		ids = append(ids, i.ID)
	}
	return ids
}
