package routing

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/dmitrijs2005/whattodo/internal/common"
	"github.com/dmitrijs2005/whattodo/internal/dbx"
)

// CachedResponse is a stored origin response.
type CachedResponse struct {
	Status   int
	Header   http.Header
	Body     []byte
	StoredAt time.Time
}

// Cache is a versioned response cache kept in the client database.
type Cache struct {
	db   dbx.DBTX
	name string
	now  func() time.Time
}

func NewCache(db dbx.DBTX, name string) *Cache {
	return &Cache{db: db, name: name, now: time.Now}
}

func (c *Cache) Name() string { return c.name }

func storageErr(op string, err error) error {
	return fmt.Errorf("%s: %w: %w", op, common.ErrStorageFailure, err)
}

// Get returns common.ErrorNotFound on a miss.
func (c *Cache) Get(ctx context.Context, key string) (*CachedResponse, error) {
	var (
		r        CachedResponse
		header   string
		storedAt string
	)
	err := c.db.QueryRowContext(ctx,
		`SELECT status, header, body, stored_at FROM response_cache WHERE cache_name = ? AND key = ?`,
		c.name, key).Scan(&r.Status, &header, &r.Body, &storedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, common.ErrorNotFound
	}
	if err != nil {
		return nil, storageErr("read cached response", err)
	}
	if err := json.Unmarshal([]byte(header), &r.Header); err != nil {
		return nil, storageErr("decode cached header", err)
	}
	if r.StoredAt, err = dbx.ParseTime(storedAt); err != nil {
		return nil, storageErr("read cached response", err)
	}
	return &r, nil
}

func (c *Cache) Put(ctx context.Context, key string, r *CachedResponse) error {
	header, err := json.Marshal(r.Header)
	if err != nil {
		return storageErr("encode header", err)
	}
	body := r.Body
	if body == nil {
		body = []byte{}
	}
	_, err = c.db.ExecContext(ctx, `
		INSERT INTO response_cache (cache_name, key, status, header, body, stored_at)
		VALUES (?, ?, ?, ?, ?, ?)
		ON CONFLICT(cache_name, key) DO UPDATE SET
			status = excluded.status,
			header = excluded.header,
			body = excluded.body,
			stored_at = excluded.stored_at`,
		c.name, key, r.Status, string(header), body, dbx.FormatTime(c.now()))
	if err != nil {
		return storageErr("store response", err)
	}
	return nil
}

func (c *Cache) Delete(ctx context.Context, key string) error {
	if _, err := c.db.ExecContext(ctx,
		`DELETE FROM response_cache WHERE cache_name = ? AND key = ?`, c.name, key); err != nil {
		return storageErr("delete cached response", err)
	}
	return nil
}

// Keys lists the keys held under this cache version.
func (c *Cache) Keys(ctx context.Context) ([]string, error) {
	rows, err := c.db.QueryContext(ctx,
		`SELECT key FROM response_cache WHERE cache_name = ? ORDER BY key`, c.name)
	if err != nil {
		return nil, storageErr("list cache keys", err)
	}
	defer rows.Close()

	var keys []string
	for rows.Next() {
		var k string
		if err := rows.Scan(&k); err != nil {
			return nil, storageErr("list cache keys", err)
		}
		keys = append(keys, k)
	}
	if err := rows.Err(); err != nil {
		return nil, storageErr("list cache keys", err)
	}
	return keys, nil
}

// Activate drops every entry stored under another cache version and reports
// how many were removed.
func (c *Cache) Activate(ctx context.Context) (int64, error) {
	res, err := c.db.ExecContext(ctx, `DELETE FROM response_cache WHERE cache_name <> ?`, c.name)
	if err != nil {
		return 0, storageErr("drop stale caches", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return 0, storageErr("drop stale caches", err)
	}
	return n, nil
}
