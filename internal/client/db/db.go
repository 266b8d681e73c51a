// Package db opens the client's local SQLite database: the local mirror,
// the outbox, auth metadata and the routing layer's response cache all live
// in one file.
package db

import (
	"context"
	"database/sql"
	"fmt"
	"net/url"

	"github.com/dmitrijs2005/whattodo/internal/client/migrations"
	"github.com/dmitrijs2005/whattodo/internal/dbx"
	"github.com/pressly/goose/v3"

	_ "modernc.org/sqlite"
)

// DSN builds a modernc sqlite DSN for path with WAL and a busy timeout.
func DSN(path string) string {
	q := url.Values{}
	q.Add("_pragma", "busy_timeout(5000)")
	q.Add("_pragma", "journal_mode(WAL)")
	q.Add("_pragma", "synchronous(NORMAL)")
	return "file:" + path + "?" + q.Encode()
}

// Open opens (creating if needed) the database at path and migrates it.
// The pool is limited to one connection: the client never runs two writes
// against the local database at the same time.
func Open(ctx context.Context, path string) (*sql.DB, error) {
	db, err := sql.Open("sqlite", DSN(path))
	if err != nil {
		return nil, fmt.Errorf("open local database: %w", err)
	}

	if err := dbx.Migrate(ctx, db, goose.DialectSQLite3, migrations.Migrations); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("migrate local database: %w", err)
	}

	db.SetMaxOpenConns(1)
	return db, nil
}
