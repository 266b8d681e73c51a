package outbox

import (
	"context"
	"fmt"
	"time"

	"github.com/dmitrijs2005/whattodo/internal/common"
	"github.com/dmitrijs2005/whattodo/internal/dbx"
	"github.com/dmitrijs2005/whattodo/internal/models"
)

type SQLiteRepository struct {
	db  dbx.DBTX
	now func() time.Time
}

func NewSQLiteRepository(db dbx.DBTX) *SQLiteRepository {
	return &SQLiteRepository{db: db, now: time.Now}
}

func storageErr(op string, err error) error {
	return fmt.Errorf("%s: %w: %w", op, common.ErrStorageFailure, err)
}

func (r *SQLiteRepository) Enqueue(ctx context.Context, m models.Mutation) (int64, error) {
	payload, err := models.EncodeMutation(m)
	if err != nil {
		return 0, fmt.Errorf("encode mutation: %w", err)
	}

	res, err := r.db.ExecContext(ctx,
		`INSERT INTO outbox (op, entity, entity_id, payload, created_at) VALUES (?, ?, ?, ?, ?)`,
		string(m.Op()), string(m.Entity()), m.EntityID(), payload, dbx.FormatTime(r.now()))
	if err != nil {
		return 0, storageErr("enqueue mutation", err)
	}
	seq, err := res.LastInsertId()
	if err != nil {
		return 0, storageErr("enqueue mutation", err)
	}
	return seq, nil
}

func (r *SQLiteRepository) Pending(ctx context.Context) ([]*models.OutboxEntry, error) {
	return r.selectPending(ctx,
		`SELECT seq, op, entity, entity_id, payload, created_at FROM outbox WHERE synced = 0 ORDER BY seq`)
}

func (r *SQLiteRepository) PendingFor(ctx context.Context, entity models.EntityKind, id string) ([]*models.OutboxEntry, error) {
	return r.selectPending(ctx,
		`SELECT seq, op, entity, entity_id, payload, created_at FROM outbox
		 WHERE synced = 0 AND entity = ? AND entity_id = ? ORDER BY seq`,
		string(entity), id)
}

func (r *SQLiteRepository) selectPending(ctx context.Context, query string, args ...any) ([]*models.OutboxEntry, error) {
	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, storageErr("select pending", err)
	}
	defer rows.Close()

	var result []*models.OutboxEntry
	for rows.Next() {
		var (
			seq                          int64
			op, entity, id, createdAtStr string
			payload                      []byte
		)
		if err := rows.Scan(&seq, &op, &entity, &id, &payload, &createdAtStr); err != nil {
			return nil, storageErr("scan outbox row", err)
		}
		m, err := models.DecodeMutation(models.OpKind(op), models.EntityKind(entity), id, payload)
		if err != nil {
			return nil, fmt.Errorf("outbox entry %d: %w", seq, err)
		}
		createdAt, err := dbx.ParseTime(createdAtStr)
		if err != nil {
			return nil, storageErr("scan outbox row", err)
		}
		result = append(result, &models.OutboxEntry{Seq: seq, Mutation: m, CreatedAt: createdAt})
	}
	if err := rows.Err(); err != nil {
		return nil, storageErr("iterate outbox rows", err)
	}
	return result, nil
}

func (r *SQLiteRepository) MarkSynced(ctx context.Context, seq int64) error {
	if _, err := r.db.ExecContext(ctx, `UPDATE outbox SET synced = 1 WHERE seq = ?`, seq); err != nil {
		return storageErr(fmt.Sprintf("mark %d synced", seq), err)
	}
	return nil
}

func (r *SQLiteRepository) Compact(ctx context.Context) (int64, error) {
	res, err := r.db.ExecContext(ctx, `DELETE FROM outbox WHERE synced = 1`)
	if err != nil {
		return 0, storageErr("compact outbox", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return 0, storageErr("compact outbox", err)
	}
	return n, nil
}

func (r *SQLiteRepository) PendingCount(ctx context.Context) (int, error) {
	var n int
	if err := r.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM outbox WHERE synced = 0`).Scan(&n); err != nil {
		return 0, storageErr("count pending", err)
	}
	return n, nil
}

func (r *SQLiteRepository) Clear(ctx context.Context) error {
	if _, err := r.db.ExecContext(ctx, `DELETE FROM outbox`); err != nil {
		return storageErr("clear outbox", err)
	}
	return nil
}
