package items

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/dmitrijs2005/whattodo/internal/common"
	"github.com/dmitrijs2005/whattodo/internal/dbx"
	"github.com/dmitrijs2005/whattodo/internal/models"
)

const columns = `id, owner_id, list_id, type, title, url, source, source_id, status, notes, tags, metadata, added_at, completed_at, updated_at`

type PostgresRepository struct {
	db dbx.DBTX
}

func NewPostgresRepository(db dbx.DBTX) *PostgresRepository {
	return &PostgresRepository{db: db}
}

func (r *PostgresRepository) Upsert(ctx context.Context, i *models.Item) (*models.Item, error) {
	query := `
		INSERT INTO items (` + columns + `)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15)
		ON CONFLICT (id) DO UPDATE SET
			list_id = EXCLUDED.list_id,
			type = EXCLUDED.type,
			title = EXCLUDED.title,
			url = EXCLUDED.url,
			source = EXCLUDED.source,
			source_id = EXCLUDED.source_id,
			status = EXCLUDED.status,
			notes = EXCLUDED.notes,
			tags = EXCLUDED.tags,
			metadata = EXCLUDED.metadata,
			completed_at = EXCLUDED.completed_at,
			updated_at = EXCLUDED.updated_at
		WHERE items.owner_id = EXCLUDED.owner_id
		RETURNING ` + columns

	args, err := values(i)
	if err != nil {
		return nil, err
	}
	got, err := scanItem(r.db.QueryRowContext(ctx, query,
		i.ID, i.OwnerID, i.ListID, string(i.Type), i.Title, i.URL, i.Source, i.SourceID,
		string(i.Status), i.Notes, args.tags, args.metadata, i.AddedAt, i.CompletedAt, i.UpdatedAt))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, common.ErrorForbidden
		}
		return nil, fmt.Errorf("db error: %w", err)
	}
	return got, nil
}

func (r *PostgresRepository) Get(ctx context.Context, id string) (*models.Item, error) {
	return r.get(ctx, `SELECT `+columns+` FROM items WHERE id = $1`, id)
}

func (r *PostgresRepository) GetForUpdate(ctx context.Context, id string) (*models.Item, error) {
	return r.get(ctx, `SELECT `+columns+` FROM items WHERE id = $1 FOR UPDATE`, id)
}

func (r *PostgresRepository) get(ctx context.Context, query, id string) (*models.Item, error) {
	i, err := scanItem(r.db.QueryRowContext(ctx, query, id))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, common.ErrorNotFound
		}
		return nil, fmt.Errorf("db error: %w", err)
	}
	return i, nil
}

func (r *PostgresRepository) Update(ctx context.Context, i *models.Item) (*models.Item, error) {
	query := `
		UPDATE items
		SET list_id = $1, type = $2, title = $3, url = $4, source = $5, source_id = $6,
			status = $7, notes = $8, tags = $9, metadata = $10, completed_at = $11, updated_at = $12
		WHERE id = $13 AND owner_id = $14
		RETURNING ` + columns

	args, err := values(i)
	if err != nil {
		return nil, err
	}
	got, err := scanItem(r.db.QueryRowContext(ctx, query,
		i.ListID, string(i.Type), i.Title, i.URL, i.Source, i.SourceID,
		string(i.Status), i.Notes, args.tags, args.metadata, i.CompletedAt, i.UpdatedAt,
		i.ID, i.OwnerID))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, common.ErrorNotFound
		}
		return nil, fmt.Errorf("db error: %w", err)
	}
	return got, nil
}

func (r *PostgresRepository) Delete(ctx context.Context, ownerID, id string) (int64, error) {
	res, err := r.db.ExecContext(ctx, `DELETE FROM items WHERE id = $1 AND owner_id = $2`, id, ownerID)
	if err != nil {
		return 0, fmt.Errorf("db error: %w", err)
	}
	return res.RowsAffected()
}

func (r *PostgresRepository) ListByOwner(ctx context.Context, ownerID, listID string) ([]*models.Item, error) {
	if listID == "" {
		return r.query(ctx, `SELECT `+columns+` FROM items WHERE owner_id = $1 ORDER BY added_at DESC`, ownerID)
	}
	return r.query(ctx, `SELECT `+columns+` FROM items WHERE owner_id = $1 AND list_id = $2 ORDER BY added_at DESC`, ownerID, listID)
}

func (r *PostgresRepository) query(ctx context.Context, query string, args ...any) ([]*models.Item, error) {
	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("db error: %w", err)
	}
	defer rows.Close()

	out := []*models.Item{}
	for rows.Next() {
		i, err := scanItem(rows)
		if err != nil {
			return nil, fmt.Errorf("db error: %w", err)
		}
		out = append(out, i)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("db error: %w", err)
	}
	return out, nil
}

type encoded struct {
	tags     string
	metadata sql.NullString
}

func values(i *models.Item) (encoded, error) {
	var e encoded
	tags := i.Tags
	if tags == nil {
		tags = []string{}
	}
	b, err := json.Marshal(tags)
	if err != nil {
		return e, fmt.Errorf("encode tags: %w", err)
	}
	e.tags = string(b)
	if i.Metadata != nil {
		b, err := json.Marshal(i.Metadata)
		if err != nil {
			return e, fmt.Errorf("encode metadata: %w", err)
		}
		e.metadata = sql.NullString{String: string(b), Valid: true}
	}
	return e, nil
}

type scanner interface {
	Scan(dest ...any) error
}

func scanItem(row scanner) (*models.Item, error) {
	var (
		i                            models.Item
		typ, status                  string
		url, source, sourceID, notes sql.NullString
		tags, metadata               []byte
		completedAt                  sql.NullTime
	)
	if err := row.Scan(&i.ID, &i.OwnerID, &i.ListID, &typ, &i.Title, &url, &source, &sourceID,
		&status, &notes, &tags, &metadata, &i.AddedAt, &completedAt, &i.UpdatedAt); err != nil {
		return nil, err
	}
	i.Type = models.ItemType(typ)
	i.Status = models.Status(status)
	i.URL = stringPtr(url)
	i.Source = stringPtr(source)
	i.SourceID = stringPtr(sourceID)
	i.Notes = stringPtr(notes)
	if completedAt.Valid {
		t := completedAt.Time
		i.CompletedAt = &t
	}
	i.Tags = []string{}
	if len(tags) > 0 {
		if err := json.Unmarshal(tags, &i.Tags); err != nil {
			return nil, fmt.Errorf("decode tags: %w", err)
		}
	}
	if len(metadata) > 0 {
		if err := json.Unmarshal(metadata, &i.Metadata); err != nil {
			return nil, fmt.Errorf("decode metadata: %w", err)
		}
	}
	return &i, nil
}

func stringPtr(s sql.NullString) *string {
	if !s.Valid {
		return nil
	}
	v := s.String
	return &v
}
