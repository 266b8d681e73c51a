package lists

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

const columns = `id, owner_id, title, description, visibility, slug, tags, cover_url, created_at, updated_at`

type PostgresRepository struct {
	db dbx.DBTX
}

func NewPostgresRepository(db dbx.DBTX) *PostgresRepository {
	return &PostgresRepository{db: db}
}

func (r *PostgresRepository) Upsert(ctx context.Context, l *models.List) (*models.List, error) {
	query := `
		INSERT INTO lists (` + columns + `)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
		ON CONFLICT (id) DO UPDATE SET
			title = EXCLUDED.title,
			description = EXCLUDED.description,
			visibility = EXCLUDED.visibility,
			slug = EXCLUDED.slug,
			tags = EXCLUDED.tags,
			cover_url = EXCLUDED.cover_url,
			updated_at = EXCLUDED.updated_at
		WHERE lists.owner_id = EXCLUDED.owner_id
		RETURNING ` + columns

	tags, err := encodeTags(l.Tags)
	if err != nil {
		return nil, err
	}
	got, err := scanList(r.db.QueryRowContext(ctx, query,
		l.ID, l.OwnerID, l.Title, l.Description, string(l.Visibility), l.Slug,
		tags, l.CoverURL, l.CreatedAt, l.UpdatedAt))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, common.ErrorForbidden
		}
		return nil, fmt.Errorf("db error: %w", err)
	}
	return got, nil
}

func (r *PostgresRepository) Get(ctx context.Context, id string) (*models.List, error) {
	return r.get(ctx, `SELECT `+columns+` FROM lists WHERE id = $1`, id)
}

func (r *PostgresRepository) GetForUpdate(ctx context.Context, id string) (*models.List, error) {
	return r.get(ctx, `SELECT `+columns+` FROM lists WHERE id = $1 FOR UPDATE`, id)
}

func (r *PostgresRepository) get(ctx context.Context, query, id string) (*models.List, error) {
	l, err := scanList(r.db.QueryRowContext(ctx, query, id))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, common.ErrorNotFound
		}
		return nil, fmt.Errorf("db error: %w", err)
	}
	return l, nil
}

func (r *PostgresRepository) Update(ctx context.Context, l *models.List) (*models.List, error) {
	query := `
		UPDATE lists
		SET title = $1, description = $2, visibility = $3, slug = $4, tags = $5,
			cover_url = $6, updated_at = $7
		WHERE id = $8 AND owner_id = $9
		RETURNING ` + columns

	tags, err := encodeTags(l.Tags)
	if err != nil {
		return nil, err
	}
	got, err := scanList(r.db.QueryRowContext(ctx, query,
		l.Title, l.Description, string(l.Visibility), l.Slug, tags,
		l.CoverURL, l.UpdatedAt, l.ID, l.OwnerID))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, common.ErrorNotFound
		}
		return nil, fmt.Errorf("db error: %w", err)
	}
	return got, nil
}

func (r *PostgresRepository) Delete(ctx context.Context, ownerID, id string) (int64, error) {
	res, err := r.db.ExecContext(ctx, `DELETE FROM lists WHERE id = $1 AND owner_id = $2`, id, ownerID)
	if err != nil {
		return 0, fmt.Errorf("db error: %w", err)
	}
	return res.RowsAffected()
}

func (r *PostgresRepository) ListByOwner(ctx context.Context, ownerID string) ([]*models.List, error) {
	query := `SELECT ` + columns + ` FROM lists WHERE owner_id = $1 ORDER BY created_at DESC`

	rows, err := r.db.QueryContext(ctx, query, ownerID)
	if err != nil {
		return nil, fmt.Errorf("db error: %w", err)
	}
	defer rows.Close()

	out := []*models.List{}
	for rows.Next() {
		l, err := scanList(rows)
		if err != nil {
			return nil, fmt.Errorf("db error: %w", err)
		}
		out = append(out, l)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("db error: %w", err)
	}
	return out, nil
}

type scanner interface {
	Scan(dest ...any) error
}

func scanList(row scanner) (*models.List, error) {
	var (
		l                        models.List
		visibility               string
		description, slug, cover sql.NullString
		tags                     []byte
	)
	if err := row.Scan(&l.ID, &l.OwnerID, &l.Title, &description, &visibility, &slug,
		&tags, &cover, &l.CreatedAt, &l.UpdatedAt); err != nil {
		return nil, err
	}
	l.Visibility = models.Visibility(visibility)
	l.Description = stringPtr(description)
	l.Slug = stringPtr(slug)
	l.CoverURL = stringPtr(cover)
	l.Tags = []string{}
	if len(tags) > 0 {
		if err := json.Unmarshal(tags, &l.Tags); err != nil {
			return nil, fmt.Errorf("decode tags: %w", err)
		}
	}
	return &l, nil
}

func encodeTags(tags []string) (string, error) {
	if tags == nil {
		tags = []string{}
	}
	b, err := json.Marshal(tags)
	if err != nil {
		return "", fmt.Errorf("encode tags: %w", err)
	}
	return string(b), nil
}

func stringPtr(s sql.NullString) *string {
	if !s.Valid {
		return nil
	}
	v := s.String
	return &v
}
