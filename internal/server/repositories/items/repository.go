// Package items persists the authority's copy of list items.
package items

import (
	"context"

	"github.com/dmitrijs2005/whattodo/internal/models"
)

type Repository interface {
	// Upsert inserts i or replaces the mutable fields of the caller's own row.
	// added_at of an existing row is kept. An id owned by someone else yields
	// common.ErrorForbidden.
	Upsert(ctx context.Context, i *models.Item) (*models.Item, error)
	Get(ctx context.Context, id string) (*models.Item, error)
	GetForUpdate(ctx context.Context, id string) (*models.Item, error)
	Update(ctx context.Context, i *models.Item) (*models.Item, error)
	Delete(ctx context.Context, ownerID, id string) (int64, error)
	// ListByOwner returns ownerID's items newest first, restricted to listID
	// unless it is empty.
	ListByOwner(ctx context.Context, ownerID, listID string) ([]*models.Item, error)
}
