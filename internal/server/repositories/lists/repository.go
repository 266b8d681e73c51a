// Package lists persists the authority's copy of user lists.
package lists

import (
	"context"

	"github.com/dmitrijs2005/whattodo/internal/models"
)

// Repository stores lists. Lookups by id are not owner scoped; callers
// compare OwnerID themselves so "missing" and "not yours" stay distinct.
type Repository interface {
	// Upsert inserts l or, when the id already belongs to l.OwnerID, replaces
	// its mutable fields. created_at of an existing row is kept. An id owned
	// by someone else yields common.ErrorForbidden.
	Upsert(ctx context.Context, l *models.List) (*models.List, error)
	Get(ctx context.Context, id string) (*models.List, error)
	// GetForUpdate is Get with a row lock; use it inside a transaction.
	GetForUpdate(ctx context.Context, id string) (*models.List, error)
	Update(ctx context.Context, l *models.List) (*models.List, error)
	Delete(ctx context.Context, ownerID, id string) (int64, error)
	// ListByOwner returns ownerID's lists, newest first.
	ListByOwner(ctx context.Context, ownerID string) ([]*models.List, error)
}
