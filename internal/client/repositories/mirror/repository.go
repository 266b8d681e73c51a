// Package mirror is the local read-model of authority-confirmed lists and
// items. Nothing here is ever written from an unconfirmed local change: the
// reconciler and the refresh path are the only writers.
package mirror

import (
	"context"

	"github.com/dmitrijs2005/whattodo/internal/models"
)

type Repository interface {
	UpsertLists(ctx context.Context, lists []*models.List) error
	UpsertItems(ctx context.Context, items []*models.Item) error

	ListsByOwner(ctx context.Context, ownerID string) ([]*models.MirrorList, error)
	ItemsByOwner(ctx context.Context, ownerID string) ([]*models.MirrorItem, error)
	ItemsByList(ctx context.Context, listID string) ([]*models.MirrorItem, error)

	GetList(ctx context.Context, id string) (*models.MirrorList, error)
	GetItem(ctx context.Context, id string) (*models.MirrorItem, error)

	DeleteList(ctx context.Context, id string) error
	DeleteItem(ctx context.Context, id string) error

	Replace(ctx context.Context, ownerID string, lists []*models.List, items []*models.Item) error
	// Clear drops every mirrored row regardless of owner.
	Clear(ctx context.Context) error
}
