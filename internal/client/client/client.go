package client

import (
	"context"

	"github.com/dmitrijs2005/whattodo/internal/models"
)

// Client is the remote authority as seen by the client application.
type Client interface {
	Close() error

	Register(ctx context.Context, username string, salt []byte, verifier []byte) error
	GetSalt(ctx context.Context, username string) ([]byte, error)
	Login(ctx context.Context, username string, verifier []byte) (string, error)
	Ping(ctx context.Context) error

	CreateList(ctx context.Context, l *models.List) (*models.List, error)
	UpdateList(ctx context.Context, id string, p models.ListPatch) (*models.List, error)
	DeleteList(ctx context.Context, id string) error
	GetList(ctx context.Context, id string) (*models.List, error)
	ListLists(ctx context.Context) ([]*models.List, error)

	CreateItem(ctx context.Context, i *models.Item) (*models.Item, error)
	UpdateItem(ctx context.Context, id string, p models.ItemPatch) (*models.Item, error)
	DeleteItem(ctx context.Context, id string) error
	ListItems(ctx context.Context, listID string) ([]*models.Item, error)

	PresignCoverUpload(ctx context.Context, listID, contentType string) (key string, url string, err error)
}
