package grpc

import (
	"context"
	"time"

	"github.com/dmitrijs2005/whattodo/internal/common"
	"github.com/dmitrijs2005/whattodo/internal/logging"
	"github.com/dmitrijs2005/whattodo/internal/models"
	"github.com/dmitrijs2005/whattodo/internal/server/auth"
	servermodels "github.com/dmitrijs2005/whattodo/internal/server/models"
	"github.com/dmitrijs2005/whattodo/internal/server/services"
)

type nopLogger struct{}

func (n nopLogger) Debug(context.Context, string, ...any) {}
func (n nopLogger) Info(context.Context, string, ...any)  {}
func (n nopLogger) Warn(context.Context, string, ...any)  {}
func (n nopLogger) Error(context.Context, string, ...any) {}
func (n nopLogger) With(...any) logging.Logger            { return n }

const testSecret = "k"

type fakeUser struct {
	refreshResp *services.TokenPair
	refreshErr  error

	regResp *servermodels.User
	regErr  error

	saltResp []byte
	saltErr  error

	loginResp *services.TokenPair
	loginErr  error
}

func (f *fakeUser) RefreshToken(context.Context, string) (*services.TokenPair, error) {
	return f.refreshResp, f.refreshErr
}
func (f *fakeUser) Register(context.Context, string, []byte, []byte) (*servermodels.User, error) {
	return f.regResp, f.regErr
}
func (f *fakeUser) GetSalt(context.Context, string) ([]byte, error) {
	return f.saltResp, f.saltErr
}
func (f *fakeUser) Login(context.Context, string, []byte) (*services.TokenPair, error) {
	return f.loginResp, f.loginErr
}
func (f *fakeUser) UserIDFromAccessToken(token string) (string, error) {
	return auth.GetUserIDFromToken(token, []byte(testSecret))
}

type fakeLibrary struct {
	lists map[string]*models.List
	items map[string]*models.Item
	err   error

	lastOwner string
	lastPatch *models.ListPatch
	lastItem  *models.ItemPatch
}

func newFakeLibrary() *fakeLibrary {
	return &fakeLibrary{lists: map[string]*models.List{}, items: map[string]*models.Item{}}
}

func (f *fakeLibrary) CreateList(_ context.Context, ownerID string, l models.List) (*models.List, error) {
	f.lastOwner = ownerID
	if f.err != nil {
		return nil, f.err
	}
	l.OwnerID = ownerID
	l.UpdatedAt = time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	l.Normalize()
	f.lists[l.ID] = &l
	return l.Clone(), nil
}

func (f *fakeLibrary) UpdateList(_ context.Context, ownerID, id string, p models.ListPatch) (*models.List, error) {
	f.lastOwner, f.lastPatch = ownerID, &p
	if f.err != nil {
		return nil, f.err
	}
	l, ok := f.lists[id]
	if !ok {
		return nil, common.ErrorNotFound
	}
	p.Apply(l)
	return l.Clone(), nil
}

func (f *fakeLibrary) DeleteList(_ context.Context, ownerID, id string) error {
	f.lastOwner = ownerID
	delete(f.lists, id)
	return f.err
}

func (f *fakeLibrary) GetList(_ context.Context, callerID, id string) (*models.List, error) {
	f.lastOwner = callerID
	if f.err != nil {
		return nil, f.err
	}
	l, ok := f.lists[id]
	if !ok {
		return nil, common.ErrorNotFound
	}
	return l.Clone(), nil
}

func (f *fakeLibrary) ListLists(_ context.Context, ownerID string) ([]*models.List, error) {
	f.lastOwner = ownerID
	if f.err != nil {
		return nil, f.err
	}
	out := []*models.List{}
	for _, l := range f.lists {
		out = append(out, l.Clone())
	}
	return out, nil
}

func (f *fakeLibrary) CreateItem(_ context.Context, ownerID string, i models.Item) (*models.Item, error) {
	f.lastOwner = ownerID
	if f.err != nil {
		return nil, f.err
	}
	i.OwnerID = ownerID
	f.items[i.ID] = &i
	return i.Clone(), nil
}

func (f *fakeLibrary) UpdateItem(_ context.Context, ownerID, id string, p models.ItemPatch) (*models.Item, error) {
	f.lastOwner, f.lastItem = ownerID, &p
	if f.err != nil {
		return nil, f.err
	}
	i, ok := f.items[id]
	if !ok {
		return nil, common.ErrorNotFound
	}
	p.Apply(i, time.Now())
	return i.Clone(), nil
}

func (f *fakeLibrary) DeleteItem(_ context.Context, ownerID, id string) error {
	f.lastOwner = ownerID
	delete(f.items, id)
	return f.err
}

func (f *fakeLibrary) ListItems(_ context.Context, ownerID, listID string) ([]*models.Item, error) {
	f.lastOwner = ownerID
	if f.err != nil {
		return nil, f.err
	}
	out := []*models.Item{}
	for _, i := range f.items {
		if listID == "" || i.ListID == listID {
			out = append(out, i.Clone())
		}
	}
	return out, nil
}

type fakeCovers struct {
	key, url string
	err      error

	gotOwner, gotList, gotType string
}

func (f *fakeCovers) PresignCoverUpload(_ context.Context, ownerID, listID, contentType string) (string, string, error) {
	f.gotOwner, f.gotList, f.gotType = ownerID, listID, contentType
	return f.key, f.url, f.err
}

func newServer(u *fakeUser, l *fakeLibrary, c *fakeCovers) *GRPCServer {
	return NewGRPCServer("127.0.0.1:0", nopLogger{}, u, l, c)
}
