package cli

import (
	"bufio"
	"bytes"
	"context"
	"io"
	"strings"
	"testing"
	"time"

	"github.com/dmitrijs2005/whattodo/internal/client/client"
	"github.com/dmitrijs2005/whattodo/internal/client/reconciler"
	"github.com/dmitrijs2005/whattodo/internal/client/services"
	"github.com/dmitrijs2005/whattodo/internal/logging"
	"github.com/dmitrijs2005/whattodo/internal/models"
)

// ------------ helpers ------------

// readerFromLines feeds each line as one answer to a prompt.
func readerFromLines(lines ...string) *bufio.Reader {
	return bufio.NewReader(strings.NewReader(strings.Join(lines, "\n") + "\n"))
}

func stubPassword(t *testing.T, pw string) {
	t.Helper()
	orig := getPassword
	getPassword = func(_ io.Writer) ([]byte, error) { return []byte(pw), nil }
	t.Cleanup(func() { getPassword = orig })
}

type nopLogger struct{}

func (nopLogger) Debug(context.Context, string, ...any) {}
func (nopLogger) Info(context.Context, string, ...any)  {}
func (nopLogger) Warn(context.Context, string, ...any)  {}
func (nopLogger) Error(context.Context, string, ...any) {}
func (l nopLogger) With(...any) logging.Logger          { return l }

func newTestApp(lib *fakeLibrary, in *bufio.Reader) (*App, *bytes.Buffer) {
	out := &bytes.Buffer{}
	if in == nil {
		in = readerFromLines()
	}
	return &App{
		logger:    nopLogger{},
		auth:      &fakeAuth{},
		library:   lib,
		scheduler: &fakeSyncer{},
		session:   &services.Session{UserID: "u1", Username: "alice"},
		reader:    in,
		out:       out,
	}, out
}

func listView(id, title string) *services.ListView {
	return &services.ListView{List: models.List{
		ID:         id,
		OwnerID:    "u1",
		Title:      title,
		Visibility: models.VisibilityPrivate,
		Tags:       []string{},
	}}
}

func itemView(id, listID, title string) *services.ItemView {
	return &services.ItemView{Item: models.Item{
		ID:      id,
		OwnerID: "u1",
		ListID:  listID,
		Type:    models.ItemBook,
		Title:   title,
		Status:  models.StatusSaved,
		Tags:    []string{},
	}}
}

// ------------ fake library ------------

type fakeLibrary struct {
	lists []*services.ListView
	items []*services.ItemView
	err   error

	created    *services.NewList
	updatedID  string
	updated    *models.ListPatch
	deletedID  string
	clonedID   string
	addedItem  *services.NewItem
	statusID   string
	status     models.Status
	movedID    string
	movedTo    string
	removedID  string
	limit      int
	refreshed  int
	refreshErr error
	exported   string
	coverList  string
	coverType  string
	coverBytes int
	pending    int
	inbox      *models.List
	inboxCalls int
}

func (f *fakeLibrary) CreateList(_ context.Context, in services.NewList) (*models.List, error) {
	if f.err != nil {
		return nil, f.err
	}
	f.created = &in
	l := &models.List{ID: "0f0e0d0c-0000-4000-8000-000000000001", Title: in.Title, Visibility: in.Visibility, Tags: in.Tags}
	l.Normalize()
	return l, nil
}

func (f *fakeLibrary) UpdateList(_ context.Context, id string, p models.ListPatch) (*models.List, error) {
	f.updatedID, f.updated = id, &p
	for _, l := range f.lists {
		if l.ID == id {
			next := l.List.Clone()
			p.Apply(next)
			return next, nil
		}
	}
	return nil, f.err
}

func (f *fakeLibrary) DeleteList(_ context.Context, id string) error {
	f.deletedID = id
	return f.err
}

func (f *fakeLibrary) CloneList(_ context.Context, id string) (*models.List, error) {
	f.clonedID = id
	return &models.List{ID: "c1c1c1c1-0000-4000-8000-000000000002", Title: "copy"}, f.err
}

func (f *fakeLibrary) Lists(context.Context) ([]*services.ListView, error) {
	return f.lists, f.err
}

func (f *fakeLibrary) List(_ context.Context, id string) (*services.ListView, error) {
	for _, l := range f.lists {
		if l.ID == id {
			return l, nil
		}
	}
	return nil, f.err
}

func (f *fakeLibrary) Inbox(context.Context) (*models.List, error) {
	f.inboxCalls++
	if f.err != nil {
		return nil, f.err
	}
	if f.inbox == nil {
		f.inbox = &models.List{ID: "cccc0009-0000-4000-8000-000000000009", OwnerID: "u1", Title: services.InboxTitle,
			Visibility: models.VisibilityPrivate, Tags: []string{}}
	}
	return f.inbox, nil
}

func (f *fakeLibrary) AddItem(_ context.Context, in services.NewItem) (*models.Item, error) {
	if f.err != nil {
		return nil, f.err
	}
	f.addedItem = &in
	return &models.Item{ID: "1a1a1a1a-0000-4000-8000-000000000003", ListID: in.ListID, Type: in.Type, Title: in.Title}, nil
}

func (f *fakeLibrary) UpdateItem(_ context.Context, id string, p models.ItemPatch) (*models.Item, error) {
	return &models.Item{ID: id}, f.err
}

func (f *fakeLibrary) SetItemStatus(_ context.Context, id string, s models.Status) (*models.Item, error) {
	f.statusID, f.status = id, s
	return &models.Item{ID: id, Title: "Dune", Status: s}, f.err
}

func (f *fakeLibrary) MoveItem(_ context.Context, id, listID string) (*models.Item, error) {
	f.movedID, f.movedTo = id, listID
	return &models.Item{ID: id, ListID: listID}, f.err
}

func (f *fakeLibrary) DeleteItem(_ context.Context, id string) error {
	f.removedID = id
	return f.err
}

func (f *fakeLibrary) Items(_ context.Context, listID string) ([]*services.ItemView, error) {
	var out []*services.ItemView
	for _, it := range f.items {
		if it.ListID == listID {
			out = append(out, it)
		}
	}
	return out, f.err
}

func (f *fakeLibrary) RecentActivity(_ context.Context, limit int) ([]*services.ItemView, error) {
	f.limit = limit
	var out []*services.ItemView
	for _, it := range f.items {
		if it.Status == models.StatusDone {
			out = append(out, it)
		}
	}
	return out, f.err
}

func (f *fakeLibrary) Refresh(context.Context) error {
	f.refreshed++
	return f.refreshErr
}

func (f *fakeLibrary) Export(_ context.Context, w io.Writer) error {
	if f.err != nil {
		return f.err
	}
	_, err := io.WriteString(w, f.exported)
	return err
}

func (f *fakeLibrary) UploadCover(_ context.Context, listID, contentType string, body []byte) (*models.List, error) {
	f.coverList, f.coverType, f.coverBytes = listID, contentType, len(body)
	return &models.List{ID: listID}, f.err
}

func (f *fakeLibrary) PendingCount(context.Context) (int, error) {
	return f.pending, f.err
}

// ------------ fake auth ------------

type fakeAuth struct {
	session   *services.Session
	loginErr  error
	loginUser string
	loginPass string
	regUser   string
	regErr    error
	loggedOut bool
}

func (f *fakeAuth) Login(_ context.Context, username string, password []byte) (*services.Session, error) {
	f.loginUser, f.loginPass = username, string(password)
	if f.loginErr != nil {
		return nil, f.loginErr
	}
	return f.session, nil
}

func (f *fakeAuth) OnlineLogin(ctx context.Context, username string, password []byte) (*services.Session, error) {
	return f.Login(ctx, username, password)
}

func (f *fakeAuth) OfflineLogin(ctx context.Context, username string, password []byte) (*services.Session, error) {
	return f.Login(ctx, username, password)
}

func (f *fakeAuth) Register(_ context.Context, username string, _ []byte) error {
	f.regUser = username
	return f.regErr
}

func (f *fakeAuth) Ping(context.Context) error { return nil }

func (f *fakeAuth) Logout(context.Context) error {
	f.loggedOut = true
	return nil
}

func (f *fakeAuth) Current(context.Context) (*services.Session, error) {
	if f.session == nil {
		return nil, client.ErrLocalDataNotAvailable
	}
	return f.session, nil
}

func (f *fakeAuth) Close(context.Context) error { return nil }

// ------------ fake scheduler ------------

type fakeSyncer struct {
	triggers []string
	report   *reconciler.Report
	err      error
	runs     int
	lastAt   time.Time
}

func (f *fakeSyncer) Trigger(reason string) { f.triggers = append(f.triggers, reason) }

func (f *fakeSyncer) RunNow(context.Context) (*reconciler.Report, error) {
	f.runs++
	if f.err != nil {
		return nil, f.err
	}
	if f.report == nil {
		return &reconciler.Report{}, nil
	}
	return f.report, nil
}

func (f *fakeSyncer) LastReport() (*reconciler.Report, time.Time) {
	return f.report, f.lastAt
}
