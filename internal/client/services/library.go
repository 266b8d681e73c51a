package services

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"sort"
	"time"

	"github.com/dmitrijs2005/whattodo/internal/client/client"
	"github.com/dmitrijs2005/whattodo/internal/client/reconciler"
	"github.com/dmitrijs2005/whattodo/internal/client/repositories/metadata"
	"github.com/dmitrijs2005/whattodo/internal/client/repositories/mirror"
	"github.com/dmitrijs2005/whattodo/internal/client/repositories/outbox"
	"github.com/dmitrijs2005/whattodo/internal/common"
	"github.com/dmitrijs2005/whattodo/internal/dbx"
	"github.com/dmitrijs2005/whattodo/internal/logging"
	"github.com/dmitrijs2005/whattodo/internal/models"
	"github.com/dmitrijs2005/whattodo/internal/netx"
	"github.com/google/uuid"
)

// ErrNotSignedIn is returned when no user id is cached locally.
var ErrNotSignedIn = errors.New("not signed in")

// DefaultActivityLimit caps RecentActivity when no limit is given.
const DefaultActivityLimit = 50

// InboxTitle names the list quick-added items land in.
const InboxTitle = "Inbox"

// ExportVersion is the format version written by Export.
const ExportVersion = "1.0"

// Trigger asks for a reconcile pass. *reconciler.Scheduler implements it.
type Trigger interface {
	Trigger(reason string)
}

// ListView is a list as the user should see it: the confirmed mirror row
// with every queued change applied on top.
type ListView struct {
	models.List
	// Pending is set when a queued mutation touched the list.
	Pending bool `json:"pending"`
}

type ItemView struct {
	models.Item
	Pending bool `json:"pending"`
}

// NewList holds the user input for CreateList.
type NewList struct {
	Title       string
	Description string
	Visibility  models.Visibility
	Tags        []string
}

// NewItem holds the user input for AddItem.
type NewItem struct {
	ListID   string
	Type     models.ItemType
	Title    string
	URL      string
	Source   string
	SourceID string
	Status   models.Status
	Notes    string
	Tags     []string
	Metadata map[string]any
}

// LibraryService is the write and read path of lists and items.
//
// Writes never talk to the authority: each one validates locally, appends
// to the outbox and asks the scheduler for a pass. Reads return the mirror
// with queued changes applied, so the user sees their own writes at once.
type LibraryService interface {
	CreateList(ctx context.Context, in NewList) (*models.List, error)
	UpdateList(ctx context.Context, id string, p models.ListPatch) (*models.List, error)
	DeleteList(ctx context.Context, id string) error
	CloneList(ctx context.Context, id string) (*models.List, error)
	Inbox(ctx context.Context) (*models.List, error)
	Lists(ctx context.Context) ([]*ListView, error)
	List(ctx context.Context, id string) (*ListView, error)

	AddItem(ctx context.Context, in NewItem) (*models.Item, error)
	UpdateItem(ctx context.Context, id string, p models.ItemPatch) (*models.Item, error)
	SetItemStatus(ctx context.Context, id string, s models.Status) (*models.Item, error)
	MoveItem(ctx context.Context, id, listID string) (*models.Item, error)
	DeleteItem(ctx context.Context, id string) error
	Items(ctx context.Context, listID string) ([]*ItemView, error)
	RecentActivity(ctx context.Context, limit int) ([]*ItemView, error)

	Refresh(ctx context.Context) error
	Export(ctx context.Context, w io.Writer) error
	UploadCover(ctx context.Context, listID, contentType string, body []byte) (*models.List, error)
	PendingCount(ctx context.Context) (int, error)
}

type libraryService struct {
	client  client.Client
	db      *sql.DB
	trigger Trigger
	logger  logging.Logger
	http    *http.Client
	now     func() time.Time
}

func NewLibraryService(c client.Client, db *sql.DB, trigger Trigger, logger logging.Logger) LibraryService {
	return &libraryService{
		client:  c,
		db:      db,
		trigger: trigger,
		logger:  logger.With("module", "library"),
		http:    &http.Client{Timeout: 60 * time.Second},
		now:     time.Now,
	}
}

func (s *libraryService) userID(ctx context.Context) (string, error) {
	v, err := metadata.NewSQLiteRepository(s.db).Get(ctx, metadata.KeyUserID)
	if err != nil {
		return "", err
	}
	if len(v) == 0 {
		return "", ErrNotSignedIn
	}
	return string(v), nil
}

// enqueue appends muts atomically and wakes the scheduler.
func (s *libraryService) enqueue(ctx context.Context, muts ...models.Mutation) error {
	err := dbx.WithTx(ctx, s.db, nil, func(ctx context.Context, tx dbx.DBTX) error {
		repo := outbox.NewSQLiteRepository(tx)
		for _, m := range muts {
			if _, err := repo.Enqueue(ctx, m); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return fmt.Errorf("enqueue: %w", err)
	}
	s.trigger.Trigger(reconciler.ReasonMutation)
	return nil
}

func (s *libraryService) CreateList(ctx context.Context, in NewList) (*models.List, error) {
	uid, err := s.userID(ctx)
	if err != nil {
		return nil, err
	}

	now := s.now().UTC()
	l := &models.List{
		ID:         uuid.NewString(),
		OwnerID:    uid,
		Title:      in.Title,
		Visibility: in.Visibility,
		Tags:       append([]string{}, in.Tags...),
		CreatedAt:  now,
		UpdatedAt:  now,
	}
	if in.Description != "" {
		d := in.Description
		l.Description = &d
	}
	if l.Visibility == "" {
		l.Visibility = models.VisibilityPrivate
	}
	l.Normalize()
	if err := models.Validate(l); err != nil {
		return nil, err
	}

	if err := s.enqueue(ctx, models.ListCreate{List: *l}); err != nil {
		return nil, err
	}
	return l, nil
}

// UpdateList applies p to the list as currently seen. A slug the change
// generates is written into the queued patch so the authority and every
// later read agree on it.
func (s *libraryService) UpdateList(ctx context.Context, id string, p models.ListPatch) (*models.List, error) {
	if p.IsEmpty() {
		return nil, fmt.Errorf("%w: nothing to update", common.ErrorValidation)
	}
	cur, err := s.List(ctx, id)
	if err != nil {
		return nil, err
	}

	next := cur.List.Clone()
	p.Apply(next)
	if !equalStrings(cur.Slug, next.Slug) {
		slug := ""
		if next.Slug != nil {
			slug = *next.Slug
		}
		p.Slug = &slug
	}
	if err := models.Validate(next); err != nil {
		return nil, err
	}

	if err := s.enqueue(ctx, models.ListUpdate{ID: id, Patch: p}); err != nil {
		return nil, err
	}
	return next, nil
}

// DeleteList queues the delete. Items of the list that only exist locally or
// still have queued changes get their own delete queued, so those changes
// fold away instead of reaching the authority after the list is gone.
func (s *libraryService) DeleteList(ctx context.Context, id string) error {
	v, err := s.view(ctx)
	if err != nil {
		return err
	}
	if _, ok := v.lists[id]; !ok {
		return common.ErrorNotFound
	}

	muts := []models.Mutation{models.ListDelete{ID: id}}
	for _, it := range sortedItems(v.items, func(i *ItemView) bool { return i.ListID == id }) {
		if !v.confirmedItems[it.ID] || it.Pending {
			muts = append(muts, models.ItemDelete{ID: it.ID})
		}
	}
	return s.enqueue(ctx, muts...)
}

// Inbox returns the user's own list titled InboxTitle, the oldest one if
// there are several. When there is none a private one is queued for creation.
func (s *libraryService) Inbox(ctx context.Context) (*models.List, error) {
	v, err := s.view(ctx)
	if err != nil {
		return nil, err
	}
	if v.degraded {
		return nil, client.ErrLocalDataNotAvailable
	}

	var inbox *ListView
	for _, l := range v.lists {
		if l.OwnerID != v.userID || l.Title != InboxTitle {
			continue
		}
		if inbox == nil || l.CreatedAt.Before(inbox.CreatedAt) ||
			(l.CreatedAt.Equal(inbox.CreatedAt) && l.ID < inbox.ID) {
			inbox = l
		}
	}
	if inbox != nil {
		return inbox.List.Clone(), nil
	}

	s.logger.Info(ctx, "creating inbox list")
	return s.CreateList(ctx, NewList{Title: InboxTitle, Visibility: models.VisibilityPrivate})
}

// CloneList copies a list and its items into a new private list titled
// "<title> (Copy)". Cloned items start over as saved.
func (s *libraryService) CloneList(ctx context.Context, id string) (*models.List, error) {
	v, err := s.view(ctx)
	if err != nil {
		return nil, err
	}
	src, ok := v.lists[id]
	if !ok {
		return nil, common.ErrorNotFound
	}

	now := s.now().UTC()
	l := &models.List{
		ID:          uuid.NewString(),
		OwnerID:     v.userID,
		Title:       src.Title + " (Copy)",
		Description: src.Clone().Description,
		Visibility:  models.VisibilityPrivate,
		Tags:        append([]string{}, src.Tags...),
		CreatedAt:   now,
		UpdatedAt:   now,
	}
	l.Normalize()
	if err := models.Validate(l); err != nil {
		return nil, err
	}

	muts := []models.Mutation{models.ListCreate{List: *l}}
	for _, it := range sortedItems(v.items, func(i *ItemView) bool { return i.ListID == id }) {
		c := it.Item.Clone()
		c.ID = uuid.NewString()
		c.OwnerID = v.userID
		c.ListID = l.ID
		c.Status = models.StatusSaved
		c.Notes = nil
		c.AddedAt = now
		c.UpdatedAt = now
		c.Normalize(now)
		if err := models.Validate(c); err != nil {
			return nil, err
		}
		muts = append(muts, models.ItemCreate{Item: *c})
	}

	if err := s.enqueue(ctx, muts...); err != nil {
		return nil, err
	}
	return l, nil
}

func (s *libraryService) Lists(ctx context.Context) ([]*ListView, error) {
	v, err := s.view(ctx)
	if err != nil {
		return nil, err
	}
	out := make([]*ListView, 0, len(v.lists))
	for _, l := range v.lists {
		out = append(out, l)
	}
	sort.Slice(out, func(i, j int) bool {
		if !out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].CreatedAt.After(out[j].CreatedAt)
		}
		return out[i].ID < out[j].ID
	})
	return out, nil
}

func (s *libraryService) List(ctx context.Context, id string) (*ListView, error) {
	v, err := s.view(ctx)
	if err != nil {
		return nil, err
	}
	l, ok := v.lists[id]
	if !ok {
		return nil, common.ErrorNotFound
	}
	return l, nil
}

func (s *libraryService) AddItem(ctx context.Context, in NewItem) (*models.Item, error) {
	v, err := s.view(ctx)
	if err != nil {
		return nil, err
	}
	if _, ok := v.lists[in.ListID]; !ok {
		return nil, fmt.Errorf("list %s: %w", in.ListID, common.ErrorNotFound)
	}

	now := s.now().UTC()
	it := &models.Item{
		ID:       uuid.NewString(),
		OwnerID:  v.userID,
		ListID:   in.ListID,
		Type:     in.Type,
		Title:    in.Title,
		URL:      optionalString(in.URL),
		Source:   optionalString(in.Source),
		SourceID: optionalString(in.SourceID),
		Status:   in.Status,
		Notes:    optionalString(in.Notes),
		Tags:     append([]string{}, in.Tags...),
		Metadata: in.Metadata,
		AddedAt:  now,
	}
	if it.Status == "" {
		it.Status = models.StatusSaved
	}
	it.Normalize(now)
	it.UpdatedAt = now
	if err := models.Validate(it); err != nil {
		return nil, err
	}

	if err := s.enqueue(ctx, models.ItemCreate{Item: *it}); err != nil {
		return nil, err
	}
	return it, nil
}

// UpdateItem applies p to the item as currently seen. Marking an item done
// stamps the completion time now, when the user acts.
func (s *libraryService) UpdateItem(ctx context.Context, id string, p models.ItemPatch) (*models.Item, error) {
	if p.IsEmpty() {
		return nil, fmt.Errorf("%w: nothing to update", common.ErrorValidation)
	}
	v, err := s.view(ctx)
	if err != nil {
		return nil, err
	}
	cur, ok := v.items[id]
	if !ok {
		return nil, common.ErrorNotFound
	}
	if p.ListID != nil {
		if _, ok := v.lists[*p.ListID]; !ok {
			return nil, fmt.Errorf("list %s: %w", *p.ListID, common.ErrorNotFound)
		}
	}

	now := s.now().UTC()
	if p.Status != nil && *p.Status == models.StatusDone && p.CompletedAt == nil {
		if cur.Status == models.StatusDone && cur.CompletedAt != nil {
			t := *cur.CompletedAt
			p.CompletedAt = &t
		} else {
			p.CompletedAt = &now
		}
	}

	next := cur.Item.Clone()
	p.Apply(next, now)
	if err := models.Validate(next); err != nil {
		return nil, err
	}

	if err := s.enqueue(ctx, models.ItemUpdate{ID: id, Patch: p}); err != nil {
		return nil, err
	}
	return next, nil
}

func (s *libraryService) SetItemStatus(ctx context.Context, id string, st models.Status) (*models.Item, error) {
	if !st.IsValid() {
		return nil, fmt.Errorf("%w: unknown status %q", common.ErrorValidation, st)
	}
	return s.UpdateItem(ctx, id, models.ItemPatch{Status: &st})
}

func (s *libraryService) MoveItem(ctx context.Context, id, listID string) (*models.Item, error) {
	return s.UpdateItem(ctx, id, models.ItemPatch{ListID: &listID})
}

func (s *libraryService) DeleteItem(ctx context.Context, id string) error {
	v, err := s.view(ctx)
	if err != nil {
		return err
	}
	if _, ok := v.items[id]; !ok {
		return common.ErrorNotFound
	}
	return s.enqueue(ctx, models.ItemDelete{ID: id})
}

// Items returns the list's items, newest first.
func (s *libraryService) Items(ctx context.Context, listID string) ([]*ItemView, error) {
	v, err := s.view(ctx)
	if err != nil {
		return nil, err
	}
	if _, ok := v.lists[listID]; !ok && !v.degraded {
		return nil, common.ErrorNotFound
	}
	return sortedItems(v.items, func(i *ItemView) bool { return i.ListID == listID }), nil
}

// RecentActivity returns done items, most recently completed first.
func (s *libraryService) RecentActivity(ctx context.Context, limit int) ([]*ItemView, error) {
	if limit <= 0 {
		limit = DefaultActivityLimit
	}
	v, err := s.view(ctx)
	if err != nil {
		return nil, err
	}

	out := make([]*ItemView, 0)
	for _, it := range v.items {
		if it.Status == models.StatusDone && it.CompletedAt != nil {
			out = append(out, it)
		}
	}
	sort.Slice(out, func(i, j int) bool {
		a, b := out[i].CompletedAt, out[j].CompletedAt
		if !a.Equal(*b) {
			return a.After(*b)
		}
		return out[i].ID < out[j].ID
	})
	if len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

// Refresh pulls the user's lists and items from the authority and makes the
// mirror equal to that snapshot. Queued changes are untouched and keep
// overlaying the fresh data.
func (s *libraryService) Refresh(ctx context.Context) error {
	uid, err := s.userID(ctx)
	if err != nil {
		return err
	}

	lists, err := s.client.ListLists(ctx)
	if err != nil {
		return fmt.Errorf("list lists: %w", err)
	}
	items, err := s.client.ListItems(ctx, "")
	if err != nil {
		return fmt.Errorf("list items: %w", err)
	}

	err = dbx.WithTx(ctx, s.db, nil, func(ctx context.Context, tx dbx.DBTX) error {
		if err := mirror.NewSQLiteRepository(tx).Replace(ctx, uid, lists, items); err != nil {
			return err
		}
		return metadata.NewSQLiteRepository(tx).Set(ctx, metadata.KeyLastSync, []byte(dbx.FormatTime(s.now())))
	})
	if err != nil {
		return fmt.Errorf("replace mirror: %w", err)
	}
	s.logger.Info(ctx, "mirror refreshed", "lists", len(lists), "items", len(items))
	return nil
}

type exportUser struct {
	ID       string `json:"id"`
	Username string `json:"username"`
}

type exportDocument struct {
	Version    string      `json:"version"`
	ExportedAt time.Time   `json:"exported_at"`
	User       exportUser  `json:"user"`
	Lists      []*ListView `json:"lists"`
	Items      []*ItemView `json:"items"`
}

// Export writes the user's lists and items, queued changes included, as one
// indented JSON document.
func (s *libraryService) Export(ctx context.Context, w io.Writer) error {
	v, err := s.view(ctx)
	if err != nil {
		return err
	}
	username, err := metadata.NewSQLiteRepository(s.db).Get(ctx, metadata.KeyUsername)
	if err != nil {
		return err
	}

	lists, err := s.Lists(ctx)
	if err != nil {
		return err
	}
	doc := exportDocument{
		Version:    ExportVersion,
		ExportedAt: s.now().UTC(),
		User:       exportUser{ID: v.userID, Username: string(username)},
		Lists:      lists,
		Items:      sortedItems(v.items, func(*ItemView) bool { return true }),
	}

	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(doc)
}

// UploadCover stores body in the covers bucket through a presigned URL and
// queues the list update pointing at the stored object. Needs the authority.
func (s *libraryService) UploadCover(ctx context.Context, listID, contentType string, body []byte) (*models.List, error) {
	if _, err := s.List(ctx, listID); err != nil {
		return nil, err
	}

	key, url, err := s.client.PresignCoverUpload(ctx, listID, contentType)
	if err != nil {
		return nil, fmt.Errorf("presign cover upload: %w", err)
	}
	if err := netx.UploadToPresignedURL(ctx, s.http, url, body, contentType); err != nil {
		return nil, fmt.Errorf("upload cover: %w", err)
	}
	s.logger.Debug(ctx, "cover uploaded", "list_id", listID, "key", key, "bytes", len(body))

	return s.UpdateList(ctx, listID, models.ListPatch{CoverURL: &key})
}

func (s *libraryService) PendingCount(ctx context.Context) (int, error) {
	return outbox.NewSQLiteRepository(s.db).PendingCount(ctx)
}

type libraryView struct {
	userID         string
	lists          map[string]*ListView
	items          map[string]*ItemView
	confirmedItems map[string]bool
	// degraded is set when local storage failed and the view is empty.
	degraded bool
}

// view builds mirror ∘ outbox for the current user. A storage failure is
// logged and yields an empty view.
func (s *libraryService) view(ctx context.Context) (*libraryView, error) {
	uid, err := s.userID(ctx)
	if err != nil {
		if errors.Is(err, common.ErrStorageFailure) {
			s.logger.Error(ctx, "local storage failed, serving empty view", "error", err)
			return &libraryView{lists: map[string]*ListView{}, items: map[string]*ItemView{}, confirmedItems: map[string]bool{}, degraded: true}, nil
		}
		return nil, err
	}

	v, err := s.overlay(ctx, uid)
	if err != nil {
		if errors.Is(err, common.ErrStorageFailure) {
			s.logger.Error(ctx, "local storage failed, serving empty view", "error", err)
			return &libraryView{userID: uid, lists: map[string]*ListView{}, items: map[string]*ItemView{}, confirmedItems: map[string]bool{}, degraded: true}, nil
		}
		return nil, err
	}
	return v, nil
}

func (s *libraryService) overlay(ctx context.Context, uid string) (*libraryView, error) {
	mirrorRepo := mirror.NewSQLiteRepository(s.db)
	mlists, err := mirrorRepo.ListsByOwner(ctx, uid)
	if err != nil {
		return nil, err
	}
	mitems, err := mirrorRepo.ItemsByOwner(ctx, uid)
	if err != nil {
		return nil, err
	}
	pending, err := outbox.NewSQLiteRepository(s.db).Pending(ctx)
	if err != nil {
		return nil, err
	}

	v := &libraryView{
		userID:         uid,
		lists:          make(map[string]*ListView, len(mlists)),
		items:          make(map[string]*ItemView, len(mitems)),
		confirmedItems: make(map[string]bool, len(mitems)),
	}
	for _, l := range mlists {
		v.lists[l.ID] = &ListView{List: l.List}
	}
	for _, it := range mitems {
		v.items[it.ID] = &ItemView{Item: it.Item}
		v.confirmedItems[it.ID] = true
	}

	for _, e := range pending {
		switch m := e.Mutation.(type) {
		case models.ListCreate:
			v.lists[m.List.ID] = &ListView{List: *m.List.Clone(), Pending: true}
		case models.ListUpdate:
			if l, ok := v.lists[m.ID]; ok {
				m.Patch.Apply(&l.List)
				l.Pending = true
			}
		case models.ListDelete:
			delete(v.lists, m.ID)
			for id, it := range v.items {
				if it.ListID == m.ID {
					delete(v.items, id)
				}
			}
		case models.ItemCreate:
			v.items[m.Item.ID] = &ItemView{Item: *m.Item.Clone(), Pending: true}
		case models.ItemUpdate:
			if it, ok := v.items[m.ID]; ok {
				m.Patch.Apply(&it.Item, e.CreatedAt)
				it.Pending = true
			}
		case models.ItemDelete:
			delete(v.items, m.ID)
		}
	}

	for id, it := range v.items {
		if _, ok := v.lists[it.ListID]; !ok {
			delete(v.items, id)
		}
	}
	return v, nil
}

func sortedItems(items map[string]*ItemView, keep func(*ItemView) bool) []*ItemView {
	out := make([]*ItemView, 0)
	for _, it := range items {
		if keep(it) {
			out = append(out, it)
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if !out[i].AddedAt.Equal(out[j].AddedAt) {
			return out[i].AddedAt.After(out[j].AddedAt)
		}
		return out[i].ID < out[j].ID
	})
	return out
}

func optionalString(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}

func equalStrings(a, b *string) bool {
	if a == nil || b == nil {
		return a == b
	}
	return *a == *b
}
