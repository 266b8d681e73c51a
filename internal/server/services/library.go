package services

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/dmitrijs2005/whattodo/internal/common"
	"github.com/dmitrijs2005/whattodo/internal/dbx"
	"github.com/dmitrijs2005/whattodo/internal/logging"
	"github.com/dmitrijs2005/whattodo/internal/models"
	"github.com/dmitrijs2005/whattodo/internal/server/repositories/repomanager"
)

// LibraryService is the authority for lists and items. Every operation is
// scoped to the calling user; records owned by someone else yield
// common.ErrorForbidden and missing ones common.ErrorNotFound. The server
// stamps updated_at on every write.
type LibraryService struct {
	db          *sql.DB
	repomanager repomanager.RepositoryManager
	logger      logging.Logger
	now         func() time.Time
}

func NewLibraryService(db *sql.DB, m repomanager.RepositoryManager, logger logging.Logger) *LibraryService {
	return &LibraryService{
		db:          db,
		repomanager: m,
		logger:      logger.With("module", "library"),
		now:         func() time.Time { return time.Now().UTC() },
	}
}

// CreateList stores l under ownerID. Replaying a create for an id the caller
// already owns overwrites it with l, so retries are harmless.
func (s *LibraryService) CreateList(ctx context.Context, ownerID string, l models.List) (*models.List, error) {
	now := s.now()
	l.OwnerID = ownerID
	if l.CreatedAt.IsZero() {
		l.CreatedAt = now
	}
	l.UpdatedAt = now
	l.Normalize()
	if err := models.Validate(&l); err != nil {
		return nil, err
	}

	out, err := s.repomanager.Lists(s.db).Upsert(ctx, &l)
	if err != nil {
		return nil, fmt.Errorf("create list %s: %w", l.ID, err)
	}
	return out, nil
}

// UpdateList applies patch to the caller's list. Only the fields present in
// the patch change.
func (s *LibraryService) UpdateList(ctx context.Context, ownerID, id string, patch models.ListPatch) (*models.List, error) {
	var out *models.List
	err := dbx.WithTx(ctx, s.db, nil, func(ctx context.Context, tx dbx.DBTX) error {
		repo := s.repomanager.Lists(tx)
		l, err := repo.GetForUpdate(ctx, id)
		if err != nil {
			return fmt.Errorf("list %s: %w", id, err)
		}
		if l.OwnerID != ownerID {
			return fmt.Errorf("list %s: %w", id, common.ErrorForbidden)
		}
		if patch.IsEmpty() {
			out = l
			return nil
		}

		patch.Apply(l)
		l.UpdatedAt = s.now()
		if err := models.Validate(l); err != nil {
			return err
		}
		out, err = repo.Update(ctx, l)
		return err
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

// DeleteList removes the caller's list and, by cascade, its items.
// Deleting a list that no longer exists succeeds.
func (s *LibraryService) DeleteList(ctx context.Context, ownerID, id string) error {
	repo := s.repomanager.Lists(s.db)
	n, err := repo.Delete(ctx, ownerID, id)
	if err != nil {
		return fmt.Errorf("delete list %s: %w", id, err)
	}
	if n > 0 {
		return nil
	}
	if _, err := repo.Get(ctx, id); err == nil {
		return fmt.Errorf("list %s: %w", id, common.ErrorForbidden)
	} else if !errors.Is(err, common.ErrorNotFound) {
		return err
	}
	s.logger.Debug(ctx, "delete of absent list", "list_id", id)
	return nil
}

// GetList returns a list the caller owns, or any shared list.
func (s *LibraryService) GetList(ctx context.Context, callerID, id string) (*models.List, error) {
	l, err := s.repomanager.Lists(s.db).Get(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("list %s: %w", id, err)
	}
	if l.OwnerID != callerID && !l.Visibility.Shared() {
		return nil, fmt.Errorf("list %s: %w", id, common.ErrorForbidden)
	}
	return l, nil
}

// ListLists returns the caller's lists, newest first.
func (s *LibraryService) ListLists(ctx context.Context, ownerID string) ([]*models.List, error) {
	return s.repomanager.Lists(s.db).ListByOwner(ctx, ownerID)
}

// CreateItem stores i under ownerID inside one of the caller's lists.
func (s *LibraryService) CreateItem(ctx context.Context, ownerID string, i models.Item) (*models.Item, error) {
	now := s.now()
	i.OwnerID = ownerID
	if i.AddedAt.IsZero() {
		i.AddedAt = now
	}
	i.UpdatedAt = now
	i.Normalize(now)
	if err := models.Validate(&i); err != nil {
		return nil, err
	}
	if err := s.checkListOwner(ctx, s.db, ownerID, i.ListID); err != nil {
		return nil, err
	}

	out, err := s.repomanager.Items(s.db).Upsert(ctx, &i)
	if err != nil {
		return nil, fmt.Errorf("create item %s: %w", i.ID, err)
	}
	return out, nil
}

// UpdateItem applies patch to the caller's item. A patch carrying ListID
// moves the item; the target list must belong to the caller too.
func (s *LibraryService) UpdateItem(ctx context.Context, ownerID, id string, patch models.ItemPatch) (*models.Item, error) {
	var out *models.Item
	err := dbx.WithTx(ctx, s.db, nil, func(ctx context.Context, tx dbx.DBTX) error {
		repo := s.repomanager.Items(tx)
		i, err := repo.GetForUpdate(ctx, id)
		if err != nil {
			return fmt.Errorf("item %s: %w", id, err)
		}
		if i.OwnerID != ownerID {
			return fmt.Errorf("item %s: %w", id, common.ErrorForbidden)
		}
		if patch.IsEmpty() {
			out = i
			return nil
		}
		if patch.ListID != nil && *patch.ListID != i.ListID {
			if err := s.checkListOwner(ctx, tx, ownerID, *patch.ListID); err != nil {
				return err
			}
		}

		now := s.now()
		patch.Apply(i, now)
		i.UpdatedAt = now
		if err := models.Validate(i); err != nil {
			return err
		}
		out, err = repo.Update(ctx, i)
		return err
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

// DeleteItem removes the caller's item. Deleting an absent item succeeds.
func (s *LibraryService) DeleteItem(ctx context.Context, ownerID, id string) error {
	repo := s.repomanager.Items(s.db)
	n, err := repo.Delete(ctx, ownerID, id)
	if err != nil {
		return fmt.Errorf("delete item %s: %w", id, err)
	}
	if n > 0 {
		return nil
	}
	if _, err := repo.Get(ctx, id); err == nil {
		return fmt.Errorf("item %s: %w", id, common.ErrorForbidden)
	} else if !errors.Is(err, common.ErrorNotFound) {
		return err
	}
	s.logger.Debug(ctx, "delete of absent item", "item_id", id)
	return nil
}

// ListItems returns the caller's items newest first, limited to listID when
// it is set.
func (s *LibraryService) ListItems(ctx context.Context, ownerID, listID string) ([]*models.Item, error) {
	if listID != "" {
		if err := s.checkListOwner(ctx, s.db, ownerID, listID); err != nil {
			return nil, err
		}
	}
	return s.repomanager.Items(s.db).ListByOwner(ctx, ownerID, listID)
}

func (s *LibraryService) checkListOwner(ctx context.Context, db dbx.DBTX, ownerID, listID string) error {
	l, err := s.repomanager.Lists(db).Get(ctx, listID)
	if err != nil {
		return fmt.Errorf("list %s: %w", listID, err)
	}
	if l.OwnerID != ownerID {
		return fmt.Errorf("list %s: %w", listID, common.ErrorForbidden)
	}
	return nil
}
