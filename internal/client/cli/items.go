package cli

import (
	"context"
	"fmt"
	"strconv"

	"github.com/dmitrijs2005/whattodo/internal/client/services"
	"github.com/dmitrijs2005/whattodo/internal/common"
	"github.com/dmitrijs2005/whattodo/internal/models"
)

// getMetadata is an indirection used to facilitate testing.
var getMetadata = GetMetadata

// getMultiline is an indirection used to facilitate testing.
var getMultiline = GetMultiline

// AddItem prompts for the item fields and queues its creation in the list.
// Without a list the item goes to the inbox.
func (a *App) AddItem(ctx context.Context, args []string) error {
	if len(args) > 1 {
		return usage("add [list-id]")
	}
	var l *services.ListView
	if len(args) == 1 {
		var err error
		if l, err = a.resolveList(ctx, args[0]); err != nil {
			return err
		}
	} else {
		inbox, err := a.library.Inbox(ctx)
		if err != nil {
			return err
		}
		l = &services.ListView{List: *inbox}
	}

	typ, err := getSimpleText(a.reader, "Type: movie, show, book, podcast, game, boardgame, app or link", a.out)
	if err != nil {
		return err
	}
	if !models.ItemType(typ).IsValid() {
		return fmt.Errorf("%w: unknown item type %q", common.ErrorValidation, typ)
	}
	title, err := getSimpleText(a.reader, "Title", a.out)
	if err != nil {
		return err
	}
	url, err := getSimpleText(a.reader, "URL (optional)", a.out)
	if err != nil {
		return err
	}
	notes, err := getMultiline(a.reader, "Notes (optional)", a.out)
	if err != nil {
		return err
	}
	tags, err := getSimpleText(a.reader, "Tags, comma separated (optional)", a.out)
	if err != nil {
		return err
	}
	lines, err := getMetadata(a.reader, a.out)
	if err != nil {
		return err
	}
	meta, err := parseMetadata(lines)
	if err != nil {
		return err
	}

	it, err := a.library.AddItem(ctx, services.NewItem{
		ListID:   l.ID,
		Type:     models.ItemType(typ),
		Title:    title,
		URL:      url,
		Notes:    notes,
		Tags:     splitTags(tags),
		Metadata: meta,
	})
	if err != nil {
		return err
	}
	fmt.Fprintf(a.out, "Added %s %q to %s (%s)\n", it.Type, it.Title, l.Title, shortID(it.ID))
	return nil
}

// SetStatus changes an item's status: saved, started or done.
func (a *App) SetStatus(ctx context.Context, args []string) error {
	if len(args) != 2 {
		return usage("status <item-id> <saved|started|done>")
	}
	st := models.Status(args[1])
	if !st.IsValid() {
		return fmt.Errorf("%w: unknown status %q", common.ErrorValidation, args[1])
	}
	cur, err := a.resolveItem(ctx, args[0])
	if err != nil {
		return err
	}
	it, err := a.library.SetItemStatus(ctx, cur.ID, st)
	if err != nil {
		return err
	}
	fmt.Fprintf(a.out, "%s is now %s\n", it.Title, it.Status)
	return nil
}

// MoveItem moves an item to another list.
func (a *App) MoveItem(ctx context.Context, args []string) error {
	if len(args) != 2 {
		return usage("move <item-id> <list-id>")
	}
	cur, err := a.resolveItem(ctx, args[0])
	if err != nil {
		return err
	}
	dst, err := a.resolveList(ctx, args[1])
	if err != nil {
		return err
	}
	if cur.ListID == dst.ID {
		fmt.Fprintf(a.out, "%s is already in %s\n", cur.Title, dst.Title)
		return nil
	}
	if _, err := a.library.MoveItem(ctx, cur.ID, dst.ID); err != nil {
		return err
	}
	fmt.Fprintf(a.out, "Moved %s to %s\n", cur.Title, dst.Title)
	return nil
}

// RemoveItem queues the deletion of an item.
func (a *App) RemoveItem(ctx context.Context, args []string) error {
	if len(args) != 1 {
		return usage("rmitem <item-id>")
	}
	cur, err := a.resolveItem(ctx, args[0])
	if err != nil {
		return err
	}
	if err := a.library.DeleteItem(ctx, cur.ID); err != nil {
		return err
	}
	fmt.Fprintf(a.out, "Deleted %s\n", cur.Title)
	return nil
}

// Activity prints the most recently completed items.
func (a *App) Activity(ctx context.Context, args []string) error {
	limit := 10
	if len(args) > 0 {
		n, err := strconv.Atoi(args[0])
		if err != nil || n <= 0 {
			return usage("activity [limit]")
		}
		limit = n
	}
	items, err := a.library.RecentActivity(ctx, limit)
	if err != nil {
		return err
	}
	if len(items) == 0 {
		fmt.Fprintln(a.out, "Nothing completed yet.")
		return nil
	}
	printItems(a.out, items)
	return nil
}
