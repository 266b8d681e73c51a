package cli

import (
	"context"
	"fmt"

	"github.com/dmitrijs2005/whattodo/internal/client/services"
	"github.com/dmitrijs2005/whattodo/internal/common"
	"github.com/dmitrijs2005/whattodo/internal/filex"
	"github.com/dmitrijs2005/whattodo/internal/models"
)

// maxCoverBytes caps cover uploads.
const maxCoverBytes = 5 << 20

// clearValue entered at an edit prompt clears an optional field.
const clearValue = "-"

// ShowLists prints every list, newest first. Lists with changes that have
// not reached the server yet are marked with '*'.
func (a *App) ShowLists(ctx context.Context, _ []string) error {
	lists, err := a.library.Lists(ctx)
	if err != nil {
		return err
	}
	printLists(a.out, lists)
	return nil
}

// ShowList prints one list and its items.
func (a *App) ShowList(ctx context.Context, args []string) error {
	if len(args) != 1 {
		return usage("list <list-id>")
	}
	l, err := a.resolveList(ctx, args[0])
	if err != nil {
		return err
	}
	items, err := a.library.Items(ctx, l.ID)
	if err != nil {
		return err
	}
	printListDetails(a.out, l)
	fmt.Fprintln(a.out)
	printItems(a.out, items)
	return nil
}

// ShowInbox prints the inbox list and its items, creating the list first if
// the user has none.
func (a *App) ShowInbox(ctx context.Context, _ []string) error {
	inbox, err := a.library.Inbox(ctx)
	if err != nil {
		return err
	}
	items, err := a.library.Items(ctx, inbox.ID)
	if err != nil {
		return err
	}
	printListDetails(a.out, &services.ListView{List: *inbox})
	fmt.Fprintln(a.out)
	printItems(a.out, items)
	return nil
}

// NewList prompts for the list fields and queues its creation.
func (a *App) NewList(ctx context.Context, args []string) error {
	var in struct {
		title, description, visibility, tags string
	}
	var err error
	if len(args) > 0 {
		in.title = joinArgs(args)
	} else if in.title, err = getSimpleText(a.reader, "Title", a.out); err != nil {
		return err
	}
	if in.description, err = getSimpleText(a.reader, "Description (optional)", a.out); err != nil {
		return err
	}
	if in.visibility, err = getSimpleText(a.reader, "Visibility: private, unlisted or public [private]", a.out); err != nil {
		return err
	}
	if in.tags, err = getSimpleText(a.reader, "Tags, comma separated (optional)", a.out); err != nil {
		return err
	}

	vis := models.Visibility(in.visibility)
	if vis == "" {
		vis = models.VisibilityPrivate
	}
	if !vis.IsValid() {
		return fmt.Errorf("%w: unknown visibility %q", common.ErrorValidation, in.visibility)
	}

	l, err := a.library.CreateList(ctx, services.NewList{
		Title:       in.title,
		Description: in.description,
		Visibility:  vis,
		Tags:        splitTags(in.tags),
	})
	if err != nil {
		return err
	}
	fmt.Fprintf(a.out, "Created list %s (%s)\n", l.Title, shortID(l.ID))
	if l.Slug != nil {
		fmt.Fprintf(a.out, "Share slug: %s\n", *l.Slug)
	}
	return nil
}

// EditList prompts for each field showing the current value. An empty answer
// keeps the value, "-" clears an optional one.
func (a *App) EditList(ctx context.Context, args []string) error {
	if len(args) != 1 {
		return usage("editlist <list-id>")
	}
	cur, err := a.resolveList(ctx, args[0])
	if err != nil {
		return err
	}

	var p models.ListPatch

	title, err := getSimpleText(a.reader, fmt.Sprintf("Title [%s]", cur.Title), a.out)
	if err != nil {
		return err
	}
	if title != "" && title != cur.Title {
		p.Title = &title
	}

	desc, err := getSimpleText(a.reader, fmt.Sprintf("Description [%s] ('-' clears)", deref(cur.Description)), a.out)
	if err != nil {
		return err
	}
	switch desc {
	case "":
	case clearValue:
		empty := ""
		p.Description = &empty
	default:
		p.Description = &desc
	}

	vis, err := getSimpleText(a.reader, fmt.Sprintf("Visibility [%s]", cur.Visibility), a.out)
	if err != nil {
		return err
	}
	if vis != "" && models.Visibility(vis) != cur.Visibility {
		v := models.Visibility(vis)
		if !v.IsValid() {
			return fmt.Errorf("%w: unknown visibility %q", common.ErrorValidation, vis)
		}
		p.Visibility = &v
	}

	tags, err := getSimpleText(a.reader, fmt.Sprintf("Tags [%s] ('-' clears)", joinTags(cur.Tags)), a.out)
	if err != nil {
		return err
	}
	switch tags {
	case "":
	case clearValue:
		empty := []string{}
		p.Tags = &empty
	default:
		t := splitTags(tags)
		p.Tags = &t
	}

	if p.IsEmpty() {
		fmt.Fprintln(a.out, "Nothing changed.")
		return nil
	}
	l, err := a.library.UpdateList(ctx, cur.ID, p)
	if err != nil {
		return err
	}
	fmt.Fprintf(a.out, "Updated list %s\n", l.Title)
	return nil
}

// RemoveList queues the deletion of a list and its items.
func (a *App) RemoveList(ctx context.Context, args []string) error {
	if len(args) != 1 {
		return usage("rmlist <list-id>")
	}
	l, err := a.resolveList(ctx, args[0])
	if err != nil {
		return err
	}
	answer, err := getSimpleText(a.reader, fmt.Sprintf("Delete %q and all its items? (y/N)", l.Title), a.out)
	if err != nil {
		return err
	}
	if answer != "y" && answer != "yes" {
		fmt.Fprintln(a.out, "Cancelled.")
		return nil
	}
	if err := a.library.DeleteList(ctx, l.ID); err != nil {
		return err
	}
	fmt.Fprintf(a.out, "Deleted list %s\n", l.Title)
	return nil
}

// CloneList copies a list with its items into a new private list.
func (a *App) CloneList(ctx context.Context, args []string) error {
	if len(args) != 1 {
		return usage("clone <list-id>")
	}
	src, err := a.resolveList(ctx, args[0])
	if err != nil {
		return err
	}
	l, err := a.library.CloneList(ctx, src.ID)
	if err != nil {
		return err
	}
	fmt.Fprintf(a.out, "Created list %s (%s)\n", l.Title, shortID(l.ID))
	return nil
}

// Cover uploads an image file as the list cover. It needs the server.
func (a *App) Cover(ctx context.Context, args []string) error {
	if len(args) != 2 {
		return usage("cover <list-id> <image-file>")
	}
	l, err := a.resolveList(ctx, args[0])
	if err != nil {
		return err
	}
	data, contentType, err := filex.ReadLimited(args[1], maxCoverBytes)
	if err != nil {
		return err
	}
	if _, err := a.library.UploadCover(ctx, l.ID, contentType, data); err != nil {
		return err
	}
	fmt.Fprintf(a.out, "Cover of %s uploaded (%s, %d bytes)\n", l.Title, contentType, len(data))
	return nil
}

func deref(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}
