package cli

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strings"
	"text/tabwriter"
	"time"

	"github.com/dmitrijs2005/whattodo/internal/client/services"
	"github.com/dmitrijs2005/whattodo/internal/common"
)

var errNotLoggedIn = errors.New("please log in first")

// shortIDLen is how many id characters the tables show. Commands accept any
// unique prefix.
const shortIDLen = 8

func shortID(id string) string {
	if len(id) <= shortIDLen {
		return id
	}
	return id[:shortIDLen]
}

func splitTags(s string) []string {
	tags := []string{}
	for _, t := range strings.Split(s, ",") {
		if t = strings.TrimSpace(t); t != "" {
			tags = append(tags, t)
		}
	}
	return tags
}

// parseMetadata turns name=value lines into an item metadata map.
func parseMetadata(lines []string) (map[string]any, error) {
	m := make(map[string]any, len(lines))
	for _, l := range lines {
		if strings.TrimSpace(l) == "" {
			continue
		}
		k, v, ok := strings.Cut(l, "=")
		k = strings.TrimSpace(k)
		if !ok || k == "" {
			return nil, fmt.Errorf("%w: metadata line %q is not name=value", common.ErrorValidation, l)
		}
		m[k] = strings.TrimSpace(v)
	}
	if len(m) == 0 {
		return nil, nil
	}
	return m, nil
}

func joinArgs(args []string) string {
	return strings.TrimSpace(strings.Join(args, " "))
}

func joinTags(tags []string) string {
	return strings.Join(tags, ", ")
}

func pendingMark(p bool) string {
	if p {
		return "*"
	}
	return ""
}

func formatTime(t *time.Time) string {
	if t == nil || t.IsZero() {
		return "-"
	}
	return t.Local().Format("2006-01-02 15:04")
}

func printLists(w io.Writer, lists []*services.ListView) {
	if len(lists) == 0 {
		fmt.Fprintln(w, "No lists yet. Create one with 'newlist'.")
		return
	}
	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "ID\tTITLE\tVISIBILITY\tTAGS\t")
	for _, l := range lists {
		fmt.Fprintf(tw, "%s%s\t%s\t%s\t%s\t\n",
			shortID(l.ID), pendingMark(l.Pending), l.Title, l.Visibility, strings.Join(l.Tags, ","))
	}
	tw.Flush()
}

func printItems(w io.Writer, items []*services.ItemView) {
	if len(items) == 0 {
		fmt.Fprintln(w, "No items.")
		return
	}
	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "ID\tTYPE\tTITLE\tSTATUS\tCOMPLETED\t")
	for _, it := range items {
		fmt.Fprintf(tw, "%s%s\t%s\t%s\t%s\t%s\t\n",
			shortID(it.ID), pendingMark(it.Pending), it.Type, it.Title, it.Status, formatTime(it.CompletedAt))
	}
	tw.Flush()
}

func printListDetails(w io.Writer, l *services.ListView) {
	fmt.Fprintf(w, "%s (%s)\n", l.Title, l.ID)
	fmt.Fprintf(w, "  visibility: %s\n", l.Visibility)
	if l.Slug != nil {
		fmt.Fprintf(w, "  slug:       %s\n", *l.Slug)
	}
	if l.Description != nil {
		fmt.Fprintf(w, "  about:      %s\n", *l.Description)
	}
	if len(l.Tags) > 0 {
		fmt.Fprintf(w, "  tags:       %s\n", strings.Join(l.Tags, ", "))
	}
	if l.CoverURL != nil {
		fmt.Fprintf(w, "  cover:      %s\n", *l.CoverURL)
	}
	if l.Pending {
		fmt.Fprintln(w, "  (changes waiting to sync)")
	}
}

// resolveList finds a list by full id or unique id prefix.
func (a *App) resolveList(ctx context.Context, ref string) (*services.ListView, error) {
	lists, err := a.library.Lists(ctx)
	if err != nil {
		return nil, err
	}
	var found *services.ListView
	for _, l := range lists {
		if l.ID == ref {
			return l, nil
		}
		if strings.HasPrefix(l.ID, ref) {
			if found != nil {
				return nil, fmt.Errorf("list id %q is ambiguous", ref)
			}
			found = l
		}
	}
	if found == nil {
		return nil, fmt.Errorf("list %q: %w", ref, common.ErrorNotFound)
	}
	return found, nil
}

// resolveItem finds an item in any list by full id or unique id prefix.
func (a *App) resolveItem(ctx context.Context, ref string) (*services.ItemView, error) {
	lists, err := a.library.Lists(ctx)
	if err != nil {
		return nil, err
	}
	var found *services.ItemView
	for _, l := range lists {
		items, err := a.library.Items(ctx, l.ID)
		if err != nil {
			return nil, err
		}
		for _, it := range items {
			if it.ID == ref {
				return it, nil
			}
			if strings.HasPrefix(it.ID, ref) {
				if found != nil {
					return nil, fmt.Errorf("item id %q is ambiguous", ref)
				}
				found = it
			}
		}
	}
	if found == nil {
		return nil, fmt.Errorf("item %q: %w", ref, common.ErrorNotFound)
	}
	return found, nil
}

func usage(format string) error {
	return fmt.Errorf("usage: %s", format)
}
