package models

import (
	"maps"
	"time"
)

type Status string

const (
	StatusSaved   Status = "saved"
	StatusStarted Status = "started"
	StatusDone    Status = "done"
)

func (s Status) IsValid() bool {
	switch s {
	case StatusSaved, StatusStarted, StatusDone:
		return true
	}
	return false
}

// ItemType is the media kind of an item.
type ItemType string

const (
	ItemMovie     ItemType = "movie"
	ItemShow      ItemType = "show"
	ItemBook      ItemType = "book"
	ItemPodcast   ItemType = "podcast"
	ItemGame      ItemType = "game"
	ItemBoardgame ItemType = "boardgame"
	ItemApp       ItemType = "app"
	ItemLink      ItemType = "link"
)

func (t ItemType) IsValid() bool {
	switch t {
	case ItemMovie, ItemShow, ItemBook, ItemPodcast, ItemGame, ItemBoardgame, ItemApp, ItemLink:
		return true
	}
	return false
}

// Item is one tracked piece of media inside a list.
type Item struct {
	ID          string         `json:"id" validate:"required,uuid"`
	OwnerID     string         `json:"owner_id" validate:"required"`
	ListID      string         `json:"list_id" validate:"required,uuid"`
	Type        ItemType       `json:"type" validate:"required,oneof=movie show book podcast game boardgame app link"`
	Title       string         `json:"title" validate:"required,min=1,max=500"`
	URL         *string        `json:"url,omitempty" validate:"omitempty,url"`
	Source      *string        `json:"source,omitempty" validate:"omitempty,max=100"`
	SourceID    *string        `json:"source_id,omitempty" validate:"omitempty,max=200"`
	Status      Status         `json:"status" validate:"required,oneof=saved started done"`
	Notes       *string        `json:"notes,omitempty" validate:"omitempty,max=5000"`
	Tags        []string       `json:"tags" validate:"omitempty,dive,min=1,max=50"`
	Metadata    map[string]any `json:"metadata,omitempty"`
	AddedAt     time.Time      `json:"added_at"`
	CompletedAt *time.Time     `json:"completed_at,omitempty"`
	UpdatedAt   time.Time      `json:"updated_at"`
}

// SetStatus changes the status keeping completed_at set iff the item is done.
// Re-marking a done item as done keeps the original completion time.
func (i *Item) SetStatus(s Status, now time.Time) {
	i.Status = s
	i.Normalize(now)
}

// Normalize re-establishes the completed_at invariant.
func (i *Item) Normalize(now time.Time) {
	if i.Tags == nil {
		i.Tags = []string{}
	}
	if i.Status != StatusDone {
		i.CompletedAt = nil
		return
	}
	if i.CompletedAt == nil {
		t := now
		i.CompletedAt = &t
	}
}

// Clone returns a deep copy. Metadata is copied one level deep.
func (i *Item) Clone() *Item {
	c := *i
	c.URL = cloneString(i.URL)
	c.Source = cloneString(i.Source)
	c.SourceID = cloneString(i.SourceID)
	c.Notes = cloneString(i.Notes)
	c.Tags = append([]string{}, i.Tags...)
	if i.Metadata != nil {
		c.Metadata = maps.Clone(i.Metadata)
	}
	if i.CompletedAt != nil {
		t := *i.CompletedAt
		c.CompletedAt = &t
	}
	return &c
}

// ItemPatch is a partial update of an item. Setting ListID moves the item.
// CompletedAt travels with a Status change so the completion time reflects
// when the user acted, not when the change reached the server.
type ItemPatch struct {
	ListID      *string         `json:"list_id,omitempty"`
	Type        *ItemType       `json:"type,omitempty"`
	Title       *string         `json:"title,omitempty"`
	URL         *string         `json:"url,omitempty"`
	Source      *string         `json:"source,omitempty"`
	SourceID    *string         `json:"source_id,omitempty"`
	Status      *Status         `json:"status,omitempty"`
	CompletedAt *time.Time      `json:"completed_at,omitempty"`
	Notes       *string         `json:"notes,omitempty"`
	Tags        *[]string       `json:"tags,omitempty"`
	Metadata    *map[string]any `json:"metadata,omitempty"`
}

func (p ItemPatch) IsEmpty() bool {
	return p == ItemPatch{}
}

// Merge returns p overlaid with later. A later status always replaces the
// earlier completion time together with the status.
func (p ItemPatch) Merge(later ItemPatch) ItemPatch {
	out := p
	if later.ListID != nil {
		out.ListID = later.ListID
	}
	if later.Type != nil {
		out.Type = later.Type
	}
	if later.Title != nil {
		out.Title = later.Title
	}
	if later.URL != nil {
		out.URL = later.URL
	}
	if later.Source != nil {
		out.Source = later.Source
	}
	if later.SourceID != nil {
		out.SourceID = later.SourceID
	}
	if later.Status != nil {
		out.Status = later.Status
		out.CompletedAt = later.CompletedAt
	}
	if later.Notes != nil {
		out.Notes = later.Notes
	}
	if later.Tags != nil {
		out.Tags = later.Tags
	}
	if later.Metadata != nil {
		out.Metadata = later.Metadata
	}
	return out
}

// Apply writes the touched fields into i and re-establishes the
// completed_at invariant using now when no completion time was supplied.
func (p ItemPatch) Apply(i *Item, now time.Time) {
	if p.ListID != nil {
		i.ListID = *p.ListID
	}
	if p.Type != nil {
		i.Type = *p.Type
	}
	if p.Title != nil {
		i.Title = *p.Title
	}
	if p.URL != nil {
		i.URL = optional(*p.URL)
	}
	if p.Source != nil {
		i.Source = optional(*p.Source)
	}
	if p.SourceID != nil {
		i.SourceID = optional(*p.SourceID)
	}
	if p.Status != nil {
		if *p.Status != i.Status {
			i.CompletedAt = nil
		}
		i.Status = *p.Status
		if p.CompletedAt != nil && i.Status == StatusDone {
			t := *p.CompletedAt
			i.CompletedAt = &t
		}
	}
	if p.Notes != nil {
		i.Notes = optional(*p.Notes)
	}
	if p.Tags != nil {
		i.Tags = append([]string{}, (*p.Tags)...)
	}
	if p.Metadata != nil {
		i.Metadata = maps.Clone(*p.Metadata)
	}
	i.Normalize(now)
}
