package models

import (
	"time"

	"github.com/dmitrijs2005/whattodo/internal/slug"
)

type Visibility string

const (
	VisibilityPrivate  Visibility = "private"
	VisibilityUnlisted Visibility = "unlisted"
	VisibilityPublic   Visibility = "public"
)

func (v Visibility) IsValid() bool {
	switch v {
	case VisibilityPrivate, VisibilityUnlisted, VisibilityPublic:
		return true
	}
	return false
}

// Shared reports whether lists with this visibility carry a slug.
func (v Visibility) Shared() bool {
	return v == VisibilityUnlisted || v == VisibilityPublic
}

// List is a user-curated collection of items.
type List struct {
	ID          string     `json:"id" validate:"required,uuid"`
	OwnerID     string     `json:"owner_id" validate:"required"`
	Title       string     `json:"title" validate:"required,min=1,max=200"`
	Description *string    `json:"description,omitempty" validate:"omitempty,max=2000"`
	Visibility  Visibility `json:"visibility" validate:"required,oneof=private unlisted public"`
	Slug        *string    `json:"slug,omitempty" validate:"omitempty,max=260"`
	Tags        []string   `json:"tags" validate:"omitempty,dive,min=1,max=50"`
	CoverURL    *string    `json:"cover_url,omitempty" validate:"omitempty,max=2048"`
	CreatedAt   time.Time  `json:"created_at"`
	UpdatedAt   time.Time  `json:"updated_at"`
}

// Normalize enforces the slug invariant: a shared list always has a slug,
// a private one never does.
func (l *List) Normalize() {
	if l.Tags == nil {
		l.Tags = []string{}
	}
	if !l.Visibility.Shared() {
		l.Slug = nil
		return
	}
	if l.Slug == nil || *l.Slug == "" {
		s := slug.Unique(l.Title)
		l.Slug = &s
	}
}

// Clone returns a deep copy.
func (l *List) Clone() *List {
	c := *l
	c.Description = cloneString(l.Description)
	c.Slug = cloneString(l.Slug)
	c.CoverURL = cloneString(l.CoverURL)
	c.Tags = append([]string{}, l.Tags...)
	return &c
}

// ListPatch is a partial update. Nil fields are left untouched; an empty
// string clears an optional text field.
type ListPatch struct {
	Title       *string     `json:"title,omitempty"`
	Description *string     `json:"description,omitempty"`
	Visibility  *Visibility `json:"visibility,omitempty"`
	Slug        *string     `json:"slug,omitempty"`
	Tags        *[]string   `json:"tags,omitempty"`
	CoverURL    *string     `json:"cover_url,omitempty"`
}

// IsEmpty reports whether the patch touches no field.
func (p ListPatch) IsEmpty() bool {
	return p == ListPatch{}
}

// Merge returns p overlaid with later: every field later sets wins.
func (p ListPatch) Merge(later ListPatch) ListPatch {
	out := p
	if later.Title != nil {
		out.Title = later.Title
	}
	if later.Description != nil {
		out.Description = later.Description
	}
	if later.Visibility != nil {
		out.Visibility = later.Visibility
	}
	if later.Slug != nil {
		out.Slug = later.Slug
	}
	if later.Tags != nil {
		out.Tags = later.Tags
	}
	if later.CoverURL != nil {
		out.CoverURL = later.CoverURL
	}
	return out
}

// Apply writes the touched fields into l and re-establishes the slug invariant.
func (p ListPatch) Apply(l *List) {
	if p.Title != nil {
		l.Title = *p.Title
	}
	if p.Description != nil {
		l.Description = optional(*p.Description)
	}
	if p.Visibility != nil {
		l.Visibility = *p.Visibility
	}
	if p.Slug != nil {
		l.Slug = optional(*p.Slug)
	}
	if p.Tags != nil {
		l.Tags = append([]string{}, (*p.Tags)...)
	}
	if p.CoverURL != nil {
		l.CoverURL = optional(*p.CoverURL)
	}
	l.Normalize()
}

func optional(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}

func cloneString(s *string) *string {
	if s == nil {
		return nil
	}
	v := *s
	return &v
}
