package models

import (
	"encoding/json"
	"fmt"
	"time"
)

type EntityKind string

const (
	EntityList EntityKind = "list"
	EntityItem EntityKind = "item"
)

type OpKind string

const (
	OpCreate OpKind = "create"
	OpUpdate OpKind = "update"
	OpDelete OpKind = "delete"
)

// Mutation is one queued change to a list or an item. The concrete types
// below are the only implementations; code switching on a Mutation handles
// all six.
type Mutation interface {
	Op() OpKind
	Entity() EntityKind
	EntityID() string
}

type ListCreate struct {
	List List `json:"list"`
}

type ListUpdate struct {
	ID    string    `json:"id"`
	Patch ListPatch `json:"patch"`
}

type ListDelete struct {
	ID string `json:"id"`
}

type ItemCreate struct {
	Item Item `json:"item"`
}

type ItemUpdate struct {
	ID    string    `json:"id"`
	Patch ItemPatch `json:"patch"`
}

type ItemDelete struct {
	ID string `json:"id"`
}

func (m ListCreate) Op() OpKind         { return OpCreate }
func (m ListCreate) Entity() EntityKind { return EntityList }
func (m ListCreate) EntityID() string   { return m.List.ID }

func (m ListUpdate) Op() OpKind         { return OpUpdate }
func (m ListUpdate) Entity() EntityKind { return EntityList }
func (m ListUpdate) EntityID() string   { return m.ID }

func (m ListDelete) Op() OpKind         { return OpDelete }
func (m ListDelete) Entity() EntityKind { return EntityList }
func (m ListDelete) EntityID() string   { return m.ID }

func (m ItemCreate) Op() OpKind         { return OpCreate }
func (m ItemCreate) Entity() EntityKind { return EntityItem }
func (m ItemCreate) EntityID() string   { return m.Item.ID }

func (m ItemUpdate) Op() OpKind         { return OpUpdate }
func (m ItemUpdate) Entity() EntityKind { return EntityItem }
func (m ItemUpdate) EntityID() string   { return m.ID }

func (m ItemDelete) Op() OpKind         { return OpDelete }
func (m ItemDelete) Entity() EntityKind { return EntityItem }
func (m ItemDelete) EntityID() string   { return m.ID }

// EncodeMutation serializes the payload of m for the outbox. Deletes carry
// no payload.
func EncodeMutation(m Mutation) ([]byte, error) {
	switch v := m.(type) {
	case ListCreate, ItemCreate:
		return json.Marshal(v)
	case ListUpdate:
		return json.Marshal(v.Patch)
	case ItemUpdate:
		return json.Marshal(v.Patch)
	case ListDelete, ItemDelete:
		return nil, nil
	default:
		return nil, fmt.Errorf("unknown mutation type %T", m)
	}
}

// DecodeMutation rebuilds a Mutation from its outbox columns.
func DecodeMutation(op OpKind, entity EntityKind, entityID string, payload []byte) (Mutation, error) {
	switch entity {
	case EntityList:
		switch op {
		case OpCreate:
			var m ListCreate
			if err := json.Unmarshal(payload, &m); err != nil {
				return nil, fmt.Errorf("decode list create: %w", err)
			}
			return m, nil
		case OpUpdate:
			m := ListUpdate{ID: entityID}
			if err := json.Unmarshal(payload, &m.Patch); err != nil {
				return nil, fmt.Errorf("decode list update: %w", err)
			}
			return m, nil
		case OpDelete:
			return ListDelete{ID: entityID}, nil
		}
	case EntityItem:
		switch op {
		case OpCreate:
			var m ItemCreate
			if err := json.Unmarshal(payload, &m); err != nil {
				return nil, fmt.Errorf("decode item create: %w", err)
			}
			return m, nil
		case OpUpdate:
			m := ItemUpdate{ID: entityID}
			if err := json.Unmarshal(payload, &m.Patch); err != nil {
				return nil, fmt.Errorf("decode item update: %w", err)
			}
			return m, nil
		case OpDelete:
			return ItemDelete{ID: entityID}, nil
		}
	}
	return nil, fmt.Errorf("unknown mutation %s/%s", entity, op)
}

// OutboxEntry is a durable, sequenced Mutation awaiting confirmation.
type OutboxEntry struct {
	Seq       int64
	Mutation  Mutation
	CreatedAt time.Time
	Synced    bool
}

// MirrorList is a list as last confirmed by the remote authority.
type MirrorList struct {
	List
	SyncedAt time.Time `json:"synced_at"`
}

// MirrorItem is an item as last confirmed by the remote authority.
type MirrorItem struct {
	Item
	SyncedAt time.Time `json:"synced_at"`
}
