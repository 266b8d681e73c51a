package reconciler

import (
	"fmt"

	"github.com/dmitrijs2005/whattodo/internal/models"
)

type IntentKind int

const (
	// IntentNone means the entries cancel out and nothing is sent.
	IntentNone IntentKind = iota
	IntentCreate
	IntentUpdate
	IntentDelete
)

func (k IntentKind) String() string {
	switch k {
	case IntentCreate:
		return "create"
	case IntentUpdate:
		return "update"
	case IntentDelete:
		return "delete"
	default:
		return "none"
	}
}

// Intent is the net change one entity's pending entries amount to.
type Intent struct {
	Kind     IntentKind
	Entity   models.EntityKind
	EntityID string

	// Set for IntentCreate.
	List *models.List
	Item *models.Item

	// Set for IntentUpdate.
	ListPatch models.ListPatch
	ItemPatch models.ItemPatch

	// Seqs of every entry that contributed, ascending.
	Seqs []int64
}

type foldState int

const (
	stStart foldState = iota
	stCreate
	stUpdate
	stDeleteRemote
	stDeleteLocal
)

// Fold collapses the ordered pending entries of a single entity into one
// Intent. entries must be in ascending seq order and share entity and id.
//
// A create followed by updates becomes one create carrying the merged
// record. Updates merge field by field, the latest value winning. Anything
// after a delete other than a create is moot. A delete that only undoes a
// local create that never reached the authority folds to IntentNone.
func Fold(entries []*models.OutboxEntry) (Intent, error) {
	if len(entries) == 0 {
		return Intent{}, fmt.Errorf("fold: no entries")
	}

	first := entries[0].Mutation
	in := Intent{Entity: first.Entity(), EntityID: first.EntityID()}

	// remote is true when the entity may already exist on the authority,
	// i.e. the fold did not begin with a local create.
	remote := first.Op() != models.OpCreate
	state := stStart

	for _, e := range entries {
		m := e.Mutation
		if m.Entity() != in.Entity || m.EntityID() != in.EntityID {
			return Intent{}, fmt.Errorf("fold: entry %d is %s/%s, want %s/%s",
				e.Seq, m.Entity(), m.EntityID(), in.Entity, in.EntityID)
		}
		in.Seqs = append(in.Seqs, e.Seq)

		switch v := m.(type) {
		case models.ListCreate:
			in.List, in.ListPatch = v.List.Clone(), models.ListPatch{}
			in.List.Normalize()
			state = stCreate
		case models.ItemCreate:
			in.Item, in.ItemPatch = v.Item.Clone(), models.ItemPatch{}
			in.Item.Normalize(e.CreatedAt)
			state = stCreate

		case models.ListUpdate:
			switch state {
			case stCreate:
				v.Patch.Apply(in.List)
			case stStart, stUpdate:
				in.ListPatch = in.ListPatch.Merge(v.Patch)
				state = stUpdate
			}
		case models.ItemUpdate:
			switch state {
			case stCreate:
				v.Patch.Apply(in.Item, e.CreatedAt)
			case stStart, stUpdate:
				in.ItemPatch = in.ItemPatch.Merge(v.Patch)
				state = stUpdate
			}

		case models.ListDelete, models.ItemDelete:
			switch state {
			case stDeleteRemote, stDeleteLocal:
			default:
				if remote {
					state = stDeleteRemote
				} else {
					state = stDeleteLocal
				}
			}
			in.List, in.Item = nil, nil
			in.ListPatch, in.ItemPatch = models.ListPatch{}, models.ItemPatch{}

		default:
			return Intent{}, fmt.Errorf("fold: unknown mutation %T", m)
		}
	}

	switch state {
	case stCreate:
		in.Kind = IntentCreate
	case stUpdate:
		in.Kind = IntentUpdate
	case stDeleteRemote:
		in.Kind = IntentDelete
	default:
		in.Kind = IntentNone
	}
	return in, nil
}
