// Package outbox is the durable, ordered queue of local mutations awaiting
// confirmation by the remote authority.
package outbox

import (
	"context"

	"github.com/dmitrijs2005/whattodo/internal/models"
)

type Repository interface {
	// Enqueue persists m and returns its sequence number. Sequence numbers
	// are strictly increasing and never reused.
	Enqueue(ctx context.Context, m models.Mutation) (int64, error)
	// Pending returns unsynced entries in ascending seq order.
	Pending(ctx context.Context) ([]*models.OutboxEntry, error)
	// PendingFor returns the unsynced entries of one entity in seq order.
	PendingFor(ctx context.Context, entity models.EntityKind, id string) ([]*models.OutboxEntry, error)
	// MarkSynced flags an entry as confirmed. Marking twice, or marking an
	// unknown seq, is not an error.
	MarkSynced(ctx context.Context, seq int64) error
	// Compact removes synced entries and reports how many were removed.
	Compact(ctx context.Context) (int64, error)
	PendingCount(ctx context.Context) (int, error)
	// Clear drops every entry, synced or not.
	Clear(ctx context.Context) error
}
