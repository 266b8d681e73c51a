// Package reconciler drains the outbox into the remote authority.
//
// A pass snapshots the pending entries and groups them by entity. Under the
// entity's lock the group is re-read from the outbox, folded into one Intent
// and submitted. Nothing is marked synced or written
// to the mirror before the authority acknowledges it. Transient failures
// leave the entries pending for the next pass; terminal rejections discard
// them and are reported.
package reconciler

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/dmitrijs2005/whattodo/internal/client/client"
	"github.com/dmitrijs2005/whattodo/internal/logging"
	"github.com/dmitrijs2005/whattodo/internal/models"
	"golang.org/x/sync/errgroup"
)

// Authority is the part of the remote authority a pass submits to.
type Authority interface {
	CreateList(ctx context.Context, l *models.List) (*models.List, error)
	UpdateList(ctx context.Context, id string, p models.ListPatch) (*models.List, error)
	DeleteList(ctx context.Context, id string) error
	CreateItem(ctx context.Context, i *models.Item) (*models.Item, error)
	UpdateItem(ctx context.Context, id string, p models.ItemPatch) (*models.Item, error)
	DeleteItem(ctx context.Context, id string) error
}

type Outbox interface {
	Pending(ctx context.Context) ([]*models.OutboxEntry, error)
	PendingFor(ctx context.Context, entity models.EntityKind, id string) ([]*models.OutboxEntry, error)
	MarkSynced(ctx context.Context, seq int64) error
	Compact(ctx context.Context) (int64, error)
}

type Mirror interface {
	UpsertLists(ctx context.Context, lists []*models.List) error
	UpsertItems(ctx context.Context, items []*models.Item) error
	DeleteList(ctx context.Context, id string) error
	DeleteItem(ctx context.Context, id string) error
}

// Rejection is a group of entries the authority refused for good.
type Rejection struct {
	Entity   models.EntityKind
	EntityID string
	Intent   IntentKind
	Seqs     []int64
	Err      error
}

// Report summarizes one pass. Counts are per entity, not per entry.
type Report struct {
	Synced    int
	Skipped   int
	Transient int
	Rejected  []Rejection
	Compacted int64
	Duration  time.Duration
}

// Settled reports whether the pass left nothing to retry.
func (r *Report) Settled() bool {
	return r.Transient == 0
}

type Options struct {
	// Concurrency bounds how many entities are submitted at once.
	Concurrency int
	// EntityTimeout bounds a single submission; expiry is transient.
	EntityTimeout time.Duration
}

type Reconciler struct {
	outbox    Outbox
	mirror    Mirror
	authority Authority
	logger    logging.Logger
	opts      Options
	locks     *keyedMutex
}

func New(outbox Outbox, mirror Mirror, authority Authority, logger logging.Logger, opts Options) *Reconciler {
	if opts.Concurrency <= 0 {
		opts.Concurrency = 4
	}
	if opts.EntityTimeout <= 0 {
		opts.EntityTimeout = 30 * time.Second
	}
	return &Reconciler{
		outbox:    outbox,
		mirror:    mirror,
		authority: authority,
		logger:    logger.With("module", "reconciler"),
		opts:      opts,
		locks:     newKeyedMutex(),
	}
}

type outcome int

const (
	outcomeSynced outcome = iota
	outcomeSkipped
	outcomeTransient
	outcomeRejected
)

type group struct {
	entity  models.EntityKind
	id      string
	entries []*models.OutboxEntry
}

// groupEntries splits entries by entity id keeping first-seen order.
func groupEntries(entries []*models.OutboxEntry) (lists, items []*group) {
	index := map[string]*group{}
	for _, e := range entries {
		key := string(e.Mutation.Entity()) + "/" + e.Mutation.EntityID()
		g, ok := index[key]
		if !ok {
			g = &group{entity: e.Mutation.Entity(), id: e.Mutation.EntityID()}
			index[key] = g
			if g.entity == models.EntityList {
				lists = append(lists, g)
			} else {
				items = append(items, g)
			}
		}
		g.entries = append(g.entries, e)
	}
	return lists, items
}

// Run performs one pass. It returns an error only when the pass itself could
// not run (outbox unreadable, ctx cancelled); per-entity failures are in the
// report.
//
// Lists are submitted before items so that an item created inside a new list
// never reaches the authority ahead of the list. Items whose target list is
// still pending after the list phase wait for the next pass.
func (r *Reconciler) Run(ctx context.Context) (*Report, error) {
	start := time.Now()

	entries, err := r.outbox.Pending(ctx)
	if err != nil {
		return nil, fmt.Errorf("read outbox: %w", err)
	}

	rep := &Report{}
	if len(entries) == 0 {
		rep.Duration = time.Since(start)
		return rep, nil
	}

	lists, items := groupEntries(entries)
	r.logger.Debug(ctx, "reconcile pass started", "entries", len(entries), "lists", len(lists), "items", len(items))

	var mu sync.Mutex
	blocked := map[string]bool{}
	record := func(g *group, in Intent, o outcome, err error) {
		mu.Lock()
		defer mu.Unlock()
		switch o {
		case outcomeSynced:
			rep.Synced++
		case outcomeSkipped:
			rep.Skipped++
		case outcomeTransient:
			rep.Transient++
			if g.entity == models.EntityList {
				blocked[g.id] = true
			}
		case outcomeRejected:
			rep.Rejected = append(rep.Rejected, Rejection{
				Entity: g.entity, EntityID: g.id, Intent: in.Kind, Seqs: seqsOf(g), Err: err,
			})
		}
	}

	if err := r.runPhase(ctx, lists, nil, record); err != nil {
		return nil, err
	}
	if err := r.runPhase(ctx, items, blocked, record); err != nil {
		return nil, err
	}

	if n, err := r.outbox.Compact(ctx); err != nil {
		r.logger.Warn(ctx, "outbox compaction failed", "error", err)
	} else {
		rep.Compacted = n
	}

	rep.Duration = time.Since(start)
	r.logger.Info(ctx, "reconcile pass finished",
		"synced", rep.Synced, "skipped", rep.Skipped, "transient", rep.Transient,
		"rejected", len(rep.Rejected), "duration", rep.Duration)
	return rep, nil
}

func (r *Reconciler) runPhase(ctx context.Context, groups []*group, blocked map[string]bool,
	record func(*group, Intent, outcome, error)) error {

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(r.opts.Concurrency)

	for _, grp := range groups {
		if gctx.Err() != nil {
			break
		}
		if dep := listDependency(grp); dep != "" && blocked[dep] {
			r.logger.Debug(ctx, "item waits for its list", "item", grp.id, "list", dep)
			record(grp, Intent{}, outcomeTransient, nil)
			continue
		}
		g.Go(func() error {
			in, o, err := r.reconcile(gctx, grp)
			record(grp, in, o, err)
			return nil
		})
	}
	_ = g.Wait()
	return ctx.Err()
}

// listDependency returns the list an item group needs to exist remotely.
func listDependency(g *group) string {
	if g.entity != models.EntityItem {
		return ""
	}
	var dep string
	for _, e := range g.entries {
		switch v := e.Mutation.(type) {
		case models.ItemCreate:
			dep = v.Item.ListID
		case models.ItemUpdate:
			if v.Patch.ListID != nil {
				dep = *v.Patch.ListID
			}
		}
	}
	return dep
}

func seqsOf(g *group) []int64 {
	seqs := make([]int64, 0, len(g.entries))
	for _, e := range g.entries {
		seqs = append(seqs, e.Seq)
	}
	return seqs
}

// reconcile submits one entity's folded intent while holding its lock.
// The snapshot g was taken before the lock; another pass may have settled
// some of its entries since, and newer ones may have been queued, so the
// group is re-read first.
func (r *Reconciler) reconcile(ctx context.Context, g *group) (Intent, outcome, error) {
	unlock := r.locks.Lock(g.id)
	defer unlock()

	fresh, err := r.outbox.PendingFor(ctx, g.entity, g.id)
	if err != nil {
		r.logger.Warn(ctx, "cannot re-read outbox entries", "entity", g.entity, "id", g.id, "error", err)
		return Intent{}, outcomeTransient, err
	}
	if len(fresh) == 0 {
		r.logger.Debug(ctx, "entity already settled by another pass", "entity", g.entity, "id", g.id)
		return Intent{}, outcomeSkipped, nil
	}
	g.entries = fresh

	in, err := Fold(g.entries)
	if err != nil {
		r.logger.Error(ctx, "cannot fold outbox entries, discarding", "entity", g.entity, "id", g.id, "error", err)
		if merr := r.markSynced(ctx, seqsOf(g)); merr != nil {
			return in, outcomeTransient, merr
		}
		return in, outcomeRejected, err
	}

	log := r.logger.With("entity", in.Entity, "id", in.EntityID, "intent", in.Kind.String())

	if in.Kind == IntentNone {
		if err := r.forget(ctx, in); err != nil {
			log.Warn(ctx, "mirror cleanup failed", "error", err)
			return in, outcomeTransient, err
		}
		if err := r.markSynced(ctx, in.Seqs); err != nil {
			log.Warn(ctx, "cannot mark cancelled entries", "error", err)
			return in, outcomeTransient, err
		}
		log.Debug(ctx, "entries cancel out, nothing sent", "seqs", in.Seqs)
		return in, outcomeSkipped, nil
	}

	sctx, cancel := context.WithTimeout(ctx, r.opts.EntityTimeout)
	err = r.submit(sctx, in)
	cancel()

	switch {
	case err == nil:
		if err := r.markSynced(ctx, in.Seqs); err != nil {
			log.Warn(ctx, "acknowledged change not marked synced", "error", err)
			return in, outcomeTransient, err
		}
		log.Debug(ctx, "entity synced", "seqs", in.Seqs)
		return in, outcomeSynced, nil

	case errors.Is(err, client.ErrAuthorizationRejected):
		log.Warn(ctx, "authority rejected change, discarding", "error", err)
		if ferr := r.forget(ctx, in); ferr != nil {
			log.Warn(ctx, "mirror cleanup failed", "error", ferr)
		}
		if merr := r.markSynced(ctx, in.Seqs); merr != nil {
			return in, outcomeTransient, merr
		}
		return in, outcomeRejected, err

	case errors.Is(err, client.ErrValidationRejected):
		log.Warn(ctx, "authority refused payload, discarding", "error", err)
		if merr := r.markSynced(ctx, in.Seqs); merr != nil {
			return in, outcomeTransient, merr
		}
		return in, outcomeRejected, err

	default:
		log.Info(ctx, "change stays pending", "error", err)
		return in, outcomeTransient, err
	}
}

// submit sends the intent and, on acknowledgement, records the authority's
// version of the entity in the mirror. A mirror failure is returned as is so
// the entries stay pending; resubmission is idempotent.
func (r *Reconciler) submit(ctx context.Context, in Intent) error {
	switch in.Entity {
	case models.EntityList:
		switch in.Kind {
		case IntentCreate:
			l, err := r.authority.CreateList(ctx, in.List)
			if err != nil {
				return err
			}
			return r.mirror.UpsertLists(ctx, []*models.List{l})
		case IntentUpdate:
			l, err := r.authority.UpdateList(ctx, in.EntityID, in.ListPatch)
			if err != nil {
				return err
			}
			return r.mirror.UpsertLists(ctx, []*models.List{l})
		case IntentDelete:
			if err := r.authority.DeleteList(ctx, in.EntityID); err != nil {
				return err
			}
			return r.mirror.DeleteList(ctx, in.EntityID)
		}
	case models.EntityItem:
		switch in.Kind {
		case IntentCreate:
			i, err := r.authority.CreateItem(ctx, in.Item)
			if err != nil {
				return err
			}
			return r.mirror.UpsertItems(ctx, []*models.Item{i})
		case IntentUpdate:
			i, err := r.authority.UpdateItem(ctx, in.EntityID, in.ItemPatch)
			if err != nil {
				return err
			}
			return r.mirror.UpsertItems(ctx, []*models.Item{i})
		case IntentDelete:
			if err := r.authority.DeleteItem(ctx, in.EntityID); err != nil {
				return err
			}
			return r.mirror.DeleteItem(ctx, in.EntityID)
		}
	}
	return fmt.Errorf("cannot submit %s intent for %s", in.Kind, in.Entity)
}

func (r *Reconciler) forget(ctx context.Context, in Intent) error {
	if in.Entity == models.EntityList {
		return r.mirror.DeleteList(ctx, in.EntityID)
	}
	return r.mirror.DeleteItem(ctx, in.EntityID)
}

func (r *Reconciler) markSynced(ctx context.Context, seqs []int64) error {
	for _, seq := range seqs {
		if err := r.outbox.MarkSynced(ctx, seq); err != nil {
			return err
		}
	}
	return nil
}
