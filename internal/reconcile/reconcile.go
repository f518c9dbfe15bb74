// Package reconcile runs one pass of matching users to items and pushing at
// most one unseen item per user.
package reconcile

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"topicpush/internal/email"
	"topicpush/internal/history"
	"topicpush/internal/match"
	"topicpush/internal/model"
	"topicpush/internal/storage"
	"topicpush/internal/topics"
)

// Notifier delivers one item to one user.
type Notifier interface {
	Notify(ctx context.Context, user model.User, item model.Item) error
}

// Result summarizes a run.
type Result struct {
	RunID    string
	Items    int
	Enriched int
	Users    int
	Eligible int
	Sent     int
	Failed   int
	// Idle counts eligible users with no unseen match.
	Idle int
}

// Driver orchestrates reconciliation runs.
type Driver struct {
	store    storage.Storage
	notifier Notifier
	tracker  *history.Tracker
	catalog  topics.Catalog
	log      *slog.Logger
	pause    time.Duration
}

// New creates a Driver.
func New(store storage.Storage, notifier Notifier, catalog topics.Catalog, log *slog.Logger) *Driver {
	return &Driver{
		store:    store,
		notifier: notifier,
		tracker:  history.NewTracker(store),
		catalog:  catalog,
		log:      log,
	}
}

// SetSendInterval sets a pause after every send attempt to stay under the
// transport's rate limit.
func (d *Driver) SetSendInterval(p time.Duration) {
	d.pause = p
}

// RunOnce performs a full run. Errors loading a collection abort the run;
// failures for a single item or user are logged and skipped.
func (d *Driver) RunOnce(ctx context.Context) (Result, error) {
	res := Result{RunID: uuid.NewString()}
	log := d.log.With("run_id", res.RunID)
	log.Info("run started")

	items, err := d.store.ListItems(ctx)
	if err != nil {
		return res, fmt.Errorf("load items: %w", err)
	}
	res.Items = len(items)
	res.Enriched = d.enrichItems(ctx, log, items)
	byID := make(map[string]model.Item, len(items))
	for _, it := range items {
		if _, ok := byID[it.ID]; !ok {
			byID[it.ID] = it
		}
	}

	users, err := d.store.ListUsers(ctx)
	if err != nil {
		return res, fmt.Errorf("load users: %w", err)
	}
	res.Users = len(users)

	recs, err := d.store.ListPushRecords(ctx)
	if err != nil {
		return res, fmt.Errorf("load push history: %w", err)
	}
	pushed := history.Index(recs)

	for _, user := range users {
		if ctx.Err() != nil {
			log.Warn("run interrupted", "error", ctx.Err())
			return res, ctx.Err()
		}
		if !user.Eligible() {
			continue
		}
		res.Eligible++

		var rec *model.PushRecord
		if r, ok := pushed[user.ID]; ok {
			rec = &r
		}

		switch d.processUser(ctx, log, user, items, byID, rec) {
		case outcomeSent:
			res.Sent++
		case outcomeFailed:
			res.Failed++
		case outcomeIdle:
			res.Idle++
		}
	}

	log.Info("run finished",
		"items", res.Items,
		"enriched", res.Enriched,
		"users", res.Users,
		"eligible", res.Eligible,
		"sent", res.Sent,
		"failed", res.Failed,
		"idle", res.Idle,
	)
	return res, nil
}

// enrichItems fills derived fields in place and writes them back.
// A failed write is logged; the item still matches on its computed mask.
func (d *Driver) enrichItems(ctx context.Context, log *slog.Logger, items []model.Item) int {
	n := 0
	for i := range items {
		enriched, changed := d.catalog.Enrich(items[i])
		if !changed {
			continue
		}
		items[i] = enriched
		n++
		log.Debug("item enriched", "item_id", enriched.ID, "topic_mask", enriched.TopicMask, "added", enriched.AddedStr)
		if err := d.store.UpdateItemDerived(ctx, enriched.ID, enriched.AddedStr, enriched.TopicMask); err != nil {
			log.Error("update item", "item_id", enriched.ID, "error", err)
		}
	}
	return n
}

type outcome int

const (
	outcomeIdle outcome = iota
	outcomeSent
	outcomeFailed
)

// processUser attempts at most one send: the first matched item the user
// has not been pushed yet. A failed send is not recorded and no other
// candidate is tried in this run.
func (d *Driver) processUser(ctx context.Context, log *slog.Logger, user model.User, items []model.Item, byID map[string]model.Item, rec *model.PushRecord) outcome {
	candidates := match.FindMatches(user.TopicMask, items)
	log.Debug("user matched", "user_id", user.ID, "candidates", len(candidates))

	for _, id := range candidates {
		if history.HasBeenPushed(rec, id) {
			continue
		}

		if err := d.notifier.Notify(ctx, user, byID[id]); err != nil {
			if errors.Is(err, email.ErrNotConfigured) {
				log.Warn("nothing sent, transport not configured", "user_id", user.ID, "item_id", id)
			} else {
				log.Error("send notification", "user_id", user.ID, "item_id", id, "error", err)
			}
			d.throttle(ctx)
			return outcomeFailed
		}

		// The email is out; the record must land even if shutdown began meanwhile.
		if _, err := d.tracker.Record(context.WithoutCancel(ctx), user, id, rec); err != nil {
			log.Error("record push", "user_id", user.ID, "item_id", id, "error", err)
		}
		log.Info("item pushed", "user_id", user.ID, "item_id", id)
		d.throttle(ctx)
		return outcomeSent
	}
	return outcomeIdle
}

func (d *Driver) throttle(ctx context.Context) {
	if d.pause <= 0 {
		return
	}
	select {
	case <-ctx.Done():
	case <-time.After(d.pause):
	}
}
