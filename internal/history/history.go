// Package history keeps track of which items were pushed to which users.
package history

import (
	"context"
	"fmt"
	"slices"

	"topicpush/internal/model"
)

// Writer persists push records.
type Writer interface {
	PutPushRecord(ctx context.Context, rec *model.PushRecord) error
}

// Index maps user IDs to their push record. When a user has more than one
// record, the first one wins.
func Index(records []model.PushRecord) map[string]model.PushRecord {
	idx := make(map[string]model.PushRecord, len(records))
	for _, rec := range records {
		if _, ok := idx[rec.UserID]; ok {
			continue
		}
		idx[rec.UserID] = rec
	}
	return idx
}

// HasBeenPushed reports whether itemID is in the record. A nil record means
// the user was never pushed anything.
func HasBeenPushed(rec *model.PushRecord, itemID string) bool {
	if rec == nil {
		return false
	}
	return rec.Has(itemID)
}

// Next returns the record that results from pushing itemID to user.
// rec is not modified.
func Next(rec *model.PushRecord, user model.User, itemID string) model.PushRecord {
	next := model.PushRecord{
		UserID: user.ID,
		Email:  user.Email,
		Count:  1,
	}
	if rec != nil {
		next.Count = rec.Count + 1
		next.ItemIDs = slices.Clone(rec.ItemIDs)
	}
	if i, found := slices.BinarySearch(next.ItemIDs, itemID); !found {
		next.ItemIDs = slices.Insert(next.ItemIDs, i, itemID)
	}
	return next
}

// Tracker records successful pushes.
type Tracker struct {
	store Writer
}

// NewTracker creates a Tracker writing to store.
func NewTracker(store Writer) *Tracker {
	return &Tracker{store: store}
}

// Record stores the push of itemID to user and returns the new record.
func (t *Tracker) Record(ctx context.Context, user model.User, itemID string, rec *model.PushRecord) (model.PushRecord, error) {
	next := Next(rec, user, itemID)
	if err := t.store.PutPushRecord(ctx, &next); err != nil {
		return next, fmt.Errorf("put push record: %w", err)
	}
	return next, nil
}
