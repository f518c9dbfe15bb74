// Package storage defines the persistence interface and its implementations.
package storage

import (
	"context"
	"errors"
	"slices"

	"topicpush/internal/model"
)

// ErrNotFound is returned when a record does not exist.
var ErrNotFound = errors.New("record not found")

// Collections names the three record collections.
type Collections struct {
	Items       string
	Users       string
	PushHistory string
}

// DefaultCollections returns the default collection names.
func DefaultCollections() Collections {
	return Collections{Items: "items", Users: "users", PushHistory: "push_history"}
}

// Storage is the interface for all persistence operations.
// List methods return records in scan order.
type Storage interface {
	AddItem(ctx context.Context, item *model.Item) (bool, error)
	ListItems(ctx context.Context) ([]model.Item, error)
	UpdateItemDerived(ctx context.Context, id, addedStr string, mask int64) error

	PutUser(ctx context.Context, user *model.User) error
	ListUsers(ctx context.Context) ([]model.User, error)

	ListPushRecords(ctx context.Context) ([]model.PushRecord, error)
	GetPushRecord(ctx context.Context, userID string) (*model.PushRecord, error)
	PutPushRecord(ctx context.Context, rec *model.PushRecord) error

	Close() error
}

func normalizeIDs(ids []string) []string {
	if len(ids) == 0 {
		return nil
	}
	ids = slices.Clone(ids)
	slices.Sort(ids)
	return slices.Compact(ids)
}
