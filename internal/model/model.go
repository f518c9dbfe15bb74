// Package model defines the domain types used across the application.
package model

import "slices"

// Item is a piece of content that can be pushed to users.
type Item struct {
	ID         string
	URL        string
	Topics     map[string]bool
	AddedEpoch int64

	// AddedStr and TopicMask are derived from AddedEpoch and Topics.
	// A non-blank AddedStr marks the item as already enriched.
	AddedStr  string
	TopicMask int64
}

// User is a subscriber with a topic preference mask.
type User struct {
	ID        string
	Email     string
	Active    bool
	TopicMask int64
}

// Eligible reports whether the user takes part in matching.
func (u User) Eligible() bool {
	return u.Active && u.Email != "" && u.TopicMask > 0
}

// PushRecord tracks every item ever pushed to a user.
type PushRecord struct {
	UserID string
	Email  string
	Count  int64
	// ItemIDs is sorted and free of duplicates.
	ItemIDs []string
}

// Has reports whether itemID was already pushed.
func (r PushRecord) Has(itemID string) bool {
	_, ok := slices.BinarySearch(r.ItemIDs, itemID)
	return ok
}
