// Package match selects the items a user is interested in.
package match

import "topicpush/internal/model"

// FindMatches returns the IDs of items sharing at least one topic bit with
// userMask, in the order the items were given.
func FindMatches(userMask int64, items []model.Item) []string {
	var ids []string
	for _, item := range items {
		if userMask&item.TopicMask != 0 {
			ids = append(ids, item.ID)
		}
	}
	return ids
}
