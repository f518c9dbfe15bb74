package storage

import (
	"context"
	"encoding/json"
	"fmt"
	"strconv"

	"github.com/redis/go-redis/v9"

	"topicpush/internal/model"
)

// Redis implements Storage on top of Redis hashes. Each collection name is
// used as a key prefix; scan order is the order records were first written.
type Redis struct {
	client *redis.Client
	cols   Collections
}

// NewRedis creates a Redis store using the given collection names.
func NewRedis(client *redis.Client, cols Collections) *Redis {
	return &Redis{client: client, cols: cols}
}

// Close closes the underlying client.
func (s *Redis) Close() error {
	return s.client.Close()
}

// addItemScript writes an item hash and indexes it in one step. An item
// counts as present only when it is both indexed and stored; the index
// entry is written last, so a failed attempt leaves nothing a retry would
// mistake for an existing item.
//
// KEYS: record, index, seq. ARGV: id, then field/value pairs.
var addItemScript = redis.NewScript(`
if redis.call("ZSCORE", KEYS[2], ARGV[1]) and redis.call("EXISTS", KEYS[1]) == 1 then
	return 0
end
local seq = redis.call("INCR", KEYS[3])
redis.call("DEL", KEYS[1])
redis.call("HSET", KEYS[1], "id", ARGV[1], unpack(ARGV, 2))
redis.call("ZADD", KEYS[2], "NX", seq, ARGV[1])
return 1
`)

// AddItem inserts an item unless one with the same ID exists.
func (s *Redis) AddItem(ctx context.Context, item *model.Item) (bool, error) {
	topics, err := json.Marshal(item.Topics)
	if err != nil {
		return false, fmt.Errorf("encode topics: %w", err)
	}
	args := []any{
		item.ID,
		"url", item.URL,
		"topics", string(topics),
		"added_epoch", item.AddedEpoch,
	}
	if item.AddedStr != "" {
		args = append(args, "added_str", item.AddedStr, "topic_mask", item.TopicMask)
	}

	keys := []string{
		recordKey(s.cols.Items, item.ID),
		indexKey(s.cols.Items),
		seqKey(s.cols.Items),
	}
	n, err := addItemScript.Run(ctx, s.client, keys, args...).Int()
	if err != nil {
		return false, fmt.Errorf("save item %s: %w", item.ID, err)
	}
	return n == 1, nil
}

// ListItems returns all items.
func (s *Redis) ListItems(ctx context.Context) ([]model.Item, error) {
	hashes, err := s.scan(ctx, s.cols.Items)
	if err != nil {
		return nil, fmt.Errorf("scan items: %w", err)
	}

	items := make([]model.Item, 0, len(hashes))
	for _, h := range hashes {
		it := model.Item{
			ID:       h["id"],
			URL:      h["url"],
			AddedStr: h["added_str"],
		}
		if raw := h["topics"]; raw != "" {
			if err := json.Unmarshal([]byte(raw), &it.Topics); err != nil {
				return nil, fmt.Errorf("decode topics of item %s: %w", it.ID, err)
			}
		}
		if it.AddedEpoch, err = parseInt(h, "added_epoch"); err != nil {
			return nil, fmt.Errorf("item %s: %w", it.ID, err)
		}
		if it.TopicMask, err = parseInt(h, "topic_mask"); err != nil {
			return nil, fmt.Errorf("item %s: %w", it.ID, err)
		}
		items = append(items, it)
	}
	return items, nil
}

// UpdateItemDerived sets the derived timestamp and topic mask of an item.
func (s *Redis) UpdateItemDerived(ctx context.Context, id, addedStr string, mask int64) error {
	key := recordKey(s.cols.Items, id)
	n, err := s.client.Exists(ctx, key).Result()
	if err != nil {
		return fmt.Errorf("check item %s: %w", id, err)
	}
	if n == 0 {
		return fmt.Errorf("update item %s: %w", id, ErrNotFound)
	}
	if err := s.client.HSet(ctx, key, "added_str", addedStr, "topic_mask", mask).Err(); err != nil {
		return fmt.Errorf("update item %s: %w", id, err)
	}
	return nil
}

// PutUser inserts or replaces a user.
func (s *Redis) PutUser(ctx context.Context, user *model.User) error {
	active := "0"
	if user.Active {
		active = "1"
	}
	err := s.client.HSet(ctx, recordKey(s.cols.Users, user.ID),
		"id", user.ID,
		"email", user.Email,
		"active", active,
		"topic_mask", user.TopicMask,
	).Err()
	if err != nil {
		return fmt.Errorf("save user %s: %w", user.ID, err)
	}
	return s.addToIndex(ctx, s.cols.Users, user.ID)
}

// ListUsers returns all users.
func (s *Redis) ListUsers(ctx context.Context) ([]model.User, error) {
	hashes, err := s.scan(ctx, s.cols.Users)
	if err != nil {
		return nil, fmt.Errorf("scan users: %w", err)
	}

	users := make([]model.User, 0, len(hashes))
	for _, h := range hashes {
		u := model.User{
			ID:     h["id"],
			Email:  h["email"],
			Active: h["active"] == "1",
		}
		if u.TopicMask, err = parseInt(h, "topic_mask"); err != nil {
			return nil, fmt.Errorf("user %s: %w", u.ID, err)
		}
		users = append(users, u)
	}
	return users, nil
}

// ListPushRecords returns all push records.
func (s *Redis) ListPushRecords(ctx context.Context) ([]model.PushRecord, error) {
	hashes, err := s.scan(ctx, s.cols.PushHistory)
	if err != nil {
		return nil, fmt.Errorf("scan push history: %w", err)
	}

	recs := make([]model.PushRecord, 0, len(hashes))
	for _, h := range hashes {
		rec, err := decodePushRecord(h)
		if err != nil {
			return nil, err
		}
		recs = append(recs, *rec)
	}
	return recs, nil
}

// GetPushRecord returns the push record of a user, or ErrNotFound.
func (s *Redis) GetPushRecord(ctx context.Context, userID string) (*model.PushRecord, error) {
	h, err := s.client.HGetAll(ctx, recordKey(s.cols.PushHistory, userID)).Result()
	if err != nil {
		return nil, fmt.Errorf("get push record %s: %w", userID, err)
	}
	if len(h) == 0 {
		return nil, ErrNotFound
	}
	return decodePushRecord(h)
}

// PutPushRecord replaces the push record of a user as a whole.
func (s *Redis) PutPushRecord(ctx context.Context, rec *model.PushRecord) error {
	ids, err := json.Marshal(normalizeIDs(rec.ItemIDs))
	if err != nil {
		return fmt.Errorf("encode pushed ids: %w", err)
	}
	err = s.client.HSet(ctx, recordKey(s.cols.PushHistory, rec.UserID),
		"user_id", rec.UserID,
		"email", rec.Email,
		"count", rec.Count,
		"item_ids", string(ids),
	).Err()
	if err != nil {
		return fmt.Errorf("save push record %s: %w", rec.UserID, err)
	}
	return s.addToIndex(ctx, s.cols.PushHistory, rec.UserID)
}

// addToIndex appends id to the collection's scan order if it is not there yet.
func (s *Redis) addToIndex(ctx context.Context, collection, id string) error {
	seq, err := s.client.Incr(ctx, seqKey(collection)).Result()
	if err != nil {
		return fmt.Errorf("next sequence for %s: %w", collection, err)
	}
	err = s.client.ZAddNX(ctx, indexKey(collection), redis.Z{Score: float64(seq), Member: id}).Err()
	if err != nil {
		return fmt.Errorf("index %s in %s: %w", id, collection, err)
	}
	return nil
}

// scan loads every record hash of a collection in scan order.
func (s *Redis) scan(ctx context.Context, collection string) ([]map[string]string, error) {
	ids, err := s.client.ZRange(ctx, indexKey(collection), 0, -1).Result()
	if err != nil {
		return nil, fmt.Errorf("read index: %w", err)
	}
	if len(ids) == 0 {
		return nil, nil
	}

	cmds := make([]*redis.MapStringStringCmd, len(ids))
	_, err = s.client.Pipelined(ctx, func(pipe redis.Pipeliner) error {
		for i, id := range ids {
			cmds[i] = pipe.HGetAll(ctx, recordKey(collection, id))
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("read records: %w", err)
	}

	hashes := make([]map[string]string, 0, len(ids))
	for _, cmd := range cmds {
		h := cmd.Val()
		// Index entries can outlive records deleted by hand.
		if len(h) == 0 {
			continue
		}
		hashes = append(hashes, h)
	}
	return hashes, nil
}

func decodePushRecord(h map[string]string) (*model.PushRecord, error) {
	rec := model.PushRecord{
		UserID: h["user_id"],
		Email:  h["email"],
	}
	var err error
	if rec.Count, err = parseInt(h, "count"); err != nil {
		return nil, fmt.Errorf("push record %s: %w", rec.UserID, err)
	}
	if raw := h["item_ids"]; raw != "" {
		if err := json.Unmarshal([]byte(raw), &rec.ItemIDs); err != nil {
			return nil, fmt.Errorf("decode pushed ids of %s: %w", rec.UserID, err)
		}
	}
	rec.ItemIDs = normalizeIDs(rec.ItemIDs)
	return &rec, nil
}

// parseInt reads an integer field; a missing field is zero.
func parseInt(h map[string]string, field string) (int64, error) {
	raw, ok := h[field]
	if !ok || raw == "" {
		return 0, nil
	}
	v, err := strconv.ParseInt(raw, 10, 64)
	if err != nil {
		return 0, fmt.Errorf("parse %s %q: %w", field, raw, err)
	}
	return v, nil
}
