package storage

import (
	"context"
	"testing"

	"github.com/alicebob/miniredis/v2"
	"github.com/google/go-cmp/cmp"
	"github.com/redis/go-redis/v9"

	"topicpush/internal/model"
)

func newTestRedis(t *testing.T, cols Collections) (*Redis, *miniredis.Miniredis) {
	t.Helper()
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	s := NewRedis(client, cols)
	t.Cleanup(func() { _ = s.Close() })
	return s, mr
}

func TestRedis(t *testing.T) {
	runStorageTests(t, func(t *testing.T) Storage {
		s, _ := newTestRedis(t, DefaultCollections())
		return s
	})
}

func TestRedisUsesCollectionNames(t *testing.T) {
	ctx := context.Background()
	cols := Collections{Items: "mtb-articles", Users: "mtb-users", PushHistory: "mtb-pushed"}
	s, mr := newTestRedis(t, cols)

	if _, err := s.AddItem(ctx, &model.Item{ID: "a"}); err != nil {
		t.Fatalf("add item: %v", err)
	}
	if err := s.PutUser(ctx, &model.User{ID: "u"}); err != nil {
		t.Fatalf("put user: %v", err)
	}
	if err := s.PutPushRecord(ctx, &model.PushRecord{UserID: "u", Count: 1, ItemIDs: []string{"a"}}); err != nil {
		t.Fatalf("put push record: %v", err)
	}

	for _, key := range []string{"mtb-articles:rec:a", "mtb-users:rec:u", "mtb-pushed:rec:u"} {
		if !mr.Exists(key) {
			t.Errorf("expected key %q to exist", key)
		}
	}
}

func TestRedisSkipsDanglingIndexEntries(t *testing.T) {
	ctx := context.Background()
	s, mr := newTestRedis(t, DefaultCollections())

	for _, u := range []model.User{{ID: "u1", Active: true}, {ID: "u2", Active: true}} {
		if err := s.PutUser(ctx, &u); err != nil {
			t.Fatalf("put user: %v", err)
		}
	}
	mr.Del(recordKey("users", "u1"))

	got, err := s.ListUsers(ctx)
	if err != nil {
		t.Fatalf("list users: %v", err)
	}
	want := []model.User{{ID: "u2", Active: true}}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Errorf("ListUsers mismatch (-want +got):\n%s", diff)
	}
}

func TestRedisAddItemRecoversFromPartialWrite(t *testing.T) {
	ctx := context.Background()
	item := model.Item{ID: "a", URL: "https://v.example.com/a", AddedEpoch: 7, Topics: map[string]bool{"tech": true}}

	tests := []struct {
		name  string
		setup func(mr *miniredis.Miniredis)
	}{
		{
			name: "hash without index entry",
			setup: func(mr *miniredis.Miniredis) {
				mr.HSet(recordKey("items", "a"), "id", "a")
			},
		},
		{
			name: "index entry without hash",
			setup: func(mr *miniredis.Miniredis) {
				_, _ = mr.ZAdd(indexKey("items"), 1, "a")
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s, mr := newTestRedis(t, DefaultCollections())
			tt.setup(mr)

			created, err := s.AddItem(ctx, &item)
			if err != nil {
				t.Fatalf("add item: %v", err)
			}
			if !created {
				t.Fatal("expected partial record to be replaced")
			}

			got, err := s.ListItems(ctx)
			if err != nil {
				t.Fatalf("list items: %v", err)
			}
			if diff := cmp.Diff([]model.Item{item}, got); diff != "" {
				t.Errorf("ListItems mismatch (-want +got):\n%s", diff)
			}
		})
	}
}

func TestRedisAddItemFailureIsRetryable(t *testing.T) {
	ctx := context.Background()
	s, mr := newTestRedis(t, DefaultCollections())
	item := model.Item{ID: "a", URL: "https://v.example.com/a", Topics: map[string]bool{}}

	// A non-sorted-set value makes the index write fail.
	if err := mr.Set(indexKey("items"), "oops"); err != nil {
		t.Fatalf("set: %v", err)
	}
	if _, err := s.AddItem(ctx, &item); err == nil {
		t.Fatal("expected error when index write fails")
	}

	mr.Del(indexKey("items"))
	created, err := s.AddItem(ctx, &item)
	if err != nil {
		t.Fatalf("retry add item: %v", err)
	}
	if !created {
		t.Fatal("retry after failed write reported the item as existing")
	}
	got, err := s.ListItems(ctx)
	if err != nil {
		t.Fatalf("list items: %v", err)
	}
	if diff := cmp.Diff([]model.Item{item}, got); diff != "" {
		t.Errorf("ListItems mismatch (-want +got):\n%s", diff)
	}
}

// Ensure the Storage interface is satisfied.
var _ Storage = (*Redis)(nil)
