package storage

import (
	"context"
	"errors"
	"testing"

	"github.com/google/go-cmp/cmp"

	"topicpush/internal/model"
)

// runStorageTests exercises the behaviour every Storage implementation shares.
func runStorageTests(t *testing.T, newStore func(t *testing.T) Storage) {
	t.Run("items keep insertion order", func(t *testing.T) {
		ctx := context.Background()
		s := newStore(t)

		items := []model.Item{
			{ID: "zeta", URL: "https://v.example.com/zeta", Topics: map[string]bool{"jumping": true}, AddedEpoch: 100},
			{ID: "alpha", URL: "https://v.example.com/alpha", Topics: map[string]bool{"tech": true, "maint": false}, AddedEpoch: 200},
			{ID: "mid", URL: "https://v.example.com/mid", AddedEpoch: 300, AddedStr: "1970-01-01 00:05:00", TopicMask: 8},
		}
		for i := range items {
			created, err := s.AddItem(ctx, &items[i])
			if err != nil {
				t.Fatalf("add item %s: %v", items[i].ID, err)
			}
			if !created {
				t.Fatalf("item %s was not created", items[i].ID)
			}
		}

		got, err := s.ListItems(ctx)
		if err != nil {
			t.Fatalf("list items: %v", err)
		}
		if diff := cmp.Diff(items, got); diff != "" {
			t.Errorf("ListItems mismatch (-want +got):\n%s", diff)
		}
	})

	t.Run("add item is insert-if-absent", func(t *testing.T) {
		ctx := context.Background()
		s := newStore(t)

		first := model.Item{ID: "a", URL: "https://one", AddedEpoch: 1}
		if _, err := s.AddItem(ctx, &first); err != nil {
			t.Fatalf("add: %v", err)
		}
		again := model.Item{ID: "a", URL: "https://two", AddedEpoch: 2}
		created, err := s.AddItem(ctx, &again)
		if err != nil {
			t.Fatalf("add again: %v", err)
		}
		if created {
			t.Error("expected duplicate add to report not created")
		}

		got, err := s.ListItems(ctx)
		if err != nil {
			t.Fatalf("list: %v", err)
		}
		if diff := cmp.Diff([]model.Item{first}, got); diff != "" {
			t.Errorf("ListItems mismatch (-want +got):\n%s", diff)
		}
	})

	t.Run("update derived fields", func(t *testing.T) {
		ctx := context.Background()
		s := newStore(t)

		item := model.Item{ID: "a", URL: "https://a", Topics: map[string]bool{"jumping": true}, AddedEpoch: 60}
		if _, err := s.AddItem(ctx, &item); err != nil {
			t.Fatalf("add: %v", err)
		}
		if err := s.UpdateItemDerived(ctx, "a", "1970-01-01 00:01:00", 1); err != nil {
			t.Fatalf("update: %v", err)
		}

		got, err := s.ListItems(ctx)
		if err != nil {
			t.Fatalf("list: %v", err)
		}
		want := []model.Item{{
			ID: "a", URL: "https://a", Topics: map[string]bool{"jumping": true}, AddedEpoch: 60,
			AddedStr: "1970-01-01 00:01:00", TopicMask: 1,
		}}
		if diff := cmp.Diff(want, got); diff != "" {
			t.Errorf("ListItems mismatch (-want +got):\n%s", diff)
		}

		err = s.UpdateItemDerived(ctx, "missing", "x", 1)
		if !errors.Is(err, ErrNotFound) {
			t.Errorf("expected ErrNotFound for missing item, got %v", err)
		}
	})

	t.Run("users upsert in place", func(t *testing.T) {
		ctx := context.Background()
		s := newStore(t)

		users := []model.User{
			{ID: "u2", Email: "two@example.com", Active: true, TopicMask: 5},
			{ID: "u1", Email: "one@example.com", Active: false, TopicMask: 0},
		}
		for i := range users {
			if err := s.PutUser(ctx, &users[i]); err != nil {
				t.Fatalf("put user: %v", err)
			}
		}
		users[0].Email = "changed@example.com"
		if err := s.PutUser(ctx, &users[0]); err != nil {
			t.Fatalf("put user again: %v", err)
		}

		got, err := s.ListUsers(ctx)
		if err != nil {
			t.Fatalf("list users: %v", err)
		}
		if diff := cmp.Diff(users, got); diff != "" {
			t.Errorf("ListUsers mismatch (-want +got):\n%s", diff)
		}
	})

	t.Run("push records", func(t *testing.T) {
		ctx := context.Background()
		s := newStore(t)

		if _, err := s.GetPushRecord(ctx, "u1"); !errors.Is(err, ErrNotFound) {
			t.Fatalf("expected ErrNotFound, got %v", err)
		}

		rec := model.PushRecord{UserID: "u1", Email: "one@example.com", Count: 1, ItemIDs: []string{"b"}}
		if err := s.PutPushRecord(ctx, &rec); err != nil {
			t.Fatalf("put: %v", err)
		}
		other := model.PushRecord{UserID: "u0", Email: "zero@example.com", Count: 1, ItemIDs: []string{"a"}}
		if err := s.PutPushRecord(ctx, &other); err != nil {
			t.Fatalf("put other: %v", err)
		}

		rec = model.PushRecord{UserID: "u1", Email: "new@example.com", Count: 2, ItemIDs: []string{"c", "b"}}
		if err := s.PutPushRecord(ctx, &rec); err != nil {
			t.Fatalf("put update: %v", err)
		}

		got, err := s.GetPushRecord(ctx, "u1")
		if err != nil {
			t.Fatalf("get: %v", err)
		}
		want := &model.PushRecord{UserID: "u1", Email: "new@example.com", Count: 2, ItemIDs: []string{"b", "c"}}
		if diff := cmp.Diff(want, got); diff != "" {
			t.Errorf("GetPushRecord mismatch (-want +got):\n%s", diff)
		}

		all, err := s.ListPushRecords(ctx)
		if err != nil {
			t.Fatalf("list: %v", err)
		}
		wantAll := []model.PushRecord{*want, other}
		if diff := cmp.Diff(wantAll, all); diff != "" {
			t.Errorf("ListPushRecords mismatch (-want +got):\n%s", diff)
		}
	})

	t.Run("empty collections", func(t *testing.T) {
		ctx := context.Background()
		s := newStore(t)

		items, err := s.ListItems(ctx)
		if err != nil {
			t.Fatalf("list items: %v", err)
		}
		users, err := s.ListUsers(ctx)
		if err != nil {
			t.Fatalf("list users: %v", err)
		}
		recs, err := s.ListPushRecords(ctx)
		if err != nil {
			t.Fatalf("list push records: %v", err)
		}
		if len(items)+len(users)+len(recs) != 0 {
			t.Errorf("expected empty store, got %d items, %d users, %d records", len(items), len(users), len(recs))
		}
	})
}
