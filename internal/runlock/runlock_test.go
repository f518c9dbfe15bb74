package runlock

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
)

func newTestLock(t *testing.T, ttl time.Duration) (*Redis, *miniredis.Miniredis) {
	t.Helper()
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })
	return NewRedis(client, DefaultKey, ttl), mr
}

func TestRedisLockExcludesSecondRun(t *testing.T) {
	ctx := context.Background()
	l, _ := newTestLock(t, time.Minute)

	release, err := l.Acquire(ctx)
	if err != nil {
		t.Fatalf("acquire: %v", err)
	}
	if _, err := l.Acquire(ctx); !errors.Is(err, ErrLocked) {
		t.Fatalf("expected ErrLocked, got %v", err)
	}

	if err := release(ctx); err != nil {
		t.Fatalf("release: %v", err)
	}
	release, err = l.Acquire(ctx)
	if err != nil {
		t.Fatalf("acquire after release: %v", err)
	}
	_ = release(ctx)
}

func TestRedisLockExpires(t *testing.T) {
	ctx := context.Background()
	l, mr := newTestLock(t, time.Minute)

	staleRelease, err := l.Acquire(ctx)
	if err != nil {
		t.Fatalf("acquire: %v", err)
	}
	mr.FastForward(2 * time.Minute)

	release, err := l.Acquire(ctx)
	if err != nil {
		t.Fatalf("acquire after expiry: %v", err)
	}

	// The stale holder must not delete the new holder's lock.
	if err := staleRelease(ctx); err != nil {
		t.Fatalf("stale release: %v", err)
	}
	if !mr.Exists(DefaultKey) {
		t.Fatal("stale release removed the current lock")
	}
	_ = release(ctx)
}

func TestRedisLockRenewsLeaseWhileHeld(t *testing.T) {
	ctx := context.Background()
	ttl := 300 * time.Millisecond
	l, mr := newTestLock(t, ttl)

	release, err := l.Acquire(ctx)
	if err != nil {
		t.Fatalf("acquire: %v", err)
	}

	// Nearly expired; the holder must push the deadline back out.
	mr.SetTTL(DefaultKey, time.Millisecond)
	deadline := time.Now().Add(2 * time.Second)
	for mr.TTL(DefaultKey) != ttl {
		if time.Now().After(deadline) {
			t.Fatalf("lease not renewed, ttl = %v", mr.TTL(DefaultKey))
		}
		time.Sleep(10 * time.Millisecond)
	}
	mr.FastForward(10 * time.Millisecond)
	if _, err := l.Acquire(ctx); !errors.Is(err, ErrLocked) {
		t.Fatalf("expected ErrLocked while renewed lease is held, got %v", err)
	}

	if err := release(ctx); err != nil {
		t.Fatalf("release: %v", err)
	}
	if mr.Exists(DefaultKey) {
		t.Fatal("lock still present after release")
	}
}

func TestRedisLockTokensAreUnique(t *testing.T) {
	ctx := context.Background()
	l, mr := newTestLock(t, time.Minute)

	seen := make(map[string]bool)
	for range 3 {
		release, err := l.Acquire(ctx)
		if err != nil {
			t.Fatalf("acquire: %v", err)
		}
		token, err := mr.Get(DefaultKey)
		if err != nil {
			t.Fatalf("read token: %v", err)
		}
		if seen[token] {
			t.Fatalf("token %q reused", token)
		}
		seen[token] = true
		if err := release(ctx); err != nil {
			t.Fatalf("release: %v", err)
		}
	}
}

func TestNoop(t *testing.T) {
	ctx := context.Background()
	for range 2 {
		release, err := Noop{}.Acquire(ctx)
		if err != nil {
			t.Fatalf("acquire: %v", err)
		}
		if err := release(ctx); err != nil {
			t.Fatalf("release: %v", err)
		}
	}
}
