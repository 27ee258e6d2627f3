package redis

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
)

func setupTestLock(t *testing.T) (*Lock, *Lock, func()) {
	mr, err := miniredis.Run()
	if err != nil {
		t.Fatalf("failed to start miniredis: %v", err)
	}

	client := redis.NewClient(&redis.Options{
		Addr: mr.Addr(),
	})

	return NewLock(client), NewLock(client), func() {
		client.Close()
		mr.Close()
	}
}

func TestLock_AcquireRelease(t *testing.T) {
	lock, other, cleanup := setupTestLock(t)
	defer cleanup()
	ctx := context.Background()

	acquired, err := lock.Acquire(ctx, "index:idx-1", time.Minute)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !acquired {
		t.Fatal("expected lock acquired")
	}

	// Another instance cannot take the same lock.
	acquired, err = other.Acquire(ctx, "index:idx-1", time.Minute)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if acquired {
		t.Fatal("expected lock to be held")
	}

	if err := lock.Release(ctx, "index:idx-1"); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	acquired, err = other.Acquire(ctx, "index:idx-1", time.Minute)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !acquired {
		t.Fatal("expected lock available after release")
	}
}

func TestLock_ReleaseByNonOwnerIsNoop(t *testing.T) {
	lock, other, cleanup := setupTestLock(t)
	defer cleanup()
	ctx := context.Background()

	if _, err := lock.Acquire(ctx, "index:idx-1", time.Minute); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	// A different owner releasing must not free the lock.
	if err := other.Release(ctx, "index:idx-1"); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	acquired, err := other.Acquire(ctx, "index:idx-1", time.Minute)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if acquired {
		t.Fatal("lock was released by a non-owner")
	}
}

func TestLock_Extend(t *testing.T) {
	lock, other, cleanup := setupTestLock(t)
	defer cleanup()
	ctx := context.Background()

	if _, err := lock.Acquire(ctx, "index:idx-1", time.Minute); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if err := lock.Extend(ctx, "index:idx-1", 2*time.Minute); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	// Extending a lock held by someone else fails.
	if err := other.Extend(ctx, "index:idx-1", time.Minute); err == nil {
		t.Fatal("expected extend by non-owner to fail")
	}
}
