package redis

import (
	"context"
	"testing"
	"time"
)

func TestRateLimitStoreSlidingWindow(t *testing.T) {
	_, client := newTestClient(t)
	store := NewRateLimitStore(client, RateLimitConfig{TTL: time.Minute})
	ctx := context.Background()
	base := time.Now().UTC()

	for i := 0; i < 5; i++ {
		if err := store.RecordAttempt(ctx, "10.0.0.1", base.Add(time.Duration(i)*time.Second)); err != nil {
			t.Fatalf("RecordAttempt: %v", err)
		}
	}

	count, err := store.CountAttempts(ctx, "10.0.0.1", 10*time.Second, base.Add(4*time.Second))
	if err != nil {
		t.Fatalf("CountAttempts: %v", err)
	}
	if count != 5 {
		t.Errorf("count = %d, want 5", count)
	}

	// A window ending later only sees the attempts inside it.
	count, err = store.CountAttempts(ctx, "10.0.0.1", 3*time.Second, base.Add(4*time.Second))
	if err != nil {
		t.Fatalf("CountAttempts: %v", err)
	}
	if count != 4 {
		t.Errorf("narrow window count = %d, want 4", count)
	}
}

func TestRateLimitStoreTrimAndOldest(t *testing.T) {
	_, client := newTestClient(t)
	store := NewRateLimitStore(client, RateLimitConfig{})
	ctx := context.Background()
	base := time.Now().UTC()

	for i := 0; i < 3; i++ {
		if err := store.RecordAttempt(ctx, "10.0.0.2", base.Add(time.Duration(i)*time.Minute)); err != nil {
			t.Fatalf("RecordAttempt: %v", err)
		}
	}

	reference := base.Add(2 * time.Minute)
	if err := store.TrimWindow(ctx, "10.0.0.2", 90*time.Second, reference); err != nil {
		t.Fatalf("TrimWindow: %v", err)
	}

	oldest, ok, err := store.OldestAttempt(ctx, "10.0.0.2", 90*time.Second, reference)
	if err != nil {
		t.Fatalf("OldestAttempt: %v", err)
	}
	if !ok {
		t.Fatal("expected a remaining attempt")
	}
	if want := base.Add(time.Minute); !oldest.Equal(want) {
		t.Errorf("oldest = %v, want %v", oldest, want)
	}

	if _, ok, _ := store.OldestAttempt(ctx, "10.0.0.9", time.Minute, reference); ok {
		t.Error("unknown identifier should have no attempts")
	}
}
