package redis

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	goredis "github.com/redis/go-redis/v9"
)

func TestIncrementWindowStartsAndExpires(t *testing.T) {
	mr := miniredis.RunT(t)
	client := goredis.NewClient(&goredis.Options{Addr: mr.Addr()})
	defer func() { _ = client.Close() }()

	repo := NewWindowRepo(client)
	ctx := context.Background()

	count, ttl, err := repo.IncrementWindow(ctx, "w:1", 10*time.Second)
	if err != nil {
		t.Fatalf("first increment: %v", err)
	}
	if count != 1 || ttl != 10*time.Second {
		t.Fatalf("unexpected first window state: count=%d ttl=%s", count, ttl)
	}

	count, ttl, err = repo.IncrementWindow(ctx, "w:1", 10*time.Second)
	if err != nil {
		t.Fatalf("second increment: %v", err)
	}
	if count != 2 || ttl <= 0 {
		t.Fatalf("unexpected second window state: count=%d ttl=%s", count, ttl)
	}

	mr.FastForward(11 * time.Second)

	count, ttl, err = repo.WindowState(ctx, "w:1")
	if err != nil {
		t.Fatalf("window state: %v", err)
	}
	if count != 0 || ttl != 0 {
		t.Fatalf("expected expired window, got count=%d ttl=%s", count, ttl)
	}
}

func TestIncrementWindowRejectsBadInput(t *testing.T) {
	repo := NewWindowRepo(nil)
	if _, _, err := repo.IncrementWindow(context.Background(), "w", time.Second); err == nil {
		t.Fatalf("expected error for nil client")
	}

	mr := miniredis.RunT(t)
	client := goredis.NewClient(&goredis.Options{Addr: mr.Addr()})
	defer func() { _ = client.Close() }()

	repo = NewWindowRepo(client)
	if _, _, err := repo.IncrementWindow(context.Background(), "", time.Second); err == nil {
		t.Fatalf("expected error for empty key")
	}
	if _, _, err := repo.IncrementWindow(context.Background(), "w", 0); err == nil {
		t.Fatalf("expected error for zero window")
	}
}

func TestNewClientPingsServer(t *testing.T) {
	mr := miniredis.RunT(t)

	client, err := NewClient(context.Background(), mr.Addr(), "", 0)
	if err != nil {
		t.Fatalf("new client: %v", err)
	}
	_ = client.Close()

	if _, err := NewClient(context.Background(), "", "", 0); err == nil {
		t.Fatalf("expected error for empty addr")
	}
}
