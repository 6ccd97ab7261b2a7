package sessions

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"

	"gemini-relay/internal/models"
)

func newTestRedisStore(t *testing.T, opts Options) (*RedisStore, *miniredis.Miniredis) {
	t.Helper()
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { client.Close() })
	return NewRedisStore(client, opts), mr
}

func TestRedisStore_AppendAndLoad(t *testing.T) {
	s, _ := newTestRedisStore(t, Options{})
	ctx := context.Background()

	history, err := s.Load(ctx, "a")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(history) != 0 {
		t.Fatalf("expected empty history, got %+v", history)
	}

	if err := s.Append(ctx, "a", models.Turn{Role: models.RoleUser, Text: "ciao"}, models.Turn{Role: models.RoleModel, Text: "salve"}); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	history, err = s.Load(ctx, "a")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(history) != 2 || history[0].Text != "ciao" || history[1].Role != models.RoleModel {
		t.Fatalf("unexpected history: %+v", history)
	}
}

func TestRedisStore_RefreshesExpiry(t *testing.T) {
	s, mr := newTestRedisStore(t, Options{IdleTimeout: time.Minute})
	ctx := context.Background()

	s.Append(ctx, "a", models.Turn{Text: "1"})
	if ttl := mr.TTL(redisKeyPrefix + "a"); ttl != time.Minute {
		t.Fatalf("expected 1m TTL, got %s", ttl)
	}

	mr.FastForward(45 * time.Second)
	s.Append(ctx, "a", models.Turn{Text: "2"})
	if ttl := mr.TTL(redisKeyPrefix + "a"); ttl != time.Minute {
		t.Fatalf("expected TTL refreshed to 1m, got %s", ttl)
	}

	mr.FastForward(2 * time.Minute)
	history, _ := s.Load(ctx, "a")
	if len(history) != 0 {
		t.Fatalf("expected idle session to be gone, got %+v", history)
	}
}

func TestRedisStore_TrimsToMaxTurns(t *testing.T) {
	s, _ := newTestRedisStore(t, Options{MaxTurns: 2})
	ctx := context.Background()

	s.Append(ctx, "a", models.Turn{Text: "1"}, models.Turn{Text: "2"}, models.Turn{Text: "3"})

	history, _ := s.Load(ctx, "a")
	if len(history) != 2 || history[0].Text != "2" {
		t.Fatalf("expected newest two turns, got %+v", history)
	}
}

func TestRedisStore_SkipsMalformedEntries(t *testing.T) {
	s, mr := newTestRedisStore(t, Options{})
	ctx := context.Background()

	mr.RPush(redisKeyPrefix+"a", "not-json")
	s.Append(ctx, "a", models.Turn{Text: "ok"})

	history, err := s.Load(ctx, "a")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(history) != 1 || history[0].Text != "ok" {
		t.Fatalf("expected malformed entry to be skipped, got %+v", history)
	}
}

func TestRedisStore_Delete(t *testing.T) {
	s, mr := newTestRedisStore(t, Options{})
	ctx := context.Background()

	s.Append(ctx, "a", models.Turn{Text: "1"})
	if err := s.Delete(ctx, "a"); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if mr.Exists(redisKeyPrefix + "a") {
		t.Fatalf("expected key to be deleted")
	}
}

func TestRedisStore_ConnectionError(t *testing.T) {
	s, mr := newTestRedisStore(t, Options{})
	mr.Close()

	if _, err := s.Load(context.Background(), "a"); err == nil {
		t.Fatal("expected error when Redis is unavailable")
	}
}
