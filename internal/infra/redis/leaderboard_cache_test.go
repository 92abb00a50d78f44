package redis

import (
	"context"
	"testing"
	"time"

	miniredis "github.com/alicebob/miniredis/v2"

	"quiz-attempt-service/internal/domain"
)

func TestLeaderboardCacheSetsAndClearsKeys(t *testing.T) {
	mr, err := miniredis.Run()
	if err != nil {
		t.Fatalf("run miniredis: %v", err)
	}
	defer mr.Close()

	cache := NewLeaderboardCache(newClient(mr), time.Minute)
	ctx := context.Background()

	if _, ok := cache.GetGlobal(ctx, 20); ok {
		t.Fatalf("expected miss on empty cache")
	}

	cache.SetGlobal(ctx, 20, []domain.UserSummary{{UserID: "u1", Username: "alice", LeaderboardScore: 7.5}})
	if !mr.Exists(globalLeaderboardKey) {
		t.Fatalf("expected redis key to be set")
	}
	rows, ok := cache.GetGlobal(ctx, 20)
	if !ok || len(rows) != 1 || rows[0].LeaderboardScore != 7.5 {
		t.Fatalf("unexpected cached rows: %v %v", rows, ok)
	}

	cache.Invalidate(ctx)
	if mr.Exists(globalLeaderboardKey) {
		t.Fatalf("expected redis key to be removed")
	}
}

func TestLeaderboardCacheExpires(t *testing.T) {
	mr, err := miniredis.Run()
	if err != nil {
		t.Fatalf("run miniredis: %v", err)
	}
	defer mr.Close()

	cache := NewLeaderboardCache(newClient(mr), time.Minute)
	ctx := context.Background()
	cache.SetGlobal(ctx, 5, []domain.UserSummary{{UserID: "u1"}})

	mr.FastForward(2 * time.Minute)
	if _, ok := cache.GetGlobal(ctx, 5); ok {
		t.Fatalf("expected entry to expire")
	}
}
