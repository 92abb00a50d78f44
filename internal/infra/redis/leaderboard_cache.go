package redis

import (
	"context"
	"encoding/json"
	"strconv"
	"time"

	"github.com/golang/glog"
	"github.com/redis/go-redis/v9"

	"quiz-attempt-service/internal/domain"
)

const globalLeaderboardKey = "leaderboard:global"

// LeaderboardCache keeps computed global leaderboards in a single Redis hash,
// one field per requested limit, so that any instance can drop all of them
// with one DEL. Redis errors degrade to a cache miss.
type LeaderboardCache struct {
	client *redis.Client
	ttl    time.Duration
}

func NewLeaderboardCache(client *redis.Client, ttl time.Duration) *LeaderboardCache {
	return &LeaderboardCache{client: client, ttl: ttl}
}

func (c *LeaderboardCache) GetGlobal(ctx context.Context, limit int) ([]domain.UserSummary, bool) {
	raw, err := c.client.HGet(ctx, globalLeaderboardKey, strconv.Itoa(limit)).Bytes()
	if err != nil {
		return nil, false
	}
	var rows []domain.UserSummary
	if err := json.Unmarshal(raw, &rows); err != nil {
		return nil, false
	}
	return rows, true
}

func (c *LeaderboardCache) SetGlobal(ctx context.Context, limit int, rows []domain.UserSummary) {
	if c.ttl <= 0 {
		return
	}
	payload, err := json.Marshal(rows)
	if err != nil {
		return
	}
	pipe := c.client.TxPipeline()
	pipe.HSet(ctx, globalLeaderboardKey, strconv.Itoa(limit), payload)
	pipe.Expire(ctx, globalLeaderboardKey, c.ttl)
	if _, err := pipe.Exec(ctx); err != nil {
		glog.Warningf("cache global leaderboard: %v", err)
	}
}

func (c *LeaderboardCache) Invalidate(ctx context.Context) {
	if err := c.client.Del(ctx, globalLeaderboardKey).Err(); err != nil {
		glog.Warningf("invalidate global leaderboard: %v", err)
	}
}
