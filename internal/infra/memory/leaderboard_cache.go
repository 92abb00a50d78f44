package memory

import (
	"context"
	"sync"
	"time"

	"quiz-attempt-service/internal/domain"
)

// LeaderboardCache is an in-memory implementation of app.LeaderboardCache.
type LeaderboardCache struct {
	ttl   time.Duration
	clock func() time.Time

	mu      sync.RWMutex
	entries map[int]cachedBoard
}

type cachedBoard struct {
	rows      []domain.UserSummary
	expiresAt time.Time
}

func NewLeaderboardCache(ttl time.Duration) *LeaderboardCache {
	return &LeaderboardCache{
		ttl:     ttl,
		clock:   time.Now,
		entries: make(map[int]cachedBoard),
	}
}

func (c *LeaderboardCache) GetGlobal(_ context.Context, limit int) ([]domain.UserSummary, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	entry, ok := c.entries[limit]
	if !ok || !entry.expiresAt.After(c.clock()) {
		return nil, false
	}
	return append([]domain.UserSummary(nil), entry.rows...), true
}

func (c *LeaderboardCache) SetGlobal(_ context.Context, limit int, rows []domain.UserSummary) {
	if c.ttl <= 0 {
		return
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	c.entries[limit] = cachedBoard{
		rows:      append([]domain.UserSummary(nil), rows...),
		expiresAt: c.clock().Add(c.ttl),
	}
}

func (c *LeaderboardCache) Invalidate(context.Context) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.entries = make(map[int]cachedBoard)
}
