package app

import (
	"sync"

	"quiz-attempt-service/internal/domain"
)

// LeaderboardFeed fans out quiz leaderboard snapshots to live subscribers.
type LeaderboardFeed struct {
	mu     sync.Mutex
	topics map[string]map[chan domain.QuizLeaderboard]struct{}
}

func NewLeaderboardFeed() *LeaderboardFeed {
	return &LeaderboardFeed{topics: make(map[string]map[chan domain.QuizLeaderboard]struct{})}
}

// Subscribe registers a subscriber for quizID and delivers initial first.
// The caller must invoke the returned cancel function to avoid leaks.
func (f *LeaderboardFeed) Subscribe(quizID string, initial domain.QuizLeaderboard) (<-chan domain.QuizLeaderboard, func()) {
	ch := make(chan domain.QuizLeaderboard, 8)
	ch <- initial

	f.mu.Lock()
	subs, ok := f.topics[quizID]
	if !ok {
		subs = make(map[chan domain.QuizLeaderboard]struct{})
		f.topics[quizID] = subs
	}
	subs[ch] = struct{}{}
	f.mu.Unlock()

	cancel := func() {
		f.mu.Lock()
		defer f.mu.Unlock()
		subs, ok := f.topics[quizID]
		if !ok {
			return
		}
		if _, ok := subs[ch]; ok {
			delete(subs, ch)
			close(ch)
		}
		if len(subs) == 0 {
			delete(f.topics, quizID)
		}
	}
	return ch, cancel
}

// Publish delivers lb to every subscriber of its quiz. A full subscriber
// buffer loses its oldest snapshot rather than blocking the publisher.
func (f *LeaderboardFeed) Publish(lb domain.QuizLeaderboard) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for ch := range f.topics[lb.QuizID] {
		select {
		case ch <- lb:
		default:
			select {
			case <-ch:
			default:
			}
			ch <- lb
		}
	}
}

// Subscribers reports how many live subscribers quizID has.
func (f *LeaderboardFeed) Subscribers(quizID string) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.topics[quizID])
}
