package app

import (
	"sort"

	"quiz-attempt-service/internal/domain"
)

const (
	DefaultQuizLeaderboardLimit   = 10
	DefaultGlobalLeaderboardLimit = 20
	// MaxLeaderboardLimit caps caller-supplied limits.
	MaxLeaderboardLimit = 100
)

// LeaderboardWeights is the tunable blend behind the global leaderboard score.
type LeaderboardWeights struct {
	Created      float64 `yaml:"created"`
	Attempted    float64 `yaml:"attempted"`
	AverageScore float64 `yaml:"averageScore"`
	TotalPoints  float64 `yaml:"totalPoints"`
}

// DefaultLeaderboardWeights favours creating content over consuming it.
func DefaultLeaderboardWeights() LeaderboardWeights {
	return LeaderboardWeights{
		Created:      5,
		Attempted:    2,
		AverageScore: 0.1,
		TotalPoints:  0.01,
	}
}

// Score computes a user's leaderboard score.
func (w LeaderboardWeights) Score(stats domain.UserStats) float64 {
	return float64(stats.TotalQuizzesCreated)*w.Created +
		float64(stats.TotalQuizzesAttempted)*w.Attempted +
		stats.AverageScore*w.AverageScore +
		float64(stats.TotalPoints)*w.TotalPoints
}

// RankingPolicy bundles the leaderboard limits and weights.
type RankingPolicy struct {
	QuizLimit   int
	GlobalLimit int
	Weights     LeaderboardWeights
}

// DefaultRankingPolicy returns the stock limits and weights.
func DefaultRankingPolicy() RankingPolicy {
	return RankingPolicy{
		QuizLimit:   DefaultQuizLeaderboardLimit,
		GlobalLimit: DefaultGlobalLeaderboardLimit,
		Weights:     DefaultLeaderboardWeights(),
	}
}

// RankAttempts orders completed attempts by score desc, then faster time,
// then earlier completion, then id, and truncates to limit.
func RankAttempts(attempts []domain.Attempt, limit int) []domain.Attempt {
	if limit <= 0 {
		limit = DefaultQuizLeaderboardLimit
	}
	ranked := make([]domain.Attempt, 0, len(attempts))
	for _, attempt := range attempts {
		if attempt.Status == domain.AttemptCompleted {
			ranked = append(ranked, attempt)
		}
	}

	sort.SliceStable(ranked, func(i, j int) bool {
		a, b := ranked[i], ranked[j]
		if a.Score != b.Score {
			return a.Score > b.Score
		}
		if a.TimeTaken != b.TimeTaken {
			return a.TimeTaken < b.TimeTaken
		}
		if at, bt := completedAt(a), completedAt(b); at != bt {
			return at < bt
		}
		return a.ID < b.ID
	})

	if len(ranked) > limit {
		ranked = ranked[:limit]
	}
	return ranked
}

func completedAt(a domain.Attempt) int64 {
	if a.CompletedAt == nil {
		return 0
	}
	return a.CompletedAt.UnixNano()
}

// RankUsers orders users by weighted leaderboard score desc, then user id,
// and truncates to limit.
func RankUsers(users []domain.User, weights LeaderboardWeights, limit int) []domain.UserSummary {
	if limit <= 0 {
		limit = DefaultGlobalLeaderboardLimit
	}
	summaries := make([]domain.UserSummary, 0, len(users))
	for _, user := range users {
		summaries = append(summaries, Summarize(user, weights))
	}

	sort.Slice(summaries, func(i, j int) bool {
		if summaries[i].LeaderboardScore != summaries[j].LeaderboardScore {
			return summaries[i].LeaderboardScore > summaries[j].LeaderboardScore
		}
		return summaries[i].UserID < summaries[j].UserID
	})

	if len(summaries) > limit {
		summaries = summaries[:limit]
	}
	return summaries
}

// Summarize projects a user onto a global leaderboard row.
func Summarize(user domain.User, weights LeaderboardWeights) domain.UserSummary {
	return domain.UserSummary{
		UserID:                user.ID,
		Username:              user.Username,
		TotalQuizzesCreated:   user.Stats.TotalQuizzesCreated,
		TotalQuizzesAttempted: user.Stats.TotalQuizzesAttempted,
		AverageScore:          user.Stats.AverageScore,
		TotalPoints:           user.Stats.TotalPoints,
		LeaderboardScore:      weights.Score(user.Stats),
	}
}
