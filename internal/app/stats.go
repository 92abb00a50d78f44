package app

import "quiz-attempt-service/internal/domain"

// FoldAttempt adds one completed attempt to the quiz counters. The derived
// average equals (avg_old*n + p)/(n+1); stores must apply this as a single
// atomic update.
func FoldAttempt(quiz domain.Quiz, percentage float64) domain.Quiz {
	quiz.TotalAttempts++
	quiz.PercentageSum += percentage
	return quiz
}

// MeanPercentage averages the percentage of every completed attempt.
func MeanPercentage(attempts []domain.Attempt) float64 {
	count := 0
	sum := 0.0
	for _, attempt := range attempts {
		if attempt.Status != domain.AttemptCompleted {
			continue
		}
		count++
		sum += attempt.Percentage
	}
	if count == 0 {
		return 0
	}
	return sum / float64(count)
}

// ApplyCompletion folds a completed attempt's score into a user's stats.
// The average is recomputed from the full set of that user's completed
// attempts, which must already include the new one.
func ApplyCompletion(stats domain.UserStats, score int, completed []domain.Attempt) domain.UserStats {
	stats.TotalQuizzesAttempted++
	stats.TotalPoints += score
	stats.AverageScore = MeanPercentage(completed)
	return stats
}
