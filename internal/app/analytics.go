package app

import "quiz-attempt-service/internal/domain"

// BuildQuizStats derives the creator-facing report from a quiz and its
// completed attempts. Answers are matched to questions by question id so the
// report survives question reordering.
func BuildQuizStats(quiz domain.Quiz, attempts []domain.Attempt) domain.QuizStats {
	stats := domain.QuizStats{
		QuizID:        quiz.ID,
		Title:         quiz.Title,
		Topic:         quiz.Topic,
		Difficulty:    quiz.Difficulty,
		RatingCount:   quiz.RatingCount,
		AverageRating: quiz.AverageRating(),
		Questions:     make([]domain.QuestionStats, len(quiz.Questions)),
	}

	index := make(map[string]int, len(quiz.Questions))
	for i, question := range quiz.Questions {
		index[question.ID] = i
		stats.Questions[i] = domain.QuestionStats{
			QuestionID: question.ID,
			Index:      i,
			Text:       question.Text,
			Points:     question.Points,
		}
	}

	var sum, timeSum float64
	for _, attempt := range attempts {
		if attempt.Status != domain.AttemptCompleted {
			continue
		}
		if stats.TotalAttempts == 0 || attempt.Percentage > stats.HighestScore {
			stats.HighestScore = attempt.Percentage
		}
		if stats.TotalAttempts == 0 || attempt.Percentage < stats.LowestScore {
			stats.LowestScore = attempt.Percentage
		}
		stats.TotalAttempts++
		sum += attempt.Percentage
		timeSum += float64(attempt.TimeTaken)

		for _, answer := range attempt.Answers {
			if !answer.IsCorrect {
				continue
			}
			if i, ok := index[answer.QuestionID]; ok {
				stats.Questions[i].TimesCorrect++
			}
		}
	}

	if stats.TotalAttempts > 0 {
		n := float64(stats.TotalAttempts)
		stats.AverageScore = sum / n
		stats.AverageTimeTaken = timeSum / n
		for i := range stats.Questions {
			stats.Questions[i].Accuracy = float64(stats.Questions[i].TimesCorrect) / n
		}
	}
	return stats
}
