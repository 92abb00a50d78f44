package app

import (
	"strings"

	"quiz-attempt-service/internal/domain"
)

// GradeResult is the outcome of grading one submission.
type GradeResult struct {
	Answers []domain.AnswerRecord
	Score   int
}

// Grade scores answers against questions, aligned by index. A position that
// has no counterpart on the other side is recorded as incorrect with zero
// points; grading never fails.
func Grade(questions []domain.Question, answers []domain.SubmittedAnswer) GradeResult {
	n := len(questions)
	if len(answers) > n {
		n = len(answers)
	}

	result := GradeResult{Answers: make([]domain.AnswerRecord, 0, n)}
	for i := 0; i < n; i++ {
		var record domain.AnswerRecord
		if i < len(answers) {
			record.SelectedOptions = answers[i].SelectedOptions
			record.Answer = answers[i].Answer
		}
		if i < len(questions) && i < len(answers) {
			question := questions[i]
			record.QuestionID = question.ID
			record.IsCorrect = isCorrect(question, answers[i])
			if record.IsCorrect {
				record.PointsEarned = question.Points
			}
		} else if i < len(questions) {
			record.QuestionID = questions[i].ID
		}
		result.Score += record.PointsEarned
		result.Answers = append(result.Answers, record)
	}
	return result
}

func isCorrect(question domain.Question, answer domain.SubmittedAnswer) bool {
	switch question.Type {
	case domain.QuestionMCQ:
		return sameOptionSet(correctOptionTexts(question), answer.SelectedOptions)
	case domain.QuestionSingleAnswer:
		return normalizeAnswer(question.CorrectAnswer) == normalizeAnswer(answer.Answer)
	default:
		return false
	}
}

func correctOptionTexts(question domain.Question) map[string]struct{} {
	set := make(map[string]struct{}, len(question.Options))
	for _, opt := range question.Options {
		if opt.IsCorrect {
			set[opt.Text] = struct{}{}
		}
	}
	return set
}

// sameOptionSet compares by option text; duplicate selections collapse.
func sameOptionSet(correct map[string]struct{}, selected []string) bool {
	if len(correct) == 0 {
		return false
	}
	chosen := make(map[string]struct{}, len(selected))
	for _, text := range selected {
		chosen[text] = struct{}{}
	}
	if len(chosen) != len(correct) {
		return false
	}
	for text := range correct {
		if _, ok := chosen[text]; !ok {
			return false
		}
	}
	return true
}

func normalizeAnswer(s string) string {
	return strings.ToLower(strings.TrimSpace(s))
}

// Percentage expresses score against the attempt's snapshot of the maximum.
func Percentage(score, totalPoints int) float64 {
	if totalPoints <= 0 {
		return 0
	}
	return float64(score) / float64(totalPoints) * 100
}

// ResolveSelectedIndices maps positional option indices to option texts for
// the question at the same position. Out-of-range indices are dropped so the
// question grades as incorrect instead of failing the submission.
func ResolveSelectedIndices(questions []domain.Question, position int, indices []int) []string {
	if position < 0 || position >= len(questions) {
		return nil
	}
	options := questions[position].Options
	texts := make([]string, 0, len(indices))
	for _, idx := range indices {
		if idx < 0 || idx >= len(options) {
			continue
		}
		texts = append(texts, options[idx].Text)
	}
	return texts
}
