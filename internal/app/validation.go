package app

import (
	"fmt"
	"strings"

	"github.com/go-playground/validator/v10"

	"quiz-attempt-service/internal/domain"
)

var validate = validator.New()

// QuizDraft is the authored content of a quiz as submitted by its owner.
type QuizDraft struct {
	Title       string            `json:"title" validate:"required,max=100"`
	Description string            `json:"description" validate:"max=500"`
	Topic       string            `json:"topic" validate:"required,max=50"`
	Difficulty  domain.Difficulty `json:"difficulty" validate:"required,oneof=Easy Medium Hard"`
	Questions   []QuestionDraft   `json:"questions" validate:"required,min=1,dive"`
	IsPublic    *bool             `json:"isPublic"`
	TimeLimit   int               `json:"timeLimit" validate:"omitempty,min=1"`
	Tags        []string          `json:"tags"`
}

// QuestionDraft is one authored question. ID is optional and only kept on
// update when it names an existing question.
type QuestionDraft struct {
	ID            string              `json:"id"`
	Text          string              `json:"questionText" validate:"required,max=500"`
	Type          domain.QuestionType `json:"questionType" validate:"required,oneof=MCQ SingleAnswer"`
	Points        int                 `json:"points" validate:"omitempty,min=1"`
	Options       []domain.Option     `json:"options"`
	CorrectAnswer string              `json:"correctAnswer"`
}

// ValidateDraft checks field constraints and then every answer key.
func ValidateDraft(draft QuizDraft) error {
	if err := validate.Struct(draft); err != nil {
		return fmt.Errorf("%w: %v", domain.ErrInvalidInput, err)
	}
	for i, question := range draft.Questions {
		if err := validateAnswerKey(i, question); err != nil {
			return err
		}
	}
	return nil
}

func validateAnswerKey(index int, question QuestionDraft) error {
	switch question.Type {
	case domain.QuestionMCQ:
		hasCorrect := false
		for _, opt := range question.Options {
			if opt.IsCorrect {
				hasCorrect = true
			}
		}
		if !hasCorrect {
			return &domain.ValidationError{QuestionIndex: index, Reason: "must have at least one correct option"}
		}
		seen := make(map[string]struct{}, len(question.Options))
		for _, opt := range question.Options {
			if strings.TrimSpace(opt.Text) == "" {
				return &domain.ValidationError{QuestionIndex: index, Reason: "has empty options"}
			}
			// MCQ grading compares option texts, so they must be distinct.
			if _, dup := seen[opt.Text]; dup {
				return &domain.ValidationError{QuestionIndex: index, Reason: "has duplicate options"}
			}
			seen[opt.Text] = struct{}{}
		}
	case domain.QuestionSingleAnswer:
		if strings.TrimSpace(question.CorrectAnswer) == "" {
			return &domain.ValidationError{QuestionIndex: index, Reason: "must have a correct answer"}
		}
	default:
		return &domain.ValidationError{QuestionIndex: index, Reason: fmt.Sprintf("has unknown type %q", question.Type)}
	}
	return nil
}
