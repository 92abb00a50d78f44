package app

import (
	"context"
	"crypto/rand"
	"errors"
	"fmt"
	"math/big"
	"time"

	"github.com/golang/glog"
	"github.com/google/uuid"

	"quiz-attempt-service/internal/domain"
)

const (
	accessCodeLength   = 8
	accessCodeAlphabet = "ABCDEFGHIJKLMNOPQRSTUVWXYZ0123456789"
	accessCodeRetries  = 5

	minRating        = 1
	maxRating        = 5
	maxRatingComment = 500
)

// QuizService contains the quiz authoring use cases.
type QuizService struct {
	quizzes  QuizRepository
	attempts AttemptRepository
	users    UserRepository
	boards   LeaderboardCache
	access   AccessChecker
	now      func() time.Time
}

func NewQuizService(quizzes QuizRepository, attempts AttemptRepository, users UserRepository, boards LeaderboardCache) *QuizService {
	if boards == nil {
		boards = noopLeaderboardCache{}
	}
	return &QuizService{
		quizzes:  quizzes,
		attempts: attempts,
		users:    users,
		boards:   boards,
		access:   JoinedUsersAccess{},
		now:      time.Now,
	}
}

// WithClock is test-only for deterministic timestamps.
func (s *QuizService) WithClock(now func() time.Time) *QuizService {
	s.now = now
	return s
}

// CreateQuiz validates the draft, stores the quiz and credits its creator.
func (s *QuizService) CreateQuiz(ctx context.Context, identity domain.Identity, draft QuizDraft) (domain.Quiz, error) {
	if err := ValidateDraft(draft); err != nil {
		return domain.Quiz{}, err
	}
	if _, err := s.users.EnsureUser(ctx, identity); err != nil {
		return domain.Quiz{}, err
	}

	now := s.now().UTC()
	quiz := domain.Quiz{
		ID:          uuid.NewString(),
		Title:       draft.Title,
		Description: draft.Description,
		Topic:       draft.Topic,
		Difficulty:  draft.Difficulty,
		Questions:   buildQuestions(draft.Questions, nil),
		OwnerID:     identity.UserID,
		IsPublic:    draft.IsPublic == nil || *draft.IsPublic,
		TimeLimit:   draft.TimeLimit,
		Tags:        draft.Tags,
		IsActive:    true,
		CreatedAt:   now,
		UpdatedAt:   now,
	}
	if !quiz.IsPublic {
		code, err := s.uniqueAccessCode(ctx)
		if err != nil {
			return domain.Quiz{}, err
		}
		quiz.AccessCode = code
	}

	if err := s.quizzes.CreateQuiz(ctx, quiz); err != nil {
		return domain.Quiz{}, fmt.Errorf("create quiz: %w", err)
	}
	if err := s.users.IncrementQuizzesCreated(ctx, identity.UserID); err != nil {
		return domain.Quiz{}, fmt.Errorf("credit creator: %w", err)
	}
	s.boards.Invalidate(ctx)

	glog.V(2).Infof("quiz %s created by %s (public=%t)", quiz.ID, identity.UserID, quiz.IsPublic)
	return quiz, nil
}

// GetQuiz returns an active quiz the caller is allowed to see. Admins may
// read private quizzes; starting an attempt still requires owner or joined access.
func (s *QuizService) GetQuiz(ctx context.Context, identity domain.Identity, quizID string) (domain.Quiz, error) {
	quiz, err := s.activeQuiz(ctx, quizID)
	if err != nil {
		return domain.Quiz{}, err
	}
	if !identity.IsAdmin && !s.access.CanAccess(identity, quiz) {
		return domain.Quiz{}, domain.ErrAccessDenied
	}
	return quiz, nil
}

// ListPublicQuizzes pages through active public quizzes, newest first.
func (s *QuizService) ListPublicQuizzes(ctx context.Context, filter domain.QuizFilter) ([]domain.Quiz, domain.Page, error) {
	filter.PublicOnly = true
	filter.OwnerID = ""
	return s.list(ctx, filter)
}

// ListOwnQuizzes pages through the caller's quizzes, including inactive ones.
func (s *QuizService) ListOwnQuizzes(ctx context.Context, identity domain.Identity, page, limit int) ([]domain.Quiz, domain.Page, error) {
	return s.list(ctx, domain.QuizFilter{OwnerID: identity.UserID, Page: page, Limit: limit})
}

func (s *QuizService) list(ctx context.Context, filter domain.QuizFilter) ([]domain.Quiz, domain.Page, error) {
	p := domain.NewPage(filter.Page, filter.Limit, 0)
	filter.Page, filter.Limit = p.Page, p.Limit
	quizzes, total, err := s.quizzes.ListQuizzes(ctx, filter)
	if err != nil {
		return nil, domain.Page{}, err
	}
	return quizzes, domain.NewPage(p.Page, p.Limit, total), nil
}

// UpdateQuiz replaces the authored content of a quiz the caller owns. The
// owner, visibility, access code and active flag are not touched; in-progress
// attempts keep their snapshot of the maximum score.
func (s *QuizService) UpdateQuiz(ctx context.Context, identity domain.Identity, quizID string, draft QuizDraft) (domain.Quiz, error) {
	quiz, err := s.ownedQuiz(ctx, identity, quizID)
	if err != nil {
		return domain.Quiz{}, err
	}
	if err := ValidateDraft(draft); err != nil {
		return domain.Quiz{}, err
	}

	quiz.Title = draft.Title
	quiz.Description = draft.Description
	quiz.Topic = draft.Topic
	quiz.Difficulty = draft.Difficulty
	quiz.Questions = buildQuestions(draft.Questions, quiz.Questions)
	quiz.TimeLimit = draft.TimeLimit
	quiz.Tags = draft.Tags
	quiz.UpdatedAt = s.now().UTC()

	if err := s.quizzes.UpdateQuiz(ctx, quiz); err != nil {
		return domain.Quiz{}, fmt.Errorf("update quiz: %w", err)
	}
	return quiz, nil
}

// DeleteQuiz soft-deletes a quiz the caller owns.
func (s *QuizService) DeleteQuiz(ctx context.Context, identity domain.Identity, quizID string) error {
	if _, err := s.ownedQuiz(ctx, identity, quizID); err != nil {
		return err
	}
	if err := s.quizzes.DeactivateQuiz(ctx, quizID, s.now().UTC()); err != nil {
		return fmt.Errorf("deactivate quiz: %w", err)
	}
	glog.V(2).Infof("quiz %s deactivated by %s", quizID, identity.UserID)
	return nil
}

// JoinByCode grants the caller access to the private quiz behind code.
func (s *QuizService) JoinByCode(ctx context.Context, identity domain.Identity, code string) (domain.Quiz, error) {
	if code == "" {
		return domain.Quiz{}, fmt.Errorf("%w: access code is required", domain.ErrInvalidInput)
	}
	quiz, err := s.quizzes.FindQuizByAccessCode(ctx, code)
	if err != nil {
		return domain.Quiz{}, err
	}
	if !quiz.IsActive {
		return domain.Quiz{}, domain.ErrQuizNotFound
	}
	if quiz.IsPublic {
		return domain.Quiz{}, fmt.Errorf("%w: quiz is public", domain.ErrInvalidInput)
	}
	if _, err := s.users.EnsureUser(ctx, identity); err != nil {
		return domain.Quiz{}, err
	}
	if quiz.OwnerID != identity.UserID && !quiz.HasJoined(identity.UserID) {
		if err := s.quizzes.AddJoinedUser(ctx, quiz.ID, identity.UserID); err != nil {
			return domain.Quiz{}, fmt.Errorf("join quiz: %w", err)
		}
		quiz.JoinedUsers = append(quiz.JoinedUsers, identity.UserID)
	}
	return quiz, nil
}

// RegenerateAccessCode replaces the access code of a private quiz the caller owns.
func (s *QuizService) RegenerateAccessCode(ctx context.Context, identity domain.Identity, quizID string) (string, error) {
	quiz, err := s.ownedQuiz(ctx, identity, quizID)
	if err != nil {
		return "", err
	}
	if quiz.IsPublic {
		return "", fmt.Errorf("%w: public quizzes do not use access codes", domain.ErrInvalidInput)
	}
	code, err := s.uniqueAccessCode(ctx)
	if err != nil {
		return "", err
	}
	if err := s.quizzes.SetAccessCode(ctx, quiz.ID, code, s.now().UTC()); err != nil {
		return "", fmt.Errorf("store access code: %w", err)
	}
	return code, nil
}

// RateQuiz records the caller's 1..5 rating of a quiz they have completed at
// least once. Rating again replaces the earlier rating.
func (s *QuizService) RateQuiz(ctx context.Context, identity domain.Identity, quizID string, rating int, comment string) (domain.Rating, error) {
	if rating < minRating || rating > maxRating {
		return domain.Rating{}, fmt.Errorf("%w: rating must be between %d and %d", domain.ErrInvalidInput, minRating, maxRating)
	}
	if len(comment) > maxRatingComment {
		return domain.Rating{}, fmt.Errorf("%w: comment must be at most %d characters", domain.ErrInvalidInput, maxRatingComment)
	}
	quiz, err := s.activeQuiz(ctx, quizID)
	if err != nil {
		return domain.Rating{}, err
	}
	done, err := s.attempts.HasCompletedAttempt(ctx, identity.UserID, quiz.ID)
	if err != nil {
		return domain.Rating{}, err
	}
	if !done {
		return domain.Rating{}, fmt.Errorf("%w: complete the quiz before rating it", domain.ErrAccessDenied)
	}

	r := domain.Rating{
		QuizID:  quiz.ID,
		UserID:  identity.UserID,
		Rating:  rating,
		Comment: comment,
		RatedAt: s.now().UTC(),
	}
	if err := s.quizzes.UpsertRating(ctx, r); err != nil {
		return domain.Rating{}, fmt.Errorf("rate quiz: %w", err)
	}
	glog.V(2).Infof("quiz %s rated %d by %s", quiz.ID, rating, identity.UserID)
	return r, nil
}

func (s *QuizService) activeQuiz(ctx context.Context, quizID string) (domain.Quiz, error) {
	quiz, err := s.quizzes.GetQuiz(ctx, quizID)
	if err != nil {
		return domain.Quiz{}, err
	}
	if !quiz.IsActive {
		return domain.Quiz{}, domain.ErrQuizNotFound
	}
	return quiz, nil
}

func (s *QuizService) ownedQuiz(ctx context.Context, identity domain.Identity, quizID string) (domain.Quiz, error) {
	quiz, err := s.activeQuiz(ctx, quizID)
	if err != nil {
		return domain.Quiz{}, err
	}
	if quiz.OwnerID != identity.UserID {
		return domain.Quiz{}, domain.ErrAccessDenied
	}
	return quiz, nil
}

func (s *QuizService) uniqueAccessCode(ctx context.Context) (string, error) {
	for i := 0; i < accessCodeRetries; i++ {
		code, err := newAccessCode()
		if err != nil {
			return "", err
		}
		_, err = s.quizzes.FindQuizByAccessCode(ctx, code)
		if errors.Is(err, domain.ErrQuizNotFound) {
			return code, nil
		}
		if err != nil {
			return "", err
		}
	}
	return "", errors.New("could not allocate a unique access code")
}

func newAccessCode() (string, error) {
	max := big.NewInt(int64(len(accessCodeAlphabet)))
	code := make([]byte, accessCodeLength)
	for i := range code {
		n, err := rand.Int(rand.Reader, max)
		if err != nil {
			return "", err
		}
		code[i] = accessCodeAlphabet[n.Int64()]
	}
	return string(code), nil
}

// buildQuestions converts drafts into questions, keeping ids that name an
// existing question so analytics stay attached across edits.
func buildQuestions(drafts []QuestionDraft, existing []domain.Question) []domain.Question {
	known := make(map[string]struct{}, len(existing))
	for _, q := range existing {
		known[q.ID] = struct{}{}
	}

	questions := make([]domain.Question, 0, len(drafts))
	for _, d := range drafts {
		id := d.ID
		if _, ok := known[id]; !ok || id == "" {
			id = uuid.NewString()
		}
		points := d.Points
		if points == 0 {
			points = 1
		}
		q := domain.Question{
			ID:     id,
			Text:   d.Text,
			Type:   d.Type,
			Points: points,
		}
		switch d.Type {
		case domain.QuestionMCQ:
			q.Options = append([]domain.Option(nil), d.Options...)
		case domain.QuestionSingleAnswer:
			q.CorrectAnswer = d.CorrectAnswer
		}
		questions = append(questions, q)
	}
	return questions
}
